package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"

	"github.com/shopspring/decimal"
)

// ChainServiceClient implements ports.ChainClient against the blockchain
// gateway's HTTP API.
type ChainServiceClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewChainServiceClient creates a blockchain gateway client.
func NewChainServiceClient(baseURL, apiKey string, timeout time.Duration) *ChainServiceClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ChainServiceClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *ChainServiceClient) GenerateWallet(ctx context.Context) (string, error) {
	var resp struct {
		Address string `json:"address"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/wallets", nil, &resp); err != nil {
		return "", err
	}
	return resp.Address, nil
}

func (c *ChainServiceClient) SetupTrustline(ctx context.Context, address string, limit int64) error {
	body := map[string]any{"address": address, "limit": limit}
	return c.do(ctx, http.MethodPost, "/v1/trustlines", body, nil)
}

func (c *ChainServiceClient) Transfer(ctx context.Context, from, to string, amount int64) (string, error) {
	body := map[string]any{"from": from, "to": to, "amount": amount}
	var resp struct {
		TxID string `json:"tx_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/payments", body, &resp); err != nil {
		return "", err
	}
	return resp.TxID, nil
}

func (c *ChainServiceClient) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp struct {
		Balance string `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+address+"/balance", nil, &resp); err != nil {
		return decimal.Zero, err
	}
	balance, err := decimal.NewFromString(resp.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing chain balance %q: %w", resp.Balance, err)
	}
	return balance, nil
}

func (c *ChainServiceClient) GetConfirmations(ctx context.Context, txID string) (int, error) {
	var resp struct {
		Confirmations int `json:"confirmations"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/transactions/"+txID, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Confirmations, nil
}

func (c *ChainServiceClient) ListIncoming(ctx context.Context, address string) ([]ports.ChainPayment, error) {
	var resp struct {
		Payments []struct {
			TxID          string `json:"tx_id"`
			Memo          string `json:"memo"`
			Amount        string `json:"amount"`
			Confirmations int    `json:"confirmations"`
		} `json:"payments"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+address+"/payments", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]ports.ChainPayment, 0, len(resp.Payments))
	for _, p := range resp.Payments {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			continue
		}
		out = append(out, ports.ChainPayment{
			TxID:          p.TxID,
			Memo:          p.Memo,
			AmountUSD:     amount,
			Confirmations: p.Confirmations,
		})
	}
	return out, nil
}

func (c *ChainServiceClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling chain request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating chain request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.ErrRailUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperror.ErrRailUnavailable(fmt.Errorf("chain gateway returned %d: %s", resp.StatusCode, payload))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperror.ErrRailUnavailable(fmt.Errorf("decoding chain response: %w", err))
		}
	}
	return nil
}

// ChainRail funds deposits through on-chain transfers to the issuer address.
// Credit waits for the configured confirmation depth, enforced by the watcher.
type ChainRail struct {
	client                ports.ChainClient
	issuerAddress         string
	requiredConfirmations int
}

// NewChainRail creates the blockchain deposit rail.
func NewChainRail(client ports.ChainClient, issuerAddress string, requiredConfirmations int) *ChainRail {
	return &ChainRail{
		client:                client,
		issuerAddress:         issuerAddress,
		requiredConfirmations: requiredConfirmations,
	}
}

func (r *ChainRail) Rail() domain.Rail { return domain.RailChain }

func (r *ChainRail) Initiate(ctx context.Context, principal string, amountUSD decimal.Decimal, reference string) (domain.DepositInstructions, error) {
	return domain.CryptoInstructions{
		Address:               r.issuerAddress,
		Memo:                  reference,
		RequiredConfirmations: r.requiredConfirmations,
	}, nil
}

// ReportedBalance exposes the issuer address balance for reconciliation.
func (r *ChainRail) ReportedBalance(ctx context.Context) (decimal.Decimal, error) {
	return r.client.GetBalance(ctx, r.issuerAddress)
}
