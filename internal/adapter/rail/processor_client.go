package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"

	"github.com/shopspring/decimal"
)

// ProcessorClient implements ports.PaymentProcessor against a hosted payment
// processor's HTTP API. The processor is opaque; only the normalized payment
// intent contract is relied upon.
type ProcessorClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewProcessorClient creates a processor API client.
func NewProcessorClient(baseURL, apiKey string, timeout time.Duration) *ProcessorClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ProcessorClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type createPaymentRequest struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

type paymentIntentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
	PaymentURL   string `json:"payment_url"`
}

// CreatePayment opens a payment intent with the processor.
func (c *ProcessorClient) CreatePayment(ctx context.Context, amountUSD decimal.Decimal, currency, method, reference string) (*ports.PaymentIntent, error) {
	body, err := json.Marshal(createPaymentRequest{
		Amount:    amountUSD.String(),
		Currency:  currency,
		Method:    method,
		Reference: reference,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling payment request: %w", err)
	}

	var resp paymentIntentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/payments", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	return &ports.PaymentIntent{
		ID:           resp.ID,
		Status:       resp.Status,
		ClientSecret: resp.ClientSecret,
		PaymentURL:   resp.PaymentURL,
	}, nil
}

type accountBalanceResponse struct {
	Available string `json:"available"`
	Currency  string `json:"currency"`
}

// GetAccountBalance returns the processor account's available USD balance.
func (c *ProcessorClient) GetAccountBalance(ctx context.Context) (decimal.Decimal, error) {
	var resp accountBalanceResponse
	if err := c.do(ctx, http.MethodGet, "/v1/balance", nil, &resp); err != nil {
		return decimal.Zero, err
	}
	balance, err := decimal.NewFromString(resp.Available)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing processor balance %q: %w", resp.Available, err)
	}
	return balance, nil
}

func (c *ProcessorClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating processor request: %w", err)
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
		return apperror.ErrRailUnavailable(fmt.Errorf("processor returned %d: %s", resp.StatusCode, payload))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperror.ErrRailUnavailable(fmt.Errorf("decoding processor response: %w", err))
		}
	}
	return nil
}
