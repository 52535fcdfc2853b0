package integration

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentTransfers hammers one funded sender with parallel transfers
// through the real HTTP stack. Optimistic concurrency serializes the balance
// updates: a request either commits fully or fails with a contention error
// after exhausting its retries. Whatever the split, no token is ever created
// or destroyed and the sender can never go negative.
func TestConcurrentTransfers(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := loginAdmin(t, app)
	mintTo(t, app, token, "hot-sender", 10000)

	concurrency := 50
	amount := int64(100)

	var wg sync.WaitGroup
	var successCount, conflictCount, otherCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			body := fmt.Sprintf(`{"sender_principal":"hot-sender","receiver_principal":"receiver-%d","amount":%d}`, idx, amount)
			resp, err := http.Post(app.server.URL+"/api/v1/transfers", "application/json", bytes.NewBufferString(body))
			if err != nil {
				otherCount.Add(1)
				return
			}
			resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
				successCount.Add(1)
			case http.StatusConflict:
				conflictCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	succeeded := successCount.Load()
	assert.Equal(t, int64(0), otherCount.Load(), "only success or contention are acceptable outcomes")
	assert.Equal(t, int64(concurrency), succeeded+conflictCount.Load())
	assert.Greater(t, succeeded, int64(0), "at least some transfers must win their CAS race")

	// Sender lost exactly what the winners moved
	sender, err := app.wallets.GetByPrincipal(context.Background(), "hot-sender")
	require.NoError(t, err)
	require.NotNil(t, sender)
	assert.Equal(t, 10000-succeeded*amount, sender.TokenBalance)

	// Receivers hold exactly what was moved
	var received int64
	for i := 0; i < concurrency; i++ {
		w, err := app.wallets.GetByPrincipal(context.Background(), fmt.Sprintf("receiver-%d", i))
		require.NoError(t, err)
		if w != nil {
			received += w.TokenBalance
		}
	}
	assert.Equal(t, succeeded*amount, received)

	// Supply never moved
	ts, err := app.treasury.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10000), ts.TotalSupply)
	assertConservation(t, app)
}

// TestConcurrentWebhookRedeliveries confirms a deposit once, then fires the
// same confirmation many times in parallel the way a rail retries after slow
// acks. The external reference makes the credit idempotent: exactly one
// ledger credit lands no matter how many redeliveries race.
func TestConcurrentWebhookRedeliveries(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	data := postData(t, app, "/api/v1/deposits",
		`{"principal":"alice","rail":"card","amount_usd":"100"}`, http.StatusCreated)
	reference := data["reference"].(string)

	body := fmt.Sprintf(`{"event_id":"evt_race","event_type":"payment.succeeded","reference":%q,"amount_usd":"100"}`, reference)
	whData := postWebhook(t, app, "card", body, http.StatusOK)
	require.Equal(t, "COMPLETED", whData["status"])

	concurrency := 20
	var wg sync.WaitGroup
	var okCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timestamp := strconv.FormatInt(time.Now().Unix(), 10)
			mac := hmac.New(sha256.New, []byte(testWebhookSecret))
			mac.Write([]byte(timestamp + "." + body))

			req, err := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/webhooks/card", bytes.NewBufferString(body))
			if err != nil {
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Webhook-Signature", hex.EncodeToString(mac.Sum(nil)))
			req.Header.Set("X-Webhook-Timestamp", timestamp)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				okCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(concurrency), okCount.Load())

	// Exactly one credit, credited exactly once
	alice, err := app.wallets.GetByPrincipal(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.Equal(t, int64(100), alice.TokenBalance)

	ts, err := app.treasury.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), ts.TotalSupply)
	assert.True(t, ts.PendingDepositsUSD.IsZero())
	assertConservation(t, app)
}
