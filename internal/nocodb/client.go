// Package nocodb uploads traffic records to a NocoDB table.
//
// The table API only offers create: there is no upsert and no efficient
// lookup by key, so the client never checks the remote side for existing
// rows. The local synced flag is the sole duplicate-prevention mechanism.
// That leaves one documented window: if an upload succeeds but the process
// dies before the flag is persisted, the record is uploaded again on the
// next run. The upload journal exists so operators can find and remove
// such duplicates by hand.
package nocodb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/inovacc/trafficr/internal/model"
)

const maxErrorBody = 8 << 10

// Client creates rows in one NocoDB table. All calls pass through a single
// process-wide rate gate.
type Client struct {
	baseURL string
	tableID string
	token   string
	gate    *Gate
	httpc   *http.Client
}

// NewClient creates a client for the configured remote table.
func NewClient(cfg model.RemoteConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		tableID: cfg.TableID,
		token:   cfg.Token,
		gate:    NewGate(cfg.MinCallSpacing.Std()),
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload creates one row in the remote table. A nil return is the only
// success signal; every failure is a *SyncError whose Kind tells the
// caller how to proceed.
func (c *Client) Upload(ctx context.Context, rec model.RemoteRecord) error {
	fail := func(kind SyncKind, err error) error {
		return &SyncError{
			Repository: rec.Username + "/" + rec.Repository,
			Date:       rec.Date,
			Kind:       kind,
			Err:        err,
		}
	}

	if err := c.gate.Wait(ctx); err != nil {
		return fail(SyncTransport, err)
	}

	body, err := json.Marshal(&rec)
	if err != nil {
		return fail(SyncRejected, err)
	}

	url := fmt.Sprintf("%s/api/v2/tables/%s/records", c.baseURL, c.tableID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fail(SyncTransport, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xc-token", c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fail(SyncTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	respErr := fmt.Errorf("remote returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fail(SyncRateLimited, respErr)
	case resp.StatusCode == http.StatusPaymentRequired,
		resp.StatusCode >= 400 && resp.StatusCode < 500 && capacityMessage(msg):
		return fail(SyncCapacityExceeded, respErr)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		// Auth failures group with transport: the payload is fine, the
		// account is not.
		return fail(SyncTransport, respErr)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fail(SyncRejected, respErr)
	default:
		return fail(SyncTransport, respErr)
	}
}

// capacityMessage recognizes the remote's record/plan limit message. There
// is no dedicated status code for a full table, so the body is the only
// signal.
func capacityMessage(body []byte) bool {
	lower := strings.ToLower(string(body))
	if !strings.Contains(lower, "limit") {
		return false
	}

	return strings.Contains(lower, "record") || strings.Contains(lower, "plan")
}
