package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/env"
)

// Notification event types.
const (
	EventPaymentSettled     = "payment.settled"
	EventPaymentFailed      = "payment.failed"
	EventEntitlementChanged = "entitlement.changed"
)

// Notifier delivers tenant-facing events (SMS/email fan-out happens behind
// the receiving service). Delivery is best-effort and must never block or
// roll back a settlement.
type Notifier interface {
	Notify(ctx context.Context, tenantID uint, eventType string, payload map[string]any) error
}

// NewFromEnv returns a webhook notifier when NOTIFY_WEBHOOK_URL is set and
// a log-only notifier otherwise.
func NewFromEnv() Notifier {
	url := strings.TrimSpace(env.GetEnv("NOTIFY_WEBHOOK_URL", ""))
	if url == "" {
		return &LogNotifier{}
	}
	return &WebhookNotifier{
		URL: url,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// LogNotifier records notifications in the application log only.
type LogNotifier struct{}

func (n *LogNotifier) Notify(_ context.Context, tenantID uint, eventType string, payload map[string]any) error {
	log.Infof("[Notify] tenant=%d event=%s payload=%v", tenantID, eventType, payload)
	return nil
}

// WebhookNotifier posts events to the configured notification service.
type WebhookNotifier struct {
	URL        string
	HTTPClient *http.Client
}

func (n *WebhookNotifier) Notify(ctx context.Context, tenantID uint, eventType string, payload map[string]any) error {
	body := map[string]any{
		"tenant_id":  tenantID,
		"event_type": eventType,
		"payload":    payload,
		"sent_at":    time.Now().UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Dispatch fires a notification on its own goroutine with a bounded
// deadline and logs failures. Callers use this outside their transactions.
func Dispatch(n Notifier, tenantID uint, eventType string, payload map[string]any) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.Notify(ctx, tenantID, eventType, payload); err != nil {
			log.Warnf("[Notify] delivery failed tenant=%d event=%s: %v", tenantID, eventType, err)
		}
	}()
}
