// Package notifier delivers best-effort completion callbacks to an external
// backend.
package notifier

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// Webhook PATCHes evaluation outcomes to a configured URL. Delivery is
// fire-and-forget: every failure is logged and swallowed so the stored
// evaluation is never affected.
type Webhook struct {
	url string
	hc  *http.Client
}

// New constructs a webhook notifier. An empty URL disables delivery.
func New(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		url: url,
		hc:  &http.Client{Timeout: timeout},
	}
}

type statusPayload struct {
	SessionID int64  `json:"session_id"`
	Status    string `json:"status"`
	Score     int    `json:"score"`
	Token     string `json:"token"`
}

// Notify sends the completion callback. It never returns an error.
func (w *Webhook) Notify(ctx domain.Context, sessionID int64, result string, score int, token string) {
	if w == nil || w.url == "" {
		return
	}

	body, err := json.Marshal(statusPayload{
		SessionID: sessionID,
		Status:    strings.ToLower(result),
		Score:     score,
		Token:     token,
	})
	if err != nil {
		slog.Error("notify marshal failed", slog.Any("error", err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, w.url, bytes.NewReader(body))
	if err != nil {
		slog.Error("notify request build failed", slog.Any("error", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.hc.Do(req)
	if err != nil {
		slog.Error("notify delivery failed",
			slog.Int64("session_id", sessionID),
			slog.Any("error", err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		slog.Info("notification sent",
			slog.Int64("session_id", sessionID),
			slog.Int("score", score))
	} else {
		slog.Warn("notification rejected",
			slog.Int64("session_id", sessionID),
			slog.Int("status", resp.StatusCode))
	}
}

var _ domain.Notifier = (*Webhook)(nil)
