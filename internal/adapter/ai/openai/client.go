// Package openai implements domain.AIClient against an OpenAI-compatible
// chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/service/ratelimiter"
	"github.com/fairyhunter13/ai-interview-evaluator/pkg/textx"
)

// RateLimitKey is the limiter bucket guarding outbound chat calls.
const RateLimitKey = "ai-chat"

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	cfg     config.Config
	hc      *http.Client
	limiter ratelimiter.Limiter
}

// New constructs a client. limiter may be nil.
func New(cfg config.Config, limiter ratelimiter.Limiter) *Client {
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.AITimeout},
		limiter: limiter,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one prompt and returns the raw message content. Transport
// level failures (429, 5xx) are retried with exponential backoff; a response
// that arrives is returned verbatim for the caller to validate.
func (c *Client) Complete(ctx domain.Context, prompt string, temperature float64) (string, error) {
	if c.cfg.OpenAIAPIKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY missing", domain.ErrInvalidArgument)
	}

	if c.limiter != nil {
		allowed, retryAfter, _ := c.limiter.Allow(ctx, RateLimitKey, 1)
		if !allowed {
			slog.Warn("ai call rate limited locally", slog.Duration("retry_after", retryAfter))
			select {
			case <-time.After(retryAfter):
			case <-ctx.Done():
				return "", fmt.Errorf("op=ai.Complete: %w", ctx.Err())
			}
		}
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.OpenAIModel,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("op=ai.Complete marshal: %w", err)
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.cfg.AIBackoffInitialInterval
	expo.MaxInterval = c.cfg.AIBackoffMaxInterval
	bo := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.cfg.AIMaxRetries)), ctx)

	var content string
	start := time.Now()
	err = backoff.Retry(func() error {
		var attemptErr error
		content, attemptErr = c.doRequest(ctx, body)
		return attemptErr
	}, bo)
	dur := time.Since(start)

	if err != nil {
		observability.ObserveAIRequest("chat", "error", dur)
		return "", err
	}
	observability.ObserveAIRequest("chat", "ok", dur)
	return content, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenAIBaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("op=ai.Complete request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", backoff.Permanent(fmt.Errorf("op=ai.Complete: %w: %v", domain.ErrUpstreamTimeout, err))
		}
		// network errors are retryable
		return "", fmt.Errorf("op=ai.Complete do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("op=ai.Complete read: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		slog.Warn("ai provider rate limited", slog.Int("status", resp.StatusCode))
		return "", fmt.Errorf("op=ai.Complete: %w", domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		slog.Warn("ai provider server error", slog.Int("status", resp.StatusCode))
		return "", fmt.Errorf("op=ai.Complete: upstream status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", backoff.Permanent(fmt.Errorf("op=ai.Complete: upstream status %d: %s", resp.StatusCode, textx.Truncate(string(respBody), 200)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("op=ai.Complete decode: %w", err))
	}
	if parsed.Error != nil {
		return "", backoff.Permanent(fmt.Errorf("op=ai.Complete: upstream error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", backoff.Permanent(fmt.Errorf("op=ai.Complete: empty choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}
