package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	aiclean "github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

const (
	extractMaxAttempts = 3
	extractTemperature = 0.0
)

// ExtractionError reports that the model never produced a valid flat
// conversation across all retry attempts. Raw and Cleaned hold the last
// attempt's output for diagnostics.
type ExtractionError struct {
	Raw     string
	Cleaned string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("conversation extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor turns a normalized transcript into a strictly alternating
// question/answer conversation via a single LLM call per attempt.
type Extractor struct {
	ai      domain.AIClient
	cleaner *aiclean.ResponseCleaner

	// RetryInterval is the fixed wait between attempts.
	RetryInterval time.Duration
}

// NewExtractor builds an extractor with the default 1s retry interval.
func NewExtractor(client domain.AIClient) *Extractor {
	return &Extractor{
		ai:            client,
		cleaner:       aiclean.NewResponseCleaner(),
		RetryInterval: time.Second,
	}
}

// Extract runs the extraction contract. Empty input returns an empty
// conversation without calling the model. Each attempt cleans and validates
// the model output; after all attempts fail the last raw and cleaned forms
// are returned inside an *ExtractionError wrapping domain.ErrSchemaInvalid.
func (e *Extractor) Extract(ctx domain.Context, msgs []domain.Message) (domain.FlatConversation, error) {
	if len(msgs) == 0 {
		slog.Warn("empty conversation provided, returning empty conversation")
		return domain.FlatConversation{Conversation: []domain.Message{}}, nil
	}

	prompt := buildExtractPrompt(msgs)

	var (
		flat        domain.FlatConversation
		lastRaw     string
		lastCleaned string
	)

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.RetryInterval), extractMaxAttempts-1),
		ctx,
	)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		raw, callErr := e.ai.Complete(ctx, prompt, extractTemperature)
		if callErr != nil {
			slog.Warn("extraction model call failed",
				slog.Int("attempt", attempt), slog.Any("error", callErr))
			lastRaw, lastCleaned = "", ""
			return callErr
		}
		lastRaw = raw

		cleaned, cleanErr := e.cleaner.CleanAndValidateJSON(raw)
		if cleanErr != nil {
			var jv *aiclean.JSONValidationError
			if errors.As(cleanErr, &jv) {
				lastCleaned = jv.Cleaned
			}
			slog.Warn("extraction output is not valid JSON", slog.Int("attempt", attempt))
			return cleanErr
		}
		lastCleaned = cleaned

		parsed, parseErr := parseFlatConversation(cleaned)
		if parseErr != nil {
			slog.Warn("extraction output failed validation",
				slog.Int("attempt", attempt), slog.Any("error", parseErr))
			return parseErr
		}

		flat = parsed
		return nil
	}, bo)

	if err != nil {
		return domain.FlatConversation{}, &ExtractionError{
			Raw:     lastRaw,
			Cleaned: lastCleaned,
			Err:     fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err),
		}
	}

	slog.Info("conversation extracted", slog.Int("pairs", len(flat.Conversation)/2))
	return flat, nil
}

// parseFlatConversation enforces the structural contract: an object with a
// conversation list of {role, content} mappings where role is assistant or
// user. Alternation violations are logged, never fatal.
func parseFlatConversation(cleaned string) (domain.FlatConversation, error) {
	var envelope struct {
		Conversation *[]struct {
			Role    *string `json:"role"`
			Content *string `json:"content"`
		} `json:"conversation"`
	}
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return domain.FlatConversation{}, fmt.Errorf("parse conversation: %w", err)
	}
	if envelope.Conversation == nil {
		return domain.FlatConversation{}, fmt.Errorf("output missing conversation key")
	}

	msgs := make([]domain.Message, 0, len(*envelope.Conversation))
	for i, m := range *envelope.Conversation {
		if m.Role == nil || m.Content == nil {
			return domain.FlatConversation{}, fmt.Errorf("message %d missing role or content", i)
		}
		role := *m.Role
		if role != domain.RoleAssistant && role != domain.RoleUser {
			return domain.FlatConversation{}, fmt.Errorf("message %d has unknown role %q", i, role)
		}

		if i%2 == 0 && role != domain.RoleAssistant {
			slog.Warn("expected assistant message", slog.Int("index", i), slog.String("role", role))
		}
		if i%2 == 1 && role != domain.RoleUser {
			slog.Warn("expected user message", slog.Int("index", i), slog.String("role", role))
		}

		msgs = append(msgs, domain.Message{Role: role, Content: *m.Content})
	}

	return domain.FlatConversation{Conversation: msgs}, nil
}

// DeriveQAPairs splits an alternating conversation into question/answer pairs
// and drops pairs whose answer is too short to evaluate or is a placeholder.
func DeriveQAPairs(flat domain.FlatConversation) []domain.QAPair {
	conv := flat.Conversation
	pairs := make([]domain.QAPair, 0, len(conv)/2)
	for i := 0; i+1 < len(conv); i += 2 {
		question := conv[i].Content
		answer := conv[i+1].Content

		trimmed := strings.TrimSpace(answer)
		if len(trimmed) <= 3 || strings.HasPrefix(trimmed, "[") {
			continue
		}
		pairs = append(pairs, domain.QAPair{Question: question, Answer: answer})
	}
	return pairs
}
