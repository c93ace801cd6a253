package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// routingAI answers each pipeline stage from its prompt shape.
type routingAI struct {
	extractResp string
	extractErr  error
	answerFn    func(call int) (string, error)
	overallResp string
	overallErr  error

	extractCalls int
	answerCalls  int
	overallCalls int
}

func (r *routingAI) Complete(_ domain.Context, prompt string, _ float64) (string, error) {
	switch {
	case strings.Contains(prompt, "conversation analyzer"):
		r.extractCalls++
		return r.extractResp, r.extractErr
	case strings.Contains(prompt, "career coach"):
		r.overallCalls++
		return r.overallResp, r.overallErr
	default:
		r.answerCalls++
		if r.answerFn != nil {
			return r.answerFn(r.answerCalls)
		}
		return answerResponse(8), nil
	}
}

func (r *routingAI) totalCalls() int { return r.extractCalls + r.answerCalls + r.overallCalls }

func answerResponse(score float64) string {
	return fmt.Sprintf(`{
		"question_score": %s,
		"user_answer": "the answer",
		"improved_answer": "a better answer",
		"what_went_well": ["clarity"],
		"areas_to_improve": ["depth"],
		"performance_breakdown": {"communication": %s, "technical_knowledge": %s, "confidence": %s, "structure": %s}
	}`, floatString(score), floatString(score), floatString(score), floatString(score), floatString(score))
}

func flatConversationResponse(pairs int) string {
	var b strings.Builder
	b.WriteString(`{"conversation": [`)
	for i := 0; i < pairs; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"role": "assistant", "content": "Question %d?"},`, i+1)
		fmt.Fprintf(&b, `{"role": "user", "content": "A substantial answer to question %d."}`, i+1)
	}
	b.WriteString("]}")
	return b.String()
}

func rawTranscript(messages int) []map[string]any {
	out := make([]map[string]any, 0, messages)
	for i := 0; i < messages; i++ {
		role := "assistant"
		if i%2 == 1 {
			role = "user"
		}
		out = append(out, map[string]any{
			"role":      role,
			"content":   fmt.Sprintf("message %d", i),
			"timestamp": "2026-01-01T10:00:00Z",
		})
	}
	return out
}

func newTestPipeline(client domain.AIClient) *Pipeline {
	p := NewPipeline(client, tokencount.NewCounter(), "gpt-4o-mini")
	p.Extractor().RetryInterval = time.Millisecond
	return p
}

func TestPipeline_Evaluate_EmptyTranscriptShortCircuits(t *testing.T) {
	t.Parallel()

	client := &routingAI{}
	p := newTestPipeline(client)

	sctx := testSessionContext()
	report, err := p.Evaluate(context.Background(), sctx, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, client.totalCalls())
	assert.Equal(t, 0, report.InterviewContext.TotalQuestions)
	assert.Equal(t, 0.0, report.OverallEvaluation.TotalScore)
	assert.Equal(t, domain.LabelPoor, report.OverallEvaluation.FeedbackLabel)
	assert.Equal(t, []string{"Interview was exited before any questions were answered"}, report.OverallEvaluation.KeyStrengths)
	assert.Len(t, report.OverallEvaluation.FocusAreas, 3)
	assert.Equal(t, domain.TokenUsage{}, report.TokenUsage)
	assert.Nil(t, report.OverallEvaluation.Result)
}

func TestPipeline_Evaluate_NoAnswerablePairsShortCircuits(t *testing.T) {
	t.Parallel()

	// Extraction succeeds but every answer is too short to evaluate.
	client := &routingAI{
		extractResp: `{"conversation": [
			{"role": "assistant", "content": "First question?"},
			{"role": "user", "content": "ok"}
		]}`,
	}
	p := newTestPipeline(client)

	report, err := p.Evaluate(context.Background(), testSessionContext(), rawTranscript(2))
	require.NoError(t, err)

	assert.Equal(t, 1, client.extractCalls)
	assert.Equal(t, 0, client.answerCalls)
	assert.Equal(t, 0, client.overallCalls)
	assert.Equal(t, 0.0, report.OverallEvaluation.TotalScore)
	assert.Equal(t, 0, report.TokenUsage.EvaluationTotalTokens)
}

func TestPipeline_Evaluate_OnPaceInterview(t *testing.T) {
	t.Parallel()

	// 12 minute interview, 6 questions asked and answered: complete, model
	// synthesis score carried through.
	client := &routingAI{
		extractResp: flatConversationResponse(6),
		overallResp: overallResponse(80),
	}
	p := newTestPipeline(client)

	sctx := testSessionContext()
	sctx.DurationMinutes = 12

	report, err := p.Evaluate(context.Background(), sctx, rawTranscript(12))
	require.NoError(t, err)

	assert.Equal(t, 6, report.InterviewContext.TotalQuestions)
	assert.Equal(t, 6.0, report.InterviewContext.MinimumQuestionsRequired)
	assert.Equal(t, domain.CompletenessComplete, report.InterviewContext.CompletenessStatus)
	assert.Equal(t, 80.0, report.OverallEvaluation.TotalScore)
	assert.Equal(t, domain.LabelExcellent, report.OverallEvaluation.FeedbackLabel)
	assert.Len(t, report.Questions, 6)
	assert.Equal(t, 6, client.answerCalls)
	assert.Equal(t, 1, client.overallCalls)
	assert.Greater(t, report.TokenUsage.EvaluationTotalTokens, 0)
	assert.Greater(t, report.TokenUsage.EvaluationCostUSD, 0.0)
}

func TestPipeline_Evaluate_EarlyExitPenalty(t *testing.T) {
	t.Parallel()

	// 20 minute interview requires 10 questions; 4 perfect answers yield
	// 4*10 / (10*10) * 100 = 40.
	client := &routingAI{
		extractResp: flatConversationResponse(4),
		answerFn:    func(int) (string, error) { return answerResponse(10), nil },
		overallResp: overallResponse(100),
	}
	p := newTestPipeline(client)

	sctx := testSessionContext()
	sctx.DurationMinutes = 20

	report, err := p.Evaluate(context.Background(), sctx, rawTranscript(8))
	require.NoError(t, err)

	assert.Equal(t, domain.CompletenessIncomplete, report.InterviewContext.CompletenessStatus)
	assert.Equal(t, 40.0, report.OverallEvaluation.TotalScore)
	assert.Equal(t, domain.LabelFair, report.OverallEvaluation.FeedbackLabel)
}

func TestPipeline_Evaluate_PlaceholderOnQuestionFailure(t *testing.T) {
	t.Parallel()

	client := &routingAI{
		extractResp: flatConversationResponse(3),
		answerFn: func(call int) (string, error) {
			if call == 2 {
				return "not json", nil
			}
			return answerResponse(8), nil
		},
		overallResp: overallResponse(70),
	}
	p := newTestPipeline(client)

	report, err := p.Evaluate(context.Background(), testSessionContext(), rawTranscript(6))
	require.NoError(t, err)

	require.Len(t, report.Questions, 3)
	failed := report.Questions[1]
	assert.Equal(t, 2, failed.QuestionNumber)
	assert.Equal(t, 0.0, failed.Score)
	assert.Equal(t, domain.LabelError, failed.FeedbackLabel)
	assert.Equal(t, "Evaluation failed", failed.ImprovedAnswer)
	assert.Equal(t, []string{"Could not evaluate this answer"}, failed.AreasToImprove)
	assert.Equal(t, domain.PerformanceBreakdown{}, failed.PerformanceBreakdown)

	// surrounding questions unaffected, aggregation still ran
	assert.Equal(t, 8.0, report.Questions[0].Score)
	assert.Equal(t, 1, client.overallCalls)
}

func TestPipeline_Evaluate_ExtractionExhaustionIsFatal(t *testing.T) {
	t.Parallel()

	client := &routingAI{extractResp: "```json\nbroken\n```"}
	p := newTestPipeline(client)

	_, err := p.Evaluate(context.Background(), testSessionContext(), rawTranscript(4))
	require.Error(t, err)

	assert.Equal(t, 3, client.extractCalls)
	assert.Equal(t, 0, client.answerCalls)

	var extErr *ExtractionError
	assert.True(t, errors.As(err, &extErr))
	assert.True(t, errors.Is(err, domain.ErrSchemaInvalid))
}

func TestPipeline_Evaluate_ThirdAttemptExtractionSucceeds(t *testing.T) {
	t.Parallel()

	attempt := 0
	client := &routingAI{overallResp: overallResponse(75)}
	// wrap extract behavior: two junk replies, then valid
	base := client
	wrapped := aiFunc(func(ctx domain.Context, prompt string, temp float64) (string, error) {
		if strings.Contains(prompt, "conversation analyzer") {
			attempt++
			if attempt < 3 {
				return "```json\njunk\n```", nil
			}
			return flatConversationResponse(2), nil
		}
		return base.Complete(ctx, prompt, temp)
	})
	p := newTestPipeline(wrapped)

	report, err := p.Evaluate(context.Background(), testSessionContext(), rawTranscript(4))
	require.NoError(t, err)
	assert.Equal(t, 3, attempt)
	assert.Len(t, report.Questions, 2)
}

func TestPipeline_Evaluate_IdempotentWithDeterministicModel(t *testing.T) {
	t.Parallel()

	newClient := func() *routingAI {
		return &routingAI{
			extractResp: flatConversationResponse(2),
			overallResp: overallResponse(75),
		}
	}

	sctx := testSessionContext()
	first, err := newTestPipeline(newClient()).Evaluate(context.Background(), sctx, rawTranscript(4))
	require.NoError(t, err)
	second, err := newTestPipeline(newClient()).Evaluate(context.Background(), sctx, rawTranscript(4))
	require.NoError(t, err)

	assert.Equal(t, first.Questions, second.Questions)
	assert.Equal(t, first.OverallEvaluation, second.OverallEvaluation)
	assert.Equal(t, first.TokenUsage, second.TokenUsage)
}

// aiFunc adapts a function to domain.AIClient.
type aiFunc func(ctx domain.Context, prompt string, temperature float64) (string, error)

func (f aiFunc) Complete(ctx domain.Context, prompt string, temperature float64) (string, error) {
	return f(ctx, prompt, temperature)
}
