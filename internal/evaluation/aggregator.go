package evaluation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	aiclean "github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// Completeness reports the duration-based cadence check: an interview must
// cover at least duration/2 questions to count as complete.
type Completeness struct {
	MinimumRequired float64
	Status          string
	Message         string
}

// Aggregator synthesizes the overall evaluation from per-question results and
// applies the completeness penalty. Synthesis failure is fatal; there is no
// placeholder at this level.
type Aggregator struct {
	ai      domain.AIClient
	cleaner *aiclean.ResponseCleaner
	counter *tokencount.Counter
	model   string
}

func NewAggregator(client domain.AIClient, counter *tokencount.Counter, model string) *Aggregator {
	return &Aggregator{
		ai:      client,
		cleaner: aiclean.NewResponseCleaner(),
		counter: counter,
		model:   model,
	}
}

type overallEvalResponse struct {
	TotalScore           float64              `json:"total_score"`
	FeedbackLabel        string               `json:"feedback_label"`
	KeyStrengths         []string             `json:"key_strengths"`
	FocusAreas           []string             `json:"focus_areas"`
	PerformanceBreakdown performanceBreakdown `json:"performance_breakdown"`
}

// Aggregate produces the overall evaluation.
//
// Complete interviews (questions asked >= duration/2) take the model's
// synthesized total_score. Incomplete interviews are rescored against the
// minimum cadence: sum(scores) / (minimum * 10) * 100. The feedback label is
// always derived from the final adjusted score, and result is pass/fail only
// when a passing score was configured.
func (a *Aggregator) Aggregate(ctx domain.Context, sctx domain.SessionContext, evals []domain.QuestionEvaluation) (domain.OverallEvaluation, Completeness, CallUsage, error) {
	prompt := buildOverallEvaluatorPrompt(sctx, evals)

	raw, err := a.ai.Complete(ctx, prompt, evalTemperature)
	if err != nil {
		return domain.OverallEvaluation{}, Completeness{}, CallUsage{}, fmt.Errorf("op=evaluation.Aggregate: %w", err)
	}

	cleaned, err := a.cleaner.CleanAndValidateJSON(raw)
	if err != nil {
		return domain.OverallEvaluation{}, Completeness{}, CallUsage{}, fmt.Errorf("op=evaluation.Aggregate: %w: %v", domain.ErrSchemaInvalid, err)
	}

	var parsed overallEvalResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return domain.OverallEvaluation{}, Completeness{}, CallUsage{}, fmt.Errorf("op=evaluation.Aggregate decode: %w: %v", domain.ErrSchemaInvalid, err)
	}

	usage := CallUsage{
		InputTokens:  a.counter.CountTokensOrEstimate(prompt, a.model),
		OutputTokens: a.counter.CountTokensOrEstimate(raw, a.model),
	}

	questionsAsked := len(evals)
	minimumRequired := float64(sctx.DurationMinutes) / 2

	var (
		adjusted     float64
		completeness Completeness
	)
	completeness.MinimumRequired = minimumRequired

	if float64(questionsAsked) >= minimumRequired {
		adjusted = clamp(parsed.TotalScore, 0, 100)
		completeness.Status = domain.CompletenessComplete
		completeness.Message = fmt.Sprintf("Interview completed successfully with %d questions.", questionsAsked)
	} else {
		var sum float64
		for _, q := range evals {
			sum += q.Score
		}
		maxPossible := minimumRequired * 10
		if maxPossible > 0 {
			adjusted = sum / maxPossible * 100
		}
		completeness.Status = domain.CompletenessIncomplete
		completeness.Message = fmt.Sprintf("Interview incomplete. Only %d/%.1f minimum questions covered.", questionsAsked, minimumRequired)

		slog.Warn("interview ended early",
			slog.Int("questions_asked", questionsAsked),
			slog.Float64("minimum_required", minimumRequired),
			slog.Float64("adjusted_score", adjusted))
	}

	adjusted = math.Round(adjusted*100) / 100

	var result *string
	if sctx.PassingScore != nil {
		verdict := "fail"
		if adjusted >= float64(*sctx.PassingScore) {
			verdict = "pass"
		}
		result = &verdict
	}

	overall := domain.OverallEvaluation{
		TotalScore:    adjusted,
		Result:        result,
		FeedbackLabel: domain.OverallFeedbackLabel(adjusted),
		KeyStrengths:  orEmpty(parsed.KeyStrengths),
		FocusAreas:    orEmpty(parsed.FocusAreas),
		PerformanceBreakdown: domain.PerformanceBreakdown{
			Communication:      clamp(parsed.PerformanceBreakdown.Communication, 0, 10),
			TechnicalKnowledge: clamp(parsed.PerformanceBreakdown.TechnicalKnowledge, 0, 10),
			Confidence:         clamp(parsed.PerformanceBreakdown.Confidence, 0, 10),
			Structure:          clamp(parsed.PerformanceBreakdown.Structure, 0, 10),
		},
	}

	return overall, completeness, usage, nil
}
