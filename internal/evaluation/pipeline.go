package evaluation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// Pipeline runs the full evaluation flow for one interview session. It is a
// pure function of the session context and transcript plus the injected
// model client, so re-running it with deterministic collaborators yields the
// same report.
type Pipeline struct {
	extractor  *Extractor
	answers    *AnswerEvaluator
	aggregator *Aggregator
}

// NewPipeline wires the pipeline stages around one model client.
func NewPipeline(client domain.AIClient, counter *tokencount.Counter, model string) *Pipeline {
	return &Pipeline{
		extractor:  NewExtractor(client),
		answers:    NewAnswerEvaluator(client, counter, model),
		aggregator: NewAggregator(client, counter, model),
	}
}

// Extractor exposes the extraction stage, mainly so callers can tune its
// retry interval in tests.
func (p *Pipeline) Extractor() *Extractor { return p.extractor }

// Evaluate runs normalize -> extract -> evaluate each answer -> aggregate.
//
// Failure handling is deliberately asymmetric: a failed answer evaluation
// yields a zero-score placeholder for that question only, while extraction
// exhaustion and aggregation failures abort the whole run.
func (p *Pipeline) Evaluate(ctx domain.Context, sctx domain.SessionContext, transcript []map[string]any) (domain.EvaluationReport, error) {
	normalized := Normalize(transcript)

	flat, err := p.extractor.Extract(ctx, normalized)
	if err != nil {
		return domain.EvaluationReport{}, fmt.Errorf("op=evaluation.Pipeline: %w", err)
	}

	pairs := DeriveQAPairs(flat)
	if len(pairs) == 0 {
		slog.Warn("no valid question-answer pairs found, interview likely exited early")
		return p.emptyInterviewReport(sctx), nil
	}

	slog.Info("evaluating interview", slog.Int("questions", len(pairs)))

	var totalUsage CallUsage
	evals := make([]domain.QuestionEvaluation, 0, len(pairs))
	for idx, qa := range pairs {
		number := idx + 1
		eval, usage, evalErr := p.answers.Evaluate(ctx, number, qa, sctx)
		if evalErr != nil {
			slog.Error("question evaluation failed",
				slog.Int("question_number", number), slog.Any("error", evalErr))
			evals = append(evals, placeholderEvaluation(number, qa))
			continue
		}
		totalUsage.InputTokens += usage.InputTokens
		totalUsage.OutputTokens += usage.OutputTokens
		evals = append(evals, eval)
	}

	overall, completeness, aggUsage, err := p.aggregator.Aggregate(ctx, sctx, evals)
	if err != nil {
		return domain.EvaluationReport{}, fmt.Errorf("op=evaluation.Pipeline: %w", err)
	}
	totalUsage.InputTokens += aggUsage.InputTokens
	totalUsage.OutputTokens += aggUsage.OutputTokens

	report := domain.EvaluationReport{
		EvaluatedAt: time.Now().UTC(),
		InterviewContext: domain.InterviewContext{
			Role:                     sctx.Role,
			Company:                  sctx.Company,
			InterviewRound:           sctx.InterviewRound,
			Difficulty:               sctx.Difficulty,
			DurationMinutes:          sctx.DurationMinutes,
			TotalQuestions:           len(pairs),
			MinimumQuestionsRequired: completeness.MinimumRequired,
			CompletenessStatus:       completeness.Status,
			CompletenessMessage:      completeness.Message,
		},
		Questions:         evals,
		OverallEvaluation: overall,
		TokenUsage: domain.TokenUsage{
			EvaluationInputTokens:  totalUsage.InputTokens,
			EvaluationOutputTokens: totalUsage.OutputTokens,
			EvaluationTotalTokens:  totalUsage.InputTokens + totalUsage.OutputTokens,
			EvaluationCostUSD:      tokencount.Cost(totalUsage.InputTokens, totalUsage.OutputTokens),
		},
	}

	slog.Info("evaluation completed",
		slog.Float64("total_score", overall.TotalScore),
		slog.Int("total_tokens", report.TokenUsage.EvaluationTotalTokens),
		slog.Float64("cost_usd", report.TokenUsage.EvaluationCostUSD))
	return report, nil
}

// emptyInterviewReport is the fixed result for interviews that produced no
// answerable questions. No model calls are made and no tokens are spent.
func (p *Pipeline) emptyInterviewReport(sctx domain.SessionContext) domain.EvaluationReport {
	return domain.EvaluationReport{
		EvaluatedAt: time.Now().UTC(),
		InterviewContext: domain.InterviewContext{
			Role:                     sctx.Role,
			Company:                  sctx.Company,
			InterviewRound:           sctx.InterviewRound,
			Difficulty:               sctx.Difficulty,
			DurationMinutes:          sctx.DurationMinutes,
			TotalQuestions:           0,
			MinimumQuestionsRequired: float64(sctx.DurationMinutes) / 2,
		},
		Questions: []domain.QuestionEvaluation{},
		OverallEvaluation: domain.OverallEvaluation{
			TotalScore:    0,
			FeedbackLabel: domain.LabelPoor,
			KeyStrengths:  []string{"Interview was exited before any questions were answered"},
			FocusAreas: []string{
				"Complete the full interview to receive proper evaluation",
				"Prepare thoroughly before starting the interview",
				"Allocate sufficient time for the interview session",
			},
			PerformanceBreakdown: domain.PerformanceBreakdown{},
		},
		TokenUsage: domain.TokenUsage{},
	}
}

// placeholderEvaluation stands in for a question whose evaluation failed.
func placeholderEvaluation(number int, qa domain.QAPair) domain.QuestionEvaluation {
	return domain.QuestionEvaluation{
		QuestionNumber:       number,
		Question:             qa.Question,
		Score:                0,
		FeedbackLabel:        domain.LabelError,
		UserAnswer:           qa.Answer,
		ImprovedAnswer:       "Evaluation failed",
		WhatWentWell:         []string{},
		AreasToImprove:       []string{"Could not evaluate this answer"},
		PerformanceBreakdown: domain.PerformanceBreakdown{},
	}
}
