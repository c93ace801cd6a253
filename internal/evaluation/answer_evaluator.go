package evaluation

import (
	"encoding/json"
	"fmt"
	"log/slog"

	aiclean "github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

const evalTemperature = 0.3

// CallUsage meters one model call.
type CallUsage struct {
	InputTokens  int
	OutputTokens int
}

// AnswerEvaluator scores one question/answer pair with a single model call.
// Parsing is strict: malformed output is an error, never a silent zero.
type AnswerEvaluator struct {
	ai      domain.AIClient
	cleaner *aiclean.ResponseCleaner
	counter *tokencount.Counter
	model   string
}

func NewAnswerEvaluator(client domain.AIClient, counter *tokencount.Counter, model string) *AnswerEvaluator {
	return &AnswerEvaluator{
		ai:      client,
		cleaner: aiclean.NewResponseCleaner(),
		counter: counter,
		model:   model,
	}
}

type answerEvalResponse struct {
	QuestionScore        float64              `json:"question_score"`
	FeedbackLabel        string               `json:"feedback_label"`
	UserAnswer           string               `json:"user_answer"`
	ImprovedAnswer       string               `json:"improved_answer"`
	WhatWentWell         []string             `json:"what_went_well"`
	AreasToImprove       []string             `json:"areas_to_improve"`
	PerformanceBreakdown performanceBreakdown `json:"performance_breakdown"`
}

type performanceBreakdown struct {
	Communication      float64 `json:"communication"`
	TechnicalKnowledge float64 `json:"technical_knowledge"`
	Confidence         float64 `json:"confidence"`
	Structure          float64 `json:"structure"`
}

// Evaluate scores one pair. All scores are clamped to [0,10] and the feedback
// label is rederived from the clamped score so label and score always agree.
func (ae *AnswerEvaluator) Evaluate(ctx domain.Context, number int, qa domain.QAPair, sctx domain.SessionContext) (domain.QuestionEvaluation, CallUsage, error) {
	prompt := buildAnswerEvaluatorPrompt(sctx, qa)

	raw, err := ae.ai.Complete(ctx, prompt, evalTemperature)
	if err != nil {
		return domain.QuestionEvaluation{}, CallUsage{}, fmt.Errorf("op=evaluation.EvaluateAnswer: %w", err)
	}

	cleaned, err := ae.cleaner.CleanAndValidateJSON(raw)
	if err != nil {
		return domain.QuestionEvaluation{}, CallUsage{}, fmt.Errorf("op=evaluation.EvaluateAnswer: %w: %v", domain.ErrSchemaInvalid, err)
	}

	var parsed answerEvalResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return domain.QuestionEvaluation{}, CallUsage{}, fmt.Errorf("op=evaluation.EvaluateAnswer decode: %w: %v", domain.ErrSchemaInvalid, err)
	}

	score := clamp(parsed.QuestionScore, 0, 10)
	userAnswer := parsed.UserAnswer
	if userAnswer == "" {
		userAnswer = qa.Answer
	}

	eval := domain.QuestionEvaluation{
		QuestionNumber: number,
		Question:       qa.Question,
		Score:          score,
		FeedbackLabel:  domain.QuestionFeedbackLabel(score),
		UserAnswer:     userAnswer,
		ImprovedAnswer: parsed.ImprovedAnswer,
		WhatWentWell:   orEmpty(parsed.WhatWentWell),
		AreasToImprove: orEmpty(parsed.AreasToImprove),
		PerformanceBreakdown: domain.PerformanceBreakdown{
			Communication:      clamp(parsed.PerformanceBreakdown.Communication, 0, 10),
			TechnicalKnowledge: clamp(parsed.PerformanceBreakdown.TechnicalKnowledge, 0, 10),
			Confidence:         clamp(parsed.PerformanceBreakdown.Confidence, 0, 10),
			Structure:          clamp(parsed.PerformanceBreakdown.Structure, 0, 10),
		},
	}

	usage := CallUsage{
		InputTokens:  ae.counter.CountTokensOrEstimate(prompt, ae.model),
		OutputTokens: ae.counter.CountTokensOrEstimate(raw, ae.model),
	}

	slog.Info("question evaluated",
		slog.Int("question_number", number),
		slog.Float64("score", eval.Score))
	return eval, usage, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
