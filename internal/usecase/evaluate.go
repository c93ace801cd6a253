package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/evaluation"
)

const jobTypeEvaluate = "evaluate"

// EvaluateService is the worker-side service that consumes evaluation jobs,
// runs the pipeline, and persists the report.
type EvaluateService struct {
	Sessions        domain.SessionRepository
	Evaluations     domain.EvaluationRepository
	Pipeline        *evaluation.Pipeline
	Notifier        domain.Notifier
	CallbackTimeout time.Duration
}

// NewEvaluateService constructs an EvaluateService.
func NewEvaluateService(s domain.SessionRepository, e domain.EvaluationRepository, p *evaluation.Pipeline, n domain.Notifier, callbackTimeout time.Duration) EvaluateService {
	return EvaluateService{
		Sessions:        s,
		Evaluations:     e,
		Pipeline:        p,
		Notifier:        n,
		CallbackTimeout: callbackTimeout,
	}
}

// HandleEvaluateJob processes one queued evaluation. It loads the session,
// runs the pipeline, upserts the report, records the metered token usage on
// the session, and marks the session evaluated. Callback notification is
// fire-and-forget.
func (s EvaluateService) HandleEvaluateJob(ctx domain.Context, payload domain.EvaluateTaskPayload) error {
	observability.StartProcessingJob(jobTypeEvaluate)

	sess, err := s.Sessions.Get(ctx, payload.SessionID)
	if err != nil {
		observability.FailJob(jobTypeEvaluate)
		return fmt.Errorf("op=evaluate.HandleEvaluateJob: %w", err)
	}
	if sess.Status != domain.SessionCompleted && sess.Status != domain.SessionEvaluated {
		observability.FailJob(jobTypeEvaluate)
		return fmt.Errorf("%w: session %s has status %s", domain.ErrConflict, sess.ID, sess.Status)
	}

	sctx := domain.SessionContext{
		Role:            sess.Role,
		Company:         sess.Company,
		InterviewRound:  sess.InterviewRound,
		Difficulty:      sess.Difficulty,
		DurationMinutes: sess.DurationMinutes,
		PassingScore:    sess.PassingScore,
	}

	report, err := s.Pipeline.Evaluate(ctx, sctx, sess.Conversation)
	if err != nil {
		observability.FailJob(jobTypeEvaluate)
		return fmt.Errorf("op=evaluate.HandleEvaluateJob: %w", err)
	}
	report.SessionID = sess.ID

	if err := s.Evaluations.Upsert(ctx, sess.ID, report); err != nil {
		observability.FailJob(jobTypeEvaluate)
		return fmt.Errorf("op=evaluate.HandleEvaluateJob: %w", err)
	}
	if err := s.Sessions.UpdateConversation(ctx, sess.ID, sess.Conversation, report.TokenUsage); err != nil {
		slog.Error("failed to record token usage on session",
			slog.String("session_id", sess.ID), slog.Any("error", err))
	}
	if err := s.Sessions.UpdateStatus(ctx, sess.ID, domain.SessionEvaluated); err != nil {
		observability.FailJob(jobTypeEvaluate)
		return fmt.Errorf("op=evaluate.HandleEvaluateJob: %w", err)
	}

	observability.CompleteJob(jobTypeEvaluate)
	observability.ObserveTokens(report.TokenUsage.EvaluationInputTokens, report.TokenUsage.EvaluationOutputTokens)
	observability.ObserveEvaluation(report.OverallEvaluation.TotalScore, questionScores(report.Questions))

	s.notifyCallback(sess, report)
	return nil
}

// notifyCallback pushes the outcome to the configured external callback when
// the session carries one. It runs detached so slow callbacks never hold up
// job completion.
func (s EvaluateService) notifyCallback(sess domain.Session, report domain.EvaluationReport) {
	if s.Notifier == nil || sess.CallbackSessionID == nil {
		return
	}
	callbackID := *sess.CallbackSessionID
	result := "completed"
	if report.OverallEvaluation.Result != nil {
		result = *report.OverallEvaluation.Result
	}
	score := int(math.Round(report.OverallEvaluation.TotalScore))
	timeout := s.CallbackTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.Notifier.Notify(nctx, callbackID, result, score, sess.CallbackToken)
	}()
}

func questionScores(evals []domain.QuestionEvaluation) []float64 {
	scores := make([]float64, 0, len(evals))
	for _, e := range evals {
		scores = append(scores, e.Score)
	}
	return scores
}
