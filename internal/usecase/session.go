// Package usecase contains application business logic services.
package usecase

import (
	"fmt"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/personas"
)

// SessionService orchestrates the interview session lifecycle and evaluation
// queueing.
type SessionService struct {
	Sessions domain.SessionRepository
	Queue    domain.Queue
	Personas *personas.Catalog
}

// NewSessionService constructs a SessionService with its dependencies.
func NewSessionService(s domain.SessionRepository, q domain.Queue, p *personas.Catalog) SessionService {
	return SessionService{Sessions: s, Queue: q, Personas: p}
}

// CreateInput carries the fields needed to open a session.
type CreateInput struct {
	Role              string
	Company           string
	InterviewRound    string
	Difficulty        string
	DurationMinutes   int
	InterviewerID     string
	PassingScore      *int
	CallbackSessionID *int64
	CallbackToken     string
}

// Create opens a new interview session in the initialized state and resolves
// the interviewer persona.
func (s SessionService) Create(ctx domain.Context, in CreateInput) (domain.Session, personas.Persona, error) {
	if in.Role == "" {
		return domain.Session{}, personas.Persona{}, fmt.Errorf("%w: role required", domain.ErrInvalidArgument)
	}
	if in.DurationMinutes <= 0 {
		return domain.Session{}, personas.Persona{}, fmt.Errorf("%w: duration_minutes must be positive", domain.ErrInvalidArgument)
	}
	if in.InterviewRound == "" {
		in.InterviewRound = "Technical Round"
	}
	if in.Difficulty == "" {
		in.Difficulty = "Medium"
	}

	persona, err := s.Personas.Get(in.InterviewerID)
	if err != nil {
		return domain.Session{}, personas.Persona{}, fmt.Errorf("op=session.Create: %w", err)
	}

	sess := domain.Session{
		Role:              in.Role,
		Company:           in.Company,
		InterviewRound:    in.InterviewRound,
		Difficulty:        in.Difficulty,
		DurationMinutes:   in.DurationMinutes,
		InterviewerID:     persona.ID,
		InterviewerName:   persona.Name,
		PassingScore:      in.PassingScore,
		CallbackSessionID: in.CallbackSessionID,
		CallbackToken:     in.CallbackToken,
		Status:            domain.SessionInitialized,
		Conversation:      []map[string]any{},
	}
	id, err := s.Sessions.Create(ctx, sess)
	if err != nil {
		return domain.Session{}, personas.Persona{}, err
	}
	sess.ID = id
	return sess, persona, nil
}

// Get loads one session.
func (s SessionService) Get(ctx domain.Context, id string) (domain.Session, error) {
	return s.Sessions.Get(ctx, id)
}

// UpdateConversation replaces the stored transcript and moves a fresh session
// into in_progress.
func (s SessionService) UpdateConversation(ctx domain.Context, id string, conversation []map[string]any) error {
	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Sessions.UpdateConversation(ctx, id, conversation, sess.TokenUsage); err != nil {
		return err
	}
	if sess.Status == domain.SessionInitialized {
		if err := s.Sessions.UpdateStatus(ctx, id, domain.SessionInProgress); err != nil {
			return err
		}
	}
	return nil
}

// Complete marks the interview finished and ready for evaluation.
func (s SessionService) Complete(ctx domain.Context, id string) error {
	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status == domain.SessionCompleted || sess.Status == domain.SessionEvaluated {
		return nil
	}
	return s.Sessions.UpdateStatus(ctx, id, domain.SessionCompleted)
}

// Evaluate enqueues an evaluation job for a completed session. Re-evaluation
// of an already evaluated session is allowed and idempotent.
func (s SessionService) Evaluate(ctx domain.Context, id string) error {
	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status != domain.SessionCompleted && sess.Status != domain.SessionEvaluated {
		return fmt.Errorf("%w: session status %s does not allow evaluation", domain.ErrConflict, sess.Status)
	}
	if len(sess.Conversation) == 0 {
		return fmt.Errorf("%w: session has no conversation to evaluate", domain.ErrInvalidArgument)
	}
	if _, err := s.Queue.EnqueueEvaluate(ctx, domain.EvaluateTaskPayload{SessionID: id}); err != nil {
		return err
	}
	return nil
}

// Delete soft-deletes a session.
func (s SessionService) Delete(ctx domain.Context, id string) error {
	return s.Sessions.SoftDelete(ctx, id)
}

// History returns a page of past interviews plus a has_more flag.
func (s SessionService) History(ctx domain.Context, f domain.HistoryFilter) ([]domain.HistoryItem, int, bool, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 10
	}
	items, total, err := s.Sessions.History(ctx, f)
	if err != nil {
		return nil, 0, false, err
	}
	hasMore := f.Page*f.PageSize < total
	return items, total, hasMore, nil
}
