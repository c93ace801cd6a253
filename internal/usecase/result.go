package usecase

import (
	"errors"
	"fmt"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// ResultService reads back evaluation reports.
type ResultService struct {
	Sessions    domain.SessionRepository
	Evaluations domain.EvaluationRepository
}

// NewResultService constructs a ResultService.
func NewResultService(s domain.SessionRepository, e domain.EvaluationRepository) ResultService {
	return ResultService{Sessions: s, Evaluations: e}
}

// Get returns the evaluation report for a session. When the session exists but
// has not been evaluated yet it returns ErrConflict so callers can answer with
// a pending status instead of a hard not-found.
func (r ResultService) Get(ctx domain.Context, sessionID string) (domain.EvaluationReport, error) {
	sess, err := r.Sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.EvaluationReport{}, err
	}
	report, err := r.Evaluations.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.EvaluationReport{}, fmt.Errorf("%w: evaluation for session %s is still pending", domain.ErrConflict, sess.ID)
		}
		return domain.EvaluationReport{}, err
	}
	return report, nil
}
