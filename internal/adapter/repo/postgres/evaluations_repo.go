package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// EvaluationRepo persists evaluation reports keyed by session id. The report
// is stored whole as JSONB; Upsert makes re-evaluation idempotent.
type EvaluationRepo struct{ Pool PgxPool }

// NewEvaluationRepo constructs an EvaluationRepo with the given pool.
func NewEvaluationRepo(p PgxPool) *EvaluationRepo { return &EvaluationRepo{Pool: p} }

// Upsert overwrites any prior evaluation for the session.
func (r *EvaluationRepo) Upsert(ctx domain.Context, sessionID string, report domain.EvaluationReport) error {
	tracer := otel.Tracer("repo.evaluations")
	ctx, span := tracer.Start(ctx, "evaluations.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "evaluations"),
	)

	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("op=evaluation.upsert marshal: %w", err)
	}
	q := `INSERT INTO evaluations (session_id, report, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (session_id) DO UPDATE SET
		  report = EXCLUDED.report,
		  updated_at = EXCLUDED.updated_at`
	if _, err := r.Pool.Exec(ctx, q, sessionID, raw, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=evaluation.upsert: %w", err)
	}
	return nil
}

// GetBySessionID loads the stored evaluation report for a session.
func (r *EvaluationRepo) GetBySessionID(ctx domain.Context, sessionID string) (domain.EvaluationReport, error) {
	tracer := otel.Tracer("repo.evaluations")
	ctx, span := tracer.Start(ctx, "evaluations.GetBySessionID")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "evaluations"),
	)

	q := `SELECT report FROM evaluations WHERE session_id=$1`
	var raw []byte
	if err := r.Pool.QueryRow(ctx, q, sessionID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EvaluationReport{}, fmt.Errorf("op=evaluation.get: %w", domain.ErrNotFound)
		}
		return domain.EvaluationReport{}, fmt.Errorf("op=evaluation.get: %w", err)
	}
	var report domain.EvaluationReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return domain.EvaluationReport{}, fmt.Errorf("op=evaluation.get decode: %w", err)
	}
	report.SessionID = sessionID
	return report, nil
}
