// Package postgres provides PostgreSQL database adapters.
//
// Sessions and evaluations are stored as rows with JSONB payloads for the
// transcript and the evaluation report.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// SessionRepo persists interview sessions.
type SessionRepo struct{ Pool PgxPool }

// NewSessionRepo constructs a SessionRepo with the given pool.
func NewSessionRepo(p PgxPool) *SessionRepo { return &SessionRepo{Pool: p} }

// Create stores a new session and returns its id (generates one if empty).
func (r *SessionRepo) Create(ctx domain.Context, s domain.Session) (string, error) {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "sessions"),
	)

	id := s.ID
	if id == "" {
		id = uuid.New().String()
	}
	conv, err := json.Marshal(s.Conversation)
	if err != nil {
		return "", fmt.Errorf("op=session.create marshal: %w", err)
	}
	now := time.Now().UTC()
	q := `INSERT INTO sessions
		(id, role, company, interview_round, difficulty, duration_minutes,
		 interviewer_id, interviewer_name, passing_score,
		 callback_session_id, callback_token, status, conversation,
		 created_at, updated_at, deleted)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,false)`
	_, err = r.Pool.Exec(ctx, q, id, s.Role, s.Company, s.InterviewRound, s.Difficulty,
		s.DurationMinutes, s.InterviewerID, s.InterviewerName, s.PassingScore,
		s.CallbackSessionID, s.CallbackToken, string(domain.SessionInitialized), conv, now, now)
	if err != nil {
		return "", fmt.Errorf("op=session.create: %w", err)
	}
	return id, nil
}

// Get loads a session by id. Soft-deleted sessions are not found.
func (r *SessionRepo) Get(ctx domain.Context, id string) (domain.Session, error) {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "sessions"),
	)

	q := `SELECT id, role, company, interview_round, difficulty, duration_minutes,
		interviewer_id, interviewer_name, passing_score,
		callback_session_id, callback_token, status, conversation,
		COALESCE(token_usage, '{}'::jsonb), created_at, updated_at
		FROM sessions WHERE id=$1 AND deleted=false`
	row := r.Pool.QueryRow(ctx, q, id)

	var (
		s        domain.Session
		status   string
		convRaw  []byte
		usageRaw []byte
	)
	err := row.Scan(&s.ID, &s.Role, &s.Company, &s.InterviewRound, &s.Difficulty,
		&s.DurationMinutes, &s.InterviewerID, &s.InterviewerName, &s.PassingScore,
		&s.CallbackSessionID, &s.CallbackToken, &status, &convRaw, &usageRaw,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, fmt.Errorf("op=session.get: %w", domain.ErrNotFound)
		}
		return domain.Session{}, fmt.Errorf("op=session.get: %w", err)
	}
	s.Status = domain.SessionStatus(status)
	if len(convRaw) > 0 {
		if err := json.Unmarshal(convRaw, &s.Conversation); err != nil {
			return domain.Session{}, fmt.Errorf("op=session.get conversation: %w", err)
		}
	}
	if len(usageRaw) > 0 {
		if err := json.Unmarshal(usageRaw, &s.TokenUsage); err != nil {
			return domain.Session{}, fmt.Errorf("op=session.get token_usage: %w", err)
		}
	}
	return s, nil
}

// UpdateConversation replaces the stored transcript and records token usage.
func (r *SessionRepo) UpdateConversation(ctx domain.Context, id string, conversation []map[string]any, usage domain.TokenUsage) error {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.UpdateConversation")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "sessions"),
	)

	conv, err := json.Marshal(conversation)
	if err != nil {
		return fmt.Errorf("op=session.update_conversation marshal: %w", err)
	}
	usageRaw, err := json.Marshal(usage)
	if err != nil {
		return fmt.Errorf("op=session.update_conversation marshal usage: %w", err)
	}
	q := `UPDATE sessions SET conversation=$2, token_usage=$3, updated_at=$4
		WHERE id=$1 AND deleted=false`
	tag, err := r.Pool.Exec(ctx, q, id, conv, usageRaw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=session.update_conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=session.update_conversation: %w", domain.ErrNotFound)
	}
	return nil
}

// UpdateStatus moves a session through its lifecycle.
func (r *SessionRepo) UpdateStatus(ctx domain.Context, id string, status domain.SessionStatus) error {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "sessions"),
	)

	q := `UPDATE sessions SET status=$2, updated_at=$3 WHERE id=$1 AND deleted=false`
	tag, err := r.Pool.Exec(ctx, q, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=session.update_status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=session.update_status: %w", domain.ErrNotFound)
	}
	return nil
}

// SoftDelete hides a session from reads without destroying its data.
func (r *SessionRepo) SoftDelete(ctx domain.Context, id string) error {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.SoftDelete")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "sessions"),
	)

	q := `UPDATE sessions SET deleted=true, updated_at=$2 WHERE id=$1 AND deleted=false`
	tag, err := r.Pool.Exec(ctx, q, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=session.soft_delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=session.soft_delete: %w", domain.ErrNotFound)
	}
	return nil
}

// History returns a page of past sessions, newest first, with the overall
// score joined in when the session has been evaluated. The second return
// value is the total row count for the filter.
func (r *SessionRepo) History(ctx domain.Context, f domain.HistoryFilter) ([]domain.HistoryItem, int, error) {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.History")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "sessions"),
	)

	where := []string{"s.deleted=false"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where = append(where, fmt.Sprintf("(s.role ILIKE %s OR s.interviewer_name ILIKE %s)", p, p))
	}
	if f.RoundFilter != "" {
		where = append(where, "s.interview_round = "+arg(f.RoundFilter))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQ := `SELECT COUNT(*) FROM sessions s WHERE ` + whereClause
	if err := r.Pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("op=session.history count: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size < 1 {
		size = 10
	}
	limit := arg(size)
	offset := arg((page - 1) * size)

	q := `SELECT s.id, s.role, s.company, s.interviewer_name, s.interview_round,
		s.created_at, s.duration_minutes, s.status,
		(e.report->'overall_evaluation'->>'total_score')::float8
		FROM sessions s
		LEFT JOIN evaluations e ON e.session_id = s.id
		WHERE ` + whereClause + `
		ORDER BY s.created_at DESC
		LIMIT ` + limit + ` OFFSET ` + offset
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("op=session.history: %w", err)
	}
	defer rows.Close()

	items := make([]domain.HistoryItem, 0, size)
	for rows.Next() {
		var it domain.HistoryItem
		if err := rows.Scan(&it.SessionID, &it.RoleTitle, &it.Company, &it.InterviewerName,
			&it.InterviewRound, &it.InterviewDate, &it.DurationMinutes, &it.Status,
			&it.OverallScore); err != nil {
			return nil, 0, fmt.Errorf("op=session.history scan: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("op=session.history rows: %w", err)
	}
	return items, total, nil
}
