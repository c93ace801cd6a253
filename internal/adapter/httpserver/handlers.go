package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/personas"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Sessions   usecase.SessionService
	Results    usecase.ResultService
	Personas   *personas.Catalog
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	KafkaCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, sessions usecase.SessionService, results usecase.ResultService, catalog *personas.Catalog, dbCheck, redisCheck, kafkaCheck func(context.Context) error) *Server {
	return &Server{
		Cfg:        cfg,
		Sessions:   sessions,
		Results:    results,
		Personas:   catalog,
		DBCheck:    dbCheck,
		RedisCheck: redisCheck,
		KafkaCheck: kafkaCheck,
	}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

func validationDetails(err error) map[string]string {
	verrs := map[string]string{}
	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			verrs[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return verrs
}

type createSessionRequest struct {
	Role              string `json:"role" validate:"required,max=200"`
	Company           string `json:"company" validate:"max=200"`
	InterviewRound    string `json:"interview_round" validate:"max=100"`
	Difficulty        string `json:"difficulty" validate:"omitempty,oneof=Easy Medium Hard"`
	DurationMinutes   int    `json:"duration_minutes" validate:"required,min=1,max=180"`
	InterviewerID     string `json:"interviewer_id"`
	PassingScore      *int   `json:"passing_score" validate:"omitempty,min=0,max=100"`
	CallbackSessionID *int64 `json:"callback_session_id"`
	CallbackToken     string `json:"callback_token"`
}

// CreateSessionHandler opens a new interview session.
func (s *Server) CreateSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
			return
		}
		sess, persona, err := s.Sessions.Create(r.Context(), usecase.CreateInput{
			Role:              req.Role,
			Company:           req.Company,
			InterviewRound:    req.InterviewRound,
			Difficulty:        req.Difficulty,
			DurationMinutes:   req.DurationMinutes,
			InterviewerID:     req.InterviewerID,
			PassingScore:      req.PassingScore,
			CallbackSessionID: req.CallbackSessionID,
			CallbackToken:     req.CallbackToken,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"session_id":       sess.ID,
			"status":           string(sess.Status),
			"role":             sess.Role,
			"company":          sess.Company,
			"interview_round":  sess.InterviewRound,
			"difficulty":       sess.Difficulty,
			"duration_minutes": sess.DurationMinutes,
			"interviewer":      persona,
		})
	}
}

// GetSessionHandler returns a session's current state.
func (s *Server) GetSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, err := s.Sessions.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id":       sess.ID,
			"status":           string(sess.Status),
			"role":             sess.Role,
			"company":          sess.Company,
			"interview_round":  sess.InterviewRound,
			"difficulty":       sess.Difficulty,
			"duration_minutes": sess.DurationMinutes,
			"interviewer_id":   sess.InterviewerID,
			"interviewer_name": sess.InterviewerName,
			"conversation":     sess.Conversation,
			"token_usage":      sess.TokenUsage,
			"created_at":       sess.CreatedAt,
			"updated_at":       sess.UpdatedAt,
		})
	}
}

// UpdateConversationHandler replaces the stored transcript.
func (s *Server) UpdateConversationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, 8<<20)
		var req struct {
			Conversation []map[string]any `json:"conversation"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if req.Conversation == nil {
			writeError(w, r, fmt.Errorf("%w: conversation required", domain.ErrInvalidArgument), map[string]string{"field": "conversation"})
			return
		}
		if err := s.Sessions.UpdateConversation(r.Context(), id, req.Conversation); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": len(req.Conversation)})
	}
}

// CompleteSessionHandler marks an interview finished.
func (s *Server) CompleteSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.Sessions.Complete(r.Context(), id); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "status": string(domain.SessionCompleted)})
	}
}

// EvaluateHandler enqueues an evaluation job for a completed session.
func (s *Server) EvaluateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.Sessions.Evaluate(r.Context(), id); err != nil {
			writeError(w, r, fmt.Errorf("enqueue: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id, "status": "queued"})
	}
}

// ResultHandler returns the evaluation report once available.
func (s *Server) ResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		report, err := s.Results.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// DeleteSessionHandler soft-deletes a session.
func (s *Server) DeleteSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.Sessions.Delete(r.Context(), id); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "deleted": true})
	}
}

// HistoryHandler lists past interviews, paged and filterable.
func (s *Server) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		size, _ := strconv.Atoi(q.Get("page_size"))
		if size > 100 {
			size = 100
		}
		f := domain.HistoryFilter{
			Search:      q.Get("search"),
			RoundFilter: q.Get("round"),
			Page:        page,
			PageSize:    size,
		}
		items, total, hasMore, err := s.Sessions.History(r.Context(), f)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if items == nil {
			items = []domain.HistoryItem{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"interviews": items,
			"total":      total,
			"has_more":   hasMore,
		})
	}
}

// InterviewersHandler lists the available interviewer personas.
func (s *Server) InterviewersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"interviewers": s.Personas.All()})
	}
}

// ReadyzHandler probes the backing services.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 3)
		probe := func(name string, fn func(context.Context) error) {
			if fn == nil {
				return
			}
			if err := fn(ctx); err != nil {
				checks = append(checks, check{Name: name, OK: false, Details: err.Error()})
				return
			}
			checks = append(checks, check{Name: name, OK: true})
		}
		probe("db", s.DBCheck)
		probe("redis", s.RedisCheck)
		probe("kafka", s.KafkaCheck)
		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
