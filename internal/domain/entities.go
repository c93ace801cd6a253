// Package domain defines the core entities, ports, and error taxonomy for
// interview evaluation.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrSchemaInvalid   = errors.New("schema invalid")
	ErrInternal        = errors.New("internal error")
)

// Message roles in a transcript.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// SessionStatus tracks the interview lifecycle.
type SessionStatus string

const (
	SessionInitialized SessionStatus = "initialized"
	SessionInProgress  SessionStatus = "in_progress"
	SessionCompleted   SessionStatus = "completed"
	SessionEvaluated   SessionStatus = "evaluated"
)

// Message is one transcript turn, reduced to speaker role and text.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FlatConversation is a strictly alternating assistant/user sequence starting
// with an assistant question. Even indices are questions, odd indices answers.
type FlatConversation struct {
	Conversation []Message `json:"conversation"`
}

// QAPair is one interviewer question with the candidate's combined reply.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// PerformanceBreakdown holds the four rubric dimensions, each 0-10.
type PerformanceBreakdown struct {
	Communication      float64 `json:"communication"`
	TechnicalKnowledge float64 `json:"technical_knowledge"`
	Confidence         float64 `json:"confidence"`
	Structure          float64 `json:"structure"`
}

// QuestionEvaluation is the scored result for a single question. Immutable
// once produced.
type QuestionEvaluation struct {
	QuestionNumber       int                  `json:"question_number"`
	Question             string               `json:"question"`
	Score                float64              `json:"score"`
	FeedbackLabel        string               `json:"feedback_label"`
	UserAnswer           string               `json:"user_answer"`
	ImprovedAnswer       string               `json:"improved_answer"`
	WhatWentWell         []string             `json:"what_went_well"`
	AreasToImprove       []string             `json:"areas_to_improve"`
	PerformanceBreakdown PerformanceBreakdown `json:"performance_breakdown"`
}

// OverallEvaluation aggregates all question evaluations. TotalScore is on the
// 0-100 scale; Result is nil when no passing threshold was configured.
type OverallEvaluation struct {
	TotalScore           float64              `json:"total_score"`
	Result               *string              `json:"result"`
	FeedbackLabel        string               `json:"feedback_label"`
	KeyStrengths         []string             `json:"key_strengths"`
	FocusAreas           []string             `json:"focus_areas"`
	PerformanceBreakdown PerformanceBreakdown `json:"performance_breakdown"`
}

// InterviewContext reports what was asked against what the duration required.
type InterviewContext struct {
	Role                     string  `json:"role"`
	Company                  string  `json:"company,omitempty"`
	InterviewRound           string  `json:"interview_round"`
	Difficulty               string  `json:"difficulty"`
	DurationMinutes          int     `json:"duration_minutes"`
	TotalQuestions           int     `json:"total_questions"`
	MinimumQuestionsRequired float64 `json:"minimum_questions_required"`
	CompletenessStatus       string  `json:"completeness_status"`
	CompletenessMessage      string  `json:"completeness_message"`
}

// TokenUsage meters the model calls made during one evaluation run.
type TokenUsage struct {
	EvaluationInputTokens  int     `json:"evaluation_input_tokens"`
	EvaluationOutputTokens int     `json:"evaluation_output_tokens"`
	EvaluationTotalTokens  int     `json:"evaluation_total_tokens"`
	EvaluationCostUSD      float64 `json:"evaluation_cost_usd"`
}

// EvaluationReport is the full result of evaluating one interview session.
type EvaluationReport struct {
	SessionID         string               `json:"session_id,omitempty"`
	EvaluatedAt       time.Time            `json:"evaluated_at"`
	InterviewContext  InterviewContext     `json:"interview_context"`
	Questions         []QuestionEvaluation `json:"questions"`
	OverallEvaluation OverallEvaluation    `json:"overall_evaluation"`
	TokenUsage        TokenUsage           `json:"token_usage"`
}

// SessionContext carries the configuration that modulates scoring.
type SessionContext struct {
	Role            string
	Company         string
	InterviewRound  string
	Difficulty      string
	DurationMinutes int
	PassingScore    *int
}

// Session is the aggregate root for one interview.
// Invariants: DurationMinutes > 0; Status follows
// initialized -> in_progress -> completed -> evaluated; re-evaluation is
// allowed from completed or evaluated. Deleted is a flag, not a transition.
type Session struct {
	ID                string
	Role              string
	Company           string
	InterviewRound    string
	Difficulty        string
	DurationMinutes   int
	InterviewerID     string
	InterviewerName   string
	PassingScore      *int
	CallbackSessionID *int64
	CallbackToken     string
	Status            SessionStatus
	Conversation      []map[string]any
	TokenUsage        TokenUsage
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Deleted           bool
}

// HistoryItem is the condensed row returned by session history queries.
type HistoryItem struct {
	SessionID       string    `json:"session_id"`
	RoleTitle       string    `json:"role_title"`
	Company         string    `json:"company_name,omitempty"`
	InterviewerName string    `json:"interviewer_name"`
	InterviewRound  string    `json:"interview_round"`
	InterviewDate   time.Time `json:"interview_date"`
	DurationMinutes int       `json:"duration_minutes"`
	OverallScore    *float64  `json:"overall_score"`
	Status          string    `json:"status"`
}

// HistoryFilter selects and pages session history.
type HistoryFilter struct {
	Search      string
	RoundFilter string
	Page        int
	PageSize    int
}

// Repositories (ports)

type SessionRepository interface {
	Create(ctx Context, s Session) (string, error)
	Get(ctx Context, id string) (Session, error)
	UpdateConversation(ctx Context, id string, conversation []map[string]any, usage TokenUsage) error
	UpdateStatus(ctx Context, id string, status SessionStatus) error
	SoftDelete(ctx Context, id string) error
	History(ctx Context, f HistoryFilter) ([]HistoryItem, int, error)
}

type EvaluationRepository interface {
	// Upsert overwrites any prior evaluation for the session (idempotent
	// re-evaluation).
	Upsert(ctx Context, sessionID string, report EvaluationReport) error
	GetBySessionID(ctx Context, sessionID string) (EvaluationReport, error)
}

// Queue (port)

type EvaluateTaskPayload struct {
	SessionID string `json:"session_id"`
}

type Queue interface {
	EnqueueEvaluate(ctx Context, payload EvaluateTaskPayload) (string, error)
}

// AIClient (port)
// Complete sends one prompt and returns the raw model text. Callers own all
// JSON contract cleaning and validation.
type AIClient interface {
	Complete(ctx Context, prompt string, temperature float64) (string, error)
}

// Notifier (port)
// Notify is best-effort: implementations log failures and must never surface
// them into the evaluation flow.
type Notifier interface {
	Notify(ctx Context, sessionID int64, result string, score int, token string)
}

// Context aliases context.Context so domain signatures stay compact.
type Context = context.Context
