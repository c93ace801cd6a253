package usecase

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// fakeSessionRepo is an in-memory SessionRepository.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	nextID   int
	failWith error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]domain.Session{}}
}

func (f *fakeSessionRepo) Create(_ domain.Context, s domain.Session) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	f.nextID++
	id := fmt.Sprintf("sess-%d", f.nextID)
	s.ID = id
	f.sessions[id] = s
	return id, nil
}

func (f *fakeSessionRepo) Get(_ domain.Context, id string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Deleted {
		return domain.Session{}, fmt.Errorf("op=fake.get: %w", domain.ErrNotFound)
	}
	return s, nil
}

func (f *fakeSessionRepo) UpdateConversation(_ domain.Context, id string, conversation []map[string]any, usage domain.TokenUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Deleted {
		return fmt.Errorf("op=fake.update_conversation: %w", domain.ErrNotFound)
	}
	s.Conversation = conversation
	s.TokenUsage = usage
	f.sessions[id] = s
	return nil
}

func (f *fakeSessionRepo) UpdateStatus(_ domain.Context, id string, status domain.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Deleted {
		return fmt.Errorf("op=fake.update_status: %w", domain.ErrNotFound)
	}
	s.Status = status
	f.sessions[id] = s
	return nil
}

func (f *fakeSessionRepo) SoftDelete(_ domain.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Deleted {
		return fmt.Errorf("op=fake.soft_delete: %w", domain.ErrNotFound)
	}
	s.Deleted = true
	f.sessions[id] = s
	return nil
}

func (f *fakeSessionRepo) History(_ domain.Context, filter domain.HistoryFilter) ([]domain.HistoryItem, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matching := make([]domain.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		if s.Deleted {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(s.Role), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.RoundFilter != "" && s.InterviewRound != filter.RoundFilter {
			continue
		}
		matching = append(matching, s)
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].ID > matching[j].ID })
	total := len(matching)
	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	items := make([]domain.HistoryItem, 0, end-start)
	for _, s := range matching[start:end] {
		items = append(items, domain.HistoryItem{
			SessionID:       s.ID,
			RoleTitle:       s.Role,
			InterviewerName: s.InterviewerName,
			InterviewRound:  s.InterviewRound,
			DurationMinutes: s.DurationMinutes,
			Status:          string(s.Status),
		})
	}
	return items, total, nil
}

// fakeEvalRepo is an in-memory EvaluationRepository.
type fakeEvalRepo struct {
	mu      sync.Mutex
	reports map[string]domain.EvaluationReport
	upserts int
}

func newFakeEvalRepo() *fakeEvalRepo {
	return &fakeEvalRepo{reports: map[string]domain.EvaluationReport{}}
}

func (f *fakeEvalRepo) Upsert(_ domain.Context, sessionID string, report domain.EvaluationReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.reports[sessionID] = report
	return nil
}

func (f *fakeEvalRepo) GetBySessionID(_ domain.Context, sessionID string) (domain.EvaluationReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[sessionID]
	if !ok {
		return domain.EvaluationReport{}, fmt.Errorf("op=fake.get_evaluation: %w", domain.ErrNotFound)
	}
	return r, nil
}

// fakeQueue records enqueued payloads.
type fakeQueue struct {
	mu       sync.Mutex
	enqueued []domain.EvaluateTaskPayload
	failWith error
}

func (f *fakeQueue) EnqueueEvaluate(_ domain.Context, payload domain.EvaluateTaskPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	f.enqueued = append(f.enqueued, payload)
	return payload.SessionID, nil
}

// fakeNotifier captures callback notifications.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	done  chan struct{}
}

type notifyCall struct {
	sessionID int64
	result    string
	score     int
	token     string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{}, 8)}
}

func (f *fakeNotifier) Notify(_ domain.Context, sessionID int64, result string, score int, token string) {
	f.mu.Lock()
	f.calls = append(f.calls, notifyCall{sessionID: sessionID, result: result, score: score, token: token})
	f.mu.Unlock()
	f.done <- struct{}{}
}

func (f *fakeNotifier) snapshot() []notifyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notifyCall, len(f.calls))
	copy(out, f.calls)
	return out
}
