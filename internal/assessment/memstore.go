package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/skillscan/backend/internal/models"
)

// MemoryStore is an in-memory SessionStore for tests and local development.
// It keeps the same optimistic-versioning contract as the SQL store; the
// mutex only guards the maps, never a whole request.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memEntry
	reports  map[string][]byte
}

type memEntry struct {
	session *models.Session
	version int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memEntry),
		reports:  make(map[string][]byte),
	}
}

// cloneSession deep-copies a session so callers never share mutable state
// with the store.
func cloneSession(s *models.Session) *models.Session {
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("clone session: %v", err))
	}
	var out models.Session
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("clone session: %v", err))
	}
	return &out
}

func (m *MemoryStore) Create(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	m.sessions[s.ID] = &memEntry{session: cloneSession(s), version: 1}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Session, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil, 0, ErrSessionNotFound
	}
	return cloneSession(entry.session), entry.version, nil
}

func (m *MemoryStore) Update(ctx context.Context, s *models.Session, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[s.ID]
	if !ok {
		return ErrSessionNotFound
	}
	if entry.version != expectedVersion {
		return ErrVersionConflict
	}
	entry.session = cloneSession(s)
	entry.version++
	return nil
}

func (m *MemoryStore) SaveReport(ctx context.Context, sessionID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	if _, ok := m.reports[sessionID]; ok {
		return nil // first write wins
	}
	m.reports[sessionID] = append([]byte(nil), payload...)
	return nil
}

func (m *MemoryStore) GetReport(ctx context.Context, sessionID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload, ok := m.reports[sessionID]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), payload...), nil
}

func (m *MemoryStore) LatestCompletedAbility(ctx context.Context, userID int64, subject string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *models.Session
	for _, entry := range m.sessions {
		s := entry.session
		if s.UserID != userID || s.Subject != subject || s.Status != models.StatusComplete {
			continue
		}
		if best == nil || (s.CompletedAt != nil && best.CompletedAt != nil && s.CompletedAt.After(*best.CompletedAt)) {
			best = s
		}
	}
	if best == nil {
		return 0, false, nil
	}
	return best.Ability, true, nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID int64) ([]models.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.SessionSummary
	for _, entry := range m.sessions {
		s := entry.session
		if s.UserID != userID {
			continue
		}
		out = append(out, models.SessionSummary{
			SessionID:    s.ID,
			Subject:      s.Subject,
			Status:       s.Status,
			Answered:     len(s.Responses),
			MaxQuestions: s.MaxQuestions,
			Reason:       s.CompletedReason,
			StartedAt:    s.StartedAt,
			CompletedAt:  s.CompletedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}
