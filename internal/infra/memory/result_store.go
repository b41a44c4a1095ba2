package memory

import (
	"context"
	"sync"

	"exam-prep-service/internal/domain"
)

// ResultStore keeps results per user in process, newest last.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string][]domain.ExamResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string][]domain.ExamResult)}
}

func (s *ResultStore) SaveResult(_ context.Context, result domain.ExamResult) error {
	if result.UserID == "" {
		return domain.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.UserID] = append(s.results[result.UserID], result)
	return nil
}

// RecentMistakes returns up to limit mistakes, newest result first, without duplicates.
func (s *ResultStore) RecentMistakes(_ context.Context, userID string, limit int) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.results[userID]
	seen := make(map[string]struct{})
	out := []domain.Question{}
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		for _, q := range history[i].Mistakes {
			key := q.ID
			if key == "" {
				key = q.Question
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, q)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
