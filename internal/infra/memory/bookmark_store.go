package memory

import (
	"context"
	"sync"

	"exam-prep-service/internal/domain"
)

// BookmarkStore keeps bookmarked questions per user in insertion order.
type BookmarkStore struct {
	mu    sync.RWMutex
	marks map[string][]domain.Question
}

func NewBookmarkStore() *BookmarkStore {
	return &BookmarkStore{marks: make(map[string][]domain.Question)}
}

func (s *BookmarkStore) SaveBookmark(_ context.Context, userID string, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.marks[userID]
	for i := range list {
		if list[i].ID == q.ID {
			list[i] = q
			return nil
		}
	}
	s.marks[userID] = append(list, q)
	return nil
}

func (s *BookmarkStore) RemoveBookmark(_ context.Context, userID, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.marks[userID]
	for i := range list {
		if list[i].ID == questionID {
			s.marks[userID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

// ListBookmarks returns the user's bookmarks, newest first.
func (s *BookmarkStore) ListBookmarks(_ context.Context, userID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.marks[userID]
	out := make([]domain.Question, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
	}
	return out, nil
}
