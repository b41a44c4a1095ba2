package memory

import (
	"sync"
	"time"

	"exam-prep-service/internal/exam"
)

// ExamStore is an in-memory implementation of app.SessionRepository.
type ExamStore struct {
	mu       sync.RWMutex
	sessions map[string]*exam.Session
}

func NewExamStore() *ExamStore {
	return &ExamStore{
		sessions: make(map[string]*exam.Session),
	}
}

func (s *ExamStore) Put(session *exam.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

func (s *ExamStore) Get(id string) (*exam.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *ExamStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Idle lists sessions untouched since before.
func (s *ExamStore) Idle(before time.Time) []*exam.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*exam.Session
	for _, session := range s.sessions {
		if session.LastActivity().Before(before) {
			out = append(out, session)
		}
	}
	return out
}
