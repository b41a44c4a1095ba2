package redis

import (
	"context"
	"sync"
	"time"

	"exam-prep-service/internal/exam"
	"github.com/redis/go-redis/v9"
)

// ExamStore keeps exam sessions in process and marks each live session in Redis
// so operators can count them across instances.
type ExamStore struct {
	client *redis.Client
	ttl    time.Duration

	mu       sync.RWMutex
	sessions map[string]*exam.Session
}

func NewExamStore(client *redis.Client, ttl time.Duration) *ExamStore {
	return &ExamStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*exam.Session),
	}
}

func (s *ExamStore) Put(session *exam.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	_ = s.client.Set(context.Background(), s.key(session.ID()), session.UserID(), s.ttl).Err()
}

func (s *ExamStore) Get(id string) (*exam.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok && s.ttl > 0 {
		_ = s.client.Expire(context.Background(), s.key(id), s.ttl).Err()
	}
	return session, ok
}

func (s *ExamStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	_ = s.client.Del(context.Background(), s.key(id)).Err()
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

func (s *ExamStore) key(id string) string {
	return "exam:session:" + id
}
