package battle

import (
	"context"
	"fmt"
	"log"
	"time"

	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/metrics"
	"github.com/google/uuid"
)

// RoomRepository abstracts where rooms live (in-memory, Redis liveness, etc).
type RoomRepository interface {
	Put(room *Room)
	Get(roomID string) (*Room, bool)
	DeleteIfEmpty(roomID string) bool
}

// QuestionSource resolves a config into questions; exam.Source satisfies it.
type QuestionSource interface {
	Acquire(ctx context.Context, cfg domain.SessionConfig) ([]domain.Question, error)
}

const (
	DefaultPerQuestionSeconds = 15
	maxQuestionCount          = 50
)

// Service contains the battle room use cases.
type Service struct {
	rooms              RoomRepository
	source             QuestionSource
	now                func() time.Time
	perQuestionSeconds int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock is test-only for deterministic clocks.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithPerQuestionSeconds sets the default question duration for new rooms.
func WithPerQuestionSeconds(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.perQuestionSeconds = n
		}
	}
}

func NewService(rooms RoomRepository, source QuestionSource, opts ...ServiceOption) *Service {
	s := &Service{
		rooms:              rooms,
		source:             source,
		now:                time.Now,
		perQuestionSeconds: DefaultPerQuestionSeconds,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create acquires questions for cfg and opens a room with the host joined.
func (s *Service) Create(ctx context.Context, hostID, hostName string, cfg domain.BattleConfig) (domain.BattleState, error) {
	if hostID == "" {
		return domain.BattleState{}, domain.ErrUnauthenticated
	}
	if cfg.Subject == "" || cfg.Chapter == "" {
		return domain.BattleState{}, fmt.Errorf("%w: battle needs a subject and chapter", domain.ErrInvalidConfig)
	}
	if cfg.QuestionCount < 1 || cfg.QuestionCount > maxQuestionCount {
		return domain.BattleState{}, fmt.Errorf("%w: battle question count must be 1..%d", domain.ErrInvalidConfig, maxQuestionCount)
	}
	if cfg.PerQuestionSeconds <= 0 {
		cfg.PerQuestionSeconds = s.perQuestionSeconds
	}

	questions, err := s.source.Acquire(ctx, domain.SessionConfig{
		Mode:         domain.ModeCustom,
		Title:        cfg.Subject,
		Selections:   []domain.TopicSelection{{Subject: cfg.Subject, Chapter: cfg.Chapter, Topics: cfg.Topics}},
		TargetCount:  cfg.QuestionCount,
		Standard:     cfg.Standard,
		Presentation: domain.SinglePage,
	})
	if err != nil {
		return domain.BattleState{}, fmt.Errorf("prepare battle questions: %w", err)
	}

	room := NewRoom(uuid.NewString(), hostID, cfg, questions, s.now)
	st, err := room.join(hostID, hostName, "")
	if err != nil {
		return domain.BattleState{}, err
	}
	s.rooms.Put(room)
	metrics.ActiveBattles.Inc()
	log.Printf("[battle] room %s created by %s (%d questions)", room.ID(), hostID, len(questions))
	return st, nil
}

// Join registers or refreshes a player in a waiting room.
func (s *Service) Join(_ context.Context, roomID, uid, name, team string) (domain.BattleState, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.BattleState{}, domain.ErrRoomNotFound
	}
	return room.join(uid, name, team)
}

// Start anchors the shared clock. Only the host may start.
func (s *Service) Start(_ context.Context, roomID, uid string) (domain.BattleState, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.BattleState{}, domain.ErrRoomNotFound
	}
	return room.start(uid)
}

// State is the polled snapshot.
func (s *Service) State(_ context.Context, roomID string) (domain.BattleState, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.BattleState{}, domain.ErrRoomNotFound
	}
	return room.state(), nil
}

// Answer scores one answer; each player may answer the current question once.
func (s *Service) Answer(_ context.Context, a domain.BattleAnswer) (domain.BattleAnswerResult, error) {
	room, ok := s.rooms.Get(a.RoomID)
	if !ok {
		return domain.BattleAnswerResult{}, domain.ErrRoomNotFound
	}
	result, _, err := room.answer(a)
	return result, err
}

// Subscribe returns a channel that receives room snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Service) Subscribe(_ context.Context, roomID string) (<-chan domain.BattleState, func(), error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.subscribe()
	return ch, cancel, nil
}

// Leave removes a player and drops the room once empty.
func (s *Service) Leave(_ context.Context, roomID, uid string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	room.leave(uid)
	if room.IsEmpty() && s.rooms.DeleteIfEmpty(roomID) {
		metrics.ActiveBattles.Dec()
	}
}
