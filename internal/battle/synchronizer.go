package battle

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/metrics"
)

// RoomPoller is the battle API as seen by a player.
type RoomPoller interface {
	State(ctx context.Context, roomID string) (domain.BattleState, error)
	Answer(ctx context.Context, answer domain.BattleAnswer) (domain.BattleAnswerResult, error)
}

// DefaultPollInterval is how often the synchronizer fetches room state.
const DefaultPollInterval = time.Second

// View is the player's local picture of the battle.
type View struct {
	Status          domain.BattleStatus `json:"status"`
	QuestionIndex   int                 `json:"questionIndex"`
	TimeLeftSeconds int                 `json:"timeLeftSeconds"`
	Answered        bool                `json:"answered"`
	Question        *domain.Question    `json:"question,omitempty"`
	Players         []domain.Player     `json:"players"`
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

func WithPollInterval(d time.Duration) SyncOption {
	return func(s *Synchronizer) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithSyncClock(now func() time.Time) SyncOption {
	return func(s *Synchronizer) { s.now = now }
}

// Synchronizer reconciles a local battle view against polled server state. The
// position is recomputed from the server start time on every poll.
type Synchronizer struct {
	poller   RoomPoller
	roomID   string
	uid      string
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	state    domain.BattleState
	index    int
	timeLeft int
	answered bool
	finished bool
	views    chan View
}

func NewSynchronizer(poller RoomPoller, roomID, uid string, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		poller:   poller,
		roomID:   roomID,
		uid:      uid,
		interval: DefaultPollInterval,
		now:      time.Now,
		index:    -1,
		views:    make(chan View, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Views delivers the latest view after every poll; stale views are dropped.
func (s *Synchronizer) Views() <-chan View {
	return s.views
}

// Run polls until ctx is done or the battle finishes. Poll failures are logged
// and retried on the next tick.
func (s *Synchronizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if s.poll(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Synchronizer) poll(ctx context.Context) bool {
	st, err := s.poller.State(ctx, s.roomID)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		metrics.BattlePollErrors.Inc()
		log.Printf("[battle %s] poll failed: %v", s.roomID, err)
		return false
	}
	v := s.Apply(st)
	s.publish(v)
	return v.Status == domain.BattleFinished
}

// Apply folds one polled state into the local view.
func (s *Synchronizer) Apply(st domain.BattleState) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = st
	switch st.Status {
	case domain.BattleFinished:
		s.finished = true
	case domain.BattleActive:
		if st.StartTime == nil {
			break
		}
		pos := Derive(*st.StartTime, s.now(), st.Config.PerQuestion(), len(st.Questions))
		if pos.Finished {
			s.finished = true
			s.timeLeft = 0
			break
		}
		if pos.QuestionIndex > s.index {
			s.index = pos.QuestionIndex
			s.answered = false
		}
		s.timeLeft = pos.TimeLeftSeconds()
	}
	return s.viewLocked()
}

// View returns the current local view without polling.
func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Synchronizer) viewLocked() View {
	v := View{
		Status:          s.state.Status,
		QuestionIndex:   s.index,
		TimeLeftSeconds: s.timeLeft,
		Answered:        s.answered,
		Players:         s.state.Players,
	}
	if s.finished {
		v.Status = domain.BattleFinished
		v.TimeLeftSeconds = 0
		return v
	}
	if v.Status == domain.BattleActive && s.index >= 0 && s.index < len(s.state.Questions) {
		q := s.state.Questions[s.index]
		v.Question = &q
	}
	return v
}

// Submit sends an answer for the current question. A second answer to the same
// question is rejected locally.
func (s *Synchronizer) Submit(ctx context.Context, choice int) (domain.BattleAnswerResult, error) {
	s.mu.Lock()
	if s.finished || s.state.Status != domain.BattleActive || s.index < 0 {
		s.mu.Unlock()
		return domain.BattleAnswerResult{}, domain.ErrBattleNotActive
	}
	if s.answered {
		s.mu.Unlock()
		return domain.BattleAnswerResult{}, domain.ErrAlreadyAnswered
	}
	s.answered = true
	index := s.index
	s.mu.Unlock()

	result, err := s.poller.Answer(ctx, domain.BattleAnswer{
		RoomID:        s.roomID,
		UID:           s.uid,
		QuestionIndex: index,
		Choice:        choice,
	})
	if err != nil {
		s.mu.Lock()
		// let the player retry if nothing reached the server and the question is still open
		if s.index == index && !isServerRejection(err) {
			s.answered = false
		}
		s.mu.Unlock()
		return domain.BattleAnswerResult{}, fmt.Errorf("submit battle answer: %w", err)
	}
	return result, nil
}

func (s *Synchronizer) publish(v View) {
	select {
	case s.views <- v:
	default:
		select {
		case <-s.views:
		default:
		}
		select {
		case s.views <- v:
		default:
		}
	}
}
