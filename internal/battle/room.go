package battle

import (
	"sort"
	"sync"
	"time"

	"exam-prep-service/internal/domain"
)

type player struct {
	domain.Player
	joinedAt time.Time
	answered map[int]struct{}
}

// Room is the in-memory, authoritative state of one battle.
type Room struct {
	id        string
	hostID    string
	cfg       domain.BattleConfig
	questions []domain.Question
	now       func() time.Time

	mu          sync.RWMutex
	status      domain.BattleStatus
	startTime   *time.Time
	players     map[string]*player
	subscribers map[chan domain.BattleState]struct{}
}

// NewRoom is exported for infrastructure layers and tests that seed rooms.
func NewRoom(id, hostID string, cfg domain.BattleConfig, questions []domain.Question, now func() time.Time) *Room {
	if now == nil {
		now = time.Now
	}
	return &Room{
		id:          id,
		hostID:      hostID,
		cfg:         cfg,
		questions:   questions,
		now:         now,
		status:      domain.BattleWaiting,
		players:     make(map[string]*player),
		subscribers: make(map[chan domain.BattleState]struct{}),
	}
}

func (r *Room) ID() string { return r.id }

// IsEmpty reports whether the room has no players.
func (r *Room) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players) == 0
}

func (r *Room) join(uid, name, team string) (domain.BattleState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[uid]; ok {
		p.Name = name
		if team != "" {
			p.Team = team
		}
		return r.broadcastLocked(), nil
	}
	if r.status != domain.BattleWaiting {
		return domain.BattleState{}, domain.ErrBattleStarted
	}
	r.players[uid] = &player{
		Player:   domain.Player{UID: uid, Name: name, Team: team},
		joinedAt: r.now(),
		answered: make(map[int]struct{}),
	}
	return r.broadcastLocked(), nil
}

func (r *Room) start(uid string) (domain.BattleState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if uid != r.hostID {
		return domain.BattleState{}, domain.ErrNotHost
	}
	if r.status != domain.BattleWaiting {
		return domain.BattleState{}, domain.ErrBattleStarted
	}
	start := r.now()
	r.startTime = &start
	r.status = domain.BattleActive
	return r.broadcastLocked(), nil
}

func (r *Room) answer(a domain.BattleAnswer) (domain.BattleAnswerResult, domain.BattleState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refreshLocked() {
		r.broadcastLocked()
	}
	if r.status != domain.BattleActive {
		return domain.BattleAnswerResult{}, domain.BattleState{}, domain.ErrBattleNotActive
	}
	p, ok := r.players[a.UID]
	if !ok {
		return domain.BattleAnswerResult{}, domain.BattleState{}, domain.ErrPlayerNotFound
	}
	pos := Derive(*r.startTime, r.now(), r.cfg.PerQuestion(), len(r.questions))
	if a.QuestionIndex != pos.QuestionIndex {
		return domain.BattleAnswerResult{}, domain.BattleState{}, domain.ErrStaleQuestion
	}
	if a.Choice < 0 || a.Choice >= domain.OptionCount {
		return domain.BattleAnswerResult{}, domain.BattleState{}, domain.ErrInvalidChoice
	}
	if _, done := p.answered[a.QuestionIndex]; done {
		return domain.BattleAnswerResult{}, domain.BattleState{}, domain.ErrAlreadyAnswered
	}
	p.answered[a.QuestionIndex] = struct{}{}

	correct := r.questions[a.QuestionIndex].CorrectAnswerIndex == a.Choice
	if correct {
		p.Score++
	}
	result := domain.BattleAnswerResult{QuestionIndex: a.QuestionIndex, Correct: correct, TotalScore: p.Score}
	return result, r.broadcastLocked(), nil
}

func (r *Room) leave(uid string) domain.BattleState {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, uid)
	return r.broadcastLocked()
}

// state returns the current snapshot, marking the room finished once the clock
// has run past the last question.
func (r *Room) state() domain.BattleState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refreshLocked() {
		return r.broadcastLocked()
	}
	return r.snapshotLocked()
}

func (r *Room) refreshLocked() bool {
	if r.status != domain.BattleActive || r.startTime == nil {
		return false
	}
	if !Derive(*r.startTime, r.now(), r.cfg.PerQuestion(), len(r.questions)).Finished {
		return false
	}
	r.status = domain.BattleFinished
	return true
}

func (r *Room) subscribe() (<-chan domain.BattleState, func()) {
	ch := make(chan domain.BattleState, 8)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	initial := r.snapshotLocked()
	r.mu.Unlock()

	ch <- initial

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Room) broadcastLocked() domain.BattleState {
	st := r.snapshotLocked()
	for ch := range r.subscribers {
		select {
		case ch <- st:
		default:
			// slow subscriber: replace the stale snapshot
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
	return st
}

func (r *Room) snapshotLocked() domain.BattleState {
	players := make([]domain.Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p.Player)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		pi, pj := r.players[players[i].UID], r.players[players[j].UID]
		if !pi.joinedAt.Equal(pj.joinedAt) {
			return pi.joinedAt.Before(pj.joinedAt)
		}
		return players[i].UID < players[j].UID
	})

	questions := make([]domain.Question, len(r.questions))
	for i, q := range r.questions {
		if r.status == domain.BattleFinished {
			questions[i] = q
		} else {
			questions[i] = q.Redacted()
		}
	}

	st := domain.BattleState{
		RoomID:    r.id,
		HostID:    r.hostID,
		Status:    r.status,
		Config:    r.cfg,
		Questions: questions,
		Players:   players,
	}
	if r.startTime != nil {
		start := *r.startTime
		st.StartTime = &start
	}
	return st
}
