package exam

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/metrics"
)

// Acquirer resolves a config into questions (see Source).
type Acquirer interface {
	Acquire(ctx context.Context, cfg domain.SessionConfig) ([]domain.Question, error)
}

// ResultSink persists scored results.
type ResultSink interface {
	SaveResult(ctx context.Context, result domain.ExamResult) error
}

// BookmarkStore persists bookmarked questions for a user.
type BookmarkStore interface {
	SaveBookmark(ctx context.Context, userID string, q domain.Question) error
	RemoveBookmark(ctx context.Context, userID, questionID string) error
}

// Deps are the collaborators a session talks to. Results and Bookmarks are optional.
type Deps struct {
	Source    Acquirer
	Results   ResultSink
	Bookmarks BookmarkStore
}

const (
	triggerManual  = "manual"
	triggerTimeout = "timeout"

	defaultTickInterval = time.Second
	saveTimeout         = 10 * time.Second
)

// Option configures a Session.
type Option func(*Session)

// WithManualClock disables the internal ticker; callers drive Tick themselves.
func WithManualClock() Option {
	return func(s *Session) { s.manualClock = true }
}

// WithTickInterval overrides the one-second countdown interval.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// Session is one user's exam, from selection to result. All methods are safe
// for concurrent use; the mutex serializes timer ticks against user actions.
type Session struct {
	id     string
	userID string
	deps   Deps

	tickInterval time.Duration
	manualClock  bool

	mu         sync.Mutex
	state      state
	generation uint64
	cancelLoad context.CancelFunc
	stopTimer  func()
	touchedAt  time.Time
}

func NewSession(id, userID string, deps Deps, opts ...Option) *Session {
	s := &Session{
		id:           id,
		userID:       userID,
		deps:         deps,
		tickInterval: defaultTickInterval,
		state:        &selectionState{},
		touchedAt:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.phase()
}

// LastActivity reports when the session was last acted upon.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

// BeginTopicConfig moves a custom selection into topic configuration.
func (s *Session) BeginTopicConfig(selections []domain.TopicSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = time.Now()

	switch s.state.(type) {
	case *selectionState, *topicConfigState:
	default:
		return fmt.Errorf("%w: topic configuration from %s", domain.ErrInvalidTransition, s.state.phase())
	}
	if len(selections) == 0 {
		return fmt.Errorf("%w: no chapters selected", domain.ErrInvalidConfig)
	}
	s.state = &topicConfigState{selections: cloneSelections(selections)}
	return nil
}

// Launch enters LOADING and acquires questions in the background. The returned
// channel is closed once loading resolved into EXAM or back into SELECTION.
func (s *Session) Launch(ctx context.Context, cfg domain.SessionConfig) (<-chan struct{}, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = time.Now()

	switch s.state.(type) {
	case *topicConfigState:
		if cfg.Mode != domain.ModeCustom {
			return nil, fmt.Errorf("%w: %s launch from topic configuration", domain.ErrInvalidTransition, cfg.Mode)
		}
	case *selectionState:
		if cfg.Mode == domain.ModeCustom {
			return nil, fmt.Errorf("%w: custom exams need topic configuration first", domain.ErrInvalidTransition)
		}
	default:
		return nil, fmt.Errorf("%w: launch from %s", domain.ErrInvalidTransition, s.state.phase())
	}

	s.generation++
	ls := &loadingState{cfg: cfg, generation: s.generation, done: make(chan struct{})}
	s.state = ls

	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelLoad = cancel

	go func() {
		defer close(ls.done)
		defer cancel()
		questions, err := s.deps.Source.Acquire(loadCtx, cfg)
		s.finishLoading(ls.generation, questions, err)
	}()
	return ls.done, nil
}

func (s *Session) finishLoading(generation uint64, questions []domain.Question, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ls, ok := s.state.(*loadingState)
	if !ok || ls.generation != generation || s.generation != generation {
		log.Printf("[exam %s] discarding stale question set (generation %d)", s.id, generation)
		return
	}
	s.cancelLoad = nil

	if err != nil {
		metrics.AcquisitionFailures.Inc()
		log.Printf("[exam %s] acquisition failed: %v", s.id, err)
		s.state = &selectionState{notice: "Could not prepare the exam: " + err.Error()}
		return
	}

	s.state = newExamState(ls.cfg, questions)
	metrics.ExamsStarted.WithLabelValues(string(ls.cfg.Mode)).Inc()
	s.startTimerLocked()
}

func (s *Session) startTimerLocked() {
	if s.manualClock {
		return
	}
	ticker := time.NewTicker(s.tickInterval)
	stop := make(chan struct{})
	var once sync.Once
	s.stopTimer = func() {
		once.Do(func() {
			ticker.Stop()
			close(stop)
		})
	}
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Tick()
			case <-stop:
				return
			}
		}
	}()
}

func (s *Session) stopTimerLocked() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
}

// Tick advances the countdown by one interval. Reaching zero submits exactly
// once; further ticks are ignored.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	es, ok := s.state.(*examState)
	if !ok || es.submitted {
		return
	}
	es.elapsed++
	if es.cfg.TimeLimitMinutes == 0 {
		return
	}
	if es.timeLeft > 0 {
		es.timeLeft--
	}
	if es.timeLeft == 0 {
		s.submitLocked(es, triggerTimeout)
	}
}

// Answer records a choice (or Skipped to clear it) for a question.
func (s *Session) Answer(index, choice int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = time.Now()

	es, err := s.runningExamLocked()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(es.questions) {
		return domain.ErrQuestionIndex
	}
	if choice != Skipped && (choice < 0 || choice >= domain.OptionCount) {
		return domain.ErrInvalidChoice
	}
	if es.cfg.Presentation == domain.SinglePage && index != es.current {
		return ErrNotVisible
	}
	es.answers[index] = choice
	return nil
}

// Next moves forward in single-page mode.
func (s *Session) Next() (int, error) {
	return s.move(1)
}

// Previous moves back in single-page mode; always allowed except at the first question.
func (s *Session) Previous() (int, error) {
	return s.move(-1)
}

func (s *Session) move(delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = time.Now()

	es, err := s.runningExamLocked()
	if err != nil {
		return 0, err
	}
	if es.cfg.Presentation != domain.SinglePage {
		return 0, ErrNavigationUnavailable
	}
	next := es.current + delta
	if next < 0 {
		return es.current, ErrAtFirstQuestion
	}
	if next > es.last() {
		return es.current, ErrAtLastQuestion
	}
	es.current = next
	es.confirming = false
	return es.current, nil
}

// Controls describes which actions the exam view offers right now.
type Controls struct {
	CanPrevious bool `json:"canPrevious"`
	CanNext     bool `json:"canNext"`
	CanSubmit   bool `json:"canSubmit"`
	Answered    int  `json:"answered"`
	Total       int  `json:"total"`
}

// Controls reports navigation and submit availability; zero outside EXAM.
func (s *Session) Controls() Controls {
	s.mu.Lock()
	defer s.mu.Unlock()
	es, ok := s.state.(*examState)
	if !ok {
		return Controls{}
	}
	return controlsFor(es)
}

func controlsFor(es *examState) Controls {
	c := Controls{Answered: es.answered(), Total: len(es.questions)}
	if es.submitted {
		return c
	}
	if es.cfg.Presentation == domain.AllAtOnce {
		c.CanSubmit = true
		return c
	}
	c.CanPrevious = es.current > 0
	c.CanNext = es.current < es.last()
	c.CanSubmit = es.current == es.last()
	return c
}

// ToggleBookmark flips the bookmark on a question and mirrors it to durable
// storage. Questions without an ID are only logged.
func (s *Session) ToggleBookmark(ctx context.Context, index int) (bool, error) {
	if s.userID == "" {
		return false, domain.ErrUnauthenticated
	}

	s.mu.Lock()
	s.touchedAt = time.Now()
	set, questions, err := s.bookmarksLocked()
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	if index < 0 || index >= len(questions) {
		s.mu.Unlock()
		return false, domain.ErrQuestionIndex
	}
	q := questions[index]
	_, had := set[index]
	if !q.Bookmarkable() {
		s.mu.Unlock()
		log.Printf("[exam %s] question %d has no id; bookmark not saved", s.id, index)
		return had, nil
	}
	if had {
		delete(set, index)
	} else {
		set[index] = struct{}{}
	}
	s.mu.Unlock()

	if s.deps.Bookmarks != nil {
		var storeErr error
		if had {
			storeErr = s.deps.Bookmarks.RemoveBookmark(ctx, s.userID, q.ID)
		} else {
			storeErr = s.deps.Bookmarks.SaveBookmark(ctx, s.userID, q)
		}
		if storeErr != nil {
			s.mu.Lock()
			if had {
				set[index] = struct{}{}
			} else {
				delete(set, index)
			}
			s.mu.Unlock()
			return had, fmt.Errorf("save bookmark: %w", storeErr)
		}
	}
	return !had, nil
}

func (s *Session) bookmarksLocked() (map[int]struct{}, []domain.Question, error) {
	switch st := s.state.(type) {
	case *examState:
		return st.bookmarks, st.questions, nil
	case *resultState:
		return st.bookmarks, st.questions, nil
	default:
		return nil, nil, fmt.Errorf("%w: bookmark in %s", domain.ErrInvalidTransition, st.phase())
	}
}

// Confirmation is shown before a manual submission.
type Confirmation struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// RequestSubmit opens the confirmation gate.
func (s *Session) RequestSubmit() (Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = time.Now()

	es, err := s.runningExamLocked()
	if err != nil {
		return Confirmation{}, err
	}
	if !controlsFor(es).CanSubmit {
		return Confirmation{}, ErrSubmitUnavailable
	}
	es.confirming = true
	return Confirmation{Answered: es.answered(), Total: len(es.questions)}, nil
}

// CancelSubmit closes the confirmation gate.
func (s *Session) CancelSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	es, err := s.runningExamLocked()
	if err != nil {
		return err
	}
	es.confirming = false
	return nil
}

// ConfirmSubmit scores the exam after a RequestSubmit.
func (s *Session) ConfirmSubmit() (domain.ScoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = time.Now()

	es, err := s.runningExamLocked()
	if err != nil {
		return domain.ScoreResult{}, err
	}
	if !es.confirming {
		return domain.ScoreResult{}, ErrNotConfirming
	}
	rs := s.submitLocked(es, triggerManual)
	return rs.score, nil
}

// submitLocked is the only path into RESULT; the submitted flag makes the
// timeout and manual paths mutually exclusive.
func (s *Session) submitLocked(es *examState, trigger string) *resultState {
	if es.submitted {
		if rs, ok := s.state.(*resultState); ok {
			return rs
		}
		return nil
	}
	es.submitted = true
	s.stopTimerLocked()

	rs := &resultState{
		cfg:       es.cfg,
		questions: es.questions,
		answers:   es.answers,
		elapsed:   es.elapsed,
		bookmarks: es.bookmarks,
		score:     Score(es.questions, es.answers, es.cfg.NegativeMark),
		trigger:   trigger,
	}
	s.state = rs
	metrics.ExamsSubmitted.WithLabelValues(trigger).Inc()
	s.persist(rs)
	return rs
}

func (s *Session) persist(rs *resultState) {
	if s.deps.Results == nil {
		return
	}
	if s.userID == "" {
		log.Printf("[exam %s] anonymous session; result not saved", s.id)
		return
	}
	payload := ToExamResult(s.userID, rs.cfg.Subject(), len(rs.questions), rs.score)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := s.deps.Results.SaveResult(ctx, payload); err != nil {
			metrics.ResultSaveFailures.Inc()
			log.Printf("[exam %s] save result failed: %v", s.id, err)
		}
	}()
}

func (s *Session) runningExamLocked() (*examState, error) {
	switch st := s.state.(type) {
	case *examState:
		if st.submitted {
			return nil, ErrAlreadySubmitted
		}
		return st, nil
	case *resultState:
		return nil, ErrAlreadySubmitted
	default:
		return nil, fmt.Errorf("%w: not in exam (%s)", domain.ErrInvalidTransition, st.phase())
	}
}

// Result returns the score computed on submission.
func (s *Session) Result() (domain.ScoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.state.(*resultState)
	if !ok {
		return domain.ScoreResult{}, fmt.Errorf("%w: no result in %s", domain.ErrInvalidTransition, s.state.phase())
	}
	return rs.score, nil
}

// Reset returns to SELECTION from any phase, stopping the timer and orphaning
// any in-flight acquisition.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = time.Now()
	s.teardownLocked()
	s.state = &selectionState{}
}

// Close releases the timer and in-flight work without changing the phase.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

func (s *Session) teardownLocked() {
	s.generation++
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	s.stopTimerLocked()
}

func cloneSelections(in []domain.TopicSelection) []domain.TopicSelection {
	out := make([]domain.TopicSelection, len(in))
	for i, sel := range in {
		out[i] = domain.TopicSelection{
			Subject: sel.Subject,
			Chapter: sel.Chapter,
			Topics:  append([]string(nil), sel.Topics...),
		}
	}
	return out
}
