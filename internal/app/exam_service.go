package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/exam"
	"exam-prep-service/internal/handoff"
	"exam-prep-service/internal/selection"
	"github.com/google/uuid"
)

// SessionRepository abstracts how exam sessions are stored (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *exam.Session)
	Get(id string) (*exam.Session, bool)
	Delete(id string)
	Idle(before time.Time) []*exam.Session
}

// ResultRepository persists results posted directly by clients.
type ResultRepository interface {
	SaveResult(ctx context.Context, result domain.ExamResult) error
}

// MistakeHistory reads back the mistakes of earlier results.
type MistakeHistory interface {
	RecentMistakes(ctx context.Context, userID string, limit int) ([]domain.Question, error)
}

// BookmarkLister reads a user's bookmarked questions.
type BookmarkLister interface {
	ListBookmarks(ctx context.Context, userID string) ([]domain.Question, error)
}

const (
	DefaultIdleTTL       = 3 * time.Hour
	DefaultMistakeWindow = 50
	maxBankCount         = 200
)

// Deps are the collaborators an ExamService is assembled from. Bank, Results,
// Bookmarks, History, Library and Papers may be nil; the matching use cases then degrade.
type Deps struct {
	Sessions  SessionRepository
	Source    exam.Acquirer
	Bank      exam.BankSource
	Results   ResultRepository
	Bookmarks exam.BookmarkStore
	History   MistakeHistory
	Library   BookmarkLister
	Papers    selection.PaperRepository
	Catalog   selection.Catalog
	Handoff   handoff.Mailboxes
}

// Option configures an ExamService.
type Option func(*ExamService)

// WithSessionOptions is applied to every session the service creates.
func WithSessionOptions(opts ...exam.Option) Option {
	return func(s *ExamService) { s.sessionOpts = append(s.sessionOpts, opts...) }
}

// WithIdleTTL sets how long an untouched session survives the janitor.
func WithIdleTTL(d time.Duration) Option {
	return func(s *ExamService) {
		if d > 0 {
			s.idleTTL = d
		}
	}
}

// WithMistakeWindow caps how many past mistakes a revision list holds.
func WithMistakeWindow(n int) Option {
	return func(s *ExamService) {
		if n > 0 {
			s.mistakeWindow = n
		}
	}
}

// WithIDGenerator overrides uuid session identifiers (tests).
func WithIDGenerator(next func() string) Option {
	return func(s *ExamService) { s.newID = next }
}

// ExamService contains the exam use cases: session registry, configuration
// building and handoff consumption.
type ExamService struct {
	deps          Deps
	sessionOpts   []exam.Option
	idleTTL       time.Duration
	mistakeWindow int
	newID         func() string
	now           func() time.Time
}

func NewExamService(deps Deps, opts ...Option) *ExamService {
	s := &ExamService{
		deps:          deps,
		idleTTL:       DefaultIdleTTL,
		mistakeWindow: DefaultMistakeWindow,
		newID:         uuid.NewString,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a session in SELECTION. userID may be empty for anonymous practice.
func (s *ExamService) Create(_ context.Context, userID string) exam.View {
	session := exam.NewSession(s.newID(), userID, exam.Deps{
		Source:    s.deps.Source,
		Results:   s.deps.Results,
		Bookmarks: s.deps.Bookmarks,
	}, s.sessionOpts...)
	s.deps.Sessions.Put(session)
	return session.Snapshot()
}

// Get returns the session view.
func (s *ExamService) Get(_ context.Context, id, userID string) (exam.View, error) {
	session, err := s.session(id, userID)
	if err != nil {
		return exam.View{}, err
	}
	return session.Snapshot(), nil
}

// TopicConfig validates a chapter/topic pick and moves the session into TOPIC_CONFIG.
func (s *ExamService) TopicConfig(_ context.Context, id, userID string, discipline selection.Discipline, picks []domain.TopicSelection) (exam.View, error) {
	session, err := s.session(id, userID)
	if err != nil {
		return exam.View{}, err
	}
	if discipline == "" {
		discipline = selection.DisciplineMulti
	}
	sel, err := selection.FromPicks(discipline, s.deps.Catalog, picks)
	if err != nil {
		return exam.View{}, err
	}
	if len(sel.Picks()) == 0 {
		return exam.View{}, selection.ErrNoChapters
	}
	if err := session.BeginTopicConfig(sel.Picks()); err != nil {
		return exam.View{}, err
	}
	return session.Snapshot(), nil
}

// Launch builds the config described by req and starts acquisition. The
// returned channel closes once loading resolves.
func (s *ExamService) Launch(ctx context.Context, id, userID string, req domain.LaunchRequest) (exam.View, <-chan struct{}, error) {
	session, err := s.session(id, userID)
	if err != nil {
		return exam.View{}, nil, err
	}
	return s.launch(ctx, session, req)
}

func (s *ExamService) launch(ctx context.Context, session *exam.Session, req domain.LaunchRequest) (exam.View, <-chan struct{}, error) {
	if req.Presentation == "" {
		req.Presentation = domain.SinglePage
	}

	var (
		cfg    domain.SessionConfig
		inline []domain.TopicSelection
		err    error
	)
	switch req.Mode {
	case domain.ModeCustom:
		cfg, inline, err = s.customConfig(session, req)
	case domain.ModePreset:
		cfg, err = selection.BuildPreset(req.Preset, selection.Tier(req.Difficulty), req.Presentation)
	case domain.ModePastPaper:
		cfg, err = s.pastPaperConfig(ctx, req)
	default:
		err = fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidConfig, req.Mode)
	}
	if err != nil {
		return exam.View{}, nil, err
	}

	// Inline picks only move the session once the config is known to be good.
	if len(inline) > 0 {
		if err := session.BeginTopicConfig(inline); err != nil {
			return exam.View{}, nil, err
		}
	}
	done, err := session.Launch(ctx, cfg)
	if err != nil {
		return exam.View{}, nil, err
	}
	return session.Snapshot(), done, nil
}

// customConfig uses req.Selections when given, otherwise the session's topic
// configuration. Inline picks are returned for the caller to apply; the session
// is left untouched.
func (s *ExamService) customConfig(session *exam.Session, req domain.LaunchRequest) (domain.SessionConfig, []domain.TopicSelection, error) {
	picks := req.Selections
	inline := len(picks) > 0
	if !inline {
		v := session.Snapshot()
		if v.Phase != exam.PhaseTopicConfig {
			return domain.SessionConfig{}, nil, fmt.Errorf("%w: custom exams need topic configuration first", domain.ErrInvalidTransition)
		}
		picks = v.Selections
	}

	sel, err := selection.FromPicks(selection.DisciplineMulti, s.deps.Catalog, picks)
	if err != nil {
		return domain.SessionConfig{}, nil, err
	}
	cfg, err := selection.BuildCustom(sel, selection.CustomOptions{
		TargetCount:      req.TargetCount,
		Standard:         req.Standard,
		TimeLimitMinutes: req.TimeLimitMinutes,
		NegativeMark:     req.NegativeMark,
		Presentation:     req.Presentation,
		Difficulty:       req.Difficulty,
	})
	if err != nil {
		return domain.SessionConfig{}, nil, err
	}
	if !inline {
		return cfg, nil, nil
	}
	return cfg, sel.Picks(), nil
}

func (s *ExamService) pastPaperConfig(ctx context.Context, req domain.LaunchRequest) (domain.SessionConfig, error) {
	if s.deps.Papers == nil {
		return domain.SessionConfig{}, selection.ErrPaperNotFound
	}
	paper, err := s.deps.Papers.GetPaper(ctx, req.PaperID)
	if err != nil {
		return domain.SessionConfig{}, err
	}
	return selection.BuildPastPaper(paper, req.Presentation)
}

// SendLaunch stores a launch request for the user's next ConsumeLaunch.
func (s *ExamService) SendLaunch(ctx context.Context, userID string, req domain.LaunchRequest) error {
	return s.deps.Handoff.Launch.Send(ctx, userID, req)
}

// SendRevision stores a mistake-revision queue for the user.
func (s *ExamService) SendRevision(ctx context.Context, userID string, queue domain.RevisionQueue) error {
	if len(queue.Questions) == 0 {
		return fmt.Errorf("%w: revision queue is empty", domain.ErrInvalidConfig)
	}
	for i, q := range queue.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("revision question %d: %w", i, err)
		}
	}
	return s.deps.Handoff.Revision.Send(ctx, userID, queue)
}

// ConsumeLaunch starts the session with the user's pending launch request.
func (s *ExamService) ConsumeLaunch(ctx context.Context, id, userID string) (exam.View, <-chan struct{}, error) {
	session, err := s.session(id, userID)
	if err != nil {
		return exam.View{}, nil, err
	}
	if err := launchable(session); err != nil {
		return exam.View{}, nil, err
	}
	req, err := s.deps.Handoff.Launch.Receive(ctx, userID)
	if err != nil {
		return exam.View{}, nil, err
	}
	view, done, err := s.launch(ctx, session, req)
	if err != nil {
		// Nothing was loaded, so the request stays available for a retry.
		if serr := s.deps.Handoff.Launch.Send(ctx, userID, req); serr != nil {
			log.Printf("[exam] restoring launch handoff for %s: %v", userID, serr)
		}
		return exam.View{}, nil, err
	}
	return view, done, nil
}

// launchable rejects sessions that cannot launch, before a handoff message is read.
func launchable(session *exam.Session) error {
	switch phase := session.Phase(); phase {
	case exam.PhaseSelection, exam.PhaseTopicConfig:
		return nil
	default:
		return fmt.Errorf("%w: launch from %s", domain.ErrInvalidTransition, phase)
	}
}

// ConsumeRevision starts an untimed exam over the user's pending revision queue.
func (s *ExamService) ConsumeRevision(ctx context.Context, id, userID string, presentation domain.Presentation) (exam.View, <-chan struct{}, error) {
	session, err := s.session(id, userID)
	if err != nil {
		return exam.View{}, nil, err
	}
	if err := launchable(session); err != nil {
		return exam.View{}, nil, err
	}
	queue, err := s.deps.Handoff.Revision.Receive(ctx, userID)
	if err != nil {
		return exam.View{}, nil, err
	}
	if presentation == "" {
		presentation = domain.SinglePage
	}
	cfg, err := selection.BuildRevision(queue.Title, queue.Questions, presentation)
	if err == nil {
		var done <-chan struct{}
		if done, err = session.Launch(ctx, cfg); err == nil {
			return session.Snapshot(), done, nil
		}
	}
	if serr := s.deps.Handoff.Revision.Send(ctx, userID, queue); serr != nil {
		log.Printf("[exam] restoring revision handoff for %s: %v", userID, serr)
	}
	return exam.View{}, nil, err
}

// Answer records a choice.
func (s *ExamService) Answer(_ context.Context, id, userID string, index, choice int) (exam.View, error) {
	session, err := s.session(id, userID)
	if err != nil {
		return exam.View{}, err
	}
	if err := session.Answer(index, choice); err != nil {
		return exam.View{}, err
	}
	return session.Snapshot(), nil
}

// Direction is a single-page navigation step.
type Direction string

const (
	Next     Direction = "next"
	Previous Direction = "previous"
)

// Navigate moves the visible question.
func (s *ExamService) Navigate(_ context.Context, id, userID string, dir Direction) (exam.View, error) {
	session, err := s.session(id, userID)
	if err != nil {
		return exam.View{}, err
	}
	switch dir {
	case Next:
		_, err = session.Next()
	case Previous:
		_, err = session.Previous()
	default:
		err = fmt.Errorf("%w: direction %q", domain.ErrInvalidConfig, dir)
	}
	if err != nil {
		return exam.View{}, err
	}
	return session.Snapshot(), nil
}

// ToggleBookmark flips the bookmark on a question.
func (s *ExamService) ToggleBookmark(ctx context.Context, id, userID string, index int) (bool, exam.View, error) {
	session, err := s.session(id, userID)
	if err != nil {
		return false, exam.View{}, err
	}
	marked, err := session.ToggleBookmark(ctx, index)
	if err != nil {
		return false, exam.View{}, err
	}
	return marked, session.Snapshot(), nil
}

func (s *ExamService) RequestSubmit(_ context.Context, id, userID string) (exam.Confirmation, error) {
	session, err := s.session(id, userID)
	if err != nil {
		return exam.Confirmation{}, err
	}
	return session.RequestSubmit()
}

func (s *ExamService) CancelSubmit(_ context.Context, id, userID string) (exam.View, error) {
	session, err := s.session(id, userID)
	if err != nil {
		return exam.View{}, err
	}
	if err := session.CancelSubmit(); err != nil {
		return exam.View{}, err
	}
	return session.Snapshot(), nil
}

func (s *ExamService) ConfirmSubmit(_ context.Context, id, userID string) (domain.ScoreResult, error) {
	session, err := s.session(id, userID)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	return session.ConfirmSubmit()
}

// Reset returns the session to SELECTION, discarding any in-flight load.
func (s *ExamService) Reset(_ context.Context, id, userID string) (exam.View, error) {
	session, err := s.session(id, userID)
	if err != nil {
		return exam.View{}, err
	}
	session.Reset()
	return session.Snapshot(), nil
}

func (s *ExamService) Review(_ context.Context, id, userID string, filter exam.ReviewFilter) ([]exam.ReviewItem, error) {
	session, err := s.session(id, userID)
	if err != nil {
		return nil, err
	}
	return session.Review(filter)
}

// Catalog is the subject/chapter/topic universe custom exams select from.
func (s *ExamService) Catalog() selection.Catalog { return s.deps.Catalog }

// Presets lists the preset catalog.
func (s *ExamService) Presets() []selection.Preset { return selection.Presets() }

// Papers lists the available past papers.
func (s *ExamService) Papers(ctx context.Context) ([]selection.PaperSummary, error) {
	if s.deps.Papers == nil {
		return []selection.PaperSummary{}, nil
	}
	return s.deps.Papers.ListPapers(ctx)
}

// FromBank serves the generate-from-db query.
func (s *ExamService) FromBank(ctx context.Context, req domain.BankRequest) ([]domain.Question, error) {
	if req.Subject == "" || req.Chapter == "" {
		return nil, fmt.Errorf("%w: subject and chapter are required", domain.ErrInvalidConfig)
	}
	if req.Count < 1 || req.Count > maxBankCount {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", domain.ErrInvalidConfig, maxBankCount)
	}
	if s.deps.Bank == nil {
		return []domain.Question{}, nil
	}
	qs, err := s.deps.Bank.FromBank(ctx, req)
	if err != nil {
		return nil, err
	}
	if qs == nil {
		qs = []domain.Question{}
	}
	return qs, nil
}

// SaveResult stores a result posted by the client for the signed-in user.
func (s *ExamService) SaveResult(ctx context.Context, userID string, result domain.ExamResult) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}
	if result.UserID != "" && result.UserID != userID {
		return domain.ErrForbidden
	}
	if result.TotalQuestions < 0 || result.Correct+result.Wrong+result.Skipped != result.TotalQuestions {
		return fmt.Errorf("%w: counts do not add up to totalQuestions", domain.ErrInvalidConfig)
	}
	if s.deps.Results == nil {
		return errors.New("result storage is not configured")
	}
	result.UserID = userID
	return s.deps.Results.SaveResult(ctx, result)
}

// Mistakes returns the user's recent wrong answers, newest first, for a revision queue.
func (s *ExamService) Mistakes(ctx context.Context, userID string) ([]domain.Question, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if s.deps.History == nil {
		return []domain.Question{}, nil
	}
	return s.deps.History.RecentMistakes(ctx, userID, s.mistakeWindow)
}

// Bookmarks returns the user's bookmarked questions.
func (s *ExamService) Bookmarks(ctx context.Context, userID string) ([]domain.Question, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if s.deps.Library == nil {
		return []domain.Question{}, nil
	}
	return s.deps.Library.ListBookmarks(ctx, userID)
}

// RunJanitor closes and forgets sessions idle for longer than the idle TTL
// until ctx is cancelled. Sessions still loading are left alone.
func (s *ExamService) RunJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictIdle()
		}
	}
}

func (s *ExamService) evictIdle() int {
	evicted := 0
	for _, session := range s.deps.Sessions.Idle(s.now().Add(-s.idleTTL)) {
		if session.Phase() == exam.PhaseLoading {
			continue
		}
		session.Close()
		s.deps.Sessions.Delete(session.ID())
		evicted++
	}
	if evicted > 0 {
		log.Printf("[exam] evicted %d idle sessions", evicted)
	}
	return evicted
}

func (s *ExamService) session(id, userID string) (*exam.Session, error) {
	session, ok := s.deps.Sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if owner := session.UserID(); owner != "" && owner != userID {
		return nil, domain.ErrForbidden
	}
	return session, nil
}
