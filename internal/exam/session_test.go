package exam_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/exam"
)

type stubAcquirer struct {
	questions []domain.Question
	err       error
	release   chan struct{}
}

func (a *stubAcquirer) Acquire(ctx context.Context, cfg domain.SessionConfig) ([]domain.Question, error) {
	if a.release != nil {
		<-a.release
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.questions, nil
}

type recordingSink struct {
	saved chan domain.ExamResult
}

func newRecordingSink() *recordingSink {
	return &recordingSink{saved: make(chan domain.ExamResult, 8)}
}

func (r *recordingSink) SaveResult(_ context.Context, result domain.ExamResult) error {
	r.saved <- result
	return nil
}

type memoryBookmarks struct {
	mu    sync.Mutex
	ids   map[string]bool
	err   error
	calls int
}

func (m *memoryBookmarks) SaveBookmark(_ context.Context, _ string, q domain.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.ids[q.ID] = true
	return nil
}

func (m *memoryBookmarks) RemoveBookmark(_ context.Context, _ string, questionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	delete(m.ids, questionID)
	return nil
}

func paperConfig(questions []domain.Question, minutes int, mark float64, presentation domain.Presentation) domain.SessionConfig {
	return domain.SessionConfig{
		Mode:             domain.ModePastPaper,
		Title:            "Physics 2023",
		FixedQuestions:   questions,
		TimeLimitMinutes: minutes,
		NegativeMark:     mark,
		Presentation:     presentation,
	}
}

func startExam(t *testing.T, s *exam.Session, cfg domain.SessionConfig) {
	t.Helper()
	done, err := s.Launch(context.Background(), cfg)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitDone(t, done)
	if s.Phase() != exam.PhaseExam {
		t.Fatalf("expected EXAM, got %s", s.Phase())
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loading did not finish")
	}
}

func TestTimeoutSubmitsExactlyOnce(t *testing.T) {
	questions := []domain.Question{mcq("q1", "A", 0), mcq("q2", "A", 1)}
	sink := newRecordingSink()
	s := exam.NewSession("s1", "u1", exam.Deps{Source: exam.NewSource(nil, nil, nil), Results: sink}, exam.WithManualClock())
	startExam(t, s, paperConfig(questions, 1, 0.25, domain.AllAtOnce))

	if err := s.Answer(0, 0); err != nil {
		t.Fatalf("answer: %v", err)
	}
	for i := 0; i < 59; i++ {
		s.Tick()
	}
	if s.Phase() != exam.PhaseExam {
		t.Fatalf("exam should still run after 59 ticks")
	}
	s.Tick()
	if s.Phase() != exam.PhaseResult {
		t.Fatalf("expected RESULT after 60 ticks, got %s", s.Phase())
	}
	for i := 0; i < 10; i++ {
		s.Tick()
	}

	result, err := s.Result()
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if result.FinalScore != 1 || result.SkippedCount != 1 || result.WrongCount != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if view := s.Snapshot(); view.SubmittedBy != "timeout" {
		t.Fatalf("expected timeout trigger, got %q", view.SubmittedBy)
	}

	select {
	case saved := <-sink.saved:
		if saved.UserID != "u1" || saved.Subject != "Physics 2023" || saved.TotalQuestions != 2 {
			t.Fatalf("unexpected payload: %+v", saved)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("result was not persisted")
	}
	select {
	case extra := <-sink.saved:
		t.Fatalf("result persisted twice: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManualSubmitRacingTimeoutScoresOnce(t *testing.T) {
	questions := []domain.Question{mcq("q1", "A", 0)}
	sink := newRecordingSink()
	s := exam.NewSession("s1", "u1", exam.Deps{Source: exam.NewSource(nil, nil, nil), Results: sink}, exam.WithManualClock())
	startExam(t, s, paperConfig(questions, 1, 0, domain.AllAtOnce))

	for i := 0; i < 59; i++ {
		s.Tick()
	}
	if _, err := s.RequestSubmit(); err != nil {
		t.Fatalf("request submit: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Tick()
	}()
	go func() {
		defer wg.Done()
		_, _ = s.ConfirmSubmit()
	}()
	wg.Wait()

	if s.Phase() != exam.PhaseResult {
		t.Fatalf("expected RESULT, got %s", s.Phase())
	}
	<-sink.saved
	select {
	case <-sink.saved:
		t.Fatalf("scored twice")
	case <-time.After(50 * time.Millisecond):
	}
	if _, err := s.ConfirmSubmit(); !errors.Is(err, exam.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestNoTimeLimitOnlyCountsElapsed(t *testing.T) {
	s := exam.NewSession("s1", "", exam.Deps{Source: exam.NewSource(nil, nil, nil)}, exam.WithManualClock())
	startExam(t, s, paperConfig([]domain.Question{mcq("q1", "A", 0)}, 0, 0, domain.AllAtOnce))

	for i := 0; i < 500; i++ {
		s.Tick()
	}
	view := s.Snapshot()
	if view.Phase != exam.PhaseExam || view.ElapsedSeconds != 500 || view.TimeLeftSeconds != 0 {
		t.Fatalf("unexpected view: phase=%s elapsed=%d left=%d", view.Phase, view.ElapsedSeconds, view.TimeLeftSeconds)
	}
}

func TestSinglePageNavigationBoundaries(t *testing.T) {
	questions := []domain.Question{mcq("q1", "A", 0), mcq("q2", "A", 1), mcq("q3", "A", 2)}
	s := exam.NewSession("s1", "", exam.Deps{Source: exam.NewSource(nil, nil, nil)}, exam.WithManualClock())
	startExam(t, s, paperConfig(questions, 0, 0, domain.SinglePage))

	c := s.Controls()
	if c.CanPrevious || !c.CanNext || c.CanSubmit {
		t.Fatalf("unexpected controls on first question: %+v", c)
	}
	if _, err := s.Previous(); !errors.Is(err, exam.ErrAtFirstQuestion) {
		t.Fatalf("expected ErrAtFirstQuestion, got %v", err)
	}
	if _, err := s.RequestSubmit(); !errors.Is(err, exam.ErrSubmitUnavailable) {
		t.Fatalf("expected ErrSubmitUnavailable before last question, got %v", err)
	}
	if err := s.Answer(1, 0); !errors.Is(err, exam.ErrNotVisible) {
		t.Fatalf("expected ErrNotVisible, got %v", err)
	}

	for want := 1; want <= 2; want++ {
		idx, err := s.Next()
		if err != nil || idx != want {
			t.Fatalf("next: idx=%d err=%v", idx, err)
		}
	}
	c = s.Controls()
	if !c.CanPrevious || c.CanNext || !c.CanSubmit {
		t.Fatalf("unexpected controls on last question: %+v", c)
	}
	if _, err := s.Next(); !errors.Is(err, exam.ErrAtLastQuestion) {
		t.Fatalf("expected ErrAtLastQuestion, got %v", err)
	}
	if idx, err := s.Previous(); err != nil || idx != 1 {
		t.Fatalf("previous from last: idx=%d err=%v", idx, err)
	}
}

func TestAllAtOnceAnswersAnyQuestion(t *testing.T) {
	questions := []domain.Question{mcq("q1", "A", 0), mcq("q2", "A", 1)}
	s := exam.NewSession("s1", "", exam.Deps{Source: exam.NewSource(nil, nil, nil)}, exam.WithManualClock())
	startExam(t, s, paperConfig(questions, 0, 0, domain.AllAtOnce))

	if _, err := s.Next(); !errors.Is(err, exam.ErrNavigationUnavailable) {
		t.Fatalf("expected ErrNavigationUnavailable, got %v", err)
	}
	if err := s.Answer(1, 1); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := s.Answer(0, 4); !errors.Is(err, domain.ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
	if err := s.Answer(5, 0); !errors.Is(err, domain.ErrQuestionIndex) {
		t.Fatalf("expected ErrQuestionIndex, got %v", err)
	}

	if _, err := s.ConfirmSubmit(); !errors.Is(err, exam.ErrNotConfirming) {
		t.Fatalf("expected ErrNotConfirming, got %v", err)
	}
	conf, err := s.RequestSubmit()
	if err != nil || conf.Answered != 1 || conf.Total != 2 {
		t.Fatalf("request submit: %+v %v", conf, err)
	}
	if err := s.CancelSubmit(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := s.ConfirmSubmit(); !errors.Is(err, exam.ErrNotConfirming) {
		t.Fatalf("cancel should close the gate, got %v", err)
	}
	_, _ = s.RequestSubmit()
	result, err := s.ConfirmSubmit()
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.CorrectCount != 1 || result.SkippedCount != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSnapshotHidesAnswerKeysDuringExam(t *testing.T) {
	questions := []domain.Question{mcq("q1", "A", 2)}
	s := exam.NewSession("s1", "", exam.Deps{Source: exam.NewSource(nil, nil, nil)}, exam.WithManualClock())
	startExam(t, s, paperConfig(questions, 5, 0, domain.SinglePage))

	view := s.Snapshot()
	if view.Questions[0].CorrectAnswerIndex != -1 || view.Questions[0].Explanation != "" {
		t.Fatalf("answer key leaked: %+v", view.Questions[0])
	}
	if view.Config == nil || view.Config.FixedQuestions != nil {
		t.Fatalf("config should be present without fixed questions")
	}
	if view.CurrentIndex == nil || *view.CurrentIndex != 0 || view.TimeLeftSeconds != 300 {
		t.Fatalf("unexpected exam view: %+v", view)
	}

	_, _ = s.RequestSubmit()
	_, _ = s.ConfirmSubmit()
	view = s.Snapshot()
	if view.Questions[0].CorrectAnswerIndex != 2 || view.Result == nil {
		t.Fatalf("result view should reveal answers: %+v", view)
	}
}

func TestBookmarkToggleIsSymmetric(t *testing.T) {
	questions := []domain.Question{mcq("q1", "A", 0), mcq("", "A", 1)}
	store := &memoryBookmarks{ids: map[string]bool{}}
	s := exam.NewSession("s1", "u1", exam.Deps{Source: exam.NewSource(nil, nil, nil), Bookmarks: store}, exam.WithManualClock())
	startExam(t, s, paperConfig(questions, 0, 0, domain.AllAtOnce))

	on, err := s.ToggleBookmark(context.Background(), 0)
	if err != nil || !on || !store.ids["q1"] {
		t.Fatalf("first toggle: on=%v err=%v store=%v", on, err, store.ids)
	}
	on, err = s.ToggleBookmark(context.Background(), 0)
	if err != nil || on || store.ids["q1"] {
		t.Fatalf("second toggle: on=%v err=%v store=%v", on, err, store.ids)
	}
	if len(s.Snapshot().Bookmarked) != 0 {
		t.Fatalf("bookmark set should be back to empty")
	}

	calls := store.calls
	on, err = s.ToggleBookmark(context.Background(), 1)
	if err != nil || on || store.calls != calls {
		t.Fatalf("question without id should be a no-op: on=%v err=%v", on, err)
	}
}

func TestBookmarkStoreFailureReverts(t *testing.T) {
	store := &memoryBookmarks{ids: map[string]bool{}, err: errors.New("db down")}
	s := exam.NewSession("s1", "u1", exam.Deps{Source: exam.NewSource(nil, nil, nil), Bookmarks: store}, exam.WithManualClock())
	startExam(t, s, paperConfig([]domain.Question{mcq("q1", "A", 0)}, 0, 0, domain.AllAtOnce))

	if _, err := s.ToggleBookmark(context.Background(), 0); err == nil {
		t.Fatalf("expected store error")
	}
	if len(s.Snapshot().Bookmarked) != 0 {
		t.Fatalf("failed toggle should not stick")
	}
}

func TestBookmarkRequiresUser(t *testing.T) {
	s := exam.NewSession("s1", "", exam.Deps{Source: exam.NewSource(nil, nil, nil)}, exam.WithManualClock())
	startExam(t, s, paperConfig([]domain.Question{mcq("q1", "A", 0)}, 0, 0, domain.AllAtOnce))

	if _, err := s.ToggleBookmark(context.Background(), 0); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAnonymousResultIsNotPersisted(t *testing.T) {
	sink := newRecordingSink()
	s := exam.NewSession("s1", "", exam.Deps{Source: exam.NewSource(nil, nil, nil), Results: sink}, exam.WithManualClock())
	startExam(t, s, paperConfig([]domain.Question{mcq("q1", "A", 0)}, 0, 0, domain.AllAtOnce))

	_, _ = s.RequestSubmit()
	if _, err := s.ConfirmSubmit(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	select {
	case <-sink.saved:
		t.Fatalf("anonymous result should not be saved")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLaunchFailureReturnsToSelection(t *testing.T) {
	src := &stubAcquirer{err: domain.ErrNoQuestions}
	s := exam.NewSession("s1", "", exam.Deps{Source: src}, exam.WithManualClock())

	done, err := s.Launch(context.Background(), paperConfig([]domain.Question{mcq("q1", "A", 0)}, 0, 0, domain.AllAtOnce))
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitDone(t, done)

	view := s.Snapshot()
	if view.Phase != exam.PhaseSelection || view.Notice == "" {
		t.Fatalf("expected SELECTION with notice, got %+v", view)
	}
}

func TestLaunchGatesByPhase(t *testing.T) {
	s := exam.NewSession("s1", "", exam.Deps{Source: &stubAcquirer{}}, exam.WithManualClock())

	custom := customConfig(5, "c1")
	if _, err := s.Launch(context.Background(), custom); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("custom launch from SELECTION should fail, got %v", err)
	}
	if err := s.BeginTopicConfig(custom.Selections); err != nil {
		t.Fatalf("begin topic config: %v", err)
	}
	if s.Phase() != exam.PhaseTopicConfig {
		t.Fatalf("expected TOPIC_CONFIG, got %s", s.Phase())
	}
	bad := custom
	bad.NegativeMark = 0.3
	if _, err := s.Launch(context.Background(), bad); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLateAcquisitionIsDiscardedAfterReset(t *testing.T) {
	src := &stubAcquirer{questions: []domain.Question{mcq("q1", "A", 0)}, release: make(chan struct{})}
	s := exam.NewSession("s1", "", exam.Deps{Source: src}, exam.WithManualClock())

	done, err := s.Launch(context.Background(), paperConfig(src.questions, 0, 0, domain.AllAtOnce))
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if s.Phase() != exam.PhaseLoading {
		t.Fatalf("expected LOADING, got %s", s.Phase())
	}
	s.Reset()
	close(src.release)
	waitDone(t, done)

	if s.Phase() != exam.PhaseSelection {
		t.Fatalf("late question set should be discarded, got %s", s.Phase())
	}
}

func TestReviewFilters(t *testing.T) {
	questions := []domain.Question{mcq("q1", "A", 0), mcq("q2", "A", 1), mcq("q3", "A", 2)}
	s := exam.NewSession("s1", "u1", exam.Deps{Source: exam.NewSource(nil, nil, nil)}, exam.WithManualClock())
	startExam(t, s, paperConfig(questions, 0, 0, domain.AllAtOnce))

	if _, err := s.Review(exam.ReviewAll); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("review before result should fail, got %v", err)
	}
	_ = s.Answer(0, 0)
	_ = s.Answer(1, 3)
	_, _ = s.RequestSubmit()
	_, _ = s.ConfirmSubmit()
	if _, err := s.ToggleBookmark(context.Background(), 2); err != nil {
		t.Fatalf("bookmark in result: %v", err)
	}

	cases := map[exam.ReviewFilter][]int{
		exam.ReviewAll:        {0, 1, 2},
		exam.ReviewCorrect:    {0},
		exam.ReviewWrong:      {1},
		exam.ReviewSkipped:    {2},
		exam.ReviewBookmarked: {2},
	}
	for filter, want := range cases {
		items, err := s.Review(filter)
		if err != nil {
			t.Fatalf("%s: %v", filter, err)
		}
		if len(items) != len(want) {
			t.Fatalf("%s: expected %d items, got %d", filter, len(want), len(items))
		}
		for i, item := range items {
			if item.Index != want[i] {
				t.Fatalf("%s: item %d has index %d, want %d", filter, i, item.Index, want[i])
			}
		}
	}
	if _, err := s.Review("starred"); err == nil {
		t.Fatalf("unknown filter should fail")
	}
}

func TestRealTickerCountsDown(t *testing.T) {
	s := exam.NewSession("s1", "", exam.Deps{Source: exam.NewSource(nil, nil, nil)}, exam.WithTickInterval(time.Millisecond))
	defer s.Close()
	startExam(t, s, paperConfig([]domain.Question{mcq("q1", "A", 0)}, 1, 0, domain.AllAtOnce))

	deadline := time.Now().Add(5 * time.Second)
	for s.Phase() != exam.PhaseResult {
		if time.Now().After(deadline) {
			t.Fatalf("timer never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
