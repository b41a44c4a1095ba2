package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/exam"
	"exam-prep-service/internal/generator"
	"exam-prep-service/internal/handoff"
	"exam-prep-service/internal/infra/memory"
	"exam-prep-service/internal/selection"
)

func TestCustomExamFromTopicConfig(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	v := service.Create(ctx, "u1")
	if v.Phase != exam.PhaseSelection {
		t.Fatalf("expected SELECTION, got %s", v.Phase)
	}

	v, err := service.TopicConfig(ctx, v.ID, "u1", selection.DisciplineSingle, []domain.TopicSelection{
		{Subject: "Physics", Chapter: "Vectors"},
	})
	if err != nil {
		t.Fatalf("topic config: %v", err)
	}
	if len(v.Selections) != 1 || len(v.Selections[0].Topics) != 3 {
		t.Fatalf("expected the chapter with all its topics, got %+v", v.Selections)
	}

	_, done, err := service.Launch(ctx, v.ID, "u1", domain.LaunchRequest{
		Mode:         domain.ModeCustom,
		Presentation: domain.AllAtOnce,
		TargetCount:  4,
		NegativeMark: 0.25,
	})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitDone(t, done)

	v, err = service.Get(ctx, v.ID, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.Phase != exam.PhaseExam || len(v.Questions) != 4 {
		t.Fatalf("expected EXAM with 4 questions, got %s with %d", v.Phase, len(v.Questions))
	}
	for _, q := range v.Questions {
		if q.CorrectAnswerIndex != -1 {
			t.Fatalf("answer key leaked during exam: %+v", q)
		}
	}
}

func TestCustomLaunchRequiresTopicConfig(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	v := service.Create(ctx, "u1")

	_, _, err := service.Launch(ctx, v.ID, "u1", domain.LaunchRequest{Mode: domain.ModeCustom, TargetCount: 2})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// Inline selections skip the picker.
	_, done, err := service.Launch(ctx, v.ID, "u1", domain.LaunchRequest{
		Mode:        domain.ModeCustom,
		TargetCount: 2,
		Selections:  []domain.TopicSelection{{Subject: "Chemistry", Chapter: "Gases", Topics: []string{"Gas Laws"}}},
	})
	if err != nil {
		t.Fatalf("inline launch: %v", err)
	}
	waitDone(t, done)
	if v, _ := service.Get(ctx, v.ID, "u1"); v.Phase != exam.PhaseExam {
		t.Fatalf("expected EXAM, got %s (%s)", v.Phase, v.Notice)
	}
}

func TestRejectedInlineLaunchKeepsSelection(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	v := service.Create(ctx, "u1")

	_, _, err := service.Launch(ctx, v.ID, "u1", domain.LaunchRequest{
		Mode:         domain.ModeCustom,
		TargetCount:  2,
		NegativeMark: 0.3,
		Selections:   []domain.TopicSelection{{Subject: "Chemistry", Chapter: "Gases"}},
	})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if v, _ := service.Get(ctx, v.ID, "u1"); v.Phase != exam.PhaseSelection {
		t.Fatalf("rejected launch moved the session to %s", v.Phase)
	}
}

func TestPresetLaunchUsesGenerator(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	v := service.Create(ctx, "u1")

	_, done, err := service.Launch(ctx, v.ID, "u1", domain.LaunchRequest{
		Mode:       domain.ModePreset,
		Preset:     "Engineering Admission",
		Difficulty: string(selection.TierHard),
	})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitDone(t, done)

	v, _ = service.Get(ctx, v.ID, "u1")
	if v.Phase != exam.PhaseExam || len(v.Questions) != 75 {
		t.Fatalf("expected 75 generated questions, got %s/%d (%s)", v.Phase, len(v.Questions), v.Notice)
	}
	if v.Config.TimeLimitMinutes != 60 || v.TimeLeftSeconds != 3600 {
		t.Fatalf("unexpected timer: %+v left=%d", v.Config, v.TimeLeftSeconds)
	}
}

func TestPastPaperLaunch(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	papers, err := service.Papers(ctx)
	if err != nil || len(papers) == 0 {
		t.Fatalf("papers: %v %v", papers, err)
	}
	v := service.Create(ctx, "")

	_, done, err := service.Launch(ctx, v.ID, "", domain.LaunchRequest{Mode: domain.ModePastPaper, PaperID: papers[0].ID})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitDone(t, done)
	v, _ = service.Get(ctx, v.ID, "")
	if len(v.Questions) != papers[0].QuestionCount || v.Config.NegativeMark != selection.PastPaperNegativeMark {
		t.Fatalf("unexpected paper exam: %d questions, config %+v", len(v.Questions), v.Config)
	}

	if _, _, err := service.Launch(ctx, service.Create(ctx, "").ID, "", domain.LaunchRequest{Mode: domain.ModePastPaper, PaperID: "nope"}); !errors.Is(err, selection.ErrPaperNotFound) {
		t.Fatalf("expected ErrPaperNotFound, got %v", err)
	}
}

func TestSessionOwnership(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	v := service.Create(ctx, "u1")

	if _, err := service.Get(ctx, v.ID, "u2"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := service.Get(ctx, "missing", "u1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestLaunchHandoffIsConsumedOnce(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	if err := service.SendLaunch(ctx, "u1", domain.LaunchRequest{Mode: domain.ModePreset, Preset: "Medical Admission"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	first := service.Create(ctx, "u1")
	_, done, err := service.ConsumeLaunch(ctx, first.ID, "u1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	waitDone(t, done)

	second := service.Create(ctx, "u1")
	if _, _, err := service.ConsumeLaunch(ctx, second.ID, "u1"); !errors.Is(err, domain.ErrHandoffEmpty) {
		t.Fatalf("expected ErrHandoffEmpty on second consume, got %v", err)
	}
}

func TestRejectedConsumeKeepsHandoff(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	running := service.Create(ctx, "u1")
	_, done, err := service.Launch(ctx, running.ID, "u1", domain.LaunchRequest{Mode: domain.ModePreset, Preset: "Medical Admission"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitDone(t, done)
	if v, _ := service.Get(ctx, running.ID, "u1"); v.Phase != exam.PhaseExam {
		t.Fatalf("expected EXAM, got %s (%s)", v.Phase, v.Notice)
	}

	if err := service.SendLaunch(ctx, "u1", domain.LaunchRequest{Mode: domain.ModePreset, Preset: "Medical Admission"}); err != nil {
		t.Fatalf("send launch: %v", err)
	}
	if _, _, err := service.ConsumeLaunch(ctx, running.ID, "u1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from EXAM, got %v", err)
	}

	// A preset cannot launch from topic configuration; that failure happens after the read.
	configuring := service.Create(ctx, "u1")
	if _, err := service.TopicConfig(ctx, configuring.ID, "u1", selection.DisciplineMulti, []domain.TopicSelection{{Subject: "Chemistry", Chapter: "Gases"}}); err != nil {
		t.Fatalf("topic config: %v", err)
	}
	if _, _, err := service.ConsumeLaunch(ctx, configuring.ID, "u1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from TOPIC_CONFIG, got %v", err)
	}

	fresh := service.Create(ctx, "u1")
	_, done, err = service.ConsumeLaunch(ctx, fresh.ID, "u1")
	if err != nil {
		t.Fatalf("launch handoff lost after rejected consumes: %v", err)
	}
	waitDone(t, done)

	queue := domain.RevisionQueue{Questions: []domain.Question{
		{ID: "m1", Question: "1?", Options: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: 1},
	}}
	if err := service.SendRevision(ctx, "u1", queue); err != nil {
		t.Fatalf("send revision: %v", err)
	}
	if _, _, err := service.ConsumeRevision(ctx, running.ID, "u1", ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for revision from EXAM, got %v", err)
	}
	again := service.Create(ctx, "u1")
	_, done, err = service.ConsumeRevision(ctx, again.ID, "u1", "")
	if err != nil {
		t.Fatalf("revision handoff lost after rejected consume: %v", err)
	}
	waitDone(t, done)
}

func TestRevisionHandoff(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	mistakes := []domain.Question{
		{ID: "m1", Question: "1?", Options: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: 1},
		{ID: "m2", Question: "2?", Options: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: 2},
	}

	if err := service.SendRevision(ctx, "u1", domain.RevisionQueue{}); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected empty queue rejected, got %v", err)
	}
	if err := service.SendRevision(ctx, "u1", domain.RevisionQueue{Questions: mistakes}); err != nil {
		t.Fatalf("send: %v", err)
	}

	v := service.Create(ctx, "u1")
	_, done, err := service.ConsumeRevision(ctx, v.ID, "u1", "")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	waitDone(t, done)

	v, _ = service.Get(ctx, v.ID, "u1")
	if v.Phase != exam.PhaseExam || len(v.Questions) != 2 || v.Questions[0].ID != "m1" {
		t.Fatalf("expected revision exam in order, got %s %+v", v.Phase, v.Questions)
	}
	if v.Config.TimeLimitMinutes != 0 || v.Config.NegativeMark != 0 {
		t.Fatalf("revision should be untimed and unpenalised: %+v", v.Config)
	}
}

func TestSubmitFlowPersistsResult(t *testing.T) {
	ctx := context.Background()
	service, results := newTestService(t)
	v := service.Create(ctx, "u1")
	_ = service.SendRevision(ctx, "u1", domain.RevisionQueue{Questions: []domain.Question{
		{ID: "m1", Question: "1?", Options: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: 1, Topic: "Optics"},
		{ID: "m2", Question: "2?", Options: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: 2},
	}})
	_, done, _ := service.ConsumeRevision(ctx, v.ID, "u1", domain.AllAtOnce)
	waitDone(t, done)

	if _, err := service.Answer(ctx, v.ID, "u1", 0, 1); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := service.ConfirmSubmit(ctx, v.ID, "u1"); !errors.Is(err, exam.ErrNotConfirming) {
		t.Fatalf("expected confirmation gate, got %v", err)
	}
	conf, err := service.RequestSubmit(ctx, v.ID, "u1")
	if err != nil || conf.Answered != 1 || conf.Total != 2 {
		t.Fatalf("request submit: %+v %v", conf, err)
	}
	res, err := service.ConfirmSubmit(ctx, v.ID, "u1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if res.CorrectCount != 1 || res.SkippedCount != 1 || res.FinalScore != 1 {
		t.Fatalf("unexpected score: %+v", res)
	}

	saved := results.wait(t)
	if saved.UserID != "u1" || saved.TotalQuestions != 2 || saved.Skipped != 1 || len(saved.Mistakes) != 0 {
		t.Fatalf("unexpected persisted result: %+v", saved)
	}

	items, err := service.Review(ctx, v.ID, "u1", exam.ReviewSkipped)
	if err != nil || len(items) != 1 || items[0].Index != 1 {
		t.Fatalf("review skipped: %+v %v", items, err)
	}
}

func TestSaveResultValidation(t *testing.T) {
	ctx := context.Background()
	service, results := newTestService(t)
	ok := domain.ExamResult{Subject: "Physics", TotalQuestions: 3, Correct: 1, Wrong: 1, Skipped: 1, Score: 0.75}

	if err := service.SaveResult(ctx, "", ok); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	other := ok
	other.UserID = "u2"
	if err := service.SaveResult(ctx, "u1", other); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	bad := ok
	bad.Correct = 3
	if err := service.SaveResult(ctx, "u1", bad); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if err := service.SaveResult(ctx, "u1", ok); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := results.wait(t); got.UserID != "u1" {
		t.Fatalf("expected user id stamped, got %+v", got)
	}
}

func TestFromBankValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	if _, err := service.FromBank(ctx, domain.BankRequest{Subject: "Physics", Count: 2}); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected chapter required, got %v", err)
	}
	qs, err := service.FromBank(ctx, domain.BankRequest{Subject: "Physics", Chapter: "Optics", Topics: []string{"Lenses"}, Count: 5})
	if err != nil {
		t.Fatalf("from bank: %v", err)
	}
	for _, q := range qs {
		if q.Topic != "Lenses" {
			t.Fatalf("topic filter ignored: %+v", q)
		}
	}
}

func TestJanitorEvictsIdleSessions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service, _ := newTestService(t, app.WithIdleTTL(time.Millisecond))
	v := service.Create(ctx, "u1")

	go service.RunJanitor(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := service.Get(ctx, v.ID, "u1"); errors.Is(err, domain.ErrSessionNotFound) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("idle session was not evicted")
}

func newTestService(t *testing.T, opts ...app.Option) (*app.ExamService, *resultRecorder) {
	t.Helper()
	bundle, err := memory.LoadBundle()
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	bank := memory.NewBankCache(memory.NewStaticBank(bundle.Questions), time.Minute)
	source := exam.NewSource(bank, generator.New(generator.NewMockClient(), 0), nil)
	results := &resultRecorder{saved: make(chan domain.ExamResult, 4)}

	opts = append([]app.Option{app.WithSessionOptions(exam.WithManualClock())}, opts...)
	service := app.NewExamService(app.Deps{
		Sessions: memory.NewExamStore(),
		Source:   source,
		Bank:     bank,
		Results:  results,
		Papers:   memory.NewPaperStore(bundle.Papers),
		Catalog:  bundle.Catalog,
		Handoff:  handoff.NewMailboxes(memory.NewHandoffStore(), time.Minute),
	}, opts...)
	return service, results
}

type resultRecorder struct {
	mu    sync.Mutex
	saved chan domain.ExamResult
}

func (r *resultRecorder) SaveResult(_ context.Context, result domain.ExamResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved <- result
	return nil
}

func (r *resultRecorder) wait(t *testing.T) domain.ExamResult {
	t.Helper()
	select {
	case res := <-r.saved:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("result was not saved")
		return domain.ExamResult{}
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loading did not resolve")
	}
}

func TestMistakesAndBookmarksNeedUser(t *testing.T) {
	ctx := context.Background()
	history := memory.NewResultStore()
	library := memory.NewBookmarkStore()
	service := app.NewExamService(app.Deps{
		Sessions: memory.NewExamStore(),
		History:  history,
		Library:  library,
	}, app.WithMistakeWindow(1))

	if _, err := service.Mistakes(ctx, ""); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := service.Bookmarks(ctx, ""); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	_ = history.SaveResult(ctx, domain.ExamResult{UserID: "u1", Mistakes: []domain.Question{{ID: "a"}, {ID: "b"}}})
	got, err := service.Mistakes(ctx, "u1")
	if err != nil || len(got) != 1 {
		t.Fatalf("expected window of 1 mistake, got %+v %v", got, err)
	}

	_ = library.SaveBookmark(ctx, "u1", domain.Question{ID: "q1"})
	marks, err := service.Bookmarks(ctx, "u1")
	if err != nil || len(marks) != 1 || marks[0].ID != "q1" {
		t.Fatalf("unexpected bookmarks: %+v %v", marks, err)
	}
}
