package exam

import (
	"sort"

	"exam-prep-service/internal/domain"
)

// Phase is the externally visible lifecycle step of a session.
type Phase string

const (
	PhaseSelection   Phase = "SELECTION"
	PhaseTopicConfig Phase = "TOPIC_CONFIG"
	PhaseLoading     Phase = "LOADING"
	PhaseExam        Phase = "EXAM"
	PhaseResult      Phase = "RESULT"
)

// state is the tagged union behind a Session; each variant only carries the
// data that is legal in its phase.
type state interface {
	phase() Phase
}

type selectionState struct {
	notice string
}

func (*selectionState) phase() Phase { return PhaseSelection }

type topicConfigState struct {
	selections []domain.TopicSelection
}

func (*topicConfigState) phase() Phase { return PhaseTopicConfig }

type loadingState struct {
	cfg        domain.SessionConfig
	generation uint64
	done       chan struct{}
}

func (*loadingState) phase() Phase { return PhaseLoading }

type examState struct {
	cfg        domain.SessionConfig
	questions  []domain.Question
	answers    []int
	current    int
	timeLeft   int
	elapsed    int
	bookmarks  map[int]struct{}
	confirming bool
	submitted  bool
}

func (*examState) phase() Phase { return PhaseExam }

func newExamState(cfg domain.SessionConfig, questions []domain.Question) *examState {
	answers := make([]int, len(questions))
	for i := range answers {
		answers[i] = Skipped
	}
	return &examState{
		cfg:       cfg,
		questions: questions,
		answers:   answers,
		timeLeft:  cfg.TimeLimitMinutes * 60,
		bookmarks: make(map[int]struct{}),
	}
}

func (e *examState) answered() int {
	n := 0
	for _, a := range e.answers {
		if a != Skipped {
			n++
		}
	}
	return n
}

func (e *examState) last() int {
	return len(e.questions) - 1
}

type resultState struct {
	cfg       domain.SessionConfig
	questions []domain.Question
	answers   []int
	elapsed   int
	bookmarks map[int]struct{}
	score     domain.ScoreResult
	trigger   string
}

func (*resultState) phase() Phase { return PhaseResult }

func sortedIndices(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
