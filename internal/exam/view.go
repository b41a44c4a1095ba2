package exam

import (
	"fmt"

	"exam-prep-service/internal/domain"
)

// View is a JSON rendering of a session. Fields not legal in a phase are omitted.
type View struct {
	ID              string                  `json:"id"`
	Phase           Phase                   `json:"phase"`
	Notice          string                  `json:"notice,omitempty"`
	Selections      []domain.TopicSelection `json:"selections,omitempty"`
	Config          *domain.SessionConfig   `json:"config,omitempty"`
	Questions       []domain.Question       `json:"questions,omitempty"`
	CurrentIndex    *int                    `json:"currentIndex,omitempty"`
	Answers         []*int                  `json:"answers,omitempty"`
	TimeLeftSeconds int                     `json:"timeLeftSeconds"`
	ElapsedSeconds  int                     `json:"elapsedSeconds"`
	Bookmarked      []int                   `json:"bookmarked,omitempty"`
	Controls        *Controls               `json:"controls,omitempty"`
	Confirmation    *Confirmation           `json:"confirmation,omitempty"`
	Result          *domain.ScoreResult     `json:"result,omitempty"`
	SubmittedBy     string                  `json:"submittedBy,omitempty"`
}

// Snapshot renders the session for clients. Answer keys stay hidden until RESULT.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{ID: s.id, Phase: s.state.phase()}
	switch st := s.state.(type) {
	case *selectionState:
		v.Notice = st.notice
	case *topicConfigState:
		v.Selections = cloneSelections(st.selections)
	case *loadingState:
		cfg := publicConfig(st.cfg)
		v.Config = &cfg
	case *examState:
		cfg := publicConfig(st.cfg)
		v.Config = &cfg
		v.Questions = make([]domain.Question, len(st.questions))
		for i, q := range st.questions {
			v.Questions[i] = q.Redacted()
		}
		if st.cfg.Presentation == domain.SinglePage {
			current := st.current
			v.CurrentIndex = &current
		}
		v.Answers = answerPointers(st.answers)
		v.TimeLeftSeconds = st.timeLeft
		v.ElapsedSeconds = st.elapsed
		v.Bookmarked = sortedIndices(st.bookmarks)
		controls := controlsFor(st)
		v.Controls = &controls
		if st.confirming {
			v.Confirmation = &Confirmation{Answered: st.answered(), Total: len(st.questions)}
		}
	case *resultState:
		cfg := publicConfig(st.cfg)
		v.Config = &cfg
		v.Questions = append([]domain.Question(nil), st.questions...)
		v.Answers = answerPointers(st.answers)
		v.ElapsedSeconds = st.elapsed
		v.Bookmarked = sortedIndices(st.bookmarks)
		score := st.score
		v.Result = &score
		v.SubmittedBy = st.trigger
	}
	return v
}

func publicConfig(cfg domain.SessionConfig) domain.SessionConfig {
	cfg.FixedQuestions = nil
	return cfg
}

func answerPointers(answers []int) []*int {
	out := make([]*int, len(answers))
	for i, a := range answers {
		if a == Skipped {
			continue
		}
		a := a
		out[i] = &a
	}
	return out
}

// ReviewFilter selects which questions a result review shows.
type ReviewFilter string

const (
	ReviewAll        ReviewFilter = "all"
	ReviewCorrect    ReviewFilter = "correct"
	ReviewWrong      ReviewFilter = "wrong"
	ReviewSkipped    ReviewFilter = "skipped"
	ReviewBookmarked ReviewFilter = "bookmarked"
)

// ReviewItem is one question in the result review.
type ReviewItem struct {
	Index      int             `json:"index"`
	Question   domain.Question `json:"question"`
	Answer     *int            `json:"answer"`
	Status     string          `json:"status"`
	Bookmarked bool            `json:"bookmarked"`
}

// Review lists result questions matching filter. The score is never recomputed.
func (s *Session) Review(filter ReviewFilter) ([]ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.state.(*resultState)
	if !ok {
		return nil, fmt.Errorf("%w: review in %s", domain.ErrInvalidTransition, s.state.phase())
	}
	if filter == "" {
		filter = ReviewAll
	}

	items := []ReviewItem{}
	answers := answerPointers(rs.answers)
	for i, q := range rs.questions {
		status := "wrong"
		switch {
		case rs.answers[i] == Skipped:
			status = "skipped"
		case rs.answers[i] == q.CorrectAnswerIndex:
			status = "correct"
		}
		_, marked := rs.bookmarks[i]

		switch filter {
		case ReviewAll:
		case ReviewBookmarked:
			if !marked {
				continue
			}
		case ReviewCorrect, ReviewWrong, ReviewSkipped:
			if string(filter) != status {
				continue
			}
		default:
			return nil, fmt.Errorf("unknown review filter %q", filter)
		}
		items = append(items, ReviewItem{Index: i, Question: q, Answer: answers[i], Status: status, Bookmarked: marked})
	}
	return items, nil
}
