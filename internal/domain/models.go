package domain

import "fmt"

// Mode identifies how a session's questions are acquired.
type Mode string

const (
	ModeCustom    Mode = "CUSTOM"
	ModePreset    Mode = "PRESET"
	ModePastPaper Mode = "PAST_PAPER"
)

// Presentation is the exam display mode.
type Presentation string

const (
	// SinglePage shows one question at a time with forward/back navigation.
	SinglePage Presentation = "SINGLE_PAGE"
	// AllAtOnce shows every question on one scrollable page.
	AllAtOnce Presentation = "ALL_AT_ONCE"
)

// Valid reports whether p is a known presentation mode.
func (p Presentation) Valid() bool {
	return p == SinglePage || p == AllAtOnce
}

// TopicSelection is one subject/chapter with the chosen topics.
type TopicSelection struct {
	Subject string   `json:"subject"`
	Chapter string   `json:"chapter"`
	Topics  []string `json:"topics"`
}

// SubjectQuota is the preset form: a question count for a whole subject.
type SubjectQuota struct {
	Subject       string `json:"subject"`
	QuestionCount int    `json:"questionCount"`
}

// SessionConfig holds the resolved exam parameters. Built once per session.
type SessionConfig struct {
	Mode             Mode             `json:"mode"`
	Title            string           `json:"title"`
	Selections       []TopicSelection `json:"selections,omitempty"`
	Quotas           []SubjectQuota   `json:"quotas,omitempty"`
	TargetCount      int              `json:"targetCount"`
	Standard         string           `json:"standard"`
	TimeLimitMinutes int              `json:"timeLimitMinutes"`
	NegativeMark     float64          `json:"negativeMark"`
	Presentation     Presentation     `json:"presentation"`
	Difficulty       string           `json:"difficulty,omitempty"`
	FocusInstruction string           `json:"focusInstruction,omitempty"`
	FixedQuestions   []Question       `json:"fixedQuestions,omitempty"`
}

// NegativeMarks lists the penalties a session may use.
var NegativeMarks = []float64{0, 0.25, 0.5, 1.0}

// ValidNegativeMark reports whether v is an allowed penalty.
func ValidNegativeMark(v float64) bool {
	for _, m := range NegativeMarks {
		if m == v {
			return true
		}
	}
	return false
}

// Subject returns a display subject for persistence.
func (c SessionConfig) Subject() string {
	switch {
	case c.Title != "":
		return c.Title
	case len(c.Selections) == 1:
		return c.Selections[0].Subject
	case len(c.Quotas) == 1:
		return c.Quotas[0].Subject
	default:
		return "Mixed"
	}
}

// Validate checks mode-independent invariants.
func (c SessionConfig) Validate() error {
	if !c.Presentation.Valid() {
		return fmt.Errorf("%w: unknown presentation %q", ErrInvalidConfig, c.Presentation)
	}
	if !ValidNegativeMark(c.NegativeMark) {
		return fmt.Errorf("%w: negative mark %v", ErrInvalidConfig, c.NegativeMark)
	}
	if c.TimeLimitMinutes < 0 {
		return fmt.Errorf("%w: negative time limit", ErrInvalidConfig)
	}
	switch c.Mode {
	case ModePastPaper:
		if len(c.FixedQuestions) == 0 {
			return fmt.Errorf("%w: past paper without questions", ErrInvalidConfig)
		}
	case ModeCustom:
		if len(c.Selections) == 0 {
			return fmt.Errorf("%w: no chapters selected", ErrInvalidConfig)
		}
		if c.TargetCount < 1 {
			return fmt.Errorf("%w: target count must be at least 1", ErrInvalidConfig)
		}
	case ModePreset:
		if len(c.Quotas) == 0 || c.TargetCount < 1 {
			return fmt.Errorf("%w: preset without quotas", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

// TopicStat aggregates per-topic accuracy.
type TopicStat struct {
	Topic   string `json:"topic"`
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
}

// ScoreResult is derived once on submission.
type ScoreResult struct {
	CorrectCount int         `json:"correctCount"`
	WrongCount   int         `json:"wrongCount"`
	SkippedCount int         `json:"skippedCount"`
	Penalty      float64     `json:"penalty"`
	RawScore     float64     `json:"rawScore"`
	FinalScore   float64     `json:"finalScore"`
	TopicStats   []TopicStat `json:"topicStats"`
	Mistakes     []Question  `json:"mistakes"`
}

// ExamResult is the payload handed to the results endpoint.
type ExamResult struct {
	UserID         string      `json:"userId"`
	Subject        string      `json:"subject"`
	TotalQuestions int         `json:"totalQuestions"`
	Correct        int         `json:"correct"`
	Wrong          int         `json:"wrong"`
	Skipped        int         `json:"skipped"`
	Score          float64     `json:"score"`
	TopicStats     []TopicStat `json:"topicStats"`
	Mistakes       []Question  `json:"mistakes"`
}
