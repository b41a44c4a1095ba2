package domain

import "fmt"

// OptionCount is the number of options every question carries.
const OptionCount = 4

// GeneralTopic is the bucket for questions without a topic tag.
const GeneralTopic = "General"

// Question is a four-option MCQ. Immutable once fetched.
type Question struct {
	ID                 string   `json:"id,omitempty"`
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
	Subject            string   `json:"subject,omitempty"`
	Chapter            string   `json:"chapter,omitempty"`
	Topic              string   `json:"topic,omitempty"`
	Difficulty         string   `json:"difficulty,omitempty"`
}

// Bookmarkable reports whether the question has a persistence identifier.
func (q Question) Bookmarkable() bool {
	return q.ID != ""
}

// TopicOrGeneral returns the topic tag or the fallback bucket.
func (q Question) TopicOrGeneral() string {
	if q.Topic == "" {
		return GeneralTopic
	}
	return q.Topic
}

// Validate checks the structural invariants of a question.
func (q Question) Validate() error {
	if q.Question == "" {
		return fmt.Errorf("%w: empty prompt", ErrInvalidQuestion)
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("%w: expected %d options, got %d", ErrInvalidQuestion, OptionCount, len(q.Options))
	}
	if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= OptionCount {
		return fmt.Errorf("%w: correct answer index %d", ErrInvalidQuestion, q.CorrectAnswerIndex)
	}
	return nil
}

// Redacted hides the answer key and explanation for display while an exam is running.
func (q Question) Redacted() Question {
	q.CorrectAnswerIndex = -1
	q.Explanation = ""
	return q
}

// BankRequest is the generate-from-db query for one subject/chapter/topics tuple.
type BankRequest struct {
	Subject string   `json:"subject"`
	Chapter string   `json:"chapter"`
	Topics  []string `json:"topics"`
	Count   int      `json:"count"`
}

// GenerationRequest is the AI generation fallback input.
type GenerationRequest struct {
	Configs          []TopicSelection `json:"configs,omitempty"`
	Quotas           []SubjectQuota   `json:"quotas,omitempty"`
	Standard         string           `json:"standard"`
	Count            int              `json:"count"`
	Difficulty       string           `json:"difficulty,omitempty"`
	FocusInstruction string           `json:"focusInstruction,omitempty"`
	Temperature      float64          `json:"temperature,omitempty"`
}

// HarvestBatch is an AI-generated batch submitted for storage in the question bank.
type HarvestBatch struct {
	Standard  string     `json:"standard"`
	Questions []Question `json:"questions"`
}
