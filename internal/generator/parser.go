package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"exam-prep-service/internal/domain"
)

type GeneratedBatch struct {
	Questions []GeneratedQuestion `json:"questions"`
}

type GeneratedQuestion struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex *int     `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
	Subject            string   `json:"subject"`
	Chapter            string   `json:"chapter"`
	Topic              string   `json:"topic"`
}

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// ParseResponse decodes a model response. Questions that break the MCQ shape
// are dropped and described in the returned problems; a batch with no usable
// question is a *ValidationError.
func ParseResponse(responseBody string) ([]domain.Question, []string, error) {
	cleaned := stripCodeFences(responseBody)

	var batch GeneratedBatch
	if err := json.Unmarshal([]byte(cleaned), &batch); err != nil {
		return nil, nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if len(batch.Questions) == 0 {
		return nil, nil, &ValidationError{Errors: []string{"no questions in batch"}}
	}

	var (
		out      []domain.Question
		problems []string
	)
	for i, gq := range batch.Questions {
		if gq.CorrectAnswerIndex == nil {
			problems = append(problems, fmt.Sprintf("question %d: missing correctAnswerIndex", i+1))
			continue
		}
		q := domain.Question{
			Question:           strings.TrimSpace(gq.Question),
			Options:            gq.Options,
			CorrectAnswerIndex: *gq.CorrectAnswerIndex,
			Explanation:        strings.TrimSpace(gq.Explanation),
			Subject:            gq.Subject,
			Chapter:            gq.Chapter,
			Topic:              gq.Topic,
		}
		if err := q.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("question %d: %v", i+1, err))
			continue
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, problems, &ValidationError{Errors: problems}
	}
	return out, problems, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
