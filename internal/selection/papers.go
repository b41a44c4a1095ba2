package selection

import (
	"context"

	"exam-prep-service/internal/domain"
)

// PastPaperNegativeMark is applied to every past paper.
const PastPaperNegativeMark = 0.25

// Paper is a fixed past exam.
type Paper struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Subject          string            `json:"subject"`
	Year             int               `json:"year"`
	TimeLimitMinutes int               `json:"timeLimitMinutes"`
	Questions        []domain.Question `json:"questions,omitempty"`
}

// PaperSummary is the listing form of a paper, without its questions.
type PaperSummary struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Subject          string `json:"subject"`
	Year             int    `json:"year"`
	TimeLimitMinutes int    `json:"timeLimitMinutes"`
	QuestionCount    int    `json:"questionCount"`
}

func (p Paper) Summary() PaperSummary {
	return PaperSummary{
		ID:               p.ID,
		Title:            p.Title,
		Subject:          p.Subject,
		Year:             p.Year,
		TimeLimitMinutes: p.TimeLimitMinutes,
		QuestionCount:    len(p.Questions),
	}
}

// PaperRepository lists and loads past papers.
type PaperRepository interface {
	ListPapers(ctx context.Context) ([]PaperSummary, error)
	GetPaper(ctx context.Context, id string) (Paper, error)
}

// BuildPastPaper supplies the paper's questions and time limit verbatim.
func BuildPastPaper(p Paper, presentation domain.Presentation) (domain.SessionConfig, error) {
	cfg := domain.SessionConfig{
		Mode:             domain.ModePastPaper,
		Title:            p.Title,
		TargetCount:      len(p.Questions),
		TimeLimitMinutes: p.TimeLimitMinutes,
		NegativeMark:     PastPaperNegativeMark,
		Presentation:     presentation,
		FixedQuestions:   append([]domain.Question(nil), p.Questions...),
	}
	if err := cfg.Validate(); err != nil {
		return domain.SessionConfig{}, err
	}
	return cfg, nil
}
