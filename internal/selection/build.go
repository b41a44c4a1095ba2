package selection

import (
	"fmt"

	"exam-prep-service/internal/domain"
)

// CustomOptions are the exam parameters chosen alongside a custom selection.
type CustomOptions struct {
	Title            string              `json:"title"`
	TargetCount      int                 `json:"targetCount"`
	Standard         string              `json:"standard"`
	TimeLimitMinutes int                 `json:"timeLimitMinutes"`
	NegativeMark     float64             `json:"negativeMark"`
	Presentation     domain.Presentation `json:"presentation"`
	Difficulty       string              `json:"difficulty"`
}

// BuildCustom validates a selection and turns it into a CUSTOM session config.
func BuildCustom(sel Selection, opts CustomOptions) (domain.SessionConfig, error) {
	chosen := sel.Picks()
	if len(chosen) == 0 {
		return domain.SessionConfig{}, ErrNoChapters
	}
	for _, p := range chosen {
		if len(p.Topics) == 0 {
			return domain.SessionConfig{}, fmt.Errorf("%w: %s / %s", ErrChapterWithoutTopics, p.Subject, p.Chapter)
		}
	}

	cfg := domain.SessionConfig{
		Mode:             domain.ModeCustom,
		Title:            opts.Title,
		Selections:       chosen,
		TargetCount:      opts.TargetCount,
		Standard:         opts.Standard,
		TimeLimitMinutes: opts.TimeLimitMinutes,
		NegativeMark:     opts.NegativeMark,
		Presentation:     opts.Presentation,
		Difficulty:       opts.Difficulty,
	}
	if err := cfg.Validate(); err != nil {
		return domain.SessionConfig{}, err
	}
	return cfg, nil
}

// BuildRevision wraps a mistake queue into a fixed-question session. Revision
// is untimed and unpenalised.
func BuildRevision(title string, questions []domain.Question, presentation domain.Presentation) (domain.SessionConfig, error) {
	if title == "" {
		title = "Mistake Revision"
	}
	cfg := domain.SessionConfig{
		Mode:           domain.ModePastPaper,
		Title:          title,
		TargetCount:    len(questions),
		Presentation:   presentation,
		FixedQuestions: append([]domain.Question(nil), questions...),
	}
	if err := cfg.Validate(); err != nil {
		return domain.SessionConfig{}, err
	}
	return cfg, nil
}
