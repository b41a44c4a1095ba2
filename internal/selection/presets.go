package selection

import (
	"fmt"

	"exam-prep-service/internal/domain"
)

const (
	// FullSyllabusChapter is the pseudo-chapter preset quotas are generated against.
	FullSyllabusChapter = "Full Syllabus"
	// AdmissionFocusTopic is sent instead of individual topics for presets.
	AdmissionFocusTopic = "Important Admission Topics"
)

// Preset is a fixed admission exam template.
type Preset struct {
	Name             string                `json:"name"`
	Standard         string                `json:"standard"`
	Quotas           []domain.SubjectQuota `json:"quotas"`
	TimeLimitMinutes int                   `json:"timeLimitMinutes"`
	NegativeMark     float64               `json:"negativeMark"`
}

// Total is the number of questions across all quotas.
func (p Preset) Total() int {
	n := 0
	for _, q := range p.Quotas {
		n += q.QuestionCount
	}
	return n
}

var presets = []Preset{
	{
		Name:     "Medical Admission",
		Standard: "Admission",
		Quotas: []domain.SubjectQuota{
			{Subject: "Biology", QuestionCount: 30},
			{Subject: "Chemistry", QuestionCount: 25},
			{Subject: "Physics", QuestionCount: 20},
			{Subject: "English", QuestionCount: 15},
			{Subject: "General Knowledge", QuestionCount: 10},
		},
		TimeLimitMinutes: 60,
		NegativeMark:     0.25,
	},
	{
		Name:     "Engineering Admission",
		Standard: "Admission",
		Quotas: []domain.SubjectQuota{
			{Subject: "Physics", QuestionCount: 25},
			{Subject: "Chemistry", QuestionCount: 25},
			{Subject: "Mathematics", QuestionCount: 25},
		},
		TimeLimitMinutes: 60,
		NegativeMark:     0.25,
	},
	{
		Name:     "University Admission",
		Standard: "Admission",
		Quotas: []domain.SubjectQuota{
			{Subject: "English", QuestionCount: 25},
			{Subject: "General Knowledge", QuestionCount: 25},
			{Subject: "Mathematics", QuestionCount: 20},
			{Subject: "Analytical Ability", QuestionCount: 10},
		},
		TimeLimitMinutes: 60,
		NegativeMark:     0.5,
	},
}

// Presets lists the admission catalog.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	for i, p := range presets {
		p.Quotas = append([]domain.SubjectQuota(nil), p.Quotas...)
		out[i] = p
	}
	return out
}

// FindPreset looks a preset up by name.
func FindPreset(name string) (Preset, bool) {
	for _, p := range Presets() {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Tier is the difficulty a student picks for a preset.
type Tier string

const (
	TierEasy     Tier = "EASY"
	TierStandard Tier = "STANDARD"
	TierHard     Tier = "HARD"
)

var tierInstructions = map[Tier]string{
	TierEasy:     "Keep questions at foundation level: direct recall and single-step reasoning.",
	TierStandard: "Match the typical difficulty of recent admission tests.",
	TierHard:     "Make questions challenging: multi-step reasoning and close distractors.",
}

// BuildPreset resolves a preset into a PRESET config. The tier only changes the
// generation instruction, never the quotas.
func BuildPreset(name string, tier Tier, presentation domain.Presentation) (domain.SessionConfig, error) {
	p, ok := FindPreset(name)
	if !ok {
		return domain.SessionConfig{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	if tier == "" {
		tier = TierStandard
	}
	instruction, ok := tierInstructions[tier]
	if !ok {
		return domain.SessionConfig{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	selections := make([]domain.TopicSelection, len(p.Quotas))
	for i, q := range p.Quotas {
		selections[i] = domain.TopicSelection{
			Subject: q.Subject,
			Chapter: FullSyllabusChapter,
			Topics:  []string{AdmissionFocusTopic},
		}
	}

	cfg := domain.SessionConfig{
		Mode:             domain.ModePreset,
		Title:            p.Name,
		Selections:       selections,
		Quotas:           p.Quotas,
		TargetCount:      p.Total(),
		Standard:         p.Standard,
		TimeLimitMinutes: p.TimeLimitMinutes,
		NegativeMark:     p.NegativeMark,
		Presentation:     presentation,
		Difficulty:       string(tier),
		FocusInstruction: fmt.Sprintf("%s exam, focus on %s. %s", p.Name, AdmissionFocusTopic, instruction),
	}
	if err := cfg.Validate(); err != nil {
		return domain.SessionConfig{}, err
	}
	return cfg, nil
}
