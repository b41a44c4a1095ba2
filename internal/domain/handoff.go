package domain

// LaunchRequest describes how to build a session config. It is both the launch
// endpoint body and the payload of a launch handoff.
type LaunchRequest struct {
	Mode             Mode         `json:"mode"`
	Presentation     Presentation `json:"presentation"`
	TargetCount      int          `json:"targetCount,omitempty"`
	Standard         string       `json:"standard,omitempty"`
	TimeLimitMinutes int          `json:"timeLimitMinutes,omitempty"`
	NegativeMark     float64      `json:"negativeMark,omitempty"`
	Difficulty       string       `json:"difficulty,omitempty"`
	Preset           string       `json:"preset,omitempty"`
	PaperID          string       `json:"paperId,omitempty"`
	// Selections lets a custom launch skip the interactive topic picker.
	Selections []TopicSelection `json:"selections,omitempty"`
}

// RevisionQueue carries mistakes to revise across a navigation boundary.
type RevisionQueue struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}
