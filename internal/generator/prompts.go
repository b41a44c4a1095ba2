package generator

import (
	"fmt"
	"strings"
)

const systemPrompt = `You write multiple-choice questions for students preparing for school and admission exams.

Rules:
- Every question has exactly 4 options and exactly one correct option.
- correctAnswerIndex is the 0-based index of the correct option.
- Options are plausible, mutually exclusive and of similar length.
- The explanation says why the correct option is right in one or two sentences.
- Spread the correct option across positions; do not favour one index.
- Tag each question with the subject, chapter and topic it tests.

Respond with JSON only, no prose, in this shape:
{"questions":[{"question":"...","options":["...","...","...","..."],"correctAnswerIndex":0,"explanation":"...","subject":"...","chapter":"...","topic":"..."}]}`

// SystemPrompt is shared by every generation call.
func SystemPrompt() string { return systemPrompt }

// BuildUserPrompt describes one target group.
func BuildUserPrompt(t target, standard, difficulty, focus string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d questions.\n", n)
	if standard != "" {
		fmt.Fprintf(&b, "Academic standard: %s.\n", standard)
	}
	if t.subject != "" {
		fmt.Fprintf(&b, "Subject: %s.\n", t.subject)
	}
	if t.chapter != "" {
		fmt.Fprintf(&b, "Chapter: %s.\n", t.chapter)
	}
	if len(t.topics) > 0 {
		fmt.Fprintf(&b, "Cover these topics evenly: %s.\n", strings.Join(t.topics, ", "))
	}
	if difficulty != "" {
		fmt.Fprintf(&b, "Difficulty: %s.\n", difficulty)
	}
	if focus != "" {
		fmt.Fprintf(&b, "%s\n", focus)
	}
	return b.String()
}
