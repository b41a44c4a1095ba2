package battle

import "time"

// Position is where a battle is on its shared clock.
type Position struct {
	QuestionIndex int
	TimeLeft      time.Duration
	Finished      bool
}

// TimeLeftSeconds rounds the remaining time up to whole seconds.
func (p Position) TimeLeftSeconds() int {
	return int((p.TimeLeft + time.Second - 1) / time.Second)
}

// Derive computes the current question and its remaining time from the server
// start anchor alone, so missed polls never accumulate drift.
func Derive(start, now time.Time, perQuestion time.Duration, total int) Position {
	if perQuestion <= 0 || total <= 0 {
		return Position{QuestionIndex: total, Finished: true}
	}
	elapsed := now.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	index := int(elapsed / perQuestion)
	if index >= total {
		return Position{QuestionIndex: total, Finished: true}
	}
	return Position{
		QuestionIndex: index,
		TimeLeft:      perQuestion - elapsed%perQuestion,
	}
}
