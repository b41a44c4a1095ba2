package domain

import "time"

// BattleStatus is the server-side room status.
type BattleStatus string

const (
	BattleWaiting  BattleStatus = "WAITING"
	BattleActive   BattleStatus = "ACTIVE"
	BattleFinished BattleStatus = "FINISHED"
)

// BattleConfig describes what a room plays.
type BattleConfig struct {
	Subject            string   `json:"subject"`
	Chapter            string   `json:"chapter"`
	Topics             []string `json:"topics,omitempty"`
	Standard           string   `json:"standard,omitempty"`
	QuestionCount      int      `json:"questionCount"`
	PerQuestionSeconds int      `json:"perQuestionSeconds"`
}

// PerQuestion returns the question duration.
func (c BattleConfig) PerQuestion() time.Duration {
	return time.Duration(c.PerQuestionSeconds) * time.Second
}

// Player is a battle participant and their accumulated score.
type Player struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Team  string `json:"team,omitempty"`
}

// BattleState is the polled room snapshot. StartTime is owned by the server.
type BattleState struct {
	RoomID    string       `json:"roomId"`
	HostID    string       `json:"hostId"`
	Status    BattleStatus `json:"status"`
	Config    BattleConfig `json:"config"`
	Questions []Question   `json:"questions"`
	Players   []Player     `json:"players"`
	StartTime *time.Time   `json:"startTime,omitempty"`
}

// BattleAnswer is one player's answer to one battle question.
type BattleAnswer struct {
	RoomID        string `json:"roomId"`
	UID           string `json:"uid"`
	QuestionIndex int    `json:"questionIndex"`
	Choice        int    `json:"choice"`
}

// BattleAnswerResult summarizes the outcome of a battle answer.
type BattleAnswerResult struct {
	QuestionIndex int  `json:"questionIndex"`
	Correct       bool `json:"correct"`
	TotalScore    int  `json:"totalScore"`
}
