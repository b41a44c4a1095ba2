package exam

import (
	"math"

	"exam-prep-service/internal/domain"
)

// Skipped marks an unanswered slot in an answers slice.
const Skipped = -1

// Score grades answers against questions. It performs no I/O and is run exactly
// once per session, on submission.
func Score(questions []domain.Question, answers []int, negativeMark float64) domain.ScoreResult {
	result := domain.ScoreResult{
		TopicStats: []domain.TopicStat{},
		Mistakes:   []domain.Question{},
	}
	topicIndex := make(map[string]int)

	for i, q := range questions {
		answer := Skipped
		if i < len(answers) {
			answer = answers[i]
		}

		topic := q.TopicOrGeneral()
		idx, ok := topicIndex[topic]
		if !ok {
			idx = len(result.TopicStats)
			topicIndex[topic] = idx
			result.TopicStats = append(result.TopicStats, domain.TopicStat{Topic: topic})
		}
		result.TopicStats[idx].Total++

		switch {
		case answer == Skipped:
			result.SkippedCount++
		case answer == q.CorrectAnswerIndex:
			result.CorrectCount++
			result.TopicStats[idx].Correct++
		default:
			result.WrongCount++
			result.Mistakes = append(result.Mistakes, q)
		}
	}

	if negativeMark < 0 {
		negativeMark = 0
	}
	result.Penalty = float64(result.WrongCount) * negativeMark
	result.RawScore = float64(result.CorrectCount) - result.Penalty
	result.FinalScore = math.Max(0, result.RawScore)
	return result
}

// ToExamResult builds the persistence payload for a scored session.
func ToExamResult(userID, subject string, total int, score domain.ScoreResult) domain.ExamResult {
	return domain.ExamResult{
		UserID:         userID,
		Subject:        subject,
		TotalQuestions: total,
		Correct:        score.CorrectCount,
		Wrong:          score.WrongCount,
		Skipped:        score.SkippedCount,
		Score:          score.FinalScore,
		TopicStats:     score.TopicStats,
		Mistakes:       score.Mistakes,
	}
}
