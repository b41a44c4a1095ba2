package exam_test

import (
	"math/rand"
	"testing"

	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/exam"
)

func TestScoreCountsAndPenalty(t *testing.T) {
	questions := []domain.Question{
		mcq("q1", "Kinematics", 0),
		mcq("q2", "Kinematics", 1),
		mcq("q3", "Optics", 2),
		mcq("q4", "", 3),
	}
	answers := []int{0, 2, exam.Skipped, 3}

	result := exam.Score(questions, answers, 0.25)

	if result.CorrectCount != 2 || result.WrongCount != 1 || result.SkippedCount != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.Penalty != 0.25 || result.RawScore != 1.75 || result.FinalScore != 1.75 {
		t.Fatalf("unexpected score: penalty=%v raw=%v final=%v", result.Penalty, result.RawScore, result.FinalScore)
	}
	if len(result.Mistakes) != 1 || result.Mistakes[0].ID != "q2" {
		t.Fatalf("expected q2 as the only mistake, got %+v", result.Mistakes)
	}

	want := map[string]domain.TopicStat{
		"Kinematics":        {Topic: "Kinematics", Correct: 1, Total: 2},
		"Optics":            {Topic: "Optics", Correct: 0, Total: 1},
		domain.GeneralTopic: {Topic: domain.GeneralTopic, Correct: 1, Total: 1},
	}
	if len(result.TopicStats) != len(want) {
		t.Fatalf("expected %d topic buckets, got %+v", len(want), result.TopicStats)
	}
	for _, stat := range result.TopicStats {
		if stat != want[stat.Topic] {
			t.Fatalf("topic %s: got %+v want %+v", stat.Topic, stat, want[stat.Topic])
		}
	}
}

func TestScoreClampsNegativeRawScore(t *testing.T) {
	questions := []domain.Question{mcq("q1", "A", 0), mcq("q2", "A", 0), mcq("q3", "A", 0)}
	result := exam.Score(questions, []int{1, 1, 0}, 1.0)

	if result.RawScore != -1 {
		t.Fatalf("expected raw score -1, got %v", result.RawScore)
	}
	if result.FinalScore != 0 {
		t.Fatalf("expected final score clamped to 0, got %v", result.FinalScore)
	}
}

func TestScoreBoundsAndMistakeOrder(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	marks := domain.NegativeMarks

	for round := 0; round < 200; round++ {
		n := rnd.Intn(12)
		questions := make([]domain.Question, n)
		answers := make([]int, n)
		for i := range questions {
			questions[i] = mcq(string(rune('a'+i)), "", rnd.Intn(4))
			answers[i] = rnd.Intn(5) - 1
		}
		mark := marks[rnd.Intn(len(marks))]

		result := exam.Score(questions, answers, mark)

		if result.CorrectCount+result.WrongCount+result.SkippedCount != n {
			t.Fatalf("round %d: counts do not add up: %+v", round, result)
		}
		if result.FinalScore < 0 || result.FinalScore > float64(result.CorrectCount) {
			t.Fatalf("round %d: final score %v outside [0,%d]", round, result.FinalScore, result.CorrectCount)
		}

		var wantMistakes []string
		for i, q := range questions {
			if answers[i] != exam.Skipped && answers[i] != q.CorrectAnswerIndex {
				wantMistakes = append(wantMistakes, q.ID)
			}
		}
		if len(result.Mistakes) != len(wantMistakes) {
			t.Fatalf("round %d: expected %d mistakes, got %d", round, len(wantMistakes), len(result.Mistakes))
		}
		for i, m := range result.Mistakes {
			if m.ID != wantMistakes[i] {
				t.Fatalf("round %d: mistake %d is %s, want %s", round, i, m.ID, wantMistakes[i])
			}
		}
	}
}

func TestScoreTreatsMissingAnswersAsSkipped(t *testing.T) {
	questions := []domain.Question{mcq("q1", "A", 0), mcq("q2", "A", 0)}
	result := exam.Score(questions, []int{0}, 0.5)
	if result.CorrectCount != 1 || result.SkippedCount != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
}

func TestToExamResult(t *testing.T) {
	score := exam.Score([]domain.Question{mcq("q1", "A", 0), mcq("q2", "A", 1)}, []int{0, 0}, 0.5)
	payload := exam.ToExamResult("u1", "Physics", 2, score)

	if payload.UserID != "u1" || payload.Subject != "Physics" || payload.TotalQuestions != 2 {
		t.Fatalf("unexpected payload header: %+v", payload)
	}
	if payload.Correct != 1 || payload.Wrong != 1 || payload.Score != 0.5 || len(payload.Mistakes) != 1 {
		t.Fatalf("unexpected payload counts: %+v", payload)
	}
}

func mcq(id, topic string, correct int) domain.Question {
	return domain.Question{
		ID:                 id,
		Question:           "Question " + id,
		Options:            []string{"A", "B", "C", "D"},
		CorrectAnswerIndex: correct,
		Explanation:        "because",
		Subject:            "Physics",
		Topic:              topic,
	}
}
