package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"exam-prep-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultStore persists scored exams and their mistakes.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) SaveResult(ctx context.Context, result domain.ExamResult) error {
	if result.UserID == "" {
		return domain.ErrUnauthenticated
	}
	stats, err := json.Marshal(result.TopicStats)
	if err != nil {
		return fmt.Errorf("marshal topic stats: %w", err)
	}

	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `INSERT INTO exam_results
			(user_id, subject, total_questions, correct, wrong, skipped, score, topic_stats)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			result.UserID, result.Subject, result.TotalQuestions, result.Correct,
			result.Wrong, result.Skipped, result.Score, string(stats)).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		for i, q := range result.Mistakes {
			data, err := json.Marshal(q)
			if err != nil {
				return fmt.Errorf("marshal mistake: %w", err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO exam_mistakes (result_id, position, question_id, data)
				VALUES ($1, $2, $3, $4)`, id, i, q.ID, string(data)); err != nil {
				return fmt.Errorf("insert mistake: %w", err)
			}
		}
		return nil
	})
}

// RecentMistakes returns the mistakes of the user's latest results, newest first,
// deduplicated by question identity.
func (s *ResultStore) RecentMistakes(ctx context.Context, userID string, limit int) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT m.data FROM exam_mistakes m
		JOIN exam_results r ON r.id = m.result_id
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC, m.position ASC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent mistakes: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var out []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan mistake: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal mistake: %w", err)
		}
		key := q.ID
		if key == "" {
			key = q.Question
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out, rows.Err()
}
