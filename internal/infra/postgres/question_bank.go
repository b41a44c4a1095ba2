package postgres

import (
	"context"
	"fmt"

	"exam-prep-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// poolLimit caps one tuple's candidate pool; callers sample from it.
const poolLimit = 500

// QuestionBank reads and writes the questions table.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

// LoadPool returns the stored questions for a subject/chapter, restricted to
// req.Topics when any are given.
func (b *QuestionBank) LoadPool(ctx context.Context, req domain.BankRequest) ([]domain.Question, error) {
	query := `SELECT id, question, options, correct_index, explanation, subject, chapter, topic, difficulty
		FROM questions WHERE subject=$1 AND chapter=$2`
	args := []interface{}{req.Subject, req.Chapter}
	if len(req.Topics) > 0 {
		query += ` AND topic = ANY($3)`
		args = append(args, req.Topics)
	}
	query += fmt.Sprintf(` ORDER BY random() LIMIT %d`, poolLimit)

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var (
			q       domain.Question
			correct int16
		)
		if err := rows.Scan(&q.ID, &q.Question, &q.Options, &correct, &q.Explanation,
			&q.Subject, &q.Chapter, &q.Topic, &q.Difficulty); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.CorrectAnswerIndex = int(correct)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	return out, nil
}

// Insert stores a harvested batch. Duplicates (same subject, chapter and prompt)
// and structurally invalid questions are skipped. It returns the number of new rows.
func (b *QuestionBank) Insert(ctx context.Context, batch domain.HarvestBatch) (int64, error) {
	pb := &pgx.Batch{}
	for _, q := range batch.Questions {
		if q.Validate() != nil || q.Subject == "" || q.Chapter == "" {
			continue
		}
		if q.ID != "" {
			pb.Queue(`INSERT INTO questions (id, question, options, correct_index, explanation, subject, chapter, topic, difficulty, standard)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT DO NOTHING`,
				q.ID, q.Question, q.Options, q.CorrectAnswerIndex, q.Explanation, q.Subject, q.Chapter, q.Topic, q.Difficulty, batch.Standard)
			continue
		}
		pb.Queue(`INSERT INTO questions (question, options, correct_index, explanation, subject, chapter, topic, difficulty, standard)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT DO NOTHING`,
			q.Question, q.Options, q.CorrectAnswerIndex, q.Explanation, q.Subject, q.Chapter, q.Topic, q.Difficulty, batch.Standard)
	}
	if pb.Len() == 0 {
		return 0, nil
	}

	results := b.pool.SendBatch(ctx, pb)
	defer results.Close()
	var inserted int64
	for i := 0; i < pb.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert question: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// Harvest implements exam.Harvester by writing straight to the bank, for
// deployments without a broker.
func (b *QuestionBank) Harvest(ctx context.Context, batch domain.HarvestBatch) error {
	_, err := b.Insert(ctx, batch)
	return err
}
