package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"exam-prep-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// BookmarkStore keeps a copy of each bookmarked question per user.
type BookmarkStore struct {
	pool *pgxpool.Pool
}

func NewBookmarkStore(pool *pgxpool.Pool) *BookmarkStore {
	return &BookmarkStore{pool: pool}
}

func (s *BookmarkStore) SaveBookmark(ctx context.Context, userID string, q domain.Question) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal bookmark: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO bookmarks (user_id, question_id, data) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, question_id) DO UPDATE SET data = EXCLUDED.data`, userID, q.ID, string(data))
	if err != nil {
		return fmt.Errorf("save bookmark: %w", err)
	}
	return nil
}

func (s *BookmarkStore) RemoveBookmark(ctx context.Context, userID, questionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM bookmarks WHERE user_id=$1 AND question_id=$2`, userID, questionID); err != nil {
		return fmt.Errorf("remove bookmark: %w", err)
	}
	return nil
}

// ListBookmarks returns the user's bookmarks, newest first.
func (s *BookmarkStore) ListBookmarks(ctx context.Context, userID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM bookmarks WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()
	var out []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal bookmark: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
