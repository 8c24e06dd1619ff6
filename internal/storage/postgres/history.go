package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"newswatch/internal/domain"
)

// HistoryStore persists posted stories. The table is append-only:
// records are written at most once per distinct news event and never
// deleted.
type HistoryStore struct {
	db *sqlx.DB
}

func NewHistoryStore(db *sqlx.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Fingerprints returns every historical fingerprint. The full table is
// loaded so an ancient story can never be re-posted byte-identically.
func (s *HistoryStore) Fingerprints(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM post_history`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		result[key] = struct{}{}
	}

	return result, rows.Err()
}

// RecentTitleKeys returns the comparison-form titles posted since the
// cutoff. The similarity scan is O(n) per candidate, so only this
// window feeds the fuzzy stage.
func (s *HistoryStore) RecentTitleKeys(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title_key FROM post_history WHERE posted_at >= $1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// Insert records a posted story. Conflicting keys are rejected by the
// primary key: the caller must have checked novelty first.
func (s *HistoryStore) Insert(ctx context.Context, rec *domain.HistoryRecord) error {
	exec := GetExecutor(ctx, s.db)

	_, err := exec.ExecContext(ctx, `
		INSERT INTO post_history (key, title, title_key, posted_at, mode)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.Key,
		rec.Title,
		rec.TitleKey,
		rec.PostedAt,
		rec.Mode,
	)
	return err
}
