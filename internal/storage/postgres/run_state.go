package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"newswatch/internal/domain"
)

// RunStateStore holds the single global row backing the cooldown
// throttle: one successful post per window regardless of mode.
type RunStateStore struct {
	db *sqlx.DB
}

func NewRunStateStore(db *sqlx.DB) *RunStateStore {
	return &RunStateStore{db: db}
}

func (s *RunStateStore) Get(ctx context.Context) (*domain.RunState, error) {
	var state domain.RunState
	query := `
		SELECT id, last_posted_at, last_mode, total_posted
		FROM run_state
		WHERE id = 1`

	err := s.db.GetContext(ctx, &state, query)
	if err == sql.ErrNoRows {
		// Fresh deployment: nothing posted yet
		return &domain.RunState{ID: 1}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RunStateStore) Update(ctx context.Context, state *domain.RunState) error {
	exec := GetExecutor(ctx, s.db)

	query := `
		INSERT INTO run_state (id, last_posted_at, last_mode, total_posted)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			last_posted_at = EXCLUDED.last_posted_at,
			last_mode = EXCLUDED.last_mode,
			total_posted = EXCLUDED.total_posted`

	_, err := exec.ExecContext(ctx, query,
		state.LastPostedAt,
		state.LastMode,
		state.TotalPosted,
	)
	return err
}
