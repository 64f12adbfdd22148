// Package postgres implements the PostgreSQL persistence layer for the
// learning progress engine.
package postgres

import (
	"context"
	"time"

	"github.com/skillpath/skillpath-engine/internal/domain/shared"
	"github.com/skillpath/skillpath-engine/internal/domain/streak"
	"github.com/skillpath/skillpath-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StreakRepository implements streak.Repository for PostgreSQL.
// One row per user, dates stored as UTC calendar days.
type StreakRepository struct {
	conn *Connection
}

// NewStreakRepository creates a new StreakRepository.
func NewStreakRepository(conn *Connection) *StreakRepository {
	return &StreakRepository{conn: conn}
}

// Get loads the user's streak record.
// Returns shared.ErrStreakNotFound when the user has no recorded activity.
func (r *StreakRepository) Get(ctx context.Context, userID string) (*streak.Record, error) {
	query := `
		SELECT user_id, current_streak, longest_streak,
			   last_activity_date, streak_start_date, updated_at
		FROM streaks
		WHERE user_id = $1
	`

	var record streak.Record
	err := r.conn.QueryRow(ctx, query, userID).Scan(
		&record.UserID,
		&record.CurrentStreak,
		&record.LongestStreak,
		&record.LastActivityDate,
		&record.StreakStartDate,
		&record.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStreakNotFound
		}
		return nil, shared.WrapError("streak", "Get", shared.ErrTransient, "failed to load streak", err)
	}

	// DATE columns come back at midnight of some zone; renormalize to UTC days.
	record.LastActivityDate = timeutil.DateOf(record.LastActivityDate)
	record.StreakStartDate = timeutil.DateOf(record.StreakStartDate)

	return &record, nil
}

// Upsert saves the record, inserting or overwriting the user's row.
func (r *StreakRepository) Upsert(ctx context.Context, record *streak.Record) error {
	query := `
		INSERT INTO streaks (
			user_id, current_streak, longest_streak,
			last_activity_date, streak_start_date, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_activity_date = EXCLUDED.last_activity_date,
			streak_start_date = EXCLUDED.streak_start_date,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query,
		record.UserID,
		record.CurrentStreak,
		record.LongestStreak,
		record.LastActivityDate,
		record.StreakStartDate,
		time.Now().UTC(),
	)
	if err != nil {
		return shared.WrapError("streak", "Upsert", shared.ErrTransient, "failed to upsert streak", err)
	}

	return nil
}

// interface conformance check
var _ streak.Repository = (*StreakRepository)(nil)
