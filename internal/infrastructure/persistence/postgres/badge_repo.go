// Package postgres implements the PostgreSQL persistence layer for the
// learning progress engine.
package postgres

import (
	"context"

	"github.com/skillpath/skillpath-engine/internal/domain/badge"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository implements badge.Repository for PostgreSQL.
// Award-at-most-once is enforced by the (user_id, badge_id) primary key:
// the insert either lands or silently loses the race, never both.
type BadgeRepository struct {
	conn *Connection
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{conn: conn}
}

// Award inserts the award if absent. Returns true when this call created
// the record and false when the badge was already awarded.
func (r *BadgeRepository) Award(ctx context.Context, ub *badge.UserBadge) (bool, error) {
	query := `
		INSERT INTO user_badges (id, user_id, badge_id, awarded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`

	tag, err := r.conn.Exec(ctx, query, ub.ID, ub.UserID, ub.BadgeID, ub.AwardedAt)
	if err != nil {
		return false, shared.WrapError("badge", "Award", shared.ErrTransient, "failed to insert award", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Has reports whether a badge has been awarded to the user.
func (r *BadgeRepository) Has(ctx context.Context, userID, badgeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM user_badges WHERE user_id = $1 AND badge_id = $2
		)
	`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, userID, badgeID).Scan(&exists); err != nil {
		return false, shared.WrapError("badge", "Has", shared.ErrTransient, "failed to check award", err)
	}
	return exists, nil
}

// ListByUser returns every award of the user, newest first.
func (r *BadgeRepository) ListByUser(ctx context.Context, userID string) ([]*badge.UserBadge, error) {
	query := `
		SELECT id, user_id, badge_id, awarded_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY awarded_at DESC
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, shared.WrapError("badge", "ListByUser", shared.ErrTransient, "failed to query awards", err)
	}
	defer rows.Close()

	var result []*badge.UserBadge
	for rows.Next() {
		var ub badge.UserBadge
		if err := rows.Scan(&ub.ID, &ub.UserID, &ub.BadgeID, &ub.AwardedAt); err != nil {
			return nil, shared.WrapError("badge", "ListByUser", shared.ErrTransient, "failed to scan award", err)
		}
		result = append(result, &ub)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("badge", "ListByUser", shared.ErrTransient, "failed to iterate awards", err)
	}

	return result, nil
}

// OwnedIDs returns the set of badge IDs the user owns.
func (r *BadgeRepository) OwnedIDs(ctx context.Context, userID string) (map[string]bool, error) {
	query := `SELECT badge_id FROM user_badges WHERE user_id = $1`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, shared.WrapError("badge", "OwnedIDs", shared.ErrTransient, "failed to query owned badges", err)
	}
	defer rows.Close()

	owned := make(map[string]bool)
	for rows.Next() {
		var badgeID string
		if err := rows.Scan(&badgeID); err != nil {
			return nil, shared.WrapError("badge", "OwnedIDs", shared.ErrTransient, "failed to scan badge id", err)
		}
		owned[badgeID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("badge", "OwnedIDs", shared.ErrTransient, "failed to iterate owned badges", err)
	}

	return owned, nil
}

// CountByUser returns the user's badge count.
func (r *BadgeRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM user_badges WHERE user_id = $1`

	var count int
	if err := r.conn.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, shared.WrapError("badge", "CountByUser", shared.ErrTransient, "failed to count badges", err)
	}
	return count, nil
}

// interface conformance check
var _ badge.Repository = (*BadgeRepository)(nil)
