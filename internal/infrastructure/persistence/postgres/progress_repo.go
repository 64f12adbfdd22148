// Package postgres implements the PostgreSQL persistence layer for the
// learning progress engine.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/progress"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
// The ModuleProgress aggregate is saved atomically: the root row and all
// lesson rows go in one transaction, guarded by the root's version column.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a new module progress aggregate with its lesson rows.
// Returns shared.ErrProgressAlreadyExists when the (user, module) pair is taken.
func (r *ProgressRepository) Create(ctx context.Context, mp *progress.ModuleProgress) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		query := `
			INSERT INTO module_progress (
				id, user_id, module_id, started_at, completed_at,
				current_lesson_id, completed_lessons, total_lessons,
				mastery_notified, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err := tx.Exec(ctx, query,
			mp.ID,
			mp.UserID,
			mp.ModuleID.String(),
			mp.StartedAt,
			mp.CompletedAt,
			mp.CurrentLessonID.String(),
			mp.CompletedLessons,
			mp.TotalLessons,
			mp.MasteryNotified,
			mp.Version,
		)
		if err != nil {
			return err
		}

		return insertLessonRows(ctx, tx, mp)
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrProgressAlreadyExists
		}
		return shared.WrapError("progress", "Create", shared.ErrTransient, "failed to create module progress", err)
	}

	return nil
}

// Update saves the aggregate with an optimistic lock check. The root row
// only updates when the stored version matches the loaded one; zero rows
// affected means a concurrent writer won and shared.ErrOptimisticLock is
// returned so the caller can re-read and retry. On success mp.Version is
// bumped to the stored value.
func (r *ProgressRepository) Update(ctx context.Context, mp *progress.ModuleProgress) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		query := `
			UPDATE module_progress SET
				completed_at = $1,
				current_lesson_id = $2,
				completed_lessons = $3,
				mastery_notified = $4,
				version = version + 1
			WHERE id = $5 AND version = $6
		`
		tag, err := tx.Exec(ctx, query,
			mp.CompletedAt,
			mp.CurrentLessonID.String(),
			mp.CompletedLessons,
			mp.MasteryNotified,
			mp.ID,
			mp.Version,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrOptimisticLock
		}

		// Lesson rows ride on the root's version guard: once it passed,
		// this transaction owns the aggregate.
		for _, lp := range mp.Lessons {
			lessonQuery := `
				UPDATE lesson_progress SET
					status = $1,
					slide_index = $2,
					quiz_score = $3,
					quiz_feedback = $4,
					time_spent_seconds = $5,
					started_at = $6,
					completed_at = $7
				WHERE id = $8
			`
			if _, err := tx.Exec(ctx, lessonQuery,
				string(lp.Status),
				lp.SlideIndex,
				lp.QuizScore,
				lp.QuizFeedback,
				lp.TimeSpentSeconds,
				lp.StartedAt,
				lp.CompletedAt,
				lp.ID,
			); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		if shared.IsTransient(err) {
			return err
		}
		return shared.WrapError("progress", "Update", shared.ErrTransient, "failed to update module progress", err)
	}

	mp.Version++
	return nil
}

// insertLessonRows inserts all lesson rows of a fresh aggregate.
func insertLessonRows(ctx context.Context, tx pgx.Tx, mp *progress.ModuleProgress) error {
	query := `
		INSERT INTO lesson_progress (
			id, module_progress_id, user_id, lesson_id, module_id, position,
			status, slide_index, quiz_score, quiz_feedback,
			time_spent_seconds, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	for position, lp := range mp.Lessons {
		_, err := tx.Exec(ctx, query,
			lp.ID,
			mp.ID,
			lp.UserID,
			lp.LessonID.String(),
			lp.ModuleID.String(),
			position,
			string(lp.Status),
			lp.SlideIndex,
			lp.QuizScore,
			lp.QuizFeedback,
			lp.TimeSpentSeconds,
			lp.StartedAt,
			lp.CompletedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// GetByUserAndModule loads the full aggregate for (user, module).
// Returns shared.ErrProgressNotFound when the module was never started.
func (r *ProgressRepository) GetByUserAndModule(ctx context.Context, userID string, moduleID content.ModuleID) (*progress.ModuleProgress, error) {
	query := `
		SELECT id, user_id, module_id, started_at, completed_at,
			   current_lesson_id, completed_lessons, total_lessons,
			   mastery_notified, version
		FROM module_progress
		WHERE user_id = $1 AND module_id = $2
	`

	row := r.conn.QueryRow(ctx, query, userID, moduleID.String())
	mp, err := r.scanModuleProgress(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, shared.WrapError("progress", "GetByUserAndModule", shared.ErrTransient, "failed to load module progress", err)
	}

	if err := r.loadLessons(ctx, mp); err != nil {
		return nil, err
	}

	return mp, nil
}

// GetByUserAndLesson loads the owning aggregate for (user, lesson).
// Returns shared.ErrLessonProgressNotFound when no aggregate owns the lesson.
func (r *ProgressRepository) GetByUserAndLesson(ctx context.Context, userID string, lessonID content.LessonID) (*progress.ModuleProgress, error) {
	query := `
		SELECT mp.id, mp.user_id, mp.module_id, mp.started_at, mp.completed_at,
			   mp.current_lesson_id, mp.completed_lessons, mp.total_lessons,
			   mp.mastery_notified, mp.version
		FROM module_progress mp
		JOIN lesson_progress lp ON lp.module_progress_id = mp.id
		WHERE lp.user_id = $1 AND lp.lesson_id = $2
	`

	row := r.conn.QueryRow(ctx, query, userID, lessonID.String())
	mp, err := r.scanModuleProgress(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLessonProgressNotFound
		}
		return nil, shared.WrapError("progress", "GetByUserAndLesson", shared.ErrTransient, "failed to load module progress", err)
	}

	if err := r.loadLessons(ctx, mp); err != nil {
		return nil, err
	}

	return mp, nil
}

// GetAllByUser loads every aggregate the user has started.
func (r *ProgressRepository) GetAllByUser(ctx context.Context, userID string) ([]*progress.ModuleProgress, error) {
	query := `
		SELECT id, user_id, module_id, started_at, completed_at,
			   current_lesson_id, completed_lessons, total_lessons,
			   mastery_notified, version
		FROM module_progress
		WHERE user_id = $1
		ORDER BY started_at
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, shared.WrapError("progress", "GetAllByUser", shared.ErrTransient, "failed to query module progress", err)
	}
	defer rows.Close()

	var result []*progress.ModuleProgress
	for rows.Next() {
		mp, err := r.scanModuleProgress(rows)
		if err != nil {
			return nil, shared.WrapError("progress", "GetAllByUser", shared.ErrTransient, "failed to scan module progress", err)
		}
		result = append(result, mp)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("progress", "GetAllByUser", shared.ErrTransient, "failed to iterate module progress", err)
	}

	for _, mp := range result {
		if err := r.loadLessons(ctx, mp); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// CountCompletedLessons returns the user's completed lesson count across all modules.
func (r *ProgressRepository) CountCompletedLessons(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM lesson_progress
		WHERE user_id = $1 AND status = 'completed'
	`

	var count int
	if err := r.conn.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, shared.WrapError("progress", "CountCompletedLessons", shared.ErrTransient, "failed to count completed lessons", err)
	}
	return count, nil
}

// AverageScore returns the user's average quiz score over completed lessons.
// Zero when nothing is completed yet.
func (r *ProgressRepository) AverageScore(ctx context.Context, userID string) (float64, error) {
	query := `
		SELECT COALESCE(AVG(quiz_score), 0) FROM lesson_progress
		WHERE user_id = $1 AND status = 'completed'
	`

	var average float64
	if err := r.conn.QueryRow(ctx, query, userID).Scan(&average); err != nil {
		return 0, shared.WrapError("progress", "AverageScore", shared.ErrTransient, "failed to compute average score", err)
	}
	return average, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

// scanModuleProgress scans a module_progress row into the aggregate root.
func (r *ProgressRepository) scanModuleProgress(row pgx.Row) (*progress.ModuleProgress, error) {
	var mp progress.ModuleProgress
	var moduleID, currentLessonID string

	err := row.Scan(
		&mp.ID,
		&mp.UserID,
		&moduleID,
		&mp.StartedAt,
		&mp.CompletedAt,
		&currentLessonID,
		&mp.CompletedLessons,
		&mp.TotalLessons,
		&mp.MasteryNotified,
		&mp.Version,
	)
	if err != nil {
		return nil, err
	}

	mp.ModuleID = content.ModuleID(moduleID)
	mp.CurrentLessonID = content.LessonID(currentLessonID)
	return &mp, nil
}

// loadLessons fills the aggregate's lesson rows in stored order.
func (r *ProgressRepository) loadLessons(ctx context.Context, mp *progress.ModuleProgress) error {
	query := `
		SELECT id, user_id, lesson_id, module_id, status, slide_index,
			   quiz_score, quiz_feedback, time_spent_seconds,
			   started_at, completed_at
		FROM lesson_progress
		WHERE module_progress_id = $1
		ORDER BY position
	`

	rows, err := r.conn.Query(ctx, query, mp.ID)
	if err != nil {
		return shared.WrapError("progress", "loadLessons", shared.ErrTransient, "failed to query lesson progress", err)
	}
	defer rows.Close()

	mp.Lessons = mp.Lessons[:0]
	for rows.Next() {
		var lp progress.LessonProgress
		var lessonID, moduleID, status string

		err := rows.Scan(
			&lp.ID,
			&lp.UserID,
			&lessonID,
			&moduleID,
			&status,
			&lp.SlideIndex,
			&lp.QuizScore,
			&lp.QuizFeedback,
			&lp.TimeSpentSeconds,
			&lp.StartedAt,
			&lp.CompletedAt,
		)
		if err != nil {
			return shared.WrapError("progress", "loadLessons", shared.ErrTransient, "failed to scan lesson progress", err)
		}

		lp.LessonID = content.LessonID(lessonID)
		lp.ModuleID = content.ModuleID(moduleID)
		lp.Status = progress.LessonStatus(status)
		mp.Lessons = append(mp.Lessons, &lp)
	}
	if err := rows.Err(); err != nil {
		return shared.WrapError("progress", "loadLessons", shared.ErrTransient, "failed to iterate lesson progress", err)
	}

	return nil
}

// interface conformance check
var _ progress.Repository = (*ProgressRepository)(nil)

// Health reports repository storage health.
func (r *ProgressRepository) Health(ctx context.Context) error {
	if err := r.conn.Ping(ctx); err != nil {
		return fmt.Errorf("progress repository unhealthy: %w", err)
	}
	return nil
}
