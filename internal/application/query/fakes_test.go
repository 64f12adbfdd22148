package query

import (
	"context"
	"fmt"
	"time"

	"github.com/skillpath/skillpath-engine/internal/domain/badge"
	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/progress"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
	"github.com/skillpath/skillpath-engine/internal/domain/streak"
	"github.com/skillpath/skillpath-engine/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: logger.LevelError})
}

// ─── Progress store ──────────────────────────────────────────────────────────

// queryProgressRepo serves pre-seeded aggregates and fails on demand, one
// error hook per read path.
type queryProgressRepo struct {
	aggregates []*progress.ModuleProgress

	getErr   error
	countErr error
	avgErr   error
}

func (r *queryProgressRepo) Create(ctx context.Context, mp *progress.ModuleProgress) error {
	return nil
}

func (r *queryProgressRepo) Update(ctx context.Context, mp *progress.ModuleProgress) error {
	return nil
}

func (r *queryProgressRepo) GetByUserAndModule(ctx context.Context, userID string, moduleID content.ModuleID) (*progress.ModuleProgress, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, mp := range r.aggregates {
		if mp.UserID == userID && mp.ModuleID == moduleID {
			return mp.Clone(), nil
		}
	}
	return nil, shared.ErrProgressNotFound
}

func (r *queryProgressRepo) GetByUserAndLesson(ctx context.Context, userID string, lessonID content.LessonID) (*progress.ModuleProgress, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, mp := range r.aggregates {
		if mp.UserID == userID && mp.FindLesson(lessonID) != nil {
			return mp.Clone(), nil
		}
	}
	return nil, shared.ErrLessonProgressNotFound
}

func (r *queryProgressRepo) GetAllByUser(ctx context.Context, userID string) ([]*progress.ModuleProgress, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	var out []*progress.ModuleProgress
	for _, mp := range r.aggregates {
		if mp.UserID == userID {
			out = append(out, mp.Clone())
		}
	}
	return out, nil
}

func (r *queryProgressRepo) CountCompletedLessons(ctx context.Context, userID string) (int, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	count := 0
	for _, mp := range r.aggregates {
		if mp.UserID == userID {
			count += mp.CompletedLessons
		}
	}
	return count, nil
}

func (r *queryProgressRepo) AverageScore(ctx context.Context, userID string) (float64, error) {
	if r.avgErr != nil {
		return 0, r.avgErr
	}
	sum, count := 0, 0
	for _, mp := range r.aggregates {
		if mp.UserID != userID {
			continue
		}
		for _, lp := range mp.Lessons {
			if lp.IsCompleted() {
				sum += lp.QuizScore
				count++
			}
		}
	}
	if count == 0 {
		return 0, nil
	}
	return float64(sum) / float64(count), nil
}

var _ progress.Repository = (*queryProgressRepo)(nil)

// ─── Badge store ─────────────────────────────────────────────────────────────

type queryBadgeRepo struct {
	count    int
	countErr error
}

func (r *queryBadgeRepo) Award(ctx context.Context, ub *badge.UserBadge) (bool, error) {
	return false, nil
}

func (r *queryBadgeRepo) Has(ctx context.Context, userID, badgeID string) (bool, error) {
	return false, nil
}

func (r *queryBadgeRepo) ListByUser(ctx context.Context, userID string) ([]*badge.UserBadge, error) {
	return nil, nil
}

func (r *queryBadgeRepo) OwnedIDs(ctx context.Context, userID string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (r *queryBadgeRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	return r.count, nil
}

var _ badge.Repository = (*queryBadgeRepo)(nil)

// ─── Streak store ────────────────────────────────────────────────────────────

type queryStreakRepo struct {
	record *streak.Record
	getErr error
}

func (r *queryStreakRepo) Get(ctx context.Context, userID string) (*streak.Record, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.record == nil || r.record.UserID != userID {
		return nil, shared.ErrStreakNotFound
	}
	copied := *r.record
	return &copied, nil
}

func (r *queryStreakRepo) Upsert(ctx context.Context, record *streak.Record) error {
	return nil
}

var _ streak.Repository = (*queryStreakRepo)(nil)

// ─── Fixtures ────────────────────────────────────────────────────────────────

var fixedNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

// seededProgress builds an aggregate for the given user with lessonCount
// lessons, the first completedScores of them completed with those scores.
func seededProgress(userID string, moduleID content.ModuleID, lessonCount int, completedScores []int) *progress.ModuleProgress {
	module := &content.Module{ID: moduleID, Title: "Seeded"}
	for i := 1; i <= lessonCount; i++ {
		module.Lessons = append(module.Lessons, content.Lesson{
			ID:       content.LessonID(fmt.Sprintf("%s-lesson-%d", moduleID, i)),
			ModuleID: moduleID,
			Number:   i,
		})
	}

	seq := 0
	mp, err := progress.NewModuleProgress(progress.NewModuleProgressParams{
		ID:     "mp-" + userID + "-" + moduleID.String(),
		UserID: userID,
		Module: module,
		LessonIDs: func() string {
			seq++
			return fmt.Sprintf("lp-%d", seq)
		},
		Now: fixedNow,
	})
	if err != nil {
		panic(err)
	}

	for i, score := range completedScores {
		lp := mp.Lessons[i]
		if err := lp.Complete(score, "", 60, fixedNow.Add(time.Duration(i)*time.Hour)); err != nil {
			panic(err)
		}
	}
	mp.RecomputeCompleted(fixedNow)
	mp.AdvanceCurrentLesson()
	return mp
}
