package command

import (
	"context"

	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/progress"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
)

// ProgressFacts implements badge.AggregateFacts on top of the progress
// store. Compound badge criteria are the only callers, so these queries
// stay off the common awarding path.
type ProgressFacts struct {
	progressRepo progress.Repository
}

// NewProgressFacts creates a new ProgressFacts.
func NewProgressFacts(progressRepo progress.Repository) *ProgressFacts {
	return &ProgressFacts{progressRepo: progressRepo}
}

// ConsecutivePerfectScores returns the length of the user's current run of
// perfect quiz scores in a module, counted over completed lessons in
// lesson order and ending at the most recently completed one.
func (f *ProgressFacts) ConsecutivePerfectScores(ctx context.Context, userID string, moduleID content.ModuleID) (int, error) {
	mp, err := f.progressRepo.GetByUserAndModule(ctx, userID, moduleID)
	if err != nil {
		if shared.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}

	run := 0
	for _, lp := range mp.Lessons {
		if !lp.IsCompleted() {
			continue
		}
		if lp.QuizScore == 100 {
			run++
		} else {
			run = 0
		}
	}
	return run, nil
}

// ModuleCompletion returns completed/total lesson counts and the average
// score of the user's progress in a module.
func (f *ProgressFacts) ModuleCompletion(ctx context.Context, userID string, moduleID content.ModuleID) (int, int, float64, error) {
	mp, err := f.progressRepo.GetByUserAndModule(ctx, userID, moduleID)
	if err != nil {
		if shared.IsNotFound(err) {
			return 0, 0, 0, nil
		}
		return 0, 0, 0, err
	}
	return mp.CompletedLessons, mp.TotalLessons, mp.AverageScore(), nil
}
