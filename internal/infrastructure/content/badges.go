package content

import (
	"context"

	"github.com/skillpath/skillpath-engine/internal/domain/badge"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEFAULT BADGE CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// DefaultBadges returns the built-in badge catalog entries. Adding a badge
// is a new entry here plus its predicate; the engine itself never changes.
func DefaultBadges() []badge.CatalogEntry {
	return []badge.CatalogEntry{
		// ─── go-basics ───
		{
			Badge: badge.Badge{
				ID:            "go-first-steps",
				Name:          "First Steps",
				Description:   "Complete your first lesson in Go Basics.",
				ModuleID:      "go-basics",
				Rarity:        badge.RarityCommon,
				RewardMessage: "Every gopher started exactly here.",
				Class:         badge.CriteriaSimple,
			},
			Predicate: func(a badge.Achievement) bool {
				return a.Type == badge.AchievementLessonCompleted && a.Value >= 1
			},
		},
		{
			Badge: badge.Badge{
				ID:            "go-sharpshooter",
				Name:          "Sharpshooter",
				Description:   "Score 100% on any Go Basics quiz.",
				ModuleID:      "go-basics",
				Rarity:        badge.RarityUncommon,
				RewardMessage: "Not a single answer missed.",
				Class:         badge.CriteriaSimple,
			},
			Predicate: func(a badge.Achievement) bool {
				return a.Type == badge.AchievementQuizPassed && a.Value >= 100
			},
		},
		{
			Badge: badge.Badge{
				ID:            "go-hat-trick",
				Name:          "Hat Trick",
				Description:   "Score 100% on three Go Basics quizzes in a row.",
				ModuleID:      "go-basics",
				Rarity:        badge.RarityRare,
				RewardMessage: "Three perfect quizzes back to back.",
				Class:         badge.CriteriaCompound,
			},
			Check: ConsecutivePerfectScoresCheck(3),
		},
		{
			Badge: badge.Badge{
				ID:            "go-graduate",
				Name:          "Go Graduate",
				Description:   "Complete every lesson of Go Basics.",
				ModuleID:      "go-basics",
				Rarity:        badge.RarityRare,
				RewardMessage: "The basics are behind you.",
				Class:         badge.CriteriaSimple,
			},
			Predicate: func(a badge.Achievement) bool {
				return a.Type == badge.AchievementModuleCompleted
			},
		},
		{
			Badge: badge.Badge{
				ID:            "go-honors",
				Name:          "With Honors",
				Description:   "Complete Go Basics with an average score of 95 or higher.",
				ModuleID:      "go-basics",
				Rarity:        badge.RarityEpic,
				RewardMessage: "An exceptional pass through the module.",
				Class:         badge.CriteriaCompound,
			},
			Check: ModuleAverageCheck(95),
		},
		{
			Badge: badge.Badge{
				ID:            "go-week-streak",
				Name:          "Seven Day Gopher",
				Description:   "Learn in Go Basics seven days in a row.",
				ModuleID:      "go-basics",
				Rarity:        badge.RarityUncommon,
				RewardMessage: "A full week of daily practice.",
				Class:         badge.CriteriaSimple,
			},
			Predicate: func(a badge.Achievement) bool {
				return a.Type == badge.AchievementStreakReached && a.Value >= 7
			},
		},

		// ─── sql-foundations ───
		{
			Badge: badge.Badge{
				ID:            "sql-first-query",
				Name:          "First Query",
				Description:   "Complete your first lesson in SQL Foundations.",
				ModuleID:      "sql-foundations",
				Rarity:        badge.RarityCommon,
				RewardMessage: "SELECT 'hello' -- and it worked.",
				Class:         badge.CriteriaSimple,
			},
			Predicate: func(a badge.Achievement) bool {
				return a.Type == badge.AchievementLessonCompleted && a.Value >= 1
			},
		},
		{
			Badge: badge.Badge{
				ID:            "sql-clean-sweep",
				Name:          "Clean Sweep",
				Description:   "Score 100% on any SQL Foundations quiz.",
				ModuleID:      "sql-foundations",
				Rarity:        badge.RarityUncommon,
				RewardMessage: "Every row accounted for.",
				Class:         badge.CriteriaSimple,
			},
			Predicate: func(a badge.Achievement) bool {
				return a.Type == badge.AchievementQuizPassed && a.Value >= 100
			},
		},
		{
			Badge: badge.Badge{
				ID:            "sql-committed",
				Name:          "Committed",
				Description:   "Complete every lesson of SQL Foundations.",
				ModuleID:      "sql-foundations",
				Rarity:        badge.RarityRare,
				RewardMessage: "Transaction closed, knowledge durable.",
				Class:         badge.CriteriaSimple,
			},
			Predicate: func(a badge.Achievement) bool {
				return a.Type == badge.AchievementModuleCompleted
			},
		},
	}
}

// ConsecutivePerfectScoresCheck builds a compound check that matches when
// the user's current run of perfect quiz scores in the module reaches n.
func ConsecutivePerfectScoresCheck(n int) badge.CompoundCheck {
	return func(ctx context.Context, facts badge.AggregateFacts, a badge.Achievement) (bool, error) {
		if a.Type != badge.AchievementQuizPassed {
			return false, nil
		}
		run, err := facts.ConsecutivePerfectScores(ctx, a.UserID, a.ModuleID)
		if err != nil {
			return false, err
		}
		return run >= n, nil
	}
}

// ModuleAverageCheck builds a compound check that matches when the module
// is fully completed with an average score of at least minAverage.
func ModuleAverageCheck(minAverage float64) badge.CompoundCheck {
	return func(ctx context.Context, facts badge.AggregateFacts, a badge.Achievement) (bool, error) {
		if a.Type != badge.AchievementModuleCompleted {
			return false, nil
		}
		completed, total, average, err := facts.ModuleCompletion(ctx, a.UserID, a.ModuleID)
		if err != nil {
			return false, err
		}
		return completed == total && total > 0 && average >= minAverage, nil
	}
}
