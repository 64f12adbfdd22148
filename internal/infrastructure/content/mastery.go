package content

import (
	"github.com/skillpath/skillpath-engine/internal/domain/mastery"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEFAULT MASTERY CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultTierTables returns the per-module mastery tier tables. There is
// deliberately no global table: each module names and prices its own tiers.
func DefaultTierTables() []mastery.TierTable {
	return []mastery.TierTable{
		mastery.NewTierTable("go-basics", []mastery.Tier{
			{
				Name:     "Gopher Apprentice",
				MinScore: 70,
				Message:  "You have a working grasp of Go fundamentals.",
			},
			{
				Name:     "Gopher Journeyman",
				MinScore: 85,
				Message:  "Solid command of the language basics.",
			},
			{
				Name:     "Gopher Artisan",
				MinScore: 95,
				Message:  "Near-flawless mastery of Go Basics.",
			},
		}),
		mastery.NewTierTable("sql-foundations", []mastery.Tier{
			{
				Name:     "Data Analyst",
				MinScore: 75,
				Message:  "You can query with confidence.",
			},
			{
				Name:     "Data Engineer",
				MinScore: 90,
				Message:  "Joins and transactions hold no secrets for you.",
			},
		}),
	}
}

// DefaultCapabilities maps badges to the capabilities they unlock.
// Reported in the mastery notification so downstream services can flip
// feature gates without re-deriving badge state.
func DefaultCapabilities() mastery.CapabilityTable {
	return mastery.CapabilityTable{
		"go-hat-trick":    {"challenge_mode"},
		"go-honors":       {"mentor_track", "advanced_modules"},
		"go-graduate":     {"peer_review"},
		"go-week-streak":  {"streak_freeze"},
		"sql-committed":   {"sandbox_database"},
		"sql-clean-sweep": {"challenge_mode"},
	}
}
