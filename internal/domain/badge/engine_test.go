package badge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
)

// ─── Fakes ───────────────────────────────────────────────────────────────────

type fakeBadgeRepo struct {
	awards   map[string]*UserBadge // key: userID + "/" + badgeID
	awardErr error
	ownedErr error

	// hideOwned makes OwnedIDs return an empty set, simulating a racing
	// writer that committed between the owned-set read and Award.
	hideOwned bool
}

func newFakeBadgeRepo() *fakeBadgeRepo {
	return &fakeBadgeRepo{awards: make(map[string]*UserBadge)}
}

func (r *fakeBadgeRepo) key(userID, badgeID string) string {
	return userID + "/" + badgeID
}

func (r *fakeBadgeRepo) Award(ctx context.Context, ub *UserBadge) (bool, error) {
	if r.awardErr != nil {
		return false, r.awardErr
	}
	k := r.key(ub.UserID, ub.BadgeID)
	if _, exists := r.awards[k]; exists {
		return false, nil
	}
	r.awards[k] = ub
	return true, nil
}

func (r *fakeBadgeRepo) Has(ctx context.Context, userID, badgeID string) (bool, error) {
	_, ok := r.awards[r.key(userID, badgeID)]
	return ok, nil
}

func (r *fakeBadgeRepo) ListByUser(ctx context.Context, userID string) ([]*UserBadge, error) {
	var out []*UserBadge
	for _, ub := range r.awards {
		if ub.UserID == userID {
			out = append(out, ub)
		}
	}
	return out, nil
}

func (r *fakeBadgeRepo) OwnedIDs(ctx context.Context, userID string) (map[string]bool, error) {
	if r.ownedErr != nil {
		return nil, r.ownedErr
	}
	if r.hideOwned {
		return map[string]bool{}, nil
	}
	owned := make(map[string]bool)
	for _, ub := range r.awards {
		if ub.UserID == userID {
			owned[ub.BadgeID] = true
		}
	}
	return owned, nil
}

func (r *fakeBadgeRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	owned, _ := r.OwnedIDs(ctx, userID)
	return len(owned), nil
}

var _ Repository = (*fakeBadgeRepo)(nil)

type fakeFacts struct {
	perfectRun int
	completed  int
	total      int
	average    float64
	err        error
}

func (f *fakeFacts) ConsecutivePerfectScores(ctx context.Context, userID string, moduleID content.ModuleID) (int, error) {
	return f.perfectRun, f.err
}

func (f *fakeFacts) ModuleCompletion(ctx context.Context, userID string, moduleID content.ModuleID) (int, int, float64, error) {
	return f.completed, f.total, f.average, f.err
}

var _ AggregateFacts = (*fakeFacts)(nil)

// ─── Helpers ─────────────────────────────────────────────────────────────────

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := NewCatalog([]CatalogEntry{
		{
			Badge: Badge{
				ID:       "first-lesson",
				Name:     "First Lesson",
				ModuleID: "go-basics",
				Rarity:   RarityCommon,
				Class:    CriteriaSimple,
			},
			Predicate: func(a Achievement) bool {
				return a.Type == AchievementLessonCompleted && a.Value >= 1
			},
		},
		{
			Badge: Badge{
				ID:       "perfect-quiz",
				Name:     "Perfect Quiz",
				ModuleID: "go-basics",
				Rarity:   RarityUncommon,
				Class:    CriteriaSimple,
			},
			Predicate: func(a Achievement) bool {
				return a.Type == AchievementQuizPassed && a.Value >= 100
			},
		},
		{
			Badge: Badge{
				ID:       "hat-trick",
				Name:     "Hat Trick",
				ModuleID: "go-basics",
				Rarity:   RarityRare,
				Class:    CriteriaCompound,
			},
			Check: func(ctx context.Context, facts AggregateFacts, a Achievement) (bool, error) {
				if a.Type != AchievementQuizPassed || a.Value < 100 {
					return false, nil
				}
				run, err := facts.ConsecutivePerfectScores(ctx, a.UserID, a.ModuleID)
				if err != nil {
					return false, err
				}
				return run >= 3, nil
			},
		},
	})
	require.NoError(t, err)
	return catalog
}

func testEngine(catalog *Catalog, repo Repository, facts AggregateFacts) *Engine {
	seq := 0
	return NewEngine(catalog, repo, facts, func() string {
		seq++
		return fmt.Sprintf("ub-%d", seq)
	})
}

// ─── Tests ───────────────────────────────────────────────────────────────────

func TestEngine_AwardsSimpleBadge(t *testing.T) {
	repo := newFakeBadgeRepo()
	engine := testEngine(testCatalog(t), repo, &fakeFacts{})

	events, err := engine.Evaluate(context.Background(), Achievement{
		UserID:   "user-1",
		Type:     AchievementLessonCompleted,
		Value:    1,
		ModuleID: "go-basics",
		LessonID: "go-basics-01",
	})

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, shared.EventBadgeAwarded, events[0].EventType())

	has, err := repo.Has(context.Background(), "user-1", "first-lesson")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestEngine_ReEvaluationIsIdempotent(t *testing.T) {
	repo := newFakeBadgeRepo()
	engine := testEngine(testCatalog(t), repo, &fakeFacts{})

	fact := Achievement{
		UserID:   "user-1",
		Type:     AchievementLessonCompleted,
		Value:    1,
		ModuleID: "go-basics",
	}

	first, err := engine.Evaluate(context.Background(), fact)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := engine.Evaluate(context.Background(), fact)
	require.NoError(t, err)
	assert.Empty(t, second)

	count, err := repo.CountByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEngine_NonMatchingFactAwardsNothing(t *testing.T) {
	repo := newFakeBadgeRepo()
	engine := testEngine(testCatalog(t), repo, &fakeFacts{})

	events, err := engine.Evaluate(context.Background(), Achievement{
		UserID:   "user-1",
		Type:     AchievementQuizPassed,
		Value:    85, // below the perfect-quiz threshold
		ModuleID: "go-basics",
	})

	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEngine_UnknownModuleIsNoOp(t *testing.T) {
	repo := newFakeBadgeRepo()
	engine := testEngine(testCatalog(t), repo, &fakeFacts{})

	events, err := engine.Evaluate(context.Background(), Achievement{
		UserID:   "user-1",
		Type:     AchievementLessonCompleted,
		Value:    1,
		ModuleID: "unknown-module",
	})

	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEngine_CompoundBadgeUsesAggregateFacts(t *testing.T) {
	repo := newFakeBadgeRepo()
	facts := &fakeFacts{perfectRun: 3}
	engine := testEngine(testCatalog(t), repo, facts)

	events, err := engine.Evaluate(context.Background(), Achievement{
		UserID:   "user-1",
		Type:     AchievementQuizPassed,
		Value:    100,
		ModuleID: "go-basics",
	})

	require.NoError(t, err)
	// A perfect quiz with a run of 3 matches both perfect-quiz and hat-trick.
	require.Len(t, events, 2)

	has, _ := repo.Has(context.Background(), "user-1", "hat-trick")
	assert.True(t, has)
}

func TestEngine_CompoundBadgeBelowRunNotAwarded(t *testing.T) {
	repo := newFakeBadgeRepo()
	facts := &fakeFacts{perfectRun: 2}
	engine := testEngine(testCatalog(t), repo, facts)

	_, err := engine.Evaluate(context.Background(), Achievement{
		UserID:   "user-1",
		Type:     AchievementQuizPassed,
		Value:    100,
		ModuleID: "go-basics",
	})

	require.NoError(t, err)
	has, _ := repo.Has(context.Background(), "user-1", "hat-trick")
	assert.False(t, has)
}

func TestEngine_ConcurrentAwardLoserPublishesNothing(t *testing.T) {
	repo := newFakeBadgeRepo()
	engine := testEngine(testCatalog(t), repo, &fakeFacts{})

	// Another instance commits the award between the owned-set read and
	// this engine's insert: the insert reports false and no event goes out.
	_, err := repo.Award(context.Background(), &UserBadge{
		ID: "other", UserID: "user-1", BadgeID: "first-lesson", AwardedAt: time.Now(),
	})
	require.NoError(t, err)
	repo.hideOwned = true

	events, err := engine.Evaluate(context.Background(), Achievement{
		UserID:   "user-1",
		Type:     AchievementLessonCompleted,
		Value:    1,
		ModuleID: "go-basics",
	})

	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEngine_RepoErrorSurfaces(t *testing.T) {
	repo := newFakeBadgeRepo()
	repo.ownedErr = errors.New("storage down")
	engine := testEngine(testCatalog(t), repo, &fakeFacts{})

	_, err := engine.Evaluate(context.Background(), Achievement{
		UserID:   "user-1",
		Type:     AchievementLessonCompleted,
		Value:    1,
		ModuleID: "go-basics",
	})

	assert.Error(t, err)
}

func TestNewCatalog_RejectsBadEntries(t *testing.T) {
	_, err := NewCatalog([]CatalogEntry{
		{Badge: Badge{ID: "", Class: CriteriaSimple}},
	})
	assert.Error(t, err)

	_, err = NewCatalog([]CatalogEntry{
		{Badge: Badge{ID: "no-predicate", Class: CriteriaSimple}},
	})
	assert.Error(t, err)

	_, err = NewCatalog([]CatalogEntry{
		{Badge: Badge{ID: "no-check", Class: CriteriaCompound}},
	})
	assert.Error(t, err)

	ok := func(a Achievement) bool { return true }
	_, err = NewCatalog([]CatalogEntry{
		{Badge: Badge{ID: "dup", Class: CriteriaSimple}, Predicate: ok},
		{Badge: Badge{ID: "dup", Class: CriteriaSimple}, Predicate: ok},
	})
	assert.Error(t, err)
}
