package command

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillpath/skillpath-engine/internal/domain/badge"
	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/mastery"
	"github.com/skillpath/skillpath-engine/internal/domain/progress"
	"github.com/skillpath/skillpath-engine/internal/domain/quiz"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
	"github.com/skillpath/skillpath-engine/pkg/timeutil"
)

// completeLessonFixture wires a CompleteLessonHandler against in-memory
// stores, a small badge catalog and a tier table for the test module.
type completeLessonFixture struct {
	handler      *CompleteLessonHandler
	startHandler *StartModuleHandler
	progressRepo *memProgressRepo
	streakRepo   *memStreakRepo
	badgeRepo    *memBadgeRepo
	publisher    *capturePublisher
}

func newCompleteLessonFixture(t *testing.T) *completeLessonFixture {
	t.Helper()

	progressRepo := newMemProgressRepo()
	streakRepo := newMemStreakRepo()
	badgeRepo := newMemBadgeRepo()
	publisher := &capturePublisher{}
	contentRepo := newMemContentRepo(threeLessonModule())
	log := testLogger()

	catalog, err := badge.NewCatalog([]badge.CatalogEntry{
		{
			Badge: badge.Badge{
				ID: "first-steps", Name: "First Steps", ModuleID: "test-module",
				Rarity: badge.RarityCommon, Class: badge.CriteriaSimple,
			},
			Predicate: func(a badge.Achievement) bool {
				return a.Type == badge.AchievementLessonCompleted && a.Value >= 1
			},
		},
		{
			Badge: badge.Badge{
				ID: "graduate", Name: "Graduate", ModuleID: "test-module",
				Rarity: badge.RarityRare, Class: badge.CriteriaSimple,
			},
			Predicate: func(a badge.Achievement) bool {
				return a.Type == badge.AchievementModuleCompleted
			},
		},
	})
	require.NoError(t, err)

	seq := 0
	newID := func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}

	engine := badge.NewEngine(catalog, badgeRepo, NewProgressFacts(progressRepo), newID)
	aggregator := mastery.NewAggregator(
		[]mastery.TierTable{mastery.NewTierTable("test-module", []mastery.Tier{
			{Name: "Adept", MinScore: 60, Message: "Good."},
			{Name: "Virtuoso", MinScore: 90, Message: "Excellent."},
		})},
		mastery.CapabilityTable{},
		badgeRepo,
	)

	return &completeLessonFixture{
		handler: NewCompleteLessonHandler(
			progressRepo, contentRepo, streakRepo, engine, aggregator, publisher, log,
		),
		startHandler: NewStartModuleHandler(progressRepo, contentRepo, publisher, log),
		progressRepo: progressRepo,
		streakRepo:   streakRepo,
		badgeRepo:    badgeRepo,
		publisher:    publisher,
	}
}

func (f *completeLessonFixture) startModule(t *testing.T, userID string) {
	t.Helper()
	_, err := f.startHandler.Handle(context.Background(), StartModuleCommand{
		UserID: userID, ModuleID: "test-module",
	})
	require.NoError(t, err)
}

func TestCompleteLesson_WithPerfectQuiz(t *testing.T) {
	f := newCompleteLessonFixture(t)
	f.startModule(t, "user-1")

	result, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
		UserID:           "user-1",
		LessonID:         "lesson-1",
		Answers:          quiz.Submission{"l1-q1": 0, "l1-q2": 1},
		TimeSpentSeconds: 50,
	})

	require.NoError(t, err)
	assert.False(t, result.AlreadyCompleted)
	assert.False(t, result.ModuleCompleted)
	require.NotNil(t, result.QuizResult)
	assert.InDelta(t, 100.0, result.QuizResult.Percentage, 0.0001)
	assert.True(t, result.QuizResult.Passed)

	assert.Equal(t, progress.StatusCompleted, result.Lesson.Status)
	assert.Equal(t, 100, result.Lesson.QuizScore)
	assert.Equal(t, 1, result.Progress.CompletedLessons)
	// The pointer advances to the next unfinished lesson.
	assert.Equal(t, "lesson-2", result.Progress.CurrentLessonID.String())

	assert.Len(t, f.publisher.published(shared.EventLessonCompleted), 1)
	assert.Len(t, f.publisher.published(shared.EventStreakUpdated), 1)
	assert.Len(t, f.publisher.published(shared.EventBadgeAwarded), 1)
	assert.Empty(t, f.publisher.published(shared.EventModuleCompleted))
	assert.Equal(t, 1, result.CurrentStreak)

	has, _ := f.badgeRepo.Has(context.Background(), "user-1", "first-steps")
	assert.True(t, has)
}

func TestCompleteLesson_LessonWithoutQuiz(t *testing.T) {
	f := newCompleteLessonFixture(t)
	f.startModule(t, "user-1")

	result, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
		UserID:           "user-1",
		LessonID:         "lesson-2",
		TimeSpentSeconds: 120,
	})

	require.NoError(t, err)
	assert.Nil(t, result.QuizResult)
	assert.Equal(t, progress.StatusCompleted, result.Lesson.Status)
	assert.Zero(t, result.Lesson.QuizScore)
}

func TestCompleteLesson_AnswersForQuizlessLessonIgnored(t *testing.T) {
	f := newCompleteLessonFixture(t)
	f.startModule(t, "user-1")

	result, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
		UserID:   "user-1",
		LessonID: "lesson-2",
		Answers:  quiz.Submission{"ghost": 1},
	})

	require.NoError(t, err)
	assert.Nil(t, result.QuizResult)
}

func TestCompleteLesson_RepeatedCompletionIsIdempotent(t *testing.T) {
	f := newCompleteLessonFixture(t)
	f.startModule(t, "user-1")

	cmd := CompleteLessonCommand{
		UserID:   "user-1",
		LessonID: "lesson-1",
		Answers:  quiz.Submission{"l1-q1": 0, "l1-q2": 1},
	}

	first, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	require.False(t, first.AlreadyCompleted)

	// The second call must not change scores, counters or publish anything.
	cmd.Answers = quiz.Submission{"l1-q1": 3, "l1-q2": 3}
	second, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.True(t, second.AlreadyCompleted)
	assert.Equal(t, 100, second.Lesson.QuizScore)
	assert.Equal(t, 1, second.Progress.CompletedLessons)
	assert.Empty(t, second.Events)
	assert.Len(t, f.publisher.published(shared.EventLessonCompleted), 1)
}

func TestCompleteLesson_ModuleCompletion(t *testing.T) {
	f := newCompleteLessonFixture(t)
	f.startModule(t, "user-1")

	day := timeutil.Date(2026, 3, 10)
	complete := func(lessonID content.LessonID, answers quiz.Submission) *CompleteLessonResult {
		result, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
			UserID:     "user-1",
			LessonID:   lessonID,
			Answers:    answers,
			ActivityAt: day,
		})
		require.NoError(t, err)
		return result
	}

	complete("lesson-1", quiz.Submission{"l1-q1": 0, "l1-q2": 1}) // 100
	complete("lesson-2", nil)                                     // no quiz, 0
	last := complete("lesson-3", quiz.Submission{"l3-q1": 2, "l3-q2": 1})

	assert.True(t, last.ModuleCompleted)
	assert.True(t, last.Progress.IsCompleted())
	assert.Equal(t, 3, last.Progress.CompletedLessons)

	assert.Len(t, f.publisher.published(shared.EventModuleCompleted), 1)
	// Average is (100+0+100)/3 = 66.7: the Adept tier fires.
	masteryEvents := f.publisher.published(shared.EventMasteryAchieved)
	require.Len(t, masteryEvents, 1)
	tierEvent, ok := masteryEvents[0].(shared.MasteryAchievedEvent)
	require.True(t, ok)
	assert.Equal(t, "Adept", tierEvent.Tier)

	// The graduate badge rides on the module-completed fact.
	has, _ := f.badgeRepo.Has(context.Background(), "user-1", "graduate")
	assert.True(t, has)

	// The mastery-notified flag is persisted: a reset-free re-read shows it.
	stored, err := f.progressRepo.GetByUserAndModule(context.Background(), "user-1", "test-module")
	require.NoError(t, err)
	assert.True(t, stored.MasteryNotified)
}

func TestCompleteLesson_MasteryFlagWriteWithCompetingWriter(t *testing.T) {
	f := newCompleteLessonFixture(t)
	f.startModule(t, "user-1")

	day := timeutil.Date(2026, 3, 10)
	complete := func(lessonID content.LessonID, answers quiz.Submission) *CompleteLessonResult {
		result, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
			UserID:     "user-1",
			LessonID:   lessonID,
			Answers:    answers,
			ActivityAt: day,
		})
		require.NoError(t, err)
		return result
	}

	complete("lesson-1", quiz.Submission{"l1-q1": 0, "l1-q2": 1})
	complete("lesson-2", nil)

	// A competing writer bumps the row version after every commit, so a
	// write that replays the copy it already holds conflicts on all
	// attempts. The flag write must re-read the aggregate per attempt,
	// like the completion loop does.
	f.progressRepo.afterUpdate = func(stored *progress.ModuleProgress) {
		stored.Version++
	}

	last := complete("lesson-3", quiz.Submission{"l3-q1": 2, "l3-q2": 1})
	assert.True(t, last.ModuleCompleted)

	require.Len(t, f.publisher.published(shared.EventMasteryAchieved), 1)

	f.progressRepo.afterUpdate = nil
	stored, err := f.progressRepo.GetByUserAndModule(context.Background(), "user-1", "test-module")
	require.NoError(t, err)
	assert.True(t, stored.MasteryNotified)

	// A repeat completion short-circuits and must not notify again.
	again, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
		UserID:     "user-1",
		LessonID:   "lesson-3",
		Answers:    quiz.Submission{"l3-q1": 2, "l3-q2": 1},
		ActivityAt: day,
	})
	require.NoError(t, err)
	assert.True(t, again.AlreadyCompleted)
	assert.Len(t, f.publisher.published(shared.EventMasteryAchieved), 1)
}

func TestCompleteLesson_StreakAcrossDays(t *testing.T) {
	f := newCompleteLessonFixture(t)
	f.startModule(t, "user-1")

	day := timeutil.Date(2026, 3, 10)

	first, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
		UserID: "user-1", LessonID: "lesson-1",
		Answers:    quiz.Submission{"l1-q1": 0, "l1-q2": 1},
		ActivityAt: day,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.CurrentStreak)

	second, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
		UserID: "user-1", LessonID: "lesson-2",
		ActivityAt: day.AddDate(0, 0, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.CurrentStreak)

	record, err := f.streakRepo.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, record.CurrentStreak)
	assert.Equal(t, 2, record.LongestStreak)
}

func TestCompleteLesson_SameDayActivityKeepsStreak(t *testing.T) {
	f := newCompleteLessonFixture(t)
	f.startModule(t, "user-1")

	day := timeutil.Date(2026, 3, 10)

	_, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
		UserID: "user-1", LessonID: "lesson-1",
		Answers:    quiz.Submission{"l1-q1": 0, "l1-q2": 1},
		ActivityAt: day,
	})
	require.NoError(t, err)

	result, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
		UserID: "user-1", LessonID: "lesson-2",
		ActivityAt: day,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.CurrentStreak)
	// Same-day activity publishes no streak update.
	assert.Len(t, f.publisher.published(shared.EventStreakUpdated), 1)
}

func TestCompleteLesson_OptimisticLockRetries(t *testing.T) {
	f := newCompleteLessonFixture(t)
	f.startModule(t, "user-1")

	// The first write loses the version race; the handler re-reads and
	// replays, and the second attempt lands.
	f.progressRepo.failUpdateWith = shared.ErrOptimisticLock

	result, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
		UserID:   "user-1",
		LessonID: "lesson-1",
		Answers:  quiz.Submission{"l1-q1": 0, "l1-q2": 1},
	})

	require.NoError(t, err)
	assert.Equal(t, progress.StatusCompleted, result.Lesson.Status)
	assert.Len(t, f.publisher.published(shared.EventLessonCompleted), 1)

	stored, err := f.progressRepo.GetByUserAndModule(context.Background(), "user-1", "test-module")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CompletedLessons)
}

func TestCompleteLesson_ModuleNotStarted(t *testing.T) {
	f := newCompleteLessonFixture(t)

	_, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
		UserID:   "user-1",
		LessonID: "lesson-1",
	})

	assert.True(t, shared.IsNotFound(err))
}

func TestCompleteLesson_UnknownLesson(t *testing.T) {
	f := newCompleteLessonFixture(t)
	f.startModule(t, "user-1")

	_, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
		UserID:   "user-1",
		LessonID: "ghost-lesson",
	})

	assert.True(t, shared.IsNotFound(err))
}

func TestCompleteLesson_PublishFailureDoesNotFailCommand(t *testing.T) {
	f := newCompleteLessonFixture(t)
	f.startModule(t, "user-1")

	f.publisher.err = shared.ErrServiceUnavailable

	result, err := f.handler.Handle(context.Background(), CompleteLessonCommand{
		UserID:   "user-1",
		LessonID: "lesson-1",
		Answers:  quiz.Submission{"l1-q1": 0, "l1-q2": 1},
	})

	// Commit wins over publish: the completion stands.
	require.NoError(t, err)
	assert.Equal(t, progress.StatusCompleted, result.Lesson.Status)

	stored, storedErr := f.progressRepo.GetByUserAndModule(context.Background(), "user-1", "test-module")
	require.NoError(t, storedErr)
	assert.Equal(t, 1, stored.CompletedLessons)
}

func TestCompleteLesson_Validation(t *testing.T) {
	f := newCompleteLessonFixture(t)

	_, err := f.handler.Handle(context.Background(), CompleteLessonCommand{LessonID: "lesson-1"})
	assert.True(t, shared.IsValidation(err))

	_, err = f.handler.Handle(context.Background(), CompleteLessonCommand{UserID: "user-1"})
	assert.True(t, shared.IsValidation(err))

	_, err = f.handler.Handle(context.Background(), CompleteLessonCommand{
		UserID: "user-1", LessonID: "lesson-1", TimeSpentSeconds: -1,
	})
	assert.True(t, shared.IsValidation(err))
}

// fiveLessonModule builds a module with five ten-question quizzes so the
// average can be stepped in units of ten.
func fiveLessonModule() *content.Module {
	m := &content.Module{ID: "avg-module", Title: "Averages"}
	for i := 1; i <= 5; i++ {
		lesson := content.Lesson{
			ID:         content.LessonID(fmt.Sprintf("avg-lesson-%d", i)),
			ModuleID:   "avg-module",
			Number:     i,
			SlideCount: 3,
		}
		for q := 1; q <= 10; q++ {
			lesson.Quiz = append(lesson.Quiz, content.Question{
				ID:           fmt.Sprintf("q%d", q),
				CorrectIndex: 0,
			})
		}
		m.Lessons = append(m.Lessons, lesson)
	}
	return m
}

// FiveLessonAverage walks a five-lesson module through completion and checks
// the aggregate average the rank and mastery paths depend on.
func TestCompleteLesson_FiveLessonAverage(t *testing.T) {
	module := fiveLessonModule()
	progressRepo := newMemProgressRepo()
	publisher := &capturePublisher{}
	contentRepo := newMemContentRepo(module)
	log := testLogger()

	catalog, err := badge.NewCatalog(nil)
	require.NoError(t, err)
	engine := badge.NewEngine(catalog, newMemBadgeRepo(), NewProgressFacts(progressRepo), func() string { return "x" })
	aggregator := mastery.NewAggregator(nil, nil, newMemBadgeRepo())

	start := NewStartModuleHandler(progressRepo, contentRepo, publisher, log)
	handler := NewCompleteLessonHandler(progressRepo, contentRepo, newMemStreakRepo(), engine, aggregator, publisher, log)

	_, err = start.Handle(context.Background(), StartModuleCommand{UserID: "user-1", ModuleID: "avg-module"})
	require.NoError(t, err)

	// Scores 100, 90, 80, 70, 100: one wrong answer per step down.
	answerSets := []quiz.Submission{
		{"q1": 0, "q2": 0, "q3": 0, "q4": 0, "q5": 0, "q6": 0, "q7": 0, "q8": 0, "q9": 0, "q10": 0},
		{"q1": 0, "q2": 0, "q3": 0, "q4": 0, "q5": 0, "q6": 0, "q7": 0, "q8": 0, "q9": 0, "q10": 1},
		{"q1": 0, "q2": 0, "q3": 0, "q4": 0, "q5": 0, "q6": 0, "q7": 0, "q8": 0, "q9": 1, "q10": 1},
		{"q1": 0, "q2": 0, "q3": 0, "q4": 0, "q5": 0, "q6": 0, "q7": 1, "q8": 1, "q9": 1, "q10": 1},
		{"q1": 0, "q2": 0, "q3": 0, "q4": 0, "q5": 0, "q6": 0, "q7": 0, "q8": 0, "q9": 0, "q10": 0},
	}

	var last *CompleteLessonResult
	for i, answers := range answerSets {
		last, err = handler.Handle(context.Background(), CompleteLessonCommand{
			UserID:   "user-1",
			LessonID: content.LessonID(fmt.Sprintf("avg-lesson-%d", i+1)),
			Answers:  answers,
		})
		require.NoError(t, err)
	}

	require.True(t, last.ModuleCompleted)
	assert.InDelta(t, 88.0, last.Progress.AverageScore(), 0.0001)

	avg, err := progressRepo.AverageScore(context.Background(), "user-1")
	require.NoError(t, err)
	assert.InDelta(t, 88.0, avg, 0.0001)
}
