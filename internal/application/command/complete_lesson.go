package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/skillpath/skillpath-engine/internal/domain/badge"
	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/mastery"
	"github.com/skillpath/skillpath-engine/internal/domain/progress"
	"github.com/skillpath/skillpath-engine/internal/domain/quiz"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
	"github.com/skillpath/skillpath-engine/internal/domain/streak"
	"github.com/skillpath/skillpath-engine/pkg/logger"
	"github.com/skillpath/skillpath-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE LESSON COMMAND
// The engine's single concurrency-critical path: the mutation is atomic per
// (user, lesson) via optimistic locking on the progress aggregate, so
// concurrent calls for the same lesson cannot lose updates. The streak
// tracker, badge rule engine and mastery aggregator all run against the
// committed facts, and events are published only after commit.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonCommand contains the data to complete a lesson.
type CompleteLessonCommand struct {
	// UserID is the ID of the learner.
	UserID string

	// LessonID is the ID of the lesson being completed.
	LessonID content.LessonID

	// Answers are the submitted quiz answers (nil when the lesson has no
	// quiz or the caller skipped it).
	Answers quiz.Submission

	// TimeSpentSeconds is the time the learner spent on the lesson.
	TimeSpentSeconds int

	// ActivityAt is when the activity happened (defaults to now if zero).
	// Streak math uses its calendar date.
	ActivityAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteLessonCommand) Validate() error {
	if c.UserID == "" {
		return shared.NewDomainError("progress", "CompleteLesson", shared.ErrEmptyValue, "user_id is required")
	}
	if !c.LessonID.IsValid() {
		return shared.NewDomainError("progress", "CompleteLesson", shared.ErrInvalidID, "lesson_id is required")
	}
	if c.TimeSpentSeconds < 0 {
		return shared.NewDomainError("progress", "CompleteLesson", shared.ErrValueOutOfRange, "time_spent must be non-negative")
	}
	return nil
}

// CompleteLessonResult contains the result of completing a lesson.
type CompleteLessonResult struct {
	// Progress is the updated module progress aggregate.
	Progress *progress.ModuleProgress

	// Lesson is the updated lesson progress.
	Lesson *progress.LessonProgress

	// QuizResult is the scored quiz, nil when no quiz was scored.
	QuizResult *quiz.Result

	// AlreadyCompleted is true when the lesson had been completed before;
	// the call is then an idempotent no-op.
	AlreadyCompleted bool

	// ModuleCompleted is true when this completion finished the module.
	ModuleCompleted bool

	// CurrentStreak is the streak after recording this activity.
	CurrentStreak int

	// Events contains domain events published for this operation.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonHandler handles the CompleteLessonCommand.
type CompleteLessonHandler struct {
	progressRepo progress.Repository
	contentRepo  content.Repository
	streakRepo   streak.Repository
	badgeEngine  *badge.Engine
	aggregator   *mastery.Aggregator
	publisher    shared.EventPublisher
	retrier      *retry.Retrier
	log          *logger.Logger
	newID        func() string
	now          func() time.Time
}

// NewCompleteLessonHandler creates a new CompleteLessonHandler.
func NewCompleteLessonHandler(
	progressRepo progress.Repository,
	contentRepo content.Repository,
	streakRepo streak.Repository,
	badgeEngine *badge.Engine,
	aggregator *mastery.Aggregator,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *CompleteLessonHandler {
	return &CompleteLessonHandler{
		progressRepo: progressRepo,
		contentRepo:  contentRepo,
		streakRepo:   streakRepo,
		badgeEngine:  badgeEngine,
		aggregator:   aggregator,
		publisher:    publisher,
		retrier:      retry.PersistenceRetrier(),
		log:          log.With(logger.Component("complete_lesson")),
		newID:        uuid.NewString,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the command.
func (h *CompleteLessonHandler) Handle(ctx context.Context, cmd CompleteLessonCommand) (*CompleteLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Content lookup goes to the authoritative repository, never the
	// cache: this is a mutating path.
	lesson, err := h.contentRepo.GetLesson(cmd.LessonID)
	if err != nil {
		return nil, err
	}

	var quizResult *quiz.Result
	score := 0
	feedback := ""
	if cmd.Answers != nil && lesson.HasQuiz() {
		scored := quiz.Score(cmd.Answers, lesson.CorrectAnswers(), cmd.TimeSpentSeconds)
		quizResult = &scored
		score = int(scored.Percentage)
		feedback = scored.Feedback
	}

	now := h.now()

	// Transactional read-modify-write with bounded retry. Safe to repeat:
	// the existence check runs inside every attempt, and an optimistic
	// lock failure just means another writer got there first.
	var mp *progress.ModuleProgress
	var lp *progress.LessonProgress
	var moduleJustCompleted bool
	var alreadyCompleted bool

	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		loaded, loadErr := h.progressRepo.GetByUserAndLesson(ctx, cmd.UserID, cmd.LessonID)
		if loadErr != nil {
			if shared.IsTransient(loadErr) {
				return retry.Retryable(loadErr)
			}
			return retry.Permanent(loadErr)
		}

		target := loaded.FindLesson(cmd.LessonID)
		if target == nil {
			return retry.Permanent(shared.ErrLessonProgressNotFound)
		}

		if target.IsCompleted() {
			// Idempotent: a completed lesson stays completed.
			mp, lp, alreadyCompleted = loaded, target, true
			return nil
		}

		if completeErr := target.Complete(score, feedback, cmd.TimeSpentSeconds, now); completeErr != nil {
			return retry.Permanent(completeErr)
		}

		moduleJustCompleted = loaded.RecomputeCompleted(now)
		loaded.AdvanceCurrentLesson()

		if updateErr := h.progressRepo.Update(ctx, loaded); updateErr != nil {
			if errIsOptimisticLock(updateErr) || shared.IsTransient(updateErr) {
				// Reset and replay on the next attempt with a fresh read.
				moduleJustCompleted = false
				return retry.Retryable(updateErr)
			}
			return retry.Permanent(updateErr)
		}

		mp, lp = loaded, target
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CompleteLessonResult{
		Progress:         mp,
		Lesson:           lp,
		QuizResult:       quizResult,
		AlreadyCompleted: alreadyCompleted,
		ModuleCompleted:  moduleJustCompleted,
	}
	if alreadyCompleted {
		return result, nil
	}

	// The mutation is committed. Everything below runs against committed
	// facts and publishes afterwards; failures here never roll it back.
	events := make([]shared.Event, 0, 4)

	percentage := 0.0
	passed := false
	if quizResult != nil {
		percentage = quizResult.Percentage
		passed = quizResult.Passed
	}
	events = append(events, shared.NewLessonCompletedEvent(
		cmd.UserID, mp.ModuleID.String(), cmd.LessonID.String(),
		score, percentage, passed,
		cmd.TimeSpentSeconds, mp.CompletedLessons, mp.TotalLessons,
	))

	if moduleJustCompleted {
		events = append(events, shared.NewModuleCompletedEvent(
			cmd.UserID, mp.ModuleID.String(), mp.TotalLessons, mp.AverageScore(), *mp.CompletedAt,
		))
	}

	activityAt := cmd.ActivityAt
	if activityAt.IsZero() {
		activityAt = now
	}
	streakEvents, currentStreak := h.recordStreak(ctx, cmd.UserID, activityAt)
	events = append(events, streakEvents...)
	result.CurrentStreak = currentStreak

	events = append(events, h.evaluateBadges(ctx, cmd, mp, quizResult, moduleJustCompleted, currentStreak)...)

	if moduleJustCompleted {
		if masteryEvent := h.evaluateMastery(ctx, mp); masteryEvent != nil {
			events = append(events, masteryEvent)
		}
	}

	for _, event := range events {
		if pubErr := h.publisher.Publish(ctx, event); pubErr != nil {
			h.log.Warn("publish failed after commit",
				logger.UserID(cmd.UserID),
				logger.String("event_type", string(event.EventType())),
				logger.Err(pubErr),
			)
		}
	}

	h.log.Info("lesson completed",
		logger.UserID(cmd.UserID),
		logger.LessonID(cmd.LessonID.String()),
		logger.Score(score),
		logger.Streak(currentStreak),
		logger.Bool("module_completed", moduleJustCompleted),
	)

	result.Events = events
	return result, nil
}

// recordStreak updates the user's daily streak for the activity date.
// Streak persistence failures are logged and degrade the result, they do
// not fail the already-committed lesson completion.
func (h *CompleteLessonHandler) recordStreak(ctx context.Context, userID string, activityAt time.Time) ([]shared.Event, int) {
	record, err := h.streakRepo.Get(ctx, userID)
	isNew := false
	switch {
	case err == nil:
	case shared.IsNotFound(err):
		record = streak.NewRecord(userID, activityAt)
		isNew = true
	default:
		h.log.Warn("streak read failed", logger.UserID(userID), logger.Err(err))
		return nil, 0
	}

	var update streak.UpdateResult
	if !isNew {
		update = record.RecordActivity(activityAt)
		if !update.Changed {
			return nil, record.CurrentStreak
		}
	}

	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		if upsertErr := h.streakRepo.Upsert(ctx, record); upsertErr != nil {
			if shared.IsTransient(upsertErr) {
				return retry.Retryable(upsertErr)
			}
			return retry.Permanent(upsertErr)
		}
		return nil
	})
	if err != nil {
		h.log.Warn("streak write failed", logger.UserID(userID), logger.Err(err))
		return nil, record.CurrentStreak
	}

	events := []shared.Event{
		shared.NewStreakUpdatedEvent(userID, record.CurrentStreak, record.LongestStreak, update.WasReset),
	}
	if update.Milestone > 0 {
		events = append(events, shared.NewStreakMilestoneEvent(userID, update.Milestone))
	}
	return events, record.CurrentStreak
}

// evaluateBadges feeds the achievement facts produced by this completion
// through the badge rule engine.
func (h *CompleteLessonHandler) evaluateBadges(
	ctx context.Context,
	cmd CompleteLessonCommand,
	mp *progress.ModuleProgress,
	quizResult *quiz.Result,
	moduleCompleted bool,
	currentStreak int,
) []shared.Event {
	facts := []badge.Achievement{
		{
			UserID:   cmd.UserID,
			Type:     badge.AchievementLessonCompleted,
			Value:    float64(mp.CompletedLessons),
			ModuleID: mp.ModuleID,
			LessonID: cmd.LessonID,
			Context:  map[string]string{"lesson_id": cmd.LessonID.String()},
		},
	}

	if quizResult != nil && quizResult.Passed {
		facts = append(facts, badge.Achievement{
			UserID:   cmd.UserID,
			Type:     badge.AchievementQuizPassed,
			Value:    quizResult.Percentage,
			ModuleID: mp.ModuleID,
			LessonID: cmd.LessonID,
		})
	}

	if moduleCompleted {
		facts = append(facts, badge.Achievement{
			UserID:   cmd.UserID,
			Type:     badge.AchievementModuleCompleted,
			Value:    mp.AverageScore(),
			ModuleID: mp.ModuleID,
		})
	}

	if currentStreak > 0 {
		facts = append(facts, badge.Achievement{
			UserID:   cmd.UserID,
			Type:     badge.AchievementStreakReached,
			Value:    float64(currentStreak),
			ModuleID: mp.ModuleID,
		})
	}

	var events []shared.Event
	for _, fact := range facts {
		awarded, err := h.badgeEngine.Evaluate(ctx, fact)
		if err != nil {
			h.log.Warn("badge evaluation failed",
				logger.UserID(cmd.UserID),
				logger.String("achievement_type", string(fact.Type)),
				logger.Err(err),
			)
			continue
		}
		for _, ev := range awarded {
			if ba, ok := ev.(shared.BadgeAwardedEvent); ok {
				h.log.Info("badge awarded",
					logger.UserID(cmd.UserID),
					logger.BadgeID(ba.BadgeID),
				)
			}
		}
		events = append(events, awarded...)
	}
	return events
}

// evaluateMastery runs the mastery aggregator and persists the
// "already notified" flag alongside the module's completion state, so a
// repeated trigger after completion is a no-op.
func (h *CompleteLessonHandler) evaluateMastery(ctx context.Context, mp *progress.ModuleProgress) shared.Event {
	event, err := h.aggregator.Evaluate(ctx, mp)
	if err != nil {
		h.log.Warn("mastery evaluation failed", logger.UserID(mp.UserID), logger.Err(err))
		return nil
	}
	if event == nil {
		return nil
	}

	// The flag write races with other writers on the same module (a
	// parallel completion bumps the row version between our commit and
	// here), so each attempt re-reads the aggregate instead of replaying
	// a stale version.
	var alreadyNotified bool
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		loaded, loadErr := h.progressRepo.GetByUserAndModule(ctx, mp.UserID, mp.ModuleID)
		if loadErr != nil {
			if shared.IsTransient(loadErr) {
				return retry.Retryable(loadErr)
			}
			return retry.Permanent(loadErr)
		}

		if loaded.MasteryNotified {
			alreadyNotified = true
			return nil
		}

		loaded.MarkMasteryNotified()
		if updateErr := h.progressRepo.Update(ctx, loaded); updateErr != nil {
			if errIsOptimisticLock(updateErr) || shared.IsTransient(updateErr) {
				return retry.Retryable(updateErr)
			}
			return retry.Permanent(updateErr)
		}
		return nil
	})
	if err != nil {
		// Without the flag committed we must not publish: a later retry
		// would double-notify.
		h.log.Warn("mastery flag write failed, suppressing event",
			logger.UserID(mp.UserID),
			logger.ModuleID(mp.ModuleID.String()),
			logger.Err(err),
		)
		return nil
	}
	if alreadyNotified {
		// The flag was committed by a competing write; whoever committed
		// it owns the notification.
		return nil
	}

	return event
}
