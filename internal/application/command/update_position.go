package command

import (
	"context"
	"time"

	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/progress"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
	"github.com/skillpath/skillpath-engine/pkg/logger"
	"github.com/skillpath/skillpath-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE LESSON POSITION COMMAND
// Moves the navigation pointer. First touch transitions the lesson from
// not_started to in_progress. Slide-index bounds are deliberately NOT
// validated here - that is the Content Repository's responsibility, so
// out-of-range values are accepted and stored as-is.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateLessonPositionCommand contains the data to update a lesson position.
type UpdateLessonPositionCommand struct {
	// UserID is the ID of the learner.
	UserID string

	// LessonID is the ID of the lesson being navigated.
	LessonID content.LessonID

	// SlideIndex is the new slide index, stored as-is.
	SlideIndex int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UpdateLessonPositionCommand) Validate() error {
	if c.UserID == "" {
		return shared.NewDomainError("progress", "UpdatePosition", shared.ErrEmptyValue, "user_id is required")
	}
	if !c.LessonID.IsValid() {
		return shared.NewDomainError("progress", "UpdatePosition", shared.ErrInvalidID, "lesson_id is required")
	}
	return nil
}

// UpdateLessonPositionResult contains the result of a position update.
type UpdateLessonPositionResult struct {
	// Lesson is the updated lesson progress.
	Lesson *progress.LessonProgress

	// Started is true when this touch moved the lesson to in_progress.
	Started bool

	// Events contains domain events published for this operation.
	Events []shared.Event
}

// UpdateLessonPositionHandler handles the UpdateLessonPositionCommand.
type UpdateLessonPositionHandler struct {
	progressRepo progress.Repository
	publisher    shared.EventPublisher
	retrier      *retry.Retrier
	log          *logger.Logger
	now          func() time.Time
}

// NewUpdateLessonPositionHandler creates a new UpdateLessonPositionHandler.
func NewUpdateLessonPositionHandler(
	progressRepo progress.Repository,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *UpdateLessonPositionHandler {
	return &UpdateLessonPositionHandler{
		progressRepo: progressRepo,
		publisher:    publisher,
		retrier:      retry.PersistenceRetrier(),
		log:          log.With(logger.Component("update_position")),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the command.
func (h *UpdateLessonPositionHandler) Handle(ctx context.Context, cmd UpdateLessonPositionCommand) (*UpdateLessonPositionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.now()

	var lp *progress.LessonProgress
	var started bool

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
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

		started = target.Touch(cmd.SlideIndex, now)

		if updateErr := h.progressRepo.Update(ctx, loaded); updateErr != nil {
			if errIsOptimisticLock(updateErr) || shared.IsTransient(updateErr) {
				return retry.Retryable(updateErr)
			}
			return retry.Permanent(updateErr)
		}

		lp = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := shared.NewLessonPositionUpdatedEvent(cmd.UserID, cmd.LessonID.String(), cmd.SlideIndex, started)
	if pubErr := h.publisher.Publish(ctx, event); pubErr != nil {
		h.log.Warn("publish failed after commit",
			logger.UserID(cmd.UserID),
			logger.LessonID(cmd.LessonID.String()),
			logger.Err(pubErr),
		)
	}

	return &UpdateLessonPositionResult{
		Lesson:  lp,
		Started: started,
		Events:  []shared.Event{event},
	}, nil
}
