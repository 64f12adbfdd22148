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
// RESET MODULE PROGRESS COMMAND
// The only sanctioned backward transition: every lesson reverts to
// not_started (first lesson to in_progress, slide 0), scores and timestamps
// are cleared, counters and the start time reset.
// ══════════════════════════════════════════════════════════════════════════════

// ResetModuleProgressCommand contains the data to reset module progress.
type ResetModuleProgressCommand struct {
	// UserID is the ID of the learner.
	UserID string

	// ModuleID is the ID of the module to reset.
	ModuleID content.ModuleID

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ResetModuleProgressCommand) Validate() error {
	if c.UserID == "" {
		return shared.NewDomainError("progress", "Reset", shared.ErrEmptyValue, "user_id is required")
	}
	if !c.ModuleID.IsValid() {
		return shared.NewDomainError("progress", "Reset", shared.ErrInvalidID, "module_id is required")
	}
	return nil
}

// ResetModuleProgressResult contains the result of a reset.
type ResetModuleProgressResult struct {
	// Progress is the reset module progress.
	Progress *progress.ModuleProgress

	// Events contains domain events published for this operation.
	Events []shared.Event
}

// ResetModuleProgressHandler handles the ResetModuleProgressCommand.
type ResetModuleProgressHandler struct {
	progressRepo progress.Repository
	publisher    shared.EventPublisher
	retrier      *retry.Retrier
	log          *logger.Logger
	now          func() time.Time
}

// NewResetModuleProgressHandler creates a new ResetModuleProgressHandler.
func NewResetModuleProgressHandler(
	progressRepo progress.Repository,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *ResetModuleProgressHandler {
	return &ResetModuleProgressHandler{
		progressRepo: progressRepo,
		publisher:    publisher,
		retrier:      retry.PersistenceRetrier(),
		log:          log.With(logger.Component("reset_module")),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the command. Returns the no-progress-found signal
// (shared.ErrProgressNotFound) when nothing existed to reset.
func (h *ResetModuleProgressHandler) Handle(ctx context.Context, cmd ResetModuleProgressCommand) (*ResetModuleProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.now()

	var mp *progress.ModuleProgress
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		loaded, loadErr := h.progressRepo.GetByUserAndModule(ctx, cmd.UserID, cmd.ModuleID)
		if loadErr != nil {
			if shared.IsTransient(loadErr) {
				return retry.Retryable(loadErr)
			}
			return retry.Permanent(loadErr)
		}

		loaded.Reset(now)

		if updateErr := h.progressRepo.Update(ctx, loaded); updateErr != nil {
			if errIsOptimisticLock(updateErr) || shared.IsTransient(updateErr) {
				return retry.Retryable(updateErr)
			}
			return retry.Permanent(updateErr)
		}

		mp = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := shared.NewModuleResetEvent(cmd.UserID, cmd.ModuleID.String())
	if pubErr := h.publisher.Publish(ctx, event); pubErr != nil {
		h.log.Warn("publish failed after commit",
			logger.UserID(cmd.UserID),
			logger.ModuleID(cmd.ModuleID.String()),
			logger.Err(pubErr),
		)
	}

	h.log.Info("module progress reset",
		logger.UserID(cmd.UserID),
		logger.ModuleID(cmd.ModuleID.String()),
	)

	return &ResetModuleProgressResult{
		Progress: mp,
		Events:   []shared.Event{event},
	}, nil
}
