// Package command contains write operations (CQRS - Commands).
// Every handler follows the same discipline: validate, mutate inside a
// transactional boundary with bounded retry, and publish events only after
// the mutation is durably committed.
package command

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/progress"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
	"github.com/skillpath/skillpath-engine/pkg/logger"
	"github.com/skillpath/skillpath-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// START MODULE COMMAND
// Idempotent: starting an already-started module returns the existing
// progress unchanged and does not duplicate lesson rows.
// ══════════════════════════════════════════════════════════════════════════════

// StartModuleCommand contains the data to start a module.
type StartModuleCommand struct {
	// UserID is the ID of the learner.
	UserID string

	// ModuleID is the ID of the module to start.
	ModuleID content.ModuleID

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c StartModuleCommand) Validate() error {
	if c.UserID == "" {
		return shared.NewDomainError("progress", "StartModule", shared.ErrEmptyValue, "user_id is required")
	}
	if !c.ModuleID.IsValid() {
		return shared.NewDomainError("progress", "StartModule", shared.ErrInvalidID, "module_id is required")
	}
	return nil
}

// StartModuleResult contains the result of starting a module.
type StartModuleResult struct {
	// Progress is the module progress (existing or newly created).
	Progress *progress.ModuleProgress

	// AlreadyStarted is true when progress existed before this call.
	AlreadyStarted bool

	// Events contains domain events published for this operation.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// StartModuleHandler handles the StartModuleCommand.
type StartModuleHandler struct {
	progressRepo progress.Repository
	contentRepo  content.Repository
	publisher    shared.EventPublisher
	retrier      *retry.Retrier
	log          *logger.Logger
	newID        func() string
	now          func() time.Time
}

// NewStartModuleHandler creates a new StartModuleHandler.
func NewStartModuleHandler(
	progressRepo progress.Repository,
	contentRepo content.Repository,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *StartModuleHandler {
	return &StartModuleHandler{
		progressRepo: progressRepo,
		contentRepo:  contentRepo,
		publisher:    publisher,
		retrier:      retry.PersistenceRetrier(),
		log:          log.With(logger.Component("start_module")),
		newID:        uuid.NewString,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the command.
func (h *StartModuleHandler) Handle(ctx context.Context, cmd StartModuleCommand) (*StartModuleResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Fast path: existing progress is returned unchanged.
	existing, err := h.progressRepo.GetByUserAndModule(ctx, cmd.UserID, cmd.ModuleID)
	if err == nil {
		return &StartModuleResult{Progress: existing, AlreadyStarted: true}, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	// Content lookup goes to the authoritative repository, never the
	// cache: a stale module definition would mint wrong lesson rows.
	// Unknown module is NotFound.
	module, err := h.contentRepo.GetModule(cmd.ModuleID)
	if err != nil {
		return nil, err
	}

	mp, err := progress.NewModuleProgress(progress.NewModuleProgressParams{
		ID:        h.newID(),
		UserID:    cmd.UserID,
		Module:    module,
		LessonIDs: h.newID,
		Now:       h.now(),
	})
	if err != nil {
		return nil, shared.WrapError("progress", "StartModule", shared.ErrValidation, "cannot create progress", err)
	}

	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		createErr := h.progressRepo.Create(ctx, mp)
		if createErr == nil {
			return nil
		}
		if shared.IsAlreadyExists(createErr) || shared.IsNotFound(createErr) {
			return retry.Permanent(createErr)
		}
		if shared.IsTransient(createErr) {
			return retry.Retryable(createErr)
		}
		return retry.Permanent(createErr)
	})
	if err != nil {
		// A concurrent start won the race: idempotent success, return theirs.
		if shared.IsAlreadyExists(err) {
			winner, getErr := h.progressRepo.GetByUserAndModule(ctx, cmd.UserID, cmd.ModuleID)
			if getErr != nil {
				return nil, getErr
			}
			return &StartModuleResult{Progress: winner, AlreadyStarted: true}, nil
		}
		return nil, err
	}

	// Commit first, publish after - never the reverse.
	event := shared.NewModuleStartedEvent(
		cmd.UserID, cmd.ModuleID.String(), mp.TotalLessons, string(mp.CurrentLessonID),
	)
	if pubErr := h.publisher.Publish(ctx, event); pubErr != nil {
		h.log.Warn("publish failed after commit",
			logger.UserID(cmd.UserID),
			logger.ModuleID(cmd.ModuleID.String()),
			logger.Err(pubErr),
		)
	}

	h.log.Info("module started",
		logger.UserID(cmd.UserID),
		logger.ModuleID(cmd.ModuleID.String()),
		logger.Int("total_lessons", mp.TotalLessons),
	)

	return &StartModuleResult{
		Progress: mp,
		Events:   []shared.Event{event},
	}, nil
}

// errIsOptimisticLock reports whether retrying with a fresh read makes sense.
func errIsOptimisticLock(err error) bool {
	return errors.Is(err, shared.ErrOptimisticLock) || errors.Is(err, shared.ErrConcurrentModification)
}
