package shared

import (
	"context"
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the engine and is published to the external Event Bus after
// the triggering mutation commits.
const (
	// Progress events
	EventModuleStarted         EventType = "progress.module_started"
	EventLessonPositionUpdated EventType = "progress.lesson_position_updated"
	EventLessonCompleted       EventType = "progress.lesson_completed"
	EventModuleCompleted       EventType = "progress.module_completed"
	EventModuleReset           EventType = "progress.module_reset"

	// Achievement events
	EventBadgeAwarded    EventType = "achievement.badge_awarded"
	EventMasteryAchieved EventType = "achievement.mastery_achieved"

	// Streak events
	EventStreakUpdated   EventType = "streak.updated"
	EventStreakMilestone EventType = "streak.milestone_reached"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ModuleStartedEvent is emitted when a user starts a module for the first time.
type ModuleStartedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	ModuleID     string `json:"module_id"`
	TotalLessons int    `json:"total_lessons"`
	FirstLesson  string `json:"first_lesson"`
}

// Payload implements Event interface.
func (e ModuleStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"module_id":     e.ModuleID,
		"total_lessons": e.TotalLessons,
		"first_lesson":  e.FirstLesson,
	}
}

// NewModuleStartedEvent creates a new ModuleStartedEvent.
func NewModuleStartedEvent(userID, moduleID string, totalLessons int, firstLesson string) ModuleStartedEvent {
	return ModuleStartedEvent{
		BaseEvent:    NewBaseEvent(EventModuleStarted, userID),
		UserID:       userID,
		ModuleID:     moduleID,
		TotalLessons: totalLessons,
		FirstLesson:  firstLesson,
	}
}

// LessonPositionUpdatedEvent is emitted when a user navigates to a new slide.
type LessonPositionUpdatedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	LessonID   string `json:"lesson_id"`
	SlideIndex int    `json:"slide_index"`
	Started    bool   `json:"started"` // true when this touch moved the lesson to in_progress
}

// Payload implements Event interface.
func (e LessonPositionUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"lesson_id":   e.LessonID,
		"slide_index": e.SlideIndex,
		"started":     e.Started,
	}
}

// NewLessonPositionUpdatedEvent creates a new LessonPositionUpdatedEvent.
func NewLessonPositionUpdatedEvent(userID, lessonID string, slideIndex int, started bool) LessonPositionUpdatedEvent {
	return LessonPositionUpdatedEvent{
		BaseEvent:  NewBaseEvent(EventLessonPositionUpdated, userID),
		UserID:     userID,
		LessonID:   lessonID,
		SlideIndex: slideIndex,
		Started:    started,
	}
}

// LessonCompletedEvent is emitted when a user completes a lesson.
type LessonCompletedEvent struct {
	BaseEvent
	UserID           string `json:"user_id"`
	ModuleID         string `json:"module_id"`
	LessonID         string `json:"lesson_id"`
	Score            int    `json:"score"`
	Percentage       float64 `json:"percentage"`
	Passed           bool   `json:"passed"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
	CompletedLessons int    `json:"completed_lessons"`
	TotalLessons     int    `json:"total_lessons"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":            e.UserID,
		"module_id":          e.ModuleID,
		"lesson_id":          e.LessonID,
		"score":              e.Score,
		"percentage":         e.Percentage,
		"passed":             e.Passed,
		"time_spent_seconds": e.TimeSpentSeconds,
		"completed_lessons":  e.CompletedLessons,
		"total_lessons":      e.TotalLessons,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(userID, moduleID, lessonID string, score int, percentage float64, passed bool, timeSpent, completed, total int) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent:        NewBaseEvent(EventLessonCompleted, userID),
		UserID:           userID,
		ModuleID:         moduleID,
		LessonID:         lessonID,
		Score:            score,
		Percentage:       percentage,
		Passed:           passed,
		TimeSpentSeconds: timeSpent,
		CompletedLessons: completed,
		TotalLessons:     total,
	}
}

// ModuleCompletedEvent is emitted once, when the last lesson of a module completes.
type ModuleCompletedEvent struct {
	BaseEvent
	UserID       string    `json:"user_id"`
	ModuleID     string    `json:"module_id"`
	TotalLessons int       `json:"total_lessons"`
	AverageScore float64   `json:"average_score"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Payload implements Event interface.
func (e ModuleCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"module_id":     e.ModuleID,
		"total_lessons": e.TotalLessons,
		"average_score": e.AverageScore,
		"completed_at":  e.CompletedAt.Format(time.RFC3339),
	}
}

// NewModuleCompletedEvent creates a new ModuleCompletedEvent.
func NewModuleCompletedEvent(userID, moduleID string, totalLessons int, averageScore float64, completedAt time.Time) ModuleCompletedEvent {
	return ModuleCompletedEvent{
		BaseEvent:    NewBaseEvent(EventModuleCompleted, userID),
		UserID:       userID,
		ModuleID:     moduleID,
		TotalLessons: totalLessons,
		AverageScore: averageScore,
		CompletedAt:  completedAt,
	}
}

// ModuleResetEvent is emitted when a user's module progress is reset.
type ModuleResetEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	ModuleID string `json:"module_id"`
}

// Payload implements Event interface.
func (e ModuleResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"module_id": e.ModuleID,
	}
}

// NewModuleResetEvent creates a new ModuleResetEvent.
func NewModuleResetEvent(userID, moduleID string) ModuleResetEvent {
	return ModuleResetEvent{
		BaseEvent: NewBaseEvent(EventModuleReset, userID),
		UserID:    userID,
		ModuleID:  moduleID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// BadgeAwardedEvent is emitted when a user earns a badge for the first time.
type BadgeAwardedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	BadgeID     string `json:"badge_id"`
	BadgeName   string `json:"badge_name"`
	Description string `json:"description"`
	Rarity      string `json:"rarity"`
	ModuleID    string `json:"module_id"`
}

// Payload implements Event interface.
func (e BadgeAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"badge_id":    e.BadgeID,
		"badge_name":  e.BadgeName,
		"description": e.Description,
		"rarity":      e.Rarity,
		"module_id":   e.ModuleID,
	}
}

// NewBadgeAwardedEvent creates a new BadgeAwardedEvent.
func NewBadgeAwardedEvent(userID, badgeID, badgeName, description, rarity, moduleID string) BadgeAwardedEvent {
	return BadgeAwardedEvent{
		BaseEvent:   NewBaseEvent(EventBadgeAwarded, userID),
		UserID:      userID,
		BadgeID:     badgeID,
		BadgeName:   badgeName,
		Description: description,
		Rarity:      rarity,
		ModuleID:    moduleID,
	}
}

// MasteryAchievedEvent is emitted exactly once per (user, module) when the
// module completes with a score above the lowest mastery threshold.
type MasteryAchievedEvent struct {
	BaseEvent
	UserID       string   `json:"user_id"`
	ModuleID     string   `json:"module_id"`
	Tier         string   `json:"tier"`
	Score        float64  `json:"score"`
	Capabilities []string `json:"capabilities"`
	Message      string   `json:"message"`
}

// Payload implements Event interface.
func (e MasteryAchievedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"module_id":    e.ModuleID,
		"tier":         e.Tier,
		"score":        e.Score,
		"capabilities": e.Capabilities,
		"message":      e.Message,
	}
}

// NewMasteryAchievedEvent creates a new MasteryAchievedEvent.
func NewMasteryAchievedEvent(userID, moduleID, tier string, score float64, capabilities []string, message string) MasteryAchievedEvent {
	return MasteryAchievedEvent{
		BaseEvent:    NewBaseEvent(EventMasteryAchieved, userID),
		UserID:       userID,
		ModuleID:     moduleID,
		Tier:         tier,
		Score:        score,
		Capabilities: capabilities,
		Message:      message,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakUpdatedEvent is emitted when a user's daily streak changes.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	WasReset      bool   `json:"was_reset"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
		"was_reset":      e.WasReset,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, current, longest int, wasReset bool) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, userID),
		UserID:        userID,
		CurrentStreak: current,
		LongestStreak: longest,
		WasReset:      wasReset,
	}
}

// StreakMilestoneEvent is emitted only when the streak lands exactly on a
// milestone value, so it fires once per passage.
type StreakMilestoneEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	Milestone int    `json:"milestone"`
}

// Payload implements Event interface.
func (e StreakMilestoneEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"milestone": e.Milestone,
	}
}

// NewStreakMilestoneEvent creates a new StreakMilestoneEvent.
func NewStreakMilestoneEvent(userID string, milestone int) StreakMilestoneEvent {
	return StreakMilestoneEvent{
		BaseEvent: NewBaseEvent(EventStreakMilestone, userID),
		UserID:    userID,
		Milestone: milestone,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
// The engine is a producer only; delivery semantics are at-least-once and
// subscribers are expected to be idempotent.
type EventPublisher interface {
	// Publish sends an event to subscribers. The context carries the
	// caller's cancellation signal.
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
