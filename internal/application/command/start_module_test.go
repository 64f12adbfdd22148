package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/progress"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
)

func TestStartModule_CreatesProgress(t *testing.T) {
	repo := newMemProgressRepo()
	pub := &capturePublisher{}
	handler := NewStartModuleHandler(repo, newMemContentRepo(threeLessonModule()), pub, testLogger())

	result, err := handler.Handle(context.Background(), StartModuleCommand{
		UserID:   "user-1",
		ModuleID: "test-module",
	})

	require.NoError(t, err)
	assert.False(t, result.AlreadyStarted)
	require.NotNil(t, result.Progress)
	assert.Equal(t, 3, result.Progress.TotalLessons)
	assert.Equal(t, 0, result.Progress.CompletedLessons)

	// First lesson opens in progress on slide 0, the rest stay untouched.
	first := result.Progress.Lessons[0]
	assert.Equal(t, progress.StatusInProgress, first.Status)
	assert.Equal(t, 0, first.SlideIndex)
	assert.Equal(t, progress.StatusNotStarted, result.Progress.Lessons[1].Status)

	assert.Len(t, pub.published(shared.EventModuleStarted), 1)

	stored, err := repo.GetByUserAndModule(context.Background(), "user-1", "test-module")
	require.NoError(t, err)
	assert.Equal(t, result.Progress.ID, stored.ID)
}

func TestStartModule_SecondStartIsIdempotent(t *testing.T) {
	repo := newMemProgressRepo()
	pub := &capturePublisher{}
	handler := NewStartModuleHandler(repo, newMemContentRepo(threeLessonModule()), pub, testLogger())

	first, err := handler.Handle(context.Background(), StartModuleCommand{UserID: "user-1", ModuleID: "test-module"})
	require.NoError(t, err)

	second, err := handler.Handle(context.Background(), StartModuleCommand{UserID: "user-1", ModuleID: "test-module"})
	require.NoError(t, err)

	assert.True(t, second.AlreadyStarted)
	assert.Equal(t, first.Progress.ID, second.Progress.ID)
	assert.Len(t, second.Progress.Lessons, 3)

	// Only the first start announces itself.
	assert.Len(t, pub.published(shared.EventModuleStarted), 1)
}

func TestStartModule_UnknownModule(t *testing.T) {
	handler := NewStartModuleHandler(newMemProgressRepo(), newMemContentRepo(), &capturePublisher{}, testLogger())

	_, err := handler.Handle(context.Background(), StartModuleCommand{UserID: "user-1", ModuleID: "ghost"})

	assert.True(t, shared.IsNotFound(err))
}

func TestStartModule_Validation(t *testing.T) {
	handler := NewStartModuleHandler(newMemProgressRepo(), newMemContentRepo(threeLessonModule()), &capturePublisher{}, testLogger())

	_, err := handler.Handle(context.Background(), StartModuleCommand{ModuleID: "test-module"})
	assert.True(t, shared.IsValidation(err))

	_, err = handler.Handle(context.Background(), StartModuleCommand{UserID: "user-1"})
	assert.True(t, shared.IsValidation(err))
}

func TestStartModule_ConcurrentCreateLosesGracefully(t *testing.T) {
	repo := newMemProgressRepo()
	pub := &capturePublisher{}
	handler := NewStartModuleHandler(repo, newMemContentRepo(threeLessonModule()), pub, testLogger())

	winner, err := handler.Handle(context.Background(), StartModuleCommand{UserID: "user-1", ModuleID: "test-module"})
	require.NoError(t, err)

	// Another writer committed between this handler's existence check and
	// its create: the existence check misses once, the subsequent create
	// hits AlreadyExists, and the handler hands back the winner's aggregate.
	repo.missGetOnce = true

	result, err := handler.Handle(context.Background(), StartModuleCommand{UserID: "user-1", ModuleID: "test-module"})
	require.NoError(t, err)

	assert.True(t, result.AlreadyStarted)
	assert.Equal(t, winner.Progress.ID, result.Progress.ID)
	assert.Len(t, pub.published(shared.EventModuleStarted), 1)
}

func TestStartModule_EmptyModuleRejected(t *testing.T) {
	repo := newMemProgressRepo()
	handler := NewStartModuleHandler(repo, newMemContentRepo(
		threeLessonModule(),
		&content.Module{ID: "empty-module", Title: "Empty"},
	), &capturePublisher{}, testLogger())

	_, err := handler.Handle(context.Background(), StartModuleCommand{UserID: "user-1", ModuleID: "empty-module"})

	assert.True(t, shared.IsValidation(err))
}
