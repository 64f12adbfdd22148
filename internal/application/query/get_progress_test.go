package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillpath/skillpath-engine/internal/domain/progress"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
)

func TestGetModuleProgress_SingleModule(t *testing.T) {
	repo := &queryProgressRepo{aggregates: []*progress.ModuleProgress{
		seededProgress("user-1", "go-basics", 3, []int{100, 80}),
	}}
	handler := NewGetModuleProgressHandler(repo, testLogger())

	result, err := handler.Handle(context.Background(), GetModuleProgressQuery{
		UserID: "user-1", ModuleID: "go-basics",
	})

	require.NoError(t, err)
	assert.False(t, result.Degraded)
	require.Len(t, result.Modules, 1)

	dto := result.Modules[0]
	assert.Equal(t, "go-basics", dto.ModuleID)
	assert.Equal(t, 2, dto.CompletedLessons)
	assert.Equal(t, 3, dto.TotalLessons)
	assert.InDelta(t, 90.0, dto.AverageScore, 0.0001)
	assert.Equal(t, "go-basics-lesson-3", dto.CurrentLessonID)
	assert.Nil(t, dto.CompletedAt)

	require.Len(t, dto.Lessons, 3)
	assert.Equal(t, "go-basics-lesson-1", dto.Lessons[0].LessonID)
	assert.Equal(t, "completed", dto.Lessons[0].Status)
	assert.Equal(t, 100, dto.Lessons[0].QuizScore)
	assert.NotNil(t, dto.Lessons[0].CompletedAt)
	assert.Equal(t, "not_started", dto.Lessons[2].Status)
	assert.Nil(t, dto.Lessons[2].CompletedAt)
}

func TestGetModuleProgress_AllModules(t *testing.T) {
	repo := &queryProgressRepo{aggregates: []*progress.ModuleProgress{
		seededProgress("user-1", "go-basics", 3, []int{100}),
		seededProgress("user-1", "sql-foundations", 2, nil),
		seededProgress("user-2", "go-basics", 3, []int{70}),
	}}
	handler := NewGetModuleProgressHandler(repo, testLogger())

	result, err := handler.Handle(context.Background(), GetModuleProgressQuery{UserID: "user-1"})

	require.NoError(t, err)
	assert.Len(t, result.Modules, 2)
}

func TestGetModuleProgress_CompletedModuleDTO(t *testing.T) {
	repo := &queryProgressRepo{aggregates: []*progress.ModuleProgress{
		seededProgress("user-1", "go-basics", 2, []int{100, 90}),
	}}
	handler := NewGetModuleProgressHandler(repo, testLogger())

	result, err := handler.Handle(context.Background(), GetModuleProgressQuery{
		UserID: "user-1", ModuleID: "go-basics",
	})

	require.NoError(t, err)
	require.Len(t, result.Modules, 1)
	assert.NotNil(t, result.Modules[0].CompletedAt)
	assert.Equal(t, 2, result.Modules[0].CompletedLessons)
	assert.InDelta(t, 95.0, result.Modules[0].AverageScore, 0.0001)
}

func TestGetModuleProgress_NoProgressIsEmptyNotDegraded(t *testing.T) {
	repo := &queryProgressRepo{}
	handler := NewGetModuleProgressHandler(repo, testLogger())

	result, err := handler.Handle(context.Background(), GetModuleProgressQuery{
		UserID: "user-1", ModuleID: "go-basics",
	})

	require.NoError(t, err)
	assert.Empty(t, result.Modules)
	assert.NotNil(t, result.Modules)
	assert.False(t, result.Degraded)
}

func TestGetModuleProgress_StorageFailureDegrades(t *testing.T) {
	repo := &queryProgressRepo{getErr: shared.NewDomainError("progress", "Get", shared.ErrTransient, "connection refused")}
	handler := NewGetModuleProgressHandler(repo, testLogger())

	result, err := handler.Handle(context.Background(), GetModuleProgressQuery{UserID: "user-1"})

	require.NoError(t, err)
	assert.Empty(t, result.Modules)
	assert.True(t, result.Degraded)
}

func TestGetModuleProgress_Validation(t *testing.T) {
	handler := NewGetModuleProgressHandler(&queryProgressRepo{}, testLogger())

	_, err := handler.Handle(context.Background(), GetModuleProgressQuery{})
	assert.Error(t, err)
}
