// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"time"

	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/progress"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
	"github.com/skillpath/skillpath-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MODULE PROGRESS QUERY
// Читающий запрос прогресса по модулю. Чтения некритичны для корректности,
// поэтому при сбое хранилища запрос деградирует до пустого результата,
// а не пробрасывает ошибку вызывающему.
// ══════════════════════════════════════════════════════════════════════════════

// GetModuleProgressQuery содержит параметры запроса прогресса.
type GetModuleProgressQuery struct {
	// UserID - идентификатор пользователя.
	UserID string

	// ModuleID - идентификатор модуля (пустой = все модули пользователя).
	ModuleID content.ModuleID
}

// Validate проверяет корректность параметров запроса.
func (q *GetModuleProgressQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id must be provided")
	}
	return nil
}

// LessonProgressDTO - DTO прогресса одного урока.
type LessonProgressDTO struct {
	// LessonID - идентификатор урока.
	LessonID string `json:"lesson_id"`

	// Status - статус прохождения.
	Status string `json:"status"`

	// SlideIndex - текущий индекс слайда.
	SlideIndex int `json:"slide_index"`

	// QuizScore - балл за квиз.
	QuizScore int `json:"quiz_score"`

	// QuizFeedback - текст обратной связи.
	QuizFeedback string `json:"quiz_feedback,omitempty"`

	// TimeSpentSeconds - затраченное время.
	TimeSpentSeconds int `json:"time_spent_seconds"`

	// StartedAt - время начала.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt - время завершения.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ModuleProgressDTO - DTO прогресса модуля.
type ModuleProgressDTO struct {
	// ModuleID - идентификатор модуля.
	ModuleID string `json:"module_id"`

	// StartedAt - время начала модуля.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt - время завершения модуля.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CurrentLessonID - указатель на текущий урок.
	CurrentLessonID string `json:"current_lesson_id"`

	// CompletedLessons - завершено уроков.
	CompletedLessons int `json:"completed_lessons"`

	// TotalLessons - всего уроков.
	TotalLessons int `json:"total_lessons"`

	// AverageScore - средний балл по завершённым урокам.
	AverageScore float64 `json:"average_score"`

	// Lessons - прогресс по урокам.
	Lessons []LessonProgressDTO `json:"lessons"`
}

// GetModuleProgressResult - результат запроса.
type GetModuleProgressResult struct {
	// Modules - прогресс по модулям (пустой срез при отсутствии или сбое).
	Modules []ModuleProgressDTO `json:"modules"`

	// Degraded - true, если результат пуст из-за сбоя хранилища.
	Degraded bool `json:"degraded,omitempty"`
}

// GetModuleProgressHandler обрабатывает GetModuleProgressQuery.
type GetModuleProgressHandler struct {
	progressRepo progress.Repository
	log          *logger.Logger
}

// NewGetModuleProgressHandler создаёт обработчик запроса.
func NewGetModuleProgressHandler(progressRepo progress.Repository, log *logger.Logger) *GetModuleProgressHandler {
	return &GetModuleProgressHandler{
		progressRepo: progressRepo,
		log:          log.With(logger.Component("get_progress")),
	}
}

// Handle выполняет запрос.
func (h *GetModuleProgressHandler) Handle(ctx context.Context, q GetModuleProgressQuery) (*GetModuleProgressResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var aggregates []*progress.ModuleProgress
	var err error

	if q.ModuleID.IsValid() {
		var mp *progress.ModuleProgress
		mp, err = h.progressRepo.GetByUserAndModule(ctx, q.UserID, q.ModuleID)
		if err == nil {
			aggregates = []*progress.ModuleProgress{mp}
		}
	} else {
		aggregates, err = h.progressRepo.GetAllByUser(ctx, q.UserID)
	}

	if err != nil {
		// Отсутствие прогресса - обычный пустой результат.
		if shared.IsNotFound(err) {
			return &GetModuleProgressResult{Modules: []ModuleProgressDTO{}}, nil
		}
		// Деградация до пустого результата: чтение некритично.
		h.log.Warn("progress read degraded", logger.UserID(q.UserID), logger.Err(err))
		return &GetModuleProgressResult{Modules: []ModuleProgressDTO{}, Degraded: true}, nil
	}

	result := &GetModuleProgressResult{Modules: make([]ModuleProgressDTO, 0, len(aggregates))}
	for _, mp := range aggregates {
		result.Modules = append(result.Modules, toModuleProgressDTO(mp))
	}
	return result, nil
}

// toModuleProgressDTO преобразует агрегат в DTO.
func toModuleProgressDTO(mp *progress.ModuleProgress) ModuleProgressDTO {
	dto := ModuleProgressDTO{
		ModuleID:         mp.ModuleID.String(),
		StartedAt:        mp.StartedAt,
		CompletedAt:      mp.CompletedAt,
		CurrentLessonID:  mp.CurrentLessonID.String(),
		CompletedLessons: mp.CompletedLessons,
		TotalLessons:     mp.TotalLessons,
		AverageScore:     mp.AverageScore(),
		Lessons:          make([]LessonProgressDTO, 0, len(mp.Lessons)),
	}
	for _, lp := range mp.Lessons {
		dto.Lessons = append(dto.Lessons, LessonProgressDTO{
			LessonID:         lp.LessonID.String(),
			Status:           string(lp.Status),
			SlideIndex:       lp.SlideIndex,
			QuizScore:        lp.QuizScore,
			QuizFeedback:     lp.QuizFeedback,
			TimeSpentSeconds: lp.TimeSpentSeconds,
			StartedAt:        lp.StartedAt,
			CompletedAt:      lp.CompletedAt,
		})
	}
	return dto
}
