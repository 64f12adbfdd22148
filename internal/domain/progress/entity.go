// Package progress содержит доменную модель прогресса обучения.
// Это ядро движка - конечный автомат статусов уроков и агрегат
// прогресса модуля с производным счётчиком завершённых уроков.
package progress

import (
	"errors"
	"time"

	"github.com/skillpath/skillpath-engine/internal/domain/content"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON STATUS (конечный автомат)
// ══════════════════════════════════════════════════════════════════════════════

// LessonStatus определяет статус прохождения урока.
// Переходы только вперёд: not_started -> in_progress -> completed.
// Назад - только через явный сброс прогресса модуля.
type LessonStatus string

const (
	// StatusNotStarted - урок не начат.
	StatusNotStarted LessonStatus = "not_started"
	// StatusInProgress - урок начат, но не завершён.
	StatusInProgress LessonStatus = "in_progress"
	// StatusCompleted - урок завершён.
	StatusCompleted LessonStatus = "completed"
)

// IsValid проверяет, что статус корректен.
func (s LessonStatus) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет допустимость перехода в новый статус.
func (s LessonStatus) CanTransitionTo(next LessonStatus) bool {
	switch s {
	case StatusNotStarted:
		return next == StatusInProgress || next == StatusCompleted
	case StatusInProgress:
		return next == StatusCompleted
	case StatusCompleted:
		return false
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrBackwardTransition - попытка перевести статус назад.
	ErrBackwardTransition = errors.New("lesson status cannot transition backward")

	// ErrLessonAlreadyCompleted - урок уже завершён.
	ErrLessonAlreadyCompleted = errors.New("lesson already completed")

	// ErrLessonNotInModule - урок не принадлежит модулю.
	ErrLessonNotInModule = errors.New("lesson does not belong to module")

	// ErrNoLessons - модуль без уроков не может быть начат.
	ErrNoLessons = errors.New("module has no lessons")
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// LessonProgress - прогресс пользователя по одному уроку.
// Принадлежит своему ModuleProgress.
type LessonProgress struct {
	// ID - внутренний идентификатор записи (UUID).
	ID string

	// UserID - идентификатор пользователя.
	UserID string

	// LessonID - идентификатор урока.
	LessonID content.LessonID

	// ModuleID - идентификатор модуля-владельца.
	ModuleID content.ModuleID

	// Status - текущий статус прохождения.
	Status LessonStatus

	// SlideIndex - текущий индекс слайда. -1 для не начатых уроков.
	// Границы индекса здесь не проверяются: это зона ответственности
	// Content Repository, значения вне диапазона сохраняются как есть.
	SlideIndex int

	// QuizScore - балл за квиз (0, если квиза не было).
	QuizScore int

	// QuizFeedback - текст обратной связи, выбранный по баллу.
	QuizFeedback string

	// TimeSpentSeconds - затраченное время в секундах.
	TimeSpentSeconds int

	// StartedAt - время начала урока.
	StartedAt *time.Time

	// CompletedAt - время завершения урока.
	CompletedAt *time.Time
}

// Touch переводит урок из not_started в in_progress при первом касании
// и обновляет позицию слайда. Возвращает true, если статус изменился.
func (lp *LessonProgress) Touch(slideIndex int, now time.Time) bool {
	lp.SlideIndex = slideIndex

	if lp.Status == StatusNotStarted {
		lp.Status = StatusInProgress
		started := now
		lp.StartedAt = &started
		return true
	}
	return false
}

// Complete завершает урок. Переход completed -> completed запрещён,
// повторное завершение возвращает ErrLessonAlreadyCompleted.
func (lp *LessonProgress) Complete(score int, feedback string, timeSpentSeconds int, now time.Time) error {
	if lp.Status == StatusCompleted {
		return ErrLessonAlreadyCompleted
	}

	if lp.Status == StatusNotStarted {
		started := now
		lp.StartedAt = &started
	}

	lp.Status = StatusCompleted
	lp.QuizScore = score
	lp.QuizFeedback = feedback
	lp.TimeSpentSeconds = timeSpentSeconds
	completed := now
	lp.CompletedAt = &completed

	return nil
}

// Reset возвращает урок в исходное состояние.
// Первый урок модуля становится in_progress со слайдом 0.
func (lp *LessonProgress) Reset(first bool, now time.Time) {
	lp.QuizScore = 0
	lp.QuizFeedback = ""
	lp.TimeSpentSeconds = 0
	lp.CompletedAt = nil

	if first {
		lp.Status = StatusInProgress
		lp.SlideIndex = 0
		started := now
		lp.StartedAt = &started
		return
	}

	lp.Status = StatusNotStarted
	lp.SlideIndex = -1
	lp.StartedAt = nil
}

// IsCompleted возвращает true, если урок завершён.
func (lp *LessonProgress) IsCompleted() bool {
	return lp.Status == StatusCompleted
}

// ══════════════════════════════════════════════════════════════════════════════
// MODULE PROGRESS (агрегат)
// ══════════════════════════════════════════════════════════════════════════════

// ModuleProgress - агрегат прогресса пользователя по модулю.
// Владеет коллекцией LessonProgress. Счётчик завершённых уроков -
// производная величина: всегда пересчитывается из дочерних записей,
// сохранённое значение лишь кэшированная проекция.
type ModuleProgress struct {
	// ID - внутренний идентификатор записи (UUID).
	ID string

	// UserID - идентификатор пользователя.
	UserID string

	// ModuleID - идентификатор модуля.
	ModuleID content.ModuleID

	// StartedAt - время начала модуля.
	StartedAt time.Time

	// CompletedAt - время завершения модуля. Устанавливается ровно один
	// раз, когда завершены все уроки.
	CompletedAt *time.Time

	// CurrentLessonID - указатель на текущий урок.
	CurrentLessonID content.LessonID

	// CompletedLessons - количество завершённых уроков (проекция).
	CompletedLessons int

	// TotalLessons - общее количество уроков модуля.
	TotalLessons int

	// MasteryNotified - флаг "уведомление о мастерстве отправлено".
	// Хранится рядом с CompletedAt, чтобы повторные триггеры после
	// завершения модуля были no-op.
	MasteryNotified bool

	// Lessons - дочерние записи прогресса уроков.
	Lessons []*LessonProgress

	// Version - версия для оптимистичной блокировки.
	Version int
}

// NewModuleProgressParams содержит параметры создания прогресса модуля.
type NewModuleProgressParams struct {
	ID        string
	UserID    string
	Module    *content.Module
	LessonIDs func() string // генератор идентификаторов дочерних записей
	Now       time.Time
}

// NewModuleProgress создаёт прогресс модуля: по одной записи на урок в
// порядке номеров; первый урок in_progress со слайдом 0, остальные
// not_started со слайдом -1.
func NewModuleProgress(params NewModuleProgressParams) (*ModuleProgress, error) {
	if params.ID == "" {
		return nil, errors.New("module progress id is required")
	}
	if params.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if params.Module == nil || params.Module.LessonCount() == 0 {
		return nil, ErrNoLessons
	}

	ordered := params.Module.OrderedLessons()
	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	mp := &ModuleProgress{
		ID:              params.ID,
		UserID:          params.UserID,
		ModuleID:        params.Module.ID,
		StartedAt:       now,
		CurrentLessonID: ordered[0].ID,
		TotalLessons:    len(ordered),
		Lessons:         make([]*LessonProgress, 0, len(ordered)),
	}

	for i, lesson := range ordered {
		lp := &LessonProgress{
			UserID:     params.UserID,
			LessonID:   lesson.ID,
			ModuleID:   params.Module.ID,
			Status:     StatusNotStarted,
			SlideIndex: -1,
		}
		if params.LessonIDs != nil {
			lp.ID = params.LessonIDs()
		}
		if i == 0 {
			lp.Status = StatusInProgress
			lp.SlideIndex = 0
			started := now
			lp.StartedAt = &started
		}
		mp.Lessons = append(mp.Lessons, lp)
	}

	return mp, nil
}

// FindLesson возвращает дочернюю запись по идентификатору урока.
func (mp *ModuleProgress) FindLesson(id content.LessonID) *LessonProgress {
	for _, lp := range mp.Lessons {
		if lp.LessonID == id {
			return lp
		}
	}
	return nil
}

// RecomputeCompleted пересчитывает счётчик завершённых уроков из дочерних
// записей и устанавливает CompletedAt, когда счётчик достигает общего
// количества. Возвращает true, если модуль завершился именно сейчас.
func (mp *ModuleProgress) RecomputeCompleted(now time.Time) (justCompleted bool) {
	count := 0
	for _, lp := range mp.Lessons {
		if lp.IsCompleted() {
			count++
		}
	}
	mp.CompletedLessons = count

	if count == mp.TotalLessons && mp.CompletedAt == nil {
		completed := now
		mp.CompletedAt = &completed
		return true
	}
	return false
}

// IsCompleted возвращает true, если модуль завершён.
func (mp *ModuleProgress) IsCompleted() bool {
	return mp.CompletedAt != nil
}

// AverageScore возвращает средний балл по завершённым урокам.
// Для модуля без завершённых уроков возвращает 0.
func (mp *ModuleProgress) AverageScore() float64 {
	sum := 0
	count := 0
	for _, lp := range mp.Lessons {
		if lp.IsCompleted() {
			sum += lp.QuizScore
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}

// AdvanceCurrentLesson переводит указатель текущего урока на первый
// незавершённый урок.
func (mp *ModuleProgress) AdvanceCurrentLesson() {
	for _, lp := range mp.Lessons {
		if !lp.IsCompleted() {
			mp.CurrentLessonID = lp.LessonID
			return
		}
	}
}

// Reset возвращает агрегат в исходное состояние: все уроки сбрасываются,
// первый урок in_progress со слайдом 0, счётчики и время старта обнуляются.
func (mp *ModuleProgress) Reset(now time.Time) {
	for i, lp := range mp.Lessons {
		lp.Reset(i == 0, now)
	}
	mp.StartedAt = now
	mp.CompletedAt = nil
	mp.CompletedLessons = 0
	mp.MasteryNotified = false
	if len(mp.Lessons) > 0 {
		mp.CurrentLessonID = mp.Lessons[0].LessonID
	}
}

// MarkMasteryNotified взводит флаг отправленного уведомления о мастерстве.
func (mp *ModuleProgress) MarkMasteryNotified() {
	mp.MasteryNotified = true
}

// Clone создаёт глубокую копию агрегата.
func (mp *ModuleProgress) Clone() *ModuleProgress {
	if mp == nil {
		return nil
	}

	clone := *mp
	clone.Lessons = make([]*LessonProgress, len(mp.Lessons))
	for i, lp := range mp.Lessons {
		lpCopy := *lp
		if lp.StartedAt != nil {
			t := *lp.StartedAt
			lpCopy.StartedAt = &t
		}
		if lp.CompletedAt != nil {
			t := *lp.CompletedAt
			lpCopy.CompletedAt = &t
		}
		clone.Lessons[i] = &lpCopy
	}
	if mp.CompletedAt != nil {
		t := *mp.CompletedAt
		clone.CompletedAt = &t
	}
	return &clone
}
