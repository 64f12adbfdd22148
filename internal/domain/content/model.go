// Package content содержит read-only определения учебного контента.
// Движок прогресса не владеет контентом - модули, уроки и квизы приходят
// из внешнего Content Repository и неизменяемы в рамках запроса.
package content

import (
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ModuleID представляет уникальный идентификатор модуля.
type ModuleID string

// IsValid проверяет, что идентификатор непустой.
func (m ModuleID) IsValid() bool {
	return len(m) > 0
}

// String возвращает строковое представление идентификатора.
func (m ModuleID) String() string {
	return string(m)
}

// LessonID представляет уникальный идентификатор урока.
type LessonID string

// IsValid проверяет, что идентификатор непустой.
func (l LessonID) IsValid() bool {
	return len(l) > 0
}

// String возвращает строковое представление идентификатора.
func (l LessonID) String() string {
	return string(l)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Module - учебный модуль верхнего уровня с упорядоченными уроками.
type Module struct {
	// ID - идентификатор модуля.
	ID ModuleID

	// Title - название модуля.
	Title string

	// Description - краткое описание модуля.
	Description string

	// Lessons - уроки модуля. Порядок определяется полем Number.
	Lessons []Lesson
}

// LessonCount возвращает количество уроков в модуле.
func (m *Module) LessonCount() int {
	return len(m.Lessons)
}

// OrderedLessons возвращает уроки, отсортированные по номеру.
func (m *Module) OrderedLessons() []Lesson {
	lessons := make([]Lesson, len(m.Lessons))
	copy(lessons, m.Lessons)
	sort.Slice(lessons, func(i, j int) bool {
		return lessons[i].Number < lessons[j].Number
	})
	return lessons
}

// FindLesson ищет урок по идентификатору.
func (m *Module) FindLesson(id LessonID) (Lesson, bool) {
	for _, l := range m.Lessons {
		if l.ID == id {
			return l, true
		}
	}
	return Lesson{}, false
}

// Lesson - адресуемая единица контента со слайдами и опциональным квизом.
type Lesson struct {
	// ID - идентификатор урока.
	ID LessonID

	// ModuleID - идентификатор модуля-владельца.
	ModuleID ModuleID

	// Number - порядковый номер урока внутри модуля (с 1).
	Number int

	// Title - название урока.
	Title string

	// SlideCount - количество слайдов.
	SlideCount int

	// Quiz - вопросы квиза. Пустой срез означает урок без квиза.
	Quiz []Question

	// EstimatedMinutes - ориентировочное время прохождения.
	EstimatedMinutes int
}

// HasQuiz возвращает true, если у урока есть квиз.
func (l Lesson) HasQuiz() bool {
	return len(l.Quiz) > 0
}

// CorrectAnswers возвращает авторитетную карту правильных ответов
// (id вопроса -> индекс правильного варианта).
func (l Lesson) CorrectAnswers() map[string]int {
	answers := make(map[string]int, len(l.Quiz))
	for _, q := range l.Quiz {
		answers[q.ID] = q.CorrectIndex
	}
	return answers
}

// Question - один вопрос квиза с вариантами ответов.
type Question struct {
	// ID - идентификатор вопроса.
	ID string

	// Text - текст вопроса.
	Text string

	// Options - варианты ответов.
	Options []string

	// CorrectIndex - индекс правильного варианта.
	CorrectIndex int
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY (внешний коллаборатор)
// ══════════════════════════════════════════════════════════════════════════════

// Repository - read-only интерфейс Content Repository.
// Отсутствующие записи движок трактует как NotFound.
type Repository interface {
	// GetModule возвращает модуль по идентификатору.
	GetModule(id ModuleID) (*Module, error)

	// GetLesson возвращает урок по идентификатору.
	GetLesson(id LessonID) (*Lesson, error)
}
