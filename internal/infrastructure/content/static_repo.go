// Package content provides the engine's built-in content adapter: a static
// in-memory catalog of modules, lessons and quizzes, plus the default badge
// and mastery configuration. In production the catalog is loaded from the
// upstream content service; the static set keeps local runs and tests real.
package content

import (
	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATIC REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// StaticRepository implements content.Repository over an in-memory module set.
// Content is immutable after construction; lookups are lock-free reads over
// prebuilt indexes.
type StaticRepository struct {
	modules   map[content.ModuleID]*content.Module
	lessons   map[content.LessonID]*content.Lesson
	moduleSet []*content.Module
}

// NewStaticRepository builds a repository from the given modules.
func NewStaticRepository(modules []*content.Module) *StaticRepository {
	r := &StaticRepository{
		moduleSet: modules,
		modules:   make(map[content.ModuleID]*content.Module, len(modules)),
		lessons:   make(map[content.LessonID]*content.Lesson),
	}
	for _, m := range modules {
		r.modules[m.ID] = m
		for i := range m.Lessons {
			lesson := &m.Lessons[i]
			r.lessons[lesson.ID] = lesson
		}
	}
	return r
}

// NewDefaultRepository builds a repository with the built-in curriculum.
func NewDefaultRepository() *StaticRepository {
	return NewStaticRepository(DefaultCurriculum())
}

// GetModule returns the module or shared.ErrModuleNotFound.
func (r *StaticRepository) GetModule(id content.ModuleID) (*content.Module, error) {
	m, ok := r.modules[id]
	if !ok {
		return nil, shared.ErrModuleNotFound
	}
	return m, nil
}

// GetLesson returns the lesson or shared.ErrLessonNotFound.
func (r *StaticRepository) GetLesson(id content.LessonID) (*content.Lesson, error) {
	l, ok := r.lessons[id]
	if !ok {
		return nil, shared.ErrLessonNotFound
	}
	return l, nil
}

// Modules returns all modules in the catalog.
func (r *StaticRepository) Modules() []*content.Module {
	return r.moduleSet
}

// interface conformance check
var _ content.Repository = (*StaticRepository)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// BUILT-IN CURRICULUM
// ══════════════════════════════════════════════════════════════════════════════

// DefaultCurriculum returns the built-in module set.
func DefaultCurriculum() []*content.Module {
	return []*content.Module{
		{
			ID:          "go-basics",
			Title:       "Go Basics",
			Description: "Syntax, types and control flow of the Go language.",
			Lessons: []content.Lesson{
				{
					ID:               "go-basics-01",
					ModuleID:         "go-basics",
					Number:           1,
					Title:            "Hello, Go",
					SlideCount:       8,
					EstimatedMinutes: 15,
					Quiz: []content.Question{
						{
							ID:           "gb1-q1",
							Text:         "Which keyword declares a new variable with inferred type?",
							Options:      []string{"var", ":=", "let", "def"},
							CorrectIndex: 1,
						},
						{
							ID:           "gb1-q2",
							Text:         "What is the entry point of a Go program?",
							Options:      []string{"init", "start", "main", "run"},
							CorrectIndex: 2,
						},
					},
				},
				{
					ID:               "go-basics-02",
					ModuleID:         "go-basics",
					Number:           2,
					Title:            "Types and Structs",
					SlideCount:       12,
					EstimatedMinutes: 25,
					Quiz: []content.Question{
						{
							ID:           "gb2-q1",
							Text:         "Which type holds a sequence of bytes?",
							Options:      []string{"[]byte", "bytes", "charseq", "blob"},
							CorrectIndex: 0,
						},
						{
							ID:           "gb2-q2",
							Text:         "Struct fields starting with a lowercase letter are:",
							Options:      []string{"exported", "unexported", "constant", "invalid"},
							CorrectIndex: 1,
						},
						{
							ID:           "gb2-q3",
							Text:         "What is the zero value of a pointer?",
							Options:      []string{"0", "undefined", "nil", "empty"},
							CorrectIndex: 2,
						},
					},
				},
				{
					ID:               "go-basics-03",
					ModuleID:         "go-basics",
					Number:           3,
					Title:            "Slices and Maps",
					SlideCount:       10,
					EstimatedMinutes: 20,
					Quiz: []content.Question{
						{
							ID:           "gb3-q1",
							Text:         "append may return:",
							Options:      []string{"the same slice", "a new slice", "either", "an error"},
							CorrectIndex: 2,
						},
						{
							ID:           "gb3-q2",
							Text:         "Reading a missing map key yields:",
							Options:      []string{"panic", "zero value", "nil only", "error"},
							CorrectIndex: 1,
						},
					},
				},
				{
					ID:               "go-basics-04",
					ModuleID:         "go-basics",
					Number:           4,
					Title:            "Errors",
					SlideCount:       9,
					EstimatedMinutes: 20,
					// Reading lesson, no quiz.
				},
				{
					ID:               "go-basics-05",
					ModuleID:         "go-basics",
					Number:           5,
					Title:            "Goroutines and Channels",
					SlideCount:       14,
					EstimatedMinutes: 30,
					Quiz: []content.Question{
						{
							ID:           "gb5-q1",
							Text:         "Sending on a nil channel:",
							Options:      []string{"panics", "blocks forever", "returns", "drops the value"},
							CorrectIndex: 1,
						},
						{
							ID:           "gb5-q2",
							Text:         "close() may be called by:",
							Options:      []string{"any goroutine", "the receiver", "the sender", "the runtime"},
							CorrectIndex: 2,
						},
						{
							ID:           "gb5-q3",
							Text:         "A buffered channel with capacity 1 blocks the sender when:",
							Options:      []string{"always", "never", "the buffer is full", "the buffer is empty"},
							CorrectIndex: 2,
						},
					},
				},
			},
		},
		{
			ID:          "sql-foundations",
			Title:       "SQL Foundations",
			Description: "Relational modeling, queries and transactions.",
			Lessons: []content.Lesson{
				{
					ID:               "sql-foundations-01",
					ModuleID:         "sql-foundations",
					Number:           1,
					Title:            "Tables and Rows",
					SlideCount:       7,
					EstimatedMinutes: 15,
					Quiz: []content.Question{
						{
							ID:           "sf1-q1",
							Text:         "A primary key must be:",
							Options:      []string{"numeric", "unique", "indexed manually", "nullable"},
							CorrectIndex: 1,
						},
					},
				},
				{
					ID:               "sql-foundations-02",
					ModuleID:         "sql-foundations",
					Number:           2,
					Title:            "Joins",
					SlideCount:       11,
					EstimatedMinutes: 25,
					Quiz: []content.Question{
						{
							ID:           "sf2-q1",
							Text:         "LEFT JOIN keeps unmatched rows from:",
							Options:      []string{"the left table", "the right table", "both tables", "neither"},
							CorrectIndex: 0,
						},
						{
							ID:           "sf2-q2",
							Text:         "A CROSS JOIN of 3 and 4 rows yields:",
							Options:      []string{"7 rows", "12 rows", "3 rows", "4 rows"},
							CorrectIndex: 1,
						},
					},
				},
				{
					ID:               "sql-foundations-03",
					ModuleID:         "sql-foundations",
					Number:           3,
					Title:            "Transactions",
					SlideCount:       9,
					EstimatedMinutes: 20,
					Quiz: []content.Question{
						{
							ID:           "sf3-q1",
							Text:         "Which isolation level allows dirty reads?",
							Options:      []string{"READ UNCOMMITTED", "READ COMMITTED", "REPEATABLE READ", "SERIALIZABLE"},
							CorrectIndex: 0,
						},
						{
							ID:           "sf3-q2",
							Text:         "ROLLBACK undoes:",
							Options:      []string{"the last statement", "the whole transaction", "the session", "nothing"},
							CorrectIndex: 1,
						},
					},
				},
			},
		},
	}
}
