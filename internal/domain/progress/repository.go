package progress

import (
	"context"

	"github.com/skillpath/skillpath-engine/internal/domain/content"
)

// Repository определяет контракт хранилища прогресса.
// Реализация обязана обеспечивать транзакционный read-modify-write:
// Update с несовпадающей версией агрегата возвращает ErrOptimisticLock
// из shared, и вызывающая сторона перечитывает и повторяет операцию.
// Так сериализуются все записи в рамках одного ключа (user, module).
type Repository interface {
	// Create сохраняет новый агрегат вместе с дочерними записями уроков.
	// Возвращает AlreadyExists при дубликате (user, module).
	Create(ctx context.Context, mp *ModuleProgress) error

	// GetByUserAndModule загружает агрегат по (user, module).
	// Возвращает NotFound, если прогресса нет.
	GetByUserAndModule(ctx context.Context, userID string, moduleID content.ModuleID) (*ModuleProgress, error)

	// GetByUserAndLesson загружает агрегат целиком по (user, lesson).
	// Возвращает NotFound, если урок не начинали.
	GetByUserAndLesson(ctx context.Context, userID string, lessonID content.LessonID) (*ModuleProgress, error)

	// GetAllByUser загружает все агрегаты пользователя.
	GetAllByUser(ctx context.Context, userID string) ([]*ModuleProgress, error)

	// Update атомарно сохраняет агрегат и его дочерние записи в одной
	// транзакции с проверкой версии (оптимистичная блокировка).
	Update(ctx context.Context, mp *ModuleProgress) error

	// CountCompletedLessons возвращает количество завершённых уроков
	// пользователя по всем модулям.
	CountCompletedLessons(ctx context.Context, userID string) (int, error)

	// AverageScore возвращает средний балл пользователя по всем
	// завершённым урокам.
	AverageScore(ctx context.Context, userID string) (float64, error)
}
