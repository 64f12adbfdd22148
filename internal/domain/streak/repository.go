package streak

import (
	"context"
)

// Repository определяет контракт хранилища записей серий.
type Repository interface {
	// Get возвращает запись пользователя. NotFound, если записи нет.
	Get(ctx context.Context, userID string) (*Record, error)

	// Upsert сохраняет запись (вставка или обновление по user id).
	Upsert(ctx context.Context, record *Record) error
}
