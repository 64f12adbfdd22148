package badge

import (
	"context"
)

// Repository определяет контракт хранилища выданных бейджей.
// Каталог бейджей живёт в памяти; хранилище отвечает только за
// append-only записи UserBadge.
type Repository interface {
	// Award сохраняет выдачу с insert-if-absent семантикой.
	// Возвращает true, если запись создана, и false, если бейдж уже был
	// выдан (уникальное ограничение по паре user, badge). Параллельные
	// дубликаты не нарушают инвариант "не более одного раза".
	Award(ctx context.Context, ub *UserBadge) (awarded bool, err error)

	// Has проверяет наличие выдачи.
	Has(ctx context.Context, userID, badgeID string) (bool, error)

	// ListByUser возвращает все выдачи пользователя.
	ListByUser(ctx context.Context, userID string) ([]*UserBadge, error)

	// OwnedIDs возвращает множество идентификаторов бейджей пользователя.
	OwnedIDs(ctx context.Context, userID string) (map[string]bool, error)

	// CountByUser возвращает количество бейджей пользователя.
	CountByUser(ctx context.Context, userID string) (int, error)
}
