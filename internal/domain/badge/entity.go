// Package badge содержит каталог бейджей, реестр критериев и движок
// выдачи наград. Бейдж выдаётся не более одного раза на пару
// (пользователь, бейдж) - инвариант держится на insert-if-absent
// семантике хранилища.
package badge

import (
	"time"

	"github.com/skillpath/skillpath-engine/internal/domain/content"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT (транзиентный факт)
// ══════════════════════════════════════════════════════════════════════════════

// AchievementType - тег типа достижения.
type AchievementType string

const (
	// AchievementLessonCompleted - завершён урок.
	AchievementLessonCompleted AchievementType = "lesson_completed"

	// AchievementModuleCompleted - завершён модуль.
	AchievementModuleCompleted AchievementType = "module_completed"

	// AchievementQuizPassed - пройден квиз.
	AchievementQuizPassed AchievementType = "quiz_passed"

	// AchievementStreakReached - достигнута серия дней.
	AchievementStreakReached AchievementType = "streak_reached"
)

// Achievement - транзиентный факт о завершённом действии пользователя.
// Никогда не сохраняется: живёт только как вход движка правил.
type Achievement struct {
	// UserID - идентификатор пользователя.
	UserID string

	// Type - тег типа достижения.
	Type AchievementType

	// Value - числовое значение (балл, номер урока, длина серии).
	Value float64

	// ModuleID - идентификатор модуля.
	ModuleID content.ModuleID

	// LessonID - идентификатор урока (может быть пустым).
	LessonID content.LessonID

	// Context - небольшая карта дополнительного контекста.
	Context map[string]string
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE CATALOG ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Rarity - редкость бейджа.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// IsValid проверяет, что редкость корректна.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	default:
		return false
	}
}

// CriteriaClass - класс критерия бейджа.
type CriteriaClass string

const (
	// CriteriaSimple - предикат читает только поля входящего факта,
	// без дополнительных запросов.
	CriteriaSimple CriteriaClass = "simple"

	// CriteriaCompound - критерий требует агрегатного запроса
	// (например, N идеальных квизов подряд).
	CriteriaCompound CriteriaClass = "compound"
)

// Badge - запись каталога. Неизменяема после загрузки.
type Badge struct {
	// ID - идентификатор бейджа.
	ID string

	// Name - название.
	Name string

	// Description - описание условия получения.
	Description string

	// ModuleID - модуль-владелец бейджа.
	ModuleID content.ModuleID

	// Rarity - редкость.
	Rarity Rarity

	// RewardMessage - сообщение при выдаче.
	RewardMessage string

	// Class - класс критерия (simple или compound).
	Class CriteriaClass
}

// UserBadge - append-only запись о выдаче бейджа.
// Уникальна по паре (user, badge).
type UserBadge struct {
	// ID - внутренний идентификатор записи (UUID).
	ID string

	// UserID - идентификатор пользователя.
	UserID string

	// BadgeID - идентификатор бейджа.
	BadgeID string

	// AwardedAt - время выдачи.
	AwardedAt time.Time
}
