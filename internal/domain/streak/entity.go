// Package streak содержит конечный автомат серий ежедневной активности.
// Все сравнения идут на уровне календарных дат (UTC), а не меток времени:
// дату активности передаёт вызывающая сторона.
package streak

import (
	"time"

	"github.com/skillpath/skillpath-engine/pkg/timeutil"
)

// Milestones - фиксированный набор вех серии. Уведомление о вехе
// срабатывает только при точном совпадении текущей серии со значением
// из набора - один раз за прохождение, а не на каждый последующий день.
var Milestones = []int{3, 7, 14, 30, 50, 100}

// Record - запись серии пользователя.
type Record struct {
	// UserID - идентификатор пользователя.
	UserID string

	// CurrentStreak - текущая серия дней подряд.
	CurrentStreak int

	// LongestStreak - лучшая серия за всё время.
	LongestStreak int

	// LastActivityDate - календарная дата последней активности.
	LastActivityDate time.Time

	// StreakStartDate - дата начала текущей серии.
	StreakStartDate time.Time

	// UpdatedAt - время последнего обновления записи.
	UpdatedAt time.Time
}

// NewRecord создаёт запись для первой активности пользователя:
// серия = 1, лучшая серия = 1.
func NewRecord(userID string, activityDate time.Time) *Record {
	day := timeutil.DateOf(activityDate)
	return &Record{
		UserID:           userID,
		CurrentStreak:    1,
		LongestStreak:    1,
		LastActivityDate: day,
		StreakStartDate:  day,
		UpdatedAt:        time.Now().UTC(),
	}
}

// UpdateResult - результат регистрации активности.
type UpdateResult struct {
	// Changed - true, если запись изменилась.
	Changed bool

	// WasReset - true, если серия сброшена из-за пропуска.
	WasReset bool

	// Milestone - достигнутая веха или 0.
	Milestone int
}

// RecordActivity регистрирует активность на указанную дату:
//
//	тот же день            -> без изменений
//	ровно на день позже    -> серия +1, лучшая серия = max
//	больше чем на день     -> серия = 1, начало серии = сегодня
//
// Даты раньше последней активности игнорируются.
func (r *Record) RecordActivity(activityDate time.Time) UpdateResult {
	day := timeutil.DateOf(activityDate)
	gap := timeutil.DaysBetween(r.LastActivityDate, day)

	switch {
	case gap <= 0:
		// Тот же день или прошлое - no-op.
		return UpdateResult{}

	case gap == 1:
		r.CurrentStreak++
		if r.CurrentStreak > r.LongestStreak {
			r.LongestStreak = r.CurrentStreak
		}
		r.LastActivityDate = day
		r.UpdatedAt = time.Now().UTC()
		return UpdateResult{
			Changed:   true,
			Milestone: milestoneFor(r.CurrentStreak),
		}

	default:
		r.CurrentStreak = 1
		r.LastActivityDate = day
		r.StreakStartDate = day
		r.UpdatedAt = time.Now().UTC()
		return UpdateResult{
			Changed:  true,
			WasReset: true,
		}
	}
}

// milestoneFor возвращает веху при точном совпадении, иначе 0.
func milestoneFor(streak int) int {
	for _, m := range Milestones {
		if streak == m {
			return m
		}
	}
	return 0
}
