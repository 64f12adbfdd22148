// Package rank содержит расчёт глобального ранга по очкам.
// Чтение по запросу, вне пути записи: ранг - производная величина и
// нигде не сохраняется.
package rank

// ══════════════════════════════════════════════════════════════════════════════
// LADDER
// ══════════════════════════════════════════════════════════════════════════════

// Level - один уровень лестницы рангов.
type Level struct {
	// Level - порядковый номер уровня (с 1).
	Level int

	// Name - название ранга.
	Name string

	// MinPoints - нижняя граница очков (включительно).
	MinPoints int
}

// Ladder - упорядоченная 8-уровневая лестница рангов с фиксированными
// порогами очков.
var Ladder = []Level{
	{Level: 1, Name: "Newcomer", MinPoints: 0},
	{Level: 2, Name: "Explorer", MinPoints: 100},
	{Level: 3, Name: "Apprentice", MinPoints: 300},
	{Level: 4, Name: "Practitioner", MinPoints: 600},
	{Level: 5, Name: "Specialist", MinPoints: 1000},
	{Level: 6, Name: "Expert", MinPoints: 1500},
	{Level: 7, Name: "Master", MinPoints: 2500},
	{Level: 8, Name: "Grandmaster", MinPoints: 4000},
}

// ══════════════════════════════════════════════════════════════════════════════
// CALCULATOR
// ══════════════════════════════════════════════════════════════════════════════

// Stats - агрегатная статистика пользователя, вход расчёта.
type Stats struct {
	// CompletedLessons - завершено уроков по всем модулям.
	CompletedLessons int

	// AverageScore - средний балл по завершённым урокам.
	AverageScore float64

	// BadgeCount - количество бейджей.
	BadgeCount int

	// LongestStreak - лучшая серия дней.
	LongestStreak int
}

// LearningRank - производный, несохраняемый результат расчёта.
type LearningRank struct {
	// Name - название текущего ранга.
	Name string

	// Level - номер текущего уровня.
	Level int

	// Points - текущие очки.
	Points int

	// PointsToNext - сколько очков осталось до следующего уровня.
	// Для высшего уровня всегда 0.
	PointsToNext int

	// NextName - название следующего уровня. Пустое для высшего.
	NextName string
}

// Points вычисляет очки ранга:
//
//	10·уроки + (средний балл·уроки)/10 + 50·бейджи + 5·лучшая серия
func Points(s Stats) int {
	return 10*s.CompletedLessons +
		int(s.AverageScore*float64(s.CompletedLessons))/10 +
		50*s.BadgeCount +
		5*s.LongestStreak
}

// Calculate отображает статистику в ранг по лестнице.
func Calculate(s Stats) LearningRank {
	points := Points(s)

	current := Ladder[0]
	for _, level := range Ladder {
		if points >= level.MinPoints {
			current = level
		}
	}

	result := LearningRank{
		Name:   current.Name,
		Level:  current.Level,
		Points: points,
	}

	if current.Level < len(Ladder) {
		next := Ladder[current.Level] // лестница упорядочена, индекс = номер уровня
		result.PointsToNext = next.MinPoints - points
		result.NextName = next.Name
	}

	return result
}
