// Package quiz содержит чистую функцию подсчёта результатов квиза.
// Никаких побочных эффектов и случайности: одни и те же ответы и время
// всегда дают один и тот же результат. Текст обратной связи выбирается
// из таблицы по диапазону баллов, а не генерируется.
package quiz

import (
	"sort"
)

// BaselineSecondsPerQuestion - базовое время на один вопрос для расчёта
// бонуса за скорость.
const BaselineSecondsPerQuestion = 60.0

// PassPercentage - порог прохождения квиза.
const PassPercentage = 70.0

// Submission - отправленные ответы: id вопроса -> выбранный индекс.
type Submission map[string]int

// Result - результат подсчёта квиза.
type Result struct {
	// Score - количество правильных ответов.
	Score int

	// MaxScore - максимально возможный балл (количество вопросов).
	MaxScore int

	// Percentage - процент правильных ответов (0.0 - 100.0).
	Percentage float64

	// Passed - true, если процент не ниже порога прохождения.
	Passed bool

	// MissedQuestions - идентификаторы вопросов с неверным или
	// отсутствующим ответом, отсортированы для детерминизма.
	MissedQuestions []string

	// SpeedBonus - бонус за скорость (0, 5, 10 или 20).
	SpeedBonus int

	// Feedback - текст обратной связи, выбранный по диапазону баллов.
	Feedback string
}

// FeedbackBucket - одна строка таблицы обратной связи.
type FeedbackBucket struct {
	// MinPercentage - нижняя граница диапазона (включительно).
	MinPercentage float64

	// Message - заранее заданная строка обратной связи.
	Message string
}

// DefaultFeedback - таблица обратной связи по умолчанию, от высших
// диапазонов к низшим.
var DefaultFeedback = []FeedbackBucket{
	{MinPercentage: 100, Message: "Perfect score! You have mastered this lesson."},
	{MinPercentage: 90, Message: "Excellent work! You really know this material."},
	{MinPercentage: 70, Message: "Good job! Review the missed questions to solidify your knowledge."},
	{MinPercentage: 50, Message: "You are getting there. Revisit the lesson slides and try again."},
	{MinPercentage: 0, Message: "This lesson needs more practice. Go through the slides once more."},
}

// SelectFeedback выбирает строку обратной связи по проценту.
func SelectFeedback(percentage float64, table []FeedbackBucket) string {
	for _, bucket := range table {
		if percentage >= bucket.MinPercentage {
			return bucket.Message
		}
	}
	return ""
}

// SpeedBonusFor возвращает бонус за скорость по среднему времени на вопрос
// относительно базовых 60 секунд:
//
//	<= 50% базового времени -> +20
//	<= 75%                  -> +10
//	<= 100%                 -> +5
//	иначе                   -> 0
func SpeedBonusFor(elapsedSeconds, questionCount int) int {
	if questionCount == 0 || elapsedSeconds < 0 {
		return 0
	}

	avg := float64(elapsedSeconds) / float64(questionCount)
	switch {
	case avg <= BaselineSecondsPerQuestion*0.5:
		return 20
	case avg <= BaselineSecondsPerQuestion*0.75:
		return 10
	case avg <= BaselineSecondsPerQuestion:
		return 5
	default:
		return 0
	}
}

// Score подсчитывает результат: ответы + авторитетная карта правильных
// ответов + затраченные секунды.
func Score(answers Submission, correct map[string]int, elapsedSeconds int) Result {
	maxScore := len(correct)
	result := Result{
		MaxScore:        maxScore,
		MissedQuestions: make([]string, 0),
	}

	if maxScore == 0 {
		return result
	}

	for questionID, correctIndex := range correct {
		chosen, answered := answers[questionID]
		if answered && chosen == correctIndex {
			result.Score++
			continue
		}
		result.MissedQuestions = append(result.MissedQuestions, questionID)
	}
	sort.Strings(result.MissedQuestions)

	result.Percentage = float64(result.Score) / float64(maxScore) * 100
	result.Passed = result.Percentage >= PassPercentage
	result.SpeedBonus = SpeedBonusFor(elapsedSeconds, maxScore)
	result.Feedback = SelectFeedback(result.Percentage, DefaultFeedback)

	return result
}
