package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tenQuestions() map[string]int {
	correct := make(map[string]int)
	correct["q01"] = 0
	correct["q02"] = 1
	correct["q03"] = 2
	correct["q04"] = 3
	correct["q05"] = 0
	correct["q06"] = 1
	correct["q07"] = 2
	correct["q08"] = 3
	correct["q09"] = 0
	correct["q10"] = 1
	return correct
}

func TestScore_SevenOfTen(t *testing.T) {
	correct := tenQuestions()

	// Seven right, two wrong, one unanswered.
	answers := Submission{
		"q01": 0, "q02": 1, "q03": 2, "q04": 3,
		"q05": 0, "q06": 1, "q07": 2,
		"q08": 1, // wrong
		"q09": 2, // wrong
	}

	result := Score(answers, correct, 650)

	assert.Equal(t, 7, result.Score)
	assert.Equal(t, 10, result.MaxScore)
	assert.InDelta(t, 70.0, result.Percentage, 0.0001)
	assert.True(t, result.Passed)
	// 650s over 10 questions is 65s per question, above baseline: no bonus.
	assert.Equal(t, 0, result.SpeedBonus)
	assert.Equal(t, []string{"q08", "q09", "q10"}, result.MissedQuestions)
}

func TestScore_PerfectScore(t *testing.T) {
	correct := map[string]int{"a": 1, "b": 2}
	answers := Submission{"a": 1, "b": 2}

	result := Score(answers, correct, 30)

	assert.Equal(t, 2, result.Score)
	assert.InDelta(t, 100.0, result.Percentage, 0.0001)
	assert.True(t, result.Passed)
	assert.Empty(t, result.MissedQuestions)
	assert.Equal(t, 20, result.SpeedBonus)
	assert.Equal(t, "Perfect score! You have mastered this lesson.", result.Feedback)
}

func TestScore_BelowPassThreshold(t *testing.T) {
	correct := map[string]int{"a": 0, "b": 0, "c": 0}
	answers := Submission{"a": 0, "b": 1, "c": 1}

	result := Score(answers, correct, 90)

	assert.Equal(t, 1, result.Score)
	assert.InDelta(t, 33.3333, result.Percentage, 0.001)
	assert.False(t, result.Passed)
}

func TestScore_ExtraAnswersIgnored(t *testing.T) {
	correct := map[string]int{"a": 1}
	answers := Submission{"a": 1, "ghost": 3}

	result := Score(answers, correct, 10)

	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 1, result.MaxScore)
}

func TestScore_NoQuestions(t *testing.T) {
	result := Score(Submission{}, map[string]int{}, 100)

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 0, result.MaxScore)
	assert.Zero(t, result.Percentage)
	assert.False(t, result.Passed)
	assert.Empty(t, result.MissedQuestions)
	assert.Equal(t, 0, result.SpeedBonus)
}

func TestScore_MissedQuestionsSorted(t *testing.T) {
	correct := map[string]int{"z": 0, "a": 0, "m": 0}

	result := Score(Submission{}, correct, 0)

	assert.Equal(t, []string{"a", "m", "z"}, result.MissedQuestions)
}

func TestScore_Deterministic(t *testing.T) {
	correct := tenQuestions()
	answers := Submission{"q01": 0, "q02": 1, "q03": 0}

	first := Score(answers, correct, 300)
	second := Score(answers, correct, 300)

	assert.Equal(t, first, second)
}

func TestSpeedBonusFor(t *testing.T) {
	tests := []struct {
		name      string
		elapsed   int
		questions int
		want      int
	}{
		{"half of baseline", 300, 10, 20},
		{"exactly half", 30, 1, 20},
		{"three quarters", 45, 1, 10},
		{"at baseline", 60, 1, 5},
		{"just above baseline", 61, 1, 0},
		{"slow", 650, 10, 0},
		{"zero questions", 100, 0, 0},
		{"negative elapsed", -5, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SpeedBonusFor(tt.elapsed, tt.questions))
		})
	}
}

func TestSelectFeedback(t *testing.T) {
	assert.Equal(t, "Perfect score! You have mastered this lesson.", SelectFeedback(100, DefaultFeedback))
	assert.Equal(t, "Excellent work! You really know this material.", SelectFeedback(90, DefaultFeedback))
	assert.Equal(t, "Good job! Review the missed questions to solidify your knowledge.", SelectFeedback(70, DefaultFeedback))
	assert.Equal(t, "You are getting there. Revisit the lesson slides and try again.", SelectFeedback(50, DefaultFeedback))
	assert.Equal(t, "This lesson needs more practice. Go through the slides once more.", SelectFeedback(0, DefaultFeedback))

	// Boundary just below a bucket falls into the lower one.
	assert.Equal(t, "Good job! Review the missed questions to solidify your knowledge.", SelectFeedback(89.9, DefaultFeedback))
}
