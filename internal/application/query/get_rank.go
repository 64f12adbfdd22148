package query

import (
	"context"
	"errors"

	"github.com/skillpath/skillpath-engine/internal/domain/badge"
	"github.com/skillpath/skillpath-engine/internal/domain/progress"
	"github.com/skillpath/skillpath-engine/internal/domain/rank"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
	"github.com/skillpath/skillpath-engine/internal/domain/streak"
	"github.com/skillpath/skillpath-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEARNING RANK QUERY
// Запрос ранга пользователя. Ранг - чистая производная от статистики,
// ничего не сохраняется: статистика собирается из репозиториев и
// передаётся в калькулятор.
// ══════════════════════════════════════════════════════════════════════════════

// GetLearningRankQuery содержит параметры запроса ранга.
type GetLearningRankQuery struct {
	// UserID - идентификатор пользователя.
	UserID string
}

// Validate проверяет корректность параметров запроса.
func (q *GetLearningRankQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id must be provided")
	}
	return nil
}

// GetLearningRankResult - результат запроса ранга.
type GetLearningRankResult struct {
	// ─── Текущий ранг ───
	RankName string `json:"rank_name"`
	Level    int    `json:"level"`
	Points   int    `json:"points"`

	// ─── Следующий уровень ───
	PointsToNext int    `json:"points_to_next"`
	NextRankName string `json:"next_rank_name,omitempty"`

	// ─── Исходная статистика ───
	CompletedLessons int     `json:"completed_lessons"`
	AverageScore     float64 `json:"average_score"`
	BadgeCount       int     `json:"badge_count"`
	LongestStreak    int     `json:"longest_streak"`
}

// GetLearningRankHandler обрабатывает GetLearningRankQuery.
type GetLearningRankHandler struct {
	progressRepo progress.Repository
	badgeRepo    badge.Repository
	streakRepo   streak.Repository
	log          *logger.Logger
}

// NewGetLearningRankHandler создаёт обработчик запроса.
func NewGetLearningRankHandler(
	progressRepo progress.Repository,
	badgeRepo badge.Repository,
	streakRepo streak.Repository,
	log *logger.Logger,
) *GetLearningRankHandler {
	return &GetLearningRankHandler{
		progressRepo: progressRepo,
		badgeRepo:    badgeRepo,
		streakRepo:   streakRepo,
		log:          log.With(logger.Component("get_rank")),
	}
}

// Handle выполняет запрос: собирает статистику и считает ранг.
// Сбой любого из источников деградирует в нулевой вклад этого
// источника, запрос при этом не падает.
func (h *GetLearningRankHandler) Handle(ctx context.Context, q GetLearningRankQuery) (*GetLearningRankResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var stats rank.Stats

	completed, err := h.progressRepo.CountCompletedLessons(ctx, q.UserID)
	if err != nil {
		h.log.Warn("completed lessons read degraded", logger.UserID(q.UserID), logger.Err(err))
	} else {
		stats.CompletedLessons = completed
	}

	average, err := h.progressRepo.AverageScore(ctx, q.UserID)
	if err != nil {
		h.log.Warn("average score read degraded", logger.UserID(q.UserID), logger.Err(err))
	} else {
		stats.AverageScore = average
	}

	badgeCount, err := h.badgeRepo.CountByUser(ctx, q.UserID)
	if err != nil {
		h.log.Warn("badge count read degraded", logger.UserID(q.UserID), logger.Err(err))
	} else {
		stats.BadgeCount = badgeCount
	}

	record, err := h.streakRepo.Get(ctx, q.UserID)
	switch {
	case err == nil:
		stats.LongestStreak = record.LongestStreak
	case shared.IsNotFound(err):
		// Нет активности - нет серии.
	default:
		h.log.Warn("streak read degraded", logger.UserID(q.UserID), logger.Err(err))
	}

	lr := rank.Calculate(stats)

	return &GetLearningRankResult{
		RankName:         lr.Name,
		Level:            lr.Level,
		Points:           lr.Points,
		PointsToNext:     lr.PointsToNext,
		NextRankName:     lr.NextName,
		CompletedLessons: stats.CompletedLessons,
		AverageScore:     stats.AverageScore,
		BadgeCount:       stats.BadgeCount,
		LongestStreak:    stats.LongestStreak,
	}, nil
}
