package badge

import (
	"context"
	"fmt"
	"time"

	"github.com/skillpath/skillpath-engine/internal/domain/shared"
)

// Engine - движок правил выдачи бейджей.
// На каждый факт: выбираются ещё не полученные бейджи модуля, для каждого
// вычисляется критерий его класса, совпавшие выдаются. Simple-предикаты
// не делают запросов; compound-проверки вызываются только для бейджей
// своего класса, так что общий путь остаётся без лишних запросов.
type Engine struct {
	catalog *Catalog
	repo    Repository
	facts   AggregateFacts
	newID   func() string
	now     func() time.Time
}

// NewEngine создаёт движок правил.
func NewEngine(catalog *Catalog, repo Repository, facts AggregateFacts, newID func() string) *Engine {
	return &Engine{
		catalog: catalog,
		repo:    repo,
		facts:   facts,
		newID:   newID,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник времени (для тестов).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Evaluate прогоняет факт через каталог и возвращает события о новых
// выдачах. Повторная оценка того же факта не создаёт вторую запись:
// хранилище выдаёт insert-if-absent.
func (e *Engine) Evaluate(ctx context.Context, a Achievement) ([]shared.Event, error) {
	candidates := e.catalog.ForModule(a.ModuleID)
	if len(candidates) == 0 {
		return nil, nil
	}

	owned, err := e.repo.OwnedIDs(ctx, a.UserID)
	if err != nil {
		return nil, fmt.Errorf("badge engine: fetch owned: %w", err)
	}

	var events []shared.Event
	for _, b := range candidates {
		if owned[b.ID] {
			continue
		}

		matched, err := e.matches(ctx, b, a)
		if err != nil {
			return events, err
		}
		if !matched {
			continue
		}

		ub := &UserBadge{
			ID:        e.newID(),
			UserID:    a.UserID,
			BadgeID:   b.ID,
			AwardedAt: e.now(),
		}
		awarded, err := e.repo.Award(ctx, ub)
		if err != nil {
			return events, fmt.Errorf("badge engine: award %s: %w", b.ID, err)
		}
		if !awarded {
			// Параллельная оценка успела первой - инвариант цел.
			continue
		}

		events = append(events, shared.NewBadgeAwardedEvent(
			a.UserID, b.ID, b.Name, b.Description, string(b.Rarity), b.ModuleID.String(),
		))
	}

	return events, nil
}

// matches вычисляет критерий бейджа для факта.
func (e *Engine) matches(ctx context.Context, b Badge, a Achievement) (bool, error) {
	switch b.Class {
	case CriteriaSimple:
		predicate, ok := e.catalog.SimplePredicateFor(b.ID)
		if !ok {
			return false, shared.ErrUnknownCriteria
		}
		return predicate(a), nil

	case CriteriaCompound:
		check, ok := e.catalog.CompoundCheckFor(b.ID)
		if !ok {
			return false, shared.ErrUnknownCriteria
		}
		return check(ctx, e.facts, a)

	default:
		return false, shared.ErrUnknownCriteria
	}
}
