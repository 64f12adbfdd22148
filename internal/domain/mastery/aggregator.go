// Package mastery содержит агрегатор мастерства: по завершению модуля
// средний балл отображается в ступень мастерства через табличную
// конфигурацию, свою для каждого модуля. Единой глобальной таблицы
// порогов нет и быть не должно.
package mastery

import (
	"context"
	"fmt"
	"sort"

	"github.com/skillpath/skillpath-engine/internal/domain/badge"
	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/progress"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TIER TABLES
// ══════════════════════════════════════════════════════════════════════════════

// Tier - одна ступень мастерства.
type Tier struct {
	// Name - название ступени (своё в каждом модуле).
	Name string

	// MinScore - нижняя граница среднего балла (включительно).
	MinScore float64

	// Message - поздравительное сообщение ступени.
	Message string
}

// TierTable - упорядоченная таблица ступеней одного модуля.
type TierTable struct {
	// ModuleID - модуль, которому принадлежит таблица.
	ModuleID content.ModuleID

	// Tiers - ступени. Хранятся отсортированными по убыванию порога.
	Tiers []Tier
}

// NewTierTable создаёт таблицу и сортирует ступени по убыванию порога.
func NewTierTable(moduleID content.ModuleID, tiers []Tier) TierTable {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinScore > sorted[j].MinScore
	})
	return TierTable{ModuleID: moduleID, Tiers: sorted}
}

// Resolve возвращает ступень для балла. Баллы ниже низшего порога
// не дают ступени ("No Mastery") - событие подавляется.
func (t TierTable) Resolve(score float64) (Tier, bool) {
	for _, tier := range t.Tiers {
		if score >= tier.MinScore {
			return tier, true
		}
	}
	return Tier{}, false
}

// TopTier возвращает высшую ступень таблицы.
func (t TierTable) TopTier() (Tier, bool) {
	if len(t.Tiers) == 0 {
		return Tier{}, false
	}
	return t.Tiers[0], true
}

// CapabilityTable - соответствие бейдж -> разблокируемые возможности.
type CapabilityTable map[string][]string

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATOR
// ══════════════════════════════════════════════════════════════════════════════

// Aggregator вычисляет мастерство по завершённому модулю.
// Идемпотентность - явное требование: флаг MasteryNotified на агрегате
// прогресса делает повторные триггеры после завершения модуля no-op.
type Aggregator struct {
	tables       map[content.ModuleID]TierTable
	capabilities CapabilityTable
	badges       badge.Repository
}

// NewAggregator создаёт агрегатор мастерства.
func NewAggregator(tables []TierTable, capabilities CapabilityTable, badges badge.Repository) *Aggregator {
	byModule := make(map[content.ModuleID]TierTable, len(tables))
	for _, t := range tables {
		byModule[t.ModuleID] = t
	}
	return &Aggregator{
		tables:       byModule,
		capabilities: capabilities,
		badges:       badges,
	}
}

// TableFor возвращает таблицу ступеней модуля.
func (a *Aggregator) TableFor(moduleID content.ModuleID) (TierTable, bool) {
	t, ok := a.tables[moduleID]
	return t, ok
}

// Evaluate проверяет завершённый модуль и возвращает событие о достигнутом
// мастерстве. Возвращает nil без ошибки, когда:
//
//   - модуль ещё не завершён;
//   - уведомление уже отправлялось (MasteryNotified);
//   - для модуля нет таблицы ступеней;
//   - средний балл ниже низшего порога.
//
// При возврате события агрегатор взводит MasteryNotified на агрегате;
// сохранить флаг в той же транзакции обязан вызывающий.
func (a *Aggregator) Evaluate(ctx context.Context, mp *progress.ModuleProgress) (shared.Event, error) {
	if !mp.IsCompleted() || mp.MasteryNotified {
		return nil, nil
	}

	table, ok := a.tables[mp.ModuleID]
	if !ok {
		return nil, nil
	}

	score := mp.AverageScore()
	tier, achieved := table.Resolve(score)
	if !achieved {
		return nil, nil
	}

	capabilities, err := a.unlockedCapabilities(ctx, mp.UserID)
	if err != nil {
		return nil, fmt.Errorf("mastery: resolve capabilities: %w", err)
	}

	mp.MarkMasteryNotified()

	return shared.NewMasteryAchievedEvent(
		mp.UserID,
		mp.ModuleID.String(),
		tier.Name,
		score,
		capabilities,
		tier.Message,
	), nil
}

// unlockedCapabilities собирает возможности, разблокированные уже
// полученными бейджами пользователя, без дубликатов и в стабильном порядке.
func (a *Aggregator) unlockedCapabilities(ctx context.Context, userID string) ([]string, error) {
	owned, err := a.badges.OwnedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	capabilities := make([]string, 0)
	for badgeID := range owned {
		for _, capability := range a.capabilities[badgeID] {
			if !seen[capability] {
				seen[capability] = true
				capabilities = append(capabilities, capability)
			}
		}
	}
	sort.Strings(capabilities)

	return capabilities, nil
}
