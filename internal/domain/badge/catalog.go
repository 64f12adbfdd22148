package badge

import (
	"context"
	"fmt"

	"github.com/skillpath/skillpath-engine/internal/domain/content"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// SimplePredicate - чистый предикат над входящим фактом.
// Никаких запросов к хранилищу: только поля Achievement.
type SimplePredicate func(a Achievement) bool

// AggregateFacts - интерфейс агрегатных запросов для compound-критериев.
// Реализуется слоем приложения поверх хранилища прогресса.
type AggregateFacts interface {
	// ConsecutivePerfectScores возвращает длину текущей цепочки
	// идеальных результатов квизов пользователя в модуле.
	ConsecutivePerfectScores(ctx context.Context, userID string, moduleID content.ModuleID) (int, error)

	// ModuleCompletion возвращает количество завершённых уроков, общее
	// количество и средний балл пользователя по модулю.
	ModuleCompletion(ctx context.Context, userID string, moduleID content.ModuleID) (completed, total int, average float64, err error)
}

// CompoundCheck - именованная агрегатная проверка, привязанная к бейджу.
// Вызывается только для бейджей класса compound.
type CompoundCheck func(ctx context.Context, facts AggregateFacts, a Achievement) (bool, error)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog - неизменяемое соответствие бейдж -> критерий.
// Загружается один раз на старте процесса; добавление бейджа - это запись
// каталога плюс реализация предиката, без изменения ядра движка.
type Catalog struct {
	badges   map[string]Badge
	byModule map[content.ModuleID][]Badge
	simple   map[string]SimplePredicate
	compound map[string]CompoundCheck
}

// CatalogEntry - одна запись для сборки каталога.
type CatalogEntry struct {
	Badge     Badge
	Predicate SimplePredicate // для класса simple
	Check     CompoundCheck   // для класса compound
}

// NewCatalog собирает каталог из записей. Каждая запись обязана нести
// критерий, соответствующий её классу.
func NewCatalog(entries []CatalogEntry) (*Catalog, error) {
	c := &Catalog{
		badges:   make(map[string]Badge, len(entries)),
		byModule: make(map[content.ModuleID][]Badge),
		simple:   make(map[string]SimplePredicate),
		compound: make(map[string]CompoundCheck),
	}

	for _, entry := range entries {
		b := entry.Badge
		if b.ID == "" {
			return nil, fmt.Errorf("badge catalog: entry without id")
		}
		if _, exists := c.badges[b.ID]; exists {
			return nil, fmt.Errorf("badge catalog: duplicate badge id %q", b.ID)
		}

		switch b.Class {
		case CriteriaSimple:
			if entry.Predicate == nil {
				return nil, fmt.Errorf("badge catalog: simple badge %q without predicate", b.ID)
			}
			c.simple[b.ID] = entry.Predicate
		case CriteriaCompound:
			if entry.Check == nil {
				return nil, fmt.Errorf("badge catalog: compound badge %q without check", b.ID)
			}
			c.compound[b.ID] = entry.Check
		default:
			return nil, fmt.Errorf("badge catalog: badge %q has unknown criteria class %q", b.ID, b.Class)
		}

		c.badges[b.ID] = b
		c.byModule[b.ModuleID] = append(c.byModule[b.ModuleID], b)
	}

	return c, nil
}

// Get возвращает бейдж по идентификатору.
func (c *Catalog) Get(id string) (Badge, bool) {
	b, ok := c.badges[id]
	return b, ok
}

// ForModule возвращает бейджи модуля.
func (c *Catalog) ForModule(moduleID content.ModuleID) []Badge {
	return c.byModule[moduleID]
}

// All возвращает все бейджи каталога.
func (c *Catalog) All() []Badge {
	all := make([]Badge, 0, len(c.badges))
	for _, b := range c.badges {
		all = append(all, b)
	}
	return all
}

// Size возвращает количество бейджей в каталоге.
func (c *Catalog) Size() int {
	return len(c.badges)
}

// SimplePredicateFor возвращает предикат simple-бейджа.
func (c *Catalog) SimplePredicateFor(badgeID string) (SimplePredicate, bool) {
	p, ok := c.simple[badgeID]
	return p, ok
}

// CompoundCheckFor возвращает агрегатную проверку compound-бейджа.
func (c *Catalog) CompoundCheckFor(badgeID string) (CompoundCheck, bool) {
	chk, ok := c.compound[badgeID]
	return chk, ok
}
