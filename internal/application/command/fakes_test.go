package command

import (
	"context"
	"sync"

	"github.com/skillpath/skillpath-engine/internal/domain/badge"
	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/progress"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
	"github.com/skillpath/skillpath-engine/internal/domain/streak"
	"github.com/skillpath/skillpath-engine/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: logger.LevelError})
}

// ─── Progress store ──────────────────────────────────────────────────────────

// memProgressRepo is an in-memory progress store with the same optimistic
// locking semantics as the production store: Update compares the aggregate
// version and bumps it on success.
type memProgressRepo struct {
	mu    sync.Mutex
	store map[string]*progress.ModuleProgress // key: userID + "/" + moduleID

	createErr      error
	getErr         error
	missGetOnce    bool  // next GetByUserAndModule reports NotFound
	failUpdateWith error // returned once by the next Update call

	// afterUpdate runs under the lock after each successful Update,
	// against the stored copy. Tests use it to act as a competing writer.
	afterUpdate func(stored *progress.ModuleProgress)
}

func newMemProgressRepo() *memProgressRepo {
	return &memProgressRepo{store: make(map[string]*progress.ModuleProgress)}
}

func (r *memProgressRepo) key(userID string, moduleID content.ModuleID) string {
	return userID + "/" + moduleID.String()
}

func (r *memProgressRepo) Create(ctx context.Context, mp *progress.ModuleProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	k := r.key(mp.UserID, mp.ModuleID)
	if _, exists := r.store[k]; exists {
		return shared.ErrProgressAlreadyExists
	}
	mp.Version = 1
	r.store[k] = mp.Clone()
	return nil
}

func (r *memProgressRepo) GetByUserAndModule(ctx context.Context, userID string, moduleID content.ModuleID) (*progress.ModuleProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.missGetOnce {
		r.missGetOnce = false
		return nil, shared.ErrProgressNotFound
	}
	mp, ok := r.store[r.key(userID, moduleID)]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return mp.Clone(), nil
}

func (r *memProgressRepo) GetByUserAndLesson(ctx context.Context, userID string, lessonID content.LessonID) (*progress.ModuleProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, mp := range r.store {
		if mp.UserID != userID {
			continue
		}
		if mp.FindLesson(lessonID) != nil {
			return mp.Clone(), nil
		}
	}
	return nil, shared.ErrLessonProgressNotFound
}

func (r *memProgressRepo) GetAllByUser(ctx context.Context, userID string) ([]*progress.ModuleProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*progress.ModuleProgress
	for _, mp := range r.store {
		if mp.UserID == userID {
			out = append(out, mp.Clone())
		}
	}
	return out, nil
}

func (r *memProgressRepo) Update(ctx context.Context, mp *progress.ModuleProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failUpdateWith != nil {
		err := r.failUpdateWith
		r.failUpdateWith = nil
		return err
	}

	k := r.key(mp.UserID, mp.ModuleID)
	stored, ok := r.store[k]
	if !ok {
		return shared.ErrProgressNotFound
	}
	if stored.Version != mp.Version {
		return shared.ErrOptimisticLock
	}
	mp.Version++
	r.store[k] = mp.Clone()
	if r.afterUpdate != nil {
		r.afterUpdate(r.store[k])
	}
	return nil
}

func (r *memProgressRepo) CountCompletedLessons(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, mp := range r.store {
		if mp.UserID != userID {
			continue
		}
		for _, lp := range mp.Lessons {
			if lp.IsCompleted() {
				count++
			}
		}
	}
	return count, nil
}

func (r *memProgressRepo) AverageScore(ctx context.Context, userID string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sum, count := 0, 0
	for _, mp := range r.store {
		if mp.UserID != userID {
			continue
		}
		for _, lp := range mp.Lessons {
			if lp.IsCompleted() {
				sum += lp.QuizScore
				count++
			}
		}
	}
	if count == 0 {
		return 0, nil
	}
	return float64(sum) / float64(count), nil
}

var _ progress.Repository = (*memProgressRepo)(nil)

// ─── Content store ───────────────────────────────────────────────────────────

type memContentRepo struct {
	modules map[content.ModuleID]*content.Module
}

func newMemContentRepo(modules ...*content.Module) *memContentRepo {
	r := &memContentRepo{modules: make(map[content.ModuleID]*content.Module)}
	for _, m := range modules {
		r.modules[m.ID] = m
	}
	return r
}

func (r *memContentRepo) GetModule(id content.ModuleID) (*content.Module, error) {
	m, ok := r.modules[id]
	if !ok {
		return nil, shared.ErrModuleNotFound
	}
	return m, nil
}

func (r *memContentRepo) GetLesson(id content.LessonID) (*content.Lesson, error) {
	for _, m := range r.modules {
		if lesson, ok := m.FindLesson(id); ok {
			return &lesson, nil
		}
	}
	return nil, shared.ErrLessonNotFound
}

var _ content.Repository = (*memContentRepo)(nil)

// threeLessonModule builds the standard fixture: three lessons, each with a
// two-question quiz, except the second lesson which has none.
func threeLessonModule() *content.Module {
	return &content.Module{
		ID:    "test-module",
		Title: "Test Module",
		Lessons: []content.Lesson{
			{
				ID: "lesson-1", ModuleID: "test-module", Number: 1, SlideCount: 5,
				Quiz: []content.Question{
					{ID: "l1-q1", CorrectIndex: 0},
					{ID: "l1-q2", CorrectIndex: 1},
				},
			},
			{
				ID: "lesson-2", ModuleID: "test-module", Number: 2, SlideCount: 4,
			},
			{
				ID: "lesson-3", ModuleID: "test-module", Number: 3, SlideCount: 6,
				Quiz: []content.Question{
					{ID: "l3-q1", CorrectIndex: 2},
					{ID: "l3-q2", CorrectIndex: 1},
				},
			},
		},
	}
}

// ─── Streak store ────────────────────────────────────────────────────────────

type memStreakRepo struct {
	mu      sync.Mutex
	records map[string]*streak.Record

	getErr    error
	upsertErr error
}

func newMemStreakRepo() *memStreakRepo {
	return &memStreakRepo{records: make(map[string]*streak.Record)}
}

func (r *memStreakRepo) Get(ctx context.Context, userID string) (*streak.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return nil, r.getErr
	}
	record, ok := r.records[userID]
	if !ok {
		return nil, shared.ErrStreakNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *memStreakRepo) Upsert(ctx context.Context, record *streak.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.upsertErr != nil {
		return r.upsertErr
	}
	copied := *record
	r.records[record.UserID] = &copied
	return nil
}

var _ streak.Repository = (*memStreakRepo)(nil)

// ─── Badge store ─────────────────────────────────────────────────────────────

type memBadgeRepo struct {
	mu     sync.Mutex
	awards map[string]*badge.UserBadge // key: userID + "/" + badgeID
}

func newMemBadgeRepo() *memBadgeRepo {
	return &memBadgeRepo{awards: make(map[string]*badge.UserBadge)}
}

func (r *memBadgeRepo) Award(ctx context.Context, ub *badge.UserBadge) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := ub.UserID + "/" + ub.BadgeID
	if _, exists := r.awards[k]; exists {
		return false, nil
	}
	r.awards[k] = ub
	return true, nil
}

func (r *memBadgeRepo) Has(ctx context.Context, userID, badgeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.awards[userID+"/"+badgeID]
	return ok, nil
}

func (r *memBadgeRepo) ListByUser(ctx context.Context, userID string) ([]*badge.UserBadge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*badge.UserBadge
	for _, ub := range r.awards {
		if ub.UserID == userID {
			out = append(out, ub)
		}
	}
	return out, nil
}

func (r *memBadgeRepo) OwnedIDs(ctx context.Context, userID string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := make(map[string]bool)
	for _, ub := range r.awards {
		if ub.UserID == userID {
			owned[ub.BadgeID] = true
		}
	}
	return owned, nil
}

func (r *memBadgeRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	owned, err := r.OwnedIDs(ctx, userID)
	return len(owned), err
}

var _ badge.Repository = (*memBadgeRepo)(nil)

// ─── Publisher ───────────────────────────────────────────────────────────────

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (p *capturePublisher) Publish(ctx context.Context, event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) published(eventType shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

var _ shared.EventPublisher = (*capturePublisher)(nil)
