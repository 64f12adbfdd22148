package redis

import (
	"context"
	"errors"

	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/pkg/logger"
)

// ContentCache is a read-through cache over a content.Repository.
// Hits serve from Redis; misses go to the source and populate the cache
// with a bounded TTL. Cache failures never fail the lookup: the source
// answer always wins.
//
// Callers that cannot tolerate staleness (lesson completion scoring)
// should hold a reference to the source repository directly.
type ContentCache struct {
	cache  *Cache
	source content.Repository
	log    *logger.Logger
}

// NewContentCache creates a read-through content cache.
func NewContentCache(cache *Cache, source content.Repository, log *logger.Logger) *ContentCache {
	return &ContentCache{
		cache:  cache,
		source: source,
		log:    log.With(logger.Component("content_cache")),
	}
}

// GetModule returns the module, from cache when possible.
func (c *ContentCache) GetModule(id content.ModuleID) (*content.Module, error) {
	ctx := context.Background()
	key := ModuleKey(id.String())

	var cached content.Module
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn("module cache read failed", logger.ModuleID(id.String()), logger.Err(err))
	}

	module, srcErr := c.source.GetModule(id)
	if srcErr != nil {
		return nil, srcErr
	}

	if setErr := c.cache.Set(ctx, key, module, TTLContentCache); setErr != nil {
		c.log.Warn("module cache write failed", logger.ModuleID(id.String()), logger.Err(setErr))
	}

	return module, nil
}

// GetLesson returns the lesson, from cache when possible.
func (c *ContentCache) GetLesson(id content.LessonID) (*content.Lesson, error) {
	ctx := context.Background()
	key := LessonKey(id.String())

	var cached content.Lesson
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn("lesson cache read failed", logger.LessonID(id.String()), logger.Err(err))
	}

	lesson, srcErr := c.source.GetLesson(id)
	if srcErr != nil {
		return nil, srcErr
	}

	if setErr := c.cache.Set(ctx, key, lesson, TTLContentCache); setErr != nil {
		c.log.Warn("lesson cache write failed", logger.LessonID(id.String()), logger.Err(setErr))
	}

	return lesson, nil
}

// InvalidateModule drops a module and its lessons from the cache.
// Called when content is republished.
func (c *ContentCache) InvalidateModule(ctx context.Context, id content.ModuleID) error {
	module, err := c.source.GetModule(id)
	if err != nil {
		// Unknown module: drop just the module key.
		return c.cache.Delete(ctx, ModuleKey(id.String()))
	}

	keys := make([]string, 0, len(module.Lessons)+1)
	keys = append(keys, ModuleKey(id.String()))
	for _, lesson := range module.Lessons {
		keys = append(keys, LessonKey(lesson.ID.String()))
	}
	return c.cache.Delete(ctx, keys...)
}

// InvalidateAll clears the whole content cache.
func (c *ContentCache) InvalidateAll(ctx context.Context) error {
	if err := c.cache.DeleteByPattern(ctx, PrefixModule+"*"); err != nil {
		return err
	}
	return c.cache.DeleteByPattern(ctx, PrefixLesson+"*")
}

// interface conformance check
var _ content.Repository = (*ContentCache)(nil)
