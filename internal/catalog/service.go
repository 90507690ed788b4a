// Package catalog resolves lecture numbers and unit keys to content
// payloads.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"lecturegate/internal/domain"
	"lecturegate/pkg/cache"
	lgerrors "lecturegate/pkg/errors"
	"lecturegate/pkg/logger"
)

// Repository defines catalog persistence. FindByKey returns
// ErrContentNotFound for an absent key; absence is a normal lookup miss.
type Repository interface {
	FindByKey(ctx context.Context, key string) (*domain.ContentItem, error)
	Upsert(ctx context.Context, item *domain.ContentItem) error
}

// Cache is the subset of the redis cache the catalog uses.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

const cacheTTL = 10 * time.Minute

type Service struct {
	repo   Repository
	cache  Cache
	logger logger.Logger
}

func NewService(repo Repository, c Cache, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  c,
		logger: log,
	}
}

// Resolve looks up a content key. Keys are case-insensitive and trimmed;
// the catalog is read-mostly so hits are served from the cache.
func (s *Service) Resolve(ctx context.Context, key string) (*domain.ContentItem, error) {
	key = normalizeKey(key)
	if key == "" {
		return nil, lgerrors.ErrContentNotFound
	}

	if s.cache != nil {
		var item domain.ContentItem
		err := s.cache.Get(ctx, cacheKey(key), &item)
		if err == nil {
			return &item, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Catalog cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}

	item, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, lgerrors.ErrContentNotFound) {
			return nil, lgerrors.ErrContentNotFound
		}
		return nil, lgerrors.Wrap(lgerrors.ErrStoreUnavailable, err.Error())
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(key), item, cacheTTL); err != nil {
			s.logger.Warn("Catalog cache write failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	return item, nil
}

// Put stores or replaces a catalog entry and drops any cached copy.
func (s *Service) Put(ctx context.Context, item *domain.ContentItem) error {
	item.Key = normalizeKey(item.Key)
	if err := s.repo.Upsert(ctx, item); err != nil {
		return lgerrors.Wrap(lgerrors.ErrStoreUnavailable, err.Error())
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey(item.Key)); err != nil {
			s.logger.Warn("Catalog cache invalidation failed", map[string]interface{}{
				"key":   item.Key,
				"error": err.Error(),
			})
		}
	}
	return nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func cacheKey(key string) string {
	return "catalog:" + key
}
