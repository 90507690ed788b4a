// Package repository provides store decorators shared across backends.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lecturegate/internal/domain"
	"lecturegate/pkg/cache"
	"lecturegate/pkg/logger"
)

// StudentStore is the full record-store surface for student records.
type StudentStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Student, error)
	FindByUsername(ctx context.Context, username string) (*domain.Student, error)
	EnsureExists(ctx context.Context, id int64, username string) error
	Approve(ctx context.Context, id, adminID int64, at time.Time) error
	ClaimDeviceSlot(ctx context.Context, id int64, slot int, name string, fp domain.Fingerprint) (bool, error)
	RecordAccess(ctx context.Context, id int64) error
}

// Cache is the subset of the redis cache the decorator uses.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CachedStudentStore serves reads cache-aside and invalidates on every
// write. The device registry must not use it for slot decisions: claim
// races are resolved against the backing store, so the registry reads the
// inner store directly.
type CachedStudentStore struct {
	inner  StudentStore
	cache  Cache
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedStudentStore(inner StudentStore, c Cache, ttl time.Duration, log logger.Logger) *CachedStudentStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedStudentStore{
		inner:  inner,
		cache:  c,
		ttl:    ttl,
		logger: log,
	}
}

func (s *CachedStudentStore) FindByID(ctx context.Context, id int64) (*domain.Student, error) {
	key := studentKey(id)

	var cached domain.Student
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("Student cache read failed", map[string]interface{}{
			"user_id": id,
			"error":   err.Error(),
		})
	}

	student, err := s.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, student, s.ttl); err != nil {
		s.logger.Warn("Student cache write failed", map[string]interface{}{
			"user_id": id,
			"error":   err.Error(),
		})
	}
	return student, nil
}

// FindByUsername always hits the store; the username index handles it.
func (s *CachedStudentStore) FindByUsername(ctx context.Context, username string) (*domain.Student, error) {
	return s.inner.FindByUsername(ctx, username)
}

func (s *CachedStudentStore) EnsureExists(ctx context.Context, id int64, username string) error {
	if err := s.inner.EnsureExists(ctx, id, username); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedStudentStore) Approve(ctx context.Context, id, adminID int64, at time.Time) error {
	if err := s.inner.Approve(ctx, id, adminID, at); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedStudentStore) ClaimDeviceSlot(ctx context.Context, id int64, slot int, name string, fp domain.Fingerprint) (bool, error) {
	claimed, err := s.inner.ClaimDeviceSlot(ctx, id, slot, name, fp)
	if err != nil {
		return false, err
	}
	if claimed {
		s.invalidate(ctx, id)
	}
	return claimed, nil
}

func (s *CachedStudentStore) RecordAccess(ctx context.Context, id int64) error {
	if err := s.inner.RecordAccess(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedStudentStore) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Delete(ctx, studentKey(id)); err != nil {
		s.logger.Warn("Student cache invalidation failed", map[string]interface{}{
			"user_id": id,
			"error":   err.Error(),
		})
	}
}

func studentKey(id int64) string {
	return fmt.Sprintf("student:%d", id)
}
