package catalog

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"lecturegate/internal/domain"
	"lecturegate/pkg/cache"
	lgerrors "lecturegate/pkg/errors"
	"lecturegate/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByKey(ctx context.Context, key string) (*domain.ContentItem, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContentItem), args.Error(1)
}

func (m *MockRepository) Upsert(ctx context.Context, item *domain.ContentItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// fakeCache is an in-memory stand-in for the redis cache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func TestResolveMissThenHit(t *testing.T) {
	repo := new(MockRepository)
	fc := newFakeCache()
	svc := NewService(repo, fc, logger.NewNop())
	ctx := context.Background()

	item := &domain.ContentItem{Key: "3", Title: "Lecture 3", URLs: []string{"https://videos.example.com/3"}}
	repo.On("FindByKey", ctx, "3").Return(item, nil).Once()

	first, err := svc.Resolve(ctx, "3")
	assert.NoError(t, err)
	assert.Equal(t, "3", first.Key)

	// Second resolve is served from the cache; the store is not consulted.
	second, err := svc.Resolve(ctx, "3")
	assert.NoError(t, err)
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.URLs, second.URLs)
	repo.AssertNumberOfCalls(t, "FindByKey", 1)
}

func TestResolveNormalizesKey(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, newFakeCache(), logger.NewNop())
	ctx := context.Background()

	repo.On("FindByKey", ctx, "unit-algebra").Return(&domain.ContentItem{Key: "unit-algebra"}, nil)

	item, err := svc.Resolve(ctx, "  Unit-Algebra ")
	assert.NoError(t, err)
	assert.Equal(t, "unit-algebra", item.Key)
}

func TestResolveUnknownKey(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, newFakeCache(), logger.NewNop())
	ctx := context.Background()

	repo.On("FindByKey", ctx, "99").Return(nil, lgerrors.ErrContentNotFound)

	_, err := svc.Resolve(ctx, "99")
	assert.ErrorIs(t, err, lgerrors.ErrContentNotFound)
}

func TestResolveEmptyKey(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, newFakeCache(), logger.NewNop())

	_, err := svc.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, lgerrors.ErrContentNotFound)
	repo.AssertNotCalled(t, "FindByKey", mock.Anything, mock.Anything)
}

func TestPutInvalidatesCache(t *testing.T) {
	repo := new(MockRepository)
	fc := newFakeCache()
	svc := NewService(repo, fc, logger.NewNop())
	ctx := context.Background()

	stale := &domain.ContentItem{Key: "3", Title: "Old title"}
	repo.On("FindByKey", ctx, "3").Return(stale, nil).Once()
	_, err := svc.Resolve(ctx, "3")
	assert.NoError(t, err)

	fresh := &domain.ContentItem{Key: "3", Title: "New title"}
	repo.On("Upsert", ctx, fresh).Return(nil)
	assert.NoError(t, svc.Put(ctx, fresh))

	// The stale cached copy is gone, so the next resolve re-reads the store.
	repo.On("FindByKey", ctx, "3").Return(fresh, nil).Once()
	item, err := svc.Resolve(ctx, "3")
	assert.NoError(t, err)
	assert.Equal(t, "New title", item.Title)
}
