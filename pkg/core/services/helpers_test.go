package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
)

func newStore(t *testing.T) *sqlite.SQLiteRepository {
	t.Helper()
	repo, err := sqlite.NewSQLiteRepository(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// testClock is a settable clock shared by the services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func nullLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

// engine wires every service over one store, the way cmd/server does.
type engine struct {
	store    *sqlite.SQLiteRepository
	clock    *testClock
	logger   *logrus.Logger
	hook     *test.Hook
	links    *LinkService
	recorder *Recorder
	tracking *TrackingService
	stats    *StatsService
}

func newEngine(t *testing.T, extra ...Option) *engine {
	t.Helper()
	store := newStore(t)
	clock := newTestClock()
	logger, hook := nullLogger()

	opts := append([]Option{WithClock(clock.Now), WithLogger(logger), WithRetry(3, 0)}, extra...)
	recorder := NewRecorder(store, store, opts...)
	return &engine{
		store:    store,
		clock:    clock,
		logger:   logger,
		hook:     hook,
		links:    NewLinkService(store, opts...),
		recorder: recorder,
		tracking: NewTrackingService(store, store, recorder, opts...),
		stats:    NewStatsService(store, store, store, opts...),
	}
}

func (e *engine) createLink(t *testing.T, name string) *domain.TrackingLink {
	t.Helper()
	link, err := e.links.Create(context.Background(), domain.CreateLinkInput{
		Name:      name,
		TargetURL: "https://example.com/courses",
	})
	require.NoError(t, err)
	return link
}

func (e *engine) link(t *testing.T, id int64) *domain.TrackingLink {
	t.Helper()
	link, err := e.links.GetByID(context.Background(), id)
	require.NoError(t, err)
	return link
}

// memCache is an in-process ports.LinkCache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]domain.TrackingLink
	hits    int
	deletes []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]domain.TrackingLink{}}
}

func (c *memCache) Get(_ context.Context, code string) (*domain.TrackingLink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.entries[code]
	if !ok {
		return nil, nil
	}
	c.hits++
	return &l, nil
}

func (c *memCache) Set(_ context.Context, link *domain.TrackingLink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[link.Code] = *link
	return nil
}

func (c *memCache) Delete(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, code)
	c.deletes = append(c.deletes, code)
	return nil
}
