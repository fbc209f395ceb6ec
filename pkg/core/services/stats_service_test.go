package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mileusna/useragent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
)

const chromeOnWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func TestWindowedStatsEmpty(t *testing.T) {
	e := newEngine(t)
	link := e.createLink(t, "quiet")

	for _, w := range []domain.Window{domain.Window1d, domain.Window7d, domain.Window30d, domain.Window90d} {
		stats, err := e.stats.WindowedStats(context.Background(), link.ID, w)
		require.NoError(t, err)
		assert.Equal(t, &domain.LinkStats{LinkID: link.ID, Window: w}, stats)
	}
}

func TestWindowedStats(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	link := e.createLink(t, "windowed")

	// ten days ago: two clicks and a login by k-old
	for _, key := range []string{"k-old", "k-old2"} {
		_, err := e.tracking.Resolve(ctx, link.Code, key, domain.ClientMeta{})
		require.NoError(t, err)
	}
	_, err := e.tracking.AttributeLogin(ctx, "k-old", "old@example.com", domain.ClientMeta{})
	require.NoError(t, err)

	e.clock.Advance(9 * 24 * time.Hour)
	for _, key := range []string{"k1", "k2", "k3", "k4"} {
		_, err := e.tracking.Resolve(ctx, link.Code, key, domain.ClientMeta{})
		require.NoError(t, err)
	}
	_, err = e.tracking.AttributeLogin(ctx, "k1", "new@example.com", domain.ClientMeta{})
	require.NoError(t, err)
	e.clock.Advance(24 * time.Hour)

	week, err := e.stats.WindowedStats(ctx, link.ID, domain.Window7d)
	require.NoError(t, err)
	assert.EqualValues(t, 4, week.Clicks)
	assert.EqualValues(t, 1, week.Logins)
	assert.InDelta(t, 0.25, week.ConversionRate, 1e-9)

	day, err := e.stats.WindowedStats(ctx, link.ID, domain.Window1d)
	require.NoError(t, err)
	assert.EqualValues(t, 4, day.Clicks, "the window bound is inclusive")

	month, err := e.stats.WindowedStats(ctx, link.ID, domain.Window30d)
	require.NoError(t, err)
	assert.EqualValues(t, 6, month.Clicks)
	assert.EqualValues(t, 2, month.Logins)

	_, err = e.stats.WindowedStats(ctx, link.ID, domain.PeriodAll)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
	_, err = e.stats.WindowedStats(ctx, 9999, domain.Window7d)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecentEventsPagination(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	link := e.createLink(t, "timeline")
	require.NoError(t, e.store.UpsertActor(ctx, &domain.Actor{ID: "ann@example.com", Name: "Ann", LastLoginAt: e.clock.Now()}))

	for i := 0; i < 5; i++ {
		e.clock.Advance(time.Minute)
		_, err := e.tracking.Resolve(ctx, link.Code, fmt.Sprintf("k%d", i), domain.ClientMeta{UserAgent: chromeOnWindows})
		require.NoError(t, err)
	}
	e.clock.Advance(time.Minute)
	_, err := e.tracking.AttributeLogin(ctx, "k3", "ann@example.com", domain.ClientMeta{UserAgent: chromeOnWindows})
	require.NoError(t, err)

	first, err := e.stats.RecentEvents(ctx, link.ID, 4, "")
	require.NoError(t, err)
	require.Len(t, first.Events, 4)
	require.NotEmpty(t, first.NextCursor)

	newest := first.Events[0]
	assert.Equal(t, domain.EventLogin, newest.Type)
	require.NotNil(t, newest.Actor)
	assert.Equal(t, "Ann", newest.Actor.Name)
	assert.Equal(t, useragent.Chrome, newest.Client.Browser)
	assert.Equal(t, useragent.Windows, newest.Client.OS)
	assert.Equal(t, "desktop", newest.Client.Device)
	assert.Nil(t, first.Events[1].Actor)
	assert.Equal(t, "k4", first.Events[1].CorrelationKey)

	second, err := e.stats.RecentEvents(ctx, link.ID, 4, first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Events, 2)
	assert.Empty(t, second.NextCursor)
	assert.Equal(t, "k1", second.Events[0].CorrelationKey)
	assert.Equal(t, "k0", second.Events[1].CorrelationKey)

	_, err = e.stats.RecentEvents(ctx, link.ID, 4, "%%%")
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
	_, err = e.stats.RecentEvents(ctx, 9999, 4, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIterateEvents(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	link := e.createLink(t, "iter")

	for i := 0; i < 7; i++ {
		e.clock.Advance(time.Second)
		_, err := e.recorder.RecordClick(ctx, link.ID, fmt.Sprintf("k%d", i), domain.ClientMeta{})
		require.NoError(t, err)
	}

	var keys []string
	for ev, err := range e.stats.IterateEvents(ctx, link.ID, 3) {
		require.NoError(t, err)
		keys = append(keys, ev.CorrelationKey)
	}
	assert.Equal(t, []string{"k6", "k5", "k4", "k3", "k2", "k1", "k0"}, keys)

	keys = keys[:0]
	for ev, err := range e.stats.IterateEvents(ctx, link.ID, 3) {
		require.NoError(t, err)
		keys = append(keys, ev.CorrelationKey)
		if len(keys) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"k6", "k5"}, keys)

	for _, err := range e.stats.IterateEvents(ctx, 9999, 3) {
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
}

func TestDashboardTotals(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	busy := e.createLink(t, "busy")
	small := e.createLink(t, "small")
	idle := e.createLink(t, "idle")

	off := false
	_, err := e.links.Update(ctx, idle.ID, domain.LinkPatch{Active: &off})
	require.NoError(t, err)

	// old traffic on busy: 9 clicks, 1 login
	for i := 0; i < 9; i++ {
		_, err := e.tracking.Resolve(ctx, busy.Code, fmt.Sprintf("b%d", i), domain.ClientMeta{})
		require.NoError(t, err)
	}
	_, err = e.tracking.AttributeLogin(ctx, "b0", "x@example.com", domain.ClientMeta{})
	require.NoError(t, err)

	e.clock.Advance(20 * 24 * time.Hour)
	// recent traffic on small: 1 click, 1 login
	_, err = e.tracking.Resolve(ctx, small.Code, "s0", domain.ClientMeta{})
	require.NoError(t, err)
	_, err = e.tracking.AttributeLogin(ctx, "s0", "y@example.com", domain.ClientMeta{})
	require.NoError(t, err)

	all, err := e.stats.DashboardTotals(ctx, domain.PeriodAll)
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.TotalLinks)
	assert.EqualValues(t, 2, all.ActiveLinks)
	assert.EqualValues(t, 10, all.TotalClicks)
	assert.EqualValues(t, 2, all.TotalLogins)
	// sum-over-sum gives 2/10; averaging per-link rates would give (1/9 + 1)/2
	assert.InDelta(t, 0.2, all.ConversionRate, 1e-9)

	week, err := e.stats.DashboardTotals(ctx, domain.Window7d)
	require.NoError(t, err)
	assert.EqualValues(t, 1, week.TotalClicks)
	assert.EqualValues(t, 1, week.TotalLogins)
	assert.InDelta(t, 1.0, week.ConversionRate, 1e-9)

	_, err = e.stats.DashboardTotals(ctx, domain.Window("2w"))
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
}

func TestDeleteResetsStats(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	link := e.createLink(t, "short lived")
	_, err := e.tracking.Resolve(ctx, link.Code, "k", domain.ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, e.links.Delete(ctx, link.ID))

	_, err = e.stats.LifetimeStats(ctx, link.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	totals, err := e.stats.DashboardTotals(ctx, domain.Window90d)
	require.NoError(t, err)
	assert.Zero(t, totals.TotalClicks)
	assert.Zero(t, totals.TotalLinks)

	n, err := e.tracking.AttributeLogin(ctx, "k", "ann@example.com", domain.ClientMeta{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
