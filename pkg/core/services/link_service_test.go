package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/ports"
)

func TestCreateLink(t *testing.T) {
	e := newEngine(t)

	link, err := e.links.Create(context.Background(), domain.CreateLinkInput{
		Name:        "  Launch Ad ",
		Description: "desc",
		TargetURL:   "https://example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Launch Ad", link.Name)
	assert.Len(t, link.Code, DefaultCodeLength)
	assert.True(t, link.Active)
	assert.Zero(t, link.ClickCount)
	assert.Zero(t, link.LoginCount)
	assert.Equal(t, e.clock.Now(), link.CreatedAt)

	stored, err := e.links.GetByCode(context.Background(), link.Code)
	require.NoError(t, err)
	assert.Equal(t, link.ID, stored.ID)
}

func TestCreateLinkValidation(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name string
		in   domain.CreateLinkInput
		want error
	}{
		{"missing name", domain.CreateLinkInput{TargetURL: "https://example.com"}, domain.ErrInvalidInput},
		{"relative target", domain.CreateLinkInput{Name: "x", TargetURL: "/courses"}, domain.ErrInvalidTarget},
		{"no scheme", domain.CreateLinkInput{Name: "x", TargetURL: "example.com"}, domain.ErrInvalidTarget},
		{"ftp target", domain.CreateLinkInput{Name: "x", TargetURL: "ftp://example.com/file"}, domain.ErrInvalidTarget},
		{"no host", domain.CreateLinkInput{Name: "x", TargetURL: "https:///path"}, domain.ErrInvalidTarget},
		{"javascript", domain.CreateLinkInput{Name: "x", TargetURL: "javascript:alert(1)"}, domain.ErrInvalidTarget},
		{"bad custom code", domain.CreateLinkInput{Name: "x", TargetURL: "https://example.com", Code: "a b"}, domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.links.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateLinkCustomCodeDuplicate(t *testing.T) {
	e := newEngine(t)
	in := domain.CreateLinkInput{Name: "Spring", TargetURL: "https://example.com", Code: "spring-sale"}

	link, err := e.links.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "spring-sale", link.Code)

	_, err = e.links.Create(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)
}

// collidingRepo reports a duplicate code for the first n creates.
type collidingRepo struct {
	ports.LinkRepository
	n     int32
	calls atomic.Int32
}

func (r *collidingRepo) Create(ctx context.Context, link *domain.TrackingLink) error {
	if r.calls.Add(1) <= r.n {
		return domain.ErrDuplicateCode
	}
	return r.LinkRepository.Create(ctx, link)
}

func TestCreateLinkRetriesCollisions(t *testing.T) {
	logger, hook := nullLogger()
	repo := &collidingRepo{LinkRepository: newStore(t), n: 2}
	svc := NewLinkService(repo, WithLogger(logger))

	link, err := svc.Create(context.Background(), domain.CreateLinkInput{Name: "x", TargetURL: "https://example.com"})
	require.NoError(t, err)
	assert.NotZero(t, link.ID)
	assert.EqualValues(t, 3, repo.calls.Load())
	assert.Len(t, hook.AllEntries(), 2)
}

func TestCreateLinkGenerationExhausted(t *testing.T) {
	logger, _ := nullLogger()
	repo := &collidingRepo{LinkRepository: newStore(t), n: 1000}
	svc := NewLinkService(repo, WithLogger(logger))

	_, err := svc.Create(context.Background(), domain.CreateLinkInput{Name: "x", TargetURL: "https://example.com"})
	assert.ErrorIs(t, err, domain.ErrGenerationExhausted)
	assert.EqualValues(t, maxGenerateAttempts, repo.calls.Load())
}

func TestUpdateLinkPartial(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	link := e.createLink(t, "Original")
	_, err := e.recorder.RecordClick(ctx, link.ID, "k", domain.ClientMeta{})
	require.NoError(t, err)

	e.clock.Advance(time.Hour)
	inactive := false
	desc := "new description"
	updated, err := e.links.Update(ctx, link.ID, domain.LinkPatch{Description: &desc, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Original", updated.Name)
	assert.Equal(t, "new description", updated.Description)
	assert.False(t, updated.Active)
	assert.EqualValues(t, 1, updated.ClickCount)
	assert.Equal(t, e.clock.Now(), updated.UpdatedAt)

	badTarget := "not a url"
	_, err = e.links.Update(ctx, link.ID, domain.LinkPatch{TargetURL: &badTarget})
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)

	blank := " "
	_, err = e.links.Update(ctx, link.ID, domain.LinkPatch{Name: &blank})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.links.Update(ctx, 404, domain.LinkPatch{Name: &desc})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListLinksFilter(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	first := e.createLink(t, "first")
	e.clock.Advance(time.Second)
	second := e.createLink(t, "second")

	off := false
	_, err := e.links.Update(ctx, first.ID, domain.LinkPatch{Active: &off})
	require.NoError(t, err)

	all, err := e.links.List(ctx, domain.LinkFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)

	on := true
	active, err := e.links.List(ctx, domain.LinkFilter{Active: &on})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestUpdateAndDeleteInvalidateCache(t *testing.T) {
	cache := newMemCache()
	e := newEngine(t, WithCache(cache))
	ctx := context.Background()
	link := e.createLink(t, "cached")

	_, err := e.tracking.Resolve(ctx, link.Code, "k", domain.ClientMeta{})
	require.NoError(t, err)
	require.Contains(t, cache.entries, link.Code)

	name := "renamed"
	_, err = e.links.Update(ctx, link.ID, domain.LinkPatch{Name: &name})
	require.NoError(t, err)
	assert.NotContains(t, cache.entries, link.Code)

	require.NoError(t, e.links.Delete(ctx, link.ID))
	assert.Equal(t, []string{link.Code, link.Code}, cache.deletes)

	assert.ErrorIs(t, e.links.Delete(ctx, link.ID), domain.ErrNotFound)
}
