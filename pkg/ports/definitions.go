package ports

import (
	"context"
	"iter"
	"time"

	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
)

// LinkRepository defines storage operations for tracking links
type LinkRepository interface {
	// Create assigns link.ID. A taken code yields domain.ErrDuplicateCode.
	Create(ctx context.Context, link *domain.TrackingLink) error
	GetByCode(ctx context.Context, code string) (*domain.TrackingLink, error)
	GetByID(ctx context.Context, id int64) (*domain.TrackingLink, error)
	// Update writes the mutable fields only; counters are never touched.
	Update(ctx context.Context, link *domain.TrackingLink) error
	List(ctx context.Context, filter domain.LinkFilter) ([]domain.TrackingLink, error)
	// Delete removes the link together with its event history.
	Delete(ctx context.Context, id int64) error

	// IncrementClick and IncrementLogin are single atomic statements.
	// A missing link yields domain.ErrLinkNotFound.
	IncrementClick(ctx context.Context, id int64) (int64, error)
	IncrementLogin(ctx context.Context, id int64) (int64, error)

	CountLinks(ctx context.Context) (total, active int64, err error)
	SumCounters(ctx context.Context) (clicks, logins int64, err error)
}

// EventRepository is the append-only event log
type EventRepository interface {
	// AppendClick fails with domain.ErrLinkNotFound if the link is gone.
	AppendClick(ctx context.Context, ev *domain.TrackingEvent) error
	// AppendLogin stores at most one login per (link, correlation key) and
	// sets ev.Attributed when the key clicked the link before. A repeat
	// yields domain.ErrAlreadyAttributed.
	AppendLogin(ctx context.Context, ev *domain.TrackingEvent) error
	// LinksClickedBy lists the links a correlation key has ever clicked.
	LinksClickedBy(ctx context.Context, correlationKey string) ([]int64, error)

	// CountEvents counts clicks and attributed logins in [since, until].
	CountEvents(ctx context.Context, linkID int64, since, until time.Time) (clicks, logins int64, err error)
	CountAllEvents(ctx context.Context, since, until time.Time) (clicks, logins int64, err error)
	// ListEvents returns up to limit events older than after, newest first.
	ListEvents(ctx context.Context, linkID int64, limit int, after *domain.EventCursor) ([]domain.TrackingEvent, error)
}

// ActorDirectory resolves actor display information. Lookup omits unknown ids.
type ActorDirectory interface {
	LookupActors(ctx context.Context, ids []string) (map[string]domain.Actor, error)
}

// ActorRepository is the writable side of the directory, fed by sign-ins.
type ActorRepository interface {
	ActorDirectory
	UpsertActor(ctx context.Context, actor *domain.Actor) error
}

// LinkCache is a read-through cache for the redirect path.
// Get returns nil, nil on a miss.
type LinkCache interface {
	Get(ctx context.Context, code string) (*domain.TrackingLink, error)
	Set(ctx context.Context, link *domain.TrackingLink) error
	Delete(ctx context.Context, code string) error
}

// LinkService defines the administrative operations on links
type LinkService interface {
	Create(ctx context.Context, in domain.CreateLinkInput) (*domain.TrackingLink, error)
	GetByCode(ctx context.Context, code string) (*domain.TrackingLink, error)
	GetByID(ctx context.Context, id int64) (*domain.TrackingLink, error)
	Update(ctx context.Context, id int64, patch domain.LinkPatch) (*domain.TrackingLink, error)
	List(ctx context.Context, filter domain.LinkFilter) ([]domain.TrackingLink, error)
	Delete(ctx context.Context, id int64) error
}

// TrackingService is the visitor-facing side: redirects and login attribution
type TrackingService interface {
	Resolve(ctx context.Context, code, correlationKey string, meta domain.ClientMeta) (*domain.Resolution, error)
	AttributeLogin(ctx context.Context, correlationKey, actorID string, meta domain.ClientMeta) (int, error)
}

// StatsService serves the reporting endpoints
type StatsService interface {
	LifetimeStats(ctx context.Context, linkID int64) (*domain.LinkStats, error)
	WindowedStats(ctx context.Context, linkID int64, w domain.Window) (*domain.LinkStats, error)
	RecentEvents(ctx context.Context, linkID int64, limit int, cursor string) (*domain.EventPage, error)
	IterateEvents(ctx context.Context, linkID int64, pageSize int) iter.Seq2[domain.EventView, error]
	DashboardTotals(ctx context.Context, period domain.Window) (*domain.DashboardTotals, error)
}
