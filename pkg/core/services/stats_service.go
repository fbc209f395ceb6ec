package services

import (
	"context"
	"iter"

	"github.com/mileusna/useragent"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/ports"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type StatsService struct {
	links  ports.LinkRepository
	events ports.EventRepository
	actors ports.ActorDirectory
	opts   options
}

// NewStatsService builds the aggregator. actors may be nil, in which case
// timeline entries carry no actor details.
func NewStatsService(links ports.LinkRepository, events ports.EventRepository, actors ports.ActorDirectory, opts ...Option) *StatsService {
	return &StatsService{links: links, events: events, actors: actors, opts: newOptions(opts)}
}

// LifetimeStats reads the link counters without scanning events.
func (s *StatsService) LifetimeStats(ctx context.Context, linkID int64) (*domain.LinkStats, error) {
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	return &domain.LinkStats{
		LinkID:         link.ID,
		Clicks:         link.ClickCount,
		Logins:         link.LoginCount,
		ConversionRate: link.ConversionRate(),
	}, nil
}

// WindowedStats counts clicks and attributed logins in [now-w, now].
func (s *StatsService) WindowedStats(ctx context.Context, linkID int64, w domain.Window) (*domain.LinkStats, error) {
	if w.Duration() == 0 {
		return nil, domain.ErrInvalidWindow
	}
	if _, err := s.links.GetByID(ctx, linkID); err != nil {
		return nil, err
	}

	now := s.opts.now().UTC()
	clicks, logins, err := s.events.CountEvents(ctx, linkID, w.Since(now), now)
	if err != nil {
		return nil, err
	}
	return &domain.LinkStats{
		LinkID:         linkID,
		Window:         w,
		Clicks:         clicks,
		Logins:         logins,
		ConversionRate: domain.Ratio(logins, clicks),
	}, nil
}

// RecentEvents returns one timeline page, newest first. Pass the previous
// page's NextCursor to continue; an empty cursor starts from the newest event.
func (s *StatsService) RecentEvents(ctx context.Context, linkID int64, limit int, cursor string) (*domain.EventPage, error) {
	limit = clampPageSize(limit)

	var after *domain.EventCursor
	if cursor != "" {
		c, err := domain.DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		after = c
	}

	if _, err := s.links.GetByID(ctx, linkID); err != nil {
		return nil, err
	}

	// one extra row tells us whether another page exists
	events, err := s.events.ListEvents(ctx, linkID, limit+1, after)
	if err != nil {
		return nil, err
	}
	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}

	page := &domain.EventPage{Events: s.annotate(ctx, events)}
	if hasMore {
		last := events[len(events)-1]
		page.NextCursor = domain.EventCursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	return page, nil
}

// IterateEvents walks the whole timeline lazily, fetching pageSize events at
// a time. Stopping the loop early stops the fetching.
func (s *StatsService) IterateEvents(ctx context.Context, linkID int64, pageSize int) iter.Seq2[domain.EventView, error] {
	return func(yield func(domain.EventView, error) bool) {
		cursor := ""
		for {
			page, err := s.RecentEvents(ctx, linkID, pageSize, cursor)
			if err != nil {
				yield(domain.EventView{}, err)
				return
			}
			for _, ev := range page.Events {
				if !yield(ev, nil) {
					return
				}
			}
			if page.NextCursor == "" {
				return
			}
			cursor = page.NextCursor
		}
	}
}

// DashboardTotals rolls every link up into one figure. The rate is
// sum(logins)/sum(clicks). PeriodAll uses the counters, a window counts events.
func (s *StatsService) DashboardTotals(ctx context.Context, period domain.Window) (*domain.DashboardTotals, error) {
	if period != domain.PeriodAll && period.Duration() == 0 {
		return nil, domain.ErrInvalidWindow
	}

	total, active, err := s.links.CountLinks(ctx)
	if err != nil {
		return nil, err
	}

	var clicks, logins int64
	if period == domain.PeriodAll {
		clicks, logins, err = s.links.SumCounters(ctx)
	} else {
		now := s.opts.now().UTC()
		clicks, logins, err = s.events.CountAllEvents(ctx, period.Since(now), now)
	}
	if err != nil {
		return nil, err
	}

	return &domain.DashboardTotals{
		Period:         period,
		TotalLinks:     total,
		ActiveLinks:    active,
		TotalClicks:    clicks,
		TotalLogins:    logins,
		ConversionRate: domain.Ratio(logins, clicks),
	}, nil
}

func (s *StatsService) annotate(ctx context.Context, events []domain.TrackingEvent) []domain.EventView {
	var actors map[string]domain.Actor
	if s.actors != nil {
		var ids []string
		for _, ev := range events {
			if ev.ActorID != "" {
				ids = append(ids, ev.ActorID)
			}
		}
		if len(ids) > 0 {
			found, err := s.actors.LookupActors(ctx, ids)
			if err != nil {
				s.opts.logger.WithError(err).Warn("actor lookup failed, timeline left unannotated")
			}
			actors = found
		}
	}

	views := make([]domain.EventView, 0, len(events))
	for _, ev := range events {
		v := domain.EventView{TrackingEvent: ev, Client: parseClient(ev.UserAgent)}
		if a, ok := actors[ev.ActorID]; ok {
			v.Actor = &a
		}
		views = append(views, v)
	}
	return views
}

func parseClient(raw string) domain.Client {
	if raw == "" {
		return domain.Client{}
	}
	ua := useragent.Parse(raw)
	return domain.Client{
		Browser: ua.Name,
		OS:      ua.OS,
		Device:  deviceType(&ua),
	}
}

func deviceType(ua *useragent.UserAgent) string {
	switch {
	case ua.Bot:
		return "bot"
	case ua.Tablet:
		return "tablet"
	case ua.Mobile:
		return "mobile"
	case ua.Desktop:
		return "desktop"
	default:
		return "unknown"
	}
}

func clampPageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}

var _ ports.StatsService = (*StatsService)(nil)
