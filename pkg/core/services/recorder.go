package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/ports"
)

// Recorder appends tracking events and keeps the link counters in step.
//
// The event is always written first and the counter bumped second. If the
// increment still fails after retries it is logged and dropped, so counters
// can lag the event log but never run ahead of it.
type Recorder struct {
	links  ports.LinkRepository
	events ports.EventRepository
	opts   options
}

func NewRecorder(links ports.LinkRepository, events ports.EventRepository, opts ...Option) *Recorder {
	return &Recorder{links: links, events: events, opts: newOptions(opts)}
}

// RecordClick logs a click and counts it. Repeat clicks from the same
// visitor are all counted.
func (r *Recorder) RecordClick(ctx context.Context, linkID int64, correlationKey string, meta domain.ClientMeta) (*domain.TrackingEvent, error) {
	ev := r.newEvent(linkID, correlationKey, meta)
	if err := r.events.AppendClick(ctx, ev); err != nil {
		return nil, err
	}
	r.increment(ctx, ev, r.links.IncrementClick)
	return ev, nil
}

// RecordLogin logs the first login of a visitor on a link. A replay returns
// domain.ErrAlreadyAttributed without touching counters. A login whose key
// never clicked the link is kept for audit but not counted.
func (r *Recorder) RecordLogin(ctx context.Context, linkID int64, correlationKey, actorID string, meta domain.ClientMeta) (*domain.TrackingEvent, error) {
	if strings.TrimSpace(correlationKey) == "" || strings.TrimSpace(actorID) == "" {
		return nil, fmt.Errorf("%w: correlation key and actor are required", domain.ErrInvalidInput)
	}

	ev := r.newEvent(linkID, correlationKey, meta)
	ev.ActorID = actorID
	if err := r.events.AppendLogin(ctx, ev); err != nil {
		return nil, err
	}

	if ev.Attributed {
		r.increment(ctx, ev, r.links.IncrementLogin)
	} else {
		r.opts.logger.WithFields(logrus.Fields{
			"link_id":  linkID,
			"event_id": ev.ID,
		}).Info("login recorded without a prior click")
	}
	return ev, nil
}

func (r *Recorder) newEvent(linkID int64, correlationKey string, meta domain.ClientMeta) *domain.TrackingEvent {
	return &domain.TrackingEvent{
		ID:             uuid.NewString(),
		LinkID:         linkID,
		CorrelationKey: correlationKey,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		CreatedAt:      r.opts.now().UTC(),
	}
}

func (r *Recorder) increment(ctx context.Context, ev *domain.TrackingEvent, inc func(context.Context, int64) (int64, error)) {
	err := r.opts.retry.do(ctx, func() error {
		_, err := inc(ctx, ev.LinkID)
		return err
	})
	if err != nil {
		r.opts.logger.WithError(err).WithFields(logrus.Fields{
			"link_id":    ev.LinkID,
			"event_id":   ev.ID,
			"event_type": ev.Type,
		}).Error("counter increment dropped")
	}
}
