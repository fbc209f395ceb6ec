package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/ports"
)

// TrackingService resolves short codes for visitors and attributes their
// later sign-ins to the links they clicked.
type TrackingService struct {
	links    ports.LinkRepository
	events   ports.EventRepository
	recorder *Recorder
	opts     options
}

func NewTrackingService(links ports.LinkRepository, events ports.EventRepository, recorder *Recorder, opts ...Option) *TrackingService {
	return &TrackingService{
		links:    links,
		events:   events,
		recorder: recorder,
		opts:     newOptions(opts),
	}
}

// Resolve returns the target of an active link and records the click.
// A failed click record is logged and the resolution still succeeds.
func (s *TrackingService) Resolve(ctx context.Context, code, correlationKey string, meta domain.ClientMeta) (*domain.Resolution, error) {
	link, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if !link.Active {
		return nil, domain.ErrInactive
	}

	res := &domain.Resolution{Link: *link, TargetURL: link.TargetURL}

	// The visitor may disconnect once the redirect is written; the click
	// should still land, bounded only by the tracking timeout.
	trackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.trackTimeout)
	defer cancel()

	if _, err := s.recorder.RecordClick(trackCtx, link.ID, correlationKey, meta); err != nil {
		s.opts.logger.WithError(err).WithFields(logrus.Fields{
			"link_id": link.ID,
			"code":    code,
		}).Warn("click not recorded")
		return res, nil
	}
	res.Tracked = true
	return res, nil
}

func (s *TrackingService) lookup(ctx context.Context, code string) (*domain.TrackingLink, error) {
	cache := s.opts.cache
	if cache != nil {
		link, err := cache.Get(ctx, code)
		if err != nil {
			s.opts.logger.WithError(err).WithField("code", code).Warn("link cache read failed")
		} else if link != nil {
			return link, nil
		}
	}

	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if err := cache.Set(ctx, link); err != nil {
			s.opts.logger.WithError(err).WithField("code", code).Warn("link cache write failed")
		}
	}
	return link, nil
}

// AttributeLogin is the sign-in hook. It records a login on every link the
// correlation key has clicked and returns how many logins were counted.
// Per-link failures are logged so the sign-in itself never fails on them.
func (s *TrackingService) AttributeLogin(ctx context.Context, correlationKey, actorID string, meta domain.ClientMeta) (int, error) {
	if strings.TrimSpace(correlationKey) == "" || strings.TrimSpace(actorID) == "" {
		return 0, fmt.Errorf("%w: correlation key and actor are required", domain.ErrInvalidInput)
	}

	linkIDs, err := s.events.LinksClickedBy(ctx, correlationKey)
	if err != nil {
		return 0, fmt.Errorf("find clicked links: %w", err)
	}

	counted := 0
	for _, linkID := range linkIDs {
		log := s.opts.logger.WithFields(logrus.Fields{"link_id": linkID, "actor_id": actorID})

		ev, err := s.recorder.RecordLogin(ctx, linkID, correlationKey, actorID, meta)
		switch {
		case err == nil:
			if ev.Attributed {
				counted++
			}
		case errors.Is(err, domain.ErrAlreadyAttributed):
			log.Debug("login already attributed")
		default:
			log.WithError(err).Warn("login not recorded")
		}
	}
	return counted, nil
}

var _ ports.TrackingService = (*TrackingService)(nil)
