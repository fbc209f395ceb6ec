package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/ports"
)

const maxTargetLength = 2048

type LinkService struct {
	repo ports.LinkRepository
	gen  *CodeGenerator
	opts options
}

func NewLinkService(repo ports.LinkRepository, opts ...Option) *LinkService {
	o := newOptions(opts)
	return &LinkService{
		repo: repo,
		gen:  NewCodeGenerator(o.codeLength),
		opts: o,
	}
}

// Create registers a new active link. With no code supplied one is generated,
// drawing again on collision up to maxGenerateAttempts times.
func (s *LinkService) Create(ctx context.Context, in domain.CreateLinkInput) (*domain.TrackingLink, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	target, err := normalizeTarget(in.TargetURL)
	if err != nil {
		return nil, err
	}

	now := s.opts.now().UTC()
	link := &domain.TrackingLink{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		TargetURL:   target,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if in.Code != "" {
		if !customCodePattern.MatchString(in.Code) {
			return nil, fmt.Errorf("%w: code must be 3-64 letters, digits, '-' or '_'", domain.ErrInvalidInput)
		}
		link.Code = in.Code
		if err := s.repo.Create(ctx, link); err != nil {
			return nil, err
		}
		return link, nil
	}

	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		code, err := s.gen.Generate()
		if err != nil {
			return nil, err
		}
		link.Code = code

		err = s.repo.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, domain.ErrDuplicateCode) {
			return nil, err
		}
		s.opts.logger.WithFields(logrus.Fields{"code": code, "attempt": attempt}).Warn("generated code collided")
	}

	s.opts.logger.Error("tracking code space exhausted")
	return nil, domain.ErrGenerationExhausted
}

func (s *LinkService) GetByCode(ctx context.Context, code string) (*domain.TrackingLink, error) {
	return s.repo.GetByCode(ctx, code)
}

func (s *LinkService) GetByID(ctx context.Context, id int64) (*domain.TrackingLink, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *LinkService) Update(ctx context.Context, id int64, patch domain.LinkPatch) (*domain.TrackingLink, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return link, nil
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidInput)
		}
		link.Name = name
	}
	if patch.Description != nil {
		link.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.TargetURL != nil {
		target, err := normalizeTarget(*patch.TargetURL)
		if err != nil {
			return nil, err
		}
		link.TargetURL = target
	}
	if patch.Active != nil {
		link.Active = *patch.Active
	}
	link.UpdatedAt = s.opts.now().UTC()

	if err := s.repo.Update(ctx, link); err != nil {
		return nil, err
	}
	s.invalidate(ctx, link.Code)
	return link, nil
}

func (s *LinkService) List(ctx context.Context, filter domain.LinkFilter) ([]domain.TrackingLink, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes the link and its whole event history.
func (s *LinkService) Delete(ctx context.Context, id int64) error {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, link.Code)
	return nil
}

func (s *LinkService) invalidate(ctx context.Context, code string) {
	if s.opts.cache == nil {
		return
	}
	if err := s.opts.cache.Delete(ctx, code); err != nil {
		s.opts.logger.WithError(err).WithField("code", code).Warn("link cache invalidation failed")
	}
}

// normalizeTarget accepts absolute http(s) URLs with a host.
func normalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxTargetLength {
		return "", domain.ErrInvalidTarget
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", domain.ErrInvalidTarget
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", domain.ErrInvalidTarget
	}
	return raw, nil
}

var _ ports.LinkService = (*LinkService)(nil)
