package profiles

import (
	"context"
	"strings"

	"github.com/google/uuid"

	inats "github.com/aurapalm/aura/internal/nats"
	"github.com/aurapalm/aura/internal/palm"
)

// PalmStatusSource reports where the user is in the palm reading pipeline.
type PalmStatusSource interface {
	Status(ctx context.Context, userID uuid.UUID) (palm.Status, error)
}

type Service struct {
	repo   Repository
	palm   PalmStatusSource
	events inats.EventPublisher
}

func NewService(repo Repository, palm PalmStatusSource, events inats.EventPublisher) *Service {
	if events == nil {
		events = inats.NopPublisher{}
	}
	return &Service{repo: repo, palm: palm, events: events}
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*ProfileResponse, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	astro, err := s.repo.GetAstroProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProfileResponse{Profile: profile, AstroProfile: astro}, nil
}

func (s *Service) Update(ctx context.Context, userID uuid.UUID, email string, req *UpdateRequest) (*ProfileResponse, error) {
	req.BirthPlace = strings.TrimSpace(req.BirthPlace)
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		req.FullName = &name
	}

	profile, astro, err := s.repo.Update(ctx, userID, email, req)
	if err != nil {
		return nil, err
	}

	inats.PublishQuietly(ctx, s.events, inats.NewEvent(inats.EventProfileUpdated, userID, "astro_profile", userID.String(), nil))
	return &ProfileResponse{Profile: profile, AstroProfile: astro}, nil
}

func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*StatusResponse, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	astro, err := s.repo.GetAstroProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	palmStatus, err := s.palm.Status(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &StatusResponse{
		HasPaid:         profile != nil && profile.HasPaid,
		HasAstroProfile: astro != nil,
		PalmStatus:      palmStatus,
	}, nil
}
