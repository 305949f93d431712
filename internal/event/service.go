package event

import (
	"context"
	"errors"
	"time"

	"github.com/apprentix/service-core/internal/event/entity"
	"github.com/apprentix/service-core/internal/event/repo"
	"github.com/apprentix/service-core/pkg/utilities"
)

var ErrInvalidTimeRange = errors.New("event must end after it starts")

// Service encapsulates calendar-event business logic.
type Service struct {
	repo *repo.EventRepo
}

func NewService(r *repo.EventRepo) *Service { return &Service{repo: r} }

func (s *Service) List(ctx context.Context, limit, offset int) ([]*entity.Event, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Get(ctx context.Context, id string) (*entity.Event, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates the time range and inserts the event with a fresh ID.
func (s *Service) Create(ctx context.Context, e *entity.Event) (*entity.Event, error) {
	if !e.EndsAt.After(e.StartsAt) {
		return nil, ErrInvalidTimeRange
	}
	e.ID = utilities.NewSnowflakeID()
	e.Version = 1
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Update applies an optimistic-locked update against the caller's version.
func (s *Service) Update(ctx context.Context, e *entity.Event) (*entity.Event, error) {
	if !e.EndsAt.After(e.StartsAt) {
		return nil, ErrInvalidTimeRange
	}
	expected := e.Version
	if err := s.repo.Update(ctx, e, expected); err != nil {
		return nil, err
	}
	e.Version = expected + 1
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
