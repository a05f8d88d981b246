// Package service contains the business logic for the trip planner API.
// Services enforce the itinerary invariants and orchestrate repo calls.
// No queries live here; services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/repo"
)

// ItineraryService is the itinerary store: it creates itineraries and applies
// stop edits as read-modify-write cycles over the whole days document.
type ItineraryService struct {
	repo repo.ItineraryRepo
	log  *slog.Logger
}

// NewItineraryService constructs an ItineraryService backed by r.
func NewItineraryService(r repo.ItineraryRepo, log *slog.Logger) *ItineraryService {
	return &ItineraryService{repo: r, log: log}
}

// Create persists a new itinerary for owner. Days and stops without ids get
// fresh ones so the stored record always satisfies the id invariant.
func (s *ItineraryService) Create(ctx context.Context, owner domain.Owner, draft domain.Itinerary) (domain.Itinerary, error) {
	it := draft.Clone()
	if it.Days == nil {
		it.Days = []domain.Day{}
	}
	if missingIDs(it) {
		it.AssignIdentifiers(uuid.NewString)
	}
	it.OwnerID = owner.ID

	created, err := s.repo.Create(ctx, it)
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("service.ItineraryService.Create: %w", persistence(err))
	}
	s.log.InfoContext(ctx, "itinerary created", "id", created.ID, "owner", owner.ID, "days", len(created.Days))
	return created, nil
}

// GetByID returns a single itinerary.
// Returns domain.ErrNotFound if it does not exist.
func (s *ItineraryService) GetByID(ctx context.Context, id uuid.UUID) (domain.Itinerary, error) {
	it, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("service.ItineraryService.GetByID: %w", persistence(err))
	}
	return it, nil
}

// List returns one page of itinerary summaries for ownerID, newest first.
// Always returns a non-nil slice.
func (s *ItineraryService) List(ctx context.Context, ownerID string, p domain.PaginationParams) ([]domain.Summary, int64, error) {
	items, total, err := s.repo.ListPaged(ctx, ownerID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ItineraryService.List: %w", persistence(err))
	}
	if items == nil {
		items = []domain.Summary{}
	}
	return items, total, nil
}

// UpdateStop applies the non-nil fields of patch to the stop.
// expectVersion is the caller's version token; zero skips the check.
func (s *ItineraryService) UpdateStop(ctx context.Context, itineraryID uuid.UUID, stopID string, patch domain.StopPatch, expectVersion int) (domain.Itinerary, error) {
	if patch.Empty() {
		return domain.Itinerary{}, fmt.Errorf("service.ItineraryService.UpdateStop: %w: no fields to update", domain.ErrValidation)
	}
	it, err := s.mutate(ctx, itineraryID, expectVersion, func(it *domain.Itinerary) error {
		return it.ApplyStopPatch(stopID, patch)
	})
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("service.ItineraryService.UpdateStop: %w", err)
	}
	return it, nil
}

// DeleteStop removes a stop. Returns domain.ErrInvariant when the stop is the
// last one in its day.
func (s *ItineraryService) DeleteStop(ctx context.Context, itineraryID uuid.UUID, stopID string, expectVersion int) (domain.Itinerary, error) {
	it, err := s.mutate(ctx, itineraryID, expectVersion, func(it *domain.Itinerary) error {
		return it.RemoveStop(stopID)
	})
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("service.ItineraryService.DeleteStop: %w", err)
	}
	return it, nil
}

// ReorderStops rewrites the stop order of the days named in orderings.
// See domain.Itinerary.ReorderStops for the ordering contract.
func (s *ItineraryService) ReorderStops(ctx context.Context, itineraryID uuid.UUID, orderings []domain.DayOrdering, expectVersion int) (domain.Itinerary, error) {
	it, err := s.mutate(ctx, itineraryID, expectVersion, func(it *domain.Itinerary) error {
		return it.ReorderStops(orderings)
	})
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("service.ItineraryService.ReorderStops: %w", err)
	}
	return it, nil
}

// mutate reads the itinerary, applies fn to a working copy and writes the days
// back with a compare-and-swap on the version that was read.
func (s *ItineraryService) mutate(ctx context.Context, id uuid.UUID, expectVersion int, fn func(*domain.Itinerary) error) (domain.Itinerary, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Itinerary{}, persistence(err)
	}
	if expectVersion != 0 && expectVersion != current.Version {
		return domain.Itinerary{}, fmt.Errorf("%w: itinerary is at version %d, request was based on %d",
			domain.ErrConflict, current.Version, expectVersion)
	}

	work := current.Clone()
	if err := fn(&work); err != nil {
		return domain.Itinerary{}, err
	}

	updated, err := s.repo.UpdateDays(ctx, id, work.Days, current.Version)
	if err != nil {
		return domain.Itinerary{}, persistence(err)
	}
	s.log.InfoContext(ctx, "itinerary updated", "id", id, "version", updated.Version)
	return updated, nil
}

// persistence tags store failures that are not one of the domain outcomes
// with domain.ErrPersistence so handlers can tell them apart.
func persistence(err error) error {
	for _, known := range []error{domain.ErrNotFound, domain.ErrConflict, domain.ErrValidation, domain.ErrInvariant} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}

func missingIDs(it domain.Itinerary) bool {
	for _, day := range it.Days {
		if day.ID == "" {
			return true
		}
		for _, stop := range day.Stops {
			if stop.ID == "" {
				return true
			}
		}
	}
	return false
}
