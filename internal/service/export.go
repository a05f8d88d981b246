package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/repo"
)

// ExportService flattens an itinerary into one row per stop.
type ExportService struct {
	repo repo.ItineraryRepo
}

// NewExportService constructs an ExportService backed by r.
func NewExportService(r repo.ItineraryRepo) *ExportService {
	return &ExportService{repo: r}
}

// Export returns the rows of a single itinerary in day, then stop order.
// Always returns a non-nil slice.
func (s *ExportService) Export(ctx context.Context, itineraryID uuid.UUID) ([]domain.ExportRow, error) {
	it, err := s.repo.GetByID(ctx, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Export: %w", persistence(err))
	}
	return it.ExportRows(), nil
}
