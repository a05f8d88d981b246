package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/generation"
)

// Pagination describes one page of a list response.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// ItineraryList is the body of GET /itineraries.
type ItineraryList struct {
	Data       []domain.Summary `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// ItineraryResponse is the body of GET /itinerary/{id}.
type ItineraryResponse struct {
	Success   bool               `json:"success"`
	ID        uuid.UUID          `json:"id"`
	Data      generation.Payload `json:"data"`
	Config    domain.Config      `json:"config"`
	CreatedAt time.Time          `json:"createdAt"`
	Version   int                `json:"version"`
}

// ListItineraries handles GET /itineraries, newest first.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
// Callers with a bearer token see their own itineraries; guests see all.
func (s *Server) ListItineraries(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	params := domain.NewPaginationParams(page, limit)

	var ownerID string
	if owner := ownerOf(r); !owner.Guest {
		ownerID = owner.ID
	}

	items, total, err := s.itineraries.List(r.Context(), ownerID, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ItineraryList{
		Data: items,
		Pagination: Pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: int(total),
		},
	})
}

// GetItinerary handles GET /itinerary/{id}.
func (s *Server) GetItinerary(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	it, err := s.itineraries.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itineraryToResponse(it))
}

func itineraryToResponse(it domain.Itinerary) ItineraryResponse {
	days := it.Days
	if days == nil {
		days = []domain.Day{}
	}
	return ItineraryResponse{
		Success:   true,
		ID:        it.ID,
		Data:      generation.Payload{Title: it.Title, Days: days},
		Config:    it.Config,
		CreatedAt: it.CreatedAt,
		Version:   it.Version,
	}
}
