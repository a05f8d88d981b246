package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/domain"
)

// UpdateStopRequest is the body of PATCH /stops/{stopId}.
// Absent fields are left untouched.
type UpdateStopRequest struct {
	ItineraryID     string  `json:"itineraryId" validate:"required,uuid"`
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	Version         int     `json:"version,omitempty" validate:"min=0"`
}

// DeleteStopRequest is the body of DELETE /stops/{stopId}.
type DeleteStopRequest struct {
	ItineraryID string `json:"itineraryId" validate:"required,uuid"`
	Version     int    `json:"version,omitempty" validate:"min=0"`
}

// DayOrder is one day of a reorder request.
type DayOrder struct {
	DayID   string   `json:"dayId" validate:"required"`
	StopIDs []string `json:"stopIds" validate:"required"`
}

// ReorderStopsRequest is the body of POST /stops/reorder.
type ReorderStopsRequest struct {
	ItineraryID string     `json:"itineraryId" validate:"required,uuid"`
	Days        []DayOrder `json:"days" validate:"required,dive"`
	Version     int        `json:"version,omitempty" validate:"min=0"`
}

// MutationResponse is the body of every successful stop edit.
type MutationResponse struct {
	Success bool `json:"success"`
	Version int  `json:"version"`
}

// UpdateStop handles PATCH /stops/{stopId}.
func (s *Server) UpdateStop(w http.ResponseWriter, r *http.Request) {
	stopID, err := pathString(r, "stopId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body UpdateStopRequest
	if err := s.decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	patch := domain.StopPatch{Name: body.Name, Description: body.Description, DurationMinutes: body.DurationMinutes}
	it, err := s.itineraries.UpdateStop(r.Context(), itineraryID(body.ItineraryID), stopID, patch, body.Version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Success: true, Version: it.Version})
}

// DeleteStop handles DELETE /stops/{stopId}.
// Deleting the last stop of a day is refused with 400 invariant_violation.
func (s *Server) DeleteStop(w http.ResponseWriter, r *http.Request) {
	stopID, err := pathString(r, "stopId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body DeleteStopRequest
	if err := s.decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	it, err := s.itineraries.DeleteStop(r.Context(), itineraryID(body.ItineraryID), stopID, body.Version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Success: true, Version: it.Version})
}

// ReorderStops handles POST /stops/reorder.
func (s *Server) ReorderStops(w http.ResponseWriter, r *http.Request) {
	var body ReorderStopsRequest
	if err := s.decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	orderings := make([]domain.DayOrdering, len(body.Days))
	for i, d := range body.Days {
		orderings[i] = domain.DayOrdering{DayID: d.DayID, StopIDs: d.StopIDs}
	}

	it, err := s.itineraries.ReorderStops(r.Context(), itineraryID(body.ItineraryID), orderings, body.Version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Success: true, Version: it.Version})
}

// itineraryID parses an id already checked by the "uuid" validator.
func itineraryID(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}
