package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/generation"
	"github.com/tripplanner/backend/internal/middleware"
)

// GenerateRequest is the body of both generate endpoints.
type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"notblank"`
	Days   int    `json:"days" validate:"min=1,max=14"`
	// UserID is honoured by POST /generate only, and only for callers
	// without a bearer token.
	UserID string `json:"userId,omitempty" validate:"omitempty,max=200"`
}

// GenerateResponse is the body of a successful POST /generate.
type GenerateResponse struct {
	Message string             `json:"message"`
	ID      *uuid.UUID         `json:"id"`
	Data    generation.Payload `json:"data"`
}

// GenerateStream handles POST /generate-stream.
//
// A bad body is answered with 400 JSON before the stream opens. After that
// the response is text/event-stream: one "data: <event>\n\n" frame per
// event, flushed immediately, ending with exactly one complete or error
// event.
func (s *Server) GenerateStream(w http.ResponseWriter, r *http.Request) {
	var body GenerateRequest
	if err := s.decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// Generations outlive the server's default write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	started := false
	emit := func(ev generation.Event) error {
		if !started {
			h := w.Header()
			h.Set("Content-Type", "text/event-stream")
			h.Set("Cache-Control", "no-cache")
			h.Set("Connection", "keep-alive")
			h.Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil {
			return err
		}
		return r.Context().Err()
	}

	req := generation.Request{Prompt: body.Prompt, Days: body.Days}
	err := s.generator.Stream(r.Context(), ownerOf(r), req, emit)
	if err == nil {
		return
	}
	if !started {
		s.writeError(w, r, err)
		return
	}
	s.log.InfoContext(r.Context(), "event stream ended early", "error", err)
}

// Generate handles POST /generate, the non-streaming variant.
func (s *Server) Generate(w http.ResponseWriter, r *http.Request) {
	var body GenerateRequest
	if err := s.decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	owner := ownerOf(r)
	if owner.Guest && body.UserID != "" {
		owner = domain.Owner{ID: body.UserID}
	}

	res, err := s.generator.Generate(r.Context(), owner, generation.Request{Prompt: body.Prompt, Days: body.Days})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		Message: "Itinerary generated",
		ID:      res.ID,
		Data:    generation.Payload{Title: res.Itinerary.Title, Days: res.Itinerary.Days},
	})
}

// ownerOf returns the owner resolved by the owner middleware, or an
// anonymous guest when the middleware is not wired.
func ownerOf(r *http.Request) domain.Owner {
	if owner, ok := middleware.OwnerFrom(r.Context()); ok {
		return owner
	}
	return domain.Owner{Guest: true}
}
