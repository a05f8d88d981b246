// Package handler implements the HTTP handlers for the trip planner API.
// All handlers are methods on Server. Methods are split into files by
// resource (generate.go, itinerary.go, stop.go, export.go, health.go) but
// share the same Server struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/generation"
)

// ItineraryServicer defines the itinerary store operations the handlers use.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or service layer.
type ItineraryServicer interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Itinerary, error)
	List(ctx context.Context, ownerID string, p domain.PaginationParams) ([]domain.Summary, int64, error)
	UpdateStop(ctx context.Context, itineraryID uuid.UUID, stopID string, patch domain.StopPatch, expectVersion int) (domain.Itinerary, error)
	DeleteStop(ctx context.Context, itineraryID uuid.UUID, stopID string, expectVersion int) (domain.Itinerary, error)
	ReorderStops(ctx context.Context, itineraryID uuid.UUID, orderings []domain.DayOrdering, expectVersion int) (domain.Itinerary, error)
}

// Generator runs itinerary generations. *generation.Service satisfies it.
type Generator interface {
	Stream(ctx context.Context, owner domain.Owner, req generation.Request, emit func(generation.Event) error) error
	Generate(ctx context.Context, owner domain.Owner, req generation.Request) (generation.Result, error)
}

// ExportServicer flattens an itinerary into export rows.
type ExportServicer interface {
	Export(ctx context.Context, itineraryID uuid.UUID) ([]domain.ExportRow, error)
}

// Server holds the dependencies of every endpoint.
// Wire it in main.go via Register.
type Server struct {
	itineraries ItineraryServicer
	generator   Generator
	export      ExportServicer
	validate    *validator.Validate
	log         *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(itineraries ItineraryServicer, gen Generator, export ExportServicer, log *slog.Logger) *Server {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names so messages match what the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)

	return &Server{
		itineraries: itineraries,
		generator:   gen,
		export:      export,
		validate:    v,
		log:         log,
	}
}

// Register mounts every endpoint under /api/v1 on r. generateLimit wraps
// the two generate endpoints; nil means no limit.
func (s *Server) Register(r chi.Router, generateLimit func(http.Handler) http.Handler) {
	if generateLimit == nil {
		generateLimit = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", s.GetHealth)
		r.Get("/openapi.yaml", s.GetOpenAPI)

		r.With(generateLimit).Post("/generate-stream", s.GenerateStream)
		r.With(generateLimit).Post("/generate", s.Generate)

		r.Get("/itineraries", s.ListItineraries)
		r.Get("/itinerary/{id}", s.GetItinerary)
		r.Get("/itinerary/{id}/export", s.GetExport)

		r.Post("/stops/reorder", s.ReorderStops)
		r.Patch("/stops/{stopId}", s.UpdateStop)
		r.Delete("/stops/{stopId}", s.DeleteStop)
	})
}
