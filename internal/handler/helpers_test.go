package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/generation"
	"github.com/tripplanner/backend/internal/handler"
)

// ---- mock ItineraryServicer ------------------------------------------------

// mockItineraryServicer is a test double for handler.ItineraryServicer.
// Set only the method fields your test needs.
type mockItineraryServicer struct {
	getByID      func(ctx context.Context, id uuid.UUID) (domain.Itinerary, error)
	list         func(ctx context.Context, ownerID string, p domain.PaginationParams) ([]domain.Summary, int64, error)
	updateStop   func(ctx context.Context, id uuid.UUID, stopID string, patch domain.StopPatch, expectVersion int) (domain.Itinerary, error)
	deleteStop   func(ctx context.Context, id uuid.UUID, stopID string, expectVersion int) (domain.Itinerary, error)
	reorderStops func(ctx context.Context, id uuid.UUID, orderings []domain.DayOrdering, expectVersion int) (domain.Itinerary, error)
}

func (m *mockItineraryServicer) GetByID(ctx context.Context, id uuid.UUID) (domain.Itinerary, error) {
	return m.getByID(ctx, id)
}
func (m *mockItineraryServicer) List(ctx context.Context, ownerID string, p domain.PaginationParams) ([]domain.Summary, int64, error) {
	return m.list(ctx, ownerID, p)
}
func (m *mockItineraryServicer) UpdateStop(ctx context.Context, id uuid.UUID, stopID string, patch domain.StopPatch, expectVersion int) (domain.Itinerary, error) {
	return m.updateStop(ctx, id, stopID, patch, expectVersion)
}
func (m *mockItineraryServicer) DeleteStop(ctx context.Context, id uuid.UUID, stopID string, expectVersion int) (domain.Itinerary, error) {
	return m.deleteStop(ctx, id, stopID, expectVersion)
}
func (m *mockItineraryServicer) ReorderStops(ctx context.Context, id uuid.UUID, orderings []domain.DayOrdering, expectVersion int) (domain.Itinerary, error) {
	return m.reorderStops(ctx, id, orderings, expectVersion)
}

// compile-time check: mockItineraryServicer must satisfy handler.ItineraryServicer.
var _ handler.ItineraryServicer = (*mockItineraryServicer)(nil)

// ---- mock Generator --------------------------------------------------------

type mockGenerator struct {
	stream   func(ctx context.Context, owner domain.Owner, req generation.Request, emit func(generation.Event) error) error
	generate func(ctx context.Context, owner domain.Owner, req generation.Request) (generation.Result, error)
}

func (m *mockGenerator) Stream(ctx context.Context, owner domain.Owner, req generation.Request, emit func(generation.Event) error) error {
	return m.stream(ctx, owner, req, emit)
}
func (m *mockGenerator) Generate(ctx context.Context, owner domain.Owner, req generation.Request) (generation.Result, error) {
	return m.generate(ctx, owner, req)
}

var _ handler.Generator = (*mockGenerator)(nil)

// ---- mock ExportServicer ---------------------------------------------------

type mockExportServicer struct {
	export func(ctx context.Context, id uuid.UUID) ([]domain.ExportRow, error)
}

func (m *mockExportServicer) Export(ctx context.Context, id uuid.UUID) ([]domain.ExportRow, error) {
	return m.export(ctx, id)
}

var _ handler.ExportServicer = (*mockExportServicer)(nil)

// ---- helpers ---------------------------------------------------------------

// newHTTPHandler wires a Server with the given mocks behind a chi router.
// Any mock may be nil when the test does not reach it.
func newHTTPHandler(items handler.ItineraryServicer, gen handler.Generator, export handler.ExportServicer) http.Handler {
	srv := handler.NewServer(items, gen, export, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	srv.Register(r, nil)
	return r
}

// jsonBody encodes v as a JSON request body.
func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// decodeError decodes an error envelope from the response body.
func decodeError(t *testing.T, body io.Reader) handler.ErrorDetail {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Error
}

func itineraryFixture() domain.Itinerary {
	return domain.Itinerary{
		ID:      uuid.New(),
		OwnerID: "guest-1",
		Title:   "京都賞楓三日遊",
		Days: []domain.Day{
			{ID: "d1", Number: 1, Theme: "東山", Stops: []domain.Stop{
				{ID: "s1", Name: "清水寺", Description: "紅葉", DurationMinutes: 90, OrderIndex: 0},
				{ID: "s2", Name: "八坂神社", Description: "夜楓", DurationMinutes: 45, OrderIndex: 1},
			}},
		},
		Config:  domain.Config{GeneratedWith: "京都賞楓", TotalDays: 1, IsStreamed: true},
		Version: 2,
	}
}
