package generation_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/generation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ---- fakes -----------------------------------------------------------------

// fakeProvider streams a fixed text in fixed-size pieces, honouring ctx.
type fakeProvider struct {
	text      string
	piece     int
	streamErr error
	complete  func(ctx context.Context, system, user string) (string, error)

	gotSystem, gotUser string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, system, user string) (string, error) {
	f.gotSystem, f.gotUser = system, user
	if f.complete != nil {
		return f.complete(ctx, system, user)
	}
	return f.text, nil
}

func (f *fakeProvider) Stream(ctx context.Context, system, user string) (<-chan string, <-chan error) {
	f.gotSystem, f.gotUser = system, user
	content := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(content)
		defer close(errs)
		piece := f.piece
		if piece <= 0 {
			piece = 16
		}
		for i := 0; i < len(f.text); i += piece {
			end := min(i+piece, len(f.text))
			select {
			case content <- f.text[i:end]:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if f.streamErr != nil {
			errs <- f.streamErr
		}
	}()
	return content, errs
}

var _ generation.Provider = (*fakeProvider)(nil)

// mockStore is a hand-written test double for generation.Store.
type mockStore struct {
	create func(ctx context.Context, owner domain.Owner, draft domain.Itinerary) (domain.Itinerary, error)
}

func (m *mockStore) Create(ctx context.Context, owner domain.Owner, draft domain.Itinerary) (domain.Itinerary, error) {
	return m.create(ctx, owner, draft)
}

var _ generation.Store = (*mockStore)(nil)

// ---- helpers ---------------------------------------------------------------

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// itineraryJSON builds a valid document with n days of two stops each.
func itineraryJSON(n int) string {
	days := make([]string, n)
	for i := range days {
		days[i] = fmt.Sprintf(`{"day":%d,"theme":"第%d天","stops":[`+
			`{"name":"景點A","description":"說明","duration_minutes":90},`+
			`{"name":"景點B","description":"說明","duration_minutes":60}]}`, i+1, i+1)
	}
	return `{"title":"京都五日遊","days":[` + strings.Join(days, ",") + `]}`
}

func savingStore(saved *domain.Itinerary) *mockStore {
	return &mockStore{create: func(_ context.Context, owner domain.Owner, it domain.Itinerary) (domain.Itinerary, error) {
		it.ID = uuid.New()
		it.OwnerID = owner.ID
		it.Version = 1
		*saved = it
		return it, nil
	}}
}

func newService(t *testing.T, p generation.Provider, store generation.Store, policy generation.PersistencePolicy) *generation.Service {
	t.Helper()
	prompts, err := generation.LoadPrompts()
	require.NoError(t, err)
	return generation.NewService(p, prompts, store, policy, discardLogger())
}

// collect returns an emit func that records events.
func collect(events *[]generation.Event) func(generation.Event) error {
	return func(e generation.Event) error {
		*events = append(*events, e)
		return nil
	}
}

// ---- Stream ----------------------------------------------------------------

func TestService_Stream_FiveDayKyoto(t *testing.T) {
	text := itineraryJSON(5)
	p := &fakeProvider{text: text, piece: 7}
	var saved domain.Itinerary
	svc := newService(t, p, savingStore(&saved), generation.PersistBestEffort)
	var events []generation.Event

	err := svc.Stream(context.Background(), domain.Owner{ID: "u1"},
		generation.Request{Prompt: "5-day Kyoto trip", Days: 5}, collect(&events))

	require.NoError(t, err)
	require.GreaterOrEqual(t, len(events), 2)

	chunks := events[:len(events)-1]
	for i, e := range chunks {
		require.Equal(t, generation.EventChunk, e.Type)
		if i > 0 {
			assert.True(t, strings.HasPrefix(e.Content, chunks[i-1].Content), "chunks grow")
			assert.Greater(t, len(e.Content), len(chunks[i-1].Content))
		}
	}
	assert.Equal(t, text, chunks[len(chunks)-1].Content)

	last := events[len(events)-1]
	require.Equal(t, generation.EventComplete, last.Type)
	require.NotNil(t, last.ID)
	assert.Equal(t, saved.ID, *last.ID)
	require.Len(t, last.Data.Days, 5)
	assert.Equal(t, saved.Days, last.Data.Days)

	assert.Contains(t, p.gotSystem, "5 天")
	assert.Contains(t, p.gotUser, "5-day Kyoto trip")
}

func TestService_Stream_AssignsIDsAndConfig(t *testing.T) {
	var saved domain.Itinerary
	svc := newService(t, &fakeProvider{text: itineraryJSON(2)}, savingStore(&saved), generation.PersistBestEffort)

	require.NoError(t, svc.Stream(context.Background(), domain.Owner{ID: "u1"},
		generation.Request{Prompt: "Kyoto", Days: 2}, func(generation.Event) error { return nil }))

	seen := map[string]bool{}
	for _, d := range saved.Days {
		require.NotEmpty(t, d.ID)
		assert.False(t, seen[d.ID])
		seen[d.ID] = true
		for i, s := range d.Stops {
			require.NotEmpty(t, s.ID)
			assert.False(t, seen[s.ID])
			seen[s.ID] = true
			assert.Equal(t, i, s.OrderIndex)
		}
	}
	assert.Equal(t, "Kyoto", saved.Config.GeneratedWith)
	assert.Equal(t, 2, saved.Config.TotalDays)
	assert.True(t, saved.Config.IsStreamed)
	assert.False(t, saved.Config.CreatedAt.IsZero())
	assert.Equal(t, "u1", saved.OwnerID)
}

func TestService_Stream_InvalidDocument(t *testing.T) {
	store := &mockStore{create: func(context.Context, domain.Owner, domain.Itinerary) (domain.Itinerary, error) {
		t.Fatal("store must not be called")
		return domain.Itinerary{}, nil
	}}
	svc := newService(t, &fakeProvider{text: `{"title":"t","days":[{"day":1,"stops":[{"name":"x"}]}]}`}, store, generation.PersistBestEffort)
	var events []generation.Event

	require.NoError(t, svc.Stream(context.Background(), domain.Owner{ID: "u1"},
		generation.Request{Prompt: "p", Days: 1}, collect(&events)))

	last := events[len(events)-1]
	assert.Equal(t, generation.EventError, last.Type)
	assert.Equal(t, generation.MsgValidationFailed, last.Error)
	assert.Contains(t, last.Details, "days[0].stops[0].description")
}

func TestService_Stream_TruncatedJSON(t *testing.T) {
	svc := newService(t, &fakeProvider{text: `{"title":"t","days":[`}, &mockStore{}, generation.PersistBestEffort)
	var events []generation.Event

	require.NoError(t, svc.Stream(context.Background(), domain.Owner{ID: "u1"},
		generation.Request{Prompt: "p", Days: 1}, collect(&events)))

	assert.Equal(t, generation.MsgValidationFailed, events[len(events)-1].Error)
}

func TestService_Stream_ProviderError(t *testing.T) {
	p := &fakeProvider{text: `{"title":`, streamErr: errors.New("upstream 500")}
	svc := newService(t, p, &mockStore{}, generation.PersistBestEffort)
	var events []generation.Event

	require.NoError(t, svc.Stream(context.Background(), domain.Owner{ID: "u1"},
		generation.Request{Prompt: "p", Days: 1}, collect(&events)))

	last := events[len(events)-1]
	assert.Equal(t, generation.EventError, last.Type)
	assert.Equal(t, generation.MsgGenerationFailed, last.Error)
	assert.Contains(t, last.Details, "upstream 500")
	for _, e := range events[:len(events)-1] {
		assert.Equal(t, generation.EventChunk, e.Type)
	}
}

func TestService_Stream_EmptyResponse(t *testing.T) {
	svc := newService(t, &fakeProvider{text: ""}, &mockStore{}, generation.PersistBestEffort)
	var events []generation.Event

	require.NoError(t, svc.Stream(context.Background(), domain.Owner{ID: "u1"},
		generation.Request{Prompt: "p", Days: 1}, collect(&events)))

	require.Len(t, events, 1)
	assert.Equal(t, generation.MsgGenerationFailed, events[0].Error)
	assert.Contains(t, events[0].Details, "empty response")
}

func TestService_Stream_PersistenceBestEffort(t *testing.T) {
	store := &mockStore{create: func(context.Context, domain.Owner, domain.Itinerary) (domain.Itinerary, error) {
		return domain.Itinerary{}, errors.New("db down")
	}}
	svc := newService(t, &fakeProvider{text: itineraryJSON(1)}, store, generation.PersistBestEffort)
	var events []generation.Event

	require.NoError(t, svc.Stream(context.Background(), domain.Owner{ID: "u1"},
		generation.Request{Prompt: "p", Days: 1}, collect(&events)))

	last := events[len(events)-1]
	assert.Equal(t, generation.EventComplete, last.Type)
	assert.Nil(t, last.ID)
	require.Len(t, last.Data.Days, 1)
	assert.NotEmpty(t, last.Data.Days[0].Stops[0].ID, "ids assigned even when not saved")
}

func TestService_Stream_PersistenceRequired(t *testing.T) {
	store := &mockStore{create: func(context.Context, domain.Owner, domain.Itinerary) (domain.Itinerary, error) {
		return domain.Itinerary{}, errors.New("db down")
	}}
	svc := newService(t, &fakeProvider{text: itineraryJSON(1)}, store, generation.PersistRequired)
	var events []generation.Event

	require.NoError(t, svc.Stream(context.Background(), domain.Owner{ID: "u1"},
		generation.Request{Prompt: "p", Days: 1}, collect(&events)))

	last := events[len(events)-1]
	assert.Equal(t, generation.EventError, last.Type)
	assert.Equal(t, generation.MsgPersistenceFailed, last.Error)
}

func TestService_Stream_RejectsBadRequestBeforeEmitting(t *testing.T) {
	svc := newService(t, &fakeProvider{}, &mockStore{}, generation.PersistBestEffort)

	for _, req := range []generation.Request{
		{Prompt: "  ", Days: 3},
		{Prompt: "p", Days: 0},
		{Prompt: "p", Days: 15},
	} {
		err := svc.Stream(context.Background(), domain.Owner{ID: "u1"}, req, func(generation.Event) error {
			t.Fatal("nothing may be emitted")
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestService_Stream_ConsumerGoneStopsProvider(t *testing.T) {
	p := &fakeProvider{text: itineraryJSON(5), piece: 1}
	svc := newService(t, p, &mockStore{}, generation.PersistBestEffort)
	gone := errors.New("client disconnected")
	n := 0

	err := svc.Stream(context.Background(), domain.Owner{ID: "u1"}, generation.Request{Prompt: "p", Days: 5},
		func(generation.Event) error {
			n++
			if n == 3 {
				return gone
			}
			return nil
		})

	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 3, n, "no event after the consumer failed")
	// goleak in TestMain verifies the provider goroutine exited.
}

// ---- Generate --------------------------------------------------------------

func TestService_Generate_OK(t *testing.T) {
	var saved domain.Itinerary
	svc := newService(t, &fakeProvider{text: itineraryJSON(3)}, savingStore(&saved), generation.PersistBestEffort)

	res, err := svc.Generate(context.Background(), domain.Owner{ID: "u1"}, generation.Request{Prompt: "p", Days: 3})

	require.NoError(t, err)
	require.NotNil(t, res.ID)
	assert.Equal(t, saved.ID, *res.ID)
	assert.Len(t, res.Itinerary.Days, 3)
	assert.False(t, saved.Config.IsStreamed)
}

func TestService_Generate_ProviderFailure(t *testing.T) {
	p := &fakeProvider{complete: func(context.Context, string, string) (string, error) {
		return "", errors.New("timeout")
	}}
	svc := newService(t, p, &mockStore{}, generation.PersistBestEffort)

	_, err := svc.Generate(context.Background(), domain.Owner{ID: "u1"}, generation.Request{Prompt: "p", Days: 1})

	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestService_Generate_InvalidOutputIsProviderError(t *testing.T) {
	svc := newService(t, &fakeProvider{text: `{"title":1}`}, &mockStore{}, generation.PersistBestEffort)

	_, err := svc.Generate(context.Background(), domain.Owner{ID: "u1"}, generation.Request{Prompt: "p", Days: 1})

	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.NotErrorIs(t, err, domain.ErrValidation)
}

func TestService_Generate_PersistenceRequired(t *testing.T) {
	store := &mockStore{create: func(context.Context, domain.Owner, domain.Itinerary) (domain.Itinerary, error) {
		return domain.Itinerary{}, errors.New("db down")
	}}
	svc := newService(t, &fakeProvider{text: itineraryJSON(1)}, store, generation.PersistRequired)

	_, err := svc.Generate(context.Background(), domain.Owner{ID: "u1"}, generation.Request{Prompt: "p", Days: 1})

	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestParsePersistencePolicy(t *testing.T) {
	p, err := generation.ParsePersistencePolicy("")
	require.NoError(t, err)
	assert.Equal(t, generation.PersistBestEffort, p)

	p, err = generation.ParsePersistencePolicy("required")
	require.NoError(t, err)
	assert.Equal(t, generation.PersistRequired, p)

	_, err = generation.ParsePersistencePolicy("sometimes")
	assert.Error(t, err)
}

// ---- Event JSON ------------------------------------------------------------

func TestEvent_MarshalShapes(t *testing.T) {
	id := uuid.MustParse("7f8c2b9e-4a51-4c3e-9d0a-1b2c3d4e5f60")
	tests := []struct {
		name string
		ev   generation.Event
		want string
	}{
		{"chunk", generation.Event{Type: generation.EventChunk, Content: `{"ti`}, `{"type":"chunk","content":"{\"ti"}`},
		{"complete with id", generation.Event{Type: generation.EventComplete, Data: &generation.Payload{Title: "t", Days: []domain.Day{}}, ID: &id},
			`{"type":"complete","data":{"title":"t","days":[]},"id":"7f8c2b9e-4a51-4c3e-9d0a-1b2c3d4e5f60"}`},
		{"complete null id", generation.Event{Type: generation.EventComplete, Data: &generation.Payload{Title: "t", Days: []domain.Day{}}},
			`{"type":"complete","data":{"title":"t","days":[]},"id":null}`},
		{"error", generation.Event{Type: generation.EventError, Error: "生成失敗", Details: "boom"}, `{"type":"error","error":"生成失敗","details":"boom"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(tc.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(b))

			var back generation.Event
			require.NoError(t, json.Unmarshal(b, &back))
			assert.Equal(t, tc.ev.Type, back.Type)
			assert.Equal(t, tc.ev.ID, back.ID)
		})
	}
}

func TestEvent_UnknownType(t *testing.T) {
	var ev generation.Event
	assert.Error(t, json.Unmarshal([]byte(`{"type":"progress"}`), &ev))
	_, err := json.Marshal(generation.Event{Type: "progress"})
	assert.Error(t, err)
}
