package preview_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/preview"
)

const full = `{"title":"京都賞楓","days":[{"day":1,"stops":[{"name":"清水寺","description":"...","duration_minutes":90}]}]}`

// ---- Preview ---------------------------------------------------------------

func TestPreview_FullTextIsExact(t *testing.T) {
	got, ok := preview.Preview(full)

	require.True(t, ok)
	want := preview.Snapshot{
		Title: "京都賞楓",
		Days: []domain.Day{{Number: 1, Stops: []domain.Stop{
			{Name: "清水寺", Description: "...", DurationMinutes: 90},
		}}},
		Complete:   true,
		DaysParsed: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Preview mismatch (-want +got):\n%s", diff)
	}
}

func TestPreview_TruncatedMidStringKeepsTitle(t *testing.T) {
	got, ok := preview.Preview(`{"title":"京都賞楓","days":[{"day":1,"stops":[{"name":"清`)

	require.True(t, ok)
	assert.Equal(t, "京都賞楓", got.Title)
	assert.NotNil(t, got.Days)
	assert.Empty(t, got.Days)
	assert.False(t, got.Complete)
	assert.False(t, got.DaysParsed)
}

func TestPreview_RepairsOpenContainers(t *testing.T) {
	got, ok := preview.Preview(`{"title":"京都賞楓","days":[{"day":1,"stops":[{"name":"清水寺","description":"...","duration_minutes":90}`)

	require.True(t, ok)
	assert.False(t, got.Complete)
	assert.True(t, got.DaysParsed)
	require.Len(t, got.Days, 1)
	require.Len(t, got.Days[0].Stops, 1)
	assert.Equal(t, "清水寺", got.Days[0].Stops[0].Name)
}

func TestPreview_DropsTrailingComma(t *testing.T) {
	got, ok := preview.Preview(`{"title":"t","days":[{"day":1,"stops":[]},` + "\n  ")

	require.True(t, ok)
	require.Len(t, got.Days, 1)
	assert.Equal(t, 1, got.Days[0].Number)
}

func TestPreview_DanglingKeyFallsBackToTitle(t *testing.T) {
	for _, text := range []string{
		`{"title":"t","days":[{"day":1,"stops":[]},{"day"`,
		`{"title":"t","days":[{"day":1,"stops":[]},{"day":`,
		`{"title":"t","days":[{"day":1,"stops":[]},{"day": `,
	} {
		got, ok := preview.Preview(text)

		require.True(t, ok, text)
		assert.Equal(t, "t", got.Title, text)
		assert.Empty(t, got.Days, text)
	}
}

func TestPreview_EscapedQuotesDoNotConfuseScanner(t *testing.T) {
	got, ok := preview.Preview(`{"title":"say \"hi\" [now]","days":[{"day":1,"stops":[{"name":"a}b","description":"c\\","duration_minutes":5}`)

	require.True(t, ok)
	assert.Equal(t, `say "hi" [now]`, got.Title)
	require.Len(t, got.Days, 1)
	assert.Equal(t, "a}b", got.Days[0].Stops[0].Name)
	assert.Equal(t, `c\`, got.Days[0].Stops[0].Description)
}

func TestPreview_NestedTitleIsIgnored(t *testing.T) {
	got, ok := preview.Preview(`{"days":[{"day":1,"stops":[{"title":"wrong","name":"`)

	assert.False(t, ok)
	assert.Empty(t, got.Title)
}

func TestPreview_NothingDerivable(t *testing.T) {
	for _, text := range []string{"", "   ", "{", `{"ti`, `{"title":"unterminated`, `]]`} {
		_, ok := preview.Preview(text)
		assert.False(t, ok, "%q", text)
	}
}

func TestPreview_IsIdempotent(t *testing.T) {
	text := full[:len(full)/2]
	a, okA := preview.Preview(text)
	b, okB := preview.Preview(text)

	assert.Equal(t, okA, okB)
	assert.Empty(t, cmp.Diff(a, b))
}

func TestPreview_EveryPrefixIsSafe(t *testing.T) {
	for i := 0; i <= len(full); i++ {
		assert.NotPanics(t, func() { preview.Preview(full[:i]) })
	}
}

// ---- Tracker ---------------------------------------------------------------

func TestTracker_KeepsParsedDaysAcrossUnrepairableChunk(t *testing.T) {
	var tr preview.Tracker

	_, ok := tr.Observe(`{"ti`)
	assert.False(t, ok)

	first, ok := tr.Observe(`{"title":"t","days":[{"day":1,"stops":[]}`)
	require.True(t, ok)
	require.Len(t, first.Days, 1)

	second, ok := tr.Observe(`{"title":"t","days":[{"day":1,"stops":[]},{"day":2,"stops":[{"name":"hal`)
	require.True(t, ok)
	assert.Len(t, second.Days, 1, "previous days retained")

	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, second, last)
}

func TestTracker_ReturnsLastWhenNothingDerivable(t *testing.T) {
	var tr preview.Tracker
	_, _ = tr.Observe(`{"title":"t","days":[]}`)

	got, ok := tr.Observe(``)

	require.True(t, ok)
	assert.Equal(t, "t", got.Title)

	tr.Reset()
	_, ok = tr.Last()
	assert.False(t, ok)
}
