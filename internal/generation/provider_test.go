package generation_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripplanner/backend/internal/generation"
)

// fakeOpenAI serves /chat/completions. Streaming requests receive one SSE
// chunk per piece followed by [DONE].
func fakeOpenAI(t *testing.T, pieces []string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		if gotBody != nil {
			*gotBody = req
		}

		if stream, _ := req["stream"].(bool); !stream {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",`+
				`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%q}}]}`,
				strings.Join(pieces, ""))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, p := range pieces {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-4o-mini\","+
				"\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", p)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProvider_Stream(t *testing.T) {
	var body map[string]any
	srv := fakeOpenAI(t, []string{`{"title":`, `"京都"`, `,"days":[]}`}, &body)
	p, err := generation.NewOpenAIProvider("sk-test", "", option.WithBaseURL(srv.URL), option.WithHTTPClient(srv.Client()), option.WithMaxRetries(0))
	require.NoError(t, err)

	content, errs := p.Stream(context.Background(), "sys", "user")
	var got strings.Builder
	for c := range content {
		got.WriteString(c)
	}

	require.NoError(t, <-errs)
	assert.Equal(t, `{"title":"京都","days":[]}`, got.String())
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.InDelta(t, 0.7, body["temperature"], 1e-9)
	format, _ := body["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAIProvider_Complete(t *testing.T) {
	srv := fakeOpenAI(t, []string{`{"title":"t","days":[]}`}, nil)
	p, err := generation.NewOpenAIProvider("sk-test", "gpt-4o", option.WithBaseURL(srv.URL), option.WithHTTPClient(srv.Client()), option.WithMaxRetries(0))
	require.NoError(t, err)

	text, err := p.Complete(context.Background(), "sys", "user")

	require.NoError(t, err)
	assert.Equal(t, `{"title":"t","days":[]}`, text)
	assert.Equal(t, "gpt-4o", p.Name())
}

func TestOpenAIProvider_StreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	t.Cleanup(srv.Close)
	p, err := generation.NewOpenAIProvider("sk-test", "", option.WithBaseURL(srv.URL), option.WithHTTPClient(srv.Client()), option.WithMaxRetries(0))
	require.NoError(t, err)

	content, errs := p.Stream(context.Background(), "sys", "user")
	for range content {
	}

	assert.Error(t, <-errs)
}

// fakeGemini serves the generateContent endpoints. Streaming requests
// receive one SSE chunk per piece.
func fakeGemini(t *testing.T, pieces []string, got *http.Request, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if got != nil {
			*got = *r.Clone(context.Background())
		}
		if gotBody != nil {
			_ = json.Unmarshal(body, gotBody)
		}

		candidate := func(text string) string {
			return fmt.Sprintf(`{"candidates":[{"index":0,"content":{"role":"model","parts":[{"text":%q}]}}]}`, text)
		}
		switch {
		case strings.HasSuffix(r.URL.Path, ":streamGenerateContent"):
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for _, p := range pieces {
				fmt.Fprintf(w, "data: %s\n\n", candidate(p))
				flusher.Flush()
			}
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, candidate(strings.Join(pieces, "")))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiProvider_Stream(t *testing.T) {
	var req http.Request
	var body map[string]any
	srv := fakeGemini(t, []string{`{"title":`, `"京都"`, `,"days":[]}`}, &req, &body)
	p, err := generation.NewGeminiProvider(context.Background(), "g-test", "", generation.WithGeminiBaseURL(srv.URL))
	require.NoError(t, err)

	content, errs := p.Stream(context.Background(), "sys", "user")
	var got strings.Builder
	for c := range content {
		got.WriteString(c)
	}

	require.NoError(t, <-errs)
	assert.Equal(t, `{"title":"京都","days":[]}`, got.String())
	assert.Contains(t, req.URL.Path, "models/"+generation.DefaultGeminiModel+":streamGenerateContent")
	assert.Equal(t, "g-test", req.Header.Get("x-goog-api-key"))
	cfg, _ := body["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.InDelta(t, 0.7, cfg["temperature"], 1e-6)
	assert.Contains(t, fmt.Sprint(body["systemInstruction"]), "sys")
	assert.Contains(t, fmt.Sprint(body["contents"]), "user")
}

func TestGeminiProvider_Complete(t *testing.T) {
	srv := fakeGemini(t, []string{`{"title":"t","days":[]}`}, nil, nil)
	p, err := generation.NewGeminiProvider(context.Background(), "g-test", "gemini-2.5-pro", generation.WithGeminiBaseURL(srv.URL))
	require.NoError(t, err)

	text, err := p.Complete(context.Background(), "sys", "user")

	require.NoError(t, err)
	assert.Equal(t, `{"title":"t","days":[]}`, text)
	assert.Equal(t, "gemini-2.5-pro", p.Name())
}

func TestGeminiProvider_StreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	t.Cleanup(srv.Close)
	p, err := generation.NewGeminiProvider(context.Background(), "g-test", "", generation.WithGeminiBaseURL(srv.URL))
	require.NoError(t, err)

	content, errs := p.Stream(context.Background(), "sys", "user")
	for range content {
	}

	err = <-errs
	require.Error(t, err)
	assert.ErrorContains(t, err, "gemini")
}

func TestNewProviders_RequireAPIKey(t *testing.T) {
	_, err := generation.NewOpenAIProvider("", "")
	assert.Error(t, err)
	_, err = generation.NewGeminiProvider(context.Background(), "", "")
	assert.Error(t, err)
}

// ---- Prompts ---------------------------------------------------------------

func TestPrompts_Render(t *testing.T) {
	p, err := generation.LoadPrompts()
	require.NoError(t, err)

	system, user, err := p.Render(generation.Request{Prompt: "京都賞楓", Days: 3})

	require.NoError(t, err)
	assert.Contains(t, system, "規劃 3 天")
	assert.Contains(t, system, `"duration_minutes"`)
	assert.Equal(t, "請為以下需求創建旅遊行程：京都賞楓", user)
}

func TestParsePrompts_Errors(t *testing.T) {
	_, err := generation.ParsePrompts([]byte("itinerary: ["))
	assert.Error(t, err)

	_, err = generation.ParsePrompts([]byte("itinerary:\n  system: hi\n"))
	assert.ErrorContains(t, err, "required")

	_, err = generation.ParsePrompts([]byte("itinerary:\n  system: \"{{.Days\"\n  user: u\n"))
	assert.ErrorContains(t, err, "system")
}
