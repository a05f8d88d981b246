package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/tripplanner/backend/internal/generation"
	"github.com/tripplanner/backend/internal/preview"
)

// maxEventBytes bounds one event frame. Chunk events carry the whole
// accumulated text, so frames grow with the document.
const maxEventBytes = 4 << 20

// ErrStreamTruncated is returned when the stream ends without a complete or
// error event.
var ErrStreamTruncated = errors.New("client: stream ended before a terminal event")

// RenderFunc receives preview snapshots while a generation streams.
type RenderFunc func(preview.Snapshot)

// GenerateStream runs a streaming generation.
//
// Frames are read on a separate goroutine. Chunk snapshots supersede each
// other: when render is slower than the server, only the newest pending
// text is previewed and handed to render, and older ones are dropped.
// The first complete or error event ends the call and nothing is read after
// it. A complete event yields the result; an error event yields a
// *StreamError. render may be nil.
func (c *Client) GenerateStream(ctx context.Context, prompt string, days int, render RenderFunc) (GenerateResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/generate-stream", map[string]any{"prompt": prompt, "days": days}, "text/event-stream")
	if err != nil {
		return GenerateResult{}, fmt.Errorf("client.GenerateStream: %w", err)
	}

	var pending latest
	done := make(chan outcome, 1)
	go func() {
		defer resp.Body.Close()
		done <- readStream(resp.Body, pending.put)
	}()

	var tracker preview.Tracker
	for {
		select {
		case <-pending.ready():
			text, ok := pending.take()
			if !ok {
				continue
			}
			if snap, ok := tracker.Observe(text); ok && render != nil {
				render(snap)
			}
		case out := <-done:
			if ctx.Err() != nil {
				return GenerateResult{}, fmt.Errorf("client.GenerateStream: %w", ctx.Err())
			}
			if out.err != nil {
				return GenerateResult{}, fmt.Errorf("client.GenerateStream: %w", out.err)
			}
			return out.result, nil
		case <-ctx.Done():
			// The request context aborts the body read, so the reader exits.
			<-done
			return GenerateResult{}, fmt.Errorf("client.GenerateStream: %w", ctx.Err())
		}
	}
}

type outcome struct {
	result GenerateResult
	err    error
}

// readStream parses "data: <json>" frames until a terminal event or EOF.
// Each chunk's text is handed to onChunk.
func readStream(r io.Reader, onChunk func(string)) outcome {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventBytes)

	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if line != "" {
			// Multi-line data fields are joined with newlines; other fields are ignored.
			if v, ok := strings.CutPrefix(line, "data:"); ok {
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimPrefix(v, " "))
			}
			continue
		}
		if data.Len() == 0 {
			continue
		}

		var ev generation.Event
		err := json.Unmarshal([]byte(data.String()), &ev)
		data.Reset()
		if err != nil {
			return outcome{err: fmt.Errorf("decode event: %w", err)}
		}

		switch ev.Type {
		case generation.EventChunk:
			onChunk(ev.Content)
		case generation.EventComplete:
			res := GenerateResult{ID: ev.ID}
			if ev.Data != nil {
				res.Title, res.Days = ev.Data.Title, ev.Data.Days
			}
			return outcome{result: res}
		case generation.EventError:
			return outcome{err: &StreamError{Message: ev.Error, Details: ev.Details}}
		}
	}
	if err := sc.Err(); err != nil {
		return outcome{err: err}
	}
	return outcome{err: ErrStreamTruncated}
}

// latest is a one-slot mailbox holding the newest undelivered chunk text.
type latest struct {
	once   sync.Once
	mu     sync.Mutex
	text   string
	has    bool
	notify chan struct{}
}

func (l *latest) init() {
	l.once.Do(func() { l.notify = make(chan struct{}, 1) })
}

func (l *latest) ready() <-chan struct{} {
	l.init()
	return l.notify
}

// put replaces any pending text.
func (l *latest) put(text string) {
	l.init()
	l.mu.Lock()
	l.text, l.has = text, true
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *latest) take() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	text, ok := l.text, l.has
	l.text, l.has = "", false
	return text, ok
}
