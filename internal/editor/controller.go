// Package editor holds the client-side state of an itinerary being edited:
// a working copy that edits are applied to optimistically, and the calls
// that persist each edit through a Store.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/domain"
)

// DefaultErrorTTL is how long a failure message stays visible.
const DefaultErrorTTL = 3 * time.Second

// User-facing messages surfaced through Message.
const (
	MsgKeepOneStop   = "每天至少需要一個景點"
	MsgUpdateFailed  = "更新失敗"
	MsgDeleteFailed  = "刪除失敗"
	MsgReorderFailed = "排序失敗"
	MsgConfirmDelete = "確定要刪除這個景點嗎？"
)

var (
	// ErrNotConfirmed is returned when a delete was not confirmed.
	ErrNotConfirmed = errors.New("editor: delete not confirmed")
	// ErrBusy is returned when the stop already has a request in flight.
	ErrBusy = errors.New("editor: stop has a request in flight")
	// ErrNoDrag is returned by DragOver and Drop outside a drag gesture.
	ErrNoDrag = errors.New("editor: no drag in progress")
)

// Store persists stop edits and returns the itinerary's new version.
// *client.Client satisfies it.
type Store interface {
	UpdateStop(ctx context.Context, itineraryID uuid.UUID, stopID string, patch domain.StopPatch, version int) (int, error)
	DeleteStop(ctx context.Context, itineraryID uuid.UUID, stopID string, version int) (int, error)
	ReorderStops(ctx context.Context, itineraryID uuid.UUID, orderings []domain.DayOrdering, version int) (int, error)
}

// ConfirmFunc asks the user to confirm deleting stop.
type ConfirmFunc func(stop domain.Stop) bool

// Option configures a Controller.
type Option func(*Controller)

// WithErrorTTL sets how long a failure message is kept.
func WithErrorTTL(d time.Duration) Option {
	return func(c *Controller) { c.errorTTL = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the logger used for failed requests.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller coordinates edits to one itinerary. Edits to different stops
// may be issued while earlier ones are still pending: each is applied to the
// working copy at once, and the store calls are sent one at a time, each
// carrying the version returned by the previous one. A stop with a pending
// request is busy and refuses further edits until it settles.
// Methods are safe for concurrent use.
type Controller struct {
	store    Store
	errorTTL time.Duration
	now      func() time.Time
	log      *slog.Logger

	// sem admits one store call at a time.
	sem chan struct{}

	mu      sync.Mutex
	working domain.Itinerary
	busy    map[string]bool
	message string
	msgAt   time.Time

	// drag state, set between BeginDrag and Drop or CancelDrag
	dragging string
	snapshot *domain.Itinerary
	crossed  bool
}

// New returns a Controller editing a copy of it.
func New(store Store, it domain.Itinerary, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		errorTTL: DefaultErrorTTL,
		now:      time.Now,
		log:      slog.Default(),
		working:  it.Clone(),
		busy:     make(map[string]bool),
		sem:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Itinerary returns a copy of the working copy.
func (c *Controller) Itinerary() domain.Itinerary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.working.Clone()
}

// Replace discards the working copy in favour of it, e.g. after reloading
// following a conflict. Any drag in progress is abandoned.
func (c *Controller) Replace(it domain.Itinerary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.working = it.Clone()
	c.dragging, c.snapshot, c.crossed = "", nil, false
}

// Busy reports whether stopID has a request in flight.
func (c *Controller) Busy(stopID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy[stopID]
}

// Message returns the current failure message, or "" once it has been shown
// for longer than the error TTL.
func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.message != "" && c.now().Sub(c.msgAt) >= c.errorTTL {
		c.message = ""
	}
	return c.message
}

// send waits its turn, then runs call with the latest known version and
// adopts the version it returns. c.mu must not be held.
func (c *Controller) send(ctx context.Context, call func(id uuid.UUID, version int) (int, error)) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.sem }()

	c.mu.Lock()
	id, version := c.working.ID, c.working.Version
	c.mu.Unlock()

	v, err := call(id, version)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.working.Version = v
	c.mu.Unlock()
	return nil
}

// caller holds c.mu.
func (c *Controller) setMessage(msg string) {
	c.message, c.msgAt = msg, c.now()
}

// caller holds c.mu.
func (c *Controller) clearMessage() {
	c.message = ""
}

// EditStop applies patch to the working copy at once, then persists it.
// A failed request leaves the edit in place and sets the failure message.
func (c *Controller) EditStop(ctx context.Context, stopID string, patch domain.StopPatch) error {
	if patch.Empty() {
		return fmt.Errorf("editor.Controller.EditStop: %w: nothing to update", domain.ErrValidation)
	}

	c.mu.Lock()
	if c.busy[stopID] {
		c.mu.Unlock()
		return fmt.Errorf("editor.Controller.EditStop: %w", ErrBusy)
	}
	if err := c.working.ApplyStopPatch(stopID, patch); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("editor.Controller.EditStop: %w", err)
	}
	c.busy[stopID] = true
	c.clearMessage()
	c.mu.Unlock()

	err := c.send(ctx, func(id uuid.UUID, version int) (int, error) {
		return c.store.UpdateStop(ctx, id, stopID, patch, version)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.busy, stopID)
	if err != nil {
		c.log.WarnContext(ctx, "stop update failed", "itinerary_id", c.working.ID, "stop_id", stopID, "error", err)
		c.setMessage(MsgUpdateFailed)
		return fmt.Errorf("editor.Controller.EditStop: %w", err)
	}
	return nil
}

// DeleteStop removes a stop once the store has deleted it.
//
// The last stop of a day is refused locally with domain.ErrInvariant before
// confirm is asked. A nil confirm, or one that answers false, yields
// ErrNotConfirmed and changes nothing. A failed request leaves the working
// copy unchanged and sets the failure message.
func (c *Controller) DeleteStop(ctx context.Context, stopID string, confirm ConfirmFunc) error {
	c.mu.Lock()
	if c.busy[stopID] {
		c.mu.Unlock()
		return fmt.Errorf("editor.Controller.DeleteStop: %w", ErrBusy)
	}
	if err := c.working.CanRemoveStop(stopID); err != nil {
		if errors.Is(err, domain.ErrInvariant) {
			c.setMessage(MsgKeepOneStop)
		}
		c.mu.Unlock()
		return fmt.Errorf("editor.Controller.DeleteStop: %w", err)
	}
	d, s, _ := c.working.FindStop(stopID)
	stop := c.working.Days[d].Stops[s]
	c.mu.Unlock()

	// Asked without the lock; confirm may block on the user.
	if confirm == nil || !confirm(stop) {
		return fmt.Errorf("editor.Controller.DeleteStop: %w", ErrNotConfirmed)
	}

	c.mu.Lock()
	if c.busy[stopID] {
		c.mu.Unlock()
		return fmt.Errorf("editor.Controller.DeleteStop: %w", ErrBusy)
	}
	c.busy[stopID] = true
	c.clearMessage()
	c.mu.Unlock()

	err := c.send(ctx, func(id uuid.UUID, version int) (int, error) {
		return c.store.DeleteStop(ctx, id, stopID, version)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.busy, stopID)
	if err != nil {
		c.log.WarnContext(ctx, "stop delete failed", "itinerary_id", c.working.ID, "stop_id", stopID, "error", err)
		if errors.Is(err, domain.ErrInvariant) {
			c.setMessage(MsgKeepOneStop)
		} else {
			c.setMessage(MsgDeleteFailed)
		}
		return fmt.Errorf("editor.Controller.DeleteStop: %w", err)
	}
	// The stop may already be gone if the working copy was replaced meanwhile.
	_ = c.working.RemoveStop(stopID)
	return nil
}
