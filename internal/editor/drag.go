package editor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/domain"
)

// BeginDrag starts a drag gesture for stopID and snapshots the working copy
// so that Drop can restore it if persisting fails.
func (c *Controller) BeginDrag(stopID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, _, ok := c.working.FindStop(stopID); !ok {
		return fmt.Errorf("editor.Controller.BeginDrag: stop %s: %w", stopID, domain.ErrNotFound)
	}
	snap := c.working.Clone()
	c.dragging, c.snapshot = stopID, &snap
	return nil
}

// DragOver speculatively moves the dragged stop into the day holding
// overStopID, at that stop's position. It does nothing when both stops are
// in the same day, when either is unknown, or when the source day would be
// left empty. It reports whether the working copy changed.
func (c *Controller) DragOver(overStopID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return false, fmt.Errorf("editor.Controller.DragOver: %w", ErrNoDrag)
	}

	from, fromIdx, ok := c.working.FindStop(c.dragging)
	if !ok {
		return false, nil
	}
	to, toIdx, ok := c.working.FindStop(overStopID)
	if !ok || from == to || len(c.working.Days[from].Stops) <= 1 {
		return false, nil
	}

	days := c.working.Days
	moved := days[from].Stops[fromIdx]
	days[from].Stops = append(days[from].Stops[:fromIdx:fromIdx], days[from].Stops[fromIdx+1:]...)
	days[to].Stops = insertAt(days[to].Stops, toIdx, moved)
	c.crossed = true
	return true, nil
}

// Drop ends the gesture over overStopID and persists the resulting order.
//
// Dropping on an unknown stop cancels the gesture as CancelDrag does.
// Dropping on the dragged stop itself when it never left its day ends the
// gesture with no request. Otherwise a drop within one day moves the stop to
// the target's position, and the order of every day with an id is sent to
// the store in one call. If that call fails the working copy is restored to
// the snapshot taken by BeginDrag and the failure message is set.
func (c *Controller) Drop(ctx context.Context, overStopID string) error {
	c.mu.Lock()
	if c.snapshot == nil {
		c.mu.Unlock()
		return fmt.Errorf("editor.Controller.Drop: %w", ErrNoDrag)
	}
	active, snapshot, crossed := c.dragging, c.snapshot, c.crossed
	c.dragging, c.snapshot, c.crossed = "", nil, false

	from, fromIdx, okFrom := c.working.FindStop(active)
	to, toIdx, okTo := c.working.FindStop(overStopID)
	if !okFrom || !okTo || (overStopID == active && !crossed) {
		if !okFrom || !okTo {
			c.restore(*snapshot)
		}
		c.mu.Unlock()
		return nil
	}
	if from == to && fromIdx != toIdx {
		c.working.Days[from].Stops = arrayMove(c.working.Days[from].Stops, fromIdx, toIdx)
	}
	for d := range c.working.Days {
		for s := range c.working.Days[d].Stops {
			c.working.Days[d].Stops[s].OrderIndex = s
		}
	}
	c.clearMessage()
	orderings := c.working.Orderings()
	c.mu.Unlock()

	err := c.send(ctx, func(id uuid.UUID, version int) (int, error) {
		return c.store.ReorderStops(ctx, id, orderings, version)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.log.WarnContext(ctx, "stop reorder failed", "itinerary_id", c.working.ID, "error", err)
		c.restore(*snapshot)
		c.setMessage(MsgReorderFailed)
		return fmt.Errorf("editor.Controller.Drop: %w", err)
	}
	return nil
}

// CancelDrag abandons the gesture and restores the snapshot.
func (c *Controller) CancelDrag() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot != nil {
		c.restore(*c.snapshot)
	}
	c.dragging, c.snapshot, c.crossed = "", nil, false
}

// restore puts back the stops of a drag snapshot. The version is kept, since
// other edits may have been stored since the snapshot was taken.
// caller holds c.mu.
func (c *Controller) restore(snap domain.Itinerary) {
	version := c.working.Version
	c.working = snap
	c.working.Version = version
}

// Dragging returns the id of the stop being dragged, or "".
func (c *Controller) Dragging() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dragging
}

// Move is a whole drag gesture in one call. Within a day stopID takes
// overStopID's position; across days it is inserted before overStopID.
// Moving the last stop out of its day is refused with domain.ErrInvariant.
func (c *Controller) Move(ctx context.Context, stopID, overStopID string) error {
	it := c.Itinerary()
	from, _, ok := it.FindStop(stopID)
	if !ok {
		return fmt.Errorf("editor.Controller.Move: stop %s: %w", stopID, domain.ErrNotFound)
	}
	to, _, ok := it.FindStop(overStopID)
	if !ok {
		return fmt.Errorf("editor.Controller.Move: stop %s: %w", overStopID, domain.ErrNotFound)
	}
	if stopID == overStopID {
		return nil
	}
	if from != to && len(it.Days[from].Stops) <= 1 {
		c.mu.Lock()
		c.setMessage(MsgKeepOneStop)
		c.mu.Unlock()
		return fmt.Errorf("editor.Controller.Move: day %d must keep at least one stop: %w", it.Days[from].Number, domain.ErrInvariant)
	}

	if err := c.BeginDrag(stopID); err != nil {
		return err
	}
	crossed, err := c.DragOver(overStopID)
	if err != nil {
		c.CancelDrag()
		return err
	}
	if crossed {
		return c.Drop(ctx, stopID)
	}
	return c.Drop(ctx, overStopID)
}

func insertAt(stops []domain.Stop, i int, s domain.Stop) []domain.Stop {
	stops = append(stops, domain.Stop{})
	copy(stops[i+1:], stops[i:])
	stops[i] = s
	return stops
}

// arrayMove moves the element at from to position to, shifting the rest.
func arrayMove(stops []domain.Stop, from, to int) []domain.Stop {
	out := make([]domain.Stop, 0, len(stops))
	moved := stops[from]
	out = append(out, stops[:from]...)
	out = append(out, stops[from+1:]...)
	return insertAt(out, to, moved)
}
