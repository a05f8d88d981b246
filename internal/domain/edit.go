package domain

import (
	"fmt"

	"github.com/samber/lo"
)

// AssignIdentifiers gives every day and stop a fresh id from newID and sets
// each stop's OrderIndex to its position within its day.
// It is called exactly once, before an itinerary is first persisted.
func (it *Itinerary) AssignIdentifiers(newID func() string) {
	for d := range it.Days {
		it.Days[d].ID = newID()
		for s := range it.Days[d].Stops {
			it.Days[d].Stops[s].ID = newID()
			it.Days[d].Stops[s].OrderIndex = s
		}
	}
}

// Clone returns a deep copy of the itinerary. Mutating the copy's days or
// stops never affects the original.
func (it Itinerary) Clone() Itinerary {
	out := it
	out.Days = CloneDays(it.Days)
	return out
}

// CloneDays deep-copies a days slice.
func CloneDays(days []Day) []Day {
	if days == nil {
		return nil
	}
	out := make([]Day, len(days))
	for i, d := range days {
		out[i] = d
		out[i].Stops = append([]Stop(nil), d.Stops...)
	}
	return out
}

// FindStop locates a stop by id across all days.
func (it Itinerary) FindStop(stopID string) (dayIdx, stopIdx int, ok bool) {
	for d, day := range it.Days {
		for s, stop := range day.Stops {
			if stop.ID == stopID {
				return d, s, true
			}
		}
	}
	return -1, -1, false
}

// DayIndex returns the position of the day with the given id, or -1.
func (it Itinerary) DayIndex(dayID string) int {
	return lo.IndexOf(lo.Map(it.Days, func(d Day, _ int) string { return d.ID }), dayID)
}

// ApplyStopPatch applies only the non-nil fields of patch to the stop.
// Returns ErrNotFound if no stop has that id.
func (it *Itinerary) ApplyStopPatch(stopID string, patch StopPatch) error {
	d, s, ok := it.FindStop(stopID)
	if !ok {
		return fmt.Errorf("stop %s: %w", stopID, ErrNotFound)
	}
	stop := &it.Days[d].Stops[s]
	if patch.Name != nil {
		stop.Name = *patch.Name
	}
	if patch.Description != nil {
		stop.Description = *patch.Description
	}
	if patch.DurationMinutes != nil {
		stop.DurationMinutes = *patch.DurationMinutes
	}
	return nil
}

// CanRemoveStop reports whether the stop exists and removing it would leave
// its day with at least one stop.
func (it Itinerary) CanRemoveStop(stopID string) error {
	d, _, ok := it.FindStop(stopID)
	if !ok {
		return fmt.Errorf("stop %s: %w", stopID, ErrNotFound)
	}
	if len(it.Days[d].Stops) <= 1 {
		return fmt.Errorf("day %d must keep at least one stop: %w", it.Days[d].Number, ErrInvariant)
	}
	return nil
}

// RemoveStop deletes a stop and reindexes its day.
// Returns ErrNotFound for an unknown stop and ErrInvariant when the stop is
// the last one in its day; in both cases the itinerary is unchanged.
func (it *Itinerary) RemoveStop(stopID string) error {
	if err := it.CanRemoveStop(stopID); err != nil {
		return err
	}
	d, s, _ := it.FindStop(stopID)
	stops := it.Days[d].Stops
	it.Days[d].Stops = append(stops[:s:s], stops[s+1:]...)
	it.Days[d].reindex()
	return nil
}

// ReorderStops rewrites the stop order of every day named in orderings.
//
// Each ordering is authoritative and exhaustive for its day: the day ends up
// holding exactly the listed stops, in the listed order. Ids are resolved
// against the whole itinerary, not only the day they are listed under, so a
// stop dragged from another day moves with its fields intact. Callers may
// rely on this: a single ordering for the destination day is enough to move
// a stop across days. Ids unknown to the itinerary are dropped silently and
// unknown day ids are skipped. A stop placed into a listed day is removed
// from any day the orderings do not cover.
//
// Returns ErrInvariant, leaving the itinerary unchanged, if a day that had
// stops would end up empty.
func (it *Itinerary) ReorderStops(orderings []DayOrdering) error {
	byID := make(map[string]Stop)
	for _, day := range it.Days {
		for _, stop := range day.Stops {
			byID[stop.ID] = stop
		}
	}

	days := CloneDays(it.Days)
	placed := make(map[string]bool)
	covered := make(map[int]bool)

	for _, o := range orderings {
		d := it.DayIndex(o.DayID)
		if d < 0 || covered[d] {
			continue
		}
		covered[d] = true
		stops := make([]Stop, 0, len(o.StopIDs))
		for _, id := range lo.Uniq(o.StopIDs) {
			stop, ok := byID[id]
			if !ok || placed[id] {
				continue
			}
			placed[id] = true
			stops = append(stops, stop)
		}
		days[d].Stops = stops
	}

	for d := range days {
		if !covered[d] {
			days[d].Stops = lo.Reject(days[d].Stops, func(s Stop, _ int) bool { return placed[s.ID] })
		}
		if len(days[d].Stops) == 0 && len(it.Days[d].Stops) > 0 {
			return fmt.Errorf("day %d must keep at least one stop: %w", days[d].Number, ErrInvariant)
		}
		days[d].reindex()
	}

	it.Days = days
	return nil
}

// Orderings returns the current stop order of every day that has an id,
// in the form ReorderStops accepts.
func (it Itinerary) Orderings() []DayOrdering {
	out := make([]DayOrdering, 0, len(it.Days))
	for _, day := range it.Days {
		if day.ID == "" {
			continue
		}
		ids := lo.FilterMap(day.Stops, func(s Stop, _ int) (string, bool) { return s.ID, s.ID != "" })
		out = append(out, DayOrdering{DayID: day.ID, StopIDs: ids})
	}
	return out
}

func (d *Day) reindex() {
	for i := range d.Stops {
		d.Stops[i].OrderIndex = i
	}
}
