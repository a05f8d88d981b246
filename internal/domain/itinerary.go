// Package domain contains the core data types for the trip planner.
// Apart from uuid and lo it has no external dependencies and is imported by
// every other internal package (repo, service, generation, handler, editor).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Itinerary is the top-level aggregate: a titled multi-day plan.
// Days are stored as one nested document and always written back as a unit.
type Itinerary struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"userId"`
	Title     string    `json:"title"`
	Days      []Day     `json:"days"`
	Config    Config    `json:"config"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Day is an ordered list of stops. Number is 1-based and expected, but not
// enforced, to match the day's position.
type Day struct {
	ID     string `json:"id,omitempty" bson:"id"`
	Number int    `json:"day" bson:"day"`
	Theme  string `json:"theme,omitempty" bson:"theme,omitempty"`
	Stops  []Stop `json:"stops" bson:"stops"`
}

// Stop is a single visit within a day.
// OrderIndex is recomputed on every mutation and never trusted from input.
type Stop struct {
	ID              string `json:"id,omitempty" bson:"id"`
	Name            string `json:"name" bson:"name"`
	Description     string `json:"description" bson:"description"`
	DurationMinutes int    `json:"duration_minutes" bson:"duration_minutes"`
	OrderIndex      int    `json:"orderIndex" bson:"orderIndex"`
}

// Config is the free-form metadata recorded alongside a generated itinerary.
type Config struct {
	GeneratedWith string    `json:"generatedWith,omitempty" bson:"generatedWith,omitempty"`
	TotalDays     int       `json:"totalDays,omitempty" bson:"totalDays,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	IsStreamed    bool      `json:"isStreamed" bson:"isStreamed"`
}

// Summary is the list-view projection of an itinerary.
type Summary struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	TotalDays int       `json:"totalDays"`
	Config    Config    `json:"config"`
	CreatedAt time.Time `json:"createdAt"`
}

// Owner identifies who an itinerary belongs to. Guest owners come from an
// anonymous session rather than an authenticated user.
type Owner struct {
	ID    string
	Guest bool
}

// StopPatch carries the optional fields of a stop edit.
// Nil fields are left untouched.
type StopPatch struct {
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p StopPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.DurationMinutes == nil
}

// DayOrdering is the authoritative, exhaustive stop order for one day.
type DayOrdering struct {
	DayID   string   `json:"dayId"`
	StopIDs []string `json:"stopIds"`
}
