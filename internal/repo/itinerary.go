// Package repo contains all persistence logic for the trip planner API.
// ItineraryRepo has a Postgres and a MongoDB implementation plus a caching
// decorator. No business logic lives here, only queries and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tripplanner/backend/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ItineraryRepo defines the persistence operations for itineraries.
// The days of an itinerary are one nested document and are always written
// back as a unit.
type ItineraryRepo interface {
	// Create inserts a new itinerary and returns the persisted record with id,
	// version 1 and timestamps populated.
	Create(ctx context.Context, it domain.Itinerary) (domain.Itinerary, error)

	// GetByID retrieves a single itinerary.
	// Returns domain.ErrNotFound if no itinerary with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Itinerary, error)

	// ListPaged returns one page of summaries, newest first, and the total
	// count. An empty ownerID lists every owner.
	ListPaged(ctx context.Context, ownerID string, p domain.PaginationParams) ([]domain.Summary, int64, error)

	// UpdateDays replaces the days document if the stored version still equals
	// readVersion, and increments the version.
	// Returns domain.ErrNotFound if the itinerary is gone and domain.ErrConflict
	// if another write got there first.
	UpdateDays(ctx context.Context, id uuid.UUID, days []domain.Day, readVersion int) (domain.Itinerary, error)
}

// pgItineraryRepo is the Postgres implementation of ItineraryRepo.
type pgItineraryRepo struct {
	db db
}

// NewItineraryRepo constructs an ItineraryRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewItineraryRepo(db db) ItineraryRepo {
	return &pgItineraryRepo{db: db}
}

const itineraryColumns = `id, owner_id, title, days, config, version, created_at, updated_at`

// Create inserts a new itinerary row and returns the full persisted record.
func (r *pgItineraryRepo) Create(ctx context.Context, it domain.Itinerary) (domain.Itinerary, error) {
	const q = `
		INSERT INTO itineraries (owner_id, title, days, config)
		VALUES (@owner_id, @title, @days, @config)
		RETURNING ` + itineraryColumns

	days := it.Days
	if days == nil {
		days = []domain.Day{}
	}
	args := pgx.NamedArgs{
		"owner_id": it.OwnerID,
		"title":    it.Title,
		"days":     days,
		"config":   it.Config,
	}

	result, err := scanItinerary(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("repo.ItineraryRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves an itinerary by primary key.
func (r *pgItineraryRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Itinerary, error) {
	const q = `SELECT ` + itineraryColumns + ` FROM itineraries WHERE id = @id`

	result, err := scanItinerary(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("repo.ItineraryRepo.GetByID: %w", err)
	}
	return result, nil
}

// ListPaged returns one page of summaries ordered by created_at descending.
func (r *pgItineraryRepo) ListPaged(ctx context.Context, ownerID string, p domain.PaginationParams) ([]domain.Summary, int64, error) {
	const countQ = `
		SELECT count(*) FROM itineraries
		WHERE (@owner_id = '' OR owner_id = @owner_id)`

	var total int64
	if err := r.db.QueryRow(ctx, countQ, pgx.NamedArgs{"owner_id": ownerID}).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.ItineraryRepo.ListPaged: count: %w", err)
	}

	const q = `
		SELECT id, title, jsonb_array_length(days), config, created_at
		FROM itineraries
		WHERE (@owner_id = '' OR owner_id = @owner_id)
		ORDER BY created_at DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{
		"owner_id": ownerID,
		"limit":    p.Limit,
		"offset":   p.Offset(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.ItineraryRepo.ListPaged: %w", err)
	}
	defer rows.Close()

	summaries := []domain.Summary{}
	for rows.Next() {
		var (
			s  domain.Summary
			id pgtype.UUID
		)
		if err := rows.Scan(&id, &s.Title, &s.TotalDays, &s.Config, &s.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("repo.ItineraryRepo.ListPaged: scan: %w", err)
		}
		s.ID = uuid.UUID(id.Bytes)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.ItineraryRepo.ListPaged: rows: %w", err)
	}
	return summaries, total, nil
}

// UpdateDays overwrites the days document with a compare-and-swap on version.
func (r *pgItineraryRepo) UpdateDays(ctx context.Context, id uuid.UUID, days []domain.Day, readVersion int) (domain.Itinerary, error) {
	const q = `
		UPDATE itineraries
		SET days       = @days,
		    version    = version + 1,
		    updated_at = now()
		WHERE id = @id AND version = @version
		RETURNING ` + itineraryColumns

	args := pgx.NamedArgs{"id": id, "days": days, "version": readVersion}
	result, err := scanItinerary(r.db.QueryRow(ctx, q, args))
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Itinerary{}, fmt.Errorf("repo.ItineraryRepo.UpdateDays: %w", err)
	}

	// No row matched: either the itinerary is gone or the version moved on.
	var exists bool
	const existsQ = `SELECT EXISTS (SELECT 1 FROM itineraries WHERE id = @id)`
	if err := r.db.QueryRow(ctx, existsQ, pgx.NamedArgs{"id": id}).Scan(&exists); err != nil {
		return domain.Itinerary{}, fmt.Errorf("repo.ItineraryRepo.UpdateDays: exists: %w", err)
	}
	if exists {
		return domain.Itinerary{}, fmt.Errorf("repo.ItineraryRepo.UpdateDays: %w", domain.ErrConflict)
	}
	return domain.Itinerary{}, fmt.Errorf("repo.ItineraryRepo.UpdateDays: %w", domain.ErrNotFound)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanItinerary maps a single row into a domain.Itinerary. The JSONB columns
// are decoded by pgx's JSON codec straight into the domain types.
func scanItinerary(s scanner) (domain.Itinerary, error) {
	var (
		it domain.Itinerary
		id pgtype.UUID
	)

	err := s.Scan(&id, &it.OwnerID, &it.Title, &it.Days, &it.Config, &it.Version, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Itinerary{}, domain.ErrNotFound
		}
		return domain.Itinerary{}, err
	}

	it.ID = uuid.UUID(id.Bytes)
	if it.Days == nil {
		it.Days = []domain.Day{}
	}
	return it, nil
}
