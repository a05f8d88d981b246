package repo

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/cache"
	"github.com/tripplanner/backend/internal/domain"
)

// CachedItineraryRepo is a read-through cache in front of another
// ItineraryRepo. GetByID is served from the cache when possible; every
// successful write refreshes the entry. Cache failures are logged and never
// fail the call.
type CachedItineraryRepo struct {
	next  ItineraryRepo
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

var _ ItineraryRepo = (*CachedItineraryRepo)(nil)

// NewCachedItineraryRepo wraps next with c. Entries live for ttl.
func NewCachedItineraryRepo(next ItineraryRepo, c cache.Cache, ttl time.Duration, log *slog.Logger) *CachedItineraryRepo {
	return &CachedItineraryRepo{next: next, cache: c, ttl: ttl, log: log}
}

func cacheKey(id uuid.UUID) string { return "itinerary:" + id.String() }

func (r *CachedItineraryRepo) Create(ctx context.Context, it domain.Itinerary) (domain.Itinerary, error) {
	created, err := r.next.Create(ctx, it)
	if err != nil {
		return domain.Itinerary{}, err
	}
	r.store(ctx, created)
	return created, nil
}

func (r *CachedItineraryRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Itinerary, error) {
	b, ok, err := r.cache.Get(ctx, cacheKey(id))
	if err != nil {
		r.log.WarnContext(ctx, "cache get failed", "id", id, "error", err)
	}
	if ok {
		var it domain.Itinerary
		if err := json.Unmarshal(b, &it); err == nil {
			return it, nil
		}
		r.log.WarnContext(ctx, "cache entry undecodable", "id", id)
	}

	it, err := r.next.GetByID(ctx, id)
	if err != nil {
		return domain.Itinerary{}, err
	}
	r.store(ctx, it)
	return it, nil
}

// ListPaged is not cached; pages go stale on every create.
func (r *CachedItineraryRepo) ListPaged(ctx context.Context, ownerID string, p domain.PaginationParams) ([]domain.Summary, int64, error) {
	return r.next.ListPaged(ctx, ownerID, p)
}

func (r *CachedItineraryRepo) UpdateDays(ctx context.Context, id uuid.UUID, days []domain.Day, readVersion int) (domain.Itinerary, error) {
	updated, err := r.next.UpdateDays(ctx, id, days, readVersion)
	if err != nil {
		// A conflict means our cached copy may be stale.
		if delErr := r.cache.Delete(ctx, cacheKey(id)); delErr != nil {
			r.log.WarnContext(ctx, "cache delete failed", "id", id, "error", delErr)
		}
		return domain.Itinerary{}, err
	}
	r.store(ctx, updated)
	return updated, nil
}

func (r *CachedItineraryRepo) store(ctx context.Context, it domain.Itinerary) {
	b, err := json.Marshal(it)
	if err != nil {
		r.log.WarnContext(ctx, "cache encode failed", "id", it.ID, "error", err)
		return
	}
	if err := r.cache.Set(ctx, cacheKey(it.ID), b, r.ttl); err != nil {
		r.log.WarnContext(ctx, "cache set failed", "id", it.ID, "error", err)
	}
}
