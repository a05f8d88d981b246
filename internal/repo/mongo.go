package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tripplanner/backend/internal/domain"
)

// itineraryDoc is the MongoDB document shape: one document per itinerary
// keyed by the UUID string.
type itineraryDoc struct {
	ID        string        `bson:"_id"`
	OwnerID   string        `bson:"ownerId"`
	Title     string        `bson:"title"`
	Days      []domain.Day  `bson:"days"`
	Config    domain.Config `bson:"config"`
	Version   int           `bson:"version"`
	CreatedAt time.Time     `bson:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt"`
}

func (d itineraryDoc) toDomain() (domain.Itinerary, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("parse _id %q: %w", d.ID, err)
	}
	days := d.Days
	if days == nil {
		days = []domain.Day{}
	}
	return domain.Itinerary{
		ID:        id,
		OwnerID:   d.OwnerID,
		Title:     d.Title,
		Days:      days,
		Config:    d.Config,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

// mongoItineraryRepo is the MongoDB implementation of ItineraryRepo.
type mongoItineraryRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoItineraryRepo constructs an ItineraryRepo backed by the
// "itineraries" collection of db.
func NewMongoItineraryRepo(db *mongo.Database) ItineraryRepo {
	return &mongoItineraryRepo{
		coll: db.Collection("itineraries"),
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// EnsureMongoIndexes creates the indexes the list query relies on.
// It is idempotent.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("itineraries").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("repo.EnsureMongoIndexes: %w", err)
	}
	return nil
}

// Create inserts a new document with a fresh UUID and version 1.
func (r *mongoItineraryRepo) Create(ctx context.Context, it domain.Itinerary) (domain.Itinerary, error) {
	now := r.now()
	days := it.Days
	if days == nil {
		days = []domain.Day{}
	}
	doc := itineraryDoc{
		ID:        uuid.NewString(),
		OwnerID:   it.OwnerID,
		Title:     it.Title,
		Days:      days,
		Config:    it.Config,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return domain.Itinerary{}, fmt.Errorf("repo.MongoItineraryRepo.Create: %w", err)
	}
	result, err := doc.toDomain()
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("repo.MongoItineraryRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a document by _id.
func (r *mongoItineraryRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Itinerary, error) {
	var doc itineraryDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Itinerary{}, fmt.Errorf("repo.MongoItineraryRepo.GetByID: %w", domain.ErrNotFound)
		}
		return domain.Itinerary{}, fmt.Errorf("repo.MongoItineraryRepo.GetByID: %w", err)
	}
	result, err := doc.toDomain()
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("repo.MongoItineraryRepo.GetByID: %w", err)
	}
	return result, nil
}

// ListPaged returns one page of summaries ordered by createdAt descending.
func (r *mongoItineraryRepo) ListPaged(ctx context.Context, ownerID string, p domain.PaginationParams) ([]domain.Summary, int64, error) {
	filter := bson.M{}
	if ownerID != "" {
		filter["ownerId"] = ownerID
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.MongoItineraryRepo.ListPaged: count: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(p.Offset())).
		SetLimit(int64(p.Limit))
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.MongoItineraryRepo.ListPaged: %w", err)
	}
	defer cursor.Close(ctx)

	summaries := []domain.Summary{}
	for cursor.Next(ctx) {
		var doc itineraryDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("repo.MongoItineraryRepo.ListPaged: decode: %w", err)
		}
		it, err := doc.toDomain()
		if err != nil {
			return nil, 0, fmt.Errorf("repo.MongoItineraryRepo.ListPaged: %w", err)
		}
		summaries = append(summaries, domain.Summary{
			ID:        it.ID,
			Title:     it.Title,
			TotalDays: len(it.Days),
			Config:    it.Config,
			CreatedAt: it.CreatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.MongoItineraryRepo.ListPaged: cursor: %w", err)
	}
	return summaries, total, nil
}

// UpdateDays replaces days when the stored version equals readVersion.
func (r *mongoItineraryRepo) UpdateDays(ctx context.Context, id uuid.UUID, days []domain.Day, readVersion int) (domain.Itinerary, error) {
	filter := bson.M{"_id": id.String(), "version": readVersion}
	update := bson.M{
		"$set": bson.M{"days": days, "updatedAt": r.now()},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc itineraryDoc
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		result, err := doc.toDomain()
		if err != nil {
			return domain.Itinerary{}, fmt.Errorf("repo.MongoItineraryRepo.UpdateDays: %w", err)
		}
		return result, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Itinerary{}, fmt.Errorf("repo.MongoItineraryRepo.UpdateDays: %w", err)
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("repo.MongoItineraryRepo.UpdateDays: count: %w", err)
	}
	if n > 0 {
		return domain.Itinerary{}, fmt.Errorf("repo.MongoItineraryRepo.UpdateDays: %w", domain.ErrConflict)
	}
	return domain.Itinerary{}, fmt.Errorf("repo.MongoItineraryRepo.UpdateDays: %w", domain.ErrNotFound)
}
