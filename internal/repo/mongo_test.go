package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tripplanner/backend/internal/repo"
	"github.com/tripplanner/backend/testutil"
)

func newMongoTestRepo(t *testing.T) repo.ItineraryRepo {
	t.Helper()
	db := testutil.NewMongoDB(t)
	require.NoError(t, repo.EnsureMongoIndexes(context.Background(), db))
	return repo.NewMongoItineraryRepo(db)
}

func TestItineraryRepo_Mongo(t *testing.T) {
	runRepoContract(t, newMongoTestRepo)
}
