package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftdrop/delivery-gateway/internal/model"
)

func TestRatingRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRatingRepository(db.DB)
	ctx := context.Background()

	t.Run("creates a rating", func(t *testing.T) {
		created, err := repo.Create(ctx, &model.Rating{
			OrderID:    "123456",
			DriverID:   2,
			CustomerID: 1,
			Rating:     4.5,
			Comment:    "fast delivery",
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, 4.5, created.Rating)
	})

	t.Run("one rating per order", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.Rating{
			OrderID:    "123456",
			DriverID:   2,
			CustomerID: 1,
			Rating:     3,
		})
		assert.Error(t, err)
	})
}

func TestRatingRepository_ExistsForOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRatingRepository(db.DB)
	ctx := context.Background()

	_, err := repo.Create(ctx, &model.Rating{OrderID: "111111", DriverID: 2, CustomerID: 1, Rating: 5})
	require.NoError(t, err)

	exists, err := repo.ExistsForOrder(ctx, "111111")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsForOrder(ctx, "222222")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRatingRepository_AggregateForDriver(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRatingRepository(db.DB)
	ctx := context.Background()

	t.Run("no ratings yet", func(t *testing.T) {
		stats, err := repo.AggregateForDriver(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, float64(0), stats.AverageRating)
		assert.Equal(t, int64(0), stats.TotalRatings)
	})

	t.Run("mean over full history, rounded to 2 decimals", func(t *testing.T) {
		for i, rating := range []float64{5, 4, 3} {
			_, err := repo.Create(ctx, &model.Rating{
				OrderID:    "10000" + string(rune('0'+i)),
				DriverID:   2,
				CustomerID: 1,
				Rating:     rating,
			})
			require.NoError(t, err)
		}

		stats, err := repo.AggregateForDriver(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.TotalRatings)
		assert.Equal(t, 4.0, stats.AverageRating)

		// (5+4+3+4.5)/4 = 4.125 -> 4.13
		_, err = repo.Create(ctx, &model.Rating{OrderID: "100009", DriverID: 2, CustomerID: 1, Rating: 4.5})
		require.NoError(t, err)

		stats, err = repo.AggregateForDriver(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(4), stats.TotalRatings)
		assert.Equal(t, 4.13, stats.AverageRating)
	})

	t.Run("only counts the given driver", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.Rating{OrderID: "200001", DriverID: 7, CustomerID: 1, Rating: 1})
		require.NoError(t, err)

		stats, err := repo.AggregateForDriver(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.TotalRatings)
		assert.Equal(t, 1.0, stats.AverageRating)
	})
}

func TestRatingRepository_ListByDriver(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRatingRepository(db.DB)
	ctx := context.Background()

	for i, rating := range []float64{5, 3} {
		_, err := repo.Create(ctx, &model.Rating{
			OrderID:    "30000" + string(rune('0'+i)),
			DriverID:   2,
			CustomerID: 1,
			Rating:     rating,
		})
		require.NoError(t, err)
	}

	ratings, err := repo.ListByDriver(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, ratings, 2)

	ratings, err = repo.ListByDriver(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, ratings)
}
