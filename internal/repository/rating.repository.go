package repository

import (
	"context"
	"errors"
	"math"

	"github.com/swiftdrop/delivery-gateway/internal/model"
	"github.com/swiftdrop/delivery-gateway/pkg/pg"
)

var (
	ErrAlreadyRated = errors.New("order already has a rating")
)

type RatingRepository struct {
	*pg.DB
}

func NewRatingRepository(db *pg.DB) *RatingRepository {
	return &RatingRepository{
		db,
	}
}

func (r *RatingRepository) Create(ctx context.Context, rating *model.Rating) (*model.Rating, error) {
	entity := toRatingEntity(rating)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toRatingModel(entity), nil
}

func (r *RatingRepository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&RatingEntity{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AggregateForDriver recomputes the driver's stats by folding over the full
// rating history. Deliberately O(N) per new rating: a from-scratch AVG/COUNT
// cannot drift the way an incremental running mean would under concurrent
// writes. Must run in the same transaction (and under the same driver row
// lock) as the rating insert.
func (r *RatingRepository) AggregateForDriver(ctx context.Context, driverID int64) (model.DriverStats, error) {
	var row struct {
		Average float64
		Total   int64
	}

	err := r.Write(ctx).WithContext(ctx).
		Model(&RatingEntity{}).
		Where("driver_id = ?", driverID).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(id) AS total").
		Scan(&row).Error
	if err != nil {
		return model.DriverStats{}, err
	}

	return model.DriverStats{
		AverageRating: math.Round(row.Average*100) / 100,
		TotalRatings:  row.Total,
	}, nil
}

func (r *RatingRepository) ListByDriver(ctx context.Context, driverID int64) ([]*model.Rating, error) {
	var entities []*RatingEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("created_at DESC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	models := make([]*model.Rating, len(entities))
	for i, e := range entities {
		models[i] = toRatingModel(e)
	}
	return models, nil
}
