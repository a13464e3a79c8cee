package repository

import (
	"context"
	"errors"

	"github.com/swiftdrop/delivery-gateway/internal/model"
	"github.com/swiftdrop/delivery-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository is the recipient directory: it resolves user ids (or the
// whole directory) to addressable recipients, and holds the derived driver
// rating aggregate.
type UserRepository struct {
	*pg.DB
}

func NewUserRepository(db *pg.DB) *UserRepository {
	return &UserRepository{
		db,
	}
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) (*model.User, error) {
	entity := toUserEntity(u)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toUserModel(entity), nil
}

func (r *UserRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	var entity UserEntity

	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toUserModel(&entity), nil
}

// ListIDs returns every user id in the directory, for broadcast fan-out.
func (r *UserRepository) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64

	err := r.Read(ctx).WithContext(ctx).
		Model(&UserEntity{}).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// ListExistingIDs filters the given ids down to those that exist. Unknown
// ids are silently dropped, mirroring broadcast expansion.
func (r *UserRepository) ListExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var existing []int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&UserEntity{}).
		Where("id IN ?", ids).
		Order("id").
		Pluck("id", &existing).Error
	if err != nil {
		return nil, err
	}

	return existing, nil
}

// GetForUpdate loads a user row under a row-level lock. Must be called
// inside WithinTransaction; it serializes concurrent rating recomputes for
// the same driver.
func (r *UserRepository) GetForUpdate(ctx context.Context, id int64) (*model.User, error) {
	var entity UserEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toUserModel(&entity), nil
}

// UpdateRatingStats writes the recomputed aggregate onto the driver row.
func (r *UserRepository) UpdateRatingStats(ctx context.Context, driverID int64, stats model.DriverStats) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&UserEntity{}).
		Where("id = ?", driverID).
		Updates(map[string]interface{}{
			"average_rating": stats.AverageRating,
			"total_ratings":  stats.TotalRatings,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}
