package repository

import (
	"time"

	"github.com/swiftdrop/delivery-gateway/internal/model"
)

type UserEntity struct {
	ID            int64     `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	Name          string    `db:"name"           gorm:"column:name;not null"`
	Email         string    `db:"email"          gorm:"column:email;uniqueIndex;not null"`
	Role          string    `db:"role"           gorm:"column:role;not null"`
	PhoneNumber   string    `db:"phone_number"   gorm:"column:phone_number"`
	FeePerKm      float64   `db:"fee_per_km"     gorm:"column:fee_per_km;not null;default:0"`
	AverageRating float64   `db:"average_rating" gorm:"column:average_rating;not null;default:0"`
	TotalRatings  int64     `db:"total_ratings"  gorm:"column:total_ratings;not null;default:0"`
	CreatedAt     time.Time `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (UserEntity) TableName() string {
	return "users"
}

func toUserEntity(u *model.User) *UserEntity {
	if u == nil {
		return nil
	}
	return &UserEntity{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Role:          string(u.Role),
		PhoneNumber:   u.PhoneNumber,
		FeePerKm:      u.FeePerKm,
		AverageRating: u.AverageRating,
		TotalRatings:  u.TotalRatings,
		CreatedAt:     u.CreatedAt,
	}
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	return &model.User{
		ID:            e.ID,
		Name:          e.Name,
		Email:         e.Email,
		Role:          model.Role(e.Role),
		PhoneNumber:   e.PhoneNumber,
		FeePerKm:      e.FeePerKm,
		AverageRating: e.AverageRating,
		TotalRatings:  e.TotalRatings,
		CreatedAt:     e.CreatedAt,
	}
}
