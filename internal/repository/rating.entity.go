package repository

import (
	"time"

	"github.com/swiftdrop/delivery-gateway/internal/model"
)

type RatingEntity struct {
	ID         int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	OrderID    string    `db:"order_id"    gorm:"column:order_id;uniqueIndex;not null"`
	DriverID   int64     `db:"driver_id"   gorm:"column:driver_id;not null;index"`
	CustomerID int64     `db:"customer_id" gorm:"column:customer_id;not null"`
	Rating     float64   `db:"rating"      gorm:"column:rating;not null"`
	Comment    string    `db:"comment"     gorm:"column:comment"`
	CreatedAt  time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (RatingEntity) TableName() string {
	return "driver_ratings"
}

func toRatingEntity(r *model.Rating) *RatingEntity {
	if r == nil {
		return nil
	}
	return &RatingEntity{
		ID:         r.ID,
		OrderID:    r.OrderID,
		DriverID:   r.DriverID,
		CustomerID: r.CustomerID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}

func toRatingModel(e *RatingEntity) *model.Rating {
	if e == nil {
		return nil
	}
	return &model.Rating{
		ID:         e.ID,
		OrderID:    e.OrderID,
		DriverID:   e.DriverID,
		CustomerID: e.CustomerID,
		Rating:     e.Rating,
		Comment:    e.Comment,
		CreatedAt:  e.CreatedAt,
	}
}
