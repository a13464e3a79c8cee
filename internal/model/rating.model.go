package model

import (
	"errors"
	"time"
)

// Rating is a customer's rating of the driver for one completed delivery.
// One per order, created once, never mutated. Writing one triggers a full
// recompute of the driver's aggregate stats.
type Rating struct {
	ID         int64   `json:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	OrderID    string  `json:"order_id"    gorm:"column:order_id;uniqueIndex;not null"`
	DriverID   int64   `json:"driver_id"   gorm:"column:driver_id;not null;index"`
	CustomerID int64   `json:"customer_id" gorm:"column:customer_id;not null"`
	Rating     float64 `json:"rating"      gorm:"column:rating;not null"`
	Comment    string  `json:"comment"     gorm:"column:comment"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Rating) TableName() string { return "driver_ratings" }

// RateDriverRequest is the input for rating an order's driver.
type RateDriverRequest struct {
	OrderID    string
	CustomerID int64
	Rating     float64
	Comment    string
}

func (p RateDriverRequest) Validate() error {
	if p.OrderID == "" {
		return errors.New("order id is required")
	}
	if p.Rating < 0 || p.Rating > 5 {
		return errors.New("rating must be between 0 and 5")
	}
	return nil
}

// DriverStats is the derived aggregate held on the driver row.
type DriverStats struct {
	AverageRating float64 `json:"average_rating"`
	TotalRatings  int64   `json:"total_ratings"`
}
