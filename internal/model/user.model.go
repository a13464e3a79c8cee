package model

import "time"

// Role is the closed set of actor roles. Authorization checks dispatch on
// this instead of comparing free-form strings.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleCompany  Role = "company"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDriver, RoleCompany:
		return true
	}
	return false
}

// User is the account entity as this core sees it. Registration, OTP and
// profile management live in the account service; we only read identity,
// the per-km fee rate and hold the derived rating aggregate.
type User struct {
	ID            int64   `json:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	Name          string  `json:"name"           gorm:"column:name;not null"`
	Email         string  `json:"email"          gorm:"column:email;uniqueIndex;not null"`
	Role          Role    `json:"role"           gorm:"column:role;not null"`
	PhoneNumber   string  `json:"phone_number"   gorm:"column:phone_number"`
	FeePerKm      float64 `json:"fee_per_km"     gorm:"column:fee_per_km;not null;default:0"`
	AverageRating float64 `json:"average_rating" gorm:"column:average_rating;not null;default:0"`
	TotalRatings  int64   `json:"total_ratings"  gorm:"column:total_ratings;not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (User) TableName() string { return "users" }
