package model

import (
	"errors"
	"time"
)

// OrderStatus is the lifecycle state of a delivery order (persisted as a
// string). `cancelled` and `delivered` are terminal.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusAssigned  OrderStatus = "assigned"
	OrderStatusPickedUp  OrderStatus = "picked_up"
	OrderStatusOnTheWay  OrderStatus = "on_the_way"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Assigned reports whether s implies a driver has been attached. Invariant:
// assign_driver is set iff the status has progressed to assigned or later.
func (s OrderStatus) Assigned() bool {
	switch s {
	case OrderStatusAssigned, OrderStatusPickedUp, OrderStatusOnTheWay, OrderStatusDelivered:
		return true
	}
	return false
}

// DriverTargetStatuses is the closed set of statuses the assigned driver may
// move an order to via the update operation.
var DriverTargetStatuses = map[OrderStatus]bool{
	OrderStatusPickedUp:  true,
	OrderStatusOnTheWay:  true,
	OrderStatusDelivered: true,
}

// Cancellable reports whether the owning customer may still cancel.
// Confirmation locks cancellation (policy, not a technical limit); terminal
// states have nothing to cancel.
func (s OrderStatus) Cancellable() bool {
	return !s.Terminal() && s != OrderStatusConfirmed
}

// Order is a delivery order. The primary key is a 6-digit human-presentable
// id generated at creation by retrying random candidates against the store.
type Order struct {
	ID          string `json:"id"           gorm:"primaryKey;column:id"`
	CustomerID  int64  `json:"customer_id"  gorm:"column:customer_id;not null;index"`
	Customer    *User  `json:"customer_details,omitempty" gorm:"foreignKey:CustomerID;references:ID;constraint:OnDelete:CASCADE"`
	OrderRef    string `json:"order_ref"    gorm:"column:order_ref"`
	CompanyName string `json:"company_name" gorm:"column:company_name"`
	Description string `json:"description"  gorm:"column:description"`

	ProductWeight float64 `json:"product_weight" gorm:"column:product_weight"`
	ProductAmount float64 `json:"product_amount" gorm:"column:product_amount"`

	PickupLocation   string   `json:"pickup_location"   gorm:"column:pickup_location;not null"`
	PickupLat        *float64 `json:"pickup_lat"        gorm:"column:pickup_lat"`
	PickupLng        *float64 `json:"pickup_lng"        gorm:"column:pickup_lng"`
	DeliveryLocation string   `json:"delivery_location" gorm:"column:delivery_location;not null"`
	DeliveryLat      *float64 `json:"delivery_lat"      gorm:"column:delivery_lat"`
	DeliveryLng      *float64 `json:"delivery_lng"      gorm:"column:delivery_lng"`

	DistanceKm  float64 `json:"distance_km"  gorm:"column:distance_km"`
	DeliveryFee float64 `json:"delivery_fee" gorm:"column:delivery_fee;not null;default:0"`

	AssignDriverID *int64      `json:"assign_driver_id" gorm:"column:assign_driver_id;index"`
	AssignDriver   *User       `json:"assign_driver_details,omitempty" gorm:"foreignKey:AssignDriverID;references:ID"`
	Status         OrderStatus `json:"status" gorm:"column:status;not null;default:'pending';index"`

	ExpectedDeliveryTime *time.Time `json:"expected_delivery_time" gorm:"column:expected_delivery_time"`
	ActualDeliveryTime   *time.Time `json:"actual_delivery_time"   gorm:"column:actual_delivery_time"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "delivery_orders" }

// OrderCreateRequest is the input for creating an order.
type OrderCreateRequest struct {
	CustomerID       int64
	OrderRef         string
	CompanyName      string
	Description      string
	ProductWeight    float64
	ProductAmount    float64
	PickupLocation   string
	PickupLat        *float64
	PickupLng        *float64
	DeliveryLocation string
	DeliveryLat      *float64
	DeliveryLng      *float64
}

func (p OrderCreateRequest) Validate() error {
	if p.CustomerID == 0 {
		return errors.New("customer_id is required")
	}
	if p.PickupLocation == "" {
		return errors.New("pickup_location is required")
	}
	if p.DeliveryLocation == "" {
		return errors.New("delivery_location is required")
	}
	if p.ProductWeight < 0 {
		return errors.New("product_weight must not be negative")
	}
	return nil
}

// HasCoordinates reports whether both endpoints carry lat/lng, i.e. whether
// a distance lookup is possible.
func (p OrderCreateRequest) HasCoordinates() bool {
	return p.PickupLat != nil && p.PickupLng != nil &&
		p.DeliveryLat != nil && p.DeliveryLng != nil
}

// OrderFilter controls order list queries.
type OrderFilter struct {
	CustomerID *int64
	DriverID   *int64
	Status     *OrderStatus
	Limit      int
	Offset     int
	Desc       bool
}
