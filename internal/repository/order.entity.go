package repository

import (
	"time"

	"github.com/swiftdrop/delivery-gateway/internal/model"
)

type OrderEntity struct {
	ID          string `db:"id"           gorm:"primaryKey;column:id"`
	CustomerID  int64  `db:"customer_id"  gorm:"column:customer_id;not null;index"`
	OrderRef    string `db:"order_ref"    gorm:"column:order_ref"`
	CompanyName string `db:"company_name" gorm:"column:company_name"`
	Description string `db:"description"  gorm:"column:description"`

	ProductWeight float64 `db:"product_weight" gorm:"column:product_weight"`
	ProductAmount float64 `db:"product_amount" gorm:"column:product_amount"`

	PickupLocation   string   `db:"pickup_location"   gorm:"column:pickup_location;not null"`
	PickupLat        *float64 `db:"pickup_lat"        gorm:"column:pickup_lat"`
	PickupLng        *float64 `db:"pickup_lng"        gorm:"column:pickup_lng"`
	DeliveryLocation string   `db:"delivery_location" gorm:"column:delivery_location;not null"`
	DeliveryLat      *float64 `db:"delivery_lat"      gorm:"column:delivery_lat"`
	DeliveryLng      *float64 `db:"delivery_lng"      gorm:"column:delivery_lng"`

	DistanceKm  float64 `db:"distance_km"  gorm:"column:distance_km"`
	DeliveryFee float64 `db:"delivery_fee" gorm:"column:delivery_fee;not null;default:0"`

	AssignDriverID *int64      `db:"assign_driver_id" gorm:"column:assign_driver_id;index"`
	AssignDriver   *UserEntity `gorm:"foreignKey:AssignDriverID;references:ID"`
	Customer       *UserEntity `gorm:"foreignKey:CustomerID;references:ID"`
	Status         string      `db:"status" gorm:"column:status;not null;default:'pending';index"`

	ExpectedDeliveryTime *time.Time `db:"expected_delivery_time" gorm:"column:expected_delivery_time"`
	ActualDeliveryTime   *time.Time `db:"actual_delivery_time"   gorm:"column:actual_delivery_time"`

	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (OrderEntity) TableName() string {
	return "delivery_orders"
}

func toOrderEntity(o *model.Order) *OrderEntity {
	if o == nil {
		return nil
	}
	return &OrderEntity{
		ID:                   o.ID,
		CustomerID:           o.CustomerID,
		OrderRef:             o.OrderRef,
		CompanyName:          o.CompanyName,
		Description:          o.Description,
		ProductWeight:        o.ProductWeight,
		ProductAmount:        o.ProductAmount,
		PickupLocation:       o.PickupLocation,
		PickupLat:            o.PickupLat,
		PickupLng:            o.PickupLng,
		DeliveryLocation:     o.DeliveryLocation,
		DeliveryLat:          o.DeliveryLat,
		DeliveryLng:          o.DeliveryLng,
		DistanceKm:           o.DistanceKm,
		DeliveryFee:          o.DeliveryFee,
		AssignDriverID:       o.AssignDriverID,
		Status:               string(o.Status),
		ExpectedDeliveryTime: o.ExpectedDeliveryTime,
		ActualDeliveryTime:   o.ActualDeliveryTime,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
}

func toOrderModel(e *OrderEntity) *model.Order {
	if e == nil {
		return nil
	}
	return &model.Order{
		ID:                   e.ID,
		CustomerID:           e.CustomerID,
		Customer:             toUserModel(e.Customer),
		OrderRef:             e.OrderRef,
		CompanyName:          e.CompanyName,
		Description:          e.Description,
		ProductWeight:        e.ProductWeight,
		ProductAmount:        e.ProductAmount,
		PickupLocation:       e.PickupLocation,
		PickupLat:            e.PickupLat,
		PickupLng:            e.PickupLng,
		DeliveryLocation:     e.DeliveryLocation,
		DeliveryLat:          e.DeliveryLat,
		DeliveryLng:          e.DeliveryLng,
		DistanceKm:           e.DistanceKm,
		DeliveryFee:          e.DeliveryFee,
		AssignDriverID:       e.AssignDriverID,
		AssignDriver:         toUserModel(e.AssignDriver),
		Status:               model.OrderStatus(e.Status),
		ExpectedDeliveryTime: e.ExpectedDeliveryTime,
		ActualDeliveryTime:   e.ActualDeliveryTime,
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
}

func toOrderModels(entities []*OrderEntity) []*model.Order {
	if entities == nil {
		return nil
	}
	models := make([]*model.Order, len(entities))
	for i, e := range entities {
		models[i] = toOrderModel(e)
	}
	return models
}
