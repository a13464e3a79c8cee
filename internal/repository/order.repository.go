package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/swiftdrop/delivery-gateway/internal/model"
	"github.com/swiftdrop/delivery-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrAlreadyAssigned = errors.New("order already has a driver assigned")
	ErrIDGenExhausted  = errors.New("could not generate a unique order id")
)

// maxIDAttempts bounds the retry-until-unique short id generation. With a
// 900k id space this only trips when the table is nearly saturated.
const maxIDAttempts = 50

type OrderRepository struct {
	*pg.DB
}

func NewOrderRepository(db *pg.DB) *OrderRepository {
	return &OrderRepository{
		db,
	}
}

// generateID produces a random 6-digit candidate id. Collision checking is
// done against the live table, not by using an unguessable id space.
func generateID() string {
	return fmt.Sprintf("%06d", 100000+rand.Intn(900000))
}

// Create inserts the order under a fresh collision-free 6-digit id.
func (r *OrderRepository) Create(ctx context.Context, o *model.Order) (*model.Order, error) {
	entity := toOrderEntity(o)

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := generateID()

		exists, err := r.ExistsID(ctx, id)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		entity.ID = id
		if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
			// Two concurrent creates can pass ExistsID with the same
			// candidate; the loser hits the primary key and retries.
			if isDuplicateKey(err) {
				continue
			}
			return nil, err
		}
		return toOrderModel(entity), nil
	}

	return nil, ErrIDGenExhausted
}

// isDuplicateKey recognizes unique-violation errors from the drivers in
// play (postgres in production, sqlite in tests).
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func (r *OrderRepository) ExistsID(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&OrderEntity{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*model.Order, error) {
	var entity OrderEntity

	err := r.Read(ctx).WithContext(ctx).
		Preload("Customer").
		Preload("AssignDriver").
		Where("id = ?", id).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return toOrderModel(&entity), nil
}

func (r *OrderRepository) List(ctx context.Context, f model.OrderFilter) ([]*model.Order, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&OrderEntity{})

	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.DriverID != nil {
		q = q.Where("assign_driver_id = ?", *f.DriverID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*OrderEntity
	err := q.Preload("Customer").
		Preload("AssignDriver").
		Order(order).
		Limit(limit).
		Offset(offset).
		Find(&entities).Error
	if err != nil {
		return nil, 0, err
	}

	return toOrderModels(entities), total, nil
}

// UpdateStatus writes the new status and any accompanying columns.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status model.OrderStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": string(status)}
	for k, v := range extra {
		updates[k] = v
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&OrderEntity{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// Assign attaches the driver with a compare-and-set: the update only lands
// if no driver is set yet, so exactly one concurrent acceptor can win.
func (r *OrderRepository) Assign(ctx context.Context, id string, driverID int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&OrderEntity{}).
		Where("id = ? AND assign_driver_id IS NULL", id).
		Updates(map[string]interface{}{
			"assign_driver_id": driverID,
			"status":           string(model.OrderStatusAssigned),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race, or the order never existed. Disambiguate.
		exists, err := r.ExistsID(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrAlreadyAssigned
	}

	return nil
}

// Dashboard aggregates (customer and driver cards).

func (r *OrderRepository) CountByCustomer(ctx context.Context, customerID int64, status *model.OrderStatus, exclude *model.OrderStatus, since *time.Time) (int64, error) {
	q := r.Read(ctx).WithContext(ctx).
		Model(&OrderEntity{}).
		Where("customer_id = ?", customerID)
	return countOrders(q, status, exclude, since)
}

func (r *OrderRepository) CountByDriver(ctx context.Context, driverID int64, status *model.OrderStatus, exclude *model.OrderStatus, since *time.Time) (int64, error) {
	q := r.Read(ctx).WithContext(ctx).
		Model(&OrderEntity{}).
		Where("assign_driver_id = ?", driverID)
	return countOrders(q, status, exclude, since)
}

func (r *OrderRepository) CountAll(ctx context.Context, status *model.OrderStatus, exclude *model.OrderStatus, since *time.Time) (int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&OrderEntity{})
	return countOrders(q, status, exclude, since)
}

func countOrders(q *gorm.DB, status *model.OrderStatus, exclude *model.OrderStatus, since *time.Time) (int64, error) {
	if status != nil {
		q = q.Where("status = ?", string(*status))
	}
	if exclude != nil {
		q = q.Where("status <> ?", string(*exclude))
	}
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumDeliveredFees totals the fees a driver earned over delivered orders.
func (r *OrderRepository) SumDeliveredFees(ctx context.Context, driverID int64) (float64, error) {
	var total float64
	err := r.Read(ctx).WithContext(ctx).
		Model(&OrderEntity{}).
		Where("assign_driver_id = ? AND status = ?", driverID, string(model.OrderStatusDelivered)).
		Select("COALESCE(SUM(delivery_fee), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
