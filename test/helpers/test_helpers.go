package helpers

import (
	"context"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/swiftdrop/delivery-gateway/internal/repository"
	"github.com/swiftdrop/delivery-gateway/pkg/pg"
	"github.com/swiftdrop/delivery-gateway/pkg/redis"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.UserEntity{},
		&repository.OrderEntity{},
		&repository.RatingEntity{},
		&repository.NotificationEntity{},
		&repository.NotificationRecipientEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestUser(t *testing.T, db *pg.DB, id int64, role string) *repository.UserEntity {
	ctx := context.Background()
	user := &repository.UserEntity{
		ID:    id,
		Name:  "Test " + role,
		Email: RandomEmail(id),
		Role:  role,
	}
	err := db.Write(ctx).Create(user).Error
	require.NoError(t, err)
	return user
}

func CreateTestOrder(t *testing.T, db *pg.DB, id string, customerID int64, status string) *repository.OrderEntity {
	ctx := context.Background()
	order := &repository.OrderEntity{
		ID:               id,
		CustomerID:       customerID,
		PickupLocation:   "12 Warehouse Rd",
		DeliveryLocation: "99 Main St",
		ProductWeight:    2,
		DeliveryFee:      70,
		Status:           status,
		CreatedAt:        time.Now(),
	}
	err := db.Write(ctx).Create(order).Error
	require.NoError(t, err)
	return order
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func RandomEmail(id int64) string {
	return "user-" + strconv.FormatInt(id, 10) + "-" + time.Now().Format("20060102150405.000") + "@test.local"
}

func Ptr[T any](v T) *T {
	return &v
}
