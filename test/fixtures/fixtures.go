package fixtures

import (
	"time"

	"github.com/swiftdrop/delivery-gateway/internal/model"
)

var (
	TestCustomer = model.User{
		ID:    1,
		Name:  "Ada Customer",
		Email: "ada@example.com",
		Role:  model.RoleCustomer,
	}

	TestCustomerWithFee = model.User{
		ID:       2,
		Name:     "Grace Customer",
		Email:    "grace@example.com",
		Role:     model.RoleCustomer,
		FeePerKm: 10,
	}

	TestDriver = model.User{
		ID:    3,
		Name:  "Max Driver",
		Email: "max@example.com",
		Role:  model.RoleDriver,
	}

	TestCompany = model.User{
		ID:    5,
		Name:  "Dispatch Desk",
		Email: "ops@example.com",
		Role:  model.RoleCompany,
	}
)

func NewTestOrder(id string, customerID int64, status model.OrderStatus) *model.Order {
	return &model.Order{
		ID:               id,
		CustomerID:       customerID,
		PickupLocation:   "12 Warehouse Rd",
		DeliveryLocation: "99 Main St",
		ProductWeight:    2,
		DeliveryFee:      70,
		Status:           status,
		CreatedAt:        time.Now(),
	}
}

func NewTestOrderCreateRequest(customerID int64) model.OrderCreateRequest {
	return model.OrderCreateRequest{
		CustomerID:       customerID,
		OrderRef:         "REF-1001",
		CompanyName:      "Acme Supplies",
		Description:      "two boxes",
		ProductWeight:    2,
		ProductAmount:    150,
		PickupLocation:   "12 Warehouse Rd",
		DeliveryLocation: "99 Main St",
	}
}

func OrderCreateRequestWithCoordinates(customerID int64) model.OrderCreateRequest {
	p := NewTestOrderCreateRequest(customerID)
	p.PickupLat = Ptr(35.6892)
	p.PickupLng = Ptr(51.3890)
	p.DeliveryLat = Ptr(35.7219)
	p.DeliveryLng = Ptr(51.3347)
	return p
}

func OrderCreateRequestMissingPickup(customerID int64) model.OrderCreateRequest {
	p := NewTestOrderCreateRequest(customerID)
	p.PickupLocation = ""
	return p
}

func NewTestDispatchRequest(recipientIDs ...int64) model.DispatchRequest {
	return model.DispatchRequest{
		Title:        "Service Update",
		Message:      "Deliveries may be delayed today",
		RecipientIDs: recipientIDs,
	}
}

func BroadcastDispatchRequest() model.DispatchRequest {
	return model.DispatchRequest{
		Title:     "Service Update",
		Message:   "Deliveries may be delayed today",
		SendToAll: true,
	}
}

func NewTestRating(orderID string, driverID, customerID int64, rating float64) *model.Rating {
	return &model.Rating{
		OrderID:    orderID,
		DriverID:   driverID,
		CustomerID: customerID,
		Rating:     rating,
		Comment:    "on time",
	}
}

func OrderFilterByCustomer(customerID int64) model.OrderFilter {
	return model.OrderFilter{
		CustomerID: &customerID,
		Limit:      50,
		Offset:     0,
		Desc:       true,
	}
}

func OrderFilterByDriver(driverID int64) model.OrderFilter {
	return model.OrderFilter{
		DriverID: &driverID,
		Limit:    50,
		Offset:   0,
		Desc:     true,
	}
}

func OrderFilterByStatus(status model.OrderStatus) model.OrderFilter {
	return model.OrderFilter{
		Status: &status,
		Limit:  50,
		Offset: 0,
	}
}

func Ptr[T any](v T) *T {
	return &v
}
