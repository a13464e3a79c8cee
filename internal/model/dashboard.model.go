package model

// Dashboard is the role-shaped stats card. Exactly one of the role fields is
// populated, matching the caller's role.
type Dashboard struct {
	Role     Role               `json:"role"`
	Customer *CustomerDashboard `json:"customer,omitempty"`
	Driver   *DriverDashboard   `json:"driver,omitempty"`
	Company  *CompanyDashboard  `json:"company,omitempty"`
}

type CustomerDashboard struct {
	TotalOrders     int64 `json:"total_orders"`
	ActiveOrders    int64 `json:"active_orders"`
	DeliveredOrders int64 `json:"delivered_orders"`
	CancelledOrders int64 `json:"cancelled_orders"`
}

type DriverDashboard struct {
	ActiveOrders    int64   `json:"active_orders"`
	DeliveredOrders int64   `json:"delivered_orders"`
	TotalEarnings   float64 `json:"total_earnings"`
	AverageRating   float64 `json:"average_rating"`
	TotalRatings    int64   `json:"total_ratings"`
}

type CompanyDashboard struct {
	TotalOrders     int64 `json:"total_orders"`
	PendingOrders   int64 `json:"pending_orders"`
	ConfirmedOrders int64 `json:"confirmed_orders"`
	DeliveredOrders int64 `json:"delivered_orders"`
	CancelledOrders int64 `json:"cancelled_orders"`
}
