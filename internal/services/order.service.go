package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/swiftdrop/delivery-gateway/internal/apperr"
	gateway "github.com/swiftdrop/delivery-gateway/internal/gateways"
	"github.com/swiftdrop/delivery-gateway/internal/model"
	"github.com/swiftdrop/delivery-gateway/internal/repository"
	"github.com/swiftdrop/delivery-gateway/pkg/logger"
)

// Actor is the authenticated caller, as resolved by the auth edge.
type Actor struct {
	ID   int64
	Role model.Role
}

type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) (*model.Order, error)
	Get(ctx context.Context, id string) (*model.Order, error)
	List(ctx context.Context, f model.OrderFilter) ([]*model.Order, int64, error)
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus, extra map[string]interface{}) error
	Assign(ctx context.Context, id string, driverID int64) error
	CountByCustomer(ctx context.Context, customerID int64, status *model.OrderStatus, exclude *model.OrderStatus, since *time.Time) (int64, error)
	CountByDriver(ctx context.Context, driverID int64, status *model.OrderStatus, exclude *model.OrderStatus, since *time.Time) (int64, error)
	CountAll(ctx context.Context, status *model.OrderStatus, exclude *model.OrderStatus, since *time.Time) (int64, error)
	SumDeliveredFees(ctx context.Context, driverID int64) (float64, error)
}

// UserDirectory resolves accounts and carries the rating aggregate. The
// transaction hook is here because the rating recompute locks the user row.
type UserDirectory interface {
	Get(ctx context.Context, id int64) (*model.User, error)
	GetForUpdate(ctx context.Context, id int64) (*model.User, error)
	UpdateRatingStats(ctx context.Context, driverID int64, stats model.DriverStats) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type RatingRepository interface {
	Create(ctx context.Context, r *model.Rating) (*model.Rating, error)
	ExistsForOrder(ctx context.Context, orderID string) (bool, error)
	AggregateForDriver(ctx context.Context, driverID int64) (model.DriverStats, error)
}

// DistanceResolver answers routing queries. Optional: a nil resolver means
// every order falls back to the weight-based fee.
type DistanceResolver interface {
	Distance(ctx context.Context, origin, dest gateway.LatLng) (*gateway.Route, error)
}

// Dispatcher fans a notification out to its recipients. Order transitions
// use the best-effort form: a push problem never blocks the transition.
type Dispatcher interface {
	DispatchBestEffort(ctx context.Context, p model.DispatchRequest)
}

type OrderService struct {
	orderRepo  OrderRepository
	users      UserDirectory
	ratingRepo RatingRepository
	maps       DistanceResolver
	dispatcher Dispatcher

	feeBase         float64
	feeWeightFactor float64
}

func NewOrderService(orderRepo OrderRepository, users UserDirectory, ratingRepo RatingRepository, maps DistanceResolver, dispatcher Dispatcher, feeBase, feeWeightFactor float64) *OrderService {
	return &OrderService{
		orderRepo:       orderRepo,
		users:           users,
		ratingRepo:      ratingRepo,
		maps:            maps,
		dispatcher:      dispatcher,
		feeBase:         feeBase,
		feeWeightFactor: feeWeightFactor,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Create places a new order for the acting customer. The fee is quoted at
// creation time: distance-based when both endpoints carry coordinates and
// the route resolves, weight-based otherwise.
func (s *OrderService) Create(ctx context.Context, actor Actor, p model.OrderCreateRequest) (*model.Order, error) {
	if actor.Role != model.RoleCustomer {
		return nil, apperr.New(apperr.KindForbidden, "only customers can place orders")
	}
	p.CustomerID = actor.ID

	if err := p.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}

	customer, err := s.users.Get(ctx, p.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "customer not found")
		}
		return nil, err
	}

	o := &model.Order{
		CustomerID:       p.CustomerID,
		OrderRef:         p.OrderRef,
		CompanyName:      p.CompanyName,
		Description:      p.Description,
		ProductWeight:    p.ProductWeight,
		ProductAmount:    p.ProductAmount,
		PickupLocation:   p.PickupLocation,
		PickupLat:        p.PickupLat,
		PickupLng:        p.PickupLng,
		DeliveryLocation: p.DeliveryLocation,
		DeliveryLat:      p.DeliveryLat,
		DeliveryLng:      p.DeliveryLng,
		Status:           model.OrderStatusPending,
	}

	s.quoteFee(ctx, o, p, customer)

	created, err := s.orderRepo.Create(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.notifyOrder(ctx, []int64{created.CustomerID}, created,
		"Order Placed",
		fmt.Sprintf("Your order #%s has been placed and is awaiting confirmation", created.ID))

	return created, nil
}

// quoteFee fills DistanceKm, DeliveryFee and ExpectedDeliveryTime on o. The
// route lookup is advisory: any failure falls back to the weight formula.
func (s *OrderService) quoteFee(ctx context.Context, o *model.Order, p model.OrderCreateRequest, customer *model.User) {
	if p.HasCoordinates() && s.maps != nil {
		route, err := s.maps.Distance(ctx,
			gateway.LatLng{Lat: *p.PickupLat, Lng: *p.PickupLng},
			gateway.LatLng{Lat: *p.DeliveryLat, Lng: *p.DeliveryLng})
		if err == nil {
			perKm := customer.FeePerKm
			if perKm <= 0 {
				perKm = s.feeWeightFactor
			}
			o.DistanceKm = route.DistanceKm
			o.DeliveryFee = round2(route.DistanceKm * perKm)
			if route.DurationMinutes > 0 {
				eta := time.Now().Add(time.Duration(route.DurationMinutes * float64(time.Minute)))
				o.ExpectedDeliveryTime = &eta
			}
			return
		}
		logger.Warn("distance lookup failed, using weight-based fee", "error", err)
	}

	o.DeliveryFee = round2(s.feeBase + p.ProductWeight*s.feeWeightFactor)
}

// Confirm moves a pending order to confirmed. Only the ordering customer
// may confirm; confirmation is their commitment, not the company's.
func (s *OrderService) Confirm(ctx context.Context, actor Actor, orderID string) (*model.Order, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if actor.Role != model.RoleCustomer || o.CustomerID != actor.ID {
		return nil, apperr.New(apperr.KindForbidden, "only the ordering customer can confirm")
	}

	switch o.Status {
	case model.OrderStatusPending:
	case model.OrderStatusConfirmed:
		return nil, apperr.Newf(apperr.KindConflict, "order #%s is already confirmed", orderID)
	default:
		return nil, apperr.Newf(apperr.KindInvalidTransition, "order #%s cannot be confirmed from status %s", orderID, o.Status)
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, model.OrderStatusConfirmed, nil); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatusConfirmed

	s.notifyOrder(ctx, []int64{o.CustomerID}, o,
		"Order Confirmed",
		fmt.Sprintf("Your order #%s has been confirmed and will be assigned to a driver soon", o.ID))

	return o, nil
}

// Cancel cancels the caller's own order. Confirmation locks cancellation:
// once the company has confirmed, the customer can no longer back out.
func (s *OrderService) Cancel(ctx context.Context, actor Actor, orderID string) (*model.Order, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if actor.Role != model.RoleCustomer || o.CustomerID != actor.ID {
		return nil, apperr.New(apperr.KindForbidden, "only the ordering customer can cancel")
	}

	switch {
	case o.Status == model.OrderStatusCancelled:
		return nil, apperr.Newf(apperr.KindConflict, "order #%s is already cancelled", orderID)
	case !o.Status.Cancellable():
		return nil, apperr.Newf(apperr.KindInvalidTransition, "order #%s cannot be cancelled from status %s", orderID, o.Status)
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, model.OrderStatusCancelled, nil); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatusCancelled

	recipients := []int64{o.CustomerID}
	if o.AssignDriverID != nil {
		recipients = append(recipients, *o.AssignDriverID)
	}
	s.notifyOrder(ctx, recipients, o,
		"Order Cancelled",
		fmt.Sprintf("Order #%s has been cancelled", o.ID))

	return o, nil
}

// Accept attaches the acting driver to an unassigned order. Any
// non-terminal order can be claimed; the underlying write is a
// compare-and-set, so of N concurrent acceptors exactly one wins and the
// rest get a conflict.
func (s *OrderService) Accept(ctx context.Context, actor Actor, orderID string) (*model.Order, error) {
	if actor.Role != model.RoleDriver {
		return nil, apperr.New(apperr.KindForbidden, "only drivers can accept orders")
	}

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch {
	case o.AssignDriverID != nil:
		return nil, apperr.Newf(apperr.KindConflict, "order #%s already has a driver", orderID)
	case o.Status.Terminal():
		return nil, apperr.Newf(apperr.KindInvalidTransition, "order #%s is already %s", orderID, o.Status)
	}

	if err := s.orderRepo.Assign(ctx, orderID, actor.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyAssigned):
			return nil, apperr.Newf(apperr.KindConflict, "order #%s already has a driver", orderID)
		case errors.Is(err, repository.ErrOrderNotFound):
			return nil, apperr.Newf(apperr.KindNotFound, "order #%s not found", orderID)
		}
		return nil, err
	}

	o.Status = model.OrderStatusAssigned
	o.AssignDriverID = &actor.ID

	s.notifyOrder(ctx, []int64{o.CustomerID}, o,
		"Order Accepted",
		fmt.Sprintf("Your order #%s has been accepted by a driver", o.ID))

	return o, nil
}

// statusCopy is the customer-facing notification text per driver-reported
// status.
var statusCopy = map[model.OrderStatus][2]string{
	model.OrderStatusPickedUp:  {"Order Picked Up", "Your order #%s has been picked up"},
	model.OrderStatusOnTheWay:  {"Order On The Way", "Your order #%s is on the way"},
	model.OrderStatusDelivered: {"Order Delivered", "Your order #%s has been delivered"},
}

// UpdateStatus lets the assigned driver report delivery progress. Only the
// closed driver target set is accepted; delivered stamps the actual
// delivery time.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, orderID string, target model.OrderStatus) (*model.Order, error) {
	if !model.DriverTargetStatuses[target] {
		return nil, apperr.Newf(apperr.KindValidation, "status %q is not a valid driver status", target)
	}

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if actor.Role != model.RoleDriver || o.AssignDriverID == nil || *o.AssignDriverID != actor.ID {
		return nil, apperr.New(apperr.KindForbidden, "only the assigned driver can update this order")
	}
	if o.Status.Terminal() {
		return nil, apperr.Newf(apperr.KindInvalidTransition, "order #%s is already %s", orderID, o.Status)
	}

	var extra map[string]interface{}
	now := time.Now()
	if target == model.OrderStatusDelivered {
		extra = map[string]interface{}{"actual_delivery_time": now}
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, target, extra); err != nil {
		return nil, err
	}
	o.Status = target
	if target == model.OrderStatusDelivered {
		o.ActualDeliveryTime = &now
	}

	copyPair := statusCopy[target]
	s.notifyOrder(ctx, []int64{o.CustomerID}, o, copyPair[0], fmt.Sprintf(copyPair[1], o.ID))

	return o, nil
}

// RateDriver records the customer's rating for their order's driver and
// recomputes the driver's aggregate inside one transaction, under a lock on
// the driver row. A driver can be rated as soon as one is assigned.
func (s *OrderService) RateDriver(ctx context.Context, actor Actor, p model.RateDriverRequest) (*model.Rating, error) {
	if err := p.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}

	o, err := s.getOrder(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}

	if actor.Role != model.RoleCustomer || o.CustomerID != actor.ID {
		return nil, apperr.New(apperr.KindForbidden, "only the ordering customer can rate")
	}
	if o.AssignDriverID == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "order #%s has no driver to rate", p.OrderID)
	}
	driverID := *o.AssignDriverID

	exists, err := s.ratingRepo.ExistsForOrder(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Newf(apperr.KindConflict, "order #%s is already rated", p.OrderID)
	}

	var created *model.Rating
	err = s.users.WithinTransaction(ctx, func(ctx context.Context) error {
		// Lock the driver row first so concurrent ratings for the same
		// driver serialize their recomputes.
		if _, err := s.users.GetForUpdate(ctx, driverID); err != nil {
			return err
		}

		created, err = s.ratingRepo.Create(ctx, &model.Rating{
			OrderID:    p.OrderID,
			DriverID:   driverID,
			CustomerID: actor.ID,
			Rating:     p.Rating,
			Comment:    p.Comment,
		})
		if err != nil {
			return fmt.Errorf("create rating: %w", err)
		}

		stats, err := s.ratingRepo.AggregateForDriver(ctx, driverID)
		if err != nil {
			return fmt.Errorf("aggregate ratings: %w", err)
		}

		return s.users.UpdateRatingStats(ctx, driverID, stats)
	})
	if err != nil {
		return nil, err
	}

	s.notifyOrder(ctx, []int64{driverID}, o,
		"New Rating",
		fmt.Sprintf("You received a %.1f star rating for order #%s", p.Rating, p.OrderID))

	return created, nil
}

// Detail returns one order with role-based access: the owning customer, the
// assigned driver and the company may see it.
func (s *OrderService) Detail(ctx context.Context, actor Actor, orderID string) (*model.Order, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.Role == model.RoleCompany:
	case actor.Role == model.RoleCustomer && o.CustomerID == actor.ID:
	case actor.Role == model.RoleDriver && o.AssignDriverID != nil && *o.AssignDriverID == actor.ID:
	case actor.Role == model.RoleDriver && o.Status == model.OrderStatusConfirmed:
		// Drivers may inspect unclaimed confirmed orders before accepting.
	default:
		return nil, apperr.New(apperr.KindForbidden, "no access to this order")
	}

	return o, nil
}

// ListMine lists the caller's own orders: placed orders for customers,
// assigned orders for drivers, everything for the company.
func (s *OrderService) ListMine(ctx context.Context, actor Actor, f model.OrderFilter) ([]*model.Order, int64, error) {
	switch actor.Role {
	case model.RoleCustomer:
		f.CustomerID = &actor.ID
		f.DriverID = nil
	case model.RoleDriver:
		f.DriverID = &actor.ID
		f.CustomerID = nil
	case model.RoleCompany:
	default:
		return nil, 0, apperr.New(apperr.KindForbidden, "unknown role")
	}
	f.Desc = true
	return s.orderRepo.List(ctx, f)
}

// ListPending lists confirmed, still unassigned orders for drivers to pick
// from.
func (s *OrderService) ListPending(ctx context.Context, actor Actor, f model.OrderFilter) ([]*model.Order, int64, error) {
	if actor.Role != model.RoleDriver && actor.Role != model.RoleCompany {
		return nil, 0, apperr.New(apperr.KindForbidden, "only drivers can browse pending orders")
	}

	status := model.OrderStatusConfirmed
	f.Status = &status
	f.CustomerID = nil
	f.DriverID = nil
	f.Desc = false
	return s.orderRepo.List(ctx, f)
}

// Dashboard assembles the caller's stats card.
func (s *OrderService) Dashboard(ctx context.Context, actor Actor) (*model.Dashboard, error) {
	switch actor.Role {
	case model.RoleCustomer:
		return s.customerDashboard(ctx, actor.ID)
	case model.RoleDriver:
		return s.driverDashboard(ctx, actor.ID)
	case model.RoleCompany:
		return s.companyDashboard(ctx)
	}
	return nil, apperr.New(apperr.KindForbidden, "unknown role")
}

func (s *OrderService) customerDashboard(ctx context.Context, customerID int64) (*model.Dashboard, error) {
	delivered := model.OrderStatusDelivered
	cancelled := model.OrderStatusCancelled

	total, err := s.orderRepo.CountByCustomer(ctx, customerID, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	deliveredCount, err := s.orderRepo.CountByCustomer(ctx, customerID, &delivered, nil, nil)
	if err != nil {
		return nil, err
	}
	cancelledCount, err := s.orderRepo.CountByCustomer(ctx, customerID, &cancelled, nil, nil)
	if err != nil {
		return nil, err
	}

	return &model.Dashboard{
		Role: model.RoleCustomer,
		Customer: &model.CustomerDashboard{
			TotalOrders:     total,
			ActiveOrders:    total - deliveredCount - cancelledCount,
			DeliveredOrders: deliveredCount,
			CancelledOrders: cancelledCount,
		},
	}, nil
}

func (s *OrderService) driverDashboard(ctx context.Context, driverID int64) (*model.Dashboard, error) {
	delivered := model.OrderStatusDelivered

	total, err := s.orderRepo.CountByDriver(ctx, driverID, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	deliveredCount, err := s.orderRepo.CountByDriver(ctx, driverID, &delivered, nil, nil)
	if err != nil {
		return nil, err
	}
	earnings, err := s.orderRepo.SumDeliveredFees(ctx, driverID)
	if err != nil {
		return nil, err
	}
	driver, err := s.users.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}

	return &model.Dashboard{
		Role: model.RoleDriver,
		Driver: &model.DriverDashboard{
			ActiveOrders:    total - deliveredCount,
			DeliveredOrders: deliveredCount,
			TotalEarnings:   earnings,
			AverageRating:   driver.AverageRating,
			TotalRatings:    driver.TotalRatings,
		},
	}, nil
}

func (s *OrderService) companyDashboard(ctx context.Context) (*model.Dashboard, error) {
	card := &model.CompanyDashboard{}

	total, err := s.orderRepo.CountAll(ctx, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	card.TotalOrders = total

	for status, dst := range map[model.OrderStatus]*int64{
		model.OrderStatusPending:   &card.PendingOrders,
		model.OrderStatusConfirmed: &card.ConfirmedOrders,
		model.OrderStatusDelivered: &card.DeliveredOrders,
		model.OrderStatusCancelled: &card.CancelledOrders,
	} {
		st := status
		count, err := s.orderRepo.CountAll(ctx, &st, nil, nil)
		if err != nil {
			return nil, err
		}
		*dst = count
	}

	return &model.Dashboard{Role: model.RoleCompany, Company: card}, nil
}

func (s *OrderService) getOrder(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := s.orderRepo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "order #%s not found", orderID)
		}
		return nil, err
	}
	return o, nil
}

// notifyOrder pushes an order event to the given recipients. Best effort by
// contract: transitions never fail because a notification could not be
// dispatched.
func (s *OrderService) notifyOrder(ctx context.Context, recipients []int64, o *model.Order, title, message string) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.DispatchBestEffort(ctx, model.DispatchRequest{
		Title:        title,
		Message:      message,
		RecipientIDs: recipients,
		Data: map[string]any{
			"order_id": o.ID,
			"status":   string(o.Status),
		},
	})
}
