// Package lifecycle is the sole authority over order state. Every mutation
// goes through the Engine: it expresses each transition's guard as a store
// scope so check and effect are one conditional UPDATE, generates pickup
// OTPs, and hands the populated snapshot to the realtime publisher after
// every successful commit.
package lifecycle

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/jinzhu/gorm"

	"canteen/internal/models"
	"canteen/internal/monitoring"
	"canteen/internal/realtime"
	"canteen/internal/store"
)

// Actor identifies the authenticated caller of a transition.
type Actor struct {
	ID        string
	Role      models.Role
	ManagerID string
}

// ItemRequest is one line of a new order.
type ItemRequest struct {
	MenuItemID string `json:"menuItemId" binding:"required"`
	Quantity   int    `json:"quantity"`
}

// Engine validates and applies order state transitions.
type Engine struct {
	store   *store.OrderStore
	pub     realtime.Publisher
	metrics *monitoring.Metrics
	newOTP  func() string
}

func NewEngine(s *store.OrderStore, pub realtime.Publisher, metrics *monitoring.Metrics) *Engine {
	return &Engine{
		store:   s,
		pub:     pub,
		metrics: metrics,
		newOTP:  generateOTP,
	}
}

// generateOTP returns a 4-digit numeric pickup code. Collisions across
// orders are acceptable: the code is only ever compared within one order.
func generateOTP() string {
	return fmt.Sprintf("%04d", 1000+rand.Intn(9000))
}

// Place creates a new order for a student. Item references are validated
// once, here; they are not re-checked on later reads.
func (e *Engine) Place(actor Actor, managerID string, items []ItemRequest) (*models.Order, error) {
	if actor.Role != models.RoleStudent {
		return nil, fmt.Errorf("%w: only students place orders", ErrForbidden)
	}
	if managerID == "" {
		managerID = actor.ManagerID
	}
	if managerID == "" {
		return nil, fmt.Errorf("%w: student has no associated manager", ErrValidation)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", ErrValidation)
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: item quantity must be at least 1", ErrValidation)
		}
		if !seen[item.MenuItemID] {
			seen[item.MenuItemID] = true
			ids = append(ids, item.MenuItemID)
		}
	}

	exists, err := e.store.ManagerExists(managerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: unknown manager", ErrValidation)
	}
	count, err := e.store.CountMenuItems(managerID, ids)
	if err != nil {
		return nil, err
	}
	if count != len(ids) {
		return nil, fmt.Errorf("%w: invalid menu items in order", ErrValidation)
	}

	order := &models.Order{
		StudentID:     actor.ID,
		ManagerID:     managerID,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		CanCancel:     true,
	}
	for _, item := range items {
		order.Items = append(order.Items, models.OrderItem{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
		})
	}
	if err := e.store.Create(order); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.OrdersPlaced.Inc()
	}

	populated, err := e.store.Get(order.ID)
	if err != nil {
		return nil, err
	}
	e.publish(realtime.EventNewOrder, populated.ManagerID, populated)
	e.publish(realtime.EventOrderUpdate, populated.StudentID, populated)
	return populated, nil
}

// CancelByStudent cancels the student's own order while it is still
// cancellable and unpaid. Ready orders are excluded: once an OTP is out,
// the order only completes through pickup.
func (e *Engine) CancelByStudent(actor Actor, orderID string) (*models.Order, error) {
	canCancel := true
	rows, err := e.store.Update(store.Scope{
		ID:         orderID,
		StudentID:  actor.ID,
		StatusIn:   models.PriorStatuses(models.OrderStatusCancelled),
		PaymentNot: models.PaymentStatusPaid,
		CanCancel:  &canCancel,
	}, map[string]interface{}{
		"status":     string(models.OrderStatusCancelled),
		"can_cancel": false,
	})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, e.classifyStudentCancel(actor, orderID)
	}
	return e.finish(orderID, models.OrderStatusCancelled)
}

func (e *Engine) classifyStudentCancel(actor Actor, orderID string) error {
	order, err := e.store.Get(orderID)
	if err != nil {
		return notFoundOr(err)
	}
	switch {
	case order.StudentID != actor.ID:
		return ErrForbidden
	case order.PaymentStatus == models.PaymentStatusPaid:
		return fmt.Errorf("%w: cannot cancel paid order", ErrInvalidTransition)
	case !order.CanCancel || !order.IsActive():
		return fmt.Errorf("%w: order cannot be cancelled", ErrInvalidTransition)
	default:
		// Lost a race with a concurrent transition between our update and
		// this read; the caller should re-fetch.
		return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
	}
}

// CancelByManager cancels an Approved or Preparing order with a mandatory
// reason. The acting party is recorded on the order. Paid orders cannot be
// cancelled this way: a confirmed payment would need a refund path, so a
// concurrent ConfirmPayment and CancelByManager have exactly one winner.
func (e *Engine) CancelByManager(actor Actor, orderID, reason, cancelledBy string) (*models.Order, error) {
	if actor.Role != models.RoleManager {
		return nil, ErrForbidden
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: cancellation reason required", ErrValidation)
	}
	if cancelledBy == "" {
		cancelledBy = string(models.RoleManager)
	}
	rows, err := e.store.Update(store.Scope{
		ID:         orderID,
		ManagerID:  actor.ID,
		StatusIn:   []models.OrderStatus{models.OrderStatusApproved, models.OrderStatusPreparing},
		PaymentNot: models.PaymentStatusPaid,
	}, map[string]interface{}{
		"status":              string(models.OrderStatusCancelled),
		"can_cancel":          false,
		"cancellation_reason": reason,
		"cancelled_by":        cancelledBy,
	})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		order, err := e.store.Get(orderID)
		if err != nil {
			return nil, notFoundOr(err)
		}
		if order.ManagerID != actor.ID {
			return nil, ErrNotFound
		}
		if order.PaymentStatus == models.PaymentStatusPaid {
			return nil, fmt.Errorf("%w: cannot cancel paid order", ErrInvalidTransition)
		}
		return nil, ErrNotFound
	}
	return e.finish(orderID, models.OrderStatusCancelled)
}

// Disapprove rejects a Pending order with a mandatory reason.
func (e *Engine) Disapprove(actor Actor, orderID, reason string) (*models.Order, error) {
	if actor.Role != models.RoleManager {
		return nil, ErrForbidden
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: disapproval reason required", ErrValidation)
	}
	rows, err := e.store.Update(store.Scope{
		ID:        orderID,
		ManagerID: actor.ID,
		StatusIn:  []models.OrderStatus{models.OrderStatusPending},
	}, map[string]interface{}{
		"status":              string(models.OrderStatusDisapproved),
		"can_cancel":          false,
		"cancellation_reason": reason,
		"cancelled_by":        string(models.RoleManager),
	})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrNotFound
	}
	return e.finish(orderID, models.OrderStatusDisapproved)
}

// ConfirmPayment records manual UPI reconciliation: payment becomes Paid and
// the order Approved in the same write, and the order stops being
// cancellable by the student. Confirming an already Approved order is
// idempotent on status; later pipeline stages refuse it rather than regress.
func (e *Engine) ConfirmPayment(actor Actor, orderID string) (*models.Order, error) {
	if actor.Role != models.RoleManager {
		return nil, ErrForbidden
	}
	rows, err := e.store.Update(store.Scope{
		ID:        orderID,
		ManagerID: actor.ID,
		StatusIn:  []models.OrderStatus{models.OrderStatusPending, models.OrderStatusApproved},
	}, map[string]interface{}{
		"payment_status": string(models.PaymentStatusPaid),
		"status":         string(models.OrderStatusApproved),
		"can_cancel":     false,
	})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, e.classifyManagerMiss(actor, orderID)
	}
	return e.finish(orderID, models.OrderStatusApproved)
}

// Advance moves an order along the preparation pipeline. Only Approved,
// Preparing and Ready are reachable here; completion goes through
// VerifyPickup and cancellation through its dedicated transitions. Entering
// Ready generates a pickup OTP if none exists yet, in the same write.
func (e *Engine) Advance(actor Actor, orderID string, target models.OrderStatus) (*models.Order, error) {
	if actor.Role != models.RoleManager {
		return nil, ErrForbidden
	}
	switch target {
	case models.OrderStatusApproved, models.OrderStatusPreparing, models.OrderStatusReady:
	default:
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, target)
	}

	changes := map[string]interface{}{"status": string(target)}
	if target == models.OrderStatusReady {
		// A Ready order is pickup-only: cancellation closes and the OTP opens.
		changes["otp"] = gorm.Expr("COALESCE(otp, ?)", e.newOTP())
		changes["can_cancel"] = false
	}
	rows, err := e.store.Update(store.Scope{
		ID:        orderID,
		ManagerID: actor.ID,
		StatusIn:  models.PriorStatuses(target),
	}, changes)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, e.classifyManagerMiss(actor, orderID)
	}
	return e.finish(orderID, target)
}

// VerifyPickup completes an order when the supplied code matches the stored
// OTP exactly. The OTP is cleared in the same write.
func (e *Engine) VerifyPickup(actor Actor, orderID, otp string) (*models.Order, error) {
	if actor.Role != models.RoleManager {
		return nil, ErrForbidden
	}
	if otp == "" {
		return nil, fmt.Errorf("%w: otp required", ErrValidation)
	}
	rows, err := e.store.Update(store.Scope{
		ID:        orderID,
		ManagerID: actor.ID,
		StatusIn:  []models.OrderStatus{models.OrderStatusReady},
		OTPEquals: &otp,
	}, map[string]interface{}{
		"status": string(models.OrderStatusCompleted),
		"otp":    nil,
	})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, e.classifyPickupMiss(actor, orderID)
	}
	return e.finish(orderID, models.OrderStatusCompleted)
}

func (e *Engine) classifyPickupMiss(actor Actor, orderID string) error {
	order, err := e.store.Get(orderID)
	if err != nil {
		return notFoundOr(err)
	}
	switch {
	case order.ManagerID != actor.ID:
		return ErrNotFound
	case order.Status != models.OrderStatusReady:
		return fmt.Errorf("%w: order not ready", ErrInvalidTransition)
	default:
		return fmt.Errorf("%w: invalid otp", ErrValidation)
	}
}

// classifyManagerMiss explains a zero-row manager update: the order is either
// absent (or another manager's, indistinguishable by design) or in a status
// the transition does not start from.
func (e *Engine) classifyManagerMiss(actor Actor, orderID string) error {
	order, err := e.store.Get(orderID)
	if err != nil {
		return notFoundOr(err)
	}
	if order.ManagerID != actor.ID {
		return ErrNotFound
	}
	return fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
}

// AttachFeedback records a student's one-time feedback on a completed order.
func (e *Engine) AttachFeedback(actor Actor, orderID string, rating int, comment string) (*models.Order, error) {
	if actor.Role != models.RoleStudent {
		return nil, ErrForbidden
	}
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	rows, err := e.store.Update(store.Scope{
		ID:         orderID,
		StudentID:  actor.ID,
		StatusIn:   []models.OrderStatus{models.OrderStatusCompleted},
		NoFeedback: true,
	}, map[string]interface{}{
		"feedback_rating":  rating,
		"feedback_comment": comment,
	})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		order, err := e.store.Get(orderID)
		if err != nil {
			return nil, notFoundOr(err)
		}
		switch {
		case order.StudentID != actor.ID:
			return nil, ErrForbidden
		case order.Status != models.OrderStatusCompleted:
			return nil, fmt.Errorf("%w: feedback only after completion", ErrInvalidTransition)
		default:
			return nil, fmt.Errorf("%w: feedback already recorded", ErrValidation)
		}
	}
	return e.store.Get(orderID)
}

// Get returns one order visible to the actor.
func (e *Engine) Get(actor Actor, orderID string) (*models.Order, error) {
	order, err := e.store.Get(orderID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if order.StudentID != actor.ID && order.ManagerID != actor.ID {
		return nil, ErrForbidden
	}
	return order, nil
}

// ActiveOrders lists the manager's queue of in-flight orders.
func (e *Engine) ActiveOrders(actor Actor) ([]models.Order, error) {
	if actor.Role != models.RoleManager {
		return nil, ErrForbidden
	}
	return e.store.ListActive(actor.ID)
}

// OrdersFor lists all orders owned by the actor, role-scoped.
func (e *Engine) OrdersFor(actor Actor) ([]models.Order, error) {
	return e.store.ListByOwner(actor.ID, actor.Role)
}

// finish reloads the populated snapshot after a committed transition,
// records the metric and notifies both parties. Broadcast failure is
// non-fatal: the mutation already succeeded.
func (e *Engine) finish(orderID string, target models.OrderStatus) (*models.Order, error) {
	order, err := e.store.Get(orderID)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.Transitions.WithLabelValues(string(target)).Inc()
	}
	e.publish(realtime.EventOrderUpdate, order.StudentID, order)
	e.publish(realtime.EventOrderUpdate, order.ManagerID, order)
	return order, nil
}

func (e *Engine) publish(event, room string, order *models.Order) {
	if e.pub == nil {
		return
	}
	e.pub.Publish(room, event, order)
}

func notFoundOr(err error) error {
	if gorm.IsRecordNotFoundError(err) {
		return ErrNotFound
	}
	log.Printf("lifecycle: store read failed: %v", err)
	return err
}
