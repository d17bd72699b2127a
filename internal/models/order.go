package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "Pending"
	OrderStatusApproved    OrderStatus = "Approved"
	OrderStatusDisapproved OrderStatus = "Disapproved"
	OrderStatusPreparing   OrderStatus = "Preparing"
	OrderStatusReady       OrderStatus = "Ready"
	OrderStatusCompleted   OrderStatus = "Completed"
	OrderStatusCancelled   OrderStatus = "Cancelled"
)

// PaymentStatus represents the payment state of an order, orthogonal to OrderStatus
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusFailed  PaymentStatus = "Failed"
)

// allowedNext maps each status to the set of statuses it may move to.
// Terminal statuses have no entry.
var allowedNext = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusApproved, OrderStatusDisapproved, OrderStatusCancelled},
	OrderStatusApproved:  {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusCompleted},
}

// ValidTransition reports whether an order may move from one status to another.
func ValidTransition(from, to OrderStatus) bool {
	for _, next := range allowedNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PriorStatuses returns every status from which target is directly reachable.
// Used to build the WHERE clause of a compare-and-set status update.
func PriorStatuses(target OrderStatus) []OrderStatus {
	var prior []OrderStatus
	for from, nexts := range allowedNext {
		for _, next := range nexts {
			if next == target {
				prior = append(prior, from)
			}
		}
	}
	return prior
}

// IsTerminal reports whether a status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	_, ok := allowedNext[s]
	return !ok
}

// ActiveStatuses lists the statuses of orders still in flight.
func ActiveStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPending, OrderStatusApproved, OrderStatusPreparing, OrderStatusReady}
}

// Order is a student's order with a canteen manager. It is never deleted;
// terminal orders are kept for history, feedback and analytics.
type Order struct {
	ID                 string        `gorm:"primary_key" json:"id"`
	StudentID          string        `gorm:"index" json:"studentId"`
	ManagerID          string        `gorm:"index" json:"managerId"`
	Items              []OrderItem   `gorm:"foreignkey:OrderID" json:"items"`
	Status             OrderStatus   `gorm:"index" json:"status"`
	PaymentStatus      PaymentStatus `json:"paymentStatus"`
	CanCancel          bool          `json:"canCancel"`
	OTP                *string       `json:"otp,omitempty"`
	CancellationReason string        `json:"cancellationReason,omitempty"`
	CancelledBy        string        `json:"cancelledBy,omitempty"`
	FeedbackRating     *int          `json:"feedbackRating,omitempty"`
	FeedbackComment    *string       `json:"feedbackComment,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
}

// OrderItem links an order to a menu item with a quantity. The MenuItem
// association is preloaded before an order leaves the lifecycle engine, so
// clients always see the resolved item, never a bare reference.
type OrderItem struct {
	ID         uint      `gorm:"primary_key" json:"-"`
	OrderID    string    `gorm:"index" json:"-"`
	MenuItemID string    `json:"menuItemId"`
	Quantity   int       `json:"quantity"`
	MenuItem   *MenuItem `gorm:"foreignkey:MenuItemID" json:"menuItem,omitempty"`
}

// HasFeedback reports whether the student already left feedback.
func (o *Order) HasFeedback() bool {
	return o.FeedbackRating != nil
}

// IsActive reports whether the order still needs manager attention.
func (o *Order) IsActive() bool {
	for _, s := range ActiveStatuses() {
		if o.Status == s {
			return true
		}
	}
	return false
}

// BeforeCreate assigns a UUID primary key when none is set.
func (o *Order) BeforeCreate(scope *gorm.Scope) error {
	if o.ID == "" {
		return scope.SetColumn("ID", uuid.New().String())
	}
	return nil
}
