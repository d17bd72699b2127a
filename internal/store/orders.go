// Package store is the persistence layer for orders. It carries no transition
// policy: the lifecycle engine decides which preconditions guard a write and
// expresses them as a Scope, the store turns that Scope into a single
// conditional UPDATE so the guard check and the effect hit the database as one
// indivisible statement.
package store

import (
	"github.com/jinzhu/gorm"

	"canteen/internal/models"
)

// Scope narrows a read or write to orders matching the caller's
// preconditions. Zero-valued fields are ignored.
type Scope struct {
	ID         string
	StudentID  string
	ManagerID  string
	StatusIn   []models.OrderStatus
	PaymentNot models.PaymentStatus
	CanCancel  *bool
	OTPEquals  *string
	NoFeedback bool
}

// OrderStore provides keyed access to order records.
type OrderStore struct {
	db *gorm.DB
}

func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) scoped(scope Scope) *gorm.DB {
	q := s.db.Model(&models.Order{})
	if scope.ID != "" {
		q = q.Where("id = ?", scope.ID)
	}
	if scope.StudentID != "" {
		q = q.Where("student_id = ?", scope.StudentID)
	}
	if scope.ManagerID != "" {
		q = q.Where("manager_id = ?", scope.ManagerID)
	}
	if len(scope.StatusIn) > 0 {
		q = q.Where("status IN (?)", statusStrings(scope.StatusIn))
	}
	if scope.PaymentNot != "" {
		q = q.Where("payment_status <> ?", string(scope.PaymentNot))
	}
	if scope.CanCancel != nil {
		q = q.Where("can_cancel = ?", *scope.CanCancel)
	}
	if scope.OTPEquals != nil {
		q = q.Where("otp = ?", *scope.OTPEquals)
	}
	if scope.NoFeedback {
		q = q.Where("feedback_rating IS NULL")
	}
	return q
}

// Create persists a new order together with its items.
func (s *OrderStore) Create(order *models.Order) error {
	return s.db.Create(order).Error
}

// Get returns the order with its items and menu details resolved.
// Returns gorm.ErrRecordNotFound when no such order exists.
func (s *OrderStore) Get(id string) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("Items").Preload("Items.MenuItem").
		Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Update applies changes to every order matching the scope and reports how
// many rows matched. Zero rows means the guard did not hold against the
// current stored state; the caller classifies why.
func (s *OrderStore) Update(scope Scope, changes map[string]interface{}) (int64, error) {
	res := s.scoped(scope).Updates(changes)
	return res.RowsAffected, res.Error
}

// ListActive returns a manager's orders still in flight.
func (s *OrderStore) ListActive(managerID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("Items").Preload("Items.MenuItem").
		Where("manager_id = ? AND status IN (?)", managerID, statusStrings(models.ActiveStatuses())).
		Order("created_at").
		Find(&orders).Error
	return orders, err
}

// ListByOwner returns every order owned by the given user: a student's own
// orders, or all orders placed with a manager.
func (s *OrderStore) ListByOwner(userID string, role models.Role) ([]models.Order, error) {
	column := "manager_id"
	if role == models.RoleStudent {
		column = "student_id"
	}
	var orders []models.Order
	err := s.db.Preload("Items").Preload("Items.MenuItem").
		Where(column+" = ?", userID).
		Order("created_at").
		Find(&orders).Error
	return orders, err
}

// CountMenuItems reports how many of the given menu item ids exist for the
// manager. Used once at order creation to validate item references.
func (s *OrderStore) CountMenuItems(managerID string, ids []string) (int, error) {
	var count int
	err := s.db.Model(&models.MenuItem{}).
		Where("manager_id = ? AND id IN (?)", managerID, ids).
		Count(&count).Error
	return count, err
}

// ManagerExists reports whether a manager account with the given id exists.
func (s *OrderStore) ManagerExists(id string) (bool, error) {
	var count int
	err := s.db.Model(&models.User{}).
		Where("id = ? AND role = ?", id, string(models.RoleManager)).
		Count(&count).Error
	return count > 0, err
}

func statusStrings(statuses []models.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
