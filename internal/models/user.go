package models

import (
	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// Role discriminates the two kinds of accounts.
type Role string

const (
	RoleStudent Role = "student"
	RoleManager Role = "manager"
)

// User is a student or a canteen manager. Students carry a reference to the
// manager whose canteen they order from; managers carry the UPI id shown to
// students at checkout.
type User struct {
	ID        string `gorm:"primary_key" json:"id"`
	Name      string `json:"name"`
	Email     string `gorm:"unique_index" json:"email"`
	Password  string `json:"-"`
	Role      Role   `json:"role"`
	ManagerID string `json:"managerId,omitempty"`
	UPIID     string `json:"upiId,omitempty"`
}

func (u *User) BeforeCreate(scope *gorm.Scope) error {
	if u.ID == "" {
		return scope.SetColumn("ID", uuid.New().String())
	}
	return nil
}
