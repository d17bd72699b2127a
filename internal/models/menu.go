package models

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// Category groups a manager's menu items. Categories are soft-deleted so
// existing menu items keep a resolvable reference.
type Category struct {
	ID        string `gorm:"primary_key" json:"id"`
	Name      string `json:"name"`
	ManagerID string `gorm:"index" json:"managerId"`
	IsDeleted bool   `json:"isDeleted"`
}

// MenuItem is a dish offered by one canteen manager.
type MenuItem struct {
	ID          string    `gorm:"primary_key" json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Description string    `json:"description,omitempty"`
	Discount    float64   `json:"discount"`
	IsSpecial   bool      `json:"isSpecial"`
	ManagerID   string    `gorm:"index" json:"managerId"`
	CategoryID  string    `json:"categoryId"`
	Category    *Category `gorm:"foreignkey:CategoryID" json:"category,omitempty"`
}

// EffectivePrice is the unit price after discount, floored at zero.
func (mi *MenuItem) EffectivePrice() float64 {
	price := mi.Price - mi.Discount
	if price < 0 {
		return 0
	}
	return price
}

// ValidateMenuItem validates a menu item before it is stored.
func ValidateMenuItem(item *MenuItem) error {
	if item.Name == "" {
		return fmt.Errorf("menu item name is required")
	}
	if item.Price <= 0 {
		return fmt.Errorf("menu item price must be greater than 0")
	}
	if item.Discount < 0 || item.Discount > item.Price {
		return fmt.Errorf("menu item discount must be between 0 and the price")
	}
	if item.CategoryID == "" {
		return fmt.Errorf("menu item category is required")
	}
	return nil
}

func (c *Category) BeforeCreate(scope *gorm.Scope) error {
	if c.ID == "" {
		return scope.SetColumn("ID", uuid.New().String())
	}
	return nil
}

func (mi *MenuItem) BeforeCreate(scope *gorm.Scope) error {
	if mi.ID == "" {
		return scope.SetColumn("ID", uuid.New().String())
	}
	return nil
}
