package database

import (
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL dialect
	_ "github.com/mattn/go-sqlite3"              // SQLite driver

	"canteen/internal/models"
)

// Open connects to the database and migrates the schema. The returned handle
// is owned by the caller; pass it down, close it at shutdown.
func Open(dialect, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema and the lookup indexes the order
// store depends on.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.MenuItem{},
		&models.Order{},
		&models.OrderItem{},
	).Error; err != nil {
		return err
	}
	return db.Model(&models.Order{}).
		AddIndex("idx_orders_manager_status", "manager_id", "status").Error
}

// Close closes the database connection.
func Close(db *gorm.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
