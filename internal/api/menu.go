package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"

	"canteen/internal/models"
)

// menuScope returns the manager id whose menu the caller sees: managers see
// their own, students see their canteen's.
func menuScope(c *gin.Context) string {
	actor := actorFrom(c)
	if actor.Role == models.RoleManager {
		return actor.ID
	}
	return actor.ManagerID
}

func (s *Server) handleListCategories(c *gin.Context) {
	var categories []models.Category
	err := s.db.Where("manager_id = ? AND is_deleted = ?", menuScope(c), false).
		Find(&categories).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, categories)
}

type categoryRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) handleCreateCategory(c *gin.Context) {
	actor := actorFrom(c)
	if actor.Role != models.RoleManager {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category := models.Category{Name: req.Name, ManagerID: actor.ID}
	if err := s.db.Create(&category).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusCreated, category)
}

// handleDeleteCategory soft-deletes so menu items keep a resolvable reference.
func (s *Server) handleDeleteCategory(c *gin.Context) {
	actor := actorFrom(c)
	if actor.Role != models.RoleManager {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}
	res := s.db.Model(&models.Category{}).
		Where("id = ? AND manager_id = ?", c.Param("id"), actor.ID).
		Update("is_deleted", true)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}

func (s *Server) handleListMenu(c *gin.Context) {
	var items []models.MenuItem
	err := s.db.Preload("Category").
		Where("manager_id = ?", menuScope(c)).
		Find(&items).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, items)
}

type menuItemRequest struct {
	Name        string  `json:"name" binding:"required"`
	Price       float64 `json:"price" binding:"required"`
	Description string  `json:"description"`
	Discount    float64 `json:"discount"`
	IsSpecial   bool    `json:"isSpecial"`
	CategoryID  string  `json:"categoryId" binding:"required"`
}

func (s *Server) categoryExists(id, managerID string) (bool, error) {
	var count int
	err := s.db.Model(&models.Category{}).
		Where("id = ? AND manager_id = ? AND is_deleted = ?", id, managerID, false).
		Count(&count).Error
	return count > 0, err
}

func (s *Server) handleCreateMenuItem(c *gin.Context) {
	actor := actorFrom(c)
	if actor.Role != models.RoleManager {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}
	var req menuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ok, err := s.categoryExists(req.CategoryID, actor.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}

	item := models.MenuItem{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Discount:    req.Discount,
		IsSpecial:   req.IsSpecial,
		ManagerID:   actor.ID,
		CategoryID:  req.CategoryID,
	}
	if err := models.ValidateMenuItem(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) handleUpdateMenuItem(c *gin.Context) {
	actor := actorFrom(c)
	if actor.Role != models.RoleManager {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}
	var item models.MenuItem
	err := s.db.Where("id = ? AND manager_id = ?", c.Param("id"), actor.ID).First(&item).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var req menuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CategoryID != item.CategoryID {
		ok, err := s.categoryExists(req.CategoryID, actor.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
			return
		}
	}

	item.Name = req.Name
	item.Price = req.Price
	item.Description = req.Description
	item.Discount = req.Discount
	item.IsSpecial = req.IsSpecial
	item.CategoryID = req.CategoryID
	if err := models.ValidateMenuItem(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.db.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) handleDeleteMenuItem(c *gin.Context) {
	actor := actorFrom(c)
	if actor.Role != models.RoleManager {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}
	res := s.db.Where("id = ? AND manager_id = ?", c.Param("id"), actor.ID).
		Delete(&models.MenuItem{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item deleted"})
}
