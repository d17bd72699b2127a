package api

import (
	"net/http"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"golang.org/x/crypto/bcrypt"

	"canteen/internal/models"
)

type registerRequest struct {
	Name      string      `json:"name" binding:"required"`
	Email     string      `json:"email" binding:"required"`
	Password  string      `json:"password" binding:"required"`
	Role      models.Role `json:"role" binding:"required"`
	ManagerID string      `json:"managerId"`
	UPIID     string      `json:"upiId"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role != models.RoleStudent && req.Role != models.RoleManager {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}
	if req.Role == models.RoleManager && req.UPIID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "UPI ID is required for managers"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	user := models.User{
		Name:      req.Name,
		Email:     req.Email,
		Password:  string(hash),
		Role:      req.Role,
		ManagerID: req.ManagerID,
		UPIID:     req.UPIID,
	}
	if err := s.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Registration failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User registered"})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var user models.User
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":        user.ID,
		"role":      string(user.Role),
		"managerId": user.ManagerID,
		"email":     user.Email,
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": signed})
}

// handleListManagers is the public directory students pick a canteen from.
func (s *Server) handleListManagers(c *gin.Context) {
	var managers []models.User
	if err := s.db.Select("id, name").
		Where("role = ?", string(models.RoleManager)).
		Find(&managers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, managers)
}

// handleMe returns the caller's profile; students also get their manager's
// name and UPI id for the payment QR.
func (s *Server) handleMe(c *gin.Context) {
	actor := actorFrom(c)
	var user models.User
	if err := s.db.Where("id = ?", actor.ID).First(&user).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	resp := gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
	}
	if user.ManagerID != "" {
		var manager models.User
		err := s.db.Where("id = ?", user.ManagerID).First(&manager).Error
		switch {
		case err == nil:
			resp["manager"] = gin.H{
				"id":    manager.ID,
				"name":  manager.Name,
				"upiId": manager.UPIID,
			}
		case gorm.IsRecordNotFoundError(err):
			// dangling manager reference; return the profile without it
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}
	if user.Role == models.RoleManager {
		resp["upiId"] = user.UPIID
	}
	c.JSON(http.StatusOK, resp)
}
