package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"canteen/internal/models"
)

type topItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type analyticsResponse struct {
	Revenue           float64        `json:"revenue"`
	OrderCount        int            `json:"orderCount"`
	AverageOrderValue float64        `json:"averageOrderValue"`
	CustomerCount     int            `json:"customerCount"`
	DailyOrders       map[string]int `json:"dailyOrders"`
	TopItems          []topItem      `json:"topItems"`
}

// handleAnalytics aggregates a manager's order history: revenue over
// completed business (cancelled and disapproved orders excluded), order and
// customer counts, orders per day and top items by quantity.
func (s *Server) handleAnalytics(c *gin.Context) {
	actor := actorFrom(c)
	if actor.Role != models.RoleManager {
		c.JSON(http.StatusForbidden, gin.H{"error": "Manager privileges required"})
		return
	}

	var orders []models.Order
	err := s.db.Preload("Items").Preload("Items.MenuItem").
		Where("manager_id = ?", actor.ID).
		Find(&orders).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	resp := analyticsResponse{
		DailyOrders: make(map[string]int),
		TopItems:    []topItem{},
	}
	customers := make(map[string]bool)
	quantities := make(map[string]int)

	for _, order := range orders {
		resp.OrderCount++
		customers[order.StudentID] = true
		resp.DailyOrders[order.CreatedAt.Format("2006-01-02")]++

		if order.Status == models.OrderStatusCancelled || order.Status == models.OrderStatusDisapproved {
			continue
		}
		for _, item := range order.Items {
			if item.MenuItem == nil {
				continue
			}
			resp.Revenue += item.MenuItem.EffectivePrice() * float64(item.Quantity)
			quantities[item.MenuItem.Name] += item.Quantity
		}
	}

	resp.CustomerCount = len(customers)
	if resp.OrderCount > 0 {
		resp.AverageOrderValue = resp.Revenue / float64(resp.OrderCount)
	}
	for name, qty := range quantities {
		resp.TopItems = append(resp.TopItems, topItem{Name: name, Quantity: qty})
	}
	sort.Slice(resp.TopItems, func(i, j int) bool {
		if resp.TopItems[i].Quantity != resp.TopItems[j].Quantity {
			return resp.TopItems[i].Quantity > resp.TopItems[j].Quantity
		}
		return resp.TopItems[i].Name < resp.TopItems[j].Name
	})
	if len(resp.TopItems) > 5 {
		resp.TopItems = resp.TopItems[:5]
	}

	c.JSON(http.StatusOK, resp)
}
