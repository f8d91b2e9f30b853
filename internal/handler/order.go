package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/farmtrade/marketplace-api/internal/dto"
	"github.com/farmtrade/marketplace-api/internal/middleware"
	"github.com/farmtrade/marketplace-api/internal/model"
	"github.com/farmtrade/marketplace-api/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
	adminService *service.AdminService
}

func NewOrderHandler(orderService *service.OrderService, adminService *service.AdminService) *OrderHandler {
	return &OrderHandler{orderService: orderService, adminService: adminService}
}

func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req dto.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orderService.PlaceOrder(c.Request.Context(), middleware.GetUserID(c), req.Items)
	if err != nil {
		writeOrderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, service.ToOrderResponse(order))
}

func (h *OrderHandler) MyOrders(c *gin.Context) {
	orders, err := h.orderService.ListByRetailer(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderListResponse(orders))
}

func (h *OrderHandler) FarmerOrders(c *gin.Context) {
	orders, err := h.orderService.ListByFarmer(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderListResponse(orders))
}

func (h *OrderHandler) AllOrders(c *gin.Context) {
	orders, err := h.orderService.ListAll(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderListResponse(orders))
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), middleware.GetUserID(c), orderID)
	if err != nil {
		writeOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, service.ToOrderResponse(order))
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), middleware.GetUserID(c), orderID, req.Status)
	if err != nil {
		writeOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, service.ToOrderResponse(order))
}

func (h *OrderHandler) DashboardStats(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	switch middleware.GetUserRole(c) {
	case model.RoleFarmer:
		stats, err := h.adminService.FarmerDashboard(ctx, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.JSON(http.StatusOK, stats)
	case model.RoleRetailer:
		stats, err := h.adminService.RetailerDashboard(ctx, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.JSON(http.StatusOK, stats)
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrInvalidStateTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func toOrderListResponse(orders []model.Order) dto.OrderListResponse {
	var items []dto.OrderResponse
	for i := range orders {
		items = append(items, service.ToOrderResponse(&orders[i]))
	}
	return dto.OrderListResponse{Orders: items, Total: len(items)}
}
