package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/omegashop/storefront/internal/models"
)

type commentInput struct {
	Comment string `json:"comment"`
}

// bindComment reads an optional {"comment": "..."} body. An empty body,
// chunked or not, means no comment.
func bindComment(c *gin.Context) (string, bool) {
	var input commentInput
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		if errors.Is(err, io.EOF) {
			return "", true
		}
		badRequest(c, "Invalid input: "+err.Error())
		return "", false
	}
	return input.Comment, true
}

// orderStatusQuery reads an optional ?status= filter.
func orderStatusQuery(c *gin.Context) (*models.OrderStatus, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	status := models.OrderStatus(raw)
	if !status.Valid() {
		badRequest(c, "Unknown order status "+raw)
		return nil, false
	}
	return &status, true
}

func deliveryStatusQuery(c *gin.Context) (*models.DeliveryStatus, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	status := models.DeliveryStatus(raw)
	if !status.Valid() {
		badRequest(c, "Unknown delivery status "+raw)
		return nil, false
	}
	return &status, true
}

func respondOrder(c *gin.Context, order *models.Order, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func respondOrders(c *gin.Context, result models.PageResult[models.Order], err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

//
// --- Client ---
//

// GetMyOrders handles GET /v1/orders.
func (h *Handlers) GetMyOrders(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}
	result, err := h.Orders.ListMine(c.Request.Context(), principal(c), page)
	respondOrders(c, result, err)
}

// GetOrderDetails handles GET /v1/orders/:id for anyone allowed to see the order.
func (h *Handlers) GetOrderDetails(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := h.Orders.Get(c.Request.Context(), principal(c), id)
	respondOrder(c, order, err)
}

// CancelOrder handles POST /v1/orders/:id/cancel and its admin twin.
func (h *Handlers) CancelOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := h.Orders.Cancel(c.Request.Context(), principal(c), id)
	respondOrder(c, order, err)
}

//
// --- Seller ---
//

// GetSellerOrders handles GET /v1/seller/orders?status=.
func (h *Handlers) GetSellerOrders(c *gin.Context) {
	status, ok := orderStatusQuery(c)
	if !ok {
		return
	}
	page, ok := bindPage(c)
	if !ok {
		return
	}
	result, err := h.Orders.ListForSeller(c.Request.Context(), principal(c), status, page)
	respondOrders(c, result, err)
}

// GetNewOrders handles GET /v1/seller/orders/new, oldest first.
func (h *Handlers) GetNewOrders(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}
	result, err := h.Orders.ListNew(c.Request.Context(), principal(c), page)
	respondOrders(c, result, err)
}

// GetReadyOrders handles GET /v1/seller/orders/ready.
func (h *Handlers) GetReadyOrders(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}
	result, err := h.Orders.ListReadyForDelivery(c.Request.Context(), principal(c), page)
	respondOrders(c, result, err)
}

func (h *Handlers) ConfirmOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	comment, ok := bindComment(c)
	if !ok {
		return
	}
	order, err := h.Orders.Confirm(c.Request.Context(), principal(c), id, comment)
	respondOrder(c, order, err)
}

func (h *Handlers) RejectOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	comment, ok := bindComment(c)
	if !ok {
		return
	}
	order, err := h.Orders.Reject(c.Request.Context(), principal(c), id, comment)
	respondOrder(c, order, err)
}

type PrepareInput struct {
	InvoiceNumber string `json:"invoiceNumber"`
	Comment       string `json:"comment"`
}

// PrepareOrder handles POST /v1/seller/orders/:id/prepare.
func (h *Handlers) PrepareOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input PrepareInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, "Invalid input: "+err.Error())
			return
		}
	}
	order, err := h.Orders.PrepareForDelivery(c.Request.Context(), principal(c), id, input.InvoiceNumber, input.Comment)
	respondOrder(c, order, err)
}

type AssignCourierInput struct {
	CourierID int64 `json:"courierId" binding:"required"`
}

// AssignCourier handles POST /v1/seller/orders/:id/assign.
func (h *Handlers) AssignCourier(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input AssignCourierInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input: "+err.Error())
		return
	}
	order, err := h.Orders.AssignCourier(c.Request.Context(), principal(c), id, input.CourierID)
	respondOrder(c, order, err)
}

// GetCouriers handles GET /v1/seller/couriers.
func (h *Handlers) GetCouriers(c *gin.Context) {
	couriers, err := h.Orders.Couriers(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if couriers == nil {
		couriers = []models.User{}
	}
	c.JSON(http.StatusOK, gin.H{"couriers": couriers})
}

//
// --- Courier ---
//

// GetCourierOrders handles GET /v1/courier/orders?status=IN_TRANSIT.
func (h *Handlers) GetCourierOrders(c *gin.Context) {
	status, ok := deliveryStatusQuery(c)
	if !ok {
		return
	}
	page, ok := bindPage(c)
	if !ok {
		return
	}
	result, err := h.Orders.ListForCourier(c.Request.Context(), principal(c), status, page)
	respondOrders(c, result, err)
}

func (h *Handlers) StartDelivery(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := h.Orders.StartDelivery(c.Request.Context(), principal(c), id)
	respondOrder(c, order, err)
}

func (h *Handlers) CompleteDelivery(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	comment, ok := bindComment(c)
	if !ok {
		return
	}
	order, err := h.Orders.CompleteDelivery(c.Request.Context(), principal(c), id, comment)
	respondOrder(c, order, err)
}

func (h *Handlers) ReportDeliveryProblem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	comment, ok := bindComment(c)
	if !ok {
		return
	}
	order, err := h.Orders.MarkProblem(c.Request.Context(), principal(c), id, comment)
	respondOrder(c, order, err)
}

//
// --- Admin ---
//

// GetAllOrders handles GET /v1/admin/orders?status=.
func (h *Handlers) GetAllOrders(c *gin.Context) {
	status, ok := orderStatusQuery(c)
	if !ok {
		return
	}
	page, ok := bindPage(c)
	if !ok {
		return
	}
	result, err := h.Orders.ListAll(c.Request.Context(), principal(c), status, page)
	respondOrders(c, result, err)
}

type UpdateStatusInput struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// UpdateOrderStatus handles PATCH /v1/admin/orders/:id/status.
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input UpdateStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input: "+err.Error())
		return
	}
	order, err := h.Orders.UpdateStatus(c.Request.Context(), principal(c), id, input.Status)
	respondOrder(c, order, err)
}
