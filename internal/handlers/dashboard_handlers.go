package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/omegashop/storefront/internal/services"
)

const maxReportDays = 366

// reportWindow reads ?period=month or ?days=N (default 30).
func (h *Handlers) reportWindow(c *gin.Context) (services.Window, bool) {
	if c.Query("period") == "month" {
		return h.Reports.CurrentMonth(), true
	}
	days := 30
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxReportDays {
			badRequest(c, "days must be between 1 and 366")
			return services.Window{}, false
		}
		days = n
	}
	return h.Reports.LastDays(days), true
}

// GetDashboard handles GET /v1/dashboard with counters for the caller's role.
func (h *Handlers) GetDashboard(c *gin.Context) {
	stats, err := h.Dashboard.For(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetSellerReport handles GET /v1/seller/reports for the calling seller.
func (h *Handlers) GetSellerReport(c *gin.Context) {
	w, ok := h.reportWindow(c)
	if !ok {
		return
	}
	seller, err := h.Users.Get(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Reports.SellerReport(c.Request.Context(), seller, w))
}

// GetSalesBySeller handles GET /v1/admin/reports/sellers.
func (h *Handlers) GetSalesBySeller(c *gin.Context) {
	w, ok := h.reportWindow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.Reports.SalesBySeller(c.Request.Context(), w))
}

// GetSalesByProduct handles GET /v1/admin/reports/products.
func (h *Handlers) GetSalesByProduct(c *gin.Context) {
	w, ok := h.reportWindow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.Reports.SalesByProduct(c.Request.Context(), w))
}
