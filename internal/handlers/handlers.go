package handlers

import (
	"github.com/omegashop/storefront/internal/auth"
	"github.com/omegashop/storefront/internal/services"
	"github.com/omegashop/storefront/internal/storage"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	Users      *services.UserService
	Catalog    *services.CatalogService
	Categories *services.CategoryService
	Cart       *services.CartService
	Orders     *services.OrderService
	Reports    *services.ReportService
	Dashboard  *services.DashboardService

	Tokens *auth.TokenManager
	Images *storage.Local
}
