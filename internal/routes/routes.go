package routes

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/omegashop/storefront/internal/handlers"
	"github.com/omegashop/storefront/internal/middleware"
	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/storage"
)

const sessionName = "omega_session"

// Options are the router settings taken from configuration.
type Options struct {
	CORSOrigin    string
	SessionSecret string
	UploadDir     string
}

// CORSMiddleware tells the browser that the configured frontend origin may
// call the API with credentials.
func CORSMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Allow only the configured frontend
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)

		// 2. Allow standard security credentials (the cart lives in a cookie)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		// 3. Allow the headers we actually use
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")

		// 4. Allow the HTTP methods we use in our API
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		// 5. Handle the "Preflight" OPTIONS request
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	// --- APPLY THE CORS GUARD ---
	router.Use(CORSMiddleware(opts.CORSOrigin))

	// --- Session store for the cart ---
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 7 * 24 * 3600, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	router.Use(sessions.Sessions(sessionName, store))

	if opts.UploadDir != "" {
		router.Static(storage.URLPrefix, opts.UploadDir)
	}

	authMW := middleware.AuthMiddleware(h.Tokens, h.Users)

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Auth Routes (Public) ---
		v1.POST("/register", h.Register)
		v1.POST("/login", h.Login)

		// --- Public Catalog ---
		v1.GET("/products", h.SearchProducts)
		v1.GET("/products/:id", h.GetProduct)
		v1.GET("/categories", h.GetAllCategories)
		v1.GET("/categories/tree", h.GetCategoryTree)
		v1.GET("/categories/:id", h.GetCategory)

		// --- Cart (session scoped, no login needed) ---
		cart := v1.Group("/cart")
		{
			cart.GET("", h.GetCart)
			cart.GET("/count", h.CartCount)
			cart.POST("/items", h.AddToCart)
			cart.PUT("/items/:product_id", h.UpdateCartItem)
			cart.DELETE("/items/:product_id", h.DeleteCartItem)
			cart.DELETE("", h.ClearCart)
		}

		// --- Protected Routes (Login Required) ---
		auth := v1.Group("/")
		auth.Use(authMW)
		{
			auth.GET("/profile/me", h.Me)
			auth.GET("/dashboard", h.GetDashboard)

			auth.POST("/checkout", middleware.RequireRoles(models.RoleClient), h.Checkout)
			auth.GET("/orders", h.GetMyOrders)
			auth.GET("/orders/:id", h.GetOrderDetails)
			auth.POST("/orders/:id/cancel", h.CancelOrder)
		}

		// --- Seller Routes ---
		seller := v1.Group("/seller")
		seller.Use(authMW, middleware.RequireRoles(models.RoleSeller, models.RoleAdmin))
		{
			seller.GET("/orders", h.GetSellerOrders)
			seller.GET("/orders/new", h.GetNewOrders)
			seller.GET("/orders/ready", h.GetReadyOrders)
			seller.POST("/orders/:id/confirm", h.ConfirmOrder)
			seller.POST("/orders/:id/reject", h.RejectOrder)
			seller.POST("/orders/:id/prepare", h.PrepareOrder)
			seller.POST("/orders/:id/assign", h.AssignCourier)
			seller.GET("/couriers", h.GetCouriers)

			seller.GET("/products", h.GetMyProducts)
			seller.POST("/products", h.CreateProduct)
			seller.PUT("/products/:id", h.UpdateProduct)
			seller.DELETE("/products/:id", h.DeleteProduct)
			seller.POST("/products/:id/image", h.UploadProductImage)

			seller.GET("/reports", middleware.RequireRoles(models.RoleSeller), h.GetSellerReport)
		}

		// --- Courier Routes ---
		courier := v1.Group("/courier")
		courier.Use(authMW, middleware.RequireRoles(models.RoleCourier))
		{
			courier.GET("/orders", h.GetCourierOrders)
			courier.POST("/orders/:id/start", h.StartDelivery)
			courier.POST("/orders/:id/complete", h.CompleteDelivery)
			courier.POST("/orders/:id/problem", h.ReportDeliveryProblem)
		}

		// --- Admin-Only Routes ---
		admin := v1.Group("/admin")
		admin.Use(authMW, middleware.RequireRoles(models.RoleAdmin))
		{
			admin.GET("/orders", h.GetAllOrders)
			admin.PATCH("/orders/:id/status", h.UpdateOrderStatus)
			admin.POST("/orders/:id/cancel", h.CancelOrder)

			admin.GET("/products", h.GetMyProducts)
			admin.POST("/products", h.CreateProduct)
			admin.PUT("/products/:id", h.UpdateProduct)
			admin.DELETE("/products/:id", h.DeleteProduct)
			admin.POST("/products/:id/image", h.UploadProductImage)

			admin.POST("/categories", h.CreateCategory)
			admin.PUT("/categories/:id", h.UpdateCategory)
			admin.DELETE("/categories/:id", h.DeleteCategory)

			admin.GET("/users", h.ListUsers)
			admin.POST("/users", h.CreateStaff)
			admin.PATCH("/users/:id/active", h.SetUserActive)

			admin.GET("/reports/sellers", h.GetSalesBySeller)
			admin.GET("/reports/products", h.GetSalesByProduct)
		}
	}

	return router
}
