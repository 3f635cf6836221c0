package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/services"
)

//
// --- Cart Handlers (session scoped) ---
//

const cartSessionKey = "cart"

// loadCart reads the cart from the cookie session. A cart that cannot be
// decoded is discarded.
func loadCart(c *gin.Context) *models.Cart {
	cart := &models.Cart{}
	raw, ok := sessions.Default(c).Get(cartSessionKey).(string)
	if !ok || raw == "" {
		return cart
	}
	if err := json.Unmarshal([]byte(raw), cart); err != nil {
		log.WithError(err).Warn("discarding unreadable session cart")
		return &models.Cart{}
	}
	return cart
}

func saveCart(c *gin.Context, cart *models.Cart) error {
	sess := sessions.Default(c)
	if cart.IsEmpty() {
		sess.Delete(cartSessionKey)
		return errors.Wrap(sess.Save(), "save session")
	}
	raw, err := json.Marshal(cart)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	sess.Set(cartSessionKey, string(raw))
	return errors.Wrap(sess.Save(), "save session")
}

func cartResponse(cart *models.Cart) gin.H {
	items := cart.Items
	if items == nil {
		items = []models.CartItem{}
	}
	return gin.H{"items": items, "count": cart.Count(), "total": cart.Total()}
}

// GetCart handles GET /v1/cart.
func (h *Handlers) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, cartResponse(loadCart(c)))
}

// CartCount handles GET /v1/cart/count.
func (h *Handlers) CartCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": loadCart(c).Count()})
}

// AddToCartInput defines the JSON for adding an item to the cart.
type AddToCartInput struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity"`
}

// AddToCart handles POST /v1/cart/items. Repeated adds merge into one line.
func (h *Handlers) AddToCart(c *gin.Context) {
	var input AddToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input: "+err.Error())
		return
	}

	cart := loadCart(c)
	if err := h.Cart.Add(c.Request.Context(), cart, input.ProductID, input.Quantity); err != nil {
		respondError(c, err)
		return
	}
	if err := saveCart(c, cart); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cartResponse(cart))
}

type UpdateCartItemInput struct {
	Quantity int `json:"quantity"`
}

// UpdateCartItem handles PUT /v1/cart/items/:product_id. Zero removes the line.
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	var input UpdateCartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input: "+err.Error())
		return
	}

	cart := loadCart(c)
	if err := h.Cart.Update(c.Request.Context(), cart, productID, input.Quantity); err != nil {
		respondError(c, err)
		return
	}
	if err := saveCart(c, cart); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(cart))
}

// DeleteCartItem handles DELETE /v1/cart/items/:product_id.
func (h *Handlers) DeleteCartItem(c *gin.Context) {
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	cart := loadCart(c)
	h.Cart.Remove(cart, productID)
	if err := saveCart(c, cart); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(cart))
}

// ClearCart handles DELETE /v1/cart.
func (h *Handlers) ClearCart(c *gin.Context) {
	cart := loadCart(c)
	h.Cart.Clear(cart)
	if err := saveCart(c, cart); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(cart))
}

// Checkout handles POST /v1/checkout. The session cart is cleared only when
// the order was created.
func (h *Handlers) Checkout(c *gin.Context) {
	var input services.CheckoutRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input: "+err.Error())
		return
	}

	cart := loadCart(c)
	order, err := h.Orders.Checkout(c.Request.Context(), principal(c), cart, input)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := saveCart(c, cart); err != nil {
		log.WithError(err).WithField("orderId", order.ID).Error("order placed but session cart not cleared")
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Order placed", "order": order})
}
