package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/services"
)

// productView adds the public image URL to a product.
type productView struct {
	models.Product
	ImageURL string `json:"imageUrl,omitempty"`
}

func (h *Handlers) view(p models.Product) productView {
	v := productView{Product: p}
	if p.ImagePath != nil && h.Images != nil {
		v.ImageURL = h.Images.URL(*p.ImagePath)
	}
	return v
}

func (h *Handlers) viewPage(result models.PageResult[models.Product]) models.PageResult[productView] {
	items := make([]productView, len(result.Items))
	for i, p := range result.Items {
		items[i] = h.view(p)
	}
	return models.PageResult[productView]{Items: items, Total: result.Total, Page: result.Page, Size: result.Size}
}

// priceQuery parses an optional decimal query parameter.
func priceQuery(c *gin.Context, name string) (*decimal.Decimal, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		badRequest(c, "Invalid "+name)
		return nil, false
	}
	return &d, true
}

//
// --- Public Catalog ---
//

// SearchProducts handles GET /v1/products?q=&category=&min_price=&max_price=&page=&size=.
func (h *Handlers) SearchProducts(c *gin.Context) {
	var query services.BrowseQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "Invalid query: "+err.Error())
		return
	}
	var ok bool
	if query.MinPrice, ok = priceQuery(c, "min_price"); !ok {
		return
	}
	if query.MaxPrice, ok = priceQuery(c, "max_price"); !ok {
		return
	}

	result, err := h.Catalog.Browse(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.viewPage(result))
}

// GetProduct handles GET /v1/products/:id. Inactive products are hidden.
func (h *Handlers) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	product, err := h.Catalog.Get(c.Request.Context(), id, false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": h.view(*product)})
}

//
// --- Seller / Admin Catalog Management ---
//

// GetMyProducts handles GET /v1/seller/products and /v1/admin/products.
func (h *Handlers) GetMyProducts(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}
	result, err := h.Catalog.Manage(c.Request.Context(), principal(c), c.Query("q"), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.viewPage(result))
}

func (h *Handlers) CreateProduct(c *gin.Context) {
	var input services.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	product, err := h.Catalog.Create(c.Request.Context(), principal(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Product created", "product": h.view(*product)})
}

func (h *Handlers) UpdateProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	product, err := h.Catalog.Update(c.Request.Context(), principal(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": h.view(*product)})
}

// DeleteProduct refuses products that already appear in an order.
func (h *Handlers) DeleteProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Catalog.Delete(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}
