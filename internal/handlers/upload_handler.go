package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadProductImage handles POST /v1/{seller,admin}/products/:id/image.
// The multipart field is "file"; the previous image is removed on success.
func (h *Handlers) UploadProductImage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	// 1. Get the file from the request
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "No file uploaded")
		return
	}

	// 2. Validate, store and attach it
	product, err := h.Catalog.SetImage(c.Request.Context(), principal(c), id, file)
	if err != nil {
		respondError(c, err)
		return
	}

	// 3. Return the public URL
	v := h.view(*product)
	c.JSON(http.StatusOK, gin.H{"url": v.ImageURL, "product": v})
}
