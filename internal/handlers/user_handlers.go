package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/services"
)

// --- User Registration ---

// Register handles POST /v1/register and creates a CLIENT account.
func (h *Handlers) Register(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	// 2. --- Create Account ---
	user, err := h.Users.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Registered successfully", "user": user})
}

// --- Login ---

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /v1/login and returns a bearer token.
func (h *Handlers) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.Users.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.Tokens.Generate(user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Me handles GET /v1/profile/me.
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.Users.Get(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// --- Admin: Accounts ---

// CreateStaff handles POST /v1/admin/users.
func (h *Handlers) CreateStaff(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.Users.CreateStaff(c.Request.Context(), principal(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created", "user": user})
}

// ListUsers handles GET /v1/admin/users?role=SELLER.
func (h *Handlers) ListUsers(c *gin.Context) {
	role := models.Role(c.DefaultQuery("role", string(models.RoleClient)))
	users, err := h.Users.List(c.Request.Context(), principal(c), role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type SetActiveInput struct {
	Active *bool `json:"active" binding:"required"`
}

// SetUserActive handles PATCH /v1/admin/users/:id/active.
func (h *Handlers) SetUserActive(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input SetActiveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.Users.SetActive(c.Request.Context(), principal(c), id, *input.Active)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
