package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the model for the 'products' table.
type Product struct {
	ID             int64           `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Slug           string          `json:"slug" db:"slug"`
	Description    string          `json:"description" db:"description"`
	Specifications string          `json:"specifications,omitempty" db:"specifications"`
	Price          decimal.Decimal `json:"price" db:"price"`
	Quantity       int             `json:"quantity" db:"quantity"`
	Active         bool            `json:"active" db:"active"`
	CategoryID     int64           `json:"categoryId" db:"category_id"`
	SellerID       *int64          `json:"sellerId,omitempty" db:"seller_id"`
	ImagePath      *string         `json:"imagePath,omitempty" db:"image_path"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`

	// Joins (Not in DB table, populated manually)
	CategoryName string `json:"categoryName,omitempty" db:"category_name"`
}

// InStock reports whether at least one unit is available.
func (p *Product) InStock() bool {
	return p.Quantity > 0
}

// ProductFilter narrows catalog listings. Zero values mean "no constraint".
type ProductFilter struct {
	Keyword     string
	CategoryIDs []int64
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	SellerID    *int64
	ActiveOnly  bool
	Page        Page
}
