package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NoSellerName labels sales of products that have no seller.
const NoSellerName = "No seller"

// SalesQuery selects order items by their order's creation date and status.
// With ExcludeStatus set, orders in Status are skipped instead of selected.
type SalesQuery struct {
	From          time.Time
	To            time.Time
	Status        OrderStatus
	ExcludeStatus bool
	SellerID      *int64
}

// SellerSales is one row of the seller-grouped sales aggregation.
type SellerSales struct {
	SellerID    int64           `json:"sellerId" db:"seller_id"`
	SellerName  string          `json:"sellerName" db:"seller_name"`
	SellerEmail string          `json:"sellerEmail" db:"seller_email"`
	TotalSold   int64           `json:"totalSold" db:"total_sold"`
	TotalAmount decimal.Decimal `json:"totalSalesAmount" db:"total_amount"`
	Salary      decimal.Decimal `json:"salary" db:"-"`
}

// ProductSales is one row of the product-grouped sales aggregation.
type ProductSales struct {
	ProductID    int64           `json:"productId" db:"product_id"`
	ProductName  string          `json:"productName" db:"product_name"`
	CategoryName string          `json:"categoryName" db:"category_name"`
	TotalSold    int64           `json:"totalSold" db:"total_sold"`
	TotalAmount  decimal.Decimal `json:"totalSalesAmount" db:"total_amount"`
}

// SalesReport wraps the report rows with the window they cover.
// Fallback is set when undelivered orders were counted because no delivered
// ones fell into the window.
type SalesReport[T any] struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Fallback bool      `json:"fallback,omitempty"`
	Rows     []T       `json:"rows"`
}
