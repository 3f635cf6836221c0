package services

import (
	"context"

	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/store"
)

// Inventory guards product stock. The repository performs each change as a
// single row update; there is no atomicity across products.
type Inventory struct{}

// Decrease takes amount units, failing with models.ErrInsufficientStock and
// leaving the quantity unchanged when fewer are available.
func (Inventory) Decrease(ctx context.Context, products store.ProductRepository, productID int64, amount int) error {
	if amount <= 0 {
		return invalid("stock decrease of %d", amount)
	}
	return products.DecreaseStock(ctx, productID, amount)
}

// Increase returns amount units to stock.
func (Inventory) Increase(ctx context.Context, products store.ProductRepository, productID int64, amount int) error {
	if amount <= 0 {
		return invalid("stock increase of %d", amount)
	}
	return products.IncreaseStock(ctx, productID, amount)
}

// Restock returns the quantity of every item of an order.
func (inv Inventory) Restock(ctx context.Context, products store.ProductRepository, items []models.OrderItem) error {
	for _, item := range items {
		if err := inv.Increase(ctx, products, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}
