// Package store declares the persistence contract used by the services.
// Implementations live in store/sqlstore and store/memory.
package store

import (
	"context"

	"github.com/omegashop/storefront/internal/models"
)

// ProductRepository persists products and their stock.
type ProductRepository interface {
	Get(ctx context.Context, id int64) (*models.Product, error)
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, int, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id int64) error
	// DecreaseStock subtracts amount, failing with models.ErrInsufficientStock
	// and leaving the row untouched when amount exceeds the current quantity.
	DecreaseStock(ctx context.Context, id int64, amount int) error
	IncreaseStock(ctx context.Context, id int64, amount int) error
	CountByCategory(ctx context.Context, categoryID int64) (int, error)
	InAnyOrder(ctx context.Context, id int64) (bool, error)
}

// CategoryRepository persists the category tree.
type CategoryRepository interface {
	Get(ctx context.Context, id int64) (*models.Category, error)
	All(ctx context.Context) ([]models.Category, error)
	// ExistsByNameAndParent reports whether a category other than excludeID
	// has this name under the same parent (nil parent = root scope).
	ExistsByNameAndParent(ctx context.Context, name string, parentID *int64, excludeID int64) (bool, error)
	CountChildren(ctx context.Context, id int64) (int, error)
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id int64) error
}

// OrderRepository persists orders with their items and runs the sales aggregations.
type OrderRepository interface {
	Get(ctx context.Context, id int64) (*models.Order, error)
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error)
	Count(ctx context.Context, f models.OrderFilter) (int, error)
	// Create inserts the order and its items, assigning ids.
	Create(ctx context.Context, o *models.Order) error
	// Update writes the mutable order fields; items are immutable after creation.
	Update(ctx context.Context, o *models.Order) error
	SalesBySeller(ctx context.Context, q models.SalesQuery) ([]models.SellerSales, error)
	SalesByProduct(ctx context.Context, q models.SalesQuery) ([]models.ProductSales, error)
}

// UserRepository persists accounts.
type UserRepository interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	CountActive(ctx context.Context) (int, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Products() ProductRepository
	Categories() CategoryRepository
	Orders() OrderRepository
	Users() UserRepository
}

// Store is the root persistence handle. InTx runs fn inside one transaction:
// fn's error rolls everything back, a nil return commits.
type Store interface {
	Repositories
	InTx(ctx context.Context, fn func(r Repositories) error) error
}
