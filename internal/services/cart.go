package services

import (
	"context"

	"github.com/pkg/errors"

	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/store"
)

// CartService applies stock rules to a session cart. The cart itself is a
// value owned by the caller; nothing here persists it.
type CartService struct {
	products func() store.ProductRepository
}

func NewCartService(s store.Repositories) *CartService {
	return &CartService{products: s.Products}
}

// Add puts quantity units of the product in the cart, merging with an
// existing line. The combined quantity may not exceed live stock.
func (s *CartService) Add(ctx context.Context, cart *models.Cart, productID int64, quantity int) error {
	if quantity <= 0 {
		return invalid("quantity must be greater than 0")
	}

	p, err := s.products().Get(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Active {
		return invalid("product %d is not for sale", productID)
	}
	if !p.InStock() {
		return errors.Wrapf(models.ErrInsufficientStock, "%s is out of stock", p.Name)
	}

	inCart := cart.QuantityOf(productID)
	if inCart+quantity > p.Quantity {
		return errors.Wrapf(models.ErrInsufficientStock,
			"%s: %d in stock, %d already in cart", p.Name, p.Quantity, inCart)
	}

	cart.Merge(models.CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		ImagePath: p.ImagePath,
		Quantity:  quantity,
	})
	return nil
}

// Update sets the quantity of a line. A non-positive quantity removes it.
func (s *CartService) Update(ctx context.Context, cart *models.Cart, productID int64, quantity int) error {
	if quantity <= 0 {
		cart.Remove(productID)
		return nil
	}
	if _, ok := cart.Get(productID); !ok {
		return errors.Wrapf(models.ErrNotFound, "product %d is not in the cart", productID)
	}

	p, err := s.products().Get(ctx, productID)
	if err != nil {
		return err
	}
	if quantity > p.Quantity {
		return errors.Wrapf(models.ErrInsufficientStock, "%s: only %d in stock", p.Name, p.Quantity)
	}
	cart.SetQuantity(productID, quantity)
	return nil
}

func (s *CartService) Remove(cart *models.Cart, productID int64) {
	cart.Remove(productID)
}

func (s *CartService) Clear(cart *models.Cart) {
	cart.Clear()
}

// Validate re-checks every line against live stock and fails on the first violation.
func (s *CartService) Validate(ctx context.Context, cart *models.Cart) error {
	return validateCart(ctx, s.products(), cart)
}

func validateCart(ctx context.Context, products store.ProductRepository, cart *models.Cart) error {
	for _, item := range cart.Items {
		p, err := products.Get(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if !p.Active {
			return invalid("%s is no longer for sale", p.Name)
		}
		if item.Quantity > p.Quantity {
			return errors.Wrapf(models.ErrInsufficientStock,
				"%s: %d requested, %d in stock", p.Name, item.Quantity, p.Quantity)
		}
	}
	return nil
}
