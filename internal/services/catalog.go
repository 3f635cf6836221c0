package services

import (
	"context"
	"mime/multipart"
	"strings"

	"github.com/gosimple/slug"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/store"
)

// ImageStore keeps product images. Delete is best effort.
type ImageStore interface {
	Save(fh *multipart.FileHeader) (string, error)
	Delete(ref string)
}

// BrowseQuery is the public catalog search.
type BrowseQuery struct {
	Keyword    string           `form:"q"`
	CategoryID *int64           `form:"category"`
	MinPrice   *decimal.Decimal `form:"-"`
	MaxPrice   *decimal.Decimal `form:"-"`
	models.Page
}

// ProductInput is the payload for creating or updating a product.
type ProductInput struct {
	Name           string          `json:"name" binding:"required"`
	Description    string          `json:"description"`
	Specifications string          `json:"specifications"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity"`
	Active         *bool           `json:"active"`
	CategoryID     int64           `json:"categoryId" binding:"required"`
	SellerID       *int64          `json:"sellerId"`
}

type CatalogService struct {
	store      store.Store
	categories *CategoryService
	images     ImageStore
	now        Clock
}

func NewCatalogService(s store.Store, categories *CategoryService, images ImageStore, now Clock) *CatalogService {
	return &CatalogService{store: s, categories: categories, images: images, now: now}
}

// Browse lists active products. A category filter includes its subcategories.
func (s *CatalogService) Browse(ctx context.Context, q BrowseQuery) (models.PageResult[models.Product], error) {
	f := models.ProductFilter{
		Keyword:    strings.TrimSpace(q.Keyword),
		MinPrice:   q.MinPrice,
		MaxPrice:   q.MaxPrice,
		ActiveOnly: true,
		Page:       q.Page,
	}
	if q.CategoryID != nil {
		ids, err := s.categories.Descendants(ctx, *q.CategoryID)
		if err != nil {
			return models.PageResult[models.Product]{}, err
		}
		f.CategoryIDs = ids
	}
	return s.list(ctx, f)
}

// Manage lists products for the back office: all of them for admins, their
// own for sellers, inactive ones included.
func (s *CatalogService) Manage(ctx context.Context, p models.Principal, keyword string, page models.Page) (models.PageResult[models.Product], error) {
	if err := requireRole(p, models.RoleAdmin, models.RoleSeller); err != nil {
		return models.PageResult[models.Product]{}, err
	}
	f := models.ProductFilter{Keyword: strings.TrimSpace(keyword), Page: page}
	if p.Is(models.RoleSeller) {
		f.SellerID = &p.UserID
	}
	return s.list(ctx, f)
}

func (s *CatalogService) list(ctx context.Context, f models.ProductFilter) (models.PageResult[models.Product], error) {
	products, total, err := s.store.Products().List(ctx, f)
	if err != nil {
		return models.PageResult[models.Product]{}, err
	}
	return models.NewPageResult(products, total, f.Page), nil
}

// Get returns a product; inactive products are only visible to staff.
func (s *CatalogService) Get(ctx context.Context, id int64, includeInactive bool) (*models.Product, error) {
	p, err := s.store.Products().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active && !includeInactive {
		return nil, errors.Wrapf(models.ErrNotFound, "product %d", id)
	}
	return p, nil
}

func (in *ProductInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return invalid("product name is required")
	}
	if !in.Price.IsPositive() {
		return invalid("price must be greater than 0")
	}
	if !in.Price.Equal(in.Price.Round(2)) {
		return invalid("price %s has more than 2 decimal places", in.Price)
	}
	if in.Quantity < 0 {
		return invalid("quantity cannot be negative")
	}
	return nil
}

// apply copies the input onto the product after checking the references.
// Sellers always own what they create or edit; an admin update without a
// seller keeps the current one.
func (s *CatalogService) apply(ctx context.Context, r store.Repositories, p models.Principal, in ProductInput, product *models.Product) error {
	if _, err := r.Categories().Get(ctx, in.CategoryID); err != nil {
		return err
	}

	sellerID := in.SellerID
	if p.Is(models.RoleSeller) {
		sellerID = &p.UserID
	} else if sellerID == nil {
		sellerID = product.SellerID
	} else {
		seller, err := r.Users().Get(ctx, *sellerID)
		if err != nil {
			return err
		}
		if seller.Role != models.RoleSeller {
			return invalid("user %s is not a seller", seller.Username)
		}
	}

	product.Name = in.Name
	product.Slug = slug.Make(in.Name)
	product.Description = strings.TrimSpace(in.Description)
	product.Specifications = strings.TrimSpace(in.Specifications)
	product.Price = in.Price
	product.Quantity = in.Quantity
	product.CategoryID = in.CategoryID
	product.SellerID = sellerID
	if in.Active != nil {
		product.Active = *in.Active
	}
	product.UpdatedAt = s.now()
	return nil
}

func requireOwner(p models.Principal, product *models.Product) error {
	if p.Is(models.RoleAdmin) {
		return nil
	}
	if product.SellerID == nil || *product.SellerID != p.UserID {
		return errors.Wrapf(models.ErrForbidden, "product %d belongs to another seller", product.ID)
	}
	return nil
}

func (s *CatalogService) Create(ctx context.Context, p models.Principal, in ProductInput) (*models.Product, error) {
	if err := requireRole(p, models.RoleAdmin, models.RoleSeller); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	product := &models.Product{Active: true, CreatedAt: s.now()}
	err := s.store.InTx(ctx, func(r store.Repositories) error {
		if err := s.apply(ctx, r, p, in, product); err != nil {
			return err
		}
		return r.Products().Create(ctx, product)
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"productId": product.ID, "actor": p.Username}).Info("product created")
	return product, nil
}

func (s *CatalogService) Update(ctx context.Context, p models.Principal, id int64, in ProductInput) (*models.Product, error) {
	if err := requireRole(p, models.RoleAdmin, models.RoleSeller); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var product *models.Product
	err := s.store.InTx(ctx, func(r store.Repositories) error {
		var err error
		if product, err = r.Products().Get(ctx, id); err != nil {
			return err
		}
		if err := requireOwner(p, product); err != nil {
			return err
		}
		if err := s.apply(ctx, r, p, in, product); err != nil {
			return err
		}
		return r.Products().Update(ctx, product)
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"productId": id, "actor": p.Username}).Info("product updated")
	return product, nil
}

// Delete removes a product that was never ordered, together with its image.
func (s *CatalogService) Delete(ctx context.Context, p models.Principal, id int64) error {
	if err := requireRole(p, models.RoleAdmin, models.RoleSeller); err != nil {
		return err
	}

	var image *string
	err := s.store.InTx(ctx, func(r store.Repositories) error {
		product, err := r.Products().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(p, product); err != nil {
			return err
		}
		ordered, err := r.Products().InAnyOrder(ctx, id)
		if err != nil {
			return err
		}
		if ordered {
			return errors.Wrapf(models.ErrInvalidState, "product %d appears in orders, deactivate it instead", id)
		}
		image = product.ImagePath
		return r.Products().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if image != nil {
		s.images.Delete(*image)
	}
	log.WithFields(log.Fields{"productId": id, "actor": p.Username}).Info("product deleted")
	return nil
}

// SetImage stores a new product image and drops the previous one.
func (s *CatalogService) SetImage(ctx context.Context, p models.Principal, id int64, fh *multipart.FileHeader) (*models.Product, error) {
	if err := requireRole(p, models.RoleAdmin, models.RoleSeller); err != nil {
		return nil, err
	}
	product, err := s.store.Products().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(p, product); err != nil {
		return nil, err
	}

	ref, err := s.images.Save(fh)
	if err != nil {
		return nil, err
	}

	var previous *string
	err = s.store.InTx(ctx, func(r store.Repositories) error {
		current, err := r.Products().Get(ctx, id)
		if err != nil {
			return err
		}
		previous = current.ImagePath
		current.ImagePath = &ref
		current.UpdatedAt = s.now()
		product = current
		return r.Products().Update(ctx, current)
	})
	if err != nil {
		s.images.Delete(ref)
		return nil, err
	}

	if previous != nil {
		s.images.Delete(*previous)
	}
	log.WithFields(log.Fields{"productId": id, "image": ref, "actor": p.Username}).Info("product image replaced")
	return product, nil
}
