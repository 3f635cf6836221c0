package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/omegashop/storefront/internal/models"
)

const productColumns = `
	p.id, p.name, p.slug, p.description, p.specifications, p.price, p.quantity,
	p.active, p.category_id, p.seller_id, p.image_path, p.created_at, p.updated_at,
	COALESCE(c.name, '') AS category_name`

const productFrom = `
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

type productRepo struct {
	q sqlx.ExtContext
}

func (r *productRepo) Get(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := sqlx.GetContext(ctx, r.q, &p, "SELECT"+productColumns+productFrom+" WHERE p.id = ?", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(models.ErrNotFound, "product %d", id)
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	return &p, nil
}

func productWhere(f models.ProductFilter) *where {
	w := &where{}
	if f.ActiveOnly {
		w.add("p.active = 1")
	}
	if f.Keyword != "" {
		w.add("LOWER(p.name) LIKE ?", "%"+escapeLike(strings.ToLower(strings.TrimSpace(f.Keyword)))+"%")
	}
	if len(f.CategoryIDs) > 0 {
		args := make([]interface{}, len(f.CategoryIDs))
		for i, id := range f.CategoryIDs {
			args[i] = id
		}
		w.add("p.category_id IN ("+placeholders(len(args))+")", args...)
	}
	if f.MinPrice != nil {
		w.add("p.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		w.add("p.price <= ?", *f.MaxPrice)
	}
	if f.SellerID != nil {
		w.add("p.seller_id = ?", *f.SellerID)
	}
	return w
}

func (r *productRepo) List(ctx context.Context, f models.ProductFilter) ([]models.Product, int, error) {
	w := productWhere(f)

	var total int
	if err := sqlx.GetContext(ctx, r.q, &total, "SELECT COUNT(*) FROM products p"+w.String(), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "count products")
	}

	page := f.Page.Normalize()
	query := "SELECT" + productColumns + productFrom + w.String() + " ORDER BY p.id LIMIT ? OFFSET ?"
	args := append(append([]interface{}{}, w.args...), page.Size, page.Offset())

	var products []models.Product
	if err := sqlx.SelectContext(ctx, r.q, &products, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "list products")
	}
	return products, total, nil
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products
		(name, slug, description, specifications, price, quantity, active, category_id, seller_id, image_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.q.ExecContext(ctx, query,
		p.Name, p.Slug, p.Description, p.Specifications, p.Price, p.Quantity, p.Active,
		p.CategoryID, p.SellerID, p.ImagePath, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert product")
	}
	p.ID, err = res.LastInsertId()
	return errors.Wrap(err, "product id")
}

func (r *productRepo) Update(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET name = ?, slug = ?, description = ?, specifications = ?, price = ?, quantity = ?,
			active = ?, category_id = ?, seller_id = ?, image_path = ?, updated_at = ?
		WHERE id = ?`
	_, err := r.q.ExecContext(ctx, query,
		p.Name, p.Slug, p.Description, p.Specifications, p.Price, p.Quantity,
		p.Active, p.CategoryID, p.SellerID, p.ImagePath, p.UpdatedAt, p.ID)
	return errors.Wrapf(err, "update product %d", p.ID)
}

func (r *productRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return errors.Wrapf(err, "delete product %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(models.ErrNotFound, "product %d", id)
	}
	return nil
}

// DecreaseStock is a single conditional UPDATE, so two concurrent checkouts
// can never both take the last unit.
func (r *productRepo) DecreaseStock(ctx context.Context, id int64, amount int) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE products SET quantity = quantity - ?, updated_at = NOW() WHERE id = ? AND quantity >= ?",
		amount, id, amount)
	if err != nil {
		return errors.Wrapf(err, "decrease stock of product %d", id)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var available int
	err = sqlx.GetContext(ctx, r.q, &available, "SELECT quantity FROM products WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return errors.Wrapf(models.ErrNotFound, "product %d", id)
	}
	if err != nil {
		return errors.Wrapf(err, "read stock of product %d", id)
	}
	return errors.Wrapf(models.ErrInsufficientStock, "product %d: requested %d, available %d", id, amount, available)
}

func (r *productRepo) IncreaseStock(ctx context.Context, id int64, amount int) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE products SET quantity = quantity + ?, updated_at = NOW() WHERE id = ?", amount, id)
	if err != nil {
		return errors.Wrapf(err, "increase stock of product %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(models.ErrNotFound, "product %d", id)
	}
	return nil
}

func (r *productRepo) CountByCategory(ctx context.Context, categoryID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n, "SELECT COUNT(*) FROM products WHERE category_id = ?", categoryID)
	return n, errors.Wrapf(err, "count products of category %d", categoryID)
}

func (r *productRepo) InAnyOrder(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.q, &exists, "SELECT EXISTS(SELECT 1 FROM order_items WHERE product_id = ?)", id)
	return exists, errors.Wrapf(err, "check orders of product %d", id)
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
