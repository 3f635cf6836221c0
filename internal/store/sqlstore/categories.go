package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/omegashop/storefront/internal/models"
)

const categoryColumns = "id, name, slug, description, parent_id, created_at"

type categoryRepo struct {
	q sqlx.ExtContext
}

func (r *categoryRepo) Get(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	err := sqlx.GetContext(ctx, r.q, &c, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(models.ErrNotFound, "category %d", id)
		}
		return nil, errors.Wrapf(err, "get category %d", id)
	}
	return &c, nil
}

func (r *categoryRepo) All(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := sqlx.SelectContext(ctx, r.q, &categories, "SELECT "+categoryColumns+" FROM categories ORDER BY id")
	return categories, errors.Wrap(err, "list categories")
}

// ExistsByNameAndParent uses the null-safe <=> so a nil parent matches roots only.
func (r *categoryRepo) ExistsByNameAndParent(ctx context.Context, name string, parentID *int64, excludeID int64) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n,
		"SELECT COUNT(*) FROM categories WHERE name = ? AND parent_id <=> ? AND id <> ?",
		name, parentID, excludeID)
	return n > 0, errors.Wrap(err, "check category name")
}

func (r *categoryRepo) CountChildren(ctx context.Context, id int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n, "SELECT COUNT(*) FROM categories WHERE parent_id = ?", id)
	return n, errors.Wrapf(err, "count children of category %d", id)
}

func (r *categoryRepo) Create(ctx context.Context, c *models.Category) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO categories (name, slug, description, parent_id, created_at) VALUES (?, ?, ?, ?, ?)",
		c.Name, c.Slug, c.Description, c.ParentID, c.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert category")
	}
	c.ID, err = res.LastInsertId()
	return errors.Wrap(err, "category id")
}

func (r *categoryRepo) Update(ctx context.Context, c *models.Category) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE categories SET name = ?, slug = ?, description = ?, parent_id = ? WHERE id = ?",
		c.Name, c.Slug, c.Description, c.ParentID, c.ID)
	return errors.Wrapf(err, "update category %d", c.ID)
}

func (r *categoryRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return errors.Wrapf(err, "delete category %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(models.ErrNotFound, "category %d", id)
	}
	return nil
}
