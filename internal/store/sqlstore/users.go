package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/omegashop/storefront/internal/models"
)

const userColumns = "id, username, email, full_name, phone, password_hash, role, active, created_at, updated_at"

type userRepo struct {
	q sqlx.ExtContext
}

func (r *userRepo) get(ctx context.Context, what string, query string, arg interface{}) (*models.User, error) {
	var u models.User
	err := sqlx.GetContext(ctx, r.q, &u, "SELECT "+userColumns+" FROM users WHERE "+query, arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(models.ErrNotFound, "user %s", what)
		}
		return nil, errors.Wrapf(err, "get user %s", what)
	}
	return &u, nil
}

func (r *userRepo) Get(ctx context.Context, id int64) (*models.User, error) {
	return r.get(ctx, "#"+itoa(id), "id = ?", id)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.get(ctx, username, "username = ?", username)
}

func (r *userRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n, "SELECT COUNT(*) FROM users WHERE username = ? OR email = ?", username, email)
	return n > 0, errors.Wrap(err, "check user uniqueness")
}

func (r *userRepo) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	err := sqlx.SelectContext(ctx, r.q, &users,
		"SELECT "+userColumns+" FROM users WHERE role = ? ORDER BY username", role)
	return users, errors.Wrapf(err, "list %s users", role)
}

func (r *userRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n, "SELECT COUNT(*) FROM users WHERE active = 1")
	return n, errors.Wrap(err, "count active users")
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users
		(username, email, full_name, phone, password_hash, role, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.q.ExecContext(ctx, query,
		u.Username, u.Email, u.FullName, u.Phone, u.PasswordHash, u.Role, u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert user")
	}
	u.ID, err = res.LastInsertId()
	return errors.Wrap(err, "user id")
}

func (r *userRepo) Update(ctx context.Context, u *models.User) error {
	query := `
		UPDATE users
		SET email = ?, full_name = ?, phone = ?, password_hash = ?, role = ?, active = ?, updated_at = ?
		WHERE id = ?`
	_, err := r.q.ExecContext(ctx, query,
		u.Email, u.FullName, u.Phone, u.PasswordHash, u.Role, u.Active, u.UpdatedAt, u.ID)
	return errors.Wrapf(err, "update user %d", u.ID)
}
