// Package sqlstore implements store.Store on MySQL through sqlx.
package sqlstore

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/omegashop/storefront/internal/store"
)

// Store is the MySQL-backed store.
type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an open connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// repos binds the repositories to either the pool or a transaction.
type repos struct {
	q sqlx.ExtContext
}

func (s *Store) Products() store.ProductRepository    { return &productRepo{q: s.db} }
func (s *Store) Categories() store.CategoryRepository { return &categoryRepo{q: s.db} }
func (s *Store) Orders() store.OrderRepository         { return &orderRepo{q: s.db} }
func (s *Store) Users() store.UserRepository           { return &userRepo{q: s.db} }

func (r *repos) Products() store.ProductRepository    { return &productRepo{q: r.q} }
func (r *repos) Categories() store.CategoryRepository { return &categoryRepo{q: r.q} }
func (r *repos) Orders() store.OrderRepository         { return &orderRepo{q: r.q} }
func (r *repos) Users() store.UserRepository           { return &userRepo{q: r.q} }

// InTx runs fn inside a single database transaction.
func (s *Store) InTx(ctx context.Context, fn func(r store.Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback() // Safety net

	if err := fn(&repos{q: tx}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// where accumulates AND-ed conditions with their arguments.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
