// Package memory is an in-process implementation of store.Store. It backs
// the service and handler tests and `serve --in-memory`.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/store"
)

type data struct {
	products   map[int64]models.Product
	categories map[int64]models.Category
	orders     map[int64]models.Order
	users      map[int64]models.User

	productSeq, categorySeq, orderSeq, itemSeq, userSeq int64
}

func newData() *data {
	return &data{
		products:   make(map[int64]models.Product),
		categories: make(map[int64]models.Category),
		orders:     make(map[int64]models.Order),
		users:      make(map[int64]models.User),
	}
}

func (d *data) clone() *data {
	c := *d
	c.products = make(map[int64]models.Product, len(d.products))
	for k, v := range d.products {
		c.products[k] = v
	}
	c.categories = make(map[int64]models.Category, len(d.categories))
	for k, v := range d.categories {
		c.categories[k] = v
	}
	c.orders = make(map[int64]models.Order, len(d.orders))
	for k, v := range d.orders {
		c.orders[k] = copyOrder(v)
	}
	c.users = make(map[int64]models.User, len(d.users))
	for k, v := range d.users {
		c.users[k] = v
	}
	return &c
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

// Store is a mutex-guarded in-memory store. Transactions hold the lock for
// their whole duration and restore a snapshot on error.
type Store struct {
	mu sync.Mutex
	d  *data
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{d: newData()}
}

type repos struct {
	s  *Store
	tx bool
}

func (s *Store) root() *repos { return &repos{s: s} }

func (s *Store) Products() store.ProductRepository    { return productRepo{s.root()} }
func (s *Store) Categories() store.CategoryRepository { return categoryRepo{s.root()} }
func (s *Store) Orders() store.OrderRepository         { return orderRepo{s.root()} }
func (s *Store) Users() store.UserRepository           { return userRepo{s.root()} }

func (r *repos) Products() store.ProductRepository    { return productRepo{r} }
func (r *repos) Categories() store.CategoryRepository { return categoryRepo{r} }
func (r *repos) Orders() store.OrderRepository         { return orderRepo{r} }
func (r *repos) Users() store.UserRepository           { return userRepo{r} }

// InTx runs fn with exclusive access; on error all changes are discarded.
func (s *Store) InTx(_ context.Context, fn func(r store.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(&repos{s: s, tx: true}); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

// lock acquires the store mutex unless the caller already runs inside InTx.
func (r *repos) lock() (*data, func()) {
	if r.tx {
		return r.s.d, func() {}
	}
	r.s.mu.Lock()
	return r.s.d, r.s.mu.Unlock
}

func paginate[T any](items []T, p models.Page) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

//
// --- Products ---
//

type productRepo struct{ r *repos }

func (pr productRepo) Get(_ context.Context, id int64) (*models.Product, error) {
	d, unlock := pr.r.lock()
	defer unlock()

	p, ok := d.products[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "product %d", id)
	}
	p.CategoryName = d.categories[p.CategoryID].Name
	return &p, nil
}

func (pr productRepo) List(_ context.Context, f models.ProductFilter) ([]models.Product, int, error) {
	d, unlock := pr.r.lock()
	defer unlock()

	var categories map[int64]bool
	if len(f.CategoryIDs) > 0 {
		categories = make(map[int64]bool, len(f.CategoryIDs))
		for _, id := range f.CategoryIDs {
			categories[id] = true
		}
	}
	keyword := strings.ToLower(strings.TrimSpace(f.Keyword))

	var out []models.Product
	for _, p := range d.products {
		switch {
		case f.ActiveOnly && !p.Active:
			continue
		case keyword != "" && !strings.Contains(strings.ToLower(p.Name), keyword):
			continue
		case categories != nil && !categories[p.CategoryID]:
			continue
		case f.MinPrice != nil && p.Price.LessThan(*f.MinPrice):
			continue
		case f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice):
			continue
		case f.SellerID != nil && (p.SellerID == nil || *p.SellerID != *f.SellerID):
			continue
		}
		p.CategoryName = d.categories[p.CategoryID].Name
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, f.Page), len(out), nil
}

func (pr productRepo) Create(_ context.Context, p *models.Product) error {
	d, unlock := pr.r.lock()
	defer unlock()

	d.productSeq++
	p.ID = d.productSeq
	stored := *p
	stored.CategoryName = ""
	d.products[p.ID] = stored
	return nil
}

func (pr productRepo) Update(_ context.Context, p *models.Product) error {
	d, unlock := pr.r.lock()
	defer unlock()

	if _, ok := d.products[p.ID]; !ok {
		return errors.Wrapf(models.ErrNotFound, "product %d", p.ID)
	}
	stored := *p
	stored.CategoryName = ""
	d.products[p.ID] = stored
	return nil
}

func (pr productRepo) Delete(_ context.Context, id int64) error {
	d, unlock := pr.r.lock()
	defer unlock()

	if _, ok := d.products[id]; !ok {
		return errors.Wrapf(models.ErrNotFound, "product %d", id)
	}
	delete(d.products, id)
	return nil
}

func (pr productRepo) DecreaseStock(_ context.Context, id int64, amount int) error {
	d, unlock := pr.r.lock()
	defer unlock()

	p, ok := d.products[id]
	if !ok {
		return errors.Wrapf(models.ErrNotFound, "product %d", id)
	}
	if amount > p.Quantity {
		return errors.Wrapf(models.ErrInsufficientStock, "product %d: requested %d, available %d", id, amount, p.Quantity)
	}
	p.Quantity -= amount
	d.products[id] = p
	return nil
}

func (pr productRepo) IncreaseStock(_ context.Context, id int64, amount int) error {
	d, unlock := pr.r.lock()
	defer unlock()

	p, ok := d.products[id]
	if !ok {
		return errors.Wrapf(models.ErrNotFound, "product %d", id)
	}
	p.Quantity += amount
	d.products[id] = p
	return nil
}

func (pr productRepo) CountByCategory(_ context.Context, categoryID int64) (int, error) {
	d, unlock := pr.r.lock()
	defer unlock()

	n := 0
	for _, p := range d.products {
		if p.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (pr productRepo) InAnyOrder(_ context.Context, id int64) (bool, error) {
	d, unlock := pr.r.lock()
	defer unlock()

	for _, o := range d.orders {
		for _, item := range o.Items {
			if item.ProductID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

//
// --- Categories ---
//

type categoryRepo struct{ r *repos }

func (cr categoryRepo) Get(_ context.Context, id int64) (*models.Category, error) {
	d, unlock := cr.r.lock()
	defer unlock()

	c, ok := d.categories[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "category %d", id)
	}
	return &c, nil
}

func (cr categoryRepo) All(_ context.Context) ([]models.Category, error) {
	d, unlock := cr.r.lock()
	defer unlock()

	out := make([]models.Category, 0, len(d.categories))
	for _, c := range d.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (cr categoryRepo) ExistsByNameAndParent(_ context.Context, name string, parentID *int64, excludeID int64) (bool, error) {
	d, unlock := cr.r.lock()
	defer unlock()

	for _, c := range d.categories {
		if c.ID != excludeID && strings.EqualFold(c.Name, name) && sameParent(c.ParentID, parentID) {
			return true, nil
		}
	}
	return false, nil
}

func (cr categoryRepo) CountChildren(_ context.Context, id int64) (int, error) {
	d, unlock := cr.r.lock()
	defer unlock()

	n := 0
	for _, c := range d.categories {
		if c.ParentID != nil && *c.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (cr categoryRepo) Create(_ context.Context, c *models.Category) error {
	d, unlock := cr.r.lock()
	defer unlock()

	d.categorySeq++
	c.ID = d.categorySeq
	d.categories[c.ID] = *c
	return nil
}

func (cr categoryRepo) Update(_ context.Context, c *models.Category) error {
	d, unlock := cr.r.lock()
	defer unlock()

	if _, ok := d.categories[c.ID]; !ok {
		return errors.Wrapf(models.ErrNotFound, "category %d", c.ID)
	}
	d.categories[c.ID] = *c
	return nil
}

func (cr categoryRepo) Delete(_ context.Context, id int64) error {
	d, unlock := cr.r.lock()
	defer unlock()

	if _, ok := d.categories[id]; !ok {
		return errors.Wrapf(models.ErrNotFound, "category %d", id)
	}
	delete(d.categories, id)
	return nil
}

//
// --- Orders ---
//

type orderRepo struct{ r *repos }

func (or orderRepo) Get(_ context.Context, id int64) (*models.Order, error) {
	d, unlock := or.r.lock()
	defer unlock()

	o, ok := d.orders[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "order %d", id)
	}
	o = copyOrder(o)
	return &o, nil
}

func inWindow(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func (d *data) hasSeller(o models.Order, sellerID int64) bool {
	for _, item := range o.Items {
		if p, ok := d.products[item.ProductID]; ok && p.SellerID != nil && *p.SellerID == sellerID {
			return true
		}
	}
	return false
}

func (d *data) filterOrders(f models.OrderFilter) []models.Order {
	var out []models.Order
	for _, o := range d.orders {
		switch {
		case f.UserID != nil && o.UserID != *f.UserID:
			continue
		case f.CourierID != nil && !o.AssignedTo(*f.CourierID):
			continue
		case f.Status != nil && o.Status != *f.Status:
			continue
		case f.DeliveryStatus != nil && o.DeliveryStatus != *f.DeliveryStatus:
			continue
		case !inWindow(o.CreatedAt, f.From, f.To):
			continue
		case f.SellerID != nil && !d.hasSeller(o, *f.SellerID):
			continue
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if f.OldestFirst {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if f.OldestFirst {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
	return out
}

func (or orderRepo) List(_ context.Context, f models.OrderFilter) ([]models.Order, int, error) {
	d, unlock := or.r.lock()
	defer unlock()

	out := d.filterOrders(f)
	return paginate(out, f.Page), len(out), nil
}

func (or orderRepo) Count(_ context.Context, f models.OrderFilter) (int, error) {
	d, unlock := or.r.lock()
	defer unlock()

	return len(d.filterOrders(f)), nil
}

func (or orderRepo) Create(_ context.Context, o *models.Order) error {
	d, unlock := or.r.lock()
	defer unlock()

	d.orderSeq++
	o.ID = d.orderSeq
	for i := range o.Items {
		d.itemSeq++
		o.Items[i].ID = d.itemSeq
		o.Items[i].OrderID = o.ID
	}
	d.orders[o.ID] = copyOrder(*o)
	return nil
}

func (or orderRepo) Update(_ context.Context, o *models.Order) error {
	d, unlock := or.r.lock()
	defer unlock()

	existing, ok := d.orders[o.ID]
	if !ok {
		return errors.Wrapf(models.ErrNotFound, "order %d", o.ID)
	}
	updated := copyOrder(*o)
	updated.Items = existing.Items
	d.orders[o.ID] = updated
	return nil
}

func (d *data) matchesSales(o models.Order, q models.SalesQuery) bool {
	if q.ExcludeStatus == (o.Status == q.Status) {
		return false
	}
	return inWindow(o.CreatedAt, &q.From, &q.To)
}

func (or orderRepo) SalesBySeller(_ context.Context, q models.SalesQuery) ([]models.SellerSales, error) {
	d, unlock := or.r.lock()
	defer unlock()

	rows := make(map[int64]*models.SellerSales)
	for _, o := range d.orders {
		if !d.matchesSales(o, q) {
			continue
		}
		for _, item := range o.Items {
			var sellerID int64
			if p, ok := d.products[item.ProductID]; ok && p.SellerID != nil {
				sellerID = *p.SellerID
			}
			if q.SellerID != nil && sellerID != *q.SellerID {
				continue
			}
			row, ok := rows[sellerID]
			if !ok {
				row = &models.SellerSales{SellerID: sellerID, SellerName: models.NoSellerName}
				if u, found := d.users[sellerID]; found {
					row.SellerName = u.Username
					row.SellerEmail = u.Email
				}
				rows[sellerID] = row
			}
			row.TotalSold += int64(item.Quantity)
			row.TotalAmount = row.TotalAmount.Add(item.TotalPrice)
		}
	}

	out := make([]models.SellerSales, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SellerName != out[j].SellerName {
			return out[i].SellerName < out[j].SellerName
		}
		return out[i].SellerID < out[j].SellerID
	})
	return out, nil
}

func (or orderRepo) SalesByProduct(_ context.Context, q models.SalesQuery) ([]models.ProductSales, error) {
	d, unlock := or.r.lock()
	defer unlock()

	rows := make(map[int64]*models.ProductSales)
	for _, o := range d.orders {
		if !d.matchesSales(o, q) {
			continue
		}
		for _, item := range o.Items {
			p, known := d.products[item.ProductID]
			if q.SellerID != nil && (!known || p.SellerID == nil || *p.SellerID != *q.SellerID) {
				continue
			}
			row, ok := rows[item.ProductID]
			if !ok {
				row = &models.ProductSales{ProductID: item.ProductID, ProductName: item.ProductName}
				if known {
					row.ProductName = p.Name
					row.CategoryName = d.categories[p.CategoryID].Name
				}
				rows[item.ProductID] = row
			}
			row.TotalSold += int64(item.Quantity)
			row.TotalAmount = row.TotalAmount.Add(item.TotalPrice)
		}
	}

	out := make([]models.ProductSales, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSold != out[j].TotalSold {
			return out[i].TotalSold > out[j].TotalSold
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

//
// --- Users ---
//

type userRepo struct{ r *repos }

func (ur userRepo) Get(_ context.Context, id int64) (*models.User, error) {
	d, unlock := ur.r.lock()
	defer unlock()

	u, ok := d.users[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "user %d", id)
	}
	return &u, nil
}

func (ur userRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	d, unlock := ur.r.lock()
	defer unlock()

	for _, u := range d.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, errors.Wrapf(models.ErrNotFound, "user %q", username)
}

func (ur userRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	d, unlock := ur.r.lock()
	defer unlock()

	for _, u := range d.users {
		if strings.EqualFold(u.Username, username) || strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (ur userRepo) ListByRole(_ context.Context, role models.Role) ([]models.User, error) {
	d, unlock := ur.r.lock()
	defer unlock()

	var out []models.User
	for _, u := range d.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (ur userRepo) CountActive(_ context.Context) (int, error) {
	d, unlock := ur.r.lock()
	defer unlock()

	n := 0
	for _, u := range d.users {
		if u.Active {
			n++
		}
	}
	return n, nil
}

func (ur userRepo) Create(_ context.Context, u *models.User) error {
	d, unlock := ur.r.lock()
	defer unlock()

	d.userSeq++
	u.ID = d.userSeq
	d.users[u.ID] = *u
	return nil
}

func (ur userRepo) Update(_ context.Context, u *models.User) error {
	d, unlock := ur.r.lock()
	defer unlock()

	if _, ok := d.users[u.ID]; !ok {
		return errors.Wrapf(models.ErrNotFound, "user %d", u.ID)
	}
	d.users[u.ID] = *u
	return nil
}
