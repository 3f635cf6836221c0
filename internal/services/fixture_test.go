package services

import (
	"context"
	"mime/multipart"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/store/memory"
)

type fakeImages struct {
	saved   []string
	deleted []string
}

func (f *fakeImages) Save(fh *multipart.FileHeader) (string, error) {
	ref := "img-" + fh.Filename
	f.saved = append(f.saved, ref)
	return ref, nil
}

func (f *fakeImages) Delete(ref string) { f.deleted = append(f.deleted, ref) }

type fixture struct {
	t   *testing.T
	ctx context.Context
	now time.Time

	store      *memory.Store
	images     *fakeImages
	cart       *CartService
	orders     *OrderService
	categories *CategoryService
	catalog    *CatalogService
	reports    *ReportService
	users      *UserService
	dashboard  *DashboardService

	admin, seller, courier, client models.Principal
	category                       int64
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		now:    time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		store:  memory.New(),
		images: &fakeImages{},
	}
	clock := func() time.Time { return f.now }

	f.cart = NewCartService(f.store)
	f.orders = NewOrderService(f.store, clock)
	f.categories = NewCategoryService(f.store, clock)
	f.catalog = NewCatalogService(f.store, f.categories, f.images, clock)
	f.reports = NewReportService(f.store, clock)
	f.users = NewUserService(f.store, clock)
	f.dashboard = NewDashboardService(f.store, f.reports)

	f.admin = f.user("admin", models.RoleAdmin)
	f.seller = f.user("sam", models.RoleSeller)
	f.courier = f.user("cora", models.RoleCourier)
	f.client = f.user("cleo", models.RoleClient)
	f.category = f.makeCategory("Lighting", nil)
	return f
}

func (f *fixture) user(name string, role models.Role) models.Principal {
	u := &models.User{Username: name, Email: name + "@example.com", Role: role, Active: true, CreatedAt: f.now}
	require.NoError(f.t, f.store.Users().Create(f.ctx, u))
	return models.PrincipalOf(u)
}

func (f *fixture) makeCategory(name string, parent *int64) int64 {
	c := &models.Category{Name: name, ParentID: parent, CreatedAt: f.now}
	require.NoError(f.t, f.store.Categories().Create(f.ctx, c))
	return c.ID
}

func (f *fixture) product(name, price string, quantity int) *models.Product {
	p := &models.Product{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Quantity:   quantity,
		Active:     true,
		CategoryID: f.category,
		SellerID:   &f.seller.UserID,
		CreatedAt:  f.now,
	}
	require.NoError(f.t, f.store.Products().Create(f.ctx, p))
	return p
}

func (f *fixture) stock(id int64) int {
	p, err := f.store.Products().Get(f.ctx, id)
	require.NoError(f.t, err)
	return p.Quantity
}

func (f *fixture) setStock(id int64, quantity int) {
	p, err := f.store.Products().Get(f.ctx, id)
	require.NoError(f.t, err)
	p.Quantity = quantity
	require.NoError(f.t, f.store.Products().Update(f.ctx, p))
}

// placeOrder checks out the given product quantities as the fixture client.
func (f *fixture) placeOrder(lines ...interface{}) *models.Order {
	var cart models.Cart
	for i := 0; i < len(lines); i += 2 {
		p := lines[i].(*models.Product)
		require.NoError(f.t, f.cart.Add(f.ctx, &cart, p.ID, lines[i+1].(int)))
	}
	o, err := f.orders.Checkout(f.ctx, f.client, &cart, CheckoutRequest{Phone: "555-0100", Address: "1 Main St"})
	require.NoError(f.t, err)
	return o
}

// deliver runs an order through the whole happy path.
func (f *fixture) deliver(id int64) *models.Order {
	_, err := f.orders.Confirm(f.ctx, f.seller, id, "")
	require.NoError(f.t, err)
	_, err = f.orders.PrepareForDelivery(f.ctx, f.seller, id, "", "")
	require.NoError(f.t, err)
	_, err = f.orders.AssignCourier(f.ctx, f.seller, id, f.courier.UserID)
	require.NoError(f.t, err)
	_, err = f.orders.StartDelivery(f.ctx, f.courier, id)
	require.NoError(f.t, err)
	o, err := f.orders.CompleteDelivery(f.ctx, f.courier, id, "")
	require.NoError(f.t, err)
	return o
}
