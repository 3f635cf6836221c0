package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omegashop/storefront/internal/models"
)

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	p := f.product("Lamp", "12.50", 5)
	var cart models.Cart
	require.NoError(t, f.cart.Add(f.ctx, &cart, p.ID, 3))

	o, err := f.orders.Checkout(f.ctx, f.client, &cart, CheckoutRequest{
		Phone: "555-0100", Address: "1 Main St", Comment: "  ", CardNumber: "4111 1111 1111 1234",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, f.stock(p.ID))
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, models.OrderNew, o.Status)
	assert.Equal(t, models.DeliveryNotAssigned, o.DeliveryStatus)
	assert.Nil(t, o.Comment)
	assert.True(t, decimal.RequireFromString("37.50").Equal(o.TotalAmount))

	stored, err := f.orders.Get(f.ctx, f.client, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Lamp", stored.Items[0].ProductName)
	assert.Equal(t, 3, stored.Items[0].Quantity)
}

func TestCheckoutIsAtomic(t *testing.T) {
	f := newFixture(t)
	a := f.product("Lamp", "10.00", 5)
	b := f.product("Shade", "4.00", 5)
	var cart models.Cart
	require.NoError(t, f.cart.Add(f.ctx, &cart, a.ID, 2))
	require.NoError(t, f.cart.Add(f.ctx, &cart, b.ID, 3))
	f.setStock(b.ID, 1)

	_, err := f.orders.Checkout(f.ctx, f.client, &cart, CheckoutRequest{Phone: "1", Address: "x"})
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	assert.Equal(t, 5, f.stock(a.ID))
	assert.Equal(t, 1, f.stock(b.ID))
	assert.Equal(t, 5, cart.Count())
	n, err := f.store.Orders().Count(f.ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCheckoutRejects(t *testing.T) {
	f := newFixture(t)
	p := f.product("Lamp", "10.00", 5)

	var empty models.Cart
	_, err := f.orders.Checkout(f.ctx, f.client, &empty, CheckoutRequest{Phone: "1", Address: "x"})
	assert.ErrorIs(t, err, models.ErrInvalidState)

	var cart models.Cart
	require.NoError(t, f.cart.Add(f.ctx, &cart, p.ID, 1))
	_, err = f.orders.Checkout(f.ctx, f.client, &cart, CheckoutRequest{Phone: " ", Address: "x"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.orders.Checkout(f.ctx, f.seller, &cart, CheckoutRequest{Phone: "1", Address: "x"})
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Equal(t, 5, f.stock(p.ID))
}

func TestSnapshotSurvivesProductEdits(t *testing.T) {
	f := newFixture(t)
	p := f.product("Lamp", "10.00", 5)
	o := f.placeOrder(p, 1)

	p, err := f.store.Products().Get(f.ctx, p.ID)
	require.NoError(t, err)
	p.Name, p.Price = "Renamed", decimal.NewFromInt(99)
	require.NoError(t, f.store.Products().Update(f.ctx, p))

	stored, err := f.orders.Get(f.ctx, f.admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", stored.Items[0].ProductName)
	assert.True(t, decimal.NewFromInt(10).Equal(stored.Items[0].Price))
}

func TestFullDeliveryFlow(t *testing.T) {
	f := newFixture(t)
	p := f.product("Lamp", "10.00", 5)
	o := f.placeOrder(p, 2)

	o, err := f.orders.Confirm(f.ctx, f.seller, o.ID, "stock checked")
	require.NoError(t, err)
	assert.Equal(t, models.OrderInProgress, o.Status)
	require.NotNil(t, o.SellerComment)
	assert.Equal(t, "stock checked", *o.SellerComment)

	o, err = f.orders.PrepareForDelivery(f.ctx, f.seller, o.ID, "INV-7", "packed")
	require.NoError(t, err)
	assert.Equal(t, models.OrderReadyForDelivery, o.Status)
	assert.Equal(t, models.DeliveryReady, o.DeliveryStatus)
	require.NotNil(t, o.InvoiceNumber)
	assert.Equal(t, "INV-7", *o.InvoiceNumber)
	assert.NotNil(t, o.ReadyForDeliveryAt)

	o, err = f.orders.AssignCourier(f.ctx, f.seller, o.ID, f.courier.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryAssigned, o.DeliveryStatus)
	assert.True(t, o.AssignedTo(f.courier.UserID))
	assert.NotNil(t, o.CourierAssignedAt)

	o, err = f.orders.StartDelivery(f.ctx, f.courier, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryInTransit, o.DeliveryStatus)
	assert.NotNil(t, o.DeliveryStartedAt)

	o, err = f.orders.CompleteDelivery(f.ctx, f.courier, o.ID, "left at door")
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, o.Status)
	assert.Equal(t, models.DeliveryDelivered, o.DeliveryStatus)
	assert.NotNil(t, o.DeliveredAt)
	require.NotNil(t, o.CourierComment)
	assert.Equal(t, "left at door", *o.CourierComment)

	_, err = f.orders.Cancel(f.ctx, f.client, o.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.Equal(t, 3, f.stock(p.ID))
}

func TestConfirmFailsOnStockDrop(t *testing.T) {
	f := newFixture(t)
	p := f.product("Lamp", "10.00", 5)
	o := f.placeOrder(p, 3)
	f.setStock(p.ID, 1)

	_, err := f.orders.Confirm(f.ctx, f.seller, o.ID, "")
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	stored, err := f.orders.Get(f.ctx, f.seller, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderNew, stored.Status)
	assert.Equal(t, 1, f.stock(p.ID))
}

func TestConfirmRequiresNew(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(f.product("Lamp", "10.00", 5), 1)
	_, err := f.orders.Confirm(f.ctx, f.seller, o.ID, "")
	require.NoError(t, err)

	_, err = f.orders.Confirm(f.ctx, f.seller, o.ID, "")
	assert.ErrorIs(t, err, models.ErrInvalidState)
	_, err = f.orders.Reject(f.ctx, f.seller, o.ID, "")
	assert.ErrorIs(t, err, models.ErrInvalidState)
	_, err = f.orders.Confirm(f.ctx, f.client, o.ID, "")
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = f.orders.Confirm(f.ctx, f.seller, 999, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRejectRestocks(t *testing.T) {
	f := newFixture(t)
	p := f.product("Lamp", "10.00", 5)
	o := f.placeOrder(p, 4)
	assert.Equal(t, 1, f.stock(p.ID))

	o, err := f.orders.Reject(f.ctx, f.seller, o.ID, "no courier today")
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, o.Status)
	assert.Equal(t, models.DeliveryCancelled, o.DeliveryStatus)
	assert.Equal(t, "no courier today", *o.SellerComment)
	assert.Equal(t, 5, f.stock(p.ID))
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	a := f.product("Lamp", "10.00", 5)
	b := f.product("Shade", "4.00", 7)
	o := f.placeOrder(a, 2, b, 3)
	assert.Equal(t, 3, f.stock(a.ID))
	assert.Equal(t, 4, f.stock(b.ID))

	stranger := f.user("eve", models.RoleClient)
	_, err := f.orders.Cancel(f.ctx, stranger, o.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	o, err = f.orders.Cancel(f.ctx, f.client, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, o.Status)
	assert.Equal(t, 5, f.stock(a.ID))
	assert.Equal(t, 7, f.stock(b.ID))

	_, err = f.orders.Cancel(f.ctx, f.client, o.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.Equal(t, 5, f.stock(a.ID))
}

func TestAdminCancelsInProgressOrder(t *testing.T) {
	f := newFixture(t)
	p := f.product("Lamp", "10.00", 5)
	o := f.placeOrder(p, 2)
	_, err := f.orders.Confirm(f.ctx, f.seller, o.ID, "")
	require.NoError(t, err)

	_, err = f.orders.Cancel(f.ctx, f.admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, f.stock(p.ID))
}

func TestAssignCourierChecksRoleAndStatus(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(f.product("Lamp", "10.00", 5), 1)

	_, err := f.orders.AssignCourier(f.ctx, f.seller, o.ID, f.courier.UserID)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = f.orders.Confirm(f.ctx, f.seller, o.ID, "")
	require.NoError(t, err)
	_, err = f.orders.PrepareForDelivery(f.ctx, f.seller, o.ID, "", "")
	require.NoError(t, err)

	_, err = f.orders.AssignCourier(f.ctx, f.seller, o.ID, f.client.UserID)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = f.orders.AssignCourier(f.ctx, f.seller, o.ID, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCourierGuards(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(f.product("Lamp", "10.00", 5), 1)
	_, err := f.orders.Confirm(f.ctx, f.seller, o.ID, "")
	require.NoError(t, err)
	_, err = f.orders.PrepareForDelivery(f.ctx, f.seller, o.ID, "", "")
	require.NoError(t, err)
	_, err = f.orders.AssignCourier(f.ctx, f.seller, o.ID, f.courier.UserID)
	require.NoError(t, err)

	other := f.user("otto", models.RoleCourier)
	_, err = f.orders.StartDelivery(f.ctx, other, o.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.orders.CompleteDelivery(f.ctx, f.courier, o.ID, "")
	assert.ErrorIs(t, err, models.ErrInvalidState)
	stored, err := f.orders.Get(f.ctx, f.courier, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderReadyForDelivery, stored.Status)
	assert.Equal(t, models.DeliveryAssigned, stored.DeliveryStatus)

	_, err = f.orders.StartDelivery(f.ctx, f.courier, o.ID)
	require.NoError(t, err)
	_, err = f.orders.StartDelivery(f.ctx, f.courier, o.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	o, err = f.orders.MarkProblem(f.ctx, f.courier, o.ID, "nobody home")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryFailed, o.DeliveryStatus)
	assert.Equal(t, "nobody home", *o.CourierComment)

	o, err = f.orders.MarkProblem(f.ctx, f.courier, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "nobody home", *o.CourierComment)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	p := f.product("Lamp", "10.00", 5)
	o := f.placeOrder(p, 2)

	o, err := f.orders.UpdateStatus(f.ctx, f.admin, o.ID, models.OrderDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, o.Status)
	assert.Equal(t, 3, f.stock(p.ID))

	_, err = f.orders.UpdateStatus(f.ctx, f.admin, o.ID, "SHIPPED")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = f.orders.UpdateStatus(f.ctx, f.seller, o.ID, models.OrderNew)
	assert.ErrorIs(t, err, models.ErrForbidden)

	cancelled := f.placeOrder(p, 1)
	_, err = f.orders.Cancel(f.ctx, f.client, cancelled.ID)
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(f.ctx, f.admin, cancelled.ID, models.OrderNew)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestOrderVisibility(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(f.product("Lamp", "10.00", 5), 1)

	_, err := f.orders.Get(f.ctx, f.user("eve", models.RoleClient), o.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = f.orders.Get(f.ctx, f.courier, o.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = f.orders.Get(f.ctx, f.seller, o.ID)
	assert.NoError(t, err)
}

func TestOrderQueries(t *testing.T) {
	f := newFixture(t)
	p := f.product("Lamp", "10.00", 50)
	first := f.placeOrder(p, 1)
	f.now = f.now.Add(1)
	second := f.placeOrder(p, 1)
	f.now = f.now.Add(1)
	delivered := f.deliver(f.placeOrder(p, 1).ID)

	mine, err := f.orders.ListMine(f.ctx, f.client, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, 3, mine.Total)
	assert.Equal(t, delivered.ID, mine.Items[0].ID)

	queue, err := f.orders.ListNew(f.ctx, f.seller, models.Page{})
	require.NoError(t, err)
	require.Len(t, queue.Items, 2)
	assert.Equal(t, first.ID, queue.Items[0].ID)
	assert.Equal(t, second.ID, queue.Items[1].ID)

	olga := f.user("olga", models.RoleSeller)
	vase := f.product("Vase", "5.00", 10)
	vase.SellerID = &olga.UserID
	require.NoError(t, f.store.Products().Update(f.ctx, vase))
	f.placeOrder(vase, 1)

	forSeller, err := f.orders.ListForSeller(f.ctx, f.seller, nil, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, 3, forSeller.Total)

	forOlga, err := f.orders.ListForSeller(f.ctx, olga, nil, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, forOlga.Total)

	// Admins are not narrowed to one seller.
	everyone, err := f.orders.ListForSeller(f.ctx, f.admin, nil, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, 4, everyone.Total)

	_, err = f.orders.ListForSeller(f.ctx, f.client, nil, models.Page{})
	assert.ErrorIs(t, err, models.ErrForbidden)

	status := models.DeliveryDelivered
	courierOrders, err := f.orders.ListForCourier(f.ctx, f.courier, &status, models.Page{})
	require.NoError(t, err)
	require.Len(t, courierOrders.Items, 1)
	assert.Equal(t, delivered.ID, courierOrders.Items[0].ID)

	cancelled := models.OrderCancelled
	all, err := f.orders.ListAll(f.ctx, f.admin, &cancelled, models.Page{})
	require.NoError(t, err)
	assert.Empty(t, all.Items)

	_, err = f.orders.ListAll(f.ctx, f.seller, nil, models.Page{})
	assert.ErrorIs(t, err, models.ErrForbidden)

	couriers, err := f.orders.Couriers(f.ctx, f.seller)
	require.NoError(t, err)
	require.Len(t, couriers, 1)
	assert.Equal(t, "cora", couriers[0].Username)
}

func TestMaskCard(t *testing.T) {
	assert.Equal(t, "**** **** **** 1234", MaskCard("4111-1111-1111-1234"))
	assert.Equal(t, "****", MaskCard("12"))
}
