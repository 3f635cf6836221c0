package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omegashop/storefront/internal/auth"
	"github.com/omegashop/storefront/internal/handlers"
	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/routes"
	"github.com/omegashop/storefront/internal/services"
	"github.com/omegashop/storefront/internal/storage"
	"github.com/omegashop/storefront/internal/store/memory"
)

type testApp struct {
	t      *testing.T
	router *gin.Engine
	store  *memory.Store
	tokens *auth.TokenManager
}

func newTestApp(t *testing.T) *testApp {
	gin.SetMode(gin.TestMode)
	s := memory.New()
	images, err := storage.NewLocal(t.TempDir(), "http://shop.test")
	require.NoError(t, err)

	now := services.Clock(time.Now)
	categories := services.NewCategoryService(s, now)
	reports := services.NewReportService(s, now)
	h := &handlers.Handlers{
		Users:      services.NewUserService(s, now),
		Catalog:    services.NewCatalogService(s, categories, images, now),
		Categories: categories,
		Cart:       services.NewCartService(s),
		Orders:     services.NewOrderService(s, now),
		Reports:    reports,
		Dashboard:  services.NewDashboardService(s, reports),
		Tokens:     auth.NewTokenManager("test-jwt-secret", time.Hour),
		Images:     images,
	}
	router := routes.SetupRouter(h, routes.Options{
		CORSOrigin:    "http://localhost:5173",
		SessionSecret: "test-session-secret",
		UploadDir:     images.Dir(),
	})
	return &testApp{t: t, router: router, store: s, tokens: h.Tokens}
}

// client is one browser: it keeps its session cookie and bearer token.
type client struct {
	app     *testApp
	token   string
	cookies map[string]*http.Cookie
}

func (a *testApp) anonymous() *client {
	return &client{app: a, cookies: map[string]*http.Cookie{}}
}

func (a *testApp) login(name string, role models.Role) (*client, *models.User) {
	u := &models.User{Username: name, Email: name + "@mail.test", Role: role, Active: true, CreatedAt: time.Now()}
	require.NoError(a.t, a.store.Users().Create(context.Background(), u))
	token, err := a.tokens.Generate(u)
	require.NoError(a.t, err)
	c := a.anonymous()
	c.token = token
	return c, u
}

func (c *client) send(req *http.Request) *httptest.ResponseRecorder {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	c.app.router.ServeHTTP(w, req)
	for _, cookie := range w.Result().Cookies() {
		c.cookies[cookie.Name] = cookie
	}
	return w
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.app.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (a *testApp) category(name string) int64 {
	c := &models.Category{Name: name, CreatedAt: time.Now()}
	require.NoError(a.t, a.store.Categories().Create(context.Background(), c))
	return c.ID
}

func (a *testApp) product(name, price string, quantity int, categoryID, sellerID int64) *models.Product {
	p := &models.Product{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Quantity:   quantity,
		Active:     true,
		CategoryID: categoryID,
		SellerID:   &sellerID,
		CreatedAt:  time.Now(),
	}
	require.NoError(a.t, a.store.Products().Create(context.Background(), p))
	return p
}

func (a *testApp) stock(id int64) int {
	p, err := a.store.Products().Get(context.Background(), id)
	require.NoError(a.t, err)
	return p.Quantity
}

type orderBody struct {
	Order models.Order `json:"order"`
}

func TestPingAndCORS(t *testing.T) {
	app := newTestApp(t)
	w := app.anonymous().do(http.MethodGet, "/v1/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	w = app.anonymous().do(http.MethodOptions, "/v1/products", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t)
	c := app.anonymous()
	signup := gin.H{"username": "nina", "email": "nina@mail.test", "password": "correct horse"}

	assert.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/v1/register", signup).Code)
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/v1/register", signup).Code)
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/v1/register", gin.H{"username": "x"}).Code)

	w := c.do(http.MethodPost, "/v1/login", gin.H{"username": "nina", "password": "wrong horse"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.do(http.MethodPost, "/v1/login", gin.H{"username": "nina", "password": "correct horse"})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decode(t, w, &body)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, models.RoleClient, body.User.Role)
	assert.NotContains(t, w.Body.String(), "password")

	c.token = body.Token
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/v1/profile/me", nil).Code)
}

func TestCartAndCheckout(t *testing.T) {
	app := newTestApp(t)
	_, seller := app.login("sam", models.RoleSeller)
	lamp := app.product("Lamp", "12.50", 5, app.category("Lighting"), seller.ID)
	shopper, _ := app.login("cleo", models.RoleClient)

	w := shopper.do(http.MethodPost, "/v1/cart/items", gin.H{"productId": lamp.ID, "quantity": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = shopper.do(http.MethodPost, "/v1/cart/items", gin.H{"productId": lamp.ID, "quantity": 3})
	assert.Equal(t, http.StatusConflict, w.Code)

	var count struct{ Count int }
	decode(t, shopper.do(http.MethodGet, "/v1/cart/count", nil), &count)
	assert.Equal(t, 3, count.Count)

	checkout := gin.H{"phone": "555-0100", "deliveryAddress": "1 Main St", "cardNumber": "4111 1111 1111 1234"}
	assert.Equal(t, http.StatusBadRequest, shopper.do(http.MethodPost, "/v1/checkout", gin.H{"phone": "555"}).Code)

	w = shopper.do(http.MethodPost, "/v1/checkout", checkout)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var placed orderBody
	decode(t, w, &placed)
	assert.Equal(t, models.OrderNew, placed.Order.Status)
	assert.Equal(t, "37.50", placed.Order.TotalAmount.StringFixed(2))
	assert.NotContains(t, w.Body.String(), "4111")
	assert.Equal(t, 2, app.stock(lamp.ID))

	decode(t, shopper.do(http.MethodGet, "/v1/cart/count", nil), &count)
	assert.Equal(t, 0, count.Count)

	// Empty cart now.
	assert.Equal(t, http.StatusConflict, shopper.do(http.MethodPost, "/v1/checkout", checkout).Code)
}

func TestCheckoutRequiresClient(t *testing.T) {
	app := newTestApp(t)
	anon := app.anonymous()
	body := gin.H{"phone": "555-0100", "deliveryAddress": "1 Main St"}
	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodPost, "/v1/checkout", body).Code)

	courier, _ := app.login("cora", models.RoleCourier)
	assert.Equal(t, http.StatusForbidden, courier.do(http.MethodPost, "/v1/checkout", body).Code)
}

func TestCartKeepsItemsWhenCheckoutFails(t *testing.T) {
	app := newTestApp(t)
	_, seller := app.login("sam", models.RoleSeller)
	lamp := app.product("Lamp", "10.00", 5, app.category("Lighting"), seller.ID)
	shopper, _ := app.login("cleo", models.RoleClient)

	require.Equal(t, http.StatusCreated, shopper.do(http.MethodPost, "/v1/cart/items", gin.H{"productId": lamp.ID, "quantity": 4}).Code)
	lamp.Quantity = 1
	require.NoError(t, app.store.Products().Update(context.Background(), lamp))

	w := shopper.do(http.MethodPost, "/v1/checkout", gin.H{"phone": "555-0100", "deliveryAddress": "1 Main St"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, app.stock(lamp.ID))

	var count struct{ Count int }
	decode(t, shopper.do(http.MethodGet, "/v1/cart/count", nil), &count)
	assert.Equal(t, 4, count.Count)
}

func TestOrderWorkflow(t *testing.T) {
	app := newTestApp(t)
	seller, sellerUser := app.login("sam", models.RoleSeller)
	courier, courierUser := app.login("cora", models.RoleCourier)
	otherCourier, _ := app.login("carl", models.RoleCourier)
	shopper, _ := app.login("cleo", models.RoleClient)
	lamp := app.product("Lamp", "10.00", 5, app.category("Lighting"), sellerUser.ID)

	require.Equal(t, http.StatusCreated, shopper.do(http.MethodPost, "/v1/cart/items", gin.H{"productId": lamp.ID, "quantity": 1}).Code)
	var placed orderBody
	decode(t, shopper.do(http.MethodPost, "/v1/checkout", gin.H{"phone": "555", "deliveryAddress": "1 Main St"}), &placed)
	id := placed.Order.ID
	base := "/v1/seller/orders/" + itoa(id)

	var queue models.PageResult[models.Order]
	decode(t, seller.do(http.MethodGet, "/v1/seller/orders/new", nil), &queue)
	require.Len(t, queue.Items, 1)

	assert.Equal(t, http.StatusConflict, seller.do(http.MethodPost, base+"/prepare", nil).Code)
	// A chunked request with an empty body carries no comment.
	confirm := httptest.NewRequest(http.MethodPost, base+"/confirm", io.MultiReader())
	confirm.Header.Set("Content-Type", "application/json")
	require.Equal(t, int64(-1), confirm.ContentLength)
	assert.Equal(t, http.StatusOK, seller.send(confirm).Code)
	assert.Equal(t, http.StatusOK, seller.do(http.MethodPost, base+"/prepare", gin.H{"invoiceNumber": "INV-7"}).Code)
	assert.Equal(t, http.StatusBadRequest, seller.do(http.MethodPost, base+"/assign", gin.H{"courierId": sellerUser.ID}).Code)
	assert.Equal(t, http.StatusOK, seller.do(http.MethodPost, base+"/assign", gin.H{"courierId": courierUser.ID}).Code)

	deliveries := "/v1/courier/orders/" + itoa(id)
	assert.Equal(t, http.StatusForbidden, otherCourier.do(http.MethodPost, deliveries+"/start", nil).Code)
	assert.Equal(t, http.StatusOK, courier.do(http.MethodPost, deliveries+"/start", nil).Code)

	var mine models.PageResult[models.Order]
	decode(t, courier.do(http.MethodGet, "/v1/courier/orders?status=IN_TRANSIT", nil), &mine)
	assert.Equal(t, 1, mine.Total)
	assert.Equal(t, http.StatusBadRequest, courier.do(http.MethodGet, "/v1/courier/orders?status=LOST", nil).Code)

	w := courier.do(http.MethodPost, deliveries+"/complete", gin.H{"comment": "left with neighbour"})
	require.Equal(t, http.StatusOK, w.Code)
	var done orderBody
	decode(t, w, &done)
	assert.Equal(t, models.OrderDelivered, done.Order.Status)
	assert.Equal(t, models.DeliveryDelivered, done.Order.DeliveryStatus)

	assert.Equal(t, http.StatusOK, shopper.do(http.MethodGet, "/v1/orders/"+itoa(id), nil).Code)
	assert.Equal(t, http.StatusForbidden, otherCourier.do(http.MethodGet, "/v1/orders/"+itoa(id), nil).Code)
	assert.Equal(t, http.StatusConflict, shopper.do(http.MethodPost, "/v1/orders/"+itoa(id)+"/cancel", nil).Code)
}

func TestRoleGuards(t *testing.T) {
	app := newTestApp(t)
	shopper, _ := app.login("cleo", models.RoleClient)
	seller, _ := app.login("sam", models.RoleSeller)
	admin, _ := app.login("root", models.RoleAdmin)

	assert.Equal(t, http.StatusUnauthorized, app.anonymous().do(http.MethodGet, "/v1/orders", nil).Code)
	assert.Equal(t, http.StatusForbidden, shopper.do(http.MethodGet, "/v1/admin/orders", nil).Code)
	assert.Equal(t, http.StatusForbidden, shopper.do(http.MethodGet, "/v1/seller/orders", nil).Code)
	assert.Equal(t, http.StatusForbidden, seller.do(http.MethodGet, "/v1/admin/reports/sellers", nil).Code)
	assert.Equal(t, http.StatusForbidden, admin.do(http.MethodGet, "/v1/seller/reports", nil).Code)
	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/v1/seller/orders/new", nil).Code)
	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/v1/seller/orders", nil).Code)
	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/v1/admin/orders?status=NEW", nil).Code)
	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodGet, "/v1/admin/orders?status=LOST", nil).Code)
}

func TestCatalogEndpoints(t *testing.T) {
	app := newTestApp(t)
	_, seller := app.login("sam", models.RoleSeller)
	lighting := app.category("Lighting")
	app.product("Desk Lamp", "20.00", 3, lighting, seller.ID)
	app.product("Speaker", "50.00", 3, app.category("Audio"), seller.ID)
	anon := app.anonymous()

	var page models.PageResult[models.Product]
	decode(t, anon.do(http.MethodGet, "/v1/products?min_price=30&max_price=60", nil), &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Speaker", page.Items[0].Name)

	decode(t, anon.do(http.MethodGet, "/v1/products?q=lamp&page=1&size=5", nil), &page)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 5, page.Size)

	assert.Equal(t, http.StatusBadRequest, anon.do(http.MethodGet, "/v1/products?min_price=cheap", nil).Code)
	assert.Equal(t, http.StatusBadRequest, anon.do(http.MethodGet, "/v1/products/abc", nil).Code)
	assert.Equal(t, http.StatusNotFound, anon.do(http.MethodGet, "/v1/products/999", nil).Code)
}

func TestProductManagement(t *testing.T) {
	app := newTestApp(t)
	seller, _ := app.login("sam", models.RoleSeller)
	rival, _ := app.login("olga", models.RoleSeller)
	lighting := app.category("Lighting")

	w := seller.do(http.MethodPost, "/v1/seller/products", gin.H{
		"name": "Floor Lamp", "price": "99.90", "quantity": 4, "categoryId": lighting,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct{ Product models.Product }
	decode(t, w, &created)
	path := "/v1/seller/products/" + itoa(created.Product.ID)

	w = seller.do(http.MethodPost, "/v1/seller/products", gin.H{"name": "Free", "price": "0", "categoryId": lighting})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	update := gin.H{"name": "Floor Lamp", "price": "89.90", "quantity": 4, "categoryId": lighting}
	assert.Equal(t, http.StatusForbidden, rival.do(http.MethodPut, path, update).Code)
	assert.Equal(t, http.StatusOK, seller.do(http.MethodPut, path, update).Code)

	// Upload a PNG image.
	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="lamp.png"`)
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path+"/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = seller.send(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var uploaded struct{ URL string }
	decode(t, w, &uploaded)
	assert.Contains(t, uploaded.URL, "http://shop.test/uploads/")
	assert.Contains(t, uploaded.URL, ".png")

	assert.Equal(t, http.StatusOK, seller.do(http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, seller.do(http.MethodDelete, path, nil).Code)
}

func TestCategoryEndpoints(t *testing.T) {
	app := newTestApp(t)
	admin, _ := app.login("root", models.RoleAdmin)
	anon := app.anonymous()

	w := admin.do(http.MethodPost, "/v1/admin/categories", gin.H{"name": "Lighting"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct{ Category models.Category }
	decode(t, w, &created)
	assert.Equal(t, "lighting", created.Category.Slug)

	parent := created.Category.ID
	w = admin.do(http.MethodPost, "/v1/admin/categories", gin.H{"name": "Lamps", "parentId": parent})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &created)
	child := created.Category.ID

	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodPost, "/v1/admin/categories", gin.H{"name": "Lighting"}).Code)
	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodPut, "/v1/admin/categories/"+itoa(parent), gin.H{"name": "Lighting", "parentId": child}).Code)
	assert.Equal(t, http.StatusConflict, admin.do(http.MethodDelete, "/v1/admin/categories/"+itoa(parent), nil).Code)

	var tree struct{ Categories []models.CategoryNode }
	decode(t, anon.do(http.MethodGet, "/v1/categories/tree", nil), &tree)
	require.Len(t, tree.Categories, 1)
	require.Len(t, tree.Categories[0].Children, 1)
	assert.Equal(t, "Lighting > Lamps", tree.Categories[0].Children[0].Path)

	var one struct{ Category models.CategoryNode }
	decode(t, anon.do(http.MethodGet, "/v1/categories/"+itoa(child), nil), &one)
	assert.Equal(t, "Lighting > Lamps", one.Category.Path)
}

func TestReportsAndDashboard(t *testing.T) {
	app := newTestApp(t)
	seller, _ := app.login("sam", models.RoleSeller)
	admin, _ := app.login("root", models.RoleAdmin)

	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodGet, "/v1/admin/reports/sellers?days=0", nil).Code)

	var sellers models.SalesReport[models.SellerSales]
	decode(t, admin.do(http.MethodGet, "/v1/admin/reports/sellers?days=7", nil), &sellers)
	assert.NotNil(t, sellers.Rows)
	assert.Empty(t, sellers.Rows)

	var own models.SalesReport[models.SellerSales]
	decode(t, seller.do(http.MethodGet, "/v1/seller/reports?period=month", nil), &own)
	require.Len(t, own.Rows, 1)
	assert.Equal(t, "sam", own.Rows[0].SellerName)

	var stats services.SellerDashboard
	w := seller.do(http.MethodGet, "/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &stats)
	assert.Zero(t, stats.NewOrders)

	var adminStats services.AdminDashboard
	decode(t, admin.do(http.MethodGet, "/v1/dashboard", nil), &adminStats)
	assert.Equal(t, 2, adminStats.ActiveUsers)
}

func TestAdminUsers(t *testing.T) {
	app := newTestApp(t)
	admin, adminUser := app.login("root", models.RoleAdmin)

	w := admin.do(http.MethodPost, "/v1/admin/users", gin.H{
		"username": "cora", "email": "cora@mail.test", "password": "correct horse", "role": "COURIER",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct{ User models.User }
	decode(t, w, &created)

	var list struct{ Users []models.User }
	decode(t, admin.do(http.MethodGet, "/v1/admin/users?role=COURIER", nil), &list)
	require.Len(t, list.Users, 1)

	path := "/v1/admin/users/" + itoa(created.User.ID) + "/active"
	assert.Equal(t, http.StatusOK, admin.do(http.MethodPatch, path, gin.H{"active": false}).Code)
	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodPatch, path, gin.H{}).Code)

	self := "/v1/admin/users/" + itoa(adminUser.ID) + "/active"
	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodPatch, self, gin.H{"active": false}).Code)
}
