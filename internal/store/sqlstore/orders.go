package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/omegashop/storefront/internal/models"
)

const orderColumns = `
	o.id, o.user_id, o.status, o.delivery_status, o.total_amount, o.phone, o.delivery_address,
	o.comment, o.courier_id, o.invoice_number, o.seller_comment, o.courier_comment,
	o.courier_assigned_at, o.ready_for_delivery_at, o.delivery_started_at, o.delivered_at,
	o.created_at, o.updated_at`

const itemColumns = "id, order_id, product_id, product_name, price, quantity, image_path, total_price"

type orderRepo struct {
	q sqlx.ExtContext
}

func (r *orderRepo) Get(ctx context.Context, id int64) (*models.Order, error) {
	var o models.Order
	err := sqlx.GetContext(ctx, r.q, &o, "SELECT"+orderColumns+" FROM orders o WHERE o.id = ?", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(models.ErrNotFound, "order %d", id)
		}
		return nil, errors.Wrapf(err, "get order %d", id)
	}

	orders := []models.Order{o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// loadItems fills Items for every order with one query.
func (r *orderRepo) loadItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Items = []models.OrderItem{}
	}

	query, args, err := sqlx.In("SELECT "+itemColumns+" FROM order_items WHERE order_id IN (?) ORDER BY id", ids)
	if err != nil {
		return errors.Wrap(err, "build order items query")
	}
	var items []models.OrderItem
	if err := sqlx.SelectContext(ctx, r.q, &items, r.q.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "load order items")
	}
	for _, item := range items {
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return nil
}

func orderWhere(f models.OrderFilter) *where {
	w := &where{}
	if f.UserID != nil {
		w.add("o.user_id = ?", *f.UserID)
	}
	if f.CourierID != nil {
		w.add("o.courier_id = ?", *f.CourierID)
	}
	if f.Status != nil {
		w.add("o.status = ?", *f.Status)
	}
	if f.DeliveryStatus != nil {
		w.add("o.delivery_status = ?", *f.DeliveryStatus)
	}
	if f.From != nil {
		w.add("o.created_at >= ?", *f.From)
	}
	if f.To != nil {
		w.add("o.created_at <= ?", *f.To)
	}
	if f.SellerID != nil {
		w.add(`EXISTS (
			SELECT 1 FROM order_items oi JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = o.id AND p.seller_id = ?)`, *f.SellerID)
	}
	return w
}

func (r *orderRepo) Count(ctx context.Context, f models.OrderFilter) (int, error) {
	w := orderWhere(f)
	var n int
	err := sqlx.GetContext(ctx, r.q, &n, "SELECT COUNT(*) FROM orders o"+w.String(), w.args...)
	return n, errors.Wrap(err, "count orders")
}

func (r *orderRepo) List(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error) {
	total, err := r.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	w := orderWhere(f)
	order := " ORDER BY o.created_at DESC, o.id DESC"
	if f.OldestFirst {
		order = " ORDER BY o.created_at, o.id"
	}
	page := f.Page.Normalize()
	query := "SELECT" + orderColumns + " FROM orders o" + w.String() + order + " LIMIT ? OFFSET ?"
	args := append(append([]interface{}{}, w.args...), page.Size, page.Offset())

	var orders []models.Order
	if err := sqlx.SelectContext(ctx, r.q, &orders, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders
		(user_id, status, delivery_status, total_amount, phone, delivery_address, comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.q.ExecContext(ctx, query,
		o.UserID, o.Status, o.DeliveryStatus, o.TotalAmount, o.Phone, o.Address, o.Comment, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}
	if o.ID, err = res.LastInsertId(); err != nil {
		return errors.Wrap(err, "order id")
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, product_name, price, quantity, image_path, total_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		res, err := r.q.ExecContext(ctx, itemQuery,
			item.OrderID, item.ProductID, item.ProductName, item.Price, item.Quantity, item.ImagePath, item.TotalPrice)
		if err != nil {
			return errors.Wrapf(err, "insert item for product %d", item.ProductID)
		}
		if item.ID, err = res.LastInsertId(); err != nil {
			return errors.Wrap(err, "order item id")
		}
	}
	return nil
}

func (r *orderRepo) Update(ctx context.Context, o *models.Order) error {
	query := `
		UPDATE orders
		SET status = ?, delivery_status = ?, courier_id = ?, invoice_number = ?,
			seller_comment = ?, courier_comment = ?, courier_assigned_at = ?,
			ready_for_delivery_at = ?, delivery_started_at = ?, delivered_at = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.q.ExecContext(ctx, query,
		o.Status, o.DeliveryStatus, o.CourierID, o.InvoiceNumber,
		o.SellerComment, o.CourierComment, o.CourierAssignedAt,
		o.ReadyForDeliveryAt, o.DeliveryStartedAt, o.DeliveredAt, o.UpdatedAt, o.ID)
	if err != nil {
		return errors.Wrapf(err, "update order %d", o.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 for an unchanged row too, so confirm the order exists.
		var exists bool
		if err := sqlx.GetContext(ctx, r.q, &exists, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = ?)", o.ID); err != nil {
			return errors.Wrapf(err, "check order %d", o.ID)
		}
		if !exists {
			return errors.Wrapf(models.ErrNotFound, "order %d", o.ID)
		}
	}
	return nil
}

func salesWhere(q models.SalesQuery) *where {
	w := &where{}
	if q.ExcludeStatus {
		w.add("o.status <> ?", q.Status)
	} else {
		w.add("o.status = ?", q.Status)
	}
	w.add("o.created_at BETWEEN ? AND ?", q.From, q.To)
	if q.SellerID != nil {
		w.add("p.seller_id = ?", *q.SellerID)
	}
	return w
}

func (r *orderRepo) SalesBySeller(ctx context.Context, q models.SalesQuery) ([]models.SellerSales, error) {
	w := salesWhere(q)
	query := `
		SELECT COALESCE(p.seller_id, 0) AS seller_id,
			COALESCE(u.username, '` + models.NoSellerName + `') AS seller_name,
			COALESCE(u.email, '') AS seller_email,
			SUM(oi.quantity) AS total_sold,
			SUM(oi.total_price) AS total_amount
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		LEFT JOIN products p ON p.id = oi.product_id
		LEFT JOIN users u ON u.id = p.seller_id` + w.String() + `
		GROUP BY COALESCE(p.seller_id, 0), u.username, u.email
		ORDER BY seller_name, seller_id`

	var rows []models.SellerSales
	err := sqlx.SelectContext(ctx, r.q, &rows, query, w.args...)
	return rows, errors.Wrap(err, "sales by seller")
}

func (r *orderRepo) SalesByProduct(ctx context.Context, q models.SalesQuery) ([]models.ProductSales, error) {
	w := salesWhere(q)
	query := `
		SELECT oi.product_id,
			COALESCE(p.name, MAX(oi.product_name)) AS product_name,
			COALESCE(c.name, '') AS category_name,
			SUM(oi.quantity) AS total_sold,
			SUM(oi.total_price) AS total_amount
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		LEFT JOIN products p ON p.id = oi.product_id
		LEFT JOIN categories c ON c.id = p.category_id` + w.String() + `
		GROUP BY oi.product_id, p.name, c.name
		ORDER BY total_sold DESC, oi.product_id`

	var rows []models.ProductSales
	err := sqlx.SelectContext(ctx, r.q, &rows, query, w.args...)
	return rows, errors.Wrap(err, "sales by product")
}
