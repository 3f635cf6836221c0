package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the primary order lifecycle track.
type OrderStatus string

const (
	OrderNew              OrderStatus = "NEW"
	OrderInProgress       OrderStatus = "IN_PROGRESS"
	OrderReadyForDelivery OrderStatus = "READY_FOR_DELIVERY"
	OrderDelivered        OrderStatus = "DELIVERED"
	OrderCancelled        OrderStatus = "CANCELLED"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []OrderStatus{OrderNew, OrderInProgress, OrderReadyForDelivery, OrderDelivered, OrderCancelled}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Final reports whether no further transition (other than admin override) is expected.
func (s OrderStatus) Final() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// DeliveryStatus is the courier handling track of an order.
type DeliveryStatus string

const (
	DeliveryNotAssigned DeliveryStatus = "NOT_ASSIGNED"
	DeliveryAssigned    DeliveryStatus = "ASSIGNED"
	DeliveryReady       DeliveryStatus = "READY"
	DeliveryInTransit   DeliveryStatus = "IN_TRANSIT"
	DeliveryDelivered   DeliveryStatus = "DELIVERED"
	DeliveryFailed      DeliveryStatus = "FAILED"
	DeliveryCancelled   DeliveryStatus = "CANCELLED"
)

var DeliveryStatuses = []DeliveryStatus{
	DeliveryNotAssigned, DeliveryAssigned, DeliveryReady, DeliveryInTransit,
	DeliveryDelivered, DeliveryFailed, DeliveryCancelled,
}

func (s DeliveryStatus) Valid() bool {
	for _, v := range DeliveryStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Order is the model for the 'orders' table
type Order struct {
	ID             int64           `json:"id" db:"id"`
	UserID         int64           `json:"userId" db:"user_id"`
	Status         OrderStatus     `json:"status" db:"status"`
	DeliveryStatus DeliveryStatus  `json:"deliveryStatus" db:"delivery_status"`
	TotalAmount    decimal.Decimal `json:"totalAmount" db:"total_amount"`
	Phone          string          `json:"phone" db:"phone"`
	Address        string          `json:"deliveryAddress" db:"delivery_address"`
	Comment        *string         `json:"comment,omitempty" db:"comment"`

	CourierID      *int64  `json:"courierId,omitempty" db:"courier_id"`
	InvoiceNumber  *string `json:"invoiceNumber,omitempty" db:"invoice_number"`
	SellerComment  *string `json:"sellerComment,omitempty" db:"seller_comment"`
	CourierComment *string `json:"courierComment,omitempty" db:"courier_comment"`

	CourierAssignedAt  *time.Time `json:"courierAssignedAt,omitempty" db:"courier_assigned_at"`
	ReadyForDeliveryAt *time.Time `json:"readyForDeliveryAt,omitempty" db:"ready_for_delivery_at"`
	DeliveryStartedAt  *time.Time `json:"deliveryStartedAt,omitempty" db:"delivery_started_at"`
	DeliveredAt        *time.Time `json:"deliveredAt,omitempty" db:"delivered_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Items []OrderItem `json:"items" db:"-"`
}

// OrderItem is the model for the 'order_items' table. Name, price and image
// are copied from the product at purchase time.
type OrderItem struct {
	ID          int64           `json:"id" db:"id"`
	OrderID     int64           `json:"orderId" db:"order_id"`
	ProductID   int64           `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	ImagePath   *string         `json:"imagePath,omitempty" db:"image_path"`
	TotalPrice  decimal.Decimal `json:"totalPrice" db:"total_price"`
}

// NewOrderItem snapshots a product into a line item.
func NewOrderItem(p *Product, quantity int) OrderItem {
	item := OrderItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Price:       p.Price,
		Quantity:    quantity,
	}
	if p.ImagePath != nil {
		img := *p.ImagePath
		item.ImagePath = &img
	}
	item.Recalculate()
	return item
}

// Recalculate refreshes TotalPrice from Price and Quantity.
func (i *OrderItem) Recalculate() {
	i.TotalPrice = i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SetPrice changes the unit price and keeps the line total in sync.
func (i *OrderItem) SetPrice(price decimal.Decimal) {
	i.Price = price
	i.Recalculate()
}

// SetQuantity changes the quantity and keeps the line total in sync.
func (i *OrderItem) SetQuantity(quantity int) {
	i.Quantity = quantity
	i.Recalculate()
}

// AddItem appends a line and refreshes the order total.
func (o *Order) AddItem(item OrderItem) {
	item.OrderID = o.ID
	item.Recalculate()
	o.Items = append(o.Items, item)
	o.RecalculateTotal()
}

// RecalculateTotal sets TotalAmount to the sum of the line totals.
func (o *Order) RecalculateTotal() {
	total := decimal.Zero
	for i := range o.Items {
		o.Items[i].Recalculate()
		total = total.Add(o.Items[i].TotalPrice)
	}
	o.TotalAmount = total
}

// AssignedTo reports whether userID is the order's courier.
func (o *Order) AssignedTo(userID int64) bool {
	return o.CourierID != nil && *o.CourierID == userID
}

// OrderFilter narrows order listings. Zero values mean "no constraint".
type OrderFilter struct {
	UserID         *int64
	CourierID      *int64
	SellerID       *int64
	Status         *OrderStatus
	DeliveryStatus *DeliveryStatus
	From           *time.Time
	To             *time.Time
	OldestFirst    bool
	Page           Page
}
