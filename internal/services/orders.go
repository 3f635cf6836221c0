package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/store"
)

// CheckoutRequest carries the delivery details entered at checkout. The card
// number is only ever logged masked and never stored.
type CheckoutRequest struct {
	Phone      string `json:"phone" binding:"required"`
	Address    string `json:"deliveryAddress" binding:"required"`
	Comment    string `json:"comment"`
	CardNumber string `json:"cardNumber"`
}

// OrderService drives the order state machine.
type OrderService struct {
	store     store.Store
	inventory Inventory
	now       Clock
}

func NewOrderService(s store.Store, now Clock) *OrderService {
	return &OrderService{store: s, now: now}
}

// MaskCard renders a card number as "**** **** **** 1234".
func MaskCard(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) < 4 {
		return "****"
	}
	return "**** **** **** " + digits[len(digits)-4:]
}

// Checkout turns the cart into a NEW order. Each line is revalidated and its
// stock decremented inside one transaction; the cart is cleared only when
// the transaction commits.
func (s *OrderService) Checkout(ctx context.Context, p models.Principal, cart *models.Cart, req CheckoutRequest) (*models.Order, error) {
	if err := requireRole(p, models.RoleClient); err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, errors.Wrap(models.ErrInvalidState, "cart is empty")
	}
	phone, address := strings.TrimSpace(req.Phone), strings.TrimSpace(req.Address)
	if phone == "" || address == "" {
		return nil, invalid("phone and delivery address are required")
	}

	now := s.now()
	order := &models.Order{
		UserID:         p.UserID,
		Status:         models.OrderNew,
		DeliveryStatus: models.DeliveryNotAssigned,
		Phone:          phone,
		Address:        address,
		Comment:        optional(req.Comment),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.store.InTx(ctx, func(r store.Repositories) error {
		products := r.Products()
		if err := validateCart(ctx, products, cart); err != nil {
			return err
		}
		for _, line := range cart.Items {
			product, err := products.Get(ctx, line.ProductID)
			if err != nil {
				return err
			}
			order.AddItem(models.NewOrderItem(product, line.Quantity))
			if err := s.inventory.Decrease(ctx, products, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}
		return r.Orders().Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	cart.Clear()

	fields := log.Fields{"orderId": order.ID, "user": p.Username, "total": order.TotalAmount.StringFixed(2)}
	if req.CardNumber != "" {
		fields["card"] = MaskCard(req.CardNumber)
	}
	log.WithFields(fields).Info("order placed")
	return order, nil
}

// transition loads the order inside a transaction, lets apply mutate it and
// saves it. Nothing is written when apply fails.
func (s *OrderService) transition(ctx context.Context, id int64, apply func(r store.Repositories, o *models.Order) error) (*models.Order, error) {
	var order *models.Order
	err := s.store.InTx(ctx, func(r store.Repositories) error {
		o, err := r.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(r, o); err != nil {
			return err
		}
		o.UpdatedAt = s.now()
		order = o
		return r.Orders().Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func wrongStatus(o *models.Order, want string) error {
	return errors.Wrapf(models.ErrInvalidState, "order %d is %s, expected %s", o.ID, o.Status, want)
}

func wrongDelivery(o *models.Order, want string) error {
	return errors.Wrapf(models.ErrInvalidState, "order %d delivery is %s, expected %s", o.ID, o.DeliveryStatus, want)
}

// Confirm moves a NEW order to IN_PROGRESS once every item is covered by
// live stock. A shortfall aborts before anything is written.
func (s *OrderService) Confirm(ctx context.Context, p models.Principal, id int64, comment string) (*models.Order, error) {
	if err := requireRole(p, models.RoleSeller, models.RoleAdmin); err != nil {
		return nil, err
	}
	o, err := s.transition(ctx, id, func(r store.Repositories, o *models.Order) error {
		if o.Status != models.OrderNew {
			return wrongStatus(o, "NEW")
		}
		for _, item := range o.Items {
			product, err := r.Products().Get(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if product.Quantity < item.Quantity {
				return errors.Wrapf(models.ErrInsufficientStock,
					"%s: %d needed, %d in stock", product.Name, item.Quantity, product.Quantity)
			}
		}
		o.Status = models.OrderInProgress
		if c := optional(comment); c != nil {
			o.SellerComment = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"orderId": id, "seller": p.Username}).Info("order confirmed")
	return o, nil
}

// Reject cancels a NEW order and returns its items to stock.
func (s *OrderService) Reject(ctx context.Context, p models.Principal, id int64, comment string) (*models.Order, error) {
	if err := requireRole(p, models.RoleSeller, models.RoleAdmin); err != nil {
		return nil, err
	}
	o, err := s.transition(ctx, id, func(r store.Repositories, o *models.Order) error {
		if o.Status != models.OrderNew {
			return wrongStatus(o, "NEW")
		}
		if err := s.inventory.Restock(ctx, r.Products(), o.Items); err != nil {
			return err
		}
		o.Status = models.OrderCancelled
		o.DeliveryStatus = models.DeliveryCancelled
		if c := optional(comment); c != nil {
			o.SellerComment = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"orderId": id, "seller": p.Username}).Info("order rejected")
	return o, nil
}

// PrepareForDelivery marks an IN_PROGRESS order ready for a courier.
func (s *OrderService) PrepareForDelivery(ctx context.Context, p models.Principal, id int64, invoiceNumber, comment string) (*models.Order, error) {
	if err := requireRole(p, models.RoleSeller, models.RoleAdmin); err != nil {
		return nil, err
	}
	o, err := s.transition(ctx, id, func(_ store.Repositories, o *models.Order) error {
		if o.Status != models.OrderInProgress {
			return wrongStatus(o, "IN_PROGRESS")
		}
		now := s.now()
		o.Status = models.OrderReadyForDelivery
		o.DeliveryStatus = models.DeliveryReady
		o.ReadyForDeliveryAt = &now
		if inv := optional(invoiceNumber); inv != nil {
			o.InvoiceNumber = inv
		}
		if c := optional(comment); c != nil {
			o.SellerComment = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"orderId": id, "seller": p.Username}).Info("order ready for delivery")
	return o, nil
}

// AssignCourier hands a READY_FOR_DELIVERY order to an active courier.
func (s *OrderService) AssignCourier(ctx context.Context, p models.Principal, id, courierID int64) (*models.Order, error) {
	if err := requireRole(p, models.RoleSeller, models.RoleAdmin); err != nil {
		return nil, err
	}
	o, err := s.transition(ctx, id, func(r store.Repositories, o *models.Order) error {
		courier, err := r.Users().Get(ctx, courierID)
		if err != nil {
			return err
		}
		if courier.Role != models.RoleCourier || !courier.Active {
			return invalid("user %s is not an active courier", courier.Username)
		}
		if o.Status != models.OrderReadyForDelivery {
			return wrongStatus(o, "READY_FOR_DELIVERY")
		}
		now := s.now()
		o.CourierID = &courier.ID
		o.DeliveryStatus = models.DeliveryAssigned
		o.CourierAssignedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"orderId": id, "courierId": courierID, "seller": p.Username}).Info("courier assigned")
	return o, nil
}

func requireAssigned(p models.Principal, o *models.Order) error {
	if !o.AssignedTo(p.UserID) {
		return errors.Wrapf(models.ErrForbidden, "order %d is not assigned to %s", o.ID, p.Username)
	}
	return nil
}

// StartDelivery puts the order in transit. Only the assigned courier may do it.
func (s *OrderService) StartDelivery(ctx context.Context, p models.Principal, id int64) (*models.Order, error) {
	if err := requireRole(p, models.RoleCourier); err != nil {
		return nil, err
	}
	o, err := s.transition(ctx, id, func(_ store.Repositories, o *models.Order) error {
		if err := requireAssigned(p, o); err != nil {
			return err
		}
		if o.DeliveryStatus != models.DeliveryAssigned && o.DeliveryStatus != models.DeliveryReady {
			return wrongDelivery(o, "ASSIGNED or READY")
		}
		now := s.now()
		o.DeliveryStatus = models.DeliveryInTransit
		o.DeliveryStartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"orderId": id, "courier": p.Username}).Info("delivery started")
	return o, nil
}

// CompleteDelivery closes an IN_TRANSIT order as DELIVERED on both tracks.
func (s *OrderService) CompleteDelivery(ctx context.Context, p models.Principal, id int64, comment string) (*models.Order, error) {
	if err := requireRole(p, models.RoleCourier); err != nil {
		return nil, err
	}
	o, err := s.transition(ctx, id, func(_ store.Repositories, o *models.Order) error {
		if err := requireAssigned(p, o); err != nil {
			return err
		}
		if o.DeliveryStatus != models.DeliveryInTransit {
			return wrongDelivery(o, "IN_TRANSIT")
		}
		now := s.now()
		o.Status = models.OrderDelivered
		o.DeliveryStatus = models.DeliveryDelivered
		o.DeliveredAt = &now
		if c := optional(comment); c != nil {
			o.CourierComment = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"orderId": id, "courier": p.Username}).Info("order delivered")
	return o, nil
}

// MarkProblem flags the delivery as FAILED.
func (s *OrderService) MarkProblem(ctx context.Context, p models.Principal, id int64, comment string) (*models.Order, error) {
	if err := requireRole(p, models.RoleCourier); err != nil {
		return nil, err
	}
	o, err := s.transition(ctx, id, func(_ store.Repositories, o *models.Order) error {
		if err := requireAssigned(p, o); err != nil {
			return err
		}
		o.DeliveryStatus = models.DeliveryFailed
		if c := optional(comment); c != nil {
			o.CourierComment = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"orderId": id, "courier": p.Username}).Warn("delivery problem reported")
	return o, nil
}

// Cancel lets the owner or an admin cancel an order that is neither
// delivered nor already cancelled, returning its items to stock.
func (s *OrderService) Cancel(ctx context.Context, p models.Principal, id int64) (*models.Order, error) {
	o, err := s.transition(ctx, id, func(r store.Repositories, o *models.Order) error {
		if o.UserID != p.UserID && !p.Is(models.RoleAdmin) {
			return errors.Wrapf(models.ErrForbidden, "order %d belongs to another user", o.ID)
		}
		switch o.Status {
		case models.OrderCancelled:
			return errors.Wrapf(models.ErrInvalidState, "order %d is already cancelled", o.ID)
		case models.OrderDelivered:
			return errors.Wrapf(models.ErrInvalidState, "order %d is delivered", o.ID)
		}
		if err := s.inventory.Restock(ctx, r.Products(), o.Items); err != nil {
			return err
		}
		o.Status = models.OrderCancelled
		o.DeliveryStatus = models.DeliveryCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"orderId": id, "actor": p.Username}).Info("order cancelled")
	return o, nil
}

// UpdateStatus is the admin override: any status except leaving CANCELLED,
// with no stock side effects.
func (s *OrderService) UpdateStatus(ctx context.Context, p models.Principal, id int64, status models.OrderStatus) (*models.Order, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalid("unknown order status %q", status)
	}
	o, err := s.transition(ctx, id, func(_ store.Repositories, o *models.Order) error {
		if o.Status == models.OrderCancelled {
			return errors.Wrapf(models.ErrInvalidState, "order %d is cancelled", o.ID)
		}
		o.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"orderId": id, "status": status, "admin": p.Username}).Info("order status overridden")
	return o, nil
}

//
// --- Queries ---
//

// Get returns an order the caller may see: clients their own, couriers the
// ones assigned to them, sellers and admins any.
func (s *OrderService) Get(ctx context.Context, p models.Principal, id int64) (*models.Order, error) {
	o, err := s.store.Orders().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case p.Is(models.RoleAdmin, models.RoleSeller):
	case p.Is(models.RoleCourier) && o.AssignedTo(p.UserID):
	case o.UserID == p.UserID:
	default:
		return nil, errors.Wrapf(models.ErrForbidden, "order %d belongs to another user", id)
	}
	return o, nil
}

func (s *OrderService) list(ctx context.Context, f models.OrderFilter) (models.PageResult[models.Order], error) {
	orders, total, err := s.store.Orders().List(ctx, f)
	if err != nil {
		return models.PageResult[models.Order]{}, err
	}
	return models.NewPageResult(orders, total, f.Page), nil
}

// ListMine lists the caller's own orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, p models.Principal, page models.Page) (models.PageResult[models.Order], error) {
	return s.list(ctx, models.OrderFilter{UserID: &p.UserID, Page: page})
}

func (s *OrderService) ListAll(ctx context.Context, p models.Principal, status *models.OrderStatus, page models.Page) (models.PageResult[models.Order], error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return models.PageResult[models.Order]{}, err
	}
	return s.list(ctx, models.OrderFilter{Status: status, Page: page})
}

// ListNew is the seller work queue, oldest first.
func (s *OrderService) ListNew(ctx context.Context, p models.Principal, page models.Page) (models.PageResult[models.Order], error) {
	if err := requireRole(p, models.RoleSeller, models.RoleAdmin); err != nil {
		return models.PageResult[models.Order]{}, err
	}
	status := models.OrderNew
	return s.list(ctx, models.OrderFilter{Status: &status, OldestFirst: true, Page: page})
}

// ListForSeller lists orders containing at least one of the seller's products.
// Admins see every order.
func (s *OrderService) ListForSeller(ctx context.Context, p models.Principal, status *models.OrderStatus, page models.Page) (models.PageResult[models.Order], error) {
	if err := requireRole(p, models.RoleSeller, models.RoleAdmin); err != nil {
		return models.PageResult[models.Order]{}, err
	}
	f := models.OrderFilter{Status: status, Page: page}
	if p.Is(models.RoleSeller) {
		f.SellerID = &p.UserID
	}
	return s.list(ctx, f)
}

func (s *OrderService) ListReadyForDelivery(ctx context.Context, p models.Principal, page models.Page) (models.PageResult[models.Order], error) {
	if err := requireRole(p, models.RoleSeller, models.RoleAdmin); err != nil {
		return models.PageResult[models.Order]{}, err
	}
	status := models.OrderReadyForDelivery
	return s.list(ctx, models.OrderFilter{Status: &status, OldestFirst: true, Page: page})
}

// ListForCourier lists the orders assigned to the calling courier.
func (s *OrderService) ListForCourier(ctx context.Context, p models.Principal, status *models.DeliveryStatus, page models.Page) (models.PageResult[models.Order], error) {
	if err := requireRole(p, models.RoleCourier); err != nil {
		return models.PageResult[models.Order]{}, err
	}
	return s.list(ctx, models.OrderFilter{CourierID: &p.UserID, DeliveryStatus: status, Page: page})
}

// Couriers lists the active couriers an order can be assigned to.
func (s *OrderService) Couriers(ctx context.Context, p models.Principal) ([]models.User, error) {
	if err := requireRole(p, models.RoleSeller, models.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.store.Users().ListByRole(ctx, models.RoleCourier)
	if err != nil {
		return nil, err
	}
	active := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.Active {
			active = append(active, u)
		}
	}
	return active, nil
}
