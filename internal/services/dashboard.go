package services

import (
	"context"

	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/store"
)

type AdminDashboard struct {
	OrdersByStatus map[models.OrderStatus]int `json:"ordersByStatus"`
	ActiveUsers    int                        `json:"activeUsers"`
	Products       int                        `json:"products"`
}

type SellerDashboard struct {
	NewOrders        int                                    `json:"newOrders"`
	InProgress       int                                    `json:"inProgress"`
	ReadyForDelivery int                                    `json:"readyForDelivery"`
	DeliveredMonth   int                                    `json:"deliveredThisMonth"`
	Report           models.SalesReport[models.SellerSales] `json:"report"`
}

type CourierDashboard struct {
	Assigned  int `json:"assigned"`
	InTransit int `json:"inTransit"`
	Delivered int `json:"delivered"`
}

type ClientDashboard struct {
	Orders       int `json:"orders"`
	ActiveOrders int `json:"activeOrders"`
}

// DashboardService collects the per-role counters shown on the landing page.
type DashboardService struct {
	store   store.Repositories
	reports *ReportService
}

func NewDashboardService(s store.Repositories, reports *ReportService) *DashboardService {
	return &DashboardService{store: s, reports: reports}
}

// For returns the dashboard matching the caller's role.
func (s *DashboardService) For(ctx context.Context, p models.Principal) (interface{}, error) {
	switch p.Role {
	case models.RoleAdmin:
		return s.Admin(ctx, p)
	case models.RoleSeller:
		return s.Seller(ctx, p)
	case models.RoleCourier:
		return s.Courier(ctx, p)
	default:
		return s.Client(ctx, p)
	}
}

func (s *DashboardService) count(ctx context.Context, f models.OrderFilter, into *int) error {
	n, err := s.store.Orders().Count(ctx, f)
	if err != nil {
		return err
	}
	*into = n
	return nil
}

func (s *DashboardService) Admin(ctx context.Context, p models.Principal) (*AdminDashboard, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	d := &AdminDashboard{OrdersByStatus: make(map[models.OrderStatus]int, len(models.OrderStatuses))}
	for _, status := range models.OrderStatuses {
		status := status
		var n int
		if err := s.count(ctx, models.OrderFilter{Status: &status}, &n); err != nil {
			return nil, err
		}
		d.OrdersByStatus[status] = n
	}

	var err error
	if d.ActiveUsers, err = s.store.Users().CountActive(ctx); err != nil {
		return nil, err
	}
	if _, d.Products, err = s.store.Products().List(ctx, models.ProductFilter{Page: models.Page{Size: 1}}); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DashboardService) Seller(ctx context.Context, p models.Principal) (*SellerDashboard, error) {
	if err := requireRole(p, models.RoleSeller); err != nil {
		return nil, err
	}
	seller, err := s.store.Users().Get(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	d := &SellerDashboard{}
	month := s.reports.CurrentMonth()
	counters := []struct {
		status models.OrderStatus
		into   *int
		window *Window
	}{
		{models.OrderNew, &d.NewOrders, nil},
		{models.OrderInProgress, &d.InProgress, nil},
		{models.OrderReadyForDelivery, &d.ReadyForDelivery, nil},
		{models.OrderDelivered, &d.DeliveredMonth, &month},
	}
	for _, c := range counters {
		status := c.status
		f := models.OrderFilter{SellerID: &p.UserID, Status: &status}
		if c.window != nil {
			f.From, f.To = &c.window.From, &c.window.To
		}
		if err := s.count(ctx, f, c.into); err != nil {
			return nil, err
		}
	}

	d.Report = s.reports.SellerReport(ctx, seller, month)
	return d, nil
}

func (s *DashboardService) Courier(ctx context.Context, p models.Principal) (*CourierDashboard, error) {
	if err := requireRole(p, models.RoleCourier); err != nil {
		return nil, err
	}
	d := &CourierDashboard{}
	counters := []struct {
		status models.DeliveryStatus
		into   *int
	}{
		{models.DeliveryAssigned, &d.Assigned},
		{models.DeliveryInTransit, &d.InTransit},
		{models.DeliveryDelivered, &d.Delivered},
	}
	for _, c := range counters {
		status := c.status
		if err := s.count(ctx, models.OrderFilter{CourierID: &p.UserID, DeliveryStatus: &status}, c.into); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (s *DashboardService) Client(ctx context.Context, p models.Principal) (*ClientDashboard, error) {
	d := &ClientDashboard{}
	if err := s.count(ctx, models.OrderFilter{UserID: &p.UserID}, &d.Orders); err != nil {
		return nil, err
	}
	for _, status := range []models.OrderStatus{models.OrderNew, models.OrderInProgress, models.OrderReadyForDelivery} {
		status := status
		var n int
		if err := s.count(ctx, models.OrderFilter{UserID: &p.UserID, Status: &status}, &n); err != nil {
			return nil, err
		}
		d.ActiveOrders += n
	}
	return d, nil
}
