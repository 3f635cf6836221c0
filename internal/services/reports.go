package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/store"
)

// SalaryRate is the seller commission on sales.
var SalaryRate = decimal.RequireFromString("0.10")

// Salary is the commission on total, rounded half up to cents.
func Salary(total decimal.Decimal) decimal.Decimal {
	return total.Mul(SalaryRate).Round(2)
}

// Window is an inclusive creation-date range.
type Window struct {
	From time.Time
	To   time.Time
}

// ReportService aggregates sales. Aggregation failures are logged and
// reported as empty results so dashboards keep working.
type ReportService struct {
	store store.Repositories
	now   Clock
}

func NewReportService(s store.Repositories, now Clock) *ReportService {
	return &ReportService{store: s, now: now}
}

// LastDays is the window from n days ago until now.
func (s *ReportService) LastDays(n int) Window {
	now := s.now()
	return Window{From: now.AddDate(0, 0, -n), To: now}
}

// CurrentMonth is the window from the first of this month at midnight until now.
func (s *ReportService) CurrentMonth() Window {
	now := s.now()
	return Window{From: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), To: now}
}

func withSalary(rows []models.SellerSales) []models.SellerSales {
	for i := range rows {
		rows[i].Salary = Salary(rows[i].TotalAmount)
	}
	return rows
}

// SalesBySeller sums delivered sales per seller.
func (s *ReportService) SalesBySeller(ctx context.Context, w Window) models.SalesReport[models.SellerSales] {
	report := models.SalesReport[models.SellerSales]{From: w.From, To: w.To, Rows: []models.SellerSales{}}
	rows, err := s.store.Orders().SalesBySeller(ctx, models.SalesQuery{From: w.From, To: w.To, Status: models.OrderDelivered})
	if err != nil {
		log.WithError(err).Error("seller sales report failed")
		return report
	}
	if rows != nil {
		report.Rows = withSalary(rows)
	}
	return report
}

// SellerReport is one seller's totals. When nothing was delivered in the
// window it counts every order that is not cancelled instead, and when that
// is empty too it reports zeros.
func (s *ReportService) SellerReport(ctx context.Context, seller *models.User, w Window) models.SalesReport[models.SellerSales] {
	report := models.SalesReport[models.SellerSales]{From: w.From, To: w.To}
	zero := []models.SellerSales{{
		SellerID:    seller.ID,
		SellerName:  seller.Username,
		SellerEmail: seller.Email,
		TotalAmount: decimal.Zero,
		Salary:      decimal.Zero,
	}}

	q := models.SalesQuery{From: w.From, To: w.To, Status: models.OrderDelivered, SellerID: &seller.ID}
	rows, err := s.store.Orders().SalesBySeller(ctx, q)
	if err == nil && len(rows) == 0 {
		q.Status, q.ExcludeStatus = models.OrderCancelled, true
		rows, err = s.store.Orders().SalesBySeller(ctx, q)
		report.Fallback = len(rows) > 0
	}
	if err != nil {
		log.WithError(err).WithField("sellerId", seller.ID).Error("seller report failed")
		report.Fallback = false
		report.Rows = zero
		return report
	}
	if len(rows) == 0 {
		report.Rows = zero
		return report
	}
	report.Rows = withSalary(rows)
	return report
}

// SalesByProduct sums the sales of every product over orders that are not
// cancelled, best sellers first.
func (s *ReportService) SalesByProduct(ctx context.Context, w Window) models.SalesReport[models.ProductSales] {
	report := models.SalesReport[models.ProductSales]{From: w.From, To: w.To, Rows: []models.ProductSales{}}
	rows, err := s.store.Orders().SalesByProduct(ctx, models.SalesQuery{
		From: w.From, To: w.To, Status: models.OrderCancelled, ExcludeStatus: true,
	})
	if err != nil {
		log.WithError(err).Error("product sales report failed")
		return report
	}
	if rows != nil {
		report.Rows = rows
	}
	return report
}
