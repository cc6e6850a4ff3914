package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dashboardRecentLogs     = 10
	dashboardRevenuePeriods = 5
)

// DashboardCache caches summaries per business date
type DashboardCache interface {
	GetDashboardSummary(ctx context.Context, date string, dest interface{}) error
	SetDashboardSummary(ctx context.Context, date string, data interface{}, ttl time.Duration) error
}

// RevenuePoint is collected revenue for one billing period
type RevenuePoint struct {
	PeriodKey string `json:"period_key"`
	Label     string `json:"label"`
	Amount    int64  `json:"amount"`
}

// DashboardSummary aggregates the operator home screen
type DashboardSummary struct {
	Date               string              `json:"date"`
	TotalCustomers     int                 `json:"total_customers"`
	ActiveCustomers    int                 `json:"active_customers"`
	SuspendedCustomers int                 `json:"suspended_customers"`
	Revenue            int64               `json:"revenue"`
	RevenueByPeriod    []RevenuePoint      `json:"revenue_by_period"`
	UnpaidCount        int                 `json:"unpaid_count"`
	OverdueCount       int                 `json:"overdue_count"`
	Outstanding        int64               `json:"outstanding"`
	IsolationTargets   []*domain.Customer  `json:"isolation_targets"`
	AutoIsolation      IsolationSettings   `json:"auto_isolation"`
	RoutersOnline      int                 `json:"routers_online"`
	RoutersTotal       int                 `json:"routers_total"`
	RecentLogs         []*domain.SystemLog `json:"recent_logs"`
}

// DashboardService builds the dashboard summary
type DashboardService struct {
	customers domain.CustomerRepository
	invoices  domain.InvoiceRepository
	routers   domain.RouterRepository
	logs      domain.SystemLogRepository
	isolation *IsolationService
	cache     DashboardCache
	clock     clock.Clock
	ttl       time.Duration
}

// NewDashboardService creates a new DashboardService instance. cache may be nil.
func NewDashboardService(
	customers domain.CustomerRepository,
	invoices domain.InvoiceRepository,
	routers domain.RouterRepository,
	logs domain.SystemLogRepository,
	isolation *IsolationService,
	cache DashboardCache,
	clk clock.Clock,
	ttl time.Duration,
) *DashboardService {
	return &DashboardService{
		customers: customers,
		invoices:  invoices,
		routers:   routers,
		logs:      logs,
		isolation: isolation,
		cache:     cache,
		clock:     clk,
		ttl:       ttl,
	}
}

// Summary returns the cached summary for today or builds a fresh one
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	log := logger.FromContext(ctx)
	today := domain.DateOf(s.clock.Now())
	date := today.Format("2006-01-02")

	if s.cache != nil {
		var cached DashboardSummary
		if err := s.cache.GetDashboardSummary(ctx, date, &cached); err == nil {
			return &cached, nil
		}
	}

	summary, err := s.build(ctx, today)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.SetDashboardSummary(ctx, date, summary, s.ttl); err != nil {
			log.Warn("failed to cache dashboard summary", zap.Error(err))
		}
	}
	return summary, nil
}

func (s *DashboardService) build(ctx context.Context, today time.Time) (*DashboardSummary, error) {
	var (
		customers []*domain.Customer
		invoices  []*domain.Invoice
		routers   []*domain.Router
		logs      []*domain.SystemLog
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		customers, err = s.customers.List(gCtx)
		return errors.Wrap(err, "list customers")
	})
	g.Go(func() error {
		var err error
		invoices, err = s.invoices.List(gCtx)
		return errors.Wrap(err, "list invoices")
	})
	g.Go(func() error {
		var err error
		routers, err = s.routers.List(gCtx)
		return errors.Wrap(err, "list routers")
	})
	g.Go(func() error {
		var err error
		logs, err = s.logs.ListRecent(gCtx, dashboardRecentLogs)
		return errors.Wrap(err, "list system logs")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &DashboardSummary{
		Date:             today.Format("2006-01-02"),
		TotalCustomers:   len(customers),
		Revenue:          MonthlyRevenue(invoices),
		RevenueByPeriod:  revenueByPeriod(invoices, today),
		IsolationTargets: DueTodayForSuspension(customers, invoices, today),
		RoutersTotal:     len(routers),
		RecentLogs:       logs,
	}
	if s.isolation != nil {
		summary.AutoIsolation = s.isolation.Settings()
	}

	for _, c := range customers {
		switch c.Status {
		case domain.CustomerStatusActive:
			summary.ActiveCustomers++
		case domain.CustomerStatusSuspended:
			summary.SuspendedCustomers++
		}
	}
	for _, inv := range invoices {
		switch inv.EffectiveStatus(today) {
		case domain.InvoiceStatusOverdue:
			summary.OverdueCount++
			summary.Outstanding += inv.Amount
		case domain.InvoiceStatusUnpaid:
			summary.UnpaidCount++
			summary.Outstanding += inv.Amount
		}
	}
	for _, r := range routers {
		if r.Status == "ONLINE" {
			summary.RoutersOnline++
		}
	}
	return summary, nil
}

// revenueByPeriod returns PAID totals for the last few periods, oldest first
func revenueByPeriod(invoices []*domain.Invoice, today time.Time) []RevenuePoint {
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	points := make([]RevenuePoint, dashboardRevenuePeriods)
	index := make(map[string]int, dashboardRevenuePeriods)
	for i := 0; i < dashboardRevenuePeriods; i++ {
		month := first.AddDate(0, i-dashboardRevenuePeriods+1, 0)
		key := domain.PeriodKey(month)
		points[i] = RevenuePoint{PeriodKey: key, Label: domain.PeriodLabel(month)}
		index[key] = i
	}
	for _, inv := range invoices {
		if !inv.IsPaid() {
			continue
		}
		if i, ok := index[inv.PeriodKey]; ok {
			points[i].Amount += inv.Amount
		}
	}
	return points
}
