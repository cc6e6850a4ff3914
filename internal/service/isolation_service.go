package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/events"
	"github.com/phbiling/isp-billing/internal/logger"
	"github.com/phbiling/isp-billing/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// IsolationSettings controls the daily isolation sweep
type IsolationSettings struct {
	Enabled   bool   `json:"enabled"`
	Time      string `json:"time" validate:"required,datetime=15:04"` // HH:MM business time
	GraceDays int    `json:"grace_days" validate:"gte=0,lte=31"`
}

// SettingsListener is told when the sweep time changes so it can reschedule
type SettingsListener interface {
	IsolationTimeChanged(hhmm string) error
}

// SweepResult summarises one isolation sweep
type SweepResult struct {
	Date      string             `json:"date"`
	Reminders int                `json:"reminders"`
	Targets   []*domain.Customer `json:"targets"`
	Isolated  []*domain.Customer `json:"isolated"`
	Enabled   bool               `json:"enabled"`
}

// IsolationService finds customers due for suspension and suspends them
type IsolationService struct {
	customers domain.CustomerRepository
	invoices  domain.InvoiceRepository
	clock     clock.Clock
	publisher events.Publisher
	activity  *ActivityLog
	cache     DashboardInvalidator
	metrics   *telemetry.BillingMetrics

	mu       sync.RWMutex
	settings IsolationSettings
	listener SettingsListener
}

// NewIsolationService creates a new IsolationService
func NewIsolationService(
	customers domain.CustomerRepository,
	invoices domain.InvoiceRepository,
	clk clock.Clock,
	publisher events.Publisher,
	activity *ActivityLog,
	cache DashboardInvalidator,
	metrics *telemetry.BillingMetrics,
	settings IsolationSettings,
) *IsolationService {
	return &IsolationService{
		customers: customers,
		invoices:  invoices,
		clock:     clk,
		publisher: publisher,
		activity:  activity,
		cache:     cache,
		metrics:   metrics,
		settings:  settings,
	}
}

// SetListener registers the scheduler that owns the sweep trigger
func (s *IsolationService) SetListener(l SettingsListener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

// Settings returns the current sweep settings
func (s *IsolationService) Settings() IsolationSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings replaces the sweep settings and reschedules on a time change
func (s *IsolationService) UpdateSettings(ctx context.Context, next IsolationSettings) (IsolationSettings, error) {
	if _, err := time.Parse("15:04", next.Time); err != nil {
		return IsolationSettings{}, errors.Mark(errors.Newf("time must be HH:MM, got %q", next.Time), domain.ErrValidation)
	}
	if next.GraceDays < 0 {
		return IsolationSettings{}, errors.Mark(errors.New("grace days must not be negative"), domain.ErrValidation)
	}

	s.mu.Lock()
	prev := s.settings
	s.settings = next
	listener := s.listener
	s.mu.Unlock()

	if listener != nil && prev.Time != next.Time {
		if err := listener.IsolationTimeChanged(next.Time); err != nil {
			s.mu.Lock()
			s.settings = prev
			s.mu.Unlock()
			return IsolationSettings{}, errors.Wrap(err, "reschedule isolation sweep")
		}
	}

	s.activity.Info(ctx, "Scheduler", "Auto isolation %s at %s WIB, grace %d days",
		enabledLabel(next.Enabled), next.Time, next.GraceDays)
	return next, nil
}

// Targets returns the customers the sweep would suspend today: those whose
// due day was GraceDays ago and who still hold an unpaid invoice
func (s *IsolationService) Targets(ctx context.Context) ([]*domain.Customer, error) {
	customers, invoices, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return s.targets(customers, invoices), nil
}

func (s *IsolationService) targets(customers []*domain.Customer, invoices []*domain.Invoice) []*domain.Customer {
	today := domain.DateOf(s.clock.Now())
	ref := today.AddDate(0, 0, -s.Settings().GraceDays)
	return DueTodayForSuspension(customers, invoices, ref)
}

// Apply suspends every current target regardless of the enabled flag
func (s *IsolationService) Apply(ctx context.Context) ([]*domain.Customer, error) {
	customers, invoices, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return s.isolate(ctx, s.targets(customers, invoices), invoices)
}

// Sweep is the daily job: reminders go to customers due today, and when auto
// isolation is enabled the grace-expired targets are suspended
func (s *IsolationService) Sweep(ctx context.Context) (*SweepResult, error) {
	ctx, span := otel.Tracer("billing").Start(ctx, "billing.IsolationSweep")
	defer span.End()

	customers, invoices, err := s.load(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	settings := s.Settings()
	today := domain.DateOf(s.clock.Now())
	result := &SweepResult{
		Date:     today.Format("2006-01-02"),
		Enabled:  settings.Enabled,
		Isolated: []*domain.Customer{},
	}

	dueToday := DueTodayForSuspension(customers, invoices, today)
	result.Reminders = s.remind(ctx, dueToday, invoices)

	result.Targets = s.targets(customers, invoices)
	span.SetAttributes(
		attribute.Int("isolation.targets", len(result.Targets)),
		attribute.Int("isolation.reminders", result.Reminders),
	)

	if !settings.Enabled {
		if len(result.Targets) > 0 {
			s.activity.Warn(ctx, "Scheduler", "%d customers due for isolation, auto isolation is disabled", len(result.Targets))
		}
		return result, nil
	}

	isolated, err := s.isolate(ctx, result.Targets, invoices)
	result.Isolated = isolated
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	return result, nil
}

func (s *IsolationService) load(ctx context.Context) ([]*domain.Customer, []*domain.Invoice, error) {
	customers, err := s.customers.List(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "list customers")
	}
	invoices, err := s.invoices.List(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "list invoices")
	}
	return customers, invoices, nil
}

// remind emits one reminder per unpaid invoice of the given customers
func (s *IsolationService) remind(ctx context.Context, customers []*domain.Customer, invoices []*domain.Invoice) int {
	if len(customers) == 0 || s.publisher == nil {
		return 0
	}
	wanted := make(map[string]struct{}, len(customers))
	for _, c := range customers {
		wanted[c.ID] = struct{}{}
	}

	now := s.clock.Now()
	var evts []events.Event
	for _, inv := range invoices {
		if _, ok := wanted[inv.CustomerID]; ok && !inv.IsPaid() {
			evts = append(evts, events.New(events.InvoiceReminderDue, inv.CustomerID, inv.ID, now))
		}
	}
	if err := s.publisher.Publish(ctx, evts...); err != nil {
		logger.FromContext(ctx).Warn("failed to publish reminders", zap.Error(err))
		return 0
	}
	return len(evts)
}

func (s *IsolationService) isolate(ctx context.Context, targets []*domain.Customer, invoices []*domain.Invoice) ([]*domain.Customer, error) {
	log := logger.FromContext(ctx)
	oldest := oldestUnpaid(invoices)
	now := s.clock.Now()

	isolated := []*domain.Customer{}
	var firstErr error
	for _, c := range targets {
		if err := s.customers.UpdateStatus(ctx, c.ID, domain.CustomerStatusSuspended); err != nil {
			log.Error("failed to suspend customer", zap.String("customer_id", c.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "suspend %s", c.ID)
			}
			continue
		}
		c.Status = domain.CustomerStatusSuspended
		isolated = append(isolated, c)

		if s.publisher != nil {
			if inv, ok := oldest[c.ID]; ok {
				evt := events.New(events.CustomerIsolated, c.ID, inv.ID, now)
				if err := s.publisher.Publish(ctx, evt); err != nil {
					log.Warn("failed to publish isolation event", zap.String("customer_id", c.ID), zap.Error(err))
				}
			}
		}
	}

	if len(isolated) > 0 {
		s.metrics.CustomersIsolated(ctx, len(isolated))
		s.activity.Warn(ctx, "Scheduler", "Isolated %d customers for non-payment", len(isolated))
		if s.cache != nil {
			if err := s.cache.InvalidateDashboard(ctx); err != nil {
				log.Warn("failed to invalidate dashboard cache", zap.Error(err))
			}
		}
	}
	return isolated, firstErr
}

// oldestUnpaid maps customer id to their earliest-due unpaid invoice
func oldestUnpaid(invoices []*domain.Invoice) map[string]*domain.Invoice {
	unpaid := make([]*domain.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if !inv.IsPaid() {
			unpaid = append(unpaid, inv)
		}
	}
	sort.SliceStable(unpaid, func(i, j int) bool { return unpaid[i].DueDate.Before(unpaid[j].DueDate) })

	out := make(map[string]*domain.Invoice)
	for _, inv := range unpaid {
		if _, seen := out[inv.CustomerID]; !seen {
			out[inv.CustomerID] = inv
		}
	}
	return out
}

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
