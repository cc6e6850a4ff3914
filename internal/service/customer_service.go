package service

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/logger"
	"go.uber.org/zap"
)

// CustomerInput is the create/update payload for subscribers
type CustomerInput struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"required"`
	Password        string   `json:"password"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Phone           string   `json:"phone"`
	Address         string   `json:"address"`
	ProfileName     string   `json:"profile_name" validate:"required"`
	IPAddress       string   `json:"ip_address" validate:"omitempty,ip"`
	MonthlyFee      int64    `json:"monthly_fee" validate:"gte=0"`
	BillingCycleDay int      `json:"billing_cycle_day" validate:"min=1,max=31"`
	RouterID        string   `json:"router_id"`
	Latitude        *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude       *float64 `json:"longitude" validate:"omitempty,longitude"`
}

// CustomerService manages the customer directory
type CustomerService struct {
	customers domain.CustomerRepository
	packages  domain.PackageRepository
	clock     clock.Clock
	activity  *ActivityLog
	cache     DashboardInvalidator
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(
	customers domain.CustomerRepository,
	packages domain.PackageRepository,
	clk clock.Clock,
	activity *ActivityLog,
	cache DashboardInvalidator,
) *CustomerService {
	return &CustomerService{
		customers: customers,
		packages:  packages,
		clock:     clk,
		activity:  activity,
		cache:     cache,
	}
}

// List returns customers whose name or username contains search (all when empty)
func (s *CustomerService) List(ctx context.Context, search string, status domain.CustomerStatus) ([]*domain.Customer, error) {
	all, err := s.customers.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list customers")
	}
	out := make([]*domain.Customer, 0, len(all))
	for _, c := range all {
		if status != "" && c.Status != status {
			continue
		}
		if c.MatchesSearch(search) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Get returns one customer
func (s *CustomerService) Get(ctx context.Context, id string) (*domain.Customer, error) {
	return s.customers.GetByID(ctx, id)
}

// Create enrols a subscriber as ACTIVE. A zero fee takes the package price.
// Records that could not be billed are rejected here, not at generation time.
func (s *CustomerService) Create(ctx context.Context, in CustomerInput) (*domain.Customer, error) {
	if err := validateStruct(in); err != nil {
		return nil, errors.Mark(err, domain.ErrInvalidCustomer)
	}
	fee, err := s.resolveFee(ctx, in)
	if err != nil {
		return nil, err
	}

	c := &domain.Customer{
		ID:          "CUST-" + ulid.Make().String(),
		ServiceType: domain.ServiceTypePPPoE,
		Status:      domain.CustomerStatusActive,
		JoinDate:    domain.DateOf(s.clock.Now()),
	}
	applyCustomerInput(c, in, fee)
	if err := c.CheckBillable(); err != nil {
		return nil, err
	}

	if err := s.customers.Create(ctx, c); err != nil {
		return nil, err
	}
	s.activity.Info(ctx, "Customers", "Registered %s (%s)", c.Name, c.Username)
	s.invalidate(ctx)
	return c, nil
}

// Update edits a subscriber. Existing invoices keep their amounts.
func (s *CustomerService) Update(ctx context.Context, id string, in CustomerInput) (*domain.Customer, error) {
	if err := validateStruct(in); err != nil {
		return nil, errors.Mark(err, domain.ErrInvalidCustomer)
	}
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	fee, err := s.resolveFee(ctx, in)
	if err != nil {
		return nil, err
	}

	applyCustomerInput(c, in, fee)
	if err := c.CheckBillable(); err != nil {
		return nil, err
	}
	if err := s.customers.Update(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return c, nil
}

// ToggleStatus flips ACTIVE to SUSPENDED and anything else back to ACTIVE
func (s *CustomerService) ToggleStatus(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := c.ToggledStatus()
	if err := s.customers.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	c.Status = next
	s.activity.Info(ctx, "Customers", "%s is now %s", c.Name, next)
	s.invalidate(ctx)
	return c, nil
}

func (s *CustomerService) resolveFee(ctx context.Context, in CustomerInput) (int64, error) {
	pkg, err := s.packages.GetByName(ctx, strings.TrimSpace(in.ProfileName))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, errors.Wrapf(domain.ErrInvalidCustomer, "unknown package %q", in.ProfileName)
		}
		return 0, errors.Wrap(err, "look up package")
	}
	if in.MonthlyFee > 0 {
		return in.MonthlyFee, nil
	}
	return pkg.Price, nil
}

func applyCustomerInput(c *domain.Customer, in CustomerInput, fee int64) {
	c.Name = strings.TrimSpace(in.Name)
	c.Username = strings.TrimSpace(in.Username)
	if in.Password != "" {
		c.Password = in.Password
	}
	c.Email = in.Email
	c.Phone = in.Phone
	c.Address = in.Address
	c.ProfileName = strings.TrimSpace(in.ProfileName)
	c.IPAddress = in.IPAddress
	c.MonthlyFee = fee
	c.BillingCycleDay = in.BillingCycleDay
	c.RouterID = in.RouterID
	c.Latitude = in.Latitude
	c.Longitude = in.Longitude
}

func (s *CustomerService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDashboard(ctx); err != nil {
		logger.FromContext(ctx).Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
