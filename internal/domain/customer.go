package domain

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// CustomerStatus is the service state of a subscriber
type CustomerStatus string

const (
	CustomerStatusActive    CustomerStatus = "ACTIVE"
	CustomerStatusSuspended CustomerStatus = "SUSPENDED"
	CustomerStatusInactive  CustomerStatus = "INACTIVE"
)

// ServiceTypePPPoE is the only provisioning type in use
const ServiceTypePPPoE = "PPPoE"

// Customer represents an internet subscriber
type Customer struct {
	ID               string         `bson:"_id" json:"id"`
	Name             string         `bson:"name" json:"name" validate:"required"`
	Username         string         `bson:"username" json:"username" validate:"required"`
	Password         string         `bson:"password,omitempty" json:"-"` // PPPoE secret
	Email            string         `bson:"email" json:"email" validate:"omitempty,email"`
	Phone            string         `bson:"phone" json:"phone"`
	Address          string         `bson:"address" json:"address"`
	ServiceType      string         `bson:"service_type" json:"service_type"`
	ProfileName      string         `bson:"profile_name" json:"profile_name"` // InternetPackage.Name
	IPAddress        string         `bson:"ip_address,omitempty" json:"ip_address,omitempty" validate:"omitempty,ip"`
	Status           CustomerStatus `bson:"status" json:"status" validate:"oneof=ACTIVE SUSPENDED INACTIVE"`
	MonthlyFee       int64          `bson:"monthly_fee" json:"monthly_fee" validate:"gte=0"`
	JoinDate         time.Time      `bson:"join_date" json:"join_date"`
	BillingCycleDay  int            `bson:"billing_cycle_day" json:"billing_cycle_day" validate:"min=1,max=31"`
	RouterID         string         `bson:"router_id" json:"router_id"`
	IsMikrotikSynced bool           `bson:"is_mikrotik_synced" json:"is_mikrotik_synced"`
	Latitude         *float64       `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude        *float64       `bson:"longitude,omitempty" json:"longitude,omitempty"`
	UpdatedAt        time.Time      `bson:"updated_at" json:"updated_at"`
}

// CheckBillable reports whether the record carries everything invoice generation needs.
func (c *Customer) CheckBillable() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.Wrap(ErrInvalidCustomer, "name is required")
	}
	if c.BillingCycleDay < 1 || c.BillingCycleDay > 31 {
		return errors.Wrapf(ErrInvalidCustomer, "billing cycle day %d outside 1..31", c.BillingCycleDay)
	}
	if c.MonthlyFee < 0 {
		return errors.Wrapf(ErrInvalidCustomer, "monthly fee %d is negative", c.MonthlyFee)
	}
	return nil
}

// ToggledStatus returns the status an admin toggle moves the customer to.
// ACTIVE goes to SUSPENDED; anything else is re-activated.
func (c *Customer) ToggledStatus() CustomerStatus {
	if c.Status == CustomerStatusActive {
		return CustomerStatusSuspended
	}
	return CustomerStatusActive
}

// MatchesSearch reports whether name or username contains term, case-insensitively
func (c *Customer) MatchesSearch(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), term) ||
		strings.Contains(strings.ToLower(c.Username), term)
}

// CustomerRepository is the customer directory
type CustomerRepository interface {
	List(ctx context.Context) ([]*Customer, error)
	GetByID(ctx context.Context, id string) (*Customer, error)
	Create(ctx context.Context, customer *Customer) error
	Update(ctx context.Context, customer *Customer) error
	UpdateStatus(ctx context.Context, id string, status CustomerStatus) error
}
