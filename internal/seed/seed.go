// Package seed holds the demo dataset of a small ISP: company profile,
// staff accounts, packages, subscribers, two historical invoices and the
// router inventory.
package seed

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/logger"
	"github.com/phbiling/isp-billing/internal/repository"
	"github.com/phbiling/isp-billing/internal/service"
	"go.uber.org/zap"
)

// Company is the demo company profile
var Company = domain.CompanyConfig{
	Name:    "PH biling ISP",
	Slogan:  "Koneksi Cepat, Harga Sahabat",
	Address: "Kawasan Digital No. 88, Jakarta Selatan",
	Phone:   "021-555-0123",
	Email:   "billing@phbiling.com",
	LogoURL: "https://images.unsplash.com/photo-1560179707-f14e90ef3623?w=100&h=100&fit=crop&q=80",
}

// Routers is the demo router inventory
var Routers = []domain.Router{
	{ID: "R01", Name: "Core-Router-Olt-A", IP: "192.168.10.1", Status: "ONLINE", Uptime: "45d 12h 5m", CPULoad: 12, MemoryUsage: 45},
	{ID: "R02", Name: "Edge-Router-B", IP: "192.168.20.1", Status: "ONLINE", Uptime: "12d 3h 20m", CPULoad: 5, MemoryUsage: 30},
}

type staffAccount struct {
	user     domain.SystemUser
	password string
}

// Result counts what Load wrote
type Result struct {
	Skipped   bool
	Users     int
	Packages  int
	Customers int
	Invoices  int
}

func date(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func float(v float64) *float64 { return &v }

func staff(loc *time.Location) []staffAccount {
	return []staffAccount{
		{
			user: domain.SystemUser{
				ID: "USR001", Name: "Admin Utama", Username: "admin", Role: domain.RoleAdmin,
				Email: "admin@phbiling.com", Phone: "08123456789", Address: "Jakarta Selatan",
				Status: "ACTIVE", JoinDate: date(2023, time.January, 10, loc),
				AvatarURL: "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=100&h=100&fit=crop&q=80",
			},
			password: "admin123",
		},
		{
			user: domain.SystemUser{
				ID: "USR002", Name: "Budi Teknisi", Username: "budi_tech", Role: domain.RoleTechnician,
				Email: "budi@phbiling.com", Phone: "085566778899", Address: "Depok, Jawa Barat",
				Status: "ACTIVE", JoinDate: date(2023, time.May, 20, loc),
			},
			password: "tech123",
		},
	}
}

func packages() []domain.InternetPackage {
	return []domain.InternetPackage{
		{ID: "PKG001", Name: "HOME-10MBPS", Speed: "10 Mbps", Price: 150000, Description: "Paket internet rumah standar", Type: domain.ServiceTypePPPoE, IsMikrotikSynced: true},
		{ID: "PKG002", Name: "HOME-20MBPS", Speed: "20 Mbps", Price: 250000, Description: "Paket internet rumah cepat", Type: domain.ServiceTypePPPoE, IsMikrotikSynced: true},
		{ID: "PKG003", Name: "BIZ-50MBPS", Speed: "50 Mbps", Price: 450000, Description: "Paket bisnis prioritas", Type: domain.ServiceTypePPPoE, IsMikrotikSynced: true},
	}
}

func customers(loc *time.Location) []domain.Customer {
	return []domain.Customer{
		{
			ID: "CUST001", Name: "Budi Santoso", Username: "budi_home", Password: "ppp_password_123",
			Email: "budi@example.com", Phone: "6281234567890", Address: "Jl. Merdeka No. 10",
			ServiceType: domain.ServiceTypePPPoE, ProfileName: "HOME-10MBPS", IPAddress: "10.10.10.5",
			Status: domain.CustomerStatusActive, MonthlyFee: 150000, JoinDate: date(2023, time.October, 15, loc),
			BillingCycleDay: 5, RouterID: "R01", IsMikrotikSynced: true,
			Latitude: float(-6.2088), Longitude: float(106.8456),
		},
		{
			ID: "CUST003", Name: "Rahmat Hidayat", Username: "rahmat_biz", Password: "secret_password_99",
			Email: "rahmat@example.com", Phone: "628551234567", Address: "Ruko Central No. 5",
			ServiceType: domain.ServiceTypePPPoE, ProfileName: "BIZ-50MBPS", IPAddress: "10.10.10.10",
			Status: domain.CustomerStatusSuspended, MonthlyFee: 450000, JoinDate: date(2023, time.May, 10, loc),
			BillingCycleDay: 20, RouterID: "R02", IsMikrotikSynced: true,
			Latitude: float(-6.1751), Longitude: float(106.8650),
		},
	}
}

func invoices(loc *time.Location) []*domain.Invoice {
	may := date(2024, time.May, 1, loc)
	paidAt := date(2024, time.May, 4, loc)
	return []*domain.Invoice{
		{
			ID: domain.FormatInvoiceID(2024, 1), CustomerID: "CUST001", CustomerName: "Budi Santoso",
			Amount: 150000, DueDate: date(2024, time.May, 5, loc),
			Period: domain.PeriodLabel(may), PeriodKey: domain.PeriodKey(may),
			Status: domain.InvoiceStatusPaid, CreatedAt: may, PaidAt: &paidAt,
			Notifications: []domain.NotificationLog{},
		},
		{
			ID: domain.FormatInvoiceID(2024, 2), CustomerID: "CUST003", CustomerName: "Rahmat Hidayat",
			Amount: 450000, DueDate: date(2024, time.May, 20, loc),
			Period: domain.PeriodLabel(may), PeriodKey: domain.PeriodKey(may),
			Status: domain.InvoiceStatusUnpaid, CreatedAt: may,
			Notifications: []domain.NotificationLog{},
		},
	}
}

// Load writes the demo dataset unless the customer directory already has
// entries. now stamps the seed log line.
func Load(ctx context.Context, s *repository.Stores, now time.Time) (*Result, error) {
	log := logger.FromContext(ctx)
	loc := now.Location()

	existing, err := s.Customers.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "check existing customers")
	}
	if len(existing) > 0 {
		log.Info("seed skipped, customer directory not empty", zap.Int("customers", len(existing)))
		return &Result{Skipped: true}, nil
	}

	res := &Result{}
	company := Company
	if err := s.Company.Update(ctx, &company); err != nil {
		return nil, errors.Wrap(err, "seed company profile")
	}

	for _, acc := range staff(loc) {
		u := acc.user
		if u.PasswordHash, err = service.HashPassword(acc.password); err != nil {
			return nil, err
		}
		if err := s.Users.Create(ctx, &u); err != nil {
			return nil, errors.Wrapf(err, "seed user %s", u.Username)
		}
		res.Users++
	}

	for _, p := range packages() {
		p.UpdatedAt = now
		if err := s.Packages.Create(ctx, &p); err != nil {
			return nil, errors.Wrapf(err, "seed package %s", p.Name)
		}
		res.Packages++
	}

	for _, c := range customers(loc) {
		c.UpdatedAt = now
		if err := s.Customers.Create(ctx, &c); err != nil {
			return nil, errors.Wrapf(err, "seed customer %s", c.ID)
		}
		res.Customers++
	}

	history := invoices(loc)
	if err := s.Invoices.AppendInvoices(ctx, history); err != nil {
		return nil, errors.Wrap(err, "seed invoices")
	}
	res.Invoices = len(history)

	if err := s.Logs.Append(ctx, &domain.SystemLog{
		ID:        "L01",
		Timestamp: now,
		Level:     domain.LogLevelInfo,
		Module:    "BILLING",
		Message:   "Demo dataset loaded",
	}); err != nil {
		return nil, errors.Wrap(err, "seed system log")
	}

	log.Info("seed completed",
		zap.Int("users", res.Users),
		zap.Int("packages", res.Packages),
		zap.Int("customers", res.Customers),
		zap.Int("invoices", res.Invoices),
	)
	return res, nil
}
