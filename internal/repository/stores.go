package repository

import (
	"context"

	"github.com/phbiling/isp-billing/internal/domain"
	"go.mongodb.org/mongo-driver/mongo"
)

// systemLogCapacity bounds the in-memory activity log
const systemLogCapacity = 500

// Stores bundles the repositories the billing services run on
type Stores struct {
	Customers domain.CustomerRepository
	Packages  domain.PackageRepository
	Invoices  domain.InvoiceRepository
	Users     domain.UserRepository
	Company   domain.CompanyRepository
	Routers   domain.RouterRepository
	Logs      domain.SystemLogRepository
	Templates domain.TemplateRepository
}

// NewMemoryStores creates empty in-process stores. State is lost on restart.
func NewMemoryStores(company domain.CompanyConfig, routers []domain.Router) *Stores {
	return &Stores{
		Customers: NewMemoryCustomerRepository(),
		Packages:  NewMemoryPackageRepository(),
		Invoices:  NewMemoryInvoiceRepository(),
		Users:     NewMemoryUserRepository(),
		Company:   NewMemoryCompanyRepository(company),
		Routers:   NewMemoryRouterRepository(routers),
		Logs:      NewMemorySystemLogRepository(systemLogCapacity),
		Templates: NewMemoryTemplateRepository(),
	}
}

// NewMongoStores creates MongoDB backed stores and their indexes. The router
// inventory is display-only and stays in memory.
func NewMongoStores(ctx context.Context, db *mongo.Database, routers []domain.Router) (*Stores, error) {
	invoices, err := NewMongoInvoiceRepository(ctx, db)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Customers: NewMongoCustomerRepository(db),
		Packages:  NewMongoPackageRepository(db),
		Invoices:  invoices,
		Users:     NewMongoUserRepository(db),
		Company:   NewMongoCompanyRepository(db),
		Routers:   NewMemoryRouterRepository(routers),
		Logs:      NewMongoSystemLogRepository(db),
		Templates: NewMongoTemplateRepository(db),
	}, nil
}
