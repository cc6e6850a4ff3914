package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/domain"
)

// The memory stores back STORE_DRIVER=memory. State lives for the process
// lifetime only. Every read returns copies so callers never alias stored records.

// MemoryCustomerRepository implements domain.CustomerRepository
type MemoryCustomerRepository struct {
	mu        sync.RWMutex
	order     []string
	customers map[string]*domain.Customer
}

// NewMemoryCustomerRepository creates an empty customer directory
func NewMemoryCustomerRepository() *MemoryCustomerRepository {
	return &MemoryCustomerRepository{customers: make(map[string]*domain.Customer)}
}

func (r *MemoryCustomerRepository) List(ctx context.Context) ([]*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Customer, 0, len(r.order))
	for _, id := range r.order {
		c := *r.customers[id]
		out = append(out, &c)
	}
	return out, nil
}

func (r *MemoryCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.customers[customer.ID]; exists {
		return errors.Newf("customer %s already exists", customer.ID)
	}
	cp := *customer
	r.customers[customer.ID] = &cp
	r.order = append(r.order, customer.ID)
	return nil
}

func (r *MemoryCustomerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.customers[customer.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *customer
	r.customers[customer.ID] = &cp
	return nil
}

func (r *MemoryCustomerRepository) UpdateStatus(ctx context.Context, id string, status domain.CustomerStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.customers[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// MemoryPackageRepository implements domain.PackageRepository
type MemoryPackageRepository struct {
	mu       sync.RWMutex
	order    []string
	packages map[string]*domain.InternetPackage
}

// NewMemoryPackageRepository creates an empty package catalogue
func NewMemoryPackageRepository() *MemoryPackageRepository {
	return &MemoryPackageRepository{packages: make(map[string]*domain.InternetPackage)}
}

func (r *MemoryPackageRepository) List(ctx context.Context) ([]*domain.InternetPackage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.InternetPackage, 0, len(r.order))
	for _, id := range r.order {
		p := *r.packages[id]
		out = append(out, &p)
	}
	return out, nil
}

func (r *MemoryPackageRepository) GetByID(ctx context.Context, id string) (*domain.InternetPackage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.packages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryPackageRepository) GetByName(ctx context.Context, name string) (*domain.InternetPackage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if p := r.packages[id]; strings.EqualFold(p.Name, name) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemoryPackageRepository) Create(ctx context.Context, pkg *domain.InternetPackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.packages[pkg.ID]; exists {
		return errors.Newf("package %s already exists", pkg.ID)
	}
	cp := *pkg
	r.packages[pkg.ID] = &cp
	r.order = append(r.order, pkg.ID)
	return nil
}

func (r *MemoryPackageRepository) Update(ctx context.Context, pkg *domain.InternetPackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.packages[pkg.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *pkg
	r.packages[pkg.ID] = &cp
	return nil
}

// MemoryInvoiceRepository implements domain.InvoiceRepository.
// Like the Mongo store it keeps invoice ids unique and allows one invoice per
// customer period; AppendInvoices checks both under the write lock.
type MemoryInvoiceRepository struct {
	mu       sync.RWMutex
	order    []string
	invoices map[string]*domain.Invoice
	periods  map[string]string // customer period -> invoice id
}

// NewMemoryInvoiceRepository creates an empty invoice store
func NewMemoryInvoiceRepository() *MemoryInvoiceRepository {
	return &MemoryInvoiceRepository{
		invoices: make(map[string]*domain.Invoice),
		periods:  make(map[string]string),
	}
}

// customerPeriod keys the one-invoice-per-period rule; invoices without a
// period key are not constrained
func customerPeriod(inv *domain.Invoice) (string, bool) {
	if inv.PeriodKey == "" {
		return "", false
	}
	return inv.CustomerID + "/" + inv.PeriodKey, true
}

func (r *MemoryInvoiceRepository) List(ctx context.Context) ([]*domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Invoice, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.invoices[id].Clone())
	}
	return out, nil
}

func (r *MemoryInvoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.invoices[id]
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv.Clone(), nil
}

func (r *MemoryInvoiceRepository) AppendInvoices(ctx context.Context, invoices []*domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(invoices))
	seenPeriods := make(map[string]struct{}, len(invoices))
	for _, inv := range invoices {
		if _, exists := r.invoices[inv.ID]; exists {
			return errors.Wrapf(domain.ErrDuplicateInvoiceID, "invoice %s", inv.ID)
		}
		if _, dup := seen[inv.ID]; dup {
			return errors.Wrapf(domain.ErrDuplicateInvoiceID, "invoice %s repeated in batch", inv.ID)
		}
		seen[inv.ID] = struct{}{}

		key, ok := customerPeriod(inv)
		if !ok {
			continue
		}
		if other, exists := r.periods[key]; exists {
			return errors.Wrapf(domain.ErrDuplicateInvoiceID,
				"customer %s already has %s for period %s", inv.CustomerID, other, inv.PeriodKey)
		}
		if _, dup := seenPeriods[key]; dup {
			return errors.Wrapf(domain.ErrDuplicateInvoiceID,
				"customer %s billed twice for period %s in batch", inv.CustomerID, inv.PeriodKey)
		}
		seenPeriods[key] = struct{}{}
	}

	for _, inv := range invoices {
		r.invoices[inv.ID] = inv.Clone()
		r.order = append(r.order, inv.ID)
		if key, ok := customerPeriod(inv); ok {
			r.periods[key] = inv.ID
		}
	}
	return nil
}

func (r *MemoryInvoiceRepository) UpdateStatus(ctx context.Context, id string, status domain.InvoiceStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.invoices[id]
	if !ok {
		return false, domain.ErrInvoiceNotFound
	}
	if inv.Status == status {
		return false, nil
	}
	inv.Status = status
	if status == domain.InvoiceStatusPaid {
		paid := at
		inv.PaidAt = &paid
	} else {
		inv.PaidAt = nil
	}
	return true, nil
}

func (r *MemoryInvoiceRepository) AppendNotification(ctx context.Context, id string, entry domain.NotificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.invoices[id]
	if !ok {
		return domain.ErrInvoiceNotFound
	}
	inv.Notifications = append(inv.Notifications, entry)
	return nil
}

// MemoryUserRepository implements domain.UserRepository
type MemoryUserRepository struct {
	mu    sync.RWMutex
	order []string
	users map[string]*domain.SystemUser
}

// NewMemoryUserRepository creates an empty staff directory
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*domain.SystemUser)}
}

func (r *MemoryUserRepository) List(ctx context.Context) ([]*domain.SystemUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.SystemUser, 0, len(r.order))
	for _, id := range r.order {
		u := *r.users[id]
		out = append(out, &u)
	}
	return out, nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*domain.SystemUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*domain.SystemUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if u := r.users[id]; u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.SystemUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username {
			return errors.Newf("username %q already taken", user.Username)
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	r.order = append(r.order, user.ID)
	return nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *domain.SystemUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

// MemoryCompanyRepository implements domain.CompanyRepository
type MemoryCompanyRepository struct {
	mu  sync.RWMutex
	cfg domain.CompanyConfig
}

// NewMemoryCompanyRepository creates a company profile store with an initial value
func NewMemoryCompanyRepository(initial domain.CompanyConfig) *MemoryCompanyRepository {
	return &MemoryCompanyRepository{cfg: initial}
}

func (r *MemoryCompanyRepository) Get(ctx context.Context) (*domain.CompanyConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := r.cfg
	return &cp, nil
}

func (r *MemoryCompanyRepository) Update(ctx context.Context, cfg *domain.CompanyConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = *cfg
	return nil
}

// MemoryRouterRepository implements domain.RouterRepository over a fixed inventory
type MemoryRouterRepository struct {
	routers []domain.Router
}

// NewMemoryRouterRepository creates a router inventory
func NewMemoryRouterRepository(routers []domain.Router) *MemoryRouterRepository {
	return &MemoryRouterRepository{routers: append([]domain.Router(nil), routers...)}
}

func (r *MemoryRouterRepository) List(ctx context.Context) ([]*domain.Router, error) {
	out := make([]*domain.Router, 0, len(r.routers))
	for i := range r.routers {
		rt := r.routers[i]
		out = append(out, &rt)
	}
	return out, nil
}

// MemorySystemLogRepository implements domain.SystemLogRepository as a bounded ring
type MemorySystemLogRepository struct {
	mu      sync.Mutex
	max     int
	entries []*domain.SystemLog
}

// NewMemorySystemLogRepository keeps at most max entries; older ones are dropped
func NewMemorySystemLogRepository(max int) *MemorySystemLogRepository {
	if max <= 0 {
		max = 500
	}
	return &MemorySystemLogRepository{max: max}
}

func (r *MemorySystemLogRepository) Append(ctx context.Context, entry *domain.SystemLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	r.entries = append(r.entries, &cp)
	if over := len(r.entries) - r.max; over > 0 {
		r.entries = r.entries[over:]
	}
	return nil
}

func (r *MemorySystemLogRepository) ListRecent(ctx context.Context, limit int) ([]*domain.SystemLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.SystemLog, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		cp := *r.entries[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MemoryTemplateRepository implements domain.TemplateRepository
type MemoryTemplateRepository struct {
	mu        sync.RWMutex
	templates map[domain.TemplateType]*domain.MessageTemplate
}

// NewMemoryTemplateRepository creates an empty template store
func NewMemoryTemplateRepository() *MemoryTemplateRepository {
	return &MemoryTemplateRepository{templates: make(map[domain.TemplateType]*domain.MessageTemplate)}
}

func (r *MemoryTemplateRepository) Get(ctx context.Context, t domain.TemplateType) (*domain.MessageTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tpl, ok := r.templates[t]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *tpl
	return &cp, nil
}

func (r *MemoryTemplateRepository) List(ctx context.Context) ([]*domain.MessageTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.MessageTemplate, 0, len(r.templates))
	for _, tpl := range r.templates {
		cp := *tpl
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (r *MemoryTemplateRepository) Upsert(ctx context.Context, tpl *domain.MessageTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tpl
	r.templates[tpl.Type] = &cp
	return nil
}
