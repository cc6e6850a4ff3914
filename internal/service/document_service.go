package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/logger"
	"go.uber.org/zap"
)

const documentURLTTL = 24 * time.Hour

// DocumentCache remembers where an invoice document was archived
type DocumentCache interface {
	GetInvoiceDocumentURL(ctx context.Context, key string) (string, error)
	SetInvoiceDocumentURL(ctx context.Context, key, url string, ttl time.Duration) error
}

var invoiceDocument = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"rupiah": domain.FormatRupiah,
	"date":   domain.FormatDate,
}).Parse(`<!DOCTYPE html>
<html lang="id">
<head>
<meta charset="utf-8">
<title>Invoice {{.Invoice.ID}}</title>
<style>
body{font-family:Helvetica,Arial,sans-serif;color:#1e293b;margin:40px}
header{display:flex;justify-content:space-between;border-bottom:2px solid #2563eb;padding-bottom:16px}
table{width:100%;border-collapse:collapse;margin-top:24px}
td,th{padding:8px;border-bottom:1px solid #e2e8f0;text-align:left}
.total{font-size:1.25em;font-weight:bold}
.status{font-weight:bold;text-transform:uppercase}
</style>
</head>
<body>
<header>
<div>
{{if .Company.LogoURL}}<img src="{{.Company.LogoURL}}" alt="logo" height="48">{{end}}
<h2>{{.Company.Name}}</h2>
{{with .Company.Slogan}}<p>{{.}}</p>{{end}}
<p>{{.Company.Address}}<br>{{.Company.Phone}} {{.Company.Email}}</p>
</div>
<div>
<h1>INVOICE</h1>
<p>No: {{.Invoice.ID}}<br>Tanggal: {{date .Invoice.CreatedAt}}<br>Jatuh tempo: {{date .Invoice.DueDate}}</p>
<p class="status">{{.Status}}</p>
</div>
</header>
<p>Kepada: <strong>{{.Invoice.CustomerName}}</strong>{{with .Customer}}<br>{{.Address}}<br>{{.Phone}}{{end}}</p>
<table>
<tr><th>Deskripsi</th><th>Periode</th><th>Jumlah</th></tr>
<tr><td>Layanan internet{{with .Customer}} {{.ProfileName}}{{end}}</td><td>{{.Invoice.Period}}</td><td>Rp {{rupiah .Invoice.Amount}}</td></tr>
<tr><td colspan="2" class="total">Total</td><td class="total">Rp {{rupiah .Invoice.Amount}}</td></tr>
</table>
{{if .Invoice.PaidAt}}<p>Lunas pada {{date .Invoice.PaidAt}}</p>{{else if .Invoice.PaymentURL}}<p>Bayar online: <a href="{{.Invoice.PaymentURL}}">{{.Invoice.PaymentURL}}</a></p>{{end}}
</body>
</html>
`))

type invoiceDocumentData struct {
	Invoice  *domain.Invoice
	Customer *domain.Customer
	Company  *domain.CompanyConfig
	Status   domain.InvoiceStatus
}

// DocumentService renders printable invoice documents
type DocumentService struct {
	queries   *InvoiceQueries
	customers domain.CustomerRepository
	company   domain.CompanyRepository
	files     domain.FileRepository
	cache     DocumentCache
}

// NewDocumentService creates a new DocumentService. files and cache may be nil.
func NewDocumentService(
	queries *InvoiceQueries,
	customers domain.CustomerRepository,
	company domain.CompanyRepository,
	files domain.FileRepository,
	cache DocumentCache,
) *DocumentService {
	return &DocumentService{
		queries:   queries,
		customers: customers,
		company:   company,
		files:     files,
		cache:     cache,
	}
}

// Render returns the HTML document of an invoice
func (s *DocumentService) Render(ctx context.Context, invoiceID string) ([]byte, error) {
	doc, _, err := s.render(ctx, invoiceID)
	return doc, err
}

// Archive uploads the rendered document and returns its URL. The URL is
// cached per invoice and displayed status.
func (s *DocumentService) Archive(ctx context.Context, invoiceID string) (string, error) {
	if s.files == nil {
		return "", errors.New("document archive is not configured")
	}
	log := logger.FromContext(ctx).With(zap.String("invoice_id", invoiceID))

	doc, status, err := s.render(ctx, invoiceID)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s:%s", invoiceID, status)
	if s.cache != nil {
		if url, err := s.cache.GetInvoiceDocumentURL(ctx, key); err == nil && url != "" {
			return url, nil
		}
	}

	url, err := s.files.Upload(ctx, doc, fmt.Sprintf("invoices/%s-%s.html", invoiceID, status), "text/html; charset=utf-8")
	if err != nil {
		return "", errors.Wrap(err, "upload invoice document")
	}
	if s.cache != nil {
		if err := s.cache.SetInvoiceDocumentURL(ctx, key, url, documentURLTTL); err != nil {
			log.Warn("failed to cache document url", zap.Error(err))
		}
	}
	log.Info("invoice document archived", zap.String("url", url))
	return url, nil
}

func (s *DocumentService) render(ctx context.Context, invoiceID string) ([]byte, domain.InvoiceStatus, error) {
	v, err := s.queries.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, "", err
	}
	company, err := s.company.Get(ctx)
	if err != nil {
		return nil, "", errors.Wrap(err, "load company profile")
	}
	// the customer may have been removed from the directory since billing
	customer, err := s.customers.GetByID(ctx, v.CustomerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, "", errors.Wrap(err, "load customer")
	}

	var buf bytes.Buffer
	data := invoiceDocumentData{
		Invoice:  v.Invoice,
		Customer: customer,
		Company:  company,
		Status:   v.EffectiveStatus,
	}
	if err := invoiceDocument.Execute(&buf, data); err != nil {
		return nil, "", errors.Wrap(err, "render invoice document")
	}
	return buf.Bytes(), v.EffectiveStatus, nil
}
