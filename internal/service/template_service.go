package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/infrastructure/openrouter"
	"github.com/phbiling/isp-billing/internal/logger"
	"go.uber.org/zap"
)

// draftFallback is returned when the AI draft cannot be produced
const draftFallback = "Halo, ini adalah notifikasi dari ISP. Silakan cek tagihan Anda."

var defaultTemplates = map[domain.TemplateType]string{
	domain.TemplateInvoice: "Halo {{nama}},\n\nTagihan internet Anda periode {{bulan}} sebesar Rp {{jumlah}} telah terbit.\n\n" +
		"Silakan melakukan pembayaran sebelum {{jatuh_tempo}} melalui link otomatis berikut:\n{{link_pembayaran}}\n\nTerima kasih.",
	domain.TemplateReminder: "Halo {{nama}},\n\nKami mengingatkan tagihan internet periode {{bulan}} sebesar Rp {{jumlah}} " +
		"jatuh tempo pada {{jatuh_tempo}}.\n\nBayar sekarang melalui:\n{{link_pembayaran}}\n\nAbaikan pesan ini jika sudah membayar.",
	domain.TemplateSuspend: "Halo {{nama}},\n\nLayanan internet Anda sementara kami isolir karena tagihan periode {{bulan}} " +
		"sebesar Rp {{jumlah}} belum dibayar.\n\nLayanan aktif kembali setelah pembayaran melalui:\n{{link_pembayaran}}",
	domain.TemplateSuccess: "Halo {{nama}},\n\nPembayaran tagihan periode {{bulan}} sebesar Rp {{jumlah}} telah kami terima.\n\n" +
		"Terima kasih telah menggunakan layanan kami.",
}

// TextCompleter is the chat model used for drafts and reports
type TextCompleter interface {
	Enabled() bool
	Complete(ctx context.Context, temperature float64, messages ...openrouter.Message) (string, error)
}

// TemplateData fills the {{placeholder}} fields of a message template
type TemplateData struct {
	Name       string
	Period     string
	Amount     int64
	DueDate    string
	PaymentURL string
}

// TemplateDataFor builds the placeholder values of an invoice
func TemplateDataFor(inv *domain.Invoice) TemplateData {
	return TemplateData{
		Name:       inv.CustomerName,
		Period:     inv.Period,
		Amount:     inv.Amount,
		DueDate:    domain.FormatDate(inv.DueDate),
		PaymentURL: inv.PaymentURL,
	}
}

// RenderTemplate substitutes the placeholders of content. Unknown placeholders are left as is.
func RenderTemplate(content string, d TemplateData) string {
	return strings.NewReplacer(
		"{{nama}}", d.Name,
		"{{bulan}}", d.Period,
		"{{jumlah}}", domain.FormatRupiah(d.Amount),
		"{{jatuh_tempo}}", d.DueDate,
		"{{link_pembayaran}}", d.PaymentURL,
	).Replace(content)
}

// TemplateDraft is an AI suggestion for a template body
type TemplateDraft struct {
	Type      domain.TemplateType `json:"type"`
	Content   string              `json:"content"`
	Generated bool                `json:"generated"` // false when the fallback text was used
}

// TemplateService manages WhatsApp message templates
type TemplateService struct {
	repo     domain.TemplateRepository
	ai       TextCompleter
	clock    clock.Clock
	activity *ActivityLog
}

// NewTemplateService creates a new TemplateService. ai may be nil.
func NewTemplateService(repo domain.TemplateRepository, ai TextCompleter, clk clock.Clock, activity *ActivityLog) *TemplateService {
	return &TemplateService{repo: repo, ai: ai, clock: clk, activity: activity}
}

// List returns every template type, stored bodies overriding the defaults
func (s *TemplateService) List(ctx context.Context) ([]*domain.MessageTemplate, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list templates")
	}
	byType := make(map[domain.TemplateType]*domain.MessageTemplate, len(stored))
	for _, tpl := range stored {
		byType[tpl.Type] = tpl
	}

	out := make([]*domain.MessageTemplate, 0, len(domain.TemplateTypes))
	for _, t := range domain.TemplateTypes {
		if tpl, ok := byType[t]; ok {
			out = append(out, tpl)
			continue
		}
		out = append(out, &domain.MessageTemplate{Type: t, Content: defaultTemplates[t]})
	}
	return out, nil
}

// Get returns the stored template or its default
func (s *TemplateService) Get(ctx context.Context, t domain.TemplateType) (*domain.MessageTemplate, error) {
	if !t.Valid() {
		return nil, errors.Mark(errors.Newf("unknown template type %q", t), domain.ErrValidation)
	}
	tpl, err := s.repo.Get(ctx, t)
	if err == nil {
		return tpl, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Wrapf(err, "get template %s", t)
	}
	return &domain.MessageTemplate{Type: t, Content: defaultTemplates[t]}, nil
}

// Save stores a template body
func (s *TemplateService) Save(ctx context.Context, t domain.TemplateType, content string) (*domain.MessageTemplate, error) {
	if !t.Valid() {
		return nil, errors.Mark(errors.Newf("unknown template type %q", t), domain.ErrValidation)
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.Mark(errors.New("template content is required"), domain.ErrValidation)
	}

	tpl := &domain.MessageTemplate{Type: t, Content: content, UpdatedAt: s.clock.Now()}
	if err := s.repo.Upsert(ctx, tpl); err != nil {
		return nil, errors.Wrapf(err, "save template %s", t)
	}
	s.activity.Info(ctx, "WhatsApp", "Template %s updated", t)
	return tpl, nil
}

// Render fills template t for an invoice
func (s *TemplateService) Render(ctx context.Context, t domain.TemplateType, inv *domain.Invoice) (string, error) {
	tpl, err := s.Get(ctx, t)
	if err != nil {
		return "", err
	}
	return RenderTemplate(tpl.Content, TemplateDataFor(inv)), nil
}

// Draft asks the AI model for a template body. Without a model, or when the
// call fails, the generic fallback text is returned with Generated=false.
func (s *TemplateService) Draft(ctx context.Context, t domain.TemplateType, sample TemplateData) (*TemplateDraft, error) {
	if !t.Valid() {
		return nil, errors.Mark(errors.Newf("unknown template type %q", t), domain.ErrValidation)
	}
	draft := &TemplateDraft{Type: t, Content: draftFallback}
	if s.ai == nil || !s.ai.Enabled() {
		return draft, nil
	}

	data, err := json.Marshal(map[string]interface{}{
		"name":        sample.Name,
		"amount":      sample.Amount,
		"instruction": "Sertakan link pembayaran otomatis {{link_pembayaran}}",
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal sample")
	}
	prompt := fmt.Sprintf("Buatkan template pesan WhatsApp untuk %s pelanggan internet.\n"+
		"Data Pelanggan: %s.\n"+
		"Pastikan profesional, jelas, dan menyertakan instruksi pembayaran.\n"+
		"Gunakan placeholder {{nama}}, {{bulan}}, {{jumlah}}, {{jatuh_tempo}} dan {{link_pembayaran}}.", t, data)

	text, err := s.ai.Complete(ctx, 0.7,
		openrouter.Message{Role: "system", Content: "You write short WhatsApp messages for an Indonesian internet service provider. Reply with the message only."},
		openrouter.Message{Role: "user", Content: prompt},
	)
	if err != nil || strings.TrimSpace(text) == "" {
		logger.FromContext(ctx).Warn("template draft failed", zap.String("type", string(t)), zap.Error(err))
		return draft, nil
	}
	draft.Content = text
	draft.Generated = true
	return draft, nil
}
