package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/infrastructure/openrouter"
	"github.com/phbiling/isp-billing/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	enabled bool
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Enabled() bool { return f.enabled }

func (f *fakeCompleter) Complete(ctx context.Context, temperature float64, messages ...openrouter.Message) (string, error) {
	for _, m := range messages {
		f.prompts = append(f.prompts, m.Content)
	}
	return f.reply, f.err
}

func TestRenderTemplate(t *testing.T) {
	inv := &domain.Invoice{
		CustomerName: "Budi Santoso",
		Period:       "Mei 2024",
		Amount:       150000,
		DueDate:      time.Date(2024, time.May, 5, 0, 0, 0, 0, wib),
		PaymentURL:   "https://pay.example.com/pay/INV-2024-001",
	}
	got := RenderTemplate(defaultTemplates[domain.TemplateInvoice], TemplateDataFor(inv))

	assert.Contains(t, got, "Halo Budi Santoso,")
	assert.Contains(t, got, "periode Mei 2024 sebesar Rp 150.000")
	assert.Contains(t, got, "sebelum 05 Mei 2024")
	assert.Contains(t, got, "https://pay.example.com/pay/INV-2024-001")
	assert.NotContains(t, got, "{{")
}

func TestTemplateService_ListSaveGet(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, day(2026, time.October, 16), defaultPolicy())
	svc := NewTemplateService(repository.NewMemoryTemplateRepository(), nil, f.clock, f.activity)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(domain.TemplateTypes))
	for i, tpl := range all {
		assert.Equal(t, domain.TemplateTypes[i], tpl.Type)
		assert.NotEmpty(t, tpl.Content)
	}

	_, err = svc.Save(ctx, domain.TemplateReminder, "Halo {{nama}}, jangan lupa bayar.")
	require.NoError(t, err)
	got, err := svc.Get(ctx, domain.TemplateReminder)
	require.NoError(t, err)
	assert.Equal(t, "Halo {{nama}}, jangan lupa bayar.", got.Content)

	_, err = svc.Save(ctx, domain.TemplateReminder, "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Save(ctx, "promo", "x")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTemplateService_Draft(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, day(2026, time.October, 16), defaultPolicy())
	repo := repository.NewMemoryTemplateRepository()
	sample := TemplateData{Name: "Budi", Amount: 150000}

	t.Run("no model configured", func(t *testing.T) {
		svc := NewTemplateService(repo, nil, f.clock, nil)
		d, err := svc.Draft(ctx, domain.TemplateInvoice, sample)
		require.NoError(t, err)
		assert.False(t, d.Generated)
		assert.Equal(t, draftFallback, d.Content)
	})

	t.Run("model reply", func(t *testing.T) {
		ai := &fakeCompleter{enabled: true, reply: "Halo {{nama}}, tagihan Anda Rp {{jumlah}}."}
		svc := NewTemplateService(repo, ai, f.clock, nil)
		d, err := svc.Draft(ctx, domain.TemplateReminder, sample)
		require.NoError(t, err)
		assert.True(t, d.Generated)
		assert.Equal(t, ai.reply, d.Content)
		require.NotEmpty(t, ai.prompts)
		assert.Contains(t, ai.prompts[len(ai.prompts)-1], "Buatkan template pesan WhatsApp untuk reminder")
	})

	t.Run("model failure falls back", func(t *testing.T) {
		ai := &fakeCompleter{enabled: true, err: errors.New("rate limited")}
		svc := NewTemplateService(repo, ai, f.clock, nil)
		d, err := svc.Draft(ctx, domain.TemplateSuspend, sample)
		require.NoError(t, err)
		assert.False(t, d.Generated)
		assert.Equal(t, draftFallback, d.Content)
	})
}
