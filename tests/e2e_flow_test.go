package tests

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invoiceJSON struct {
	ID              string `json:"id"`
	CustomerID      string `json:"customer_id"`
	Amount          int64  `json:"amount"`
	Period          string `json:"period"`
	Status          string `json:"status"`
	EffectiveStatus string `json:"effective_status"`
	PaymentURL      string `json:"payment_url"`
	Notifications   []struct {
		Type   string `json:"type"`
		Status string `json:"status"`
	} `json:"notifications"`
}

type generateJSON struct {
	Period  string        `json:"period"`
	Count   int           `json:"count"`
	Created []invoiceJSON `json:"created"`
	Skipped []struct {
		CustomerID string `json:"customer_id"`
		Reason     string `json:"reason"`
	} `json:"skipped"`
}

func sign(invoiceID, status string) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(invoiceID + "." + status))
	return hex.EncodeToString(mac.Sum(nil))
}

// TestBillingCycle walks one month: generate, collect through checkout and the
// gateway callback, and watch the dashboard and isolation list follow.
func TestBillingCycle(t *testing.T) {
	env := newTestEnv(t, memoryStores(), time.Date(2026, time.October, 5, 9, 0, 0, 0, wib))

	admin := env.login("admin", "admin123")
	tech := env.login("budi_tech", "tech123")

	// ==========================================
	// Access control
	// ==========================================
	env.decode(env.request(http.MethodGet, "/v1/invoices", "", nil), http.StatusUnauthorized, nil)
	env.decode(env.request(http.MethodGet, "/v1/invoices", tech, nil), http.StatusForbidden, nil)
	env.decode(env.request(http.MethodGet, "/v1/customers", tech, nil), http.StatusOK, nil)
	env.decode(env.request(http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "admin", "password": "wrong",
	}), http.StatusUnauthorized, nil)

	// ==========================================
	// Generation
	// ==========================================
	var gen generateJSON
	env.decode(env.request(http.MethodPost, "/v1/invoices/generate", admin, nil), http.StatusCreated, &gen)
	assert.Equal(t, "Oktober 2026", gen.Period)
	require.Equal(t, 2, gen.Count)
	assert.Equal(t, "INV-2026-0001", gen.Created[0].ID)
	assert.Equal(t, "INV-2026-0002", gen.Created[1].ID)
	assert.Equal(t, "https://checkout.example.com/pay/INV-2026-0001", gen.Created[0].PaymentURL)

	var again generateJSON
	env.decode(env.request(http.MethodPost, "/v1/invoices/generate", admin, nil), http.StatusCreated, &again)
	assert.Equal(t, 0, again.Count)
	assert.Len(t, again.Skipped, 2)

	var unpaid []invoiceJSON
	env.decode(env.request(http.MethodGet, "/v1/invoices?status=UNPAID", admin, nil), http.StatusOK, &unpaid)
	assert.Len(t, unpaid, 2)

	var overdue []invoiceJSON
	env.decode(env.request(http.MethodGet, "/v1/invoices?status=OVERDUE", admin, nil), http.StatusOK, &overdue)
	require.Len(t, overdue, 1)
	assert.Equal(t, "INV-2024-0002", overdue[0].ID)
	assert.Equal(t, "UNPAID", overdue[0].Status)

	// CUST001 is due on the 5th with an open invoice
	var candidates struct {
		Targets []struct {
			ID string `json:"id"`
		} `json:"targets"`
	}
	env.decode(env.request(http.MethodGet, "/v1/isolation/candidates", admin, nil), http.StatusOK, &candidates)
	require.Len(t, candidates.Targets, 1)
	assert.Equal(t, "CUST001", candidates.Targets[0].ID)

	// ==========================================
	// Checkout
	// ==========================================
	var page struct {
		Amount      int64  `json:"amount"`
		AmountLabel string `json:"amount_label"`
		Status      string `json:"status"`
	}
	env.decode(env.request(http.MethodGet, "/v1/checkout/INV-2026-0001", "", nil), http.StatusOK, &page)
	assert.Equal(t, int64(150000), page.Amount)
	assert.Equal(t, "Rp 150.000", page.AmountLabel)
	assert.Equal(t, "UNPAID", page.Status)

	var receipt struct {
		AlreadyPaid bool   `json:"already_paid"`
		VANumber    string `json:"va_number"`
	}
	env.decode(env.request(http.MethodPost, "/v1/checkout/INV-2026-0001/pay", "", map[string]string{"method": "BCA_VA"}), http.StatusOK, &receipt)
	assert.False(t, receipt.AlreadyPaid)
	assert.Contains(t, receipt.VANumber, "8888-MOCK-BCA-")

	env.decode(env.request(http.MethodPost, "/v1/checkout/INV-2026-0001/pay", "", map[string]string{"method": "QRIS"}), http.StatusOK, &receipt)
	assert.True(t, receipt.AlreadyPaid)

	env.decode(env.request(http.MethodPost, "/v1/checkout/INV-2026-0001/pay", "", map[string]string{"method": "CASH"}), http.StatusBadRequest, nil)
	env.decode(env.request(http.MethodPost, "/v1/checkout/INV-2026-9999/pay", "", map[string]string{"method": "QRIS"}), http.StatusNotFound, nil)

	// ==========================================
	// Gateway callback
	// ==========================================
	env.decode(env.request(http.MethodPost, "/v1/payments/webhook", "", map[string]string{
		"invoice_id": "INV-2026-0002", "status": "PAID", "signature": "deadbeef",
	}), http.StatusUnauthorized, nil)

	var hook struct {
		Status  string `json:"status"`
		Changed bool   `json:"changed"`
	}
	env.decode(env.request(http.MethodPost, "/v1/payments/webhook", "", map[string]string{
		"invoice_id": "INV-2026-0002", "status": "PAID", "signature": sign("INV-2026-0002", "PAID"),
	}), http.StatusOK, &hook)
	assert.Equal(t, "ok", hook.Status)
	assert.True(t, hook.Changed)

	// ==========================================
	// Read side follows
	// ==========================================
	var summary struct {
		TotalCustomers   int   `json:"total_customers"`
		Revenue          int64 `json:"revenue"`
		OverdueCount     int   `json:"overdue_count"`
		IsolationTargets []struct {
			ID string `json:"id"`
		} `json:"isolation_targets"`
	}
	env.decode(env.request(http.MethodGet, "/v1/dashboard", tech, nil), http.StatusOK, &summary)
	assert.Equal(t, 2, summary.TotalCustomers)
	assert.Equal(t, int64(150000+150000+450000), summary.Revenue)
	assert.Equal(t, 1, summary.OverdueCount)
	assert.Empty(t, summary.IsolationTargets)

	var paid invoiceJSON
	env.decode(env.request(http.MethodGet, "/v1/invoices/INV-2026-0002", admin, nil), http.StatusOK, &paid)
	assert.Equal(t, "PAID", paid.Status)
	assert.Equal(t, int64(450000), paid.Amount)

	// Admin confirmation of a paid invoice changes nothing
	var confirm struct {
		Changed bool `json:"changed"`
	}
	env.decode(env.request(http.MethodPost, "/v1/invoices/INV-2026-0002/pay", admin, nil), http.StatusOK, &confirm)
	assert.False(t, confirm.Changed)
}

func TestGenerateReplaysWithCorrelationID(t *testing.T) {
	env := newTestEnv(t, memoryStores(), time.Date(2026, time.November, 1, 8, 0, 0, 0, wib))
	admin := env.login("admin", "admin123")

	first := env.request(http.MethodPost, "/v1/invoices/generate", admin, nil, "X-Correlation-ID", "gen-nov")
	var gen generateJSON
	env.decode(first, http.StatusCreated, &gen)
	assert.Equal(t, 2, gen.Count)

	second := env.request(http.MethodPost, "/v1/invoices/generate", admin, nil, "X-Correlation-ID", "gen-nov")
	assert.Equal(t, "true", second.Header.Get("X-Idempotent-Replay"))
	var replay generateJSON
	env.decode(second, http.StatusCreated, &replay)
	assert.Equal(t, 2, replay.Count)

	var all []invoiceJSON
	env.decode(env.request(http.MethodGet, "/v1/invoices?period=2026-11", admin, nil), http.StatusOK, &all)
	assert.Len(t, all, 2)
}

func TestNotificationsRecordedOnInvoice(t *testing.T) {
	env := newTestEnv(t, memoryStores(), time.Date(2026, time.October, 1, 8, 0, 0, 0, wib))
	admin := env.login("admin", "admin123")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.app.Worker.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	env.decode(env.request(http.MethodPost, "/v1/invoices/generate", admin, nil), http.StatusCreated, nil)

	require.Eventually(t, func() bool {
		var inv invoiceJSON
		env.decode(env.request(http.MethodGet, "/v1/invoices/INV-2026-0001", admin, nil), http.StatusOK, &inv)
		return len(inv.Notifications) == 1 && inv.Notifications[0].Type == "INVOICE"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestCustomerAndTemplateManagement(t *testing.T) {
	env := newTestEnv(t, memoryStores(), time.Date(2026, time.October, 1, 8, 0, 0, 0, wib))
	admin := env.login("admin", "admin123")

	env.decode(env.request(http.MethodPost, "/v1/customers", admin, map[string]interface{}{
		"name": "Siti", "username": "siti_home", "profile_name": "HOME-10MBPS", "billing_cycle_day": 0,
	}), http.StatusBadRequest, nil)

	var created struct {
		ID         string `json:"id"`
		MonthlyFee int64  `json:"monthly_fee"`
		Status     string `json:"status"`
	}
	env.decode(env.request(http.MethodPost, "/v1/customers", admin, map[string]interface{}{
		"name": "Siti Aminah", "username": "siti_home", "profile_name": "HOME-20MBPS",
		"billing_cycle_day": 31, "phone": "081234000111",
	}), http.StatusCreated, &created)
	assert.Equal(t, int64(250000), created.MonthlyFee)
	assert.Equal(t, "ACTIVE", created.Status)

	var toggled struct {
		Status string `json:"status"`
	}
	env.decode(env.request(http.MethodPost, "/v1/customers/"+created.ID+"/toggle-status", admin, nil), http.StatusOK, &toggled)
	assert.Equal(t, "SUSPENDED", toggled.Status)

	env.decode(env.request(http.MethodPut, "/v1/templates/invoice", admin, map[string]string{
		"content": "Hai {{nama}}, tagihan {{bulan}} Rp {{jumlah}}",
	}), http.StatusOK, nil)
	env.decode(env.request(http.MethodGet, "/v1/templates/unknown", admin, nil), http.StatusBadRequest, nil)

	var preview struct {
		Text string `json:"text"`
	}
	env.decode(env.request(http.MethodGet, "/v1/templates/invoice/preview?invoice_id=INV-2024-0002", admin, nil), http.StatusOK, &preview)
	assert.Equal(t, "Hai Rahmat Hidayat, tagihan Mei 2024 Rp 450.000", preview.Text)
}

func TestBillingCycleOnMongo(t *testing.T) {
	env := newTestEnv(t, setupMongoStores(t), time.Date(2026, time.October, 5, 9, 0, 0, 0, wib))
	admin := env.login("admin", "admin123")

	var gen generateJSON
	env.decode(env.request(http.MethodPost, "/v1/invoices/generate", admin, nil), http.StatusCreated, &gen)
	require.Equal(t, 2, gen.Count)

	env.decode(env.request(http.MethodPost, "/v1/invoices/INV-2026-0001/pay", admin, nil), http.StatusOK, nil)

	var inv invoiceJSON
	env.decode(env.request(http.MethodGet, "/v1/invoices/INV-2026-0001", admin, nil), http.StatusOK, &inv)
	assert.Equal(t, "PAID", inv.Status)
}
