package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	invoiceIDPrefix = "INV"
	periodKeyLayout = "2006-01"
)

var rupiahPrinter = message.NewPrinter(language.Indonesian)

var indonesianMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// DateOf truncates t to midnight in its own location
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysIn returns the number of days in the given month
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// EffectiveDueDay clamps a billing cycle day to the length of the month,
// so day 31 falls on the 30th in April and on the 28th/29th in February.
func EffectiveDueDay(cycleDay, year int, month time.Month) int {
	last := DaysIn(year, month)
	if cycleDay > last {
		return last
	}
	if cycleDay < 1 {
		return 1
	}
	return cycleDay
}

// DueDate computes the due date for a billing cycle day in the given month.
// Days past the end of the month clamp to the last day; they never roll over.
func DueDate(year int, month time.Month, cycleDay int, loc *time.Location) time.Time {
	return time.Date(year, month, EffectiveDueDay(cycleDay, year, month), 0, 0, 0, 0, loc)
}

// PeriodKey returns the machine key of the billing period containing t ("2026-02")
func PeriodKey(t time.Time) string {
	return t.Format(periodKeyLayout)
}

// PeriodLabel returns the human label of the billing period ("Februari 2026")
func PeriodLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", indonesianMonths[t.Month()-1], t.Year())
}

// FormatInvoiceID builds "INV-<year>-<seq>" with at least four digits
func FormatInvoiceID(year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", invoiceIDPrefix, year, seq)
}

// ParseInvoiceID extracts year and sequence from an id built by FormatInvoiceID
func ParseInvoiceID(id string) (year int, seq int64, ok bool) {
	parts := strings.Split(id, "-")
	if len(parts) != 3 || parts[0] != invoiceIDPrefix {
		return 0, 0, false
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	s, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || s < 0 {
		return 0, 0, false
	}
	return y, s, true
}

// FormatRupiah renders a whole-rupiah amount with Indonesian digit grouping ("150.000")
func FormatRupiah(amount int64) string {
	return rupiahPrinter.Sprintf("%d", amount)
}

// FormatDate renders a date the way invoices print it ("05 Mei 2024")
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%02d %s %d", t.Day(), indonesianMonths[t.Month()-1], t.Year())
}
