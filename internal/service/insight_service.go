package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/infrastructure/openrouter"
	"github.com/phbiling/isp-billing/internal/logger"
	"go.uber.org/zap"
)

const (
	healthReportFallback = "Gagal melakukan analisis AI saat ini."
	healthReportLogs     = 5
)

// HealthReport is the AI summary of system health and revenue risk
type HealthReport struct {
	Date      string `json:"date"`
	Report    string `json:"report"`
	Generated bool   `json:"generated"`
}

// InsightService produces AI-written reports from the dashboard summary
type InsightService struct {
	dashboard *DashboardService
	ai        TextCompleter
}

// NewInsightService creates a new InsightService. ai may be nil.
func NewInsightService(dashboard *DashboardService, ai TextCompleter) *InsightService {
	return &InsightService{dashboard: dashboard, ai: ai}
}

// HealthReport summarises recent logs and billing stats in Indonesian
func (s *InsightService) HealthReport(ctx context.Context) (*HealthReport, error) {
	summary, err := s.dashboard.Summary(ctx)
	if err != nil {
		return nil, err
	}
	out := &HealthReport{Date: summary.Date, Report: healthReportFallback}
	if s.ai == nil || !s.ai.Enabled() {
		return out, nil
	}

	logs := summary.RecentLogs
	if len(logs) > healthReportLogs {
		logs = logs[:healthReportLogs]
	}
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return nil, errors.Wrap(err, "marshal logs")
	}
	statsJSON, err := json.Marshal(map[string]interface{}{
		"total_customers":   summary.TotalCustomers,
		"active_customers":  summary.ActiveCustomers,
		"revenue":           summary.Revenue,
		"unpaid_invoices":   summary.UnpaidCount,
		"overdue_invoices":  summary.OverdueCount,
		"outstanding":       summary.Outstanding,
		"isolation_targets": len(summary.IsolationTargets),
		"routers_online":    fmt.Sprintf("%d/%d", summary.RoutersOnline, summary.RoutersTotal),
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal stats")
	}

	prompt := fmt.Sprintf("Analyze this ISP system data and provide a short summary of health and revenue risks.\n\n"+
		"Logs: %s\nStats: %s\n\nGive me a concise report in Indonesian.", logsJSON, statsJSON)

	text, err := s.ai.Complete(ctx, 0.7, openrouter.Message{Role: "user", Content: prompt})
	if err != nil || text == "" {
		logger.FromContext(ctx).Warn("health report failed", zap.Error(err))
		return out, nil
	}
	out.Report = text
	out.Generated = true
	return out, nil
}
