package service

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/logger"
	"go.uber.org/zap"
)

// ActivityLog writes operator-facing system log entries and mirrors them to zap.
// Failures to persist are logged and swallowed; activity logging never fails an operation.
type ActivityLog struct {
	repo  domain.SystemLogRepository
	clock clock.Clock
}

// NewActivityLog creates a new ActivityLog. A nil repo only logs.
func NewActivityLog(repo domain.SystemLogRepository, clk clock.Clock) *ActivityLog {
	return &ActivityLog{repo: repo, clock: clk}
}

func (a *ActivityLog) Info(ctx context.Context, module, format string, args ...interface{}) {
	a.record(ctx, domain.LogLevelInfo, module, fmt.Sprintf(format, args...))
}

func (a *ActivityLog) Warn(ctx context.Context, module, format string, args ...interface{}) {
	a.record(ctx, domain.LogLevelWarning, module, fmt.Sprintf(format, args...))
}

func (a *ActivityLog) Error(ctx context.Context, module, format string, args ...interface{}) {
	a.record(ctx, domain.LogLevelError, module, fmt.Sprintf(format, args...))
}

func (a *ActivityLog) record(ctx context.Context, level, module, msg string) {
	if a == nil {
		return
	}
	log := logger.FromContext(ctx).With(zap.String("module", module))
	switch level {
	case domain.LogLevelError:
		log.Error(msg)
	case domain.LogLevelWarning:
		log.Warn(msg)
	default:
		log.Info(msg)
	}

	if a.repo == nil {
		return
	}
	entry := &domain.SystemLog{
		ID:        ulid.Make().String(),
		Timestamp: a.clock.Now(),
		Level:     level,
		Module:    module,
		Message:   msg,
	}
	if err := a.repo.Append(ctx, entry); err != nil {
		log.Warn("failed to persist system log", zap.Error(err))
	}
}
