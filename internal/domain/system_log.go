package domain

import (
	"context"
	"time"
)

// Log levels
const (
	LogLevelInfo    = "INFO"
	LogLevelWarning = "WARNING"
	LogLevelError   = "ERROR"
)

// SystemLog is an operator-facing activity entry shown on the dashboard
type SystemLog struct {
	ID        string    `bson:"_id" json:"id"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Level     string    `bson:"level" json:"level"`
	Module    string    `bson:"module" json:"module"`
	Message   string    `bson:"message" json:"message"`
}

// SystemLogRepository stores activity entries, newest first on read
type SystemLogRepository interface {
	Append(ctx context.Context, entry *SystemLog) error
	ListRecent(ctx context.Context, limit int) ([]*SystemLog, error)
}
