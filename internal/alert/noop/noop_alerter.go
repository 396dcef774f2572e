package noop

import (
	"context"
	"log/slog"

	"firmdocs/internal/port"
)

type noopAlerter struct {
	logger *slog.Logger
}

// NewNoopAlerter creates an Alerter that only logs alerts.
func NewNoopAlerter(logger *slog.Logger) port.Alerter {
	return &noopAlerter{logger: logger}
}

func (a *noopAlerter) Send(_ context.Context, alert port.Alert) error {
	a.logger.Error("[NOOP ALERT] "+alert.Kind,
		"operation", alert.Operation,
		"tenant_id", alert.TenantID,
		"entity_id", alert.EntityID,
		"request_id", alert.RequestID,
		"detail", alert.Detail)
	return nil
}
