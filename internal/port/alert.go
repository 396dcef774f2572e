package port

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Alert describes a failure that must reach an operator.
type Alert struct {
	Kind       string
	TenantID   uuid.UUID
	Operation  string
	EntityID   string
	Detail     string
	RequestID  string
	OccurredAt time.Time
}

// Alerter delivers operator alerts for invariant violations and audit outages.
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}
