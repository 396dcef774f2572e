package port

import (
	"context"

	"github.com/google/uuid"

	"firmdocs/internal/domain"
)

// RoleResolver maps an actor's role to its permission set.
type RoleResolver interface {
	Resolve(ctx context.Context, tenantID, actorID uuid.UUID, role string) (domain.PermissionSet, error)
}
