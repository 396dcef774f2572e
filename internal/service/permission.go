package service

import "firmdocs/internal/domain"

// PermissionEvaluator decides whether an actor may perform an operation.
// Implementations are pure: no I/O, no side effects, safe for concurrent use.
type PermissionEvaluator interface {
	Evaluate(actor *domain.Actor, required string) bool
}

type permissionEvaluator struct{}

// NewPermissionEvaluator returns the evaluator used by the pipeline.
func NewPermissionEvaluator() PermissionEvaluator {
	return permissionEvaluator{}
}

func (permissionEvaluator) Evaluate(actor *domain.Actor, required string) bool {
	if actor == nil {
		return false
	}
	for _, p := range actor.Permissions {
		switch p := p.(type) {
		case domain.All:
			return true
		case domain.Specific:
			if string(p) == required {
				return true
			}
		}
	}
	return false
}
