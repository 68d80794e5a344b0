package repository

import (
	"context"
	"errors"

	"mediagateway/internal/model"
)

// PolicyResolver resolves logical record IDs to storage keys and categories to their
// size/type limits. It is read-only from the gateway's point of view.
type PolicyResolver interface {
	// Resolve returns the record behind recordID or ErrRecordNotFound.
	Resolve(ctx context.Context, recordID string) (*model.MediaRecord, error)

	// GetLimits returns the current policy for a category or ErrPolicyNotFound.
	GetLimits(ctx context.Context, category model.Category) (*model.CategoryPolicy, error)
}

type defaultsResolver struct {
	PolicyResolver
	defaults map[model.Category]*model.CategoryPolicy
}

// WithDefaults wraps next so that categories without a stored policy fall back to
// the given defaults.
func WithDefaults(next PolicyResolver, defaults map[model.Category]*model.CategoryPolicy) PolicyResolver {
	return &defaultsResolver{PolicyResolver: next, defaults: defaults}
}

func (r *defaultsResolver) GetLimits(ctx context.Context, category model.Category) (*model.CategoryPolicy, error) {
	p, err := r.PolicyResolver.GetLimits(ctx, category)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, ErrPolicyNotFound) {
		if def, ok := r.defaults[category]; ok {
			return def, nil
		}
	}
	return nil, err
}
