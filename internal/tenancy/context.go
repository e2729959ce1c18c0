// Package tenancy carries the provider scope of a request through context.
// Every schedule read and booking write is scoped to exactly one provider.
package tenancy

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const providerKey ctxKey = "wellfront.provider_id"

// WithProviderID stores the provider id in context.
func WithProviderID(ctx context.Context, providerID uuid.UUID) context.Context {
	return context.WithValue(ctx, providerKey, providerID)
}

// ProviderIDFromContext extracts the provider id if present.
func ProviderIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(providerKey)
	if val == nil {
		return uuid.Nil, false
	}
	providerID, ok := val.(uuid.UUID)
	return providerID, ok && providerID != uuid.Nil
}
