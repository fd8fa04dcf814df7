package shared

import (
	"context"
	"slices"
)

type identityContextKey struct{}

// Identity is the authenticated caller attached to a request context.
// It is a value type: handlers receive a copy and cannot mutate the
// identity seen by other stages of the pipeline.
type Identity struct {
	UserID      int64
	Subject     string
	Authorities []string
}

// HasAuthority reports whether the identity holds any of the given authorities.
func (i Identity) HasAuthority(names ...string) bool {
	for _, name := range names {
		if slices.Contains(i.Authorities, name) {
			return true
		}
	}
	return false
}

// WithIdentity stores the identity in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	id.Authorities = slices.Clone(id.Authorities)
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context. The returned
// authorities are a copy.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok {
		return Identity{}, false
	}
	id.Authorities = slices.Clone(id.Authorities)
	return id, true
}
