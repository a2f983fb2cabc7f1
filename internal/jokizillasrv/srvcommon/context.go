package srvcommon

import (
	"context"
	"slices"
)

type ctxKeyType string

const ctxPrincipalKey ctxKeyType = "JokizillaPrincipal"

// Principal is the caller identified by a validated bearer token.
type Principal struct {
	Subject string
	Roles   []string
}

// HasAnyRole reports whether the principal holds at least one of roles.
func (p *Principal) HasAnyRole(roles ...string) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

// GetPrincipal returns the authenticated caller or nil for anonymous requests.
func GetPrincipal(ctx context.Context) *Principal {
	p, _ := ctx.Value(ctxPrincipalKey).(*Principal)
	return p
}
