package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jokizilla/jokizilla/internal/common/httpclient"
	"github.com/rs/zerolog/log"
)

type discoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// keySet resolves the signing keys published by an authority. The jwks_uri is looked up
// through OpenID discovery on first use; from then on keyfunc keeps the set fresh in the
// background and refetches it, rate limited, when a token names an unknown key id.
type keySet struct {
	authority string
	client    *httpclient.HTTPClient

	// refreshCtx bounds the background refresh, which outlives any single request.
	refreshCtx context.Context
	cancel     context.CancelFunc

	mu sync.RWMutex
	kf keyfunc.Keyfunc
}

func newKeySet(authority string, client *httpclient.HTTPClient) *keySet {
	ctx, cancel := context.WithCancel(context.Background())
	return &keySet{
		authority:  strings.TrimSuffix(authority, "/"),
		client:     client,
		refreshCtx: ctx,
		cancel:     cancel,
	}
}

// Keyfunc returns the jwt.Keyfunc of the authority's key set. A failed discovery is
// retried on the next call.
func (ks *keySet) Keyfunc(ctx context.Context) (jwt.Keyfunc, error) {
	ks.mu.RLock()
	kf := ks.kf
	ks.mu.RUnlock()
	if kf != nil {
		return kf.Keyfunc, nil
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.kf != nil {
		return ks.kf.Keyfunc, nil
	}
	var doc discoveryDocument
	if err := ks.client.GetJSON(ctx, ks.authority+"/.well-known/openid-configuration", &doc); err != nil {
		return nil, fmt.Errorf("openid discovery failed: %w", err)
	}
	if doc.JWKSURI == "" {
		return nil, fmt.Errorf("openid discovery document of %s has no jwks_uri", ks.authority)
	}
	kf, err := keyfunc.NewDefaultCtx(ks.refreshCtx, []string{doc.JWKSURI})
	if err != nil {
		return nil, fmt.Errorf("loading key set failed: %w", err)
	}
	ks.kf = kf
	log.Ctx(ctx).Info().Str("authority", ks.authority).Str("jwks_uri", doc.JWKSURI).Msg("loaded signing keys")
	return kf.Keyfunc, nil
}

// Close stops the background refresh.
func (ks *keySet) Close() {
	ks.cancel()
}
