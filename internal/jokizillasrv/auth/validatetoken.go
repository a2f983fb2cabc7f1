package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jokizilla/jokizilla/internal/common/apperrors"
	"github.com/jokizilla/jokizilla/internal/common/httpclient"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/srvcommon"
	"github.com/rs/zerolog/log"
)

var (
	hmacMethods       = []string{"HS256", "HS384", "HS512"}
	publicKeyMethods  = []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512", "ES256", "ES384", "ES512"}
	discoveryTimeout  = 10 * time.Second
	errNoVerification = errors.New("no verification key configured for this signing method")
)

// Validator verifies bearer tokens and extracts the caller's roles.
type Validator struct {
	cfg        config.AuthConfig
	signingKey []byte
	keys       *keySet
	methods    []string
}

// NewValidator builds a validator for cfg. With an authority, public-key tokens are checked
// against its key set; with a signing key, HMAC tokens are checked against it.
func NewValidator(cfg config.AuthConfig, client *httpclient.HTTPClient) *Validator {
	v := &Validator{cfg: cfg}
	if cfg.SigningKey != "" {
		v.signingKey = []byte(cfg.SigningKey)
		v.methods = append(v.methods, hmacMethods...)
	}
	if cfg.Authority != "" {
		if client == nil {
			client = httpclient.NewClient(discoveryTimeout)
		}
		v.keys = newKeySet(cfg.Authority, client)
		v.methods = append(v.methods, publicKeyMethods...)
	}
	return v
}

// Close releases the background refresh of the authority's key set.
func (v *Validator) Close() {
	if v.keys != nil {
		v.keys.Close()
	}
}

// Validate parses token and returns the principal it identifies.
func (v *Validator) Validate(ctx context.Context, token string) (*srvcommon.Principal, apperrors.Error) {
	if token == "" {
		return nil, ErrInvalidToken.Msg("empty token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.GetClockSkew()),
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}
	if v.cfg.Authority != "" && v.signingKey == nil {
		opts = append(opts, jwt.WithIssuer(v.cfg.Authority))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if v.signingKey == nil {
				return nil, errNoVerification
			}
			return v.signingKey, nil
		case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS, *jwt.SigningMethodECDSA:
			if v.keys == nil {
				return nil, errNoVerification
			}
			kf, err := v.keys.Keyfunc(ctx)
			if err != nil {
				return nil, err
			}
			return kf(t)
		}
		return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
	}, opts...)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("failed to validate token")
		return nil, ErrUnableToParseToken.Err(err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	sub, _ := claims.GetSubject()
	return &srvcommon.Principal{
		Subject: sub,
		Roles:   rolesFromClaim(claims[v.cfg.RoleClaim]),
	}, nil
}

// rolesFromClaim accepts a single role name or an array of role names.
func rolesFromClaim(c any) []string {
	switch r := c.(type) {
	case string:
		if r == "" {
			return nil
		}
		return []string{r}
	case []any:
		roles := make([]string, 0, len(r))
		for _, item := range r {
			if s, ok := item.(string); ok && s != "" {
				roles = append(roles, s)
			}
		}
		return roles
	}
	return nil
}
