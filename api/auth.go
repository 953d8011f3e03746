// Package api exposes the node's HTTP surface: a handful of read-only
// views over World's engines plus a JSON-over-HTTP front door onto the
// dispatcher for signed and root-only calls. The JWT bearer-token
// authenticator is adapted from the teacher repo's
// gateway/middleware.Authenticator: HMAC-verified claims map to a scope
// set, and here that scope set maps onto a dispatcher.Origin instead of
// a list of allowed route prefixes.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/btc-parachain/core/internal/dispatcher"
)

// AuthConfig configures the bearer-token authenticator.
type AuthConfig struct {
	Enabled    bool
	HMACSecret string
	Issuer     string
	ClockSkew  time.Duration
}

type contextKey string

// ContextKeyOrigin is the request-context key the authenticator stores
// the resolved dispatcher.Origin under.
const ContextKeyOrigin contextKey = "api.origin"

// ContextKeySubject is the request-context key for the token's subject
// claim, used as the calling account for signed methods.
const ContextKeySubject contextKey = "api.subject"

// Authenticator verifies bearer tokens and resolves their scope claim to
// a dispatcher.Origin.
type Authenticator struct {
	cfg    AuthConfig
	log    *slog.Logger
	secret []byte
	once   sync.Once
}

// NewAuthenticator builds an Authenticator from cfg.
func NewAuthenticator(cfg AuthConfig, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	a := &Authenticator{cfg: cfg, log: log}
	a.once.Do(func() {
		a.secret = []byte(strings.TrimSpace(cfg.HMACSecret))
		if a.cfg.ClockSkew <= 0 {
			a.cfg.ClockSkew = 2 * time.Minute
		}
	})
	return a
}

// Middleware authenticates every request and stores the resolved origin
// and subject in its context. Handlers that need a privileged origin
// check OriginFromContext themselves; Middleware never rejects based on
// scope, only on an invalid or missing token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			ctx := context.WithValue(r.Context(), ContextKeyOrigin, dispatcher.OriginSigned)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := a.parseToken(tokenString)
		if err != nil {
			a.log.Warn("api: token validation failed", "err", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if a.cfg.Issuer != "" {
			if iss, ok := claims["iss"].(string); !ok || iss != a.cfg.Issuer {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		}
		origin := originFromScope(claims["scope"])
		subject, _ := claims["sub"].(string)
		ctx := context.WithValue(r.Context(), ContextKeyOrigin, origin)
		ctx = context.WithValue(ctx, ContextKeySubject, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) parseToken(tokenString string) (jwt.MapClaims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("api: auth secret not configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(a.cfg.ClockSkew))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("api: invalid claims")
	}
	return claims, nil
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// originFromScope maps a "scope" claim value to a dispatcher.Origin.
// Tokens scoped "root" or "fast-track" unlock the matching privilege;
// anything else is treated as an ordinary signed caller.
func originFromScope(raw interface{}) dispatcher.Origin {
	scope, _ := raw.(string)
	switch scope {
	case "root":
		return dispatcher.OriginRoot
	case "fast-track":
		return dispatcher.OriginFastTrack
	default:
		return dispatcher.OriginSigned
	}
}

// OriginFromContext extracts the Origin a Middleware-wrapped handler
// should dispatch under.
func OriginFromContext(ctx context.Context) dispatcher.Origin {
	if o, ok := ctx.Value(ContextKeyOrigin).(dispatcher.Origin); ok {
		return o
	}
	return dispatcher.OriginSigned
}
