package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"demandline/internal/domain"
)

const actorHeader = "X-Actor-Id"

// AuthConfig controls how the acting user is identified. There are no
// credentials: logging in only selects a user of the session's roster.
type AuthConfig struct {
	// JWTSecret signs login tokens. A random secret is used when empty.
	JWTSecret string
	// AllowActorHeader accepts X-Actor-Id in place of a token.
	AllowActorHeader bool
	TokenTTL         time.Duration
}

func (c AuthConfig) withDefaults() (AuthConfig, error) {
	if strings.TrimSpace(c.JWTSecret) == "" {
		c.JWTSecret = uuid.NewString()
	}
	if c.TokenTTL < 0 {
		return c, errors.New("token ttl must not be negative")
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 12 * time.Hour
	}
	return c, nil
}

type Principal struct {
	UserID domain.UserID
	// SessionID is set for tokens; a header principal is valid in any session.
	SessionID string
	Source    string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// actorFor returns the acting user for a request against session sid.
func actorFor(ctx context.Context, sid string) (domain.UserID, huma.StatusError) {
	p, ok := principalFromContext(ctx)
	if !ok || p.UserID == "" {
		return "", newAPIError(http.StatusUnauthorized, "unauthorized", "log in to the session or send "+actorHeader, nil)
	}
	if p.SessionID != "" && p.SessionID != sid {
		return "", newAPIError(http.StatusForbidden, "forbidden", "token was issued for another session", map[string]any{"session_id": p.SessionID})
	}
	return p.UserID, nil
}

type jwtClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

func signToken(cfg AuthConfig, user domain.UserID, sid string, now time.Time) (string, time.Time, error) {
	expires := now.Add(cfg.TokenTTL)
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    "demandline",
		},
		SessionID: sid,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	return token, expires, err
}

func authenticateJWT(token string, secret string) (Principal, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return Principal{}, errors.New("subject and sid claims required")
	}
	return Principal{
		UserID:    domain.UserID(claims.Subject),
		SessionID: claims.SessionID,
		Source:    "jwt",
	}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware attaches a Principal when the request names one.
// Handlers that need an actor reject requests without it.
func newAuthMiddleware(basePath string, cfg AuthConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			actor := strings.TrimSpace(req.Header.Get(actorHeader))

			if authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				principal, err := authenticateJWT(token, cfg.JWTSecret)
				if err != nil {
					logger.Debug().Err(err).Msg("token rejected")
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
				return
			}

			if actor != "" {
				if !cfg.AllowActorHeader {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", actorHeader+" is disabled; log in instead", nil))
					return
				}
				ctx := withPrincipal(req.Context(), Principal{UserID: domain.UserID(actor), Source: "header"})
				next.ServeHTTP(w, req.WithContext(ctx))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
