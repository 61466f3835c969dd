// Package identity works out who is behind a write request for audit purposes.
// Authentication is optional: failures degrade the audit name, they never
// reject the request.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// CookieName is the cookie carrying the session token.
const CookieName = "token"

// UnknownUser is the audit name used when no identity could be confirmed.
const UnknownUser = "unknown"

// ErrMissingUserID is returned for verified tokens without a numeric id claim.
var ErrMissingUserID = errors.New("identity: token has no user id")

// Kind tags the outcome of resolving a request.
type Kind int

const (
	Anonymous Kind = iota
	Invalid
	Authenticated
)

func (k Kind) String() string {
	switch k {
	case Anonymous:
		return "anonymous"
	case Invalid:
		return "invalid"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Result is the resolved identity. Err is set only for Invalid.
type Result struct {
	Kind   Kind
	UserID int64
	Name   string
	Err    error
}

// AuditName is the name recorded in audit entries and notifications.
func (r Result) AuditName() string {
	if r.Kind == Authenticated && r.Name != "" {
		return r.Name
	}
	return UnknownUser
}

// Directory maps user ids to display names.
type Directory interface {
	DisplayName(ctx context.Context, userID int64) (string, error)
}

// Resolver verifies HMAC signed tokens and looks up display names.
type Resolver struct {
	secret    []byte
	directory Directory
	logger    *zap.Logger
}

// NewResolver builds Resolver.
func NewResolver(secret string, directory Directory, logger *zap.Logger) *Resolver {
	return &Resolver{secret: []byte(secret), directory: directory, logger: logger}
}

// Resolve inspects the token cookie, then the Authorization header.
func (r *Resolver) Resolve(req *http.Request) Result {
	token := TokenFromRequest(req)
	if token == "" {
		r.logger.Info("no authentication token provided")
		return Result{Kind: Anonymous}
	}

	userID, err := r.Verify(token)
	if err != nil {
		r.logger.Warn("invalid authentication token", zap.Error(err))
		return Result{Kind: Invalid, Err: err}
	}

	name := fmt.Sprintf("ID:%d", userID)
	if r.directory != nil {
		displayName, err := r.directory.DisplayName(req.Context(), userID)
		switch {
		case err == nil && displayName != "":
			name = displayName
		case err != nil:
			r.logger.Warn("user lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	r.logger.Info("user authenticated", zap.Int64("user_id", userID), zap.String("user", name))
	return Result{Kind: Authenticated, UserID: userID, Name: name}
}

// TokenFromRequest returns the cookie token or, failing that, a Bearer token.
func TokenFromRequest(req *http.Request) string {
	if cookie, err := req.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	parts := strings.SplitN(req.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Verify checks the signature and expiry and returns the user id claim.
func (r *Resolver) Verify(tokenStr string) (int64, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return r.secret, nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, jwt.ErrTokenInvalidClaims
	}
	return extractUserID(claims)
}

func extractUserID(claims jwt.MapClaims) (int64, error) {
	for _, key := range []string{"id", "user_id"} {
		switch v := claims[key].(type) {
		case float64:
			if v != 0 {
				return int64(v), nil
			}
		case json.Number:
			if id, err := v.Int64(); err == nil && id != 0 {
				return id, nil
			}
		case string:
			if id, err := strconv.ParseInt(v, 10, 64); err == nil && id != 0 {
				return id, nil
			}
		}
	}
	return 0, ErrMissingUserID
}
