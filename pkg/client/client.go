package client

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/simple-verification/pkg/common"
	apperrors "github.com/tendant/simple-verification/pkg/errors"
)

const ACCESS_TOKEN_NAME = "access_token"

// AuthUser is the caller decoded from a verified bearer token
type AuthUser struct {
	Subject string
	Roles   []string
}

func (u AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("subject", u.Subject),
		slog.Any("roles", u.Roles),
	)
}

// HasAnyRole reports whether the user holds at least one of roles
func (u AuthUser) HasAnyRole(roles ...string) bool {
	for _, have := range u.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "verification context value " + k.name
}

var AuthUserKey = &contextKey{"AuthUser"}

var (
	errUnauthorized = apperrors.Unauthorized("missing or invalid token")
	errForbidden    = apperrors.Forbidden("insufficient permissions")
)

// Verifier looks for a token in the Authorization header, then the access_token cookie
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// AuthUserMiddleware turns the claims left by Verifier into an AuthUser.
// Requests without a valid token are rejected with 401.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			slog.Debug("Rejected unauthenticated request", "path", r.URL.Path, "error", err)
			common.RenderError(w, r, errUnauthorized)
			return
		}

		user := userFromClaims(claims)
		if user.Subject == "" {
			common.RenderError(w, r, errUnauthorized.WithDetail("reason", "missing subject"))
			return
		}

		ctx := context.WithValue(r.Context(), AuthUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userFromClaims reads sub plus roles, either top-level or under extra_claims
func userFromClaims(claims map[string]interface{}) AuthUser {
	var user AuthUser
	user.Subject, _ = claims["sub"].(string)

	user.Roles = stringSlice(claims["roles"])
	if extra, ok := claims["extra_claims"].(map[string]interface{}); ok {
		user.Roles = append(user.Roles, stringSlice(extra["roles"])...)
	}
	return user
}

func stringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, val := range vals {
			if s, ok := val.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{vals}
	}
	return nil
}

// GetAuthUser returns the user stored by AuthUserMiddleware
func GetAuthUser(ctx context.Context) (AuthUser, bool) {
	user, ok := ctx.Value(AuthUserKey).(AuthUser)
	return user, ok
}

// RequireRole rejects callers holding none of roles with 403.
// Must run after AuthUserMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetAuthUser(r.Context())
			if !ok {
				common.RenderError(w, r, errUnauthorized)
				return
			}

			if !user.HasAnyRole(roles...) {
				slog.Warn("User lacks required role",
					"subject", user.Subject,
					"roles", user.Roles,
					"requiredRoles", roles)
				common.RenderError(w, r, errForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly chains the verifier, the auth user extraction and the role check
func AdminOnly(ja *jwtauth.JWTAuth, roles ...string) func(http.Handler) http.Handler {
	if len(roles) == 0 {
		roles = []string{"admin"}
	}
	return func(next http.Handler) http.Handler {
		return Verifier(ja)(AuthUserMiddleware(RequireRole(roles...)(next)))
	}
}
