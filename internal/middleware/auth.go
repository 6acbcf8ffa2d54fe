package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/PEED-Project/peed_backend/internal/app/auth"
	"github.com/PEED-Project/peed_backend/pkg/logger"
)

type claimsKey struct{}

// ClaimsFrom returns the verified token claims of the request, or nil.
func ClaimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

// AuthMiddleware verifies bearer tokens. Verified claims are attached to the
// request context; enforcement happens per route through RequireOwner and
// Authorize, and only when required is set.
type AuthMiddleware struct {
	tokens   *auth.Tokens
	required bool
	logger   *logger.Logger
}

// NewAuthMiddleware creates an authentication middleware.
func NewAuthMiddleware(tokens *auth.Tokens, required bool, log *logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, required: required, logger: log}
}

// Handler returns the middleware handler. Requests without a token, or with
// an invalid one, pass through without claims.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || m.tokens == nil {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.tokens.Parse(token)
		if err != nil {
			m.logger.WithError(err).
				WithField("trace_id", TraceID(r.Context())).
				Debug("token rejected")
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// Authorize checks that the caller owns userID. It returns 0 when the request
// may proceed, otherwise 401 or 403.
func (m *AuthMiddleware) Authorize(r *http.Request, userID int64) int {
	if !m.required {
		return 0
	}
	claims := ClaimsFrom(r.Context())
	if claims == nil {
		return http.StatusUnauthorized
	}
	if claims.UserID != userID {
		return http.StatusForbidden
	}
	return 0
}

// RequireOwner guards a route whose path variable param holds a user id.
func (m *AuthMiddleware) RequireOwner(param string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.required {
			next(w, r)
			return
		}
		userID, err := strconv.ParseInt(mux.Vars(r)[param], 10, 64)
		if err != nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		switch m.Authorize(r, userID) {
		case http.StatusUnauthorized:
			writeError(w, http.StatusUnauthorized, "Authentication required")
		case http.StatusForbidden:
			writeError(w, http.StatusForbidden, "Forbidden")
		default:
			next(w, r)
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
