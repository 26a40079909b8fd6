package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/bfyxzls/webSecurity/internal/auth"
	"github.com/bfyxzls/webSecurity/internal/observability"
	"github.com/bfyxzls/webSecurity/internal/token"
	"github.com/bfyxzls/webSecurity/utils"
)

// TokenValidator validates bearer tokens. *token.Issuer implements it.
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

// AuthMiddleware resolves the caller from a bearer token and enforces
// authorization requirements.
type AuthMiddleware struct {
	validator  TokenValidator
	store      auth.CredentialStore
	authorizer *auth.Authorizer
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. metrics may be nil.
func NewAuthMiddleware(
	validator TokenValidator,
	store auth.CredentialStore,
	authorizer *auth.Authorizer,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AuthMiddleware {
	return &AuthMiddleware{
		validator:  validator,
		store:      store,
		authorizer: authorizer,
		metrics:    metrics,
		logger:     logger,
	}
}

// RequireAuth is a middleware that requires a valid bearer token whose
// subject still resolves to an active account. The principal is read from the
// credential store on every request and stored in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		tokenString := extractBearerToken(r)
		if tokenString == "" {
			m.logger.Debug("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteBearerUnauthorized(w, "", "Missing or invalid authorization")
			return
		}

		claims, err := m.validator.Validate(tokenString)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			message := "Invalid token"
			if errors.Is(err, token.ErrTokenExpired) {
				message = "Token expired"
			}
			_ = utils.WriteBearerUnauthorized(w, utils.BearerInvalidToken, message)
			return
		}

		p, err := m.store.Lookup(ctx, claims.Subject)
		switch {
		case errors.Is(err, auth.ErrNotFound):
			m.logger.Warn("token subject no longer exists",
				zap.String("request_id", requestID),
				zap.String("username", claims.Subject))
			_ = utils.WriteBearerUnauthorized(w, utils.BearerInvalidToken, "Invalid token")
			return
		case err != nil || p == nil:
			m.logger.Error("failed to resolve token subject",
				zap.String("request_id", requestID),
				zap.String("username", claims.Subject),
				zap.Error(err))
			_ = utils.WriteInternalServerError(w, "An internal error occurred")
			return
		case p.Locked() || !p.Enabled():
			m.logger.Warn("token subject is inactive",
				zap.String("request_id", requestID),
				zap.String("username", claims.Subject),
				zap.Bool("locked", p.Locked()),
				zap.Bool("enabled", p.Enabled()))
			_ = utils.WriteBearerUnauthorized(w, utils.BearerInvalidToken, "Account is inactive")
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("username", p.ID()))

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, p)))
	})
}

// Authorize is a middleware that requires the principal in context to
// satisfy req. It must run after RequireAuth.
func (m *AuthMiddleware) Authorize(req auth.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			p := GetPrincipalFromContext(ctx)
			if p == nil {
				m.logger.Error("principal not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteBearerUnauthorized(w, "", "Authentication required")
				return
			}

			decision := m.authorizer.Authorize(p, req)
			m.metrics.RecordAuthorization(ctx, decision.String(), req.String())

			if decision != auth.Permit {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("username", p.ID()),
					zap.String("requirement", req.String()))
				_ = utils.WriteInsufficientScope(w, req.String(), "Insufficient permissions")
				return
			}

			m.logger.Debug("authorization granted",
				zap.String("request_id", requestID),
				zap.String("username", p.ID()),
				zap.String("requirement", req.String()))

			next.ServeHTTP(w, r)
		})
	}
}

// Enforce returns the middleware chain for a parsed policy.
func (m *AuthMiddleware) Enforce(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		switch {
		case policy.PermitAll:
			return next
		case policy.Requirement == nil:
			return m.RequireAuth(next)
		default:
			return m.RequireAuth(m.Authorize(policy.Requirement)(next))
		}
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
