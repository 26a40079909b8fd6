package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bfyxzls/webSecurity/internal/auth"
	"github.com/bfyxzls/webSecurity/internal/observability"
	"github.com/bfyxzls/webSecurity/middleware"
	"github.com/bfyxzls/webSecurity/models"
	"github.com/bfyxzls/webSecurity/services"
	"github.com/bfyxzls/webSecurity/services/audit"
	"github.com/bfyxzls/webSecurity/utils"
)

// Authenticator verifies a username/password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, credential string) auth.Result
}

// TokenIssuer issues bearer tokens for authenticated principals.
type TokenIssuer interface {
	Issue(subject string) (string, time.Time, error)
}

// AuditRecorder queues login events.
type AuditRecorder interface {
	Record(event *models.AuthEvent) error
}

// LoginConfig controls how login outcomes are presented.
type LoginConfig struct {
	SuccessURL          string
	FailureURL          string
	ExposeAccountStatus bool
	Timeout             time.Duration
}

// LoginRequest is the form accepted by the login endpoint.
type LoginRequest struct {
	Username string `validate:"required,max=255"`
	Password string
	Redirect bool
}

// LoginResponse is returned on successful JSON logins.
type LoginResponse struct {
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	ExpiresAt time.Time       `json:"expires_at"`
	Target    string          `json:"target"`
	Principal *auth.Principal `json:"principal"`
}

// AuthHandler handles login and the current-principal endpoint.
type AuthHandler struct {
	authenticator Authenticator
	issuer        TokenIssuer
	audit         AuditRecorder
	metrics       *observability.Metrics
	cfg           LoginConfig
	logger        *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. audit and metrics may be nil.
func NewAuthHandler(
	authenticator Authenticator,
	issuer TokenIssuer,
	audit AuditRecorder,
	metrics *observability.Metrics,
	cfg LoginConfig,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		issuer:        issuer,
		audit:         audit,
		metrics:       metrics,
		cfg:           cfg,
		logger:        logger,
	}
}

// HandleLogin handles GET and POST /login.
// username and password are read from the query string or a form body.
// With redirect=true the outcome is a 302 to the success or failure target.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	req, err := parseLoginRequest(r)
	if err != nil {
		h.logger.Debug("invalid login request",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	ctx := r.Context()
	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	result := h.authenticator.Authenticate(ctx, req.Username, req.Password)
	h.metrics.RecordAuthentication(r.Context(), result.Outcome())
	h.recordAudit(r, requestID, req.Username, result)

	if !result.IsAuthenticated() {
		h.handleFailure(w, r, requestID, req, result)
		return
	}

	p := result.Principal()
	signed, expiresAt, err := h.issuer.Issue(p.ID())
	if err != nil {
		HandleServiceError(w, services.WrapInternal("issue token", err), h.logger)
		return
	}

	h.logger.Info("login succeeded",
		zap.String("request_id", requestID),
		zap.String("username", p.ID()))

	if req.Redirect {
		http.Redirect(w, r, h.cfg.SuccessURL, http.StatusFound)
		return
	}

	if err := utils.WriteOK(w, LoginResponse{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		Target:    h.cfg.SuccessURL,
		Principal: p,
	}); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}

func (h *AuthHandler) handleFailure(w http.ResponseWriter, r *http.Request, requestID string, req LoginRequest, result auth.Result) {
	if result.Reason() == auth.ServiceError {
		h.logger.Error("authentication service error",
			zap.String("request_id", requestID),
			zap.String("username", req.Username),
			zap.Error(result.Cause()))
		HandleServiceError(w, services.AuthenticationError(result), h.logger)
		return
	}

	h.logger.Info("login failed",
		zap.String("request_id", requestID),
		zap.String("username", req.Username),
		zap.String("reason", string(result.Reason())))

	if req.Redirect {
		http.Redirect(w, r, h.cfg.FailureURL, http.StatusFound)
		return
	}

	err := services.AuthenticationError(result)
	if !h.cfg.ExposeAccountStatus {
		err = services.NewDomainError(services.ErrorTypeUnauthorized, services.ErrInvalidCredentials.Message, nil)
	}
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		domainErr.WithDetail("target", h.cfg.FailureURL)
	}
	HandleServiceError(w, err, h.logger)
}

func (h *AuthHandler) recordAudit(r *http.Request, requestID, username string, result auth.Result) {
	if h.audit == nil {
		return
	}
	event := models.NewAuthEvent(username, result).WithRequest(requestID, r.RemoteAddr, r.UserAgent())
	if err := h.audit.Record(event); err != nil {
		if errors.Is(err, audit.ErrBufferFull) {
			h.metrics.RecordAuditDropped(r.Context())
		}
		h.logger.Debug("login event not recorded",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleCurrentPrincipal handles GET /auth and returns the caller's principal.
func (h *AuthHandler) HandleCurrentPrincipal(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipalFromContext(r.Context())
	if p == nil {
		_ = utils.WriteBearerUnauthorized(w, "", "Authentication required")
		return
	}
	if err := utils.WriteOK(w, p); err != nil {
		h.logger.Error("failed to write principal response", zap.Error(err))
	}
}

func parseLoginRequest(r *http.Request) (LoginRequest, error) {
	if err := r.ParseForm(); err != nil {
		return LoginRequest{}, err
	}
	req := LoginRequest{
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}
	if raw := r.FormValue("redirect"); raw != "" {
		redirect, err := strconv.ParseBool(raw)
		if err != nil {
			return LoginRequest{}, errors.New("redirect must be a boolean")
		}
		req.Redirect = redirect
	}
	if err := utils.ValidateStruct(req); err != nil {
		return LoginRequest{}, err
	}
	return req, nil
}
