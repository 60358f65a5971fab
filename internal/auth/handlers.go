package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/interfaces"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// contextKey is a private type for request context values
type contextKey string

// userContextKey carries the authenticated user profile
const userContextKey contextKey = "auth_user"

// Handlers handles HTTP requests for authentication
type Handlers struct {
	service interfaces.AuthService
	logger  *logger.Logger
}

// NewHandlers creates new auth HTTP handlers
func NewHandlers(service interfaces.AuthService, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers auth routes on the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/register", h.Register).Methods("POST")
	router.HandleFunc("/auth/login", h.Login).Methods("POST")
	router.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	router.Handle("/auth/me", h.RequireAuth(http.HandlerFunc(h.Me))).Methods("GET")
}

// Register handles user registration
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "Invalid JSON payload")
		return
	}

	profile, err := h.service.Register(r.Context(), &req)
	if err != nil {
		h.logger.WithError(err).Warn("Registration failed")
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

// Login handles user authentication
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "Invalid JSON payload")
		return
	}

	resp, err := h.service.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes the current session token
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, types.ErrCodeUnauthorized, "Missing bearer token")
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		h.logger.WithError(err).Error("Logout failed")
		writeError(w, http.StatusInternalServerError, types.ErrCodeInternal, "Failed to revoke session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Me returns the current user's profile
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, types.ErrCodeUnauthorized, "Not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// RequireAuth wraps a handler with bearer-token validation and injects
// the resolved user profile into the request context
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, types.ErrCodeUnauthorized, "Missing bearer token")
			return
		}

		user, err := h.service.ValidateToken(r.Context(), token)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext extracts the authenticated user from a request
// context, or nil
func UserFromContext(ctx context.Context) *types.UserProfile {
	user, _ := ctx.Value(userContextKey).(*types.UserProfile)
	return user
}

// bearerToken extracts the bearer token from the Authorization header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// errorResponse is the JSON error envelope
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, &errorResponse{Code: code, Message: message})
}

// writeServiceError maps a service error to an HTTP status
func writeServiceError(w http.ResponseWriter, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Type {
		case types.ErrorTypeValidation:
			status = http.StatusBadRequest
		case types.ErrorTypeAuthentication:
			status = http.StatusUnauthorized
		case types.ErrorTypeAuthorization:
			status = http.StatusForbidden
		case types.ErrorTypeNotFound:
			status = http.StatusNotFound
		case types.ErrorTypeConflict:
			status = http.StatusConflict
		}
		writeError(w, status, appErr.Code, appErr.Message)
		return
	}

	writeError(w, http.StatusInternalServerError, types.ErrCodeInternal, err.Error())
}
