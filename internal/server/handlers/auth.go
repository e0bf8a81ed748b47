package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/auth"
)

// AuthHandlers handles the login endpoint.
type AuthHandlers struct {
	auth *auth.Service
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(authService *auth.Service) *AuthHandlers {
	return &AuthHandlers{auth: authService}
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse is the response body for a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if !h.auth.Enabled() {
		BadRequest(w, "Authentication is disabled")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	token, expiresAt, err := h.auth.Login(req.Password)
	if err != nil {
		log.Warn().Str("remote", r.RemoteAddr).Msg("Failed login attempt")
		Unauthorized(w, "Invalid credentials")
		return
	}

	JSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt})
}
