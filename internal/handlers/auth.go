package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ecs-alert/ecs-alert/internal/api"
	"github.com/ecs-alert/ecs-alert/internal/middleware"
)

// AuthHandler issues bearer tokens for the reporting API's single admin account
type AuthHandler struct {
	jwtAuth *middleware.JWTAuth
	logger  logrus.FieldLogger
}

func NewAuthHandler(jwtAuth *middleware.JWTAuth, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{jwtAuth: jwtAuth, logger: logger}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries a token valid for ExpiresIn seconds
type LoginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int    `json:"expires_in"`
}

func (h *AuthHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/login", h.login)
	mux.HandleFunc("/auth/verify", h.whoami)
}

// login exchanges the admin credentials for a token. Public.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.MethodNotAllowed(w, http.MethodPost)
		return
	}

	var creds LoginRequest
	if err := api.DecodeJSON(r, &creds); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if creds.Username == "" || creds.Password == "" {
		api.RespondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	log := h.logger.WithFields(logrus.Fields{
		"username":    creds.Username,
		"remote_addr": r.RemoteAddr,
		"request_id":  middleware.GetRequestID(r.Context()),
	})
	if !h.jwtAuth.ValidateCredentials(creds.Username, creds.Password) {
		log.Warn("Rejected reporting API login")
		api.RespondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.jwtAuth.GenerateToken(creds.Username)
	if err != nil {
		log.WithError(err).Error("Could not sign reporting API token")
		api.RespondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	log.Info("Reporting API token issued")
	api.RespondJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		Username:  creds.Username,
		ExpiresIn: int(h.jwtAuth.Expiry().Seconds()),
	})
}

// whoami echoes the user bound to the bearer token. The JWT middleware has
// already rejected requests without one.
func (h *AuthHandler) whoami(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.MethodNotAllowed(w, http.MethodGet)
		return
	}

	user := middleware.GetUserFromContext(r.Context())
	if user == "" {
		api.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]any{"valid": true, "username": user})
}
