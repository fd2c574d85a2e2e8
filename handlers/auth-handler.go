package handlers

import (
	"net/http"
	"strings"
	"time"

	"staff-portal/config"
	"staff-portal/middleware"
	"staff-portal/models"
	"staff-portal/store"
	"staff-portal/utils"

	"go.uber.org/zap"
)

var (
	hashPassword  = utils.HashPassword
	checkPassword = utils.CheckPassword
	generateToken = utils.GenerateToken
)

const (
	usersPath       = "users"
	defaultRoleName = "user"
)

type AuthHandler struct {
	cfg    config.AuthConfig
	store  store.Accessor
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthHandler(cfg config.AuthConfig, accessor store.Accessor, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{cfg: cfg, store: accessor, logger: logger, now: time.Now}
}

// RegisterHandler creates a user and returns a token for it. The email lookup
// and the insert are separate calls, so two concurrent registrations of the
// same address can both succeed.
func (h *AuthHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) error {
	var req models.Registration
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || req.Password == "" || name == "" {
		return middleware.NewAppError(http.StatusBadRequest, "Email, password and name are required", nil)
	}

	existing, err := h.store.ReadFiltered(r.Context(), usersPath, "email", email)
	if err != nil {
		return storeError(err)
	}
	if len(existing) > 0 {
		return middleware.NewAppError(http.StatusBadRequest, "User already exists", nil)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return middleware.NewAppError(http.StatusInternalServerError, "Internal server error", err)
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = defaultRoleName
	}

	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		CreatedAt:    h.now().UTC().Format(time.RFC3339),
	}
	id, err := h.store.PushNew(r.Context(), usersPath, user)
	if err != nil {
		return storeError(err)
	}
	user.ID = id

	token, err := h.issueToken(user)
	if err != nil {
		return middleware.NewAppError(http.StatusInternalServerError, "Could not generate token", err)
	}

	h.logger.Info("user registered", zap.String("user_id", id), zap.String("role", role))
	return writeJSON(w, http.StatusCreated, JSONResponse{
		"success": true,
		"token":   token,
		"user":    user.Public(),
	})
}

func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) error {
	var req models.Credentials
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return middleware.NewAppError(http.StatusBadRequest, "Email and password are required", nil)
	}

	matches, err := h.store.ReadFiltered(r.Context(), usersPath, "email", email)
	if err != nil {
		return storeError(err)
	}
	if len(matches) == 0 {
		return middleware.NewAppError(http.StatusUnauthorized, "Invalid credentials", nil)
	}

	var user models.User
	if err := matches[0].Decode(&user); err != nil {
		return middleware.NewAppError(http.StatusInternalServerError, "Internal server error", err)
	}
	user.ID = matches[0].Key

	if !checkPassword(user.PasswordHash, req.Password) {
		return middleware.NewAppError(http.StatusUnauthorized, "Invalid credentials", nil)
	}

	token, err := h.issueToken(user)
	if err != nil {
		return middleware.NewAppError(http.StatusInternalServerError, "Could not generate token", err)
	}

	return writeJSON(w, http.StatusOK, JSONResponse{
		"success": true,
		"token":   token,
		"user":    user.Public(),
	})
}

func (h *AuthHandler) issueToken(user models.User) (string, error) {
	claims := utils.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}
	return generateToken(claims, h.cfg.TokenTTL, h.cfg.Issuer, h.cfg.TokenSecret)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
