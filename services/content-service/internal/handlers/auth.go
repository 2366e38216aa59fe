package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/santanalegal/lexcita/libs/auth"
	"github.com/santanalegal/lexcita/services/content-service/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 8 * time.Hour

// AuthHandler mints HS256 tokens for staff. There is no self-serve signup:
// staff accounts are created by an admin through the staff endpoint.
type AuthHandler struct {
	repo      *storage.Repository
	logger    *slog.Logger
	jwtSecret string
}

func NewAuthHandler(repo *storage.Repository, logger *slog.Logger, jwtSecret string) *AuthHandler {
	return &AuthHandler{repo: repo, logger: logger, jwtSecret: jwtSecret}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Password = strings.TrimSpace(req.Password)
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password required", http.StatusBadRequest)
		return
	}

	user, err := h.repo.GetStaffByEmail(r.Context(), req.Email)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.Error("staff lookup failed", "error", err)
		http.Error(w, "failed to lookup user", http.StatusInternalServerError)
		return
	}

	if err := verifyPassword(user.PasswordHash, req.Password); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		Role:  user.Role,
		Iat:   now.Unix(),
		Exp:   now.Add(tokenTTL).Unix(),
	}, h.jwtSecret)
	if err != nil {
		h.logger.Error("token signing failed", "error", err)
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	h.logger.Info("staff login", "email", user.Email, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		Role:        user.Role,
	})
}

type createStaffRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateStaff registers a staff account. The gateway gates this route to the
// admin role.
func (h *AuthHandler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Password = strings.TrimSpace(req.Password)
	if req.Email == "" || len(req.Password) < 10 {
		http.Error(w, "email and a password of at least 10 characters required", http.StatusBadRequest)
		return
	}
	switch req.Role {
	case "admin", "staff":
	default:
		http.Error(w, "role must be admin or staff", http.StatusBadRequest)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	id, err := h.repo.CreateStaff(r.Context(), storage.StaffUser{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	})
	if err != nil {
		if storage.IsDuplicate(err) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		h.logger.Error("staff create failed", "error", err)
		http.Error(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	h.logger.Info("staff account created", "email", req.Email, "role", req.Role)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func hashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash string, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}
