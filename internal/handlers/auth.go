package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/duka-app/dukago/internal/database"
	"github.com/duka-app/dukago/internal/models"
	"github.com/duka-app/dukago/internal/utils"
	"gorm.io/gorm"
)

// AuthHandler handles registration and login
type AuthHandler struct {
	db        *database.DB
	jwtSecret string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *database.DB, jwtSecret string) *AuthHandler {
	return &AuthHandler{db: db, jwtSecret: jwtSecret}
}

// Register creates a business together with its owner account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessName string `json:"businessName"`
		Location     string `json:"location"`
		ContactPhone string `json:"contactPhone"`
		Language     string `json:"language"`
		Name         string `json:"name"`
		Email        string `json:"email"`
		Password     string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BusinessName == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "businessName, email and password are required")
		return
	}
	if len(req.Password) < 8 {
		respondError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	business := &models.Business{
		Name:         req.BusinessName,
		Location:     req.Location,
		ContactPhone: req.ContactPhone,
		Language:     req.Language,
	}
	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleOwner,
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(business).Error; err != nil {
			return err
		}
		user.BusinessID = business.ID
		return tx.Create(user).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		log.Printf("⚠️ Registration failed: %v", err)
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	accessToken, refreshToken, err := utils.GenerateTokens(user, h.jwtSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	log.Printf("✅ Registered business %s (%s)", business.Name, business.ID)
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"business":     business,
		"user":         user,
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

// Login exchanges credentials for tokens.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var user models.User
	err := h.db.WithContext(r.Context()).
		Where("email = ?", req.Email).
		First(&user).Error
	if err != nil || !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		// Same response for unknown email and wrong password.
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	accessToken, refreshToken, err := utils.GenerateTokens(&user, h.jwtSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user":         user,
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}
