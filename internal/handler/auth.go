package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/plannr/internal/auth"
	"github.com/dukerupert/plannr/internal/calendar"
	"github.com/dukerupert/plannr/internal/model"
	"github.com/dukerupert/plannr/internal/store"
)

type AuthHandler struct {
	users  *store.UserStore
	tokens *auth.Tokens
	logger *slog.Logger
}

func NewAuthHandler(users *store.UserStore, tokens *auth.Tokens, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Timezone string `json:"timezone" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type timezoneRequest struct {
	Timezone string `json:"timezone" validate:"required"`
}

type tokenResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := calendar.LoadZone(req.Timezone); err != nil {
		writeError(w, http.StatusBadRequest, "timezone must be an IANA time zone")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	u, err := h.users.Create(email, strings.TrimSpace(req.Name), hash, req.Timezone)
	if err != nil {
		writeStoreError(w, h.logger, "register", err)
		return
	}

	token, err := h.tokens.Issue(u.ID)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}
	h.logger.Info("user registered", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, User: u})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeStoreError(w, h.logger, "log in", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}
	if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeStoreError(w, h.logger, "log in", err)
		return
	}

	token, err := h.tokens.Issue(u.ID)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, User: u})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "get user", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) UpdateTimezone(w http.ResponseWriter, r *http.Request) {
	var req timezoneRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := calendar.LoadZone(req.Timezone); err != nil {
		writeError(w, http.StatusBadRequest, "timezone must be an IANA time zone")
		return
	}

	u, err := h.users.UpdateTimezone(auth.UserID(r.Context()), req.Timezone)
	if err != nil {
		writeStoreError(w, h.logger, "update timezone", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
