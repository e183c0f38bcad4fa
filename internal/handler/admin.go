package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/avelot/tutoria/internal/apperr"
	"github.com/avelot/tutoria/internal/model"
)

type userResponse struct {
	ID          int64          `json:"id"`
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name"`
	Role        model.UserRole `json:"role"`
	Active      bool           `json:"active"`
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Role:        u.Role,
			Active:      u.Active,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string         `json:"username"`
		DisplayName string         `json:"display_name"`
		Password    string         `json:"password"`
		Role        model.UserRole `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		respondDomainError(w, r, apperr.Validationf("user", "username and password required"))
		return
	}
	switch req.Role {
	case model.UserRoleStudent, model.UserRoleTeacher, model.UserRoleAdmin:
	default:
		respondDomainError(w, r, apperr.Validationf("role", "unknown role %q", req.Role))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	id, err := h.store.CreateUser(model.User{
		Username:     req.Username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) handleToggleUser(w http.ResponseWriter, r *http.Request) {
	userID, err := urlInt64(r, "userID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if err := h.store.ToggleUserActive(userID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
