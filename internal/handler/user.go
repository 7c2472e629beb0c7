package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
)

type UserHandler struct {
	users  *store.UserStore
	logger *slog.Logger
}

func NewUserHandler(us *store.UserStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: us, logger: logger}
}

type userRequest struct {
	Username  string `json:"username"`
	Name      string `json:"name"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	BirthDate string `json:"birth_date"` // YYYY-MM-DD
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	if req.Username == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "username and name are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	role := model.Role(req.Role)
	if role != model.RoleParent && role != model.RoleChild {
		writeError(w, http.StatusBadRequest, "role must be parent or child")
		return
	}

	var birthDate *time.Time
	if req.BirthDate != "" {
		t, err := time.ParseInLocation("2006-01-02", req.BirthDate, time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "birth_date must be YYYY-MM-DD")
			return
		}
		birthDate = &t
	}

	existing, err := h.users.GetByUsername(req.Username)
	if err != nil {
		h.logger.Error("username lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := h.users.Create(req.Username, req.Name, string(hash), role, birthDate)
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.users.ListActiveChildren()
	if err != nil {
		h.logger.Error("list children", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list children")
		return
	}
	if children == nil {
		children = []model.User{}
	}
	writeJSON(w, http.StatusOK, children)
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	user, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err := h.users.SetActive(id, false); err != nil {
		h.logger.Error("deactivate user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to deactivate user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
