package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
	"github.com/dukerupert/chorewheel/internal/store"
)

type ChoreHandler struct {
	chores    *store.ChoreStore
	locations *store.LocationStore
	logger    *slog.Logger
}

func NewChoreHandler(cs *store.ChoreStore, ls *store.LocationStore, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{chores: cs, locations: ls, logger: logger}
}

type choreRequest struct {
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Points             int     `json:"points"`
	PenalizeIncomplete bool    `json:"penalize_incomplete"`
	PenaltyAmount      int     `json:"penalty_amount"`
	IsRecurring        bool    `json:"is_recurring"`
	Recurrence         string  `json:"recurrence"`
	DayOfWeek          string  `json:"day_of_week"`
	DayOfMonth         string  `json:"day_of_month"`
	TimeDue            *string `json:"time_due"`
	AssignToAll        bool    `json:"assign_to_all"`
	Disabled           bool    `json:"disabled"`
	AgeRestricted      bool    `json:"age_restricted"`
	MinimumAge         *int    `json:"minimum_age"`
	LocationID         *int64  `json:"location_id"`
	VideoName          string  `json:"instructions_video_name"`
	VideoSource        string  `json:"instructions_video_source"`
}

func (req *choreRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if err := recurrence.ValidateMarkers(req.IsRecurring, req.Recurrence, req.DayOfWeek, req.DayOfMonth); err != nil {
		return err.Error()
	}
	if req.AgeRestricted != (req.MinimumAge != nil) {
		return "age_restricted and minimum_age must be set together"
	}
	if req.MinimumAge != nil && *req.MinimumAge <= 0 {
		return "minimum_age must be positive"
	}
	if req.TimeDue != nil {
		if _, err := time.Parse("15:04", *req.TimeDue); err != nil {
			return "time_due must be in HH:MM format"
		}
	}
	return ""
}

func (req *choreRequest) toModel() model.Chore {
	return model.Chore{
		Name:               req.Name,
		Description:        req.Description,
		Points:             req.Points,
		PenalizeIncomplete: req.PenalizeIncomplete,
		PenaltyAmount:      req.PenaltyAmount,
		IsRecurring:        req.IsRecurring,
		Recurrence:         req.Recurrence,
		DayOfWeek:          req.DayOfWeek,
		DayOfMonth:         req.DayOfMonth,
		TimeDue:            req.TimeDue,
		AssignToAll:        req.AssignToAll,
		Disabled:           req.Disabled,
		AgeRestricted:      req.AgeRestricted,
		MinimumAge:         req.MinimumAge,
		LocationID:         req.LocationID,
		VideoName:          req.VideoName,
		VideoSource:        req.VideoSource,
	}
}

func (h *ChoreHandler) checkLocation(w http.ResponseWriter, id *int64) bool {
	if id == nil {
		return true
	}
	loc, err := h.locations.GetLocationByID(*id)
	if err != nil {
		h.logger.Error("location lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check location")
		return false
	}
	if loc == nil {
		writeError(w, http.StatusBadRequest, "location not found")
		return false
	}
	return true
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if !h.checkLocation(w, req.LocationID) {
		return
	}

	chore, err := h.chores.Create(req.toModel())
	if err != nil {
		h.logger.Error("create chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create chore")
		return
	}
	writeJSON(w, http.StatusCreated, chore)
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	chores, err := h.chores.List()
	if err != nil {
		h.logger.Error("list chores", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list chores")
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	chore, err := h.chores.GetByID(id)
	if err != nil {
		h.logger.Error("get chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return
	}
	if chore == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}
	writeJSON(w, http.StatusOK, chore)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req choreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if !h.checkLocation(w, req.LocationID) {
		return
	}

	existing, err := h.chores.GetByID(id)
	if err != nil {
		h.logger.Error("get chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}

	chore, err := h.chores.Update(id, req.toModel())
	if err != nil {
		h.logger.Error("update chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update chore")
		return
	}
	writeJSON(w, http.StatusOK, chore)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.chores.Delete(id); err != nil {
		h.logger.Error("delete chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete chore")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
