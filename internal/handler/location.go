package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
)

type LocationHandler struct {
	locations *store.LocationStore
	logger    *slog.Logger
}

func NewLocationHandler(ls *store.LocationStore, logger *slog.Logger) *LocationHandler {
	return &LocationHandler{locations: ls, logger: logger}
}

type locationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LocationID  *int64 `json:"location_id"`
}

func (h *LocationHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	loc, err := h.locations.CreateLocation(req.Name, req.Description)
	if err != nil {
		h.logger.Error("create location", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create location")
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

func (h *LocationHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.locations.ListLocations()
	if err != nil {
		h.logger.Error("list locations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	if locations == nil {
		locations = []model.Location{}
	}
	writeJSON(w, http.StatusOK, locations)
}

func (h *LocationHandler) CreateEquipment(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.LocationID != nil {
		loc, err := h.locations.GetLocationByID(*req.LocationID)
		if err != nil {
			h.logger.Error("location lookup", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to check location")
			return
		}
		if loc == nil {
			writeError(w, http.StatusBadRequest, "location not found")
			return
		}
	}

	eq, err := h.locations.CreateEquipment(req.Name, req.Description, req.LocationID)
	if err != nil {
		h.logger.Error("create equipment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create equipment")
		return
	}
	writeJSON(w, http.StatusCreated, eq)
}

func (h *LocationHandler) ListEquipment(w http.ResponseWriter, r *http.Request) {
	items, err := h.locations.ListEquipment()
	if err != nil {
		h.logger.Error("list equipment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list equipment")
		return
	}
	if items == nil {
		items = []model.Equipment{}
	}
	writeJSON(w, http.StatusOK, items)
}
