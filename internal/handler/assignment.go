package handler

import (
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/lifecycle"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
)

const maxEvidenceUpload = 32 << 20 // per request

type AssignmentHandler struct {
	assignments *store.AssignmentStore
	svc         *lifecycle.Service
	logger      *slog.Logger
}

func NewAssignmentHandler(as *store.AssignmentStore, svc *lifecycle.Service, logger *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{assignments: as, svc: svc, logger: logger}
}

// ListForChild returns the child's open assignments. Children may only read
// their own; parents may read any child's.
func (h *AssignmentHandler) ListForChild(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	childID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if ac.IsChild() && childID != ac.UserID {
		writeError(w, http.StatusForbidden, "assignments belong to another child")
		return
	}

	assignments, err := h.assignments.ListOpenByAssignee(childID)
	if err != nil {
		h.logger.Error("list assignments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list assignments")
		return
	}
	if assignments == nil {
		assignments = []model.Assignment{}
	}
	writeJSON(w, http.StatusOK, assignments)
}

// Get returns one assignment with its evidence.
func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	a, err := h.assignments.GetByID(id)
	if err != nil {
		h.logger.Error("get assignment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get assignment")
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}
	if ac.IsChild() && a.AssignedTo != ac.UserID {
		writeError(w, http.StatusForbidden, "assignment belongs to another child")
		return
	}

	evidence, err := h.svc.ListEvidence(r.Context(), ac, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if evidence == nil {
		evidence = []model.Evidence{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assignment": a,
		"evidence":   evidence,
	})
}

type transitionFunc func(ctx context.Context, actor auth.Context, id int64) (*model.Assignment, error)

func (h *AssignmentHandler) transition(w http.ResponseWriter, r *http.Request, apply transitionFunc) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	a, err := apply(r.Context(), ac, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AssignmentHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.MarkReadyForApproval)
}

func (h *AssignmentHandler) MarkIncomplete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.MarkIncomplete)
}

func (h *AssignmentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Approve)
}

// AttachEvidence accepts a multipart form with exactly one "photo" or one
// "video" file.
func (h *AssignmentHandler) AttachEvidence(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := r.ParseMultipartForm(maxEvidenceUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	photo, err := formUpload(r, "photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable photo upload")
		return
	}
	video, err := formUpload(r, "video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable video upload")
		return
	}
	defer closeUploads(photo, video)

	ev, err := h.svc.AttachEvidence(r.Context(), ac, id, photo, video)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// AttachEvidenceBatch accepts any non-empty mix of "photo" and "video"
// files and creates one evidence record per file.
func (h *AssignmentHandler) AttachEvidenceBatch(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := r.ParseMultipartForm(maxEvidenceUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	photos, opened, err := formUploads(r, "photo")
	if err != nil {
		closeFiles(opened)
		writeError(w, http.StatusBadRequest, "unreadable photo upload")
		return
	}
	videos, openedVideos, err := formUploads(r, "video")
	opened = append(opened, openedVideos...)
	if err != nil {
		closeFiles(opened)
		writeError(w, http.StatusBadRequest, "unreadable video upload")
		return
	}
	defer closeFiles(opened)

	created, err := h.svc.AttachEvidenceBatch(r.Context(), ac, id, photos, videos)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AssignmentHandler) GetEvidence(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	evID, err := strconv.ParseInt(r.PathValue("evidence_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid evidence id")
		return
	}

	ev, err := h.svc.GetEvidence(r.Context(), ac, id, evID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *AssignmentHandler) ListEvidence(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	items, err := h.svc.ListEvidence(r.Context(), ac, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []model.Evidence{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AssignmentHandler) DeleteEvidence(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	evID, err := strconv.ParseInt(r.PathValue("evidence_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid evidence id")
		return
	}

	if err := h.svc.DeleteEvidence(r.Context(), ac, id, evID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// formUpload returns the single file under the given field, or nil when the
// field is absent.
func formUpload(r *http.Request, field string) (*lifecycle.Upload, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, nil
	}
	header := r.MultipartForm.File[field][0]
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	return &lifecycle.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        f,
		Size:        header.Size,
	}, nil
}

// formUploads returns every file under the given field plus the open
// handles for cleanup.
func formUploads(r *http.Request, field string) ([]lifecycle.Upload, []multipart.File, error) {
	if r.MultipartForm == nil {
		return nil, nil, nil
	}
	var uploads []lifecycle.Upload
	var files []multipart.File
	for _, header := range r.MultipartForm.File[field] {
		f, err := header.Open()
		if err != nil {
			return uploads, files, err
		}
		files = append(files, f)
		uploads = append(uploads, lifecycle.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Body:        f,
			Size:        header.Size,
		})
	}
	return uploads, files, nil
}

func closeUploads(uploads ...*lifecycle.Upload) {
	for _, up := range uploads {
		if up == nil {
			continue
		}
		if c, ok := up.Body.(multipart.File); ok {
			c.Close()
		}
	}
}

func closeFiles(files []multipart.File) {
	for _, f := range files {
		f.Close()
	}
}
