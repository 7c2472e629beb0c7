// Package lifecycle drives an assignment through its states: open, pending
// approval, approved-and-closed, or closed by the nightly sweep. Every
// transition validates the actor, pre-reads the row, and then applies a
// guarded update so concurrent requests on the same assignment cannot lose
// writes.
package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/media"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
	"github.com/dukerupert/chorewheel/internal/websocket"
)

// Upload is one incoming evidence file.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
	Size        int64
}

type Service struct {
	assignments *store.AssignmentStore
	media       *media.Store
	hub         *websocket.Hub
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(as *store.AssignmentStore, ms *media.Store, hub *websocket.Hub, logger *slog.Logger) *Service {
	return &Service{
		assignments: as,
		media:       ms,
		hub:         hub,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) broadcast(ev websocket.Event) {
	if s.hub != nil {
		s.hub.Broadcast(ev)
	}
}

// load fetches the assignment and applies the shared visibility rule:
// children may only touch their own assignments.
func (s *Service) load(actor auth.Context, assignmentID int64) (*model.Assignment, error) {
	a, err := s.assignments.GetByID(assignmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("assignment %d: %w", assignmentID, ErrNotFound)
	}
	if actor.IsChild() && a.AssignedTo != actor.UserID {
		return nil, fmt.Errorf("assignment %d belongs to another child: %w", assignmentID, ErrUnauthorized)
	}
	return a, nil
}

// MarkReadyForApproval lets the assignee flag the chore as done and waiting
// for a parent. Fails on closed or already approved assignments.
func (s *Service) MarkReadyForApproval(ctx context.Context, actor auth.Context, assignmentID int64) (*model.Assignment, error) {
	if !actor.IsChild() {
		return nil, fmt.Errorf("only the assigned child may mark ready: %w", ErrUnauthorized)
	}

	a, err := s.load(actor, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Closed || a.Approved {
		return nil, fmt.Errorf("assignment %d is closed or already approved: %w", assignmentID, ErrConflict)
	}

	ok, err := s.assignments.MarkReady(assignmentID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("assignment %d changed concurrently: %w", assignmentID, ErrConflict)
	}

	s.broadcast(websocket.Event{Kind: websocket.EventReadyForReview, AssignmentID: assignmentID, ChildID: a.AssignedTo})
	return s.assignments.GetByID(assignmentID)
}

// MarkIncomplete lets a parent reset a not-yet-closed assignment to open,
// clearing completion, approval, and closure fields.
func (s *Service) MarkIncomplete(ctx context.Context, actor auth.Context, assignmentID int64) (*model.Assignment, error) {
	if !actor.IsParent() {
		return nil, fmt.Errorf("only a parent may mark incomplete: %w", ErrUnauthorized)
	}

	a, err := s.load(actor, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Closed {
		return nil, fmt.Errorf("assignment %d is closed: %w", assignmentID, ErrConflict)
	}

	ok, err := s.assignments.MarkIncomplete(assignmentID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("assignment %d changed concurrently: %w", assignmentID, ErrConflict)
	}

	s.broadcast(websocket.Event{Kind: websocket.EventMarkedIncomplete, AssignmentID: assignmentID, ChildID: a.AssignedTo})
	return s.assignments.GetByID(assignmentID)
}

// Approve lets a parent accept the work. Approval is terminal: it also
// closes the assignment.
func (s *Service) Approve(ctx context.Context, actor auth.Context, assignmentID int64) (*model.Assignment, error) {
	if !actor.IsParent() {
		return nil, fmt.Errorf("only a parent may approve: %w", ErrUnauthorized)
	}

	a, err := s.load(actor, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Closed {
		return nil, fmt.Errorf("assignment %d is closed: %w", assignmentID, ErrConflict)
	}

	ok, err := s.assignments.Approve(assignmentID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("assignment %d changed concurrently: %w", assignmentID, ErrConflict)
	}

	s.broadcast(websocket.Event{Kind: websocket.EventApproved, AssignmentID: assignmentID, ChildID: a.AssignedTo})
	return s.assignments.GetByID(assignmentID)
}

// AttachEvidence stores exactly one photo or video for an open assignment.
func (s *Service) AttachEvidence(ctx context.Context, actor auth.Context, assignmentID int64, photo, video *Upload) (*model.Evidence, error) {
	a, err := s.evidenceTarget(actor, assignmentID)
	if err != nil {
		return nil, err
	}

	if photo == nil && video == nil {
		return nil, fmt.Errorf("photo or video evidence is required: %w", ErrValidation)
	}
	if photo != nil && video != nil {
		return nil, fmt.Errorf("provide either a photo or a video, not both: %w", ErrValidation)
	}

	if photo != nil {
		return s.storeEvidence(ctx, a.ID, photo, false)
	}
	return s.storeEvidence(ctx, a.ID, video, true)
}

// AttachEvidenceBatch stores any non-empty combination of photos and
// videos, one evidence record per file.
func (s *Service) AttachEvidenceBatch(ctx context.Context, actor auth.Context, assignmentID int64, photos, videos []Upload) ([]model.Evidence, error) {
	a, err := s.evidenceTarget(actor, assignmentID)
	if err != nil {
		return nil, err
	}

	if len(photos) == 0 && len(videos) == 0 {
		return nil, fmt.Errorf("at least one photo or video is required: %w", ErrValidation)
	}

	var created []model.Evidence
	for i := range photos {
		ev, err := s.storeEvidence(ctx, a.ID, &photos[i], false)
		if err != nil {
			return created, err
		}
		created = append(created, *ev)
	}
	for i := range videos {
		ev, err := s.storeEvidence(ctx, a.ID, &videos[i], true)
		if err != nil {
			return created, err
		}
		created = append(created, *ev)
	}
	return created, nil
}

// evidenceTarget loads the assignment and checks that evidence may still be
// attached: the assignee child or any parent, on a non-closed, non-approved
// assignment.
func (s *Service) evidenceTarget(actor auth.Context, assignmentID int64) (*model.Assignment, error) {
	a, err := s.load(actor, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Closed || a.Approved {
		return nil, fmt.Errorf("assignment %d is closed or approved: %w", assignmentID, ErrConflict)
	}
	return a, nil
}

func (s *Service) storeEvidence(ctx context.Context, assignmentID int64, up *Upload, isVideo bool) (*model.Evidence, error) {
	key, err := s.media.Upload(ctx, assignmentID, up.Filename, up.ContentType, up.Body, up.Size)
	if err != nil {
		return nil, fmt.Errorf("store evidence file: %w", err)
	}

	photoKey, videoKey := key, ""
	if isVideo {
		photoKey, videoKey = "", key
	}

	ev, err := s.assignments.CreateEvidence(assignmentID, photoKey, videoKey)
	if err != nil {
		// Remove the orphaned blob; the record never existed.
		if derr := s.media.Delete(ctx, key); derr != nil {
			s.logger.Warn("orphaned evidence blob", "key", key, "error", derr)
		}
		return nil, err
	}
	return s.withURLs(ev), nil
}

// GetEvidence returns one evidence record with resolved URLs.
func (s *Service) GetEvidence(ctx context.Context, actor auth.Context, assignmentID, evidenceID int64) (*model.Evidence, error) {
	if _, err := s.load(actor, assignmentID); err != nil {
		return nil, err
	}

	ev, err := s.assignments.GetEvidence(assignmentID, evidenceID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, fmt.Errorf("evidence %d: %w", evidenceID, ErrNotFound)
	}
	return s.withURLs(ev), nil
}

// ListEvidence returns all evidence for an assignment with resolved URLs.
func (s *Service) ListEvidence(ctx context.Context, actor auth.Context, assignmentID int64) ([]model.Evidence, error) {
	if _, err := s.load(actor, assignmentID); err != nil {
		return nil, err
	}

	items, err := s.assignments.ListEvidence(assignmentID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.withURLs(&items[i])
	}
	return items, nil
}

// DeleteEvidence removes evidence while the assignment is still open.
// Forbidden once the assignment is completed, closed, or approved.
func (s *Service) DeleteEvidence(ctx context.Context, actor auth.Context, assignmentID, evidenceID int64) error {
	a, err := s.load(actor, assignmentID)
	if err != nil {
		return err
	}

	ev, err := s.assignments.GetEvidence(assignmentID, evidenceID)
	if err != nil {
		return err
	}
	if ev == nil {
		return fmt.Errorf("evidence %d: %w", evidenceID, ErrNotFound)
	}
	if a.IsCompleted || a.Closed || a.Approved {
		return fmt.Errorf("evidence cannot be deleted after completion: %w", ErrConflict)
	}

	ok, err := s.assignments.DeleteEvidence(assignmentID, evidenceID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("assignment %d changed concurrently: %w", assignmentID, ErrConflict)
	}

	key := ev.PhotoKey
	if key == "" {
		key = ev.VideoKey
	}
	if err := s.media.Delete(ctx, key); err != nil {
		s.logger.Warn("delete evidence blob", "key", key, "error", err)
	}
	return nil
}

func (s *Service) withURLs(ev *model.Evidence) *model.Evidence {
	if ev.PhotoKey != "" {
		if u := s.media.URL(ev.PhotoKey); u != "" {
			ev.PhotoURL = &u
		}
	}
	if ev.VideoKey != "" {
		if u := s.media.URL(ev.VideoKey); u != "" {
			ev.VideoURL = &u
		}
	}
	return ev
}
