// Package scheduler runs the daily assignment pass and the overdue-close
// sweep. A pass decides which chores are due, picks assignees weighted
// toward lightly loaded children, and creates assignment rows while
// guarding against duplicates. The pass never fails as a whole: per-item
// errors are logged, counted, and skipped.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/chorewheel/internal/fairness"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
	"github.com/dukerupert/chorewheel/internal/store"
	"github.com/dukerupert/chorewheel/internal/websocket"
)

// Summary reports what one scheduling pass did.
type Summary struct {
	Created           int
	SkippedDuplicates int
	Failures          int
}

type Scheduler struct {
	chores      *store.ChoreStore
	assignments *store.AssignmentStore
	users       *store.UserStore
	hub         *websocket.Hub
	logger      *slog.Logger
	rng         *rand.Rand
}

type Option func(*Scheduler)

// WithSeed makes the weighted selection deterministic, for tests and
// debugging.
func WithSeed(seed int64) Option {
	return func(s *Scheduler) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithHub broadcasts pass and sweep results to connected dashboards.
func WithHub(hub *websocket.Hub) Option {
	return func(s *Scheduler) {
		s.hub = hub
	}
}

func New(cs *store.ChoreStore, as *store.AssignmentStore, us *store.UserStore, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		chores:      cs,
		assignments: as,
		users:       us,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunPass assigns all chores due on the given day. It always completes and
// returns a summary; individual failures are logged and counted, never
// propagated.
func (s *Scheduler) RunPass(ctx context.Context, today time.Time) Summary {
	today = today.UTC()
	var sum Summary

	children, err := s.users.ListActiveChildren()
	if err != nil {
		s.logger.Error("list children", "error", err)
		return sum
	}
	if len(children) == 0 {
		s.logger.Info("no children found, skipping assignment pass")
		return sum
	}
	s.logger.Info("starting assignment pass", "date", today.Format("2006-01-02"), "children", len(children))

	loads := s.seedLoads(children, today)

	// Assign-to-all chores go to every child.
	allChores, err := s.chores.ListDueOn(today, true)
	if err != nil {
		s.logger.Error("list assign-to-all chores", "error", err)
	}
	for _, chore := range allChores {
		for i := range children {
			s.assignOne(ctx, chore, &children[i], today, loads, &sum)
		}
	}

	// Remaining chores each get one weighted pick among eligible children.
	remaining, err := s.chores.ListDueOn(today, false)
	if err != nil {
		s.logger.Error("list due chores", "error", err)
	}
	for _, chore := range remaining {
		eligible := s.eligibleChildren(chore, children, today)
		if eligible == nil {
			continue // inconsistent chore, already logged
		}

		assignee := fairness.Choose(s.rng, eligible, loads)
		if assignee == nil {
			s.logger.Error("no eligible children for chore", "chore_id", chore.ID, "chore", chore.Name)
			continue
		}
		s.assignOne(ctx, chore, assignee, today, loads, &sum)
	}

	s.logger.Info("assignment pass complete",
		"created", sum.Created, "skipped_duplicates", sum.SkippedDuplicates, "failures", sum.Failures)
	if s.hub != nil {
		s.hub.Broadcast(websocket.Event{Kind: websocket.EventPassComplete, Extra: map[string]any{
			"created":            sum.Created,
			"skipped_duplicates": sum.SkippedDuplicates,
			"failures":           sum.Failures,
		}})
	}
	return sum
}

// seedLoads builds the pass-scoped load map: open assignments per child
// plus completions in the trailing 7-day window [todayStart-7d, todayStart).
// The historical lookup is best-effort; on error the pass continues with
// open counts only.
func (s *Scheduler) seedLoads(children []model.User, today time.Time) fairness.LoadMap {
	loads := make(fairness.LoadMap, len(children))

	open, err := s.assignments.CountOpenByAssignee()
	if err != nil {
		s.logger.Error("count open assignments", "error", err)
	} else {
		for _, c := range children {
			loads[c.ID] = open[c.ID]
		}
	}

	todayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	completed, err := s.assignments.CountCompletedBetween(todayStart.AddDate(0, 0, -7), todayStart)
	if err != nil {
		s.logger.Error("count recent completions, continuing without them", "error", err)
		return loads
	}
	for _, c := range children {
		loads[c.ID] += completed[c.ID]
	}
	return loads
}

// eligibleChildren applies the age restriction filter. A nil return means
// the chore itself is inconsistent and must be skipped; an empty slice
// means no child qualifies.
func (s *Scheduler) eligibleChildren(chore model.Chore, children []model.User, today time.Time) []model.User {
	if !chore.AgeRestricted {
		return children
	}
	// The schema requires a minimum age on age-restricted chores; guard
	// anyway so inconsistent rows surface in logs instead of panics.
	if chore.MinimumAge == nil {
		s.logger.Warn("age-restricted chore has no minimum age, skipping",
			"chore_id", chore.ID, "chore", chore.Name)
		return nil
	}

	eligible := make([]model.User, 0, len(children))
	for _, c := range children {
		if c.BirthDate != nil && c.AgeOn(today) >= *chore.MinimumAge {
			eligible = append(eligible, c)
		}
	}
	s.logger.Info("age-restricted chore eligibility",
		"chore_id", chore.ID, "chore", chore.Name, "eligible", len(eligible))
	return eligible
}

// assignOne applies the duplicate guard and creates a single assignment,
// updating the load map on success so later picks in this pass see it.
func (s *Scheduler) assignOne(ctx context.Context, chore model.Chore, child *model.User, today time.Time, loads fairness.LoadMap, sum *Summary) {
	dueDate := recurrence.DueDate(chore.TimeDue, today)
	dayStart := time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	exists, err := s.assignments.OpenExists(chore.ID, child.ID, dayStart, dayEnd)
	if err != nil {
		sum.Failures++
		s.logger.Error("duplicate check failed",
			"chore_id", chore.ID, "chore", chore.Name, "child_id", child.ID, "child", child.Username, "error", err)
		return
	}
	if exists {
		sum.SkippedDuplicates++
		s.logger.Debug("skipping duplicate assignment",
			"chore_id", chore.ID, "child_id", child.ID, "date", dayStart.Format("2006-01-02"))
		return
	}

	if err := s.createWithRetry(ctx, chore.ID, child.ID, dueDate); err != nil {
		sum.Failures++
		s.logger.Error("failed to create assignment",
			"chore_id", chore.ID, "chore", chore.Name, "child_id", child.ID, "child", child.Username, "error", err)
		return
	}

	sum.Created++
	loads.Increment(child.ID)
	s.logger.Info("assigned chore",
		"chore_id", chore.ID, "chore", chore.Name, "child_id", child.ID, "child", child.Username,
		"due", dueDate.Format(time.RFC3339))
	if s.hub != nil {
		s.hub.Broadcast(websocket.Event{Kind: websocket.EventAssigned, ChoreID: chore.ID, ChildID: child.ID})
	}
}

// createWithRetry retries briefly on sqlite busy/locked errors; anything
// else (including the unique-index race with a concurrent pass) fails
// immediately.
func (s *Scheduler) createWithRetry(ctx context.Context, choreID, childID int64, dueDate time.Time) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(50*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := s.assignments.Create(choreID, childID, dueDate)
		if err != nil && isBusy(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// CloseOverdue closes all open assignments due at or before now. Safe to
// re-run: the second sweep finds nothing to close.
func (s *Scheduler) CloseOverdue(ctx context.Context, now time.Time) (int64, error) {
	closed, err := s.assignments.CloseOverdue(now)
	if err != nil {
		return 0, err
	}
	s.logger.Info("closed overdue assignments", "count", closed)
	if s.hub != nil {
		s.hub.Broadcast(websocket.Event{Kind: websocket.EventSweepComplete, Extra: map[string]any{"closed": closed}})
	}
	return closed, nil
}
