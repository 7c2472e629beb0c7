package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/model"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedAssignment(t *testing.T, db *sql.DB) (*AssignmentStore, int64, int64) {
	t.Helper()

	users := NewUserStore(db)
	chores := NewChoreStore(db)

	child, err := users.Create("ada", "Ada", "hash", model.RoleChild, nil)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	chore, err := chores.Create(model.Chore{Name: "dishes", IsRecurring: true, Recurrence: model.RecurrenceDaily})
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	return NewAssignmentStore(db), chore.ID, child.ID
}

func TestOpenExistsDayWindow(t *testing.T) {
	db := testDB(t)
	assignments, choreID, childID := seedAssignment(t, db)

	due := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	if _, err := assignments.Create(choreID, childID, due); err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	dayStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	exists, err := assignments.OpenExists(choreID, childID, dayStart, dayEnd)
	if err != nil {
		t.Fatalf("open exists: %v", err)
	}
	if !exists {
		t.Error("assignment due inside the window should be found")
	}

	exists, err = assignments.OpenExists(choreID, childID, dayEnd, dayEnd.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("open exists next day: %v", err)
	}
	if exists {
		t.Error("next-day window should not match")
	}
}

func TestOpenExistsIgnoresClosed(t *testing.T) {
	db := testDB(t)
	assignments, choreID, childID := seedAssignment(t, db)

	due := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	a, err := assignments.Create(choreID, childID, due)
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if _, err := assignments.CloseOverdue(due.Add(time.Hour)); err != nil {
		t.Fatalf("close: %v", err)
	}

	dayStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	exists, err := assignments.OpenExists(choreID, childID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("open exists: %v", err)
	}
	if exists {
		t.Error("closed assignments must not block reassignment")
	}

	// Once the old row is closed a fresh one for the same day can exist.
	if _, err := assignments.Create(choreID, childID, due); err != nil {
		t.Fatalf("recreate after close: %v", err)
	}
	got, err := assignments.GetByID(a.ID)
	if err != nil {
		t.Fatalf("get closed assignment: %v", err)
	}
	if !got.Closed {
		t.Error("original row should stay closed")
	}
}

func TestOpenUniqueIndexBlocksSameDayDuplicate(t *testing.T) {
	db := testDB(t)
	assignments, choreID, childID := seedAssignment(t, db)

	due := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	if _, err := assignments.Create(choreID, childID, due); err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if _, err := assignments.Create(choreID, childID, due.Add(time.Hour)); err == nil {
		t.Fatal("second open assignment for the same chore, child, and day should violate the unique index")
	}
}

func TestMarkReadyGuards(t *testing.T) {
	db := testDB(t)
	assignments, choreID, childID := seedAssignment(t, db)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	a, err := assignments.Create(choreID, childID, now.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	ok, err := assignments.MarkReady(a.ID, now)
	if err != nil || !ok {
		t.Fatalf("mark ready = %v, %v, want applied", ok, err)
	}

	// completed_at is set once and kept on re-marking.
	got, err := assignments.GetByID(a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	first := *got.CompletedAt

	ok, err = assignments.MarkReady(a.ID, now.Add(time.Hour))
	if err != nil || !ok {
		t.Fatalf("re-mark ready = %v, %v, want applied", ok, err)
	}
	got, err = assignments.GetByID(a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CompletedAt.Equal(first) {
		t.Errorf("completed_at = %v, want original %v kept", got.CompletedAt, first)
	}

	// After approval the guard rejects.
	if ok, err := assignments.Approve(a.ID, now.Add(2*time.Hour)); err != nil || !ok {
		t.Fatalf("approve = %v, %v", ok, err)
	}
	ok, err = assignments.MarkReady(a.ID, now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("mark ready after approve: %v", err)
	}
	if ok {
		t.Error("mark ready after approval should be rejected by the guard")
	}
}

func TestApproveGuardRejectsClosed(t *testing.T) {
	db := testDB(t)
	assignments, choreID, childID := seedAssignment(t, db)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	a, err := assignments.Create(choreID, childID, now)
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if _, err := assignments.CloseOverdue(now); err != nil {
		t.Fatalf("close: %v", err)
	}

	ok, err := assignments.Approve(a.ID, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if ok {
		t.Error("approve on a closed assignment should be rejected by the guard")
	}

	ok, err = assignments.MarkIncomplete(a.ID, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("mark incomplete: %v", err)
	}
	if ok {
		t.Error("mark incomplete on a closed assignment should be rejected by the guard")
	}
}

func TestCountCompletedBetweenHalfOpen(t *testing.T) {
	db := testDB(t)
	assignments, choreID, childID := seedAssignment(t, db)

	start := time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	complete := func(due, completedAt time.Time) {
		t.Helper()
		a, err := assignments.Create(choreID, childID, due)
		if err != nil {
			t.Fatalf("create assignment: %v", err)
		}
		if _, err := db.Exec(
			`UPDATE assignments SET is_completed = 1, completed_at = ?, closed = 1, closed_at = ? WHERE id = ?`,
			completedAt, completedAt, a.ID,
		); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	complete(start, start)                                       // included, lower bound is closed
	complete(start.AddDate(0, 0, 1), end.Add(-time.Microsecond)) // included
	complete(start.AddDate(0, 0, 2), end)                        // excluded, upper bound is open

	counts, err := assignments.CountCompletedBetween(start, end)
	if err != nil {
		t.Fatalf("count completed: %v", err)
	}
	if counts[childID] != 2 {
		t.Errorf("count = %d, want 2", counts[childID])
	}
}

func TestEvidenceXORConstraint(t *testing.T) {
	db := testDB(t)
	assignments, choreID, childID := seedAssignment(t, db)

	a, err := assignments.Create(choreID, childID, time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	if _, err := assignments.CreateEvidence(a.ID, "", ""); err == nil {
		t.Error("evidence with neither key should violate the check constraint")
	}
	if _, err := assignments.CreateEvidence(a.ID, "p.jpg", "v.mp4"); err == nil {
		t.Error("evidence with both keys should violate the check constraint")
	}
	if _, err := assignments.CreateEvidence(a.ID, "p.jpg", ""); err != nil {
		t.Errorf("photo-only evidence: %v", err)
	}
}

func TestDeleteEvidenceGuard(t *testing.T) {
	db := testDB(t)
	assignments, choreID, childID := seedAssignment(t, db)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	a, err := assignments.Create(choreID, childID, now.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	ev, err := assignments.CreateEvidence(a.ID, "p.jpg", "")
	if err != nil {
		t.Fatalf("create evidence: %v", err)
	}

	if _, err := assignments.MarkReady(a.ID, now); err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	ok, err := assignments.DeleteEvidence(a.ID, ev.ID)
	if err != nil {
		t.Fatalf("delete evidence: %v", err)
	}
	if ok {
		t.Error("delete on a completed assignment should be rejected")
	}

	if _, err := assignments.MarkIncomplete(a.ID, now); err != nil {
		t.Fatalf("mark incomplete: %v", err)
	}
	ok, err = assignments.DeleteEvidence(a.ID, ev.ID)
	if err != nil || !ok {
		t.Fatalf("delete evidence after reset = %v, %v, want applied", ok, err)
	}
}
