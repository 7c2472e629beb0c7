package scheduler

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
)

// Monday, so weekly "monday" chores are due.
var passDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) (*sql.DB, *Scheduler, *store.UserStore, *store.ChoreStore, *store.AssignmentStore) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	chores := store.NewChoreStore(db)
	assignments := store.NewAssignmentStore(db)
	sched := New(chores, assignments, users, testLogger(), WithSeed(1))
	return db, sched, users, chores, assignments
}

func createChild(t *testing.T, users *store.UserStore, username string, birthDate *time.Time) *model.User {
	t.Helper()
	u, err := users.Create(username, username, "hash", model.RoleChild, birthDate)
	if err != nil {
		t.Fatalf("create child %s: %v", username, err)
	}
	return u
}

func createDailyChore(t *testing.T, chores *store.ChoreStore, name string, assignToAll bool) *model.Chore {
	t.Helper()
	c, err := chores.Create(model.Chore{
		Name:        name,
		IsRecurring: true,
		Recurrence:  model.RecurrenceDaily,
		AssignToAll: assignToAll,
	})
	if err != nil {
		t.Fatalf("create chore %s: %v", name, err)
	}
	return c
}

func TestRunPassAssignToAll(t *testing.T) {
	_, sched, users, chores, assignments := setup(t)

	createChild(t, users, "ada", nil)
	createChild(t, users, "ben", nil)
	createDailyChore(t, chores, "clear the table", true)

	sum := sched.RunPass(context.Background(), passDay)
	if sum.Created != 2 || sum.SkippedDuplicates != 0 || sum.Failures != 0 {
		t.Fatalf("first pass = %+v, want 2 created", sum)
	}

	// Re-running the same day must not duplicate anything.
	sum = sched.RunPass(context.Background(), passDay)
	if sum.Created != 0 || sum.SkippedDuplicates != 2 || sum.Failures != 0 {
		t.Fatalf("second pass = %+v, want 2 skipped duplicates", sum)
	}

	for _, u := range []string{"ada", "ben"} {
		child, err := users.GetByUsername(u)
		if err != nil {
			t.Fatalf("get %s: %v", u, err)
		}
		open, err := assignments.ListOpenByAssignee(child.ID)
		if err != nil {
			t.Fatalf("list open for %s: %v", u, err)
		}
		if len(open) != 1 {
			t.Errorf("%s has %d open assignments, want 1", u, len(open))
		}
	}
}

func TestRunPassSkipsDisabledAndOffDayChores(t *testing.T) {
	_, sched, users, chores, _ := setup(t)

	createChild(t, users, "ada", nil)
	createDailyChore(t, chores, "dishes", false)

	disabled := createDailyChore(t, chores, "mop", false)
	disabled.Disabled = true
	if _, err := chores.Update(disabled.ID, *disabled); err != nil {
		t.Fatalf("disable chore: %v", err)
	}

	// passDay is a Monday, so a Tuesday chore is not due.
	if _, err := chores.Create(model.Chore{
		Name:        "trash",
		IsRecurring: true,
		Recurrence:  model.RecurrenceWeekly,
		DayOfWeek:   "tuesday",
	}); err != nil {
		t.Fatalf("create weekly chore: %v", err)
	}

	sum := sched.RunPass(context.Background(), passDay)
	if sum.Created != 1 {
		t.Fatalf("created = %d, want 1 (dishes only)", sum.Created)
	}
}

func TestRunPassAgeRestriction(t *testing.T) {
	_, sched, users, chores, assignments := setup(t)

	older := time.Date(2012, 6, 1, 0, 0, 0, 0, time.UTC) // 13 on passDay
	younger := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	teen := createChild(t, users, "teen", &older)
	createChild(t, users, "kid", &younger)

	minAge := 10
	timeDue := "16:30"
	if _, err := chores.Create(model.Chore{
		Name:          "mow the lawn",
		IsRecurring:   true,
		Recurrence:    model.RecurrenceDaily,
		AgeRestricted: true,
		MinimumAge:    &minAge,
		TimeDue:       &timeDue,
	}); err != nil {
		t.Fatalf("create chore: %v", err)
	}

	sum := sched.RunPass(context.Background(), passDay)
	if sum.Created != 1 {
		t.Fatalf("created = %d, want 1", sum.Created)
	}

	open, err := assignments.ListOpenByAssignee(teen.ID)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("teen has %d assignments, want 1 (only eligible child)", len(open))
	}

	want := time.Date(2026, 3, 2, 16, 30, 0, 0, time.UTC)
	if !open[0].DueDate.Equal(want) {
		t.Errorf("due date = %v, want %v", open[0].DueDate, want)
	}
}

func TestRunPassNoEligibleChildren(t *testing.T) {
	_, sched, users, chores, _ := setup(t)

	// Child with no birth date on record cannot satisfy an age restriction.
	createChild(t, users, "kid", nil)

	minAge := 12
	if _, err := chores.Create(model.Chore{
		Name:          "use the grill",
		IsRecurring:   true,
		Recurrence:    model.RecurrenceDaily,
		AgeRestricted: true,
		MinimumAge:    &minAge,
	}); err != nil {
		t.Fatalf("create chore: %v", err)
	}

	sum := sched.RunPass(context.Background(), passDay)
	if sum.Created != 0 || sum.Failures != 0 {
		t.Fatalf("pass = %+v, want nothing created and no failures", sum)
	}
}

func TestRunPassDeterministicWithSeed(t *testing.T) {
	pick := func(t *testing.T) string {
		_, sched, users, chores, assignments := setup(t)
		createChild(t, users, "ada", nil)
		createChild(t, users, "ben", nil)
		createDailyChore(t, chores, "dishes", false)

		if sum := sched.RunPass(context.Background(), passDay); sum.Created != 1 {
			t.Fatalf("created = %d, want 1", sum.Created)
		}
		for _, name := range []string{"ada", "ben"} {
			u, err := users.GetByUsername(name)
			if err != nil {
				t.Fatalf("get %s: %v", name, err)
			}
			open, err := assignments.ListOpenByAssignee(u.ID)
			if err != nil {
				t.Fatalf("list open: %v", err)
			}
			if len(open) == 1 {
				return name
			}
		}
		t.Fatal("no assignee found")
		return ""
	}

	first := pick(t)
	for i := 0; i < 3; i++ {
		if got := pick(t); got != first {
			t.Fatalf("seeded pass chose %s, earlier run chose %s", got, first)
		}
	}
}

func TestSeedLoadsWindow(t *testing.T) {
	db, sched, users, chores, assignments := setup(t)

	child := createChild(t, users, "ada", nil)
	chore := createDailyChore(t, chores, "dishes", false)

	todayStart := passDay
	completeAt := func(t *testing.T, ts time.Time) {
		t.Helper()
		a, err := assignments.Create(chore.ID, child.ID, ts)
		if err != nil {
			t.Fatalf("create assignment: %v", err)
		}
		_, err = db.Exec(
			`UPDATE assignments SET is_completed = 1, completed_at = ?, closed = 1, closed_at = ? WHERE id = ?`,
			ts, ts, a.ID,
		)
		if err != nil {
			t.Fatalf("complete assignment: %v", err)
		}
	}

	completeAt(t, todayStart.AddDate(0, 0, -7))      // oldest included instant
	completeAt(t, todayStart.Add(-time.Microsecond)) // just inside the window
	completeAt(t, todayStart)                        // excluded, upper bound is open
	completeAt(t, todayStart.AddDate(0, 0, -8))      // excluded, too old

	children, err := users.ListActiveChildren()
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	loads := sched.seedLoads(children, passDay)
	if loads[child.ID] != 2 {
		t.Fatalf("load = %d, want 2 (window is half-open over the trailing 7 days)", loads[child.ID])
	}
}

func TestSeedLoadsIncludesOpenAssignments(t *testing.T) {
	_, sched, users, chores, assignments := setup(t)

	ada := createChild(t, users, "ada", nil)
	ben := createChild(t, users, "ben", nil)
	chore := createDailyChore(t, chores, "dishes", false)

	if _, err := assignments.Create(chore.ID, ada.ID, passDay.AddDate(0, 0, -1)); err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	children, err := users.ListActiveChildren()
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	loads := sched.seedLoads(children, passDay)
	if loads[ada.ID] != 1 {
		t.Errorf("ada load = %d, want 1", loads[ada.ID])
	}
	if loads[ben.ID] != 0 {
		t.Errorf("ben load = %d, want 0", loads[ben.ID])
	}
}

func TestCloseOverdue(t *testing.T) {
	_, sched, users, chores, assignments := setup(t)

	child := createChild(t, users, "ada", nil)
	chore := createDailyChore(t, chores, "dishes", false)

	now := passDay.Add(20 * time.Hour)
	atBoundary, err := assignments.Create(chore.ID, child.ID, now)
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	future, err := assignments.Create(chore.ID, child.ID, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	closed, err := sched.CloseOverdue(context.Background(), now)
	if err != nil {
		t.Fatalf("close overdue: %v", err)
	}
	if closed != 1 {
		t.Fatalf("closed = %d, want 1 (due exactly at now is overdue)", closed)
	}

	got, err := assignments.GetByID(atBoundary.ID)
	if err != nil {
		t.Fatalf("get assignment: %v", err)
	}
	if !got.Closed || got.ClosedAt == nil {
		t.Error("boundary assignment should be closed with a timestamp")
	}

	got, err = assignments.GetByID(future.ID)
	if err != nil {
		t.Fatalf("get assignment: %v", err)
	}
	if got.Closed {
		t.Error("future assignment should stay open")
	}

	// The sweep is idempotent.
	closed, err = sched.CloseOverdue(context.Background(), now)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if closed != 0 {
		t.Fatalf("second sweep closed %d, want 0", closed)
	}
}

func TestRunPassSpreadsLoad(t *testing.T) {
	_, sched, users, chores, assignments := setup(t)

	createChild(t, users, "ada", nil)
	createChild(t, users, "ben", nil)
	for i := 0; i < 8; i++ {
		createDailyChore(t, chores, "chore-"+string(rune('a'+i)), false)
	}

	sum := sched.RunPass(context.Background(), passDay)
	if sum.Created != 8 {
		t.Fatalf("created = %d, want 8", sum.Created)
	}

	// With in-pass load updates neither child should take everything.
	for _, name := range []string{"ada", "ben"} {
		u, err := users.GetByUsername(name)
		if err != nil {
			t.Fatalf("get %s: %v", name, err)
		}
		open, err := assignments.ListOpenByAssignee(u.ID)
		if err != nil {
			t.Fatalf("list open: %v", err)
		}
		if len(open) == 0 || len(open) == 8 {
			t.Errorf("%s got %d of 8 chores, want a split", name, len(open))
		}
	}
}
