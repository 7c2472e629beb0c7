package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
)

type AssignmentStore struct {
	db *sql.DB
}

func NewAssignmentStore(db *sql.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

func scanAssignment(scanner interface{ Scan(...any) error }) (*model.Assignment, error) {
	var a model.Assignment
	var approvedAt, completedAt, closedAt sql.NullTime

	err := scanner.Scan(
		&a.ID, &a.ChoreID, &a.AssignedTo, &a.DueDate,
		&a.PendingApproval, &a.Approved, &approvedAt,
		&a.IsCompleted, &completedAt,
		&a.Closed, &closedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approvedAt.Valid {
		t := approvedAt.Time.UTC()
		a.ApprovedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		a.CompletedAt = &t
	}
	if closedAt.Valid {
		t := closedAt.Time.UTC()
		a.ClosedAt = &t
	}
	return &a, nil
}

const assignmentCols = `id, chore_id, assigned_to, due_date, pending_approval, approved, approved_at,
	is_completed, completed_at, closed, closed_at, created_at, updated_at`

func (s *AssignmentStore) Create(choreID, assignedTo int64, dueDate time.Time) (*model.Assignment, error) {
	result, err := s.db.Exec(
		`INSERT INTO assignments (chore_id, assigned_to, due_date) VALUES (?, ?, ?)`,
		choreID, assignedTo, dueDate.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AssignmentStore) GetByID(id int64) (*model.Assignment, error) {
	row := s.db.QueryRow(`SELECT `+assignmentCols+` FROM assignments WHERE id = ?`, id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// ListOpenByAssignee returns the child's non-closed assignments ordered by
// due date.
func (s *AssignmentStore) ListOpenByAssignee(userID int64) ([]model.Assignment, error) {
	rows, err := s.db.Query(
		`SELECT `+assignmentCols+` FROM assignments WHERE assigned_to = ? AND closed = 0 ORDER BY due_date ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list open assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// OpenExists reports whether a non-closed assignment of the chore to the
// child has a due date inside [dayStart, dayEnd). This is the scheduler's
// duplicate guard.
func (s *AssignmentStore) OpenExists(choreID, assignedTo int64, dayStart, dayEnd time.Time) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM assignments
		WHERE chore_id = ? AND assigned_to = ? AND closed = 0 AND due_date >= ? AND due_date < ?`,
		choreID, assignedTo, dayStart.UTC(), dayEnd.UTC(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check open assignment: %w", err)
	}
	return count > 0, nil
}

// CountOpenByAssignee returns non-closed assignment counts grouped by child.
func (s *AssignmentStore) CountOpenByAssignee() (map[int64]int, error) {
	rows, err := s.db.Query(`SELECT assigned_to, COUNT(*) FROM assignments WHERE closed = 0 GROUP BY assigned_to`)
	if err != nil {
		return nil, fmt.Errorf("count open assignments: %w", err)
	}
	defer rows.Close()
	return collectCounts(rows)
}

// CountCompletedBetween returns completed-assignment counts grouped by
// child for completed_at in [start, end). The upper bound is exclusive.
func (s *AssignmentStore) CountCompletedBetween(start, end time.Time) (map[int64]int, error) {
	rows, err := s.db.Query(
		`SELECT assigned_to, COUNT(*) FROM assignments
		WHERE is_completed = 1 AND completed_at >= ? AND completed_at < ?
		GROUP BY assigned_to`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("count completed assignments: %w", err)
	}
	defer rows.Close()
	return collectCounts(rows)
}

// CloseOverdue closes every open assignment whose due date has passed (or
// was never set) and returns how many rows changed. Idempotent: closed rows
// are excluded by the filter.
func (s *AssignmentStore) CloseOverdue(now time.Time) (int64, error) {
	now = now.UTC()
	result, err := s.db.Exec(
		`UPDATE assignments SET closed = 1, closed_at = ?, updated_at = ?
		WHERE closed = 0 AND closed_at IS NULL AND (due_date <= ? OR due_date IS NULL)`,
		now, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("close overdue assignments: %w", err)
	}
	return result.RowsAffected()
}

// Lifecycle transitions. Each is a guarded UPDATE re-asserting its
// preconditions so concurrent requests cannot produce lost updates: a
// false return after a passing pre-read means another writer got there
// first.

// MarkReady flags the assignment ready for approval. Guard: not closed,
// not approved. completed_at is only set when unset.
func (s *AssignmentStore) MarkReady(id int64, now time.Time) (bool, error) {
	now = now.UTC()
	result, err := s.db.Exec(
		`UPDATE assignments SET pending_approval = 1, is_completed = 1,
			completed_at = COALESCE(completed_at, ?), updated_at = ?
		WHERE id = ? AND closed = 0 AND approved = 0`,
		now, now, id,
	)
	if err != nil {
		return false, fmt.Errorf("mark ready: %w", err)
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// MarkIncomplete resets the assignment to open. Guard: not closed.
func (s *AssignmentStore) MarkIncomplete(id int64, now time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE assignments SET pending_approval = 0, approved = 0, is_completed = 0,
			completed_at = NULL, approved_at = NULL, closed = 0, closed_at = NULL, updated_at = ?
		WHERE id = ? AND closed = 0`,
		now.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("mark incomplete: %w", err)
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// Approve approves and closes the assignment in one step. Guard: not closed.
func (s *AssignmentStore) Approve(id int64, now time.Time) (bool, error) {
	now = now.UTC()
	result, err := s.db.Exec(
		`UPDATE assignments SET approved = 1, pending_approval = 0, is_completed = 1,
			completed_at = COALESCE(completed_at, ?), approved_at = ?,
			closed = 1, closed_at = ?, updated_at = ?
		WHERE id = ? AND closed = 0`,
		now, now, now, now, id,
	)
	if err != nil {
		return false, fmt.Errorf("approve assignment: %w", err)
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// --- Evidence ---

const evidenceCols = `id, assignment_id, photo_key, video_key, created_at`

func scanEvidence(scanner interface{ Scan(...any) error }) (*model.Evidence, error) {
	var e model.Evidence
	if err := scanner.Scan(&e.ID, &e.AssignmentID, &e.PhotoKey, &e.VideoKey, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *AssignmentStore) CreateEvidence(assignmentID int64, photoKey, videoKey string) (*model.Evidence, error) {
	result, err := s.db.Exec(
		`INSERT INTO assignment_evidence (assignment_id, photo_key, video_key) VALUES (?, ?, ?)`,
		assignmentID, photoKey, videoKey,
	)
	if err != nil {
		return nil, fmt.Errorf("insert evidence: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+evidenceCols+` FROM assignment_evidence WHERE id = ?`, id)
	return scanEvidence(row)
}

// GetEvidence returns the evidence row scoped to the assignment, or nil.
func (s *AssignmentStore) GetEvidence(assignmentID, evidenceID int64) (*model.Evidence, error) {
	row := s.db.QueryRow(
		`SELECT `+evidenceCols+` FROM assignment_evidence WHERE id = ? AND assignment_id = ?`,
		evidenceID, assignmentID,
	)
	e, err := scanEvidence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get evidence: %w", err)
	}
	return e, nil
}

func (s *AssignmentStore) ListEvidence(assignmentID int64) ([]model.Evidence, error) {
	rows, err := s.db.Query(
		`SELECT `+evidenceCols+` FROM assignment_evidence WHERE assignment_id = ? ORDER BY created_at ASC, id ASC`,
		assignmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var items []model.Evidence
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		items = append(items, *e)
	}
	return items, rows.Err()
}

// DeleteEvidence removes the evidence row only while its assignment is
// still open (not completed, closed, or approved). Returns false when the
// guard rejects the delete.
func (s *AssignmentStore) DeleteEvidence(assignmentID, evidenceID int64) (bool, error) {
	result, err := s.db.Exec(
		`DELETE FROM assignment_evidence
		WHERE id = ? AND assignment_id = ?
		AND EXISTS (
			SELECT 1 FROM assignments a
			WHERE a.id = assignment_id AND a.is_completed = 0 AND a.closed = 0 AND a.approved = 0
		)`,
		evidenceID, assignmentID,
	)
	if err != nil {
		return false, fmt.Errorf("delete evidence: %w", err)
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func collectCounts(rows *sql.Rows) (map[int64]int, error) {
	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
