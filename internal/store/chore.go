package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var timeDue sql.NullString
	var minimumAge sql.NullInt64
	var locationID sql.NullInt64

	err := scanner.Scan(
		&c.ID, &c.Name, &c.Description, &c.Points,
		&c.PenalizeIncomplete, &c.PenaltyAmount,
		&c.IsRecurring, &c.Recurrence, &c.DayOfWeek, &c.DayOfMonth,
		&timeDue, &c.AssignToAll, &c.Disabled,
		&c.AgeRestricted, &minimumAge, &locationID,
		&c.VideoName, &c.VideoSource,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if timeDue.Valid {
		c.TimeDue = &timeDue.String
	}
	if minimumAge.Valid {
		age := int(minimumAge.Int64)
		c.MinimumAge = &age
	}
	if locationID.Valid {
		c.LocationID = &locationID.Int64
	}
	return &c, nil
}

const choreCols = `id, name, description, points, penalize_incomplete, penalty_amount,
	is_recurring, recurrence, day_of_week, day_of_month, time_due, assign_to_all,
	disabled, age_restricted, minimum_age, location_id,
	instructions_video_name, instructions_video_source, created_at, updated_at`

func (s *ChoreStore) Create(c model.Chore) (*model.Chore, error) {
	var timeDue sql.NullString
	if c.TimeDue != nil {
		timeDue = sql.NullString{String: *c.TimeDue, Valid: true}
	}
	var minimumAge sql.NullInt64
	if c.MinimumAge != nil {
		minimumAge = sql.NullInt64{Int64: int64(*c.MinimumAge), Valid: true}
	}
	var locationID sql.NullInt64
	if c.LocationID != nil {
		locationID = sql.NullInt64{Int64: *c.LocationID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO chores (name, description, points, penalize_incomplete, penalty_amount,
			is_recurring, recurrence, day_of_week, day_of_month, time_due, assign_to_all,
			disabled, age_restricted, minimum_age, location_id,
			instructions_video_name, instructions_video_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Description, c.Points, c.PenalizeIncomplete, c.PenaltyAmount,
		c.IsRecurring, c.Recurrence, c.DayOfWeek, c.DayOfMonth, timeDue, c.AssignToAll,
		c.Disabled, c.AgeRestricted, minimumAge, locationID,
		c.VideoName, c.VideoSource,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChoreStore) GetByID(id int64) (*model.Chore, error) {
	row := s.db.QueryRow(`SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

func (s *ChoreStore) List() ([]model.Chore, error) {
	rows, err := s.db.Query(`SELECT ` + choreCols + ` FROM chores ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()
	return collectChores(rows)
}

// ListDueOn returns enabled chores due on the given day, split by the
// assign-to-all flag. The recurrence predicate is applied in SQL so the
// scheduler never loads chores that are not due.
func (s *ChoreStore) ListDueOn(day time.Time, assignToAll bool) ([]model.Chore, error) {
	clause, args := recurrence.DueTodayClause(day)
	query := `SELECT ` + choreCols + ` FROM chores WHERE disabled = 0 AND assign_to_all = ? AND ` + clause + ` ORDER BY id`
	rows, err := s.db.Query(query, append([]any{assignToAll}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list due chores: %w", err)
	}
	defer rows.Close()
	return collectChores(rows)
}

func (s *ChoreStore) Update(id int64, c model.Chore) (*model.Chore, error) {
	var timeDue sql.NullString
	if c.TimeDue != nil {
		timeDue = sql.NullString{String: *c.TimeDue, Valid: true}
	}
	var minimumAge sql.NullInt64
	if c.MinimumAge != nil {
		minimumAge = sql.NullInt64{Int64: int64(*c.MinimumAge), Valid: true}
	}
	var locationID sql.NullInt64
	if c.LocationID != nil {
		locationID = sql.NullInt64{Int64: *c.LocationID, Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE chores SET name = ?, description = ?, points = ?, penalize_incomplete = ?,
			penalty_amount = ?, is_recurring = ?, recurrence = ?, day_of_week = ?,
			day_of_month = ?, time_due = ?, assign_to_all = ?, disabled = ?,
			age_restricted = ?, minimum_age = ?, location_id = ?,
			instructions_video_name = ?, instructions_video_source = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Description, c.Points, c.PenalizeIncomplete,
		c.PenaltyAmount, c.IsRecurring, c.Recurrence, c.DayOfWeek,
		c.DayOfMonth, timeDue, c.AssignToAll, c.Disabled,
		c.AgeRestricted, minimumAge, locationID,
		c.VideoName, c.VideoSource, time.Now().UTC(),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChoreStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}

func collectChores(rows *sql.Rows) ([]model.Chore, error) {
	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}
