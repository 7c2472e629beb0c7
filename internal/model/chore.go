package model

import "time"

// Recurrence cadence values stored on a chore. Empty means no cadence
// (one-off chore).
const (
	RecurrenceDaily   = "daily"
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
)

type Location struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Equipment struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	LocationID  *int64    `json:"location_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Chore is a reusable task definition. The scheduler treats chores as
// read-only; only parents create or edit them.
type Chore struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Points             int       `json:"points"`
	PenalizeIncomplete bool      `json:"penalize_incomplete"`
	PenaltyAmount      int       `json:"penalty_amount"`
	IsRecurring        bool      `json:"is_recurring"`
	Recurrence         string    `json:"recurrence"`
	DayOfWeek          string    `json:"day_of_week"`
	DayOfMonth         string    `json:"day_of_month"`
	TimeDue            *string   `json:"time_due"`
	AssignToAll        bool      `json:"assign_to_all"`
	Disabled           bool      `json:"disabled"`
	AgeRestricted      bool      `json:"age_restricted"`
	MinimumAge         *int      `json:"minimum_age"`
	LocationID         *int64    `json:"location_id"`
	VideoName          string    `json:"instructions_video_name"`
	VideoSource        string    `json:"instructions_video_source"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
