package model

import "time"

// Role classifies a user for permission checks. Business logic resolves
// the role once per request instead of re-querying group membership.
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// AgeOn returns the user's age in whole years on the given date, or -1 if
// no birth date is recorded. The year difference is decremented by one when
// the month/day of `on` precedes the birth month/day.
func (u *User) AgeOn(on time.Time) int {
	if u.BirthDate == nil {
		return -1
	}
	b := u.BirthDate.UTC()
	on = on.UTC()
	age := on.Year() - b.Year()
	if on.Month() < b.Month() || (on.Month() == b.Month() && on.Day() < b.Day()) {
		age--
	}
	return age
}
