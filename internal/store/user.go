package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var birthDate sql.NullTime

	err := scanner.Scan(&u.ID, &u.Username, &u.Name, &u.Role, &birthDate, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if birthDate.Valid {
		t := birthDate.Time.UTC()
		u.BirthDate = &t
	}
	return &u, nil
}

const userCols = `id, username, name, role, birth_date, active, created_at, updated_at`

func (s *UserStore) Create(username, name, passwordHash string, role model.Role, birthDate *time.Time) (*model.User, error) {
	var bd sql.NullTime
	if birthDate != nil {
		bd = sql.NullTime{Time: birthDate.UTC(), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO users (username, name, password_hash, role, birth_date) VALUES (?, ?, ?, ?, ?)`,
		username, name, passwordHash, role, bd,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByUsername(username string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// GetChild returns the active child-role user with the given id, or nil.
func (s *UserStore) GetChild(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ? AND role = 'child' AND active = 1`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return u, nil
}

// ListActiveChildren returns every active child-role user, the candidate
// pool for a scheduling pass.
func (s *UserStore) ListActiveChildren() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users WHERE role = 'child' AND active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) GetPasswordHash(username string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM users WHERE username = ? AND active = 1`, username).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get password hash: %w", err)
	}
	return hash, nil
}

func (s *UserStore) SetActive(id int64, active bool) error {
	_, err := s.db.Exec(`UPDATE users SET active = ?, updated_at = ? WHERE id = ?`, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return nil
}
