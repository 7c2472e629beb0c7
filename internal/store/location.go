package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorewheel/internal/model"
)

// LocationStore covers the locations and equipment reference tables.
type LocationStore struct {
	db *sql.DB
}

func NewLocationStore(db *sql.DB) *LocationStore {
	return &LocationStore{db: db}
}

const locationCols = `id, name, description, created_at, updated_at`

func (s *LocationStore) CreateLocation(name, description string) (*model.Location, error) {
	result, err := s.db.Exec(`INSERT INTO locations (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetLocationByID(id)
}

func (s *LocationStore) GetLocationByID(id int64) (*model.Location, error) {
	row := s.db.QueryRow(`SELECT `+locationCols+` FROM locations WHERE id = ?`, id)
	var l model.Location
	err := row.Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &l, nil
}

func (s *LocationStore) ListLocations() ([]model.Location, error) {
	rows, err := s.db.Query(`SELECT ` + locationCols + ` FROM locations ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

const equipmentCols = `id, name, description, location_id, created_at, updated_at`

func (s *LocationStore) CreateEquipment(name, description string, locationID *int64) (*model.Equipment, error) {
	var loc sql.NullInt64
	if locationID != nil {
		loc = sql.NullInt64{Int64: *locationID, Valid: true}
	}
	result, err := s.db.Exec(`INSERT INTO equipment (name, description, location_id) VALUES (?, ?, ?)`, name, description, loc)
	if err != nil {
		return nil, fmt.Errorf("insert equipment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+equipmentCols+` FROM equipment WHERE id = ?`, id)
	return scanEquipment(row)
}

func (s *LocationStore) ListEquipment() ([]model.Equipment, error) {
	rows, err := s.db.Query(`SELECT ` + equipmentCols + ` FROM equipment ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	defer rows.Close()

	var items []model.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan equipment: %w", err)
		}
		items = append(items, *e)
	}
	return items, rows.Err()
}

func scanEquipment(scanner interface{ Scan(...any) error }) (*model.Equipment, error) {
	var e model.Equipment
	var locationID sql.NullInt64
	if err := scanner.Scan(&e.ID, &e.Name, &e.Description, &locationID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if locationID.Valid {
		e.LocationID = &locationID.Int64
	}
	return &e, nil
}
