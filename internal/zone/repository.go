package zone

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for zones.
type Repository interface {
	Create(ctx context.Context, z *Zone) error
	Get(ctx context.Context, id string) (*Zone, error)
	GetBySlug(ctx context.Context, slug string) (*Zone, error)
	List(ctx context.Context) ([]Zone, error)
	Update(ctx context.Context, z *Zone) error
	Delete(ctx context.Context, id string) error
	Upsert(ctx context.Context, z *Zone) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed zone repository.
//
// Parameters:
//   - db: Open SQLite connection used for zone queries
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
//
// Security: Uses parameterised SQL queries to prevent injection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const zoneColumns = "id, name, slug, latitude, longitude, radius, passive, created_at, updated_at"

// Create inserts a new zone, generating an ID if one is not set.
func (r *SQLiteRepository) Create(ctx context.Context, z *Zone) error {
	if z == nil {
		return fmt.Errorf("zone is required")
	}
	if err := Validate(z); err != nil {
		return err
	}
	if z.ID == "" {
		z.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	z.CreatedAt = now
	z.UpdatedAt = now

	query := `INSERT INTO zones (` + zoneColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		z.ID, z.Name, z.Slug, z.Latitude, z.Longitude, z.Radius,
		boolToInt(z.Passive),
		z.CreatedAt.Format(time.RFC3339),
		z.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrZoneExists
		}
		return fmt.Errorf("inserting zone: %w", err)
	}
	return nil
}

// Get retrieves a zone by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM zones WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetBySlug retrieves a zone by slug.
func (r *SQLiteRepository) GetBySlug(ctx context.Context, slug string) (*Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM zones WHERE slug = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, slug))
}

// List returns all zones ordered by slug.
func (r *SQLiteRepository) List(ctx context.Context) ([]Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM zones ORDER BY slug`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying zones: %w", err)
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, *z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating zones: %w", err)
	}
	return zones, nil
}

// Update persists changes to an existing zone.
func (r *SQLiteRepository) Update(ctx context.Context, z *Zone) error {
	if z == nil || z.ID == "" {
		return fmt.Errorf("zone with ID is required")
	}
	if err := Validate(z); err != nil {
		return err
	}
	z.UpdatedAt = time.Now().UTC()

	query := `UPDATE zones SET name = ?, slug = ?, latitude = ?, longitude = ?,
		radius = ?, passive = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		z.Name, z.Slug, z.Latitude, z.Longitude, z.Radius,
		boolToInt(z.Passive),
		z.UpdatedAt.Format(time.RFC3339),
		z.ID,
	)
	if err != nil {
		return fmt.Errorf("updating zone: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// Delete removes a zone by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM zones WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting zone: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// Upsert creates the zone or, if a zone with the same slug exists,
// updates it in place. Used at startup to sync configured zones.
func (r *SQLiteRepository) Upsert(ctx context.Context, z *Zone) error {
	existing, err := r.GetBySlug(ctx, z.Slug)
	switch {
	case errors.Is(err, ErrZoneNotFound):
		return r.Create(ctx, z)
	case err != nil:
		return err
	default:
		z.ID = existing.ID
		z.CreatedAt = existing.CreatedAt
		return r.Update(ctx, z)
	}
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanOne(row *sql.Row) (*Zone, error) {
	z, err := scanZone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrZoneNotFound
	}
	return z, err
}

func scanZone(s scanner) (*Zone, error) {
	var (
		z                    Zone
		passive              int
		createdAt, updatedAt string
	)
	err := s.Scan(&z.ID, &z.Name, &z.Slug, &z.Latitude, &z.Longitude,
		&z.Radius, &passive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning zone: %w", err)
	}
	z.Passive = passive != 0
	// Timestamps are written by us in RFC3339; parse errors are ignored.
	z.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	z.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &z, nil
}

// Validate checks that a zone definition is usable.
func Validate(z *Zone) error {
	if z.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidZone)
	}
	if z.Slug == "" {
		return fmt.Errorf("%w: slug is required", ErrInvalidZone)
	}
	if z.Latitude < -90 || z.Latitude > 90 {
		return fmt.Errorf("%w: latitude %.5f out of range", ErrInvalidZone, z.Latitude)
	}
	if z.Longitude < -180 || z.Longitude > 180 {
		return fmt.Errorf("%w: longitude %.5f out of range", ErrInvalidZone, z.Longitude)
	}
	if z.Radius <= 0 {
		return fmt.Errorf("%w: radius must be positive", ErrInvalidZone)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks for SQLite unique constraint violations.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
