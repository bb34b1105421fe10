package zone

import "errors"

var (
	// ErrZoneNotFound is returned when a zone ID or slug does not exist.
	ErrZoneNotFound = errors.New("zone not found")

	// ErrZoneExists is returned when creating a zone whose slug is taken.
	ErrZoneExists = errors.New("zone already exists")

	// ErrInvalidZone is returned when a zone definition fails validation.
	ErrInvalidZone = errors.New("invalid zone")
)
