package tracker

import "errors"

var (
	// ErrNoMembers is returned when a group is configured without members.
	ErrNoMembers = errors.New("tracker: group has no members")

	// ErrSnapshotNotFound is returned when no persisted state exists for
	// a group.
	ErrSnapshotNotFound = errors.New("tracker: snapshot not found")
)
