// Package storage persists one JSON room document per room key. Documents are
// replaced wholesale on every write and guarded by a version stamp.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/workshop"
)

const maxRoomIDLength = 190

var (
	// ErrRoomNotFound indicates no document exists for the room key.
	ErrRoomNotFound = errors.New("storage: room not found")
	// ErrVersionConflict indicates the stored version moved since it was loaded.
	ErrVersionConflict = errors.New("storage: version conflict")
	// ErrInvalidRoomID indicates an empty or oversized room key.
	ErrInvalidRoomID = errors.New("storage: invalid room id")
	// ErrMissingRoom indicates Save was called without a document.
	ErrMissingRoom = errors.New("storage: room document required")
)

// Snapshot is a loaded room document and the version it was stored under.
// Version 0 means nothing has been stored yet.
type Snapshot struct {
	Room    *workshop.Room
	Version int64
}

// Store loads and saves room documents.
type Store interface {
	// Load returns ErrRoomNotFound when the room has never been saved.
	Load(ctx context.Context, roomID string) (Snapshot, error)
	// Save replaces the document when the stored version equals
	// expectedVersion and returns the new version. It returns
	// ErrVersionConflict otherwise.
	Save(ctx context.Context, roomID string, room *workshop.Room, expectedVersion int64) (int64, error)
}

// Pinger is implemented by stores backed by a server that can become
// unreachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServiceError annotates storage failures with an operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason code.
func (e *ServiceError) Code() string {
	return e.code
}

// ErrorCode returns the operation.reason code carried by err, or "" when err
// is not a ServiceError.
func ErrorCode(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ValidateRoomID checks a room key before it reaches a backend.
func ValidateRoomID(roomID string) error {
	trimmed := strings.TrimSpace(roomID)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRoomID)
	}
	if len(trimmed) > maxRoomIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidRoomID, maxRoomIDLength)
	}
	return nil
}
