package attendance

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidStatus      = errors.New("invalid attendance status")
	ErrUnknownStudent     = errors.New("unknown student")
	ErrUnknownSubject     = errors.New("unknown subject")
	ErrUnknownSection     = errors.New("unknown section")
	ErrSessionNotEditable = errors.New("attendance session is not editable")
	ErrSessionNotFound    = errors.New("attendance session not found")
	ErrSnapshotNotFound   = errors.New("attendance snapshot not found")
)

// PersistenceError is returned when a snapshot could not be written to the store.
// The session records are left untouched, so the save can be retried.
type PersistenceError struct {
	Err      error
	Attempts int
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("saving attendance failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Retryable() bool { return true }

func IsPersistenceError(err error) bool {
	var pErr *PersistenceError
	return errors.As(err, &pErr)
}
