package store

import "errors"

var (
	// ErrNoDocument is returned by a DocumentStore when no organization
	// document has been persisted yet.
	ErrNoDocument = errors.New("no document persisted")

	// ErrDuplicateEmail rejects a sub-user whose email already exists in the
	// directory (case-sensitive exact match).
	ErrDuplicateEmail = errors.New("email already present in the workspace directory")

	// ErrPatientNotFound is returned when a mutation targets an unknown patient.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrStaleWrite rejects a whole-state save carrying a version older than
	// the current one (another mutation landed in between).
	ErrStaleWrite = errors.New("stale write rejected")

	// ErrPersistence wraps a failed durable write after retries are exhausted;
	// the prior in-memory snapshot remains readable.
	ErrPersistence = errors.New("persistence failure")
)
