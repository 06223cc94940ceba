package feature

import "errors"

var (
	// ErrDuplicateFeature is returned when adding an id that already exists.
	ErrDuplicateFeature = errors.New("feature already exists")
	// ErrFeatureNotFound is returned when an operation names an unknown id.
	ErrFeatureNotFound = errors.New("feature not found")
	// ErrNotActive is returned by mutations on a store that was never activated.
	ErrNotActive = errors.New("feature store is not active")
	// ErrAlreadyActive is returned when activating a store a second time.
	ErrAlreadyActive = errors.New("feature store is already active")
	// ErrUnknownType is returned when a type has no registered store.
	ErrUnknownType = errors.New("unknown feature type")
	// ErrDuplicateType is returned when a pool already holds a store of the type.
	ErrDuplicateType = errors.New("feature type already registered")
	// ErrInvalidArgument marks missing or malformed constructor and call arguments.
	ErrInvalidArgument = errors.New("invalid argument")
)
