package store

import "errors"

var (
	// ErrInvalidInput wraps validation failures on inputs and patches.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidParent is returned when a collection parent is missing,
	// deleted, or belongs to another profile.
	ErrInvalidParent = errors.New("invalid parent collection")

	// ErrCollectionCycle is returned when a move would make a collection its
	// own ancestor.
	ErrCollectionCycle = errors.New("collection cycle")

	// ErrSchemaUnavailable marks a store whose schema initialisation gave up.
	// Every later storage error on such a store is fatal, not transient.
	ErrSchemaUnavailable = errors.New("schema unavailable")

	// ErrVectorsUnavailable is returned by embedding operations when the vec0
	// extension could not create its table.
	ErrVectorsUnavailable = errors.New("vector index unavailable")
)
