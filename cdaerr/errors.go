// Package cdaerr defines the typed error kinds shared across the CDA
// pipeline components, mirroring the guidewire.delta_log DeltaError /
// DeltaValidationError split from the original implementation but
// generalized to the full set of error kinds the pipeline can raise.
package cdaerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of run-level vs. entity-level
// propagation.
type Kind string

const (
	// ManifestMalformed is fatal for the whole run.
	ManifestMalformed Kind = "manifest_malformed"
	// EntityMissing demotes to a warning; the entity is skipped.
	EntityMissing Kind = "entity_missing"
	// StoreTransient is retried with backoff.
	StoreTransient Kind = "store_transient"
	// StorePermanent is fatal for the entity.
	StorePermanent Kind = "store_permanent"
	// SchemaDiscoveryFailed is fatal for the entity.
	SchemaDiscoveryFailed Kind = "schema_discovery_failed"
	// CommitConflict is retried up to a cap, then fatal for the entity.
	CommitConflict Kind = "commit_conflict"
	// CheckpointFailed is a warning; the commit itself remains durable.
	CheckpointFailed Kind = "checkpoint_failed"
	// DuplicateTimestampFolder is a warning; the duplicate is dropped.
	DuplicateTimestampFolder Kind = "duplicate_timestamp_folder"
)

// Error wraps an underlying error with a Kind so callers can branch on
// propagation policy with errors.As.
type Error struct {
	Kind  Kind
	Table string
	Err   error
}

func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Table, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, table string, err error) *Error {
	return &Error{Kind: kind, Table: table, Err: err}
}

// Wrap is a convenience for New that formats err with fmt.Errorf-style
// wrapping, matching the teacher's "%w" idiom.
func Wrap(kind Kind, table, msg string, err error) *Error {
	return New(kind, table, fmt.Errorf("%s: %w", msg, err))
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, returning ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsFatalForRun reports whether the error kind should abort the
// orchestrator before fan-out, per spec §7.
func IsFatalForRun(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == ManifestMalformed
}

// IsWarning reports whether the error kind only accumulates on the
// entity's Result without affecting other entities.
func IsWarning(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case EntityMissing, CheckpointFailed, DuplicateTimestampFolder:
		return true
	default:
		return false
	}
}
