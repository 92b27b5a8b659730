/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package storage

import (
	"errors"
	"fmt"
)

// ErrDatabaseNotFound is returned when an operation expects the active
// database file on disk and it is missing.
var ErrDatabaseNotFound = errors.New("database file not found")

// ValidationError rejects a user-supplied path before anything is mutated.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// CollisionError refuses an operation that would overwrite an existing file.
type CollisionError struct {
	Path string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("destination already exists: %s", e.Path)
}

// IntegrityError reports a verification failure: a copied file whose size does
// not match its source, a database failing quick_check, or a table transfer
// whose row counts do not add up.
type IntegrityError struct {
	Path   string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: %s", e.Path, e.Detail)
}

// PartialMigrationError is the worst case of a relocation: the move failed and
// the rollback failed too. The backup file still holds the complete database;
// the message names it so the user can restore by hand.
type PartialMigrationError struct {
	BackupPath  string
	Cause       error
	RollbackErr error
}

func (e *PartialMigrationError) Error() string {
	return fmt.Sprintf("relocation failed and rollback did not complete (backup preserved at %s): %v (rollback: %v)", e.BackupPath, e.Cause, e.RollbackErr)
}

func (e *PartialMigrationError) Unwrap() error { return e.Cause }
