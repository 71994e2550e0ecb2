package models

import "errors"

// ErrNotFound is returned by repositories when a reminder or user does not
// exist. For the dispatcher a missing owner is permanent for that item: it is
// skipped without being marked notified.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when creating a user with an email that is
// already registered.
var ErrDuplicateEmail = errors.New("email already registered")
