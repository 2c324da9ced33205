package db

import "errors"

// Sentinel errors for type-safe error checking
// Use errors.Is() instead of string comparison
var (
	// Package workflow errors
	ErrPackageNotFound = errors.New("package not found")
	ErrPackageExists   = errors.New("package already exists")
	ErrForbidden       = errors.New("forbidden")
)
