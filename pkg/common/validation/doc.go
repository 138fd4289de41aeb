// Package validation provides common validation utilities for configuration
// parameters across the taskpool packages.
//
// The helpers return *errors.ValidationError values so that every constructor
// reports bad input with the same message shape.
package validation
