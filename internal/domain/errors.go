package domain

import "errors"

// Repository errors
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrContention means a transaction kept losing to concurrent writers
	ErrContention = errors.New("transaction contention")
)
