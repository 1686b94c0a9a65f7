package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateEmail      = errors.New("email already exists")
	ErrDuplicateAssignment = errors.New("patient already assigned to clinician")
	ErrSessionActive       = errors.New("a running session already exists")
	ErrCycleInactive       = errors.New("no active aligner cycle")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
)
