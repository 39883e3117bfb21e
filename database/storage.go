package database

import (
	"errors"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEnrollment is returned when the (user, course) constraint rejects an enrollment
	ErrDuplicateEnrollment = errors.New("user already enrolled in one or more courses")
	// ErrDuplicateEmail is returned when an account with the email already exists
	ErrDuplicateEmail = errors.New("email already registered")
)

// Storage defines the interface that all database implementations must satisfy
type Storage interface {
	// Lifecycle methods
	Init() error
	Close() error
	HealthCheck() error

	// GORM DB access
	GetDB() interface{} // Returns *gorm.DB for GORMStore
}
