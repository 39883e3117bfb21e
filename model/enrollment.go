package model

import (
	"time"
)

// EnrollmentStatus is the lifecycle state of a single course enrollment
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusRefunded  EnrollmentStatus = "refunded"
)

// Enrollment is the persisted proof that a user bought access to a course.
// The (user_id, course_id) pair is unique, so a user can hold at most one
// enrollment per course whatever its status.
type Enrollment struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UserID        uint             `gorm:"not null;uniqueIndex:idx_enrollments_user_course" json:"user_id"`
	CourseID      string           `gorm:"type:varchar(64);not null;uniqueIndex:idx_enrollments_user_course;index" json:"course_id"`
	EnrolledAt    time.Time        `gorm:"not null" json:"enrolled_at"`
	Progress      int              `gorm:"not null;default:0;check:progress >= 0 AND progress <= 100" json:"progress"`
	TransactionID string           `gorm:"type:varchar(100)" json:"transaction_id"`
	PaymentID     string           `gorm:"type:varchar(100);index" json:"payment_id"`
	OrderID       string           `gorm:"type:varchar(100);index" json:"order_id"`
	Status        EnrollmentStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`

	// Relationships
	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Course Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

// TableName specifies the table name for Enrollment
func (Enrollment) TableName() string {
	return "enrollments"
}
