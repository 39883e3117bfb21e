package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered learner
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null;default:''" json:"-"` // Never expose password in JSON
	Name         string         `gorm:"not null;default:''" json:"name"`
	Role         string         `gorm:"type:varchar(20);default:'student'" json:"role"` // student, admin
	TokenVersion int            `gorm:"default:0" json:"-"`                             // Increment to invalidate all user tokens

	// Legacy scalar fields still read by older clients
	EnrolledCourse bool    `gorm:"default:false" json:"enrolled_course"`
	Progress       int     `gorm:"default:0" json:"progress"`
	TransactionID  *string `gorm:"type:varchar(100)" json:"transaction_id"`

	// Relationships
	Enrollments []Enrollment    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"enrollments,omitempty"`
	Payments    []PaymentRecord `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
}
