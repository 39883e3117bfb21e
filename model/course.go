package model

import (
	"time"

	"gorm.io/gorm"
)

// Course represents a purchasable catalog item. Price is stored in the minor
// currency unit (paise) and is the only amount the server ever charges.
type Course struct {
	ID          string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Category    string         `gorm:"type:varchar(100)" json:"category"`
	Instructor  string         `gorm:"type:varchar(255)" json:"instructor"`
	Image       string         `gorm:"type:varchar(512)" json:"image"`
	Price       int64          `gorm:"not null;default:0" json:"price"`
	IsActive    bool           `gorm:"not null;default:true;index" json:"is_active"`

	// Relationships
	Enrollments []Enrollment `gorm:"foreignKey:CourseID;constraint:OnDelete:RESTRICT" json:"-"`
}

// TableName specifies the table name for Course
func (Course) TableName() string {
	return "courses"
}
