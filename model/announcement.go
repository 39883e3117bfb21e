package model

import (
	"time"

	"gorm.io/gorm"
)

// Announcement is an admin-authored update shown on the learner dashboard
type Announcement struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	Title          string         `gorm:"type:varchar(255);not null" json:"title"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	Type           string         `gorm:"type:varchar(30);default:'general'" json:"type"`      // general, course, placement, event
	Priority       string         `gorm:"type:varchar(20);default:'medium'" json:"priority"`   // low, medium, high, urgent
	TargetAudience string         `gorm:"type:varchar(30);default:'all'" json:"target_audience"` // all, enrolled
	IsActive       bool           `gorm:"default:true;index" json:"is_active"`
	CreatedByID    *uint          `gorm:"index" json:"-"`

	CreatedBy *User `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL" json:"created_by,omitempty"`
}
