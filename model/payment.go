package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentRecord is the best-effort audit trail of a verified gateway payment.
// UserID is filled in later once the account is known.
type PaymentRecord struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    *uint          `gorm:"index" json:"user_id,omitempty"`
	Email     string         `gorm:"type:varchar(255);not null;index" json:"email"`
	OrderID   string         `gorm:"type:varchar(100);not null;index" json:"order_id"`
	PaymentID string         `gorm:"type:varchar(100);not null;index" json:"payment_id"`
	Signature string         `gorm:"type:varchar(128)" json:"-"`
	Amount    int64          `gorm:"not null;default:0" json:"amount"`
	Currency  string         `gorm:"type:varchar(10);default:'INR'" json:"currency"`
	Status    string         `gorm:"type:varchar(20)" json:"status"` // gateway status: created, authorized, captured, refunded, failed
	Method    string         `gorm:"type:varchar(50)" json:"method"`
	CourseIDs pq.StringArray `gorm:"type:text[]" json:"course_ids"`
	Notes     datatypes.JSON `gorm:"type:jsonb" json:"notes,omitempty"`
	Raw       datatypes.JSON `gorm:"type:jsonb" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for PaymentRecord
func (PaymentRecord) TableName() string {
	return "payment_records"
}
