package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/placementpulse/api/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnrollmentCommit describes one atomic enrollment write
type EnrollmentCommit struct {
	UserID          uint
	Email           string
	Name            string
	CreateIfMissing bool
	TransactionID   string
	Enrollments     []model.Enrollment
}

// FindActiveCourses returns the active catalog courses among ids
func (s *GORMStore) FindActiveCourses(ctx context.Context, ids []string) ([]model.Course, error) {
	var courses []model.Course
	if len(ids) == 0 {
		return courses, nil
	}

	err := s.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&courses).Error
	return courses, err
}

// FindUser looks a user up by id when set, by email otherwise
func (s *GORMStore) FindUser(ctx context.Context, id uint, email string) (*model.User, error) {
	var user model.User
	query := s.db.WithContext(ctx).Preload("Enrollments", func(db *gorm.DB) *gorm.DB {
		return db.Order("enrolled_at ASC, id ASC")
	})

	var err error
	if id != 0 {
		err = query.First(&user, id).Error
	} else {
		err = query.Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CommitEnrollment appends enrollments and sets the legacy user fields in one
// transaction. Rows conflicting with an existing (user_id, course_id) pair are
// skipped by the insert; any skip rolls the whole commit back.
func (s *GORMStore) CommitEnrollment(ctx context.Context, commit EnrollmentCommit) (*model.User, error) {
	var user model.User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, commit.UserID, commit.Email, &user); err != nil {
			if !errors.Is(err, ErrNotFound) || !commit.CreateIfMissing {
				return err
			}
			if err := createStubUser(tx, commit.Email, commit.Name, &user); err != nil {
				return err
			}
		}

		rows := make([]model.Enrollment, len(commit.Enrollments))
		for i, e := range commit.Enrollments {
			e.UserID = user.ID
			rows[i] = e
		}

		if len(rows) > 0 {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
				DoNothing: true,
			}).Create(&rows)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != int64(len(rows)) {
				return ErrDuplicateEnrollment
			}
		}

		updates := map[string]interface{}{
			"enrolled_course": true,
			"progress":        0,
			"transaction_id":  commit.TransactionID,
		}
		if commit.Name != "" {
			updates["name"] = commit.Name
		}
		if err := tx.Model(&model.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return err
		}

		return tx.Preload("Enrollments", func(db *gorm.DB) *gorm.DB {
			return db.Order("enrolled_at ASC, id ASC")
		}).First(&user, user.ID).Error
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func lockUser(tx *gorm.DB, id uint, email string, user *model.User) error {
	query := tx.Clauses(clause.Locking{Strength: "UPDATE"})

	var err error
	if id != 0 {
		err = query.First(user, id).Error
	} else {
		err = query.Where("LOWER(email) = ?", strings.ToLower(email)).First(user).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// createStubUser provisions a password-less account keyed by email
func createStubUser(tx *gorm.DB, email, name string, user *model.User) error {
	stub := model.User{Email: strings.ToLower(email), Name: name, Role: "student"}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(&stub).Error; err != nil {
		return err
	}
	return lockUser(tx, 0, email, user)
}

// ListEnrollments returns a user's enrollments with their courses, newest first
func (s *GORMStore) ListEnrollments(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := s.db.WithContext(ctx).
		Preload("Course", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped()
		}).
		Where("user_id = ?", userID).
		Order("enrolled_at DESC").
		Find(&enrollments).Error
	return enrollments, err
}

// CreatePaymentRecord stores a payment audit record
func (s *GORMStore) CreatePaymentRecord(ctx context.Context, record *model.PaymentRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

// BackfillPaymentUser sets user_id on this email's records that lack one
func (s *GORMStore) BackfillPaymentUser(ctx context.Context, email string, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.PaymentRecord{}).
		Where("LOWER(email) = ? AND user_id IS NULL", strings.ToLower(email)).
		Update("user_id", userID)
	return res.RowsAffected, res.Error
}

// BackfillOrphanPayments links every user-less payment record to the account
// holding the same email
func (s *GORMStore) BackfillOrphanPayments(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Exec(`
		UPDATE payment_records AS p
		SET user_id = u.id, updated_at = NOW()
		FROM users AS u
		WHERE p.user_id IS NULL
		  AND p.deleted_at IS NULL
		  AND u.deleted_at IS NULL
		  AND LOWER(p.email) = LOWER(u.email)
	`)
	return res.RowsAffected, res.Error
}

// ListAnnouncements returns active announcements visible to the audience
func (s *GORMStore) ListAnnouncements(ctx context.Context, audience string, limit int) ([]model.Announcement, error) {
	if limit <= 0 {
		limit = 20
	}

	audiences := []string{"all"}
	if audience != "" && audience != "all" {
		audiences = append(audiences, audience)
	}

	var announcements []model.Announcement
	err := s.db.WithContext(ctx).
		Preload("CreatedBy").
		Where("is_active = ? AND target_audience IN ?", true, audiences).
		Order("created_at DESC").
		Limit(limit).
		Find(&announcements).Error
	return announcements, err
}

// PruneCronLogs hard-deletes cron logs started before the cutoff
func (s *GORMStore) PruneCronLogs(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Unscoped().
		Where("started_at < ?", before).
		Delete(&model.CronJobLog{})
	return res.RowsAffected, res.Error
}

// CountEnrollments returns how many enrollments a user holds
func (s *GORMStore) CountEnrollments(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
