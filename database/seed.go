package database

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/placementpulse/api/model"
	"github.com/placementpulse/api/utils/auth"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	if err := s.SeedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedCourses(); err != nil {
		return fmt.Errorf("failed to seed courses: %w", err)
	}

	if err := s.SeedAnnouncements(); err != nil {
		return fmt.Errorf("failed to seed announcements: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedAdminUser creates the admin that authors announcements
func (s *Seeder) SeedAdminUser() error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", "admin").Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Admin user already exists, skipping...")
		return nil
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		log.Println("⚠️  ADMIN_EMAIL and ADMIN_PASSWORD environment variables not set, skipping admin user creation")
		return nil
	}

	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &model.User{
		Email:        adminEmail,
		PasswordHash: passwordHash,
		Name:         "Placement Cell",
		Role:         "admin",
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Created admin user: %s\n", admin.Email)
	return nil
}

// CatalogCourses is the launch catalog. Prices are in paise.
var CatalogCourses = []model.Course{
	{
		ID:          "gd-practice",
		Title:       "Live GD Practice",
		Description: "Moderated group discussions on current affairs and business cases",
		Category:    "Group Discussion",
		Instructor:  "Placement Pulse Mentors",
		Price:       9900,
		IsActive:    true,
	},
	{
		ID:          "mock-interviews",
		Title:       "Mock Interviews",
		Description: "One-on-one HR and domain interviews with detailed feedback",
		Category:    "Interviews",
		Instructor:  "Placement Pulse Mentors",
		Price:       4900,
		IsActive:    true,
	},
	{
		ID:          "resume-review",
		Title:       "Resume & LinkedIn Review",
		Description: "Line-by-line review of your CV and LinkedIn profile",
		Category:    "Profile Building",
		Instructor:  "Placement Pulse Mentors",
		Price:       2900,
		IsActive:    true,
	},
	{
		ID:          "placement-strategy",
		Title:       "Placement & Internship Strategy Sessions",
		Description: "Sector mapping, shortlisting and preparation plans for SIP and finals",
		Category:    "Strategy",
		Instructor:  "Placement Pulse Mentors",
		Price:       19900,
		IsActive:    true,
	},
}

// SeedCourses upserts the catalog by id so reruns pick up price changes
func (s *Seeder) SeedCourses() error {
	created := 0
	for _, course := range CatalogCourses {
		var existing model.Course
		err := s.db.Unscoped().Where("id = ?", course.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			course := course
			if err := s.db.Create(&course).Error; err != nil {
				return err
			}
			created++
		case err != nil:
			return err
		default:
			if err := s.db.Model(&existing).Updates(map[string]interface{}{
				"title":       course.Title,
				"description": course.Description,
				"category":    course.Category,
				"instructor":  course.Instructor,
				"price":       course.Price,
			}).Error; err != nil {
				return err
			}
		}
	}

	log.Printf("✅ Seeded %d courses (%d new)\n", len(CatalogCourses), created)
	return nil
}

// SeedAnnouncements creates the welcome announcement once, keyed by title
func (s *Seeder) SeedAnnouncements() error {
	const title = "Welcome to Placement Pulse"

	var count int64
	if err := s.db.Model(&model.Announcement{}).Where("title = ?", title).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Welcome announcement already exists, skipping...")
		return nil
	}

	announcement := model.Announcement{
		Title:          title,
		Content:        "Your dashboard lists every course you enroll in. New sessions and updates will show up here.",
		Type:           "general",
		Priority:       "medium",
		TargetAudience: "all",
		IsActive:       true,
	}

	var admin model.User
	if err := s.db.Where("role = ?", "admin").Order("id ASC").First(&admin).Error; err == nil {
		announcement.CreatedByID = &admin.ID
	}

	if err := s.db.Create(&announcement).Error; err != nil {
		return err
	}

	log.Println("✅ Created welcome announcement")
	return nil
}

// RunSeeds is the main function to run all seeds
func RunSeeds(db *gorm.DB) error {
	seeder := NewSeeder(db)
	return seeder.SeedAll()
}
