// Command migrate creates or updates the database tables and checks the connection.
//
// Usage: go run ./cmd/migrate
package main

import (
	"log"

	"github.com/placementpulse/api/config"
	"github.com/placementpulse/api/database"
)

func main() {
	log.Println("=== GORM Migration ===")

	// Load environment variables
	if err := config.LoadENV(); err != nil {
		log.Fatal("Failed to load environment variables:", err)
	}

	// Initialize GORM connection
	store, err := database.StartGORM()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer store.Close()

	// Run migrations
	if err := store.Init(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Health check
	if err := store.HealthCheck(); err != nil {
		log.Fatal("Database health check failed:", err)
	}

	log.Println("✅ All migrations completed successfully!")
	log.Println("✅ Database connection healthy!")
	log.Println("\nTables:")
	log.Println("  - users")
	log.Println("  - courses")
	log.Println("  - enrollments")
	log.Println("  - payment_records")
	log.Println("  - announcements")
	log.Println("  - cron_job_logs")
}
