// Command seed populates the database with demo data for development.
package main

import (
	"flag"
	"log"

	"huddle/internal/bootstrap"
	"huddle/internal/config"
	"huddle/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numGroups := flag.Int("groups", 12, "Number of groups to create")
	perGroup := flag.Int("messages", 40, "Number of messages per group")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	skipBcrypt := flag.Bool("skip-bcrypt", false, "Store plaintext passwords (faster for large seeds)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d groups, %d messages/group, clean=%v\n",
		*numUsers, *numGroups, *perGroup, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, _, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db)

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	if err := s.Seed(seed.Options{
		NumUsers:         *numUsers,
		NumGroups:        *numGroups,
		MessagesPerGroup: *perGroup,
		SkipBcrypt:       *skipBcrypt,
	}); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Println("📧 All test users have the password: password123")
}
