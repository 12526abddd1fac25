// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"huddle/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder.
type Options struct {
	NumUsers         int
	NumGroups        int
	MessagesPerGroup int
	// SkipBcrypt stores the plaintext password instead of hashing it.
	// Hashing dominates seeding time for large user counts.
	SkipBcrypt bool
}

var builtInGroupNames = []string{
	"General", "Random", "Gaming", "Music", "Movies", "Fitness",
	"Food", "Travel", "Technology", "Books", "Sports", "Pets",
}

var reactionTypes = []string{"thumbsup", "heart", "laugh", "tada", "eyes"}

// Seeder populates the database with demo users, groups, and conversations.
type Seeder struct {
	db  *gorm.DB
	rng *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	//nolint:gosec // Weak random number generator is fine for seeding
	return &Seeder{db: db, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// ClearAll removes all seeded data. Tables are emptied child-first so the
// statement order also works on databases without cascading truncate.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")

	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec(`TRUNCATE TABLE read_receipts, reactions, messages, group_memberships, groups, users RESTART IDENTITY CASCADE`).Error
	}

	for _, table := range []string{"read_receipts", "reactions", "messages", "group_memberships", "groups", "users"} {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Seed populates the database with test data.
func (s *Seeder) Seed(opts Options) error {
	log.Printf("🌱 Starting database seeding with %d users and %d groups...", opts.NumUsers, opts.NumGroups)

	users, err := s.seedUsers(opts)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("✓ %d test users created", len(users))

	groups, err := s.seedGroups(users, opts.NumGroups)
	if err != nil {
		return fmt.Errorf("failed to create groups: %w", err)
	}
	log.Printf("✓ %d groups created", len(groups))

	total, err := s.seedConversations(groups, opts.MessagesPerGroup)
	if err != nil {
		return fmt.Errorf("failed to create messages: %w", err)
	}
	log.Printf("✓ %d messages created", total)

	log.Println("🎉 Database seeding completed successfully!")
	return nil
}

func (s *Seeder) seedUsers(opts Options) ([]models.User, error) {
	password := "password123"
	if !opts.SkipBcrypt {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		password = string(hashed)
	}

	users := make([]models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		username := fmt.Sprintf("%s%d", gofakeit.Username(), i)
		user := models.User{
			Username:  username,
			Email:     fmt.Sprintf("%s@example.com", username),
			Password:  password,
			Bio:       gofakeit.Sentence(8),
			AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		}
		if err := s.db.Create(&user).Error; err != nil {
			log.Printf("Failed to create user %s: %v", username, err)
			continue
		}
		users = append(users, user)

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d users...", i)
		}
	}
	return users, nil
}

func (s *Seeder) seedGroups(users []models.User, count int) ([]models.Group, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("cannot seed groups without users")
	}

	groups := make([]models.Group, 0, count)
	for i := 0; i < count; i++ {
		owner := users[s.rng.Intn(len(users))]

		name := gofakeit.NounAbstract()
		if i < len(builtInGroupNames) {
			name = builtInGroupNames[i]
		}

		group := models.Group{
			Name:        name,
			Description: gofakeit.Sentence(10),
			CreatedBy:   owner.ID,
		}
		if err := s.db.Create(&group).Error; err != nil {
			return nil, err
		}

		memberships := []models.GroupMembership{{
			GroupID: group.ID,
			UserID:  owner.ID,
			Role:    models.GroupMembershipRoleOwner,
		}}
		for _, u := range users {
			if u.ID == owner.ID {
				continue
			}
			// Roughly half the user base joins each group.
			if s.rng.Float32() < 0.5 {
				memberships = append(memberships, models.GroupMembership{
					GroupID: group.ID,
					UserID:  u.ID,
					Role:    models.GroupMembershipRoleMember,
				})
			}
		}
		if err := s.db.Create(&memberships).Error; err != nil {
			return nil, err
		}

		groups = append(groups, group)
	}
	return groups, nil
}

// seedConversations fills each group with sequenced messages plus a scatter
// of reactions and read receipts from other members.
func (s *Seeder) seedConversations(groups []models.Group, perGroup int) (int, error) {
	total := 0
	for _, group := range groups {
		var members []models.GroupMembership
		if err := s.db.Where("group_id = ?", group.ID).Find(&members).Error; err != nil {
			return total, err
		}
		if len(members) == 0 {
			continue
		}

		for seq := 1; seq <= perGroup; seq++ {
			sender := members[s.rng.Intn(len(members))]
			message := models.Message{
				GroupID:   group.ID,
				SenderID:  sender.UserID,
				Content:   gofakeit.Sentence(s.rng.Intn(12) + 3),
				Seq:       uint64(seq),
				CreatedAt: time.Now().Add(-time.Duration(perGroup-seq) * time.Minute),
			}
			if err := s.db.Create(&message).Error; err != nil {
				return total, err
			}
			total++

			for _, m := range members {
				if m.UserID == sender.UserID {
					continue
				}
				if s.rng.Float32() < 0.2 {
					reaction := models.Reaction{
						MessageID:    message.ID,
						UserID:       m.UserID,
						ReactionType: reactionTypes[s.rng.Intn(len(reactionTypes))],
					}
					if err := s.db.Create(&reaction).Error; err != nil {
						return total, err
					}
				}
				if s.rng.Float32() < 0.6 {
					receipt := models.ReadReceipt{
						MessageID: message.ID,
						UserID:    m.UserID,
						ReadAt:    message.CreatedAt.Add(time.Duration(s.rng.Intn(300)) * time.Second),
					}
					if err := s.db.Create(&receipt).Error; err != nil {
						return total, err
					}
				}
			}
		}

		// Keep the sequence counter consistent with the seeded history.
		if err := s.db.Model(&models.Group{}).Where("id = ?", group.ID).
			Update("last_seq", perGroup).Error; err != nil {
			return total, err
		}
	}
	return total, nil
}
