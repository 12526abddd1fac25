package seed

import (
	"testing"

	"huddle/internal/database"
	"huddle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSeedDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func TestSeed(t *testing.T) {
	db := newSeedDB(t)
	s := NewSeeder(db)

	opts := Options{NumUsers: 6, NumGroups: 3, MessagesPerGroup: 5, SkipBcrypt: true}
	require.NoError(t, s.Seed(opts))

	var userCount, groupCount, messageCount int64
	require.NoError(t, db.Model(&models.User{}).Count(&userCount).Error)
	require.NoError(t, db.Model(&models.Group{}).Count(&groupCount).Error)
	require.NoError(t, db.Model(&models.Message{}).Count(&messageCount).Error)
	assert.Equal(t, int64(6), userCount)
	assert.Equal(t, int64(3), groupCount)
	assert.Equal(t, int64(15), messageCount)
}

func TestSeed_SequencesAreGapFree(t *testing.T) {
	db := newSeedDB(t)
	s := NewSeeder(db)
	require.NoError(t, s.Seed(Options{NumUsers: 4, NumGroups: 2, MessagesPerGroup: 7, SkipBcrypt: true}))

	var groups []models.Group
	require.NoError(t, db.Find(&groups).Error)
	for _, group := range groups {
		var messages []models.Message
		require.NoError(t, db.Where("group_id = ?", group.ID).Order("seq").Find(&messages).Error)
		require.Len(t, messages, 7)
		for i, msg := range messages {
			assert.Equal(t, uint64(i+1), msg.Seq)
		}
		assert.Equal(t, uint64(7), group.LastSeq, "group counter matches seeded history")
	}
}

func TestSeed_EveryGroupHasAnOwner(t *testing.T) {
	db := newSeedDB(t)
	s := NewSeeder(db)
	require.NoError(t, s.Seed(Options{NumUsers: 5, NumGroups: 4, MessagesPerGroup: 1, SkipBcrypt: true}))

	var groups []models.Group
	require.NoError(t, db.Find(&groups).Error)
	for _, group := range groups {
		var owner models.GroupMembership
		err := db.Where("group_id = ? AND role = ?", group.ID, models.GroupMembershipRoleOwner).
			First(&owner).Error
		require.NoError(t, err)
		assert.Equal(t, group.CreatedBy, owner.UserID)
	}
}

func TestClearAll(t *testing.T) {
	db := newSeedDB(t)
	s := NewSeeder(db)
	require.NoError(t, s.Seed(Options{NumUsers: 3, NumGroups: 2, MessagesPerGroup: 2, SkipBcrypt: true}))
	require.NoError(t, s.ClearAll())

	for _, model := range []interface{}{
		&models.User{}, &models.Group{}, &models.GroupMembership{},
		&models.Message{}, &models.Reaction{}, &models.ReadReceipt{},
	} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Zero(t, count)
	}
}
