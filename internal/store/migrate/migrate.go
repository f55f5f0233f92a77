// Package migrate owns the database schema. Queries live in store/postgres;
// this package only creates and evolves the tables they run against.
package migrate

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type userRow struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Email             string     `gorm:"type:text;not null;uniqueIndex"`
	HashedPassword    string     `gorm:"type:text;not null"`
	EmailConfirmedAt  *time.Time `gorm:"type:timestamptz"`
	ConfirmationToken *string    `gorm:"type:text;uniqueIndex"`
	CreatedAt         time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt         time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

func (userRow) TableName() string { return "users" }

type profileRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:text;not null;default:''"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
	User      userRow   `gorm:"foreignKey:ID;references:ID;constraint:OnDelete:CASCADE"`
}

func (profileRow) TableName() string { return "profiles" }

type conversationRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_conversations_user_updated,priority:1"`
	Title     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();index:idx_conversations_user_updated,priority:2,sort:desc"`
	User      userRow   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (conversationRow) TableName() string { return "conversations" }

type messageRow struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID       `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1"`
	Role           string          `gorm:"type:text;not null;check:chk_messages_role,role IN ('user','assistant')"`
	Content        string          `gorm:"type:text;not null"`
	CreatedAt      time.Time       `gorm:"type:timestamptz;not null;default:now();index:idx_messages_conversation_created,priority:2"`
	Seq            int64           `gorm:"autoIncrement;not null"` // tie-break for equal created_at
	Conversation   conversationRow `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

func (messageRow) TableName() string { return "messages" }

type revokedTokenRow struct {
	JTI       string    `gorm:"column:jti;type:text;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	ExpiresAt time.Time `gorm:"type:timestamptz;not null;index"`
}

func (revokedTokenRow) TableName() string { return "revoked_tokens" }

// Run applies the schema to the database at dsn.
func Run(dsn string) error {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	defer sqlDB.Close()

	err = db.AutoMigrate(
		&userRow{},
		&profileRow{},
		&conversationRow{},
		&messageRow{},
		&revokedTokenRow{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("[Migrate] Database migration completed")
	return nil
}
