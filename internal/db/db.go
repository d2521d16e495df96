package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/loomlabs/chatloom/internal/character"
	"github.com/loomlabs/chatloom/internal/chat"
	"github.com/loomlabs/chatloom/internal/document"
	"github.com/loomlabs/chatloom/internal/models"
)

// Connect opens the MySQL database and migrates the schema.
func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&chat.Chat{},
		&chat.Message{},
		&chat.Vote{},
		&chat.Stream{},
		&character.Character{},
		&document.Document{},
		&document.Suggestion{},
	)
}
