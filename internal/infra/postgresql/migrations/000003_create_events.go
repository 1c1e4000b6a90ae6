package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/push-fanout/internal/repository"
	"gorm.io/gorm"
)

func createEventsTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_events",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.EventModel{}, &repository.EventParticipantModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_event_participants_event_status ON event_participants (event_id, status)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.EventParticipantModel{}, &repository.EventModel{})
		},
	}
}

func createBadgesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_badges",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.BadgeModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BadgeModel{})
		},
	}
}
