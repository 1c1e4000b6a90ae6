package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/push-fanout/internal/repository"
	"gorm.io/gorm"
)

func createDeliveryRecordsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_delivery_records",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryRecordModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_delivery_records_user_timestamp ON delivery_records (user_id, timestamp DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_delivery_records_unread ON delivery_records (user_id) WHERE is_read = false`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryRecordModel{})
		},
	}
}
