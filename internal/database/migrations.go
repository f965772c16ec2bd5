package database

import (
	"errors"
	"time"

	"github.com/bhai-cabal/tracker/internal/lock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationPurgeExpiredLocks = "2026-07-20_purge_expired_locks"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationPurgeExpiredLocks, apply: purgeExpiredLocks},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// purgeExpiredLocks drops lease rows left behind by crashed holders. Expired
// rows are logically absent either way; clearing them once keeps the table
// from accumulating keys of long-departed members.
func purgeExpiredLocks(db *gorm.DB) error {
	return db.Where("expires_at_ms <= ?", time.Now().UTC().UnixMilli()).
		Delete(&lock.Record{}).Error
}
