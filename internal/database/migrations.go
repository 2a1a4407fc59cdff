package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillRoomVersions = "2025-03-01_backfill_room_document_versions"
	migrationDropEmptyRooms       = "2025-03-08_drop_empty_room_documents"
)

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
		{name: migrationBackfillRoomVersions, apply: backfillRoomVersions},
		{name: migrationDropEmptyRooms, apply: dropEmptyRooms},
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

// backfillRoomVersions gives documents written before versioning a valid
// compare-and-swap baseline.
func backfillRoomVersions(db *gorm.DB) error {
	return db.Model(&storage.RoomDocument{}).
		Where("version < 1").
		Update("version", 1).Error
}

// dropEmptyRooms removes documents whose payload is blank or JSON null; such
// rows would otherwise block init-room from ever creating the room.
func dropEmptyRooms(db *gorm.DB) error {
	return db.Where("TRIM(state_json) IN ?", []string{"", "null"}).
		Delete(&storage.RoomDocument{}).Error
}
