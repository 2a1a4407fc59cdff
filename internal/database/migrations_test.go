package database

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/storage"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsRepairsLegacyDocuments(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&storage.RoomDocument{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	legacy := []storage.RoomDocument{
		{RoomID: "room-legacy", StateJSON: `{"id":"room-legacy","cards":[],"users":[],"adminId":"a","step":"input"}`, UpdatedAtSeconds: 1},
		{RoomID: "room-null", StateJSON: "null", Version: 3, UpdatedAtSeconds: 1},
	}
	for _, document := range legacy {
		if err := database.Create(&document).Error; err != nil {
			testContext.Fatalf("failed to insert document: %v", err)
		}
	}
	if err := database.Model(&storage.RoomDocument{}).Where("room_id = ?", "room-legacy").Update("version", 0).Error; err != nil {
		testContext.Fatalf("failed to zero legacy version: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored storage.RoomDocument
	if err := database.Where("room_id = ?", "room-legacy").Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload document: %v", err)
	}
	if stored.Version != 1 {
		testContext.Fatalf("expected version to be backfilled, got %d", stored.Version)
	}

	err = database.Where("room_id = ?", "room-null").Take(&storage.RoomDocument{}).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		testContext.Fatalf("expected null document to be dropped, got %v", err)
	}

	for _, name := range []string{migrationBackfillRoomVersions, migrationDropEmptyRooms} {
		var record migrationRecord
		if err := database.Where("name = ?", name).Take(&record).Error; err != nil {
			testContext.Fatalf("expected migration record %s: %v", name, err)
		}
		if record.AppliedAtSeconds == 0 {
			testContext.Fatalf("expected migration timestamp to be set")
		}
	}
}

func TestOpenSQLiteIsIdempotent(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "rooms.db")
	for attempt := 0; attempt < 2; attempt++ {
		db, err := OpenSQLite(databasePath, zap.NewNop())
		if err != nil {
			testContext.Fatalf("open attempt %d failed: %v", attempt, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			testContext.Fatalf("failed to access sql handle: %v", err)
		}
		_ = sqlDB.Close()
	}
}

func TestOpenSQLiteRequiresPath(testContext *testing.T) {
	if _, err := OpenSQLite("", nil); err == nil {
		testContext.Fatalf("expected error for empty path")
	}
}
