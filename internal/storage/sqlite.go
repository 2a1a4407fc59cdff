package storage

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/workshop"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opSQLiteLoad = "storage.sqlite.load"
	opSQLiteSave = "storage.sqlite.save"
	opSQLitePing = "storage.sqlite.ping"

	fieldRoomID          = "room_id"
	queryRoomID          = fieldRoomID + " = ?"
	queryRoomIDVersion   = fieldRoomID + " = ? AND version = ?"
	reasonQueryFailed    = "query_failed"
	reasonDecodeFailed   = "decode_failed"
	reasonEncodeFailed   = "encode_failed"
	reasonInsertFailed   = "insert_failed"
	reasonUpdateFailed   = "update_failed"
	reasonMissingDB      = "missing_database"
	reasonInvalidRoomID  = "invalid_room_id"
	reasonMissingRoomDoc = "missing_room"
)

var errMissingDatabase = errors.New("database handle is required")

// RoomDocument is the persisted form of one room.
type RoomDocument struct {
	RoomID           string `gorm:"column:room_id;primaryKey;size:190;not null"`
	StateJSON        string `gorm:"column:state_json;type:text;not null"`
	Version          int64  `gorm:"column:version;not null;default:1"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (RoomDocument) TableName() string {
	return "room_documents"
}

// SQLiteStoreConfig describes the dependencies of a SQLiteStore.
type SQLiteStoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// SQLiteStore keeps room documents in a single GORM table.
type SQLiteStore struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewSQLiteStore constructs a store over an already migrated database.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.Database == nil {
		return nil, newServiceError("storage.sqlite.new", reasonMissingDB, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStore{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, roomID string) (Snapshot, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return Snapshot{}, newServiceError(opSQLiteLoad, reasonInvalidRoomID, err)
	}
	var document RoomDocument
	err := s.db.WithContext(ctx).Where(queryRoomID, roomID).Take(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Snapshot{}, ErrRoomNotFound
	}
	if err != nil {
		s.logError(opSQLiteLoad, reasonQueryFailed, err, zap.String(fieldRoomID, roomID))
		return Snapshot{}, newServiceError(opSQLiteLoad, reasonQueryFailed, err)
	}
	room, err := workshop.DecodeRoom([]byte(document.StateJSON))
	if err != nil {
		s.logError(opSQLiteLoad, reasonDecodeFailed, err, zap.String(fieldRoomID, roomID))
		return Snapshot{}, newServiceError(opSQLiteLoad, reasonDecodeFailed, err)
	}
	return Snapshot{Room: room, Version: document.Version}, nil
}

// Save implements Store. Version 0 inserts; any other version updates only
// when the stored row still carries it.
func (s *SQLiteStore) Save(ctx context.Context, roomID string, room *workshop.Room, expectedVersion int64) (int64, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return 0, newServiceError(opSQLiteSave, reasonInvalidRoomID, err)
	}
	if room == nil {
		return 0, newServiceError(opSQLiteSave, reasonMissingRoomDoc, ErrMissingRoom)
	}
	payload, err := workshop.EncodeRoom(room)
	if err != nil {
		return 0, newServiceError(opSQLiteSave, reasonEncodeFailed, err)
	}
	nextVersion := expectedVersion + 1
	updatedAt := s.clock().UTC().Unix()

	if expectedVersion == 0 {
		document := RoomDocument{
			RoomID:           roomID,
			StateJSON:        string(payload),
			Version:          nextVersion,
			UpdatedAtSeconds: updatedAt,
		}
		result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&document)
		if result.Error != nil {
			s.logError(opSQLiteSave, reasonInsertFailed, result.Error, zap.String(fieldRoomID, roomID))
			return 0, newServiceError(opSQLiteSave, reasonInsertFailed, result.Error)
		}
		if result.RowsAffected == 0 {
			return 0, ErrVersionConflict
		}
		return nextVersion, nil
	}

	result := s.db.WithContext(ctx).
		Model(&RoomDocument{}).
		Where(queryRoomIDVersion, roomID, expectedVersion).
		Updates(map[string]interface{}{
			"state_json":   string(payload),
			"version":      nextVersion,
			"updated_at_s": updatedAt,
		})
	if result.Error != nil {
		s.logError(opSQLiteSave, reasonUpdateFailed, result.Error, zap.String(fieldRoomID, roomID))
		return 0, newServiceError(opSQLiteSave, reasonUpdateFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrVersionConflict
	}
	return nextVersion, nil
}

// Ping implements Pinger.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return newServiceError(opSQLitePing, reasonMissingDB, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return newServiceError(opSQLitePing, reasonQueryFailed, err)
	}
	return nil
}

func (s *SQLiteStore) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("room storage error", attrs...)
}
