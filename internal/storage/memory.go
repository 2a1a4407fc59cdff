package storage

import (
	"context"
	"sync"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/workshop"
)

type memoryDocument struct {
	payload []byte
	version int64
}

// MemoryStore keeps encoded documents in process memory. Every Load decodes a
// fresh copy, so callers never share state with the store.
type MemoryStore struct {
	mu        sync.Mutex
	documents map[string]memoryDocument
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{documents: make(map[string]memoryDocument)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, roomID string) (Snapshot, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	document, ok := s.documents[roomID]
	s.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrRoomNotFound
	}
	room, err := workshop.DecodeRoom(document.payload)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Room: room, Version: document.version}, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, roomID string, room *workshop.Room, expectedVersion int64) (int64, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return 0, err
	}
	if room == nil {
		return 0, ErrMissingRoom
	}
	payload, err := workshop.EncodeRoom(room)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.documents[roomID].version != expectedVersion {
		return 0, ErrVersionConflict
	}
	nextVersion := expectedVersion + 1
	s.documents[roomID] = memoryDocument{payload: payload, version: nextVersion}
	return nextVersion, nil
}
