package workshop

import "encoding/json"

// DecodeRoom parses a persisted room document.
func DecodeRoom(data []byte) (*Room, error) {
	var room Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	room.normalizeCollections()
	return &room, nil
}

// EncodeRoom renders a room document for persistence.
func EncodeRoom(room *Room) ([]byte, error) {
	room.normalizeCollections()
	return json.Marshal(room)
}
