package workshop

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeMessageRejectsBadFrames(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected error
	}{
		{name: "not-json", raw: `{"type":`, expected: ErrMalformedMessage},
		{name: "missing-type", raw: `{"cardId":"card-1"}`, expected: ErrMalformedMessage},
		{name: "unknown-type", raw: `{"type":"update-user","user":{"id":"u"}}`, expected: ErrUnknownMessageType},
		{name: "add-user-without-user", raw: `{"type":"add-user"}`, expected: ErrInvalidPayload},
		{name: "add-user-empty-id", raw: `{"type":"add-user","user":{"id":"  ","name":"x"}}`, expected: ErrInvalidPayload},
		{name: "add-vote-wrong-shape", raw: `{"type":"add-vote","vote":{"userId":"u","cardId":"c","x":"left"}}`, expected: ErrInvalidPayload},
		{name: "set-step-unknown", raw: `{"type":"set-step","step":"lunch"}`, expected: ErrInvalidPayload},
		{name: "next-action-unknown", raw: `{"type":"set-next-action","cardId":"c","nextAction":"later"}`, expected: ErrInvalidPayload},
		{name: "timer-negative", raw: `{"type":"set-timer","durationMinutes":-1}`, expected: ErrInvalidPayload},
		{name: "timer-overflowing", raw: `{"type":"set-timer","durationMinutes":1e300}`, expected: ErrInvalidPayload},
		{name: "timer-over-a-week", raw: `{"type":"set-timer","durationMinutes":10081}`, expected: ErrInvalidPayload},
		{name: "add-card-fractional-out-of-range", raw: `{"type":"add-card","card":{"id":"c","createdAt":1e30}}`, expected: ErrInvalidPayload},
		{name: "set-ready-missing-flag", raw: `{"type":"set-ready","userId":"u"}`, expected: ErrInvalidPayload},
		{name: "init-room-without-state", raw: `{"type":"init-room"}`, expected: ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tt.raw))
			if !errors.Is(err, tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestDecodeMessageProducesTypedVariants(t *testing.T) {
	tests := []struct {
		raw      string
		expected MessageType
	}{
		{`{"type":"init-room","state":{"id":"r","adminId":"a","step":"waiting","cards":[],"users":[]}}`, MessageInitRoom},
		{`{"type":"request-state"}`, MessageRequestState},
		{`{"type":"add-user","user":{"id":"u","name":"Uma","avatar":"https://example.com/u.png","colorIndex":0}}`, MessageAddUser},
		{`{"type":"add-card","card":{"id":"c","text":"t","authorId":"u","createdAt":1700000000000,"votes":[]}}`, MessageAddCard},
		{`{"type":"add-vote","vote":{"userId":"u","cardId":"c","x":12.5,"y":40,"importance":6.4,"complexity":3.1,"timestamp":1700000000000}}`, MessageAddVote},
		{`{"type":"set-step","step":"results"}`, MessageSetStep},
		{`{"type":"reset-votes"}`, MessageResetVotes},
		{`{"type":"set-next-action","cardId":"c","nextAction":"postpone"}`, MessageSetNextAction},
		{`{"type":"generate-ai-summary"}`, MessageGenerateAISummary},
		{`{"type":"remove-user","userId":"u"}`, MessageRemoveUser},
		{`{"type":"delete-card","cardId":"c"}`, MessageDeleteCard},
		{`{"type":"update-input-text","inputHeader":"h"}`, MessageUpdateInputText},
		{`{"type":"set-timer","durationMinutes":2.5}`, MessageSetTimer},
		{`{"type":"clear-timer"}`, MessageClearTimer},
		{`{"type":"update-workshop-info","anonymousCards":false}`, MessageUpdateWorkshopInfo},
		{`{"type":"set-ready","userId":"u","ready":true}`, MessageSetReady},
	}
	for _, tt := range tests {
		message, err := DecodeMessage([]byte(tt.raw))
		if err != nil {
			t.Fatalf("decode %s: %v", tt.expected, err)
		}
		if message.Type() != tt.expected {
			t.Fatalf("expected %s, got %s", tt.expected, message.Type())
		}
	}
}

func TestDecodeAddVoteKeepsAllFields(t *testing.T) {
	message, err := DecodeMessage([]byte(`{"type":"add-vote","vote":{"userId":"u","cardId":"c","x":12.5,"y":40,"importance":6.4,"complexity":3.1,"timestamp":1700000000000}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vote := message.(AddVote).Vote
	expected := Vote{UserID: "u", CardID: "c", X: 12.5, Y: 40, Importance: 6.4, Complexity: 3.1, Timestamp: 1700000000000}
	if vote != expected {
		t.Fatalf("unexpected vote %+v", vote)
	}
}

func TestDecodeAcceptsFractionalEpochMillis(t *testing.T) {
	card := mustDecode(t, `{"type":"add-card","card":{"id":"c","text":"t","authorId":"u","createdAt":1.7000000000005e12}}`).(AddCard).Card
	if card.CreatedAt != 1700000000000 {
		t.Fatalf("expected truncated createdAt, got %d", card.CreatedAt)
	}
	vote := mustDecode(t, `{"type":"add-vote","vote":{"userId":"u","cardId":"c","timestamp":1700000000123.9}}`).(AddVote).Vote
	if vote.Timestamp != 1700000000123 {
		t.Fatalf("expected truncated timestamp, got %d", vote.Timestamp)
	}
	missing := mustDecode(t, `{"type":"add-vote","vote":{"userId":"u","cardId":"c","timestamp":null}}`).(AddVote).Vote
	if missing.Timestamp != 0 {
		t.Fatalf("expected null timestamp to stay zero, got %d", missing.Timestamp)
	}
}

func TestEncodeStateFrames(t *testing.T) {
	empty, err := EncodeState(nil)
	if err != nil {
		t.Fatalf("encode empty state: %v", err)
	}
	if string(empty) != `{"type":"state","state":null}` {
		t.Fatalf("unexpected empty frame %s", empty)
	}

	room := &Room{ID: "r", AdminID: "a", Step: StepWaiting, Cards: []Card{{ID: "c", Votes: []Vote{}}}, Users: []User{}}
	frame, err := EncodeState(room)
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(frame, &decoded); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	state := decoded["state"].(map[string]any)
	for _, key := range []string{"id", "cards", "users", "adminId", "step"} {
		if _, ok := state[key]; !ok {
			t.Fatalf("expected key %q in %s", key, frame)
		}
	}
	if _, ok := state["aiSummary"]; ok {
		t.Fatalf("absent summary must be omitted: %s", frame)
	}
	card := state["cards"].([]any)[0].(map[string]any)
	if _, ok := card["votes"].([]any); !ok {
		t.Fatalf("votes must encode as an array: %s", frame)
	}

	errorFrame, err := EncodeError("Failed to generate AI summary")
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if string(errorFrame) != `{"type":"error","message":"Failed to generate AI summary"}` {
		t.Fatalf("unexpected error frame %s", errorFrame)
	}
}

func TestDecodeRoomNormalizesLegacyDocuments(t *testing.T) {
	room, err := DecodeRoom([]byte(`{"id":"r","adminId":"a","step":"input","cards":[{"id":"c","votes":null}]}`))
	if err != nil {
		t.Fatalf("decode room: %v", err)
	}
	if room.Users == nil || room.Cards[0].Votes == nil {
		t.Fatalf("expected nil collections to be normalized: %+v", room)
	}
}
