package workshop

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// MessageType is the wire discriminator carried in the "type" field.
type MessageType string

const (
	MessageInitRoom           MessageType = "init-room"
	MessageRequestState       MessageType = "request-state"
	MessageAddUser            MessageType = "add-user"
	MessageAddCard            MessageType = "add-card"
	MessageAddVote            MessageType = "add-vote"
	MessageSetStep            MessageType = "set-step"
	MessageResetVotes         MessageType = "reset-votes"
	MessageSetNextAction      MessageType = "set-next-action"
	MessageGenerateAISummary  MessageType = "generate-ai-summary"
	MessageRemoveUser         MessageType = "remove-user"
	MessageDeleteCard         MessageType = "delete-card"
	MessageUpdateInputText    MessageType = "update-input-text"
	MessageSetTimer           MessageType = "set-timer"
	MessageClearTimer         MessageType = "clear-timer"
	MessageUpdateWorkshopInfo MessageType = "update-workshop-info"
	MessageSetReady           MessageType = "set-ready"

	outboundTypeState = "state"
	outboundTypeError = "error"
)

// MaxTimerMinutes bounds set-timer durations to one week.
const MaxTimerMinutes = 7 * 24 * 60

var (
	// ErrMalformedMessage indicates the frame is not a JSON object with a type.
	ErrMalformedMessage = errors.New("workshop: malformed message")
	// ErrUnknownMessageType indicates a type the dispatcher has no handler for.
	ErrUnknownMessageType = errors.New("workshop: unknown message type")
	// ErrInvalidPayload indicates a known type with missing or invalid fields.
	ErrInvalidPayload = errors.New("workshop: invalid message payload")
)

// Message is the closed set of inbound mutations. Only types declared in this
// package implement it.
type Message interface {
	Type() MessageType
	isMessage()
}

type InitRoom struct{ State Room }
type RequestState struct{}
type AddUser struct{ User User }
type AddCard struct{ Card Card }
type AddVote struct{ Vote Vote }
type SetStep struct{ Step Step }
type ResetVotes struct{}
type GenerateAISummary struct{}
type RemoveUser struct{ UserID string }
type DeleteCard struct{ CardID string }
type ClearTimer struct{}

// SetNextAction assigns a triage label; a nil NextAction clears it.
type SetNextAction struct {
	CardID     string
	NextAction *NextAction
}

// UpdateInputText carries only the fields the sender supplied.
type UpdateInputText struct {
	InputHeader      *string
	InputDescription *string
}

type SetTimer struct{ DurationMinutes float64 }

// UpdateWorkshopInfo carries only the fields the sender supplied.
type UpdateWorkshopInfo struct {
	WorkshopTitle       *string
	WorkshopDescription *string
	AnonymousVotes      *bool
	AnonymousCards      *bool
}

type SetReady struct {
	UserID string
	Ready  bool
}

func (InitRoom) Type() MessageType           { return MessageInitRoom }
func (RequestState) Type() MessageType       { return MessageRequestState }
func (AddUser) Type() MessageType            { return MessageAddUser }
func (AddCard) Type() MessageType            { return MessageAddCard }
func (AddVote) Type() MessageType            { return MessageAddVote }
func (SetStep) Type() MessageType            { return MessageSetStep }
func (ResetVotes) Type() MessageType         { return MessageResetVotes }
func (SetNextAction) Type() MessageType      { return MessageSetNextAction }
func (GenerateAISummary) Type() MessageType  { return MessageGenerateAISummary }
func (RemoveUser) Type() MessageType         { return MessageRemoveUser }
func (DeleteCard) Type() MessageType         { return MessageDeleteCard }
func (UpdateInputText) Type() MessageType    { return MessageUpdateInputText }
func (SetTimer) Type() MessageType           { return MessageSetTimer }
func (ClearTimer) Type() MessageType         { return MessageClearTimer }
func (UpdateWorkshopInfo) Type() MessageType { return MessageUpdateWorkshopInfo }
func (SetReady) Type() MessageType           { return MessageSetReady }

func (InitRoom) isMessage()           {}
func (RequestState) isMessage()       {}
func (AddUser) isMessage()            {}
func (AddCard) isMessage()            {}
func (AddVote) isMessage()            {}
func (SetStep) isMessage()            {}
func (ResetVotes) isMessage()         {}
func (SetNextAction) isMessage()      {}
func (GenerateAISummary) isMessage()  {}
func (RemoveUser) isMessage()         {}
func (DeleteCard) isMessage()         {}
func (UpdateInputText) isMessage()    {}
func (SetTimer) isMessage()           {}
func (ClearTimer) isMessage()         {}
func (UpdateWorkshopInfo) isMessage() {}
func (SetReady) isMessage()           {}

type envelopePayload struct {
	Type *string `json:"type"`
}

type initRoomPayload struct {
	State *Room `json:"state"`
}

type addUserPayload struct {
	User *User `json:"user"`
}

type addCardPayload struct {
	Card *Card `json:"card"`
}

type addVotePayload struct {
	Vote *Vote `json:"vote"`
}

type setStepPayload struct {
	Step string `json:"step"`
}

type setNextActionPayload struct {
	CardID     string  `json:"cardId"`
	NextAction *string `json:"nextAction"`
}

type userIDPayload struct {
	UserID string `json:"userId"`
}

type cardIDPayload struct {
	CardID string `json:"cardId"`
}

type updateInputTextPayload struct {
	InputHeader      *string `json:"inputHeader"`
	InputDescription *string `json:"inputDescription"`
}

type setTimerPayload struct {
	DurationMinutes *float64 `json:"durationMinutes"`
}

type updateWorkshopInfoPayload struct {
	WorkshopTitle       *string `json:"workshopTitle"`
	WorkshopDescription *string `json:"workshopDescription"`
	AnonymousVotes      *bool   `json:"anonymousVotes"`
	AnonymousCards      *bool   `json:"anonymousCards"`
}

type setReadyPayload struct {
	UserID string `json:"userId"`
	Ready  *bool  `json:"ready"`
}

// DecodeMessage parses one inbound frame into its typed variant.
func DecodeMessage(raw []byte) (Message, error) {
	var envelope envelopePayload
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if envelope.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	switch messageType := MessageType(*envelope.Type); messageType {
	case MessageInitRoom:
		var payload initRoomPayload
		if err := decodePayload(raw, &payload); err != nil {
			return nil, err
		}
		if payload.State == nil {
			return nil, payloadError(messageType, "state required")
		}
		if payload.State.Step == "" {
			payload.State.Step = StepWaiting
		}
		if _, err := ParseStep(string(payload.State.Step)); err != nil {
			return nil, payloadError(messageType, err.Error())
		}
		return InitRoom{State: *payload.State}, nil
	case MessageRequestState:
		return RequestState{}, nil
	case MessageAddUser:
		var payload addUserPayload
		if err := decodePayload(raw, &payload); err != nil {
			return nil, err
		}
		if payload.User == nil {
			return nil, payloadError(messageType, "user required")
		}
		if err := validateIdentifier("user id", payload.User.ID); err != nil {
			return nil, payloadError(messageType, err.Error())
		}
		return AddUser{User: *payload.User}, nil
	case MessageAddCard:
		var payload addCardPayload
		if err := decodePayload(raw, &payload); err != nil {
			return nil, err
		}
		if payload.Card == nil {
			return nil, payloadError(messageType, "card required")
		}
		if err := validateIdentifier("card id", payload.Card.ID); err != nil {
			return nil, payloadError(messageType, err.Error())
		}
		return AddCard{Card: *payload.Card}, nil
	case MessageAddVote:
		var payload addVotePayload
		if err := decodePayload(raw, &payload); err != nil {
			return nil, err
		}
		if payload.Vote == nil {
			return nil, payloadError(messageType, "vote required")
		}
		if err := validateIdentifier("user id", payload.Vote.UserID); err != nil {
			return nil, payloadError(messageType, err.Error())
		}
		if err := validateIdentifier("card id", payload.Vote.CardID); err != nil {
			return nil, payloadError(messageType, err.Error())
		}
		return AddVote{Vote: *payload.Vote}, nil
	case MessageSetStep:
		var payload setStepPayload
		if err := decodePayload(raw, &payload); err != nil {
			return nil, err
		}
		step, err := ParseStep(payload.Step)
		if err != nil {
			return nil, payloadError(messageType, err.Error())
		}
		return SetStep{Step: step}, nil
	case MessageResetVotes:
		return ResetVotes{}, nil
	case MessageSetNextAction:
		var payload setNextActionPayload
		if err := decodePayload(raw, &payload); err != nil {
			return nil, err
		}
		if err := validateIdentifier("card id", payload.CardID); err != nil {
			return nil, payloadError(messageType, err.Error())
		}
		message := SetNextAction{CardID: payload.CardID}
		if payload.NextAction != nil {
			action, err := ParseNextAction(*payload.NextAction)
			if err != nil {
				return nil, payloadError(messageType, err.Error())
			}
			message.NextAction = &action
		}
		return message, nil
	case MessageGenerateAISummary:
		return GenerateAISummary{}, nil
	case MessageRemoveUser:
		var payload userIDPayload
		if err := decodePayload(raw, &payload); err != nil {
			return nil, err
		}
		if err := validateIdentifier("user id", payload.UserID); err != nil {
			return nil, payloadError(messageType, err.Error())
		}
		return RemoveUser{UserID: payload.UserID}, nil
	case MessageDeleteCard:
		var payload cardIDPayload
		if err := decodePayload(raw, &payload); err != nil {
			return nil, err
		}
		if err := validateIdentifier("card id", payload.CardID); err != nil {
			return nil, payloadError(messageType, err.Error())
		}
		return DeleteCard{CardID: payload.CardID}, nil
	case MessageUpdateInputText:
		var payload updateInputTextPayload
		if err := decodePayload(raw, &payload); err != nil {
			return nil, err
		}
		return UpdateInputText{
			InputHeader:      payload.InputHeader,
			InputDescription: payload.InputDescription,
		}, nil
	case MessageSetTimer:
		var payload setTimerPayload
		if err := decodePayload(raw, &payload); err != nil {
			return nil, err
		}
		if payload.DurationMinutes == nil {
			return nil, payloadError(messageType, "durationMinutes required")
		}
		minutes := *payload.DurationMinutes
		if minutes <= 0 || math.IsNaN(minutes) {
			return nil, payloadError(messageType, "durationMinutes must be positive")
		}
		if minutes > MaxTimerMinutes {
			return nil, payloadError(messageType, fmt.Sprintf("durationMinutes exceeds %d", MaxTimerMinutes))
		}
		return SetTimer{DurationMinutes: minutes}, nil
	case MessageClearTimer:
		return ClearTimer{}, nil
	case MessageUpdateWorkshopInfo:
		var payload updateWorkshopInfoPayload
		if err := decodePayload(raw, &payload); err != nil {
			return nil, err
		}
		return UpdateWorkshopInfo{
			WorkshopTitle:       payload.WorkshopTitle,
			WorkshopDescription: payload.WorkshopDescription,
			AnonymousVotes:      payload.AnonymousVotes,
			AnonymousCards:      payload.AnonymousCards,
		}, nil
	case MessageSetReady:
		var payload setReadyPayload
		if err := decodePayload(raw, &payload); err != nil {
			return nil, err
		}
		if err := validateIdentifier("user id", payload.UserID); err != nil {
			return nil, payloadError(messageType, err.Error())
		}
		if payload.Ready == nil {
			return nil, payloadError(messageType, "ready required")
		}
		return SetReady{UserID: payload.UserID, Ready: *payload.Ready}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, messageType)
	}
}

func decodePayload(raw []byte, target any) error {
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func payloadError(messageType MessageType, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, messageType, reason)
}

type stateMessagePayload struct {
	Type  string `json:"type"`
	State *Room  `json:"state"`
}

type errorMessagePayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// EncodeState renders the full-state frame. A nil room encodes as
// {"type":"state","state":null}.
func EncodeState(room *Room) ([]byte, error) {
	return json.Marshal(stateMessagePayload{Type: outboundTypeState, State: room})
}

// EncodeError renders the frame sent to a single connection when a request
// it made could not be completed.
func EncodeError(message string) ([]byte, error) {
	return json.Marshal(errorMessagePayload{Type: outboundTypeError, Message: message})
}
