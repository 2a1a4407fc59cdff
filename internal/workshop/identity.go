package workshop

import "strings"

// Participant is the authenticated identity behind a connection.
type Participant struct {
	UserID string
	Name   string
	Avatar string
}

// BindParticipant rewrites the self-describing fields of message so a
// connection can only join, submit and vote as its own participant. Messages
// that address other users or no user are returned unchanged.
func BindParticipant(message Message, participant Participant) Message {
	if strings.TrimSpace(participant.UserID) == "" {
		return message
	}
	switch typed := message.(type) {
	case AddUser:
		typed.User.ID = participant.UserID
		if participant.Name != "" {
			typed.User.Name = participant.Name
		}
		if participant.Avatar != "" {
			typed.User.Avatar = participant.Avatar
		}
		return typed
	case AddCard:
		typed.Card.AuthorID = participant.UserID
		return typed
	case AddVote:
		typed.Vote.UserID = participant.UserID
		return typed
	default:
		return message
	}
}
