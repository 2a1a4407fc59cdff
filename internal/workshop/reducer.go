package workshop

import (
	"fmt"
	"math"
	"slices"
	"time"
)

const (
	defaultWorkshopDescription = "Welcome to the brainstorming session! Let's collaborate on identifying and prioritizing problems and ideas."
	millisecondsPerMinute      = 60 * 1000
)

// Effect is work the room owner performs after a message is reduced, beyond
// persisting and broadcasting.
type Effect int

const (
	// EffectNone needs no follow-up.
	EffectNone Effect = iota
	// EffectReplyState sends the current state to the sender only.
	EffectReplyState
	// EffectGenerateSummary asks the summary collaborator for a new digest.
	EffectGenerateSummary
)

// Outcome is the result of reducing one message against the current state.
type Outcome struct {
	State   *Room
	Changed bool
	Effect  Effect
}

// ReduceEnv carries the inputs a handler may read besides state and message.
type ReduceEnv struct {
	RoomID string
	Now    time.Time
}

// Reduce applies message to state. Handlers mutate state in place and report
// whether it changed; unmet preconditions yield an unchanged outcome.
func Reduce(state *Room, message Message, env ReduceEnv) Outcome {
	if initRoom, ok := message.(InitRoom); ok {
		return reduceInitRoom(state, initRoom, env)
	}
	if state == nil {
		return unchanged(nil)
	}

	switch typed := message.(type) {
	case RequestState:
		return Outcome{State: state, Effect: EffectReplyState}
	case GenerateAISummary:
		return Outcome{State: state, Effect: EffectGenerateSummary}
	case AddUser:
		return reduceAddUser(state, typed)
	case AddCard:
		return reduceAddCard(state, typed)
	case AddVote:
		return reduceAddVote(state, typed)
	case SetStep:
		return reduceSetStep(state, typed)
	case ResetVotes:
		return reduceResetVotes(state)
	case SetNextAction:
		return reduceSetNextAction(state, typed)
	case RemoveUser:
		return reduceRemoveUser(state, typed)
	case DeleteCard:
		return reduceDeleteCard(state, typed)
	case UpdateInputText:
		return reduceUpdateInputText(state, typed)
	case SetTimer:
		return reduceSetTimer(state, typed, env)
	case ClearTimer:
		return reduceClearTimer(state)
	case UpdateWorkshopInfo:
		return reduceUpdateWorkshopInfo(state, typed)
	case SetReady:
		return reduceSetReady(state, typed)
	default:
		return unchanged(state)
	}
}

// ApplySummary stores a freshly generated summary, replacing any previous one.
func ApplySummary(state *Room, summary Summary) Outcome {
	if state == nil {
		return unchanged(nil)
	}
	state.AISummary = &summary
	return changed(state)
}

func changed(state *Room) Outcome {
	return Outcome{State: state, Changed: true}
}

func unchanged(state *Room) Outcome {
	return Outcome{State: state}
}

// reduceInitRoom creates the room once; later init-room messages are ignored.
func reduceInitRoom(state *Room, message InitRoom, env ReduceEnv) Outcome {
	if state != nil {
		return unchanged(state)
	}
	created := message.State
	if env.RoomID != "" {
		created.ID = env.RoomID
	}
	if created.WorkshopTitle == nil {
		created.WorkshopTitle = stringPointer(fmt.Sprintf("Session %s", created.ID))
	}
	if created.WorkshopDescription == nil {
		created.WorkshopDescription = stringPointer(defaultWorkshopDescription)
	}
	created.Users = uniqueUsers(created.Users)
	created.Cards = uniqueCards(created.Cards)
	created.normalizeCollections()
	return changed(&created)
}

// uniqueUsers keeps the first user per id. The result never aliases users.
func uniqueUsers(users []User) []User {
	seen := make(map[string]struct{}, len(users))
	unique := make([]User, 0, len(users))
	for _, user := range users {
		if _, ok := seen[user.ID]; ok {
			continue
		}
		seen[user.ID] = struct{}{}
		unique = append(unique, user)
	}
	return unique
}

// uniqueCards keeps the first card per id and, on each card, the last vote
// per user. The result never aliases cards or their votes.
func uniqueCards(cards []Card) []Card {
	seen := make(map[string]struct{}, len(cards))
	unique := make([]Card, 0, len(cards))
	for _, card := range cards {
		if _, ok := seen[card.ID]; ok {
			continue
		}
		seen[card.ID] = struct{}{}
		card.Votes = latestVotes(card.ID, card.Votes)
		unique = append(unique, card)
	}
	return unique
}

func latestVotes(cardID string, votes []Vote) []Vote {
	latest := make(map[string]int, len(votes))
	for index, vote := range votes {
		latest[vote.UserID] = index
	}
	kept := make([]Vote, 0, len(latest))
	for index, vote := range votes {
		if latest[vote.UserID] != index {
			continue
		}
		vote.CardID = cardID
		kept = append(kept, vote)
	}
	return kept
}

func reduceAddUser(state *Room, message AddUser) Outcome {
	if state.findUser(message.User.ID) != nil {
		return unchanged(state)
	}
	user := message.User
	user.ColorIndex = NextColorIndex(state.Users)
	user.Color, user.CardColor = DeriveColors(user.ColorIndex)
	state.Users = append(state.Users, user)
	return changed(state)
}

func reduceAddCard(state *Room, message AddCard) Outcome {
	if state.findCard(message.Card.ID) != nil {
		return unchanged(state)
	}
	card := message.Card
	card.Votes = []Vote{}
	state.Cards = append(state.Cards, card)
	return changed(state)
}

// reduceAddVote upserts by (userId, cardId): the new vote fully replaces the
// previous one from the same user.
func reduceAddVote(state *Room, message AddVote) Outcome {
	card := state.findCard(message.Vote.CardID)
	if card == nil {
		return unchanged(state)
	}
	existing := slices.IndexFunc(card.Votes, func(vote Vote) bool {
		return vote.UserID == message.Vote.UserID && vote.CardID == message.Vote.CardID
	})
	if existing >= 0 {
		card.Votes[existing] = message.Vote
	} else {
		card.Votes = append(card.Votes, message.Vote)
	}
	return changed(state)
}

func reduceSetStep(state *Room, message SetStep) Outcome {
	state.Step = message.Step
	for index := range state.Users {
		state.Users[index].Ready = false
	}
	return changed(state)
}

func reduceResetVotes(state *Room) Outcome {
	for index := range state.Cards {
		state.Cards[index].Votes = []Vote{}
	}
	return changed(state)
}

func reduceSetNextAction(state *Room, message SetNextAction) Outcome {
	card := state.findCard(message.CardID)
	if card == nil {
		return unchanged(state)
	}
	card.NextAction = message.NextAction
	return changed(state)
}

// reduceRemoveUser drops the user, every card they authored and every vote
// they cast on the remaining cards.
func reduceRemoveUser(state *Room, message RemoveUser) Outcome {
	state.Users = slices.DeleteFunc(state.Users, func(user User) bool {
		return user.ID == message.UserID
	})
	state.Cards = slices.DeleteFunc(state.Cards, func(card Card) bool {
		return card.AuthorID == message.UserID
	})
	for index := range state.Cards {
		state.Cards[index].Votes = slices.DeleteFunc(state.Cards[index].Votes, func(vote Vote) bool {
			return vote.UserID == message.UserID
		})
	}
	return changed(state)
}

func reduceDeleteCard(state *Room, message DeleteCard) Outcome {
	state.Cards = slices.DeleteFunc(state.Cards, func(card Card) bool {
		return card.ID == message.CardID
	})
	return changed(state)
}

func reduceUpdateInputText(state *Room, message UpdateInputText) Outcome {
	if message.InputHeader != nil {
		state.InputHeader = stringPointer(*message.InputHeader)
	}
	if message.InputDescription != nil {
		state.InputDescription = stringPointer(*message.InputDescription)
	}
	return changed(state)
}

func reduceSetTimer(state *Room, message SetTimer, env ReduceEnv) Outcome {
	if !(message.DurationMinutes > 0 && message.DurationMinutes <= MaxTimerMinutes) {
		return unchanged(state)
	}
	endTime := EpochMillis(env.Now.UnixMilli() + int64(math.Round(message.DurationMinutes*millisecondsPerMinute)))
	duration := message.DurationMinutes
	state.TimerEndTime = &endTime
	state.TimerDuration = &duration
	return changed(state)
}

func reduceClearTimer(state *Room) Outcome {
	state.TimerEndTime = nil
	state.TimerDuration = nil
	return changed(state)
}

func reduceUpdateWorkshopInfo(state *Room, message UpdateWorkshopInfo) Outcome {
	if message.WorkshopTitle != nil {
		state.WorkshopTitle = stringPointer(*message.WorkshopTitle)
	}
	if message.WorkshopDescription != nil {
		state.WorkshopDescription = stringPointer(*message.WorkshopDescription)
	}
	if message.AnonymousVotes != nil {
		value := *message.AnonymousVotes
		state.AnonymousVotes = &value
	}
	if message.AnonymousCards != nil {
		value := *message.AnonymousCards
		state.AnonymousCards = &value
	}
	return changed(state)
}

func reduceSetReady(state *Room, message SetReady) Outcome {
	user := state.findUser(message.UserID)
	if user == nil {
		return unchanged(state)
	}
	user.Ready = message.Ready
	return changed(state)
}
