package workshop

import (
	"testing"
	"time"
)

const (
	testRoomID  = "room-1"
	testAdminID = "user-a"
)

func TestInitRoomCreatesOnlyOnce(t *testing.T) {
	env := testEnv()
	first := Reduce(nil, mustDecode(t, `{"type":"init-room","state":{"id":"room-1","cards":[],"users":[],"adminId":"user-a","step":"waiting"}}`), env)
	if !first.Changed || first.State == nil {
		t.Fatalf("expected room to be created")
	}
	if first.State.AdminID != testAdminID {
		t.Fatalf("unexpected admin id %q", first.State.AdminID)
	}
	if first.State.WorkshopTitle == nil || *first.State.WorkshopTitle != "Session room-1" {
		t.Fatalf("expected default title, got %v", first.State.WorkshopTitle)
	}
	if first.State.WorkshopDescription == nil || *first.State.WorkshopDescription != defaultWorkshopDescription {
		t.Fatalf("expected default description")
	}

	second := Reduce(first.State, mustDecode(t, `{"type":"init-room","state":{"id":"room-1","cards":[],"users":[],"adminId":"user-b","step":"voting"}}`), env)
	if second.Changed {
		t.Fatalf("second init-room must be a no-op")
	}
	if second.State.AdminID != testAdminID || second.State.Step != StepWaiting {
		t.Fatalf("existing room was overwritten: %+v", second.State)
	}
}

func TestInitRoomDeduplicatesEntities(t *testing.T) {
	message := mustDecode(t, `{"type":"init-room","state":{"id":"room-1","adminId":"user-a","step":"voting",
		"users":[{"id":"user-a","name":"Ada"},{"id":"user-b","name":"Brook"},{"id":"user-a","name":"Impostor"}],
		"cards":[
			{"id":"card-1","text":"first","authorId":"user-a","votes":[
				{"userId":"user-b","cardId":"card-1","importance":2,"complexity":2},
				{"userId":"user-a","cardId":"card-1","importance":5,"complexity":5},
				{"userId":"user-b","cardId":"card-9","importance":9,"complexity":1}
			]},
			{"id":"card-1","text":"duplicate","authorId":"user-b","votes":[]}
		]}}`)

	for attempt := 0; attempt < 2; attempt++ {
		outcome := Reduce(nil, message, testEnv())
		room := outcome.State
		if len(room.Users) != 2 || room.Users[0].Name != "Ada" || room.Users[1].ID != "user-b" {
			t.Fatalf("attempt %d: expected first user per id, got %+v", attempt, room.Users)
		}
		if len(room.Cards) != 1 || room.Cards[0].Text != "first" {
			t.Fatalf("attempt %d: expected first card per id, got %+v", attempt, room.Cards)
		}
		votes := room.Cards[0].Votes
		if len(votes) != 2 {
			t.Fatalf("attempt %d: expected one vote per user, got %+v", attempt, votes)
		}
		if votes[0].UserID != "user-a" || votes[1].UserID != "user-b" || votes[1].Importance != 9 {
			t.Fatalf("attempt %d: expected latest vote per user, got %+v", attempt, votes)
		}
		if votes[1].CardID != "card-1" {
			t.Fatalf("attempt %d: vote must point at its card, got %q", attempt, votes[1].CardID)
		}
	}
}

func TestInitRoomKeepsSuppliedTitleAndUsesRoomKey(t *testing.T) {
	outcome := Reduce(nil, mustDecode(t, `{"type":"init-room","state":{"id":"other","adminId":"user-a","step":"input","workshopTitle":"Q3 planning"}}`), testEnv())
	if outcome.State.ID != testRoomID {
		t.Fatalf("expected room key to win, got %q", outcome.State.ID)
	}
	if *outcome.State.WorkshopTitle != "Q3 planning" {
		t.Fatalf("supplied title was replaced: %q", *outcome.State.WorkshopTitle)
	}
	if outcome.State.Cards == nil || outcome.State.Users == nil {
		t.Fatalf("expected empty collections to be initialized")
	}
}

func TestMessagesWithoutStateAreNoOps(t *testing.T) {
	messages := []Message{
		RequestState{},
		AddUser{User: User{ID: "user-a"}},
		AddCard{Card: Card{ID: "card-1"}},
		SetStep{Step: StepVoting},
		ResetVotes{},
		SetTimer{DurationMinutes: 5},
		ClearTimer{},
		GenerateAISummary{},
	}
	for _, message := range messages {
		outcome := Reduce(nil, message, testEnv())
		if outcome.Changed || outcome.State != nil || outcome.Effect != EffectNone {
			t.Fatalf("%s on missing room should be a no-op, got %+v", message.Type(), outcome)
		}
	}
}

func TestAddUserAssignsSequentialColorIndexes(t *testing.T) {
	room := newTestRoom()
	for index, userID := range []string{"user-a", "user-b", "user-c"} {
		outcome := Reduce(room, AddUser{User: User{ID: userID, Name: "Name " + userID, ColorIndex: 42}}, testEnv())
		if !outcome.Changed {
			t.Fatalf("expected %s to be added", userID)
		}
		added := room.Users[index]
		if added.ColorIndex != index {
			t.Fatalf("expected color index %d, got %d", index, added.ColorIndex)
		}
		avatar, card := DeriveColors(index)
		if added.Color != avatar || added.CardColor != card {
			t.Fatalf("unexpected colors for %s: %q %q", userID, added.Color, added.CardColor)
		}
	}

	duplicate := Reduce(room, AddUser{User: User{ID: "user-b", Name: "Renamed"}}, testEnv())
	if duplicate.Changed || len(room.Users) != 3 || room.Users[1].Name != "Name user-b" {
		t.Fatalf("duplicate add-user must be ignored")
	}
}

func TestAddUserContinuesAfterHighestIndex(t *testing.T) {
	room := newTestRoom()
	room.Users = []User{{ID: "user-a", ColorIndex: 0}, {ID: "user-c", ColorIndex: 2}}
	Reduce(room, AddUser{User: User{ID: "user-d"}}, testEnv())
	if room.Users[2].ColorIndex != 3 {
		t.Fatalf("expected color index 3, got %d", room.Users[2].ColorIndex)
	}
}

func TestAddCardIgnoresDuplicatesAndClearsVotes(t *testing.T) {
	room := newTestRoom()
	outcome := Reduce(room, AddCard{Card: Card{ID: "card-1", Text: "Slow builds", AuthorID: "user-a", Votes: []Vote{{UserID: "user-x"}}}}, testEnv())
	if !outcome.Changed || len(room.Cards) != 1 {
		t.Fatalf("expected card to be appended")
	}
	if len(room.Cards[0].Votes) != 0 || room.Cards[0].Votes == nil {
		t.Fatalf("expected empty vote list, got %#v", room.Cards[0].Votes)
	}
	if Reduce(room, AddCard{Card: Card{ID: "card-1", Text: "Other"}}, testEnv()).Changed {
		t.Fatalf("duplicate card must be ignored")
	}
}

func TestAddVoteUpsertsPerUser(t *testing.T) {
	room := newTestRoom()
	room.Cards = []Card{{ID: "card-1", Votes: []Vote{}}}

	Reduce(room, AddVote{Vote: Vote{UserID: "user-a", CardID: "card-1", X: 10, Y: 20, Importance: 3, Complexity: 4, Timestamp: 1}}, testEnv())
	Reduce(room, AddVote{Vote: Vote{UserID: "user-b", CardID: "card-1", Importance: 6, Complexity: 6, Timestamp: 2}}, testEnv())
	Reduce(room, AddVote{Vote: Vote{UserID: "user-a", CardID: "card-1", X: 70, Y: 5, Importance: 9, Complexity: 2, Timestamp: 3}}, testEnv())

	votes := room.Cards[0].Votes
	if len(votes) != 2 {
		t.Fatalf("expected one vote per user, got %d", len(votes))
	}
	seen := map[string]int{}
	for _, vote := range votes {
		seen[vote.UserID]++
	}
	if seen["user-a"] != 1 || seen["user-b"] != 1 {
		t.Fatalf("unexpected vote distribution %v", seen)
	}
	replaced := votes[0]
	expected := Vote{UserID: "user-a", CardID: "card-1", X: 70, Y: 5, Importance: 9, Complexity: 2, Timestamp: 3}
	if replaced != expected {
		t.Fatalf("latest vote must fully replace the previous one, got %+v", replaced)
	}
}

func TestAddVoteForMissingCardIsNoOp(t *testing.T) {
	room := newTestRoom()
	if Reduce(room, AddVote{Vote: Vote{UserID: "user-a", CardID: "missing"}}, testEnv()).Changed {
		t.Fatalf("vote on missing card must be ignored")
	}
}

func TestSetStepResetsReadiness(t *testing.T) {
	room := newTestRoom()
	room.Users = []User{{ID: "user-a", Ready: true}, {ID: "user-b", Ready: true}}
	outcome := Reduce(room, SetStep{Step: StepVoting}, testEnv())
	if !outcome.Changed || room.Step != StepVoting {
		t.Fatalf("expected step to change")
	}
	for _, user := range room.Users {
		if user.Ready {
			t.Fatalf("expected %s to be reset", user.ID)
		}
	}
}

func TestResetVotesClearsEveryCard(t *testing.T) {
	room := newTestRoom()
	room.Cards = []Card{
		{ID: "card-1", Votes: []Vote{{UserID: "user-a", CardID: "card-1"}}},
		{ID: "card-2", Votes: []Vote{{UserID: "user-b", CardID: "card-2"}}},
	}
	Reduce(room, ResetVotes{}, testEnv())
	for _, card := range room.Cards {
		if len(card.Votes) != 0 {
			t.Fatalf("expected votes to be cleared on %s", card.ID)
		}
	}
}

func TestSetNextAction(t *testing.T) {
	room := newTestRoom()
	room.Cards = []Card{{ID: "card-1", Votes: []Vote{}}}

	Reduce(room, mustDecode(t, `{"type":"set-next-action","cardId":"card-1","nextAction":"do-now"}`), testEnv())
	if room.Cards[0].NextAction == nil || *room.Cards[0].NextAction != NextActionDoNow {
		t.Fatalf("expected do-now, got %v", room.Cards[0].NextAction)
	}

	Reduce(room, mustDecode(t, `{"type":"set-next-action","cardId":"card-1","nextAction":null}`), testEnv())
	if room.Cards[0].NextAction != nil {
		t.Fatalf("expected next action to be cleared")
	}

	if Reduce(room, SetNextAction{CardID: "missing"}, testEnv()).Changed {
		t.Fatalf("missing card must be a no-op")
	}
}

func TestRemoveUserCascades(t *testing.T) {
	room := newTestRoom()
	room.Users = []User{{ID: "user-a"}, {ID: "user-b"}}
	room.Cards = []Card{
		{ID: "card-a", AuthorID: "user-a", Votes: []Vote{{UserID: "user-b", CardID: "card-a"}}},
		{ID: "card-b", AuthorID: "user-b", Votes: []Vote{
			{UserID: "user-a", CardID: "card-b"},
			{UserID: "user-b", CardID: "card-b"},
		}},
	}

	outcome := Reduce(room, RemoveUser{UserID: "user-a"}, testEnv())
	if !outcome.Changed {
		t.Fatalf("expected state change")
	}
	if len(room.Users) != 1 || room.Users[0].ID != "user-b" {
		t.Fatalf("unexpected users %+v", room.Users)
	}
	for _, card := range room.Cards {
		if card.AuthorID == "user-a" {
			t.Fatalf("card %s authored by removed user survived", card.ID)
		}
		for _, vote := range card.Votes {
			if vote.UserID == "user-a" {
				t.Fatalf("vote by removed user survived on %s", card.ID)
			}
		}
	}
	if len(room.Cards) != 1 || len(room.Cards[0].Votes) != 1 {
		t.Fatalf("unexpected remaining cards %+v", room.Cards)
	}
}

func TestDeleteCard(t *testing.T) {
	room := newTestRoom()
	room.Cards = []Card{{ID: "card-1"}, {ID: "card-2"}}
	Reduce(room, DeleteCard{CardID: "card-1"}, testEnv())
	if len(room.Cards) != 1 || room.Cards[0].ID != "card-2" {
		t.Fatalf("unexpected cards %+v", room.Cards)
	}
}

func TestShallowMergeUpdatesOnlyPresentFields(t *testing.T) {
	room := newTestRoom()
	room.InputHeader = stringPointer("Old header")
	room.InputDescription = stringPointer("Old description")

	Reduce(room, mustDecode(t, `{"type":"update-input-text","inputDescription":"New description"}`), testEnv())
	if *room.InputHeader != "Old header" || *room.InputDescription != "New description" {
		t.Fatalf("unexpected input text %q / %q", *room.InputHeader, *room.InputDescription)
	}

	Reduce(room, mustDecode(t, `{"type":"update-workshop-info","anonymousVotes":true,"workshopTitle":""}`), testEnv())
	if room.AnonymousVotes == nil || !*room.AnonymousVotes {
		t.Fatalf("expected anonymous votes to be enabled")
	}
	if room.AnonymousCards != nil {
		t.Fatalf("anonymous cards must stay untouched")
	}
	if room.WorkshopTitle == nil || *room.WorkshopTitle != "" {
		t.Fatalf("explicit empty title must be applied")
	}
}

func TestTimerLifecycle(t *testing.T) {
	room := newTestRoom()
	env := testEnv()
	Reduce(room, SetTimer{DurationMinutes: 5}, env)
	if room.TimerEndTime == nil || *room.TimerEndTime != EpochMillis(env.Now.UnixMilli()+5*60000) {
		t.Fatalf("unexpected timer end %v", room.TimerEndTime)
	}
	if room.TimerDuration == nil || *room.TimerDuration != 5 {
		t.Fatalf("unexpected timer duration %v", room.TimerDuration)
	}

	Reduce(room, ClearTimer{}, env)
	if room.TimerEndTime != nil || room.TimerDuration != nil {
		t.Fatalf("expected timer to be cleared")
	}
}

func TestSetTimerIgnoresOutOfRangeDurations(t *testing.T) {
	room := newTestRoom()
	for _, minutes := range []float64{0, -3, MaxTimerMinutes + 1, 1e300} {
		if Reduce(room, SetTimer{DurationMinutes: minutes}, testEnv()).Changed {
			t.Fatalf("duration %v must be ignored", minutes)
		}
	}
	if room.TimerEndTime != nil {
		t.Fatalf("timer must stay unset, got %v", *room.TimerEndTime)
	}

	Reduce(room, mustDecode(t, `{"type":"set-timer","durationMinutes":10080}`), testEnv())
	if room.TimerEndTime == nil || *room.TimerEndTime <= 0 {
		t.Fatalf("expected a week-long timer, got %v", room.TimerEndTime)
	}
}

func TestSetReady(t *testing.T) {
	room := newTestRoom()
	room.Users = []User{{ID: "user-a"}}
	if !Reduce(room, SetReady{UserID: "user-a", Ready: true}, testEnv()).Changed || !room.Users[0].Ready {
		t.Fatalf("expected user to be ready")
	}
	if Reduce(room, SetReady{UserID: "missing", Ready: true}, testEnv()).Changed {
		t.Fatalf("missing user must be a no-op")
	}
}

func TestReplyAndSummaryEffects(t *testing.T) {
	room := newTestRoom()
	if outcome := Reduce(room, RequestState{}, testEnv()); outcome.Effect != EffectReplyState || outcome.Changed {
		t.Fatalf("unexpected request-state outcome %+v", outcome)
	}
	if outcome := Reduce(room, GenerateAISummary{}, testEnv()); outcome.Effect != EffectGenerateSummary || outcome.Changed {
		t.Fatalf("unexpected generate-ai-summary outcome %+v", outcome)
	}

	summary := Summary{KeyInsights: []string{"a", "b", "c"}, GeneratedAt: 42}
	if outcome := ApplySummary(room, summary); !outcome.Changed || room.AISummary.GeneratedAt != 42 {
		t.Fatalf("expected summary to be stored")
	}
}

func TestTwoVoterScenarioAggregatesToMean(t *testing.T) {
	env := testEnv()
	room := Reduce(nil, InitRoom{State: Room{AdminID: "A", Step: StepWaiting}}, env).State
	Reduce(room, AddUser{User: User{ID: "A", Name: "Ada"}}, env)
	Reduce(room, AddUser{User: User{ID: "B", Name: "Bo"}}, env)
	Reduce(room, AddCard{Card: Card{ID: "c1", Text: "Flaky tests", AuthorID: "A"}}, env)
	Reduce(room, AddVote{Vote: Vote{UserID: "A", CardID: "c1", Importance: 9, Complexity: 2}}, env)
	Reduce(room, AddVote{Vote: Vote{UserID: "B", CardID: "c1", Importance: 7, Complexity: 4}}, env)

	aggregated := AggregateCard(room.Cards[0])
	if aggregated.Importance != 8 || aggregated.Complexity != 3 {
		t.Fatalf("unexpected aggregate %+v", aggregated)
	}
	if aggregated.ImportanceSpread != 2 || aggregated.ComplexitySpread != 2 || aggregated.HasHighDisagreement {
		t.Fatalf("unexpected disagreement signal %+v", aggregated)
	}
}

func newTestRoom() *Room {
	return &Room{ID: testRoomID, AdminID: testAdminID, Step: StepInput, Cards: []Card{}, Users: []User{}}
}

func testEnv() ReduceEnv {
	return ReduceEnv{RoomID: testRoomID, Now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func mustDecode(t *testing.T, raw string) Message {
	t.Helper()
	message, err := DecodeMessage([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	return message
}
