package game

import (
	"strings"
	"testing"

	"github.com/lox/loveletter/internal/deck"
)

var testNames = NameFunc(func(playerID string) string {
	return map[string]string{
		"alice": "Alice",
		"bob":   "Bob",
	}[playerID]
})

func TestPublicMessages(t *testing.T) {
	tests := []struct {
		name    string
		outcome EffectOutcome
		want    string
	}{
		{
			name: "guard correct",
			outcome: EffectOutcome{
				Card: deck.Guard, ActorID: "alice", TargetID: "bob", Guess: deck.Baron,
				GuessCorrect: true,
				Elimination:  &Elimination{PlayerID: "bob", FinalCard: deck.Baron},
			},
			want: "Alice played Guard on Bob, guessed Baron - Correct! Bob is eliminated",
		},
		{
			name: "guard wrong",
			outcome: EffectOutcome{
				Card: deck.Guard, ActorID: "alice", TargetID: "bob", Guess: deck.King,
			},
			want: "Alice played Guard on Bob, guessed King - Wrong guess",
		},
		{
			name: "protected target",
			outcome: EffectOutcome{
				Card: deck.Guard, ActorID: "alice", TargetID: "bob", Guess: deck.King,
				TargetProtected: true,
			},
			want: "Alice played Guard on Bob - No effect (protected)",
		},
		{
			name: "priest",
			outcome: EffectOutcome{
				Card: deck.Priest, ActorID: "alice", TargetID: "bob",
				RevealedCard: deck.Countess,
			},
			want: "Alice played Priest on Bob",
		},
		{
			name: "baron tie",
			outcome: EffectOutcome{
				Card: deck.Baron, ActorID: "alice", TargetID: "bob",
				Baron: &BaronResult{ActorCard: deck.Priest, TargetCard: deck.Priest},
			},
			want: "Alice played Baron on Bob - Tie, no one eliminated",
		},
		{
			name: "baron elimination",
			outcome: EffectOutcome{
				Card: deck.Baron, ActorID: "alice", TargetID: "bob",
				Baron:       &BaronResult{ActorCard: deck.King, TargetCard: deck.Priest, WinnerID: "alice"},
				Elimination: &Elimination{PlayerID: "bob", FinalCard: deck.Priest},
			},
			want: "Alice played Baron on Bob - Bob is eliminated",
		},
		{
			name: "handmaid",
			outcome: EffectOutcome{
				Card: deck.Handmaid, ActorID: "alice",
			},
			want: "Alice played Handmaid - Protected until next turn",
		},
		{
			name: "prince on self",
			outcome: EffectOutcome{
				Card: deck.Prince, ActorID: "alice", TargetID: "alice",
				DiscardedCard: deck.Guard,
			},
			want: "Alice played Prince on themselves",
		},
		{
			name: "prince forces princess",
			outcome: EffectOutcome{
				Card: deck.Prince, ActorID: "alice", TargetID: "bob",
				DiscardedCard: deck.Princess,
				Elimination:   &Elimination{PlayerID: "bob", FinalCard: deck.Princess},
			},
			want: "Alice played Prince on Bob - the Princess was discarded, Bob is eliminated",
		},
		{
			name: "king",
			outcome: EffectOutcome{
				Card: deck.King, ActorID: "alice", TargetID: "bob",
			},
			want: "Alice played King on Bob - Swapped hands",
		},
		{
			name: "countess",
			outcome: EffectOutcome{
				Card: deck.Countess, ActorID: "alice",
			},
			want: "Alice played Countess",
		},
		{
			name: "princess",
			outcome: EffectOutcome{
				Card: deck.Princess, ActorID: "alice",
				Elimination: &Elimination{PlayerID: "alice", FinalCard: deck.Guard},
			},
			want: "Alice played Princess - Eliminated!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := BuildDetails(&tt.outcome, testNames)
			if d.Message != tt.want {
				t.Errorf("message = %q, want %q", d.Message, tt.want)
			}
		})
	}
}

func TestDetailsScopeSecrets(t *testing.T) {
	outcome := &EffectOutcome{
		Card: deck.Priest, ActorID: "alice", TargetID: "bob",
		RevealedCard: deck.Countess,
	}
	d := BuildDetails(outcome, testNames)

	if !d.IsParticipant("alice") || !d.IsParticipant("bob") {
		t.Error("actor and target should be participants")
	}
	if d.IsParticipant("carol") {
		t.Error("bystander should not be a participant")
	}
	if d.RevealedCard != deck.Countess {
		t.Error("participants keep the revealed card")
	}

	red := d.Redacted()
	if red.RevealedCard != deck.None || red.BaronResult != nil || red.DiscardedCard != deck.None {
		t.Errorf("redacted copy leaks secrets: %+v", red)
	}
	if red.Message != d.Message {
		t.Error("redaction should keep the public message")
	}
}

func TestBuildDetailsProtectedTargetHidesSecrets(t *testing.T) {
	outcome := &EffectOutcome{
		Card: deck.Priest, ActorID: "alice", TargetID: "bob",
		TargetProtected: true,
		RevealedCard:    deck.Countess,
	}
	d := BuildDetails(outcome, testNames)
	if d.RevealedCard != deck.None {
		t.Error("a blocked effect should reveal nothing, even to participants")
	}
}

func TestFormatActionPriest(t *testing.T) {
	rec := &ActionRecord{
		PlayerID: "alice",
		TargetID: "bob",
		Type:     ActionPlayCard,
		Card:     deck.Priest,
		Details: Details{
			Message:      "Alice played Priest on Bob",
			Participants: []string{"alice", "bob"},
			RevealedCard: deck.Countess,
		},
	}

	if got := FormatAction(rec, "alice", testNames); !strings.Contains(got, "[You saw: Countess]") {
		t.Errorf("actor's view = %q, want the revealed card", got)
	}
	// The target does not see their own card echoed back.
	if got := FormatAction(rec, "bob", testNames); strings.Contains(got, "Countess") {
		t.Errorf("target's view = %q, should not include the card", got)
	}
	if got := FormatAction(rec, "carol", testNames); strings.Contains(got, "Countess") {
		t.Errorf("bystander's view = %q, should not include the card", got)
	}
}

func TestFormatActionBaron(t *testing.T) {
	rec := &ActionRecord{
		PlayerID: "alice",
		TargetID: "bob",
		Type:     ActionPlayCard,
		Card:     deck.Baron,
		Details: Details{
			Message:      "Alice played Baron on Bob - Bob is eliminated",
			Participants: []string{"alice", "bob"},
			BaronResult:  &BaronResult{ActorCard: deck.King, TargetCard: deck.Priest, WinnerID: "alice"},
		},
	}

	for _, viewer := range []string{"alice", "bob"} {
		if got := FormatAction(rec, viewer, testNames); !strings.Contains(got, "[Alice: King, Bob: Priest]") {
			t.Errorf("%s's view = %q, want the compared cards", viewer, got)
		}
	}
	if got := FormatAction(rec, "carol", testNames); strings.Contains(got, "King") {
		t.Errorf("bystander's view = %q, should not include the cards", got)
	}
}

func TestFormatActionPrince(t *testing.T) {
	rec := &ActionRecord{
		PlayerID: "alice",
		TargetID: "bob",
		Type:     ActionPlayCard,
		Card:     deck.Prince,
		Details: Details{
			Message:       "Alice played Prince on Bob",
			Participants:  []string{"alice", "bob"},
			DiscardedCard: deck.Handmaid,
		},
	}

	if got := FormatAction(rec, "alice", testNames); !strings.Contains(got, "[Discarded: Handmaid]") {
		t.Errorf("participant's view = %q, want the discarded card", got)
	}
	if got := FormatAction(rec, "carol", testNames); strings.Contains(got, "Handmaid") {
		t.Errorf("bystander's view = %q, should not include the card", got)
	}
}

func TestRedactFor(t *testing.T) {
	rec := &ActionRecord{
		PlayerID: "alice",
		TargetID: "bob",
		Details: Details{
			Message:      "Alice played Priest on Bob",
			Participants: []string{"alice", "bob"},
			RevealedCard: deck.Countess,
		},
	}

	if got := RedactFor(rec, "alice"); got.Details.RevealedCard != deck.Countess {
		t.Error("participant should keep the secret fields")
	}
	if got := RedactFor(rec, "carol"); got.Details.RevealedCard != deck.None {
		t.Error("bystander should get the redacted copy")
	}
	// The original record is never mutated.
	if rec.Details.RevealedCard != deck.Countess {
		t.Error("redaction mutated the source record")
	}
}
