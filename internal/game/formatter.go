package game

import (
	"fmt"

	"github.com/lox/loveletter/internal/deck"
)

// NameFunc resolves a player id to a display name
type NameFunc func(playerID string) string

// BuildDetails assembles the audit details for a resolved play: the
// public narrative everyone may read, and the secret fields scoped to
// the outcome's participants.
func BuildDetails(outcome *EffectOutcome, names NameFunc) Details {
	d := Details{
		Message:         publicMessage(outcome, names),
		Participants:    outcome.Participants(),
		TargetProtected: outcome.TargetProtected,
		GuessCard:       outcome.Guess,
		Elimination:     outcome.Elimination,
	}
	if !outcome.TargetProtected {
		d.RevealedCard = outcome.RevealedCard
		d.DiscardedCard = outcome.DiscardedCard
		d.BaronResult = outcome.Baron
	}
	return d
}

// publicMessage builds the narrative line safe for every player.
// Eliminations are public, as is the fact a Guard guess missed; the
// cards seen by a Priest or compared by a Baron are not.
func publicMessage(o *EffectOutcome, names NameFunc) string {
	actor := names(o.ActorID)
	target := ""
	if o.TargetID != "" {
		target = names(o.TargetID)
	}

	if o.TargetProtected {
		return fmt.Sprintf("%s played %s on %s - No effect (protected)", actor, o.Card, target)
	}

	switch o.Card {
	case deck.Guard:
		msg := fmt.Sprintf("%s played Guard on %s, guessed %s", actor, target, o.Guess)
		if o.GuessCorrect {
			return msg + fmt.Sprintf(" - Correct! %s is eliminated", target)
		}
		return msg + " - Wrong guess"

	case deck.Priest:
		return fmt.Sprintf("%s played Priest on %s", actor, target)

	case deck.Baron:
		msg := fmt.Sprintf("%s played Baron on %s", actor, target)
		if o.Baron == nil {
			return msg
		}
		if o.Baron.WinnerID == "" {
			return msg + " - Tie, no one eliminated"
		}
		if o.Elimination != nil {
			return msg + fmt.Sprintf(" - %s is eliminated", names(o.Elimination.PlayerID))
		}
		return msg

	case deck.Handmaid:
		return fmt.Sprintf("%s played Handmaid - Protected until next turn", actor)

	case deck.Prince:
		var msg string
		if o.TargetID == o.ActorID {
			msg = fmt.Sprintf("%s played Prince on themselves", actor)
		} else {
			msg = fmt.Sprintf("%s played Prince on %s", actor, target)
		}
		if o.DiscardedCard == deck.Princess {
			msg += fmt.Sprintf(" - the Princess was discarded, %s is eliminated", target)
		}
		return msg

	case deck.King:
		return fmt.Sprintf("%s played King on %s - Swapped hands", actor, target)

	case deck.Countess:
		return fmt.Sprintf("%s played Countess", actor)

	case deck.Princess:
		return fmt.Sprintf("%s played Princess - Eliminated!", actor)

	default:
		return fmt.Sprintf("%s played %s", actor, o.Card)
	}
}

// FormatAction renders an action record for one viewer: the public
// narrative, plus bracketed secrets when the viewer took part in the
// action. Non-participants never see the secret fields.
func FormatAction(rec *ActionRecord, viewerID string, names NameFunc) string {
	msg := rec.Details.Message
	if !rec.Details.IsParticipant(viewerID) || rec.Details.TargetProtected {
		return msg
	}

	switch rec.Card {
	case deck.Priest:
		// Only the actor saw the card.
		if viewerID == rec.PlayerID && rec.Details.RevealedCard != deck.None {
			msg += fmt.Sprintf(" [You saw: %s]", rec.Details.RevealedCard)
		}

	case deck.Baron:
		if br := rec.Details.BaronResult; br != nil {
			msg += fmt.Sprintf(" [%s: %s, %s: %s]",
				names(rec.PlayerID), br.ActorCard,
				names(rec.TargetID), br.TargetCard)
		}

	case deck.Prince:
		if c := rec.Details.DiscardedCard; c != deck.None && c != deck.Princess {
			msg += fmt.Sprintf(" [Discarded: %s]", c)
		}
	}

	return msg
}

// RedactFor returns the record with details the viewer is entitled to:
// participants get everything, everyone else the redacted copy.
func RedactFor(rec *ActionRecord, viewerID string) *ActionRecord {
	if rec.Details.IsParticipant(viewerID) {
		return rec
	}
	out := *rec
	out.Details = rec.Details.Redacted()
	return &out
}
