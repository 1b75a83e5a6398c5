package game

import "github.com/lox/loveletter/internal/deck"

// PlayRequest describes one attempted card play
type PlayRequest struct {
	PlayerID string
	Card     deck.Card
	TargetID string
	Guess    deck.Card
}

// EffectOutcome is the structured result of resolving a card. It splits
// what is public (eliminations, protection no-ops, whether a Guard guess
// hit) from what only the involved players learned (revealed and
// compared cards, forced discards). Threading this value explicitly into
// the formatter is what keeps secrets out of the broadcast path.
type EffectOutcome struct {
	Card     deck.Card
	ActorID  string
	TargetID string
	Guess    deck.Card

	// TargetProtected means the effect was a no-op against a Handmaid;
	// nothing was revealed and nothing changed.
	TargetProtected bool

	// Guard
	GuessCorrect bool

	// Priest: seen only by the actor
	RevealedCard deck.Card

	// Baron: seen only by the two players compared
	Baron *BaronResult

	// Prince: the forced discard, seen by actor and target
	DiscardedCard deck.Card
	DrewSetAside  bool

	// Public: any elimination reveals the losing card
	Elimination *Elimination
}

// Participants returns the players entitled to the outcome's secrets
func (o *EffectOutcome) Participants() []string {
	if o.TargetID == "" || o.TargetID == o.ActorID {
		return []string{o.ActorID}
	}
	return []string{o.ActorID, o.TargetID}
}

// PlayCard runs the full turn pipeline for one play: validates legality,
// moves the card to the discard pile, applies the effect and returns the
// outcome. All validation happens before the first mutation, so a
// rejected play leaves the round untouched.
//
// The caller is responsible for checking round end and advancing the
// turn afterwards (see FinishTurn).
func (r *Round) PlayCard(req PlayRequest) (*EffectOutcome, error) {
	if err := r.validatePlay(req); err != nil {
		return nil, err
	}

	hand := r.Hands[req.PlayerID]
	hand.Remove(req.Card)
	r.discard(req.PlayerID, req.Card)

	outcome := &EffectOutcome{
		Card:     req.Card,
		ActorID:  req.PlayerID,
		TargetID: req.TargetID,
		Guess:    req.Guess,
	}
	r.applyEffect(req, outcome)
	return outcome, nil
}

// FinishTurn advances to the next player unless the round has ended.
// Callers run CheckEnd first; advancing past a finished round would
// clear a protection flag that showdown narration still wants intact.
func (r *Round) FinishTurn() {
	r.advanceTurn()
}

func (r *Round) validatePlay(req PlayRequest) error {
	if r.State.Ended() {
		return ErrRoundOver
	}
	if req.PlayerID != r.State.TurnPlayerID {
		return ErrNotYourTurn
	}

	hand := r.Hands[req.PlayerID]
	if hand == nil {
		return ErrPlayerEliminated
	}
	if len(hand.Cards) < 2 {
		return ErrMustDrawFirst
	}
	if !hand.Holds(req.Card) {
		return ErrCardNotInHand
	}

	// Countess rule: holding the Countess alongside the King or Prince
	// forces the Countess out.
	if req.Card != deck.Countess && hand.Holds(deck.Countess) &&
		(hand.Holds(deck.King) || hand.Holds(deck.Prince)) {
		return ErrCountessForced
	}

	if req.Card.NeedsTarget() {
		if req.TargetID == "" {
			return ErrInvalidTarget
		}
		if req.TargetID == req.PlayerID && !req.Card.CanTargetSelf() {
			return ErrInvalidTarget
		}
		target := r.Player(req.TargetID)
		if target == nil || target.Eliminated {
			return ErrInvalidTarget
		}
	} else if req.TargetID != "" {
		return ErrInvalidTarget
	}

	if req.Card == deck.Guard {
		if !req.Guess.Valid() {
			return ErrInvalidGuess
		}
	} else if req.Guess != deck.None {
		return ErrInvalidGuess
	}

	return nil
}

func (r *Round) applyEffect(req PlayRequest, outcome *EffectOutcome) {
	// Targeted effects are a no-op against a protected player. A player
	// may always Prince themselves; self-targeting bypasses the check.
	if req.Card.NeedsTarget() && req.TargetID != req.PlayerID {
		if target := r.Hands[req.TargetID]; target != nil && target.Protected {
			outcome.TargetProtected = true
			return
		}
	}

	switch req.Card {
	case deck.Guard:
		r.applyGuard(req, outcome)
	case deck.Priest:
		outcome.RevealedCard = r.Hands[req.TargetID].Other()
	case deck.Baron:
		r.applyBaron(req, outcome)
	case deck.Handmaid:
		r.Hands[req.PlayerID].Protected = true
	case deck.Prince:
		r.applyPrince(req, outcome)
	case deck.King:
		actor, target := r.Hands[req.PlayerID], r.Hands[req.TargetID]
		actor.Cards, target.Cards = target.Cards, actor.Cards
	case deck.Countess:
		// No board effect; the Countess only matters as a constraint.
	case deck.Princess:
		final := r.eliminate(req.PlayerID)
		outcome.Elimination = &Elimination{PlayerID: req.PlayerID, FinalCard: final}
	}
}

func (r *Round) applyGuard(req PlayRequest, outcome *EffectOutcome) {
	// Guessing "Guard" is a guaranteed miss even against a held Guard;
	// it would otherwise be a free shot five times over.
	if req.Guess == deck.Guard {
		return
	}
	target := r.Hands[req.TargetID]
	if target.Holds(req.Guess) {
		outcome.GuessCorrect = true
		final := r.eliminate(req.TargetID)
		outcome.Elimination = &Elimination{PlayerID: req.TargetID, FinalCard: final}
	}
}

func (r *Round) applyBaron(req PlayRequest, outcome *EffectOutcome) {
	actorCard := r.Hands[req.PlayerID].Other()
	targetCard := r.Hands[req.TargetID].Other()

	result := &BaronResult{ActorCard: actorCard, TargetCard: targetCard}
	outcome.Baron = result

	switch {
	case actorCard.Value() > targetCard.Value():
		result.WinnerID = req.PlayerID
		final := r.eliminate(req.TargetID)
		outcome.Elimination = &Elimination{PlayerID: req.TargetID, FinalCard: final}
	case targetCard.Value() > actorCard.Value():
		result.WinnerID = req.TargetID
		final := r.eliminate(req.PlayerID)
		outcome.Elimination = &Elimination{PlayerID: req.PlayerID, FinalCard: final}
	default:
		// Tie: nobody is eliminated, both players saw both cards.
	}
}

func (r *Round) applyPrince(req PlayRequest, outcome *EffectOutcome) {
	target := r.Hands[req.TargetID]

	// When self-targeted the Prince is already on the discard pile, so
	// the remaining card is the one forced out.
	discarded := target.Other()
	outcome.DiscardedCard = discarded

	target.Cards = nil
	r.discard(req.TargetID, discarded)

	if discarded == deck.Princess {
		r.eliminate(req.TargetID)
		outcome.Elimination = &Elimination{PlayerID: req.TargetID, FinalCard: deck.Princess}
		return
	}

	// Replacement comes from the deck, or from the set-aside card once
	// the deck is empty. The set-aside card is not replenished.
	switch {
	case len(r.State.Deck) > 0:
		target.Cards = []deck.Card{r.State.Deck[0]}
		r.State.Deck = r.State.Deck[1:]
	case r.State.SetAside != deck.None && !r.State.SetAsideUsed:
		target.Cards = []deck.Card{r.State.SetAside}
		r.State.SetAsideUsed = true
		outcome.DrewSetAside = true
	}
}
