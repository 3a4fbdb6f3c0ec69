// Package session defines the per-party conversational state: the ordering
// stage, the cart and the delivery address. Sessions are persisted by the
// store package and mutated by the dispatcher, the stage machine and the
// natural-language pipeline during the handling of a single message.
package session

import (
	"fmt"
	"time"
)

// Stage is the party's position in the ordering conversation.
//
// The numeric values are part of the persisted record layout and must not be
// renumbered. 1 is unused (kept free by the original menu layout) and 99 is
// the re-engagement stage the abandoned-cart sweep moves parties into.
type Stage int

const (
	// StageWelcome greets the party and offers the top-level menu.
	StageWelcome Stage = 0
	// StageItemSelection collects catalog item codes into the cart.
	StageItemSelection Stage = 2
	// StageAddressCollection asks for the delivery address.
	StageAddressCollection Stage = 3
	// StageDispatch collects final delivery details and hands the order
	// to a human operator.
	StageDispatch Stage = 4
	// StageHandoff means a human operator has taken over; the bot stays quiet.
	StageHandoff Stage = 5
	// StageReengagement is set by the sweep after a cart has gone stale.
	StageReengagement Stage = 99
)

// String returns a short human-readable stage name for logging.
func (s Stage) String() string {
	switch s {
	case StageWelcome:
		return "welcome"
	case StageItemSelection:
		return "item-selection"
	case StageAddressCollection:
		return "address-collection"
	case StageDispatch:
		return "dispatch"
	case StageHandoff:
		return "handoff"
	case StageReengagement:
		return "reengagement"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ParseStage converts a persisted integer into a Stage. A value outside the
// known set is a data-corruption signal, not a silent default, so callers get
// an error and decide how to recover.
func ParseStage(v int) (Stage, error) {
	switch s := Stage(v); s {
	case StageWelcome, StageItemSelection, StageAddressCollection,
		StageDispatch, StageHandoff, StageReengagement:
		return s, nil
	default:
		return StageWelcome, fmt.Errorf("unknown stage value %d", v)
	}
}

// CartLine is one unit of one catalog item in the cart. Quantities are
// expressed by repetition: ordering three of an item appends three lines.
type CartLine struct {
	CatalogID     string  `json:"catalog_id"`
	Description   string  `json:"description"`
	UnitPrice     float64 `json:"unit_price"`
	Modifications string  `json:"modifications,omitempty"`
}

// Session is the persisted conversational state for one party.
type Session struct {
	// PartyID is the remote conversation identity (primary key).
	PartyID string
	// Stage is the current position in the ordering conversation.
	Stage Stage
	// Cart holds selected items in insertion order, one line per unit.
	Cart []CartLine
	// Address is the delivery address, empty until collected.
	Address string
	// LastUpdatedAt is stamped by the store on every save and drives the
	// abandoned-cart staleness query.
	LastUpdatedAt time.Time
}

// New returns the default session for a party that has never been seen:
// welcome stage, empty cart, no address. The caller decides whether to
// persist it.
func New(partyID string) *Session {
	return &Session{
		PartyID: partyID,
		Stage:   StageWelcome,
	}
}

// Reset clears the session back to the welcome stage, dropping the cart and
// the address. Cancellation resets in place; the record is never deleted.
func (s *Session) Reset() {
	s.Stage = StageWelcome
	s.Cart = nil
	s.Address = ""
}

// CartTotal recomputes the cart total from the live lines. It is intentionally
// not memoized; summaries and dispatch notices always reflect the cart as-is.
func (s *Session) CartTotal() float64 {
	var total float64
	for _, line := range s.Cart {
		total += line.UnitPrice
	}
	return total
}

// CartDescriptions returns the description of every cart line in insertion
// order, used for summaries and reminder messages.
func (s *Session) CartDescriptions() []string {
	if len(s.Cart) == 0 {
		return nil
	}
	out := make([]string, len(s.Cart))
	for i, line := range s.Cart {
		out[i] = line.Description
	}
	return out
}
