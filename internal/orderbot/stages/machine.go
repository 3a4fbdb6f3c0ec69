// Package stages implements the ordering-conversation state machine.
//
// Each stage handler is a pure transition: it consumes the inbound text,
// mutates the session in memory and returns the messages to deliver. The
// machine never touches the transport or the store; the dispatcher persists
// the session and performs every send.
package stages

import (
	"strings"

	"github.com/google/uuid"

	"github.com/dcosta/orderbot/internal/orderbot/catalog"
	"github.com/dcosta/orderbot/internal/orderbot/session"
)

// Result is the outcome of handling one inbound message.
type Result struct {
	// Replies are sent to the party in order. Empty means silence.
	Replies []string
	// Notice is an operator-channel payload (the "new order" notification).
	// It is never sent to the party. Empty means no notice.
	Notice string
}

// Machine routes an inbound message to the handler for the session's current
// stage. It is stateless and safe for concurrent use.
type Machine struct {
	catalog *catalog.Catalog
}

// New creates a Machine over the given catalog.
func New(cat *catalog.Catalog) *Machine {
	return &Machine{catalog: cat}
}

// Handle processes one inbound message for the session's current stage,
// mutating the session and returning the resulting messages.
func (m *Machine) Handle(sess *session.Session, text string) Result {
	text = strings.TrimSpace(text)

	switch sess.Stage {
	case session.StageWelcome:
		return m.handleWelcome(sess, text)
	case session.StageItemSelection:
		return m.handleItemSelection(sess, text)
	case session.StageAddressCollection:
		return m.handleAddressCollection(sess, text)
	case session.StageDispatch:
		return m.handleDispatch(sess, text)
	case session.StageHandoff:
		// A human operator has taken over; the bot stays quiet.
		return Result{}
	case session.StageReengagement:
		return m.handleReengagement(sess, text)
	default:
		// Stored stages are validated on load, so this branch is unreachable
		// in practice. Re-prompt without mutating anything.
		return Result{Replies: []string{invalidOptionReply()}}
	}
}

func (m *Machine) handleWelcome(sess *session.Session, text string) Result {
	switch text {
	case "1":
		sess.Stage = session.StageItemSelection
		return Result{Replies: []string{menuListing(m.catalog)}}
	case "2":
		// Informational only; the party stays at the welcome stage.
		return Result{Replies: []string{deliveryInfoReply(m.catalog.Neighborhoods())}}
	case "0":
		sess.Stage = session.StageHandoff
		return Result{Replies: []string{handoffReply()}}
	default:
		return Result{Replies: []string{invalidOptionReply()}}
	}
}

func (m *Machine) handleItemSelection(sess *session.Session, text string) Result {
	switch text {
	case "*":
		sess.Reset()
		return Result{Replies: []string{canceledReply()}}
	case "#":
		sess.Stage = session.StageAddressCollection
		return Result{Replies: []string{addressPromptReply()}}
	}

	item, ok := m.catalog.Lookup(text)
	if !ok {
		return Result{Replies: []string{invalidItemReply()}}
	}

	// One cart line per unit; repeating a code adds another unit.
	sess.Cart = append(sess.Cart, session.CartLine{
		CatalogID:   item.ID,
		Description: item.Description,
		UnitPrice:   item.Price,
	})
	return Result{Replies: []string{itemAddedReply(item.Description)}}
}

func (m *Machine) handleAddressCollection(sess *session.Session, text string) Result {
	if text == "*" {
		sess.Reset()
		return Result{Replies: []string{canceledReply()}}
	}

	sess.Address = text
	sess.Stage = session.StageDispatch

	// The summary goes out as its own message before the confirmation reply.
	return Result{Replies: []string{
		orderSummaryReply(sess),
		orderPlacedReply(),
	}}
}

func (m *Machine) handleDispatch(sess *session.Session, text string) Result {
	sess.Stage = session.StageHandoff

	ref := uuid.NewString()[:8]
	return Result{
		Replies: []string{dispatchAckReply()},
		Notice:  newOrderNotice(sess, ref, text),
	}
}

func (m *Machine) handleReengagement(sess *session.Session, text string) Result {
	if text == "*" {
		sess.Reset()
		return Result{Replies: []string{reengagementCanceledReply()}}
	}

	sess.Stage = session.StageItemSelection
	return Result{Replies: []string{reengagementContinueReply()}}
}
