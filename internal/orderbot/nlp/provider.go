// Package nlp provides the natural-language ordering layer.
//
// The layer sits between the raw inbound message and the stage machine. Its
// sole responsibility is translation: convert a free-form sentence such as
// "send me 2 apples to Downtown" into a structured ParsedOrder that the cart
// builder can reconcile against the catalog. A cheap pre-filter gates the
// external classification call, and every classifier failure degrades to a
// negative signal so the stage machine remains the safe default path.
package nlp

import (
	"context"
	"errors"
)

// ErrNotAnOrder is returned by a Provider when the message is understood but
// carries no order intent (greetings, questions, complaints). Callers fall
// back to the stage machine.
var ErrNotAnOrder = errors.New("nlp: message is not an order")

// OrderLine is one extracted line item, prior to catalog reconciliation.
type OrderLine struct {
	// CatalogID is the catalog item id the classifier matched.
	CatalogID string `json:"id"`
	// Quantity is how many units were requested. Values below 1 are clamped
	// to 1 during reconciliation.
	Quantity int `json:"quantity"`
	// Modifications carries free-text tweaks like "no mayo".
	Modifications string `json:"modifications,omitempty"`
}

// ParsedOrder is the classifier's structured output. It is ephemeral: it is
// never persisted as-is and always passes through cart reconciliation first.
type ParsedOrder struct {
	Items   []OrderLine `json:"items"`
	Address string      `json:"address,omitempty"`
}

// Provider extracts order intent from a free-form message.
//
// Implementations must be safe for concurrent use. catalogDescription is the
// rendered catalog (catalog.PromptDescription) injected into the model
// context on every call so stale data is never served.
type Provider interface {
	// Classify returns the extracted order, or ErrNotAnOrder when the message
	// carries no order intent. Any other error means the classification step
	// failed; callers treat both identically (fall back to the stage machine).
	Classify(ctx context.Context, message, catalogDescription string) (*ParsedOrder, error)
}
