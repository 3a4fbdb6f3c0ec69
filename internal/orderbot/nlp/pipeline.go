package nlp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dcosta/orderbot/internal/orderbot/catalog"
	"github.com/dcosta/orderbot/internal/orderbot/session"
)

// DefaultClassifyTimeout bounds a single classification call. The pipeline is
// an optimization over the stage machine; a slow classifier must never stall
// message handling for long.
const DefaultClassifyTimeout = 10 * time.Second

// Pipeline intercepts inbound messages ahead of the stage machine and tries
// to handle them as natural-language orders.
//
// The pipeline mutates the session in memory only. The dispatcher remains the
// single writer: it persists the session before any reply is sent.
type Pipeline struct {
	provider Provider
	catalog  *catalog.Catalog
	keywords []string
	timeout  time.Duration
}

// NewPipeline creates a Pipeline over the given provider and catalog.
// A nil provider disables the pipeline entirely: Process becomes a no-op
// pass-through, which is how a missing API key is modelled.
func NewPipeline(provider Provider, cat *catalog.Catalog, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = DefaultClassifyTimeout
	}
	return &Pipeline{
		provider: provider,
		catalog:  cat,
		keywords: cat.Keywords(),
		timeout:  timeout,
	}
}

// Enabled reports whether a classifier is configured.
func (p *Pipeline) Enabled() bool {
	return p != nil && p.provider != nil
}

// Process attempts to handle message as a natural-language order. When it
// returns handled=true the session has been mutated (cart replaced, stage
// advanced) and replies must be delivered in order after the session is
// persisted. handled=false means the session is untouched and the stage
// machine should process the raw text instead.
func (p *Pipeline) Process(ctx context.Context, sess *session.Session, message string) (replies []string, handled bool) {
	if !p.Enabled() {
		return nil, false
	}
	// Orders already placed (and handed-off conversations) are out of scope.
	if sess.Stage >= session.StageDispatch {
		return nil, false
	}
	if !ShouldAttempt(message, p.keywords) {
		return nil, false
	}

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	order, err := p.provider.Classify(cctx, message, p.catalog.PromptDescription())
	if err != nil {
		if errors.Is(err, ErrNotAnOrder) {
			slog.Debug("message is not an order, passing to stage machine", "party", sess.PartyID)
		} else {
			// Classifier failures never propagate; the stage machine is the
			// safe default.
			slog.Warn("order classification failed, passing to stage machine", "party", sess.PartyID, "err", err)
		}
		return nil, false
	}

	cart := BuildCart(order, p.catalog)
	if len(cart.UnmatchedIDs) > 0 {
		slog.Info("classifier produced unknown catalog ids", "party", sess.PartyID, "ids", cart.UnmatchedIDs)
	}
	if len(cart.Lines) == 0 {
		// Nothing matched the catalog; decline and let the stage machine
		// process the raw text.
		return nil, false
	}

	sess.Cart = cart.Lines

	if cart.Address != "" {
		// Full order with address: skip address collection entirely.
		sess.Address = cart.Address
		sess.Stage = session.StageDispatch
		return []string{cart.Summary(), cart.NextStepPrompt()}, true
	}

	sess.Stage = session.StageAddressCollection
	return []string{cart.Summary() + "\n" + cart.NextStepPrompt()}, true
}
