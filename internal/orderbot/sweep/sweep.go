// Package sweep implements the abandoned-cart recovery job: a periodic scan
// over persisted sessions that nudges parties who walked away mid-order.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dcosta/orderbot/common/retry"
	"github.com/dcosta/orderbot/internal/orderbot/session"
	"github.com/dcosta/orderbot/internal/orderbot/store"
)

const (
	// DefaultInterval is how often the sweep runs.
	DefaultInterval = 10 * time.Minute
	// DefaultThreshold is how long a cart-open session may sit untouched
	// before it counts as abandoned.
	DefaultThreshold = time.Hour
)

// cartOpenStages are the stages in which a party has an order in flight.
var cartOpenStages = []session.Stage{
	session.StageItemSelection,
	session.StageAddressCollection,
}

// Transport delivers the reminder messages (same contract as the dispatcher's).
type Transport interface {
	SendText(ctx context.Context, partyID, text string) error
}

// Sweeper periodically re-engages parties with stale open carts.
type Sweeper struct {
	store     *store.Store
	transport Transport
	interval  time.Duration
	threshold time.Duration

	sendRetry retry.Config
}

// New creates a Sweeper. Non-positive interval or threshold fall back to the
// defaults.
func New(st *store.Store, transport Transport, interval, threshold time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Sweeper{
		store:     st,
		transport: transport,
		interval:  interval,
		threshold: threshold,
		sendRetry: retry.Config{MaxAttempts: 2, InitialDelay: time.Second, MaxDelay: 5 * time.Second},
	}
}

// Run executes the sweep on a fixed interval until ctx is cancelled. It never
// holds any lock the message-handling path needs; every per-party update is a
// self-contained read-modify-write.
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("abandoned-cart sweep started", "interval", s.interval, "threshold", s.threshold)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("abandoned-cart sweep stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				slog.Error("abandoned-cart sweep failed", "err", err)
			}
		}
	}
}

// RunOnce performs a single sweep pass. Per-party failures are logged and
// skipped; the pass only returns an error when the staleness query itself
// fails.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-s.threshold)

	parties, err := s.store.ListStaleSessions(ctx, cartOpenStages, cutoff)
	if err != nil {
		return fmt.Errorf("failed to query stale sessions: %w", err)
	}
	if len(parties) == 0 {
		return nil
	}

	slog.Info("found abandoned carts", "count", len(parties))

	for _, partyID := range parties {
		if err := s.remind(ctx, partyID); err != nil {
			slog.Error("failed to process abandoned cart", "party", partyID, "err", err)
		}
	}
	return nil
}

// remind sends the recovery message to one party and moves it to the
// re-engagement stage. Parties whose cart is empty are skipped untouched.
func (s *Sweeper) remind(ctx context.Context, partyID string) error {
	sess, err := s.store.GetSession(ctx, partyID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if len(sess.Cart) == 0 {
		return nil
	}

	reminder := reminderMessage(sess.CartDescriptions())
	err = retry.Do(ctx, s.sendRetry, func() error {
		return s.transport.SendText(ctx, partyID, reminder)
	})
	if err != nil {
		// Leave the session untouched so the next pass retries this party.
		return fmt.Errorf("failed to send reminder: %w", err)
	}

	sess.Stage = session.StageReengagement
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to re-stage session: %w", err)
	}

	slog.Info("sent abandoned-cart reminder", "party", partyID, "items", len(sess.Cart))
	return nil
}

func reminderMessage(descriptions []string) string {
	return fmt.Sprintf("👋 You left these in your cart: %s. Want to complete your order?\n\n"+
		"Reply anything to continue, or *️⃣ to cancel.",
		strings.Join(descriptions, ", "))
}
