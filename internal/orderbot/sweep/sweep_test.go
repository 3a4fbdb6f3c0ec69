package sweep_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dcosta/orderbot/internal/orderbot/session"
	"github.com/dcosta/orderbot/internal/orderbot/store"
	"github.com/dcosta/orderbot/internal/orderbot/sweep"
)

// fakeTransport records sent messages and can be told to fail for specific
// parties.
type fakeTransport struct {
	mu      sync.Mutex
	sent    map[string][]string
	failFor map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(map[string][]string), failFor: make(map[string]bool)}
}

func (f *fakeTransport) SendText(_ context.Context, partyID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[partyID] {
		return errors.New("send failed")
	}
	f.sent[partyID] = append(f.sent[partyID], text)
	return nil
}

func (f *fakeTransport) sentTo(partyID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[partyID]
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "orderbot-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db file: %v", err)
	}
	f.Close()

	s, err := store.New(f.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveSession(t *testing.T, s *store.Store, partyID string, stage session.Stage, cart []session.CartLine, idleFor time.Duration) {
	t.Helper()
	sess := session.New(partyID)
	sess.Stage = stage
	sess.Cart = cart
	if err := s.SaveSession(context.Background(), sess); err != nil {
		t.Fatalf("SaveSession(%s): %v", partyID, err)
	}
	if idleFor > 0 {
		if _, err := s.DB().Exec(
			"UPDATE sessions SET last_updated_at = ? WHERE party_id = ?",
			time.Now().Add(-idleFor).UnixMilli(), partyID,
		); err != nil {
			t.Fatalf("failed to backdate session: %v", err)
		}
	}
}

func oneMilk() []session.CartLine {
	return []session.CartLine{{CatalogID: "1", Description: "AL Ain Milk", UnitPrice: 6}}
}

func TestRunOnce_RemindsAndRestages(t *testing.T) {
	st := newTestStore(t)
	tr := newFakeTransport()
	sw := sweep.New(st, tr, time.Minute, time.Hour)

	// Scenario: one cart item, idle 61 minutes against a 60-minute threshold.
	saveSession(t, st, "stale", session.StageItemSelection, oneMilk(), 61*time.Minute)

	if err := sw.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	msgs := tr.sentTo("stale")
	if len(msgs) != 1 {
		t.Fatalf("reminders: got %d, want 1", len(msgs))
	}
	if !strings.Contains(msgs[0], "AL Ain Milk") {
		t.Errorf("reminder must name the cart item: %q", msgs[0])
	}

	sess, err := st.GetSession(context.Background(), "stale")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Stage != session.StageReengagement {
		t.Errorf("stage: got %v, want reengagement", sess.Stage)
	}
	if len(sess.Cart) != 1 {
		t.Errorf("cart must be preserved: %+v", sess.Cart)
	}
}

func TestRunOnce_SkipsFreshSessions(t *testing.T) {
	st := newTestStore(t)
	tr := newFakeTransport()
	sw := sweep.New(st, tr, time.Minute, time.Hour)

	saveSession(t, st, "fresh", session.StageItemSelection, oneMilk(), 0)

	if err := sw.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(tr.sentTo("fresh")) != 0 {
		t.Error("fresh session must not be reminded")
	}
}

func TestRunOnce_EmptyCartNeverTouched(t *testing.T) {
	st := newTestStore(t)
	tr := newFakeTransport()
	sw := sweep.New(st, tr, time.Minute, time.Hour)

	saveSession(t, st, "empty-cart", session.StageItemSelection, nil, 2*time.Hour)

	if err := sw.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(tr.sentTo("empty-cart")) != 0 {
		t.Error("empty cart must not be reminded")
	}
	sess, err := st.GetSession(context.Background(), "empty-cart")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Stage != session.StageItemSelection {
		t.Errorf("empty cart must not be re-staged, got %v", sess.Stage)
	}
}

func TestRunOnce_IgnoresNonCartStages(t *testing.T) {
	st := newTestStore(t)
	tr := newFakeTransport()
	sw := sweep.New(st, tr, time.Minute, time.Hour)

	saveSession(t, st, "placed", session.StageHandoff, oneMilk(), 3*time.Hour)
	saveSession(t, st, "welcome", session.StageWelcome, nil, 3*time.Hour)

	if err := sw.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(tr.sentTo("placed")) != 0 || len(tr.sentTo("welcome")) != 0 {
		t.Error("only cart-open stages are swept")
	}
}

func TestRunOnce_SendFailureIsolated(t *testing.T) {
	st := newTestStore(t)
	tr := newFakeTransport()
	tr.failFor["broken"] = true
	sw := sweep.New(st, tr, time.Minute, time.Hour)

	saveSession(t, st, "broken", session.StageItemSelection, oneMilk(), 2*time.Hour)
	saveSession(t, st, "healthy", session.StageAddressCollection, oneMilk(), 2*time.Hour)

	if err := sw.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	// The healthy party is still processed.
	if len(tr.sentTo("healthy")) != 1 {
		t.Errorf("healthy party reminders: got %d, want 1", len(tr.sentTo("healthy")))
	}

	// The failed party keeps its stage so the next pass retries it.
	sess, err := st.GetSession(context.Background(), "broken")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Stage != session.StageItemSelection {
		t.Errorf("failed party must not be re-staged, got %v", sess.Stage)
	}
}
