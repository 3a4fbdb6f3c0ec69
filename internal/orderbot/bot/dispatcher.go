// Package bot implements the message dispatcher: the single transport-facing
// loop that loads a party's session, runs the natural-language pipeline,
// falls back to the stage machine, persists the session and delivers the
// resulting messages.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dcosta/orderbot/common/retry"
	"github.com/dcosta/orderbot/internal/orderbot/nlp"
	"github.com/dcosta/orderbot/internal/orderbot/session"
	"github.com/dcosta/orderbot/internal/orderbot/stages"
	"github.com/dcosta/orderbot/internal/orderbot/store"
)

// Transport delivers outbound text messages. The Matrix adapter implements
// it; tests substitute an in-memory fake.
type Transport interface {
	SendText(ctx context.Context, partyID, text string) error
}

// sendRetry bounds redelivery of transient transport failures. A message
// that still fails after these attempts is dropped and logged; the party's
// session has already been persisted at that point.
var sendRetry = retry.Config{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     5 * time.Second,
}

// Dispatcher is the sole mutator-of-record for sessions: the pipeline and the
// stage machine mutate a session in memory, and the dispatcher persists it
// exactly once per message, before any reply goes out.
type Dispatcher struct {
	store        *store.Store
	machine      *stages.Machine
	pipeline     *nlp.Pipeline
	transport    Transport
	operatorRoom string
}

// New creates a Dispatcher. operatorRoom may be empty, in which case operator
// notices are logged instead of delivered.
func New(st *store.Store, machine *stages.Machine, pipeline *nlp.Pipeline, transport Transport, operatorRoom string) *Dispatcher {
	return &Dispatcher{
		store:        st,
		machine:      machine,
		pipeline:     pipeline,
		transport:    transport,
		operatorRoom: operatorRoom,
	}
}

// HandleMessage processes one inbound message for one party. It never
// returns an error and never panics outward: any failure is logged and the
// message is treated as "no reply, no mutation" so the dispatch loop
// survives.
func (d *Dispatcher) HandleMessage(ctx context.Context, partyID, text string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling message", "party", partyID, "panic", r)
		}
	}()

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	sess, err := d.store.GetSession(ctx, partyID)
	if err != nil {
		slog.Error("failed to load session, dropping message", "party", partyID, "err", err)
		return
	}

	result, err := d.route(ctx, sess, text)
	if err != nil {
		slog.Error("failed to handle message, dropping it", "party", partyID, "err", err)
		return
	}

	for _, reply := range result.Replies {
		d.send(ctx, partyID, reply)
	}
	if result.Notice != "" {
		d.notifyOperator(ctx, result.Notice)
	}
}

// route runs the NL pipeline, falls back to the stage machine and persists
// the mutated session. The session is saved before the caller sends anything.
func (d *Dispatcher) route(ctx context.Context, sess *session.Session, text string) (stages.Result, error) {
	if replies, handled := d.pipeline.Process(ctx, sess, text); handled {
		if err := d.store.SaveSession(ctx, sess); err != nil {
			return stages.Result{}, fmt.Errorf("failed to persist session after pipeline: %w", err)
		}
		return stages.Result{Replies: replies}, nil
	}

	result := d.machine.Handle(sess, text)
	if err := d.store.SaveSession(ctx, sess); err != nil {
		return stages.Result{}, fmt.Errorf("failed to persist session after stage machine: %w", err)
	}
	return result, nil
}

// send delivers one reply to the party, retrying transient failures. A send
// that ultimately fails is logged and skipped; the session stays persisted.
func (d *Dispatcher) send(ctx context.Context, partyID, text string) {
	err := retry.Do(ctx, sendRetry, func() error {
		return d.transport.SendText(ctx, partyID, text)
	})
	if err != nil {
		slog.Error("failed to send reply", "party", partyID, "err", err)
	}
}

// notifyOperator delivers the "new order" notice to the operator room.
func (d *Dispatcher) notifyOperator(ctx context.Context, notice string) {
	if d.operatorRoom == "" {
		slog.Warn("no operator room configured, logging order notice instead", "notice", notice)
		return
	}
	d.send(ctx, d.operatorRoom, notice)
}
