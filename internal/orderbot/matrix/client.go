// Package matrix adapts the Matrix protocol to the dispatcher's transport
// contract. Each customer conversation is a direct-message room; the room ID
// doubles as the party identifier.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/dcosta/orderbot/internal/orderbot/store"
)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// OperatorRoom receives order notices. Inbound messages from it are never
	// routed to the ordering conversation.
	OperatorRoom string
	// Store persists the sync token (next_batch) across restarts. When nil an
	// in-memory store is used and room history replays on every restart.
	Store *store.Store
}

// MessageHandler processes one inbound customer message.
type MessageHandler func(ctx context.Context, partyID, text string)

// Client wraps the mautrix client behind the dispatcher's Transport interface.
type Client struct {
	client     *mautrix.Client
	config     *Config
	stopCh     chan struct{}
	msgHandler MessageHandler
}

// New creates a Matrix client.
func New(config *Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	c := &Client{
		client: client,
		config: config,
		stopCh: make(chan struct{}),
	}

	// Attach a persistent sync store so the bot resumes from the last known
	// position after a restart instead of replaying the full room history.
	if config.Store != nil {
		client.Store = config.Store.SyncStore()
		slog.Info("Matrix sync store: using persistent SQLite store")
	} else {
		slog.Warn("Matrix sync store: no store configured, history will replay on restart")
	}

	return c, nil
}

// Start begins syncing with the homeserver and routes inbound customer
// messages to handler. It returns once the sync loop is running.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.msgHandler = handler

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	syncer.OnEventType(event.StateMember, c.handleInvite)

	if c.config.OperatorRoom != "" {
		if err := c.joinRoom(id.RoomID(c.config.OperatorRoom)); err != nil {
			return fmt.Errorf("failed to join operator room %s: %w", c.config.OperatorRoom, err)
		}
	}

	// Sync in the background with exponential back-off reconnection. Without
	// retries a transient homeserver error would silently kill the sync
	// goroutine and leave the bot deaf to all new messages.
	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			backoff = backoffMin // reset before each attempt
			if err := c.client.Sync(); err != nil {
				select {
				case <-c.stopCh:
					return
				default:
				}
				slog.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
				select {
				case <-c.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > backoffMax {
					backoff = backoffMax
				}
				continue
			}
			// Sync returned nil, which only happens on a clean StopSync call.
			return
		}
	}()

	return nil
}

// Stop shuts down the sync loop.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// SendText sends a plain text message to a party's room. It implements the
// dispatcher's and the sweeper's Transport interface.
func (c *Client) SendText(ctx context.Context, partyID, text string) error {
	_, err := c.client.SendText(ctx, id.RoomID(partyID), text)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// handleMessage routes an inbound text message to the registered handler.
func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	// Ignore our own messages.
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}

	msgContent := evt.Content.AsMessage()
	if msgContent == nil || msgContent.MsgType != event.MsgText {
		return
	}

	// Operator chatter never enters the ordering conversation.
	if evt.RoomID.String() == c.config.OperatorRoom {
		return
	}

	if c.msgHandler != nil {
		c.msgHandler(ctx, evt.RoomID.String(), msgContent.Body)
	}
}

// handleInvite accepts room invites so customers can start a conversation by
// inviting the bot to a direct-message room.
func (c *Client) handleInvite(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != c.config.UserID {
		return
	}
	member := evt.Content.AsMember()
	if member == nil || member.Membership != event.MembershipInvite {
		return
	}

	if err := c.joinRoom(evt.RoomID); err != nil {
		slog.Error("failed to accept room invite", "room", evt.RoomID, "err", err)
		return
	}
	slog.Info("accepted room invite", "room", evt.RoomID, "from", evt.Sender)
}

// joinRoom attempts to join a room, tolerating rooms the bot is already in.
func (c *Client) joinRoom(roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(context.Background(), roomID)
	if err != nil {
		// Homeservers return M_FORBIDDEN when the bot is already a member.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("joinRoom: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}
