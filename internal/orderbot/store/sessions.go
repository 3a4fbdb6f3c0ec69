package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dcosta/orderbot/internal/orderbot/session"
)

// sessionBlob is the JSON layout of the state_data column. Its schema is
// private to the store; other components only see session.Session.
type sessionBlob struct {
	Cart    []session.CartLine `json:"cart,omitempty"`
	Address string             `json:"address,omitempty"`
}

// GetSession returns the persisted session for partyID, or a fresh default
// session when the party has never been seen. The default is NOT persisted;
// the caller saves it explicitly once it has handled the message.
//
// A corrupted state blob or an out-of-range stage value is logged and treated
// as a default session rather than an error. An error is returned only for a
// genuine query failure.
func (s *Store) GetSession(ctx context.Context, partyID string) (*session.Session, error) {
	var (
		stageValue int
		stateData  string
		updatedAt  int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT stage, state_data, last_updated_at
		FROM sessions
		WHERE party_id = ?
	`, partyID).Scan(&stageValue, &stateData, &updatedAt)

	if err == sql.ErrNoRows {
		return session.New(partyID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	stage, err := session.ParseStage(stageValue)
	if err != nil {
		slog.Warn("corrupted session stage, falling back to default", "party", partyID, "err", err)
		return session.New(partyID), nil
	}

	var blob sessionBlob
	if err := json.Unmarshal([]byte(stateData), &blob); err != nil {
		slog.Warn("corrupted session state blob, falling back to default", "party", partyID, "err", err)
		return session.New(partyID), nil
	}

	return &session.Session{
		PartyID:       partyID,
		Stage:         stage,
		Cart:          blob.Cart,
		Address:       blob.Address,
		LastUpdatedAt: time.UnixMilli(updatedAt),
	}, nil
}

// SaveSession upserts the session by party id, stamping last_updated_at with
// the current time. Each save is a single complete upsert, so concurrent
// writers for the same party degrade to last-write-wins.
func (s *Store) SaveSession(ctx context.Context, sess *session.Session) error {
	blob, err := json.Marshal(sessionBlob{Cart: sess.Cart, Address: sess.Address})
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (party_id, stage, state_data, last_updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(party_id) DO UPDATE SET
			stage = excluded.stage,
			state_data = excluded.state_data,
			last_updated_at = excluded.last_updated_at
	`, sess.PartyID, int(sess.Stage), string(blob), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	sess.LastUpdatedAt = now
	return nil
}

// ListStaleSessions returns the party ids whose stage is in stages and whose
// last update is strictly older than olderThan. No ordering is guaranteed.
func (s *Store) ListStaleSessions(ctx context.Context, stages []session.Stage, olderThan time.Time) ([]string, error) {
	if len(stages) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(stages)), ",")
	args := make([]any, 0, len(stages)+1)
	for _, stage := range stages {
		args = append(args, int(stage))
	}
	args = append(args, olderThan.UnixMilli())

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT party_id FROM sessions
		WHERE stage IN (%s) AND last_updated_at < ?
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	defer rows.Close()

	var parties []string
	for rows.Next() {
		var partyID string
		if err := rows.Scan(&partyID); err != nil {
			return nil, fmt.Errorf("failed to scan stale session: %w", err)
		}
		parties = append(parties, partyID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale sessions: %w", err)
	}

	return parties, nil
}
