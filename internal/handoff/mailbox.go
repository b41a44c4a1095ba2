package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exam-prep-service/internal/domain"
)

// Store keeps opaque payloads until they are taken once.
type Store interface {
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// Take returns and deletes the payload; domain.ErrHandoffEmpty when absent.
	Take(ctx context.Context, key string) ([]byte, error)
}

// Kind names a mailbox.
type Kind string

const (
	KindLaunch   Kind = "launch"
	KindRevision Kind = "revision"
)

// DefaultTTL bounds how long an unclaimed message stays around.
const DefaultTTL = 10 * time.Minute

// Mailbox passes one typed message per user across a navigation boundary.
// Receiving deletes the message, so a stale message can never be read twice.
type Mailbox[T any] struct {
	store Store
	kind  Kind
	ttl   time.Duration
}

func NewMailbox[T any](store Store, kind Kind, ttl time.Duration) *Mailbox[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Mailbox[T]{store: store, kind: kind, ttl: ttl}
}

// Send replaces any pending message for userID.
func (m *Mailbox[T]) Send(ctx context.Context, userID string, msg T) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s handoff: %w", m.kind, err)
	}
	return m.store.Put(ctx, m.key(userID), payload, m.ttl)
}

// Receive consumes the pending message for userID.
func (m *Mailbox[T]) Receive(ctx context.Context, userID string) (T, error) {
	var msg T
	if userID == "" {
		return msg, domain.ErrUnauthenticated
	}
	payload, err := m.store.Take(ctx, m.key(userID))
	if err != nil {
		if errors.Is(err, domain.ErrHandoffEmpty) {
			return msg, err
		}
		return msg, fmt.Errorf("take %s handoff: %w", m.kind, err)
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("decode %s handoff: %w", m.kind, err)
	}
	return msg, nil
}

func (m *Mailbox[T]) key(userID string) string {
	return "handoff:" + string(m.kind) + ":" + userID
}

// Mailboxes groups the two handoff channels the exam flow uses.
type Mailboxes struct {
	Launch   *Mailbox[domain.LaunchRequest]
	Revision *Mailbox[domain.RevisionQueue]
}

func NewMailboxes(store Store, ttl time.Duration) Mailboxes {
	return Mailboxes{
		Launch:   NewMailbox[domain.LaunchRequest](store, KindLaunch, ttl),
		Revision: NewMailbox[domain.RevisionQueue](store, KindRevision, ttl),
	}
}
