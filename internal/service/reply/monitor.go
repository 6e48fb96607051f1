// Package reply detects whether a lead has responded since a sequence
// started. A reply always wins over a scheduled send. The check is
// best-effort against the inbound webhook: a reply persisted after this
// tick's read is caught on the next tick, which is the documented race.
package reply

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/outreachly/drip-engine/internal/repository"
)

// DefaultLookback is how many recent messages are inspected. Replies older
// than the enrollment start are irrelevant, so a small window is enough.
const DefaultLookback = 10

type Monitor struct {
	messages repository.MessageRepository
	lookback int
}

func NewMonitor(messages repository.MessageRepository, lookback int) *Monitor {
	if lookback < DefaultLookback {
		lookback = DefaultLookback
	}
	return &Monitor{messages: messages, lookback: lookback}
}

// HasRepliedSince reports whether any inbound message in the thread is
// strictly newer than since.
func (m *Monitor) HasRepliedSince(ctx context.Context, threadID uuid.UUID, since time.Time) (bool, error) {
	msgs, err := m.messages.GetRecent(ctx, threadID, m.lookback)
	if err != nil {
		return false, fmt.Errorf("failed to read thread %s: %w", threadID, err)
	}
	for _, msg := range msgs {
		if msg.Inbound() && msg.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}
