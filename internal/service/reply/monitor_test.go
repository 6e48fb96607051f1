package reply

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreachly/drip-engine/internal/model"
)

type fakeMessageRepo struct {
	recent []*model.ThreadMessage
	err    error
}

func (f *fakeMessageRepo) GetRecent(_ context.Context, _ uuid.UUID, limit int) ([]*model.ThreadMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeMessageRepo) AppendOutbound(_ context.Context, _ *model.ThreadMessage) error {
	return nil
}

func TestHasRepliedSince(t *testing.T) {
	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		recent  []*model.ThreadMessage
		replied bool
	}{
		{
			name:    "empty thread",
			recent:  nil,
			replied: false,
		},
		{
			name: "only outbound after start",
			recent: []*model.ThreadMessage{
				{Direction: model.MessageDirectionOutbound, CreatedAt: started.Add(time.Hour)},
			},
			replied: false,
		},
		{
			name: "inbound before start",
			recent: []*model.ThreadMessage{
				{Direction: model.MessageDirectionInbound, CreatedAt: started.Add(-time.Minute)},
			},
			replied: false,
		},
		{
			name: "inbound exactly at start is not a reply",
			recent: []*model.ThreadMessage{
				{Direction: model.MessageDirectionInbound, CreatedAt: started},
			},
			replied: false,
		},
		{
			name: "inbound after start",
			recent: []*model.ThreadMessage{
				{Direction: model.MessageDirectionOutbound, CreatedAt: started.Add(2 * time.Hour)},
				{Direction: model.MessageDirectionInbound, CreatedAt: started.Add(time.Hour)},
			},
			replied: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(&fakeMessageRepo{recent: tt.recent}, 0)
			replied, err := m.HasRepliedSince(context.Background(), uuid.New(), started)
			require.NoError(t, err)
			assert.Equal(t, tt.replied, replied)
		})
	}
}

func TestHasRepliedSinceRepoError(t *testing.T) {
	m := NewMonitor(&fakeMessageRepo{err: errors.New("connection reset")}, 0)
	_, err := m.HasRepliedSince(context.Background(), uuid.New(), time.Now())
	require.Error(t, err)
}
