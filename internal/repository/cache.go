package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/outreachly/drip-engine/internal/model"
)

// cachedSequenceRepository fronts the sequence store with a short TTL cache.
// Sequence definitions are immutable per version, so a batch that touches
// hundreds of enrollments of the same campaign reads the steps once.
type cachedSequenceRepository struct {
	inner SequenceRepository
	cache *cache.Cache
}

func NewCachedSequenceRepository(inner SequenceRepository, ttl time.Duration) SequenceRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &cachedSequenceRepository{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *cachedSequenceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Sequence, error) {
	key := id.String()
	if v, ok := r.cache.Get(key); ok {
		return v.(*model.Sequence), nil
	}
	seq, err := r.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, seq)
	return seq, nil
}
