package submission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRepository is a minimal in-memory Repository used to verify
// CachedRepository's passthrough wiring without a real Postgres or Redis
// instance.
type stubRepository struct {
	rows      map[string]*Submission
	getCalls  int
	updCalls  int
}

func newStubRepository() *stubRepository {
	return &stubRepository{rows: make(map[string]*Submission)}
}

func (s *stubRepository) Create(ctx context.Context, sub *Submission) error {
	s.rows[sub.ID] = sub
	return nil
}

func (s *stubRepository) Get(ctx context.Context, id string) (*Submission, error) {
	s.getCalls++
	row, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return row, nil
}

func (s *stubRepository) Update(ctx context.Context, sub *Submission) error {
	s.updCalls++
	s.rows[sub.ID] = sub
	return nil
}

func TestCachedRepository_NilRedisIsPlainPassthrough(t *testing.T) {
	inner := newStubRepository()
	cached := NewCachedRepository(inner, nil)
	ctx := context.Background()

	row := &Submission{ID: "sub-1", Language: "python", Status: StatusPending}
	require.NoError(t, cached.Create(ctx, row))

	got, err := cached.Get(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "python", got.Language)
	assert.Equal(t, 1, inner.getCalls)

	row.Status = StatusAccepted
	require.NoError(t, cached.Update(ctx, row))
	assert.Equal(t, 1, inner.updCalls)
}

func TestCachedRepository_NilRedisPropagatesNotFound(t *testing.T) {
	cached := NewCachedRepository(newStubRepository(), nil)
	_, err := cached.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheKey_IsNamespaced(t *testing.T) {
	assert.Equal(t, "judge:submission:sub-1", cacheKey("sub-1"))
}
