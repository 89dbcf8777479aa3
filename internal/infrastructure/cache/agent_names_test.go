package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/core/id"
)

type countingSource struct {
	names map[id.ID]string
	calls [][]id.ID
	err   error
}

func (s *countingSource) Names(_ context.Context, ids []id.ID) (map[id.ID]string, error) {
	s.calls = append(s.calls, ids)
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[id.ID]string)
	for _, agentID := range ids {
		if name, ok := s.names[agentID]; ok {
			out[agentID] = name
		}
	}
	return out, nil
}

func TestAgentNames_LoadsOnlyMissing(t *testing.T) {
	a, b := id.New(), id.New()
	src := &countingSource{names: map[id.ID]string{a: "Budi", b: "Sari"}}
	c := NewAgentNames(src, nil)
	ctx := context.Background()

	got, err := c.Names(ctx, []id.ID{a})
	require.NoError(t, err)
	assert.Equal(t, "Budi", got[a])

	got, err = c.Names(ctx, []id.ID{a, b})
	require.NoError(t, err)
	assert.Equal(t, map[id.ID]string{a: "Budi", b: "Sari"}, got)

	require.Len(t, src.calls, 2)
	assert.Equal(t, []id.ID{b}, src.calls[1])
}

func TestAgentNames_Invalidate(t *testing.T) {
	a, b := id.New(), id.New()
	src := &countingSource{names: map[id.ID]string{a: "Budi", b: "Sari"}}
	c := NewAgentNames(src, nil)
	ctx := context.Background()

	_, err := c.Names(ctx, []id.ID{a, b})
	require.NoError(t, err)

	src.names[a] = "Budi Santoso"
	c.Invalidate(a.String())

	got, err := c.Names(ctx, []id.ID{a, b})
	require.NoError(t, err)
	assert.Equal(t, "Budi Santoso", got[a])
	assert.Equal(t, []id.ID{a}, src.calls[len(src.calls)-1])

	c.Invalidate("garbage")
	_, err = c.Names(ctx, []id.ID{a, b})
	require.NoError(t, err)
	assert.Len(t, src.calls[len(src.calls)-1], 2)
}

func TestAgentNames_SourceError(t *testing.T) {
	src := &countingSource{err: errors.New("db down")}
	c := NewAgentNames(src, nil)

	_, err := c.Names(context.Background(), []id.ID{id.New()})
	assert.Error(t, err)
	assert.NoError(t, c.Start(context.Background()))
	c.Stop()
}
