package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := NewSimulation(Config{ID: "a", Closing: MaxRounds{N: 1}})
	b := NewSimulation(Config{ID: "b"})

	require.NoError(t, r.Register(b))
	require.NoError(t, r.Register(a))
	assert.Error(t, r.Register(a))
	assert.Error(t, r.Register(nil))
	assert.Equal(t, 2, r.Count())

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)

	assert.Error(t, r.Remove("a"), "open markets stay registered")

	require.NoError(t, a.Step())
	r.Publish(a.Snapshot())
	r.Publish(Snapshot{ID: "ghost"})
	assert.False(t, r.Exists("ghost"))

	snap, err := r.Get("a")
	require.NoError(t, err)
	assert.True(t, snap.Closed)
	assert.Equal(t, 1, snap.Age)
	assert.Len(t, r.ListOpen(), 1)

	require.NoError(t, r.Remove("a"))
	_, err = r.Get("a")
	assert.Error(t, err)
}
