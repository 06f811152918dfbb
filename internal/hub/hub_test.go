package hub

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAssignsID(t *testing.T) {
	h := New()
	id, err := h.Enqueue("device", Command{Type: "timetravel"})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	id2, err := h.Enqueue("device", Command{ID: "fixed", Type: "command", Payload: json.RawMessage(`{"code":13}`)})
	require.NoError(t, err)
	assert.Equal(t, "fixed", id2)
	assert.Equal(t, 2, h.Pending("device"))
}

func TestDrainOrderAndLimit(t *testing.T) {
	h := New()
	for _, typ := range []string{"a", "b", "c"} {
		_, err := h.Enqueue("device", Command{Type: typ})
		require.NoError(t, err)
	}
	assert.True(t, h.LastDrained("device").IsZero())

	got := h.Drain("device", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Type)
	assert.Equal(t, "b", got[1].Type)
	assert.False(t, got[0].Time.IsZero())

	got = h.Drain("device", 10)
	require.Len(t, got, 1)
	assert.Empty(t, h.Drain("device", 10))
	assert.False(t, h.LastDrained("device").IsZero())
	assert.Empty(t, h.Drain("other", 10), "inboxes are separate")
}

func TestEnqueueFull(t *testing.T) {
	h := New()
	for i := 0; i < inboxSize; i++ {
		_, err := h.Enqueue("device", Command{Type: "x"})
		require.NoError(t, err)
	}
	_, err := h.Enqueue("device", Command{Type: "x"})
	assert.ErrorIs(t, err, ErrFull)
}
