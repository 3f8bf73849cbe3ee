package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wp(name string) Waypoint { return Waypoint{Name: name, Tolerance: DefaultWaypointTolerance} }

func TestWaypointQueueNonLoopPinsAtEnd(t *testing.T) {
	q := NewWaypointQueue()
	q.SetPath([]Waypoint{wp("a"), wp("b")}, false)

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.Name)

	assert.True(t, q.AdvanceToNext())
	cur, _ = q.Current()
	assert.Equal(t, "b", cur.Name)

	assert.False(t, q.AdvanceToNext())
	cur, _ = q.Current()
	assert.Equal(t, "b", cur.Name, "cursor must stay pinned on the last waypoint")
	assert.True(t, q.AtEnd())
}

func TestWaypointQueueLoopWraps(t *testing.T) {
	q := NewWaypointQueue()
	q.SetPath([]Waypoint{wp("a"), wp("b")}, true)

	assert.True(t, q.AdvanceToNext())
	assert.True(t, q.AdvanceToNext())

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.Name)
	assert.Equal(t, 1, q.LoopCount())
}

func TestWaypointQueueEmpty(t *testing.T) {
	q := NewWaypointQueue()
	_, ok := q.Current()
	assert.False(t, ok)
	assert.False(t, q.AdvanceToNext())
}
