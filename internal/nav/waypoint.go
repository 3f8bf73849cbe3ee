package nav

import "sync"

// Waypoint is a single navigation target.
type Waypoint struct {
	Latitude   float64
	Longitude  float64
	Name       string
	Altitude   float64
	Tolerance  float64 // metres; reached when within this distance
	SpeedLimit float64 // 0 means no override of the navigator's max speed
}

// DefaultWaypointTolerance matches the original's default arrival radius.
const DefaultWaypointTolerance = 2.0

// WaypointQueue is a FIFO sequence of waypoints with a current-index
// cursor. In loop mode, advancing past the last waypoint wraps the cursor
// back to zero and increments the loop count instead of leaving the path
// complete.
type WaypointQueue struct {
	mu        sync.Mutex
	waypoints []Waypoint
	index     int
	loop      bool
	loopCount int
}

// NewWaypointQueue builds an empty queue.
func NewWaypointQueue() *WaypointQueue {
	return &WaypointQueue{}
}

// SetPath replaces the entire queue contents and resets the cursor to the
// first waypoint.
func (q *WaypointQueue) SetPath(waypoints []Waypoint, loop bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.waypoints = append([]Waypoint(nil), waypoints...)
	q.index = 0
	q.loop = loop
	q.loopCount = 0
}

// Append adds a waypoint to the end of the queue without disturbing the
// cursor, for callers that queue waypoints before navigation starts.
func (q *WaypointQueue) Append(wp Waypoint) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.waypoints = append(q.waypoints, wp)
}

// All returns a copy of the queued waypoints.
func (q *WaypointQueue) All() []Waypoint {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Waypoint(nil), q.waypoints...)
}

// Clear empties the queue and resets the cursor.
func (q *WaypointQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.waypoints = nil
	q.index = 0
	q.loopCount = 0
}

// Current returns the waypoint at the cursor and whether one exists.
func (q *WaypointQueue) Current() (Waypoint, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.index < 0 || q.index >= len(q.waypoints) {
		return Waypoint{}, false
	}
	return q.waypoints[q.index], true
}

// Len returns the number of waypoints in the queue.
func (q *WaypointQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waypoints)
}

// IsLoopMode reports whether the queue wraps on completion.
func (q *WaypointQueue) IsLoopMode() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loop
}

// SetLoopMode changes whether reaching the end of the path wraps to the
// start.
func (q *WaypointQueue) SetLoopMode(loop bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loop = loop
}

// LoopCount returns how many times the queue has wrapped back to the
// first waypoint.
func (q *WaypointQueue) LoopCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loopCount
}

// AdvanceToNext moves the cursor to the next waypoint. In non-loop mode it
// returns false once the cursor is already on the last waypoint, leaving
// it pinned there (the path is "complete", not "wrapped"). In loop mode it
// always succeeds, wrapping to 0 and incrementing the loop count when it
// crosses the end.
func (q *WaypointQueue) AdvanceToNext() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.waypoints) == 0 {
		return false
	}

	if q.index < len(q.waypoints)-1 {
		q.index++
		return true
	}

	if q.loop {
		q.index = 0
		q.loopCount++
		return true
	}

	return false
}

// AtEnd reports whether the cursor is on the last waypoint with no loop
// pending.
func (q *WaypointQueue) AtEnd() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waypoints) > 0 && q.index == len(q.waypoints)-1 && !q.loop
}

// Reset returns the cursor to the first waypoint without altering loop
// mode or clearing the path.
func (q *WaypointQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.index = 0
	q.loopCount = 0
}
