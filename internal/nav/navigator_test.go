package nav

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rovercore/internal/position"
)

func newTestNavigator() *Navigator {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewNavigator(logrus.NewEntry(log))
}

func pos(lat, lon float64, course *float64, speed *float64) position.Position {
	return position.Position{Latitude: lat, Longitude: lon, Quality: position.RTKFixed, CourseOverGround: course, SpeedMPS: speed, Timestamp: time.Now()}
}

func TestNavigatorStaleWithoutPosition(t *testing.T) {
	n := newTestNavigator()
	n.SetTarget(Waypoint{Latitude: 1, Longitude: 1})
	n.Start()

	cmd := n.GetNavigationCommand()
	assert.Equal(t, 0.0, cmd.Speed)
	assert.Equal(t, StatusError, n.State().Status)
}

func TestNavigatorCalibratesThenAligns(t *testing.T) {
	n := newTestNavigator()
	n.SetTarget(Waypoint{Latitude: 0, Longitude: 1, Tolerance: 5})
	n.Start()

	course := 90.0
	speed := 1.0
	n.UpdatePosition(pos(0, 0, &course, &speed))

	// Each call collects one heading sample; the call that collects the last
	// required sample completes calibration.
	for i := 0; i < calibrationRequiredSamples-1; i++ {
		cmd := n.GetNavigationCommand()
		require.Equal(t, defaultCalibrationSpeed, cmd.Speed)
		require.Equal(t, 0.0, cmd.TurnRate)
		n.UpdatePosition(pos(0, 0, &course, &speed))
	}
	n.GetNavigationCommand()

	state := n.State()
	assert.Equal(t, PhaseAlign, state.Phase)
}

func TestNavigatorDriveReachesWaypoint(t *testing.T) {
	n := newTestNavigator()
	n.mu.Lock()
	n.phase = PhaseDrive
	n.status = StatusNavigating
	n.running = true
	n.currentHeading = 90
	n.mu.Unlock()
	n.queue.SetPath([]Waypoint{{Latitude: 0, Longitude: 0.00001, Tolerance: 5}}, false)

	n.UpdatePosition(pos(0, 0, nil, nil))

	cmd := n.GetNavigationCommand()
	assert.Equal(t, 0.0, cmd.Speed)
	assert.Equal(t, StatusReachedWaypoint, n.State().Status)
}

func TestNavigatorPauseResume(t *testing.T) {
	n := newTestNavigator()
	n.SetTarget(Waypoint{Latitude: 1, Longitude: 1})
	n.Start()
	n.Pause()

	cmd := n.GetNavigationCommand()
	assert.Equal(t, Command{Timestamp: cmd.Timestamp}, cmd)

	n.Resume()
	assert.Equal(t, StatusNavigating, n.State().Status)
}
