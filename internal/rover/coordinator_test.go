package rover

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rovercore/internal/motor"
	"rovercore/internal/nav"
	"rovercore/internal/position"
)

func newTestCoordinator() (*Coordinator, *motor.SimulationDriver) {
	driver := motor.NewSimulationDriver(nil)
	controller := motor.NewController(driver, nil)
	navigator := nav.NewNavigator(nil)
	c := NewCoordinator(navigator, controller, nil, nil)
	c.SetUpdateRate(20 * time.Millisecond)
	return c, driver
}

func TestOnPositionUpdateDropsOldestWhenFull(t *testing.T) {
	c, _ := newTestCoordinator()
	for i := 0; i < positionQueueCapacity+5; i++ {
		c.OnPositionUpdate(position.Position{Latitude: float64(i)})
	}
	assert.LessOrEqual(t, len(c.positions), positionQueueCapacity)
}

func TestCheckGPSHealthWithoutRTKIsUnhealthy(t *testing.T) {
	c, _ := newTestCoordinator()
	healthy, reason := c.checkGPSHealth()
	assert.False(t, healthy)
	assert.NotEmpty(t, reason)
}

func TestControlLoopStopsMotorsWithoutHealthyGPS(t *testing.T) {
	c, driver := newTestCoordinator()
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, motor.Stop, driver.LastCommand(motor.LeftSide).Direction)
	assert.Equal(t, motor.Stop, driver.LastCommand(motor.RightSide).Direction)
}

func TestManualDriveAndStatus(t *testing.T) {
	c, _ := newTestCoordinator()
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	c.ManualDrive(0.5, -0.5)
	status := c.GetStatus()
	assert.True(t, status.Running)
}

func TestEmergencyStopAndReset(t *testing.T) {
	c, driver := newTestCoordinator()
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	c.EmergencyStop("test")
	status := c.GetStatus()
	assert.Equal(t, "test", status.StopReason)
	assert.True(t, status.Motor.EmergencyStopped)

	c.ResetEmergencyStop()
	status = c.GetStatus()
	assert.False(t, status.Motor.EmergencyStopped)
	_ = driver
}

func TestAddWaypointThenStartQueuedNavigation(t *testing.T) {
	c, _ := newTestCoordinator()
	assert.False(t, c.StartQueuedNavigation())

	c.AddWaypoint(nav.Waypoint{Latitude: 1, Longitude: 1})
	assert.True(t, c.StartQueuedNavigation())
}
