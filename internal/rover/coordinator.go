// Package rover wires the navigator and motor controller together behind a
// position observer and a fixed-rate control loop: the central integration
// point the rest of the subsystems plug into.
package rover

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rovercore/internal/motor"
	"rovercore/internal/nav"
	"rovercore/internal/position"
	"rovercore/internal/rtk"
)

const (
	positionQueueCapacity = 10
	defaultUpdateRate     = 100 * time.Millisecond
	minSatellites         = 4
	maxHDOP               = 5.0
	maxFixAge             = 3 * time.Second
	maxConsecutiveErrors  = 3
)

// Status is a point-in-time snapshot of the whole rover for external
// reporting (telemetry, a status endpoint, a CLI command).
type Status struct {
	RunID       string
	Running     bool
	Navigation  nav.State
	Motor       motor.Status
	GPS         position.Position
	HaveGPS     bool
	LastStopped time.Time
	StopReason  string
}

// Coordinator is the central integration point: it owns the navigator and
// motor controller, consumes GNSS positions published by the RTK
// coordinator, and runs the fixed-rate control loop that turns navigation
// commands into motor commands while gating on GPS health.
type Coordinator struct {
	runID string

	navigator *nav.Navigator
	motor     *motor.Controller
	rtk       *rtk.Coordinator
	log       *logrus.Entry

	updateRate time.Duration

	positions chan position.Position

	mu              sync.Mutex
	running         bool
	consecutiveErrs int
	lastStop        time.Time
	lastStopReason  string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator builds a Coordinator over an already-constructed navigator
// and motor controller. rtkCoord may be nil, in which case GPS health is
// always reported unhealthy and the control loop only ever issues stop
// commands — useful for bench-testing the motor/navigator wiring without a
// receiver attached.
func NewCoordinator(navigator *nav.Navigator, motorController *motor.Controller, rtkCoord *rtk.Coordinator, log *logrus.Entry) *Coordinator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	runID := uuid.New().String()
	c := &Coordinator{
		runID:      runID,
		navigator:  navigator,
		motor:      motorController,
		rtk:        rtkCoord,
		log:        log.WithField("component", "rover").WithField("run_id", runID),
		updateRate: defaultUpdateRate,
		positions:  make(chan position.Position, positionQueueCapacity),
	}
	if rtkCoord != nil {
		rtkCoord.RegisterObserver(c)
	}
	return c
}

// SetUpdateRate overrides the control loop's tick interval.
func (c *Coordinator) SetUpdateRate(rate time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateRate = rate
}

// OnPositionUpdate implements position.Observer. It enqueues the position
// for processing on the control loop goroutine, dropping the oldest queued
// position if the queue is full rather than blocking the RTK coordinator's
// reader thread.
func (c *Coordinator) OnPositionUpdate(pos position.Position) {
	select {
	case c.positions <- pos:
	default:
		select {
		case <-c.positions:
		default:
		}
		select {
		case c.positions <- pos:
		default:
		}
		c.log.Warn("position queue full, dropped oldest position")
	}
}

// Start launches the motor controller, the navigator, and the fixed-rate
// control loop.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.motor.Start(ctx); err != nil {
		return err
	}
	c.navigator.Start()

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.controlLoop(runCtx)

	c.log.Info("rover started")
	return nil
}

// Stop halts the control loop and both subsystems, leaving the motors
// stopped.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.navigator.Stop()
	c.motor.Stop()
	c.log.Info("rover stopped")
}

func (c *Coordinator) controlLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.updateRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.motor.EmergencyStop()
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Coordinator) tick() {
	c.drainPositions()

	healthy, reason := c.checkGPSHealth()
	if !healthy {
		c.log.WithField("reason", reason).Warn("gps unhealthy")
		c.motor.EmergencyStop()
		c.recordStop(reason)

		c.mu.Lock()
		c.consecutiveErrs++
		tooMany := c.consecutiveErrs >= maxConsecutiveErrors
		if tooMany {
			c.consecutiveErrs = 0
		}
		c.mu.Unlock()

		if tooMany {
			c.log.Error("gps unhealthy for too many cycles, pausing navigation")
			c.navigator.Pause()
		}
		return
	}

	c.mu.Lock()
	c.consecutiveErrs = 0
	c.mu.Unlock()

	cmd := c.navigator.GetNavigationCommand()
	c.motor.ExecuteNavigationCommand(cmd)
}

func (c *Coordinator) drainPositions() {
	for {
		select {
		case pos := <-c.positions:
			c.navigator.UpdatePosition(pos)
		default:
			return
		}
	}
}

// checkGPSHealth applies the same satellite count, HDOP and fix-age gates
// the navigator's own staleness check cannot see on its own, since those
// require looking at the RTK coordinator's last published fix directly.
func (c *Coordinator) checkGPSHealth() (bool, string) {
	if c.rtk == nil {
		return false, "rtk coordinator not available"
	}

	pos, ok := c.rtk.LastFix()
	if !ok {
		return false, "no gps position available"
	}

	if pos.Satellites < minSatellites {
		return false, "insufficient satellites"
	}
	if pos.HDOP > maxHDOP {
		return false, "poor gps accuracy"
	}
	if time.Since(pos.Timestamp) > maxFixAge {
		return false, "gps data too old"
	}

	return true, ""
}

func (c *Coordinator) recordStop(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastStop = time.Now()
	c.lastStopReason = reason
}

// GoToWaypoint replaces the current path with a single target.
func (c *Coordinator) GoToWaypoint(wp nav.Waypoint) {
	c.navigator.SetTarget(wp)
}

// FollowPath replaces the current path with a multi-waypoint sequence.
func (c *Coordinator) FollowPath(waypoints []nav.Waypoint, loop bool) {
	c.navigator.SetWaypointPath(waypoints, loop)
}

// AddWaypoint queues a waypoint without starting navigation; call
// StartQueuedNavigation once the path is built up.
func (c *Coordinator) AddWaypoint(wp nav.Waypoint) {
	c.navigator.AddWaypoint(wp)
}

// StartQueuedNavigation begins following whatever waypoints have been
// queued via AddWaypoint.
func (c *Coordinator) StartQueuedNavigation() bool {
	return c.navigator.StartNavigation()
}

// ClearWaypoints empties the navigator's queue.
func (c *Coordinator) ClearWaypoints() {
	c.navigator.ClearWaypoints()
}

// PauseNavigation pauses the navigator and gently stops the motors (not an
// emergency stop — pausing is a normal operation that can be resumed).
func (c *Coordinator) PauseNavigation() {
	c.navigator.Pause()
	c.motor.ExecuteDifferentialCommand(motor.DifferentialCommand{})
}

// ResumeNavigation resumes the navigator from its preserved phase.
func (c *Coordinator) ResumeNavigation() {
	c.navigator.Resume()
}

// CancelNavigation stops the navigator entirely (clearing the path) and
// stops the motors, unlike EmergencyStop which only pauses.
func (c *Coordinator) CancelNavigation() {
	c.navigator.Stop()
	c.navigator.ClearWaypoints()
	c.motor.EmergencyStop()
}

// EmergencyStop immediately halts the motors and pauses navigation so it
// can be resumed later with ResumeNavigation.
func (c *Coordinator) EmergencyStop(reason string) {
	c.log.WithField("reason", reason).Error("emergency stop")
	c.motor.EmergencyStop()
	c.navigator.Pause()
	c.recordStop(reason)
}

// ResetEmergencyStop clears the motor controller's emergency-stop latch.
func (c *Coordinator) ResetEmergencyStop() {
	c.motor.Reset()
}

// ManualDrive bypasses the navigator and drives the wheels directly.
func (c *Coordinator) ManualDrive(left, right float64) {
	c.motor.ExecuteDifferentialCommand(motor.NewDifferentialCommand(left, right))
}

// ManualMove bypasses the navigator with a speed/turn-rate command.
func (c *Coordinator) ManualMove(speed, turnRate float64) {
	c.motor.ExecuteNavigationCommand(nav.NewCommand(speed, turnRate, 0))
}

// SetMaxSpeed propagates a new cruising speed cap to both the navigator
// and the motor controller.
func (c *Coordinator) SetMaxSpeed(speed float64) {
	c.navigator.SetMaxSpeed(speed)
	c.motor.SetMaxSpeed(speed)
}

// GetStatus returns a comprehensive snapshot of the rover's state.
func (c *Coordinator) GetStatus() Status {
	c.mu.Lock()
	running := c.running
	lastStop := c.lastStop
	reason := c.lastStopReason
	c.mu.Unlock()

	var pos position.Position
	var haveGPS bool
	if c.rtk != nil {
		pos, haveGPS = c.rtk.LastFix()
	}

	return Status{
		RunID:       c.runID,
		Running:     running,
		Navigation:  c.navigator.State(),
		Motor:       c.motor.Status(),
		GPS:         pos,
		HaveGPS:     haveGPS,
		LastStopped: lastStop,
		StopReason:  reason,
	}
}
