package motor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rovercore/internal/nav"
)

const (
	defaultRampRate        = 0.1 // unit change per safety tick
	minRampRate            = 0.01
	maxRampRate            = 1.0
	defaultWatchdogTimeout = 500 * time.Millisecond
	safetyCheckInterval    = 100 * time.Millisecond
)

// Status is a point-in-time snapshot of the controller for status
// reporting.
type Status struct {
	Running          bool
	CurrentCommand   DifferentialCommand
	TimeSinceLastCmd time.Duration
	EmergencyStopped bool
}

// Controller ramps incoming navigation commands into differential drive
// setpoints and enforces a watchdog: if no command arrives within the
// watchdog timeout (500 ms by default), the motors are ramped to a stop.
type Controller struct {
	mu sync.Mutex

	driver Driver
	log    *logrus.Entry

	maxSpeed        float64
	turnSensitivity float64
	rampRate        float64
	watchdogTimeout time.Duration

	targetCommand  DifferentialCommand
	currentCommand DifferentialCommand
	lastCommandAt  time.Time

	running          bool
	emergencyStopped bool

	stopSafety context.CancelFunc
}

// NewController builds a controller driving the given Driver.
func NewController(driver Driver, log *logrus.Entry) *Controller {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Controller{
		driver:          driver,
		log:             log.WithField("component", "motor_controller"),
		maxSpeed:        1.0,
		turnSensitivity: 1.0,
		rampRate:        defaultRampRate,
		watchdogTimeout: defaultWatchdogTimeout,
	}
}

// SetMaxSpeed bounds the magnitude of either wheel's speed.
func (c *Controller) SetMaxSpeed(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSpeed = speed
}

// SetTurnSensitivity scales how much a navigation TurnRate affects the
// differential between wheels.
func (c *Controller) SetTurnSensitivity(s float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turnSensitivity = s
}

// SetRampRate bounds how quickly each wheel's speed can change per safety
// tick, clamped to [0.01, 1.0] as in the original.
func (c *Controller) SetRampRate(rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rampRate = clamp(rate, minRampRate, maxRampRate)
}

// Start initializes the driver and launches the ramping/watchdog safety
// goroutine.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.driver.Initialize(); err != nil {
		return err
	}

	safetyCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.running = true
	c.lastCommandAt = time.Now()
	c.stopSafety = cancel
	c.mu.Unlock()

	go c.safetyMonitor(safetyCtx)
	return nil
}

// Stop halts the safety goroutine and stops the motors.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.running = false
	stop := c.stopSafety
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
	_ = c.driver.StopAll()
}

// ExecuteNavigationCommand converts a navigation command into a
// differential setpoint and stores it as the new ramp target.
func (c *Controller) ExecuteNavigationCommand(cmd nav.Command) {
	c.mu.Lock()
	sensitivity := c.turnSensitivity
	c.mu.Unlock()
	diff := navigationToDifferential(cmd.Speed, cmd.TurnRate*sensitivity)
	c.ExecuteDifferentialCommand(diff)
}

// ExecuteDifferentialCommand sets the ramp target directly.
func (c *Controller) ExecuteDifferentialCommand(cmd DifferentialCommand) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.emergencyStopped {
		return
	}
	c.targetCommand = DifferentialCommand{
		Left:  clamp(cmd.Left, -1, 1) * c.maxSpeed,
		Right: clamp(cmd.Right, -1, 1) * c.maxSpeed,
	}
	c.lastCommandAt = time.Now()
}

// navigationToDifferential maps a navigator's speed/turn-rate command onto
// independent wheel setpoints. When speed is (near) zero, a pure turn rate
// spins the rover in place; otherwise forward motion and turn are combined
// and renormalized so neither wheel exceeds magnitude 1.
func navigationToDifferential(speed, turnRate float64) DifferentialCommand {
	if math.Abs(speed) < 1e-6 {
		return NewDifferentialCommand(-turnRate, turnRate)
	}

	left := speed - turnRate
	right := speed + turnRate

	maxAbs := math.Max(math.Abs(left), math.Abs(right))
	if maxAbs > 1.0 {
		left /= maxAbs
		right /= maxAbs
	}

	return NewDifferentialCommand(left, right)
}

// EmergencyStop immediately zeroes the ramp state and stops the motors.
// Navigation commands are ignored until Reset is called.
func (c *Controller) EmergencyStop() {
	c.mu.Lock()
	c.emergencyStopped = true
	c.targetCommand = DifferentialCommand{}
	c.currentCommand = DifferentialCommand{}
	c.mu.Unlock()

	c.log.Error("emergency stop triggered")
	_ = c.driver.StopAll()
}

// Reset clears the emergency-stop latch so navigation commands are
// accepted again.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emergencyStopped = false
}

// Status returns a snapshot of the controller's current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Running:          c.running,
		CurrentCommand:   c.currentCommand,
		TimeSinceLastCmd: time.Since(c.lastCommandAt),
		EmergencyStopped: c.emergencyStopped,
	}
}

// safetyMonitor applies ramping toward the target command and enforces the
// watchdog timeout on a fixed tick.
func (c *Controller) safetyMonitor(ctx context.Context) {
	ticker := time.NewTicker(safetyCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Controller) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.emergencyStopped {
		return
	}

	if time.Since(c.lastCommandAt) > c.watchdogTimeout {
		if c.currentCommand != (DifferentialCommand{}) {
			c.log.Warn("watchdog timeout: no navigation command received, stopping")
		}
		c.targetCommand = DifferentialCommand{}
	}

	c.currentCommand.Left = rampToward(c.currentCommand.Left, c.targetCommand.Left, c.rampRate)
	c.currentCommand.Right = rampToward(c.currentCommand.Right, c.targetCommand.Right, c.rampRate)

	c.applyLocked(c.currentCommand)
}

func (c *Controller) applyLocked(cmd DifferentialCommand) {
	left := toMotorCommand(cmd.Left)
	right := toMotorCommand(cmd.Right)
	if err := c.driver.SetMotor(LeftSide, left); err != nil {
		c.log.WithError(err).Error("failed to set left motor")
	}
	if err := c.driver.SetMotor(RightSide, right); err != nil {
		c.log.WithError(err).Error("failed to set right motor")
	}
}

func toMotorCommand(v float64) Command {
	if v > 1e-6 {
		return Command{Direction: Forward, Speed: v}
	}
	if v < -1e-6 {
		return Command{Direction: Backward, Speed: -v}
	}
	return Command{Direction: Stop, Speed: 0}
}

func rampToward(current, target, rate float64) float64 {
	if current < target {
		return math.Min(current+rate, target)
	}
	if current > target {
		return math.Max(current-rate, target)
	}
	return current
}
