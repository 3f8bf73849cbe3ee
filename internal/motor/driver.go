// Package motor implements the differential-drive controller and the motor
// driver interface it targets: a simulation driver for development and an
// H-bridge driver for real hardware, both behind the same contract.
package motor

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Direction is the rotation direction commanded to one motor.
type Direction int

const (
	Stop Direction = iota
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "FORWARD"
	case Backward:
		return "BACKWARD"
	default:
		return "STOP"
	}
}

// Command is a single motor's commanded direction and speed magnitude.
type Command struct {
	Direction Direction
	Speed     float64 // 0.0 - 1.0 magnitude, sign carried separately in Direction
}

// DifferentialCommand is a pair of independent wheel speeds in [-1, 1],
// positive meaning forward.
type DifferentialCommand struct {
	Left  float64
	Right float64
}

// NewDifferentialCommand clamps both sides to [-1, 1], matching the
// dataclass post-init validation of the original.
func NewDifferentialCommand(left, right float64) DifferentialCommand {
	return DifferentialCommand{Left: clamp(left, -1, 1), Right: clamp(right, -1, 1)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Side identifies which motor a Driver call addresses.
type Side int

const (
	LeftSide Side = iota
	RightSide
)

// Driver is the hardware abstraction every motor backend implements.
type Driver interface {
	Initialize() error
	SetMotor(side Side, cmd Command) error
	StopAll() error
	Cleanup() error
	IsInitialized() bool
}

// SimulationDriver logs every command instead of driving real hardware. It
// is the default driver and what the rover coordinator's tests run
// against.
type SimulationDriver struct {
	mu          sync.Mutex
	initialized bool
	last        map[Side]Command
	log         *logrus.Entry
}

// NewSimulationDriver builds a driver that only logs.
func NewSimulationDriver(log *logrus.Entry) *SimulationDriver {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SimulationDriver{
		last: make(map[Side]Command),
		log:  log.WithField("component", "motor_sim"),
	}
}

func (d *SimulationDriver) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = true
	d.log.Info("simulation driver initialized")
	return nil
}

func (d *SimulationDriver) SetMotor(side Side, cmd Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return fmt.Errorf("motor: driver not initialized")
	}
	d.last[side] = cmd
	d.log.WithFields(logrus.Fields{"side": side, "direction": cmd.Direction, "speed": cmd.Speed}).Debug("set motor")
	return nil
}

func (d *SimulationDriver) StopAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last[LeftSide] = Command{Direction: Stop}
	d.last[RightSide] = Command{Direction: Stop}
	return nil
}

func (d *SimulationDriver) Cleanup() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = false
	return nil
}

func (d *SimulationDriver) IsInitialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

// LastCommand returns the most recent command sent to a given side, for
// tests and diagnostics.
func (d *SimulationDriver) LastCommand(side Side) Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last[side]
}

// GPIOWriter is the minimal pin-level contract an H-bridge driver needs.
// It stands in for a hardware SDK (periph.io, RPi.GPIO) so this module
// compiles without one; a real deployment supplies a concrete
// implementation that talks to the board.
type GPIOWriter interface {
	SetPWM(pin int, dutyCycle float64) error
	SetDigital(pin int, high bool) error
}

// Pinout maps logical motor control lines to GPIO pin numbers for one
// H-bridge channel (e.g. an L298N half-bridge).
type Pinout struct {
	PWM      int
	Forward  int
	Backward int
}

// HBridgeDriver drives two motors through a GPIOWriter using a standard
// dual H-bridge pinout (one PWM + two direction pins per side).
type HBridgeDriver struct {
	mu          sync.Mutex
	initialized bool
	gpio        GPIOWriter
	pins        map[Side]Pinout
	log         *logrus.Entry
}

// NewHBridgeDriver builds a driver that writes to gpio using the given
// pinout for each side.
func NewHBridgeDriver(gpio GPIOWriter, pins map[Side]Pinout, log *logrus.Entry) *HBridgeDriver {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &HBridgeDriver{gpio: gpio, pins: pins, log: log.WithField("component", "motor_hbridge")}
}

func (d *HBridgeDriver) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for side, pin := range d.pins {
		if err := d.gpio.SetDigital(pin.Forward, false); err != nil {
			return fmt.Errorf("motor: initializing side %d: %w", side, err)
		}
		if err := d.gpio.SetDigital(pin.Backward, false); err != nil {
			return fmt.Errorf("motor: initializing side %d: %w", side, err)
		}
		if err := d.gpio.SetPWM(pin.PWM, 0); err != nil {
			return fmt.Errorf("motor: initializing side %d: %w", side, err)
		}
	}
	d.initialized = true
	return nil
}

func (d *HBridgeDriver) SetMotor(side Side, cmd Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return fmt.Errorf("motor: driver not initialized")
	}
	pin, ok := d.pins[side]
	if !ok {
		return fmt.Errorf("motor: no pinout for side %d", side)
	}

	switch cmd.Direction {
	case Forward:
		if err := d.gpio.SetDigital(pin.Forward, true); err != nil {
			return err
		}
		if err := d.gpio.SetDigital(pin.Backward, false); err != nil {
			return err
		}
	case Backward:
		if err := d.gpio.SetDigital(pin.Forward, false); err != nil {
			return err
		}
		if err := d.gpio.SetDigital(pin.Backward, true); err != nil {
			return err
		}
	default:
		if err := d.gpio.SetDigital(pin.Forward, false); err != nil {
			return err
		}
		if err := d.gpio.SetDigital(pin.Backward, false); err != nil {
			return err
		}
	}

	return d.gpio.SetPWM(pin.PWM, clamp(cmd.Speed, 0, 1))
}

func (d *HBridgeDriver) StopAll() error {
	d.mu.Lock()
	pins := d.pins
	d.mu.Unlock()
	for side := range pins {
		if err := d.SetMotor(side, Command{Direction: Stop}); err != nil {
			return err
		}
	}
	return nil
}

func (d *HBridgeDriver) Cleanup() error {
	if err := d.StopAll(); err != nil {
		d.log.WithError(err).Warn("error stopping motors during cleanup")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = false
	return nil
}

func (d *HBridgeDriver) IsInitialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}
