package nav

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rovercore/internal/position"
)

// Tuning constants matching the original navigator's defaults.
const (
	defaultMaxSpeed             = 1.0
	defaultAlignTolerance       = 15.0 // degrees
	defaultRealignThreshold     = 30.0 // degrees
	defaultAlignSpeed           = 0.4
	defaultAlignTimeout         = 10 * time.Second
	defaultDriveCorrectionGain  = 0.02
	defaultDriveCorrectionClamp = 0.2
	defaultCalibrationDuration  = 5 * time.Second
	defaultCalibrationSpeed     = 0.5
	calibrationRequiredSamples  = 3
	calibrationMaxVarianceDeg   = 15.0
	maxPositionAgeSeconds       = 2.0
	minSpeedForHeadingMPS       = 0.5
)

// Navigator drives a rover through the CALIBRATE/ALIGN/DRIVE/REACHED state
// machine toward a single target or a queued set of waypoints.
type Navigator struct {
	mu sync.Mutex

	log *logrus.Entry

	mode   Mode
	status Status
	phase  Phase

	queue  *WaypointQueue
	target *Waypoint

	maxSpeed float64

	currentPosition position.Position
	havePosition    bool
	lastPositionAt  time.Time

	currentHeading float64
	haveHeading    bool

	calibrationSamples []float64
	calibrationStart   time.Time

	alignStart time.Time

	headingPID *PIDController

	running bool
}

// NewNavigator builds a Navigator in the idle phase.
func NewNavigator(log *logrus.Entry) *Navigator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Navigator{
		log:        log.WithField("component", "navigator"),
		queue:      NewWaypointQueue(),
		maxSpeed:   defaultMaxSpeed,
		headingPID: NewPIDController(defaultDriveCorrectionGain, 0, 0, -defaultDriveCorrectionClamp, defaultDriveCorrectionClamp),
		status:     StatusIdle,
		phase:      PhaseIdle,
	}
}

// SetMaxSpeed overrides the navigator's default cruising speed.
func (n *Navigator) SetMaxSpeed(speed float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.maxSpeed = speed
}

// SetTarget points the navigator at a single waypoint and (re)starts
// calibration.
func (n *Navigator) SetTarget(wp Waypoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queue.SetPath([]Waypoint{wp}, false)
	n.mode = ModeWaypoint
	n.beginCalibrationLocked()
}

// SetWaypointPath loads a sequence of waypoints, optionally looping back to
// the first once the last is reached.
func (n *Navigator) SetWaypointPath(waypoints []Waypoint, loop bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queue.SetPath(waypoints, loop)
	n.mode = ModePathFollowing
	n.beginCalibrationLocked()
}

// AddWaypoint appends a waypoint to the path without starting navigation;
// call StartNavigation once the queue is built up.
func (n *Navigator) AddWaypoint(wp Waypoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queue.Append(wp)
	n.mode = ModePathFollowing
}

// Waypoints returns a copy of the queued waypoints.
func (n *Navigator) Waypoints() []Waypoint {
	return n.queue.All()
}

// ClearWaypoints empties the queue, leaving the navigator idle.
func (n *Navigator) ClearWaypoints() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queue.Clear()
	n.phase = PhaseIdle
	n.status = StatusIdle
}

// StartNavigation begins following whatever waypoints have already been
// queued via AddWaypoint. It reports false if the queue is empty.
func (n *Navigator) StartNavigation() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.queue.Len() == 0 {
		return false
	}
	n.running = true
	n.beginCalibrationLocked()
	return true
}

func (n *Navigator) beginCalibrationLocked() {
	n.phase = PhaseCalibrate
	n.status = StatusNavigating
	n.calibrationSamples = nil
	n.calibrationStart = time.Now()
	n.headingPID.Reset()
}

// UpdatePosition feeds a new GNSS fix into the navigator. A reported course
// over ground always takes priority; failing that, if the rover is moving
// at more than minSpeedForHeadingMPS, the bearing between the previous fix
// and this one becomes the heading estimate (GPS course-over-ground is
// unreliable at a standstill and this module has no separate heading
// sensor to fall back on).
func (n *Navigator) UpdatePosition(pos position.Position) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if pos.CourseOverGround != nil {
		n.currentHeading = *pos.CourseOverGround
		n.haveHeading = true
	} else if n.havePosition && pos.SpeedMPS != nil && *pos.SpeedMPS > minSpeedForHeadingMPS {
		n.currentHeading = InitialBearing(n.currentPosition.Latitude, n.currentPosition.Longitude, pos.Latitude, pos.Longitude)
		n.haveHeading = true
	}

	n.currentPosition = pos
	n.havePosition = true
	n.lastPositionAt = time.Now()
}

func (n *Navigator) isPositionStaleLocked() bool {
	if !n.havePosition {
		return true
	}
	return time.Since(n.lastPositionAt).Seconds() > maxPositionAgeSeconds
}

// GetNavigationCommand runs one step of the state machine and returns the
// command the motor controller should execute. It returns a zeroed,
// stopped command whenever navigation is not actively running, the
// position is stale, or the phase has nothing further to do.
func (n *Navigator) GetNavigationCommand() Command {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running || n.status == StatusPaused {
		return Command{Timestamp: time.Now()}
	}

	if n.isPositionStaleLocked() {
		n.status = StatusError
		n.log.Warn("position stale, halting navigation")
		return Command{Timestamp: time.Now()}
	}

	switch n.phase {
	case PhaseCalibrate:
		return n.handleCalibrationLocked()
	case PhaseAlign:
		return n.handleAlignLocked()
	case PhaseDrive:
		return n.handleDriveLocked()
	case PhaseReached:
		return n.handleWaypointReachedLocked()
	default:
		return Command{Timestamp: time.Now()}
	}
}

func (n *Navigator) handleCalibrationLocked() Command {
	if n.haveHeading {
		n.calibrationSamples = append(n.calibrationSamples, n.currentHeading)
	}

	elapsed := time.Since(n.calibrationStart)

	if len(n.calibrationSamples) >= calibrationRequiredSamples {
		if headingVariance(n.calibrationSamples) < calibrationMaxVarianceDeg {
			n.log.WithField("samples", len(n.calibrationSamples)).Info("calibration complete")
			n.phase = PhaseAlign
			n.alignStart = time.Now()
			return Command{Timestamp: time.Now()}
		}
		// Samples disagree: drop the oldest and keep collecting rather than
		// discard the whole batch.
		if len(n.calibrationSamples) > 2 {
			n.calibrationSamples = n.calibrationSamples[len(n.calibrationSamples)-2:]
		}
	}

	if elapsed >= defaultCalibrationDuration {
		if len(n.calibrationSamples) > 0 {
			// The collected samples are not averaged; ALIGN starts from the
			// most recent heading.
			n.log.Warn("calibration timed out, proceeding with current heading")
			n.phase = PhaseAlign
			n.alignStart = time.Now()
			return Command{Timestamp: time.Now()}
		}
		n.log.Error("calibration failed: no heading samples acquired")
		n.status = StatusError
		return Command{Timestamp: time.Now()}
	}

	// Drive straight at a slow, steady speed so GNSS can derive a course
	// over ground; a GPS receiver with no heading sensor cannot resolve
	// heading from a spot rotation.
	return Command{Speed: defaultCalibrationSpeed, TurnRate: 0, Timestamp: time.Now()}
}

func headingVariance(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))
	var sumSq float64
	for _, s := range samples {
		d := NormalizeAngle(s - mean)
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}

func (n *Navigator) handleAlignLocked() Command {
	target, ok := n.queue.Current()
	if !ok {
		n.status = StatusPathComplete
		n.phase = PhaseReached
		return Command{Timestamp: time.Now()}
	}

	bearing := InitialBearing(n.currentPosition.Latitude, n.currentPosition.Longitude, target.Latitude, target.Longitude)
	headingErr := AngleDifference(n.currentHeading, bearing)

	if math.Abs(headingErr) <= defaultAlignTolerance {
		n.phase = PhaseDrive
		n.headingPID.Reset()
		return Command{Timestamp: time.Now()}
	}

	if time.Since(n.alignStart) >= defaultAlignTimeout {
		n.log.Warn("align timeout, proceeding to drive at reduced speed")
		n.phase = PhaseDrive
		n.headingPID.Reset()
		return Command{Speed: n.maxSpeed * 0.5, Timestamp: time.Now()}
	}

	turnIntensity := math.Min(math.Abs(headingErr)/90.0, 1.0) * defaultAlignSpeed
	turnDirection := 1.0
	if headingErr < 0 {
		turnDirection = -1.0
	}
	return Command{Speed: 0, TurnRate: turnDirection * turnIntensity, Timestamp: time.Now()}
}

func (n *Navigator) handleDriveLocked() Command {
	target, ok := n.queue.Current()
	if !ok {
		n.status = StatusPathComplete
		n.phase = PhaseReached
		return Command{Timestamp: time.Now()}
	}

	distance := HaversineDistance(n.currentPosition.Latitude, n.currentPosition.Longitude, target.Latitude, target.Longitude)
	tolerance := target.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultWaypointTolerance
	}
	if distance <= tolerance {
		n.status = StatusReachedWaypoint
		n.phase = PhaseReached
		return Command{Timestamp: time.Now()}
	}

	bearing := InitialBearing(n.currentPosition.Latitude, n.currentPosition.Longitude, target.Latitude, target.Longitude)
	headingErr := AngleDifference(n.currentHeading, bearing)

	if math.Abs(headingErr) > defaultRealignThreshold {
		n.log.WithField("heading_error", headingErr).Info("drifted off course, re-aligning")
		n.phase = PhaseAlign
		n.alignStart = time.Now()
		n.headingPID.Reset()
		return Command{Timestamp: time.Now()}
	}

	correction := n.headingPID.Update(headingErr, 0.1)

	speed := n.maxSpeed
	if target.SpeedLimit > 0 && target.SpeedLimit < speed {
		speed = target.SpeedLimit
	}

	return Command{Speed: speed, TurnRate: correction, Timestamp: time.Now()}
}

func (n *Navigator) handleWaypointReachedLocked() Command {
	if n.queue.AdvanceToNext() {
		n.log.Info("advancing to next waypoint")
		n.phase = PhaseAlign
		n.alignStart = time.Now()
		n.status = StatusNavigating
		n.headingPID.Reset()
		return Command{Timestamp: time.Now()}
	}

	n.status = StatusPathComplete
	return Command{Timestamp: time.Now()}
}

// State returns a point-in-time snapshot for status reporting.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()

	var wp *Waypoint
	var distance, bearing float64
	if cur, ok := n.queue.Current(); ok {
		c := cur
		wp = &c
		if n.havePosition {
			distance = HaversineDistance(n.currentPosition.Latitude, n.currentPosition.Longitude, cur.Latitude, cur.Longitude)
			bearing = InitialBearing(n.currentPosition.Latitude, n.currentPosition.Longitude, cur.Latitude, cur.Longitude)
		}
	}

	return State{
		Mode:            n.mode,
		Status:          n.status,
		Phase:           n.phase,
		CurrentWaypoint: wp,
		DistanceToGoal:  distance,
		BearingToGoal:   bearing,
		HeadingError:    AngleDifference(n.currentHeading, bearing),
		LoopCount:       n.queue.LoopCount(),
	}
}

// Start begins active navigation.
func (n *Navigator) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.running = true
	if n.phase == PhaseIdle {
		n.beginCalibrationLocked()
	}
}

// Stop halts navigation and returns the phase to idle.
func (n *Navigator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.running = false
	n.phase = PhaseIdle
	n.status = StatusIdle
}

// Pause suspends command generation without losing the current phase.
func (n *Navigator) Pause() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = StatusPaused
}

// Resume continues navigation from the preserved phase. If the navigator
// had been fully idle, resuming re-enters calibration.
func (n *Navigator) Resume() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.phase == PhaseIdle {
		n.beginCalibrationLocked()
		return
	}
	n.status = StatusNavigating
}
