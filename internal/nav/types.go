package nav

import "time"

// Mode selects what the navigator's update loop is trying to do.
type Mode int

const (
	ModeManual Mode = iota
	ModeWaypoint
	ModePathFollowing
	ModeReturnToHome
	ModeHoldPosition
)

func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "MANUAL"
	case ModeWaypoint:
		return "WAYPOINT"
	case ModePathFollowing:
		return "PATH_FOLLOWING"
	case ModeReturnToHome:
		return "RETURN_TO_HOME"
	case ModeHoldPosition:
		return "HOLD_POSITION"
	default:
		return "UNKNOWN"
	}
}

// Status is the outward-facing navigation status reported to the rover
// coordinator, distinct from the internal Phase state machine.
type Status int

const (
	StatusIdle Status = iota
	StatusNavigating
	StatusReachedWaypoint
	StatusPathComplete
	StatusError
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusNavigating:
		return "NAVIGATING"
	case StatusReachedWaypoint:
		return "REACHED_WAYPOINT"
	case StatusPathComplete:
		return "PATH_COMPLETE"
	case StatusError:
		return "ERROR"
	case StatusPaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// Phase is the internal state machine the update loop steps through.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCalibrate
	PhaseAlign
	PhaseDrive
	PhaseReached
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseCalibrate:
		return "CALIBRATE"
	case PhaseAlign:
		return "ALIGN"
	case PhaseDrive:
		return "DRIVE"
	case PhaseReached:
		return "REACHED"
	default:
		return "UNKNOWN"
	}
}

// Command is the navigator's output: a speed and turn rate the motor
// controller maps onto differential drive.
type Command struct {
	Speed     float64 // -1.0 to 1.0
	TurnRate  float64 // -1.0 to 1.0, positive turns right
	Timestamp time.Time
	Priority  int
}

// clampUnit clamps v into [-1, 1].
func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// NewCommand builds a Command, clamping Speed and TurnRate to [-1, 1] the
// way the dataclass's __post_init__ did in the original.
func NewCommand(speed, turnRate float64, priority int) Command {
	return Command{
		Speed:     clampUnit(speed),
		TurnRate:  clampUnit(turnRate),
		Timestamp: time.Now(),
		Priority:  priority,
	}
}

// State is a point-in-time snapshot of the navigator, returned by
// Navigator.State() for status reporting.
type State struct {
	Mode            Mode
	Status          Status
	Phase           Phase
	CurrentWaypoint *Waypoint
	DistanceToGoal  float64
	BearingToGoal   float64
	HeadingError    float64
	LoopCount       int
}
