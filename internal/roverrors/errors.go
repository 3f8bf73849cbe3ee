// Package roverrors defines the error taxonomy shared by the RTK, navigation
// and motor subsystems so callers can classify a failure without matching on
// message text.
package roverrors

import "fmt"

// Kind classifies a RoverError into one of the categories the rest of the
// system reacts to (reconnect, pause navigation, stop motors, ...).
type Kind int

const (
	ConfigInvalid Kind = iota
	SerialUnavailable
	SerialRead
	SerialWrite
	NMEAChecksum
	NMEAFormat
	RTCMCRC
	RTCMFraming
	NTRIPAuth
	NTRIPConnection
	NTRIPTimeout
	QueueOverflow
	GPSUnhealthy
	StalePosition
	NavigationError
	WatchdogTimeout
	MotorDriverFailure
)

var kindNames = map[Kind]string{
	ConfigInvalid:      "config_invalid",
	SerialUnavailable:  "serial_unavailable",
	SerialRead:         "serial_read",
	SerialWrite:        "serial_write",
	NMEAChecksum:       "nmea_checksum",
	NMEAFormat:         "nmea_format",
	RTCMCRC:            "rtcm_crc",
	RTCMFraming:        "rtcm_framing",
	NTRIPAuth:          "ntrip_auth",
	NTRIPConnection:    "ntrip_connection",
	NTRIPTimeout:       "ntrip_timeout",
	QueueOverflow:      "queue_overflow",
	GPSUnhealthy:       "gps_unhealthy",
	StalePosition:      "stale_position",
	NavigationError:    "navigation_error",
	WatchdogTimeout:    "watchdog_timeout",
	MotorDriverFailure: "motor_driver_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// RoverError wraps an underlying error with a classification Kind.
type RoverError struct {
	Kind Kind
	Err  error
}

func (e *RoverError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RoverError) Unwrap() error { return e.Err }

// New wraps err with the given Kind. If err is nil, New returns nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &RoverError{Kind: kind, Err: err}
}

// Is reports whether err is a RoverError of the given Kind.
func Is(err error, kind Kind) bool {
	var re *RoverError
	for err != nil {
		if re2, ok := err.(*RoverError); ok {
			re = re2
			break
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return re != nil && re.Kind == kind
}
