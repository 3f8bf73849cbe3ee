// Package config loads the rover's tunable settings from an optional YAML
// file overlaid with environment variables, matching spec §6's recognised
// options table. It produces plain structs the rest of the module
// constructs its components from; it does not itself own any HTTP/JSON
// exposure of that configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Serial holds the GNSS receiver's serial link settings.
type Serial struct {
	Port           string `yaml:"port"`
	BaudCandidates []int  `yaml:"baud_candidates"`
}

// NTRIP holds the optional corrections source. An empty Host means
// GPS-only mode.
type NTRIP struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Mountpoint string `yaml:"mountpoint"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	TLS        bool   `yaml:"tls"`
}

// Enabled reports whether enough of the NTRIP config is present to attempt
// a connection.
func (n NTRIP) Enabled() bool {
	return n.Host != "" && n.Mountpoint != ""
}

// Motor holds the differential-drive controller's tuning.
type Motor struct {
	MaxSpeed        float64 `yaml:"max_speed"`
	TurnSensitivity float64 `yaml:"turn_sensitivity"`
	SafetyTimeout   float64 `yaml:"safety_timeout"` // seconds
	RampRate        float64 `yaml:"ramp_rate"`
}

// PIDGains holds one PID controller's tuning.
type PIDGains struct {
	KP float64 `yaml:"kp"`
	KI float64 `yaml:"ki"`
	KD float64 `yaml:"kd"`
}

// Navigation holds the navigator's state-machine tuning.
type Navigation struct {
	MaxSpeed            float64 `yaml:"max_speed"`
	WaypointTolerance   float64 `yaml:"waypoint_tolerance"`
	AlignTolerance      float64 `yaml:"align_tolerance"`
	RealignThreshold    float64 `yaml:"realign_threshold"`
	AlignSpeed          float64 `yaml:"align_speed"`
	AlignTimeout        float64 `yaml:"align_timeout"` // seconds
	DriveCorrectionGain float64 `yaml:"drive_correction_gain"`
	CalibrationSpeed    float64 `yaml:"calibration_speed"`
	CalibrationDuration float64 `yaml:"calibration_duration"` // seconds
	MinSpeedForHeading  float64 `yaml:"min_speed_for_heading"`
}

// Config is the fully resolved set of tunables for one rover process.
type Config struct {
	Serial     Serial     `yaml:"serial"`
	NTRIP      NTRIP      `yaml:"ntrip"`
	Motor      Motor      `yaml:"motor"`
	Navigation Navigation `yaml:"navigation"`
	PIDHeading PIDGains   `yaml:"pid_heading"`
}

// Default returns the recognised option table's documented defaults.
func Default() Config {
	return Config{
		Serial: Serial{
			Port:           "/dev/ttyS0",
			BaudCandidates: []int{115200, 38400, 9600},
		},
		NTRIP: NTRIP{
			Port: 2101,
		},
		Motor: Motor{
			MaxSpeed:        1.0,
			TurnSensitivity: 1.0,
			SafetyTimeout:   0.5,
			RampRate:        0.1,
		},
		Navigation: Navigation{
			MaxSpeed:            1.0,
			WaypointTolerance:   2.0,
			AlignTolerance:      15.0,
			RealignThreshold:    30.0,
			AlignSpeed:          0.4,
			AlignTimeout:        10.0,
			DriveCorrectionGain: 0.02,
			CalibrationSpeed:    0.5,
			CalibrationDuration: 5.0,
			MinSpeedForHeading:  0.5,
		},
		PIDHeading: PIDGains{KP: 0.012, KI: 0.0005, KD: 0.008},
	}
}

// Load builds a Config starting from Default(), overlaying a YAML file at
// path (if non-empty and present) and then environment variables (highest
// precedence), matching the teacher's layered config-from-env-with-yaml
// pattern.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str(&cfg.Serial.Port, "ROVER_SERIAL_PORT")
	if v, ok := os.LookupEnv("ROVER_SERIAL_BAUD_CANDIDATES"); ok {
		cfg.Serial.BaudCandidates = parseIntList(v)
	}

	str(&cfg.NTRIP.Host, "ROVER_NTRIP_HOST")
	intVal(&cfg.NTRIP.Port, "ROVER_NTRIP_PORT")
	str(&cfg.NTRIP.Mountpoint, "ROVER_NTRIP_MOUNTPOINT")
	str(&cfg.NTRIP.Username, "ROVER_NTRIP_USER")
	str(&cfg.NTRIP.Password, "ROVER_NTRIP_PASSWORD")
	boolVal(&cfg.NTRIP.TLS, "ROVER_NTRIP_TLS")

	floatVal(&cfg.Motor.MaxSpeed, "ROVER_MOTOR_MAX_SPEED")
	floatVal(&cfg.Motor.TurnSensitivity, "ROVER_MOTOR_TURN_SENSITIVITY")
	floatVal(&cfg.Motor.SafetyTimeout, "ROVER_MOTOR_SAFETY_TIMEOUT")
	floatVal(&cfg.Motor.RampRate, "ROVER_MOTOR_RAMP_RATE")

	floatVal(&cfg.Navigation.MaxSpeed, "ROVER_NAV_MAX_SPEED")
	floatVal(&cfg.Navigation.WaypointTolerance, "ROVER_NAV_WAYPOINT_TOLERANCE")
	floatVal(&cfg.Navigation.AlignTolerance, "ROVER_NAV_ALIGN_TOLERANCE")
	floatVal(&cfg.Navigation.RealignThreshold, "ROVER_NAV_REALIGN_THRESHOLD")
	floatVal(&cfg.Navigation.AlignSpeed, "ROVER_NAV_ALIGN_SPEED")
	floatVal(&cfg.Navigation.AlignTimeout, "ROVER_NAV_ALIGN_TIMEOUT")
	floatVal(&cfg.Navigation.DriveCorrectionGain, "ROVER_NAV_DRIVE_CORRECTION_GAIN")
	floatVal(&cfg.Navigation.CalibrationSpeed, "ROVER_NAV_CALIBRATION_SPEED")
	floatVal(&cfg.Navigation.CalibrationDuration, "ROVER_NAV_CALIBRATION_DURATION")
	floatVal(&cfg.Navigation.MinSpeedForHeading, "ROVER_NAV_MIN_SPEED_FOR_HEADING")

	floatVal(&cfg.PIDHeading.KP, "ROVER_PID_HEADING_KP")
	floatVal(&cfg.PIDHeading.KI, "ROVER_PID_HEADING_KI")
	floatVal(&cfg.PIDHeading.KD, "ROVER_PID_HEADING_KD")
}

// Validate rejects configurations the rest of the module could not run
// safely, per spec §7's ConfigInvalid error kind.
func Validate(cfg Config) error {
	if cfg.Motor.MaxSpeed <= 0 || cfg.Motor.MaxSpeed > 1.0 {
		return fmt.Errorf("config: motor.max_speed must be in (0, 1.0], got %v", cfg.Motor.MaxSpeed)
	}
	if cfg.Navigation.MaxSpeed <= 0 || cfg.Navigation.MaxSpeed > 1.0 {
		return fmt.Errorf("config: navigation.max_speed must be in (0, 1.0], got %v", cfg.Navigation.MaxSpeed)
	}
	if len(cfg.Serial.BaudCandidates) == 0 {
		return fmt.Errorf("config: serial.baud_candidates must not be empty")
	}
	if cfg.NTRIP.Host != "" && cfg.NTRIP.Mountpoint == "" {
		return fmt.Errorf("config: ntrip.mountpoint required when ntrip.host is set")
	}
	return nil
}

func str(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func intVal(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func floatVal(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func boolVal(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func parseIntList(v string) []int {
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}
