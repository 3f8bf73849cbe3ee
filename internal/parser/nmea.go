// Package parser turns raw receiver bytes into typed sentence and frame
// values: NMEA text sentences via github.com/adrianmo/go-nmea, and RTCM
// binary frames in rtcm.go.
package parser

import (
	"fmt"

	"github.com/adrianmo/go-nmea"
)

// SentenceKind identifies which of the sentence types this package extracts
// fix information from. Other NMEA sentence types still parse successfully
// via go-nmea but are reported as KindOther since the rest of the system has
// no use for them.
type SentenceKind int

const (
	KindOther SentenceKind = iota
	KindGGA
	KindGLL
	KindGSA
	KindRMC
	KindVTG
)

// Fix is the subset of a parsed sentence the receiver adapter folds into a
// position.Position. Fields the sentence type does not carry are left at
// their zero value; callers must consult Kind before trusting a field.
type Fix struct {
	Kind             SentenceKind
	Latitude         float64
	Longitude        float64
	Altitude         float64
	FixQuality       int // GGA quality indicator, only valid when Kind == KindGGA
	Satellites       int // only valid when Kind == KindGGA
	HDOP             float64
	Valid            bool     // GLL/RMC validity flag
	CourseOverGround *float64 // degrees, from RMC or VTG
	SpeedMPS         *float64 // metres/second, from RMC or VTG
	SatellitesInView []string // PRNs reported by GSA, only valid when Kind == KindGSA
}

// Parse parses one NMEA sentence line (including the leading '$'/'!' and the
// trailing checksum). It returns an error if the checksum does not match or
// the sentence is not a type go-nmea recognises.
func Parse(line string) (Fix, error) {
	s, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, fmt.Errorf("parser: nmea: %w", err)
	}

	switch s.DataType() {
	case nmea.TypeGGA:
		gga := s.(nmea.GGA)
		return Fix{
			Kind:       KindGGA,
			Latitude:   gga.Latitude,
			Longitude:  gga.Longitude,
			Altitude:   gga.Altitude,
			FixQuality: int(gga.FixQuality),
			Satellites: int(gga.NumSatellites),
			HDOP:       gga.HDOP,
		}, nil

	case nmea.TypeGLL:
		gll := s.(nmea.GLL)
		return Fix{
			Kind:      KindGLL,
			Latitude:  gll.Latitude,
			Longitude: gll.Longitude,
			Valid:     gll.Validity == "A",
		}, nil

	case nmea.TypeGSA:
		gsa := s.(nmea.GSA)
		return Fix{
			Kind:             KindGSA,
			HDOP:             gsa.HDOP,
			SatellitesInView: gsa.SV,
		}, nil

	case nmea.TypeRMC:
		rmc := s.(nmea.RMC)
		course := rmc.Course
		speed := rmc.Speed * knotsToMPS
		return Fix{
			Kind:             KindRMC,
			Latitude:         rmc.Latitude,
			Longitude:        rmc.Longitude,
			Valid:            rmc.Validity == "A",
			CourseOverGround: &course,
			SpeedMPS:         &speed,
		}, nil

	case nmea.TypeVTG:
		vtg := s.(nmea.VTG)
		course := vtg.TrueTrack
		speed := vtg.GroundSpeedKPH / 3.6
		return Fix{
			Kind:             KindVTG,
			CourseOverGround: &course,
			SpeedMPS:         &speed,
		}, nil

	default:
		return Fix{Kind: KindOther}, nil
	}
}

const knotsToMPS = 0.514444
