// Package nav implements the CALIBRATE/ALIGN/DRIVE/REACHED navigation state
// machine, its supporting geodesy, and the waypoint queue it drives through.
package nav

import "math"

// EarthRadiusMeters is the mean earth radius used by the haversine and
// bearing calculations below.
const EarthRadiusMeters = 6371000.0

// HaversineDistance returns the great-circle distance in metres between two
// lat/lon points given in degrees.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := degToRad(lat1)
	phi2 := degToRad(lat2)
	dPhi := degToRad(lat2 - lat1)
	dLambda := degToRad(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// InitialBearing returns the initial compass bearing in degrees [0, 360)
// from point 1 to point 2.
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := degToRad(lat1)
	phi2 := degToRad(lat2)
	dLambda := degToRad(lon2 - lon1)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	theta := math.Atan2(y, x)
	return math.Mod(radToDeg(theta)+360, 360)
}

// NormalizeAngle maps any angle in degrees into [-180, 180].
func NormalizeAngle(angle float64) float64 {
	for angle > 180 {
		angle -= 360
	}
	for angle < -180 {
		angle += 360
	}
	return angle
}

// AngleDifference returns the signed shortest rotation from "from" to "to",
// both given in degrees [0, 360), as a value in [-180, 180]. A positive
// result means "to" is clockwise of "from".
func AngleDifference(from, to float64) float64 {
	return NormalizeAngle(to - from)
}

// DestinationPoint returns the lat/lon reached by travelling distanceM
// metres along bearingDeg from the given start point.
func DestinationPoint(lat, lon, bearingDeg, distanceM float64) (float64, float64) {
	phi1 := degToRad(lat)
	lambda1 := degToRad(lon)
	theta := degToRad(bearingDeg)
	delta := distanceM / EarthRadiusMeters

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	return radToDeg(phi2), radToDeg(lambda2)
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }
