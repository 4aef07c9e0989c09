// README: Pure geographic helpers (haversine distance, metric offsets).
package location

import (
	"math"

	"resortdispatch/internal/types"
)

const earthRadiusM = 6371000.0

// DistanceMeters returns the great-circle (haversine) distance in metres
// between two points.
func DistanceMeters(a, b types.Point) float64 {
	return haversineM(a.Lat, a.Lng, b.Lat, b.Lng)
}

func haversineM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Offset moves p by northM metres north and eastM metres east. Used to build
// fixtures and synthetic fleets at a known distance.
func Offset(p types.Point, northM, eastM float64) types.Point {
	dLat := northM / earthRadiusM
	dLng := eastM / (earthRadiusM * math.Cos(degreesToRadians(p.Lat)))
	return types.Point{
		Lat: p.Lat + dLat*180/math.Pi,
		Lng: p.Lng + dLng*180/math.Pi,
	}
}
