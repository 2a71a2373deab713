package geo

import "math"

const earthRadiusMeters = 6371008.8

type Point struct {
	Lat float64
	Lng float64
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Box returns a lat/lng rectangle that contains every point within radius
// meters of center. Longitude span is clamped near the poles.
func Box(center Point, radius float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radius / earthRadiusMeters * 180 / math.Pi

	cos := math.Cos(center.Lat * math.Pi / 180)
	dLng := 180.0
	if cos > 1e-6 {
		dLng = math.Min(180, dLat/cos)
	}

	minLat = math.Max(-90, center.Lat-dLat)
	maxLat = math.Min(90, center.Lat+dLat)
	minLng = math.Max(-180, center.Lng-dLng)
	maxLng = math.Min(180, center.Lng+dLng)
	return minLat, maxLat, minLng, maxLng
}
