// Package polyline implements Google's encoded polyline format, which is how
// road-segment geometry comes back from PostGIS (ST_AsEncodedPolyline) and how
// dense telematics tracks are thinned before plotting.
// Format reference: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"math"
)

// Coordinate is a geographic point.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Decode decodes an encoded polyline into coordinates at the standard
// 5-decimal precision. An empty string decodes to nil.
func Decode(encoded string) []Coordinate {
	if encoded == "" {
		return nil
	}

	var coords []Coordinate
	var lat, lon int

	for i := 0; i < len(encoded); {
		dLat, next := decodeDelta(encoded, i)
		lat += dLat

		dLon, next2 := decodeDelta(encoded, next)
		lon += dLon
		i = next2

		coords = append(coords, Coordinate{
			Lat: float64(lat) / 1e5,
			Lon: float64(lon) / 1e5,
		})
	}

	return coords
}

// decodeDelta reads one varint delta starting at i and returns it with the
// index of the next unread byte.
func decodeDelta(encoded string, i int) (int, int) {
	var shift, result int

	for i < len(encoded) {
		b := int(encoded[i]) - 63
		i++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), i
	}
	return result >> 1, i
}

// Encode encodes coordinates into a polyline string at 5-decimal precision.
func Encode(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	buf := make([]byte, 0, len(coords)*4)
	var prevLat, prevLon int

	for _, c := range coords {
		lat := int(math.Round(c.Lat * 1e5))
		lon := int(math.Round(c.Lon * 1e5))

		buf = appendDelta(buf, lat-prevLat)
		buf = appendDelta(buf, lon-prevLon)

		prevLat = lat
		prevLon = lon
	}

	return string(buf)
}

func appendDelta(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

// Length returns the total haversine length of the line in meters.
func Length(coords []Coordinate) float64 {
	if len(coords) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(coords); i++ {
		total += haversine(coords[i-1], coords[i])
	}
	return total
}

// Sample returns points spaced approximately intervalMeters apart along the
// line. The first and last points are always kept, so a short line comes
// back unchanged. A non-positive interval returns the input as-is.
func Sample(coords []Coordinate, intervalMeters float64) []Coordinate {
	if len(coords) == 0 {
		return nil
	}
	if intervalMeters <= 0 {
		return coords
	}

	sampled := []Coordinate{coords[0]}
	carried := 0.0

	for i := 1; i < len(coords); i++ {
		segment := haversine(coords[i-1], coords[i])

		for carried+segment >= intervalMeters {
			remaining := intervalMeters - carried
			t := remaining / segment

			sampled = append(sampled, Coordinate{
				Lat: coords[i-1].Lat + t*(coords[i].Lat-coords[i-1].Lat),
				Lon: coords[i-1].Lon + t*(coords[i].Lon-coords[i-1].Lon),
			})

			segment -= remaining
			carried = 0
		}

		carried += segment
	}

	last := coords[len(coords)-1]
	if sampled[len(sampled)-1] != last {
		sampled = append(sampled, last)
	}

	return sampled
}

const earthRadiusMeters = 6371000

func haversine(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
