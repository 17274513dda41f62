// Package polyline implements Google's encoded polyline algorithm
// (precision 5) plus the path helpers the safety scorer relies on:
// total length and bounded, evenly spaced point sampling.
package polyline

import (
	"math"
)

// Coordinate is a geographic point on a path.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Decode converts an encoded polyline into coordinates.
func Decode(encoded string) []Coordinate {
	if encoded == "" {
		return nil
	}

	var coords []Coordinate
	var lat, lon, index int

	for index < len(encoded) {
		dLat, next := decodeDelta(encoded, index)
		lat += dLat
		dLon, next2 := decodeDelta(encoded, next)
		lon += dLon
		index = next2

		coords = append(coords, Coordinate{
			Lat: float64(lat) / 1e5,
			Lon: float64(lon) / 1e5,
		})
	}

	return coords
}

func decodeDelta(encoded string, index int) (int, int) {
	result := 0
	shift := 0

	for index < len(encoded) {
		chunk := int(encoded[index]) - 63
		index++
		result |= (chunk & 0x1f) << shift
		shift += 5
		if chunk < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

// Encode converts coordinates into an encoded polyline string.
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
		prevLat, prevLon = lat, lon
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

// Length returns the total path length in meters.
func Length(coords []Coordinate) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		total += haversine(coords[i-1], coords[i])
	}
	return total
}

// SampleN returns up to maxPoints coordinates spaced evenly by distance along
// the path, always including both endpoints. Scoring every vertex of a long
// polyline is wasteful; a bounded sample keeps per-route scoring cost flat.
func SampleN(coords []Coordinate, maxPoints int) []Coordinate {
	if len(coords) == 0 {
		return nil
	}
	if len(coords) == 1 || maxPoints == 1 {
		return []Coordinate{coords[0]}
	}
	if maxPoints <= 2 || len(coords) <= 2 {
		return []Coordinate{coords[0], coords[len(coords)-1]}
	}

	total := Length(coords)
	if total == 0 {
		return []Coordinate{coords[0], coords[len(coords)-1]}
	}

	interval := total / float64(maxPoints-1)
	sampled := []Coordinate{coords[0]}
	accumulated := 0.0

	for i := 1; i < len(coords) && len(sampled) < maxPoints-1; i++ {
		segment := haversine(coords[i-1], coords[i])

		for accumulated+segment >= interval && len(sampled) < maxPoints-1 {
			remaining := interval - accumulated
			fraction := remaining / segment

			sampled = append(sampled, Coordinate{
				Lat: coords[i-1].Lat + fraction*(coords[i].Lat-coords[i-1].Lat),
				Lon: coords[i-1].Lon + fraction*(coords[i].Lon-coords[i-1].Lon),
			})

			segment -= remaining
			accumulated = 0
		}

		accumulated += segment
	}

	return append(sampled, coords[len(coords)-1])
}

const earthRadiusMeters = 6371000

func haversine(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
