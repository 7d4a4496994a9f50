// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geo

import "math"

const earthRadiusM = 6371000.0

// DistanceM returns the haversine great-circle distance between two points
// in meters.
func DistanceM(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180.0
	lat2 := b.Latitude * math.Pi / 180.0
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180.0
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180.0

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// Path is a polyline with precomputed cumulative distances, used to place
// a simulated vehicle some number of meters along a route loop.
type Path struct {
	pts []Point
	cum []float64 // cum[i] = meters from pts[0] to pts[i]
}

// NewPath builds a Path from at least two waypoints.
func NewPath(pts []Point) *Path {
	cum := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		cum[i] = cum[i-1] + DistanceM(pts[i-1], pts[i])
	}
	return &Path{pts: pts, cum: cum}
}

// LengthM returns the total polyline length in meters.
func (p *Path) LengthM() float64 {
	if len(p.cum) == 0 {
		return 0
	}
	return p.cum[len(p.cum)-1]
}

// At returns the point that lies the given number of meters along the
// path. Distances beyond the end wrap around, so a closed route loops.
func (p *Path) At(meters float64) Point {
	if len(p.pts) == 0 {
		return Point{}
	}
	if len(p.pts) == 1 || p.LengthM() == 0 {
		return p.pts[0]
	}
	meters = math.Mod(meters, p.LengthM())
	if meters < 0 {
		meters += p.LengthM()
	}
	// Find the segment containing the offset and interpolate linearly.
	// Segments are a few tens of meters here; linear is fine.
	for i := 1; i < len(p.pts); i++ {
		if meters <= p.cum[i] {
			segLen := p.cum[i] - p.cum[i-1]
			if segLen == 0 {
				return p.pts[i]
			}
			frac := (meters - p.cum[i-1]) / segLen
			a, b := p.pts[i-1], p.pts[i]
			return Point{
				Latitude:  a.Latitude + frac*(b.Latitude-a.Latitude),
				Longitude: a.Longitude + frac*(b.Longitude-a.Longitude),
			}
		}
	}
	return p.pts[len(p.pts)-1]
}
