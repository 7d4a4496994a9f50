package geo

import (
	"math"
	"testing"
)

func TestDistanceM_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Point
		wantM     float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         Point{Latitude: 39.747389, Longitude: -105.224338},
			b:         Point{Latitude: 39.747389, Longitude: -105.224338},
			wantM:     0,
			tolerance: 0.01,
		},
		{
			name:      "across campus (~550m)",
			a:         Point{Latitude: 39.751230, Longitude: -105.222302},
			b:         Point{Latitude: 39.748435, Longitude: -105.222988},
			wantM:     317,
			tolerance: 20,
		},
		{
			name:      "Denver to Golden (~20km)",
			a:         Point{Latitude: 39.7392, Longitude: -104.9903},
			b:         Point{Latitude: 39.7555, Longitude: -105.2211},
			wantM:     19800,
			tolerance: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceM(tt.a, tt.b)
			if math.Abs(got-tt.wantM) > tt.tolerance {
				t.Errorf("DistanceM() = %f, want %f (±%f)", got, tt.wantM, tt.tolerance)
			}
		})
	}
}

func TestPath_AtEndpoints(t *testing.T) {
	pts := []Point{
		{Latitude: 39.7500, Longitude: -105.2200},
		{Latitude: 39.7510, Longitude: -105.2200},
		{Latitude: 39.7510, Longitude: -105.2210},
	}
	p := NewPath(pts)

	if p.LengthM() <= 0 {
		t.Fatalf("LengthM() = %f, want > 0", p.LengthM())
	}

	start := p.At(0)
	if start != pts[0] {
		t.Errorf("At(0) = %+v, want %+v", start, pts[0])
	}
}

func TestPath_AtWrapsAround(t *testing.T) {
	pts := []Point{
		{Latitude: 39.7500, Longitude: -105.2200},
		{Latitude: 39.7510, Longitude: -105.2200},
	}
	p := NewPath(pts)

	mid := p.At(p.LengthM() / 2)
	wrapped := p.At(p.LengthM() * 1.5)

	if math.Abs(mid.Latitude-wrapped.Latitude) > 1e-9 ||
		math.Abs(mid.Longitude-wrapped.Longitude) > 1e-9 {
		t.Errorf("At should wrap: got %+v at half, %+v at 1.5x", mid, wrapped)
	}
}

func TestPath_AtInterpolates(t *testing.T) {
	pts := []Point{
		{Latitude: 39.7500, Longitude: -105.2200},
		{Latitude: 39.7520, Longitude: -105.2200},
	}
	p := NewPath(pts)

	mid := p.At(p.LengthM() / 2)
	wantLat := 39.7510
	if math.Abs(mid.Latitude-wantLat) > 1e-6 {
		t.Errorf("At(half) latitude = %f, want %f", mid.Latitude, wantLat)
	}
}

func TestPath_SinglePoint(t *testing.T) {
	p := NewPath([]Point{{Latitude: 1, Longitude: 2}})
	if got := p.At(100); got != (Point{Latitude: 1, Longitude: 2}) {
		t.Errorf("At() on single-point path = %+v", got)
	}
	if p.LengthM() != 0 {
		t.Errorf("LengthM() on single-point path = %f, want 0", p.LengthM())
	}
}
