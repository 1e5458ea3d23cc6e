package location

import (
	"math"
	"testing"

	"wastelink/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 12.9716, lng1: 77.5946,
			lat2: 12.9716, lng2: 77.5946,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "one hundredth of a degree of latitude (~1.11km)",
			lat1: 12.9716, lng1: 77.5946,
			lat2: 12.9816, lng2: 77.5946,
			wantKm:    1.112,
			tolerance: 0.01,
		},
		{
			name: "Mumbai to Delhi (~1150km)",
			lat1: 19.0760, lng1: 72.8777,
			lat2: 28.7041, lng2: 77.1025,
			wantKm:    1150,
			tolerance: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := haversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("haversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := haversineKm(12.0, 77.0, 13.0, 78.0)
	d2 := haversineKm(13.0, 78.0, 12.0, 77.0)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestDistanceMeters(t *testing.T) {
	a := types.Point{Lat: 12.9716, Lng: 77.5946}
	b := types.Point{Lat: 12.9816, Lng: 77.5946}
	if got := DistanceMeters(a, b); math.Abs(got-1112) > 10 {
		t.Errorf("DistanceMeters() = %f, want ~1112", got)
	}
}

type ranked struct {
	id   types.ID
	dist float64
}

func TestSortByDistance(t *testing.T) {
	items := []ranked{{"c", 5.0}, {"a", 1.0}, {"b", 3.0}}

	SortByDistance(items, func(r ranked) float64 { return r.dist })

	if items[0].id != "a" || items[1].id != "b" || items[2].id != "c" {
		t.Errorf("unexpected sort order: %v", items)
	}
}

func TestSortByDistance_StableForTies(t *testing.T) {
	items := []ranked{{"first", 2.0}, {"second", 2.0}, {"near", 1.0}}

	SortByDistance(items, func(r ranked) float64 { return r.dist })

	if items[0].id != "near" || items[1].id != "first" || items[2].id != "second" {
		t.Errorf("unexpected sort order: %v", items)
	}
}

func TestSortByDistance_Empty(t *testing.T) {
	var items []ranked
	SortByDistance(items, func(r ranked) float64 { return r.dist })
}
