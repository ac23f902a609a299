package mapview

import "testing"

func TestBoundsOfEmpty(t *testing.T) {
	if b := boundsOf(nil); b != nil {
		t.Errorf("expected nil bounds for no points, got %+v", b)
	}
}

func TestBoundsOfSinglePoint(t *testing.T) {
	b := boundsOf([]LatLng{{Lat: 51.46, Lon: 0.24}})
	if b == nil {
		t.Fatal("expected bounds")
	}
	if b.South != 51.46 || b.North != 51.46 || b.West != 0.24 || b.East != 0.24 {
		t.Errorf("single point should yield a degenerate box, got %+v", b)
	}
}

func TestBoundsOfSpansAllPoints(t *testing.T) {
	b := boundsOf([]LatLng{
		{Lat: 51.40, Lon: 0.30},
		{Lat: 51.50, Lon: 0.10},
		{Lat: 51.45, Lon: 0.20},
	})
	if b.South != 51.40 || b.North != 51.50 || b.West != 0.10 || b.East != 0.30 {
		t.Errorf("unexpected bounds %+v", b)
	}
}
