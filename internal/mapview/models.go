// Package mapview renders one route's planned geometry and actual track as
// a self-contained Leaflet HTML document, staged on disk for capture.
package mapview

// LatLng is a coordinate pair as the map scene serializes it.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NodeMarker is a numbered planned waypoint.
type NodeMarker struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Label int     `json:"label"`
}

// SegmentLine is one planned road segment. Arrow marks the sparse
// directional indicators placed on every Nth segment.
type SegmentLine struct {
	Points []LatLng `json:"points"`
	Arrow  bool     `json:"arrow"`
}

// Bounds is the viewport-fitting box over every plotted point.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Scene is the complete drawable state of one route map. It is embedded in
// the HTML document as a JSON data island that the page script reads.
type Scene struct {
	Title         string       `json:"title"`
	Center        LatLng       `json:"center"`
	Zoom          int          `json:"zoom"`
	FitBounds     *Bounds      `json:"fitBounds,omitempty"`
	Nodes         []NodeMarker `json:"nodes"`
	Segments      []SegmentLine `json:"segments"`
	ChargingStops []LatLng     `json:"chargingStops"`
	Depot         LatLng       `json:"depot"`
	Track         []LatLng     `json:"track"`
}

// HasTrack reports whether an actual-route layer will be drawn.
func (s *Scene) HasTrack() bool {
	return len(s.Track) > 0
}
