package geo

// Point is a single WGS84 coordinate suitable for JSON and the wire.
type Point struct {
	Latitude  float64 `json:"latitude"`  // decimal degrees
	Longitude float64 `json:"longitude"` // decimal degrees
}

// CampusCenter is the fallback position the view layer renders before any
// real fix or feed update has arrived.
var CampusCenter = Point{Latitude: 39.747389, Longitude: -105.224338}
