package models

// Route is an ordered polyline approximating the road path between an
// origin and a destination, with its precomputed total length.
type Route struct {
	Points       []Location `json:"points" bson:"points"`
	LengthMeters float64    `json:"length_meters" bson:"length_meters"`
	Synthetic    bool       `json:"synthetic" bson:"synthetic"` // true when built from the straight-line fallback
}

// Usable reports whether the route can drive position interpolation.
func (r *Route) Usable() bool {
	return r != nil && len(r.Points) >= 2 && r.LengthMeters > 0
}
