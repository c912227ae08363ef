package models

// SimulationInput is the pre-validated record handed over by the upstream
// shipment data provider. Origin/Destination are pointers so a missing
// coordinate is distinguishable from (0, 0).
type SimulationInput struct {
	ShipmentID      string    `json:"shipment_id"`
	Origin          *Location `json:"origin,omitempty"`
	Destination     *Location `json:"destination,omitempty"`
	ExternalStatus  string    `json:"external_status"`
	ResumeDistance  float64   `json:"resume_distance,omitempty"` // meters along the route
	SpeedMultiplier float64   `json:"speed_multiplier,omitempty"`
	Route           *Route    `json:"route,omitempty"` // pre-resolved route, skips the resolver

	DriverName string `json:"driver_name,omitempty"`
	TruckLabel string `json:"truck_label,omitempty"`
}

// HasValidCoordinates reports whether both endpoints are present and inside
// coordinate range. Anything else forces AWAITING_STATUS regardless of the
// external status code.
func (in *SimulationInput) HasValidCoordinates() bool {
	return in.Origin != nil && in.Origin.Valid() &&
		in.Destination != nil && in.Destination.Valid()
}
