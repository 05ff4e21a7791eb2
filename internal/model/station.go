package model

// Extra holds the secondary attributes of a station that have no typed field.
// Values are passed through from the upstream feed as decoded.
type Extra struct {
	Address     any `json:"address"`
	UID         any `json:"uid"`
	Renting     any `json:"renting"`
	Returning   any `json:"returning"`
	LastUpdated any `json:"last_updated"`
}

// Station is a normalized bike-share station.
type Station struct {
	Name      string  `json:"name"`
	Bikes     int     `json:"bikes"`
	Free      int     `json:"free"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Extra     Extra   `json:"extra"`
}

// Coordinates returns the station position as (latitude, longitude).
func (s Station) Coordinates() (float64, float64) {
	return s.Latitude, s.Longitude
}

// ID returns the upstream station identifier as text, or "" when absent.
func (s Station) ID() string {
	return stringify(s.Extra.UID)
}
