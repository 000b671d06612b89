package models

import "time"

// GeoCoordinate is a WGS84 position. Zero value means "unknown".
type GeoCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether no position was set.
func (g GeoCoordinate) IsZero() bool {
	return g.Latitude == 0 && g.Longitude == 0
}

// Address holds the postal location of a station.
type Address struct {
	Street  string `json:"street"`
	Number  string `json:"number"`
	ZIP     string `json:"zip"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// ChargingStation is the roaming-network view of one charging site unit.
type ChargingStation struct {
	ID          string        `json:"id"`
	OperatorID  string        `json:"operator_id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Address     Address       `json:"address"`
	Geo         GeoCoordinate `json:"geo"`
	Contact     string        `json:"contact,omitempty"`
	OpenAllDay  bool          `json:"open_all_day"`
	EVSEs       []EVSE        `json:"evses"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// EVSE is one physical connector on a station.
type EVSE struct {
	ID        string     `json:"id"`
	StationID string     `json:"station_id"`
	Plug      string     `json:"plug"`
	SpeedKW   float64    `json:"speed_kw"`
	Status    EVSEStatus `json:"status"`
}
