package models

import "time"

// ChargeDetailRecord summarizes one completed charging session.
type ChargeDetailRecord struct {
	SessionID  string    `json:"session_id"`
	EVSEID     string    `json:"evse_id"`
	StationID  string    `json:"station_id"`
	Token      AuthToken `json:"token"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	EnergyKWh  float64   `json:"energy_kwh"`
	PartnerRef string    `json:"partner_ref,omitempty"`
}
