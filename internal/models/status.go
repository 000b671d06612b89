package models

import "time"

// EVSEStatus is the roaming-network status of a single connector.
type EVSEStatus string

const (
	EVSEAvailable    EVSEStatus = "Available"
	EVSEOccupied     EVSEStatus = "Occupied"
	EVSEReserved     EVSEStatus = "Reserved"
	EVSEOutOfService EVSEStatus = "OutOfService"
	EVSEOffline      EVSEStatus = "Offline"
	EVSEUnknown      EVSEStatus = "Unknown"
)

// EVSEStatusUpdate records one status transition of a connector.
type EVSEStatusUpdate struct {
	EVSEID    string     `json:"evse_id"`
	StationID string     `json:"station_id"`
	OldStatus EVSEStatus `json:"old_status"`
	NewStatus EVSEStatus `json:"new_status"`
	Timestamp time.Time  `json:"timestamp"`
}
