// Package oioi implements the partner HTTP/JSON charge-point protocol:
// the wire DTOs and a thin client posting them to the partner endpoint.
package oioi

import "time"

// Connector status values accepted by the partner API.
const (
	StatusAvailable = "AVAILABLE"
	StatusOccupied  = "OCCUPIED"
	StatusReserved  = "RESERVED"
	StatusOffline   = "OFFLINE"
	StatusUnknown   = "UNKNOWN"
)

// Connector is the partner view of one EVSE.
type Connector struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Plug   string  `json:"plug,omitempty"`
	Speed  float64 `json:"speed,omitempty"`
	Status string  `json:"status,omitempty"`
}

// Station is the partner view of one charging station.
type Station struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Address     string      `json:"address,omitempty"`
	City        string      `json:"city,omitempty"`
	ZIP         string      `json:"zip,omitempty"`
	Country     string      `json:"country,omitempty"`
	Contact     string      `json:"contact,omitempty"`
	IsOpen24    bool        `json:"is-open-24"`
	Connectors  []Connector `json:"connectors"`
}

// StationPost publishes or updates a station record.
type StationPost struct {
	Station           Station `json:"station"`
	PartnerIdentifier string  `json:"partner-identifier"`
}

// ConnectorPostStatus publishes the live status of one connector.
type ConnectorPostStatus struct {
	ConnectorID       string `json:"connector-id"`
	Status            string `json:"status"`
	PartnerIdentifier string `json:"partner-identifier"`
}

// User identifies the customer medium inside a session payload.
type User struct {
	Identifier     string `json:"identifier"`
	IdentifierType string `json:"identifier-type"`
}

// SessionInterval bounds a charging session in time.
type SessionInterval struct {
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop"`
}

// Session is a completed charging session (CDR) on the wire.
type Session struct {
	ID              string          `json:"id"`
	ConnectorID     string          `json:"connector-id"`
	User            User            `json:"user"`
	SessionInterval SessionInterval `json:"session-interval"`
	EnergyConsumed  float64         `json:"energy-consumed"`
	PaymentRef      string          `json:"payment-reference,omitempty"`
}

// SessionPost forwards a completed session to the partner.
type SessionPost struct {
	Session           Session `json:"session"`
	PartnerIdentifier string  `json:"partner-identifier"`
}

// RFIDVerify asks the partner whether an RFID token is known and active.
type RFIDVerify struct {
	RFID string `json:"rfid"`
}

// SessionStart is the inbound remote-start webhook payload.
type SessionStart struct {
	User        User   `json:"user"`
	ConnectorID string `json:"connector-id"`
	PaymentRef  string `json:"payment-reference,omitempty"`
}

// SessionStop is the inbound remote-stop webhook payload.
type SessionStop struct {
	User        User   `json:"user"`
	ConnectorID string `json:"connector-id"`
	SessionID   string `json:"session-id"`
}

// request is the envelope: exactly one operation key per message.
type request struct {
	StationPost         *StationPost         `json:"station-post,omitempty"`
	ConnectorPostStatus *ConnectorPostStatus `json:"connector-post-status,omitempty"`
	SessionPost         *SessionPost         `json:"session-post,omitempty"`
	RFIDVerify          *RFIDVerify          `json:"rfid-verify,omitempty"`
}
