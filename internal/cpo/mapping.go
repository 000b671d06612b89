package cpo

import (
	"errors"
	"fmt"
	"strings"

	"chargebridge/internal/models"
	"chargebridge/internal/oioi"
)

var (
	errMissingGeo     = errors.New("station has no geo coordinates")
	errMissingEVSEID  = errors.New("evse id is empty")
	errMissingSession = errors.New("session id is empty")
)

// stationToWire converts a roaming-network station into the partner DTO.
// A station without geo coordinates cannot be represented and fails the
// mapping. When forceOffline is set (station removal), every connector is
// reported OFFLINE since the partner API has no delete operation.
func stationToWire(st models.ChargingStation, forceOffline bool) (oioi.Station, error) {
	if st.ID == "" {
		return oioi.Station{}, errors.New("station id is empty")
	}
	if st.Geo.IsZero() {
		return oioi.Station{}, errMissingGeo
	}

	connectors := make([]oioi.Connector, 0, len(st.EVSEs))
	for _, evse := range st.EVSEs {
		id, err := evseToConnectorID(evse.ID)
		if err != nil {
			return oioi.Station{}, fmt.Errorf("evse %q: %w", evse.ID, err)
		}
		status := statusToWire(evse.Status)
		if forceOffline {
			status = oioi.StatusOffline
		}
		connectors = append(connectors, oioi.Connector{
			ID:     id,
			Plug:   evse.Plug,
			Speed:  evse.SpeedKW,
			Status: status,
		})
	}

	address := strings.TrimSpace(fmt.Sprintf("%s %s", st.Address.Street, st.Address.Number))

	return oioi.Station{
		ID:          st.ID,
		Name:        st.Name,
		Description: st.Description,
		Latitude:    st.Geo.Latitude,
		Longitude:   st.Geo.Longitude,
		Address:     address,
		City:        st.Address.City,
		ZIP:         st.Address.ZIP,
		Country:     st.Address.Country,
		Contact:     st.Contact,
		IsOpen24:    st.OpenAllDay,
		Connectors:  connectors,
	}, nil
}

// statusToWire maps a connector status onto the partner's vocabulary.
// Unmapped values soft-fail to UNKNOWN rather than erroring out.
func statusToWire(status models.EVSEStatus) string {
	switch status {
	case models.EVSEAvailable:
		return oioi.StatusAvailable
	case models.EVSEOccupied:
		return oioi.StatusOccupied
	case models.EVSEReserved:
		return oioi.StatusReserved
	case models.EVSEOutOfService, models.EVSEOffline:
		return oioi.StatusOffline
	default:
		return oioi.StatusUnknown
	}
}

// evseToConnectorID derives the partner connector id from an EVSE id.
// The partner id space forbids '*' separators, so they are folded to '-'.
func evseToConnectorID(evseID string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(evseID))
	if id == "" {
		return "", errMissingEVSEID
	}
	return strings.ReplaceAll(id, "*", "-"), nil
}

// cdrToWire converts a charge detail record into the partner session DTO.
func cdrToWire(cdr models.ChargeDetailRecord) (oioi.Session, error) {
	if cdr.SessionID == "" {
		return oioi.Session{}, errMissingSession
	}
	connectorID, err := evseToConnectorID(cdr.EVSEID)
	if err != nil {
		return oioi.Session{}, err
	}
	if cdr.EndTime.Before(cdr.StartTime) {
		return oioi.Session{}, fmt.Errorf("session %s ends before it starts", cdr.SessionID)
	}

	return oioi.Session{
		ID:          cdr.SessionID,
		ConnectorID: connectorID,
		User: oioi.User{
			Identifier:     cdr.Token.Normalized(),
			IdentifierType: "rfid",
		},
		SessionInterval: oioi.SessionInterval{
			Start: cdr.StartTime,
			Stop:  cdr.EndTime,
		},
		EnergyConsumed: cdr.EnergyKWh,
		PaymentRef:     cdr.PartnerRef,
	}, nil
}
