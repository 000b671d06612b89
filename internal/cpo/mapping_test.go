package cpo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chargebridge/internal/models"
	"chargebridge/internal/oioi"
)

func TestStationToWire(t *testing.T) {
	st := testStation("DE*GEF*S1")
	wire, err := stationToWire(st, false)
	require.NoError(t, err)

	assert.Equal(t, "DE*GEF*S1", wire.ID)
	assert.Equal(t, 52.52, wire.Latitude)
	assert.Equal(t, "Unter den Linden 1", wire.Address)
	require.Len(t, wire.Connectors, 1)
	assert.Equal(t, "DE-GEF-S1-1", wire.Connectors[0].ID)
	assert.Equal(t, oioi.StatusAvailable, wire.Connectors[0].Status)
}

func TestStationToWireMissingGeoFails(t *testing.T) {
	st := testStation("A")
	st.Geo = models.GeoCoordinate{}

	_, err := stationToWire(st, false)
	assert.ErrorIs(t, err, errMissingGeo)
}

func TestStatusToWireSoftFailsToUnknown(t *testing.T) {
	assert.Equal(t, oioi.StatusAvailable, statusToWire(models.EVSEAvailable))
	assert.Equal(t, oioi.StatusOccupied, statusToWire(models.EVSEOccupied))
	assert.Equal(t, oioi.StatusReserved, statusToWire(models.EVSEReserved))
	assert.Equal(t, oioi.StatusOffline, statusToWire(models.EVSEOutOfService))
	assert.Equal(t, oioi.StatusOffline, statusToWire(models.EVSEOffline))
	assert.Equal(t, oioi.StatusUnknown, statusToWire(models.EVSEStatus("SomethingNew")))
}

func TestEVSEToConnectorID(t *testing.T) {
	id, err := evseToConnectorID(" de*gef*e1*2 ")
	require.NoError(t, err)
	assert.Equal(t, "DE-GEF-E1-2", id)

	_, err = evseToConnectorID("  ")
	assert.ErrorIs(t, err, errMissingEVSEID)
}

func TestCDRToWire(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	cdr := models.ChargeDetailRecord{
		SessionID: "sess-1",
		EVSEID:    "S1*1",
		Token:     models.AuthToken{UID: "04-ab-9f"},
		StartTime: start,
		EndTime:   start.Add(45 * time.Minute),
		EnergyKWh: 9.5,
	}

	wire, err := cdrToWire(cdr)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", wire.ID)
	assert.Equal(t, "S1-1", wire.ConnectorID)
	assert.Equal(t, "04AB9F", wire.User.Identifier)
	assert.Equal(t, "rfid", wire.User.IdentifierType)
	assert.Equal(t, 9.5, wire.EnergyConsumed)
}

func TestCDRToWireValidation(t *testing.T) {
	cdr := models.ChargeDetailRecord{EVSEID: "S1*1"}
	_, err := cdrToWire(cdr)
	assert.ErrorIs(t, err, errMissingSession)

	now := time.Now()
	inverted := models.ChargeDetailRecord{
		SessionID: "sess-2",
		EVSEID:    "S1*1",
		StartTime: now,
		EndTime:   now.Add(-time.Minute),
	}
	_, err = cdrToWire(inverted)
	assert.Error(t, err)
}
