package oioi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientSendsEnvelopeAndAuthHeader(t *testing.T) {
	var gotAuth string
	var gotBody map[string]json.RawMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"code":0,"message":"Success."}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-key", srv.Client(), zap.NewNop())

	resp, err := client.PostStation(context.Background(), StationPost{
		Station:           Station{ID: "S1", Name: "Test", Latitude: 1, Longitude: 2},
		PartnerIdentifier: "partner-1",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success())

	assert.Equal(t, "Token key=secret-key", gotAuth)
	require.Contains(t, gotBody, "station-post")
	assert.NotContains(t, gotBody, "connector-post-status")
}

func TestClientDecodesRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"code":401,"message":"rfid unknown"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", srv.Client(), zap.NewNop())

	resp, err := client.VerifyRFID(context.Background(), RFIDVerify{RFID: "04AB9F"})
	require.NoError(t, err)
	assert.False(t, resp.Success())
	assert.Equal(t, CodeRFIDUnknown, resp.Result.Code)
	assert.ErrorContains(t, resp.Err(), "rfid unknown")
}

func TestClientHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", srv.Client(), zap.NewNop())

	_, err := client.PostConnectorStatus(context.Background(), ConnectorPostStatus{
		ConnectorID: "S1-1", Status: StatusAvailable, PartnerIdentifier: "p",
	})
	assert.ErrorContains(t, err, "http status 502")
}

func TestClientMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", srv.Client(), zap.NewNop())

	_, err := client.PostSession(context.Background(), SessionPost{})
	assert.Error(t, err)
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL, "k", nil, zap.NewNop())

	_, err := client.PostStation(context.Background(), StationPost{})
	assert.Error(t, err)
}

func TestResponseErrNilSafety(t *testing.T) {
	var resp *Response
	assert.False(t, resp.Success())
	assert.Error(t, resp.Err())
}
