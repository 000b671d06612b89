package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"chargebridge/internal/emp"
	"chargebridge/internal/oioi"
)

// webhookEnvelope mirrors the partner request envelope: one operation
// key per message.
type webhookEnvelope struct {
	SessionStart *oioi.SessionStart `json:"session-start"`
	SessionStop  *oioi.SessionStop  `json:"session-stop"`
}

// BridgeHandlers serves the partner-facing webhooks.
type BridgeHandlers struct {
	dispatcher *emp.Dispatcher
	apiKey     string
	logger     *zap.Logger
}

// NewBridgeHandlers builds the handler set. apiKey guards the webhook
// endpoints; an empty key disables the check (local testing only).
func NewBridgeHandlers(dispatcher *emp.Dispatcher, apiKey string, logger *zap.Logger) *BridgeHandlers {
	return &BridgeHandlers{dispatcher: dispatcher, apiKey: apiKey, logger: logger}
}

// SessionStart handles the remote-start webhook.
func (h *BridgeHandlers) SessionStart(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeResult(w, http.StatusUnauthorized, oioi.CodeInvalidAPIKey, "invalid api key")
		return
	}

	var envelope webhookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil || envelope.SessionStart == nil {
		writeResult(w, http.StatusBadRequest, oioi.CodeSystemError, "malformed session-start payload")
		return
	}

	resp := h.dispatcher.HandleSessionStart(r.Context(), *envelope.SessionStart)
	writeResponse(w, resp)
}

// SessionStop handles the remote-stop webhook.
func (h *BridgeHandlers) SessionStop(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeResult(w, http.StatusUnauthorized, oioi.CodeInvalidAPIKey, "invalid api key")
		return
	}

	var envelope webhookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil || envelope.SessionStop == nil {
		writeResult(w, http.StatusBadRequest, oioi.CodeSystemError, "malformed session-stop payload")
		return
	}

	resp := h.dispatcher.HandleSessionStop(r.Context(), *envelope.SessionStop)
	writeResponse(w, resp)
}

// Health reports liveness.
func (h *BridgeHandlers) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *BridgeHandlers) authorized(r *http.Request) bool {
	if h.apiKey == "" {
		return true
	}
	expected := fmt.Sprintf("Token key=%s", h.apiKey)
	got := r.Header.Get("Authorization")
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func writeResult(w http.ResponseWriter, httpStatus int, code oioi.ResultCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(oioi.Response{
		Result: oioi.Result{Code: code, Message: message},
	})
}

func writeResponse(w http.ResponseWriter, resp oioi.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
