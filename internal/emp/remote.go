// Package emp handles the e-mobility-provider direction of the bridge:
// remote session commands arriving from the partner are dispatched into
// the roaming network.
package emp

import (
	"context"
	"errors"

	"chargebridge/internal/models"
)

// ErrNoSuchSession indicates a stop request for an unknown session.
var ErrNoSuchSession = errors.New("no such remote session")

// StartRequest carries everything needed to start a session locally.
type StartRequest struct {
	Token       models.AuthToken
	ConnectorID string
	PaymentRef  string
}

// StopRequest identifies the session to terminate.
type StopRequest struct {
	SessionID   string
	ConnectorID string
	StationID   string
}

// RemoteControl starts and stops charging sessions in the roaming
// network on behalf of the partner.
type RemoteControl interface {
	StartSession(ctx context.Context, req StartRequest) (sessionID string, err error)
	StopSession(ctx context.Context, req StopRequest) error
}
