package emp

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargebridge/internal/models"
	"chargebridge/internal/oioi"
	"chargebridge/internal/sessionstore"
)

// Dispatcher translates partner webhook payloads into remote-control
// calls and keeps the session correlation cache current. It is a thin
// callback layer: every decision beyond payload validation belongs to
// the RemoteControl implementation.
type Dispatcher struct {
	control  RemoteControl
	sessions *sessionstore.Store
	logger   *zap.Logger
}

// NewDispatcher builds the webhook dispatcher. sessions may be nil, in
// which case stop requests can only be resolved by the control itself.
func NewDispatcher(control RemoteControl, sessions *sessionstore.Store, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{control: control, sessions: sessions, logger: logger}
}

// HandleSessionStart processes a remote-start webhook.
func (d *Dispatcher) HandleSessionStart(ctx context.Context, start oioi.SessionStart) oioi.Response {
	if start.ConnectorID == "" || start.User.Identifier == "" {
		return response(oioi.CodeConnectorUnknown, "missing connector or user")
	}

	sessionID, err := d.control.StartSession(ctx, StartRequest{
		Token:       models.AuthToken{UID: start.User.Identifier},
		ConnectorID: start.ConnectorID,
		PaymentRef:  start.PaymentRef,
	})
	if err != nil {
		d.logger.Warn("remote start rejected",
			zap.String("connector_id", start.ConnectorID), zap.Error(err))
		return response(oioi.CodeSystemError, err.Error())
	}

	if d.sessions != nil {
		err := d.sessions.Save(ctx, sessionstore.RemoteSession{
			SessionID:   sessionID,
			ConnectorID: start.ConnectorID,
			TokenUID:    start.User.Identifier,
			StartedAt:   time.Now().UTC(),
		})
		if err != nil {
			d.logger.Warn("failed to cache remote session",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	d.logger.Info("remote session started",
		zap.String("session_id", sessionID),
		zap.String("connector_id", start.ConnectorID))
	return response(oioi.CodeSuccess, "Success.")
}

// HandleSessionStop processes a remote-stop webhook.
func (d *Dispatcher) HandleSessionStop(ctx context.Context, stop oioi.SessionStop) oioi.Response {
	if stop.SessionID == "" {
		return response(oioi.CodeSessionUnknown, "missing session id")
	}

	req := StopRequest{SessionID: stop.SessionID, ConnectorID: stop.ConnectorID}
	if d.sessions != nil {
		cached, err := d.sessions.Get(ctx, stop.SessionID)
		switch {
		case err == nil:
			req.ConnectorID = cached.ConnectorID
			req.StationID = cached.StationID
		case errors.Is(err, redis.Nil):
			return response(oioi.CodeSessionUnknown, "unknown session")
		default:
			d.logger.Warn("session cache lookup failed",
				zap.String("session_id", stop.SessionID), zap.Error(err))
		}
	}

	if err := d.control.StopSession(ctx, req); err != nil {
		if errors.Is(err, ErrNoSuchSession) {
			return response(oioi.CodeSessionUnknown, err.Error())
		}
		d.logger.Warn("remote stop rejected",
			zap.String("session_id", stop.SessionID), zap.Error(err))
		return response(oioi.CodeSystemError, err.Error())
	}

	if d.sessions != nil {
		if err := d.sessions.Delete(ctx, stop.SessionID); err != nil {
			d.logger.Warn("failed to drop cached session",
				zap.String("session_id", stop.SessionID), zap.Error(err))
		}
	}

	d.logger.Info("remote session stopped", zap.String("session_id", stop.SessionID))
	return response(oioi.CodeSuccess, "Success.")
}

func response(code oioi.ResultCode, message string) oioi.Response {
	return oioi.Response{Result: oioi.Result{Code: code, Message: message}}
}
