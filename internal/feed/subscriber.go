// Package feed subscribes to the roaming network's change feed over a
// websocket and dispatches events into the adapter. The same socket
// carries remote session commands back to the network.
package feed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargebridge/internal/cpo"
	"chargebridge/internal/emp"
	"chargebridge/internal/models"
)

const (
	readLimit     = 1 << 20
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	maxBackoff    = 30 * time.Second
)

// Event type names on the feed.
const (
	eventStationAdded   = "station.added"
	eventStationUpdated = "station.updated"
	eventStationRemoved = "station.removed"
	eventEVSEStatus     = "evse.status"
	eventCDRCompleted   = "cdr.completed"
)

// ErrNotConnected indicates a command was issued while the feed is down.
var ErrNotConnected = errors.New("feed: not connected")

// newSessionID is swapped out in tests.
var newSessionID = func() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "R-" + hex.EncodeToString(buf)
}

// Sink receives decoded feed events. *cpo.Adapter satisfies it.
type Sink interface {
	AddChargingStation(ctx context.Context, st models.ChargingStation) cpo.OperationResult
	UpdateChargingStation(ctx context.Context, st models.ChargingStation) cpo.OperationResult
	RemoveChargingStation(ctx context.Context, st models.ChargingStation) cpo.OperationResult
	UpdateEVSEStatus(ctx context.Context, upd models.EVSEStatusUpdate) cpo.OperationResult
	SendChargeDetailRecord(ctx context.Context, cdr models.ChargeDetailRecord, mode cpo.SendMode) cpo.OperationResult
}

type event struct {
	Type         string                     `json:"type"`
	Station      *models.ChargingStation    `json:"station,omitempty"`
	StatusUpdate *models.EVSEStatusUpdate   `json:"status_update,omitempty"`
	CDR          *models.ChargeDetailRecord `json:"cdr,omitempty"`
}

type command struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id,omitempty"`
	ConnectorID string `json:"connector_id,omitempty"`
	TokenUID    string `json:"token_uid,omitempty"`
	PaymentRef  string `json:"payment_reference,omitempty"`
}

// Subscriber maintains the feed connection with reconnect/backoff and
// dispatches events to the sink. It also implements emp.RemoteControl by
// writing session commands to the same socket.
type Subscriber struct {
	url    string
	sink   Sink
	logger *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSubscriber builds a feed subscriber.
func NewSubscriber(url string, sink Sink, logger *zap.Logger) *Subscriber {
	return &Subscriber{url: url, sink: sink, logger: logger}
}

// Run connects and reads the feed until ctx is canceled, reconnecting
// with doubling backoff after connection loss.
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("feed connection lost, reconnecting",
			zap.Duration("backoff", backoff), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Subscriber) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.setConn(conn)
	defer s.setConn(nil)

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	go s.pingLoop(ctx, conn)

	s.logger.Info("feed connected", zap.String("url", s.url))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.dispatch(ctx, message)
	}
}

func (s *Subscriber) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			current := s.conn
			if current != conn {
				s.mu.Unlock()
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			err := conn.WriteMessage(websocket.PingMessage, []byte("ping"))
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *Subscriber) dispatch(ctx context.Context, raw []byte) {
	var ev event
	if err := json.Unmarshal(raw, &ev); err != nil {
		s.logger.Warn("undecodable feed event", zap.Error(err))
		return
	}

	switch ev.Type {
	case eventStationAdded:
		if ev.Station != nil {
			s.report(ev.Type, s.sink.AddChargingStation(ctx, *ev.Station))
		}
	case eventStationUpdated:
		if ev.Station != nil {
			s.report(ev.Type, s.sink.UpdateChargingStation(ctx, *ev.Station))
		}
	case eventStationRemoved:
		if ev.Station != nil {
			s.report(ev.Type, s.sink.RemoveChargingStation(ctx, *ev.Station))
		}
	case eventEVSEStatus:
		if ev.StatusUpdate != nil {
			s.report(ev.Type, s.sink.UpdateEVSEStatus(ctx, *ev.StatusUpdate))
		}
	case eventCDRCompleted:
		if ev.CDR != nil {
			s.report(ev.Type, s.sink.SendChargeDetailRecord(ctx, *ev.CDR, cpo.SendModeEnqueue))
		}
	default:
		s.logger.Debug("ignoring unknown feed event", zap.String("type", ev.Type))
	}
}

func (s *Subscriber) report(eventType string, result cpo.OperationResult) {
	if result.Result == cpo.Enqueued || result.Result == cpo.Success {
		return
	}
	s.logger.Info("feed event not accepted",
		zap.String("event", eventType),
		zap.String("result", result.Result.String()))
}

// StartSession sends a remote-start command into the roaming network.
// Implements emp.RemoteControl.
func (s *Subscriber) StartSession(ctx context.Context, req emp.StartRequest) (string, error) {
	sessionID := newSessionID()
	err := s.writeCommand(command{
		Type:        "command.session_start",
		SessionID:   sessionID,
		ConnectorID: req.ConnectorID,
		TokenUID:    req.Token.Normalized(),
		PaymentRef:  req.PaymentRef,
	})
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// StopSession sends a remote-stop command into the roaming network.
func (s *Subscriber) StopSession(ctx context.Context, req emp.StopRequest) error {
	return s.writeCommand(command{
		Type:        "command.session_stop",
		SessionID:   req.SessionID,
		ConnectorID: req.ConnectorID,
	})
}

func (s *Subscriber) writeCommand(cmd command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("feed: encode command: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Subscriber) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}
