package cpo

import (
	"go.uber.org/zap"

	"chargebridge/internal/models"
)

// UploadObserver is notified synchronously around each batch upload.
type UploadObserver interface {
	OnBatchStarted(kind OperationKind, count int)
	OnBatchCompleted(kind OperationKind, result OperationResult)
}

// CDRObserver is notified about the outcome of each CDR forwarding attempt.
type CDRObserver interface {
	OnCDRForwarded(sessionID string, status SendStatus)
}

// AuthObserver is notified about each authorization decision.
type AuthObserver interface {
	OnAuthorization(token models.AuthToken, decision AuthDecision)
}

// observers fans notifications out to registered listeners. A panicking
// listener is logged and skipped; it never aborts the core operation.
type observers struct {
	logger *zap.Logger
	upload []UploadObserver
	cdr    []CDRObserver
	auth   []AuthObserver
}

func (o *observers) batchStarted(kind OperationKind, count int) {
	for _, obs := range o.upload {
		o.safeCall(func() { obs.OnBatchStarted(kind, count) })
	}
}

func (o *observers) batchCompleted(kind OperationKind, result OperationResult) {
	for _, obs := range o.upload {
		o.safeCall(func() { obs.OnBatchCompleted(kind, result) })
	}
}

func (o *observers) cdrForwarded(sessionID string, status SendStatus) {
	for _, obs := range o.cdr {
		o.safeCall(func() { obs.OnCDRForwarded(sessionID, status) })
	}
}

func (o *observers) authorization(token models.AuthToken, decision AuthDecision) {
	for _, obs := range o.auth {
		o.safeCall(func() { obs.OnAuthorization(token, decision) })
	}
}

func (o *observers) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("observer panicked", zap.Any("panic", r))
		}
	}()
	fn()
}
