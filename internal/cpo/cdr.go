package cpo

import (
	"context"

	"go.uber.org/zap"

	"chargebridge/internal/models"
)

// SendMode selects how a charge detail record reaches the partner.
type SendMode int

const (
	// SendModeEnqueue defers the record to the next CDR flush cycle.
	SendModeEnqueue SendMode = iota
	// SendModeDirect forwards the record immediately.
	SendModeDirect
)

// SendChargeDetailRecord forwards one completed session, either queued
// for the next flush cycle or immediately. A record dropped by the
// configured filter counts as filtered, not as a failure.
func (a *Adapter) SendChargeDetailRecord(ctx context.Context, cdr models.ChargeDetailRecord, mode SendMode) OperationResult {
	if !a.sendCDRs.Load() {
		return newResult(OpCDR, AdminDown)
	}

	if a.cfg.CDRFilter != nil && !a.cfg.CDRFilter(cdr) {
		a.recordCDROutcome(ctx, cdr, SendFiltered, "dropped by filter")
		result := newResult(OpCDR, NoOperation)
		result.Warnings = append(result.Warnings, "cdr "+cdr.SessionID+" dropped by filter")
		return result
	}

	if mode == SendModeDirect {
		return a.forwardCDR(ctx, cdr)
	}

	if err := a.queue.enqueueCDR(ctx, cdr); err != nil {
		a.logger.Warn("cdr enqueue timed out",
			zap.String("session_id", cdr.SessionID), zap.Error(err))
		return newResult(OpCDR, Timeout)
	}
	a.cdrTimer.notify()

	result := newResult(OpCDR, Enqueued)
	result.Successful = append(result.Successful, ItemOutcome{ID: cdr.SessionID})
	return result
}

// FlushChargeDetailRecords drains and forwards the CDR queue now.
func (a *Adapter) FlushChargeDetailRecords(ctx context.Context) OperationResult {
	if !a.sendCDRs.Load() {
		return newResult(OpCDR, AdminDown)
	}
	return a.flushCDRs(ctx)
}

func (a *Adapter) fireCDRFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushCycleTimeout)
	defer cancel()
	a.flushCDRs(ctx)
}

// flushCDRs forwards every queued record once. Records are removed from
// the queue when forwarding is attempted; a failed attempt is reported,
// not retried, until a later enqueue or explicit flush.
func (a *Adapter) flushCDRs(ctx context.Context) OperationResult {
	cdrs, err := a.queue.drainCDRs(ctx)
	if err != nil {
		return newResult(OpCDR, Timeout)
	}
	if len(cdrs) == 0 {
		return newResult(OpCDR, NoOperation)
	}

	a.obs.batchStarted(OpCDR, len(cdrs))
	result := newResult(OpCDR, NoOperation)
	begin := timeNow()
	for _, cdr := range cdrs {
		single := a.forwardCDR(ctx, cdr)
		result.Successful = append(result.Successful, single.Successful...)
		result.Rejected = append(result.Rejected, single.Rejected...)
		result.Warnings = append(result.Warnings, single.Warnings...)
	}
	result.finalize(begin)
	a.obs.batchCompleted(OpCDR, result)
	return result
}

// forwardCDR performs one upload attempt and records the outcome in the
// session store.
func (a *Adapter) forwardCDR(ctx context.Context, cdr models.ChargeDetailRecord) OperationResult {
	begin := timeNow()
	status, diagnostic := a.uploader.uploadSession(ctx, cdr)

	a.recordCDROutcome(ctx, cdr, status, diagnostic)

	result := newResult(OpCDR, NoOperation)
	outcome := ItemOutcome{ID: cdr.SessionID, Diagnostic: diagnostic}
	if status == SendSuccess {
		result.Successful = append(result.Successful, outcome)
	} else {
		result.Rejected = append(result.Rejected, outcome)
	}
	result.finalize(begin)
	return result
}

func (a *Adapter) recordCDROutcome(ctx context.Context, cdr models.ChargeDetailRecord, status SendStatus, diagnostic string) {
	a.obs.cdrForwarded(cdr.SessionID, status)

	if status != SendSuccess {
		a.logger.Info("cdr not forwarded",
			zap.String("session_id", cdr.SessionID),
			zap.String("status", status.String()),
			zap.String("diagnostic", diagnostic))
	}
	if a.cdrStore == nil {
		return
	}
	if err := a.cdrStore.RecordForwarding(ctx, cdr, status, diagnostic); err != nil {
		a.logger.Warn("failed to record cdr forwarding outcome",
			zap.String("session_id", cdr.SessionID), zap.Error(err))
	}
}
