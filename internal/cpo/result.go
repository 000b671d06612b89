// Package cpo implements the charge-point-operator side of the bridge:
// it consumes roaming-network change events, queues them, and pushes
// them to the partner API in debounced, bounded-concurrency batches.
package cpo

import "time"

// OperationKind tags which queue an operation or result belongs to.
type OperationKind int

const (
	OpStationAdd OperationKind = iota
	OpStationUpdate
	OpStationRemove
	OpStatusUpdate
	OpCDR
)

// String returns the kind name used in logs.
func (k OperationKind) String() string {
	switch k {
	case OpStationAdd:
		return "station-add"
	case OpStationUpdate:
		return "station-update"
	case OpStationRemove:
		return "station-remove"
	case OpStatusUpdate:
		return "status-update"
	case OpCDR:
		return "cdr"
	default:
		return "unknown"
	}
}

// Result is the aggregate outcome of one public adapter operation.
type Result int

const (
	// NoOperation means there was nothing to do (empty queue, empty input).
	NoOperation Result = iota
	// Enqueued means the work was accepted for a later flush cycle.
	Enqueued
	// Success means every item of the batch was accepted by the partner.
	Success
	// PartialSuccess means some items succeeded and some were rejected.
	PartialSuccess
	// Error means no item of the batch was accepted.
	Error
	// AdminDown means the capability is administratively disabled.
	AdminDown
	// Timeout means the queue lock could not be acquired in time.
	Timeout
)

// String returns the result name used in logs.
func (r Result) String() string {
	switch r {
	case NoOperation:
		return "no-operation"
	case Enqueued:
		return "enqueued"
	case Success:
		return "success"
	case PartialSuccess:
		return "partial-success"
	case Error:
		return "error"
	case AdminDown:
		return "admin-down"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ItemOutcome is the per-item record inside a batch result.
type ItemOutcome struct {
	ID         string
	Diagnostic string
}

// OperationResult aggregates the per-item outcomes of one batch. For all
// batches, len(Successful)+len(Rejected) equals the number of input items
// that survived the mapping filter; mapping casualties appear in Warnings.
type OperationResult struct {
	Kind       OperationKind
	Result     Result
	Successful []ItemOutcome
	Rejected   []ItemOutcome
	Warnings   []string
	Duration   time.Duration
}

func newResult(kind OperationKind, result Result) OperationResult {
	return OperationResult{Kind: kind, Result: result}
}

// finalize computes the aggregate Result from the per-item lists.
func (r *OperationResult) finalize(started time.Time) {
	r.Duration = time.Since(started)
	switch {
	case len(r.Successful) == 0 && len(r.Rejected) == 0:
		r.Result = NoOperation
	case len(r.Rejected) == 0:
		r.Result = Success
	case len(r.Successful) == 0:
		r.Result = Error
	default:
		r.Result = PartialSuccess
	}
}

// SendStatus classifies the outcome of forwarding one charge detail record.
type SendStatus int

const (
	SendSuccess SendStatus = iota
	SendError
	SendCouldNotConvertFormat
	SendFiltered
	SendAdminDown
)

// String returns the status name stored alongside forwarding outcomes.
func (s SendStatus) String() string {
	switch s {
	case SendSuccess:
		return "success"
	case SendError:
		return "error"
	case SendCouldNotConvertFormat:
		return "could-not-convert-format"
	case SendFiltered:
		return "filtered"
	case SendAdminDown:
		return "admin-down"
	default:
		return "unknown"
	}
}
