package cpo

import (
	"context"

	"chargebridge/internal/models"
)

// ctxMutex is a mutual-exclusion lock whose acquire respects context
// cancellation, so a caller waiting on a busy queue surfaces a Timeout
// result instead of blocking forever.
type ctxMutex struct {
	ch chan struct{}
}

func newCtxMutex() *ctxMutex {
	return &ctxMutex{ch: make(chan struct{}, 1)}
}

func (m *ctxMutex) lock(ctx context.Context) error {
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *ctxMutex) unlock() {
	<-m.ch
}

// stationSnapshot is the drained content of the station-data queue. The
// drainer owns it exclusively.
type stationSnapshot struct {
	toAdd    map[string]models.ChargingStation
	toUpdate map[string]models.ChargingStation
	toRemove map[string]models.ChargingStation
}

func (s stationSnapshot) empty() bool {
	return len(s.toAdd) == 0 && len(s.toUpdate) == 0 && len(s.toRemove) == 0
}

func (s stationSnapshot) size() int {
	return len(s.toAdd) + len(s.toUpdate) + len(s.toRemove)
}

// changeQueue holds all pending work. The three queue groups (station
// data, connector status, CDRs) carry independent locks so a flush of one
// kind never blocks another.
type changeQueue struct {
	stationMu *ctxMutex
	toAdd     map[string]models.ChargingStation
	toUpdate  map[string]models.ChargingStation
	toRemove  map[string]models.ChargingStation

	statusMu *ctxMutex
	fast     []models.EVSEStatusUpdate
	delayed  []models.EVSEStatusUpdate

	cdrMu *ctxMutex
	cdrs  []models.ChargeDetailRecord
}

func newChangeQueue() *changeQueue {
	return &changeQueue{
		stationMu: newCtxMutex(),
		toAdd:     make(map[string]models.ChargingStation),
		toUpdate:  make(map[string]models.ChargingStation),
		toRemove:  make(map[string]models.ChargingStation),
		statusMu:  newCtxMutex(),
		cdrMu:     newCtxMutex(),
	}
}

// enqueueStation records a pending add/update/remove. Map insertion makes
// the operation idempotent per station id and kind: a second enqueue of
// the same station for the same kind only refreshes the stored value.
func (q *changeQueue) enqueueStation(ctx context.Context, st models.ChargingStation, kind OperationKind) error {
	if err := q.stationMu.lock(ctx); err != nil {
		return err
	}
	defer q.stationMu.unlock()

	switch kind {
	case OpStationAdd:
		q.toAdd[st.ID] = st
	case OpStationUpdate:
		// An update for a station whose add has not flushed yet folds
		// into the pending add.
		if _, pending := q.toAdd[st.ID]; pending {
			q.toAdd[st.ID] = st
		} else {
			q.toUpdate[st.ID] = st
		}
	case OpStationRemove:
		delete(q.toAdd, st.ID)
		delete(q.toUpdate, st.ID)
		q.toRemove[st.ID] = st
	}
	return nil
}

// enqueueStatus appends a status update to the fast queue, unless the
// owning station still has a pending add, in which case the update goes
// to the delayed queue: a station's first status snapshot must not reach
// the partner before its descriptive record does.
func (q *changeQueue) enqueueStatus(ctx context.Context, upd models.EVSEStatusUpdate) (delayed bool, err error) {
	if err := q.statusMu.lock(ctx); err != nil {
		return false, err
	}
	defer q.statusMu.unlock()

	pendingAdd, err := q.hasPendingAdd(ctx, upd.StationID)
	if err != nil {
		return false, err
	}
	if pendingAdd {
		q.delayed = append(q.delayed, upd)
		return true, nil
	}
	q.fast = append(q.fast, upd)
	return false, nil
}

func (q *changeQueue) hasPendingAdd(ctx context.Context, stationID string) (bool, error) {
	if err := q.stationMu.lock(ctx); err != nil {
		return false, err
	}
	defer q.stationMu.unlock()
	_, ok := q.toAdd[stationID]
	return ok, nil
}

// enqueueCDR appends a charge detail record for a later flush cycle.
func (q *changeQueue) enqueueCDR(ctx context.Context, cdr models.ChargeDetailRecord) error {
	if err := q.cdrMu.lock(ctx); err != nil {
		return err
	}
	defer q.cdrMu.unlock()
	q.cdrs = append(q.cdrs, cdr)
	return nil
}

// drainStations swaps the station sets for fresh empty ones and returns
// the prior contents.
func (q *changeQueue) drainStations(ctx context.Context) (stationSnapshot, error) {
	if err := q.stationMu.lock(ctx); err != nil {
		return stationSnapshot{}, err
	}
	defer q.stationMu.unlock()

	snapshot := stationSnapshot{toAdd: q.toAdd, toUpdate: q.toUpdate, toRemove: q.toRemove}
	q.toAdd = make(map[string]models.ChargingStation)
	q.toUpdate = make(map[string]models.ChargingStation)
	q.toRemove = make(map[string]models.ChargingStation)
	return snapshot, nil
}

// drainStatus swaps out the fast queue. Updates whose station meanwhile
// acquired a pending add are moved to the delayed queue instead of being
// returned; the ordering invariant is re-checked at every flush cycle.
func (q *changeQueue) drainStatus(ctx context.Context) ([]models.EVSEStatusUpdate, error) {
	if err := q.statusMu.lock(ctx); err != nil {
		return nil, err
	}
	defer q.statusMu.unlock()

	ready := make([]models.EVSEStatusUpdate, 0, len(q.fast))
	for _, upd := range q.fast {
		pendingAdd, err := q.hasPendingAdd(ctx, upd.StationID)
		if err != nil {
			return nil, err
		}
		if pendingAdd {
			q.delayed = append(q.delayed, upd)
			continue
		}
		ready = append(ready, upd)
	}
	q.fast = nil
	return ready, nil
}

// drainCDRs swaps out the CDR queue.
func (q *changeQueue) drainCDRs(ctx context.Context) ([]models.ChargeDetailRecord, error) {
	if err := q.cdrMu.lock(ctx); err != nil {
		return nil, err
	}
	defer q.cdrMu.unlock()

	cdrs := q.cdrs
	q.cdrs = nil
	return cdrs, nil
}

// promoteDelayed moves delayed updates whose station is now known to the
// partner back into the fast queue. Returns how many were promoted.
func (q *changeQueue) promoteDelayed(ctx context.Context, uploaded map[string]struct{}) (int, error) {
	if err := q.statusMu.lock(ctx); err != nil {
		return 0, err
	}
	defer q.statusMu.unlock()

	var kept []models.EVSEStatusUpdate
	promoted := 0
	for _, upd := range q.delayed {
		if _, ok := uploaded[upd.StationID]; ok {
			q.fast = append(q.fast, upd)
			promoted++
			continue
		}
		kept = append(kept, upd)
	}
	q.delayed = kept
	return promoted, nil
}

// Sizes below are read under lock and exist for flush accounting and tests.

func (q *changeQueue) stationQueueSize(ctx context.Context) (int, error) {
	if err := q.stationMu.lock(ctx); err != nil {
		return 0, err
	}
	defer q.stationMu.unlock()
	return len(q.toAdd) + len(q.toUpdate) + len(q.toRemove), nil
}

func (q *changeQueue) statusQueueSizes(ctx context.Context) (fast, delayed int, err error) {
	if err := q.statusMu.lock(ctx); err != nil {
		return 0, 0, err
	}
	defer q.statusMu.unlock()
	return len(q.fast), len(q.delayed), nil
}

func (q *changeQueue) cdrQueueSize(ctx context.Context) (int, error) {
	if err := q.cdrMu.lock(ctx); err != nil {
		return 0, err
	}
	defer q.cdrMu.unlock()
	return len(q.cdrs), nil
}
