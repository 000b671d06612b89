package cpo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chargebridge/internal/models"
)

func newTestAdapter(partner PartnerAPI, store CDRStore, mutate func(*Config)) *Adapter {
	cfg := Config{
		PartnerIdentifier: "partner-1",
		// Long intervals: tests drive flushes explicitly.
		DataFlushInterval:   time.Hour,
		StatusFlushInterval: time.Hour,
		CDRFlushInterval:    time.Hour,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewAdapter(cfg, partner, store, zap.NewNop())
}

type fakeCDRStore struct {
	mu      sync.Mutex
	records map[string]SendStatus
}

func newFakeCDRStore() *fakeCDRStore {
	return &fakeCDRStore{records: make(map[string]SendStatus)}
}

func (s *fakeCDRStore) RecordForwarding(_ context.Context, cdr models.ChargeDetailRecord, status SendStatus, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[cdr.SessionID] = status
	return nil
}

func (s *fakeCDRStore) statusOf(sessionID string) (SendStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.records[sessionID]
	return status, ok
}

func TestIdempotentEnqueueUploadsOnce(t *testing.T) {
	partner := newFakePartner()
	adapter := newTestAdapter(partner, nil, nil)
	ctx := context.Background()

	st := testStation("A")
	assert.Equal(t, Enqueued, adapter.AddChargingStation(ctx, st).Result)
	assert.Equal(t, Enqueued, adapter.AddChargingStation(ctx, st).Result)

	result := adapter.FlushChargingStationData(ctx)
	assert.Equal(t, Success, result.Result)
	assert.Equal(t, 1, partner.stationPostCount())
}

func TestStatusHeldBackUntilStationUploaded(t *testing.T) {
	partner := newFakePartner()
	adapter := newTestAdapter(partner, nil, nil)
	ctx := context.Background()

	require.Equal(t, Enqueued, adapter.AddChargingStation(ctx, testStation("C")).Result)
	require.Equal(t, Enqueued, adapter.UpdateEVSEStatus(ctx, models.EVSEStatusUpdate{
		EVSEID: "C*1", StationID: "C", NewStatus: models.EVSEOccupied, Timestamp: time.Now(),
	}).Result)

	// Flushing only the fast-status queue must produce zero uploads.
	result := adapter.FlushEVSEStatusUpdates(ctx)
	assert.Equal(t, NoOperation, result.Result)
	assert.Equal(t, 0, partner.statusPostCount())

	// After the data flush the update promotes and uploads.
	require.Equal(t, Success, adapter.FlushChargingStationData(ctx).Result)
	assert.True(t, adapter.StationKnownToPartner("C"))

	result = adapter.FlushEVSEStatusUpdates(ctx)
	assert.Equal(t, Success, result.Result)
	assert.Equal(t, 1, partner.statusPostCount())
}

func TestEmptyQueueFlushSkipsNetwork(t *testing.T) {
	partner := newFakePartner()
	adapter := newTestAdapter(partner, nil, nil)
	ctx := context.Background()

	assert.Equal(t, NoOperation, adapter.FlushChargingStationData(ctx).Result)
	assert.Equal(t, NoOperation, adapter.FlushEVSEStatusUpdates(ctx).Result)
	assert.Equal(t, NoOperation, adapter.FlushChargeDetailRecords(ctx).Result)

	assert.Equal(t, 0, partner.stationPostCount())
	assert.Equal(t, 0, partner.statusPostCount())
	assert.Equal(t, 0, partner.sessionPostCount())
}

func TestAdminDownShortCircuits(t *testing.T) {
	partner := newFakePartner()
	adapter := newTestAdapter(partner, nil, func(cfg *Config) {
		cfg.DisablePushData = true
	})
	ctx := context.Background()

	result := adapter.AddChargingStation(ctx, testStation("A"))
	assert.Equal(t, AdminDown, result.Result)
	assert.Equal(t, AdminDown, adapter.FlushChargingStationData(ctx).Result)
	assert.Equal(t, 0, partner.stationPostCount())

	// Re-enabling at runtime restores the path.
	adapter.SetPushDataEnabled(true)
	assert.Equal(t, Enqueued, adapter.AddChargingStation(ctx, testStation("A")).Result)
}

func TestAdminDownStatusAndCDR(t *testing.T) {
	partner := newFakePartner()
	adapter := newTestAdapter(partner, nil, func(cfg *Config) {
		cfg.DisablePushStatus = true
		cfg.DisableSendCDRs = true
	})
	ctx := context.Background()

	upd := models.EVSEStatusUpdate{EVSEID: "A*1", StationID: "A", NewStatus: models.EVSEOccupied, Timestamp: time.Now()}
	assert.Equal(t, AdminDown, adapter.UpdateEVSEStatus(ctx, upd).Result)

	cdr := models.ChargeDetailRecord{SessionID: "s1", EVSEID: "A*1"}
	assert.Equal(t, AdminDown, adapter.SendChargeDetailRecord(ctx, cdr, SendModeDirect).Result)
	assert.Equal(t, 0, partner.sessionPostCount())
}

func TestTimerDrivenFlush(t *testing.T) {
	partner := newFakePartner()
	adapter := newTestAdapter(partner, nil, func(cfg *Config) {
		cfg.DataFlushInterval = 20 * time.Millisecond
	})
	defer adapter.Stop()
	ctx := context.Background()

	require.Equal(t, Enqueued, adapter.AddChargingStation(ctx, testStation("A")).Result)

	waitFor(t, time.Second, func() bool { return partner.stationPostCount() == 1 })
	waitFor(t, time.Second, func() bool { return adapter.dataTimer.currentState() == timerIdle })

	// No further fire without new work.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, partner.stationPostCount())
}

func TestEnqueueTimesOutWhenLockHeld(t *testing.T) {
	partner := newFakePartner()
	adapter := newTestAdapter(partner, nil, nil)

	require.NoError(t, adapter.queue.stationMu.lock(context.Background()))
	defer adapter.queue.stationMu.unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := adapter.AddChargingStation(ctx, testStation("A"))
	assert.Equal(t, Timeout, result.Result)
}

func TestCDREnqueueAndFlush(t *testing.T) {
	partner := newFakePartner()
	store := newFakeCDRStore()
	adapter := newTestAdapter(partner, store, nil)
	ctx := context.Background()

	cdr := models.ChargeDetailRecord{
		SessionID: "sess-1",
		EVSEID:    "A*1",
		StationID: "A",
		Token:     models.AuthToken{UID: "04ab9f"},
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now(),
		EnergyKWh: 7.2,
	}
	assert.Equal(t, Enqueued, adapter.SendChargeDetailRecord(ctx, cdr, SendModeEnqueue).Result)
	assert.Equal(t, 0, partner.sessionPostCount())

	result := adapter.FlushChargeDetailRecords(ctx)
	assert.Equal(t, Success, result.Result)
	assert.Equal(t, 1, partner.sessionPostCount())

	status, ok := store.statusOf("sess-1")
	require.True(t, ok)
	assert.Equal(t, SendSuccess, status)
}

func TestCDRDirectSendRecordsFailure(t *testing.T) {
	partner := newFakePartner()
	partner.rejectSessions = true
	store := newFakeCDRStore()
	adapter := newTestAdapter(partner, store, nil)
	ctx := context.Background()

	cdr := models.ChargeDetailRecord{
		SessionID: "sess-2",
		EVSEID:    "A*1",
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now(),
	}
	result := adapter.SendChargeDetailRecord(ctx, cdr, SendModeDirect)
	assert.Equal(t, Error, result.Result)

	status, ok := store.statusOf("sess-2")
	require.True(t, ok)
	assert.Equal(t, SendError, status)

	// A failed attempt is not retried by a later flush.
	assert.Equal(t, NoOperation, adapter.FlushChargeDetailRecords(ctx).Result)
	assert.Equal(t, 1, partner.sessionPostCount())
}

func TestCDRFilter(t *testing.T) {
	partner := newFakePartner()
	store := newFakeCDRStore()
	adapter := newTestAdapter(partner, store, func(cfg *Config) {
		cfg.CDRFilter = func(cdr models.ChargeDetailRecord) bool {
			return cdr.EnergyKWh >= 0.1
		}
	})
	ctx := context.Background()

	tiny := models.ChargeDetailRecord{SessionID: "sess-3", EVSEID: "A*1", EnergyKWh: 0.01}
	result := adapter.SendChargeDetailRecord(ctx, tiny, SendModeDirect)
	assert.Equal(t, NoOperation, result.Result)
	assert.Equal(t, 0, partner.sessionPostCount())

	status, ok := store.statusOf("sess-3")
	require.True(t, ok)
	assert.Equal(t, SendFiltered, status)
}

type countingObserver struct {
	mu        sync.Mutex
	started   int
	completed int
	last      OperationResult
}

func (o *countingObserver) OnBatchStarted(OperationKind, int) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *countingObserver) OnBatchCompleted(_ OperationKind, result OperationResult) {
	o.mu.Lock()
	o.completed++
	o.last = result
	o.mu.Unlock()
}

type panickyObserver struct{}

func (panickyObserver) OnBatchStarted(OperationKind, int) { panic("boom") }

func (panickyObserver) OnBatchCompleted(OperationKind, OperationResult) { panic("boom") }

func TestObserversNotifiedAndPanicsContained(t *testing.T) {
	partner := newFakePartner()
	adapter := newTestAdapter(partner, nil, nil)
	counting := &countingObserver{}
	adapter.RegisterUploadObserver(panickyObserver{})
	adapter.RegisterUploadObserver(counting)
	ctx := context.Background()

	require.Equal(t, Enqueued, adapter.AddChargingStation(ctx, testStation("A")).Result)
	result := adapter.FlushChargingStationData(ctx)
	require.Equal(t, Success, result.Result)

	counting.mu.Lock()
	defer counting.mu.Unlock()
	assert.Equal(t, 1, counting.started)
	assert.Equal(t, 1, counting.completed)
	assert.Equal(t, Success, counting.last.Result)
}

func TestRemoveForgetsUploadedStation(t *testing.T) {
	partner := newFakePartner()
	adapter := newTestAdapter(partner, nil, nil)
	ctx := context.Background()

	st := testStation("A")
	require.Equal(t, Enqueued, adapter.AddChargingStation(ctx, st).Result)
	require.Equal(t, Success, adapter.FlushChargingStationData(ctx).Result)
	require.True(t, adapter.StationKnownToPartner("A"))

	require.Equal(t, Enqueued, adapter.RemoveChargingStation(ctx, st).Result)
	require.Equal(t, Success, adapter.FlushChargingStationData(ctx).Result)
	assert.False(t, adapter.StationKnownToPartner("A"))
}
