package cpo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"chargebridge/internal/models"
)

const (
	defaultDataFlushInterval    = 30 * time.Second
	defaultStatusFlushInterval  = 15 * time.Second
	defaultCDRFlushInterval     = 60 * time.Second
	defaultMaxConcurrentUploads = 4
	flushCycleTimeout           = 2 * time.Minute
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// Config tunes the adapter. Zero values fall back to the defaults above;
// capability flags default to enabled.
type Config struct {
	PartnerIdentifier    string
	DataFlushInterval    time.Duration
	StatusFlushInterval  time.Duration
	CDRFlushInterval     time.Duration
	MaxConcurrentUploads int

	DisablePushData       bool
	DisablePushStatus     bool
	DisableAuthentication bool
	DisableSendCDRs       bool

	// CDRFilter, when set, decides which records are forwarded at all.
	// Returning false classifies the record as filtered, not failed.
	CDRFilter func(models.ChargeDetailRecord) bool
}

// CDRStore records the forwarding outcome of charge detail records.
// Implementations must tolerate repeated writes for the same session.
type CDRStore interface {
	RecordForwarding(ctx context.Context, cdr models.ChargeDetailRecord, status SendStatus, diagnostic string) error
}

// Adapter is the CPO-side bridge between the roaming network and the
// partner API. It owns every queue and timer; collaborators interact only
// through its public operations, which are internally synchronized.
type Adapter struct {
	cfg      Config
	uploader *batchUploader
	queue    *changeQueue
	logger   *zap.Logger

	dataTimer   *flushTimer
	statusTimer *flushTimer
	cdrTimer    *flushTimer

	pushData atomic.Bool
	pushStat atomic.Bool
	auth     atomic.Bool
	sendCDRs atomic.Bool

	// Stations the partner already knows about; delayed status updates
	// promote once their station appears here.
	uploadedMu sync.Mutex
	uploaded   map[string]struct{}

	cdrStore CDRStore
	obs      observers
}

// NewAdapter wires the queueing, flush, and upload engine. cdrStore may
// be nil, in which case forwarding outcomes are only logged and reported
// to observers.
func NewAdapter(cfg Config, api PartnerAPI, cdrStore CDRStore, logger *zap.Logger) *Adapter {
	if cfg.DataFlushInterval <= 0 {
		cfg.DataFlushInterval = defaultDataFlushInterval
	}
	if cfg.StatusFlushInterval <= 0 {
		cfg.StatusFlushInterval = defaultStatusFlushInterval
	}
	if cfg.CDRFlushInterval <= 0 {
		cfg.CDRFlushInterval = defaultCDRFlushInterval
	}

	a := &Adapter{
		cfg:      cfg,
		uploader: newBatchUploader(api, cfg.PartnerIdentifier, cfg.MaxConcurrentUploads, logger),
		queue:    newChangeQueue(),
		logger:   logger,
		uploaded: make(map[string]struct{}),
		cdrStore: cdrStore,
		obs:      observers{logger: logger},
	}
	a.pushData.Store(!cfg.DisablePushData)
	a.pushStat.Store(!cfg.DisablePushStatus)
	a.auth.Store(!cfg.DisableAuthentication)
	a.sendCDRs.Store(!cfg.DisableSendCDRs)

	a.dataTimer = newFlushTimer(cfg.DataFlushInterval, a.fireDataFlush)
	a.statusTimer = newFlushTimer(cfg.StatusFlushInterval, a.fireStatusFlush)
	a.cdrTimer = newFlushTimer(cfg.CDRFlushInterval, a.fireCDRFlush)
	return a
}

// RegisterUploadObserver adds a listener for batch lifecycle events.
// Not safe for concurrent use with running operations; register during
// wiring.
func (a *Adapter) RegisterUploadObserver(obs UploadObserver) {
	a.obs.upload = append(a.obs.upload, obs)
}

// RegisterCDRObserver adds a listener for CDR forwarding outcomes.
func (a *Adapter) RegisterCDRObserver(obs CDRObserver) {
	a.obs.cdr = append(a.obs.cdr, obs)
}

// RegisterAuthObserver adds a listener for authorization decisions.
func (a *Adapter) RegisterAuthObserver(obs AuthObserver) {
	a.obs.auth = append(a.obs.auth, obs)
}

// SetPushDataEnabled toggles the station-data capability at runtime.
func (a *Adapter) SetPushDataEnabled(enabled bool) { a.pushData.Store(enabled) }

// SetPushStatusEnabled toggles the status capability at runtime.
func (a *Adapter) SetPushStatusEnabled(enabled bool) { a.pushStat.Store(enabled) }

// SetAuthenticationEnabled toggles the authorization capability at runtime.
func (a *Adapter) SetAuthenticationEnabled(enabled bool) { a.auth.Store(enabled) }

// SetSendCDRsEnabled toggles CDR forwarding at runtime.
func (a *Adapter) SetSendCDRsEnabled(enabled bool) { a.sendCDRs.Store(enabled) }

// AddChargingStation queues a station for publication to the partner.
func (a *Adapter) AddChargingStation(ctx context.Context, st models.ChargingStation) OperationResult {
	return a.enqueueStationChange(ctx, st, OpStationAdd)
}

// UpdateChargingStation queues a station update.
func (a *Adapter) UpdateChargingStation(ctx context.Context, st models.ChargingStation) OperationResult {
	return a.enqueueStationChange(ctx, st, OpStationUpdate)
}

// RemoveChargingStation queues a station removal. The partner has no
// delete operation, so removal publishes the station with all connectors
// OFFLINE.
func (a *Adapter) RemoveChargingStation(ctx context.Context, st models.ChargingStation) OperationResult {
	return a.enqueueStationChange(ctx, st, OpStationRemove)
}

func (a *Adapter) enqueueStationChange(ctx context.Context, st models.ChargingStation, kind OperationKind) OperationResult {
	if !a.pushData.Load() {
		return newResult(kind, AdminDown)
	}

	if err := a.queue.enqueueStation(ctx, st, kind); err != nil {
		a.logger.Warn("station enqueue timed out",
			zap.String("station_id", st.ID), zap.Error(err))
		return newResult(kind, Timeout)
	}
	a.dataTimer.notify()

	result := newResult(kind, Enqueued)
	result.Successful = append(result.Successful, ItemOutcome{ID: st.ID})
	return result
}

// UpdateEVSEStatus queues a connector status change. Updates for stations
// the partner does not know yet are held back until the station record
// has been uploaded.
func (a *Adapter) UpdateEVSEStatus(ctx context.Context, upd models.EVSEStatusUpdate) OperationResult {
	if !a.pushStat.Load() {
		return newResult(OpStatusUpdate, AdminDown)
	}

	delayed, err := a.queue.enqueueStatus(ctx, upd)
	if err != nil {
		a.logger.Warn("status enqueue timed out",
			zap.String("evse_id", upd.EVSEID), zap.Error(err))
		return newResult(OpStatusUpdate, Timeout)
	}
	if !delayed {
		a.statusTimer.notify()
	}

	result := newResult(OpStatusUpdate, Enqueued)
	result.Successful = append(result.Successful, ItemOutcome{ID: upd.EVSEID})
	return result
}

// FlushChargingStationData drains and uploads the station-data queue now,
// without waiting for the timer.
func (a *Adapter) FlushChargingStationData(ctx context.Context) OperationResult {
	if !a.pushData.Load() {
		return newResult(OpStationAdd, AdminDown)
	}
	return a.flushData(ctx)
}

// FlushEVSEStatusUpdates drains and uploads the fast-status queue now.
func (a *Adapter) FlushEVSEStatusUpdates(ctx context.Context) OperationResult {
	if !a.pushStat.Load() {
		return newResult(OpStatusUpdate, AdminDown)
	}
	return a.flushStatus(ctx)
}

// Stop disables all flush timers. In-flight flush cycles finish; queued
// work that never flushed is lost by design (volatile queues).
func (a *Adapter) Stop() {
	a.dataTimer.stop()
	a.statusTimer.stop()
	a.cdrTimer.stop()
}

func (a *Adapter) fireDataFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushCycleTimeout)
	defer cancel()
	a.flushData(ctx)
}

func (a *Adapter) fireStatusFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushCycleTimeout)
	defer cancel()
	a.flushStatus(ctx)
}

func (a *Adapter) flushData(ctx context.Context) OperationResult {
	snapshot, err := a.queue.drainStations(ctx)
	if err != nil {
		return newResult(OpStationAdd, Timeout)
	}
	if snapshot.empty() {
		// Skip guard: no network activity on an empty queue.
		return newResult(OpStationAdd, NoOperation)
	}

	a.obs.batchStarted(OpStationAdd, snapshot.size())
	result := a.uploader.uploadStations(ctx, snapshot)
	a.obs.batchCompleted(OpStationAdd, result)

	a.markUploaded(ctx, snapshot, result)
	return result
}

// markUploaded records which stations the partner now knows and promotes
// delayed status updates for them.
func (a *Adapter) markUploaded(ctx context.Context, snapshot stationSnapshot, result OperationResult) {
	justUploaded := make(map[string]struct{}, len(result.Successful))

	a.uploadedMu.Lock()
	for _, item := range result.Successful {
		if _, removed := snapshot.toRemove[item.ID]; removed {
			delete(a.uploaded, item.ID)
			continue
		}
		a.uploaded[item.ID] = struct{}{}
		justUploaded[item.ID] = struct{}{}
	}
	a.uploadedMu.Unlock()

	if len(justUploaded) == 0 {
		return
	}
	promoted, err := a.queue.promoteDelayed(ctx, justUploaded)
	if err != nil {
		a.logger.Warn("promoting delayed status updates timed out", zap.Error(err))
		return
	}
	if promoted > 0 {
		a.statusTimer.notify()
	}
}

func (a *Adapter) flushStatus(ctx context.Context) OperationResult {
	updates, err := a.queue.drainStatus(ctx)
	if err != nil {
		return newResult(OpStatusUpdate, Timeout)
	}
	if len(updates) == 0 {
		return newResult(OpStatusUpdate, NoOperation)
	}

	a.obs.batchStarted(OpStatusUpdate, len(updates))
	result := a.uploader.uploadStatusUpdates(ctx, updates)
	a.obs.batchCompleted(OpStatusUpdate, result)
	return result
}

// StationKnownToPartner reports whether a station upload has completed,
// which is what gates delayed status updates.
func (a *Adapter) StationKnownToPartner(stationID string) bool {
	a.uploadedMu.Lock()
	defer a.uploadedMu.Unlock()
	_, ok := a.uploaded[stationID]
	return ok
}
