package cpo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"chargebridge/internal/models"
	"chargebridge/internal/oioi"
)

// PartnerAPI is the outbound capability the uploader needs. *oioi.Client
// satisfies it; tests substitute fakes.
type PartnerAPI interface {
	PostStation(ctx context.Context, post oioi.StationPost) (*oioi.Response, error)
	PostConnectorStatus(ctx context.Context, post oioi.ConnectorPostStatus) (*oioi.Response, error)
	PostSession(ctx context.Context, post oioi.SessionPost) (*oioi.Response, error)
	VerifyRFID(ctx context.Context, verify oioi.RFIDVerify) (*oioi.Response, error)
}

// batchUploader converts drained queue snapshots into partner uploads.
// Per-item uploads within one batch run concurrently up to maxConcurrent;
// a failing item never aborts its siblings.
type batchUploader struct {
	api           PartnerAPI
	partnerID     string
	maxConcurrent int64
	logger        *zap.Logger
}

func newBatchUploader(api PartnerAPI, partnerID string, maxConcurrent int, logger *zap.Logger) *batchUploader {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentUploads
	}
	return &batchUploader{
		api:           api,
		partnerID:     partnerID,
		maxConcurrent: int64(maxConcurrent),
		logger:        logger,
	}
}

// uploadItem is one unit of work inside a batch: an item id plus the
// partner call that publishes it.
type uploadItem struct {
	id   string
	post func(ctx context.Context) (*oioi.Response, error)
}

// fanOut runs the items concurrently, bounded by a counting semaphore,
// and appends per-item outcomes to result. Outcome ordering follows
// completion order, not input order; every item lands in exactly one of
// Successful or Rejected. Cancellation mid-batch rejects the items that
// had not started yet and keeps the outcomes already collected.
func (u *batchUploader) fanOut(ctx context.Context, items []uploadItem, result *OperationResult) {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(u.maxConcurrent)
	)
	for _, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Rejected = append(result.Rejected, ItemOutcome{ID: item.id, Diagnostic: err.Error()})
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(item uploadItem) {
			defer wg.Done()
			defer sem.Release(1)

			outcome := ItemOutcome{ID: item.id}
			resp, err := item.post(ctx)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				outcome.Diagnostic = err.Error()
				result.Rejected = append(result.Rejected, outcome)
			case !resp.Success():
				outcome.Diagnostic = resp.Err().Error()
				result.Rejected = append(result.Rejected, outcome)
			default:
				result.Successful = append(result.Successful, outcome)
			}
		}(item)
	}
	wg.Wait()
}

type stationJob struct {
	station models.ChargingStation
	kind    OperationKind
}

// uploadStations maps every station of the snapshot to a wire DTO and
// posts them with bounded fan-out. Mapping failures become warnings and
// exclude the item; transport and partner rejections become rejected
// items.
func (u *batchUploader) uploadStations(ctx context.Context, snapshot stationSnapshot) OperationResult {
	started := time.Now()
	result := newResult(OpStationAdd, NoOperation)

	jobs := make([]stationJob, 0, snapshot.size())
	for _, st := range snapshot.toAdd {
		jobs = append(jobs, stationJob{station: st, kind: OpStationAdd})
	}
	for _, st := range snapshot.toUpdate {
		jobs = append(jobs, stationJob{station: st, kind: OpStationUpdate})
	}
	for _, st := range snapshot.toRemove {
		jobs = append(jobs, stationJob{station: st, kind: OpStationRemove})
	}

	items := make([]uploadItem, 0, len(jobs))
	for _, job := range jobs {
		wire, err := stationToWire(job.station, job.kind == OpStationRemove)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("station %s: %v", job.station.ID, err))
			continue
		}
		post := oioi.StationPost{Station: wire, PartnerIdentifier: u.partnerID}
		items = append(items, uploadItem{
			id: job.station.ID,
			post: func(ctx context.Context) (*oioi.Response, error) {
				return u.api.PostStation(ctx, post)
			},
		})
	}

	u.fanOut(ctx, items, &result)

	result.finalize(started)
	u.logger.Debug("station batch finished",
		zap.Int("input", len(jobs)),
		zap.Int("successful", len(result.Successful)),
		zap.Int("rejected", len(result.Rejected)),
		zap.Duration("duration", result.Duration))
	return result
}

// coalesceStatus keeps only the most recent update per EVSE; within one
// flush window older snapshots of the same connector are dropped silently
// as a bandwidth optimization.
func coalesceStatus(updates []models.EVSEStatusUpdate) []models.EVSEStatusUpdate {
	latest := make(map[string]models.EVSEStatusUpdate, len(updates))
	for _, upd := range updates {
		current, ok := latest[upd.EVSEID]
		if !ok || upd.Timestamp.After(current.Timestamp) {
			latest[upd.EVSEID] = upd
		}
	}
	out := make([]models.EVSEStatusUpdate, 0, len(latest))
	for _, upd := range latest {
		out = append(out, upd)
	}
	return out
}

// uploadStatusUpdates posts one connector-status request per distinct
// EVSE with bounded fan-out.
func (u *batchUploader) uploadStatusUpdates(ctx context.Context, updates []models.EVSEStatusUpdate) OperationResult {
	started := time.Now()
	result := newResult(OpStatusUpdate, NoOperation)

	coalesced := coalesceStatus(updates)

	items := make([]uploadItem, 0, len(coalesced))
	for _, upd := range coalesced {
		connectorID, err := evseToConnectorID(upd.EVSEID)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("status for %q: %v", upd.EVSEID, err))
			continue
		}
		post := oioi.ConnectorPostStatus{
			ConnectorID:       connectorID,
			Status:            statusToWire(upd.NewStatus),
			PartnerIdentifier: u.partnerID,
		}
		items = append(items, uploadItem{
			id: upd.EVSEID,
			post: func(ctx context.Context) (*oioi.Response, error) {
				return u.api.PostConnectorStatus(ctx, post)
			},
		})
	}

	u.fanOut(ctx, items, &result)

	result.finalize(started)
	u.logger.Debug("status batch finished",
		zap.Int("input", len(updates)),
		zap.Int("coalesced", len(coalesced)),
		zap.Int("successful", len(result.Successful)),
		zap.Int("rejected", len(result.Rejected)),
		zap.Duration("duration", result.Duration))
	return result
}

// uploadSession posts a single charge detail record and classifies the
// outcome. Used by both the batch flush path and the immediate-send path.
func (u *batchUploader) uploadSession(ctx context.Context, cdr models.ChargeDetailRecord) (SendStatus, string) {
	wire, err := cdrToWire(cdr)
	if err != nil {
		return SendCouldNotConvertFormat, err.Error()
	}

	resp, err := u.api.PostSession(ctx, oioi.SessionPost{
		Session:           wire,
		PartnerIdentifier: u.partnerID,
	})
	if err != nil {
		return SendError, err.Error()
	}
	if !resp.Success() {
		return SendError, resp.Err().Error()
	}
	return SendSuccess, ""
}
