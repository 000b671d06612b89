package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chargebridge/internal/cpo"
	"chargebridge/internal/models"
)

// ErrForwardingNotFound indicates no forwarding record for a session.
var ErrForwardingNotFound = errors.New("forwarding record not found")

// ForwardingRecord is one row of the forwarding ledger.
type ForwardingRecord struct {
	SessionID  string    `db:"session_id"`
	StationID  string    `db:"station_id"`
	EVSEID     string    `db:"evse_id"`
	EnergyKWh  float64   `db:"energy_kwh"`
	Status     string    `db:"status"`
	Diagnostic string    `db:"diagnostic"`
	SentAt     time.Time `db:"sent_at"`
}

// CDRRepository persists charge-detail-record forwarding outcomes. It
// implements cpo.CDRStore.
type CDRRepository struct {
	db *sql.DB
}

// NewCDRRepository returns the repository.
func NewCDRRepository(db *sql.DB) *CDRRepository {
	return &CDRRepository{db: db}
}

// RecordForwarding upserts the forwarding outcome by session id. Repeated
// attempts for the same session overwrite the previous outcome.
func (r *CDRRepository) RecordForwarding(ctx context.Context, cdr models.ChargeDetailRecord, status cpo.SendStatus, diagnostic string) error {
	const query = `
		INSERT INTO cdr_forwardings (session_id, station_id, evse_id, energy_kwh, status, diagnostic, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			status = EXCLUDED.status,
			diagnostic = EXCLUDED.diagnostic,
			sent_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		cdr.SessionID,
		cdr.StationID,
		cdr.EVSEID,
		cdr.EnergyKWh,
		status.String(),
		diagnostic,
	)
	return err
}

// GetForwarding returns the recorded outcome for a session.
func (r *CDRRepository) GetForwarding(ctx context.Context, sessionID string) (*ForwardingRecord, error) {
	const query = `
		SELECT session_id, station_id, evse_id, energy_kwh, status, diagnostic, sent_at
		FROM cdr_forwardings
		WHERE session_id = $1
	`
	var rec ForwardingRecord
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID,
		&rec.StationID,
		&rec.EVSEID,
		&rec.EnergyKWh,
		&rec.Status,
		&rec.Diagnostic,
		&rec.SentAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrForwardingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListFailed returns the most recent failed forwardings, newest first.
func (r *CDRRepository) ListFailed(ctx context.Context, limit int) ([]ForwardingRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT session_id, station_id, evse_id, energy_kwh, status, diagnostic, sent_at
		FROM cdr_forwardings
		WHERE status <> 'success'
		ORDER BY sent_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ForwardingRecord
	for rows.Next() {
		var rec ForwardingRecord
		if err := rows.Scan(
			&rec.SessionID,
			&rec.StationID,
			&rec.EVSEID,
			&rec.EnergyKWh,
			&rec.Status,
			&rec.Diagnostic,
			&rec.SentAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
