// Package store provides the durable local store for queued mutations,
// backed by an embedded SQLite database. It is the single source of truth
// for pending work; all access goes through the queue manager.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"syncline/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS queue_records (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT    NOT NULL,
	endpoint   TEXT    NOT NULL,
	method     TEXT    NOT NULL,
	payload    BLOB,
	headers    TEXT    NOT NULL DEFAULT '',
	synced     INTEGER NOT NULL DEFAULT 0,
	failed     INTEGER NOT NULL DEFAULT 0,
	attempts   INTEGER NOT NULL DEFAULT 0,
	last_error TEXT    NOT NULL DEFAULT '',
	ts         INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queue_records_pending
	ON queue_records (tenant_id, synced, failed, ts);

CREATE INDEX IF NOT EXISTS idx_queue_records_failed
	ON queue_records (tenant_id, failed);
`

// Store persists queue records in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the store at path and applies the schema. WAL mode keeps
// concurrent enqueue and list-pending from blocking each other.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// InsertRecord durably writes one record. When rec.Timestamp is zero the
// store assigns a timestamp strictly greater than every existing timestamp
// for the tenant, so FIFO order survives clock skew.
func (s *Store) InsertRecord(ctx context.Context, rec *model.QueueRecord) error {
	headers, err := encodeHeaders(rec.Headers)
	if err != nil {
		return fmt.Errorf("encode headers: %w", err)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO queue_records (id, tenant_id, endpoint, method, payload, headers, ts, created_at)
		VALUES (?, ?, ?, ?, ?, ?,
			CASE WHEN ? > 0 THEN ?
			ELSE MAX(?, (SELECT COALESCE(MAX(ts), 0) + 1 FROM queue_records WHERE tenant_id = ?))
			END,
		?)
		RETURNING ts;
	`

	now := time.Now().UTC().UnixMicro()

	err = s.db.QueryRowContext(ctx, query,
		rec.ID.String(),
		rec.TenantID,
		rec.Endpoint,
		string(rec.Method),
		[]byte(rec.Payload),
		headers,
		rec.Timestamp,
		rec.Timestamp,
		now,
		rec.TenantID,
		rec.CreatedAt.UnixMilli(),
	).Scan(&rec.Timestamp)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

// SelectPendingByTenant returns unsynced, unfailed records for the tenant in
// ascending timestamp order.
func (s *Store) SelectPendingByTenant(ctx context.Context, tenantID string) ([]model.QueueRecord, error) {
	const query = `
		SELECT id, tenant_id, endpoint, method, payload, headers, synced, failed, attempts, last_error, ts, created_at
		FROM queue_records
		WHERE tenant_id = ? AND synced = 0 AND failed = 0
		ORDER BY ts;
	`

	return s.selectRecords(ctx, query, tenantID)
}

// SelectFailedByTenant returns terminally failed records awaiting manual
// retry or discard.
func (s *Store) SelectFailedByTenant(ctx context.Context, tenantID string) ([]model.QueueRecord, error) {
	const query = `
		SELECT id, tenant_id, endpoint, method, payload, headers, synced, failed, attempts, last_error, ts, created_at
		FROM queue_records
		WHERE tenant_id = ? AND failed = 1
		ORDER BY ts;
	`

	return s.selectRecords(ctx, query, tenantID)
}

// SelectTenantsWithPending lists tenant ids that still have pending records.
func (s *Store) SelectTenantsWithPending(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT tenant_id
		FROM queue_records
		WHERE synced = 0 AND failed = 0
		ORDER BY tenant_id;
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select tenants: %w", err)
	}

	defer rows.Close()

	var tenants []string

	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}

		tenants = append(tenants, tenant)
	}

	return tenants, rows.Err()
}

// UpdateAsSynced marks a record synced. Unknown ids are a no-op.
func (s *Store) UpdateAsSynced(ctx context.Context, id uuid.UUID) error {
	const query = `
		UPDATE queue_records
		SET synced = 1, failed = 0
		WHERE id = ?;
	`

	if _, err := s.db.ExecContext(ctx, query, id.String()); err != nil {
		return fmt.Errorf("update as synced: %w", err)
	}

	return nil
}

// UpdateAsFailed marks a record terminally failed with the rejection reason.
func (s *Store) UpdateAsFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const query = `
		UPDATE queue_records
		SET failed = 1, last_error = ?
		WHERE id = ? AND synced = 0;
	`

	if _, err := s.db.ExecContext(ctx, query, reason, id.String()); err != nil {
		return fmt.Errorf("update as failed: %w", err)
	}

	return nil
}

// UpdateAsPending moves a failed record back into the pending queue with its
// original timestamp, so a manual retry keeps its FIFO slot.
func (s *Store) UpdateAsPending(ctx context.Context, id uuid.UUID) error {
	const query = `
		UPDATE queue_records
		SET failed = 0, attempts = 0, last_error = ''
		WHERE id = ? AND failed = 1;
	`

	res, err := s.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("update as pending: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// UpdateAttempts records one more delivery attempt and its last error.
func (s *Store) UpdateAttempts(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	const query = `
		UPDATE queue_records
		SET attempts = ?, last_error = ?
		WHERE id = ?;
	`

	if _, err := s.db.ExecContext(ctx, query, attempts, lastError, id.String()); err != nil {
		return fmt.Errorf("update attempts: %w", err)
	}

	return nil
}

// DeleteRecord removes a record. Unknown ids are a no-op.
func (s *Store) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	const query = `
		DELETE FROM queue_records
		WHERE id = ?;
	`

	if _, err := s.db.ExecContext(ctx, query, id.String()); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	return nil
}

func (s *Store) selectRecords(ctx context.Context, query string, args ...any) ([]model.QueueRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}

	defer rows.Close()

	var records []model.QueueRecord

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (model.QueueRecord, error) {
	var (
		rec       model.QueueRecord
		id        string
		method    string
		headers   string
		createdAt int64
	)

	if err := rows.Scan(
		&id,
		&rec.TenantID,
		&rec.Endpoint,
		&method,
		&rec.Payload,
		&headers,
		&rec.Synced,
		&rec.Failed,
		&rec.Attempts,
		&rec.LastError,
		&rec.Timestamp,
		&createdAt,
	); err != nil {
		return rec, fmt.Errorf("scan record: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return rec, fmt.Errorf("parse record id: %w", err)
	}

	rec.ID = parsed
	rec.Method = model.Method(method)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()

	if headers != "" {
		if err := json.Unmarshal([]byte(headers), &rec.Headers); err != nil {
			return rec, fmt.Errorf("decode headers: %w", err)
		}
	}

	return rec, nil
}

func encodeHeaders(headers map[string]string) (string, error) {
	if len(headers) == 0 {
		return "", nil
	}

	data, err := json.Marshal(headers)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
