package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"kongman/internal/storage"
	"kongman/internal/storage/models"
	pkgerrors "kongman/pkg/errors"
)

// dbHandle is the common interface between *sql.DB and *sql.Tx.
type dbHandle interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// DB implements the Storage interface using SQLite
type DB struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer keeps mutations applied in call order.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	storage := &DB{db: db}

	if err := runMigrations(storage); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) handle() dbHandle { return d.db }

// BeginTx starts a new transaction
func (d *DB) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx implements the Transaction interface
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error    { return t.tx.Commit() }
func (t *Tx) Rollback() error  { return t.tx.Rollback() }
func (t *Tx) handle() dbHandle { return t.tx }

func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *Tx) Close() error { return nil }

// ─── Gateway operations ─────────────────────────────────────────────────────

const gatewayColumns = `
	id, name, admin_url, variant, skip_tls_verify, auth_type, auth_config,
	tags, notes, last_used, use_count, created_at, updated_at`

func scanGateway(row rowScanner) (*models.Gateway, error) {
	gw := &models.Gateway{}
	var authType, variant string
	var authConfig, tags []byte
	err := row.Scan(
		&gw.ID, &gw.Name, &gw.AdminURL, &variant, &gw.SkipTLSVerify, &authType, &authConfig,
		&tags, &gw.Notes, &gw.LastUsed, &gw.UseCount, &gw.CreatedAt, &gw.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	gw.Variant = models.Variant(variant)
	auth, err := models.DecodeAuth(models.AuthType(authType), authConfig)
	if err != nil {
		return nil, fmt.Errorf("gateway %s: %w", gw.ID, err)
	}
	gw.Auth = auth
	if err := json.Unmarshal(tags, &gw.Tags); err != nil {
		gw.Tags = []string{}
	}
	return gw, nil
}

func (d *DB) CreateGateway(ctx context.Context, gateway *models.Gateway) error {
	return createGateway(ctx, d.handle(), gateway)
}
func (t *Tx) CreateGateway(ctx context.Context, gateway *models.Gateway) error {
	return createGateway(ctx, t.handle(), gateway)
}

func createGateway(ctx context.Context, h dbHandle, gateway *models.Gateway) error {
	authType, authConfig, err := models.EncodeAuth(gateway.Auth)
	if err != nil {
		return err
	}
	tags, err := json.Marshal(gateway.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO gateways (id, name, admin_url, variant, skip_tls_verify, auth_type, auth_config,
		                      tags, notes, use_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = h.ExecContext(ctx, query,
		gateway.ID, gateway.Name, gateway.AdminURL, string(gateway.Variant), gateway.SkipTLSVerify,
		string(authType), nullableJSON(authConfig), tags, gateway.Notes, gateway.UseCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	created, err := getGateway(ctx, h, gateway.ID)
	if err != nil {
		return err
	}
	gateway.CreatedAt = created.CreatedAt
	gateway.UpdatedAt = created.UpdatedAt
	return nil
}

func (d *DB) GetGateway(ctx context.Context, id string) (*models.Gateway, error) {
	return getGateway(ctx, d.handle(), id)
}
func (t *Tx) GetGateway(ctx context.Context, id string) (*models.Gateway, error) {
	return getGateway(ctx, t.handle(), id)
}

func getGateway(ctx context.Context, h dbHandle, id string) (*models.Gateway, error) {
	query := `SELECT` + gatewayColumns + ` FROM gateways WHERE id = ?`
	gw, err := scanGateway(h.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrGatewayNotFound
	}
	if err != nil {
		return nil, err
	}
	return gw, nil
}

func (d *DB) GetGatewayByName(ctx context.Context, name string) (*models.Gateway, error) {
	return getGatewayByName(ctx, d.handle(), name)
}
func (t *Tx) GetGatewayByName(ctx context.Context, name string) (*models.Gateway, error) {
	return getGatewayByName(ctx, t.handle(), name)
}

func getGatewayByName(ctx context.Context, h dbHandle, name string) (*models.Gateway, error) {
	query := `SELECT` + gatewayColumns + ` FROM gateways WHERE name = ? ORDER BY rowid LIMIT 1`
	gw, err := scanGateway(h.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrGatewayNotFound
	}
	if err != nil {
		return nil, err
	}
	return gw, nil
}

func (d *DB) GetAllGateways(ctx context.Context, filter storage.GatewayFilter) ([]*models.Gateway, error) {
	return getAllGateways(ctx, d.handle(), filter)
}
func (t *Tx) GetAllGateways(ctx context.Context, filter storage.GatewayFilter) ([]*models.Gateway, error) {
	return getAllGateways(ctx, t.handle(), filter)
}

func getAllGateways(ctx context.Context, h dbHandle, filter storage.GatewayFilter) ([]*models.Gateway, error) {
	query := `SELECT` + gatewayColumns + ` FROM gateways WHERE 1=1`
	args := []interface{}{}

	if filter.Variant != nil {
		query += " AND variant = ?"
		args = append(args, string(*filter.Variant))
	}
	if filter.AuthType != nil {
		query += " AND auth_type = ?"
		args = append(args, string(*filter.AuthType))
	}
	if filter.SearchTerm != "" {
		query += " AND (name LIKE ? OR admin_url LIKE ? OR notes LIKE ?)"
		searchPattern := "%" + filter.SearchTerm + "%"
		args = append(args, searchPattern, searchPattern, searchPattern)
	}
	query += " ORDER BY rowid ASC"

	rows, err := h.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gateways []*models.Gateway
	for rows.Next() {
		gw, err := scanGateway(rows)
		if err != nil {
			return nil, err
		}
		if len(filter.Tags) > 0 && !storage.HasAllTags(gw, filter.Tags) {
			continue
		}
		gateways = append(gateways, gw)
	}
	return gateways, rows.Err()
}

func (d *DB) UpdateGateway(ctx context.Context, gateway *models.Gateway) error {
	return updateGateway(ctx, d.handle(), gateway)
}
func (t *Tx) UpdateGateway(ctx context.Context, gateway *models.Gateway) error {
	return updateGateway(ctx, t.handle(), gateway)
}

func updateGateway(ctx context.Context, h dbHandle, gateway *models.Gateway) error {
	authType, authConfig, err := models.EncodeAuth(gateway.Auth)
	if err != nil {
		return err
	}
	tags, err := json.Marshal(gateway.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		UPDATE gateways
		SET name = ?, admin_url = ?, variant = ?, skip_tls_verify = ?, auth_type = ?, auth_config = ?,
		    tags = ?, notes = ?, last_used = ?, use_count = ?
		WHERE id = ?
	`
	res, err := h.ExecContext(ctx, query,
		gateway.Name, gateway.AdminURL, string(gateway.Variant), gateway.SkipTLSVerify,
		string(authType), nullableJSON(authConfig), tags, gateway.Notes,
		gateway.LastUsed, gateway.UseCount, gateway.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update gateway: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.ErrGatewayNotFound
	}
	return nil
}

func (d *DB) DeleteGateway(ctx context.Context, id string) error {
	return deleteGateway(ctx, d.handle(), id)
}
func (t *Tx) DeleteGateway(ctx context.Context, id string) error {
	return deleteGateway(ctx, t.handle(), id)
}

func deleteGateway(ctx context.Context, h dbHandle, id string) error {
	_, err := h.ExecContext(ctx, "DELETE FROM gateways WHERE id = ?", id)
	return err
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// ─── Probe history operations ───────────────────────────────────────────────

func (d *DB) RecordProbe(ctx context.Context, record *models.ProbeRecord) error {
	return recordProbe(ctx, d.handle(), record)
}
func (t *Tx) RecordProbe(ctx context.Context, record *models.ProbeRecord) error {
	return recordProbe(ctx, t.handle(), record)
}

func recordProbe(ctx context.Context, h dbHandle, record *models.ProbeRecord) error {
	if record.TestedAt.IsZero() {
		record.TestedAt = time.Now()
	}
	query := `
		INSERT INTO probe_results (gateway_id, success, status_code, latency_ms, message, tested_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := h.ExecContext(ctx, query,
		record.GatewayID, record.Success, record.StatusCode, record.LatencyMS, record.Message,
		record.TestedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record probe: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	record.ID = id
	return nil
}

func (d *DB) GetLatestProbe(ctx context.Context, gatewayID string) (*models.ProbeRecord, error) {
	return getLatestProbe(ctx, d.handle(), gatewayID)
}
func (t *Tx) GetLatestProbe(ctx context.Context, gatewayID string) (*models.ProbeRecord, error) {
	return getLatestProbe(ctx, t.handle(), gatewayID)
}

func getLatestProbe(ctx context.Context, h dbHandle, gatewayID string) (*models.ProbeRecord, error) {
	history, err := getProbeHistory(ctx, h, gatewayID, 1)
	if err != nil || len(history) == 0 {
		return nil, err
	}
	return history[0], nil
}

func (d *DB) GetProbeHistory(ctx context.Context, gatewayID string, limit int) ([]*models.ProbeRecord, error) {
	return getProbeHistory(ctx, d.handle(), gatewayID, limit)
}
func (t *Tx) GetProbeHistory(ctx context.Context, gatewayID string, limit int) ([]*models.ProbeRecord, error) {
	return getProbeHistory(ctx, t.handle(), gatewayID, limit)
}

func getProbeHistory(ctx context.Context, h dbHandle, gatewayID string, limit int) ([]*models.ProbeRecord, error) {
	query := `
		SELECT id, gateway_id, success, status_code, latency_ms, message, tested_at
		FROM probe_results
		WHERE gateway_id = ?
		ORDER BY tested_at DESC, id DESC
		LIMIT ?
	`
	rows, err := h.QueryContext(ctx, query, gatewayID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.ProbeRecord
	for rows.Next() {
		record := &models.ProbeRecord{}
		var message sql.NullString
		err := rows.Scan(
			&record.ID, &record.GatewayID, &record.Success, &record.StatusCode,
			&record.LatencyMS, &message, &record.TestedAt,
		)
		if err != nil {
			return nil, err
		}
		record.Message = message.String
		records = append(records, record)
	}
	return records, rows.Err()
}

// ─── Settings operations ────────────────────────────────────────────────────

func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	return getSetting(ctx, d.handle(), key)
}
func (t *Tx) GetSetting(ctx context.Context, key string) (string, error) {
	return getSetting(ctx, t.handle(), key)
}

func getSetting(ctx context.Context, h dbHandle, key string) (string, error) {
	var value string
	err := h.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting not found: %s", key)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, d.handle(), key, value)
}
func (t *Tx) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, t.handle(), key, value)
}

func setSetting(ctx context.Context, h dbHandle, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	_, err := h.ExecContext(ctx, query, key, value)
	return err
}

func (d *DB) GetAllSettings(ctx context.Context) (map[string]string, error) {
	return getAllSettings(ctx, d.handle())
}
func (t *Tx) GetAllSettings(ctx context.Context) (map[string]string, error) {
	return getAllSettings(ctx, t.handle())
}

func getAllSettings(ctx context.Context, h dbHandle) (map[string]string, error) {
	rows, err := h.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// ─── Active gateway operations ──────────────────────────────────────────────

func (d *DB) SetActiveGateway(ctx context.Context, gatewayID string) error {
	return setActiveGateway(ctx, d.handle(), gatewayID)
}
func (t *Tx) SetActiveGateway(ctx context.Context, gatewayID string) error {
	return setActiveGateway(ctx, t.handle(), gatewayID)
}

func setActiveGateway(ctx context.Context, h dbHandle, gatewayID string) error {
	query := `
		INSERT INTO active_gateway (id, gateway_id, selected_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			gateway_id = excluded.gateway_id,
			selected_at = excluded.selected_at
	`
	_, err := h.ExecContext(ctx, query, gatewayID)
	return err
}

func (d *DB) GetActiveGateway(ctx context.Context) (*models.ActiveGateway, error) {
	return getActiveGateway(ctx, d.handle())
}
func (t *Tx) GetActiveGateway(ctx context.Context) (*models.ActiveGateway, error) {
	return getActiveGateway(ctx, t.handle())
}

func getActiveGateway(ctx context.Context, h dbHandle) (*models.ActiveGateway, error) {
	query := `SELECT id, gateway_id, selected_at FROM active_gateway WHERE id = 1`
	active := &models.ActiveGateway{}
	err := h.QueryRowContext(ctx, query).Scan(&active.ID, &active.GatewayID, &active.SelectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return active, nil
}

func (d *DB) ClearActiveGateway(ctx context.Context) error {
	return clearActiveGateway(ctx, d.handle())
}
func (t *Tx) ClearActiveGateway(ctx context.Context) error {
	return clearActiveGateway(ctx, t.handle())
}

func clearActiveGateway(ctx context.Context, h dbHandle) error {
	_, err := h.ExecContext(ctx, "DELETE FROM active_gateway WHERE id = 1")
	return err
}
