// Package memory provides an in-process Storage used by tests and selected
// with --db ":memory:". It keeps the same ordering and cascade rules as the
// SQLite backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"kongman/internal/storage"
	"kongman/internal/storage/models"
	pkgerrors "kongman/pkg/errors"
)

type state struct {
	gateways []*models.Gateway
	probes   []*models.ProbeRecord
	settings map[string]string
	active   *models.ActiveGateway
	nextID   int64
}

func (s *state) clone() *state {
	c := &state{
		gateways: make([]*models.Gateway, len(s.gateways)),
		probes:   make([]*models.ProbeRecord, len(s.probes)),
		settings: make(map[string]string, len(s.settings)),
		nextID:   s.nextID,
	}
	for i, gw := range s.gateways {
		c.gateways[i] = copyGateway(gw)
	}
	for i, p := range s.probes {
		cp := *p
		c.probes[i] = &cp
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	if s.active != nil {
		a := *s.active
		c.active = &a
	}
	return c
}

func copyGateway(gw *models.Gateway) *models.Gateway {
	c := *gw
	c.Tags = append([]string(nil), gw.Tags...)
	if gw.LastUsed != nil {
		t := *gw.LastUsed
		c.LastUsed = &t
	}
	return &c
}

// DB implements storage.Storage in memory.
type DB struct {
	mu sync.Mutex
	st *state
}

// New returns an empty store seeded with the default settings.
func New() *DB {
	st := &state{settings: make(map[string]string)}
	for k, v := range storage.DefaultSettings {
		st.settings[k] = v
	}
	return &DB{st: st}
}

func (d *DB) Close() error { return nil }

// BeginTx starts a transaction over a private copy of the current state.
// Writes are journaled and replayed onto the latest state at commit, so
// writes made outside the transaction in the meantime are kept.
func (d *DB) BeginTx(ctx context.Context) (storage.Transaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &Tx{parent: d, st: d.st.clone()}, nil
}

func (d *DB) with(fn func(st *state) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.st)
}

// Tx reads its own copy of the state and journals every write.
type Tx struct {
	parent  *DB
	mu      sync.Mutex
	st      *state
	journal []func(st *state) error
	done    bool
}

// Commit replays the journal onto a copy of the parent's current state and
// swaps it in. If a write no longer applies, nothing is committed.
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true

	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	next := t.parent.st.clone()
	for _, op := range t.journal {
		if err := op(next); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
	}
	t.parent.st = next
	return nil
}

func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	return nil
}

func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *Tx) Close() error { return nil }

func (t *Tx) with(fn func(st *state) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	return fn(t.st)
}

// write applies fn to the transaction's state and journals it for Commit.
func (t *Tx) write(fn func(st *state) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	if err := fn(t.st); err != nil {
		return err
	}
	t.journal = append(t.journal, fn)
	return nil
}

// ─── Gateway operations ─────────────────────────────────────────────────────

func createGateway(st *state, gw *models.Gateway) error {
	if _, _, err := models.EncodeAuth(gw.Auth); err != nil {
		return err
	}
	for _, existing := range st.gateways {
		if existing.ID == gw.ID {
			return fmt.Errorf("failed to create gateway: duplicate id %s", gw.ID)
		}
	}
	now := time.Now().UTC()
	gw.CreatedAt = now
	gw.UpdatedAt = now
	st.gateways = append(st.gateways, copyGateway(gw))
	return nil
}

func findGateway(st *state, id string) (int, *models.Gateway) {
	for i, gw := range st.gateways {
		if gw.ID == id {
			return i, gw
		}
	}
	return -1, nil
}

func getGateway(st *state, id string) (*models.Gateway, error) {
	_, gw := findGateway(st, id)
	if gw == nil {
		return nil, pkgerrors.ErrGatewayNotFound
	}
	return copyGateway(gw), nil
}

func getGatewayByName(st *state, name string) (*models.Gateway, error) {
	for _, gw := range st.gateways {
		if gw.Name == name {
			return copyGateway(gw), nil
		}
	}
	return nil, pkgerrors.ErrGatewayNotFound
}

func getAllGateways(st *state, filter storage.GatewayFilter) []*models.Gateway {
	var out []*models.Gateway
	for _, gw := range st.gateways {
		if filter.Matches(gw) {
			out = append(out, copyGateway(gw))
		}
	}
	return out
}

func updateGateway(st *state, gw *models.Gateway) error {
	if _, _, err := models.EncodeAuth(gw.Auth); err != nil {
		return err
	}
	i, existing := findGateway(st, gw.ID)
	if existing == nil {
		return pkgerrors.ErrGatewayNotFound
	}
	updated := copyGateway(gw)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	st.gateways[i] = updated
	gw.UpdatedAt = updated.UpdatedAt
	return nil
}

func deleteGateway(st *state, id string) {
	i, gw := findGateway(st, id)
	if gw == nil {
		return
	}
	st.gateways = append(st.gateways[:i], st.gateways[i+1:]...)

	probes := st.probes[:0]
	for _, p := range st.probes {
		if p.GatewayID != id {
			probes = append(probes, p)
		}
	}
	st.probes = probes

	if st.active != nil && st.active.GatewayID == id {
		st.active = nil
	}
}

func (d *DB) CreateGateway(ctx context.Context, gw *models.Gateway) error {
	return d.with(func(st *state) error { return createGateway(st, gw) })
}
func (t *Tx) CreateGateway(ctx context.Context, gw *models.Gateway) error {
	snap := copyGateway(gw)
	return t.write(func(st *state) error {
		err := createGateway(st, snap)
		gw.CreatedAt, gw.UpdatedAt = snap.CreatedAt, snap.UpdatedAt
		return err
	})
}

func (d *DB) GetGateway(ctx context.Context, id string) (gw *models.Gateway, err error) {
	err = d.with(func(st *state) error { gw, err = getGateway(st, id); return err })
	return gw, err
}
func (t *Tx) GetGateway(ctx context.Context, id string) (gw *models.Gateway, err error) {
	err = t.with(func(st *state) error { gw, err = getGateway(st, id); return err })
	return gw, err
}

func (d *DB) GetGatewayByName(ctx context.Context, name string) (gw *models.Gateway, err error) {
	err = d.with(func(st *state) error { gw, err = getGatewayByName(st, name); return err })
	return gw, err
}
func (t *Tx) GetGatewayByName(ctx context.Context, name string) (gw *models.Gateway, err error) {
	err = t.with(func(st *state) error { gw, err = getGatewayByName(st, name); return err })
	return gw, err
}

func (d *DB) GetAllGateways(ctx context.Context, filter storage.GatewayFilter) (gws []*models.Gateway, err error) {
	err = d.with(func(st *state) error { gws = getAllGateways(st, filter); return nil })
	return gws, err
}
func (t *Tx) GetAllGateways(ctx context.Context, filter storage.GatewayFilter) (gws []*models.Gateway, err error) {
	err = t.with(func(st *state) error { gws = getAllGateways(st, filter); return nil })
	return gws, err
}

func (d *DB) UpdateGateway(ctx context.Context, gw *models.Gateway) error {
	return d.with(func(st *state) error { return updateGateway(st, gw) })
}
func (t *Tx) UpdateGateway(ctx context.Context, gw *models.Gateway) error {
	snap := copyGateway(gw)
	return t.write(func(st *state) error {
		err := updateGateway(st, snap)
		gw.UpdatedAt = snap.UpdatedAt
		return err
	})
}

func (d *DB) DeleteGateway(ctx context.Context, id string) error {
	return d.with(func(st *state) error { deleteGateway(st, id); return nil })
}
func (t *Tx) DeleteGateway(ctx context.Context, id string) error {
	return t.write(func(st *state) error { deleteGateway(st, id); return nil })
}

// ─── Probe history operations ───────────────────────────────────────────────

func recordProbe(st *state, record *models.ProbeRecord) error {
	if _, gw := findGateway(st, record.GatewayID); gw == nil {
		return fmt.Errorf("failed to record probe: %w", pkgerrors.ErrGatewayNotFound)
	}
	if record.TestedAt.IsZero() {
		record.TestedAt = time.Now()
	}
	st.nextID++
	record.ID = st.nextID
	cp := *record
	st.probes = append(st.probes, &cp)
	return nil
}

func probeHistory(st *state, gatewayID string, limit int) []*models.ProbeRecord {
	var out []*models.ProbeRecord
	for _, p := range st.probes {
		if p.GatewayID == gatewayID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TestedAt.Equal(out[j].TestedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].TestedAt.After(out[j].TestedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (d *DB) RecordProbe(ctx context.Context, record *models.ProbeRecord) error {
	return d.with(func(st *state) error { return recordProbe(st, record) })
}
func (t *Tx) RecordProbe(ctx context.Context, record *models.ProbeRecord) error {
	snap := *record
	return t.write(func(st *state) error {
		err := recordProbe(st, &snap)
		record.ID, record.TestedAt = snap.ID, snap.TestedAt
		return err
	})
}

func (d *DB) GetLatestProbe(ctx context.Context, gatewayID string) (*models.ProbeRecord, error) {
	history, err := d.GetProbeHistory(ctx, gatewayID, 1)
	if err != nil || len(history) == 0 {
		return nil, err
	}
	return history[0], nil
}
func (t *Tx) GetLatestProbe(ctx context.Context, gatewayID string) (*models.ProbeRecord, error) {
	history, err := t.GetProbeHistory(ctx, gatewayID, 1)
	if err != nil || len(history) == 0 {
		return nil, err
	}
	return history[0], nil
}

func (d *DB) GetProbeHistory(ctx context.Context, gatewayID string, limit int) (out []*models.ProbeRecord, err error) {
	err = d.with(func(st *state) error { out = probeHistory(st, gatewayID, limit); return nil })
	return out, err
}
func (t *Tx) GetProbeHistory(ctx context.Context, gatewayID string, limit int) (out []*models.ProbeRecord, err error) {
	err = t.with(func(st *state) error { out = probeHistory(st, gatewayID, limit); return nil })
	return out, err
}

// ─── Settings operations ────────────────────────────────────────────────────

func getSetting(st *state, key string) (string, error) {
	v, ok := st.settings[key]
	if !ok {
		return "", fmt.Errorf("setting not found: %s", key)
	}
	return v, nil
}

func allSettings(st *state) map[string]string {
	out := make(map[string]string, len(st.settings))
	for k, v := range st.settings {
		out[k] = v
	}
	return out
}

func (d *DB) GetSetting(ctx context.Context, key string) (v string, err error) {
	err = d.with(func(st *state) error { v, err = getSetting(st, key); return err })
	return v, err
}
func (t *Tx) GetSetting(ctx context.Context, key string) (v string, err error) {
	err = t.with(func(st *state) error { v, err = getSetting(st, key); return err })
	return v, err
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	return d.with(func(st *state) error { st.settings[key] = value; return nil })
}
func (t *Tx) SetSetting(ctx context.Context, key, value string) error {
	return t.write(func(st *state) error { st.settings[key] = value; return nil })
}

func (d *DB) GetAllSettings(ctx context.Context) (out map[string]string, err error) {
	err = d.with(func(st *state) error { out = allSettings(st); return nil })
	return out, err
}
func (t *Tx) GetAllSettings(ctx context.Context) (out map[string]string, err error) {
	err = t.with(func(st *state) error { out = allSettings(st); return nil })
	return out, err
}

// ─── Active gateway operations ──────────────────────────────────────────────

func setActive(st *state, gatewayID string) error {
	if _, gw := findGateway(st, gatewayID); gw == nil {
		return pkgerrors.ErrGatewayNotFound
	}
	st.active = &models.ActiveGateway{ID: 1, GatewayID: gatewayID, SelectedAt: time.Now().UTC()}
	return nil
}

func getActive(st *state) *models.ActiveGateway {
	if st.active == nil {
		return nil
	}
	a := *st.active
	return &a
}

func (d *DB) SetActiveGateway(ctx context.Context, gatewayID string) error {
	return d.with(func(st *state) error { return setActive(st, gatewayID) })
}
func (t *Tx) SetActiveGateway(ctx context.Context, gatewayID string) error {
	return t.write(func(st *state) error { return setActive(st, gatewayID) })
}

func (d *DB) GetActiveGateway(ctx context.Context) (a *models.ActiveGateway, err error) {
	err = d.with(func(st *state) error { a = getActive(st); return nil })
	return a, err
}
func (t *Tx) GetActiveGateway(ctx context.Context) (a *models.ActiveGateway, err error) {
	err = t.with(func(st *state) error { a = getActive(st); return nil })
	return a, err
}

func (d *DB) ClearActiveGateway(ctx context.Context) error {
	return d.with(func(st *state) error { st.active = nil; return nil })
}
func (t *Tx) ClearActiveGateway(ctx context.Context) error {
	return t.write(func(st *state) error { st.active = nil; return nil })
}

var (
	_ storage.Storage     = (*DB)(nil)
	_ storage.Transaction = (*Tx)(nil)
)
