package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kongman/internal/storage"
	"kongman/internal/storage/models"
)

func seedGateway(t *testing.T, db *DB, id, name string) *models.Gateway {
	t.Helper()
	gw := &models.Gateway{ID: id, Name: name, AdminURL: "http://localhost:8001", Auth: models.NoAuth{}}
	require.NoError(t, db.CreateGateway(context.Background(), gw))
	return gw
}

func TestTx_KeepsWritesMadeOutside(t *testing.T) {
	ctx := context.Background()
	db := New()
	seedGateway(t, db, "gw-1", "first")

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetActiveGateway(ctx, "gw-1"))

	require.NoError(t, db.SetSetting(ctx, storage.SettingLogLevel, "debug"))
	require.NoError(t, db.RecordProbe(ctx, &models.ProbeRecord{GatewayID: "gw-1", Success: true}))

	require.NoError(t, tx.Commit())

	level, err := db.GetSetting(ctx, storage.SettingLogLevel)
	require.NoError(t, err)
	assert.Equal(t, "debug", level)

	history, err := db.GetProbeHistory(ctx, "gw-1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	active, err := db.GetActiveGateway(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "gw-1", active.GatewayID)
}

func TestTx_ReadsOwnWrites(t *testing.T) {
	ctx := context.Background()
	db := New()

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateGateway(ctx, &models.Gateway{ID: "gw-1", Name: "first", Auth: models.NoAuth{}}))

	_, err = tx.GetGateway(ctx, "gw-1")
	require.NoError(t, err)
	_, err = db.GetGateway(ctx, "gw-1")
	assert.Error(t, err, "uncommitted gateway is not visible outside")

	require.NoError(t, tx.Commit())
	_, err = db.GetGateway(ctx, "gw-1")
	assert.NoError(t, err)
}

func TestTx_Rollback(t *testing.T) {
	ctx := context.Background()
	db := New()
	seedGateway(t, db, "gw-1", "first")

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.DeleteGateway(ctx, "gw-1"))
	require.NoError(t, tx.Rollback())

	_, err = db.GetGateway(ctx, "gw-1")
	assert.NoError(t, err)
	assert.Error(t, tx.Commit())
}

func TestTx_CommitFailsWhenWriteNoLongerApplies(t *testing.T) {
	ctx := context.Background()
	db := New()
	seedGateway(t, db, "gw-1", "first")

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetSetting(ctx, storage.SettingProbeWorkers, "3"))
	require.NoError(t, tx.SetActiveGateway(ctx, "gw-1"))

	require.NoError(t, db.DeleteGateway(ctx, "gw-1"))
	assert.Error(t, tx.Commit())

	workers, err := db.GetSetting(ctx, storage.SettingProbeWorkers)
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultSettings[storage.SettingProbeWorkers], workers, "failed commit applies nothing")

	active, err := db.GetActiveGateway(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestDB_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := New()
	seedGateway(t, db, "gw-1", "first")
	seedGateway(t, db, "gw-2", "second")
	require.NoError(t, db.SetActiveGateway(ctx, "gw-1"))
	require.NoError(t, db.RecordProbe(ctx, &models.ProbeRecord{GatewayID: "gw-1"}))

	require.NoError(t, db.DeleteGateway(ctx, "gw-1"))

	active, err := db.GetActiveGateway(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	history, err := db.GetProbeHistory(ctx, "gw-1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	all, err := db.GetAllGateways(ctx, storage.GatewayFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "second", all[0].Name)
}
