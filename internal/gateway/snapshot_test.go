package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kongman/internal/storage/memory"
	"kongman/internal/storage/models"
	pkgerrors "kongman/pkg/errors"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			ctx := context.Background()
			src := NewStore(memory.New(), nil)

			id, err := src.Add(ctx, models.Gateway{
				Name:     "edge",
				AdminURL: "https://edge.example.com:8444",
				Variant:  models.VariantEnterprise,
				Auth:     models.JWTAuth{Key: "issuer", Secret: "secret"},
				Tags:     []string{"prod"},
			})
			require.NoError(t, err)
			_, err = src.Add(ctx, localGateway())
			require.NoError(t, err)
			require.NoError(t, src.SetActive(ctx, id))

			snap, err := src.Export(ctx)
			require.NoError(t, err)
			data, err := snap.Encode(format)
			require.NoError(t, err)

			decoded, err := DecodeSnapshot(data, format)
			require.NoError(t, err)

			dst := NewStore(memory.New(), nil)
			require.NoError(t, dst.Import(ctx, decoded, false))

			all, err := dst.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, id, all[0].ID)
			assert.Equal(t, models.JWTAuth{Key: "issuer", Secret: "secret"}, all[0].Auth)
			assert.Equal(t, models.VariantEnterprise, all[0].Variant)

			active, err := dst.Active(ctx)
			require.NoError(t, err)
			require.NotNil(t, active)
			assert.Equal(t, id, active.ID)
		})
	}
}

func TestDecodeSnapshot_PersistedBrowserState(t *testing.T) {
	data := []byte(`{
		"state": {
			"gateways": [
				{"id": "1", "name": "Local", "adminUrl": "http://localhost:8001", "skipTlsVerify": false, "type": "oss"},
				{"id": "2", "name": "Secure", "adminUrl": "https://kong:8444", "skipTlsVerify": true, "type": "enterprise",
				 "username": "admin", "password": "pw"}
			],
			"activeGatewayId": "2"
		},
		"version": 0
	}`)

	snap, err := DecodeSnapshot(data, FormatJSON)
	require.NoError(t, err)
	require.NoError(t, snap.Validate())
	require.Len(t, snap.Gateways, 2)

	assert.Equal(t, models.VariantStandard, snap.Gateways[0].Variant)
	assert.Equal(t, models.AuthTypeNone, snap.Gateways[0].AuthType())
	assert.Equal(t, models.VariantEnterprise, snap.Gateways[1].Variant)
	assert.Equal(t, models.BasicAuth{Username: "admin", Password: "pw"}, snap.Gateways[1].Auth)
	require.NotNil(t, snap.ActiveGatewayID)
	assert.Equal(t, "2", *snap.ActiveGatewayID)
}

func TestSnapshot_ValidateRejectsDanglingActive(t *testing.T) {
	missing := "ghost"
	snap := &Snapshot{
		Gateways:        []models.Gateway{localGateway()},
		ActiveGatewayID: &missing,
	}
	err := snap.Validate()
	assert.ErrorIs(t, err, pkgerrors.ErrSnapshotInvalid)
	assert.NotEmpty(t, snap.Gateways[0].ID, "missing ids are assigned")
}

func TestSnapshot_ValidateRejectsMismatchedAuth(t *testing.T) {
	data := []byte(`{"gateways":[{"id":"1","name":"x","adminUrl":"http://x","authType":"basic","authConfig":{"key":"k"}}]}`)
	_, err := DecodeSnapshot(data, FormatJSON)
	assert.ErrorIs(t, err, pkgerrors.ErrSnapshotInvalid)
}

func TestStore_ImportReplace(t *testing.T) {
	ctx := context.Background()
	s := NewStore(memory.New(), nil)

	oldID, err := s.Add(ctx, localGateway())
	require.NoError(t, err)
	require.NoError(t, s.SetActive(ctx, oldID))

	snap := &Snapshot{Gateways: []models.Gateway{{
		ID:       "imported",
		Name:     "Imported",
		AdminURL: "http://imported:8001",
		Auth:     models.APIKeyAuth{Key: "abc"},
	}}}
	require.NoError(t, s.Import(ctx, snap, true))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "imported", all[0].ID)

	active, err := s.Active(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestDecodeSnapshot_JSONWithComments(t *testing.T) {
	data := []byte(`{
  // hand-edited export
  "gateways": [
    {"id": "g1", "name": "Local", "adminUrl": "http://localhost:8001", "authType": "none",},
  ],
  "activeGatewayId": "g1", /* keep selection */
}`)

	snap, err := DecodeSnapshot(data, FormatJSON)
	require.NoError(t, err)
	require.NoError(t, snap.Validate())
	require.Len(t, snap.Gateways, 1)
	assert.Equal(t, "Local", snap.Gateways[0].Name)
	require.NotNil(t, snap.ActiveGatewayID)
	assert.Equal(t, "g1", *snap.ActiveGatewayID)
}
