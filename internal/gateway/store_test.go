package gateway

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kongman/internal/storage"
	"kongman/internal/storage/memory"
	"kongman/internal/storage/models"
	"kongman/internal/storage/sqlite"
	pkgerrors "kongman/pkg/errors"
)

// backends runs fn against every storage implementation.
func backends(t *testing.T, fn func(t *testing.T, s *Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewStore(memory.New(), nil))
	})
	t.Run("sqlite", func(t *testing.T) {
		db, err := sqlite.New(filepath.Join(t.TempDir(), "kongman.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		fn(t, NewStore(db, nil))
	})
}

func localGateway() models.Gateway {
	return models.Gateway{
		Name:     "Local",
		AdminURL: "http://localhost:8001",
		Auth:     models.NoAuth{},
	}
}

func TestStore_AddAndActivate(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		id, err := s.Add(ctx, localGateway())
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)

		active, err := s.Active(ctx)
		require.NoError(t, err)
		assert.Nil(t, active)

		require.NoError(t, s.SetActive(ctx, id))
		active, err = s.Active(ctx)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, id, active.ID)
		assert.Equal(t, "Local", active.Name)
		assert.Equal(t, "http://localhost:8001", active.AdminURL)
		assert.Equal(t, models.VariantStandard, active.Variant)
		assert.Equal(t, models.AuthTypeNone, active.AuthType())
	})
}

func TestStore_UniqueIDs(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		const n = 25

		ids := make(map[string]bool)
		for i := 0; i < n; i++ {
			gw := localGateway()
			gw.Name = fmt.Sprintf("gw-%d", i)
			id, err := s.Add(ctx, gw)
			require.NoError(t, err)
			ids[id] = true
		}
		assert.Len(t, ids, n)

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, n)
		for i, gw := range all {
			assert.Equal(t, fmt.Sprintf("gw-%d", i), gw.Name, "insertion order")
		}
	})
}

func TestStore_RemoveActiveClearsSelection(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		id, err := s.Add(ctx, localGateway())
		require.NoError(t, err)
		require.NoError(t, s.SetActive(ctx, id))

		require.NoError(t, s.Remove(ctx, id))

		active, err := s.Active(ctx)
		require.NoError(t, err)
		assert.Nil(t, active)

		activeID, err := s.ActiveID(ctx)
		require.NoError(t, err)
		assert.Empty(t, activeID)
	})
}

func TestStore_RemoveOtherKeepsSelection(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		a, err := s.Add(ctx, localGateway())
		require.NoError(t, err)
		other := localGateway()
		other.Name = "Other"
		b, err := s.Add(ctx, other)
		require.NoError(t, err)

		require.NoError(t, s.SetActive(ctx, a))
		require.NoError(t, s.Remove(ctx, b))

		activeID, err := s.ActiveID(ctx)
		require.NoError(t, err)
		assert.Equal(t, a, activeID)
	})
}

func TestStore_RemoveMissingIsNoop(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		_, err := s.Add(ctx, localGateway())
		require.NoError(t, err)

		assert.NoError(t, s.Remove(ctx, "does-not-exist"))

		all, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestStore_SetActiveUnknown(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		err := s.SetActive(ctx, "missing")
		require.Error(t, err)
		assert.True(t, pkgerrors.IsNotFound(err))

		active, err := s.Active(ctx)
		require.NoError(t, err)
		assert.Nil(t, active)
	})
}

// Every interleaving of add/remove/setActive keeps the active id pointing at
// a member of the collection.
func TestStore_ActiveIDConsistency(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		var ids []string

		check := func() {
			activeID, err := s.ActiveID(ctx)
			require.NoError(t, err)
			if activeID == "" {
				return
			}
			_, err = s.Get(ctx, activeID)
			require.NoError(t, err, "active id %s must exist", activeID)
		}

		for step := 0; step < 40; step++ {
			switch step % 5 {
			case 0, 1:
				gw := localGateway()
				gw.Name = fmt.Sprintf("gw-%d", step)
				id, err := s.Add(ctx, gw)
				require.NoError(t, err)
				ids = append(ids, id)
			case 2:
				require.NoError(t, s.SetActive(ctx, ids[len(ids)-1]))
			case 3:
				require.NoError(t, s.Remove(ctx, ids[len(ids)-1]))
				ids = ids[:len(ids)-1]
			case 4:
				if len(ids) > 0 {
					require.NoError(t, s.SetActive(ctx, ids[0]))
					require.NoError(t, s.Remove(ctx, ids[0]))
					ids = ids[1:]
					active, err := s.Active(ctx)
					require.NoError(t, err)
					assert.Nil(t, active)
				}
			}
			check()
		}
	})
}

func TestStore_Update(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		id, err := s.Add(ctx, localGateway())
		require.NoError(t, err)

		updated, err := s.Update(ctx, id, func(gw *models.Gateway) error {
			gw.ID = "ignored"
			gw.AdminURL = "https://kong.internal:8444/"
			gw.SkipTLSVerify = true
			gw.Auth = models.BasicAuth{Username: "admin", Password: "s3cret"}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, id, updated.ID)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "https://kong.internal:8444", got.AdminURL)
		assert.True(t, got.SkipTLSVerify)
		assert.Equal(t, models.BasicAuth{Username: "admin", Password: "s3cret"}, got.Auth)
	})
}

func TestStore_UpdateRejectsInvalid(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		id, err := s.Add(ctx, localGateway())
		require.NoError(t, err)

		_, err = s.Update(ctx, id, func(gw *models.Gateway) error {
			gw.Auth = models.JWTAuth{Key: "issuer"}
			return nil
		})
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.AuthTypeNone, got.AuthType())
	})
}

func TestStore_Touch(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		id, err := s.Add(ctx, localGateway())
		require.NoError(t, err)

		require.NoError(t, s.Touch(ctx, id))
		require.NoError(t, s.Touch(ctx, id))
		require.NoError(t, s.Touch(ctx, "missing"))

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, got.UseCount)
		assert.NotNil(t, got.LastUsed)
	})
}

func TestStore_Resolve(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		id, err := s.Add(ctx, localGateway())
		require.NoError(t, err)

		byID, err := s.Resolve(ctx, id)
		require.NoError(t, err)
		byName, err := s.Resolve(ctx, "Local")
		require.NoError(t, err)
		assert.Equal(t, byID.ID, byName.ID)

		_, err = s.Resolve(ctx, "nope")
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestStore_Find(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		prod := localGateway()
		prod.Name = "prod"
		prod.AdminURL = "http://kong-prod:8001"
		prod.Tags = []string{"prod", "eu"}
		prod.Auth = models.APIKeyAuth{Key: "k"}
		_, err := s.Add(ctx, prod)
		require.NoError(t, err)
		_, err = s.Add(ctx, localGateway())
		require.NoError(t, err)

		apiKey := models.AuthTypeAPIKey
		found, err := s.Find(ctx, storage.GatewayFilter{AuthType: &apiKey})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "prod", found[0].Name)

		found, err = s.Find(ctx, storage.GatewayFilter{Tags: []string{"EU"}})
		require.NoError(t, err)
		require.Len(t, found, 1)

		found, err = s.Find(ctx, storage.GatewayFilter{SearchTerm: "loc"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Local", found[0].Name)
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kongman.db")

	db, err := sqlite.New(path)
	require.NoError(t, err)
	s := NewStore(db, nil)

	var ids []string
	for _, name := range []string{"first", "second", "third"} {
		gw := localGateway()
		gw.Name = name
		id, err := s.Add(ctx, gw)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, s.SetActive(ctx, ids[1]))
	require.NoError(t, db.Close())

	db, err = sqlite.New(path)
	require.NoError(t, err)
	defer db.Close()
	s = NewStore(db, nil)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, gw := range list {
		assert.Equal(t, ids[i], gw.ID)
	}

	active, err := s.Active(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "second", active.Name)
}
