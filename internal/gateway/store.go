// Package gateway holds the set of configured gateway connection profiles and
// tracks which one is active.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"kongman/internal/logging"
	"kongman/internal/storage"
	"kongman/internal/storage/models"
	pkgerrors "kongman/pkg/errors"
)

// Store is the single source of truth for known gateways and the active
// selection. Mutations are applied in call order; the last writer wins.
type Store struct {
	mu      sync.Mutex
	storage storage.Storage
	log     *logging.Logger
}

// NewStore wraps a persistence backend.
func NewStore(s storage.Storage, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	return &Store{storage: s, log: log.WithComponent("gateway")}
}

func (s *Store) withTx(ctx context.Context, fn func(tx storage.Transaction) error) error {
	tx, err := s.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed after %v: %w", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// ─── Mutations ──────────────────────────────────────────────────────────────

// Add assigns a fresh id to gw, stores it and returns the id. Credentials and
// the admin URL are expected to be validated by the caller.
func (s *Store) Add(ctx context.Context, gw models.Gateway) (string, error) {
	if strings.TrimSpace(gw.Name) == "" {
		return "", &pkgerrors.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if normalized, err := models.NormalizeAdminURL(gw.AdminURL); err == nil {
		gw.AdminURL = normalized
	}
	if gw.Variant == "" {
		gw.Variant = models.VariantStandard
	}
	gw.Auth = models.AuthOrNone(gw.Auth)
	gw.ID = uuid.NewString()
	gw.LastUsed = nil
	gw.UseCount = 0

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.CreateGateway(ctx, &gw); err != nil {
		return "", err
	}
	s.log.Info("gateway added", "gateway", gw.Name, "gateway_id", gw.ID, "auth", gw.AuthType())
	return gw.ID, nil
}

// Remove deletes the gateway if present and clears the active selection when
// it pointed at it. Removing an unknown id is not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx storage.Transaction) error {
		active, err := tx.GetActiveGateway(ctx)
		if err != nil {
			return err
		}
		if active != nil && active.GatewayID == id {
			if err := tx.ClearActiveGateway(ctx); err != nil {
				return err
			}
		}
		if err := tx.DeleteGateway(ctx, id); err != nil {
			return fmt.Errorf("failed to delete gateway: %w", err)
		}
		s.log.Debug("gateway removed", "gateway_id", id)
		return nil
	})
}

// SetActive selects the gateway used by entity operations.
func (s *Store) SetActive(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx storage.Transaction) error {
		gw, err := tx.GetGateway(ctx, id)
		if errors.Is(err, pkgerrors.ErrGatewayNotFound) {
			return &pkgerrors.GatewayError{GatewayID: id, Err: pkgerrors.ErrGatewayNotFound}
		}
		if err != nil {
			return err
		}
		if err := tx.SetActiveGateway(ctx, gw.ID); err != nil {
			return fmt.Errorf("failed to set active gateway: %w", err)
		}
		s.log.Info("active gateway changed", "gateway", gw.Name, "gateway_id", gw.ID)
		return nil
	})
}

// ClearActive drops the active selection.
func (s *Store) ClearActive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.ClearActiveGateway(ctx)
}

// Update loads the gateway, applies fn and saves the result. The id and the
// creation time cannot be changed by fn.
func (s *Store) Update(ctx context.Context, id string, fn func(gw *models.Gateway) error) (*models.Gateway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated *models.Gateway
	err := s.withTx(ctx, func(tx storage.Transaction) error {
		gw, err := tx.GetGateway(ctx, id)
		if errors.Is(err, pkgerrors.ErrGatewayNotFound) {
			return &pkgerrors.GatewayError{GatewayID: id, Err: pkgerrors.ErrGatewayNotFound}
		}
		if err != nil {
			return err
		}

		createdAt := gw.CreatedAt
		if err := fn(gw); err != nil {
			return err
		}
		gw.ID = id
		gw.CreatedAt = createdAt
		if err := gw.Validate(); err != nil {
			return err
		}
		gw.AdminURL, _ = models.NormalizeAdminURL(gw.AdminURL)

		if err := tx.UpdateGateway(ctx, gw); err != nil {
			return err
		}
		updated = gw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Touch records one use of the gateway. Missing gateways are ignored.
func (s *Store) Touch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gw, err := s.storage.GetGateway(ctx, id)
	if errors.Is(err, pkgerrors.ErrGatewayNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	gw.LastUsed = &now
	gw.UseCount++
	return s.storage.UpdateGateway(ctx, gw)
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Active returns the active gateway, or nil when none is selected.
func (s *Store) Active(ctx context.Context) (*models.Gateway, error) {
	active, err := s.storage.GetActiveGateway(ctx)
	if err != nil || active == nil {
		return nil, err
	}
	gw, err := s.storage.GetGateway(ctx, active.GatewayID)
	if errors.Is(err, pkgerrors.ErrGatewayNotFound) {
		return nil, nil
	}
	return gw, err
}

// ActiveID returns the id of the active gateway, or "" when none is selected.
func (s *Store) ActiveID(ctx context.Context) (string, error) {
	active, err := s.storage.GetActiveGateway(ctx)
	if err != nil || active == nil {
		return "", err
	}
	return active.GatewayID, nil
}

// List returns all gateways in insertion order.
func (s *Store) List(ctx context.Context) ([]*models.Gateway, error) {
	return s.storage.GetAllGateways(ctx, storage.GatewayFilter{})
}

// Find returns the gateways matching filter in insertion order.
func (s *Store) Find(ctx context.Context, filter storage.GatewayFilter) ([]*models.Gateway, error) {
	return s.storage.GetAllGateways(ctx, filter)
}

// Get returns a gateway by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Gateway, error) {
	gw, err := s.storage.GetGateway(ctx, id)
	if errors.Is(err, pkgerrors.ErrGatewayNotFound) {
		return nil, &pkgerrors.GatewayError{GatewayID: id, Err: pkgerrors.ErrGatewayNotFound}
	}
	return gw, err
}

// Resolve looks a gateway up by id first and then by name.
func (s *Store) Resolve(ctx context.Context, ref string) (*models.Gateway, error) {
	gw, err := s.storage.GetGateway(ctx, ref)
	if err == nil {
		return gw, nil
	}
	if !errors.Is(err, pkgerrors.ErrGatewayNotFound) {
		return nil, err
	}
	gw, err = s.storage.GetGatewayByName(ctx, ref)
	if errors.Is(err, pkgerrors.ErrGatewayNotFound) {
		return nil, &pkgerrors.GatewayError{Name: ref, Err: pkgerrors.ErrGatewayNotFound}
	}
	return gw, err
}
