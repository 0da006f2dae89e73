package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
	"kongman/internal/storage"
	"kongman/internal/storage/models"
	pkgerrors "kongman/pkg/errors"
)

// Snapshot is the persisted-state shape of the gateway collection.
type Snapshot struct {
	Gateways        []models.Gateway `json:"gateways"`
	ActiveGatewayID *string          `json:"activeGatewayId"`
}

// Format selects the snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml and yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown snapshot format: %s", s)
}

// Export captures every gateway and the active selection.
func (s *Store) Export(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gateways, err := s.storage.GetAllGateways(ctx, storage.GatewayFilter{})
	if err != nil {
		return nil, err
	}
	active, err := s.storage.GetActiveGateway(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Gateways: make([]models.Gateway, 0, len(gateways))}
	for _, gw := range gateways {
		snap.Gateways = append(snap.Gateways, *gw)
	}
	if active != nil {
		id := active.GatewayID
		snap.ActiveGatewayID = &id
	}
	return snap, nil
}

// Import loads a snapshot. With replace, existing gateways not in the
// snapshot are removed; otherwise gateways are upserted by id. The active
// selection is taken from the snapshot when it names one.
func (s *Store) Import(ctx context.Context, snap *Snapshot, replace bool) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx storage.Transaction) error {
		if replace {
			existing, err := tx.GetAllGateways(ctx, storage.GatewayFilter{})
			if err != nil {
				return err
			}
			if err := tx.ClearActiveGateway(ctx); err != nil {
				return err
			}
			for _, gw := range existing {
				if err := tx.DeleteGateway(ctx, gw.ID); err != nil {
					return err
				}
			}
		}

		for i := range snap.Gateways {
			gw := snap.Gateways[i]
			gw.AdminURL, _ = models.NormalizeAdminURL(gw.AdminURL)
			_, err := tx.GetGateway(ctx, gw.ID)
			switch {
			case errors.Is(err, pkgerrors.ErrGatewayNotFound):
				err = tx.CreateGateway(ctx, &gw)
			case err == nil:
				err = tx.UpdateGateway(ctx, &gw)
			}
			if err != nil {
				return fmt.Errorf("failed to import gateway %q: %w", gw.Name, err)
			}
		}

		if snap.ActiveGatewayID != nil && *snap.ActiveGatewayID != "" {
			if err := tx.SetActiveGateway(ctx, *snap.ActiveGatewayID); err != nil {
				return fmt.Errorf("failed to set active gateway: %w", err)
			}
		}
		s.log.Info("gateways imported", "count", len(snap.Gateways), "replace", replace)
		return nil
	})
}

// Validate checks every gateway and that the active id names one of them.
// Gateways without an id are given one.
func (snap *Snapshot) Validate() error {
	seen := make(map[string]bool, len(snap.Gateways))
	for i := range snap.Gateways {
		gw := &snap.Gateways[i]
		if gw.ID == "" {
			gw.ID = uuid.NewString()
		}
		if seen[gw.ID] {
			return fmt.Errorf("%w: duplicate gateway id %s", pkgerrors.ErrSnapshotInvalid, gw.ID)
		}
		seen[gw.ID] = true
		if err := gw.Validate(); err != nil {
			return fmt.Errorf("%w: gateway %q: %w", pkgerrors.ErrSnapshotInvalid, gw.Name, err)
		}
	}
	if snap.ActiveGatewayID != nil && *snap.ActiveGatewayID != "" && !seen[*snap.ActiveGatewayID] {
		return fmt.Errorf("%w: active gateway %s is not in the snapshot", pkgerrors.ErrSnapshotInvalid, *snap.ActiveGatewayID)
	}
	return nil
}

// Encode writes the snapshot in the given format.
func (snap *Snapshot) Encode(format Format) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	if format != FormatYAML {
		return append(data, '\n'), nil
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

// DecodeSnapshot parses a snapshot. JSON input may carry comments and
// trailing commas. Browser-persisted state wrapped as
// {"state": {...}, "version": n} is unwrapped.
func DecodeSnapshot(data []byte, format Format) (*Snapshot, error) {
	if format != FormatYAML {
		data = jsonc.ToJSON(data)
	} else {
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrSnapshotInvalid, err)
		}
		converted, err := json.Marshal(generic)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrSnapshotInvalid, err)
		}
		data = converted
	}

	var wrapper struct {
		State json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && len(bytes.TrimSpace(wrapper.State)) > 0 {
		data = wrapper.State
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrSnapshotInvalid, err)
	}
	return snap, nil
}
