package models

import "time"

// ActiveGateway records which gateway profile is currently selected
type ActiveGateway struct {
	ID         int64     `json:"id"` // Always 1 (singleton)
	GatewayID  string    `json:"gateway_id"`
	SelectedAt time.Time `json:"selected_at"`
}
