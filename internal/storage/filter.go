package storage

import (
	"strings"

	"kongman/internal/storage/models"
)

// HasAllTags reports whether gw carries every tag in tags (case-insensitive).
func HasAllTags(gw *models.Gateway, tags []string) bool {
	for _, filterTag := range tags {
		found := false
		for _, tag := range gw.Tags {
			if strings.EqualFold(tag, filterTag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Matches applies every field of the filter to gw.
func (f GatewayFilter) Matches(gw *models.Gateway) bool {
	if f.Variant != nil && gw.Variant != *f.Variant {
		return false
	}
	if f.AuthType != nil && gw.AuthType() != *f.AuthType {
		return false
	}
	if f.SearchTerm != "" {
		term := strings.ToLower(f.SearchTerm)
		if !strings.Contains(strings.ToLower(gw.Name), term) &&
			!strings.Contains(strings.ToLower(gw.AdminURL), term) &&
			!strings.Contains(strings.ToLower(gw.Notes), term) {
			return false
		}
	}
	return HasAllTags(gw, f.Tags)
}
