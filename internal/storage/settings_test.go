package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSetting(t *testing.T) {
	tests := []struct {
		key, value string
		wantErr    bool
	}{
		{SettingLogLevel, "debug", false},
		{SettingLogLevel, "WARN", false},
		{SettingLogLevel, "verbose", true},
		{SettingProbeWorkers, "4", false},
		{SettingProbeWorkers, "0", true},
		{SettingRequestTimeout, "abc", true},
		{SettingMonitorInterval, "30", false},
		{"proxy_port", "1080", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := ValidateSetting(tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultSettingsAreValid(t *testing.T) {
	for k, v := range DefaultSettings {
		assert.NoError(t, ValidateSetting(k, v), k)
	}
}
