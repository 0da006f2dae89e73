package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// LogLevels are the accepted values of SettingLogLevel.
var LogLevels = []string{"debug", "info", "warn", "error"}

// ValidateSetting checks a value before it is stored.
func ValidateSetting(key, value string) error {
	switch key {
	case SettingLogLevel:
		for _, l := range LogLevels {
			if strings.EqualFold(value, l) {
				return nil
			}
		}
		return fmt.Errorf("%s must be one of %s", key, strings.Join(LogLevels, ", "))
	case SettingRequestTimeout, SettingProbeTimeout, SettingProbeWorkers, SettingMonitorInterval:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer", key)
		}
		return nil
	}
	return fmt.Errorf("unknown setting: %s", key)
}
