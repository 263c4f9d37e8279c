package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceSettings holds per-source tuning read from the optional sources file.
// Zero values mean "use the adapter's defaults".
type SourceSettings struct {
	// RateLimit is the client-side request rate in requests per second
	RateLimit float64 `yaml:"rate_limit"`
	// Burst is the rate limiter burst size
	Burst int `yaml:"burst"`
	// TimeoutMs is the per-request deadline for this source in milliseconds
	TimeoutMs int `yaml:"timeout_ms"`
	// FailureThreshold is the consecutive-failure count that marks the
	// source unavailable in the registry
	FailureThreshold int `yaml:"failure_threshold"`
}

// LoadSourceSettings reads per-source overrides from a YAML file keyed by
// source id. A missing file is not an error; an empty map is returned.
func LoadSourceSettings(path string) (map[string]SourceSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]SourceSettings{}, nil
		}
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	settings := make(map[string]SourceSettings)
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}
	return settings, nil
}
