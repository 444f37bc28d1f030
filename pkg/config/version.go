package config

import "fmt"

// CurrentVersion is the mbbridge YAML schema version this code parses —
// the `version` field read by the two-pass load's version probe before the
// full decode.
const CurrentVersion = "2.0"

// VersionInfo is the version probe: just enough of the config file to read
// `version` before the rest of the schema is decoded and validated.
type VersionInfo struct {
	Version string `yaml:"version"`
}

// ValidateVersion rejects a config file whose schema version isn't the one
// this parser understands, before any slave/tag/cycle fields are decoded.
func ValidateVersion(fileVersion string) error {
	if fileVersion == "" {
		return fmt.Errorf("configuration file missing 'version' field. Expected version: %s", CurrentVersion)
	}
	if fileVersion != CurrentVersion {
		return fmt.Errorf("incompatible configuration version: %s (expected: %s)", fileVersion, CurrentVersion)
	}
	return nil
}
