package backend

import (
	"fmt"

	"tutordash/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	cfg := Config{
		Type: backendType,

		SpreadsheetID:   appConfig.SpreadsheetID,
		SheetRange:      appConfig.SheetRange,
		CredentialsJSON: appConfig.ServiceAccountJSON,
		CredentialsFile: appConfig.ServiceAccountFile,

		XLSXPath:  appConfig.XLSXPath,
		XLSXSheet: appConfig.XLSXSheet,

		SeedCSVPath: appConfig.SeedCSVPath,
	}
	if appConfig.SQLiteEnabled() {
		cfg.SQLiteDBPath = appConfig.SQLiteDBPath
	}
	if appConfig.RedisEnabled() {
		cfg.RedisURL = appConfig.RedisURL
	}
	return cfg, nil
}

// Validate checks the settings the chosen source needs.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SheetsBackend:
		if c.SpreadsheetID == "" {
			return fmt.Errorf("spreadsheet ID is required for sheets backend")
		}
	case XLSXBackend:
		if c.XLSXPath == "" {
			return fmt.Errorf("workbook path is required for xlsx backend")
		}
	case MemoryBackend:
		// seeded from CSV or generated
	}
	return nil
}

// GetBackendTypes returns all valid backend types.
func GetBackendTypes() []BackendType {
	return []BackendType{SheetsBackend, XLSXBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings.
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
