// config_utils.go - Getter-Bausteine und Export der Konfiguration
//
// Dieses Modul enthaelt:
// - BoolWithDefault/Bool: Boolean-Getter mit Default-Wert
// - String: String-Getter
// - Uint: Integer-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"log/slog"
	"strconv"
)

// =============================================================================
// Boolean-Getter
// =============================================================================

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// =============================================================================
// String-Getter
// =============================================================================

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// =============================================================================
// Integer-Getter
// =============================================================================

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// =============================================================================
// Export-Strukturen und -Funktionen
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"TAESD_DEBUG":         {"TAESD_DEBUG", LogLevel(), "Show additional debug information (e.g. TAESD_DEBUG=1)"},
		"TAESD_HOST":          {"TAESD_HOST", Host(), "IP Address for the taesd server (default 127.0.0.1:8189)"},
		"TAESD_MODELS":        {"TAESD_MODELS", Models(), "Directories searched for vae_approx weight files"},
		"TAESD_ORIGINS":       {"TAESD_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"TAESD_BACKEND":       {"TAESD_BACKEND", Backend(), "Name of the registered VAE backend"},
		"TAESD_PRELOAD":       {"TAESD_PRELOAD", Preload(), "Load the default model when the server starts"},
		"TAESD_MAX_UPLOAD_MB": {"TAESD_MAX_UPLOAD_MB", MaxUploadMB(), "Maximum size of uploaded images and latents in MiB (default 64)"},
		"TAESD_MAX_PIXELS":    {"TAESD_MAX_PIXELS", MaxImagePixels(), "Maximum width*height of uploaded images (default 67108864)"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
