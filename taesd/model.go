// MODUL: model
// ZWECK: Bekannte TAESD-Varianten und ihre Latent-Skalierung
// INPUT: Modell-Name
// OUTPUT: Scale/Shift-Paar fuer den State-Dict
// NEBENEFFEKTE: Warn-Log bei unbekannten Namen
// ABHAENGIGKEITEN: log/slog (stdlib)
// HINWEISE: Unbekannte Namen fallen auf die taesd-Werte zurueck

// Package taesd loest TAESD-Modelldateien auf, baut den State-Dict und
// haelt pro Modell-Name genau eine VAE-Instanz vor.
package taesd

import (
	"log/slog"
)

// ============================================================================
// Modell-Namen
// ============================================================================

const (
	ModelTAESD   = "taesd"
	ModelTAESDXL = "taesdxl"
	ModelTAESD3  = "taesd3"
	ModelTAEF1   = "taef1"

	// DefaultModel ist der Standardwert der Node-Eingabe taesd_model_name
	DefaultModel = ModelTAESD
)

// KnownModels gibt die unterstuetzten Varianten in Anzeige-Reihenfolge zurueck.
func KnownModels() []string {
	return []string{ModelTAESD, ModelTAESDXL, ModelTAESD3, ModelTAEF1}
}

// ============================================================================
// Scale/Shift Tabelle
// ============================================================================

// Scalars enthaelt die Latent-Normalisierung einer Variante.
type Scalars struct {
	Scale float32
	Shift float32
}

// DefaultScalars wird fuer unbekannte Modell-Namen verwendet.
var DefaultScalars = Scalars{Scale: 0.18215, Shift: 0.0}

var scalars = map[string]Scalars{
	ModelTAESD:   {Scale: 0.18215, Shift: 0.0},
	ModelTAESDXL: {Scale: 0.13025, Shift: 0.0},
	ModelTAESD3:  {Scale: 1.5305, Shift: 0.0609},
	ModelTAEF1:   {Scale: 0.3611, Shift: 0.1159},
}

// LookupScalars gibt die Werte fuer name zurueck; ok ist false beim Fallback.
func LookupScalars(name string) (s Scalars, ok bool) {
	if s, ok := scalars[name]; ok {
		return s, true
	}
	return DefaultScalars, false
}

// ScalarsFor ist LookupScalars mit Warnung beim Fallback.
func ScalarsFor(name string) Scalars {
	s, ok := LookupScalars(name)
	if !ok {
		slog.Warn("unknown taesd model name, using taesd scale and shift", "model", name, "scale", s.Scale, "shift", s.Shift)
	}
	return s
}

// IsKnown prueft ob name eine der festen Varianten ist.
func IsKnown(name string) bool {
	_, ok := scalars[name]
	return ok
}
