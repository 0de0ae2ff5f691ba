// MODUL: types_taesd
// ZWECK: Request/Response-Typen der TAESD API
// INPUT: JSON-Requests
// OUTPUT: JSON-Responses
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: taesd (intern)
// HINWEISE: Fehler werden immer als {"error": msg} geliefert

package server

import "github.com/7blacky7/ollama-taesd/taesd"

// LoadRequest ist der Body von POST /api/taesd/load
type LoadRequest struct {
	Model string `json:"model"`
}

// LoadResponse bestaetigt einen geladenen Cache-Eintrag
type LoadResponse struct {
	Model  string `json:"model"`
	Loaded bool   `json:"loaded"`
}

// ModelInfo beschreibt eine Modell-Variante und ihren Zustand
type ModelInfo struct {
	Name      string       `json:"name"`
	Scale     float32      `json:"vae_scale"`
	Shift     float32      `json:"vae_shift"`
	Known     bool         `json:"known"`
	Paths     *taesd.Paths `json:"paths,omitempty"`
	Available bool         `json:"available"`
	Loaded    bool         `json:"loaded"`
	Missing   string       `json:"missing,omitempty"`
}

// ListModelsResponse ist die Antwort von GET /api/taesd/models
type ListModelsResponse struct {
	Models     []ModelInfo `json:"models"`
	Extensions []string    `json:"extensions"`
}

// BackendsResponse ist die Antwort von GET /api/taesd/backends
type BackendsResponse struct {
	Backends []string `json:"backends"`
	Selected string   `json:"selected,omitempty"`
}

// ErrorResponse ist der Body aller Fehlerantworten
type ErrorResponse struct {
	Error string `json:"error"`
}
