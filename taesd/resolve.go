// MODUL: resolve
// ZWECK: Encoder-/Decoder-Dateien per Endungs-Suche finden
// INPUT: Modell-Name, geordnete Endungsliste, Locator
// OUTPUT: Paths oder ResolutionError
// NEBENEFFEKTE: os.Stat ueber Dirs, sonst keine
// ABHAENGIGKEITEN: os, path/filepath (stdlib), logutil (intern)
// HINWEISE: Locator ist austauschbar, Tests nutzen LocatorFunc

package taesd

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/7blacky7/ollama-taesd/logutil"
)

// Category ist die Modell-Kategorie, in der TAESD-Dateien liegen.
const Category = "vae_approx"

// Extensions ist die Suchreihenfolge der Dateiendungen.
var Extensions = []string{".safetensors", ".pt", ".bin", ".pth"}

// Role unterscheidet Encoder- und Decoder-Datei.
type Role string

const (
	RoleEncoder Role = "encoder"
	RoleDecoder Role = "decoder"
)

// Prefix ist der Namensraum der Rolle im State-Dict.
func (r Role) Prefix() string {
	return "taesd_" + string(r) + "."
}

// Basename gibt z.B. "taesd_encoder" zurueck.
func Basename(model string, role Role) string {
	return model + "_" + string(role)
}

// ============================================================================
// Locator
// ============================================================================

// Locator bildet einen Dateinamen auf einen vollstaendigen Pfad ab.
type Locator interface {
	FullPath(filename string) (string, bool)
}

// LocatorFunc erlaubt Funktionen als Locator.
type LocatorFunc func(filename string) (string, bool)

func (f LocatorFunc) FullPath(filename string) (string, bool) {
	return f(filename)
}

// Dirs durchsucht mehrere Verzeichnisse in Reihenfolge.
type Dirs []string

// FullPath gibt den ersten existierenden regulaeren Pfad zurueck.
func (d Dirs) FullPath(filename string) (string, bool) {
	// Keine Pfadbestandteile aus dem Namen zulassen
	if filename != filepath.Base(filename) {
		return "", false
	}

	for _, dir := range d {
		p := filepath.Join(dir, filename)
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// ============================================================================
// Aufloesung
// ============================================================================

// Resolve probiert exts in Reihenfolge fuer basename und liefert den ersten Treffer.
func Resolve(basename string, exts []string, loc Locator) (string, bool) {
	for _, ext := range exts {
		if p, ok := loc.FullPath(basename + ext); ok {
			logutil.Trace("resolved taesd weight file", "name", basename+ext, "path", p)
			return p, true
		}
	}
	logutil.Trace("taesd weight file not found", "basename", basename, "extensions", exts)
	return "", false
}

// Paths enthaelt die aufgeloesten Dateien eines Modells.
type Paths struct {
	Encoder string `json:"encoder,omitempty"`
	Decoder string `json:"decoder,omitempty"`
}

// ResolveModel loest beide Rollen ueber dieselbe Endungsliste auf. Pro Rolle
// gewinnt die erste Endung mit existierender Datei.
func ResolveModel(loc Locator, model string, exts []string) (Paths, error) {
	var p Paths
	p.Encoder, _ = Resolve(Basename(model, RoleEncoder), exts, loc)
	p.Decoder, _ = Resolve(Basename(model, RoleDecoder), exts, loc)
	if p.Encoder != "" && p.Decoder != "" {
		return p, nil
	}

	err := &ResolutionError{Model: model, Category: Category, Extensions: slices.Clone(exts)}
	if p.Encoder == "" {
		err.Missing = append(err.Missing, RoleEncoder)
	}
	if p.Decoder == "" {
		err.Missing = append(err.Missing, RoleDecoder)
	}
	return p, err
}
