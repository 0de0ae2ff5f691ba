// MODUL: errors
// ZWECK: Fehlertypen fuer Aufloesung und Konstruktion
// INPUT: Modell-Name, Rollen, Pfade, Ursprungsfehler
// OUTPUT: error-Implementierungen mit Unwrap
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: errors, fmt, strings (stdlib)
// HINWEISE: Pruefen mit errors.Is / errors.As

package taesd

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelFileNotFound wird von ResolutionError gewrappt
	ErrModelFileNotFound = errors.New("taesd: model file not found")

	// ErrBackendNotRegistered wird zurueckgegeben wenn kein VAE-Konstruktor gesetzt ist
	ErrBackendNotRegistered = errors.New("taesd: vae backend not registered")
)

// ResolutionError beschreibt fehlende Encoder- oder Decoder-Dateien.
type ResolutionError struct {
	Model      string
	Category   string
	Missing    []Role   // fehlende Rollen in Suchreihenfolge
	Extensions []string // probierte Endungen
}

func (e *ResolutionError) Error() string {
	var parts []string
	for _, role := range e.Missing {
		parts = append(parts, fmt.Sprintf("%s (expected name: %s[extension])", role, Basename(e.Model, role)))
	}
	return fmt.Sprintf("taesd %s file not found for %q (tried extensions: %s) in %s directory",
		strings.Join(parts, ", "), e.Model, strings.Join(e.Extensions, ", "), e.Category)
}

func (e *ResolutionError) Unwrap() error {
	return ErrModelFileNotFound
}

// ConstructionError beschreibt einen fehlgeschlagenen Ladevorgang nach der Aufloesung.
type ConstructionError struct {
	Model      string
	Paths      Paths
	Extensions []string
	Err        error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("failed to load taesd vae %q: check file paths (encoder %s, decoder %s; %s_encoder, %s_decoder with extensions %v) and integrity: %v",
		e.Model, e.Paths.Encoder, e.Paths.Decoder, e.Model, e.Model, e.Extensions, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}
