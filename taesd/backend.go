// MODUL: backend
// ZWECK: Registry fuer VAE-Konstruktoren des Hosts
// INPUT: Backend-Name, Constructor
// OUTPUT: Registrierte Constructor-Funktionen
// NEBENEFFEKTE: Aendert die globale DefaultBackends Registry
// ABHAENGIGKEITEN: sync, slices (stdlib)
// HINWEISE: Backends registrieren sich typischerweise via init()

package taesd

import (
	"maps"
	"slices"
	"sync"
)

// ============================================================================
// BackendRegistry
// ============================================================================

// BackendRegistry verwaltet VAE-Konstruktoren unter einem Namen.
// Thread-sicher durch RWMutex.
type BackendRegistry struct {
	constructors map[string]Constructor
	mu           sync.RWMutex
}

// NewBackendRegistry erstellt eine leere Registry.
func NewBackendRegistry() *BackendRegistry {
	return &BackendRegistry{constructors: make(map[string]Constructor)}
}

// Register registriert einen Konstruktor; existierende Eintraege werden ueberschrieben.
func (r *BackendRegistry) Register(name string, c Constructor) {
	if c == nil {
		panic("taesd: nil constructor for backend '" + name + "'")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = c
}

// Get gibt den Konstruktor fuer name zurueck.
func (r *BackendRegistry) Get(name string) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.constructors[name]
	if !ok {
		return nil, &BackendError{Name: name, Err: ErrBackendNotRegistered}
	}
	return c, nil
}

// List gibt alle registrierten Namen sortiert zurueck.
func (r *BackendRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.constructors))
}

// BackendError repraesentiert einen Registry-Fehler.
type BackendError struct {
	Name string
	Err  error
}

func (e *BackendError) Error() string {
	return "taesd: backend '" + e.Name + "': " + e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// ============================================================================
// Globale Registry
// ============================================================================

// DefaultBackends ist die globale Registry fuer VAE-Konstruktoren.
var DefaultBackends = NewBackendRegistry()

// RegisterBackend registriert c in DefaultBackends.
func RegisterBackend(name string, c Constructor) {
	DefaultBackends.Register(name, c)
}

// LookupBackend sucht name in DefaultBackends. Ist name leer und genau ein
// Backend registriert, wird dieses verwendet.
func LookupBackend(name string) (Constructor, error) {
	if name == "" {
		if names := DefaultBackends.List(); len(names) == 1 {
			name = names[0]
		}
	}
	return DefaultBackends.Get(name)
}

// Backends listet die Namen in DefaultBackends.
func Backends() []string {
	return DefaultBackends.List()
}
