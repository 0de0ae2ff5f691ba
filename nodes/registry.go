// MODUL: registry
// ZWECK: Registrierungsflaeche der Nodes fuer den Host
// INPUT: Node-Implementierungen
// OUTPUT: Class-Mappings, Display-Name-Mappings, Schemas
// NEBENEFFEKTE: Keine (rein speicherbasiert)
// ABHAENGIGKEITEN: sync (stdlib), nodes.go
// HINWEISE: Thread-sicher durch RWMutex; List behaelt die Registrierungsreihenfolge

package nodes

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// ============================================================================
// Registry - Zentrale Node-Verwaltung
// ============================================================================

// Registry verwaltet Node-Typen unter ihrem Klassennamen.
type Registry struct {
	nodes map[string]Node
	order []string
	mu    sync.RWMutex
}

// NewRegistry erstellt eine Registry mit den vier TAESD Nodes ueber vaes.
func NewRegistry(vaes VAESource) *Registry {
	r := &Registry{nodes: make(map[string]Node)}
	r.Register(NewEncodeTAESD(vaes))
	r.Register(NewDecodeTAESD(vaes))
	r.Register(NewEncodeTAESDTiled(vaes))
	r.Register(NewDecodeTAESDTiled(vaes))
	return r
}

// Register registriert n unter seinem Schema-Namen.
// Ueberschreibt existierende Eintraege ohne Warnung.
func (r *Registry) Register(n Node) {
	name := n.Schema().Name

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nodes == nil {
		r.nodes = make(map[string]Node)
	}
	if _, exists := r.nodes[name]; !exists {
		r.order = append(r.order, name)
	}
	r.nodes[name] = n
}

// Get gibt den Node fuer name zurueck.
func (r *Registry) Get(name string) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[name]
	return n, ok
}

// List gibt alle Klassennamen in Registrierungsreihenfolge zurueck.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.order)
}

// ClassMappings bildet Klassennamen auf Node-Implementierungen ab.
func (r *Registry) ClassMappings() map[string]Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Clone(r.nodes)
}

// DisplayNameMappings bildet Klassennamen auf lesbare Namen ab.
func (r *Registry) DisplayNameMappings() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.nodes))
	for name, n := range r.nodes {
		out[name] = n.Schema().DisplayName
	}
	return out
}

// Schemas gibt alle Schemas in Registrierungsreihenfolge zurueck.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.nodes[name].Schema())
	}
	return out
}

// Execute fuehrt den Node name mit in aus.
func (r *Registry) Execute(ctx context.Context, name string, in Inputs) (any, error) {
	n, ok := r.Get(name)
	if !ok {
		return nil, &RegistryError{Op: "execute", Name: name, Err: ErrNodeNotRegistered}
	}
	return n.Execute(ctx, in)
}
