// MODUL: errors
// ZWECK: Fehlertypen fuer Node-Eingaben und Registry
// INPUT: Node-Name, Input-Name, Ursprungsfehler
// OUTPUT: error-Implementierungen mit Unwrap
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: errors, fmt (stdlib)
// HINWEISE: InputError wrappt immer ErrInvalidInput

package nodes

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput markiert Eingaben die das Node-Schema verletzen
	ErrInvalidInput = errors.New("invalid input")

	// ErrNodeNotRegistered wird zurueckgegeben wenn ein Node-Typ unbekannt ist
	ErrNodeNotRegistered = errors.New("node not registered")
)

// InputError beschreibt eine ungueltige Eingabe eines Nodes.
type InputError struct {
	Node  string
	Input string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("nodes: %s: input '%s': %v", e.Node, e.Input, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// invalidInput baut einen InputError der ErrInvalidInput wrappt
func invalidInput(node, input, format string, args ...any) error {
	return &InputError{
		Node:  node,
		Input: input,
		Err:   fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...)),
	}
}

// RegistryError repraesentiert einen Fehler bei Registry-Operationen.
type RegistryError struct {
	Op   string
	Name string
	Err  error
}

func (e *RegistryError) Error() string {
	return "nodes: " + e.Op + " '" + e.Name + "': " + e.Err.Error()
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}
