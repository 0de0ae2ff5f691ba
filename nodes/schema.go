// MODUL: schema
// ZWECK: Eingabe-Schema der Nodes und Validierung generischer Eingaben
// INPUT: Inputs (map von Eingabe-Name auf Wert)
// OUTPUT: Schema fuer die Host-Discovery, Validierungsfehler
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: wk8/go-ordered-map/v2, pdevine/tensor, taesd (intern)
// HINWEISE: Reihenfolge der Eingaben bleibt in JSON erhalten; Step wird nicht geprueft

package nodes

import (
	"encoding/json"
	"maps"
	"math"
	"slices"

	"github.com/pdevine/tensor"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/7blacky7/ollama-taesd/taesd"
)

// ============================================================================
// Typen und Konstanten
// ============================================================================

// Eingabe- und Ausgabetypen des Hosts
const (
	TypeImage  = "IMAGE"
	TypeLatent = "LATENT"
	TypeInt    = "INT"
	TypeCombo  = "COMBO"
)

// Category ist die Menue-Kategorie aller TAESD Nodes
const Category = "latent/TAESD"

// MaxResolution ist die groesste Kantenlaenge die der Host zulaesst
const MaxResolution = 16384

// Eingabe-Namen
const (
	InputPixels    = "pixels"
	InputSamples   = "samples"
	InputModel     = "taesd_model_name"
	InputTileSize  = "tile_size"
	InputOverlap   = "overlap"
	defaultTile    = 512
	defaultOverlap = 64
)

// InputSpec beschreibt eine einzelne Node-Eingabe.
type InputSpec struct {
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
	Default any      `json:"default,omitempty"`
	Min     *int     `json:"min,omitempty"`
	Max     *int     `json:"max,omitempty"`
	Step    *int     `json:"step,omitempty"`
	Tooltip string   `json:"tooltip,omitempty"`
}

// Schema ist die Beschreibung eines Node-Typs fuer den Host.
type Schema struct {
	Name        string                                     `json:"name"`
	DisplayName string                                     `json:"display_name"`
	Category    string                                     `json:"category"`
	Description string                                     `json:"description"`
	Function    string                                     `json:"function"`
	Required    *orderedmap.OrderedMap[string, InputSpec] `json:"required"`
	ReturnTypes []string                                   `json:"return_types"`
}

// Inputs sind die vom Host gelieferten Argumente eines Node-Aufrufs.
type Inputs map[string]any

// ============================================================================
// Schema-Bausteine
// ============================================================================

func intPtr(v int) *int { return &v }

func tensorInput(typ string) InputSpec {
	return InputSpec{Type: typ}
}

func modelInput() InputSpec {
	return InputSpec{Type: TypeCombo, Options: taesd.KnownModels(), Default: taesd.DefaultModel}
}

func tileSizeInput(tooltip string) InputSpec {
	return InputSpec{
		Type:    TypeInt,
		Default: defaultTile,
		Min:     intPtr(64),
		Max:     intPtr(MaxResolution),
		Step:    intPtr(64),
		Tooltip: tooltip,
	}
}

func overlapInput(tooltip string) InputSpec {
	return InputSpec{
		Type:    TypeInt,
		Default: defaultOverlap,
		Min:     intPtr(0),
		Max:     intPtr(MaxResolution),
		Step:    intPtr(32),
		Tooltip: tooltip,
	}
}

// newInputs baut die geordnete Eingabeliste aus Name/Spec-Paaren
func newInputs(pairs ...orderedmap.Pair[string, InputSpec]) *orderedmap.OrderedMap[string, InputSpec] {
	m := orderedmap.New[string, InputSpec]()
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return m
}

func input(name string, spec InputSpec) orderedmap.Pair[string, InputSpec] {
	return orderedmap.Pair[string, InputSpec]{Key: name, Value: spec}
}

// InputNames gibt die Eingabe-Namen in Schema-Reihenfolge zurueck.
func (s Schema) InputNames() []string {
	names := make([]string, 0, s.Required.Len())
	for pair := s.Required.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// ============================================================================
// Validierung
// ============================================================================

// Validate prueft in gegen das Schema und gibt eine normalisierte Kopie zurueck;
// in selbst bleibt unveraendert. INT-Eingaben werden zu int, fehlende INT- und
// COMBO-Eingaben erhalten ihren Default.
func (s Schema) Validate(in Inputs) (Inputs, error) {
	in = maps.Clone(in)
	if in == nil {
		in = make(Inputs)
	}

	for pair := s.Required.Oldest(); pair != nil; pair = pair.Next() {
		name, spec := pair.Key, pair.Value

		v, ok := in[name]
		if !ok || v == nil {
			if spec.Default == nil {
				return nil, invalidInput(s.Name, name, "required input missing")
			}
			in[name] = spec.Default
			continue
		}

		switch spec.Type {
		case TypeImage:
			if _, ok := v.(tensor.Tensor); !ok {
				return nil, invalidInput(s.Name, name, "expected %s tensor, got %T", spec.Type, v)
			}
		case TypeLatent:
			latent, ok := asLatent(v)
			if !ok || latent.Samples == nil {
				return nil, invalidInput(s.Name, name, "expected %s with samples, got %T", spec.Type, v)
			}
			in[name] = latent
		case TypeCombo:
			str, ok := v.(string)
			if !ok {
				return nil, invalidInput(s.Name, name, "expected string, got %T", v)
			}
			if !slices.Contains(spec.Options, str) {
				return nil, invalidInput(s.Name, name, "value '%s' not in %v", str, spec.Options)
			}
		case TypeInt:
			n, ok := asInt(v)
			if !ok {
				return nil, invalidInput(s.Name, name, "expected integer, got %v (%T)", v, v)
			}
			if spec.Min != nil && n < *spec.Min {
				return nil, invalidInput(s.Name, name, "value %d smaller than min of %d", n, *spec.Min)
			}
			if spec.Max != nil && n > *spec.Max {
				return nil, invalidInput(s.Name, name, "value %d bigger than max of %d", n, *spec.Max)
			}
			in[name] = n
		}
	}
	return in, nil
}

// asLatent akzeptiert Latent, *Latent und {"samples": tensor}
func asLatent(v any) (Latent, bool) {
	switch l := v.(type) {
	case Latent:
		return l, true
	case *Latent:
		if l == nil {
			return Latent{}, false
		}
		return *l, true
	case map[string]any:
		t, ok := l[InputSamples].(tensor.Tensor)
		return Latent{Samples: t}, ok
	}
	return Latent{}, false
}

// asInt akzeptiert Ganzzahlen sowie ganzzahlige float64 und json.Number
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
