// MODUL: statedict
// ZWECK: Encoder- und Decoder-Gewichte zu einem State-Dict zusammenfuehren
// INPUT: Locator, Modell-Name
// OUTPUT: StateDict mit taesd_encoder./taesd_decoder. Keys plus vae_scale/vae_shift
// NEBENEFFEKTE: Liest zwei Gewichtsdateien, schreibt Log-Zeilen
// ABHAENGIGKEITEN: weights (intern), pdevine/tensor, x/sync/errgroup
// HINWEISE: Encoder und Decoder werden parallel gelesen, Merge danach

package taesd

import (
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/pdevine/tensor"
	"golang.org/x/sync/errgroup"

	"github.com/7blacky7/ollama-taesd/weights"
)

const (
	KeyScale = "vae_scale"
	KeyShift = "vae_shift"
)

// StateDict ist die einzige Eingabe des VAE-Konstruktors.
type StateDict map[string]*tensor.Dense

// Keys gibt alle Schluessel sortiert zurueck.
func (sd StateDict) Keys() []string {
	return slices.Sorted(maps.Keys(sd))
}

// Scalar liest einen 0-dimensionalen float32-Eintrag.
func (sd StateDict) Scalar(key string) (float32, bool) {
	t, ok := sd[key]
	if !ok || t == nil || !t.IsScalar() {
		return 0, false
	}
	v, ok := t.ScalarValue().(float32)
	return v, ok
}

// WithPrefix gibt alle Eintraege einer Rolle ohne Praefix zurueck.
func (sd StateDict) WithPrefix(role Role) weights.Tensors {
	prefix := role.Prefix()
	out := make(weights.Tensors)
	for k, v := range sd {
		if name, ok := strings.CutPrefix(k, prefix); ok {
			out[name] = v
		}
	}
	return out
}

// merge uebernimmt ts unter dem Praefix der Rolle
func (sd StateDict) merge(role Role, ts weights.Tensors) {
	prefix := role.Prefix()
	for k, v := range ts {
		sd[prefix+k] = v
	}
}

// setScalars haengt vae_scale und vae_shift an
func (sd StateDict) setScalars(s Scalars) {
	sd[KeyScale] = tensor.New(tensor.FromScalar(s.Scale))
	sd[KeyShift] = tensor.New(tensor.FromScalar(s.Shift))
}

// LoadStateDict loest die Dateien von model auf und baut den State-Dict.
// Fehlende Dateien ergeben *ResolutionError, Lesefehler *ConstructionError.
func LoadStateDict(loc Locator, model string, exts []string) (StateDict, Paths, error) {
	paths, err := ResolveModel(loc, model, exts)
	if err != nil {
		return nil, paths, err
	}

	slog.Info("loading taesd encoder", "model", model, "path", paths.Encoder)
	slog.Info("loading taesd decoder", "model", model, "path", paths.Decoder)

	var enc, dec weights.Tensors
	var g errgroup.Group
	g.Go(func() (err error) {
		enc, err = weights.Load(paths.Encoder)
		return err
	})
	g.Go(func() (err error) {
		dec, err = weights.Load(paths.Decoder)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, paths, &ConstructionError{Model: model, Paths: paths, Extensions: slices.Clone(exts), Err: err}
	}

	sd := make(StateDict, len(enc)+len(dec)+2)
	sd.merge(RoleEncoder, enc)
	sd.merge(RoleDecoder, dec)
	sd.setScalars(ScalarsFor(model))

	return sd, paths, nil
}
