// MODUL: latent
// ZWECK: Latent-Container und Kanal-Kuerzung fuer Bild-Tensoren
// INPUT: 4-D Bild-Tensoren (batch, height, width, channel)
// OUTPUT: Latent{Samples}, RGB-Tensoren
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: github.com/pdevine/tensor
// HINWEISE: Tensoren gehoeren dem Aufrufer und werden nur gelesen

package nodes

import (
	"fmt"

	"github.com/pdevine/tensor"
)

// Latent ist die Latent-Zuordnung mit dem einzigen Eintrag "samples".
type Latent struct {
	Samples tensor.Tensor `json:"samples"`
}

// rgbChannels ist die Kanalzahl nach der Kuerzung
const rgbChannels = 3

// TruncateChannels schneidet die Kanal-Dimension auf die ersten drei Kanaele.
// Tensoren mit hoechstens drei Kanaelen werden unveraendert zurueckgegeben.
func TruncateChannels(pixels tensor.Tensor) (tensor.Tensor, error) {
	if pixels == nil {
		return nil, fmt.Errorf("%w: image tensor is nil", ErrInvalidInput)
	}

	shape := pixels.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("%w: expected image tensor (batch, height, width, channel), got shape %v", ErrInvalidInput, shape)
	}
	if shape[3] <= rgbChannels {
		return pixels, nil
	}

	view, err := pixels.Slice(nil, nil, nil, tensor.S(0, rgbChannels))
	if err != nil {
		return nil, fmt.Errorf("truncate channels: %w", err)
	}
	return tensor.Materialize(view), nil
}
