// reader.go - Einstiegspunkt fuer das Laden von Gewichtsdateien
// Hauptfunktionen: Load, Extensions
package weights

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/pdevine/tensor"
)

// ErrUnknownFormat wird zurueckgegeben wenn die Dateiendung keinem Reader zugeordnet ist.
var ErrUnknownFormat = errors.New("weights: unknown tensor format")

// Tensors ist eine flache Zuordnung Parametername -> Gewichtstensor.
type Tensors map[string]*tensor.Dense

// readers ordnet Dateiendungen einem Reader zu
var readers = map[string]func(string) (Tensors, error){
	".safetensors": parseSafetensors,
	".pt":          parseTorch,
	".bin":         parseTorch,
	".pth":         parseTorch,
	".ckpt":        parseTorch,
}

// Load liest eine Gewichtsdatei und gibt alle enthaltenen Tensoren zurueck.
// Es werden ausschliesslich Tensordaten deserialisiert.
func Load(path string) (Tensors, error) {
	ext := strings.ToLower(filepath.Ext(path))
	parseFn, ok := readers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(path))
	}

	ts, err := parseFn(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return ts, nil
}

// Supported prueft ob fuer die Dateiendung ein Reader existiert.
func Supported(ext string) bool {
	_, ok := readers[strings.ToLower(ext)]
	return ok
}

// denseF32 baut einen float32-Tensor; shape [] ergibt einen Skalar.
func denseF32(shape []int, data []float32) *tensor.Dense {
	if len(shape) == 0 {
		return tensor.New(tensor.FromScalar(data[0]))
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// maxElements begrenzt die Elementanzahl eines einzelnen Tensors
const maxElements = math.MaxInt32

// ErrInvalidShape wird zurueckgegeben wenn eine Shape negativ, leer oder zu gross ist.
var ErrInvalidShape = errors.New("weights: invalid tensor shape")

// numElements berechnet die Elementanzahl ohne Ueberlauf.
// Jede Dimension muss mindestens 1 sein.
func numElements(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 1 {
			return 0, fmt.Errorf("%w: %v", ErrInvalidShape, shape)
		}
		if n > maxElements/d {
			return 0, fmt.Errorf("%w: %v exceeds %d elements", ErrInvalidShape, shape, maxElements)
		}
		n *= d
	}
	return n, nil
}
