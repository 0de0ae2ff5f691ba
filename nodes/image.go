// MODUL: image
// ZWECK: Konvertierung zwischen Bilddateien und Bild-Tensoren
// INPUT: PNG/JPEG/WebP Bytes, Bild-Tensoren (batch, height, width, channel)
// OUTPUT: (1,H,W,3) float32 Tensor in [0,1], PNG-Bytes
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: golang.org/x/image/draw, golang.org/x/image/webp, pdevine/tensor
// HINWEISE: Alle Bilder werden ueber RGBA konvertiert, Alpha wird verworfen

package nodes

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	// Standard-Decoder registrieren
	_ "image/jpeg"

	"github.com/pdevine/tensor"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage wird bei unbekanntem Bildformat zurueckgegeben
var ErrUnsupportedImage = errors.New("unsupported image format")

// ImageToTensor dekodiert ein Bild zu einem (1,H,W,3) Tensor mit Werten in [0,1].
// Die Abmessungen werden vor dem Dekodieren aus dem Header gelesen; Bilder ueber
// MaxResolution pro Seite oder ueber maxPixels (falls > 0) ergeben ErrInvalidInput.
func ImageToTensor(r io.ReadSeeker, maxPixels int) (tensor.Tensor, string, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, "", err
	}

	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return nil, "", decodeError(err)
	}
	if err := checkImageSize(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, "", err
	}

	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, "", err
	}

	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", decodeError(err)
	}

	rgba := toRGBA(img)
	bounds := rgba.Bounds()
	h, w := bounds.Dy(), bounds.Dx()

	// HWC Layout, Batch 1
	data := make([]float32, h*w*rgbChannels)
	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := rgba.RGBAAt(x, y)
			data[idx] = float32(c.R) / 255.0
			data[idx+1] = float32(c.G) / 255.0
			data[idx+2] = float32(c.B) / 255.0
			idx += rgbChannels
		}
	}

	return tensor.New(tensor.WithShape(1, h, w, rgbChannels), tensor.WithBacking(data)), format, nil
}

func decodeError(err error) error {
	if errors.Is(err, image.ErrFormat) {
		return fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return fmt.Errorf("decode image: %w", err)
}

// checkImageSize prueft die Header-Abmessungen gegen die Grenzen
func checkImageSize(w, h, maxPixels int) error {
	switch {
	case w < 1 || h < 1:
		return fmt.Errorf("%w: empty image %dx%d", ErrInvalidInput, w, h)
	case w > MaxResolution || h > MaxResolution:
		return fmt.Errorf("%w: image %dx%d exceeds %d pixels per side", ErrInvalidInput, w, h, MaxResolution)
	case maxPixels > 0 && w*h > maxPixels:
		return fmt.Errorf("%w: image %dx%d exceeds %d pixels", ErrInvalidInput, w, h, maxPixels)
	}
	return nil
}

// toRGBA konvertiert ein beliebiges image.Image zu *image.RGBA
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

// TensorToImage wandelt Batch-Element index eines Bild-Tensors in ein RGBA-Bild.
// Ein Kanal wird als Graustufe gelesen, ab drei Kanaelen zaehlen die ersten drei.
func TensorToImage(t tensor.Tensor, index int) (*image.RGBA, error) {
	shape := t.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("%w: expected image tensor (batch, height, width, channel), got shape %v", ErrInvalidInput, shape)
	}

	b, h, w, c := shape[0], shape[1], shape[2], shape[3]
	if index < 0 || index >= b {
		return nil, fmt.Errorf("%w: batch index %d out of range [0, %d)", ErrInvalidInput, index, b)
	}
	if c != 1 && c < rgbChannels {
		return nil, fmt.Errorf("%w: unsupported channel count %d", ErrInvalidInput, c)
	}

	data, err := float32Data(t)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	base := index * h * w * c
	for y := range h {
		for x := range w {
			off := base + (y*w+x)*c
			r := toByte(data[off])
			g, bl := r, r
			if c >= rgbChannels {
				g, bl = toByte(data[off+1]), toByte(data[off+2])
			}
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: bl, A: 255})
		}
	}
	return img, nil
}

// EncodePNG schreibt Batch-Element 0 von t als PNG nach w.
func EncodePNG(w io.Writer, t tensor.Tensor) error {
	img, err := TensorToImage(t, 0)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// toByte klemmt v auf [0,1] und skaliert auf 0..255
func toByte(v float32) uint8 {
	v = min(max(v, 0), 1)
	return uint8(v*255 + 0.5)
}

// float32Data liefert die zusammenhaengenden float32-Daten von t
func float32Data(t tensor.Tensor) ([]float32, error) {
	dense, ok := tensor.Materialize(t).(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported tensor type %T", ErrInvalidInput, t)
	}

	data, ok := dense.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("%w: expected float32 tensor, got %v", ErrInvalidInput, dense.Dtype())
	}
	return data, nil
}
