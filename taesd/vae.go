// MODUL: vae
// ZWECK: Schnittstelle zur VAE-Implementierung des Hosts
// INPUT: State-Dict, Bild- und Latent-Tensoren
// OUTPUT: VAE Interface, Constructor-Typ
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: github.com/pdevine/tensor
// HINWEISE: Encode/Decode-Mathematik und Tiling liegen beim Host

package taesd

import "github.com/pdevine/tensor"

// VAE ist eine vom Host gelieferte Autoencoder-Instanz.
//
// Bild-Tensoren haben das Layout (batch, height, width, channel) mit Werten in
// [0, 1]. Latents sind opak und werden unveraendert durchgereicht.
type VAE interface {
	Encode(pixels tensor.Tensor) (tensor.Tensor, error)
	Decode(samples tensor.Tensor) (tensor.Tensor, error)

	// EncodeTiled arbeitet in Pixel-Einheiten.
	EncodeTiled(pixels tensor.Tensor, tileX, tileY, overlap int) (tensor.Tensor, error)

	// DecodeTiled arbeitet in Latent-Einheiten.
	DecodeTiled(samples tensor.Tensor, tileX, tileY, overlap int) (tensor.Tensor, error)

	// SpatialCompressionDecode ist das Verhaeltnis Pixel- zu Latent-Kantenlaenge.
	SpatialCompressionDecode() int

	// Validate meldet strukturell ungueltige Gewichte.
	Validate() error
}

// Constructor baut eine VAE-Instanz aus einem State-Dict.
type Constructor func(sd StateDict) (VAE, error)
