// Package nodes stellt die vier TAESD Node-Typen fuer den Host bereit.
//
// MODUL: nodes
// ZWECK: Encode-, Decode- und gekachelte Varianten ueber gecachte VAE-Instanzen
// INPUT: Bild-Tensoren, Latents, Modell-Name, Tile-Parameter
// OUTPUT: Latent{Samples} oder Bild-Tensoren
// NEBENEFFEKTE: Erster Aufruf pro Modell laedt Gewichte ueber den Cache
// ABHAENGIGKEITEN: taesd (intern), pdevine/tensor
// HINWEISE: Keine Retries, Fehler werden unveraendert weitergereicht
package nodes

import (
	"context"

	"github.com/pdevine/tensor"

	"github.com/7blacky7/ollama-taesd/taesd"
)

// Node ist ein vom Host aufrufbarer Node-Typ.
type Node interface {
	Schema() Schema
	Execute(ctx context.Context, in Inputs) (any, error)
}

// VAESource liefert VAE-Instanzen pro Modell-Name. *taesd.Cache erfuellt es.
type VAESource interface {
	Get(ctx context.Context, model string) (taesd.VAE, error)
}

// ============================================================================
// EncodeTAESD
// ============================================================================

// EncodeTAESD kodiert ein Bild in den Latent-Raum.
type EncodeTAESD struct {
	vaes VAESource
}

func NewEncodeTAESD(vaes VAESource) *EncodeTAESD {
	return &EncodeTAESD{vaes: vaes}
}

func (n *EncodeTAESD) Schema() Schema {
	return Schema{
		Name:        "EncodeTAESD",
		DisplayName: "TAESD Encode",
		Category:    Category,
		Description: "Encodes an image into TAESD's latent space.",
		Function:    "encode",
		Required: newInputs(
			input(InputPixels, tensorInput(TypeImage)),
			input(InputModel, modelInput()),
		),
		ReturnTypes: []string{TypeLatent},
	}
}

func (n *EncodeTAESD) Execute(ctx context.Context, in Inputs) (any, error) {
	in, err := n.Schema().Validate(in)
	if err != nil {
		return nil, err
	}
	return n.Encode(ctx, in[InputPixels].(tensor.Tensor), in[InputModel].(string))
}

// Encode kuerzt pixels auf RGB und kodiert mit der VAE-Instanz von model.
func (n *EncodeTAESD) Encode(ctx context.Context, pixels tensor.Tensor, model string) (Latent, error) {
	vae, err := n.vaes.Get(ctx, model)
	if err != nil {
		return Latent{}, err
	}

	rgb, err := TruncateChannels(pixels)
	if err != nil {
		return Latent{}, err
	}

	samples, err := vae.Encode(rgb)
	if err != nil {
		return Latent{}, err
	}
	return Latent{Samples: samples}, nil
}

// ============================================================================
// DecodeTAESD
// ============================================================================

// DecodeTAESD dekodiert Latents zurueck in ein Bild.
type DecodeTAESD struct {
	vaes VAESource
}

func NewDecodeTAESD(vaes VAESource) *DecodeTAESD {
	return &DecodeTAESD{vaes: vaes}
}

func (n *DecodeTAESD) Schema() Schema {
	return Schema{
		Name:        "DecodeTAESD",
		DisplayName: "TAESD Decode",
		Category:    Category,
		Description: "Decodes latents from TAESD's latent space back to an image.",
		Function:    "decode",
		Required: newInputs(
			input(InputSamples, tensorInput(TypeLatent)),
			input(InputModel, modelInput()),
		),
		ReturnTypes: []string{TypeImage},
	}
}

func (n *DecodeTAESD) Execute(ctx context.Context, in Inputs) (any, error) {
	in, err := n.Schema().Validate(in)
	if err != nil {
		return nil, err
	}
	return n.Decode(ctx, in[InputSamples].(Latent), in[InputModel].(string))
}

func (n *DecodeTAESD) Decode(ctx context.Context, samples Latent, model string) (tensor.Tensor, error) {
	vae, err := n.vaes.Get(ctx, model)
	if err != nil {
		return nil, err
	}
	return vae.Decode(samples.Samples)
}

// ============================================================================
// EncodeTAESDTiled
// ============================================================================

// EncodeTAESDTiled kodiert gekachelt; Tile-Parameter bleiben in Pixel-Einheiten.
type EncodeTAESDTiled struct {
	vaes VAESource
}

func NewEncodeTAESDTiled(vaes VAESource) *EncodeTAESDTiled {
	return &EncodeTAESDTiled{vaes: vaes}
}

func (n *EncodeTAESDTiled) Schema() Schema {
	return Schema{
		Name:        "EncodeTAESDTiled",
		DisplayName: "TAESD Encode (Tiled)",
		Category:    Category,
		Description: "Encodes an image into TAESD's latent space using tiled processing.",
		Function:    "encode_tiled",
		Required: newInputs(
			input(InputPixels, tensorInput(TypeImage)),
			input(InputModel, modelInput()),
			input(InputTileSize, tileSizeInput("Tile size for encoding (in image pixels)")),
			input(InputOverlap, overlapInput("Overlap between tiles (in image pixels)")),
		),
		ReturnTypes: []string{TypeLatent},
	}
}

func (n *EncodeTAESDTiled) Execute(ctx context.Context, in Inputs) (any, error) {
	in, err := n.Schema().Validate(in)
	if err != nil {
		return nil, err
	}
	return n.Encode(ctx, in[InputPixels].(tensor.Tensor), in[InputModel].(string), in[InputTileSize].(int), in[InputOverlap].(int))
}

// Encode ruft EncodeTiled mit tileX = tileY = tileSize auf; overlap wird nicht geklemmt.
func (n *EncodeTAESDTiled) Encode(ctx context.Context, pixels tensor.Tensor, model string, tileSize, overlap int) (Latent, error) {
	vae, err := n.vaes.Get(ctx, model)
	if err != nil {
		return Latent{}, err
	}

	rgb, err := TruncateChannels(pixels)
	if err != nil {
		return Latent{}, err
	}

	samples, err := vae.EncodeTiled(rgb, tileSize, tileSize, overlap)
	if err != nil {
		return Latent{}, err
	}
	return Latent{Samples: samples}, nil
}

// ============================================================================
// DecodeTAESDTiled
// ============================================================================

// DecodeTAESDTiled dekodiert gekachelt mit Tile-Parametern in Latent-Einheiten.
type DecodeTAESDTiled struct {
	vaes VAESource
}

func NewDecodeTAESDTiled(vaes VAESource) *DecodeTAESDTiled {
	return &DecodeTAESDTiled{vaes: vaes}
}

func (n *DecodeTAESDTiled) Schema() Schema {
	return Schema{
		Name:        "DecodeTAESDTiled",
		DisplayName: "TAESD Decode (Tiled)",
		Category:    Category,
		Description: "Decodes latents from TAESD's latent space back to an image using tiled processing.",
		Function:    "decode_tiled",
		Required: newInputs(
			input(InputSamples, tensorInput(TypeLatent)),
			input(InputModel, modelInput()),
			input(InputTileSize, tileSizeInput("Tile size for decoding (image pixels, converted to latent space for VAE)")),
			input(InputOverlap, overlapInput("Overlap between tiles (image pixels, converted to latent space for VAE)")),
		),
		ReturnTypes: []string{TypeImage},
	}
}

func (n *DecodeTAESDTiled) Execute(ctx context.Context, in Inputs) (any, error) {
	in, err := n.Schema().Validate(in)
	if err != nil {
		return nil, err
	}
	return n.Decode(ctx, in[InputSamples].(Latent), in[InputModel].(string), in[InputTileSize].(int), in[InputOverlap].(int))
}

// Decode rechnet tileSize und overlap ueber den Kompressionsfaktor des VAE um.
func (n *DecodeTAESDTiled) Decode(ctx context.Context, samples Latent, model string, tileSize, overlap int) (tensor.Tensor, error) {
	vae, err := n.vaes.Get(ctx, model)
	if err != nil {
		return nil, err
	}

	tile, latentOverlap, err := LatentTiling(tileSize, overlap, vae.SpatialCompressionDecode())
	if err != nil {
		return nil, err
	}
	return vae.DecodeTiled(samples.Samples, tile, tile, latentOverlap)
}
