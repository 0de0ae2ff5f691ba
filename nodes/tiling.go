// MODUL: tiling
// ZWECK: Umrechnung der Tile-Parameter von Pixel- in Latent-Einheiten
// INPUT: tile_size, overlap (Pixel), Kompressionsfaktor des VAE
// OUTPUT: Latent-Tile und Latent-Overlap
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: fmt (stdlib)
// HINWEISE: Nur der Decode-Pfad klemmt den Overlap, Encode reicht ihn durch

package nodes

import "fmt"

// ClampOverlap begrenzt overlap auf tileSize/4 wenn tileSize < overlap*4.
func ClampOverlap(tileSize, overlap int) int {
	if tileSize < overlap*4 {
		return tileSize / 4
	}
	return overlap
}

// LatentTiling rechnet tileSize und overlap fuer das gekachelte Dekodieren um.
func LatentTiling(tileSize, overlap, factor int) (tile, latentOverlap int, err error) {
	if factor <= 0 {
		return 0, 0, fmt.Errorf("vae reported invalid spatial compression factor %d", factor)
	}

	overlap = ClampOverlap(tileSize, overlap)
	return max(1, tileSize/factor), max(0, overlap/factor), nil
}
