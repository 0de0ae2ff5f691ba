// MODUL: routes_taesd
// ZWECK: Handler fuer Node-Discovery, Modell-Status und Encode/Decode
// INPUT: HTTP-Requests (JSON, multipart)
// OUTPUT: JSON, safetensors-Latents, PNG-Bilder
// NEBENEFFEKTE: Laedt Modelle in den Cache
// ABHAENGIGKEITEN: gin-gonic/gin, wk8/go-ordered-map/v2, nodes, taesd, weights
// HINWEISE: Aufloesungsfehler -> 404, Eingabefehler -> 400, sonst 500

package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pdevine/tensor"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/7blacky7/ollama-taesd/envconfig"
	"github.com/7blacky7/ollama-taesd/nodes"
	"github.com/7blacky7/ollama-taesd/taesd"
	"github.com/7blacky7/ollama-taesd/weights"
)

// ============================================================================
// Fehlerbehandlung
// ============================================================================

// errorStatus bildet Fehler auf HTTP-Statuscodes ab
func errorStatus(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, taesd.ErrModelFileNotFound), errors.Is(err, nodes.ErrNodeNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, nodes.ErrInvalidInput), errors.Is(err, nodes.ErrUnsupportedImage):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, format string, args ...any) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf(format, args...)})
}

// ============================================================================
// Discovery
// ============================================================================

// ObjectInfoHandler verarbeitet GET /object_info und GET /object_info/:class
func (s *Server) ObjectInfoHandler(c *gin.Context) {
	if class := c.Param("class"); class != "" {
		node, ok := s.nodes.Get(class)
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("node '%s' not found", class)})
			return
		}
		c.JSON(http.StatusOK, gin.H{class: node.Schema()})
		return
	}

	info := orderedmap.New[string, nodes.Schema]()
	for _, schema := range s.nodes.Schemas() {
		info.Set(schema.Name, schema)
	}
	c.JSON(http.StatusOK, info)
}

// ============================================================================
// Modelle und Cache
// ============================================================================

// ListModelsHandler verarbeitet GET /api/taesd/models
func (s *Server) ListModelsHandler(c *gin.Context) {
	names := taesd.KnownModels()
	for _, name := range s.cache.Loaded() {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	resp := ListModelsResponse{Extensions: s.cache.Extensions()}
	for _, name := range names {
		scalars, known := taesd.LookupScalars(name)
		if !known {
			scalars = taesd.DefaultScalars
		}

		info := ModelInfo{
			Name:   name,
			Scale:  scalars.Scale,
			Shift:  scalars.Shift,
			Known:  known,
			Loaded: s.cache.IsLoaded(name),
		}

		paths, err := taesd.ResolveModel(s.cache.Locator(), name, s.cache.Extensions())
		if err == nil {
			info.Paths = &paths
			info.Available = true
		} else {
			info.Missing = err.Error()
		}

		resp.Models = append(resp.Models, info)
	}

	c.JSON(http.StatusOK, resp)
}

// BackendsHandler verarbeitet GET /api/taesd/backends
func (s *Server) BackendsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, BackendsResponse{Backends: taesd.Backends(), Selected: envconfig.Backend()})
}

// LoadHandler verarbeitet POST /api/taesd/load
func (s *Server) LoadHandler(c *gin.Context) {
	var req LoadRequest
	if err := c.ShouldBindJSON(&req); errors.Is(err, io.EOF) {
		badRequest(c, "missing request body")
		return
	} else if err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}

	if req.Model == "" {
		req.Model = taesd.DefaultModel
	}

	if _, err := s.cache.Get(c.Request.Context(), req.Model); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoadResponse{Model: req.Model, Loaded: true})
}

// ============================================================================
// Encode / Decode
// ============================================================================

// tileInputs uebernimmt tile_size und overlap aus dem Formular.
// Gibt false zurueck wenn kein tile_size gesetzt ist.
func tileInputs(c *gin.Context, in nodes.Inputs) (bool, error) {
	tile, ok := c.GetPostForm(nodes.InputTileSize)
	if !ok || tile == "" {
		return false, nil
	}

	n, err := strconv.Atoi(tile)
	if err != nil {
		return false, fmt.Errorf("%w: tile_size: %v", nodes.ErrInvalidInput, err)
	}
	in[nodes.InputTileSize] = n

	if overlap, ok := c.GetPostForm(nodes.InputOverlap); ok && overlap != "" {
		n, err := strconv.Atoi(overlap)
		if err != nil {
			return false, fmt.Errorf("%w: overlap: %v", nodes.ErrInvalidInput, err)
		}
		in[nodes.InputOverlap] = n
	}
	return true, nil
}

// formFile liest den Multipart-Eintrag name vollstaendig
func formFile(c *gin.Context, name string) ([]byte, error) {
	fh, err := c.FormFile(name)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: missing multipart file '%s'", nodes.ErrInvalidInput, name)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func (s *Server) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(envconfig.MaxUploadMB())<<20)
}

// EncodeHandler verarbeitet POST /api/taesd/encode
// Multipart: image (Datei), model, optional tile_size/overlap
func (s *Server) EncodeHandler(c *gin.Context) {
	s.limitBody(c)

	data, err := formFile(c, "image")
	if err != nil {
		abortWithError(c, err)
		return
	}

	pixels, format, err := nodes.ImageToTensor(bytes.NewReader(data), int(envconfig.MaxImagePixels()))
	if err != nil {
		abortWithError(c, err)
		return
	}

	in := nodes.Inputs{
		nodes.InputPixels: pixels,
		nodes.InputModel:  c.DefaultPostForm("model", taesd.DefaultModel),
	}
	tiled, err := tileInputs(c, in)
	if err != nil {
		abortWithError(c, err)
		return
	}

	class := "EncodeTAESD"
	if tiled {
		class = "EncodeTAESDTiled"
	}

	out, err := s.nodes.Execute(c.Request.Context(), class, in)
	if err != nil {
		abortWithError(c, err)
		return
	}

	latent, ok := out.(nodes.Latent)
	if !ok || latent.Samples == nil {
		abortWithError(c, fmt.Errorf("%s returned no latent samples (got %T)", class, out))
		return
	}

	samples, ok := tensor.Materialize(latent.Samples).(*tensor.Dense)
	if !ok {
		abortWithError(c, fmt.Errorf("unsupported latent tensor type %T", latent.Samples))
		return
	}

	var buf bytes.Buffer
	if err := weights.WriteSafetensors(&buf, weights.Tensors{nodes.InputSamples: samples}); err != nil {
		abortWithError(c, err)
		return
	}

	slog.Debug("encoded image", "node", class, "format", format, "shape", samples.Shape())
	c.Header("Content-Disposition", `attachment; filename="latent.safetensors"`)
	c.Data(http.StatusOK, "application/octet-stream", buf.Bytes())
}

// DecodeHandler verarbeitet POST /api/taesd/decode
// Multipart: latent (safetensors mit Tensor "samples"), model, optional tile_size/overlap
func (s *Server) DecodeHandler(c *gin.Context) {
	s.limitBody(c)

	data, err := formFile(c, "latent")
	if err != nil {
		abortWithError(c, err)
		return
	}

	ts, err := weights.ReadSafetensors(bytes.NewReader(data))
	if err != nil {
		badRequest(c, "invalid latent: %v", err)
		return
	}

	samples, ok := ts[nodes.InputSamples]
	if !ok {
		badRequest(c, "latent does not contain tensor '%s'", nodes.InputSamples)
		return
	}

	in := nodes.Inputs{
		nodes.InputSamples: nodes.Latent{Samples: samples},
		nodes.InputModel:   c.DefaultPostForm("model", taesd.DefaultModel),
	}
	tiled, err := tileInputs(c, in)
	if err != nil {
		abortWithError(c, err)
		return
	}

	class := "DecodeTAESD"
	if tiled {
		class = "DecodeTAESDTiled"
	}

	out, err := s.nodes.Execute(c.Request.Context(), class, in)
	if err != nil {
		abortWithError(c, err)
		return
	}

	pixels, ok := out.(tensor.Tensor)
	if !ok || pixels == nil {
		abortWithError(c, fmt.Errorf("%s returned no image tensor (got %T)", class, out))
		return
	}

	var buf bytes.Buffer
	if err := nodes.EncodePNG(&buf, pixels); err != nil {
		abortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
