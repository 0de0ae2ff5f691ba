// MODUL: cache_test
// ZWECK: Tests fuer State-Dict-Aufbau, Cache-Identitaet und Single-Flight
// INPUT: safetensors-Dateien in t.TempDir(), Fake-VAE
// OUTPUT: Testresultate
// NEBENEFFEKTE: Schreibt in t.TempDir()
// ABHAENGIGKEITEN: testing, weights (intern), pdevine/tensor
// HINWEISE: Der Fake-Konstruktor zaehlt Aufrufe atomar

package taesd

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pdevine/tensor"

	"github.com/7blacky7/ollama-taesd/weights"
)

// fakeVAE erfuellt das VAE Interface ohne Rechenlogik
type fakeVAE struct {
	sd          StateDict
	validateErr error
}

func (f *fakeVAE) Encode(p tensor.Tensor) (tensor.Tensor, error) { return p, nil }
func (f *fakeVAE) Decode(s tensor.Tensor) (tensor.Tensor, error) { return s, nil }
func (f *fakeVAE) EncodeTiled(p tensor.Tensor, _, _, _ int) (tensor.Tensor, error) {
	return p, nil
}
func (f *fakeVAE) DecodeTiled(s tensor.Tensor, _, _, _ int) (tensor.Tensor, error) {
	return s, nil
}
func (f *fakeVAE) SpatialCompressionDecode() int { return 8 }
func (f *fakeVAE) Validate() error               { return f.validateErr }

// writeWeights legt eine safetensors-Datei mit einem Tensor an
func writeWeights(t *testing.T, dir, name string, values ...float32) {
	t.Helper()

	var b bytes.Buffer
	ts := weights.Tensors{
		"layers.0.weight": tensor.New(tensor.WithShape(len(values)), tensor.WithBacking(values)),
	}
	if err := weights.WriteSafetensors(&b, ts); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeModel(t *testing.T, dir, model string) {
	t.Helper()
	writeWeights(t, dir, model+"_encoder.safetensors", 1, 2, 3)
	writeWeights(t, dir, model+"_decoder.safetensors", 4, 5)
}

// countingConstructor zaehlt Aufrufe und wartet optional auf release
func countingConstructor(calls *atomic.Int32, started chan<- struct{}, release <-chan struct{}) Constructor {
	var once sync.Once
	return func(sd StateDict) (VAE, error) {
		calls.Add(1)
		if started != nil {
			once.Do(func() { close(started) })
		}
		if release != nil {
			<-release
		}
		return &fakeVAE{sd: sd}, nil
	}
}

func TestLoadStateDict(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, ModelTAESD3)

	sd, paths, err := LoadStateDict(Dirs{dir}, ModelTAESD3, Extensions)
	if err != nil {
		t.Fatalf("LoadStateDict() error = %v", err)
	}

	if paths.Encoder != filepath.Join(dir, "taesd3_encoder.safetensors") {
		t.Errorf("Encoder-Pfad = %q", paths.Encoder)
	}

	wantKeys := []string{"taesd_decoder.layers.0.weight", "taesd_encoder.layers.0.weight", "vae_scale", "vae_shift"}
	if got := sd.Keys(); strings.Join(got, ",") != strings.Join(wantKeys, ",") {
		t.Errorf("Keys = %v, erwartet %v", got, wantKeys)
	}

	if v, ok := sd.Scalar(KeyScale); !ok || v != 1.5305 {
		t.Errorf("vae_scale = %v (%v), erwartet 1.5305", v, ok)
	}
	if v, ok := sd.Scalar(KeyShift); !ok || v != 0.0609 {
		t.Errorf("vae_shift = %v (%v), erwartet 0.0609", v, ok)
	}

	enc := sd.WithPrefix(RoleEncoder)
	if len(enc) != 1 || enc["layers.0.weight"] == nil {
		t.Errorf("WithPrefix(encoder) = %v", enc)
	}
}

func TestLoadStateDictUnknownModel(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "unknownmodel")

	var calls atomic.Int32
	c := NewCache(Dirs{dir}, countingConstructor(&calls, nil, nil))

	vae, err := c.Get(context.Background(), "unknownmodel")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	sd := vae.(*fakeVAE).sd
	if v, _ := sd.Scalar(KeyScale); v != 0.18215 {
		t.Errorf("vae_scale = %v, erwartet 0.18215", v)
	}
	if v, _ := sd.Scalar(KeyShift); v != 0 {
		t.Errorf("vae_shift = %v, erwartet 0", v)
	}
}

func TestCacheIdentity(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, ModelTAESD)

	var calls atomic.Int32
	c := NewCache(Dirs{dir}, countingConstructor(&calls, nil, nil))

	first, err := c.Get(context.Background(), ModelTAESD)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	second, err := c.Get(context.Background(), ModelTAESD)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if first != second {
		t.Error("zweiter Aufruf liefert andere Instanz")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("Konstruktor %d mal aufgerufen, erwartet 1", n)
	}
	if !c.IsLoaded(ModelTAESD) || len(c.Loaded()) != 1 {
		t.Errorf("Loaded = %v", c.Loaded())
	}
}

func TestCacheSingleFlight(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, ModelTAESDXL)

	var calls atomic.Int32
	release := make(chan struct{})
	c := NewCache(Dirs{dir}, countingConstructor(&calls, nil, release))

	const n = 8
	results := make([]VAE, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vae, err := c.Get(context.Background(), ModelTAESDXL)
			if err != nil {
				t.Errorf("Get() error = %v", err)
			}
			results[i] = vae
		}()
	}

	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("Konstruktor %d mal aufgerufen, erwartet 1", got)
	}
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("Instanz %d unterscheidet sich", i)
		}
	}
}

func TestCacheContextCanceled(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, ModelTAEF1)

	var calls atomic.Int32
	started, release := make(chan struct{}), make(chan struct{})
	c := NewCache(Dirs{dir}, countingConstructor(&calls, started, release))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	if _, err := c.Get(ctx, ModelTAEF1); !errors.Is(err, context.Canceled) {
		t.Fatalf("Fehler = %v, erwartet context.Canceled", err)
	}

	close(release)
	if _, err := c.Get(context.Background(), ModelTAEF1); err != nil {
		t.Fatalf("Get() nach Abbruch error = %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Konstruktor %d mal aufgerufen, erwartet 1", got)
	}
}

func TestCacheFailureNotCached(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(Dirs{dir}, countingConstructor(new(atomic.Int32), nil, nil))

	// Dateien fehlen
	_, err := c.Get(context.Background(), ModelTAESD)
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("Fehler = %v, erwartet *ResolutionError", err)
	}
	if c.IsLoaded(ModelTAESD) {
		t.Fatal("fehlgeschlagener Ladevorgang wurde gecacht")
	}

	// Danach vorhanden
	writeModel(t, dir, ModelTAESD)
	if _, err := c.Get(context.Background(), ModelTAESD); err != nil {
		t.Fatalf("Get() nach Anlegen der Dateien error = %v", err)
	}
}

func TestCacheConstructionError(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, ModelTAESD)

	invalid := errors.New("missing decoder weights")
	fail := true
	c := NewCache(Dirs{dir}, func(sd StateDict) (VAE, error) {
		if fail {
			return &fakeVAE{validateErr: invalid}, nil
		}
		return &fakeVAE{sd: sd}, nil
	})

	_, err := c.Get(context.Background(), ModelTAESD)
	if !errors.Is(err, invalid) {
		t.Fatalf("Fehler = %v, erwartet gewrappten Validierungsfehler", err)
	}

	var cerr *ConstructionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Fehler ist kein *ConstructionError: %T", err)
	}
	if cerr.Model != ModelTAESD || cerr.Paths.Decoder != filepath.Join(dir, "taesd_decoder.safetensors") {
		t.Errorf("ConstructionError = %+v", cerr)
	}
	if !strings.Contains(err.Error(), "taesd_encoder") {
		t.Errorf("Meldung %q nennt Basename nicht", err)
	}

	fail = false
	if _, err := c.Get(context.Background(), ModelTAESD); err != nil {
		t.Fatalf("Retry error = %v", err)
	}
}

// rawHeader baut eine safetensors-Datei aus einem JSON-Header ohne Daten
func rawHeader(header string) []byte {
	b := binary.LittleEndian.AppendUint64(nil, uint64(len(header)))
	return append(b, header...)
}

func TestCacheCorruptWeights(t *testing.T) {
	tests := []struct {
		name    string
		decoder []byte
	}{
		{"garbage", []byte("garbage")},
		{"negative dimension", rawHeader(`{"x":{"dtype":"F32","shape":[-2,-2],"data_offsets":[0,16]}}`)},
		{"overflowing shape", rawHeader(`{"x":{"dtype":"F32","shape":[4611686018427387904],"data_offsets":[0,0]}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeWeights(t, dir, "taesd_encoder.safetensors", 1)
			if err := os.WriteFile(filepath.Join(dir, "taesd_decoder.safetensors"), tt.decoder, 0o644); err != nil {
				t.Fatal(err)
			}

			var calls atomic.Int32
			c := NewCache(Dirs{dir}, countingConstructor(&calls, nil, nil))

			_, err := c.Get(context.Background(), ModelTAESD)
			var cerr *ConstructionError
			if !errors.As(err, &cerr) {
				t.Fatalf("Fehler = %v, erwartet *ConstructionError", err)
			}
			if calls.Load() != 0 {
				t.Error("Konstruktor trotz Lesefehler aufgerufen")
			}
			if c.IsLoaded(ModelTAESD) {
				t.Error("fehlgeschlagenes Modell im Cache")
			}
		})
	}
}

func TestCacheConstructorPanic(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, ModelTAESD)

	c := NewCache(Dirs{dir}, func(StateDict) (VAE, error) {
		panic("layer mismatch")
	})

	_, err := c.Get(context.Background(), ModelTAESD)
	var cerr *ConstructionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Fehler = %v, erwartet *ConstructionError", err)
	}
	if !strings.Contains(err.Error(), "layer mismatch") {
		t.Errorf("Fehler = %v, erwartet Panic-Text", err)
	}
}

func TestCacheNoBackend(t *testing.T) {
	c := NewCache(Dirs{t.TempDir()}, nil)
	if _, err := c.Get(context.Background(), ModelTAESD); !errors.Is(err, ErrBackendNotRegistered) {
		t.Errorf("Fehler = %v, erwartet ErrBackendNotRegistered", err)
	}
}

func TestCacheWithExtensions(t *testing.T) {
	c := NewCache(Dirs{}, nil, WithExtensions(".pt"))
	if got := c.Extensions(); len(got) != 1 || got[0] != ".pt" {
		t.Errorf("Extensions = %v", got)
	}
}

func TestBackendRegistry(t *testing.T) {
	r := NewBackendRegistry()
	if _, err := r.Get("cpu"); !errors.Is(err, ErrBackendNotRegistered) {
		t.Errorf("Fehler = %v, erwartet ErrBackendNotRegistered", err)
	}

	r.Register("cpu", func(StateDict) (VAE, error) { return &fakeVAE{}, nil })
	r.Register("cuda", func(StateDict) (VAE, error) { return &fakeVAE{}, nil })

	if _, err := r.Get("cpu"); err != nil {
		t.Errorf("Get(cpu) error = %v", err)
	}
	if got := r.List(); strings.Join(got, ",") != "cpu,cuda" {
		t.Errorf("List = %v", got)
	}
}
