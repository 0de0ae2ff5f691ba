// MODUL: resolve_test
// ZWECK: Tests fuer Endungs-Suche, Dirs-Locator und Scale/Shift Tabelle
// INPUT: In-Memory Locator, temporaere Verzeichnisse
// OUTPUT: Testresultate
// NEBENEFFEKTE: Schreibt in t.TempDir()
// ABHAENGIGKEITEN: testing, go-cmp
// HINWEISE: Locator wird per LocatorFunc ersetzt

package taesd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// mapLocator simuliert ein Modellverzeichnis
func mapLocator(files ...string) Locator {
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f] = true
	}
	return LocatorFunc(func(name string) (string, bool) {
		if set[name] {
			return "/models/vae_approx/" + name, true
		}
		return "", false
	})
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  string
		found bool
	}{
		{"safetensors", []string{"taesd_encoder.safetensors"}, "/models/vae_approx/taesd_encoder.safetensors", true},
		{"nur pth", []string{"taesd_encoder.pth"}, "/models/vae_approx/taesd_encoder.pth", true},
		{"reihenfolge", []string{"taesd_encoder.pth", "taesd_encoder.pt", "taesd_encoder.safetensors"}, "/models/vae_approx/taesd_encoder.safetensors", true},
		{"pt vor bin", []string{"taesd_encoder.bin", "taesd_encoder.pt"}, "/models/vae_approx/taesd_encoder.pt", true},
		{"unbekannte endung", []string{"taesd_encoder.ckpt"}, "", false},
		{"leer", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve("taesd_encoder", Extensions, mapLocator(tt.files...))
			if ok != tt.found || got != tt.want {
				t.Errorf("Resolve() = (%q, %v), erwartet (%q, %v)", got, ok, tt.want, tt.found)
			}
		})
	}
}

func TestResolveModel(t *testing.T) {
	loc := mapLocator("taesdxl_encoder.bin", "taesdxl_decoder.pth", "taesdxl_decoder.safetensors")

	got, err := ResolveModel(loc, ModelTAESDXL, Extensions)
	if err != nil {
		t.Fatalf("ResolveModel() error = %v", err)
	}

	want := Paths{
		Encoder: "/models/vae_approx/taesdxl_encoder.bin",
		Decoder: "/models/vae_approx/taesdxl_decoder.safetensors",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Paths mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveModelMissing(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		missing []Role
	}{
		{"beide fehlen", nil, []Role{RoleEncoder, RoleDecoder}},
		{"encoder fehlt", []string{"taef1_decoder.pt"}, []Role{RoleEncoder}},
		{"decoder fehlt", []string{"taef1_encoder.pt"}, []Role{RoleDecoder}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveModel(mapLocator(tt.files...), ModelTAEF1, Extensions)
			if !errors.Is(err, ErrModelFileNotFound) {
				t.Fatalf("Fehler = %v, erwartet ErrModelFileNotFound", err)
			}

			var rerr *ResolutionError
			if !errors.As(err, &rerr) {
				t.Fatalf("Fehler ist kein *ResolutionError: %T", err)
			}
			if diff := cmp.Diff(tt.missing, rerr.Missing); diff != "" {
				t.Errorf("Missing mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(Extensions, rerr.Extensions); diff != "" {
				t.Errorf("Extensions mismatch (-want +got):\n%s", diff)
			}

			msg := err.Error()
			for _, role := range tt.missing {
				if !strings.Contains(msg, Basename(ModelTAEF1, role)) {
					t.Errorf("Meldung %q nennt %s nicht", msg, Basename(ModelTAEF1, role))
				}
			}
			for _, ext := range Extensions {
				if !strings.Contains(msg, ext) {
					t.Errorf("Meldung %q nennt Endung %s nicht", msg, ext)
				}
			}
		})
	}
}

func TestDirsFullPath(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()

	// Verzeichnis mit Dateinamen darf nicht treffen
	if err := os.Mkdir(filepath.Join(first, "taesd_decoder.pt"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(second, "taesd_decoder.pt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(first, "taesd_encoder.pt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dirs := Dirs{first, second}

	if p, ok := dirs.FullPath("taesd_decoder.pt"); !ok || p != filepath.Join(second, "taesd_decoder.pt") {
		t.Errorf("FullPath(decoder) = (%q, %v)", p, ok)
	}
	if p, ok := dirs.FullPath("taesd_encoder.pt"); !ok || p != filepath.Join(first, "taesd_encoder.pt") {
		t.Errorf("FullPath(encoder) = (%q, %v)", p, ok)
	}
	if _, ok := dirs.FullPath("../" + filepath.Base(second) + "/taesd_decoder.pt"); ok {
		t.Error("FullPath darf keine relativen Pfade aufloesen")
	}
	if _, ok := dirs.FullPath("missing.pt"); ok {
		t.Error("FullPath(missing) sollte false sein")
	}
}

func TestLookupScalars(t *testing.T) {
	tests := []struct {
		model string
		want  Scalars
		known bool
	}{
		{ModelTAESD, Scalars{0.18215, 0}, true},
		{ModelTAESDXL, Scalars{0.13025, 0}, true},
		{ModelTAESD3, Scalars{1.5305, 0.0609}, true},
		{ModelTAEF1, Scalars{0.3611, 0.1159}, true},
		{"unknownmodel", Scalars{0.18215, 0}, false},
	}

	for _, tt := range tests {
		got, ok := LookupScalars(tt.model)
		if got != tt.want || ok != tt.known {
			t.Errorf("LookupScalars(%q) = (%v, %v), erwartet (%v, %v)", tt.model, got, ok, tt.want, tt.known)
		}
		if IsKnown(tt.model) != tt.known {
			t.Errorf("IsKnown(%q) = %v", tt.model, !tt.known)
		}
	}

	if diff := cmp.Diff([]string{"taesd", "taesdxl", "taesd3", "taef1"}, KnownModels()); diff != "" {
		t.Errorf("KnownModels mismatch (-want +got):\n%s", diff)
	}
}
