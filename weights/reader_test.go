// reader_test.go - Tests fuer safetensors Reader/Writer und Torch-Hilfsfunktionen
package weights

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pdevine/tensor"
	"github.com/x448/float16"
)

func writeFile(t *testing.T, name string, ts Tensors) string {
	t.Helper()

	var b bytes.Buffer
	if err := WriteSafetensors(&b, ts); err != nil {
		t.Fatalf("WriteSafetensors: %v", err)
	}

	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSafetensorsRoundTrip(t *testing.T) {
	in := Tensors{
		"layers.0.weight": tensor.New(tensor.WithShape(2, 3), tensor.WithBacking([]float32{1, 2, 3, 4, 5, 6})),
		"layers.0.bias":   tensor.New(tensor.WithShape(2), tensor.WithBacking([]float32{-1, 0.5})),
		"scale":           tensor.New(tensor.FromScalar(float32(0.18215))),
	}

	out, err := Load(writeFile(t, "model.safetensors", in))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("Anzahl Tensoren = %d, erwartet %d", len(out), len(in))
	}

	for name, want := range in {
		got, ok := out[name]
		if !ok {
			t.Errorf("Tensor %q fehlt", name)
			continue
		}

		if want.IsScalar() {
			if !got.IsScalar() {
				t.Errorf("%s: erwartet Skalar, Shape %v", name, got.Shape())
			}
			if got.ScalarValue() != want.ScalarValue() {
				t.Errorf("%s = %v, erwartet %v", name, got.ScalarValue(), want.ScalarValue())
			}
			continue
		}

		if diff := cmp.Diff([]int(want.Shape()), []int(got.Shape())); diff != "" {
			t.Errorf("%s Shape mismatch (-want +got):\n%s", name, diff)
		}
		if diff := cmp.Diff(want.Data(), got.Data()); diff != "" {
			t.Errorf("%s Daten mismatch (-want +got):\n%s", name, diff)
		}
	}
}

// rawSafetensors baut eine Datei mit einem einzelnen Tensor aus Rohbytes
func rawSafetensors(t *testing.T, dtype string, shape []int, data []byte) []byte {
	t.Helper()

	header, err := json.Marshal(map[string]any{
		"__metadata__": map[string]string{"format": "pt"},
		"x":            map[string]any{"dtype": dtype, "shape": shape, "data_offsets": []int{0, len(data)}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, int64(len(header)))
	b.Write(header)
	b.Write(data)
	return b.Bytes()
}

func TestSafetensorsHalfPrecision(t *testing.T) {
	want := []float32{1, -2, 0.5, 0}

	t.Run("F16", func(t *testing.T) {
		var data bytes.Buffer
		for _, v := range want {
			binary.Write(&data, binary.LittleEndian, float16.Fromfloat32(v).Bits())
		}

		ts, err := ReadSafetensors(bytes.NewReader(rawSafetensors(t, "F16", []int{2, 2}, data.Bytes())))
		if err != nil {
			t.Fatalf("ReadSafetensors: %v", err)
		}
		if diff := cmp.Diff(want, ts["x"].Data()); diff != "" {
			t.Errorf("F16 mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("BF16", func(t *testing.T) {
		// bfloat16 entspricht den oberen 16 Bit von float32
		var data bytes.Buffer
		for _, v := range want {
			var f32 bytes.Buffer
			binary.Write(&f32, binary.LittleEndian, v)
			data.Write(f32.Bytes()[2:])
		}

		ts, err := ReadSafetensors(bytes.NewReader(rawSafetensors(t, "BF16", []int{4}, data.Bytes())))
		if err != nil {
			t.Fatalf("ReadSafetensors: %v", err)
		}
		if diff := cmp.Diff(want, ts["x"].Data()); diff != "" {
			t.Errorf("BF16 mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSafetensorsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"leer", nil},
		{"header zu gross", binary.LittleEndian.AppendUint64(nil, 1<<40)},
		{"kaputtes json", append(binary.LittleEndian.AppendUint64(nil, 4), []byte("{{{{")...)},
		{"falsche groesse", rawSafetensors(t, "F32", []int{3}, make([]byte, 8))},
		{"unbekannter dtype", rawSafetensors(t, "I8", []int{4}, make([]byte, 4))},
		{"negative dimension", rawSafetensors(t, "F32", []int{-2, -2}, make([]byte, 16))},
		{"ueberlaufende shape", rawSafetensors(t, "F32", []int{4611686018427387904}, nil)},
		{"null dimension", rawSafetensors(t, "F32", []int{0, 4}, nil)},
		{"offsets hinter dateiende", rawHeader(t, `{"x":{"dtype":"F32","shape":[4],"data_offsets":[0,16]}}`)},
		{"negativer offset", rawHeader(t, `{"x":{"dtype":"F32","shape":[1],"data_offsets":[-4,0]}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadSafetensors(bytes.NewReader(tt.data)); err == nil {
				t.Error("Erwartete Fehler")
			}
		})
	}
}

// rawHeader baut eine Datei nur aus dem JSON-Header
func rawHeader(t *testing.T, header string) []byte {
	t.Helper()
	return append(binary.LittleEndian.AppendUint64(nil, uint64(len(header))), header...)
}

func TestNumElements(t *testing.T) {
	tests := []struct {
		shape []int
		want  int
		err   bool
	}{
		{nil, 1, false},
		{[]int{64, 3, 3, 3}, 1728, false},
		{[]int{-1}, 0, true},
		{[]int{0}, 0, true},
		{[]int{1 << 20, 1 << 20}, 0, true},
		{[]int{4611686018427387904}, 0, true},
	}

	for _, tt := range tests {
		got, err := numElements(tt.shape)
		if (err != nil) != tt.err {
			t.Errorf("numElements(%v) error = %v, erwartet Fehler %v", tt.shape, err, tt.err)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidShape) {
			t.Errorf("numElements(%v) error = %v, erwartet ErrInvalidShape", tt.shape, err)
		}
		if got != tt.want {
			t.Errorf("numElements(%v) = %d, erwartet %d", tt.shape, got, tt.want)
		}
	}
}

func TestLoadUnknownFormat(t *testing.T) {
	p := filepath.Join(t.TempDir(), "model.onnx")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(p)
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Fehler = %v, erwartet ErrUnknownFormat", err)
	}
}

func TestSupported(t *testing.T) {
	for _, ext := range []string{".safetensors", ".pt", ".bin", ".pth", ".PTH"} {
		if !Supported(ext) {
			t.Errorf("Supported(%q) = false", ext)
		}
	}
	if Supported(".gguf") {
		t.Error("Supported(.gguf) = true")
	}
}

func TestContiguous(t *testing.T) {
	tests := []struct {
		size, stride []int
		want         bool
	}{
		{nil, nil, true},
		{[]int{4}, []int{1}, true},
		{[]int{2, 3}, []int{3, 1}, true},
		{[]int{2, 3}, []int{1, 2}, false},
		{[]int{64, 3, 3, 3}, []int{27, 9, 3, 1}, true},
		{[]int{1, 3}, []int{99, 1}, true},
		{[]int{2, 3}, []int{3}, false},
	}

	for _, tt := range tests {
		if got := contiguous(tt.size, tt.stride); got != tt.want {
			t.Errorf("contiguous(%v, %v) = %v, erwartet %v", tt.size, tt.stride, got, tt.want)
		}
	}
}
