// reader_safetensors.go - Reader fuer das safetensors-Format
// Aufbau: 8 Byte Header-Laenge (little endian), JSON-Header, Tensordaten
package weights

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/d4l3k/go-bfloat16"
	"github.com/pdevine/tensor"
	"github.com/x448/float16"
)

// maxHeaderSize begrenzt den JSON-Header (100 MB wie die Referenzimplementierung)
const maxHeaderSize = 100 << 20

type safetensorMetadata struct {
	Type    string  `json:"dtype"`
	Shape   []int   `json:"shape"`
	Offsets []int64 `json:"data_offsets"`
}

func parseSafetensors(path string) (Tensors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadSafetensors(f)
}

// ReadSafetensors liest alle Tensoren aus r als float32.
func ReadSafetensors(r io.ReadSeeker) (Tensors, error) {
	var n int64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("header length: %w", err)
	}
	if n <= 0 || n > maxHeaderSize {
		return nil, fmt.Errorf("invalid header length %d", n)
	}

	header := make([]byte, n)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	var headers map[string]safetensorMetadata
	if err := json.Unmarshal(header, &headers); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	dataSize := end - 8 - n

	ts := make(Tensors, len(headers))
	for _, key := range slices.Sorted(maps.Keys(headers)) {
		value := headers[key]
		// __metadata__ hat keinen dtype
		if value.Type == "" {
			continue
		}
		if len(value.Offsets) != 2 || value.Offsets[0] < 0 || value.Offsets[1] < value.Offsets[0] || value.Offsets[1] > dataSize {
			return nil, fmt.Errorf("tensor %q: invalid data offsets %v", key, value.Offsets)
		}

		if _, err := r.Seek(8+n+value.Offsets[0], io.SeekStart); err != nil {
			return nil, err
		}

		data, err := decodeSafetensor(r, value)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", key, err)
		}

		ts[key] = denseF32(value.Shape, data)
	}

	return ts, nil
}

// decodeSafetensor liest die Rohdaten eines Tensors und konvertiert sie zu float32
func decodeSafetensor(r io.Reader, meta safetensorMetadata) ([]float32, error) {
	size := meta.Offsets[1] - meta.Offsets[0]
	count, err := numElements(meta.Shape)
	if err != nil {
		return nil, err
	}

	width, err := dtypeWidth(meta.Type)
	if err != nil {
		return nil, err
	}
	if size != int64(count)*int64(width) {
		return nil, fmt.Errorf("size %d does not match shape %v and dtype %s", size, meta.Shape, meta.Type)
	}

	f32s := make([]float32, count)
	switch meta.Type {
	case "F32":
		if err := binary.Read(r, binary.LittleEndian, f32s); err != nil {
			return nil, err
		}
	case "F16":
		u16s := make([]uint16, count)
		if err := binary.Read(r, binary.LittleEndian, u16s); err != nil {
			return nil, err
		}
		for i := range u16s {
			f32s[i] = float16.Frombits(u16s[i]).Float32()
		}
	case "BF16":
		u8s := make([]uint8, size)
		if _, err := io.ReadFull(r, u8s); err != nil {
			return nil, err
		}
		f32s = bfloat16.DecodeFloat32(u8s)
	case "F64":
		f64s := make([]float64, count)
		if err := binary.Read(r, binary.LittleEndian, f64s); err != nil {
			return nil, err
		}
		for i := range f64s {
			f32s[i] = float32(f64s[i])
		}
	}

	return f32s, nil
}

func dtypeWidth(dtype string) (int, error) {
	switch dtype {
	case "F16", "BF16":
		return 2, nil
	case "F32":
		return 4, nil
	case "F64":
		return 8, nil
	default:
		return 0, fmt.Errorf("unsupported data type: %s", dtype)
	}
}

// ============================================================================
// Writer
// ============================================================================

// WriteSafetensors schreibt float32-Tensoren im safetensors-Format.
// Die Reihenfolge der Tensoren ist nach Namen sortiert.
func WriteSafetensors(w io.Writer, ts Tensors) error {
	names := slices.Sorted(maps.Keys(ts))

	headers := make(map[string]safetensorMetadata, len(names))
	var offset int64
	for _, name := range names {
		t := ts[name]
		if t == nil {
			return fmt.Errorf("tensor %q is nil", name)
		}

		shape := []int(t.Shape())
		if t.IsScalar() {
			shape = []int{}
		}
		count, err := numElements(shape)
		if err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
		size := int64(count) * 4
		headers[name] = safetensorMetadata{
			Type:    "F32",
			Shape:   shape,
			Offsets: []int64{offset, offset + size},
		}
		offset += size
	}

	header, err := json.Marshal(headers)
	if err != nil {
		return err
	}
	// Header auf 8 Byte ausrichten
	if pad := len(header) % 8; pad != 0 {
		header = append(header, bytes.Repeat([]byte{' '}, 8-pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, int64(len(header))); err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}

	for _, name := range names {
		data, err := float32s(ts[name])
		if err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
		if err := binary.Write(w, binary.LittleEndian, data); err != nil {
			return err
		}
	}

	return nil
}

// float32s liefert die Daten eines Tensors als zusammenhaengenden float32-Slice
func float32s(t *tensor.Dense) ([]float32, error) {
	if t.IsScalar() {
		v, ok := t.ScalarValue().(float32)
		if !ok {
			return nil, errors.New("scalar is not float32")
		}
		return []float32{v}, nil
	}

	t = tensor.Materialize(t).(*tensor.Dense)
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("unsupported dtype %v", t.Dtype())
	}
	return data, nil
}
