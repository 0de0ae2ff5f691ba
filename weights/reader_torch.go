// reader_torch.go - Reader fuer PyTorch Checkpoints (.pt, .bin, .pth, .ckpt)
// gopickle loest nur bekannte Klassen auf, beliebiger Code wird nicht ausgefuehrt
package weights

import (
	"errors"
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

// ErrNotStateDict wird zurueckgegeben wenn der Checkpoint kein Dictionary enthaelt
var ErrNotStateDict = errors.New("weights: checkpoint does not contain a state dict")

// ErrCorruptCheckpoint wird zurueckgegeben wenn der Pickle-Stream nicht lesbar ist
var ErrCorruptCheckpoint = errors.New("weights: corrupt checkpoint")

func parseTorch(path string) (Tensors, error) {
	pt, err := loadPickle(path)
	if err != nil {
		return nil, err
	}

	entries, err := dictEntries(pt)
	if err != nil {
		return nil, err
	}

	// Lightning/Trainer-Checkpoints verschachteln die Gewichte
	if nested, ok := lookup(entries, "state_dict"); ok {
		if entries, err = dictEntries(nested); err != nil {
			return nil, err
		}
	}

	ts := make(Tensors, len(entries))
	for _, e := range entries {
		name, ok := e.key.(string)
		if !ok {
			continue
		}

		t, ok := e.value.(*pytorch.Tensor)
		if !ok {
			// Metadaten wie _metadata oder Versionszaehler ueberspringen
			continue
		}

		data, err := torchData(t)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		ts[name] = denseF32(t.Size, data)
	}

	return ts, nil
}

// loadPickle ruft gopickle auf; Panics bei kaputten Dateien werden zu Fehlern
func loadPickle(path string) (pt any, err error) {
	defer func() {
		if r := recover(); r != nil {
			pt, err = nil, fmt.Errorf("%w: %v", ErrCorruptCheckpoint, r)
		}
	}()

	return pytorch.Load(path)
}

type dictEntry struct {
	key, value any
}

// dictEntries liefert die Eintraege von Dict oder OrderedDict in Einfuegereihenfolge
func dictEntries(v any) ([]dictEntry, error) {
	switch d := v.(type) {
	case *types.Dict:
		var entries []dictEntry
		for _, e := range *d {
			entries = append(entries, dictEntry{e.Key, e.Value})
		}
		return entries, nil
	case *types.OrderedDict:
		var entries []dictEntry
		for el := d.List.Front(); el != nil; el = el.Next() {
			e := el.Value.(*types.OrderedDictEntry)
			entries = append(entries, dictEntry{e.Key, e.Value})
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNotStateDict, v)
	}
}

func lookup(entries []dictEntry, key string) (any, bool) {
	for _, e := range entries {
		if k, ok := e.key.(string); ok && k == key {
			return e.value, true
		}
	}
	return nil, false
}

// torchData kopiert die Daten eines zusammenhaengenden Tensors als float32
func torchData(t *pytorch.Tensor) ([]float32, error) {
	count, err := numElements(t.Size)
	if err != nil {
		return nil, err
	}
	if !contiguous(t.Size, t.Stride) {
		return nil, fmt.Errorf("non-contiguous tensor with size %v and stride %v", t.Size, t.Stride)
	}
	if t.StorageOffset < 0 {
		return nil, errStorageBounds
	}

	start, end := t.StorageOffset, t.StorageOffset+count

	switch s := t.Source.(type) {
	case *pytorch.FloatStorage:
		if end > len(s.Data) {
			return nil, errStorageBounds
		}
		return append([]float32(nil), s.Data[start:end]...), nil
	case *pytorch.HalfStorage:
		if end > len(s.Data) {
			return nil, errStorageBounds
		}
		return append([]float32(nil), s.Data[start:end]...), nil
	case *pytorch.BFloat16Storage:
		if end > len(s.Data) {
			return nil, errStorageBounds
		}
		return append([]float32(nil), s.Data[start:end]...), nil
	case *pytorch.DoubleStorage:
		if end > len(s.Data) {
			return nil, errStorageBounds
		}
		f32s := make([]float32, count)
		for i, v := range s.Data[start:end] {
			f32s[i] = float32(v)
		}
		return f32s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %T", t.Source)
	}
}

var errStorageBounds = errors.New("tensor exceeds storage bounds")

// contiguous prueft auf row-major Layout; Dimensionen der Groesse 1 sind beliebig
func contiguous(size, stride []int) bool {
	if len(stride) != len(size) {
		return len(size) == 0
	}

	expected := 1
	for i := len(size) - 1; i >= 0; i-- {
		if size[i] != 1 && stride[i] != expected {
			return false
		}
		expected *= size[i]
	}
	return true
}
