package loader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// Write writes the state dict to a safetensors file at path.
func Write(path string, sd *StateDict, metadata map[string]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	if err := WriteTo(file, sd, metadata); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteTo writes the state dict in safetensors layout. Payloads follow
// the dict's insertion order, so a round trip through OpenReader and
// LoadStateDict preserves it. Only float32 tensors can be written.
func WriteTo(w io.Writer, sd *StateDict, metadata map[string]string) error {
	header := make(map[string]any)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}

	var offset int64
	for name, raw := range sd.All() {
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("%w: tensor %q has dtype %s, only float32 can be written",
				ErrUnsupportedDType, name, raw.DType())
		}
		size := int64(raw.ByteSize())
		header[name] = headerEntry{
			DType:       F32,
			Shape:       raw.Shape(),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header length: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for name, raw := range sd.All() {
		if _, err := w.Write(raw.Data()); err != nil {
			return fmt.Errorf("failed to write tensor %q: %w", name, err)
		}
	}
	return nil
}
