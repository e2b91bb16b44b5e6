package loader

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
	"golang.org/x/sync/errgroup"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// Safetensors layout:
// [8 bytes: header length (uint64 LE)]
// [header length bytes: JSON header]
// [tensor payloads: raw bytes]

// MaxHeaderSize bounds the JSON header length accepted from a file.
const MaxHeaderSize = 100 * 1024 * 1024 // 100MB

// DType identifies a tensor element type in a safetensors header.
type DType string

// Element types this package can materialize. Other dtype strings parse
// fine and show up in Tensors, but LoadStateDict rejects them.
const (
	F32  DType = "F32"
	F16  DType = "F16"
	BF16 DType = "BF16"
)

// elemSize returns the payload element width in bytes, or 0 when the
// dtype cannot be materialized.
func (d DType) elemSize() int {
	switch d {
	case F32:
		return 4
	case F16, BF16:
		return 2
	default:
		return 0
	}
}

// Common loader errors.
var (
	ErrHeaderTooLarge   = errors.New("header exceeds maximum size")
	ErrMalformedHeader  = errors.New("malformed safetensors header")
	ErrUnsupportedDType = errors.New("unsupported tensor dtype")
)

// LayoutError reports a tensor whose declared payload region is
// inconsistent with the file.
type LayoutError struct {
	Type    string // Kind of violation (e.g. "offset_overlap", "out_of_bounds")
	Tensor  string // Primary tensor name involved
	Tensor2 string // Secondary tensor name (for overlap errors)
	Details string // Additional details
}

// Error implements the error interface.
func (e *LayoutError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%s: tensors %q and %q: %s", e.Type, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// TensorInfo describes one tensor entry in a safetensors header.
type TensorInfo struct {
	Name        string
	DType       DType
	Shape       tensor.Shape
	DataOffsets [2]int64 // [begin, end) relative to the data section
}

// ByteSize returns the payload length in bytes.
func (ti TensorInfo) ByteSize() int64 {
	return ti.DataOffsets[1] - ti.DataOffsets[0]
}

// headerEntry is the JSON form of a tensor entry.
type headerEntry struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// File is an open safetensors checkpoint. The header is parsed and
// validated up front; payloads are read on demand by LoadStateDict.
type File struct {
	r          io.ReaderAt
	closer     io.Closer
	metadata   map[string]string
	tensors    []TensorInfo // ordered by payload offset
	dataOffset int64
	dataSize   int64
}

// Open opens a safetensors file on disk.
func Open(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat checkpoint: %w", err)
	}

	f, err := OpenReader(file, info.Size())
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	f.closer = file
	return f, nil
}

// OpenReader parses a safetensors stream of the given total size.
// Close on the returned File is a no-op; the caller owns r.
func OpenReader(r io.ReaderAt, size int64) (*File, error) {
	if size < 8 {
		return nil, fmt.Errorf("%w: file shorter than the 8-byte length prefix", ErrMalformedHeader)
	}

	prefix := make([]byte, 8)
	if _, err := r.ReadAt(prefix, 0); err != nil {
		return nil, fmt.Errorf("failed to read header length: %w", err)
	}
	headerLen := binary.LittleEndian.Uint64(prefix)

	if headerLen > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerLen)
	}
	if int64(headerLen) > size-8 {
		return nil, fmt.Errorf("%w: header length %d exceeds file size %d", ErrMalformedHeader, headerLen, size)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := r.ReadAt(headerBytes, 8); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	f := &File{
		r:          r,
		dataOffset: 8 + int64(headerLen),
		dataSize:   size - 8 - int64(headerLen),
	}
	if err := f.parseHeader(headerBytes); err != nil {
		return nil, err
	}
	return f, nil
}

// parseHeader decodes the JSON header and validates the payload layout.
func (f *File) parseHeader(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	for name, raw := range rawMap {
		if name == "__metadata__" {
			if err := json.Unmarshal(raw, &f.metadata); err != nil {
				return fmt.Errorf("%w: metadata: %v", ErrMalformedHeader, err)
			}
			continue
		}

		var entry headerEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("%w: tensor %q: %v", ErrMalformedHeader, name, err)
		}
		shape := tensor.Shape(entry.Shape)
		if err := shape.Validate(); err != nil {
			return fmt.Errorf("%w: tensor %q: %v", ErrMalformedHeader, name, err)
		}
		f.tensors = append(f.tensors, TensorInfo{
			Name:        name,
			DType:       entry.DType,
			Shape:       shape,
			DataOffsets: entry.DataOffsets,
		})
	}

	// Payload order is the canonical tensor order for everything downstream.
	sort.Slice(f.tensors, func(i, j int) bool {
		return f.tensors[i].DataOffsets[0] < f.tensors[j].DataOffsets[0]
	})

	return f.validateLayout()
}

// validateLayout checks every declared payload region against the data
// section. Overlap detection relies on f.tensors being sorted by begin
// offset.
func (f *File) validateLayout() error {
	for i, t := range f.tensors {
		begin, end := t.DataOffsets[0], t.DataOffsets[1]

		if begin < 0 || end < begin {
			return &LayoutError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("data_offsets [%d, %d]", begin, end),
			}
		}
		if end > f.dataSize {
			return &LayoutError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data size %d", begin, end-begin, f.dataSize),
			}
		}
		if size := t.DType.elemSize(); size > 0 {
			if want := int64(t.Shape.NumElements()) * int64(size); end-begin != want {
				return &LayoutError{
					Type:    "size_mismatch",
					Tensor:  t.Name,
					Details: fmt.Sprintf("payload is %d bytes, shape %v needs %d", end-begin, t.Shape, want),
				}
			}
		}
		if i > 0 {
			prev := f.tensors[i-1]
			if prev.DataOffsets[1] > begin {
				return &LayoutError{
					Type:    "offset_overlap",
					Tensor:  prev.Name,
					Tensor2: t.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						prev.DataOffsets[0], prev.DataOffsets[1], begin, end),
				}
			}
		}
	}
	return nil
}

// Close releases the underlying file handle, if any.
func (f *File) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// Metadata returns the __metadata__ map from the header, or nil.
func (f *File) Metadata() map[string]string {
	return f.metadata
}

// Tensors lists the header entries ordered by payload offset.
func (f *File) Tensors() []TensorInfo {
	out := make([]TensorInfo, len(f.tensors))
	copy(out, f.tensors)
	return out
}

// LoadStateDict materializes every tensor as a float32 CPU tensor,
// reading payloads concurrently. F16 and BF16 payloads are widened to
// float32; any other dtype fails with ErrUnsupportedDType. The returned
// dict is in payload order.
func (f *File) LoadStateDict() (*StateDict, error) {
	raws := make([]*tensor.RawTensor, len(f.tensors))

	var g errgroup.Group
	for i, info := range f.tensors {
		g.Go(func() error {
			raw, err := f.loadTensor(info)
			if err != nil {
				return err
			}
			raws[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sd := NewStateDict()
	for i, info := range f.tensors {
		sd.Set(info.Name, raws[i])
	}
	return sd, nil
}

// loadTensor reads one payload and converts it to float32.
func (f *File) loadTensor(info TensorInfo) (*tensor.RawTensor, error) {
	if info.DType.elemSize() == 0 {
		return nil, fmt.Errorf("%w: tensor %q has dtype %q", ErrUnsupportedDType, info.Name, info.DType)
	}

	payload := make([]byte, info.ByteSize())
	if _, err := f.r.ReadAt(payload, f.dataOffset+info.DataOffsets[0]); err != nil {
		return nil, fmt.Errorf("failed to read tensor %q: %w", info.Name, err)
	}

	raw, err := tensor.NewRaw(info.Shape, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate tensor %q: %w", info.Name, err)
	}

	switch info.DType {
	case F32:
		copy(raw.Data(), payload)
	case F16:
		dst := raw.AsFloat32()
		for i := range dst {
			bits := binary.LittleEndian.Uint16(payload[2*i:])
			dst[i] = float16.Frombits(bits).Float32()
		}
	case BF16:
		copy(raw.AsFloat32(), bfloat16.DecodeFloat32(payload))
	}
	return raw, nil
}
