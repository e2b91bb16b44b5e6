// Package loader provides checkpoint loading for Mirage models.
//
// This package wraps the internal loader implementation and exports a clean
// public API for reading and writing safetensors checkpoints.
//
// Example usage:
//
//	import (
//	    "github.com/mirage-ml/mirage/loader"
//	)
//
//	// Open a checkpoint
//	f, err := loader.Open("path/to/model.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	// Inspect the header
//	for _, info := range f.Tensors() {
//	    fmt.Println(info.Name, info.DType, info.Shape)
//	}
//
//	// Materialize every tensor as float32
//	sd, err := f.LoadStateDict()
//	if err != nil {
//	    log.Fatal(err)
//	}
package loader

import (
	"io"

	"github.com/mirage-ml/mirage/internal/loader"
)

// Safetensors Header

// DType identifies a tensor element type in a safetensors header.
type DType = loader.DType

// Element types the loader can materialize. Other dtype strings parse fine
// and show up in Tensors, but LoadStateDict rejects them.
const (
	F32  DType = loader.F32
	F16  DType = loader.F16
	BF16 DType = loader.BF16
)

// MaxHeaderSize bounds the JSON header length accepted from a file.
const MaxHeaderSize = loader.MaxHeaderSize

// Common loader errors.
var (
	ErrHeaderTooLarge   = loader.ErrHeaderTooLarge
	ErrMalformedHeader  = loader.ErrMalformedHeader
	ErrUnsupportedDType = loader.ErrUnsupportedDType
)

// LayoutError reports a tensor whose declared payload region is
// inconsistent with the file.
type LayoutError = loader.LayoutError

// TensorInfo describes one tensor entry in a safetensors header.
type TensorInfo = loader.TensorInfo

// Checkpoint Files

// File is an open safetensors checkpoint. The header is parsed and
// validated up front; payloads are read on demand by LoadStateDict.
type File = loader.File

// Open opens a safetensors file on disk.
//
// Example:
//
//	f, err := loader.Open("model.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	fmt.Println(f.Metadata()["format"])
//	for _, info := range f.Tensors() {
//	    fmt.Println(info.Name, info.Shape)
//	}
func Open(path string) (*File, error) {
	return loader.Open(path)
}

// OpenReader parses a safetensors checkpoint from an io.ReaderAt of known
// size. The caller keeps ownership of the reader.
func OpenReader(r io.ReaderAt, size int64) (*File, error) {
	return loader.OpenReader(r, size)
}

// State Dicts

// StateDict is an insertion-ordered mapping from parameter name to raw
// tensor. Order matters: checkpoint files are written in dict order, and
// models walk the dict in order when assigning weights.
type StateDict = loader.StateDict

// NewStateDict creates an empty state dict.
//
// Example:
//
//	sd := loader.NewStateDict()
//	sd.Set("patch_embed.weight", raw)
//	for name, t := range sd.All() {
//	    fmt.Println(name, t.Shape())
//	}
func NewStateDict() *StateDict {
	return loader.NewStateDict()
}

// Write writes a state dict to a safetensors file at path. Only float32
// tensors can be written.
//
// Example:
//
//	err := loader.Write("model.safetensors", sd, map[string]string{"format": "pt"})
func Write(path string, sd *StateDict, metadata map[string]string) error {
	return loader.Write(path, sd, metadata)
}

// WriteTo writes a state dict in safetensors layout to w.
func WriteTo(w io.Writer, sd *StateDict, metadata map[string]string) error {
	return loader.WriteTo(w, sd, metadata)
}
