// Package loader moves model weights between safetensors files and
// memory, carrying them in insertion-ordered state dicts.
//
// Safetensors is the only checkpoint format: an 8-byte little-endian
// header length, a JSON header describing dtype, shape and payload
// offsets per tensor, then the raw payloads. Reading validates the
// declared layout (bounds, overlap, payload size) before any tensor is
// materialized; F16 and BF16 payloads are widened to float32. Writing
// lays payloads out in state-dict order, so tensor order survives a
// round trip.
//
// Example:
//
//	f, err := loader.Open("checkpoint.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	sd, err := f.LoadStateDict()
//	if err != nil {
//	    log.Fatal(err)
//	}
package loader
