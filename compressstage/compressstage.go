// Package compressstage implements the channel's opportunistic/forced/
// disabled gzip policy, using klauspost/compress's gzip implementation (a
// drop-in for compress/gzip pulled in transitively by the teacher repo's
// own dependency graph) rather than the standard library.
package compressstage

import (
	"bytes"

	"github.com/klauspost/compress/gzip"
)

// Policy selects how the compression stage behaves for a given write.
type Policy int

const (
	// Auto compresses opportunistically: the gzip result is used only when
	// strictly smaller than the input. This is the default when the caller
	// does not set an explicit policy.
	Auto Policy = iota
	// Always forces gzip output regardless of size.
	Always
	// Never disables compression entirely.
	Never
)

// Result reports the compression decision alongside the output bytes. If
// gzip itself failed, Apply falls back to sending the buffer uncompressed
// rather than failing the write outright, and records the failure in
// FallbackError so a caller can still observe it.
type Result struct {
	Payload       []byte
	Compressed    bool
	FallbackError error
}

// Apply runs the compression policy against plaintext.
func Apply(policy Policy, plaintext []byte) Result {
	switch policy {
	case Never:
		return Result{Payload: plaintext, Compressed: false}
	case Always:
		compressed, err := gzipBytes(plaintext)
		if err != nil {
			return Result{Payload: plaintext, Compressed: false, FallbackError: err}
		}
		return Result{Payload: compressed, Compressed: true}
	default: // Auto
		compressed, err := gzipBytes(plaintext)
		if err != nil {
			return Result{Payload: plaintext, Compressed: false, FallbackError: err}
		}
		if len(compressed) < len(plaintext) {
			return Result{Payload: compressed, Compressed: true}
		}
		return Result{Payload: plaintext, Compressed: false}
	}
}

// Decompress reverses Apply when the compressed bit was set on receive.
func Decompress(body []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func gzipBytes(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(plaintext); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
