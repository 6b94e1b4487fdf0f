package compressstage

import (
	"bytes"
	"strings"
	"testing"
)

func TestApplyNever(t *testing.T) {
	plaintext := []byte(strings.Repeat("a", 1000))
	result := Apply(Never, plaintext)
	if result.Compressed {
		t.Fatal("Never policy must not compress")
	}
	if !bytes.Equal(result.Payload, plaintext) {
		t.Fatal("Never policy must return input unchanged")
	}
}

func TestApplyAlways(t *testing.T) {
	plaintext := []byte(strings.Repeat("a", 1000))
	result := Apply(Always, plaintext)
	if !result.Compressed {
		t.Fatal("Always policy must set Compressed")
	}
	decompressed, err := Decompress(result.Payload)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(decompressed, plaintext) {
		t.Fatal("round trip mismatch")
	}
}

func TestApplyAutoCompressesCompressible(t *testing.T) {
	plaintext := []byte(strings.Repeat("a", 1000))
	result := Apply(Auto, plaintext)
	if !result.Compressed {
		t.Fatal("expected Auto to compress highly compressible input")
	}
	if len(result.Payload) >= len(plaintext) {
		t.Fatal("expected compressed payload to be smaller")
	}
}

func TestApplyAutoSkipsIncompressible(t *testing.T) {
	plaintext := []byte{0x01, 0x02, 0x03}
	result := Apply(Auto, plaintext)
	if result.Compressed {
		t.Fatal("expected Auto to skip compression for tiny input that wouldn't shrink")
	}
	if !bytes.Equal(result.Payload, plaintext) {
		t.Fatal("expected uncompressed payload to equal input")
	}
}

func TestDecompressInvalidInput(t *testing.T) {
	if _, err := Decompress([]byte("not gzip")); err == nil {
		t.Fatal("expected error decompressing non-gzip input")
	}
}
