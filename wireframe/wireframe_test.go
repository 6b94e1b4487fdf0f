package wireframe

import (
	"bytes"
	"errors"
	"testing"

	"github.com/corewire/secchan/chanerr"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello, secure channel")
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf, 1<<20)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("expected %q, got %q", payload, got)
	}
}

func TestWriteReadEmptyFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf, 1<<20)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty frame, got %d bytes", len(got))
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, make([]byte, 100)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	_, err := ReadFrame(&buf, 10)
	if !chanerr.Is(err, chanerr.CodeFrameTooLarge) {
		t.Fatalf("expected CodeFrameTooLarge, got %v", err)
	}
}

func TestReadFrameUnexpectedEOF(t *testing.T) {
	buf := bytes.NewBuffer([]byte{5, 0, 0, 0})
	_, err := ReadFrame(buf, 1<<20)
	if !chanerr.Is(err, chanerr.CodeUnexpectedEOF) {
		t.Fatalf("expected CodeUnexpectedEOF, got %v", err)
	}
}

func TestReadExactEmptyBuf(t *testing.T) {
	if err := ReadExact(bytes.NewReader(nil), nil); err != nil {
		t.Fatalf("expected nil error for empty buf, got %v", err)
	}
}

func TestReadExactReaderError(t *testing.T) {
	err := ReadExact(errReader{}, make([]byte, 4))
	if err == nil {
		t.Fatal("expected error")
	}
	if chanerr.Is(err, chanerr.CodeUnexpectedEOF) {
		t.Fatal("non-EOF reader errors should classify as CodeConnection")
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }
