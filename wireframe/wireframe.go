// Package wireframe implements the channel's length-prefixed frame codec:
// a 4-byte little-endian length L followed by L opaque bytes.
package wireframe

import (
	"io"

	"github.com/corewire/secchan/chanerr"
	"github.com/corewire/secchan/internal/bin"
)

const HeaderLen = 4

// WriteFrame writes len_u32_le(b) ‖ b to w.
func WriteFrame(w io.Writer, b []byte) error {
	var hdr [HeaderLen]byte
	bin.PutU32LE(hdr[:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return chanerr.Wrap(chanerr.PathFrame, chanerr.StageWrite, chanerr.CodeConnection, err)
	}
	if len(b) == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return chanerr.Wrap(chanerr.PathFrame, chanerr.StageWrite, chanerr.CodeConnection, err)
	}
	return nil
}

// ReadFrame reads one frame from r. If the declared length exceeds
// maxPackageSize, it returns a CodeFrameTooLarge error without consuming
// any further bytes from the frame body — callers are expected to close
// the stream on this error, since the reader is no longer aligned with the
// sender's framing.
func ReadFrame(r io.Reader, maxPackageSize uint32) ([]byte, error) {
	var hdr [HeaderLen]byte
	if err := ReadExact(r, hdr[:]); err != nil {
		return nil, err
	}
	n := bin.U32LE(hdr[:])
	if n > maxPackageSize {
		return nil, chanerr.Wrap(chanerr.PathFrame, chanerr.StageRead, chanerr.CodeFrameTooLarge, nil)
	}
	if n == 0 {
		return []byte{}, nil
	}
	body := make([]byte, n)
	if err := ReadExact(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// ReadExact blocks until len(buf) bytes have been read from r, or fails
// with CodeUnexpectedEOF if the stream closes first.
func ReadExact(r io.Reader, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	_, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return chanerr.Wrap(chanerr.PathFrame, chanerr.StageRead, chanerr.CodeUnexpectedEOF, err)
	}
	return chanerr.Wrap(chanerr.PathFrame, chanerr.StageRead, chanerr.CodeConnection, err)
}
