// Package streamxfer implements the chunked stream transfer protocol built
// on top of the datagram layer: a request/response loop with per-chunk
// SHA-256 integrity and stop-and-wait acknowledgement.
package streamxfer

import (
	"context"
	"encoding/hex"
	"io"

	"github.com/corewire/secchan/chanerr"
	"github.com/corewire/secchan/internal/bin"
	"github.com/corewire/secchan/internal/defaults"
	"github.com/corewire/secchan/observability"

	"crypto/sha256"
)

// Datagram is the minimal surface streamxfer needs from the datagram layer.
type Datagram interface {
	Write(ctx context.Context, b []byte) (bool, error)
	Read(ctx context.Context) ([]byte, bool, error)
}

const hashLen = sha256.Size

func observerOrNoop(obs observability.Observer) observability.Observer {
	if obs == nil {
		return observability.NoopObserver
	}
	return obs
}

// WriteStream reads from src and sends it over ep as a sequence of chunk
// envelopes, terminated by a zero-length chunk, honoring maxBytes (0 means
// unlimited) and bufSize (0 means defaults.ReadBufferSize). A nil obs
// disables metrics reporting. It returns the total byte count sent.
func WriteStream(ctx context.Context, ep Datagram, src io.Reader, maxBytes int64, bufSize uint32, obs observability.Observer) (int64, error) {
	obs = observerOrNoop(obs)
	if bufSize == 0 {
		bufSize = defaults.ReadBufferSize
	}
	buf := make([]byte, bufSize)

	var sent int64
	for maxBytes <= 0 || sent < maxBytes {
		toRead := int64(bufSize)
		if maxBytes > 0 {
			if remaining := maxBytes - sent; remaining < toRead {
				toRead = remaining
			}
		}
		n, err := src.Read(buf[:toRead])
		if n > 0 {
			chunk := buf[:n]
			sum := sha256.Sum256(chunk)
			envelope := make([]byte, 0, 4+hashLen+len(chunk))
			var lenBuf [4]byte
			bin.PutU32LE(lenBuf[:], uint32(len(chunk)))
			envelope = append(envelope, lenBuf[:]...)
			envelope = append(envelope, sum[:]...)
			envelope = append(envelope, chunk...)

			if _, werr := ep.Write(ctx, envelope); werr != nil {
				return sent, chanerr.Wrap(chanerr.PathStream, chanerr.StageWrite, chanerr.CodeConnection, werr)
			}
			ack, _, rerr := ep.Read(ctx)
			if rerr != nil {
				return sent, chanerr.Wrap(chanerr.PathStream, chanerr.StageAck, chanerr.CodeConnection, rerr)
			}
			if len(ack) != 0 {
				obs.RemoteStreamError()
				return sent, chanerr.Wrap(chanerr.PathStream, chanerr.StageAck, chanerr.CodeRemoteStream, remoteError(string(ack)))
			}
			sent += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return sent, chanerr.Wrap(chanerr.PathStream, chanerr.StageRead, chanerr.CodeConnection, err)
		}
		if n == 0 && err == nil {
			break
		}
	}

	if err := sendTerminator(ctx, ep); err != nil {
		return sent, err
	}
	return sent, nil
}

func sendTerminator(ctx context.Context, ep Datagram) error {
	var envelope [4]byte // chunkLen=0, no hash, no body
	if _, err := ep.Write(ctx, envelope[:]); err != nil {
		return chanerr.Wrap(chanerr.PathStream, chanerr.StageWrite, chanerr.CodeConnection, err)
	}
	return nil
}

// ReadStream receives chunk envelopes from ep and writes their payloads to
// dst, verifying each chunk's SHA-256 and acknowledging it, until the
// terminator chunk arrives. A nil obs disables metrics reporting. It
// returns the total byte count received.
func ReadStream(ctx context.Context, ep Datagram, dst io.Writer, maxChunkBytes uint32, obs observability.Observer) (int64, error) {
	obs = observerOrNoop(obs)
	var received int64
	for {
		envelope, tooLarge, err := ep.Read(ctx)
		if tooLarge {
			return received, chanerr.Wrap(chanerr.PathStream, chanerr.StageRead, chanerr.CodeFrameTooLarge, err)
		}
		if err != nil {
			return received, chanerr.Wrap(chanerr.PathStream, chanerr.StageRead, chanerr.CodeConnection, err)
		}
		if len(envelope) < 4 {
			return received, chanerr.Wrap(chanerr.PathStream, chanerr.StageValidate, chanerr.CodeConnection, io.ErrUnexpectedEOF)
		}
		chunkLen := bin.U32LE(envelope[:4])
		if chunkLen == 0 {
			return received, nil
		}
		if maxChunkBytes > 0 && chunkLen > maxChunkBytes {
			_, _ = ep.Write(ctx, []byte("Chunk is too big!"))
			return received, chanerr.Wrap(chanerr.PathStream, chanerr.StageValidate, chanerr.CodeFrameTooLarge, nil)
		}
		if len(envelope) != 4+hashLen+int(chunkLen) {
			return received, chanerr.Wrap(chanerr.PathStream, chanerr.StageValidate, chanerr.CodeConnection, io.ErrUnexpectedEOF)
		}
		wantHash := envelope[4 : 4+hashLen]
		chunk := envelope[4+hashLen:]

		gotHash := sha256.Sum256(chunk)
		if !hashEqual(gotHash[:], wantHash) {
			obs.HashMismatch()
			msg := "Invalid chunk hash: " + hex.EncodeToString(gotHash[:])
			_, _ = ep.Write(ctx, []byte(msg))
			return received, chanerr.Wrap(chanerr.PathStream, chanerr.StageValidate, chanerr.CodeHashMismatch, nil)
		}

		if _, err := dst.Write(chunk); err != nil {
			_, _ = ep.Write(ctx, []byte(err.Error()))
			return received, chanerr.Wrap(chanerr.PathStream, chanerr.StageWrite, chanerr.CodeConnection, err)
		}
		received += int64(len(chunk))

		if _, err := ep.Write(ctx, []byte{}); err != nil {
			return received, chanerr.Wrap(chanerr.PathStream, chanerr.StageAck, chanerr.CodeConnection, err)
		}
	}
}

func hashEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type remoteError string

func (e remoteError) Error() string { return "Remote error: " + string(e) }
