// Package datagram implements the Endpoint type: write(bytes)/read()->bytes
// over a reliable byte stream, with lazy handshake triggering, compression,
// encryption, and max-package-size enforcement.
package datagram

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/corewire/secchan/chanerr"
	"github.com/corewire/secchan/cipherstage"
	"github.com/corewire/secchan/compressstage"
	"github.com/corewire/secchan/handshake"
	"github.com/corewire/secchan/internal/defaults"
	"github.com/corewire/secchan/observability"
	"github.com/corewire/secchan/wireframe"
	"github.com/corewire/secchan/xform"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Role identifies which half of the handshake this endpoint runs.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

const compressedBit = 0x80

// Options configures an Endpoint. The zero value is valid; every field has
// a sensible default.
type Options struct {
	MaxPackageSize uint32
	RSAKeySize     int

	// Compress selects the compression policy; nil means Auto.
	Compress *compressstage.Policy

	DataTransformer      xform.Hook
	HandshakeTransformer xform.Hook
	PasswordGenerator    handshake.PasswordGenerator

	HandshakeVersion handshake.Version

	// Observer receives metric events; nil means observability.NoopObserver.
	Observer observability.Observer
}

func (o *Options) fillDefaults() {
	if o.MaxPackageSize == 0 {
		o.MaxPackageSize = defaults.MaxPackageSize
	}
	if o.RSAKeySize <= 0 {
		o.RSAKeySize = defaults.RSAKeySize
	}
	if o.DataTransformer == nil {
		o.DataTransformer = xform.Identity
	}
	if o.HandshakeTransformer == nil {
		o.HandshakeTransformer = xform.Identity
	}
	if o.Observer == nil {
		o.Observer = observability.NoopObserver
	}
}

func (o *Options) compressPolicy() compressstage.Policy {
	if o.Compress == nil {
		return compressstage.Auto
	}
	return *o.Compress
}

// state is the handshake lifecycle: Fresh -> Exchanging -> Keyed, with a
// terminal Broken state on any fatal error.
type state int

const (
	stateFresh state = iota
	stateExchanging
	stateKeyed
	stateBroken
)

// Endpoint is one side of a secure channel over a reliable ordered byte
// stream. All writes on a single Endpoint are strictly serialized, as are
// all reads; a read and a write may run concurrently.
type Endpoint struct {
	role   Role
	stream io.ReadWriter
	opts   Options

	// ID is a correlation identifier for observability/logging only; it
	// never appears on the wire, which carries no headers of its own.
	ID string

	writeMu sync.Mutex
	readMu  sync.Mutex

	mu       sync.Mutex
	password []byte
	st       state
	brokeErr error
}

// ErrTooLarge is not returned by any operation in this package: Read reports
// an oversized frame through its bool result and a CodeFrameTooLarge error.
var ErrTooLarge = errors.New("frame too large")

// New creates an Endpoint around stream with the given role and options.
// The handshake does not run until the first Write or Read.
func New(role Role, stream io.ReadWriter, opts Options) *Endpoint {
	opts.fillDefaults()
	id, err := uuid.NewRandom()
	idStr := ""
	if err == nil {
		idStr = id.String()
	}
	return &Endpoint{role: role, stream: stream, opts: opts, ID: idStr}
}

// Write sends bytes as a single datagram. A false, nil return is a soft
// "too large to send" signal: the ciphertext would exceed MaxPackageSize,
// so nothing was written and the endpoint remains usable.
func (e *Endpoint) Write(ctx context.Context, b []byte) (bool, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	transformed, err := e.opts.DataTransformer(ctx, b, xform.Transform)
	if err != nil {
		return false, chanerr.Wrap(chanerr.PathDatagram, chanerr.StageValidate, chanerr.CodeCrypto, err)
	}

	result := compressstage.Apply(e.opts.compressPolicy(), transformed)
	payload := result.Payload
	isCompressed := result.Compressed
	if result.FallbackError != nil {
		e.opts.Observer.CompressFallback(result.FallbackError)
	}

	password, err := e.ensurePassword(ctx)
	if err != nil {
		return false, err
	}

	flagByte, err := randomFlag()
	if err != nil {
		return false, chanerr.Wrap(chanerr.PathDatagram, chanerr.StageEncrypt, chanerr.CodeCrypto, err)
	}
	if isCompressed {
		flagByte |= compressedBit
	}

	plain := make([]byte, 0, 1+len(payload))
	plain = append(plain, flagByte)
	plain = append(plain, payload...)

	cipherBytes, err := cipherstage.Seal(password, plain)
	if err != nil {
		return false, chanerr.Wrap(chanerr.PathDatagram, chanerr.StageEncrypt, chanerr.CodeCrypto, err)
	}

	if uint32(len(cipherBytes)) > e.opts.MaxPackageSize {
		e.opts.Observer.FrameTooLarge("write")
		return false, nil
	}

	if err := wireframe.WriteFrame(e.stream, cipherBytes); err != nil {
		e.breakWith(err)
		return false, err
	}
	e.opts.Observer.FrameWritten(len(cipherBytes))
	return true, nil
}

// Read receives the next datagram. Unlike Write's soft over-limit behavior,
// an inbound frame whose declared length exceeds MaxPackageSize is fatal:
// ReadFrame only consumes the 4-byte length header before reporting the
// error, so the frame's body bytes are still sitting unread on the stream.
// Treating the endpoint as still usable after that would desync the reader
// from the sender's framing, with the next Read reinterpreting stray body
// bytes as a new frame header. So this breaks the endpoint, closes the
// underlying stream if it implements io.Closer, and returns the error, with
// the bool still reporting true for "this failure was a
// too-large frame" to callers that want to distinguish it from a plain
// connection error.
func (e *Endpoint) Read(ctx context.Context) ([]byte, bool, error) {
	e.readMu.Lock()
	defer e.readMu.Unlock()

	password, err := e.ensurePassword(ctx)
	if err != nil {
		return nil, false, err
	}

	frame, err := wireframe.ReadFrame(e.stream, e.opts.MaxPackageSize)
	if err != nil {
		if chanerr.Is(err, chanerr.CodeFrameTooLarge) {
			e.opts.Observer.FrameTooLarge("read")
			e.breakWith(err)
			if closer, ok := e.stream.(io.Closer); ok {
				_ = closer.Close()
			}
			return nil, true, err
		}
		e.breakWith(err)
		return nil, false, err
	}
	e.opts.Observer.FrameRead(len(frame))
	if len(frame) == 0 {
		return []byte{}, false, nil
	}

	plain, err := cipherstage.Open(password, frame)
	if err != nil {
		return nil, false, chanerr.Wrap(chanerr.PathDatagram, chanerr.StageDecrypt, chanerr.CodeCrypto, err)
	}
	if len(plain) == 0 {
		return nil, false, chanerr.Wrap(chanerr.PathDatagram, chanerr.StageDecrypt, chanerr.CodeCrypto, errors.New("missing flag byte"))
	}
	flagByte, body := plain[0], plain[1:]

	if flagByte&compressedBit != 0 {
		decompressed, err := compressstage.Decompress(body)
		if err != nil {
			return nil, false, chanerr.Wrap(chanerr.PathDatagram, chanerr.StageDecrypt, chanerr.CodeDecompress, err)
		}
		body = decompressed
	}

	restored, err := e.opts.DataTransformer(ctx, body, xform.Restore)
	if err != nil {
		return nil, false, chanerr.Wrap(chanerr.PathDatagram, chanerr.StageValidate, chanerr.CodeCrypto, err)
	}
	return restored, false, nil
}

// WriteString encodes s as UTF-8 and writes it as a datagram.
func (e *Endpoint) WriteString(ctx context.Context, s string) (bool, error) {
	return e.Write(ctx, []byte(s))
}

// ReadString reads one datagram and interprets it as a UTF-8 string.
func (e *Endpoint) ReadString(ctx context.Context) (string, bool, error) {
	b, tooLarge, err := e.Read(ctx)
	if err != nil || tooLarge {
		return "", tooLarge, err
	}
	return string(b), false, nil
}

// WriteJSON marshals v and writes it as a datagram.
func (e *Endpoint) WriteJSON(ctx context.Context, v any) (bool, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return false, chanerr.Wrap(chanerr.PathDatagram, chanerr.StageValidate, chanerr.CodeCrypto, err)
	}
	return e.Write(ctx, b)
}

// ReadJSON reads one datagram and unmarshals it into v.
func (e *Endpoint) ReadJSON(ctx context.Context, v any) (bool, error) {
	b, tooLarge, err := e.Read(ctx)
	if err != nil || tooLarge {
		return tooLarge, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, chanerr.Wrap(chanerr.PathDatagram, chanerr.StageValidate, chanerr.CodeCrypto, err)
	}
	return false, nil
}

// Stream exposes the underlying reader/writer for the streamxfer layer,
// which runs its own request/response loop above the datagram layer.
func (e *Endpoint) Stream() io.ReadWriter { return e.stream }

// MaxPackageSize returns the configured frame size cap.
func (e *Endpoint) MaxPackageSize() uint32 { return e.opts.MaxPackageSize }

// Observer returns the endpoint's configured metrics observer, so layers
// built on top of Endpoint (such as streamxfer) can report their own
// events through the same sink.
func (e *Endpoint) Observer() observability.Observer { return e.opts.Observer }

// Broken reports whether the endpoint has transitioned to the terminal
// Broken state after a fatal error.
func (e *Endpoint) Broken() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st == stateBroken
}

func (e *Endpoint) ensurePassword(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	if e.st == stateBroken {
		err := e.brokeErr
		e.mu.Unlock()
		if err == nil {
			err = chanerr.Wrap(chanerr.PathDatagram, chanerr.StageValidate, chanerr.CodeBroken, nil)
		}
		return nil, err
	}
	if e.st == stateKeyed {
		pw := e.password
		e.mu.Unlock()
		return pw, nil
	}
	e.st = stateExchanging
	e.mu.Unlock()

	roleName := "server"
	if e.role == RoleClient {
		roleName = "client"
	}
	e.opts.Observer.HandshakeStarted(roleName)
	password, err := e.runHandshake(ctx)
	e.opts.Observer.HandshakeCompleted(roleName, err == nil)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.st = stateBroken
		e.brokeErr = err
		return nil, err
	}
	e.password = password
	e.st = stateKeyed
	return password, nil
}

// Close tears down the endpoint: it zeroes the session password in place
// and closes the underlying stream if it implements io.Closer. Errors from
// each step are aggregated rather than discarding all but the first.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	for i := range e.password {
		e.password[i] = 0
	}
	e.st = stateBroken
	if e.brokeErr == nil {
		e.brokeErr = chanerr.Wrap(chanerr.PathDatagram, chanerr.StageValidate, chanerr.CodeBroken, nil)
	}
	e.mu.Unlock()

	var result *multierror.Error
	if closer, ok := e.stream.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (e *Endpoint) runHandshake(ctx context.Context) ([]byte, error) {
	switch e.role {
	case RoleClient:
		return handshake.ClientHandshake(ctx, e.stream, handshake.ClientOptions{
			RSAKeySize:           e.opts.RSAKeySize,
			MaxPackageSize:       e.opts.MaxPackageSize,
			Version:              e.opts.HandshakeVersion,
			HandshakeTransformer: e.opts.HandshakeTransformer,
		})
	case RoleServer:
		return handshake.ServerHandshake(ctx, e.stream, handshake.ServerOptions{
			MaxPackageSize:       e.opts.MaxPackageSize,
			Version:              e.opts.HandshakeVersion,
			HandshakeTransformer: e.opts.HandshakeTransformer,
			PasswordGenerator:    e.opts.PasswordGenerator,
		})
	default:
		return nil, chanerr.Wrap(chanerr.PathHandshake, chanerr.StageValidate, chanerr.CodeUnknownRole, nil)
	}
}

func (e *Endpoint) breakWith(err error) {
	e.mu.Lock()
	e.st = stateBroken
	e.brokeErr = err
	e.mu.Unlock()
}

func randomFlag() (byte, error) {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0] & 0x7f, nil
}
