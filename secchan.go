package secchan

import (
	"context"
	"io"

	"github.com/corewire/secchan/compressstage"
	"github.com/corewire/secchan/datagram"
	"github.com/corewire/secchan/handshake"
	"github.com/corewire/secchan/observability"
	"github.com/corewire/secchan/streamxfer"
	"github.com/corewire/secchan/xform"
)

// Re-exported types so callers only need to import this package for the
// common case.
type (
	Role               = datagram.Role
	CompressPolicy     = compressstage.Policy
	TransformDirection = xform.Direction
	TransformHook      = xform.Hook
	HandshakeVersion   = handshake.Version
	PasswordGenerator  = handshake.PasswordGenerator
	Observer           = observability.Observer
)

const (
	RoleServer = datagram.RoleServer
	RoleClient = datagram.RoleClient

	CompressAuto   = compressstage.Auto
	CompressAlways = compressstage.Always
	CompressNever  = compressstage.Never

	TransformApply   = xform.Transform
	TransformRestore = xform.Restore

	HandshakeV2Cleartext = handshake.V2Cleartext
	HandshakeV3Encrypted = handshake.V3Encrypted
)

// Options configures an Endpoint; see datagram.Options for field docs.
type Options = datagram.Options

// Endpoint is one side of a secure channel. It embeds the datagram layer
// and adds the chunked stream-transfer operations on top of it.
type Endpoint struct {
	*datagram.Endpoint
}

// New creates an Endpoint around stream with the given role and options.
func New(role Role, stream io.ReadWriter, opts Options) *Endpoint {
	return &Endpoint{Endpoint: datagram.New(role, stream, opts)}
}

// WriteStream sends src as a sequence of integrity-checked, acknowledged
// chunks. maxBytes <= 0 means unlimited; bufSize == 0 uses the configured
// default chunk size.
func (e *Endpoint) WriteStream(ctx context.Context, src io.Reader, maxBytes int64, bufSize uint32) (int64, error) {
	return streamxfer.WriteStream(ctx, e.Endpoint, src, maxBytes, bufSize, e.Endpoint.Observer())
}

// ReadStream receives a chunked transfer into dst until the terminator
// chunk arrives, verifying each chunk's SHA-256. maxChunkBytes == 0 falls
// back to the endpoint's MaxPackageSize.
func (e *Endpoint) ReadStream(ctx context.Context, dst io.Writer, maxChunkBytes uint32) (int64, error) {
	if maxChunkBytes == 0 {
		maxChunkBytes = e.Endpoint.MaxPackageSize()
	}
	return streamxfer.ReadStream(ctx, e.Endpoint, dst, maxChunkBytes, e.Endpoint.Observer())
}
