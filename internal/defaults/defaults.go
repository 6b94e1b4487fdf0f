// Package defaults centralizes the tunable defaults for secchan endpoints.
//
// These exist as named constants rather than mutable package-level
// variables so an Endpoint's configuration is always an explicit,
// immutable snapshot taken at construction time.
package defaults

const (
	// MaxPackageSize is the hard cap on any single frame length in either
	// direction, matching the source implementation's default.
	MaxPackageSize uint32 = 16_777_211

	// RSAKeySize is the bit length of the client's ephemeral RSA key.
	RSAKeySize = 512

	// ReadBufferSize is the sender's default stream chunk size.
	ReadBufferSize uint32 = 8192

	// PasswordSize is the length, in bytes, of a server-generated session
	// password when no PasswordGenerator hook is configured.
	PasswordSize = 48

	// When no handshake or data transform hook is configured, xform.Identity
	// is applied.
)
