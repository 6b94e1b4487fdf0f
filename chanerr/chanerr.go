// Package chanerr provides the structured error type shared by every layer
// of the secure channel: frame codec, handshake, datagram, and stream.
package chanerr

import "fmt"

// Path identifies which protocol layer raised the error.
type Path string

const (
	PathFrame     Path = "frame"
	PathHandshake Path = "handshake"
	PathDatagram  Path = "datagram"
	PathStream    Path = "stream"
)

// Stage identifies the step within a layer that failed.
type Stage string

const (
	StageRead      Stage = "read"
	StageWrite     Stage = "write"
	StageEncrypt   Stage = "encrypt"
	StageDecrypt   Stage = "decrypt"
	StageCompress  Stage = "compress"
	StageKeyExchange Stage = "key_exchange"
	StageValidate  Stage = "validate"
	StageAck       Stage = "ack"
)

// Code is a stable, programmatic error identifier for callers to switch on.
type Code string

const (
	CodeConnection      Code = "connection"
	CodeUnexpectedEOF   Code = "unexpected_eof"
	CodeFrameTooLarge   Code = "frame_too_large"
	CodeCrypto          Code = "crypto"
	CodeDecompress      Code = "decompress"
	CodeHashMismatch    Code = "hash_mismatch"
	CodeRemoteStream    Code = "remote_stream_error"
	CodeUnknownRole     Code = "unknown_role"
	CodeBroken          Code = "endpoint_broken"
	CodeInvalidOption   Code = "invalid_option"
)

// Error is a structured error carrying enough context for programmatic
// handling without callers needing to string-match messages.
type Error struct {
	Path  Path
	Stage Stage
	Code  Code
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s (%s): %v", e.Path, e.Stage, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s (%s)", e.Path, e.Stage, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds a structured Error. err may be nil when the code is
// self-explanatory (e.g. CodeBroken).
func Wrap(path Path, stage Stage, code Code, err error) error {
	return &Error{Path: path, Stage: stage, Code: code, Err: err}
}

// Is reports whether err is a *Error with the given code, unwrapping as needed.
func Is(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Code == code {
				return true
			}
			err = e.Err
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
