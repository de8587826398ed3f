package codec

import (
	"fmt"

	"github.com/openobserve/corelake/internal/errs"
)

// CodecErrorKind is C1's own narrower error vocabulary (spec.md section
// 4.1), translated by the ingest coordinator into the shared errs.Kind
// vocabulary at the C1/C4 boundary.
type CodecErrorKind string

const (
	KindMalformed          CodecErrorKind = "malformed"
	KindUnsupportedField   CodecErrorKind = "unsupported_field"
	KindTimestampOutOfRange CodecErrorKind = "timestamp_out_of_range"
	KindInternalCodec      CodecErrorKind = "internal_codec"
)

// Error is a codec-layer error; ToErrsKind translates it for callers outside
// this package.
type Error struct {
	Kind    CodecErrorKind
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("codec: %s: %s", e.Kind, e.Message) }

func newCodecError(kind CodecErrorKind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...)}
}

// ToErrsKind maps a codec error kind onto the shared client-visible
// vocabulary, the translation the spec requires C4 to perform at the
// C1/C4 boundary.
func ToErrsKind(kind CodecErrorKind) errs.Kind {
	switch kind {
	case KindMalformed, KindUnsupportedField:
		return errs.BadRequest
	case KindTimestampOutOfRange:
		return errs.OutOfRange
	default:
		return errs.Internal
	}
}
