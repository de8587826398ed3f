// Package codec implements C1: bidirectional conversion between external
// wire formats (Loki push, NDJSON, bulk) and the internal columnar file
// format. Decoders are variants over {Loki, JSON, Bulk}; new formats are
// added by extending the variant set, not by dynamic plugin loading.
package codec

import (
	"github.com/openobserve/corelake/internal/model"
)

// Format names one of the supported ingest wire formats.
type Format string

const (
	FormatLoki Format = "loki"
	FormatJSON Format = "json"
	FormatBulk Format = "bulk"
)

// Decoder turns a wire payload into normalized Records, preserving
// insertion order within a stream.
type Decoder interface {
	Decode(payload []byte) ([]model.Record, error)
}

// JSONTimestampField names the NDJSON field holding the record timestamp.
type JSONTimestampField string

// NewDecoder returns the Decoder for the given format. ts is only consulted
// by FormatJSON (the configured timestamp field name).
func NewDecoder(format Format, ts JSONTimestampField) Decoder {
	switch format {
	case FormatLoki:
		return LokiDecoder{}
	case FormatJSON:
		field := string(ts)
		if field == "" {
			field = "timestamp"
		}
		return &JSONDecoder{TimestampField: field}
	case FormatBulk:
		return BulkDecoder{}
	default:
		return unsupportedDecoder{format: format}
	}
}

type unsupportedDecoder struct{ format Format }

func (u unsupportedDecoder) Decode([]byte) ([]model.Record, error) {
	return nil, newCodecError(KindUnsupportedField, "unsupported ingest format %q", u.format)
}
