package codec

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/openobserve/corelake/internal/model"
)

// PushRequest mirrors Loki's push.proto PushRequest message: a batch of
// labeled streams, each carrying an ordered list of timestamped lines.
// The ingest HTTP endpoint accepts this shape JSON-encoded (Loki's widely
// used alternative to the protobuf+snappy wire encoding), which keeps this
// decoder free of hand-maintained generated protobuf code while preserving
// the exact field semantics the spec names.
type PushRequest struct {
	Streams []StreamAdapter `json:"streams"`
}

// StreamAdapter is one labeled stream within a PushRequest.
type StreamAdapter struct {
	Labels  string           `json:"labels"` // `{k="v",k2="v2"}`
	Entries []EntryAdapter   `json:"entries"`
	Hash    uint64           `json:"hash,omitempty"`
}

// EntryAdapter is one log line within a StreamAdapter.
type EntryAdapter struct {
	Timestamp          Timestamp         `json:"timestamp"`
	Line               string            `json:"line"`
	StructuredMetadata map[string]string `json:"structuredMetadata,omitempty"`
}

// Timestamp mirrors google.protobuf.Timestamp's JSON mapping (RFC3339
// string) as well as a raw-nanosecond integer, for producers that skip the
// protobuf JSON mapping convention.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.Unix(0, n)
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// PushResponse is the (empty) response to a successful push.
type PushResponse struct{}

// LokiDecoder implements Decoder for PushRequest payloads.
type LokiDecoder struct{}

func (LokiDecoder) Decode(payload []byte) ([]model.Record, error) {
	var req PushRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, newCodecError(KindMalformed, "invalid push request: %s", err)
	}

	var out []model.Record
	for _, stream := range req.Streams {
		labels, err := ParseLabels(stream.Labels)
		if err != nil {
			// A malformed label set fails the entire StreamAdapter, per
			// the decode contract -- not just the offending entry.
			return nil, newCodecError(KindMalformed, "stream labels %q: %s", stream.Labels, err)
		}

		streamName := labels["__name__"]
		if streamName == "" {
			streamName = streamNameFromLabels(labels)
		}

		for _, entry := range stream.Entries {
			tsUs := entry.Timestamp.UnixMicro()
			if tsUs <= 0 {
				return nil, newCodecError(KindTimestampOutOfRange, "zero or negative timestamp in stream %q", stream.Labels)
			}
			out = append(out, model.Record{
				TimestampUs: tsUs,
				Stream:      streamName,
				Labels:      labels,
				Line:        entry.Line,
				Structured:  entry.StructuredMetadata,
			})
		}
	}
	return out, nil
}

// streamNameFromLabels derives a deterministic stream name from a label set
// lacking an explicit __name__, by hashing the set (spec: "identical
// label-sets share a stream_hash").
func streamNameFromLabels(labels map[string]string) string {
	return "stream_" + strconv.FormatUint(model.StreamHash(labels), 36)
}
