package codec

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/openobserve/corelake/internal/model"
)

// JSONDecoder decodes newline-delimited JSON objects, one Record per line.
// TimestampField names the field holding the record's timestamp; its value
// may be an RFC3339(Nano) string or a numeric epoch value, in which case
// the magnitude decides the unit (seconds, millis, micros or nanos) the
// same way the teacher's line-protocol ingest infers resolution from
// magnitude.
type JSONDecoder struct {
	TimestampField string
}

func (d JSONDecoder) Decode(payload []byte) ([]model.Record, error) {
	var out []model.Record
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 0, 64*1024), model.MaxLabelStringLen*4)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var obj map[string]interface{}
		if err := json.Unmarshal(line, &obj); err != nil {
			return nil, newCodecError(KindMalformed, "line %d: invalid json: %s", lineNo, err)
		}

		rawTS, ok := obj[d.TimestampField]
		if !ok {
			return nil, newCodecError(KindMalformed, "line %d: missing timestamp field %q", lineNo, d.TimestampField)
		}
		tsUs, err := normalizeTimestamp(rawTS)
		if err != nil {
			return nil, newCodecError(KindTimestampOutOfRange, "line %d: %s", lineNo, err)
		}
		delete(obj, d.TimestampField)

		stream, _ := obj["stream"].(string)
		delete(obj, "stream")

		labels := map[string]string{}
		if rawLabels, ok := obj["labels"].(map[string]interface{}); ok {
			for k, v := range rawLabels {
				if s, ok := v.(string); ok {
					labels[k] = s
				}
			}
			delete(obj, "labels")
		}

		line2, _ := obj["message"].(string)
		delete(obj, "message")

		structured := make(map[string]string, len(obj))
		for k, v := range obj {
			switch vv := v.(type) {
			case string:
				structured[k] = vv
			default:
				b, _ := json.Marshal(vv)
				structured[k] = string(b)
			}
		}

		out = append(out, model.Record{
			TimestampUs: tsUs,
			Stream:      stream,
			Labels:      labels,
			Line:        line2,
			Structured:  structured,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, newCodecError(KindMalformed, "scanning ndjson body: %s", err)
	}
	return out, nil
}

// normalizeTimestamp converts an arbitrary JSON timestamp value to epoch
// microseconds, inferring the unit of a bare numeric value from its
// magnitude: values below 10^12 are seconds, below 10^15 millis, below
// 10^18 micros, otherwise nanos.
func normalizeTimestamp(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return scaleEpoch(n), nil
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return 0, err
		}
		return t.UnixMicro(), nil
	case float64:
		return scaleEpoch(int64(v)), nil
	default:
		return 0, errUnrecognizedTimestamp
	}
}

func scaleEpoch(n int64) int64 {
	switch {
	case n < 1_000_000_000_000: // seconds
		return n * 1_000_000
	case n < 1_000_000_000_000_000: // millis
		return n * 1_000
	case n < 1_000_000_000_000_000_000: // micros
		return n
	default: // nanos
		return n / 1_000
	}
}

var errUnrecognizedTimestamp = newCodecError(KindMalformed, "unrecognized timestamp value type")
