package codec

import (
	"bufio"
	"bytes"
	"encoding/json"

	"github.com/openobserve/corelake/internal/model"
)

// BulkDecoder decodes an Elasticsearch-style bulk indexing envelope: pairs
// of lines, an action-metadata line (only "index"/"create" are recognized,
// matching the subset of the bulk API used by log shippers) followed by a
// source-document line holding the record itself.
type BulkDecoder struct{}

type bulkAction struct {
	Index  *bulkActionMeta `json:"index"`
	Create *bulkActionMeta `json:"create"`
}

type bulkActionMeta struct {
	Index string `json:"_index"`
}

func (BulkDecoder) Decode(payload []byte) ([]model.Record, error) {
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 0, 64*1024), model.MaxLabelStringLen*4)

	var out []model.Record
	lineNo := 0
	for scanner.Scan() {
		actionLine := bytes.TrimSpace(scanner.Bytes())
		lineNo++
		if len(actionLine) == 0 {
			continue
		}

		var action bulkAction
		if err := json.Unmarshal(actionLine, &action); err != nil {
			return nil, newCodecError(KindMalformed, "line %d: invalid action metadata: %s", lineNo, err)
		}
		meta := action.Index
		if meta == nil {
			meta = action.Create
		}
		if meta == nil {
			return nil, newCodecError(KindUnsupportedField, "line %d: unsupported bulk action (only index/create)", lineNo)
		}

		if !scanner.Scan() {
			return nil, newCodecError(KindMalformed, "line %d: missing source document after action", lineNo)
		}
		lineNo++
		srcLine := scanner.Bytes()

		var doc map[string]interface{}
		if err := json.Unmarshal(srcLine, &doc); err != nil {
			return nil, newCodecError(KindMalformed, "line %d: invalid source document: %s", lineNo, err)
		}

		rawTS, ok := doc["@timestamp"]
		if !ok {
			return nil, newCodecError(KindMalformed, "line %d: source document missing @timestamp", lineNo)
		}
		tsUs, err := normalizeTimestamp(rawTS)
		if err != nil {
			return nil, newCodecError(KindTimestampOutOfRange, "line %d: %s", lineNo, err)
		}
		delete(doc, "@timestamp")

		msg, _ := doc["message"].(string)
		delete(doc, "message")

		structured := make(map[string]string, len(doc))
		for k, v := range doc {
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
			Stream:      meta.Index,
			Labels:      map[string]string{},
			Line:        msg,
			Structured:  structured,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, newCodecError(KindMalformed, "scanning bulk body: %s", err)
	}
	return out, nil
}
