package codec

import (
	"bytes"
	"encoding/json"
	"sort"

	pq "github.com/parquet-go/parquet-go"

	"github.com/openobserve/corelake/internal/model"
)

// row is the on-disk columnar shape of a Record. Label and structured
// fields are carried as a JSON blob rather than a map column: parquet-go
// cannot express a dynamic-key map column without a fixed schema, and the
// label set is already bounded by model.MaxLabelStringLen.
type row struct {
	TimestampUs int64  `parquet:"_timestamp"`
	Order       int64  `parquet:"_insertion_order"`
	Stream      string `parquet:"_stream"`
	LabelsJSON  []byte `parquet:"_labels_json"`
	Line        string `parquet:"_line"`
	StructJSON  []byte `parquet:"_structured_json,optional"`
}

// EncodeResult is the output of Encode: the finished columnar file bytes
// plus the exact FileMeta the catalog publish call requires.
type EncodeResult struct {
	Data []byte
	Meta model.FileMeta
}

// Encode converts a batch of Records, already confined to one partition,
// into a single columnar file sorted by (_timestamp ASC, _insertion_order
// ASC) -- the tie-break the spec requires for a stable per-partition
// total order over records sharing a timestamp.
func Encode(records []model.Record) (*EncodeResult, error) {
	rows := make([]row, len(records))
	originalSize := int64(0)
	for i, rec := range records {
		labelsJSON, err := json.Marshal(rec.Labels)
		if err != nil {
			return nil, newCodecError(KindInternalCodec, "marshal labels: %s", err)
		}
		var structJSON []byte
		if len(rec.Structured) > 0 {
			structJSON, err = json.Marshal(rec.Structured)
			if err != nil {
				return nil, newCodecError(KindInternalCodec, "marshal structured metadata: %s", err)
			}
		}
		rows[i] = row{
			TimestampUs: rec.TimestampUs,
			Order:       int64(i),
			Stream:      rec.Stream,
			LabelsJSON:  labelsJSON,
			Line:        rec.Line,
			StructJSON:  structJSON,
		}
		originalSize += int64(len(rec.Line)) + int64(len(labelsJSON)) + int64(len(structJSON)) + 16
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TimestampUs != rows[j].TimestampUs {
			return rows[i].TimestampUs < rows[j].TimestampUs
		}
		return rows[i].Order < rows[j].Order
	})

	var buf bytes.Buffer
	writer := pq.NewGenericWriter[row](&buf,
		pq.Compression(&pq.Zstd),
		pq.SortingWriterConfig(pq.SortingColumns(
			pq.Ascending("_timestamp"),
			pq.Ascending("_insertion_order"),
		)),
	)
	if _, err := writer.Write(rows); err != nil {
		return nil, newCodecError(KindInternalCodec, "write parquet rows: %s", err)
	}
	if err := writer.Close(); err != nil {
		return nil, newCodecError(KindInternalCodec, "close parquet writer: %s", err)
	}

	meta := model.FileMeta{
		MinTS:          rows[0].TimestampUs,
		MaxTS:          rows[len(rows)-1].TimestampUs,
		Records:        int64(len(rows)),
		OriginalSize:   originalSize,
		CompressedSize: int64(buf.Len()),
	}

	return &EncodeResult{Data: buf.Bytes(), Meta: meta}, nil
}

// Decode reverses Encode, used by the query executor to scan a columnar
// file back into Records within [startUs, endUs).
func Decode(data []byte, startUs, endUs int64) ([]model.Record, error) {
	reader := pq.NewGenericReader[row](bytes.NewReader(data))
	defer reader.Close()

	buf := make([]row, 256)
	var out []model.Record
	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			r := buf[i]
			if r.TimestampUs < startUs || r.TimestampUs >= endUs {
				continue
			}
			var labels map[string]string
			if len(r.LabelsJSON) > 0 {
				if jsonErr := json.Unmarshal(r.LabelsJSON, &labels); jsonErr != nil {
					return nil, newCodecError(KindInternalCodec, "unmarshal labels: %s", jsonErr)
				}
			}
			var structured map[string]string
			if len(r.StructJSON) > 0 {
				if jsonErr := json.Unmarshal(r.StructJSON, &structured); jsonErr != nil {
					return nil, newCodecError(KindInternalCodec, "unmarshal structured metadata: %s", jsonErr)
				}
			}
			out = append(out, model.Record{
				TimestampUs: r.TimestampUs,
				Stream:      r.Stream,
				Labels:      labels,
				Line:        r.Line,
				Structured:  structured,
			})
		}
		if err != nil {
			break
		}
	}
	return out, nil
}
