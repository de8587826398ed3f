package codec

import (
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/openobserve/corelake/internal/model"
)

// columnIndex is the sidecar index written alongside a columnar file: one
// bloom filter per label key, over that key's distinct values across the
// file (the predicate's label-equality clauses are what the query executor
// actually prunes on), plus a min/max index over _timestamp (redundant with
// FileMeta's own min/max but kept per-file so a standalone reader never
// needs the catalog to decide whether to open a file).
type columnIndex struct {
	LabelBloom map[string]bloomFilter `json:"label_bloom"`
	MinTS      int64                  `json:"min_ts"`
	MaxTS      int64                  `json:"max_ts"`
}

// bloomFilter is a Kirsch-Mitzenmacher double-hashing bloom filter keyed by
// xxhash, the same hash already used for model.StreamHash: one dependency
// covers both the stream-identity hash and the index's membership test
// instead of pulling in a second hashing library for this alone.
type bloomFilter struct {
	Bits []uint64 `json:"bits"`
	M    uint64   `json:"m"` // number of bits
	K    uint64   `json:"k"` // number of hash rounds
}

// newBloomFilter sizes a filter for n expected elements at the given false
// positive rate p, using the standard m = -(n ln p) / (ln2)^2 sizing.
func newBloomFilter(n int, p float64) bloomFilter {
	if n <= 0 {
		n = 1
	}
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m < 64 {
		m = 64
	}
	k := uint64(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		k = 1
	}
	words := (m + 63) / 64
	return bloomFilter{Bits: make([]uint64, words), M: m, K: k}
}

func (b *bloomFilter) add(s string) {
	h1, h2 := splitHash(s)
	for i := uint64(0); i < b.K; i++ {
		idx := (h1 + i*h2) % b.M
		b.Bits[idx/64] |= 1 << (idx % 64)
	}
}

func (b *bloomFilter) mayContain(s string) bool {
	if b.M == 0 {
		return true
	}
	h1, h2 := splitHash(s)
	for i := uint64(0); i < b.K; i++ {
		idx := (h1 + i*h2) % b.M
		if b.Bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

func splitHash(s string) (uint64, uint64) {
	sum := xxhash.Sum64String(s)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], sum)
	h2 := xxhash.Sum64(buf[:])
	return sum, h2 | 1 // force odd so h2 is never zero and the K probes never all coincide
}

// BuildIndex derives a columnIndex from the same records passed to Encode,
// returning its serialized bytes and size (the caller folds the size into
// FileMeta.IndexSize). One bloom filter is built per label key seen across
// records, over that key's distinct values -- matching the label-equality
// clauses a real Predicate carries (e.g. {"app": "a"}), not the derived
// per-record Stream identity.
func BuildIndex(records []model.Record) ([]byte, error) {
	valuesByKey := make(map[string]map[string]struct{})
	var minTS, maxTS int64
	for i, rec := range records {
		for k, v := range rec.Labels {
			set, ok := valuesByKey[k]
			if !ok {
				set = make(map[string]struct{})
				valuesByKey[k] = set
			}
			set[v] = struct{}{}
		}
		if i == 0 || rec.TimestampUs < minTS {
			minTS = rec.TimestampUs
		}
		if i == 0 || rec.TimestampUs > maxTS {
			maxTS = rec.TimestampUs
		}
	}

	labelBloom := make(map[string]bloomFilter, len(valuesByKey))
	for key, values := range valuesByKey {
		filter := newBloomFilter(len(values), 0.01)
		for v := range values {
			filter.add(v)
		}
		labelBloom[key] = filter
	}

	idx := columnIndex{LabelBloom: labelBloom, MinTS: minTS, MaxTS: maxTS}
	data, err := json.Marshal(idx)
	if err != nil {
		return nil, newCodecError(KindInternalCodec, "marshal column index: %s", err)
	}
	return data, nil
}

// IndexMayMatchLabels reports whether a serialized columnIndex's file might
// contain a record matching every clause of labelEquals. A false result is
// authoritative (the file is guaranteed not to match); a true result
// requires opening the file to confirm. A label key the index never saw
// (not present in LabelBloom) can't be proven absent, so it never causes a
// skip.
func IndexMayMatchLabels(indexData []byte, labelEquals map[string]string) (bool, error) {
	var idx columnIndex
	if err := json.Unmarshal(indexData, &idx); err != nil {
		return false, newCodecError(KindInternalCodec, "unmarshal column index: %s", err)
	}
	for key, value := range labelEquals {
		filter, ok := idx.LabelBloom[key]
		if !ok {
			continue
		}
		if !filter.mayContain(value) {
			return false, nil
		}
	}
	return true, nil
}
