package wal

import (
	"encoding/binary"
	"fmt"

	"github.com/openobserve/corelake/internal/model"
)

// encodeRecord lays out a model.Record as a compact binary payload, the
// same hand-rolled length-prefixed style as the teacher's
// buildWALPayload/parseWALPayload, generalized from a single float sample
// to a variable-length log record.
//
//	[8B timestamp_us int64]
//	[2B stream_len][stream bytes]
//	[4B line_len][line bytes]
//	[2B num_labels]
//	  per label: [2B key_len][key][2B val_len][val]
//	[2B num_structured]
//	  per field: [2B key_len][key][4B val_len][val]
func encodeRecord(rec model.Record) []byte {
	size := 8 + 2 + len(rec.Stream) + 4 + len(rec.Line) + 2 + 2
	for k, v := range rec.Labels {
		size += 2 + len(k) + 2 + len(v)
	}
	for k, v := range rec.Structured {
		size += 2 + len(k) + 4 + len(v)
	}

	buf := make([]byte, size)
	off := 0

	binary.BigEndian.PutUint64(buf[off:], uint64(rec.TimestampUs))
	off += 8

	binary.BigEndian.PutUint16(buf[off:], uint16(len(rec.Stream)))
	off += 2
	off += copy(buf[off:], rec.Stream)

	binary.BigEndian.PutUint32(buf[off:], uint32(len(rec.Line)))
	off += 4
	off += copy(buf[off:], rec.Line)

	binary.BigEndian.PutUint16(buf[off:], uint16(len(rec.Labels)))
	off += 2
	for k, v := range rec.Labels {
		binary.BigEndian.PutUint16(buf[off:], uint16(len(k)))
		off += 2
		off += copy(buf[off:], k)
		binary.BigEndian.PutUint16(buf[off:], uint16(len(v)))
		off += 2
		off += copy(buf[off:], v)
	}

	binary.BigEndian.PutUint16(buf[off:], uint16(len(rec.Structured)))
	off += 2
	for k, v := range rec.Structured {
		binary.BigEndian.PutUint16(buf[off:], uint16(len(k)))
		off += 2
		off += copy(buf[off:], k)
		binary.BigEndian.PutUint32(buf[off:], uint32(len(v)))
		off += 4
		off += copy(buf[off:], v)
	}

	return buf[:off]
}

func decodeRecord(payload []byte) (model.Record, error) {
	var rec model.Record
	off := 0
	need := func(n int) error {
		if off+n > len(payload) {
			return fmt.Errorf("wal: record payload truncated at offset %d (need %d more bytes)", off, n)
		}
		return nil
	}

	if err := need(8); err != nil {
		return rec, err
	}
	rec.TimestampUs = int64(binary.BigEndian.Uint64(payload[off:]))
	off += 8

	if err := need(2); err != nil {
		return rec, err
	}
	streamLen := int(binary.BigEndian.Uint16(payload[off:]))
	off += 2
	if err := need(streamLen); err != nil {
		return rec, err
	}
	rec.Stream = string(payload[off : off+streamLen])
	off += streamLen

	if err := need(4); err != nil {
		return rec, err
	}
	lineLen := int(binary.BigEndian.Uint32(payload[off:]))
	off += 4
	if err := need(lineLen); err != nil {
		return rec, err
	}
	rec.Line = string(payload[off : off+lineLen])
	off += lineLen

	if err := need(2); err != nil {
		return rec, err
	}
	numLabels := int(binary.BigEndian.Uint16(payload[off:]))
	off += 2
	if numLabels > 0 {
		rec.Labels = make(map[string]string, numLabels)
	}
	for i := 0; i < numLabels; i++ {
		if err := need(2); err != nil {
			return rec, err
		}
		kLen := int(binary.BigEndian.Uint16(payload[off:]))
		off += 2
		if err := need(kLen); err != nil {
			return rec, err
		}
		k := string(payload[off : off+kLen])
		off += kLen

		if err := need(2); err != nil {
			return rec, err
		}
		vLen := int(binary.BigEndian.Uint16(payload[off:]))
		off += 2
		if err := need(vLen); err != nil {
			return rec, err
		}
		rec.Labels[k] = string(payload[off : off+vLen])
		off += vLen
	}

	if err := need(2); err != nil {
		return rec, err
	}
	numStructured := int(binary.BigEndian.Uint16(payload[off:]))
	off += 2
	if numStructured > 0 {
		rec.Structured = make(map[string]string, numStructured)
	}
	for i := 0; i < numStructured; i++ {
		if err := need(2); err != nil {
			return rec, err
		}
		kLen := int(binary.BigEndian.Uint16(payload[off:]))
		off += 2
		if err := need(kLen); err != nil {
			return rec, err
		}
		k := string(payload[off : off+kLen])
		off += kLen

		if err := need(4); err != nil {
			return rec, err
		}
		vLen := int(binary.BigEndian.Uint32(payload[off:]))
		off += 4
		if err := need(vLen); err != nil {
			return rec, err
		}
		rec.Structured[k] = string(payload[off : off+vLen])
		off += vLen
	}

	return rec, nil
}
