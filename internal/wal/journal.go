// Package wal implements C2: the per-partition write-ahead log that makes
// an ingest append durable before it is acknowledged, and the recovery
// path that replays a segment back to records after a crash.
//
// # Record format
//
//	[4B length_be uint32][4B crc32c uint32][payload]
//
// length_be counts payload bytes only. crc32c is the Castagnoli checksum
// of payload, computed the same way the teacher's metricstore WAL checks
// its own records, but big-endian and CRC32C rather than little-endian
// IEEE, per the wire format named in the spec.
package wal

import (
	"encoding/binary"
	"hash/crc32"
	"io"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

const frameHeaderSize = 4 + 4 // length + crc

// writeFrame appends one length-prefixed, checksummed frame to w.
func writeFrame(w io.Writer, payload []byte) error {
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint32(header[4:8], crc32.Checksum(payload, castagnoli))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads one frame from r. io.EOF with a nil payload signals a
// clean end of stream; a non-EOF error (including a CRC mismatch) signals
// a frame that did not complete writing and must be discarded by the
// caller's recovery loop, not propagated as a hard failure.
func readFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errFrameTruncated
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	wantCRC := binary.BigEndian.Uint32(header[4:8])

	if length > maxFrameBytes {
		return nil, errFrameTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errFrameTruncated
	}

	if crc32.Checksum(payload, castagnoli) != wantCRC {
		return nil, errFrameCorrupt
	}
	return payload, nil
}

// maxFrameBytes bounds a single frame's payload size as a sanity check
// against a corrupt length field sending the reader off to allocate
// gigabytes before the CRC check ever runs.
const maxFrameBytes = 64 * 1024 * 1024
