package wal

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/logx"
	"github.com/openobserve/corelake/internal/model"
)

// RecoveredSegment is one unrolled journal found at startup, replayed back
// to its records plus enough addressing information for the caller
// (internal/ingest) to resume or re-roll it.
type RecoveredSegment struct {
	Tenant      string
	Stream      string
	PartitionID int64
	SegID       string
	Path        string
	Records     []model.Record
}

// Recover walks journalDir (expected layout
// <dir>/<tenant>/<stream>/<partitionID>/<segID>.wal) and replays every
// journal file found, discarding a torn or corrupt tail frame rather than
// failing the whole segment -- the crash-safety guarantee the journal
// format exists for.
func Recover(journalDir string) ([]RecoveredSegment, error) {
	var out []RecoveredSegment

	err := filepath.WalkDir(journalDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".wal") {
			return nil
		}

		seg, rerr := recoverOne(journalDir, path)
		if rerr != nil {
			logx.Warnf("wal: recover %s: %v", path, rerr)
			return nil
		}
		out = append(out, seg)
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "wal: walk journal dir %s", journalDir)
	}
	return out, nil
}

func recoverOne(root, path string) (RecoveredSegment, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return RecoveredSegment{}, err
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 4 {
		return RecoveredSegment{}, errs.New(errs.Internal, "wal: unexpected journal path layout %q", rel)
	}
	tenant, stream, partitionStr, segFile := parts[0], parts[1], parts[2], parts[3]
	segID := strings.TrimSuffix(segFile, ".wal")

	var partitionID int64
	for _, c := range partitionStr {
		if c < '0' || c > '9' {
			return RecoveredSegment{}, errs.New(errs.Internal, "wal: non-numeric partition dir %q", partitionStr)
		}
		partitionID = partitionID*10 + int64(c-'0')
	}

	f, err := os.Open(path)
	if err != nil {
		return RecoveredSegment{}, err
	}
	defer f.Close()

	var records []model.Record
	for {
		payload, rerr := readFrame(f)
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if Recoverable(rerr) {
				logx.Warnf("wal: truncating torn tail in %s: %v", path, rerr)
				break
			}
			return RecoveredSegment{}, rerr
		}

		rec, derr := decodeRecord(payload)
		if derr != nil {
			logx.Warnf("wal: truncating undecodable tail frame in %s: %v", path, derr)
			break
		}
		records = append(records, rec)
	}

	return RecoveredSegment{
		Tenant:      tenant,
		Stream:      stream,
		PartitionID: partitionID,
		SegID:       segID,
		Path:        path,
		Records:     records,
	}, nil
}

// ResumeBuilder re-opens a recovered segment's journal for further
// appends, used when the ingest coordinator decides a recovered segment
// still has headroom before its next roll rather than rolling it
// immediately.
func ResumeBuilder(seg RecoveredSegment, rollSizeBytes int64, rollAge time.Duration) (*PartitionBuilder, error) {
	f, err := os.OpenFile(seg.Path, os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "wal: reopen journal %s", seg.Path)
	}

	var uncompressed int64
	for _, r := range seg.Records {
		uncompressed += int64(len(r.Line))
	}

	return &PartitionBuilder{
		Tenant:        seg.Tenant,
		Stream:        seg.Stream,
		PartitionID:   seg.PartitionID,
		SegID:         seg.SegID,
		journalPath:   seg.Path,
		journal:       f,
		records:       seg.Records,
		uncompressed:  uncompressed,
		openedAt:      time.Now(),
		state:         Open,
		rollSizeBytes: rollSizeBytes,
		rollAge:       rollAge,
	}, nil
}
