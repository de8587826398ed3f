// Package config loads and validates the process-wide configuration: a
// config.json overlaid with the ZO_* environment variables, matching the
// teacher's "config file read, validated with a JSON schema, then
// environment overrides applied" pattern.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/openobserve/corelake/internal/logx"
)

// Checkpoints configures the WAL roll/upload cadence.
type Checkpoints struct {
	RollSize int64  `json:"roll-size-mb"`
	RollAge  string `json:"roll-age"`
}

// Cleanup configures tombstone grace-period retention sweeps.
type Cleanup struct {
	Interval    string `json:"interval"`
	GracePeriod string `json:"grace-period"`
}

// Admission configures per-tenant ingest ceilings.
type Admission struct {
	MaxInFlightBytes    int64 `json:"max-in-flight-bytes"`
	MaxRecordsPerSecond int64 `json:"max-records-per-second"`
}

// Horizons bounds how far a record's timestamp may drift from "now" before
// being rejected as out-of-range.
type Horizons struct {
	PastHorizon   string `json:"past-horizon"`
	FutureHorizon string `json:"future-horizon"`
}

// ObjectStoreConfig selects and configures the object storage backend.
type ObjectStoreConfig struct {
	Kind string `json:"kind"` // "fs" or "s3"
	Path string `json:"path"` // for "fs"

	Endpoint     string `json:"endpoint"`
	Bucket       string `json:"bucket"`
	Region       string `json:"region"`
	AccessKey    string `json:"access-key"`
	SecretKey    string `json:"secret-key"`
	UsePathStyle bool   `json:"use-path-style"`
}

// Config is the root process configuration, loaded from config.json and
// overlaid with environment variables documented in SPEC_FULL.md section 6.
type Config struct {
	DataDir              string            `json:"data-dir"`
	RootUserEmail        string            `json:"root-user-email"`
	PartitionDuration    string            `json:"partition-duration"`
	Checkpoints          Checkpoints       `json:"checkpoints"`
	Cleanup              Cleanup           `json:"cleanup"`
	Admission            Admission         `json:"admission"`
	Horizons             Horizons          `json:"horizons"`
	IngestAddr           string            `json:"ingest-addr"`
	QueryAddr            string            `json:"query-addr"`
	ClusterRPCAddr       string            `json:"cluster-rpc-addr"`
	CatalogDriver        string            `json:"catalog-driver"`
	CatalogDSN           string            `json:"catalog-dsn"`
	ObjectStore          ObjectStoreConfig `json:"object-store"`
	WorkerCount          int               `json:"worker-count"`
	ParallelismPerWorker int               `json:"parallelism-per-worker"`
	NotifyAddr           string            `json:"notify-addr"`
}

// Keys is the global, process-wide configuration instance: initialized with
// defaults, then overwritten by config.json and the environment, then
// treated as read-only for the remainder of the process lifetime.
var Keys = Config{
	DataDir:           "./var/data",
	PartitionDuration: "1h",
	Checkpoints: Checkpoints{
		RollSize: 64,
		RollAge:  "10m",
	},
	Cleanup: Cleanup{
		Interval:    "1h",
		GracePeriod: "24h",
	},
	Admission: Admission{
		MaxInFlightBytes:    0, // 0 == unlimited
		MaxRecordsPerSecond: 0,
	},
	Horizons: Horizons{
		PastHorizon:   "24h",
		FutureHorizon: "1h",
	},
	IngestAddr:           ":5080",
	QueryAddr:            ":5081",
	ClusterRPCAddr:       ":5082",
	CatalogDriver:        "sqlite3",
	CatalogDSN:           "./var/data/catalog/catalog.db",
	ObjectStore:          ObjectStoreConfig{Kind: "fs", Path: "./var/data/objects"},
	WorkerCount:          0,
	ParallelismPerWorker: 2,
}

// Init loads flagConfigFile (if present), validates it against Schema, and
// applies it on top of the defaults in Keys. A missing file is not an
// error -- defaults plus environment overlay are a valid configuration.
func Init(flagConfigFile string) error {
	if flagConfigFile != "" {
		raw, err := os.ReadFile(flagConfigFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return err
			}
		} else {
			if err := Validate(raw); err != nil {
				return err
			}
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&Keys); err != nil {
				return err
			}
		}
	}

	applyEnv()
	return nil
}

// applyEnv overlays the ZO_* environment variables named in the external
// interfaces section over whatever config.json (or the defaults) produced.
// Environment always wins, matching twelve-factor deployment practice.
func applyEnv() {
	if v, ok := os.LookupEnv("ZO_ROOT_USER_EMAIL"); ok {
		Keys.RootUserEmail = v
	}
	if v, ok := os.LookupEnv("ZO_DATA_DIR"); ok {
		Keys.DataDir = v
	}
	if v, ok := os.LookupEnv("ZO_PARTITION_DURATION_SECS"); ok {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			Keys.PartitionDuration = (time.Duration(secs) * time.Second).String()
		} else {
			logx.Warnf("config: invalid ZO_PARTITION_DURATION_SECS %q: %s", v, err)
		}
	}
	if v, ok := os.LookupEnv("ZO_ROLL_SIZE_MB"); ok {
		if mb, err := strconv.ParseInt(v, 10, 64); err == nil {
			Keys.Checkpoints.RollSize = mb
		} else {
			logx.Warnf("config: invalid ZO_ROLL_SIZE_MB %q: %s", v, err)
		}
	}
	if v, ok := os.LookupEnv("ZO_ROLL_AGE_SECS"); ok {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			Keys.Checkpoints.RollAge = (time.Duration(secs) * time.Second).String()
		} else {
			logx.Warnf("config: invalid ZO_ROLL_AGE_SECS %q: %s", v, err)
		}
	}
	if v, ok := os.LookupEnv("ZO_RETENTION_DAYS"); ok {
		if days, err := strconv.ParseInt(v, 10, 64); err == nil {
			Keys.Cleanup.GracePeriod = (time.Duration(days) * 24 * time.Hour).String()
		} else {
			logx.Warnf("config: invalid ZO_RETENTION_DAYS %q: %s", v, err)
		}
	}
	if v, ok := os.LookupEnv("ZO_MAX_IN_FLIGHT_BYTES"); ok {
		if b, err := strconv.ParseInt(v, 10, 64); err == nil {
			Keys.Admission.MaxInFlightBytes = b
		} else {
			logx.Warnf("config: invalid ZO_MAX_IN_FLIGHT_BYTES %q: %s", v, err)
		}
	}
}

// PartitionDurationUs returns the configured partition duration in
// microseconds, the unit Record.TimestampUs and model.PartitionID operate in.
func PartitionDurationUs() int64 {
	d, err := time.ParseDuration(Keys.PartitionDuration)
	if err != nil {
		logx.Warnf("config: invalid partition-duration %q, defaulting to 1h: %s", Keys.PartitionDuration, err)
		d = time.Hour
	}
	return d.Microseconds()
}

// RollSizeBytes returns the configured WAL roll-size threshold in bytes.
func RollSizeBytes() int64 {
	return Keys.Checkpoints.RollSize * 1024 * 1024
}

// RollAgeDuration returns the configured WAL roll-age threshold.
func RollAgeDuration() time.Duration {
	d, err := time.ParseDuration(Keys.Checkpoints.RollAge)
	if err != nil {
		logx.Warnf("config: invalid roll-age %q, defaulting to 10m: %s", Keys.Checkpoints.RollAge, err)
		return 10 * time.Minute
	}
	return d
}

// GracePeriodDuration returns the configured tombstone grace period before
// physical deletion of a deleted file's bytes.
func GracePeriodDuration() time.Duration {
	d, err := time.ParseDuration(Keys.Cleanup.GracePeriod)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// PastHorizonDuration returns how far behind "now" a record's timestamp may
// be before it is rejected as out-of-range.
func PastHorizonDuration() time.Duration {
	d, err := time.ParseDuration(Keys.Horizons.PastHorizon)
	if err != nil {
		logx.Warnf("config: invalid past-horizon %q, defaulting to 24h: %s", Keys.Horizons.PastHorizon, err)
		return 24 * time.Hour
	}
	return d
}

// FutureHorizonDuration returns how far ahead of "now" a record's timestamp
// may be before it is rejected as out-of-range.
func FutureHorizonDuration() time.Duration {
	d, err := time.ParseDuration(Keys.Horizons.FutureHorizon)
	if err != nil {
		logx.Warnf("config: invalid future-horizon %q, defaulting to 1h: %s", Keys.Horizons.FutureHorizon, err)
		return time.Hour
	}
	return d
}
