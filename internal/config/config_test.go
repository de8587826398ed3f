package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyEnvOverridesDefaults(t *testing.T) {
	Keys = Config{Checkpoints: Checkpoints{RollSize: 64, RollAge: "10m"}, Cleanup: Cleanup{GracePeriod: "24h"}}

	t.Setenv("ZO_ROLL_SIZE_MB", "128")
	t.Setenv("ZO_ROLL_AGE_SECS", "30")
	t.Setenv("ZO_RETENTION_DAYS", "2")
	t.Setenv("ZO_MAX_IN_FLIGHT_BYTES", "1000")

	applyEnv()

	require.Equal(t, int64(128), Keys.Checkpoints.RollSize)
	require.Equal(t, "30s", Keys.Checkpoints.RollAge)
	require.Equal(t, "48h0m0s", Keys.Cleanup.GracePeriod)
	require.Equal(t, int64(1000), Keys.Admission.MaxInFlightBytes)
}

func TestRollSizeBytes(t *testing.T) {
	Keys.Checkpoints.RollSize = 64
	require.Equal(t, int64(64*1024*1024), RollSizeBytes())
}

func TestValidateRejectsUnknownObjectStoreKind(t *testing.T) {
	err := Validate([]byte(`{"object-store":{"kind":"ftp"}}`))
	require.Error(t, err)
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	err := Validate([]byte(`{"data-dir":"/tmp/x","object-store":{"kind":"fs"}}`))
	require.NoError(t, err)
}
