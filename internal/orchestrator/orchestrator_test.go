// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tkdvta/corevta/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		UDP: config.UDPConfig{
			Port:        0,
			BindAddress: "127.0.0.1",
			AutoStart:   false,
		},
		Recording: config.RecordingConfig{
			RootPath:         t.TempDir(),
			FolderPattern:    "{tournament}/{tournamentDay}",
			FilenameTemplate: "{matchNumber} {player1} VS {player2} {date}_{time}",
		},
		Triggers: config.TriggersConfig{ResumeDelayMs: 2000},
		Maintenance: config.MaintenanceConfig{
			VacuumIntervalS:         86400,
			IntegrityCheckIntervalS: 3600,
			AnalyzeIntervalS:        21600,
			OptimizeIntervalS:       1800,
			RetentionWindow:         90 * 24 * time.Hour,
		},
		Distributor: config.DistributorConfig{OverlayPort: 0, BroadcastBuffer: 1000},
		Store:       config.StoreConfig{DataDir: t.TempDir(), Name: "vta", PoolMaxSize: 4},
		Logging:     config.LoggingConfig{Level: "info", Format: "json"},
	}
	return cfg
}

// No scene-controller endpoints are configured here: NewManager with an
// empty endpoint list connects nothing and succeeds immediately, keeping
// this test free of real network dials.
func TestNewWiresEveryComponentWithoutEndpoints(t *testing.T) {
	orch, err := New(testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, orch)
	t.Cleanup(func() { _ = orch.Close() })

	require.NotNil(t, orch.store)
	require.NotNil(t, orch.scenes)
	require.NotNil(t, orch.recorder)
	require.NotNil(t, orch.triggerEng)
	require.NotNil(t, orch.dist)
	require.NotNil(t, orch.sched)
	require.NotNil(t, orch.tree)
}

func TestRunEndsSessionOnShutdown(t *testing.T) {
	orch, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = orch.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err = orch.Run(ctx)
	if err != nil {
		require.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
	}

	require.NotZero(t, orch.sessionID)
}
