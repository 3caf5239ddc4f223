// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates runtime configuration for the core:
// the UDP listener, the event store, the scene-controller endpoints, the
// recording controller, the trigger engine, the distributor, and
// maintenance scheduling.
//
// Configuration is layered with Koanf v2: built-in defaults, then an
// optional YAML file, then environment variables (highest precedence).
//
//	cfg, err := config.Load()
package config

import (
	"time"

	"github.com/tkdvta/corevta/internal/domain"
)

// Config holds all runtime tunables for the core, corresponding to the
// enumerated configuration keys.
type Config struct {
	UDP             UDPConfig             `koanf:"udp"`
	Recording       RecordingConfig       `koanf:"recording"`
	Triggers        TriggersConfig        `koanf:"triggers"`
	IVR             IVRConfig             `koanf:"ivr"`
	Maintenance     MaintenanceConfig     `koanf:"maintenance"`
	AutoRecording   AutoRecordingConfig   `koanf:"auto_recording"`
	SceneCtrl       SceneControllersConfig `koanf:"scene_controllers"`
	Distributor     DistributorConfig     `koanf:"distributor"`
	Store           StoreConfig           `koanf:"store"`
	Logging         LoggingConfig         `koanf:"logging"`
}

// NetworkInterfaceConfig controls the best-interface heuristic used to pick
// a UDP bind address when udp.bind_address is left unset.
type NetworkInterfaceConfig struct {
	AutoDetect    bool   `koanf:"auto_detect"`
	PreferredType string `koanf:"preferred_type"` // "ethernet" or "wifi"
}

// UDPConfig configures the PSS UDP listener.
type UDPConfig struct {
	Port               int                     `koanf:"port"`
	BindAddress        string                  `koanf:"bind_address"`
	AutoStart          bool                    `koanf:"auto_start"`
	FallbackToLocalhost bool                   `koanf:"fallback_to_localhost"`
	NetworkInterface   NetworkInterfaceConfig  `koanf:"network_interface"`
}

// RecordingConfig configures the recording controller's path generation and
// filename templating.
type RecordingConfig struct {
	RootPath         string `koanf:"root_path"`
	Format           string `koanf:"format"`
	FolderPattern    string `koanf:"folder_pattern"`
	FilenameTemplate string `koanf:"filename_template"`
}

// TriggersConfig configures the trigger engine's pause/resume behavior and
// carries the operator-authored rule set (§3 Trigger).
type TriggersConfig struct {
	ResumeDelayMs int              `koanf:"resume_delay_ms"`
	Rules         []domain.Trigger `koanf:"rules"`
}

// ReplayConfig configures automatic replay-buffer save on challenge.
type ReplayConfig struct {
	AutoOnChallenge bool   `koanf:"auto_on_challenge"`
	MpvPath         string `koanf:"mpv_path"`
	SecondsFromEnd  int    `koanf:"seconds_from_end"`
	MaxWaitMs       int    `koanf:"max_wait_ms"`
}

// IVRConfig groups instant-video-replay settings.
type IVRConfig struct {
	Replay ReplayConfig `koanf:"replay"`
}

// MaintenanceConfig configures the store's maintenance scheduler.
type MaintenanceConfig struct {
	VacuumIntervalS         int  `koanf:"vacuum_interval_s"`
	IntegrityCheckIntervalS int  `koanf:"integrity_check_interval_s"`
	AnalyzeIntervalS        int  `koanf:"analyze_interval_s"`
	OptimizeIntervalS       int  `koanf:"optimize_interval_s"`
	MaxVacuumTimeS          int  `koanf:"max_vacuum_time_s"`
	BackupBeforeMaintenance bool `koanf:"backup_before_maintenance"`
	RetentionWindow         time.Duration `koanf:"retention_window"`
}

// AutoRecordingConfig configures the recording controller's event-driven
// behavior.
type AutoRecordingConfig struct {
	Enabled                           bool   `koanf:"enabled"`
	OBSConnectionName                 string `koanf:"obs_connection_name"`
	AutoStopOnMatchEnd                bool   `koanf:"auto_stop_on_match_end"`
	AutoStopOnWinner                  bool   `koanf:"auto_stop_on_winner"`
	StopDelaySeconds                  int    `koanf:"stop_delay_seconds"`
	AutoStartRecordingOnMatchBegin    bool   `koanf:"auto_start_recording_on_match_begin"`
	AutoStartReplayOnMatchBegin       bool   `koanf:"auto_start_replay_on_match_begin"`
}

// SceneControllerConfig describes one external production endpoint.
type SceneControllerConfig struct {
	Name     string `koanf:"name"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	Enabled  bool   `koanf:"enabled"`
}

// SceneControllersConfig is the list of configured scene-controller endpoints.
type SceneControllersConfig struct {
	Endpoints []SceneControllerConfig `koanf:"endpoints"`
}

// DistributorConfig configures the overlay socket server.
type DistributorConfig struct {
	OverlayPort     int `koanf:"overlay_port"`
	BroadcastBuffer int `koanf:"broadcast_buffer"`
}

// StoreConfig configures the embedded SQL event store.
type StoreConfig struct {
	DataDir     string `koanf:"data_dir"`
	Name        string `koanf:"name"`
	PoolMaxSize int    `koanf:"pool_max_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
