// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where a config file is searched for,
// in priority order. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/corevta/config.yaml",
	"/etc/corevta/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CORE_CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		UDP: UDPConfig{
			Port:                8888,
			BindAddress:         "127.0.0.1",
			AutoStart:           false,
			FallbackToLocalhost: true,
			NetworkInterface: NetworkInterfaceConfig{
				AutoDetect:    true,
				PreferredType: "ethernet",
			},
		},
		Recording: RecordingConfig{
			RootPath:         "",
			Format:           "mp4",
			FolderPattern:    "{tournament}/{tournamentDay}",
			FilenameTemplate: "{matchNumber} {player1} VS {player2} {date}_{time}",
		},
		Triggers: TriggersConfig{
			ResumeDelayMs: 2000,
		},
		IVR: IVRConfig{
			Replay: ReplayConfig{
				AutoOnChallenge: false,
				MpvPath:         "mpv",
				SecondsFromEnd:  10,
				MaxWaitMs:       500,
			},
		},
		Maintenance: MaintenanceConfig{
			VacuumIntervalS:         24 * 3600,
			IntegrityCheckIntervalS: 3600,
			AnalyzeIntervalS:        6 * 3600,
			OptimizeIntervalS:       1800,
			MaxVacuumTimeS:          120,
			BackupBeforeMaintenance: true,
			RetentionWindow:         90 * 24 * time.Hour,
		},
		AutoRecording: AutoRecordingConfig{
			Enabled:                        false,
			OBSConnectionName:              "",
			AutoStopOnMatchEnd:             true,
			AutoStopOnWinner:               true,
			StopDelaySeconds:               0,
			AutoStartRecordingOnMatchBegin: true,
			AutoStartReplayOnMatchBegin:    true,
		},
		Distributor: DistributorConfig{
			OverlayPort:     3001,
			BroadcastBuffer: 1000,
		},
		Store: StoreConfig{
			DataDir:     "data",
			Name:        "vta",
			PoolMaxSize: 6,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration in priority order defaults < config file <
// environment variables, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("CORE_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
