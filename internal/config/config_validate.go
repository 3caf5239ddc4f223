// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "fmt"

// Validate checks that configuration is complete and internally consistent.
func (c *Config) Validate() error {
	if err := c.validateUDP(); err != nil {
		return err
	}
	if err := c.validateRecording(); err != nil {
		return err
	}
	if err := c.validateTriggers(); err != nil {
		return err
	}
	if err := c.validateIVR(); err != nil {
		return err
	}
	if err := c.validateMaintenance(); err != nil {
		return err
	}
	if err := c.validateAutoRecording(); err != nil {
		return err
	}
	if err := c.validateSceneControllers(); err != nil {
		return err
	}
	if err := c.validateDistributor(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateUDP() error {
	if c.UDP.Port < 1 || c.UDP.Port > 65535 {
		return fmt.Errorf("udp.port must be between 1 and 65535, got %d", c.UDP.Port)
	}
	switch c.UDP.NetworkInterface.PreferredType {
	case "ethernet", "wifi":
	default:
		return fmt.Errorf("udp.network_interface.preferred_type must be \"ethernet\" or \"wifi\", got %q", c.UDP.NetworkInterface.PreferredType)
	}
	return nil
}

func (c *Config) validateRecording() error {
	switch c.Recording.Format {
	case "mp4", "mkv", "mov":
	default:
		return fmt.Errorf("recording.format must be one of mp4, mkv, mov, got %q", c.Recording.Format)
	}
	if c.Recording.FilenameTemplate == "" {
		return fmt.Errorf("recording.filename_template is required")
	}
	return nil
}

func (c *Config) validateTriggers() error {
	if c.Triggers.ResumeDelayMs < 0 {
		return fmt.Errorf("triggers.resume_delay_ms must not be negative, got %d", c.Triggers.ResumeDelayMs)
	}
	return nil
}

func (c *Config) validateIVR() error {
	if c.IVR.Replay.SecondsFromEnd < 0 {
		return fmt.Errorf("ivr.replay.seconds_from_end must not be negative, got %d", c.IVR.Replay.SecondsFromEnd)
	}
	if c.IVR.Replay.MaxWaitMs < 0 {
		return fmt.Errorf("ivr.replay.max_wait_ms must not be negative, got %d", c.IVR.Replay.MaxWaitMs)
	}
	if c.IVR.Replay.AutoOnChallenge && c.IVR.Replay.MpvPath == "" {
		return fmt.Errorf("ivr.replay.mpv_path is required when ivr.replay.auto_on_challenge is true")
	}
	return nil
}

func (c *Config) validateMaintenance() error {
	m := c.Maintenance
	if m.VacuumIntervalS <= 0 {
		return fmt.Errorf("maintenance.vacuum_interval_s must be positive, got %d", m.VacuumIntervalS)
	}
	if m.IntegrityCheckIntervalS <= 0 {
		return fmt.Errorf("maintenance.integrity_check_interval_s must be positive, got %d", m.IntegrityCheckIntervalS)
	}
	if m.AnalyzeIntervalS <= 0 {
		return fmt.Errorf("maintenance.analyze_interval_s must be positive, got %d", m.AnalyzeIntervalS)
	}
	if m.OptimizeIntervalS <= 0 {
		return fmt.Errorf("maintenance.optimize_interval_s must be positive, got %d", m.OptimizeIntervalS)
	}
	if m.MaxVacuumTimeS <= 0 {
		return fmt.Errorf("maintenance.max_vacuum_time_s must be positive, got %d", m.MaxVacuumTimeS)
	}
	return nil
}

func (c *Config) validateAutoRecording() error {
	a := c.AutoRecording
	if !a.Enabled {
		return nil
	}
	if a.StopDelaySeconds < 0 {
		return fmt.Errorf("auto_recording.stop_delay_seconds must not be negative, got %d", a.StopDelaySeconds)
	}
	return nil
}

func (c *Config) validateSceneControllers() error {
	seen := make(map[string]bool, len(c.SceneCtrl.Endpoints))
	for _, ep := range c.SceneCtrl.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("scene_controllers.endpoints entries require a non-empty name")
		}
		if seen[ep.Name] {
			return fmt.Errorf("scene_controllers.endpoints has a duplicate name %q", ep.Name)
		}
		seen[ep.Name] = true
		if ep.Enabled && ep.Host == "" {
			return fmt.Errorf("scene_controllers.endpoints[%s].host is required when enabled", ep.Name)
		}
		if ep.Port < 1 || ep.Port > 65535 {
			return fmt.Errorf("scene_controllers.endpoints[%s].port must be between 1 and 65535, got %d", ep.Name, ep.Port)
		}
	}
	return nil
}

func (c *Config) validateDistributor() error {
	if c.Distributor.OverlayPort < 1 || c.Distributor.OverlayPort > 65535 {
		return fmt.Errorf("distributor.overlay_port must be between 1 and 65535, got %d", c.Distributor.OverlayPort)
	}
	if c.Distributor.BroadcastBuffer <= 0 {
		return fmt.Errorf("distributor.broadcast_buffer must be positive, got %d", c.Distributor.BroadcastBuffer)
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.Name == "" {
		return fmt.Errorf("store.name is required")
	}
	if c.Store.PoolMaxSize <= 0 {
		return fmt.Errorf("store.pool_max_size must be positive, got %d", c.Store.PoolMaxSize)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("logging.level must be a valid level, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be \"json\" or \"console\", got %q", c.Logging.Format)
	}
	return nil
}
