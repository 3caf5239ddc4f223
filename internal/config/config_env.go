// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "strings"

// envKeyMappings maps a lowercased environment variable suffix (the part
// after the CORE_ prefix) to its koanf dotted path. A plain underscore ->
// dot transform would corrupt multi-word leaf keys such as bind_address or
// filename_template, so each key is listed explicitly, the same approach
// used for the legacy TAUTULLI_/PLEX_ style variables this config layer
// replaces.
var envKeyMappings = map[string]string{
	"udp_port":                 "udp.port",
	"udp_bind_address":         "udp.bind_address",
	"udp_auto_start":           "udp.auto_start",
	"udp_fallback_to_localhost": "udp.fallback_to_localhost",
	"udp_network_interface_auto_detect":    "udp.network_interface.auto_detect",
	"udp_network_interface_preferred_type": "udp.network_interface.preferred_type",

	"recording_root_path":         "recording.root_path",
	"recording_format":            "recording.format",
	"recording_folder_pattern":    "recording.folder_pattern",
	"recording_filename_template": "recording.filename_template",

	"triggers_resume_delay_ms": "triggers.resume_delay_ms",

	"ivr_replay_auto_on_challenge": "ivr.replay.auto_on_challenge",
	"ivr_replay_mpv_path":          "ivr.replay.mpv_path",
	"ivr_replay_seconds_from_end":  "ivr.replay.seconds_from_end",
	"ivr_replay_max_wait_ms":       "ivr.replay.max_wait_ms",

	"maintenance_vacuum_interval_s":           "maintenance.vacuum_interval_s",
	"maintenance_integrity_check_interval_s":  "maintenance.integrity_check_interval_s",
	"maintenance_analyze_interval_s":          "maintenance.analyze_interval_s",
	"maintenance_optimize_interval_s":         "maintenance.optimize_interval_s",
	"maintenance_max_vacuum_time_s":           "maintenance.max_vacuum_time_s",
	"maintenance_backup_before_maintenance":   "maintenance.backup_before_maintenance",
	"maintenance_retention_window":            "maintenance.retention_window",

	"auto_recording_enabled":                              "auto_recording.enabled",
	"auto_recording_obs_connection_name":                  "auto_recording.obs_connection_name",
	"auto_recording_auto_stop_on_match_end":                "auto_recording.auto_stop_on_match_end",
	"auto_recording_auto_stop_on_winner":                  "auto_recording.auto_stop_on_winner",
	"auto_recording_stop_delay_seconds":                   "auto_recording.stop_delay_seconds",
	"auto_recording_auto_start_recording_on_match_begin":  "auto_recording.auto_start_recording_on_match_begin",
	"auto_recording_auto_start_replay_on_match_begin":     "auto_recording.auto_start_replay_on_match_begin",

	"distributor_overlay_port":     "distributor.overlay_port",
	"distributor_broadcast_buffer": "distributor.broadcast_buffer",

	"store_data_dir":       "store.data_dir",
	"store_name":           "store.name",
	"store_pool_max_size":  "store.pool_max_size",

	"logging_level":  "logging.level",
	"logging_format": "logging.format",
}

// envTransformFunc converts an environment variable name into a koanf
// dotted path, e.g. CORE_UDP_BIND_ADDRESS -> udp.bind_address. Keys not
// present in envKeyMappings are left untouched so koanf silently ignores
// them rather than mangling a multi-word leaf into an incorrect path.
func envTransformFunc(s string) string {
	s = strings.TrimPrefix(s, "CORE_")
	s = strings.ToLower(s)
	if path, ok := envKeyMappings[s]; ok {
		return path
	}
	return s
}
