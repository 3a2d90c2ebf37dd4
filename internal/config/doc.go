// Package config loads the dashboard configuration file.
//
// # Configuration Discovery
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/panelwatch/config.toml
//  3. If the file doesn't exist, use defaults
//  4. Fields that are missing, empty or non-positive keep their defaults
//
// # TOML Format
//
//	registry_dir = "~/.local/share/panelwatch/scripts"
//	poll_interval = 1          # seconds
//	inactive_timeout = 5       # minutes
//	max_concurrent_reads = 8
//	max_read_bytes = 4194304
//	encodings = ["utf-8", "gbk", "gb18030", "utf-16", "latin1"]
//	force_reload = 0           # seconds, 0 disables
//	log_file = "~/.local/state/panelwatch/panelwatch.log"
//	log_level = "info"
//
// Paths get tilde expansion and are made absolute. Unknown encoding names
// are rejected at load time rather than on the first unreadable log.
//
// Missing config files are NOT an error so the dashboard works
// out-of-the-box.
package config
