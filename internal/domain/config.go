package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Connection ConnectionConfig `mapstructure:"connection"`
	Download   DownloadConfig   `mapstructure:"download"`
	Cookies    CookiesConfig    `mapstructure:"cookies"`
	Tab        TabConfig        `mapstructure:"tab"`
	History    HistoryConfig    `mapstructure:"history"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig contains the background daemon's listen address
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// BackendConfig points at the extraction service
type BackendConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	InfoTimeout time.Duration `mapstructure:"info_timeout"`
}

// ConnectionConfig tunes the UI-side channel state machine
type ConnectionConfig struct {
	ConnectTimeout       time.Duration `mapstructure:"connect_timeout"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
}

// DownloadConfig tunes the streaming download client
type DownloadConfig struct {
	Dir              string        `mapstructure:"dir"`
	Timeout          time.Duration `mapstructure:"timeout"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// CookiesConfig locates the host cookie store
type CookiesConfig struct {
	File string `mapstructure:"file"` // Netscape-format cookies.txt
}

// TabConfig locates the active-tab state file maintained by the browser side
type TabConfig struct {
	StateFile string `mapstructure:"state_file"`
}

// HistoryConfig contains history persistence settings
type HistoryConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8750,
		},
		Backend: BackendConfig{
			BaseURL:     "http://localhost:8000/api/v1",
			InfoTimeout: 30 * time.Second,
		},
		Connection: ConnectionConfig{
			ConnectTimeout:       2 * time.Second,
			MaxReconnectAttempts: 3,
			ReconnectDelay:       time.Second,
		},
		Download: DownloadConfig{
			Dir:              "$HOME/Downloads/ufd",
			Timeout:          time.Hour,
			ProgressInterval: 100 * time.Millisecond,
		},
		Cookies: CookiesConfig{
			File: "$HOME/.ufd/cookies.txt",
		},
		Tab: TabConfig{
			StateFile: "$HOME/.ufd/current_tab.json",
		},
		History: HistoryConfig{
			DatabasePath: "$HOME/.ufd/history.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
