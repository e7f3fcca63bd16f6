// Package config provides the configuration schema and loader for the Airwave
// radio bot.
package config

import "time"

// LogLevel controls log verbosity for the Airwave server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ResumeBackend selects where the resume snapshot is stored.
type ResumeBackend string

const (
	ResumeFile     ResumeBackend = "file"
	ResumePostgres ResumeBackend = "postgres"
	ResumeSQLite   ResumeBackend = "sqlite"
	ResumeMemory   ResumeBackend = "memory"
)

// IsValid reports whether b is a recognised backend.
func (b ResumeBackend) IsValid() bool {
	switch b {
	case ResumeFile, ResumePostgres, ResumeSQLite, ResumeMemory:
		return true
	}
	return false
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":9090"
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = 5 * time.Second
	DefaultConnectTimeout  = 60 * time.Second
	DefaultFFmpegPath      = "ffmpeg"
	DefaultBitrate         = 96000
	DefaultMetadataEvery   = 30 * time.Second
	DefaultMetadataTimeout = 5 * time.Second
	DefaultMaxConcurrent   = 8
	DefaultUserAgent       = "Airwave/1.0"
	DefaultResumePath      = "state.json"
	DefaultSQLitePath      = "airwave.db"
)

// Config is the root configuration structure for Airwave.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Discord  DiscordConfig   `yaml:"discord"`
	Playback PlaybackConfig  `yaml:"playback"`
	Metadata MetadataConfig  `yaml:"metadata"`
	Resume   ResumeConfig    `yaml:"resume"`
	Stations []StationConfig `yaml:"stations"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the health and metrics server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. It can be changed without a restart.
	LogLevel LogLevel `yaml:"log_level"`
}

// DiscordConfig holds bot credentials and command registration scope.
type DiscordConfig struct {
	// Token is the bot token. Usually supplied via DISCORD_TOKEN instead.
	Token string `yaml:"token"`

	// GuildID registers slash commands in a single guild for fast iteration.
	// Empty registers them globally.
	GuildID string `yaml:"guild_id"`

	// DJRoleID, when set, restricts play/stop/leave to members holding this
	// role or the Manage Server permission.
	DJRoleID string `yaml:"dj_role_id"`
}

// PlaybackConfig tunes the playback supervisor.
type PlaybackConfig struct {
	// MaxRetries is how many automatic relaunches follow a failed stream
	// before the guild gives up.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the pause before each automatic relaunch.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// ConnectTimeout bounds a voice connect or move.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// FFmpegPath is the decoder executable.
	FFmpegPath string `yaml:"ffmpeg_path"`

	// Bitrate is the Opus encoder bitrate in bits per second.
	Bitrate int `yaml:"bitrate"`
}

// MetadataConfig tunes the ICY title poller.
type MetadataConfig struct {
	Interval      time.Duration `yaml:"interval"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	UserAgent     string        `yaml:"user_agent"`
}

// ResumeConfig selects and configures the resume store.
type ResumeConfig struct {
	Backend     ResumeBackend `yaml:"backend"`
	Path        string        `yaml:"path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
	SQLitePath  string        `yaml:"sqlite_path"`
}

// StationConfig is one predefined station.
type StationConfig struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}
