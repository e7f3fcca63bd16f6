package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AIRWAVE_"

// Load reads the YAML configuration file at path, applies environment
// overrides and defaults, and returns a validated [Config].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := parse(bytes.NewReader(data), true)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. The environment is not consulted. Useful in tests where configs
// are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	return parse(r, false)
}

func parse(r io.Reader, withEnv bool) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if withEnv {
		if err := ApplyEnv(cfg); err != nil {
			return nil, err
		}
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverrides lists the settings that may come from the environment,
// each prefixed with [EnvPrefix].
type envOverrides struct {
	DiscordToken string `env:"DISCORD_TOKEN"`
	GuildID      string `env:"DISCORD_GUILD_ID"`
	PostgresDSN  string `env:"POSTGRES_DSN"`
	ListenAddr   string `env:"LISTEN_ADDR"`
	LogLevel     string `env:"LOG_LEVEL"`
	FFmpegPath   string `env:"FFMPEG_PATH"`
}

// bareEnv holds conventional unprefixed variables.
type bareEnv struct {
	DiscordToken string `env:"DISCORD_TOKEN"`
}

// ApplyEnv overlays non-empty environment variables onto cfg. AIRWAVE_ prefixed
// variables take precedence over the bare DISCORD_TOKEN.
func ApplyEnv(cfg *Config) error {
	var bare bareEnv
	if err := env.Parse(&bare); err != nil {
		return fmt.Errorf("config: read environment: %w", err)
	}
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: read environment: %w", err)
	}

	setIf(&cfg.Discord.Token, bare.DiscordToken)
	setIf(&cfg.Discord.Token, o.DiscordToken)
	setIf(&cfg.Discord.GuildID, o.GuildID)
	setIf(&cfg.Resume.PostgresDSN, o.PostgresDSN)
	setIf(&cfg.Server.ListenAddr, o.ListenAddr)
	setIf(&cfg.Playback.FFmpegPath, o.FFmpegPath)
	if o.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(strings.ToLower(o.LogLevel))
	}
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ApplyDefaults fills zero values with the package defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	p := &cfg.Playback
	if p.MaxRetries == 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.RetryDelay == 0 {
		p.RetryDelay = DefaultRetryDelay
	}
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = DefaultConnectTimeout
	}
	if p.FFmpegPath == "" {
		p.FFmpegPath = DefaultFFmpegPath
	}
	if p.Bitrate == 0 {
		p.Bitrate = DefaultBitrate
	}

	m := &cfg.Metadata
	if m.Interval == 0 {
		m.Interval = DefaultMetadataEvery
	}
	if m.Timeout == 0 {
		m.Timeout = DefaultMetadataTimeout
	}
	if m.MaxConcurrent == 0 {
		m.MaxConcurrent = DefaultMaxConcurrent
	}
	if m.UserAgent == "" {
		m.UserAgent = DefaultUserAgent
	}

	r := &cfg.Resume
	if r.Backend == "" {
		r.Backend = ResumeFile
	}
	if r.Path == "" {
		r.Path = DefaultResumePath
	}
	if r.SQLitePath == "" {
		r.SQLitePath = DefaultSQLitePath
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// The Discord token is not checked here so configs can be validated offline.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Playback.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("playback.max_retries %d must not be negative", cfg.Playback.MaxRetries))
	}
	if cfg.Playback.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("playback.retry_delay %s must not be negative", cfg.Playback.RetryDelay))
	}
	if cfg.Playback.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("playback.connect_timeout %s must not be negative", cfg.Playback.ConnectTimeout))
	}
	if b := cfg.Playback.Bitrate; b != 0 && (b < 8000 || b > 512000) {
		errs = append(errs, fmt.Errorf("playback.bitrate %d is out of range [8000, 512000]", b))
	}

	if cfg.Metadata.Interval < 0 {
		errs = append(errs, fmt.Errorf("metadata.interval %s must not be negative", cfg.Metadata.Interval))
	}
	if cfg.Metadata.Timeout < 0 {
		errs = append(errs, fmt.Errorf("metadata.timeout %s must not be negative", cfg.Metadata.Timeout))
	}
	if cfg.Metadata.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("metadata.max_concurrent %d must not be negative", cfg.Metadata.MaxConcurrent))
	}

	if cfg.Resume.Backend != "" && !cfg.Resume.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("resume.backend %q is invalid; valid values: file, postgres, sqlite, memory", cfg.Resume.Backend))
	}
	if cfg.Resume.Backend == ResumePostgres && cfg.Resume.PostgresDSN == "" {
		errs = append(errs, errors.New("resume.postgres_dsn is required when resume.backend is postgres"))
	}

	seen := make(map[string]int, len(cfg.Stations))
	for i, st := range cfg.Stations {
		prefix := fmt.Sprintf("stations[%d]", i)
		name := strings.ToLower(strings.TrimSpace(st.Name))
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := seen[name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of stations[%d]", prefix, st.Name, prev))
			}
			seen[name] = i
		}
		if st.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required", prefix))
		} else if u, err := url.Parse(st.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s.url %q must be an http(s) URL", prefix, st.URL))
		}
	}

	return errors.Join(errs...)
}
