package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mgpai22/wordsync/internal/calibrate"
	"github.com/mgpai22/wordsync/internal/coordinator"
	"github.com/mgpai22/wordsync/internal/player"
	"github.com/mgpai22/wordsync/internal/timing"
)

const (
	CurrentConfigVersion = 1
	DefaultPath          = "wordsync.yaml"
)

// player backends
const (
	BackendMPV     = "mpv"
	BackendVirtual = "virtual"
)

type PlayerConfig struct {
	Backend             string        `yaml:"backend"`
	MPVPath             string        `yaml:"mpv_path"`
	MPVArgs             []string      `yaml:"mpv_args"`
	Volume              int           `yaml:"volume"`
	ReadyTimeout        time.Duration `yaml:"ready_timeout"`
	RecoveryDelay       time.Duration `yaml:"recovery_delay"`
	MaxRecoveryAttempts int           `yaml:"max_recovery_attempts"`
	BootstrapAttempts   int           `yaml:"bootstrap_attempts"`
	BootstrapBackoff    time.Duration `yaml:"bootstrap_backoff"`
}

type SyncConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	// preceding | none
	GapPolicy string `yaml:"gap_policy"`
}

type CalibrationConfig struct {
	DefaultWordsPerSecond float64 `yaml:"default_words_per_second"`
	// how far ahead recognized words may be matched against the transcript
	MatchWindow int `yaml:"match_window"`
}

type TranscribeConfig struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	Language      string        `yaml:"language"`
	ChunkDuration time.Duration `yaml:"chunk_duration"`
	Concurrency   int           `yaml:"concurrency"`
}

type Config struct {
	Player      PlayerConfig      `yaml:"player"`
	Sync        SyncConfig        `yaml:"sync"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Transcribe  TranscribeConfig  `yaml:"transcribe"`

	ConfigVersion int `yaml:"config_version"`

	path string
}

func Default() *Config {
	opts := player.DefaultOptions()

	c := &Config{}
	c.Player.Backend = BackendVirtual
	c.Player.Volume = 100
	c.Player.ReadyTimeout = opts.ReadyTimeout
	c.Player.RecoveryDelay = opts.RecoveryDelay
	c.Player.MaxRecoveryAttempts = opts.MaxRecoveryAttempts
	c.Player.BootstrapAttempts = opts.BootstrapAttempts
	c.Player.BootstrapBackoff = opts.BootstrapBackoff

	c.Sync.PollInterval = coordinator.DefaultPollInterval
	c.Sync.GapPolicy = timing.GapPreceding.String()

	c.Calibration.DefaultWordsPerSecond = calibrate.DefaultWordsPerSecond
	c.Calibration.MatchWindow = calibrate.DefaultMatchWindow

	c.Transcribe.Provider = "openai"
	c.Transcribe.ChunkDuration = 10 * time.Minute
	c.Transcribe.Concurrency = 3

	c.ConfigVersion = CurrentConfigVersion
	return c
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.ConfigVersion = 0
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.migrate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// files without config_version predate versioning and are read as version 1
func (c *Config) migrate() error {
	switch {
	case c.ConfigVersion > CurrentConfigVersion:
		return fmt.Errorf(
			"config_version %d is newer than supported version %d",
			c.ConfigVersion,
			CurrentConfigVersion,
		)
	case c.ConfigVersion < CurrentConfigVersion:
		c.ConfigVersion = CurrentConfigVersion
	}
	return nil
}

func (c *Config) normalize() {
	c.Player.Backend = strings.ToLower(strings.TrimSpace(c.Player.Backend))
	c.Player.MPVPath = strings.TrimSpace(c.Player.MPVPath)
	c.Sync.GapPolicy = strings.ToLower(strings.TrimSpace(c.Sync.GapPolicy))
	c.Transcribe.Provider = strings.ToLower(strings.TrimSpace(c.Transcribe.Provider))
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Player.Backend {
	case BackendMPV, BackendVirtual:
	default:
		errs = append(errs, fmt.Errorf("player.backend %q must be %q or %q",
			c.Player.Backend, BackendMPV, BackendVirtual))
	}
	if c.Player.Volume < 0 || c.Player.Volume > 100 {
		errs = append(errs, fmt.Errorf("player.volume %d must be within 0-100", c.Player.Volume))
	}
	if c.Player.ReadyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("player.ready_timeout must be positive"))
	}
	if c.Player.RecoveryDelay < 0 {
		errs = append(errs, fmt.Errorf("player.recovery_delay must not be negative"))
	}
	if c.Player.MaxRecoveryAttempts < 0 {
		errs = append(errs, fmt.Errorf("player.max_recovery_attempts must not be negative"))
	}
	if c.Player.BootstrapAttempts < 1 {
		errs = append(errs, fmt.Errorf("player.bootstrap_attempts must be at least 1"))
	}
	if c.Player.BootstrapBackoff <= 0 {
		errs = append(errs, fmt.Errorf("player.bootstrap_backoff must be positive"))
	}

	if c.Sync.PollInterval < 10*time.Millisecond || c.Sync.PollInterval > time.Second {
		errs = append(errs, fmt.Errorf("sync.poll_interval %s must be within 10ms-1s", c.Sync.PollInterval))
	}
	if _, err := timing.ParseGapPolicy(c.Sync.GapPolicy); err != nil {
		errs = append(errs, fmt.Errorf("sync.gap_policy: %w", err))
	}

	if c.Calibration.DefaultWordsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("calibration.default_words_per_second must be positive"))
	}
	if c.Calibration.MatchWindow < 1 {
		errs = append(errs, fmt.Errorf("calibration.match_window must be at least 1"))
	}

	if c.Transcribe.ChunkDuration <= 0 {
		errs = append(errs, fmt.Errorf("transcribe.chunk_duration must be positive"))
	}
	if c.Transcribe.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("transcribe.concurrency must be at least 1"))
	}

	return errors.Join(errs...)
}

// file the config was loaded from
func (c *Config) Path() string {
	return c.path
}

func (c *Config) PlayerOptions() player.Options {
	return player.Options{
		ReadyTimeout:        c.Player.ReadyTimeout,
		RecoveryDelay:       c.Player.RecoveryDelay,
		MaxRecoveryAttempts: c.Player.MaxRecoveryAttempts,
		BootstrapAttempts:   c.Player.BootstrapAttempts,
		BootstrapBackoff:    c.Player.BootstrapBackoff,
	}
}

func (c *Config) CoordinatorOptions() coordinator.Options {
	return coordinator.Options{PollInterval: c.Sync.PollInterval}
}

// GapPolicy returns the parsed policy, the default when invalid.
func (c *Config) GapPolicy() timing.GapPolicy {
	p, err := timing.ParseGapPolicy(c.Sync.GapPolicy)
	if err != nil {
		return timing.GapPreceding
	}
	return p
}

func (c *Config) CalibrationOptions() calibrate.Options {
	return calibrate.Options{DefaultWordsPerSecond: c.Calibration.DefaultWordsPerSecond}
}
