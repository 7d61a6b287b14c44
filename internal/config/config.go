// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Runner  RunnerConfig  `mapstructure:"runner" yaml:"runner"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
}

// LoggerConfig controls the zap logger and optional file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser process.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	ViewportWidth   int      `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight  int      `mapstructure:"viewport_height" yaml:"viewport_height"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	DisableGPU      bool     `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// RunnerConfig holds the timing and concurrency policy for scenario execution.
type RunnerConfig struct {
	// BaseURL is prepended to relative navigation targets in scenario files.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// DefaultTimeout bounds a single locate+act step.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	// NavigationTimeout bounds top-level navigations.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// SettleDelay is the fixed wait applied before each action to absorb
	// animation and re-render races.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	// PollInterval is the assertion checker's probe cadence.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// FrameProbeTimeout bounds the existence probe run in each frame while
	// scanning for the frame that hosts a locator.
	FrameProbeTimeout time.Duration `mapstructure:"frame_probe_timeout" yaml:"frame_probe_timeout"`
	// MaxFrameDepth bounds frame-tree recursion (challenge widgets nest
	// iframes inside iframes).
	MaxFrameDepth int `mapstructure:"max_frame_depth" yaml:"max_frame_depth"`
	// AssertionTimeout is the default bound for terminal assertions.
	AssertionTimeout time.Duration `mapstructure:"assertion_timeout" yaml:"assertion_timeout"`
	// PostLoadWait is the settle period applied after navigations.
	PostLoadWait time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	// Retries is the default bounded-retry count for actions. Zero means a
	// single attempt; scenario steps may override it.
	Retries int `mapstructure:"retries" yaml:"retries"`
	// Concurrency is the number of scenarios executed in parallel. Each
	// scenario still owns an exclusive session.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// SessionLaunchRate limits new browser contexts per second so a wide
	// batch does not stampede the browser process.
	SessionLaunchRate float64 `mapstructure:"session_launch_rate" yaml:"session_launch_rate"`
	// ArtifactsDir receives failure diagnostics (screenshots, DOM dumps).
	ArtifactsDir string `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
}

// ReportConfig controls the JSON run report.
type ReportConfig struct {
	Output string `mapstructure:"output" yaml:"output"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "flightcheck")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.disable_gpu", true)

	// -- Runner --
	// The defaults mirror the timings the target applications were authored
	// against: 5s per action, 30s for terminal assertions.
	v.SetDefault("runner.default_timeout", "5s")
	v.SetDefault("runner.navigation_timeout", "10s")
	v.SetDefault("runner.settle_delay", "500ms")
	v.SetDefault("runner.poll_interval", "250ms")
	v.SetDefault("runner.frame_probe_timeout", "500ms")
	v.SetDefault("runner.max_frame_depth", 5)
	v.SetDefault("runner.assertion_timeout", "30s")
	v.SetDefault("runner.post_load_wait", "2s")
	v.SetDefault("runner.retries", 0)
	v.SetDefault("runner.concurrency", 1)
	v.SetDefault("runner.session_launch_rate", 2.0)
	v.SetDefault("runner.artifacts_dir", "artifacts")

	// -- Report --
	v.SetDefault("report.output", "")
	v.SetDefault("report.pretty", true)
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Runner.DefaultTimeout <= 0 {
		return fmt.Errorf("runner.default_timeout must be positive, got %s", c.Runner.DefaultTimeout)
	}
	if c.Runner.PollInterval <= 0 {
		return fmt.Errorf("runner.poll_interval must be positive, got %s", c.Runner.PollInterval)
	}
	if c.Runner.FrameProbeTimeout <= 0 {
		return fmt.Errorf("runner.frame_probe_timeout must be positive, got %s", c.Runner.FrameProbeTimeout)
	}
	if c.Runner.MaxFrameDepth < 1 {
		return fmt.Errorf("runner.max_frame_depth must be at least 1, got %d", c.Runner.MaxFrameDepth)
	}
	if c.Runner.Concurrency < 1 {
		return fmt.Errorf("runner.concurrency must be at least 1, got %d", c.Runner.Concurrency)
	}
	if c.Runner.Retries < 0 {
		return fmt.Errorf("runner.retries must not be negative, got %d", c.Runner.Retries)
	}
	if c.Runner.SessionLaunchRate <= 0 {
		return fmt.Errorf("runner.session_launch_rate must be positive, got %v", c.Runner.SessionLaunchRate)
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d",
			c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	return nil
}
