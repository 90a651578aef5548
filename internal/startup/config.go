package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"cadventory/internal/logging"
	"cadventory/internal/memory"
	"cadventory/internal/pipeline"
	"cadventory/internal/toolkit"
)

// EnvPrefix is prepended to every configuration key read from the environment.
const EnvPrefix = "CADVENTORY"

// ConfigName is the base name searched for when no --config file is given.
const ConfigName = "cadventory"

// Config holds all application configuration.
type Config struct {
	Root            string        `mapstructure:"root"`
	LibraryName     string        `mapstructure:"name"`
	Depth           int           `mapstructure:"depth"`
	Workers         int           `mapstructure:"workers"`
	MetadataTimeout time.Duration `mapstructure:"metadata_timeout"`
	ValidateTimeout time.Duration `mapstructure:"validate_timeout"`
	RenderTimeout   time.Duration `mapstructure:"render_timeout"`
	ThumbnailSize   int           `mapstructure:"thumbnail_size"`
	PreviewsEnabled bool          `mapstructure:"previews"`
	ImageFormat     string        `mapstructure:"image_format"`
	Ignore          []string      `mapstructure:"ignore"`
	MgedPath        string        `mapstructure:"mged"`
	RtPath          string        `mapstructure:"rt"`
	Listen          string        `mapstructure:"listen"`
	MetricsEnabled  bool          `mapstructure:"metrics"`
	LogHealthChecks bool          `mapstructure:"log_health_checks"`
	Force           bool          `mapstructure:"force"`
	LogLevel        string        `mapstructure:"log_level"`
	MemoryLimit     int64         `mapstructure:"memory_limit"`
	MemoryRatio     float64       `mapstructure:"memory_ratio"`

	// ConfigFile is the file the values were read from, if any.
	ConfigFile string `mapstructure:"-"`
}

var (
	// ErrInvalidRoot is returned when the library root is missing or not a directory.
	ErrInvalidRoot = errors.New("invalid library root")
	// ErrInvalidConfig wraps any other validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

var imageFormats = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true, "tif": true, "tiff": true}

// flagKeys maps configuration keys to the CLI flags that override them.
var flagKeys = map[string]string{
	"config":    "config",
	"root":      "root",
	"name":      "name",
	"log_level": "log-level",
	"depth":     "depth",
	"workers":   "workers",
	"force":     "force",
	"previews":  "previews",
	"listen":    "listen",
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	tt := toolkit.DefaultTimeouts()
	po := pipeline.DefaultOptions()

	v.SetDefault("config", "")
	v.SetDefault("root", ".")
	v.SetDefault("name", "")
	v.SetDefault("depth", -1)
	v.SetDefault("workers", 0)
	v.SetDefault("metadata_timeout", tt.Metadata)
	v.SetDefault("validate_timeout", tt.Validate)
	v.SetDefault("render_timeout", tt.Render)
	v.SetDefault("thumbnail_size", po.ThumbnailSize)
	v.SetDefault("previews", po.PreviewsEnabled)
	v.SetDefault("image_format", po.ImageFormat)
	v.SetDefault("ignore", []string{})
	v.SetDefault("mged", "mged")
	v.SetDefault("rt", "rt")
	v.SetDefault("listen", ":8080")
	v.SetDefault("metrics", true)
	v.SetDefault("log_health_checks", false)
	v.SetDefault("force", false)
	v.SetDefault("log_level", "")
	v.SetDefault("memory_limit", 0)
	v.SetDefault("memory_ratio", memory.DefaultRatio)
}

// BindFlags binds every flag in flags that overrides a configuration key.
// Flags that are not defined are ignored.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// LoadConfig reads the optional configuration file and the environment into
// v, then decodes and validates the result. Precedence from lowest to
// highest: defaults, file, CADVENTORY_* variables, flags.
func LoadConfig(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		if home, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "cadventory"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logging.Debug("No configuration file found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if cfg.LogLevel != "" {
		level, ok := logging.ParseLevel(cfg.LogLevel)
		if !ok {
			return nil, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, cfg.LogLevel)
		}
		logging.SetLevel(level)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logConfig(&cfg)
	return &cfg, nil
}

// Validate checks the decoded values and resolves Root to an absolute path.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: root is empty", ErrInvalidRoot)
	}
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, abs)
	}
	c.Root = abs

	switch {
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	case c.MetadataTimeout <= 0, c.ValidateTimeout <= 0, c.RenderTimeout <= 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	case c.ThumbnailSize < 0:
		return fmt.Errorf("%w: thumbnail_size must not be negative", ErrInvalidConfig)
	case c.MemoryLimit < 0:
		return fmt.Errorf("%w: memory_limit must not be negative", ErrInvalidConfig)
	case c.MemoryRatio <= 0 || c.MemoryRatio > 1:
		return fmt.Errorf("%w: memory_ratio must be in (0, 1]", ErrInvalidConfig)
	}

	c.ImageFormat = strings.TrimPrefix(strings.ToLower(c.ImageFormat), ".")
	if !imageFormats[c.ImageFormat] {
		return fmt.Errorf("%w: unsupported image_format %q", ErrInvalidConfig, c.ImageFormat)
	}
	return nil
}

// ToolkitConfig returns the toolkit settings derived from c.
func (c *Config) ToolkitConfig() toolkit.Config {
	return toolkit.Config{
		MgedPath:   c.MgedPath,
		RtPath:     c.RtPath,
		RenderSize: c.ThumbnailSize,
		Timeouts: toolkit.Timeouts{
			Metadata: c.MetadataTimeout,
			Validate: c.ValidateTimeout,
			Render:   c.RenderTimeout,
		},
	}
}

// ProcessorOptions returns the pipeline settings for a library.
func (c *Config) ProcessorOptions(libraryName, previewDir string) pipeline.Options {
	return pipeline.Options{
		LibraryName:     libraryName,
		PreviewDir:      previewDir,
		ImageFormat:     c.ImageFormat,
		ThumbnailSize:   c.ThumbnailSize,
		PreviewsEnabled: c.PreviewsEnabled,
		Force:           c.Force,
	}
}

func logConfig(c *Config) {
	logging.Debug("------------------------------------------------------------")
	logging.Debug("CONFIGURATION")
	logging.Debug("------------------------------------------------------------")
	if c.ConfigFile != "" {
		logging.Debug("  Config file:       %s", c.ConfigFile)
	}
	logging.Debug("  ROOT:              %s", c.Root)
	logging.Debug("  NAME:              %s", c.LibraryName)
	logging.Debug("  DEPTH:             %d", c.Depth)
	logging.Debug("  WORKERS:           %d", c.Workers)
	logging.Debug("  METADATA_TIMEOUT:  %v", c.MetadataTimeout)
	logging.Debug("  VALIDATE_TIMEOUT:  %v", c.ValidateTimeout)
	logging.Debug("  RENDER_TIMEOUT:    %v", c.RenderTimeout)
	logging.Debug("  THUMBNAIL_SIZE:    %d", c.ThumbnailSize)
	logging.Debug("  PREVIEWS:          %s", enabledString(c.PreviewsEnabled))
	logging.Debug("  IMAGE_FORMAT:      %s", c.ImageFormat)
	logging.Debug("  IGNORE:            %s", strings.Join(c.Ignore, ", "))
	logging.Debug("  MGED:              %s", c.MgedPath)
	logging.Debug("  RT:                %s", c.RtPath)
	logging.Debug("  LISTEN:            %s", c.Listen)
	logging.Debug("  METRICS:           %s", enabledString(c.MetricsEnabled))
	logging.Debug("  FORCE:             %v", c.Force)
	logging.Debug("  LOG_LEVEL:         %s", logging.GetLevel())
	if c.MemoryLimit > 0 {
		logging.Debug("  MEMORY_LIMIT:      %s (ratio %.2f)", memory.FormatBytes(c.MemoryLimit), c.MemoryRatio)
	}
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}
