package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "mathocr"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "MATHOCR"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so cobra flag
// bindings apply.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on v.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads defaults, the first config file found on the search path and
// the environment, then validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path. An empty path
// behaves like Load.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &config, nil
}

// GetConfigFileUsed returns the config file that was read, if any.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so environment variables are honoured
// even when no config file sets them.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("models_dir", d.ModelsDir)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.max_pixels", d.Server.MaxPixels)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout_sec", d.Server.ShutdownTimeoutSec)
	l.v.SetDefault("server.include_detections", d.Server.IncludeDetections)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.max_requests_per_day", d.Server.RateLimit.MaxRequestsPerDay)
	l.v.SetDefault("server.rate_limit.max_data_per_day_mb", d.Server.RateLimit.MaxDataPerDayMB)

	l.v.SetDefault("debug.enabled", d.Debug.Enabled)
	l.v.SetDefault("debug.root", d.Debug.Root)
	l.v.SetDefault("debug.url_prefix", d.Debug.URLPrefix)
	l.v.SetDefault("debug.box_color", d.Debug.BoxColor)
	l.v.SetDefault("debug.text_color", d.Debug.TextColor)
	l.v.SetDefault("debug.thickness", d.Debug.Thickness)

	l.v.SetDefault("engine.backend", d.Engine.Backend)
	l.v.SetDefault("engine.workers", d.Engine.Workers)
	l.v.SetDefault("engine.timeout_sec", d.Engine.TimeoutSec)
	l.v.SetDefault("engine.min_confidence", d.Engine.MinConfidence)
	l.v.SetDefault("engine.paddle.use_server_models", d.Engine.Paddle.UseServerModels)
	l.v.SetDefault("engine.paddle.detector_model", d.Engine.Paddle.DetectorModel)
	l.v.SetDefault("engine.paddle.recognizer_model", d.Engine.Paddle.RecognizerModel)
	l.v.SetDefault("engine.paddle.dict_path", d.Engine.Paddle.DictPath)
	l.v.SetDefault("engine.paddle.library_path", d.Engine.Paddle.LibraryPath)
	l.v.SetDefault("engine.paddle.num_threads", d.Engine.Paddle.NumThreads)
	l.v.SetDefault("engine.paddle.db_thresh", d.Engine.Paddle.DbThresh)
	l.v.SetDefault("engine.paddle.db_box_thresh", d.Engine.Paddle.DbBoxThresh)
	l.v.SetDefault("engine.paddle.unclip_ratio", d.Engine.Paddle.UnclipRatio)
	l.v.SetDefault("engine.paddle.max_image_size", d.Engine.Paddle.MaxImageSize)
	l.v.SetDefault("engine.paddle.image_height", d.Engine.Paddle.ImageHeight)
	l.v.SetDefault("engine.tesseract.languages", d.Engine.Tesseract.Languages)
	l.v.SetDefault("engine.tesseract.whitelist", d.Engine.Tesseract.Whitelist)
	l.v.SetDefault("engine.gemini.api_key", d.Engine.Gemini.APIKey)
	l.v.SetDefault("engine.gemini.model", d.Engine.Gemini.Model)
	l.v.SetDefault("engine.static.texts", d.Engine.Static.Texts)

	l.v.SetDefault("telegram.token", d.Telegram.Token)
	l.v.SetDefault("telegram.public_base_url", d.Telegram.PublicBaseURL)
	l.v.SetDefault("telegram.timeout_sec", d.Telegram.TimeoutSec)
}

// GetConfigSearchPaths returns the directories searched for mathocr.yaml,
// in priority order.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mathocr"))
	}
	paths = append(paths, "/etc/mathocr")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "mathocr"))
	}
	return paths
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// GenerateDefaultConfigFile writes the default configuration to path. It
// refuses to overwrite an existing file.
func GenerateDefaultConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	data, err := Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	header := "# mathocr configuration\n# Environment variables override these values with the MATHOCR_ prefix,\n# e.g. MATHOCR_SERVER_PORT=9000.\n\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o600)
}
