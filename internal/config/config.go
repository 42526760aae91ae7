//nolint:lll
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/artifacts"
	"github.com/MeKo-Tech/mathocr/internal/detector"
	"github.com/MeKo-Tech/mathocr/internal/models"
	"github.com/MeKo-Tech/mathocr/internal/ocr"
	"github.com/MeKo-Tech/mathocr/internal/recognizer"
	"github.com/MeKo-Tech/mathocr/internal/utils"
)

// Config represents the complete configuration for mathocr. It is loaded
// from a config file, MATHOCR_* environment variables and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Debug    DebugConfig    `mapstructure:"debug" yaml:"debug" json:"debug"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine" json:"engine"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram" json:"telegram"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host               string          `mapstructure:"host" yaml:"host" json:"host"`
	Port               int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin         string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB        int64           `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	MaxPixels          int             `mapstructure:"max_pixels" yaml:"max_pixels" json:"max_pixels"`
	TimeoutSec         int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeoutSec int             `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec" json:"shutdown_timeout_sec"`
	IncludeDetections  bool            `mapstructure:"include_detections" yaml:"include_detections" json:"include_detections"`
	RateLimit          RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// DebugConfig controls per-request debug artifacts.
type DebugConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Root      string `mapstructure:"root" yaml:"root" json:"root"`
	URLPrefix string `mapstructure:"url_prefix" yaml:"url_prefix" json:"url_prefix"`
	BoxColor  string `mapstructure:"box_color" yaml:"box_color" json:"box_color"`
	TextColor string `mapstructure:"text_color" yaml:"text_color" json:"text_color"`
	Thickness int    `mapstructure:"thickness" yaml:"thickness" json:"thickness"`
}

// EngineConfig selects the text detection backend and its pool.
type EngineConfig struct {
	Backend       string          `mapstructure:"backend" yaml:"backend" json:"backend"`
	Workers       int             `mapstructure:"workers" yaml:"workers" json:"workers"`
	TimeoutSec    int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	MinConfidence float64         `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
	Paddle        PaddleConfig    `mapstructure:"paddle" yaml:"paddle" json:"paddle"`
	Tesseract     TesseractConfig `mapstructure:"tesseract" yaml:"tesseract" json:"tesseract"`
	Gemini        GeminiConfig    `mapstructure:"gemini" yaml:"gemini" json:"gemini"`
	Static        StaticConfig    `mapstructure:"static" yaml:"static" json:"static"`
}

// PaddleConfig contains the ONNX detection and recognition model settings.
type PaddleConfig struct {
	UseServerModels bool    `mapstructure:"use_server_models" yaml:"use_server_models" json:"use_server_models"`
	DetectorModel   string  `mapstructure:"detector_model" yaml:"detector_model" json:"detector_model"`
	RecognizerModel string  `mapstructure:"recognizer_model" yaml:"recognizer_model" json:"recognizer_model"`
	DictPath        string  `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	LibraryPath     string  `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
	NumThreads      int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	DbThresh        float32 `mapstructure:"db_thresh" yaml:"db_thresh" json:"db_thresh"`
	DbBoxThresh     float32 `mapstructure:"db_box_thresh" yaml:"db_box_thresh" json:"db_box_thresh"`
	UnclipRatio     float64 `mapstructure:"unclip_ratio" yaml:"unclip_ratio" json:"unclip_ratio"`
	MaxImageSize    int     `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`
	ImageHeight     int     `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
}

// TesseractConfig contains Tesseract settings.
type TesseractConfig struct {
	Languages []string `mapstructure:"languages" yaml:"languages" json:"languages"`
	Whitelist string   `mapstructure:"whitelist" yaml:"whitelist" json:"whitelist"`
}

// GeminiConfig contains Gemini API settings.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key" json:"-"`
	Model  string `mapstructure:"model" yaml:"model" json:"model"`
}

// StaticConfig lists the texts the static backend emits.
type StaticConfig struct {
	Texts []string `mapstructure:"texts" yaml:"texts" json:"texts"`
}

// TelegramConfig contains Telegram bot settings.
type TelegramConfig struct {
	Token         string `mapstructure:"token" yaml:"token" json:"-"`
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url" json:"public_base_url"`
	TimeoutSec    int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

const infoLevel = "info"

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	det := detector.DefaultConfig()
	rec := recognizer.DefaultConfig()
	style := artifacts.DefaultStyle()

	return &Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  infoLevel,
		Server: ServerConfig{
			Host:               "localhost",
			Port:               8080,
			CORSOrigin:         "*",
			MaxUploadMB:        50,
			MaxPixels:          utils.DefaultMaxPixels,
			TimeoutSec:         60,
			ShutdownTimeoutSec: 10,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 5000,
				MaxDataPerDayMB:   1024,
			},
		},
		Debug: DebugConfig{
			Enabled:   true,
			Root:      "debug",
			URLPrefix: "/debug/",
			BoxColor:  style.BoxColor,
			TextColor: style.TextColor,
			Thickness: style.Thickness,
		},
		Engine: EngineConfig{
			Backend:    ocr.BackendPaddle,
			Workers:    1,
			TimeoutSec: 30,
			Paddle: PaddleConfig{
				DbThresh:     det.DbThresh,
				DbBoxThresh:  det.DbBoxThresh,
				UnclipRatio:  det.UnclipRatio,
				MaxImageSize: det.MaxImageSize,
				ImageHeight:  rec.ImageHeight,
			},
			Tesseract: TesseractConfig{
				Languages: []string{"eng"},
				Whitelist: ocr.DefaultTesseractWhitelist,
			},
			Gemini: GeminiConfig{Model: "gemini-1.5-flash"},
		},
		Telegram: TelegramConfig{TimeoutSec: 60},
	}
}

// Validate validates the configuration and returns the first error found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", infoLevel, "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid server timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.MaxPixels < 0 {
		return fmt.Errorf("invalid max pixels: %d (must not be negative)", c.Server.MaxPixels)
	}

	if !ocr.ValidBackend(strings.ToLower(c.Engine.Backend)) {
		return fmt.Errorf("invalid engine backend: %q (must be one of: %s)", c.Engine.Backend, strings.Join(ocr.Backends, ", "))
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("invalid engine workers: %d (must be positive)", c.Engine.Workers)
	}
	if c.Engine.TimeoutSec <= 0 {
		return fmt.Errorf("invalid engine timeout: %d (must be positive)", c.Engine.TimeoutSec)
	}
	if err := validateThreshold(c.Engine.MinConfidence, "engine.min_confidence"); err != nil {
		return err
	}
	if err := validateThreshold(float64(c.Engine.Paddle.DbThresh), "engine.paddle.db_thresh"); err != nil {
		return err
	}
	if err := validateThreshold(float64(c.Engine.Paddle.DbBoxThresh), "engine.paddle.db_box_thresh"); err != nil {
		return err
	}

	if c.Debug.Enabled {
		if _, err := artifacts.ParseColor(c.Debug.BoxColor); err != nil {
			return fmt.Errorf("invalid debug.box_color: %w", err)
		}
		if _, err := artifacts.ParseColor(c.Debug.TextColor); err != nil {
			return fmt.Errorf("invalid debug.text_color: %w", err)
		}
	}
	return nil
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// ToOCRConfig converts the engine section to ocr.Config, resolving model
// paths against ModelsDir.
func (c *Config) ToOCRConfig() ocr.Config {
	return ocr.Config{
		Backend:       strings.ToLower(c.Engine.Backend),
		Workers:       c.Engine.Workers,
		Timeout:       time.Duration(c.Engine.TimeoutSec) * time.Second,
		MinConfidence: c.Engine.MinConfidence,
		Paddle: ocr.PaddleConfig{
			Detector:   c.toDetectorConfig(),
			Recognizer: c.toRecognizerConfig(),
		},
		Tesseract: ocr.TesseractConfig{
			Languages: c.Engine.Tesseract.Languages,
			Whitelist: c.Engine.Tesseract.Whitelist,
		},
		Gemini: ocr.GeminiConfig{
			APIKey: c.Engine.Gemini.APIKey,
			Model:  c.Engine.Gemini.Model,
		},
		StaticTexts: c.Engine.Static.Texts,
	}
}

func (c *Config) toDetectorConfig() detector.Config {
	p := c.Engine.Paddle
	cfg := detector.DefaultConfig()
	cfg.ModelPath = models.GetDetectionModelPath(c.ModelsDir, p.UseServerModels)
	if p.DetectorModel != "" {
		cfg.ModelPath = p.DetectorModel
	}
	cfg.LibraryPath = p.LibraryPath
	cfg.NumThreads = p.NumThreads
	cfg.DbThresh = p.DbThresh
	cfg.DbBoxThresh = p.DbBoxThresh
	cfg.UnclipRatio = p.UnclipRatio
	cfg.MaxImageSize = p.MaxImageSize
	return cfg
}

func (c *Config) toRecognizerConfig() recognizer.Config {
	p := c.Engine.Paddle
	cfg := recognizer.DefaultConfig()
	cfg.ModelPath = models.GetRecognitionModelPath(c.ModelsDir, p.UseServerModels)
	if p.RecognizerModel != "" {
		cfg.ModelPath = p.RecognizerModel
	}
	cfg.DictPath = models.GetDictionaryPath(c.ModelsDir, models.DictionaryPPOCRKeysV1)
	if p.DictPath != "" {
		cfg.DictPath = p.DictPath
	}
	cfg.LibraryPath = p.LibraryPath
	cfg.NumThreads = p.NumThreads
	if p.ImageHeight > 0 {
		cfg.ImageHeight = p.ImageHeight
	}
	return cfg
}

// ArtifactStyle returns the annotation style of the debug section.
func (c *Config) ArtifactStyle() artifacts.Style {
	return artifacts.Style{
		BoxColor:  c.Debug.BoxColor,
		TextColor: c.Debug.TextColor,
		Thickness: c.Debug.Thickness,
	}
}

// DebugRoot returns the artifact root, or "" when artifacts are disabled.
func (c *Config) DebugRoot() string {
	if !c.Debug.Enabled {
		return ""
	}
	return c.Debug.Root
}

// ServerTimeout returns the per-request timeout.
func (c *Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSec) * time.Second
}

// ShutdownTimeout returns the graceful shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}
