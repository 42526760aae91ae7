package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/mathocr/internal/config"
	"github.com/MeKo-Tech/mathocr/internal/models"
	"github.com/MeKo-Tech/mathocr/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mathocr",
	Short: "Read handwritten or printed arithmetic from images and evaluate it",
	Long: `mathocr detects the text in a photo of an arithmetic expression,
normalizes it (x and ÷ become * and /) and evaluates it with a restricted parser.

It runs as a web service with an upload page, as a Telegram bot, or directly
on image files.

Examples:
  mathocr serve --port 8080
  mathocr solve photo.jpg --format json
  mathocr bot
  mathocr config init`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME/.config/mathocr, /etc/mathocr)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	defaultModelsDir := models.DefaultModelsDir
	if envDir := os.Getenv(models.EnvModelsDir); envDir != "" {
		defaultModelsDir = envDir
	}
	rootCmd.PersistentFlags().String("models-dir", defaultModelsDir,
		"directory containing ONNX models (can also be set via "+models.EnvModelsDir+")")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	rootCmd.PersistentFlags().String("backend", "paddle", "text detection backend (paddle, tesseract, gemini, static)")
	rootCmd.PersistentFlags().Int("workers", 1, "number of detection engines in the pool")
	rootCmd.PersistentFlags().Bool("debug", true, "write debug artifacts per request")
	rootCmd.PersistentFlags().String("debug-dir", "debug", "root directory for debug artifacts")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("models_dir", rootCmd.PersistentFlags().Lookup("models-dir"))
	_ = viper.BindPFlag("engine.backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("engine.workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("debug.enabled", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("debug.root", rootCmd.PersistentFlags().Lookup("debug-dir"))

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if globalConfig == nil {
			initConfig()
		}
		logLevel := parseLogLevel(globalConfig.LogLevel)
		if globalConfig.Verbose {
			logLevel = slog.LevelDebug
		}
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
		slog.SetDefault(logger)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the configuration including flags bound after the
// initial load.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		initConfig()
	}

	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

// bindFlag binds a command flag to a configuration key.
func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}
