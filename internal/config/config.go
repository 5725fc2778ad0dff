package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	Name      = "readaloud"
	EnvPrefix = "READALOUD"
)

// ReadingModes lists the supported reading modes in cycling order.
var ReadingModes = []string{"normal", "eye-care", "high-contrast", "dark"}

type Speech struct {
	Engine        string  `mapstructure:"engine" yaml:"engine"`
	Voice         string  `mapstructure:"voice" yaml:"voice"`
	Pitch         float64 `mapstructure:"pitch" yaml:"pitch"`
	Rate          float64 `mapstructure:"rate" yaml:"rate"`
	Volume        float64 `mapstructure:"volume" yaml:"volume"`
	DefaultLocale string  `mapstructure:"default_locale" yaml:"default_locale"`
	CachePath     string  `mapstructure:"cache_path" yaml:"cache_path"`
}

type Narration struct {
	SettleDelay      time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	StartMinLength   int           `mapstructure:"start_min_length" yaml:"start_min_length"`
	RelaxedMinLength int           `mapstructure:"relaxed_min_length" yaml:"relaxed_min_length"`
	VisibilityRatio  float64       `mapstructure:"visibility_ratio" yaml:"visibility_ratio"`
	UnitTags         []string      `mapstructure:"unit_tags" yaml:"unit_tags"`
}

type Render struct {
	PageLines       int  `mapstructure:"page_lines" yaml:"page_lines"`
	PageColumns     int  `mapstructure:"page_columns" yaml:"page_columns"`
	IsolateSections bool `mapstructure:"isolate_sections" yaml:"isolate_sections"`
	CrossSections   bool `mapstructure:"cross_sections" yaml:"cross_sections"`
}

type Library struct {
	Dir         string        `mapstructure:"dir" yaml:"dir"`
	CacheDir    string        `mapstructure:"cache_dir" yaml:"cache_dir"`
	CacheMaxAge time.Duration `mapstructure:"cache_max_age" yaml:"cache_max_age"`
}

type UI struct {
	ReadingMode string `mapstructure:"reading_mode" yaml:"reading_mode"`
}

type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Settings is the typed view of the effective configuration.
type Settings struct {
	Speech    Speech    `mapstructure:"speech" yaml:"speech"`
	Narration Narration `mapstructure:"narration" yaml:"narration"`
	Render    Render    `mapstructure:"render" yaml:"render"`
	Library   Library   `mapstructure:"library" yaml:"library"`
	UI        UI        `mapstructure:"ui" yaml:"ui"`
	Log       Log       `mapstructure:"log" yaml:"log"`
}

func SetDefaults() {
	cache := userCacheDir()

	viper.SetDefault("speech.engine", "auto") // Auto-select best engine
	viper.SetDefault("speech.voice", "default")
	viper.SetDefault("speech.pitch", 1.0)
	viper.SetDefault("speech.rate", 1.0)
	viper.SetDefault("speech.volume", 1.0)
	viper.SetDefault("speech.default_locale", "en-US")
	viper.SetDefault("speech.cache_path", filepath.Join(cache, "audio"))

	viper.SetDefault("narration.settle_delay", 500*time.Millisecond)
	viper.SetDefault("narration.retry_backoff", 300*time.Millisecond)
	viper.SetDefault("narration.max_retries", 5)
	viper.SetDefault("narration.start_min_length", 6)
	viper.SetDefault("narration.relaxed_min_length", 3)
	viper.SetDefault("narration.visibility_ratio", 0.8)
	viper.SetDefault("narration.unit_tags", []string{"p", "h1", "h2", "h3", "h4", "h5", "h6", "span"})

	viper.SetDefault("render.page_lines", 0) // 0 follows the terminal
	viper.SetDefault("render.page_columns", 0)
	viper.SetDefault("render.isolate_sections", true)
	viper.SetDefault("render.cross_sections", false)

	viper.SetDefault("library.dir", "./books")
	viper.SetDefault("library.cache_dir", cache)
	viper.SetDefault("library.cache_max_age", 24*time.Hour)

	viper.SetDefault("ui.reading_mode", "normal")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// Init sets defaults, binds the environment and reads the config file when
// one exists.
func Init() error {
	SetDefaults()

	viper.SetConfigName(Name)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/." + Name)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("unable to read config: %w", err)
		}
	}
	return nil
}

// Load decodes the effective configuration.
func Load() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if !ValidReadingMode(s.UI.ReadingMode) {
		return nil, fmt.Errorf("unknown reading mode %q", s.UI.ReadingMode)
	}
	return &s, nil
}

// Dump renders s as YAML.
func Dump(s *Settings) ([]byte, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("unable to encode config: %w", err)
	}
	return out, nil
}

// SaveReadingMode persists mode to the config file in use, or creates
// $HOME/.readaloud/readaloud.yaml. Only the reading mode is written; other
// keys already in the file are kept and defaults or environment values are
// never copied into it.
func SaveReadingMode(mode string) error {
	if !ValidReadingMode(mode) {
		return fmt.Errorf("unknown reading mode %q", mode)
	}
	viper.Set("ui.reading_mode", mode)

	file := viper.ConfigFileUsed()
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("unable to locate home directory: %w", err)
		}
		dir := filepath.Join(home, "."+Name)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("unable to create config directory: %w", err)
		}
		file = filepath.Join(dir, Name+".yaml")
	}

	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	if _, err := os.Stat(file); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config: %w", err)
		}
	}
	v.Set("ui.reading_mode", mode)
	if err := v.WriteConfigAs(file); err != nil {
		return fmt.Errorf("unable to write config: %w", err)
	}
	return nil
}

func ValidReadingMode(mode string) bool {
	for _, m := range ReadingModes {
		if m == mode {
			return true
		}
	}
	return false
}

// NextReadingMode returns the mode after mode, wrapping around.
func NextReadingMode(mode string) string {
	for i, m := range ReadingModes {
		if m == mode {
			return ReadingModes[(i+1)%len(ReadingModes)]
		}
	}
	return ReadingModes[0]
}

func userCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, Name)
}
