package config

// config.go: rootcause configuration loaded from .rootcause/settings.yaml.
//
// Precedence, lowest first:
//
//	defaults → settings.yaml → .env / process environment → CLI flags
//
// A missing settings file is not an error; defaults apply. CLI flags are
// applied by the caller after Load returns and then re-checked with Validate.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rootcause/internal/apperr"
)

// Settings holds rootcause configuration.
type Settings struct {
	DataDir     string   `yaml:"data_dir" validate:"required"`
	Workers     int      `yaml:"workers" validate:"min=1,max=256"`
	MetricsFile string   `yaml:"metrics_file"`
	Log         Log      `yaml:"log"`
	LLM         LLM      `yaml:"llm"`
	Intent      Intent   `yaml:"intent"`
	Insights    Insights `yaml:"insights"`
	Report      Report   `yaml:"report"`
}

// Log controls the zap logger built by the CLI.
type Log struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// LLM configures the external text-generation service used for narratives
// and, optionally, intent extraction.
type LLM struct {
	Model string `yaml:"model" validate:"required"`
	// APIKey is normally supplied through GEMINI_API_KEY / GOOGLE_API_KEY
	// rather than written to the settings file.
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries        int           `yaml:"max_retries" validate:"min=0,max=10"`
	BackoffInitial    time.Duration `yaml:"backoff_initial" validate:"gt=0"`
	BackoffMax        time.Duration `yaml:"backoff_max" validate:"gtefield=BackoffInitial"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gt=0"`
}

// Intent selects the question-routing strategy.
type Intent struct {
	Strategy string `yaml:"strategy" validate:"oneof=vocabulary genai"`
}

// Insights sets the top-N sizes of aggregate tables.
type Insights struct {
	TopReasons        int `yaml:"top_reasons" validate:"min=1,max=100"`
	TopGroups         int `yaml:"top_groups" validate:"min=1,max=100"`
	CompareTopReasons int `yaml:"compare_top_reasons" validate:"min=1,max=100"`
}

// Report configures the report bundle.
type Report struct {
	Dir        string `yaml:"dir" validate:"required"`
	TopReasons int    `yaml:"top_reasons" validate:"min=1,max=1000"`
	Narrate    bool   `yaml:"narrate"`
}

// Default returns the settings used when no file or override is present.
func Default() *Settings {
	return &Settings{
		DataDir: "data",
		Workers: 4,
		Log:     Log{Level: "info"},
		LLM: LLM{
			Model:             "gemini-2.5-flash",
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			BackoffInitial:    500 * time.Millisecond,
			BackoffMax:        8 * time.Second,
			RequestsPerSecond: 2,
		},
		Intent:   Intent{Strategy: "vocabulary"},
		Insights: Insights{TopReasons: 5, TopGroups: 5, CompareTopReasons: 3},
		Report:   Report{Dir: "report", TopReasons: 20},
	}
}

// Path returns the default settings path relative to root.
func Path(root string) string {
	return filepath.Join(root, ".rootcause", "settings.yaml")
}

// Load reads settings from path over the defaults, then applies .env and
// environment overrides. A missing file yields the defaults (not an error).
// The returned settings are validated.
func Load(path string) (*Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "parse "+path, err)
		}
	}

	// .env is optional; a missing file is the common case.
	_ = godotenv.Load()
	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	if v := os.Getenv("ROOTCAUSE_DATA_DIR"); v != "" {
		s.DataDir = v
	}
	if v := os.Getenv("ROOTCAUSE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, "ROOTCAUSE_WORKERS", err)
		}
		s.Workers = n
	}
	if v := os.Getenv("ROOTCAUSE_LOG_LEVEL"); v != "" {
		s.Log.Level = v
	}
	if v := os.Getenv("ROOTCAUSE_MODEL"); v != "" {
		s.LLM.Model = v
	}
	if s.LLM.APIKey == "" {
		s.LLM.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

var validate = validator.New()

// Validate checks every field constraint and reports the first violations as
// a single validation error.
func (s *Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Validation(fmt.Sprintf("invalid setting %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return apperr.Wrap(apperr.KindValidation, "invalid settings", err)
}
