// Package config provides unified configuration loading for the corpus
// pipeline. Supports YAML files, environment variable overrides, and
// programmatic defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the pipeline.
type Config struct {
	Store         StoreConfig         `yaml:"store"`
	Crawler       CrawlerConfig       `yaml:"crawler"`
	Fetcher       FetcherConfig       `yaml:"fetcher"`
	Quality       QualityConfig       `yaml:"quality"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Section       SectionConfig       `yaml:"section"`
	Citation      CitationConfig      `yaml:"citation"`
	VisionOCR     VisionOCRConfig     `yaml:"vision_ocr"`
	LLMSynth      LLMSynthConfig      `yaml:"llm_synth"`
	Fidelity      FidelityConfig      `yaml:"fidelity"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StoreConfig controls the State Store location and driver.
type StoreConfig struct {
	Driver      string         `yaml:"driver"` // sqlite or postgres
	DataRoot    string         `yaml:"data_root"`
	SQLite      SQLiteConfig   `yaml:"sqlite"`
	Postgres    PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path        string `yaml:"path"`
	JournalMode string `yaml:"journal_mode"`
}

type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// CrawlerConfig controls the Catalog Crawler (C1).
type CrawlerConfig struct {
	BaseURL          string        `yaml:"base_url"`
	StartYear        int           `yaml:"start_year"`
	EndYear          int           `yaml:"end_year"`
	PoliteDelay      time.Duration `yaml:"polite_delay"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base"`
	CheckpointPath   string        `yaml:"checkpoint_path"`
}

// FetcherConfig controls the Binary Fetcher (C2).
type FetcherConfig struct {
	PoliteDelay      time.Duration `yaml:"polite_delay"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base"`
}

// QualityConfig holds the OCR fallback decision thresholds (§4.3). The
// Quality Scorer weights are not configurable; they are constants in
// internal/quality (§9 Open Question 2).
type QualityConfig struct {
	LegacyYearCutoff   int     `yaml:"legacy_year_cutoff"`
	ScoreThreshold     float64 `yaml:"score_threshold"`
	MinWordsPerPage    float64 `yaml:"min_words_per_page"`
	MinAlphaRatio      float64 `yaml:"min_alpha_ratio"`
	MaxGarbageTokens   int     `yaml:"max_garbage_tokens"`
}

// ExtractionConfig controls the Text Extractor (C4).
type ExtractionConfig struct {
	RawDir          string `yaml:"raw_dir"`
	ExtractedDir    string `yaml:"extracted_dir"`
	MaxOCRPages     int    `yaml:"max_ocr_pages"` // §9 Open Question 4, default 20
	OCRPageDPI      int    `yaml:"ocr_page_dpi"`
	FileNoScanChars int    `yaml:"file_no_scan_chars"`
	WithdrawalScanChars int `yaml:"withdrawal_scan_chars"`
}

// SectionConfig controls the Section Parser (§4.5.1).
type SectionConfig struct {
	MinWords int `yaml:"min_words"` // §9 Open Question 3, default 1
}

// CitationConfig bounds statute and regulation section numbers (§4.5.2).
type CitationConfig struct {
	StatuteMin              int `yaml:"statute_min"`
	StatuteMax              int `yaml:"statute_max"`
	ConflictsBandMin        int `yaml:"conflicts_band_min"`
	ConflictsBandMax        int `yaml:"conflicts_band_max"`
	RegulationMin           int `yaml:"regulation_min"`
	RegulationMax           int `yaml:"regulation_max"`
}

// VisionOCRConfig configures the remote vision-OCR backend.
type VisionOCRConfig struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	PageDelay  time.Duration `yaml:"page_delay"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// LLMSynthConfig configures the LLM Section Synthesiser (C6).
type LLMSynthConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	MaxInputChars     int           `yaml:"max_input_chars"`
	CostPerMInputUSD  float64       `yaml:"cost_per_million_input_usd"`
	CostPerMOutputUSD float64       `yaml:"cost_per_million_output_usd"`
	MaxCostUSD        float64       `yaml:"max_cost_usd"`
}

// FidelityConfig configures the four Verifier phases (C7).
type FidelityConfig struct {
	ClassicalOCRBinary  string        `yaml:"classical_ocr_binary"`
	ClassicalOCRLang    string        `yaml:"classical_ocr_lang"`
	ClassicalOCRDPI     int           `yaml:"classical_ocr_dpi"`
	CanaryPageCap       int           `yaml:"canary_page_cap"`
	CriticalScoreBelow  float64       `yaml:"critical_score_below"`
	HighScoreBelow      float64       `yaml:"high_score_below"`
	MediumScoreBelow    float64       `yaml:"medium_score_below"`
	AdjudicationWords   int           `yaml:"adjudication_words"`
	AdjudicationThreshold float64     `yaml:"adjudication_threshold"`
	SampleFraction      float64       `yaml:"sample_fraction"`
	SampleMinimum       int           `yaml:"sample_minimum"`
	AcceptanceThreshold float64       `yaml:"acceptance_threshold"`
	MaxImageBytes       int           `yaml:"max_image_bytes"`
	CheckpointEvery     int           `yaml:"checkpoint_every"`
	WorkerPoolSize      int           `yaml:"worker_pool_size"`
	ReportsDir          string        `yaml:"reports_dir"`
	PerRequestDelay     time.Duration `yaml:"per_request_delay"`
}

// CacheConfig controls the optional OCR/LLM response cache.
type CacheConfig struct {
	Driver string        `yaml:"driver"` // memory or redis
	TTL    time.Duration `yaml:"ttl"`
	Redis  RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	// Load .env into the process environment before reading API keys, so
	// operators running the CLI from a checkout don't have to export
	// VISION_OCR_API_KEY/LLM_SYNTH_API_KEY by hand. Every candidate path
	// is tried and every error (including "file not found") is ignored,
	// matching the orchestrator's own config loader.
	_ = godotenv.Load()
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults, matching the
// constants the original scraper hard-coded in scraper/config.py.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:   "sqlite",
			DataRoot: "./data",
			SQLite: SQLiteConfig{
				Path:        "./data/state.db",
				JournalMode: "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns: 10,
			},
		},
		Crawler: CrawlerConfig{
			BaseURL:          "https://www.fppc.ca.gov/covered_persons/advice/search.html",
			StartYear:        1975,
			EndYear:          2025,
			PoliteDelay:      4 * time.Second,
			RequestTimeout:   120 * time.Second,
			MaxRetries:       3,
			RetryBackoffBase: 2 * time.Second,
			CheckpointPath:   "./data/checkpoint.json",
		},
		Fetcher: FetcherConfig{
			PoliteDelay:      2 * time.Second,
			RequestTimeout:   120 * time.Second,
			MaxRetries:       3,
			RetryBackoffBase: 2 * time.Second,
		},
		Quality: QualityConfig{
			LegacyYearCutoff: 1995,
			ScoreThreshold:   0.60,
			MinWordsPerPage:  100,
			MinAlphaRatio:    0.70,
			MaxGarbageTokens: 40,
		},
		Extraction: ExtractionConfig{
			RawDir:              "./data/raw",
			ExtractedDir:        "./data/extracted",
			MaxOCRPages:         20,
			OCRPageDPI:          200,
			FileNoScanChars:     3000,
			WithdrawalScanChars: 5000,
		},
		Section: SectionConfig{
			MinWords: 1,
		},
		Citation: CitationConfig{
			StatuteMin:       81000,
			StatuteMax:       91014,
			ConflictsBandMin: 1090,
			ConflictsBandMax: 1099,
			RegulationMin:    18109,
			RegulationMax:    18997,
		},
		VisionOCR: VisionOCRConfig{
			Enabled:    false,
			BaseURL:    "https://openrouter.ai/api/v1",
			Model:      "google/gemini-2.0-flash-001",
			APIKeyEnv:  "VISION_OCR_API_KEY",
			PageDelay:  500 * time.Millisecond,
			Timeout:    90 * time.Second,
			MaxRetries: 3,
		},
		LLMSynth: LLMSynthConfig{
			Enabled:           false,
			BaseURL:           "https://openrouter.ai/api/v1",
			Model:             "anthropic/claude-3.5-sonnet",
			APIKeyEnv:         "LLM_SYNTH_API_KEY",
			Timeout:           90 * time.Second,
			MaxRetries:        3,
			MaxInputChars:     12000,
			CostPerMInputUSD:  3.0,
			CostPerMOutputUSD: 15.0,
			MaxCostUSD:        0,
		},
		Fidelity: FidelityConfig{
			ClassicalOCRBinary:    "tesseract",
			ClassicalOCRLang:      "eng",
			ClassicalOCRDPI:       300,
			CanaryPageCap:         20,
			CriticalScoreBelow:    0.30,
			HighScoreBelow:        0.50,
			MediumScoreBelow:      0.70,
			AdjudicationWords:     200,
			AdjudicationThreshold: 0.60,
			SampleFraction:        0.20,
			SampleMinimum:         20,
			AcceptanceThreshold:   0.05,
			MaxImageBytes:         4 * 1024 * 1024,
			CheckpointEvery:       100,
			WorkerPoolSize:        1,
			ReportsDir:            "./data/reports",
			PerRequestDelay:       500 * time.Millisecond,
		},
		Cache: CacheConfig{
			Driver: "memory",
			TTL:    24 * time.Hour,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				DB:   0,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for obvious errors.
func (c *Config) Validate() error {
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return fmt.Errorf("invalid store driver: %s", c.Store.Driver)
	}
	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}
	if c.Crawler.StartYear > c.Crawler.EndYear {
		return fmt.Errorf("crawler start_year %d after end_year %d", c.Crawler.StartYear, c.Crawler.EndYear)
	}
	if c.Extraction.MaxOCRPages < 1 {
		return fmt.Errorf("extraction.max_ocr_pages must be >= 1")
	}
	if c.Section.MinWords < 0 {
		return fmt.Errorf("section.min_words must be >= 0")
	}
	if c.VisionOCR.Enabled && os.Getenv(c.VisionOCR.APIKeyEnv) == "" {
		return fmt.Errorf("vision_ocr enabled but %s is not set", c.VisionOCR.APIKeyEnv)
	}
	if c.LLMSynth.Enabled && os.Getenv(c.LLMSynth.APIKeyEnv) == "" {
		return fmt.Errorf("llm_synth enabled but %s is not set", c.LLMSynth.APIKeyEnv)
	}
	return nil
}

// DatabaseDSN returns the appropriate State Store connection string.
func (c *Config) DatabaseDSN() string {
	if c.Store.Driver == "sqlite" {
		return c.Store.SQLite.Path
	}
	return c.Store.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_ROOT"); v != "" {
		cfg.Store.DataRoot = v
	}
	if v := os.Getenv("STATE_DB_PATH"); v != "" {
		cfg.Store.SQLite.Path = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Store.Driver = "postgres"
		cfg.Store.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
	if v := os.Getenv("VISION_OCR_ENABLED"); v == "true" {
		cfg.VisionOCR.Enabled = true
	}
	if v := os.Getenv("LLM_SYNTH_ENABLED"); v == "true" {
		cfg.LLMSynth.Enabled = true
	}
	if v := os.Getenv("MAX_COST_USD"); v != "" {
		var f float64
		if _, err := fmt.Sscanf(v, "%f", &f); err == nil {
			cfg.LLMSynth.MaxCostUSD = f
		}
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
