package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dyike/VancelleGo/consts"
)

type Config struct {
	DataDir  string `yaml:"data_dir" json:"data_dir"`
	LogFile  string `yaml:"log_file" json:"log_file"`
	LogLevel string `yaml:"log_level" json:"log_level"`
	Debug    bool   `yaml:"debug" json:"debug"`

	// Inference
	LLMProvider string `yaml:"llm_provider" json:"llm_provider"`
	Model       string `yaml:"model" json:"model"`
	BackendURL  string `yaml:"backend_url" json:"backend_url"`
	MaxTokens   int    `yaml:"max_tokens" json:"max_tokens"`

	// Journal debrief
	DebriefProvider string `yaml:"debrief_provider" json:"debrief_provider"`
	DebriefModel    string `yaml:"debrief_model" json:"debrief_model"`

	// Storage
	StoreBackend string `yaml:"store_backend" json:"store_backend"`
	SQLitePath   string `yaml:"sqlite_path" json:"sqlite_path"`
	RedisURL     string `yaml:"redis_url" json:"redis_url"`

	// HTTP adapter
	HTTPAddr string `yaml:"http_addr" json:"http_addr"`

	// Credentials are read from the environment only.
	GeminiAPIKey   string `yaml:"-" json:"-"`
	OpenAIAPIKey   string `yaml:"-" json:"-"`
	DeepSeekAPIKey string `yaml:"-" json:"-"`
}

// ConfigurationError reports a setting the client cannot start without.
type ConfigurationError struct {
	Field string
	Env   string
}

var ErrMissingCredential = errors.New("missing credential")

func (e *ConfigurationError) Error() string {
	if e.Env != "" {
		return fmt.Sprintf("configuration error: %s is not set (%s)", e.Field, e.Env)
	}
	return fmt.Sprintf("configuration error: %s is not set", e.Field)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrMissingCredential
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	dataDir := filepath.Join(currentDir, "data")

	cfg := &Config{
		DataDir:  dataDir,
		LogFile:  filepath.Join(currentDir, "logs", consts.AppName+".log"),
		LogLevel: "info",

		LLMProvider: consts.ProviderGemini,
		Model:       "gemini-3-flash-preview",
		BackendURL:  "",
		MaxTokens:   8192,

		DebriefProvider: consts.ProviderDeepSeek,
		DebriefModel:    "deepseek-chat",

		StoreBackend: consts.BackendFile,
		RedisURL:     "localhost:6379",

		HTTPAddr: "127.0.0.1:8080",
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()

	return cfg
}

// Load starts from the defaults, overlays an optional YAML file and then the
// environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Environment wins over the file
	cfg.loadFromEnv()
	return cfg, nil
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("VANCELLE_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("VANCELLE_LOG_FILE"); val != "" {
		c.LogFile = val
	}
	if val := os.Getenv("VANCELLE_LOG_LEVEL"); val != "" {
		c.LogLevel = strings.ToLower(val)
	}
	if val := os.Getenv("VANCELLE_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = strings.ToLower(val)
	}
	if val := os.Getenv("VANCELLE_MODEL"); val != "" {
		c.Model = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("VANCELLE_MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.MaxTokens = v
		}
	}

	if val := os.Getenv("DEBRIEF_PROVIDER"); val != "" {
		c.DebriefProvider = strings.ToLower(val)
	}
	if val := os.Getenv("DEBRIEF_MODEL"); val != "" {
		c.DebriefModel = val
	}

	if val := os.Getenv("VANCELLE_STORE"); val != "" {
		c.StoreBackend = strings.ToLower(val)
	}
	if val := os.Getenv("VANCELLE_SQLITE_PATH"); val != "" {
		c.SQLitePath = val
	}
	if val := os.Getenv("REDIS_URL"); val != "" {
		c.RedisURL = val
	}
	if val := os.Getenv("VANCELLE_HTTP_ADDR"); val != "" {
		c.HTTPAddr = val
	}

	if val := os.Getenv("GEMINI_API_KEY"); val != "" {
		c.GeminiAPIKey = val
	} else if val := os.Getenv("API_KEY"); val != "" {
		c.GeminiAPIKey = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
}

// Validate checks the settings every command depends on. Credentials are
// checked separately by ValidateInference so journal commands run without them.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case consts.ProviderGemini, consts.ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLMProvider)
	}
	switch c.StoreBackend {
	case consts.BackendFile, consts.BackendSQLite, consts.BackendRedis, consts.BackendMemory:
	default:
		return fmt.Errorf("unsupported store backend %q", c.StoreBackend)
	}
	if c.StoreBackend == consts.BackendRedis && strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("redis store selected but redis_url is empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	return nil
}

// ValidateInference fails when the selected provider has no credential.
func (c *Config) ValidateInference() error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch c.LLMProvider {
	case consts.ProviderGemini:
		if c.GeminiAPIKey == "" {
			return &ConfigurationError{Field: "gemini api key", Env: "GEMINI_API_KEY or API_KEY"}
		}
	case consts.ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return &ConfigurationError{Field: "openai api key", Env: "OPENAI_API_KEY"}
		}
	}
	return nil
}

// ValidateDebrief fails when the debrief provider has no credential.
func (c *Config) ValidateDebrief() error {
	switch c.DebriefProvider {
	case consts.ProviderDeepSeek:
		if c.DeepSeekAPIKey == "" {
			return &ConfigurationError{Field: "deepseek api key", Env: "DEEPSEEK_API_KEY"}
		}
	case consts.ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return &ConfigurationError{Field: "openai api key", Env: "OPENAI_API_KEY"}
		}
	default:
		return fmt.Errorf("unsupported debrief provider %q", c.DebriefProvider)
	}
	return nil
}

// ResolvedSQLitePath defaults the database next to the other data files.
func (c *Config) ResolvedSQLitePath() string {
	if strings.TrimSpace(c.SQLitePath) != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.DataDir, consts.AppName+".db")
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.LogFile != "" {
		dirs = append(dirs, filepath.Dir(c.LogFile))
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
