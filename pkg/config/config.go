// Package config loads and validates service configuration from the
// environment, an optional .env file, and an optional YAML overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mlforge/pkg/logx"
)

const (
	// DefaultBaseURL is the OpenAI-compatible endpoint used when none is configured.
	DefaultBaseURL = "https://integrate.api.nvidia.com/v1"
	// DefaultModel is the chat model used when NVIDIA_MODEL_ID is unset.
	DefaultModel = "meta/llama-3.3-70b-instruct"

	defaultSandboxImage   = "mlforge-sandbox:latest"
	defaultSandboxTimeout = 30 * time.Minute
	defaultDBPath         = "mlforge.db"
	defaultListenAddr     = ":8080"
	defaultMaxRunWorkers  = 4
	defaultHistoryLimit   = 10
	defaultMaxIterations  = 25
)

// ConfigError indicates invalid or missing configuration. It aborts a run
// before any sandbox or LLM work happens.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// LLMConfig selects and parameterizes the chat-completion provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai | anthropic | ollama
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"-"` // env only, never from file
	TopP     float64 `yaml:"top_p"`
}

// SandboxConfig parameterizes the Docker sandbox provider.
type SandboxConfig struct {
	Image       string        `yaml:"image"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	WorkDir     string        `yaml:"work_dir"`
	PreviewPort int           `yaml:"preview_port"`
}

// ServerConfig parameterizes the HTTP intake server.
type ServerConfig struct {
	ListenAddr    string `yaml:"listen_addr"`
	MaxRunWorkers int    `yaml:"max_run_workers"`
}

// WorkflowConfig bounds the run driver.
type WorkflowConfig struct {
	HistoryLimit  int    `yaml:"history_limit"`
	MaxIterations int    `yaml:"max_iterations"`
	Pipeline      string `yaml:"pipeline"` // ml | codegen
}

// Config is the full service configuration. Load returns it by value so
// callers cannot mutate shared state.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Server   ServerConfig   `yaml:"server"`
	Workflow WorkflowConfig `yaml:"workflow"`
	DBPath   string         `yaml:"db_path"`
}

var logger = logx.NewLogger("config")

// Load builds the configuration. Precedence: YAML file (if CONFIG_FILE or
// the passed path names one) < environment variables. A .env file in the
// working directory is folded into the environment first.
func Load(yamlPath string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded: %v", err)
	}

	cfg := defaults()

	if yamlPath == "" {
		yamlPath = os.Getenv("CONFIG_FILE")
	}
	if yamlPath != "" {
		if err := overlayYAML(&cfg, yamlPath); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", yamlPath, err)
		}
	}

	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    DefaultModel,
			BaseURL:  DefaultBaseURL,
			TopP:     0.9,
		},
		Sandbox: SandboxConfig{
			Image:       defaultSandboxImage,
			IdleTimeout: defaultSandboxTimeout,
			WorkDir:     "/home/user",
			PreviewPort: 3000,
		},
		Server: ServerConfig{
			ListenAddr:    defaultListenAddr,
			MaxRunWorkers: defaultMaxRunWorkers,
		},
		Workflow: WorkflowConfig{
			HistoryLimit:  defaultHistoryLimit,
			MaxIterations: defaultMaxIterations,
			Pipeline:      "ml",
		},
		DBPath: defaultDBPath,
	}
}

func overlayYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("NVIDIA_MODEL_ID"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	switch cfg.LLM.Provider {
	case "anthropic":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "ollama":
		// Local provider, no key.
	default:
		cfg.LLM.APIKey = os.Getenv("NVIDIA_API_KEY")
	}

	if v := os.Getenv("SANDBOX_IMAGE"); v != "" {
		cfg.Sandbox.Image = v
	}
	if v := os.Getenv("SANDBOX_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sandbox.IdleTimeout = d
		} else {
			logger.Warn("invalid SANDBOX_IDLE_TIMEOUT %q: %v", v, err)
		}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("MAX_RUN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.MaxRunWorkers = n
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PIPELINE"); v != "" {
		cfg.Workflow.Pipeline = v
	}
}

func validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case "openai", "anthropic":
		if cfg.LLM.APIKey == "" {
			return &ConfigError{Field: "api_key", Reason: "API key is not set"}
		}
	case "ollama":
	default:
		return &ConfigError{Field: "llm.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.LLM.Provider)}
	}
	if cfg.LLM.Model == "" {
		return &ConfigError{Field: "llm.model", Reason: "model id is empty"}
	}
	if cfg.Sandbox.Image == "" {
		return &ConfigError{Field: "sandbox.image", Reason: "image is empty"}
	}
	switch cfg.Workflow.Pipeline {
	case "ml", "codegen":
	default:
		return &ConfigError{Field: "workflow.pipeline", Reason: fmt.Sprintf("unknown pipeline %q", cfg.Workflow.Pipeline)}
	}
	if cfg.Workflow.MaxIterations <= 0 {
		return &ConfigError{Field: "workflow.max_iterations", Reason: "must be positive"}
	}
	return nil
}
