package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pdfrag/internal/models"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	defaultPort      = 7860
	defaultAPIKeyEnv = "OPENAI_API_KEY"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port                      int      `yaml:"port" validate:"gt=0,lte=65535"`
	UploadDir                 string   `yaml:"upload_dir" validate:"required"`
	MaxUploadMB               int      `yaml:"max_upload_mb" validate:"gt=0"`
	ContainerMarker           string   `yaml:"container_marker"`
	ContainerHostnamePrefixes []string `yaml:"container_hostname_prefixes"`
}

// LLMConfig describes one hosted model endpoint. Key is never read from yaml.
type LLMConfig struct {
	Provider          string `yaml:"provider" validate:"oneof=openai ollama"`
	BaseURL           string `yaml:"base_url"`
	Model             string `yaml:"model" validate:"required"`
	APIKeyEnv         string `yaml:"api_key_env"`
	CountPromptTokens bool   `yaml:"count_prompt_tokens"`
	Key               string `yaml:"-" json:"-"`
}

type RAGConfig struct {
	ChunkSize       int      `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap    int      `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	Temperature     float64  `yaml:"temperature" validate:"gte=0,lte=1"`
	TopK            int      `yaml:"top_k" validate:"gt=0"`
	Separators      []string `yaml:"separators" validate:"min=1"`
	NotFoundMessage string   `yaml:"not_found_message" validate:"required"`
}

type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn error"`
}

// Default returns the configuration used for any key missing from the file
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                      defaultPort,
			UploadDir:                 "./uploads",
			MaxUploadMB:               50,
			ContainerMarker:           "/.dockerenv",
			ContainerHostnamePrefixes: []string{"pdf-rag-container", "pdf-rag-app"},
		},
		LLM: LLMConfig{
			Provider:  ProviderOpenAI,
			Model:     "gpt-3.5-turbo",
			APIKeyEnv: defaultAPIKeyEnv,
		},
		EmbedLLM: LLMConfig{
			Provider:  ProviderOpenAI,
			Model:     "text-embedding-3-small",
			APIKeyEnv: defaultAPIKeyEnv,
		},
		RAG: RAGConfig{
			ChunkSize:       models.DefaultChunkSize,
			ChunkOverlap:    models.DefaultChunkOverlap,
			Temperature:     models.DefaultTemperature,
			TopK:            models.DefaultTopK,
			Separators:      append([]string(nil), models.DefaultSeparators...),
			NotFoundMessage: models.DefaultNotFoundMessage,
		},
		Log: LogConfig{Level: "debug"},
	}
}

// LoadConfig reads the yaml file over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config, the optional .env file and the provider credentials,
// then validates the result. Every failure is a *models.ConfigurationError.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &models.ConfigurationError{Field: ".env", Err: err}
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, &models.ConfigurationError{Field: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ResolveCredentials(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			return &models.ConfigurationError{Field: "config", Err: err}
		}
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s' tag", e.Namespace(), e.Tag()))
		}
		return &models.ConfigurationError{Field: errs[0].Namespace(), Err: errors.New(strings.Join(msgs, "; "))}
	}
	return nil
}

// ResolveCredentials fills the API keys from the environment. The hosted
// provider key is required; a local ollama server runs without one.
func (c *Config) ResolveCredentials(getenv func(string) string) error {
	for _, llm := range []*LLMConfig{&c.LLM, &c.EmbedLLM} {
		env := llm.APIKeyEnv
		if env == "" {
			env = defaultAPIKeyEnv
		}
		llm.Key = getenv(env)
		if llm.Key == "" && llm.Provider == ProviderOpenAI {
			return &models.ConfigurationError{Field: env, Err: errors.New("credential is not set")}
		}
	}
	return nil
}

// ListenAddr binds every interface inside a container and loopback otherwise
func (s ServerConfig) ListenAddr() string {
	hostname, _ := os.Hostname()
	host := "127.0.0.1"
	if InContainer(s.ContainerMarker, hostname, s.ContainerHostnamePrefixes) {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// InContainer reports whether the marker file exists or the hostname carries
// one of the container prefixes.
func InContainer(marker, hostname string, prefixes []string) bool {
	if marker != "" {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(hostname, p) {
			return true
		}
	}
	return false
}
