package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by index.backend.
const (
	BackendLocal  = "local"
	BackendQdrant = "qdrant"
)

// Config holds all configuration for the ragalert service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	LLM       LLMConfig       `yaml:"llm"`
	Alert     AlertConfig     `yaml:"alert"`
	Notify    NotifyConfig    `yaml:"notify"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	PublicURL    string        `yaml:"public_url"` // base of the context links sent in alerts
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// IngestConfig holds document discovery and chunking configuration.
type IngestConfig struct {
	Dir          string   `yaml:"dir"`
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Workers      int      `yaml:"workers"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "hash", "openai", "ollama"
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
	CachePath string `yaml:"cache_path"` // empty disables the embedding cache
}

// IndexConfig selects and configures the index backend.
type IndexConfig struct {
	Backend string       `yaml:"backend"` // "local" or "qdrant"
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds the hosted index backend settings.
type QdrantConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
	BatchSize  int           `yaml:"batch_size"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK      int           `yaml:"top_k"`
	CacheSize int           `yaml:"cache_size"` // 0 disables the retrieval cache
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// LLMConfig holds the chat completion endpoint and prompt settings.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	AuthHeader  string        `yaml:"auth_header"` // "authorization" (Bearer) or "api-key"
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	Persona     string        `yaml:"persona"`
	Language    string        `yaml:"language"`
	MaxWords    int           `yaml:"max_words"`
	Fallback    string        `yaml:"fallback"`
}

// AlertConfig holds incident classification settings.
type AlertConfig struct {
	Keywords []string `yaml:"keywords"`
}

// NotifyConfig holds SMTP notification settings.
type NotifyConfig struct {
	Enabled       bool          `yaml:"enabled"`
	SMTPHost      string        `yaml:"smtp_host"`
	SMTPPort      int           `yaml:"smtp_port"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	From          string        `yaml:"from"`
	To            []string      `yaml:"to"`
	Subject       string        `yaml:"subject"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerMinute float64       `yaml:"rate_per_minute"`
	Burst         int           `yaml:"burst"`
}

// LedgerConfig holds incident ledger settings.
type LedgerConfig struct {
	Path string `yaml:"path"` // empty disables the ledger
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultPersona is the system prompt used when none is configured.
const DefaultPersona = "Eres un asistente especializado de BASF. Responde de manera profesional y precisa sobre química, sostenibilidad y productos de BASF."

// DefaultFallback is returned to the user whenever the model endpoint fails.
const DefaultFallback = "Lo siento, no pude procesar tu consulta en este momento."

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8000",
			PublicURL:    "http://localhost:5173",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Ingest: IngestConfig{
			Dir:          "./pdfs",
			Includes:     []string{"**/*.pdf"},
			Excludes:     []string{"**/.git/**", "**/~$*"},
			ChunkSize:    500,
			ChunkOverlap: 50,
			Workers:      4,
		},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Model:     "hash-384",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 384,
			BatchSize: 64,
			CachePath: ".ragalert/embeddings.db",
		},
		Index: IndexConfig{
			Backend: BackendLocal,
			Qdrant: QdrantConfig{
				URL:        "http://localhost:6333",
				Collection: "ragalert",
				Timeout:    30 * time.Second,
				BatchSize:  128,
			},
		},
		Retrieve: RetrieveConfig{
			TopK:      3,
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.deepseek.com/v1",
			AuthHeader:  "authorization",
			Model:       "deepseek-chat",
			Temperature: 0.1,
			MaxTokens:   1000,
			Timeout:     60 * time.Second,
			Persona:     DefaultPersona,
			Language:    "español",
			MaxWords:    150,
			Fallback:    DefaultFallback,
		},
		Alert: AlertConfig{
			Keywords: []string{"alerta", "protocolo", "emergencia"},
		},
		Notify: NotifyConfig{
			Enabled:       false,
			SMTPHost:      "smtp.gmail.com",
			SMTPPort:      587,
			Subject:       "Alerta de incidente - BASF Assistant",
			Timeout:       20 * time.Second,
			RatePerMinute: 6,
			Burst:         3,
		},
		Ledger: LedgerConfig{
			Path: ".ragalert/incidents.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ragalert.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ragalert.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".ragalert", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides configuration values from environment variables.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("RAGALERT_ADDR", &c.Server.Addr)
	str("PUBLIC_URL", &c.Server.PublicURL)
	str("RAGALERT_DOCS_DIR", &c.Ingest.Dir)
	str("EMBEDDING_MODEL", &c.Embedding.Model)
	str("QDRANT_URL", &c.Index.Qdrant.URL)
	str("QDRANT_API_KEY", &c.Index.Qdrant.APIKey)
	str("QDRANT_COLLECTION", &c.Index.Qdrant.Collection)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	str("LLM_API_KEY", &c.LLM.APIKey)
	str("LLM_MODEL", &c.LLM.Model)
	str("SMTP_HOST", &c.Notify.SMTPHost)
	str("SMTP_USERNAME", &c.Notify.Username)
	str("SMTP_PASSWORD", &c.Notify.Password)
	str("ALERT_FROM", &c.Notify.From)
	str("LOG_LEVEL", &c.Logging.Level)

	if v, ok := lookup("USE_REMOTE_INDEX"); ok && v != "" {
		remote, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("USE_REMOTE_INDEX: %w", err)
		}
		c.Index.Backend = BackendLocal
		if remote {
			c.Index.Backend = BackendQdrant
		}
	}
	if v, ok := lookup("SMTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %w", err)
		}
		c.Notify.SMTPPort = port
	}
	if v, ok := lookup("ALERT_TO"); ok && v != "" {
		var to []string
		for _, addr := range strings.Split(v, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				to = append(to, addr)
			}
		}
		c.Notify.To = to
		c.Notify.Enabled = len(to) > 0
	}
	return nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap)
	}
	switch c.Index.Backend {
	case BackendLocal, BackendQdrant:
	default:
		return fmt.Errorf("index.backend must be %q or %q, got %q", BackendLocal, BackendQdrant, c.Index.Backend)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2], got %g", c.LLM.Temperature)
	}
	if c.Notify.Enabled {
		if c.Notify.From == "" || len(c.Notify.To) == 0 {
			return fmt.Errorf("notify.from and notify.to are required when notifications are enabled")
		}
		u, err := url.Parse(c.Server.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("server.public_url must be an absolute http(s) URL when notifications are enabled, got %q", c.Server.PublicURL)
		}
	}
	return nil
}

// EmbeddingAPIKey resolves the embedding key, preferring the inline value.
func (c *Config) EmbeddingAPIKey() string {
	if c.Embedding.APIKey != "" {
		return c.Embedding.APIKey
	}
	if c.Embedding.APIKeyEnv != "" {
		return os.Getenv(c.Embedding.APIKeyEnv)
	}
	return ""
}

// ResolvePath makes a relative path absolute against dir.
func ResolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// EnsureParentDir creates the parent directory of path.
func EnsureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}
