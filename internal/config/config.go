package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Environment variables recognized by ApplyEnv
const (
	EnvOllamaHost    = "OLLAMA_HOST"
	EnvOllamaModel   = "OLLAMA_MODEL"
	EnvProvider      = "DOCMETA_PROVIDER"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvDBPath        = "DOCMETA_DB_PATH"

	// DefaultFileName is looked up in the base directory when no config file is given
	DefaultFileName = "docmeta.toml"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is built once at startup and passed to every component
type Config struct {
	BaseDir string `toml:"base_dir"`

	Paths      Paths      `toml:"paths"`
	Service    Service    `toml:"service"`
	Generation Generation `toml:"generation"`
	Retry      Retry      `toml:"retry"`
	Chunking   Chunking   `toml:"chunking"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Watch      Watch      `toml:"watch"`
}

// Paths are relative to BaseDir unless absolute
type Paths struct {
	Documents     string `toml:"documents"`
	Corpus        string `toml:"corpus"`
	PublishCorpus string `toml:"publish_corpus"`
	Registry      string `toml:"registry"`
	Database      string `toml:"database"`
}

// Service selects and addresses the text-generation service
type Service struct {
	Provider          string   `toml:"provider"` // ollama or openai
	Host              string   `toml:"host"`
	Model             string   `toml:"model"`
	APIKey            string   `toml:"-"`
	Timeout           Duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	CacheSize         int      `toml:"cache_size"`
}

// Generation options sent with every prompt
type Generation struct {
	Temperature     float64  `toml:"temperature"`
	TopP            float64  `toml:"top_p"`
	MaxTokens       int      `toml:"max_tokens"`
	Stop            []string `toml:"stop"`
	MaxContentChars int      `toml:"max_content_chars"`
}

// Retry policy for service calls
type Retry struct {
	MaxRetries int      `toml:"max_retries"`
	BaseDelay  Duration `toml:"base_delay"`
	MaxDelay   Duration `toml:"max_delay"`
	Multiplier float64  `toml:"multiplier"`
}

// Chunking bounds the analysis cost per document
type Chunking struct {
	ChunkSize int `toml:"chunk_size"` // words per window
	Overlap   int `toml:"overlap"`    // words repeated from the previous window
	MaxChunks int `toml:"max_chunks"`
	MaxPages  int `toml:"max_pages"`
}

// Pipeline concurrency and run behaviour
type Pipeline struct {
	Workers         int  `toml:"workers"`
	PassConcurrency int  `toml:"pass_concurrency"`
	AllowDegraded   bool `toml:"allow_degraded"`
	GitCommit       bool `toml:"git_commit"`
}

// Watch mode settings
type Watch struct {
	Debounce     Duration `toml:"debounce"`
	PollInterval Duration `toml:"poll_interval"`
}

// Duration is a time.Duration written as a string ("10s", "2m") in TOML
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration as a Go duration string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		BaseDir: ".",
		Paths: Paths{
			Documents:     "documents",
			Corpus:        filepath.Join("data", "documents.json"),
			PublishCorpus: filepath.Join("dist", "data", "documents.json"),
			Registry:      filepath.Join("data", "processed_files.json"),
			Database:      filepath.Join("data", "docmeta.db"),
		},
		Service: Service{
			Provider:  "ollama",
			Host:      "http://127.0.0.1:11434",
			Model:     "gemma3:4b",
			Timeout:   Duration{120 * time.Second},
			CacheSize: 1000,
		},
		Generation: Generation{
			Temperature:     0.1,
			TopP:            0.9,
			MaxTokens:       500,
			Stop:            []string{"```", "<think>", "\n\n\n", "Note:", "Explanation:"},
			MaxContentChars: 1500,
		},
		Retry: Retry{
			MaxRetries: 3,
			BaseDelay:  Duration{time.Second},
			MaxDelay:   Duration{8 * time.Second},
			Multiplier: 2.0,
		},
		Chunking: Chunking{
			ChunkSize: 2000,
			Overlap:   200,
			MaxChunks: 20,
			MaxPages:  20,
		},
		Pipeline: Pipeline{
			Workers:         2,
			PassConcurrency: 4,
		},
		Watch: Watch{
			Debounce:     Duration{2 * time.Second},
			PollInterval: Duration{10 * time.Second},
		},
	}
}

// Load reads a TOML file over the defaults.
// An empty path tries DefaultFileName in baseDir and tolerates its absence.
func Load(path, baseDir string) (Config, error) {
	cfg := Default()
	if baseDir != "" {
		cfg.BaseDir = baseDir
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.BaseDir, DefaultFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if baseDir != "" {
		cfg.BaseDir = baseDir
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvOllamaHost); v != "" {
		c.Service.Host = normalizeHost(v)
	}
	if v := getenv(EnvOllamaModel); v != "" {
		c.Service.Model = v
	}
	if v := getenv(EnvProvider); v != "" {
		c.Service.Provider = v
	}
	if v := getenv(EnvOpenAIKey); v != "" {
		c.Service.APIKey = v
	}
	if v := getenv(EnvOpenAIBaseURL); v != "" && c.Service.Provider == "openai" {
		c.Service.Host = v
	}
	if v := getenv(EnvDBPath); v != "" {
		c.Paths.Database = v
	}
}

// normalizeHost accepts the bare host:port form Ollama itself uses for OLLAMA_HOST
func normalizeHost(h string) string {
	if len(h) > 0 && !hasScheme(h) {
		return "http://" + h
	}
	return h
}

func hasScheme(h string) bool {
	for i := 0; i < len(h); i++ {
		switch {
		case h[i] == ':':
			return i+2 < len(h) && h[i+1] == '/' && h[i+2] == '/'
		case h[i] == '/':
			return false
		}
	}
	return false
}

// Validate rejects configurations no run could succeed with
func (c *Config) Validate() error {
	switch {
	case c.Service.Model == "":
		return fmt.Errorf("%w: model name is empty", ErrInvalidConfig)
	case c.Chunking.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalidConfig)
	case c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize:
		return fmt.Errorf("%w: overlap must be in [0, chunk_size)", ErrInvalidConfig)
	case c.Chunking.MaxChunks <= 0:
		return fmt.Errorf("%w: max_chunks must be positive", ErrInvalidConfig)
	case c.Retry.MaxRetries <= 0:
		return fmt.Errorf("%w: max_retries must be positive", ErrInvalidConfig)
	case c.Pipeline.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.Generation.MaxContentChars <= 0:
		return fmt.Errorf("%w: max_content_chars must be positive", ErrInvalidConfig)
	}
	return nil
}

// Resolve returns p joined to BaseDir unless p is absolute
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// DocumentsDir is the absolute-or-base-relative documents directory
func (c *Config) DocumentsDir() string { return c.Resolve(c.Paths.Documents) }

// CorpusPaths returns the working and publish corpus locations
func (c *Config) CorpusPaths() (string, string) {
	return c.Resolve(c.Paths.Corpus), c.Resolve(c.Paths.PublishCorpus)
}

// RegistryPath is the location of the processed-file registry
func (c *Config) RegistryPath() string { return c.Resolve(c.Paths.Registry) }

// DatabasePath is the location of the SQLite run ledger
func (c *Config) DatabasePath() string { return c.Resolve(c.Paths.Database) }
