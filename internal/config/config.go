package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 18990
	DefaultModel          = "gpt-4o-mini"
	DefaultMaxTokens      = 1000
	DefaultTemperature    = 0.7
	DefaultMemoryTopK     = 5
	DefaultHistoryCount   = 10
	DefaultMaxContentLen  = 4000
	DefaultRetentionKeep  = 200
	DefaultMemoryBackend  = "sqlite"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultEmbeddingDim   = 1536
)

type Config struct {
	Gateway GatewayConfig `json:"gateway"`
	LLM     LLMConfig     `json:"llm"`
	Memory  MemoryConfig  `json:"memory"`
	Voice   VoiceConfig   `json:"voice"`
	Storage StorageConfig `json:"storage"`
	Chat    ChatConfig    `json:"chat"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

type LLMConfig struct {
	APIKey      string  `json:"apiKey"`
	BaseURL     string  `json:"baseUrl"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

// MemoryConfig selects the vector backend: "sqlite" keeps embeddings in
// the local database, "qdrant" talks to a qdrant instance over gRPC.
type MemoryConfig struct {
	Enabled        bool   `json:"enabled"`
	Backend        string `json:"backend"`
	TopK           int    `json:"topK"`
	DBPath         string `json:"dbPath,omitempty"`
	QdrantAddr     string `json:"qdrantAddr,omitempty"`
	Collection     string `json:"collection,omitempty"`
	EmbeddingURL   string `json:"embeddingUrl,omitempty"`
	EmbeddingKey   string `json:"embeddingKey,omitempty"`
	EmbeddingModel string `json:"embeddingModel,omitempty"`
	EmbeddingDim   int    `json:"embeddingDim,omitempty"`
}

type VoiceConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
}

type StorageConfig struct {
	DBPath string `json:"dbPath"`
}

type ChatConfig struct {
	HistoryCount  int `json:"historyCount"`
	MaxContentLen int `json:"maxContentLen"`
	RetentionKeep int `json:"retentionKeep"`
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{Host: DefaultHost, Port: DefaultPort},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       DefaultModel,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		Memory: MemoryConfig{
			Enabled:        false,
			Backend:        DefaultMemoryBackend,
			TopK:           DefaultMemoryTopK,
			DBPath:         filepath.Join(ConfigDir(), "memory.db"),
			Collection:     "talkgate",
			EmbeddingModel: DefaultEmbeddingModel,
			EmbeddingDim:   DefaultEmbeddingDim,
		},
		Voice: VoiceConfig{Enabled: false},
		Storage: StorageConfig{
			DBPath: filepath.Join(ConfigDir(), "talkgate.db"),
		},
		Chat: ChatConfig{
			HistoryCount:  DefaultHistoryCount,
			MaxContentLen: DefaultMaxContentLen,
			RetentionKeep: DefaultRetentionKeep,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".talkgate")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("TALKGATE_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = key
	}
	if url := os.Getenv("TALKGATE_BASE_URL"); url != "" {
		cfg.LLM.BaseURL = url
	}
	if model := os.Getenv("TALKGATE_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if port := os.Getenv("TALKGATE_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = parsed
		}
	}
	if enabled := os.Getenv("TALKGATE_MEMORY_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Memory.Enabled = parsed
		}
	}
	if backend := os.Getenv("TALKGATE_MEMORY_BACKEND"); backend != "" {
		cfg.Memory.Backend = backend
	}
	if addr := os.Getenv("TALKGATE_QDRANT_ADDR"); addr != "" {
		cfg.Memory.QdrantAddr = addr
	}
	if key := os.Getenv("TALKGATE_VOICE_API_KEY"); key != "" {
		cfg.Voice.APIKey = key
		cfg.Voice.Enabled = true
	}
	if url := os.Getenv("TALKGATE_VOICE_BASE_URL"); url != "" {
		cfg.Voice.BaseURL = url
	}
	if dbPath := os.Getenv("TALKGATE_DB_PATH"); dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}

	if cfg.Memory.EmbeddingURL == "" {
		cfg.Memory.EmbeddingURL = cfg.LLM.BaseURL
	}
	if cfg.Memory.EmbeddingKey == "" {
		cfg.Memory.EmbeddingKey = cfg.LLM.APIKey
	}
	if cfg.Chat.HistoryCount <= 0 {
		cfg.Chat.HistoryCount = DefaultHistoryCount
	}
	if cfg.Chat.RetentionKeep <= 0 {
		cfg.Chat.RetentionKeep = DefaultRetentionKeep
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
