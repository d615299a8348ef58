package types

import "time"

// AIConfig holds shared settings for components that call an OpenAI-compatible API.
type AIConfig struct {
	// Model is the model identifier (e.g. "text-embedding-3-small", "gpt-4").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key. When empty the key is resolved from
	// OPENAI_API_KEY or the secrets directory.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the API endpoint (e.g. a local OpenAI-compatible server).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Timeout bounds a single HTTP request (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries on HTTP 429 (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// CorpusConfig locates the knowledge source file.
type CorpusConfig struct {
	// Path is the plain-text corpus, one knowledge item per line.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// CacheConfig locates the persisted snapshot artifact.
type CacheConfig struct {
	// Path is the SQLite file holding the cached snapshot.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// EmbeddingConfig holds settings for the embedding provider.
type EmbeddingConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// Concurrency caps in-flight embedding requests during a rebuild (default 16).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// LanguageModelConfig holds settings for answer synthesis and summarization.
type LanguageModelConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// SummarizeThreshold is the context length in characters above which the
	// retrieved context is summarized before answering (default 1000).
	SummarizeThreshold int `json:"summarize_threshold" yaml:"summarize_threshold" mapstructure:"summarize_threshold"`

	// Temperature is the sampling temperature for summaries (default 0.3).
	Temperature float32 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
}

// RetrievalConfig controls nearest-neighbor lookups.
type RetrievalConfig struct {
	// TopK is the number of items returned per query (default 3).
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// MaxDistance drops matches whose squared distance exceeds it. Zero disables the cutoff.
	MaxDistance float64 `json:"max_distance" yaml:"max_distance" mapstructure:"max_distance"`
}

// ConversationConfig bounds per-user conversation state.
type ConversationConfig struct {
	// ClarificationTTL is how long a pending clarification waits for the
	// user's follow-up (default 30m). Negative disables expiry.
	ClarificationTTL time.Duration `json:"clarification_ttl" yaml:"clarification_ttl" mapstructure:"clarification_ttl"`

	// AnswerCacheSize caps the number of delivered answers kept for rating (default 1024).
	AnswerCacheSize int `json:"answer_cache_size" yaml:"answer_cache_size" mapstructure:"answer_cache_size"`
}

// UsageConfig controls the periodic usage report.
type UsageConfig struct {
	// TopQuestions is the number of most frequent questions listed (default 5).
	TopQuestions int `json:"top_questions" yaml:"top_questions" mapstructure:"top_questions"`

	// ReportInterval is the report period, aligned to midnight UTC (default 24h).
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval" mapstructure:"report_interval"`
}

// AdminConfig configures the operator HTTP surface.
type AdminConfig struct {
	// Addr is the listen address. Empty disables the admin server.
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// AllowedOrigins lists CORS origins permitted to call the admin API.
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty" mapstructure:"allowed_origins"`
}

// ServiceConfig groups all component configurations.
type ServiceConfig struct {
	Corpus        CorpusConfig        `json:"corpus" yaml:"corpus" mapstructure:"corpus"`
	Cache         CacheConfig         `json:"cache" yaml:"cache" mapstructure:"cache"`
	Embedding     EmbeddingConfig     `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	LanguageModel LanguageModelConfig `json:"language_model" yaml:"language_model" mapstructure:"language_model"`
	Retrieval     RetrievalConfig     `json:"retrieval" yaml:"retrieval" mapstructure:"retrieval"`
	Conversation  ConversationConfig  `json:"conversation" yaml:"conversation" mapstructure:"conversation"`
	Usage         UsageConfig         `json:"usage" yaml:"usage" mapstructure:"usage"`
	Admin         AdminConfig         `json:"admin" yaml:"admin" mapstructure:"admin"`
}
