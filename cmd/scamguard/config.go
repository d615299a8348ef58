package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/scamguard/internal/admin"
	"github.com/pdiddy/scamguard/internal/conversation"
	"github.com/pdiddy/scamguard/internal/embed"
	"github.com/pdiddy/scamguard/internal/knowledge"
	"github.com/pdiddy/scamguard/internal/llm"
	"github.com/pdiddy/scamguard/internal/secrets"
	"github.com/pdiddy/scamguard/internal/usage"
	"github.com/pdiddy/scamguard/pkg/types"
)

// setDefaults registers every configuration key so that environment
// variables can override keys absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("corpus.path", "department_knowledge.txt")
	v.SetDefault("cache.path", "embedding_cache.db")

	v.SetDefault("embedding.model", embed.DefaultModel)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.max_retries", 3)
	v.SetDefault("embedding.concurrency", embed.DefaultConcurrency)

	v.SetDefault("language_model.model", llm.DefaultModel)
	v.SetDefault("language_model.api_key", "")
	v.SetDefault("language_model.base_url", "")
	v.SetDefault("language_model.timeout", 60*time.Second)
	v.SetDefault("language_model.max_retries", 3)
	v.SetDefault("language_model.summarize_threshold", llm.DefaultSummarizeThreshold)
	v.SetDefault("language_model.temperature", llm.DefaultTemperature)

	v.SetDefault("retrieval.top_k", knowledge.DefaultTopK)
	v.SetDefault("retrieval.max_distance", 0.0)

	v.SetDefault("conversation.clarification_ttl", conversation.DefaultClarificationTTL)
	v.SetDefault("conversation.answer_cache_size", conversation.DefaultAnswerCacheSize)

	v.SetDefault("usage.top_questions", usage.DefaultTopQuestions)
	v.SetDefault("usage.report_interval", 24*time.Hour)

	v.SetDefault("admin.addr", admin.DefaultAddr)
	v.SetDefault("admin.allowed_origins", []string{})
}

// loadConfig decodes the merged configuration and fills API keys from the
// environment or the secrets directory when the file leaves them empty.
func loadConfig() (types.ServiceConfig, error) {
	var cfg types.ServiceConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}

	resolver, err := secrets.NewResolver(secrets.DefaultDir)
	if err != nil {
		return cfg, err
	}
	cfg.Embedding.APIKey = resolver.Resolve(cfg.Embedding.APIKey, secrets.OpenAIKey)
	cfg.LanguageModel.APIKey = resolver.Resolve(cfg.LanguageModel.APIKey, secrets.OpenAIKey)
	if names := resolver.Names(); len(names) > 0 {
		logger.Debug("loaded secrets", "keys", names)
	}
	return cfg, nil
}

// newEngine wires the embedding provider, cache store and retrieval engine.
func newEngine(cfg types.ServiceConfig) (*knowledge.Engine, *knowledge.Store, error) {
	provider, err := embed.NewOpenAI(cfg.Embedding.AIConfig)
	if err != nil {
		return nil, nil, err
	}
	store := knowledge.NewStore(cfg.Cache.Path)
	engine := knowledge.NewEngine(knowledge.Config{
		CorpusPath:  cfg.Corpus.Path,
		Concurrency: cfg.Embedding.Concurrency,
		Retrieval:   cfg.Retrieval,
	}, provider, store, logger)
	return engine, store, nil
}
