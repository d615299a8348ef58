// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm talks to the chat-completion model that turns retrieved
// department knowledge into an answer.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/pdiddy/scamguard/internal/httputil"
	"github.com/pdiddy/scamguard/pkg/types"
)

// ErrLanguageModelFailure marks any failed chat-completion call.
var ErrLanguageModelFailure = errors.New("language model failure")

// Defaults applied when the configuration leaves a field at zero.
const (
	DefaultModel              = "gpt-4"
	DefaultSummarizeThreshold = 1000
	DefaultTemperature        = 0.3
)

const (
	answerPreamble   = "You are a helpful assistant for the Scam Department. Answer based only on internal department knowledge."
	summarizerRole   = "You are an expert summarizer."
	summarizePreface = "Summarize the following internal knowledge so it's concise and focused for answering a question:\n\n"
)

// Model answers questions from retrieved context.
type Model interface {
	Answer(ctx context.Context, knowledge, question string) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
}

// Client is a Model backed by the OpenAI chat-completions API or any
// compatible server.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
}

// New constructs a client from cfg. The API key must already be resolved.
func New(cfg types.LanguageModelConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("language model API key is not configured (set OPENAI_API_KEY)")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = httputil.NewClient(cfg.Timeout, cfg.MaxRetries)

	return &Client{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: temperature,
	}, nil
}

// AnswerPrompt builds the single user message sent for an answer.
func AnswerPrompt(knowledge, question string) string {
	return "\n" + answerPreamble + "\n\n" +
		"Relevant info: " + knowledge + "\n" +
		"User's question: " + question + "\n" +
		"Answer:"
}

// Answer asks the model to answer question using only context. The
// result is trimmed; an empty string means the model had nothing to say.
func (c *Client) Answer(ctx context.Context, knowledge, question string) (string, error) {
	return c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: AnswerPrompt(knowledge, question)},
		},
	})
}

// Summarize condenses text before it is used as answer context.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	return c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarizerRole},
			{Role: openai.ChatMessageRoleUser, Content: summarizePreface + text},
		},
		Temperature: c.temperature,
	})
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: calling chat completions: %v", ErrLanguageModelFailure, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrLanguageModelFailure)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
