// Package openai реализует llm.Generator для OpenAI-совместимых серверов
// с эндпоинтом /v1/completions (llama.cpp server, vLLM, Ollama /v1).
//
// Используется text completion, а не chat: транскрипт уже содержит
// маркеры ролей, и сервер не должен оборачивать его своим шаблоном.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/llm"
	"github.com/ilkoid/goose-tune/pkg/prompt"
	"github.com/ilkoid/goose-tune/pkg/utils"
)

// Client реализует llm.Generator.
type Client struct {
	api      *openai.Client
	defaults llm.GenerateOptions
}

var _ llm.Generator = (*Client)(nil)

// NewClient создает клиент на основе конфигурации модели.
//
// Локальные серверы обычно не проверяют ключ, поэтому пустой APIKey допустим.
func NewClient(modelDef config.ModelDef) *Client {
	cfg := openai.DefaultConfig(modelDef.APIKey)
	if modelDef.BaseURL != "" {
		cfg.BaseURL = modelDef.BaseURL
	}
	if modelDef.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: modelDef.Timeout}
	}

	return &Client{
		api: openai.NewClientWithConfig(cfg),
		defaults: llm.GenerateOptions{
			Model:       modelDef.ModelName,
			Temperature: modelDef.Temperature,
			MaxTokens:   modelDef.MaxTokens,
			Stop:        []string{prompt.MarkerEnd},
		},
	}
}

// Generate отправляет транскрипт в /completions и возвращает текст
// первого варианта.
func (c *Client) Generate(ctx context.Context, text string, opts ...llm.GenerateOption) (string, error) {
	o := llm.Apply(c.defaults, opts...)
	if o.Model == "" {
		return "", fmt.Errorf("generation model is not set")
	}

	startTime := time.Now()
	utils.Debug("Completion request started", "model", o.Model, "prompt_chars", len(text), "max_tokens", o.MaxTokens)

	resp, err := c.api.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       o.Model,
		Prompt:      text,
		MaxTokens:   o.MaxTokens,
		Temperature: float32(o.Temperature),
		Stop:        o.Stop,
	})
	if err != nil {
		utils.Error("Completion request failed",
			"error", err,
			"model", o.Model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return "", fmt.Errorf("completion api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from completion api (no choices)")
	}

	completionTokens := 0
	if resp.Usage != nil {
		completionTokens = resp.Usage.CompletionTokens
	}
	utils.Debug("Completion request finished",
		"model", o.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"completion_tokens", completionTokens,
		"duration_ms", time.Since(startTime).Milliseconds())

	return resp.Choices[0].Text, nil
}
