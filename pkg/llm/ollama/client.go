// Package ollama реализует llm.Generator поверх Ollama через langchaingo.
//
// Модель должна быть создана из Modelfile с сырым шаблоном {{ .Prompt }}
// (его пишет экспорт GGUF): транскрипт уже отрендерен, и Ollama не должна
// оборачивать его ещё раз.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/llm"
	"github.com/ilkoid/goose-tune/pkg/prompt"
	"github.com/ilkoid/goose-tune/pkg/utils"
)

// Client реализует llm.Generator.
type Client struct {
	serverURL string
	timeout   time.Duration
	defaults  llm.GenerateOptions
}

var _ llm.Generator = (*Client)(nil)

// NewClient создаёт клиент. Пустой BaseURL — локальный Ollama по умолчанию.
func NewClient(modelDef config.ModelDef) *Client {
	return &Client{
		serverURL: modelDef.BaseURL,
		timeout:   modelDef.Timeout,
		defaults: llm.GenerateOptions{
			Model:       modelDef.ModelName,
			Temperature: modelDef.Temperature,
			MaxTokens:   modelDef.MaxTokens,
			Stop:        []string{prompt.MarkerEnd},
		},
	}
}

// Generate вызывает модель с уже отрендеренным транскриптом.
//
// Модель выбирается на вызове (WithModel), поэтому LLM создаётся на
// каждый запрос: это дешёвая структура без соединений.
func (c *Client) Generate(ctx context.Context, text string, opts ...llm.GenerateOption) (string, error) {
	o := llm.Apply(c.defaults, opts...)
	if o.Model == "" {
		return "", fmt.Errorf("generation model is not set")
	}

	model, err := ollama.New(c.options(o.Model)...)
	if err != nil {
		return "", fmt.Errorf("ollama client: %w", err)
	}

	startTime := time.Now()
	out, err := model.Call(ctx, text,
		llms.WithTemperature(o.Temperature),
		llms.WithMaxTokens(o.MaxTokens),
		llms.WithStopWords(o.Stop),
	)
	if err != nil {
		utils.Error("Ollama request failed", "error", err, "model", o.Model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return "", fmt.Errorf("ollama api error: %w", err)
	}

	utils.Debug("Ollama request finished", "model", o.Model, "chars", len(out),
		"duration_ms", time.Since(startTime).Milliseconds())
	return out, nil
}

func (c *Client) options(model string) []ollama.Option {
	opts := []ollama.Option{
		ollama.WithModel(model),
	}
	if c.serverURL != "" {
		opts = append(opts, ollama.WithServerURL(c.serverURL))
	}
	if c.timeout > 0 {
		opts = append(opts, ollama.WithHTTPClient(&http.Client{Timeout: c.timeout}))
	}
	return opts
}
