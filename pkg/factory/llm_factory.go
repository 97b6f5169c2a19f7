package factory

import (
	"fmt"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/llm"
	"github.com/ilkoid/goose-tune/pkg/llm/ollama"
	"github.com/ilkoid/goose-tune/pkg/llm/openai"
)

// NewGenerator создает генератор на основе конфигурации модели.
func NewGenerator(modelDef config.ModelDef) (llm.Generator, error) {
	switch modelDef.Provider {
	case config.ProviderOpenAI:
		return openai.NewClient(modelDef), nil
	case config.ProviderOllama:
		return ollama.NewClient(modelDef), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", modelDef.Provider)
	}
}
