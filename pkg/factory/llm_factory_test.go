package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/llm/ollama"
	"github.com/ilkoid/goose-tune/pkg/llm/openai"
)

func TestNewGenerator(t *testing.T) {
	g, err := NewGenerator(config.ModelDef{Provider: config.ProviderOpenAI, ModelName: "goose"})
	require.NoError(t, err)
	assert.IsType(t, &openai.Client{}, g)

	g, err = NewGenerator(config.ModelDef{Provider: config.ProviderOllama, ModelName: "goose"})
	require.NoError(t, err)
	assert.IsType(t, &ollama.Client{}, g)

	_, err = NewGenerator(config.ModelDef{Provider: "zai"})
	assert.Error(t, err)
}
