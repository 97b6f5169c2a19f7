package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/llm"
)

type completionBody struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature float32  `json:"temperature"`
	Stop        []string `json:"stop"`
}

func newServer(t *testing.T, got *completionBody, status int, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func modelDef(baseURL string) config.ModelDef {
	def := config.Default().Models.Generation
	def.BaseURL = baseURL + "/v1"
	def.ModelName = "goose"
	return def
}

func TestNewClient(t *testing.T) {
	c := NewClient(config.ModelDef{ModelName: "goose", MaxTokens: 512, Temperature: 0.3})
	require.NotNil(t, c)
	assert.Equal(t, "goose", c.defaults.Model)
	assert.Equal(t, []string{"<|end|>"}, c.defaults.Stop)
}

func TestGenerate_SendsTranscriptVerbatim(t *testing.T) {
	var got completionBody
	srv := newServer(t, &got, http.StatusOK,
		`{"id":"cmpl-1","object":"text_completion","choices":[{"text":"{\"elements\":[]}","index":0,"finish_reason":"stop"}]}`)

	c := NewClient(modelDef(srv.URL))
	out, err := c.Generate(context.Background(), "<|user|>\npoll\n<|end|>\n<|assistant|>\n", llm.WithMaxTokens(64))
	require.NoError(t, err)

	assert.Equal(t, `{"elements":[]}`, out)
	assert.Equal(t, "goose", got.Model)
	assert.Equal(t, "<|user|>\npoll\n<|end|>\n<|assistant|>\n", got.Prompt)
	assert.Equal(t, 64, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-6)
	assert.Equal(t, []string{"<|end|>"}, got.Stop)
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		var got completionBody
		srv := newServer(t, &got, http.StatusInternalServerError, `{"error":{"message":"model not loaded"}}`)
		_, err := NewClient(modelDef(srv.URL)).Generate(context.Background(), "x")
		assert.Error(t, err)
	})

	t.Run("no choices", func(t *testing.T) {
		var got completionBody
		srv := newServer(t, &got, http.StatusOK, `{"id":"cmpl-2","choices":[]}`)
		_, err := NewClient(modelDef(srv.URL)).Generate(context.Background(), "x")
		assert.ErrorContains(t, err, "no choices")
	})

	t.Run("no model", func(t *testing.T) {
		_, err := NewClient(config.ModelDef{}).Generate(context.Background(), "x")
		assert.ErrorContains(t, err, "model is not set")
	})
}
