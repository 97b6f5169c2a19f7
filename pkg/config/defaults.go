package config

import "time"

// DefaultConfigName — имя конфига, который ищется рядом с бинарником.
const DefaultConfigName = "goose.yaml"

// Бэкенды обучения.
const (
	BackendCommand = "command"
	BackendOpenAI  = "openai"
)

// Провайдеры генерации.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// DefaultTargetModules — проекционные слои, получающие LoRA адаптеры.
var DefaultTargetModules = []string{
	"q_proj", "k_proj", "v_proj", "o_proj",
	"gate_proj", "up_proj", "down_proj",
}

// DefaultSmokePrompts — промпты для проверки дообученной модели.
var DefaultSmokePrompts = []string{
	"create a poll about favorite study spots",
	"event signup with countdown timer",
	"feedback form with results chart",
}

// Default возвращает конфигурацию со всеми документированными дефолтами.
func Default() *AppConfig {
	return &AppConfig{
		Training: TrainingConfig{
			BaseModel:    "unsloth/Phi-3-mini-4k-instruct",
			MaxSeqLength: 2048,
			LoadIn4Bit:   true,

			LoraR:                 16,
			LoraAlpha:             16,
			LoraDropout:           0,
			TargetModules:         append([]string(nil), DefaultTargetModules...),
			LoraBias:              "none",
			GradientCheckpointing: "unsloth",

			BatchSize:                 2,
			GradientAccumulationSteps: 4,
			LearningRate:              2e-4,
			NumEpochs:                 3,
			WarmupSteps:               5,
			MaxSteps:                  -1,
			Seed:                      42,
			LoggingSteps:              10,
			SaveSteps:                 100,
			SaveTotalLimit:            2,
			Optim:                     "adamw_8bit",

			OutputDir:          "./goose-model",
			GGUFOutput:         "./goose-model.gguf",
			QuantizationMethod: "q4_k_m",
		},
		Data: DataConfig{
			Dir:              "./training/data",
			Suffix:           ".jsonl",
			ValidationMarker: "validation",
			MaxLineBytes:     8 << 20,
		},
		Backend: BackendConfig{
			Kind: BackendCommand,
			Command: CommandConfig{
				Program: "python3",
				Args:    []string{"goose_worker.py"},
				WorkDir: "./goose-work",
			},
			OpenAI: HostedConfig{
				Model: ModelDef{
					Provider:  ProviderOpenAI,
					ModelName: "babbage-002",
					Timeout:   60 * time.Second,
				},
				PollInterval: 30 * time.Second,
				Suffix:       "goose",
			},
		},
		Models: ModelsConfig{
			Generation: ModelDef{
				Provider:    ProviderOpenAI,
				BaseURL:     "http://localhost:8080/v1",
				MaxTokens:   512,
				Temperature: 0.3,
				Timeout:     120 * time.Second,
			},
		},
		SmokeTest: SmokeTestConfig{
			Prompts:      append([]string(nil), DefaultSmokePrompts...),
			PreviewChars: 500,
		},
		App: AppSpecific{
			LogDir:     ".",
			ReportsDir: "./goose-reports",
			HistoryDB:  "./goose-runs.db",
		},
	}
}

// applyDefaults восстанавливает дефолты для полей, которые YAML обнулил
// (например, пустая строка вместо провайдера).
func (c *AppConfig) applyDefaults() {
	def := Default()

	if c.Data.Suffix == "" {
		c.Data.Suffix = def.Data.Suffix
	}
	if c.Data.ValidationMarker == "" {
		c.Data.ValidationMarker = def.Data.ValidationMarker
	}
	if c.Data.MaxLineBytes <= 0 {
		c.Data.MaxLineBytes = def.Data.MaxLineBytes
	}
	if c.Backend.Kind == "" {
		c.Backend.Kind = def.Backend.Kind
	}
	if c.Backend.OpenAI.PollInterval <= 0 {
		c.Backend.OpenAI.PollInterval = def.Backend.OpenAI.PollInterval
	}
	if c.Models.Generation.Provider == "" {
		c.Models.Generation.Provider = def.Models.Generation.Provider
	}
	if c.Models.Generation.MaxTokens == 0 {
		c.Models.Generation.MaxTokens = def.Models.Generation.MaxTokens
	}
	if len(c.SmokeTest.Prompts) == 0 {
		c.SmokeTest.Prompts = def.SmokeTest.Prompts
	}
	if c.SmokeTest.PreviewChars <= 0 {
		c.SmokeTest.PreviewChars = def.SmokeTest.PreviewChars
	}
	if c.Training.QuantizationMethod == "" {
		c.Training.QuantizationMethod = def.Training.QuantizationMethod
	}
}
