package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig — корневая структура конфигурации.
// Она зеркалит структуру goose.yaml.
type AppConfig struct {
	Training  TrainingConfig  `yaml:"training"`
	Data      DataConfig      `yaml:"data"`
	Backend   BackendConfig   `yaml:"backend"`
	Models    ModelsConfig    `yaml:"models"`
	SmokeTest SmokeTestConfig `yaml:"smoke_test"`
	S3        S3Config        `yaml:"s3"`
	App       AppSpecific     `yaml:"app"`
}

// TrainingConfig — гиперпараметры дообучения.
//
// Значения передаются коллабораторам как есть, проверяется только тип
// (его проверяет сам yaml декодер). Невалидный base_model и т.п.
// всплывёт ошибкой из тренера.
type TrainingConfig struct {
	// Модель
	BaseModel    string `yaml:"base_model"`
	MaxSeqLength int    `yaml:"max_seq_length"`
	LoadIn4Bit   bool   `yaml:"load_in_4bit"`

	// LoRA
	LoraR                 int      `yaml:"lora_r"`
	LoraAlpha             int      `yaml:"lora_alpha"`
	LoraDropout           float64  `yaml:"lora_dropout"`
	TargetModules         []string `yaml:"target_modules"`
	LoraBias              string   `yaml:"lora_bias"`
	GradientCheckpointing string   `yaml:"gradient_checkpointing"`

	// Обучение
	BatchSize                 int     `yaml:"batch_size"`
	GradientAccumulationSteps int     `yaml:"gradient_accumulation_steps"`
	LearningRate              float64 `yaml:"learning_rate"`
	NumEpochs                 int     `yaml:"num_epochs"`
	WarmupSteps               int     `yaml:"warmup_steps"`
	MaxSteps                  int     `yaml:"max_steps"` // -1 = считать по num_epochs
	Seed                      int     `yaml:"seed"`
	LoggingSteps              int     `yaml:"logging_steps"`
	SaveSteps                 int     `yaml:"save_steps"`
	SaveTotalLimit            int     `yaml:"save_total_limit"`
	Optim                     string  `yaml:"optim"`

	// Выход
	OutputDir          string `yaml:"output_dir"`
	GGUFOutput         string `yaml:"gguf_output"`
	QuantizationMethod string `yaml:"quantization_method"`
}

// TotalSteps возвращает число шагов оптимизатора для датасета из n примеров.
//
// max_steps = -1 означает "вывести из num_epochs":
// ceil(n / (batch_size * gradient_accumulation_steps)) * num_epochs.
func (t TrainingConfig) TotalSteps(n int) int {
	if t.MaxSteps >= 0 {
		return t.MaxSteps
	}
	perStep := t.BatchSize * t.GradientAccumulationSteps
	if perStep <= 0 || n <= 0 {
		return 0
	}
	stepsPerEpoch := (n + perStep - 1) / perStep
	return stepsPerEpoch * t.NumEpochs
}

// DataConfig — где лежат обучающие JSONL файлы и как их фильтровать.
type DataConfig struct {
	Dir              string `yaml:"dir"`
	Suffix           string `yaml:"suffix"`            // ".jsonl"
	ValidationMarker string `yaml:"validation_marker"` // файлы с этой подстрокой в имени не идут в обучение
	MaxLineBytes     int    `yaml:"max_line_bytes"`
}

// BackendConfig — какой коллаборатор выполняет обучение.
type BackendConfig struct {
	Kind    string        `yaml:"kind"` // "command" или "openai"
	Command CommandConfig `yaml:"command"`
	OpenAI  HostedConfig  `yaml:"openai"`
}

// CommandConfig — внешний процесс-воркер (Unsloth/TRL скрипт и т.п.).
type CommandConfig struct {
	Program string            `yaml:"program"`
	Args    []string          `yaml:"args"`
	WorkDir string            `yaml:"work_dir"` // staging: job.json, dataset.jsonl
	Env     map[string]string `yaml:"env"`
}

// HostedConfig — fine-tuning через OpenAI-совместимый API.
type HostedConfig struct {
	Model        ModelDef      `yaml:"model"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Suffix       string        `yaml:"suffix"`
}

// ModelsConfig — настройки моделей для генерации.
type ModelsConfig struct {
	Generation ModelDef `yaml:"generation"`
}

// ModelDef — параметры конкретной модели.
type ModelDef struct {
	Provider    string        `yaml:"provider"`   // "openai", "ollama"
	ModelName   string        `yaml:"model_name"` // Реальное имя в API
	APIKey      string        `yaml:"api_key"`    // Поддерживает ${VAR}
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"` // Go умеет парсить строки вида "60s", "1m"
	BaseURL     string        `yaml:"base_url"`
}

// SmokeTestConfig — фиксированный набор промптов для проверки модели.
type SmokeTestConfig struct {
	Prompts      []string `yaml:"prompts"`
	PreviewChars int      `yaml:"preview_chars"`
}

// S3Config — настройки объектного хранилища.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKey       string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey       string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL          bool   `yaml:"use_ssl"`
	UploadArtifacts bool   `yaml:"upload_artifacts"`
	ArtifactPrefix  string `yaml:"artifact_prefix"`
}

// Enabled сообщает, настроено ли хранилище.
func (s S3Config) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// AppSpecific — общие настройки приложения.
type AppSpecific struct {
	Debug            bool   `yaml:"debug"`
	LogDir           string `yaml:"log_dir"`
	SystemPromptFile string `yaml:"system_prompt_file"`
	ReportsDir       string `yaml:"reports_dir"`
	HistoryDB        string `yaml:"history_db"` // пусто = без истории
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
//
// Значения, которых нет в файле, остаются дефолтными (см. Default).
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Подтягиваем .env рядом с конфигом (секреты для ${VAR})
	loadDotEnv(filepath.Dir(path))

	// 3. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 4. Подставляем переменные окружения.
	contentWithEnv := os.ExpandEnv(string(rawBytes))

	// 5. Парсим YAML поверх дефолтов
	cfg := Default()
	if err := yaml.Unmarshal([]byte(contentWithEnv), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	cfg.applyDefaults()

	// 6. Валидируем структурные настройки
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault загружает конфиг, если путь указан или goose.yaml найден,
// иначе возвращает встроенные дефолты.
func LoadOrDefault(path string) (*AppConfig, string, error) {
	if path == "" {
		path = FindConfigPath()
	}
	if path == "" {
		loadDotEnv(".")
		return Default(), "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// FindConfigPath ищет goose.yaml в текущей директории и рядом с бинарником.
// Возвращает пустую строку если файл не найден.
func FindConfigPath() string {
	candidates := []string{DefaultConfigName}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), DefaultConfigName))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// loadDotEnv загружает .env из dir. Отсутствие файла — нормальная ситуация.
func loadDotEnv(dir string) {
	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err != nil {
		return
	}
	// Overload=false: переменные окружения процесса важнее файла
	_ = godotenv.Load(envFile)
}

// validate проверяет только то, без чего нельзя собрать компоненты.
func (c *AppConfig) validate() error {
	switch c.Backend.Kind {
	case BackendCommand, BackendOpenAI:
	default:
		return fmt.Errorf("backend.kind must be %q or %q, got %q", BackendCommand, BackendOpenAI, c.Backend.Kind)
	}

	switch c.Models.Generation.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("models.generation.provider must be %q or %q, got %q",
			ProviderOpenAI, ProviderOllama, c.Models.Generation.Provider)
	}

	if c.S3.UploadArtifacts && !c.S3.Enabled() {
		return fmt.Errorf("s3.upload_artifacts requires s3.endpoint and s3.bucket")
	}
	return nil
}
