// Package hosted — backend обучения через OpenAI-совместимый
// fine-tuning API (github.com/sashabaranov/go-openai).
//
// LoRA параметры hosted API выбирает сам; они попадают только в манифест.
// Квантованного экспорта нет.
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/dataset"
	"github.com/ilkoid/goose-tune/pkg/events"
	"github.com/ilkoid/goose-tune/pkg/prompt"
	"github.com/ilkoid/goose-tune/pkg/trainer"
	"github.com/ilkoid/goose-tune/pkg/utils"
)

// Статусы fine-tuning job.
const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

const trainingFileName = "goose-train.jsonl"

// API — подмножество *openai.Client, нужное backend.
type API interface {
	GetModel(ctx context.Context, modelID string) (openai.Model, error)
	CreateFileBytes(ctx context.Context, request openai.FileBytesRequest) (openai.File, error)
	CreateFineTuningJob(ctx context.Context, request openai.FineTuningJobRequest) (openai.FineTuningJob, error)
	RetrieveFineTuningJob(ctx context.Context, id string) (openai.FineTuningJob, error)
	ListFineTuningJobEvents(ctx context.Context, id string, setters ...openai.ListFineTuningJobEventsParameter) (openai.FineTuningJobEventList, error)
}

var _ API = (*openai.Client)(nil)

// job — состояние hosted модели в trainer.Model.Handle.
type job struct {
	lora    trainer.LoRASpec
	fileID  string
	jobID   string
	trained string
}

// Backend реализует trainer.Backend поверх fine-tuning API.
type Backend struct {
	api       API
	baseModel string
	suffix    string
	limiter   *rate.Limiter
}

var _ trainer.Backend = (*Backend)(nil)

// New создаёт backend. Ключ берётся из конфига, затем из OPENAI_API_KEY.
func New(cfg config.HostedConfig) (*Backend, error) {
	key := cfg.Model.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, &trainer.MissingDependencyError{
			Name: "OPENAI_API_KEY",
			Hint: "set backend.openai.model.api_key or the OPENAI_API_KEY environment variable",
		}
	}

	clientCfg := openai.DefaultConfig(key)
	if cfg.Model.BaseURL != "" {
		clientCfg.BaseURL = cfg.Model.BaseURL
	}
	if cfg.Model.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Model.Timeout}
	}

	return NewWithAPI(openai.NewClientWithConfig(clientCfg), cfg), nil
}

// NewWithAPI создаёт backend над готовым клиентом (в тестах — фейк).
func NewWithAPI(api API, cfg config.HostedConfig) *Backend {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Backend{
		api:       api,
		baseModel: cfg.Model.ModelName,
		suffix:    cfg.Suffix,
		// Один запрос статуса на интервал, первый — сразу
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (b *Backend) Name() string {
	return config.BackendOpenAI
}

// LoadBase проверяет, что базовая модель доступна в API.
//
// Имя из backend.openai.model переопределяет training.base_model: hosted
// API обучает только свои модели.
func (b *Backend) LoadBase(ctx context.Context, spec trainer.LoadSpec) (*trainer.Model, error) {
	base := b.baseModel
	if base == "" {
		base = spec.BaseModel
	}
	if _, err := b.api.GetModel(ctx, base); err != nil {
		return nil, fmt.Errorf("base model %s: %w", base, err)
	}
	utils.Info("Hosted base model available", "model", base)
	return &trainer.Model{BaseModel: base, Handle: &job{}}, nil
}

func (b *Backend) AttachAdapters(_ context.Context, m *trainer.Model, spec trainer.LoRASpec) error {
	j, err := jobOf(m)
	if err != nil {
		return err
	}
	j.lora = spec
	utils.Debug("Hosted API selects its own adapter shape", "requested_r", spec.R)
	return nil
}

// Train загружает датасет, создаёт job и ждёт терминального статуса.
func (b *Backend) Train(ctx context.Context, m *trainer.Model, data []dataset.FormattedExample, sched trainer.Schedule, progress trainer.ProgressFunc) error {
	j, err := jobOf(m)
	if err != nil {
		return err
	}

	payload, err := CompletionJSONL(data)
	if err != nil {
		return err
	}

	file, err := b.api.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    trainingFileName,
		Bytes:   payload,
		Purpose: openai.PurposeFineTune,
	})
	if err != nil {
		return fmt.Errorf("upload training file: %w", err)
	}
	j.fileID = file.ID
	utils.Info("Training file uploaded", "file_id", file.ID, "bytes", len(payload))

	created, err := b.api.CreateFineTuningJob(ctx, openai.FineTuningJobRequest{
		TrainingFile: file.ID,
		Model:        m.BaseModel,
		Suffix:       b.suffix,
		Hyperparameters: &openai.Hyperparameters{
			Epochs:    sched.NumEpochs,
			BatchSize: sched.BatchSize,
		},
	})
	if err != nil {
		return fmt.Errorf("create fine-tuning job: %w", err)
	}
	j.jobID = created.ID
	utils.Info("Fine-tuning job created", "job_id", created.ID, "status", created.Status)

	return b.wait(ctx, j, progress)
}

// wait опрашивает job под rate limiter до терминального статуса.
func (b *Backend) wait(ctx context.Context, j *job, progress trainer.ProgressFunc) error {
	var lastEvent int64
	for {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}

		current, err := b.api.RetrieveFineTuningJob(ctx, j.jobID)
		if err != nil {
			return fmt.Errorf("retrieve job %s: %w", j.jobID, err)
		}
		lastEvent = b.reportEvents(ctx, j.jobID, lastEvent, progress)

		switch current.Status {
		case statusSucceeded:
			j.trained = current.FineTunedModel
			utils.Info("Fine-tuning job succeeded", "job_id", j.jobID, "model", j.trained, "trained_tokens", current.TrainedTokens)
			return nil
		case statusFailed, statusCancelled:
			return fmt.Errorf("fine-tuning job %s %s", j.jobID, current.Status)
		default:
			utils.Debug("Fine-tuning job pending", "job_id", j.jobID, "status", current.Status)
		}
	}
}

// reportEvents логирует новые события job и возвращает метку последнего.
// Ошибка списка событий не прерывает ожидание.
func (b *Backend) reportEvents(ctx context.Context, jobID string, since int64, progress trainer.ProgressFunc) int64 {
	list, err := b.api.ListFineTuningJobEvents(ctx, jobID, openai.ListFineTuningJobEventsWithLimit(20))
	if err != nil {
		utils.Warn("Failed to list job events", "job_id", jobID, "error", err)
		return since
	}

	latest := since
	// API отдаёт события от новых к старым
	for i := len(list.Data) - 1; i >= 0; i-- {
		ev := list.Data[i]
		if ev.CreatedAt <= since {
			continue
		}
		utils.Info("job event", "job_id", jobID, "level", ev.Level, "message", ev.Message)
		if progress != nil {
			progress(events.ProgressData{Message: ev.Message})
		}
		if ev.CreatedAt > latest {
			latest = ev.CreatedAt
		}
	}
	return latest
}

// Save фиксирует id дообученной модели. Веса остаются у провайдера.
func (b *Backend) Save(_ context.Context, m *trainer.Model, outputDir string) error {
	j, err := jobOf(m)
	if err != nil {
		return err
	}
	if j.trained == "" {
		return fmt.Errorf("job %s finished without a fine-tuned model id", j.jobID)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	m.Ref = j.trained
	return nil
}

func (b *Backend) Export(context.Context, *trainer.Model, trainer.ExportSpec) error {
	return trainer.ErrExportUnsupported
}

// completionRecord — формат строки hosted датасета.
type completionRecord struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// CompletionJSONL делит каждый транскрипт на открытую часть и
// продолжение ассистента.
func CompletionJSONL(data []dataset.FormattedExample) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, ex := range data {
		head, completion, ok := prompt.SplitCompletion(ex.Text)
		if !ok {
			return nil, fmt.Errorf("example %d has no assistant segment", i)
		}
		if err := enc.Encode(completionRecord{Prompt: head, Completion: completion}); err != nil {
			return nil, fmt.Errorf("encode example %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

func jobOf(m *trainer.Model) (*job, error) {
	if m == nil {
		return nil, fmt.Errorf("model is nil")
	}
	j, ok := m.Handle.(*job)
	if !ok {
		return nil, fmt.Errorf("model was not loaded by the hosted backend")
	}
	return j, nil
}
