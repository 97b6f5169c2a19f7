// Package command — backend обучения через внешний рабочий процесс
// (Unsloth/TRL скрипт и т.п.).
//
// Процесс вызывается подкомандами train, save, export. Все параметры
// передаются через job.json в staging директории, датасет — через
// dataset.jsonl в форме {"text": ...}. Прогресс процесс печатает в stdout
// JSON строками {"step":N,"total":M,"loss":X}.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/dataset"
	"github.com/ilkoid/goose-tune/pkg/events"
	"github.com/ilkoid/goose-tune/pkg/trainer"
	"github.com/ilkoid/goose-tune/pkg/utils"
)

const (
	jobFileName     = "job.json"
	datasetFileName = "dataset.jsonl"

	// Подкоманды протокола рабочего процесса
	cmdTrain  = "train"
	cmdSave   = "save"
	cmdExport = "export"
)

// Job — всё, что нужно рабочему процессу. Пишется в job.json.
type Job struct {
	Load      trainer.LoadSpec   `json:"load"`
	LoRA      trainer.LoRASpec   `json:"lora"`
	Schedule  trainer.Schedule   `json:"schedule"`
	Dataset   string             `json:"dataset,omitempty"`
	OutputDir string             `json:"output_dir,omitempty"`
	Export    trainer.ExportSpec `json:"export"`
}

// progressLine — строка прогресса в stdout процесса.
type progressLine struct {
	Step    *int    `json:"step"`
	Total   int     `json:"total"`
	Loss    float64 `json:"loss"`
	Message string  `json:"message"`
}

// Backend реализует trainer.Backend поверх рабочего процесса.
type Backend struct {
	program     string
	args        []string
	env         []string
	workDir     string
	temperature float64
	runner      Runner
}

var _ trainer.Backend = (*Backend)(nil)

// Option настраивает Backend.
type Option func(*Backend)

// WithRunner подменяет запуск процесса (в тестах).
func WithRunner(r Runner) Option {
	return func(b *Backend) { b.runner = r }
}

// WithModelfileTemperature задаёт temperature в Ollama Modelfile.
func WithModelfileTemperature(t float64) Option {
	return func(b *Backend) { b.temperature = t }
}

// New проверяет наличие программы и создаёт backend.
//
// Отсутствующая программа — *trainer.MissingDependencyError.
func New(cfg config.CommandConfig, opts ...Option) (*Backend, error) {
	b := &Backend{
		args:        append([]string(nil), cfg.Args...),
		env:         envList(cfg.Env),
		workDir:     cfg.WorkDir,
		temperature: 0.3,
		runner:      ExecRunner{},
	}
	for _, opt := range opts {
		opt(b)
	}

	if _, isExec := b.runner.(ExecRunner); isExec {
		path, err := exec.LookPath(cfg.Program)
		if err != nil {
			return nil, &trainer.MissingDependencyError{
				Name: cfg.Program,
				Hint: "install the training worker runtime (python3 with unsloth, trl, transformers) or set backend.command.program",
			}
		}
		b.program = path
	} else {
		b.program = cfg.Program
	}

	workDir, err := filepath.Abs(b.workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}
	b.workDir = workDir
	return b, nil
}

func (b *Backend) Name() string {
	return config.BackendCommand
}

// LoadBase только фиксирует параметры: модель загружает сам процесс
// внутри train.
func (b *Backend) LoadBase(_ context.Context, spec trainer.LoadSpec) (*trainer.Model, error) {
	if spec.BaseModel == "" {
		return nil, fmt.Errorf("base model is empty")
	}
	return &trainer.Model{
		BaseModel: spec.BaseModel,
		Handle:    &Job{Load: spec},
	}, nil
}

func (b *Backend) AttachAdapters(_ context.Context, m *trainer.Model, spec trainer.LoRASpec) error {
	job, err := jobOf(m)
	if err != nil {
		return err
	}
	job.LoRA = spec
	return nil
}

// Train пишет датасет и job.json и запускает `train`.
func (b *Backend) Train(ctx context.Context, m *trainer.Model, data []dataset.FormattedExample, sched trainer.Schedule, progress trainer.ProgressFunc) error {
	job, err := jobOf(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(b.workDir, 0755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	datasetPath := filepath.Join(b.workDir, datasetFileName)
	if err := writeDataset(datasetPath, data); err != nil {
		return err
	}
	job.Dataset = datasetPath
	job.Schedule = sched

	jobPath, err := b.writeJob(job)
	if err != nil {
		return err
	}
	utils.Info("Worker dataset staged", "path", datasetPath, "examples", len(data))

	return b.run(ctx, []string{cmdTrain, "--job", jobPath}, func(line string) {
		b.handleLine(line, progress)
	})
}

// Save запускает `save` с абсолютным путём output_dir.
func (b *Backend) Save(ctx context.Context, m *trainer.Model, outputDir string) error {
	job, err := jobOf(m)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	job.OutputDir = out

	jobPath, err := b.writeJob(job)
	if err != nil {
		return err
	}
	if err := b.run(ctx, []string{cmdSave, "--job", jobPath, "--out", out}, b.logLine); err != nil {
		return err
	}
	if _, err := os.Stat(out); err != nil {
		return fmt.Errorf("worker reported success but %s is missing: %w", out, err)
	}
	m.Ref = out
	return nil
}

// Export квантует сохранённую модель и пишет Modelfile рядом с GGUF.
func (b *Backend) Export(ctx context.Context, m *trainer.Model, spec trainer.ExportSpec) error {
	job, err := jobOf(m)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(spec.OutputPath)
	if err != nil {
		return fmt.Errorf("resolve gguf path: %w", err)
	}
	job.Export = trainer.ExportSpec{OutputPath: out, Method: spec.Method}

	jobPath, err := b.writeJob(job)
	if err != nil {
		return err
	}
	args := []string{cmdExport, "--job", jobPath, "--out", out, "--method", spec.Method}
	if err := b.run(ctx, args, b.logLine); err != nil {
		return err
	}

	modelfile, err := WriteModelfile(out, b.temperature)
	if err != nil {
		return err
	}
	utils.Info("GGUF exported", "path", out, "method", spec.Method, "modelfile", modelfile)
	return nil
}

func (b *Backend) run(ctx context.Context, sub []string, onLine func(string)) error {
	inv := Invocation{
		Program: b.program,
		Args:    append(append([]string(nil), b.args...), sub...),
		Env:     b.env,
	}
	utils.Debug("Running worker", "cmd", inv.String())
	return b.runner.Run(ctx, inv, onLine)
}

func (b *Backend) writeJob(job *Job) (string, error) {
	if err := os.MkdirAll(b.workDir, 0755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	path := filepath.Join(b.workDir, jobFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write job: %w", err)
	}
	return path, nil
}

// handleLine превращает JSON строки прогресса в события, прочее логирует.
func (b *Backend) handleLine(line string, progress trainer.ProgressFunc) {
	if p, ok := parseProgress(line); ok {
		utils.Debug("Worker progress", "step", p.Step, "total", p.TotalSteps, "loss", p.Loss)
		if progress != nil {
			progress(p)
		}
		return
	}
	b.logLine(line)
}

func (b *Backend) logLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	utils.Info("worker", "line", line)
}

func parseProgress(line string) (events.ProgressData, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return events.ProgressData{}, false
	}
	var pl progressLine
	if err := json.Unmarshal([]byte(trimmed), &pl); err != nil || pl.Step == nil {
		return events.ProgressData{}, false
	}
	return events.ProgressData{
		Step:       *pl.Step,
		TotalSteps: pl.Total,
		Loss:       pl.Loss,
		Message:    pl.Message,
	}, true
}

func writeDataset(path string, data []dataset.FormattedExample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset file: %w", err)
	}
	if err := dataset.WriteJSONL(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func jobOf(m *trainer.Model) (*Job, error) {
	if m == nil {
		return nil, fmt.Errorf("model is nil")
	}
	job, ok := m.Handle.(*Job)
	if !ok {
		return nil, fmt.Errorf("model was not loaded by the command backend")
	}
	return job, nil
}

// envList превращает map в KEY=VALUE в стабильном порядке.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
