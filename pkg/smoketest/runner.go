// Package smoketest прогоняет обученную модель по фиксированному набору
// промптов и проверяет, что она отвечает JSON спецификацией инструмента.
//
// Это диагностика, а не тест с pass/fail: невалидный ответ или сбой
// генерации фиксируются для промпта, и цикл идёт дальше.
package smoketest

import (
	"context"
	"errors"
	"time"

	"github.com/muesli/reflow/truncate"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/events"
	"github.com/ilkoid/goose-tune/pkg/llm"
	"github.com/ilkoid/goose-tune/pkg/prompt"
	"github.com/ilkoid/goose-tune/pkg/trainer"
	"github.com/ilkoid/goose-tune/pkg/utils"
)

const previewTail = "..."

// Result — итог одного промпта.
type Result struct {
	Prompt   string
	Output   string
	Preview  string
	Valid    bool
	Elements int
	Err      error
	Duration time.Duration
}

// Report — итог smoke-теста.
type Report struct {
	Model    string
	Manifest *trainer.Manifest
	Results  []Result
	Duration time.Duration
}

// ValidCount возвращает число промптов с валидным ответом.
func (r *Report) ValidCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Valid {
			n++
		}
	}
	return n
}

// Runner выполняет smoke-тест.
type Runner struct {
	gen          llm.Generator
	system       string
	prompts      []string
	outputDir    string
	model        string
	maxTokens    int
	temperature  float64
	previewChars int
	emitter      events.Emitter
}

// Option настраивает Runner.
type Option func(*Runner)

// WithEmitter подключает получателя событий.
func WithEmitter(e events.Emitter) Option {
	return func(r *Runner) {
		if e != nil {
			r.emitter = e
		}
	}
}

// NewRunner собирает Runner из конфига. system — системный промпт,
// тот же, что при обучении.
func NewRunner(gen llm.Generator, cfg *config.AppConfig, system string, opts ...Option) *Runner {
	r := &Runner{
		gen:          gen,
		system:       system,
		prompts:      append([]string(nil), cfg.SmokeTest.Prompts...),
		outputDir:    cfg.Training.OutputDir,
		model:        cfg.Models.Generation.ModelName,
		maxTokens:    cfg.Models.Generation.MaxTokens,
		temperature:  cfg.Models.Generation.Temperature,
		previewChars: cfg.SmokeTest.PreviewChars,
		emitter:      events.Nop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run читает манифест артефакта и прогоняет все промпты.
//
// Ошибка возвращается только если артефакта нет или контекст отменён.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	manifest, err := trainer.ReadManifest(r.outputDir)
	if err != nil {
		return nil, err
	}

	model := r.model
	if model == "" {
		model = manifest.ModelRef
	}

	started := time.Now()
	report := &Report{Model: model, Manifest: manifest}
	utils.Info("Smoke test started", "model", model, "artifact", r.outputDir, "prompts", len(r.prompts))
	r.emitter.Emit(ctx, events.New(events.EventStageStarted, events.StageData{Stage: events.StageSmokeTest, Detail: model}))

	for _, p := range r.prompts {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := r.runOne(ctx, model, p)
		if res.Err != nil && ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Results = append(report.Results, res)

		r.emitter.Emit(ctx, events.New(events.EventSmokeResult, events.SmokeResultData{
			Prompt:   res.Prompt,
			Valid:    res.Valid,
			Elements: res.Elements,
			Preview:  res.Preview,
			Err:      res.Err,
		}))
	}

	report.Duration = time.Since(started)
	utils.Info("Smoke test finished", "valid", report.ValidCount(), "total", len(report.Results), "duration", report.Duration)
	r.emitter.Emit(ctx, events.New(events.EventStageFinished, events.StageData{Stage: events.StageSmokeTest, Detail: model}))
	return report, nil
}

func (r *Runner) runOne(ctx context.Context, model, userPrompt string) Result {
	start := time.Now()
	res := Result{Prompt: userPrompt}

	decoded, err := r.gen.Generate(ctx, prompt.RenderOpen(r.system, userPrompt),
		llm.WithModel(model),
		llm.WithMaxTokens(r.maxTokens),
		llm.WithTemperature(r.temperature),
	)
	res.Duration = time.Since(start)
	if err != nil {
		utils.Error("Generation failed", "prompt", userPrompt, "error", err)
		res.Err = err
		return res
	}

	res.Output = prompt.ExtractAssistant(decoded)
	res.Preview = Preview(res.Output, r.previewChars)

	elements, err := Validate(res.Output)
	if err != nil {
		res.Err = &ValidationError{Prompt: userPrompt, Err: err}
		utils.Warn("Generated output is not a valid tool spec", "prompt", userPrompt, "error", err)
		return res
	}

	res.Valid = true
	res.Elements = elements
	utils.Info("Generated valid tool spec", "prompt", userPrompt, "elements", elements)
	return res
}

// Preview обрезает вывод до n символов экрана.
func Preview(output string, n int) string {
	if n <= 0 {
		return output
	}
	return truncate.StringWithTail(output, uint(n), previewTail)
}

// IsValidationError сообщает, что err — ошибка проверки ответа.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
