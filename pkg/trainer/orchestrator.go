package trainer

import (
	"context"
	"errors"
	"time"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/dataset"
	"github.com/ilkoid/goose-tune/pkg/events"
	"github.com/ilkoid/goose-tune/pkg/utils"
)

// StageTiming — длительность одного этапа прогона.
type StageTiming struct {
	Stage    string
	Duration time.Duration
	Err      error
}

// Result — итог успешного прогона.
type Result struct {
	Backend    string
	BaseModel  string
	ModelRef   string
	OutputDir  string
	Examples   int
	TotalSteps int
	Precision  Precision

	// Exported = true только при успешном экспорте.
	Exported  bool
	GGUFPath  string
	ExportErr error

	Stages   []StageTiming
	Duration time.Duration
}

// Orchestrator проводит датасет через коллабораторы в фиксированном
// порядке: LoadBase, AttachAdapters, Train, Save, затем (опционально)
// Export.
type Orchestrator struct {
	cfg     config.TrainingConfig
	backend Backend
	emitter events.Emitter

	precision Precision
	export    bool
	now       func() time.Time
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithEmitter подключает получателя событий прогресса.
func WithEmitter(e events.Emitter) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.emitter = e
		}
	}
}

// WithLocal переключает точность (--local: bf16).
func WithLocal(local bool) Option {
	return func(o *Orchestrator) {
		o.precision = PrecisionFor(local)
	}
}

// WithExport включает квантованный экспорт после сохранения (--export-gguf).
func WithExport(enabled bool) Option {
	return func(o *Orchestrator) {
		o.export = enabled
	}
}

// NewOrchestrator создаёт оркестратор над backend.
func NewOrchestrator(cfg config.TrainingConfig, backend Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		backend:   backend,
		emitter:   events.Nop{},
		precision: PrecisionFP16,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run выполняет прогон.
//
// Пустой датасет — ErrNoTrainingData до единого вызова коллаборатора.
// Сбой любого шага обучения или сохранения возвращается как *TrainingError.
// Сбой экспорта не фатален: он логируется и попадает в Result.ExportErr.
func (o *Orchestrator) Run(ctx context.Context, data []dataset.FormattedExample) (*Result, error) {
	if len(data) == 0 {
		utils.Error("Refusing to train on empty dataset")
		return nil, ErrNoTrainingData
	}

	started := o.now()
	load, lora, sched := Specs(o.cfg, o.precision, len(data))
	res := &Result{
		Backend:    o.backend.Name(),
		BaseModel:  load.BaseModel,
		OutputDir:  o.cfg.OutputDir,
		Examples:   len(data),
		TotalSteps: sched.TotalSteps,
		Precision:  o.precision,
	}

	utils.Info("Training run started",
		"backend", res.Backend,
		"base_model", load.BaseModel,
		"examples", len(data),
		"total_steps", sched.TotalSteps,
		"precision", o.precision)

	var model *Model
	err := o.stage(ctx, res, events.StageLoadModel, load.BaseModel, func() error {
		var err error
		model, err = o.backend.LoadBase(ctx, load)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = o.stage(ctx, res, events.StageAdapters, "", func() error {
		return o.backend.AttachAdapters(ctx, model, lora)
	})
	if err != nil {
		return nil, err
	}

	err = o.stage(ctx, res, events.StageTrain, "", func() error {
		return o.backend.Train(ctx, model, data, sched, func(p events.ProgressData) {
			if p.TotalSteps == 0 {
				p.TotalSteps = sched.TotalSteps
			}
			o.emitter.Emit(ctx, events.New(events.EventProgress, p))
		})
	})
	if err != nil {
		return nil, err
	}

	err = o.stage(ctx, res, events.StageSave, o.cfg.OutputDir, func() error {
		if err := o.backend.Save(ctx, model, o.cfg.OutputDir); err != nil {
			return err
		}
		return WriteManifest(o.cfg.OutputDir, o.manifest(res, model))
	})
	if err != nil {
		return nil, err
	}
	res.BaseModel = model.BaseModel
	res.ModelRef = model.Ref

	if o.export {
		o.runExport(ctx, res, model)
	}

	res.Duration = o.now().Sub(started)
	o.emitter.Emit(ctx, events.New(events.EventDone, events.DoneData{
		OutputDir: res.OutputDir,
		Examples:  res.Examples,
		Duration:  res.Duration,
	}))
	utils.Info("Training run finished", "output_dir", res.OutputDir, "exported", res.Exported, "duration", res.Duration)
	return res, nil
}

// stage выполняет шаг, замеряет время и оборачивает ошибку в TrainingError.
func (o *Orchestrator) stage(ctx context.Context, res *Result, name, detail string, fn func() error) error {
	o.emitter.Emit(ctx, events.New(events.EventStageStarted, events.StageData{Stage: name, Detail: detail}))
	utils.Info("Stage started", "stage", name, "detail", detail)

	start := o.now()
	err := fn()
	if err == nil {
		err = ctx.Err()
	}
	res.Stages = append(res.Stages, StageTiming{Stage: name, Duration: o.now().Sub(start), Err: err})

	if err != nil {
		utils.Error("Stage failed", "stage", name, "error", err)
		o.emitter.Emit(ctx, events.New(events.EventError, events.ErrorData{Stage: name, Err: err}))
		return &TrainingError{Stage: name, Err: err}
	}

	o.emitter.Emit(ctx, events.New(events.EventStageFinished, events.StageData{Stage: name, Detail: detail}))
	return nil
}

// runExport — единственное место с политикой recover-and-continue.
func (o *Orchestrator) runExport(ctx context.Context, res *Result, model *Model) {
	spec := ExportSpec{OutputPath: o.cfg.GGUFOutput, Method: o.cfg.QuantizationMethod}
	o.emitter.Emit(ctx, events.New(events.EventStageStarted, events.StageData{Stage: events.StageExport, Detail: spec.OutputPath}))

	start := o.now()
	err := o.backend.Export(ctx, model, spec)
	res.Stages = append(res.Stages, StageTiming{Stage: events.StageExport, Duration: o.now().Sub(start), Err: err})

	if err != nil {
		exportErr := &ExportError{Path: spec.OutputPath, Err: err}
		res.ExportErr = exportErr
		utils.Warn("GGUF export failed, continuing with saved model",
			"path", spec.OutputPath,
			"unsupported", errors.Is(err, ErrExportUnsupported),
			"error", err)
		o.emitter.Emit(ctx, events.New(events.EventWarning, events.ErrorData{Stage: events.StageExport, Err: exportErr}))
		return
	}

	res.Exported = true
	res.GGUFPath = spec.OutputPath
	if err := WriteManifest(o.cfg.OutputDir, o.manifest(res, model)); err != nil {
		utils.Warn("Failed to record GGUF path in manifest", "error", err)
	}
	o.emitter.Emit(ctx, events.New(events.EventStageFinished, events.StageData{Stage: events.StageExport, Detail: spec.OutputPath}))
}

func (o *Orchestrator) manifest(res *Result, model *Model) Manifest {
	return Manifest{
		Backend:    res.Backend,
		BaseModel:  model.BaseModel,
		ModelRef:   model.Ref,
		OutputDir:  res.OutputDir,
		Examples:   res.Examples,
		TotalSteps: res.TotalSteps,
		Precision:  res.Precision,
		GGUFPath:   res.GGUFPath,
		CreatedAt:  o.now().UTC(),
	}
}
