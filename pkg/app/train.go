package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/ilkoid/goose-tune/pkg/dataset"
	"github.com/ilkoid/goose-tune/pkg/events"
	"github.com/ilkoid/goose-tune/pkg/history"
	"github.com/ilkoid/goose-tune/pkg/report"
	"github.com/ilkoid/goose-tune/pkg/trainer"
	"github.com/ilkoid/goose-tune/pkg/utils"
)

// TrainOutcome — итог режима обучения.
type TrainOutcome struct {
	Result     *trainer.Result
	Uploaded   []string
	ReportPath string
}

// Train выполняет режим обучения: коллаборатор, датасет, оркестратор,
// затем выгрузка артефактов, отчёт и запись в журнал.
//
// Возвращаемая ошибка — причина ненулевого кода выхода.
func (c *Components) Train(ctx context.Context, opts Options, emitter events.Emitter) (*TrainOutcome, error) {
	cfg := c.Config
	dataDir := cfg.Data.Dir
	if opts.DataDir != "" {
		dataDir = opts.DataDir
	}

	rec := c.newRecorder(report.ModeTrain, report.RunInfo{
		Backend:   cfg.Backend.Kind,
		BaseModel: cfg.Training.BaseModel,
		DataDir:   dataDir,
		OutputDir: cfg.Training.OutputDir,
		Local:     opts.Local,
		Export:    opts.ExportGGUF,
	})
	em := events.Multi{emitter}
	if rec != nil {
		em = append(em, rec)
	}

	started := time.Now()
	out := &TrainOutcome{}
	var examples int
	err := func() error {
		backend, err := c.Backend()
		if err != nil {
			return err
		}

		formatted, err := c.loadDataset(ctx, dataDir, em)
		if err != nil {
			return err
		}
		examples = len(formatted)
		if rec != nil {
			rec.SetExamples(examples)
		}

		orch := trainer.NewOrchestrator(cfg.Training, backend,
			trainer.WithEmitter(em),
			trainer.WithLocal(opts.Local),
			trainer.WithExport(opts.ExportGGUF))
		out.Result, err = orch.Run(ctx, formatted)
		if err != nil {
			return err
		}

		if cfg.S3.UploadArtifacts && c.Storage != nil {
			out.Uploaded = c.uploadArtifacts(ctx, out.Result, runID(rec, started), em)
		}
		return nil
	}()

	out.ReportPath = finalize(rec, err)
	c.record(ctx, trainRun(rec, started, cfg.Backend.Kind, cfg.Training.BaseModel, examples, out.Result, err))
	return out, err
}

// loadDataset читает и форматирует датасет под этапом load_data.
func (c *Components) loadDataset(ctx context.Context, dataDir string, em events.Emitter) ([]dataset.FormattedExample, error) {
	em.Emit(ctx, events.New(events.EventStageStarted, events.StageData{Stage: events.StageLoadData, Detail: dataDir}))

	formatted, err := func() ([]dataset.FormattedExample, error) {
		source, err := c.DataSource(dataDir)
		if err != nil {
			return nil, err
		}
		examples, err := dataset.NewLoader(source, c.Config.Data).Load(ctx)
		if err != nil {
			return nil, err
		}
		return dataset.Format(c.SystemPrompt, examples)
	}()
	if err != nil {
		utils.Error("Dataset loading failed", "data_dir", dataDir, "error", err)
		em.Emit(ctx, events.New(events.EventError, events.ErrorData{Stage: events.StageLoadData, Err: err}))
		return nil, err
	}

	em.Emit(ctx, events.New(events.EventStageFinished, events.StageData{
		Stage:  events.StageLoadData,
		Detail: fmt.Sprintf("%d examples", len(formatted)),
	}))
	return formatted, nil
}

// uploadArtifacts выгружает output_dir и GGUF в s3.artifact_prefix/<run>.
//
// Артефакт уже сохранён локально, поэтому сбой выгрузки — предупреждение.
func (c *Components) uploadArtifacts(ctx context.Context, res *trainer.Result, run string, em events.Emitter) []string {
	prefix := path.Join(c.Config.S3.ArtifactPrefix, run)
	em.Emit(ctx, events.New(events.EventStageStarted, events.StageData{Stage: events.StageUpload, Detail: prefix}))

	keys, err := c.Storage.UploadDir(ctx, res.OutputDir, prefix)
	if err == nil && res.Exported {
		key := path.Join(prefix, filepath.Base(res.GGUFPath))
		if err = c.Storage.UploadFile(ctx, res.GGUFPath, key); err == nil {
			keys = append(keys, key)
		}
	}
	if err != nil {
		utils.Warn("Artifact upload failed", "prefix", prefix, "uploaded", len(keys), "error", err)
		em.Emit(ctx, events.New(events.EventWarning, events.ErrorData{Stage: events.StageUpload, Err: err}))
		return keys
	}

	utils.Info("Artifacts uploaded", "prefix", prefix, "objects", len(keys))
	em.Emit(ctx, events.New(events.EventStageFinished, events.StageData{
		Stage:  events.StageUpload,
		Detail: fmt.Sprintf("%d objects", len(keys)),
	}))
	return keys
}

func (c *Components) newRecorder(mode string, info report.RunInfo) *report.Recorder {
	if c.Config.App.ReportsDir == "" {
		return nil
	}
	rec, err := report.NewRecorder(c.Config.App.ReportsDir, mode, info)
	if err != nil {
		utils.Warn("Run report disabled", "error", err)
		return nil
	}
	return rec
}

// record пишет прогон в журнал. Ошибки журнала не влияют на прогон.
func (c *Components) record(ctx context.Context, run history.Run) {
	if c.History == nil {
		return
	}
	// Запись делается и после Ctrl+C
	ctx = context.WithoutCancel(ctx)
	if _, err := c.History.Record(ctx, run); err != nil {
		utils.Warn("Failed to record run history", "error", err)
	}
}

func finalize(rec *report.Recorder, runErr error) string {
	if rec == nil {
		return ""
	}
	p, err := rec.Finalize(runErr)
	if err != nil {
		utils.Warn("Failed to save run report", "error", err)
		return ""
	}
	utils.Info("Run report saved", "path", p)
	return p
}

func runID(rec *report.Recorder, started time.Time) string {
	if rec != nil {
		return rec.RunID()
	}
	return report.ModeTrain + "_" + started.Format("20060102_150405")
}

func trainRun(rec *report.Recorder, started time.Time, backend, baseModel string, examples int, res *trainer.Result, err error) history.Run {
	run := history.Run{
		RunID:     runID(rec, started),
		Mode:      report.ModeTrain,
		StartedAt: started,
		Duration:  time.Since(started),
		Backend:   backend,
		BaseModel: baseModel,
		Examples:  examples,
		Success:   err == nil,
	}
	if res != nil {
		run.BaseModel = res.BaseModel
		run.ModelRef = res.ModelRef
		run.OutputDir = res.OutputDir
		run.Exported = res.Exported
	}
	if err != nil {
		run.Error = err.Error()
	}
	return run
}

// IsCancelled сообщает, что прогон прерван сигналом.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
