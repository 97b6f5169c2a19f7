package app

import (
	"context"
	"time"

	"github.com/ilkoid/goose-tune/pkg/events"
	"github.com/ilkoid/goose-tune/pkg/history"
	"github.com/ilkoid/goose-tune/pkg/report"
	"github.com/ilkoid/goose-tune/pkg/smoketest"
)

// SmokeOutcome — итог режима --test.
type SmokeOutcome struct {
	Report     *smoketest.Report
	ReportPath string
}

// SmokeTest прогоняет фиксированные промпты через дообученную модель.
//
// Невалидные ответы ошибкой не считаются: они видны в отчёте.
// Ошибка — нет артефакта, генератор не создан или прогон прерван.
func (c *Components) SmokeTest(ctx context.Context, emitter events.Emitter) (*SmokeOutcome, error) {
	cfg := c.Config
	rec := c.newRecorder(report.ModeTest, report.RunInfo{
		Backend:   cfg.Models.Generation.Provider,
		OutputDir: cfg.Training.OutputDir,
	})
	em := events.Multi{emitter}
	if rec != nil {
		em = append(em, rec)
	}

	started := time.Now()
	out := &SmokeOutcome{}
	err := func() error {
		gen, err := c.Generator()
		if err != nil {
			return err
		}
		runner := smoketest.NewRunner(gen, cfg, c.SystemPrompt, smoketest.WithEmitter(em))
		out.Report, err = runner.Run(ctx)
		return err
	}()

	out.ReportPath = finalize(rec, err)

	run := history.Run{
		RunID:     report.ModeTest + "_" + started.Format("20060102_150405"),
		Mode:      report.ModeTest,
		StartedAt: started,
		Duration:  time.Since(started),
		Backend:   cfg.Models.Generation.Provider,
		OutputDir: cfg.Training.OutputDir,
		Success:   err == nil,
	}
	if rec != nil {
		run.RunID = rec.RunID()
	}
	if out.Report != nil {
		run.ModelRef = out.Report.Model
		run.SmokeValid = out.Report.ValidCount()
		run.SmokeTotal = len(out.Report.Results)
		if m := out.Report.Manifest; m != nil {
			run.BaseModel = m.BaseModel
			run.Examples = m.Examples
			run.Exported = m.GGUFPath != ""
		}
	}
	if err != nil {
		run.Error = err.Error()
	}
	c.record(ctx, run)

	return out, err
}

// RecentRuns возвращает последние limit прогонов (пусто без журнала).
func (c *Components) RecentRuns(ctx context.Context, limit int) ([]history.Run, error) {
	if c.History == nil {
		return nil, nil
	}
	return c.History.Recent(ctx, limit)
}
