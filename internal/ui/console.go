// Package ui печатает ход прогона и итоги в терминал (режим без --tui).
package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/muesli/reflow/truncate"

	"github.com/ilkoid/goose-tune/pkg/events"
	"github.com/ilkoid/goose-tune/pkg/history"
	"github.com/ilkoid/goose-tune/pkg/smoketest"
	"github.com/ilkoid/goose-tune/pkg/trainer"
)

const (
	messageWidth = 100
	promptWidth  = 48
)

// Console — построчный вывод событий прогона. Реализует events.Emitter.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	// lastStep — последний напечатанный шаг, повторы не печатаются
	lastStep int
}

var _ events.Emitter = (*Console)(nil)

// NewConsole создаёт Console поверх out (обычно os.Stdout).
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Banner печатает заголовок прогона.
func (c *Console) Banner(version, mode string, lines ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out, headerStyle.Render(fmt.Sprintf("🪿 goose-tune %s · %s", version, mode)))
	for _, l := range lines {
		fmt.Fprintln(c.out, dimStyle("  "+l))
	}
	fmt.Fprintln(c.out)
}

// Emit печатает событие.
func (c *Console) Emit(_ context.Context, ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch d := ev.Data.(type) {
	case events.StageData:
		if ev.Type == events.EventStageStarted {
			line := "▸ " + stageStyle(d.Stage)
			if d.Detail != "" {
				line += " " + dimStyle(d.Detail)
			}
			fmt.Fprintln(c.out, line)
		} else {
			fmt.Fprintln(c.out, okStyle("  ✓ "+d.Stage))
		}

	case events.ProgressData:
		if d.TotalSteps > 0 && d.Step > 0 && d.Step != c.lastStep {
			c.lastStep = d.Step
			fmt.Fprintf(c.out, "  step %d/%d  loss %.4f\n", d.Step, d.TotalSteps, d.Loss)
		}
		if d.Message != "" {
			fmt.Fprintln(c.out, dimStyle("  "+truncate.StringWithTail(d.Message, messageWidth, "...")))
		}

	case events.ErrorData:
		if ev.Type == events.EventWarning {
			fmt.Fprintln(c.out, warnStyle(fmt.Sprintf("  ! %s: %v", d.Stage, d.Err)))
		} else {
			fmt.Fprintln(c.out, errorStyle(fmt.Sprintf("  ✗ %s: %v", d.Stage, d.Err)))
		}

	case events.SmokeResultData:
		c.smokeLine(d.Prompt, d.Valid, d.Elements, d.Preview, d.Err)

	case events.DoneData:
		fmt.Fprintln(c.out, okStyle(fmt.Sprintf("done in %s", d.Duration.Round(time.Millisecond))))
	}
}

func (c *Console) smokeLine(prompt string, valid bool, elements int, preview string, err error) {
	p := truncate.StringWithTail(prompt, promptWidth, "...")
	if valid {
		fmt.Fprintln(c.out, okStyle(fmt.Sprintf("  ✓ %s", p))+dimStyle(fmt.Sprintf(" (%d elements)", elements)))
	} else {
		fmt.Fprintln(c.out, errorStyle(fmt.Sprintf("  ✗ %s", p))+dimStyle(fmt.Sprintf(" %v", err)))
	}
	if preview != "" {
		fmt.Fprintln(c.out, dimStyle("    "+preview))
	}
}

// TrainingSummary печатает итог обучения.
func (c *Console) TrainingSummary(res *trainer.Result, reportPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	row(&b, "backend", res.Backend)
	row(&b, "base model", res.BaseModel)
	row(&b, "examples", fmt.Sprint(res.Examples))
	row(&b, "steps", fmt.Sprint(res.TotalSteps))
	row(&b, "precision", string(res.Precision))
	row(&b, "model", res.ModelRef)
	row(&b, "output", res.OutputDir)
	switch {
	case res.Exported:
		row(&b, "gguf", res.GGUFPath)
	case res.ExportErr != nil:
		row(&b, "gguf", warnStyle("export failed: "+res.ExportErr.Error()))
	}
	for _, st := range res.Stages {
		row(&b, st.Stage, st.Duration.Round(time.Millisecond).String())
	}
	row(&b, "total", res.Duration.Round(time.Millisecond).String())
	if reportPath != "" {
		row(&b, "report", reportPath)
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, summaryBox.Render(strings.TrimRight(b.String(), "\n")))
}

// SmokeSummary печатает итог smoke-теста.
func (c *Console) SmokeSummary(rep *smoketest.Report, reportPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	row(&b, "model", rep.Model)
	valid := fmt.Sprintf("%d/%d", rep.ValidCount(), len(rep.Results))
	if rep.ValidCount() == len(rep.Results) {
		row(&b, "valid", okStyle(valid))
	} else {
		row(&b, "valid", warnStyle(valid))
	}
	row(&b, "total", rep.Duration.Round(time.Millisecond).String())
	if reportPath != "" {
		row(&b, "report", reportPath)
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, summaryBox.Render(strings.TrimRight(b.String(), "\n")))
}

// History печатает последние прогоны из журнала.
func (c *Console) History(runs []history.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(runs) == 0 {
		fmt.Fprintln(c.out, dimStyle("no runs recorded"))
		return
	}
	for _, r := range runs {
		status := okStyle("ok  ")
		if !r.Success {
			status = errorStyle("fail")
		}
		line := fmt.Sprintf("%s %s %-5s %-8s %4d ex  %s",
			status, r.StartedAt.Format("2006-01-02 15:04"), r.Mode, r.Backend, r.Examples, r.ModelRef)
		if r.SmokeTotal > 0 {
			line += fmt.Sprintf("  smoke %d/%d", r.SmokeValid, r.SmokeTotal)
		}
		if r.Error != "" {
			line += dimStyle("  " + truncate.StringWithTail(r.Error, 60, "..."))
		}
		fmt.Fprintln(c.out, line)
	}
}

// Error печатает фатальную ошибку прогона.
func (c *Console) Error(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, errorStyle("Error: "+err.Error()))
}

func row(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(labelStyle(label))
	b.WriteString(value)
	b.WriteString("\n")
}
