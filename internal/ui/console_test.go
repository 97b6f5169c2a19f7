package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ilkoid/goose-tune/pkg/events"
	"github.com/ilkoid/goose-tune/pkg/history"
	"github.com/ilkoid/goose-tune/pkg/smoketest"
	"github.com/ilkoid/goose-tune/pkg/trainer"
)

func TestConsole_Events(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	ctx := context.Background()

	c.Emit(ctx, events.New(events.EventStageStarted, events.StageData{Stage: events.StageTrain, Detail: "16 examples"}))
	c.Emit(ctx, events.New(events.EventProgress, events.ProgressData{Step: 2, TotalSteps: 6, Loss: 1.25}))
	c.Emit(ctx, events.New(events.EventProgress, events.ProgressData{Step: 2, TotalSteps: 6, Loss: 1.25}))
	c.Emit(ctx, events.New(events.EventProgress, events.ProgressData{Message: strings.Repeat("x", 300)}))
	c.Emit(ctx, events.New(events.EventStageFinished, events.StageData{Stage: events.StageTrain}))
	c.Emit(ctx, events.New(events.EventWarning, events.ErrorData{Stage: events.StageExport, Err: errors.New("llama.cpp missing")}))

	out := buf.String()
	assert.Contains(t, out, "train")
	assert.Contains(t, out, "16 examples")
	assert.Equal(t, 1, strings.Count(out, "step 2/6"), "repeated step printed once")
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, strings.Repeat("x", 200))
	assert.Contains(t, out, "llama.cpp missing")
}

func TestConsole_TrainingSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.TrainingSummary(&trainer.Result{
		Backend:    "command",
		BaseModel:  "unsloth/Phi-3-mini-4k-instruct",
		ModelRef:   "/tmp/goose-model",
		OutputDir:  "/tmp/goose-model",
		Examples:   16,
		TotalSteps: 6,
		Precision:  trainer.PrecisionBF16,
		ExportErr:  errors.New("no converter"),
		Duration:   3 * time.Second,
	}, "reports/train_1.json")

	out := buf.String()
	assert.Contains(t, out, "unsloth/Phi-3-mini-4k-instruct")
	assert.Contains(t, out, "bf16")
	assert.Contains(t, out, "export failed: no converter")
	assert.Contains(t, out, "reports/train_1.json")
}

func TestConsole_SmokeSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.SmokeSummary(&smoketest.Report{
		Model: "goose",
		Results: []smoketest.Result{
			{Prompt: "a", Valid: true},
			{Prompt: "b", Err: errors.New("bad")},
		},
	}, "")

	out := buf.String()
	assert.Contains(t, out, "goose")
	assert.Contains(t, out, "1/2")
}

func TestConsole_History(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.History(nil)
	assert.Contains(t, buf.String(), "no runs recorded")

	buf.Reset()
	c.History([]history.Run{
		{Mode: "train", Backend: "command", Examples: 16, ModelRef: "./goose-model", Success: true, StartedAt: time.Now()},
		{Mode: "test", Backend: "command", Success: false, Error: "model not found", SmokeValid: 1, SmokeTotal: 3, StartedAt: time.Now()},
	})
	out := buf.String()
	assert.Contains(t, out, "./goose-model")
	assert.Contains(t, out, "smoke 1/3")
	assert.Contains(t, out, "model not found")
}
