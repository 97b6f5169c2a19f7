package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/dataset"
	"github.com/ilkoid/goose-tune/pkg/events"
	"github.com/ilkoid/goose-tune/pkg/trainer"
)

// workerScript — минимальный воркер: train печатает прогресс,
// save создаёт output_dir, export падает.
const workerScript = `case "$1" in
train) echo '{"step":1,"total":1,"loss":0.5}' ;;
save) mkdir -p "$5" ;;
export) echo "no converter" >&2; exit 3 ;;
esac
`

const lunchPoll = `{"prompt":"create a poll about lunch","output":{"elements":[{"type":"poll-element","instanceId":"p1"}],"connections":[],"name":"Lunch Poll","layout":"grid"}}`

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	root := t.TempDir()

	script := filepath.Join(root, "worker.sh")
	require.NoError(t, os.WriteFile(script, []byte(workerScript), 0644))

	dataDir := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "polls.jsonl"), []byte(lunchPoll+"\n"), 0644))

	cfg := config.Default()
	cfg.Data.Dir = dataDir
	cfg.Backend.Command = config.CommandConfig{
		Program: "sh",
		Args:    []string{script},
		WorkDir: filepath.Join(root, "work"),
	}
	cfg.Training.OutputDir = filepath.Join(root, "goose-model")
	cfg.Training.GGUFOutput = filepath.Join(root, "goose-model.gguf")
	cfg.App.ReportsDir = filepath.Join(root, "reports")
	cfg.App.HistoryDB = filepath.Join(root, "runs.db")
	return cfg
}

func newComponents(t *testing.T, cfg *config.AppConfig) *Components {
	t.Helper()
	c, err := Initialize(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestTrain_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	c := newComponents(t, cfg)
	ctx := context.Background()

	out, err := c.Train(ctx, Options{Local: true, ExportGGUF: true}, events.Nop{})
	require.NoError(t, err)
	require.NotNil(t, out.Result)

	assert.Equal(t, 1, out.Result.Examples)
	assert.Equal(t, trainer.PrecisionBF16, out.Result.Precision)
	assert.False(t, out.Result.Exported)
	assert.Error(t, out.Result.ExportErr, "export failure is reported but not fatal")

	m, err := trainer.ReadManifest(cfg.Training.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Examples)

	assert.FileExists(t, out.ReportPath)

	runs, err := c.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)
	assert.Equal(t, 1, runs[0].Examples)
}

func TestTrain_NoTrainingData(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.Data.Dir, "polls.jsonl")))
	c := newComponents(t, cfg)

	_, err := c.Train(context.Background(), Options{}, events.Nop{})
	assert.ErrorIs(t, err, trainer.ErrNoTrainingData)
	assert.NoDirExists(t, cfg.Training.OutputDir)

	runs, err := c.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Success)
}

func TestTrain_DataFormatError(t *testing.T) {
	cfg := testConfig(t)
	bad := filepath.Join(cfg.Data.Dir, "broken.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte(`{"prompt":"x"}`+"\n"), 0644))
	c := newComponents(t, cfg)

	_, err := c.Train(context.Background(), Options{}, events.Nop{})
	var dfe *dataset.DataFormatError
	require.True(t, errors.As(err, &dfe))
	assert.Equal(t, "output", dfe.Field)
}

func TestTrain_DataDirOverride(t *testing.T) {
	cfg := testConfig(t)
	c := newComponents(t, cfg)

	_, err := c.Train(context.Background(), Options{DataDir: filepath.Join(t.TempDir(), "missing")}, events.Nop{})
	assert.Error(t, err)
}

func TestTrain_MissingWorker(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Command.Program = "definitely-not-a-goose-worker"
	c := newComponents(t, cfg)

	_, err := c.Train(context.Background(), Options{}, events.Nop{})
	assert.ErrorIs(t, err, trainer.ErrMissingDependency)
}

func TestDataSource(t *testing.T) {
	c := newComponents(t, testConfig(t))

	src, err := c.DataSource("./training/data")
	require.NoError(t, err)
	assert.IsType(t, dataset.DirSource{}, src)

	_, err = c.DataSource("s3://goose/data")
	assert.Error(t, err, "s3 data dir needs a configured bucket")
}

func TestSmokeTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"text_completion","choices":[{"text":"{\"elements\":[{\"type\":\"poll-element\"}]}<|end|>","index":0}]}`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Models.Generation.BaseURL = srv.URL + "/v1"
	cfg.SmokeTest.Prompts = []string{"create a poll about lunch"}
	c := newComponents(t, cfg)

	_, err := c.SmokeTest(context.Background(), events.Nop{})
	assert.Error(t, err, "no trained artifact yet")

	require.NoError(t, trainer.WriteManifest(cfg.Training.OutputDir, trainer.Manifest{
		Backend:  config.BackendCommand,
		ModelRef: "goose",
	}))

	out, err := c.SmokeTest(context.Background(), events.Nop{})
	require.NoError(t, err)
	require.Len(t, out.Report.Results, 1)
	assert.True(t, out.Report.Results[0].Valid)
	assert.Equal(t, 1, out.Report.Results[0].Elements)
	assert.FileExists(t, out.ReportPath)
}
