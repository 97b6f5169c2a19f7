package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/dataset"
	"github.com/ilkoid/goose-tune/pkg/events"
	"github.com/ilkoid/goose-tune/pkg/prompt"
	"github.com/ilkoid/goose-tune/pkg/trainer"
)

type fakeAPI struct {
	missingModel bool
	statuses     []string
	retrieved    int

	uploaded   openai.FileBytesRequest
	jobRequest openai.FineTuningJobRequest
	events     []openai.FineTuneEvent
}

func (f *fakeAPI) GetModel(_ context.Context, id string) (openai.Model, error) {
	if f.missingModel {
		return openai.Model{}, errors.New("model not found")
	}
	return openai.Model{ID: id}, nil
}

func (f *fakeAPI) CreateFileBytes(_ context.Context, req openai.FileBytesRequest) (openai.File, error) {
	f.uploaded = req
	return openai.File{ID: "file-1"}, nil
}

func (f *fakeAPI) CreateFineTuningJob(_ context.Context, req openai.FineTuningJobRequest) (openai.FineTuningJob, error) {
	f.jobRequest = req
	return openai.FineTuningJob{ID: "ftjob-1", Status: "validating_files"}, nil
}

func (f *fakeAPI) RetrieveFineTuningJob(_ context.Context, id string) (openai.FineTuningJob, error) {
	status := f.statuses[f.retrieved]
	if f.retrieved < len(f.statuses)-1 {
		f.retrieved++
	}
	job := openai.FineTuningJob{ID: id, Status: status}
	if status == statusSucceeded {
		job.FineTunedModel = "ft:babbage-002:goose"
	}
	return job, nil
}

func (f *fakeAPI) ListFineTuningJobEvents(_ context.Context, _ string, _ ...openai.ListFineTuningJobEventsParameter) (openai.FineTuningJobEventList, error) {
	return openai.FineTuningJobEventList{Data: f.events}, nil
}

func hostedConfig() config.HostedConfig {
	cfg := config.Default().Backend.OpenAI
	cfg.PollInterval = time.Millisecond
	return cfg
}

func formatted(t *testing.T) []dataset.FormattedExample {
	t.Helper()
	return []dataset.FormattedExample{
		{Text: prompt.Render("SYS", "create a poll", `{"elements":[]}`)},
		{Text: prompt.Render("SYS", "feedback form", `{"elements":[1]}`)},
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(config.HostedConfig{})
	assert.ErrorIs(t, err, trainer.ErrMissingDependency)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	b, err := New(hostedConfig())
	require.NoError(t, err)
	assert.Equal(t, config.BackendOpenAI, b.Name())
}

func TestBackend_TrainAndSave(t *testing.T) {
	api := &fakeAPI{
		statuses: []string{"running", "running", statusSucceeded},
		events: []openai.FineTuneEvent{
			{CreatedAt: 3, Message: "Step 20/20: training loss=0.12"},
			{CreatedAt: 1, Message: "Fine-tuning job started"},
		},
	}
	b := NewWithAPI(api, hostedConfig())
	ctx := context.Background()

	m, err := b.LoadBase(ctx, trainer.LoadSpec{BaseModel: "unsloth/Phi-3-mini-4k-instruct"})
	require.NoError(t, err)
	assert.Equal(t, "babbage-002", m.BaseModel, "hosted model overrides training.base_model")
	require.NoError(t, b.AttachAdapters(ctx, m, trainer.LoRASpec{R: 16}))

	var messages []string
	err = b.Train(ctx, m, formatted(t), trainer.Schedule{NumEpochs: 3, BatchSize: 2}, func(p events.ProgressData) {
		messages = append(messages, p.Message)
	})
	require.NoError(t, err)

	assert.Equal(t, openai.PurposeFineTune, api.uploaded.Purpose)
	assert.Equal(t, "file-1", api.jobRequest.TrainingFile)
	assert.Equal(t, "babbage-002", api.jobRequest.Model)
	assert.Equal(t, "goose", api.jobRequest.Suffix)
	require.NotNil(t, api.jobRequest.Hyperparameters)
	assert.Equal(t, 3, api.jobRequest.Hyperparameters.Epochs)
	assert.Equal(t, []string{"Fine-tuning job started", "Step 20/20: training loss=0.12"}, messages,
		"events are reported oldest first and only once")

	out := filepath.Join(t.TempDir(), "goose-model")
	require.NoError(t, b.Save(ctx, m, out))
	assert.Equal(t, "ft:babbage-002:goose", m.Ref)

	assert.ErrorIs(t, b.Export(ctx, m, trainer.ExportSpec{}), trainer.ErrExportUnsupported)
}

func TestBackend_JobFailed(t *testing.T) {
	api := &fakeAPI{statuses: []string{"running", statusFailed}}
	b := NewWithAPI(api, hostedConfig())
	ctx := context.Background()

	m, err := b.LoadBase(ctx, trainer.LoadSpec{})
	require.NoError(t, err)
	err = b.Train(ctx, m, formatted(t), trainer.Schedule{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")

	assert.Error(t, b.Save(ctx, m, t.TempDir()), "no fine-tuned model to save")
}

func TestBackend_MissingBaseModel(t *testing.T) {
	b := NewWithAPI(&fakeAPI{missingModel: true}, hostedConfig())
	_, err := b.LoadBase(context.Background(), trainer.LoadSpec{})
	assert.Error(t, err)
}

func TestCompletionJSONL(t *testing.T) {
	payload, err := CompletionJSONL(formatted(t))
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(payload), []byte("\n"))
	require.Len(t, lines, 2)

	var rec completionRecord
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, prompt.RenderOpen("SYS", "create a poll"), rec.Prompt)
	assert.Equal(t, "{\"elements\":[]}\n<|end|>", rec.Completion)

	_, err = CompletionJSONL([]dataset.FormattedExample{{Text: "plain"}})
	assert.Error(t, err)
}
