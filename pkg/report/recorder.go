package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ilkoid/goose-tune/pkg/events"
)

// maxMessages — сколько сообщений коллаборатора хранится в трейсе.
const maxMessages = 50

// Recorder собирает трейс из событий прогона и сохраняет в JSON файл.
//
// Реализует events.Emitter. Потокобезопасен.
type Recorder struct {
	mu  sync.Mutex
	dir string
	log RunLog
	now func() time.Time
}

var _ events.Emitter = (*Recorder)(nil)

// NewRecorder создает Recorder. Если dir не существует, пытается создать её.
func NewRecorder(dir, mode string, info RunInfo) (*Recorder, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create reports directory: %w", err)
		}
	}

	now := time.Now()
	return &Recorder{
		dir: dir,
		now: time.Now,
		log: RunLog{
			RunID:     fmt.Sprintf("%s_%s", mode, now.Format("20060102_150405")),
			Mode:      mode,
			Timestamp: now,
			Run:       info,
			Summary: Summary{
				Warnings: make([]string, 0),
				Errors:   make([]string, 0),
			},
		},
	}, nil
}

// Emit записывает событие в трейс.
func (r *Recorder) Emit(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := ev.Timestamp
	if at.IsZero() {
		at = r.now()
	}

	switch d := ev.Data.(type) {
	case events.StageData:
		if ev.Type == events.EventStageStarted {
			r.log.Stages = append(r.log.Stages, Stage{Name: d.Stage, Detail: d.Detail, StartedAt: at, Status: StatusRunning})
		} else {
			r.closeStage(d.Stage, at, StatusOK, "")
		}

	case events.ProgressData:
		if r.log.Training == nil {
			r.log.Training = &TrainingStats{}
		}
		if d.Step > r.log.Training.Steps {
			r.log.Training.Steps = d.Step
			r.log.Training.LastLoss = d.Loss
		}
		if d.TotalSteps > 0 {
			r.log.Training.TotalSteps = d.TotalSteps
		}
		if d.Message != "" && len(r.log.Training.Messages) < maxMessages {
			r.log.Training.Messages = append(r.log.Training.Messages, d.Message)
		}

	case events.ErrorData:
		msg := fmt.Sprintf("%s: %v", d.Stage, d.Err)
		if ev.Type == events.EventWarning {
			r.closeStage(d.Stage, at, StatusWarning, fmt.Sprint(d.Err))
			r.log.Summary.Warnings = append(r.log.Summary.Warnings, msg)
		} else {
			r.closeStage(d.Stage, at, StatusFailed, fmt.Sprint(d.Err))
			r.log.Summary.Errors = append(r.log.Summary.Errors, msg)
		}

	case events.SmokeResultData:
		entry := SmokeEntry{Prompt: d.Prompt, Valid: d.Valid, Elements: d.Elements, Preview: d.Preview}
		if d.Err != nil {
			entry.Error = d.Err.Error()
		}
		r.log.Smoke = append(r.log.Smoke, entry)

	case events.DoneData:
		if d.Examples > 0 {
			r.log.Run.Examples = d.Examples
		}
	}
}

// closeStage закрывает последний незавершённый этап с таким именем.
func (r *Recorder) closeStage(name string, at time.Time, status, errText string) {
	for i := len(r.log.Stages) - 1; i >= 0; i-- {
		s := &r.log.Stages[i]
		if s.Name != name || s.Status != StatusRunning {
			continue
		}
		s.Status = status
		s.Error = errText
		s.Duration = at.Sub(s.StartedAt).Milliseconds()
		return
	}
}

// SetExamples фиксирует размер датасета (известен до старта обучения).
func (r *Recorder) SetExamples(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Run.Examples = n
}

// Finalize завершает запись и сохраняет трейс в файл.
//
// runErr — фатальная ошибка прогона (nil при успехе).
// Возвращает путь к сохраненному файлу.
func (r *Recorder) Finalize(runErr error) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Duration = r.now().Sub(r.log.Timestamp).Milliseconds()
	r.log.Success = runErr == nil
	if runErr != nil {
		r.log.Error = runErr.Error()
	}
	r.buildSummary()

	data, err := json.MarshalIndent(r.log, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run report: %w", err)
	}

	filePath := r.filePath()
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write run report: %w", err)
	}
	return filePath, nil
}

func (r *Recorder) buildSummary() {
	r.log.Summary.StagesCompleted = 0
	for _, s := range r.log.Stages {
		if s.Status == StatusOK {
			r.log.Summary.StagesCompleted++
		}
	}
	r.log.Summary.SmokeTotal = len(r.log.Smoke)
	r.log.Summary.SmokeValid = 0
	for _, e := range r.log.Smoke {
		if e.Valid {
			r.log.Summary.SmokeValid++
		}
	}
}

func (r *Recorder) filePath() string {
	return filepath.Join(r.dir, r.log.RunID+".json")
}

// RunID возвращает идентификатор прогона.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.RunID
}

// Snapshot возвращает копию текущего трейса.
func (r *Recorder) Snapshot() RunLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.log
	out.Stages = append([]Stage(nil), r.log.Stages...)
	out.Smoke = append([]SmokeEntry(nil), r.log.Smoke...)
	return out
}
