// Package report записывает трейс прогона (обучение или smoke-тест) в JSON
// файл для последующего анализа.
package report

import "time"

// Режимы прогона.
const (
	ModeTrain = "train"
	ModeTest  = "test"
)

// RunLog — полный трейс одного прогона.
type RunLog struct {
	// RunID — идентификатор запуска (используется в имени файла)
	RunID string `json:"run_id"`

	// Mode — train или test
	Mode string `json:"mode"`

	// Timestamp — время начала
	Timestamp time.Time `json:"timestamp"`

	// Duration — общая длительность в миллисекундах
	Duration int64 `json:"duration_ms"`

	// Run — параметры прогона
	Run RunInfo `json:"run"`

	// Stages — этапы в порядке начала
	Stages []Stage `json:"stages"`

	// Training — прогресс обучения
	Training *TrainingStats `json:"training,omitempty"`

	// Smoke — результаты smoke-теста
	Smoke []SmokeEntry `json:"smoke,omitempty"`

	// Summary — агрегаты
	Summary Summary `json:"summary"`

	// Success — прогон завершился без фатальной ошибки
	Success bool `json:"success"`

	// Error — фатальная ошибка
	Error string `json:"error,omitempty"`
}

// RunInfo — то, с чем запущен прогон.
type RunInfo struct {
	Backend   string `json:"backend,omitempty"`
	BaseModel string `json:"base_model,omitempty"`
	DataDir   string `json:"data_dir,omitempty"`
	OutputDir string `json:"output_dir,omitempty"`
	Examples  int    `json:"examples,omitempty"`
	Local     bool   `json:"local,omitempty"`
	Export    bool   `json:"export_gguf,omitempty"`
}

// Stage — один этап пайплайна.
type Stage struct {
	Name      string    `json:"name"`
	Detail    string    `json:"detail,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Duration  int64     `json:"duration_ms"`
	Status    string    `json:"status"` // running, ok, failed, warning
	Error     string    `json:"error,omitempty"`
}

// Статусы этапа.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusWarning = "warning"
)

// TrainingStats — последние значения прогресса.
type TrainingStats struct {
	Steps      int      `json:"steps"`
	TotalSteps int      `json:"total_steps"`
	LastLoss   float64  `json:"last_loss"`
	Messages   []string `json:"messages,omitempty"`
}

// SmokeEntry — результат одного промпта smoke-теста.
type SmokeEntry struct {
	Prompt   string `json:"prompt"`
	Valid    bool   `json:"valid"`
	Elements int    `json:"elements"`
	Preview  string `json:"preview,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Summary — агрегированная статистика.
type Summary struct {
	StagesCompleted int      `json:"stages_completed"`
	SmokeValid      int      `json:"smoke_valid"`
	SmokeTotal      int      `json:"smoke_total"`
	Warnings        []string `json:"warnings"`
	Errors          []string `json:"errors"`
}
