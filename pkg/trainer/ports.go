// Package trainer — оркестратор тонкой настройки поверх непрозрачных
// коллабораторов.
//
// Загрузка модели, внедрение LoRA адаптеров, обучение и квантованный
// экспорт выполняются снаружи (рабочий процесс, hosted API). Пакет задаёт
// только порты и порядок их вызова.
//
// # Правило 1: Порты узкие
//
// ModelLoader, Trainer и Exporter знают только о своём шаге. Тесты
// подставляют детерминированные фейки, production — backend из
// pkg/trainer/command или pkg/trainer/hosted.
package trainer

import (
	"context"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/dataset"
	"github.com/ilkoid/goose-tune/pkg/events"
)

// Precision — числовой режим обучения.
type Precision string

const (
	PrecisionFP16 Precision = "fp16"
	PrecisionBF16 Precision = "bf16"
)

// PrecisionFor возвращает режим для флага --local (bf16 на локальной
// машине, fp16 иначе).
func PrecisionFor(local bool) Precision {
	if local {
		return PrecisionBF16
	}
	return PrecisionFP16
}

// LoadSpec — что загрузить как базовую модель.
type LoadSpec struct {
	BaseModel    string    `json:"base_model"`
	MaxSeqLength int       `json:"max_seq_length"`
	LoadIn4Bit   bool      `json:"load_in_4bit"`
	Precision    Precision `json:"precision"`
}

// LoRASpec — параметры низкоранговых адаптеров.
type LoRASpec struct {
	R                     int      `json:"r"`
	Alpha                 int      `json:"alpha"`
	Dropout               float64  `json:"dropout"`
	TargetModules         []string `json:"target_modules"`
	Bias                  string   `json:"bias"`
	GradientCheckpointing string   `json:"gradient_checkpointing"`
	Seed                  int      `json:"seed"`
}

// Schedule — расписание обучения.
type Schedule struct {
	BatchSize                 int       `json:"batch_size"`
	GradientAccumulationSteps int       `json:"gradient_accumulation_steps"`
	LearningRate              float64   `json:"learning_rate"`
	NumEpochs                 int       `json:"num_epochs"`
	WarmupSteps               int       `json:"warmup_steps"`
	MaxSteps                  int       `json:"max_steps"`
	TotalSteps                int       `json:"total_steps"`
	MaxSeqLength              int       `json:"max_seq_length"`
	Seed                      int       `json:"seed"`
	LoggingSteps              int       `json:"logging_steps"`
	SaveSteps                 int       `json:"save_steps"`
	SaveTotalLimit            int       `json:"save_total_limit"`
	Optim                     string    `json:"optim"`
	Precision                 Precision `json:"precision"`
}

// ExportSpec — куда и как квантовать.
type ExportSpec struct {
	OutputPath string `json:"output_path"`
	Method     string `json:"method"`
}

// Model — дескриптор модели внутри коллаборатора.
//
// Handle — состояние конкретного backend (job рабочего процесса,
// id загруженного файла и т.п.), оркестратор в него не заглядывает.
type Model struct {
	BaseModel string
	// Ref — как сослаться на обученную модель при инференсе
	// (директория артефакта или id дообученной модели).
	Ref    string
	Handle any
}

// ProgressFunc получает прогресс обучения от коллаборатора.
type ProgressFunc func(events.ProgressData)

// ModelLoader — шаги 1-2: базовая модель и адаптеры.
type ModelLoader interface {
	LoadBase(ctx context.Context, spec LoadSpec) (*Model, error)
	AttachAdapters(ctx context.Context, m *Model, spec LoRASpec) error
}

// Trainer — шаги 3-5: датасет, обучение, сохранение.
type Trainer interface {
	Train(ctx context.Context, m *Model, data []dataset.FormattedExample, sched Schedule, progress ProgressFunc) error
	Save(ctx context.Context, m *Model, outputDir string) error
}

// Exporter — квантованный экспорт.
type Exporter interface {
	Export(ctx context.Context, m *Model, spec ExportSpec) error
}

// Backend — коллаборатор, покрывающий все порты.
type Backend interface {
	ModelLoader
	Trainer
	Exporter
	Name() string
}

// Specs собирает значения портов из конфига.
func Specs(cfg config.TrainingConfig, precision Precision, examples int) (LoadSpec, LoRASpec, Schedule) {
	load := LoadSpec{
		BaseModel:    cfg.BaseModel,
		MaxSeqLength: cfg.MaxSeqLength,
		LoadIn4Bit:   cfg.LoadIn4Bit,
		Precision:    precision,
	}
	lora := LoRASpec{
		R:                     cfg.LoraR,
		Alpha:                 cfg.LoraAlpha,
		Dropout:               cfg.LoraDropout,
		TargetModules:         append([]string(nil), cfg.TargetModules...),
		Bias:                  cfg.LoraBias,
		GradientCheckpointing: cfg.GradientCheckpointing,
		Seed:                  cfg.Seed,
	}
	sched := Schedule{
		BatchSize:                 cfg.BatchSize,
		GradientAccumulationSteps: cfg.GradientAccumulationSteps,
		LearningRate:              cfg.LearningRate,
		NumEpochs:                 cfg.NumEpochs,
		WarmupSteps:               cfg.WarmupSteps,
		MaxSteps:                  cfg.MaxSteps,
		TotalSteps:                cfg.TotalSteps(examples),
		MaxSeqLength:              cfg.MaxSeqLength,
		Seed:                      cfg.Seed,
		LoggingSteps:              cfg.LoggingSteps,
		SaveSteps:                 cfg.SaveSteps,
		SaveTotalLimit:            cfg.SaveTotalLimit,
		Optim:                     cfg.Optim,
		Precision:                 precision,
	}
	return load, lora, sched
}
