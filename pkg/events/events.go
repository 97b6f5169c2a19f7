// Package events — Port для подписки на ход тонкой настройки.
//
// Оркестратор и smoke-тест публикуют события через Emitter, а консоль,
// TUI и отчёт подписываются на них, не завися от библиотечной логики.
//
//	emitter := events.NewChanEmitter(64)
//	orch := trainer.NewOrchestrator(..., trainer.WithEmitter(emitter))
//
//	for ev := range emitter.Subscribe().Events() {
//	    switch d := ev.Data.(type) {
//	    case events.ProgressData:
//	        bar.SetPercent(d.Fraction())
//	    }
//	}
//
// Все реализации должны быть thread-safe. Emit принимает context.Context
// и прерывается вместе с ним.
package events

import (
	"context"
	"time"
)

// EventType представляет тип события.
type EventType string

const (
	// EventStageStarted — начался этап пайплайна (load, train, save, export...).
	EventStageStarted EventType = "stage_started"

	// EventStageFinished — этап завершён успешно.
	EventStageFinished EventType = "stage_finished"

	// EventProgress — шаг обучения или статус внешней задачи.
	EventProgress EventType = "progress"

	// EventWarning — нефатальная ошибка (например, экспорт в GGUF).
	EventWarning EventType = "warning"

	// EventSmokeResult — результат одного промпта smoke-теста.
	EventSmokeResult EventType = "smoke_result"

	// EventError — фатальная ошибка, прогон прерван.
	EventError EventType = "error"

	// EventDone — прогон завершён.
	EventDone EventType = "done"
)

// Этапы пайплайна.
const (
	StageLoadData  = "load_data"
	StageLoadModel = "load_model"
	StageAdapters  = "attach_adapters"
	StageTrain     = "train"
	StageSave      = "save"
	StageExport    = "export"
	StageUpload    = "upload"
	StageSmokeTest = "smoke_test"
)

// EventData — sealed interface для данных события.
//
// Только типы из пакета events могут реализовать этот интерфейс.
type EventData interface {
	eventData()
}

// StageData — данные EventStageStarted / EventStageFinished.
type StageData struct {
	Stage  string
	Detail string
}

func (StageData) eventData() {}

// ProgressData — данные EventProgress.
type ProgressData struct {
	Step       int
	TotalSteps int
	Loss       float64
	Message    string
}

func (ProgressData) eventData() {}

// Fraction возвращает долю выполненных шагов в [0, 1].
func (p ProgressData) Fraction() float64 {
	if p.TotalSteps <= 0 {
		return 0
	}
	f := float64(p.Step) / float64(p.TotalSteps)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

// SmokeResultData — данные EventSmokeResult.
type SmokeResultData struct {
	Prompt   string
	Valid    bool
	Elements int
	Preview  string
	Err      error
}

func (SmokeResultData) eventData() {}

// ErrorData — данные EventError и EventWarning.
type ErrorData struct {
	Stage string
	Err   error
}

func (ErrorData) eventData() {}

// DoneData — данные EventDone.
type DoneData struct {
	OutputDir string
	Examples  int
	Duration  time.Duration
}

func (DoneData) eventData() {}

// Event — одно событие прогона.
//
// Data соответствует Type:
//   - EventStageStarted, EventStageFinished: StageData
//   - EventProgress: ProgressData
//   - EventWarning, EventError: ErrorData
//   - EventSmokeResult: SmokeResultData
//   - EventDone: DoneData
type Event struct {
	Type      EventType
	Data      EventData
	Timestamp time.Time
}

// New создаёт событие с текущим временем.
func New(t EventType, data EventData) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

// Emitter — Port для отправки событий.
type Emitter interface {
	// Emit отправляет событие. Если context отменён, операция прерывается.
	Emit(ctx context.Context, event Event)
}

// Subscriber позволяет читать события из канала.
type Subscriber interface {
	// Events возвращает read-only канал событий.
	//
	// Канал закрывается при закрытии эмиттера.
	Events() <-chan Event

	// Close освобождает подписчика.
	Close()
}

// Nop — Emitter, который ничего не делает.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

var _ Emitter = Nop{}

// Multi рассылает событие нескольким эмиттерам по порядку.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, event)
		}
	}
}

var _ Emitter = Multi(nil)
