// Package app собирает компоненты goose-tune из конфигурации и выполняет
// два режима: обучение и smoke-тест.
//
// Правило 6: entry points — только инициализация и оркестрация,
// вся логика в pkg/.
package app

import (
	"fmt"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/dataset"
	"github.com/ilkoid/goose-tune/pkg/factory"
	"github.com/ilkoid/goose-tune/pkg/history"
	"github.com/ilkoid/goose-tune/pkg/llm"
	"github.com/ilkoid/goose-tune/pkg/prompt"
	"github.com/ilkoid/goose-tune/pkg/s3storage"
	"github.com/ilkoid/goose-tune/pkg/trainer"
	"github.com/ilkoid/goose-tune/pkg/trainer/command"
	"github.com/ilkoid/goose-tune/pkg/trainer/hosted"
	"github.com/ilkoid/goose-tune/pkg/utils"
)

// Options — флаги командной строки, влияющие на прогон.
type Options struct {
	// Local — обучение на локальном железе (bf16)
	Local bool

	// ExportGGUF — квантованный экспорт после сохранения
	ExportGGUF bool

	// DataDir переопределяет data.dir ("s3://prefix" — читать из бакета)
	DataDir string
}

// Components содержит все компоненты приложения.
type Components struct {
	Config       *config.AppConfig
	SystemPrompt string

	// Storage — nil, если S3 не настроен
	Storage *s3storage.Client

	// History — nil, если app.history_db пуст или не открылся
	History *history.Store
}

// Initialize создаёт компоненты, общие для обоих режимов.
//
// Ошибка S3 фатальна только если хранилище настроено. Журнал прогонов
// вспомогательный: ошибка открытия логируется, прогон продолжается.
func Initialize(cfg *config.AppConfig) (*Components, error) {
	system, err := prompt.SystemPrompt(cfg.App.SystemPromptFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load system prompt: %w", err)
	}

	c := &Components{Config: cfg, SystemPrompt: system}

	if cfg.S3.Enabled() {
		c.Storage, err = s3storage.New(cfg.S3)
		if err != nil {
			utils.Error("S3 client creation failed", "error", err)
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		utils.Info("S3 client initialized", "bucket", cfg.S3.Bucket)
	}

	if cfg.App.HistoryDB != "" {
		store, err := history.Open(cfg.App.HistoryDB)
		if err != nil {
			utils.Warn("Run history disabled", "path", cfg.App.HistoryDB, "error", err)
		} else {
			c.History = store
		}
	}

	return c, nil
}

// Close освобождает ресурсы компонентов.
func (c *Components) Close() {
	if c.History != nil {
		if err := c.History.Close(); err != nil {
			utils.Warn("Failed to close run history", "error", err)
		}
	}
}

// DataSource выбирает источник обучающих файлов по значению dir.
func (c *Components) DataSource(dir string) (dataset.Source, error) {
	if prefix, ok := dataset.ParseS3Prefix(dir); ok {
		if c.Storage == nil {
			return nil, fmt.Errorf("data dir %s requires s3.endpoint and s3.bucket", dir)
		}
		return dataset.S3Source{Client: c.Storage, Prefix: prefix}, nil
	}
	return dataset.DirSource{Dir: dir}, nil
}

// Backend создаёт коллаборатор обучения по backend.kind.
//
// Отсутствующая зависимость (программа воркера, API ключ) —
// *trainer.MissingDependencyError.
func (c *Components) Backend() (trainer.Backend, error) {
	switch c.Config.Backend.Kind {
	case config.BackendCommand:
		return command.New(c.Config.Backend.Command,
			command.WithModelfileTemperature(c.Config.Models.Generation.Temperature))
	case config.BackendOpenAI:
		return hosted.New(c.Config.Backend.OpenAI)
	default:
		return nil, fmt.Errorf("unknown backend kind: %s", c.Config.Backend.Kind)
	}
}

// Generator создаёт генератор для smoke-теста.
func (c *Components) Generator() (llm.Generator, error) {
	return factory.NewGenerator(c.Config.Models.Generation)
}
