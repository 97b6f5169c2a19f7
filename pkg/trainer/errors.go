package trainer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTrainingData — датасет пуст, обучение не запускается.
	ErrNoTrainingData = errors.New("no training data")

	// ErrMissingDependency — коллаборатор недоступен в окружении.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrExportUnsupported — backend не умеет квантованный экспорт.
	ErrExportUnsupported = errors.New("export is not supported by this backend")
)

// MissingDependencyError — нет программы, ключа или библиотеки,
// без которых коллаборатор не работает.
type MissingDependencyError struct {
	Name string
	Hint string
}

func (e *MissingDependencyError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("missing dependency %s", e.Name)
	}
	return fmt.Sprintf("missing dependency %s: %s", e.Name, e.Hint)
}

func (e *MissingDependencyError) Is(target error) bool {
	return target == ErrMissingDependency
}

// TrainingError — сбой на одном из шагов обучения. Фатален.
type TrainingError struct {
	Stage string
	Err   error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed at %s: %v", e.Stage, e.Err)
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// ExportError — сбой квантованного экспорта. Не фатален: обученная
// модель уже сохранена.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export to %s failed: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
