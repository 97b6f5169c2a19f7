package dataset

import (
	"context"
)

// FileReport — итог проверки одного файла источника.
type FileReport struct {
	Name string

	// Training = false — файл отброшен фильтром (суффикс или маркер валидации)
	Training bool

	Examples int
	Err      error
}

// Inspect проверяет каждый файл источника, не останавливаясь на первой
// ошибке. Файлы вне обучающего набора перечисляются без разбора.
func (l *Loader) Inspect(ctx context.Context) ([]FileReport, error) {
	names, err := l.source.List(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]FileReport, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		r := FileReport{Name: name, Training: IsTrainingFile(name, l.suffix, l.marker)}
		if r.Training {
			examples, err := l.loadFile(ctx, name)
			r.Examples = len(examples)
			r.Err = err
		}
		reports = append(reports, r)
	}
	return reports, nil
}
