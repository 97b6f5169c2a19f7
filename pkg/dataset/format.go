package dataset

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ilkoid/goose-tune/pkg/prompt"
)

// FormatOne рендерит пример в закрытый транскрипт:
// system / user = prompt / assistant = Canonical(output).
func FormatOne(system string, ex TrainingExample) (FormattedExample, error) {
	target, err := Canonical(ex.Output)
	if err != nil {
		return FormattedExample{}, &DataFormatError{File: ex.File, Line: ex.Line, Field: "output", Err: err}
	}
	return FormattedExample{Text: prompt.Render(system, ex.Prompt, target)}, nil
}

// Format форматирует весь набор, сохраняя порядок.
func Format(system string, examples []TrainingExample) ([]FormattedExample, error) {
	out := make([]FormattedExample, 0, len(examples))
	for _, ex := range examples {
		f, err := FormatOne(system, ex)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// WriteJSONL пишет набор построчно в виде {"text": "..."}.
//
// HTML-экранирование выключено: маркеры <|...|> должны остаться как есть.
func WriteJSONL(w io.Writer, formatted []FormattedExample) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, f := range formatted {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("write example %d: %w", i, err)
		}
	}
	return nil
}
