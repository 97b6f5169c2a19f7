package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/utils"
)

const initialLineBuffer = 64 * 1024

// Loader читает все обучающие файлы источника.
type Loader struct {
	source       Source
	suffix       string
	marker       string
	maxLineBytes int
}

// NewLoader создаёт загрузчик с настройками отбора из конфига.
func NewLoader(source Source, cfg config.DataConfig) *Loader {
	maxLine := cfg.MaxLineBytes
	if maxLine <= 0 {
		maxLine = initialLineBuffer
	}
	return &Loader{
		source:       source,
		suffix:       cfg.Suffix,
		marker:       cfg.ValidationMarker,
		maxLineBytes: maxLine,
	}
}

// Load возвращает все примеры из подходящих файлов.
//
// Первая же битая строка прерывает загрузку с *DataFormatError, частичный
// результат не возвращается. Пустой источник — не ошибка: (nil, nil).
func (l *Loader) Load(ctx context.Context) ([]TrainingExample, error) {
	names, err := l.source.List(ctx)
	if err != nil {
		return nil, err
	}

	files := FilterTrainingFiles(names, l.suffix, l.marker)
	utils.Debug("Training files selected", "source", l.source.String(), "listed", len(names), "selected", len(files))

	var examples []TrainingExample
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fileExamples, err := l.loadFile(ctx, name)
		if err != nil {
			return nil, err
		}
		examples = append(examples, fileExamples...)
	}

	utils.Info("Loaded training examples", "count", len(examples), "files", len(files), "source", l.source.String())
	return examples, nil
}

func (l *Loader) loadFile(ctx context.Context, name string) ([]TrainingExample, error) {
	rc, err := l.source.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	bufSize := initialLineBuffer
	if l.maxLineBytes < bufSize {
		bufSize = l.maxLineBytes
	}
	scanner.Buffer(make([]byte, 0, bufSize), l.maxLineBytes)

	var examples []TrainingExample
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		ex, err := ParseLine(line)
		if err != nil {
			var dfe *DataFormatError
			if errors.As(err, &dfe) {
				dfe.File = name
				dfe.Line = lineNo
			}
			return nil, err
		}
		ex.File = name
		ex.Line = lineNo
		examples = append(examples, ex)
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &DataFormatError{
				File: name,
				Line: lineNo + 1,
				Err:  fmt.Errorf("%w: line exceeds %d bytes", ErrMalformedJSON, l.maxLineBytes),
			}
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	utils.Debug("Training file parsed", "file", name, "examples", len(examples))
	return examples, nil
}

// ParseLine разбирает одну непустую строку JSONL в пример.
//
// Ошибки — *DataFormatError без File/Line (их заполняет Loader).
func ParseLine(line []byte) (TrainingExample, error) {
	var record map[string]json.RawMessage
	if !json.Valid(line) {
		return TrainingExample{}, &DataFormatError{Err: ErrMalformedJSON}
	}
	if err := json.Unmarshal(line, &record); err != nil {
		return TrainingExample{}, &DataFormatError{Err: fmt.Errorf("%w: record is not an object", ErrMalformedJSON)}
	}

	rawPrompt, ok := present(record, "prompt")
	if !ok {
		return TrainingExample{}, &DataFormatError{Field: "prompt", Err: ErrMissingField}
	}
	var promptText string
	if err := json.Unmarshal(rawPrompt, &promptText); err != nil {
		return TrainingExample{}, &DataFormatError{Field: "prompt", Err: fmt.Errorf("%w: want string", ErrInvalidField)}
	}

	rawOutput, ok := present(record, "output")
	if !ok {
		return TrainingExample{}, &DataFormatError{Field: "output", Err: ErrMissingField}
	}
	if rawOutput[0] != '{' {
		return TrainingExample{}, &DataFormatError{Field: "output", Err: ErrInvalidOutput}
	}

	return TrainingExample{Prompt: promptText, Output: rawOutput}, nil
}

// present возвращает значение поля без окружающих пробелов;
// отсутствующее поле и null считаются одинаково.
func present(record map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := record[key]
	if !ok {
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	return raw, true
}
