package smoketest

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotJSONObject — продолжение не разбирается как JSON объект.
	ErrNotJSONObject = errors.New("output is not a json object")

	// ErrElementsNotArray — поле elements есть, но это не массив.
	ErrElementsNotArray = errors.New(`"elements" is not an array`)
)

// ValidationError — ответ модели не прошёл проверку формы.
// Не фатальна: фиксируется для промпта, цикл продолжается.
type ValidationError struct {
	Prompt string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid output for %q: %v", e.Prompt, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate проверяет, что output — JSON объект, и считает элементы
// верхнего уровня. Отсутствующее поле elements даёт 0.
func Validate(output string) (int, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(output), &obj); err != nil || obj == nil {
		return 0, ErrNotJSONObject
	}

	raw, ok := obj["elements"]
	if !ok || string(raw) == "null" {
		return 0, nil
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return 0, ErrElementsNotArray
	}
	return len(elements), nil
}
