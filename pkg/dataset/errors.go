package dataset

import (
	"errors"
	"fmt"
)

// Ошибки разбора строк. Все они приходят завёрнутыми в *DataFormatError.
var (
	// ErrMalformedJSON — строка не является JSON объектом.
	ErrMalformedJSON = errors.New("malformed json record")

	// ErrMissingField — в записи нет prompt или output (или они null).
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidField — поле есть, но неверного типа (prompt не строка).
	ErrInvalidField = errors.New("invalid field type")

	// ErrInvalidOutput — output не является JSON объектом.
	ErrInvalidOutput = errors.New("output must be a json object")
)

// DataFormatError — фатальная ошибка формата обучающих данных.
//
// Одна битая строка прерывает всю загрузку: частичный датасет не используется.
type DataFormatError struct {
	File  string
	Line  int
	Field string // "" если ошибка не относится к конкретному полю
	Err   error
}

func (e *DataFormatError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.Field != "" {
		return fmt.Sprintf("data format error at %s: field %q: %v", loc, e.Field, e.Err)
	}
	return fmt.Sprintf("data format error at %s: %v", loc, e.Err)
}

func (e *DataFormatError) Unwrap() error {
	return e.Err
}

// IsMissingField сообщает, что err — ошибка отсутствующего поля
// (MissingFieldError: подвид DataFormatError).
func IsMissingField(err error) bool {
	var dfe *DataFormatError
	return errors.As(err, &dfe) && errors.Is(dfe.Err, ErrMissingField)
}
