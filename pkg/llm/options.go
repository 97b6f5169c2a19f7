// Package llm — порт генерации текста для smoke-теста обученной модели.
//
// Параметры задаются при инициализации (из goose.yaml) и переопределяются
// на вызове через функциональные опции.
package llm

// GenerateOptions — параметры одной генерации.
type GenerateOptions struct {
	// Model — идентификатор модели (имя в Ollama, id дообученной модели)
	Model string

	// Temperature управляет случайностью (0.0 = детерминированно)
	Temperature float64

	// MaxTokens ограничивает длину ответа
	MaxTokens int

	// Stop — последовательности, на которых генерация останавливается
	Stop []string
}

// GenerateOption — функциональная опция для GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithModel переопределяет модель из конфига.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithTemperature переопределяет температуру.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens переопределяет лимит токенов.
func WithMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = tokens
	}
}

// WithStop задаёт стоп-последовательности.
func WithStop(stop ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Stop = append([]string(nil), stop...)
	}
}

// Apply применяет опции поверх базовых значений.
func Apply(base GenerateOptions, opts ...GenerateOption) GenerateOptions {
	out := base
	out.Stop = append([]string(nil), base.Stop...)
	for _, opt := range opts {
		opt(&out)
	}
	return out
}
