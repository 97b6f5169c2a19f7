// Интерфейс генератора, через который smoke-тест обращается к модели.

package llm

import "context"

// Generator — контракт для любого бэкенда инференса.
//
// prompt передаётся как есть (уже отрендеренный транскрипт с открытым
// сегментом ассистента); ответ — сырое продолжение модели.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)
}

// GeneratorFunc адаптирует функцию к Generator.
type GeneratorFunc func(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	return f(ctx, prompt, opts...)
}
