// Package dataset загружает обучающие примеры из JSONL и превращает их
// в тексты инструктивного транскрипта.
//
// Каждая непустая строка файла — самостоятельная запись
// {"prompt": "...", "output": {...}}. Файлы, в имени которых есть маркер
// валидационного сплита, в обучение не попадают.
package dataset

import "encoding/json"

// TrainingExample — одна запись обучающего набора.
//
// Output хранится как сырой JSON: форматтеру нужно только детерминированно
// его сериализовать, структура элементов/связей ему не важна.
type TrainingExample struct {
	Prompt string          `json:"prompt"`
	Output json.RawMessage `json:"output"`

	// Откуда пример (для диагностики)
	File string `json:"-"`
	Line int    `json:"-"`
}

// FormattedExample — отрендеренный транскрипт одного примера.
// Поле text — форма датасета, которую ждёт тренер.
type FormattedExample struct {
	Text string `json:"text"`
}
