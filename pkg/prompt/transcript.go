// Package prompt рендерит инструктивный транскрипт (system / user / assistant)
// в формате Phi-3 и загружает системный промпт из YAML.
//
// Транскрипт становится целевым текстом обучения, поэтому рендер
// детерминирован: только конкатенация строк, без шаблонизатора.
package prompt

import (
	"strings"
)

// Маркеры ролей и конца реплики (Phi-3 instruction format).
const (
	MarkerSystem    = "<|system|>"
	MarkerUser      = "<|user|>"
	MarkerAssistant = "<|assistant|>"
	MarkerEnd       = "<|end|>"
)

// Render возвращает закрытый транскрипт из трёх сегментов.
//
// Используется для обучающих примеров: assistant — сериализованный
// целевой JSON, модель видит ответ целиком.
func Render(system, user, assistant string) string {
	var b strings.Builder
	b.Grow(len(system) + len(user) + len(assistant) + 80)
	writeHead(&b, system, user)
	b.WriteString(assistant)
	b.WriteString("\n")
	b.WriteString(MarkerEnd)
	return b.String()
}

// RenderOpen возвращает транскрипт с открытым сегментом ассистента:
// после маркера <|assistant|> нет закрывающего маркера, генератор
// продолжает текст сам.
func RenderOpen(system, user string) string {
	var b strings.Builder
	b.Grow(len(system) + len(user) + 64)
	writeHead(&b, system, user)
	return b.String()
}

func writeHead(b *strings.Builder, system, user string) {
	b.WriteString(MarkerSystem)
	b.WriteString("\n")
	b.WriteString(system)
	b.WriteString("\n")
	b.WriteString(MarkerEnd)
	b.WriteString("\n")
	b.WriteString(MarkerUser)
	b.WriteString("\n")
	b.WriteString(user)
	b.WriteString("\n")
	b.WriteString(MarkerEnd)
	b.WriteString("\n")
	b.WriteString(MarkerAssistant)
	b.WriteString("\n")
}

// ExtractAssistant вырезает продолжение ассистента из декодированного вывода.
//
// Если вывод — полный транскрипт (начинается с маркера system или user),
// отрезается всё до первого "<|assistant|>\n": сегменты system и user
// пишем мы сами. Иначе вывод считается продолжением целиком. Снимается
// только завершающий <|end|>: маркеры внутри строковых значений JSON
// остаются на месте.
func ExtractAssistant(decoded string) string {
	out := strings.TrimSpace(decoded)
	if strings.HasPrefix(out, MarkerSystem) || strings.HasPrefix(out, MarkerUser) {
		head := MarkerAssistant + "\n"
		if idx := strings.Index(out, head); idx >= 0 {
			out = out[idx+len(head):]
		}
	}
	out = strings.TrimSpace(out)
	out = strings.TrimSuffix(out, MarkerEnd)
	return strings.TrimSpace(out)
}

// SplitCompletion делит закрытый транскрипт на открытую часть
// (до "<|assistant|>\n" включительно) и продолжение ассистента.
//
// ok = false, если в тексте нет маркера ассистента.
func SplitCompletion(transcript string) (promptPart, completion string, ok bool) {
	head := MarkerAssistant + "\n"
	idx := strings.LastIndex(transcript, head)
	if idx < 0 {
		return "", "", false
	}
	cut := idx + len(head)
	return transcript[:cut], transcript[cut:], true
}
