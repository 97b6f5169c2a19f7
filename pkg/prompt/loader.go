// Загрузка системного промпта из YAML.

package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load загружает и парсит YAML файл промпта
func Load(path string) (*PromptFile, error) {
	// 1. Проверяем наличие
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("prompt file not found: %s", path)
	}

	// 2. Читаем байты
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	// 3. Парсим YAML
	var pf PromptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("yaml parse error: %w", err)
	}

	return &pf, nil
}

// System возвращает содержимое первого system сообщения.
//
// Хвостовые переводы строк обрезаются: YAML блоки `|` добавляют "\n",
// а транскрипт сам ставит разделители.
func (pf *PromptFile) System() (string, bool) {
	for _, msg := range pf.Messages {
		if msg.Role == RoleSystem {
			return strings.TrimRight(msg.Content, "\n"), true
		}
	}
	return "", false
}

// SystemPrompt возвращает системный промпт из файла или DefaultSystemPrompt.
//
// Пустой path — штатная ситуация (используется встроенный промпт).
// Указанный, но битый или пустой файл — ошибка: промпт попадает
// в каждый обучающий пример, молча подменять его нельзя.
func SystemPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}

	pf, err := Load(path)
	if err != nil {
		return "", fmt.Errorf("failed to load system prompt from %s: %w", path, err)
	}

	system, ok := pf.System()
	if !ok || strings.TrimSpace(system) == "" {
		return "", fmt.Errorf("prompt file %s has no system message", path)
	}
	return system, nil
}
