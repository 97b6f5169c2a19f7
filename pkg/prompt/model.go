// Структуры данных - описывает формат YAML файла промпта.
package prompt

// PromptFile описывает структуру YAML-файла с промптом
type PromptFile struct {
	Messages []Message `yaml:"messages"`
}

// Message - одно сообщение транскрипта
type Message struct {
	Role    string `yaml:"role"` // system, user, assistant
	Content string `yaml:"content"`
}

// Роли сообщений
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
