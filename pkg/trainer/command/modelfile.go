package command

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilkoid/goose-tune/pkg/prompt"
)

// ModelfileName — имя Ollama Modelfile рядом с GGUF.
const ModelfileName = "Modelfile"

// RenderModelfile возвращает Ollama Modelfile для GGUF артефакта.
//
// Шаблон сырой ({{ .Prompt }}): транскрипт рендерит клиент, Ollama его
// не переоборачивает. Генерация останавливается на маркере конца реплики.
func RenderModelfile(ggufPath string, temperature float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FROM ./%s\n", filepath.Base(ggufPath))
	b.WriteString("TEMPLATE \"\"\"{{ .Prompt }}\"\"\"\n")
	fmt.Fprintf(&b, "PARAMETER stop %q\n", prompt.MarkerEnd)
	fmt.Fprintf(&b, "PARAMETER temperature %g\n", temperature)
	return b.String()
}

// WriteModelfile пишет Modelfile в директорию GGUF и возвращает путь.
func WriteModelfile(ggufPath string, temperature float64) (string, error) {
	path := filepath.Join(filepath.Dir(ggufPath), ModelfileName)
	if err := os.WriteFile(path, []byte(RenderModelfile(ggufPath, temperature)), 0644); err != nil {
		return "", fmt.Errorf("write modelfile: %w", err)
	}
	return path, nil
}
