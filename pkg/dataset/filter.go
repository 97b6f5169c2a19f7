package dataset

import (
	"path"
	"path/filepath"
	"strings"
)

// IsTrainingFile — предикат отбора файлов обучающего набора.
//
// Файл подходит, если его базовое имя оканчивается на suffix и не содержит
// marker (валидационный сплит исключается целиком, это не ошибка).
// Пустой marker отключает исключение.
func IsTrainingFile(name, suffix, marker string) bool {
	base := path.Base(filepath.ToSlash(name))
	if base == "." || base == "/" || !strings.HasSuffix(base, suffix) {
		return false
	}
	if marker != "" && strings.Contains(base, marker) {
		return false
	}
	return true
}

// FilterTrainingFiles оставляет только обучающие файлы, сохраняя порядок.
func FilterTrainingFiles(names []string, suffix, marker string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if IsTrainingFile(n, suffix, marker) {
			out = append(out, n)
		}
	}
	return out
}
