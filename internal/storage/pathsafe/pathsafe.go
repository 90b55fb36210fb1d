// Пакет pathsafe — нормализация недоверенных путей (имена записей архива,
// имена загружаемых файлов) в безопасные относительные пути на диске.
//
// Компоненты, не являющиеся обычным именем (пустые, ".", "..", корни),
// отбрасываются целиком, поэтому результат не может выйти за пределы
// директории назначения. В оставшихся компонентах всё, кроме ASCII-букв,
// цифр, '-', '_' и '.', заменяется на '_'.
package pathsafe

import (
	"path"
	"strings"
)

// DefaultFilename — имя файла, если из исходного имени ничего не осталось.
const DefaultFilename = "upload.log"

// RelPath нормализует путь записи архива в относительный путь
// с разделителем '/'. Для пути без допустимых компонентов возвращает "".
func RelPath(name string) string {
	parts := components(name)
	kept := parts[:0]
	for _, p := range parts {
		if p == ".." {
			continue
		}
		kept = append(kept, ReplaceUnsafe(p))
	}
	return path.Join(kept...)
}

// Filename возвращает безопасное имя для загружаемого файла:
// берётся только последний компонент, остальное отбрасывается.
// Пустой результат заменяется на DefaultFilename.
func Filename(name string) string {
	parts := components(name)
	if len(parts) == 0 {
		return DefaultFilename
	}
	last := parts[len(parts)-1]
	if last == ".." {
		return DefaultFilename
	}
	return ReplaceUnsafe(last)
}

// ReplaceUnsafe заменяет в одном компоненте пути все символы,
// кроме [A-Za-z0-9._-], на '_'. Многобайтовый символ даёт один '_'.
func ReplaceUnsafe(segment string) string {
	var b strings.Builder
	b.Grow(len(segment))
	for _, r := range segment {
		if isSafe(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// components разбивает путь по '/' и '\' и убирает пустые компоненты и ".".
// Ведущий разделитель и буква диска ("C:") тоже отбрасываются.
func components(name string) []string {
	raw := strings.FieldsFunc(name, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	out := raw[:0]
	for i, p := range raw {
		if p == "." || (i == 0 && isVolume(p)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func isVolume(p string) bool {
	if len(p) != 2 || p[1] != ':' {
		return false
	}
	c := p[0] | 0x20
	return c >= 'a' && c <= 'z'
}

func isSafe(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.'
}
