package service

import "unicode"

const (
	// snippetContext — символов контекста с каждой стороны совпадения
	snippetContext = 40
	// snippetFallback — длина фрагмента, если совпадение в строке не найдено
	snippetFallback = 120
	snippetEllipsis = "..."
)

// BuildSnippet возвращает фрагмент content вокруг первого вхождения query
// (без учёта регистра): до 40 символов с каждой стороны, "..." на месте
// обрезанного текста. Без совпадения — первые 120 символов.
func BuildSnippet(content, query string) string {
	text := []rune(content)
	needle := []rune(query)

	idx := indexFold(text, needle)
	if idx < 0 {
		if len(text) > snippetFallback {
			return string(text[:snippetFallback])
		}
		return content
	}

	start := max(0, idx-snippetContext)
	end := min(len(text), idx+len(needle)+snippetContext)

	snippet := string(text[start:end])
	if start > 0 {
		snippet = snippetEllipsis + snippet
	}
	if end < len(text) {
		snippet += snippetEllipsis
	}
	return snippet
}

// indexFold ищет needle в text посимвольно без учёта регистра.
func indexFold(text, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
	for i := 0; i+len(needle) <= len(text); i++ {
		match := true
		for j, r := range needle {
			if !equalFold(text[i+j], r) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func equalFold(a, b rune) bool {
	return a == b || unicode.ToLower(a) == unicode.ToLower(b)
}
