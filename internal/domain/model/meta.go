package model

import (
	"encoding/json"
	"fmt"
)

// MetaKind — вид метаданных узла.
type MetaKind string

const (
	// MetaUploadedFile — файл, загруженный пользователем напрямую
	MetaUploadedFile MetaKind = "uploaded_file"
	// MetaExtractedDir — директория, полученная распаковкой архива
	MetaExtractedDir MetaKind = "extracted_dir"
	// MetaExtractedFile — файл, полученный распаковкой архива
	MetaExtractedFile MetaKind = "extracted_file"
)

// NodeMeta — метаданные узла (колонка files.meta, JSONB).
// Известные виды хранятся в типизированных полях, всё остальное
// попадает в Extra и сохраняется без потерь.
type NodeMeta struct {
	// Kind — вид метаданных; пустой для произвольного набора ключей
	Kind MetaKind
	// OriginalName — исходное (недоверенное) имя файла, только uploaded_file
	OriginalName string
	// Source — имя архива, из которого получена директория, только extracted_dir
	Source string
	// StoragePath — путь на диске относительно корня данных
	StoragePath string
	// Extra — ключи, не относящиеся к известным видам
	Extra map[string]any
}

// UploadedFileMeta — метаданные загруженного файла.
func UploadedFileMeta(originalName, storagePath string) NodeMeta {
	return NodeMeta{Kind: MetaUploadedFile, OriginalName: originalName, StoragePath: storagePath}
}

// ExtractedDirMeta — метаданные директории распаковки.
// source пуст для вложенных директорий архива.
func ExtractedDirMeta(source, storagePath string) NodeMeta {
	return NodeMeta{Kind: MetaExtractedDir, Source: source, StoragePath: storagePath}
}

// ExtractedFileMeta — метаданные файла из архива.
func ExtractedFileMeta(storagePath string) NodeMeta {
	return NodeMeta{Kind: MetaExtractedFile, StoragePath: storagePath}
}

// Map возвращает плоское представление метаданных (формат JSON-ответа и JSONB).
func (m NodeMeta) Map() map[string]any {
	out := make(map[string]any, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Kind != "" {
		out["kind"] = string(m.Kind)
	}
	if m.OriginalName != "" {
		out["original_name"] = m.OriginalName
	}
	if m.Source != "" {
		out["source"] = m.Source
	}
	if m.StoragePath != "" {
		out["storage_path"] = m.StoragePath
	}
	return out
}

// MarshalJSON сериализует метаданные в плоский JSON-объект.
func (m NodeMeta) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

// UnmarshalJSON разбирает плоский JSON-объект. Ключи известных видов
// попадают в типизированные поля только если kind распознан.
func (m *NodeMeta) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("ошибка разбора метаданных узла: %w", err)
	}

	*m = NodeMeta{}
	kind, _ := raw["kind"].(string)
	switch MetaKind(kind) {
	case MetaUploadedFile, MetaExtractedDir, MetaExtractedFile:
		m.Kind = MetaKind(kind)
		delete(raw, "kind")
		m.OriginalName = takeString(raw, "original_name")
		m.Source = takeString(raw, "source")
		m.StoragePath = takeString(raw, "storage_path")
	}
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}

// takeString извлекает строковое значение и удаляет ключ из map.
// Нестроковые значения остаются в map.
func takeString(raw map[string]any, key string) string {
	s, ok := raw[key].(string)
	if ok {
		delete(raw, key)
	}
	return s
}
