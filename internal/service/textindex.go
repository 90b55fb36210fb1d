// textindex.go — разбиение текстовых файлов на сегменты для поиска.
//
// Файл читается целиком и декодируется с заменой некорректных
// последовательностей (UTF-8, UTF-16 с BOM). Строки делятся по \r\n, \n и \r,
// обрезаются; пустые строки пропускаются, но индекс строки сохраняется
// как offset следующего сегмента. Не больше MaxSegmentsPerFile на файл.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/SwartzMss/Rain/internal/domain/model"
	"github.com/SwartzMss/Rain/internal/repository"
	"github.com/SwartzMss/Rain/internal/storage/filestore"
)

// MaxSegmentsPerFile — лимит сегментов на один файл, остальное отбрасывается.
const MaxSegmentsPerFile = 1000

var ingestSegmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rb_ingest_segments_total",
	Help: "Количество проиндексированных сегментов.",
})

// IsTextLike — файл индексируется, если объявленный тип начинается с text/
// или расширение имени (без учёта регистра) .log или .txt.
func IsTextLike(name, contentType string) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/") {
		return true
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".log", ".txt":
		return true
	}
	return false
}

// Line — непустая строка файла с её индексом в исходном тексте.
type Line struct {
	Offset  int64
	Content string
}

// SplitLines декодирует data и возвращает не больше limit непустых строк.
func SplitLines(data []byte, limit int) []Line {
	text := decodeLossy(data)

	lines := make([]Line, 0, min(limit, 64))
	var idx int64
	for len(text) > 0 && len(lines) < limit {
		end, next := nextLineBreak(text)
		if trimmed := strings.TrimSpace(text[:end]); trimmed != "" {
			lines = append(lines, Line{Offset: idx, Content: trimmed})
		}
		text = text[next:]
		idx++
	}
	return lines
}

// nextLineBreak возвращает конец текущей строки и начало следующей.
// Разделители: \r\n, \n, \r.
func nextLineBreak(s string) (end, next int) {
	i := strings.IndexAny(s, "\r\n")
	if i < 0 {
		return len(s), len(s)
	}
	if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
		return i, i + 2
	}
	return i, i + 1
}

// decodeLossy декодирует байты как UTF-8 (или UTF-16 при наличии BOM),
// некорректные последовательности заменяются на U+FFFD.
func decodeLossy(data []byte) string {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(out)
}

// TextIndexer — сохраняет сегменты текстовых файлов.
type TextIndexer struct {
	store    *filestore.FileStore
	segments repository.SegmentRepository
	logger   *slog.Logger
}

// NewTextIndexer создаёт индексатор.
func NewTextIndexer(store *filestore.FileStore, segments repository.SegmentRepository, logger *slog.Logger) *TextIndexer {
	return &TextIndexer{
		store:    store,
		segments: segments,
		logger:   logger.With(slog.String("component", "text_indexer")),
	}
}

// Index читает файл fullPath и сохраняет его сегменты для узла fileID.
// Возвращает количество созданных сегментов.
func (ti *TextIndexer) Index(ctx context.Context, bundleID string, fileID int64, fullPath string) (int, error) {
	data, err := ti.store.ReadFile(fullPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorageIO, err)
	}

	lines := SplitLines(data, MaxSegmentsPerFile)
	if len(lines) == 0 {
		return 0, nil
	}

	batch := make([]model.LogSegment, 0, len(lines))
	for _, l := range lines {
		offset := l.Offset
		batch = append(batch, model.LogSegment{
			BundleID: bundleID,
			FileID:   fileID,
			Timeline: model.DefaultTimeline,
			Content:  l.Content,
			Offset:   &offset,
		})
	}

	n, err := ti.segments.InsertBatch(ctx, batch)
	if err != nil {
		return 0, repoError("сохранение сегментов", err)
	}
	ingestSegmentsTotal.Add(float64(n))

	if len(lines) == MaxSegmentsPerFile {
		ti.logger.Debug("Достигнут лимит сегментов файла",
			slog.Int64("file_id", fileID),
			slog.Int("limit", MaxSegmentsPerFile),
		)
	}
	return int(n), nil
}
