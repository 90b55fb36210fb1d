package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/SwartzMss/Rain/internal/domain/model"
	"github.com/SwartzMss/Rain/internal/repository"
)

func TestIsTextLike(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		contentType string
		want        bool
	}{
		{"text/plain", "data.bin", "text/plain", true},
		{"text/csv с параметрами", "report", "text/csv; charset=utf-8", true},
		{"расширение .log", "app.log", "", true},
		{"расширение .TXT", "README.TXT", "", true},
		{"расширение при чужом типе", "app.log", "application/octet-stream", true},
		{"архив", "bundle.zip", "application/zip", false},
		{"без расширения", "Makefile", "", false},
		{".log в середине имени", "app.log.gz", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTextLike(tt.file, tt.contentType); got != tt.want {
				t.Errorf("IsTextLike(%q, %q) = %v, ожидалось %v", tt.file, tt.contentType, got, tt.want)
			}
		})
	}
}

// TestSplitLines_SkipsEmptyKeepsOffsets — пустые строки пропускаются,
// но их индекс учитывается.
func TestSplitLines_SkipsEmptyKeepsOffsets(t *testing.T) {
	lines := SplitLines([]byte("first line\n\n  third line  \n"), MaxSegmentsPerFile)

	if len(lines) != 2 {
		t.Fatalf("len = %d, ожидалось 2: %+v", len(lines), lines)
	}
	if lines[0].Offset != 0 || lines[0].Content != "first line" {
		t.Errorf("lines[0] = %+v", lines[0])
	}
	if lines[1].Offset != 2 || lines[1].Content != "third line" {
		t.Errorf("lines[1] = %+v, ожидался offset 2 и обрезанный текст", lines[1])
	}
}

func TestSplitLines_UniversalNewlines(t *testing.T) {
	lines := SplitLines([]byte("a\r\nb\rc\nd"), MaxSegmentsPerFile)

	want := []Line{{0, "a"}, {1, "b"}, {2, "c"}, {3, "d"}}
	if len(lines) != len(want) {
		t.Fatalf("len = %d, ожидалось %d: %+v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %+v, ожидалось %+v", i, lines[i], want[i])
		}
	}
}

// TestSplitLines_Cap — не больше лимита, смещения исходные.
func TestSplitLines_Cap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 3000; i++ {
		if i%2 == 0 {
			fmt.Fprintf(&b, "line %d\n", i)
		} else {
			b.WriteString("\n")
		}
	}

	lines := SplitLines([]byte(b.String()), MaxSegmentsPerFile)
	if len(lines) != MaxSegmentsPerFile {
		t.Fatalf("len = %d, ожидалось %d", len(lines), MaxSegmentsPerFile)
	}
	last := lines[len(lines)-1]
	if last.Offset != 1998 || last.Content != "line 1998" {
		t.Errorf("последний сегмент = %+v, ожидался offset 1998", last)
	}
}

// TestSplitLines_UnderCap — при N ≤ лимита создаётся ровно N сегментов.
func TestSplitLines_UnderCap(t *testing.T) {
	for _, n := range []int{1, 17, MaxSegmentsPerFile} {
		var b strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "entry %d\n", i)
		}
		if got := len(SplitLines([]byte(b.String()), MaxSegmentsPerFile)); got != n {
			t.Errorf("n=%d: получено %d сегментов", n, got)
		}
	}
}

func TestSplitLines_LossyDecoding(t *testing.T) {
	lines := SplitLines([]byte("ok\xffok\n"), MaxSegmentsPerFile)
	if len(lines) != 1 || lines[0].Content != "ok\uFFFDok" {
		t.Errorf("lines = %+v, ожидалась замена некорректного байта на U+FFFD", lines)
	}

	// UTF-16LE с BOM
	utf16 := []byte{0xFF, 0xFE, 'h', 0, 'i', 0, '\n', 0, 'x', 0}
	lines = SplitLines(utf16, MaxSegmentsPerFile)
	if len(lines) != 2 || lines[0].Content != "hi" || lines[1].Content != "x" {
		t.Errorf("lines = %+v, ожидалось [hi x]", lines)
	}
}

func TestSplitLines_Empty(t *testing.T) {
	if lines := SplitLines(nil, MaxSegmentsPerFile); len(lines) != 0 {
		t.Errorf("lines = %+v, ожидался пустой результат", lines)
	}
	if lines := SplitLines([]byte(" \n\t\r\n"), MaxSegmentsPerFile); len(lines) != 0 {
		t.Errorf("lines = %+v, ожидался пустой результат", lines)
	}
}

func TestTextIndexer_Index(t *testing.T) {
	env := newIngestEnv(t)
	if err := afero.WriteFile(env.fs, "/data/h1/app.log", []byte("start\n\nboom\n"), 0o640); err != nil {
		t.Fatal(err)
	}

	indexer := NewTextIndexer(env.store, env.segments, testLogger())
	n, err := indexer.Index(context.Background(), "bundle-1", 7, "/data/h1/app.log")
	if err != nil {
		t.Fatalf("Index ошибка: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, ожидалось 2", n)
	}

	segs := env.segments.forFile(7)
	if len(segs) != 2 {
		t.Fatalf("сегментов = %d, ожидалось 2", len(segs))
	}
	for _, s := range segs {
		if s.BundleID != "bundle-1" || s.Timeline != model.DefaultTimeline || s.Offset == nil {
			t.Errorf("сегмент = %+v", s)
		}
	}
	if *segs[1].Offset != 2 || segs[1].Content != "boom" {
		t.Errorf("segs[1] = %+v, ожидался offset 2", segs[1])
	}
}

func TestTextIndexer_Index_Errors(t *testing.T) {
	env := newIngestEnv(t)
	indexer := NewTextIndexer(env.store, env.segments, testLogger())

	_, err := indexer.Index(context.Background(), "b", 1, "/data/missing.log")
	if !errors.Is(err, ErrStorageIO) {
		t.Errorf("ошибка = %v, ожидалась ErrStorageIO", err)
	}

	if err := afero.WriteFile(env.fs, "/data/x.log", []byte("line"), 0o640); err != nil {
		t.Fatal(err)
	}
	env.segments.insertFn = func(_ context.Context, _ []model.LogSegment) (int64, error) {
		return 0, repository.ErrUnavailable
	}
	_, err = indexer.Index(context.Background(), "b", 1, "/data/x.log")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("ошибка = %v, ожидалась ErrUnavailable", err)
	}
}
