package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"hash/crc32"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

// zipEntry — запись для тестового архива. Имя с суффиксом "/" — директория.
type zipEntry struct {
	name string
	body string
}

// buildZip собирает zip-архив в памяти.
func buildZip(t *testing.T, entries []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("zip.Create(%s): %v", e.name, err)
		}
		if e.body != "" {
			if _, err := w.Write([]byte(e.body)); err != nil {
				t.Fatalf("zip.Write(%s): %v", e.name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip.Close: %v", err)
	}
	return buf.Bytes()
}

func writeArchive(t *testing.T, fsys afero.Fs, name string, data []byte) {
	t.Helper()
	if err := afero.WriteFile(fsys, name, data, 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestExtract_PreservesStructure(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeArchive(t, fsys, "/data/h/logs.zip", buildZip(t, []zipEntry{
		{name: "sub/"},
		{name: "sub/deep.log", body: "alpha\nboom\n"},
		{name: "top.txt", body: "x"},
		{name: "empty/"},
	}))

	res, err := New(fsys).Extract("/data/h/logs.zip", "/data/h/logs.zip_extracted")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Files != 2 || res.Dirs != 2 {
		t.Errorf("Files=%d Dirs=%d, ожидалось 2 и 2", res.Files, res.Dirs)
	}
	if res.Bytes != int64(len("alpha\nboom\n")+1) {
		t.Errorf("Bytes = %d", res.Bytes)
	}

	data, err := afero.ReadFile(fsys, "/data/h/logs.zip_extracted/sub/deep.log")
	if err != nil {
		t.Fatalf("sub/deep.log не распакован: %v", err)
	}
	if string(data) != "alpha\nboom\n" {
		t.Errorf("содержимое sub/deep.log: %q", data)
	}
	if ok, _ := afero.DirExists(fsys, "/data/h/logs.zip_extracted/empty"); !ok {
		t.Error("пустая директория из архива не создана")
	}
}

// TestExtract_ZipSlip — записи с "../" и абсолютными путями остаются внутри dest.
func TestExtract_ZipSlip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeArchive(t, fsys, "/data/h/evil.zip", buildZip(t, []zipEntry{
		{name: "../../escape.txt", body: "1"},
		{name: "/etc/passwd", body: "2"},
		{name: "a/../../b.txt", body: "3"},
		{name: "../", body: ""},
	}))

	dest := "/data/h/evil.zip_extracted"
	res, err := New(fsys).Extract("/data/h/evil.zip", dest)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, ожидалось 1", res.Skipped)
	}

	for _, p := range []string{"escape.txt", "etc/passwd", "a/b.txt"} {
		if ok, _ := afero.Exists(fsys, filepath.Join(dest, p)); !ok {
			t.Errorf("ожидался файл %s внутри директории распаковки", p)
		}
	}
	for _, p := range []string{"/data/escape.txt", "/escape.txt", "/etc/passwd", "/data/h/b.txt"} {
		if ok, _ := afero.Exists(fsys, p); ok {
			t.Errorf("файл %s записан за пределами директории распаковки", p)
		}
	}
}

func TestExtract_CorruptArchive(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeArchive(t, fsys, "/data/h/bad.zip", []byte("this is not a zip archive at all"))

	_, err := New(fsys).Extract("/data/h/bad.zip", "/data/h/bad.zip_extracted")
	if !errors.Is(err, ErrBadArchive) {
		t.Fatalf("ожидалась ErrBadArchive, получено %v", err)
	}
}

func TestExtract_UnsupportedCompression(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	body := []byte("payload")
	w, err := zw.CreateRaw(&zip.FileHeader{
		Name:               "data.log",
		Method:             99,
		CRC32:              crc32.ChecksumIEEE(body),
		CompressedSize64:   uint64(len(body)),
		UncompressedSize64: uint64(len(body)),
	})
	if err != nil {
		t.Fatalf("CreateRaw: %v", err)
	}
	if _, err := w.Write(body); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fsys := afero.NewMemMapFs()
	writeArchive(t, fsys, "/data/h/m99.zip", buf.Bytes())

	_, err = New(fsys).Extract("/data/h/m99.zip", "/data/h/m99.zip_extracted")
	if !errors.Is(err, ErrBadArchive) {
		t.Fatalf("ожидалась ErrBadArchive, получено %v", err)
	}
}

func TestExtract_MissingSource(t *testing.T) {
	_, err := New(afero.NewMemMapFs()).Extract("/nope.zip", "/out")
	if err == nil {
		t.Fatal("ожидалась ошибка для несуществующего архива")
	}
	if errors.Is(err, ErrBadArchive) {
		t.Error("отсутствующий файл — ошибка ввода-вывода, а не ErrBadArchive")
	}
}
