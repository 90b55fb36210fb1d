// Пакет archive — распаковка zip-архивов в директорию назначения.
// Имена записей проходят через pathsafe, поэтому запись за пределы
// директории назначения невозможна.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/SwartzMss/Rain/internal/storage/pathsafe"
)

// ErrBadArchive — архив повреждён или использует неподдерживаемое сжатие.
// Причина всегда во входных данных, а не в окружении.
var ErrBadArchive = errors.New("некорректный архив")

// Result — итог распаковки.
type Result struct {
	// Files — количество записанных файлов
	Files int
	// Dirs — количество записей-директорий
	Dirs int
	// Bytes — суммарный размер распакованных данных
	Bytes int64
	// Skipped — записи, имя которых после санитизации оказалось пустым
	Skipped int
}

// Expander распаковывает архивы поверх afero.Fs.
type Expander struct {
	fs afero.Fs
}

// New создаёт Expander.
func New(fsys afero.Fs) *Expander {
	return &Expander{fs: fsys}
}

// Extract распаковывает zip-архив src в директорию dest.
// Ошибка формата (заголовки, алгоритм сжатия, контрольная сумма) возвращается
// как ErrBadArchive; ошибки записи на диск — как обычные ошибки ввода-вывода.
// При ошибке часть записей может быть уже распакована.
func (e *Expander) Extract(src, dest string) (*Result, error) {
	f, err := e.fs.Open(src)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия архива: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения размера архива: %w", err)
	}

	// ErrInsecurePath (GODEBUG=zipinsecurepath=0) приходит вместе с рабочим
	// reader: такие имена нормализуются ниже.
	zr, err := zip.NewReader(f, info.Size())
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}

	if err := e.fs.MkdirAll(dest, 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания директории распаковки: %w", err)
	}

	res := &Result{}
	for _, entry := range zr.File {
		rel := pathsafe.RelPath(entry.Name)
		if rel == "" {
			res.Skipped++
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))

		if entry.FileInfo().IsDir() {
			if err := e.fs.MkdirAll(target, 0o750); err != nil {
				return res, fmt.Errorf("ошибка создания директории %s: %w", rel, err)
			}
			res.Dirs++
			continue
		}

		n, err := e.extractFile(entry, target)
		if err != nil {
			return res, fmt.Errorf("запись %s: %w", rel, err)
		}
		res.Files++
		res.Bytes += n
	}

	return res, nil
}

// extractFile пишет одну запись архива в target, создавая предков.
func (e *Expander) extractFile(entry *zip.File, target string) (int64, error) {
	if err := e.fs.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return 0, fmt.Errorf("ошибка создания директории: %w", err)
	}

	rc, err := entry.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	defer rc.Close()

	out, err := e.fs.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания файла: %w", err)
	}

	src := &trackingReader{r: rc}
	n, err := io.Copy(out, src)
	if err != nil {
		out.Close()
		if src.err != nil {
			return n, fmt.Errorf("%w: %v", ErrBadArchive, src.err)
		}
		return n, fmt.Errorf("ошибка записи файла: %w", err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("ошибка закрытия файла: %w", err)
	}
	return n, nil
}

// trackingReader запоминает ошибку чтения, чтобы отличить повреждённые
// данные архива от ошибки записи на диск.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		t.err = err
	}
	return n, err
}
