// Пакет filestore — материализация бандлов на диске.
// Раскладка: <root>/<bundle-hash>/<имя-файла> и
// <root>/<bundle-hash>/<имя-файла>_extracted/... для содержимого архивов.
//
// Все операции идут через afero.Fs: в работе — afero.OsFs,
// в тестах — afero.MemMapFs. Пути, которые FileStore отдаёт наружу
// (StoragePath), относительны корню и всегда используют '/'.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrInvalidName — имя не является одним безопасным компонентом пути.
var ErrInvalidName = errors.New("недопустимое имя файла или директории")

// FileStore — управление файлами бандлов внутри корневой директории.
type FileStore struct {
	fs   afero.Fs
	root string
}

// SaveResult — результат записи файла.
type SaveResult struct {
	// StoragePath — путь относительно корня (через '/')
	StoragePath string
	// FullPath — путь в файловой системе afero
	FullPath string
	// Size — количество записанных байт
	Size int64
}

// New создаёт FileStore поверх переданной файловой системы
// и создаёт корневую директорию, если её нет.
func New(fsys afero.Fs, root string) (*FileStore, error) {
	root = filepath.Clean(root)
	if err := fsys.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", root, err)
	}
	return &FileStore{fs: fsys, root: root}, nil
}

// NewOS создаёт FileStore поверх файловой системы ОС.
func NewOS(root string) (*FileStore, error) {
	return New(afero.NewOsFs(), root)
}

// Fs возвращает файловую систему, с которой работает хранилище.
func (s *FileStore) Fs() afero.Fs {
	return s.fs
}

// Root возвращает корневую директорию данных.
func (s *FileStore) Root() string {
	return s.root
}

// FullPath переводит StoragePath в путь файловой системы.
func (s *FileStore) FullPath(storagePath string) string {
	return filepath.Join(s.root, filepath.FromSlash(storagePath))
}

// StoragePath переводит путь файловой системы в путь относительно корня.
// Для путей вне корня возвращает ErrInvalidName.
func (s *FileStore) StoragePath(fullPath string) (string, error) {
	rel, err := filepath.Rel(s.root, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s вне директории данных", ErrInvalidName, fullPath)
	}
	return filepath.ToSlash(rel), nil
}

// EnsureDir создаёт директорию storagePath (со всеми предками)
// и возвращает её полный путь.
func (s *FileStore) EnsureDir(storagePath string) (string, error) {
	if err := validateRel(storagePath); err != nil {
		return "", err
	}
	full := s.FullPath(storagePath)
	if err := s.fs.MkdirAll(full, 0o750); err != nil {
		return "", fmt.Errorf("ошибка создания директории %s: %w", storagePath, err)
	}
	return full, nil
}

// EnsureBundleDir создаёт директорию бандла <root>/<hash>.
func (s *FileStore) EnsureBundleDir(hash string) (string, error) {
	if err := validateName(hash); err != nil {
		return "", err
	}
	return s.EnsureDir(hash)
}

// SaveFile записывает данные из reader в <dir>/<name>, где dir — StoragePath
// существующей директории, name — уже санитизированное имя.
//
// Паттерн: temp файл → запись → fsync → атомарный rename.
// При ошибке temp файл удаляется.
func (s *FileStore) SaveFile(dir, name string, reader io.Reader) (*SaveResult, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateRel(dir); err != nil {
		return nil, err
	}

	storagePath := path.Join(dir, name)
	fullPath := s.FullPath(storagePath)
	tmpPath := filepath.Join(filepath.Dir(fullPath), "."+name+"."+uuid.New().String()[:8]+".tmp")

	f, err := s.fs.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		_ = s.fs.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		_ = s.fs.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := s.fs.Rename(tmpPath, fullPath); err != nil {
		_ = s.fs.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StoragePath: storagePath,
		FullPath:    fullPath,
		Size:        size,
	}, nil
}

// ReadFile читает файл целиком по полному пути.
func (s *FileStore) ReadFile(fullPath string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, fullPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}
	return data, nil
}

// Exists проверяет существование файла или директории по StoragePath.
func (s *FileStore) Exists(storagePath string) bool {
	ok, err := afero.Exists(s.fs, s.FullPath(storagePath))
	return err == nil && ok
}

// validateName проверяет, что name — ровно один обычный компонент пути.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// validateRel проверяет, что storagePath относителен и не выходит за корень.
func validateRel(storagePath string) error {
	if storagePath == "" || strings.HasPrefix(storagePath, "/") || strings.Contains(storagePath, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, storagePath)
	}
	for _, seg := range strings.Split(storagePath, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidName, storagePath)
		}
	}
	return nil
}
