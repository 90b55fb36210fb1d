// Пакет service — бизнес-логика Rain backend: приём бандлов
// (санитизация, запись на диск, распаковка, построение дерева, индексация)
// и запросы к дереву и сегментам.
package service

import (
	"errors"
	"fmt"

	"github.com/SwartzMss/Rain/internal/repository"
)

// Ошибки сервисного слоя. HTTP-слой отображает их в статусы ответа.
var (
	// ErrNotFound — задача, бандл или узел не найдены.
	ErrNotFound = errors.New("не найдено")
	// ErrValidation — некорректные входные данные.
	ErrValidation = errors.New("некорректные входные данные")
	// ErrBadArchive — загруженный архив повреждён или не поддерживается.
	ErrBadArchive = errors.New("некорректный архив")
	// ErrStorageIO — ошибка файловой системы при приёме бандла.
	ErrStorageIO = errors.New("ошибка файлового хранилища")
	// ErrUnavailable — хранилище метаданных (PostgreSQL) недоступно.
	ErrUnavailable = errors.New("хранилище метаданных недоступно")
)

// validationError формирует ErrValidation с сообщением для клиента.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// repoError переводит ошибку репозитория в ошибку сервисного слоя.
func repoError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repository.ErrUnavailable):
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%s: %w: %w", op, ErrValidation, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
