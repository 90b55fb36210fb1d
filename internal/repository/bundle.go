package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SwartzMss/Rain/internal/domain/model"
)

// bundleColumns — список столбцов таблицы bundles для SELECT-запросов.
const bundleColumns = `id, hash, name, issue_code, size_bytes, status, created_at`

// BundleRepository — доступ к таблице bundles.
type BundleRepository interface {
	// Create в одной транзакции создаёт задачу (если её нет) и бандл.
	// Заполняет b.ID и b.CreatedAt. Повтор hash — ErrConflict.
	Create(ctx context.Context, b *model.Bundle) error
	// GetByHash возвращает бандл по внешнему идентификатору или ErrNotFound.
	GetByHash(ctx context.Context, hash string) (*model.Bundle, error)
	// ListByIssue возвращает бандлы задачи, новые первыми.
	ListByIssue(ctx context.Context, issueCode string) ([]*model.Bundle, error)
	// UpdateStatus меняет статус бандла.
	UpdateStatus(ctx context.Context, id string, status model.BundleStatus) error
}

type bundleRepo struct {
	db DBTX
}

// NewBundleRepository создаёт репозиторий бандлов.
func NewBundleRepository(db DBTX) BundleRepository {
	return &bundleRepo{db: db}
}

func (r *bundleRepo) Create(ctx context.Context, b *model.Bundle) error {
	if !b.Status.Valid() {
		return fmt.Errorf("бандл %s, статус %q: %w", b.Hash, b.Status, ErrInvalidStatus)
	}
	return NewTxRunner(r.db).RunInTx(ctx, func(tx pgx.Tx) error {
		if err := NewIssueRepository(tx).EnsureExists(ctx, b.IssueCode); err != nil {
			return err
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO bundles (hash, name, issue_code, size_bytes, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
			b.Hash, b.Name, b.IssueCode, b.SizeBytes, string(b.Status),
		).Scan(&b.ID, &b.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("бандл %s: %w", b.Hash, ErrConflict)
			}
			return dbError("ошибка создания бандла", err)
		}
		return nil
	})
}

func (r *bundleRepo) GetByHash(ctx context.Context, hash string) (*model.Bundle, error) {
	query := fmt.Sprintf(`SELECT %s FROM bundles WHERE hash = $1`, bundleColumns)

	b, err := scanBundle(r.db.QueryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError("ошибка получения бандла", err)
	}
	return b, nil
}

func (r *bundleRepo) ListByIssue(ctx context.Context, issueCode string) ([]*model.Bundle, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM bundles WHERE issue_code = $1 ORDER BY created_at DESC, id`,
		bundleColumns,
	)

	rows, err := r.db.Query(ctx, query, issueCode)
	if err != nil {
		return nil, dbError("ошибка получения бандлов задачи", err)
	}
	defer rows.Close()

	var result []*model.Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, dbError("ошибка сканирования бандла", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("ошибка итерации результатов", err)
	}
	return result, nil
}

func (r *bundleRepo) UpdateStatus(ctx context.Context, id string, status model.BundleStatus) error {
	if !status.Valid() {
		return fmt.Errorf("статус %q: %w", status, ErrInvalidStatus)
	}
	tag, err := r.db.Exec(ctx, `UPDATE bundles SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return dbError("ошибка обновления статуса бандла", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanBundle сканирует одну строку bundles (pgx.Row и pgx.Rows).
func scanBundle(row pgx.Row) (*model.Bundle, error) {
	b := &model.Bundle{}
	var status string
	if err := row.Scan(&b.ID, &b.Hash, &b.Name, &b.IssueCode, &b.SizeBytes, &status, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Status = model.BundleStatus(status)
	return b, nil
}
