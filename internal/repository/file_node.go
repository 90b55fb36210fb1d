package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SwartzMss/Rain/internal/domain/model"
)

// fileNodeColumns — список столбцов таблицы files для SELECT-запросов.
const fileNodeColumns = `id, bundle_id, parent_id, name, path, is_dir,
	size_bytes, mime_type, status, meta, created_at`

// FileNodeRepository — доступ к дереву узлов (таблица files).
type FileNodeRepository interface {
	// Create вставляет узел и возвращает его id.
	// Родитель из другого бандла или несуществующий — ErrInvalidParent,
	// повтор пути в бандле — ErrConflict.
	Create(ctx context.Context, n model.NewFileNode) (int64, error)
	// GetByID возвращает узел бандла или ErrNotFound.
	GetByID(ctx context.Context, bundleID string, id int64) (*model.FileNode, error)
	// ListChildren возвращает прямых потомков: parentID=nil — узлы верхнего уровня.
	// Порядок: сначала директории, затем по имени.
	ListChildren(ctx context.Context, bundleID string, parentID *int64) ([]*model.FileNode, error)
}

type fileNodeRepo struct {
	db DBTX
}

// NewFileNodeRepository создаёт репозиторий узлов.
func NewFileNodeRepository(db DBTX) FileNodeRepository {
	return &fileNodeRepo{db: db}
}

func (r *fileNodeRepo) Create(ctx context.Context, n model.NewFileNode) (int64, error) {
	if n.IsDir && n.SizeBytes != nil {
		return 0, fmt.Errorf("узел %s: у директории не может быть размера", n.Path)
	}

	meta, err := json.Marshal(n.Meta)
	if err != nil {
		return 0, fmt.Errorf("ошибка сериализации метаданных узла: %w", err)
	}

	var id int64
	err = r.db.QueryRow(ctx, `
		INSERT INTO files (bundle_id, parent_id, name, path, is_dir, size_bytes, mime_type, status, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		n.BundleID, n.ParentID, n.Name, n.Path, n.IsDir, n.SizeBytes, n.MimeType,
		model.NodeStatusReady, meta,
	).Scan(&id)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return 0, fmt.Errorf("узел %s: %w", n.Path, ErrConflict)
		case isForeignKeyViolation(err):
			return 0, fmt.Errorf("узел %s: %w", n.Path, ErrInvalidParent)
		}
		return 0, dbError("ошибка создания узла", err)
	}
	return id, nil
}

func (r *fileNodeRepo) GetByID(ctx context.Context, bundleID string, id int64) (*model.FileNode, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE bundle_id = $1 AND id = $2`, fileNodeColumns)

	n, err := scanFileNode(r.db.QueryRow(ctx, query, bundleID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError("ошибка получения узла", err)
	}
	return n, nil
}

func (r *fileNodeRepo) ListChildren(ctx context.Context, bundleID string, parentID *int64) ([]*model.FileNode, error) {
	// Имя сравнивается побайтово (COLLATE "C"), порядок не зависит от локали БД
	where := "bundle_id = $1 AND parent_id IS NULL"
	args := []any{bundleID}
	if parentID != nil {
		where = "bundle_id = $1 AND parent_id = $2"
		args = append(args, *parentID)
	}
	query := fmt.Sprintf(`
		SELECT %s FROM files
		WHERE %s
		ORDER BY is_dir DESC, name COLLATE "C" ASC, id ASC`, fileNodeColumns, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("ошибка получения дочерних узлов", err)
	}
	defer rows.Close()

	result := make([]*model.FileNode, 0)
	for rows.Next() {
		n, err := scanFileNode(rows)
		if err != nil {
			return nil, dbError("ошибка сканирования узла", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("ошибка итерации результатов", err)
	}
	return result, nil
}

// scanFileNode сканирует одну строку files.
func scanFileNode(row pgx.Row) (*model.FileNode, error) {
	n := &model.FileNode{}
	var status *string
	var meta []byte
	if err := row.Scan(
		&n.ID, &n.BundleID, &n.ParentID, &n.Name, &n.Path, &n.IsDir,
		&n.SizeBytes, &n.MimeType, &status, &meta, &n.CreatedAt,
	); err != nil {
		return nil, err
	}
	if status != nil {
		n.Status = *status
	}
	if len(meta) > 0 && string(meta) != "null" {
		if err := json.Unmarshal(meta, &n.Meta); err != nil {
			return nil, err
		}
	}
	return n, nil
}
