package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/SwartzMss/Rain/internal/domain/model"
)

// IssueRepository — доступ к таблице issues.
type IssueRepository interface {
	// EnsureExists создаёт задачу с именем, равным коду, если её ещё нет.
	// Существующая запись не изменяется.
	EnsureExists(ctx context.Context, code string) error
	// GetByCode возвращает задачу по коду или ErrNotFound.
	GetByCode(ctx context.Context, code string) (*model.Issue, error)
}

type issueRepo struct {
	db DBTX
}

// NewIssueRepository создаёт репозиторий задач.
func NewIssueRepository(db DBTX) IssueRepository {
	return &issueRepo{db: db}
}

func (r *issueRepo) EnsureExists(ctx context.Context, code string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO issues (code, name) VALUES ($1, $1) ON CONFLICT (code) DO NOTHING`,
		code,
	)
	if err != nil {
		return dbError("ошибка создания задачи", err)
	}
	return nil
}

func (r *issueRepo) GetByCode(ctx context.Context, code string) (*model.Issue, error) {
	issue := &model.Issue{}
	err := r.db.QueryRow(ctx,
		`SELECT code, name, created_at FROM issues WHERE code = $1`, code,
	).Scan(&issue.Code, &issue.Name, &issue.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError("ошибка получения задачи", err)
	}
	return issue, nil
}
