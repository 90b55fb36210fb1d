package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SwartzMss/Rain/internal/domain/model"
)

// SegmentSearchParams — параметры поиска по сегментам бандла.
type SegmentSearchParams struct {
	// BundleID — внутренний id бандла
	BundleID string
	// Query — подстрока (без учёта регистра), уже без пробелов по краям
	Query string
	// Timeline — фильтр по тегу временной линии, nil = без фильтра
	Timeline *string
	// Limit — максимальное количество возвращаемых сегментов
	Limit int
}

// SegmentRepository — доступ к таблице log_segments.
type SegmentRepository interface {
	// InsertBatch сохраняет сегменты одного файла через COPY.
	// Возвращает количество вставленных строк.
	InsertBatch(ctx context.Context, segments []model.LogSegment) (int64, error)
	// Search возвращает до Limit совпадений (offset NULLS FIRST, затем порядок вставки)
	// и общее количество совпадений.
	Search(ctx context.Context, params SegmentSearchParams) ([]model.SegmentHit, int, error)
}

type segmentRepo struct {
	db DBTX
}

// NewSegmentRepository создаёт репозиторий сегментов.
func NewSegmentRepository(db DBTX) SegmentRepository {
	return &segmentRepo{db: db}
}

// segmentCopyColumns — столбцы, заполняемые через COPY.
var segmentCopyColumns = []string{"bundle_id", "file_id", "timeline", "content", "line_offset"}

func (r *segmentRepo) InsertBatch(ctx context.Context, segments []model.LogSegment) (int64, error) {
	if len(segments) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(segments))
	for _, s := range segments {
		// COPY работает в бинарном формате: UUID передаём типизированным
		bundleID, err := uuid.Parse(s.BundleID)
		if err != nil {
			return 0, fmt.Errorf("некорректный bundle_id %q: %w", s.BundleID, err)
		}
		timeline := s.Timeline
		if timeline == "" {
			timeline = model.DefaultTimeline
		}
		rows = append(rows, []any{bundleID, s.FileID, timeline, s.Content, s.Offset})
	}

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"log_segments"}, segmentCopyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("сегменты файла %d: %w", segments[0].FileID, ErrInvalidParent)
		}
		return 0, dbError("ошибка вставки сегментов", err)
	}
	return n, nil
}

func (r *segmentRepo) Search(ctx context.Context, params SegmentSearchParams) ([]model.SegmentHit, int, error) {
	where, args := buildSegmentWhere(params)

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM log_segments ls %s`, where)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, dbError("ошибка подсчёта сегментов", err)
	}
	if total == 0 {
		return []model.SegmentHit{}, 0, nil
	}

	dataQuery := fmt.Sprintf(`
		SELECT ls.file_id, f.path, ls.timeline, ls.line_offset, ls.content
		FROM log_segments ls
		JOIN files f ON f.id = ls.file_id
		%s
		ORDER BY ls.line_offset ASC NULLS FIRST, ls.id ASC
		LIMIT $%d`, where, len(args)+1)
	args = append(args, params.Limit)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, dbError("ошибка поиска сегментов", err)
	}
	defer rows.Close()

	hits := make([]model.SegmentHit, 0, min(total, params.Limit))
	for rows.Next() {
		var h model.SegmentHit
		if err := rows.Scan(&h.FileID, &h.Path, &h.Timeline, &h.Offset, &h.Content); err != nil {
			return nil, 0, dbError("ошибка сканирования сегмента", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dbError("ошибка итерации результатов", err)
	}

	return hits, total, nil
}

// buildSegmentWhere строит WHERE-условие поиска и аргументы.
// Поиск — подстрока без учёта регистра (ILIKE), спецсимволы шаблона экранируются.
func buildSegmentWhere(params SegmentSearchParams) (whereClause string, args []any) {
	conditions := []string{"ls.bundle_id = $1", `ls.content ILIKE $2 ESCAPE '\'`}
	args = []any{params.BundleID, "%" + escapeLike(params.Query) + "%"}

	if params.Timeline != nil && *params.Timeline != "" {
		args = append(args, *params.Timeline)
		conditions = append(conditions, fmt.Sprintf("ls.timeline = $%d", len(args)))
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// likeEscaper экранирует спецсимволы LIKE: обратный слеш, '%' и '_'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
