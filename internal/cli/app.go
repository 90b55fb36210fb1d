package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SwartzMss/Rain/internal/config"
	"github.com/SwartzMss/Rain/internal/database"
	"github.com/SwartzMss/Rain/internal/repository"
	"github.com/SwartzMss/Rain/internal/service"
	"github.com/SwartzMss/Rain/internal/storage/filestore"
	"github.com/SwartzMss/Rain/internal/worker"
)

// app — собранный пайплайн приёма и запросов поверх PostgreSQL и корня данных.
type app struct {
	pool    *pgxpool.Pool
	workers *worker.Pool
	upload  *service.UploadService
	query   *service.QueryService
}

// newApp подключается к PostgreSQL, открывает корень данных и собирает сервисы.
// Вызывающий обязан вызвать Close.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := filestore.NewOS(cfg.DataRoot)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка инициализации корня данных %s: %w", cfg.DataRoot, err)
	}
	logger.Info("Корень данных открыт", slog.String("path", store.Root()))

	workers := worker.New("extract", cfg.ExtractWorkers, logger)
	workers.Start(ctx)

	issueRepo := repository.NewIssueRepository(pool)
	bundleRepo := repository.NewBundleRepository(pool)
	nodeRepo := repository.NewFileNodeRepository(pool)
	segmentRepo := repository.NewSegmentRepository(pool)

	ingestor := service.NewIngestor(store, nodeRepo, segmentRepo, workers, logger)
	cache := service.NewBundleCache(cfg.BundleCacheSize, cfg.BundleCacheTTL)

	return &app{
		pool:    pool,
		workers: workers,
		upload:  service.NewUploadService(bundleRepo, ingestor, logger),
		query:   service.NewQueryService(issueRepo, bundleRepo, nodeRepo, segmentRepo, cache, logger),
	}, nil
}

// Close останавливает воркеры и закрывает пул подключений.
func (a *app) Close() {
	a.workers.Stop()
	a.pool.Close()
}
