package cli

import (
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/SwartzMss/Rain/internal/api/handlers"
	"github.com/SwartzMss/Rain/internal/api/middleware"
	"github.com/SwartzMss/Rain/internal/config"
	"github.com/SwartzMss/Rain/internal/database"
	"github.com/SwartzMss/Rain/internal/server"
	"github.com/SwartzMss/Rain/internal/service"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// 1. Конфигурация и логгер
	cfg, logger, closer, err := bootstrap()
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.Info("Rain backend запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)
	if os.Getenv("RB_DEPHEALTH_GROUP") == "" {
		logger.Warn("RB_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 2. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return err
	}

	// 3. PostgreSQL, корень данных, воркеры и сервисы
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	pgDB := stdlib.OpenDBFromPool(a.pool)
	defer pgDB.Close()

	// 4. topologymetrics (опционально, ошибки не блокируют запуск)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"rain-backend",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		defer dephealthSvc.Stop()
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 5. Обработчики API
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(a.pool))
	apiHandler := handlers.NewAPIHandler(a.upload, a.query, healthHandler, cfg.MaxUploadSize, logger)

	// 6. HTTP-сервер (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, apiHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Rain backend остановлен")
	return nil
}
