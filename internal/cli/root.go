// Пакет cli — команды rain-backend: serve, migrate, ingest.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/SwartzMss/Rain/internal/config"
)

// RootCmd — корневая команда.
var RootCmd = &cobra.Command{
	Use:          "rain-backend",
	Short:        "Приём и просмотр бандлов логов",
	Long:         "Rain backend принимает бандлы логов (файлы и zip-архивы), строит дерево файлов и индекс строк для поиска.",
	Version:      config.Version,
	SilenceUsage: true,
}

// bootstrap загружает конфигурацию и настраивает логгер.
// Возвращённый io.Closer закрывает файл лога.
func bootstrap() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	logger, closer, err := config.SetupLogger(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ошибка настройки логгера: %w", err)
	}
	return cfg, logger, closer, nil
}
