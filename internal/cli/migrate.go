package cli

import (
	"github.com/spf13/cobra"

	"github.com/SwartzMss/Rain/internal/database"
)

func init() {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции схемы БД",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}
	cmd.Flags().Bool("reset", false, "Удалить схему и применить миграции заново (все данные будут потеряны)")

	RootCmd.AddCommand(cmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	reset, _ := cmd.Flags().GetBool("reset")

	cfg, logger, closer, err := bootstrap()
	if err != nil {
		return err
	}
	defer closer.Close()

	if reset {
		return database.Reset(cfg, logger)
	}
	return database.Migrate(cfg, logger)
}
