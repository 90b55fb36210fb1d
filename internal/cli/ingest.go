package cli

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/SwartzMss/Rain/internal/service"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest [flags] FILE...",
		Short: "Загрузить файлы с локального диска как новый бандл",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngest,
	}
	cmd.Flags().StringP("issue", "i", "", "Код задачи (обязательно)")
	cmd.Flags().StringP("name", "n", "", "Имя бандла (по умолчанию имя первого файла)")
	_ = cmd.MarkFlagRequired("issue")

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	issue, _ := cmd.Flags().GetString("issue")
	name, _ := cmd.Flags().GetString("name")

	files, err := localFiles(args)
	if err != nil {
		return err
	}

	cfg, logger, closer, err := bootstrap()
	if err != nil {
		return err
	}
	defer closer.Close()

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.upload.Upload(cmd.Context(), service.UploadRequest{
		IssueCode:  issue,
		BundleName: name,
		Files:      files,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "issue:   %s\nbundle:  %s (%s)\nfiles:   %d\nsize:    %s\n",
		res.IssueCode, res.BundleHash, res.BundleName, res.FileCount, humanize.IBytes(uint64(res.TotalBytes)))
	return nil
}

// localFiles описывает файлы с диска в формате загрузки.
// Директории и отсутствующие пути — ошибка.
func localFiles(paths []string) ([]service.UploadedFile, error) {
	files := make([]service.UploadedFile, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("файл %s: %w", p, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("файл %s: не является обычным файлом", p)
		}

		path := p
		files = append(files, service.UploadedFile{
			OriginalName: filepath.Base(p),
			ContentType:  mime.TypeByExtension(filepath.Ext(p)),
			Size:         info.Size(),
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		})
	}
	return files, nil
}
