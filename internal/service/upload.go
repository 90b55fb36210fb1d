// upload.go — загрузка бандла: задача, бандл и последовательный приём файлов.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/SwartzMss/Rain/internal/domain/model"
	"github.com/SwartzMss/Rain/internal/repository"
	"github.com/SwartzMss/Rain/internal/storage/pathsafe"
)

// UploadRequest — параметры загрузки бандла.
type UploadRequest struct {
	IssueCode string
	// BundleName — отображаемое имя; пустое заменяется исходным именем первого файла
	BundleName string
	// Files — файлы в порядке получения
	Files []UploadedFile
}

// UploadResult — итог загрузки.
type UploadResult struct {
	IssueCode  string
	BundleHash string
	BundleName string
	FileCount  int
	TotalBytes int64
}

// UploadService — приём бандлов.
type UploadService struct {
	bundles  repository.BundleRepository
	ingestor *Ingestor
	logger   *slog.Logger
}

// NewUploadService создаёт сервис загрузки.
func NewUploadService(bundles repository.BundleRepository, ingestor *Ingestor, logger *slog.Logger) *UploadService {
	return &UploadService{
		bundles:  bundles,
		ingestor: ingestor,
		logger:   logger.With(slog.String("component", "upload_service")),
	}
}

// Upload создаёт задачу (если её нет) и бандл, затем принимает файлы
// по одному в порядке req.Files. Ошибка любого файла прерывает загрузку,
// бандл получает статус FAILED. Отмена ctx не прерывает начатую загрузку.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	issueCode := strings.TrimSpace(req.IssueCode)
	if issueCode == "" {
		return nil, validationError("issue_code обязателен")
	}

	files := make([]UploadedFile, 0, len(req.Files))
	var totalBytes int64
	seen := make(map[string]string, len(req.Files))
	for _, f := range req.Files {
		if f.Size == 0 {
			continue
		}
		if f.OriginalName == "" {
			f.OriginalName = pathsafe.DefaultFilename
		}
		name := pathsafe.Filename(f.OriginalName)
		if prev, dup := seen[name]; dup {
			return nil, validationError("файлы %q и %q сохраняются под одним именем %q", prev, f.OriginalName, name)
		}
		seen[name] = f.OriginalName
		files = append(files, f)
		totalBytes += f.Size
	}
	if len(files) == 0 {
		return nil, validationError("не передано ни одного непустого файла")
	}

	bundleName := strings.TrimSpace(req.BundleName)
	if bundleName == "" {
		bundleName = files[0].OriginalName
	}

	ctx = context.WithoutCancel(ctx)

	bundle := &model.Bundle{
		Hash:      strings.ReplaceAll(uuid.NewString(), "-", ""),
		Name:      bundleName,
		IssueCode: issueCode,
		SizeBytes: totalBytes,
		Status:    model.BundleProcessing,
	}
	if err := s.bundles.Create(ctx, bundle); err != nil {
		return nil, repoError("создание бандла", err)
	}

	log := s.logger.With(
		slog.String("issue_code", issueCode),
		slog.String("bundle_hash", bundle.Hash),
	)
	log.Info("Загрузка бандла начата",
		slog.Int("files", len(files)),
		slog.String("size", humanize.IBytes(uint64(totalBytes))),
	)

	ref := BundleRef{ID: bundle.ID, Hash: bundle.Hash}
	for _, f := range files {
		if _, err := s.ingestor.IngestFile(ctx, ref, f); err != nil {
			log.Error("Ошибка приёма файла, бандл помечен как FAILED",
				slog.String("file", f.OriginalName),
				slog.String("error", err.Error()),
			)
			if uerr := s.bundles.UpdateStatus(ctx, bundle.ID, model.BundleFailed); uerr != nil {
				log.Warn("Не удалось обновить статус бандла",
					slog.String("error", uerr.Error()),
				)
			}
			return nil, err
		}
	}

	if err := s.bundles.UpdateStatus(ctx, bundle.ID, model.BundleReady); err != nil {
		return nil, repoError("обновление статуса бандла", err)
	}

	log.Info("Бандл загружен", slog.Int("files", len(files)))

	return &UploadResult{
		IssueCode:  issueCode,
		BundleHash: bundle.Hash,
		BundleName: bundleName,
		FileCount:  len(files),
		TotalBytes: totalBytes,
	}, nil
}
