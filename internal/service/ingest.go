// ingest.go — приём одного загруженного файла в бандл.
//
// Порядок для файла:
//  1. директория бандла <data-root>/<hash>;
//  2. запись байтов в <hash>/<санитизированное имя>;
//  3. узел верхнего уровня с исходным именем и путём на диске в метаданных;
//  4. индексация, если файл текстовый;
//  5. для .zip: распаковка в <имя>_extracted на пуле воркеров, узел директории
//     распаковки (родитель — узел архива) и дерево по распакованным файлам.
//
// Узел создаётся после записи соответствующих данных на диск.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SwartzMss/Rain/internal/domain/model"
	"github.com/SwartzMss/Rain/internal/repository"
	"github.com/SwartzMss/Rain/internal/storage/archive"
	"github.com/SwartzMss/Rain/internal/storage/filestore"
	"github.com/SwartzMss/Rain/internal/storage/pathsafe"
)

// extractedSuffix — суффикс директории распаковки архива.
const extractedSuffix = "_extracted"

// Prometheus-метрики приёма.
var (
	ingestFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rb_ingest_files_total",
		Help: "Количество принятых файлов по виду (uploaded_file, extracted_file).",
	}, []string{"kind"})
	ingestBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rb_ingest_bytes_total",
		Help: "Объём загруженных файлов в байтах.",
	})
	archiveExtractDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rb_archive_extract_duration_seconds",
		Help:    "Длительность распаковки архива, включая ожидание воркера.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})
)

// Offloader — исполнитель тяжёлых задач с ожиданием результата
// (реализуется worker.Pool).
type Offloader interface {
	Submit(ctx context.Context, fn func() error) error
}

// BundleRef — бандл, в который принимается файл.
type BundleRef struct {
	// ID — внутренний id бандла
	ID string
	// Hash — внешний идентификатор, имя директории бандла
	Hash string
}

// UploadedFile — один загруженный файл.
type UploadedFile struct {
	// OriginalName — имя от клиента (недоверенное)
	OriginalName string
	// ContentType — объявленный тип содержимого, может быть пустым
	ContentType string
	// Size — объявленный размер; файлы нулевого размера пропускаются при загрузке
	Size int64
	// Open открывает содержимое файла
	Open func() (io.ReadCloser, error)
}

// IngestResult — итог приёма файла.
type IngestResult struct {
	// NodeID — id узла верхнего уровня
	NodeID int64
	// Name — санитизированное имя на диске
	Name string
	// Size — фактически записанный размер
	Size int64
	// Segments — сегменты самого файла
	Segments int
	// Extracted — итог построения дерева для архива, nil для прочих файлов
	Extracted *TreeStats
}

// Ingestor принимает файлы бандла.
type Ingestor struct {
	store    *filestore.FileStore
	nodes    repository.FileNodeRepository
	indexer  *TextIndexer
	tree     *TreeBuilder
	expander *archive.Expander
	offload  Offloader
	logger   *slog.Logger
}

// NewIngestor создаёт Ingestor. Распаковка архивов выполняется через offload.
func NewIngestor(
	store *filestore.FileStore,
	nodes repository.FileNodeRepository,
	segments repository.SegmentRepository,
	offload Offloader,
	logger *slog.Logger,
) *Ingestor {
	indexer := NewTextIndexer(store, segments, logger)
	return &Ingestor{
		store:    store,
		nodes:    nodes,
		indexer:  indexer,
		tree:     NewTreeBuilder(store, nodes, indexer, logger),
		expander: archive.New(store.Fs()),
		offload:  offload,
		logger:   logger.With(slog.String("component", "ingestor")),
	}
}

// IngestFile принимает один файл в бандл b.
func (ing *Ingestor) IngestFile(ctx context.Context, b BundleRef, f UploadedFile) (*IngestResult, error) {
	name := pathsafe.Filename(f.OriginalName)
	originalName := f.OriginalName
	if originalName == "" {
		originalName = name
	}

	if _, err := ing.store.EnsureBundleDir(b.Hash); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageIO, err)
	}

	if ing.store.Exists(b.Hash + "/" + name) {
		return nil, validationError("имя %s уже занято в бандле", name)
	}

	saved, err := ing.save(b.Hash, name, f)
	if err != nil {
		return nil, err
	}
	ingestBytesTotal.Add(float64(saved.Size))

	size := saved.Size
	node := model.NewFileNode{
		BundleID:  b.ID,
		Name:      name,
		Path:      "/" + b.Hash + "/" + name,
		SizeBytes: &size,
		Meta:      model.UploadedFileMeta(originalName, saved.StoragePath),
	}
	if ct := strings.TrimSpace(f.ContentType); ct != "" {
		node.MimeType = &ct
	}

	nodeID, err := ing.nodes.Create(ctx, node)
	if err != nil {
		return nil, repoError(fmt.Sprintf("создание узла %s", node.Path), err)
	}
	ingestFilesTotal.WithLabelValues(string(model.MetaUploadedFile)).Inc()

	res := &IngestResult{NodeID: nodeID, Name: name, Size: saved.Size}

	if IsTextLike(name, f.ContentType) {
		n, err := ing.indexer.Index(ctx, b.ID, nodeID, saved.FullPath)
		if err != nil {
			return nil, err
		}
		res.Segments = n
	}

	if strings.EqualFold(path.Ext(name), ".zip") {
		stats, err := ing.expand(ctx, b, name, nodeID, saved.FullPath)
		if err != nil {
			return nil, err
		}
		res.Extracted = stats
	}

	ing.logger.Info("Файл принят",
		slog.String("bundle_hash", b.Hash),
		slog.String("name", name),
		slog.Int64("node_id", nodeID),
		slog.String("size", humanize.IBytes(uint64(saved.Size))),
		slog.Int("segments", res.Segments),
	)
	return res, nil
}

// save записывает содержимое файла в директорию бандла.
func (ing *Ingestor) save(hash, name string, f UploadedFile) (*filestore.SaveResult, error) {
	if f.Open == nil {
		return nil, fmt.Errorf("%w: файл %s без содержимого", ErrValidation, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: открытие %s: %w", ErrStorageIO, name, err)
	}
	defer rc.Close()

	saved, err := ing.store.SaveFile(hash, name, rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	return saved, nil
}

// expand распаковывает архив и строит дерево распакованных файлов.
func (ing *Ingestor) expand(ctx context.Context, b BundleRef, name string, zipNodeID int64, zipPath string) (*TreeStats, error) {
	dirName := name + extractedSuffix
	relRoot := b.Hash + "/" + dirName
	if ing.store.Exists(relRoot) {
		return nil, validationError("имя %s для распаковки %s уже занято в бандле", dirName, name)
	}

	dest, err := ing.store.EnsureDir(relRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageIO, err)
	}

	start := time.Now()
	var extracted *archive.Result
	err = ing.offload.Submit(ctx, func() error {
		var extractErr error
		extracted, extractErr = ing.expander.Extract(zipPath, dest)
		return extractErr
	})
	archiveExtractDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, archive.ErrBadArchive) {
			return nil, fmt.Errorf("%w: %s: %w", ErrBadArchive, name, err)
		}
		return nil, fmt.Errorf("%w: распаковка %s: %w", ErrStorageIO, name, err)
	}

	dirNodeID, err := ing.nodes.Create(ctx, model.NewFileNode{
		BundleID: b.ID,
		ParentID: &zipNodeID,
		Name:     dirName,
		Path:     "/" + relRoot,
		IsDir:    true,
		Meta:     model.ExtractedDirMeta(name, relRoot),
	})
	if err != nil {
		return nil, repoError(fmt.Sprintf("создание узла /%s", relRoot), err)
	}

	stats, err := ing.tree.Build(ctx, TreeParams{
		BundleID: b.ID,
		ParentID: dirNodeID,
		RootDir:  dest,
		RelRoot:  relRoot,
	})
	if err != nil {
		return nil, err
	}
	ingestFilesTotal.WithLabelValues(string(model.MetaExtractedFile)).Add(float64(stats.Files))

	ing.logger.Info("Архив распакован",
		slog.String("bundle_hash", b.Hash),
		slog.String("archive", name),
		slog.Int("files", stats.Files),
		slog.Int("dirs", stats.Dirs),
		slog.Int("skipped", extracted.Skipped),
		slog.String("bytes", humanize.IBytes(uint64(extracted.Bytes))),
		slog.Duration("duration", time.Since(start)),
	)
	return stats, nil
}
