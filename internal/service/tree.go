// tree.go — построение дерева узлов по распакованной директории.
package service

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/SwartzMss/Rain/internal/domain/model"
	"github.com/SwartzMss/Rain/internal/repository"
	"github.com/SwartzMss/Rain/internal/storage/filestore"
)

// TreeParams — параметры построения поддерева.
type TreeParams struct {
	BundleID string
	// ParentID — узел, под которым строится поддерево (узел директории распаковки)
	ParentID int64
	// RootDir — полный путь обходимой директории
	RootDir string
	// RelRoot — логический путь RootDir без ведущего '/', например "<hash>/app.zip_extracted"
	RelRoot string
}

// TreeStats — итог построения поддерева.
type TreeStats struct {
	Dirs     int
	Files    int
	Segments int
}

// walkEntry — запись, найденная при обходе директории.
type walkEntry struct {
	rel  string
	full string
	info fs.FileInfo
}

// TreeBuilder создаёт узлы для всех записей директории
// и индексирует текстовые файлы.
type TreeBuilder struct {
	store   *filestore.FileStore
	nodes   repository.FileNodeRepository
	indexer *TextIndexer
	logger  *slog.Logger
}

// NewTreeBuilder создаёт построитель дерева.
func NewTreeBuilder(store *filestore.FileStore, nodes repository.FileNodeRepository, indexer *TextIndexer, logger *slog.Logger) *TreeBuilder {
	return &TreeBuilder{
		store:   store,
		nodes:   nodes,
		indexer: indexer,
		logger:  logger.With(slog.String("component", "tree_builder")),
	}
}

// Build обходит p.RootDir (сама директория не включается) и создаёт узлы.
// Обход лексикографический, родители раньше потомков. Если родитель записи
// не найден, она привязывается к p.ParentID.
func (tb *TreeBuilder) Build(ctx context.Context, p TreeParams) (*TreeStats, error) {
	entries, err := tb.collect(p.RootDir)
	if err != nil {
		return nil, err
	}

	ids := map[string]int64{"": p.ParentID}
	stats := &TreeStats{}

	for _, e := range entries {
		parentRel := path.Dir(e.rel)
		if parentRel == "." {
			parentRel = ""
		}
		parentID, ok := ids[parentRel]
		if !ok {
			tb.logger.Warn("Родитель записи не найден, узел привязан к корню распаковки",
				slog.String("entry", e.rel),
			)
			parentID = p.ParentID
		}

		storagePath, err := tb.store.StoragePath(e.full)
		if err != nil {
			return stats, fmt.Errorf("%w: %w", ErrStorageIO, err)
		}

		node := model.NewFileNode{
			BundleID: p.BundleID,
			ParentID: &parentID,
			Name:     path.Base(e.rel),
			Path:     "/" + p.RelRoot + "/" + e.rel,
			IsDir:    e.info.IsDir(),
		}
		if node.IsDir {
			node.Meta = model.ExtractedDirMeta("", storagePath)
		} else {
			size := e.info.Size()
			node.SizeBytes = &size
			node.Meta = model.ExtractedFileMeta(storagePath)
		}

		id, err := tb.nodes.Create(ctx, node)
		if err != nil {
			return stats, repoError(fmt.Sprintf("создание узла %s", node.Path), err)
		}

		if node.IsDir {
			ids[e.rel] = id
			stats.Dirs++
			continue
		}
		stats.Files++

		if e.info.Mode().IsRegular() && IsTextLike(node.Name, "") {
			n, err := tb.indexer.Index(ctx, p.BundleID, id, e.full)
			if err != nil {
				return stats, err
			}
			stats.Segments += n
		}
	}

	return stats, nil
}

// collect возвращает записи директории в порядке обхода afero.Walk.
func (tb *TreeBuilder) collect(root string) ([]walkEntry, error) {
	var entries []walkEntry
	err := afero.Walk(tb.store.Fs(), root, func(full string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, full)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		entries = append(entries, walkEntry{rel: filepath.ToSlash(rel), full: full, info: info})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: обход %s: %w", ErrStorageIO, root, err)
	}
	return entries, nil
}
