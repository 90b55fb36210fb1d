// query.go — чтение дерева узлов, поиск по сегментам и список бандлов задачи.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SwartzMss/Rain/internal/domain/model"
	"github.com/SwartzMss/Rain/internal/repository"
)

// SearchLimit — максимальное количество совпадений в ответе поиска.
const SearchLimit = 50

// Prometheus-метрики поиска.
var (
	searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rb_search_total",
		Help: "Количество поисковых запросов по результату.",
	}, []string{"result"})
	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rb_search_duration_seconds",
		Help:    "Длительность поиска по сегментам.",
		Buckets: prometheus.DefBuckets,
	})
)

// NodeListing — узел и его прямые потомки.
type NodeListing struct {
	// Ref — ссылка, по которой запрошен узел
	Ref      model.NodeRef
	Node     *model.FileNode
	Children []*model.FileNode
}

// SearchHit — одно совпадение поиска.
type SearchHit struct {
	FileID   int64
	Path     string
	Snippet  string
	Timeline *string
	Offset   *int64
}

// SearchResult — результат поиска.
type SearchResult struct {
	// Total — общее количество совпадений, может быть больше len(Hits)
	Total int
	Hits  []SearchHit
}

// IssueBundles — задача и её бандлы, новые первыми.
type IssueBundles struct {
	Issue   *model.Issue
	Bundles []*model.Bundle
}

// QueryService — запросы к дереву и сегментам бандлов.
type QueryService struct {
	issues   repository.IssueRepository
	bundles  repository.BundleRepository
	nodes    repository.FileNodeRepository
	segments repository.SegmentRepository
	cache    *BundleCache
	logger   *slog.Logger
}

// NewQueryService создаёт сервис запросов.
func NewQueryService(
	issues repository.IssueRepository,
	bundles repository.BundleRepository,
	nodes repository.FileNodeRepository,
	segments repository.SegmentRepository,
	cache *BundleCache,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		issues:   issues,
		bundles:  bundles,
		nodes:    nodes,
		segments: segments,
		cache:    cache,
		logger:   logger.With(slog.String("component", "query_service")),
	}
}

// GetNode возвращает узел бандла и его потомков.
// Корень бандла синтезируется: директория без размера с именем "<hash>_root".
func (s *QueryService) GetNode(ctx context.Context, bundleHash string, ref model.NodeRef) (*NodeListing, error) {
	bundle, err := s.bundle(ctx, bundleHash)
	if err != nil {
		return nil, err
	}

	var (
		node     *model.FileNode
		parentID *int64
	)
	if ref.IsRoot() {
		node = rootNode(bundle)
	} else {
		id, _ := ref.ID()
		node, err = s.nodes.GetByID(ctx, bundle.ID, id)
		if err != nil {
			return nil, repoError("получение узла", err)
		}
		parentID = &node.ID
	}

	children, err := s.nodes.ListChildren(ctx, bundle.ID, parentID)
	if err != nil {
		return nil, repoError("получение дочерних узлов", err)
	}

	return &NodeListing{Ref: ref, Node: node, Children: children}, nil
}

// rootNode — синтетический корень бандла.
func rootNode(b *model.Bundle) *model.FileNode {
	return &model.FileNode{
		BundleID: b.ID,
		Name:     b.Hash + "_root",
		Path:     "/" + b.Hash,
		IsDir:    true,
		Status:   string(b.Status),
		Meta: model.NodeMeta{Extra: map[string]any{
			"bundle_hash": b.Hash,
			"bundle_name": b.Name,
		}},
		CreatedAt: b.CreatedAt,
	}
}

// Search ищет подстроку query (без учёта регистра) в сегментах бандла.
// Пустой timeline — без фильтра по временной линии.
func (s *QueryService) Search(ctx context.Context, bundleHash, query, timeline string) (*SearchResult, error) {
	start := time.Now()

	q := strings.TrimSpace(query)
	if q == "" {
		searchTotal.WithLabelValues("invalid").Inc()
		return nil, validationError("поисковый запрос не может быть пустым")
	}

	bundle, err := s.bundle(ctx, bundleHash)
	if err != nil {
		searchTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	params := repository.SegmentSearchParams{
		BundleID: bundle.ID,
		Query:    q,
		Limit:    SearchLimit,
	}
	if tl := strings.TrimSpace(timeline); tl != "" {
		params.Timeline = &tl
	}

	hits, total, err := s.segments.Search(ctx, params)
	if err != nil {
		searchTotal.WithLabelValues("error").Inc()
		return nil, repoError("поиск по сегментам", err)
	}

	res := &SearchResult{Total: total, Hits: make([]SearchHit, 0, len(hits))}
	for _, h := range hits {
		res.Hits = append(res.Hits, SearchHit{
			FileID:   h.FileID,
			Path:     h.Path,
			Snippet:  BuildSnippet(h.Content, q),
			Timeline: h.Timeline,
			Offset:   h.Offset,
		})
	}

	searchTotal.WithLabelValues("ok").Inc()
	searchDuration.Observe(time.Since(start).Seconds())

	s.logger.Debug("Поиск выполнен",
		slog.String("bundle_hash", bundleHash),
		slog.Int("total", total),
		slog.Int("returned", len(res.Hits)),
	)
	return res, nil
}

// IssueBundles возвращает задачу и её бандлы.
func (s *QueryService) IssueBundles(ctx context.Context, code string) (*IssueBundles, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, validationError("код задачи не может быть пустым")
	}

	issue, err := s.issues.GetByCode(ctx, code)
	if err != nil {
		return nil, repoError("получение задачи", err)
	}

	bundles, err := s.bundles.ListByIssue(ctx, code)
	if err != nil {
		return nil, repoError("получение бандлов задачи", err)
	}

	return &IssueBundles{Issue: issue, Bundles: bundles}, nil
}

// bundle возвращает бандл по hash: сначала из кэша, затем из БД.
func (s *QueryService) bundle(ctx context.Context, hash string) (*model.Bundle, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	if b, ok := s.cache.Get(hash); ok {
		return b, nil
	}

	b, err := s.bundles.GetByHash(ctx, hash)
	if err != nil {
		return nil, repoError("получение бандла", err)
	}
	s.cache.Set(b)
	return b, nil
}
