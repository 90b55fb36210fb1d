package service

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/SwartzMss/Rain/internal/domain/model"
	"github.com/SwartzMss/Rain/internal/repository"
	"github.com/SwartzMss/Rain/internal/storage/filestore"
	"github.com/SwartzMss/Rain/internal/worker"
)

// testLogger — логгер, пишущий только ошибки.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Mock IssueRepository ---

type mockIssueRepo struct {
	ensureExistsFn func(ctx context.Context, code string) error
	getByCodeFn    func(ctx context.Context, code string) (*model.Issue, error)
}

func (m *mockIssueRepo) EnsureExists(ctx context.Context, code string) error {
	if m.ensureExistsFn != nil {
		return m.ensureExistsFn(ctx, code)
	}
	return nil
}

func (m *mockIssueRepo) GetByCode(ctx context.Context, code string) (*model.Issue, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, code)
	}
	return nil, repository.ErrNotFound
}

// --- Mock BundleRepository ---

type mockBundleRepo struct {
	createFn       func(ctx context.Context, b *model.Bundle) error
	getByHashFn    func(ctx context.Context, hash string) (*model.Bundle, error)
	listByIssueFn  func(ctx context.Context, issueCode string) ([]*model.Bundle, error)
	updateStatusFn func(ctx context.Context, id string, status model.BundleStatus) error
}

func (m *mockBundleRepo) Create(ctx context.Context, b *model.Bundle) error {
	if m.createFn != nil {
		return m.createFn(ctx, b)
	}
	b.ID = uuid.NewString()
	return nil
}

func (m *mockBundleRepo) GetByHash(ctx context.Context, hash string) (*model.Bundle, error) {
	if m.getByHashFn != nil {
		return m.getByHashFn(ctx, hash)
	}
	return nil, repository.ErrNotFound
}

func (m *mockBundleRepo) ListByIssue(ctx context.Context, issueCode string) ([]*model.Bundle, error) {
	if m.listByIssueFn != nil {
		return m.listByIssueFn(ctx, issueCode)
	}
	return []*model.Bundle{}, nil
}

func (m *mockBundleRepo) UpdateStatus(ctx context.Context, id string, status model.BundleStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

// --- In-memory FileNodeRepository ---

// memNodeRepo хранит узлы в памяти и проверяет те же ограничения, что и БД:
// родитель из того же бандла, уникальный путь в бандле.
type memNodeRepo struct {
	mu       sync.Mutex
	nextID   int64
	nodes    []*model.FileNode
	createFn func(ctx context.Context, n model.NewFileNode) (int64, error)
}

func (m *memNodeRepo) Create(ctx context.Context, n model.NewFileNode) (int64, error) {
	if m.createFn != nil {
		return m.createFn(ctx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.nodes {
		if existing.BundleID == n.BundleID && existing.Path == n.Path {
			return 0, repository.ErrConflict
		}
	}
	if n.ParentID != nil {
		if p := m.find(n.BundleID, *n.ParentID); p == nil {
			return 0, repository.ErrInvalidParent
		}
	}

	m.nextID++
	m.nodes = append(m.nodes, &model.FileNode{
		ID:        m.nextID,
		BundleID:  n.BundleID,
		ParentID:  n.ParentID,
		Name:      n.Name,
		Path:      n.Path,
		IsDir:     n.IsDir,
		SizeBytes: n.SizeBytes,
		MimeType:  n.MimeType,
		Status:    model.NodeStatusReady,
		Meta:      n.Meta,
	})
	return m.nextID, nil
}

func (m *memNodeRepo) GetByID(_ context.Context, bundleID string, id int64) (*model.FileNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := m.find(bundleID, id); n != nil {
		return n, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memNodeRepo) ListChildren(_ context.Context, bundleID string, parentID *int64) ([]*model.FileNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*model.FileNode{}
	for _, n := range m.nodes {
		if n.BundleID != bundleID {
			continue
		}
		if (parentID == nil && n.ParentID == nil) ||
			(parentID != nil && n.ParentID != nil && *parentID == *n.ParentID) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *memNodeRepo) find(bundleID string, id int64) *model.FileNode {
	for _, n := range m.nodes {
		if n.BundleID == bundleID && n.ID == id {
			return n
		}
	}
	return nil
}

// byPath возвращает узел по логическому пути.
func (m *memNodeRepo) byPath(p string) *model.FileNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.nodes {
		if n.Path == p {
			return n
		}
	}
	return nil
}

// --- In-memory SegmentRepository ---

type memSegmentRepo struct {
	mu       sync.Mutex
	segments []model.LogSegment
	insertFn func(ctx context.Context, segments []model.LogSegment) (int64, error)
	searchFn func(ctx context.Context, params repository.SegmentSearchParams) ([]model.SegmentHit, int, error)
}

func (m *memSegmentRepo) InsertBatch(ctx context.Context, segments []model.LogSegment) (int64, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, segments)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments = append(m.segments, segments...)
	return int64(len(segments)), nil
}

func (m *memSegmentRepo) Search(ctx context.Context, params repository.SegmentSearchParams) ([]model.SegmentHit, int, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, params)
	}
	return []model.SegmentHit{}, 0, nil
}

// forFile возвращает сегменты одного узла.
func (m *memSegmentRepo) forFile(fileID int64) []model.LogSegment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LogSegment
	for _, s := range m.segments {
		if s.FileID == fileID {
			out = append(out, s)
		}
	}
	return out
}

// --- Окружение приёма файлов ---

type ingestEnv struct {
	fs       afero.Fs
	store    *filestore.FileStore
	nodes    *memNodeRepo
	segments *memSegmentRepo
	ingestor *Ingestor
}

// newIngestEnv создаёт Ingestor поверх MemMapFs с корнем /data
// и пулом распаковки из одного воркера.
func newIngestEnv(t *testing.T) *ingestEnv {
	t.Helper()

	fsys := afero.NewMemMapFs()
	store, err := filestore.New(fsys, "/data")
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}

	pool := worker.New("test", 1, testLogger())
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	env := &ingestEnv{
		fs:       fsys,
		store:    store,
		nodes:    &memNodeRepo{},
		segments: &memSegmentRepo{},
	}
	env.ingestor = NewIngestor(store, env.nodes, env.segments, pool, testLogger())
	return env
}
