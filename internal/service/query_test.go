package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SwartzMss/Rain/internal/domain/model"
	"github.com/SwartzMss/Rain/internal/repository"
)

// newQueryFixture создаёт QueryService с одним бандлом "h1" (READY)
// и деревом узлов в памяти.
func newQueryFixture(t *testing.T) (*QueryService, *mockBundleRepo, *memNodeRepo, *memSegmentRepo) {
	t.Helper()

	bundle := &model.Bundle{
		ID:        "bundle-1",
		Hash:      "h1",
		Name:      "nightly",
		IssueCode: "ISSUE-1",
		Status:    model.BundleReady,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	bundles := &mockBundleRepo{
		getByHashFn: func(_ context.Context, hash string) (*model.Bundle, error) {
			if hash == bundle.Hash {
				copied := *bundle
				return &copied, nil
			}
			return nil, repository.ErrNotFound
		},
	}
	nodes := &memNodeRepo{}
	segments := &memSegmentRepo{}

	svc := NewQueryService(&mockIssueRepo{}, bundles, nodes, segments,
		NewBundleCache(100, time.Minute), testLogger())
	return svc, bundles, nodes, segments
}

func mustCreate(t *testing.T, nodes *memNodeRepo, n model.NewFileNode) int64 {
	t.Helper()
	id, err := nodes.Create(context.Background(), n)
	if err != nil {
		t.Fatalf("Create(%s): %v", n.Path, err)
	}
	return id
}

// TestQueryService_GetNode_Root — корень синтезируется, потомки верхнего
// уровня: сначала директории, затем по имени.
func TestQueryService_GetNode_Root(t *testing.T) {
	svc, _, nodes, _ := newQueryFixture(t)

	size := int64(10)
	zipID := mustCreate(t, nodes, model.NewFileNode{BundleID: "bundle-1", Name: "b.zip", Path: "/h1/b.zip", SizeBytes: &size})
	mustCreate(t, nodes, model.NewFileNode{BundleID: "bundle-1", Name: "a.log", Path: "/h1/a.log", SizeBytes: &size})
	mustCreate(t, nodes, model.NewFileNode{BundleID: "bundle-1", Name: "z_dir", Path: "/h1/z_dir", IsDir: true})
	mustCreate(t, nodes, model.NewFileNode{BundleID: "bundle-1", ParentID: &zipID, Name: "b.zip_extracted", Path: "/h1/b.zip_extracted", IsDir: true})
	mustCreate(t, nodes, model.NewFileNode{BundleID: "other", Name: "foreign.log", Path: "/x/foreign.log", SizeBytes: &size})

	listing, err := svc.GetNode(context.Background(), "h1", model.RootRef())
	if err != nil {
		t.Fatalf("GetNode ошибка: %v", err)
	}

	root := listing.Node
	if !root.IsDir || root.SizeBytes != nil || root.Name != "h1_root" || root.Path != "/h1" {
		t.Errorf("root = %+v", root)
	}
	if root.Status != string(model.BundleReady) {
		t.Errorf("root.Status = %q, ожидался статус бандла", root.Status)
	}
	if root.Meta.Map()["bundle_name"] != "nightly" {
		t.Errorf("root.Meta = %v", root.Meta.Map())
	}
	if listing.Ref.String() != model.RootNodeID {
		t.Errorf("Ref = %q", listing.Ref.String())
	}

	want := []string{"z_dir", "a.log", "b.zip"}
	if len(listing.Children) != len(want) {
		t.Fatalf("children = %d, ожидалось %d", len(listing.Children), len(want))
	}
	for i, name := range want {
		if listing.Children[i].Name != name {
			t.Errorf("children[%d] = %q, ожидалось %q", i, listing.Children[i].Name, name)
		}
	}
}

func TestQueryService_GetNode_Stored(t *testing.T) {
	svc, _, nodes, _ := newQueryFixture(t)

	dirID := mustCreate(t, nodes, model.NewFileNode{BundleID: "bundle-1", Name: "d", Path: "/h1/d", IsDir: true})
	mustCreate(t, nodes, model.NewFileNode{BundleID: "bundle-1", ParentID: &dirID, Name: "x.log", Path: "/h1/d/x.log"})

	listing, err := svc.GetNode(context.Background(), "h1", model.StoredRef(dirID))
	if err != nil {
		t.Fatalf("GetNode ошибка: %v", err)
	}
	if listing.Node.ID != dirID || len(listing.Children) != 1 || listing.Children[0].Name != "x.log" {
		t.Errorf("listing = %+v", listing)
	}
}

func TestQueryService_GetNode_NotFound(t *testing.T) {
	svc, _, nodes, _ := newQueryFixture(t)
	foreign := mustCreate(t, nodes, model.NewFileNode{BundleID: "other", Name: "f", Path: "/x/f"})

	tests := []struct {
		name string
		hash string
		ref  model.NodeRef
	}{
		{"неизвестный бандл", "nope", model.RootRef()},
		{"неизвестный узел", "h1", model.StoredRef(999)},
		{"узел другого бандла", "h1", model.StoredRef(foreign)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetNode(context.Background(), tt.hash, tt.ref)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("ошибка = %v, ожидалась ErrNotFound", err)
			}
		})
	}
}

// TestQueryService_BundleCache — READY-бандл после первого запроса берётся из кэша.
func TestQueryService_BundleCache(t *testing.T) {
	svc, bundles, _, _ := newQueryFixture(t)

	calls := 0
	inner := bundles.getByHashFn
	bundles.getByHashFn = func(ctx context.Context, hash string) (*model.Bundle, error) {
		calls++
		return inner(ctx, hash)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.GetNode(context.Background(), "h1", model.RootRef()); err != nil {
			t.Fatalf("GetNode ошибка: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("обращений к репозиторию = %d, ожидалось 1", calls)
	}
}

func TestQueryService_Search(t *testing.T) {
	svc, _, _, segments := newQueryFixture(t)

	offset := int64(3)
	timeline := model.DefaultTimeline
	segments.searchFn = func(_ context.Context, p repository.SegmentSearchParams) ([]model.SegmentHit, int, error) {
		if p.BundleID != "bundle-1" {
			t.Errorf("BundleID = %q", p.BundleID)
		}
		if p.Query != "boom" {
			t.Errorf("Query = %q, ожидался обрезанный запрос", p.Query)
		}
		if p.Limit != SearchLimit {
			t.Errorf("Limit = %d, ожидался %d", p.Limit, SearchLimit)
		}
		if p.Timeline != nil {
			t.Errorf("Timeline = %q, ожидался nil", *p.Timeline)
		}
		return []model.SegmentHit{
			{FileID: 5, Path: "/h1/app.log", Timeline: &timeline, Offset: &offset, Content: "ERROR BOOM at worker"},
		}, 120, nil
	}

	res, err := svc.Search(context.Background(), "h1", "  boom ", "")
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}
	if res.Total != 120 || len(res.Hits) != 1 {
		t.Fatalf("res = %+v", res)
	}
	hit := res.Hits[0]
	if hit.FileID != 5 || hit.Path != "/h1/app.log" || *hit.Offset != 3 || *hit.Timeline != "all" {
		t.Errorf("hit = %+v", hit)
	}
	if hit.Snippet != "ERROR BOOM at worker" {
		t.Errorf("Snippet = %q", hit.Snippet)
	}
}

func TestQueryService_Search_Timeline(t *testing.T) {
	svc, _, _, segments := newQueryFixture(t)

	var got *string
	segments.searchFn = func(_ context.Context, p repository.SegmentSearchParams) ([]model.SegmentHit, int, error) {
		got = p.Timeline
		return []model.SegmentHit{}, 0, nil
	}

	res, err := svc.Search(context.Background(), "h1", "x", "boot")
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}
	if got == nil || *got != "boot" {
		t.Errorf("Timeline = %v, ожидался boot", got)
	}
	if res.Total != 0 || len(res.Hits) != 0 {
		t.Errorf("res = %+v", res)
	}

	// Фильтр обрезается, пустой после обрезки — без фильтра
	tests := []struct {
		timeline string
		want     string
	}{
		{" all ", "all"},
		{"\tboot\n", "boot"},
		{"   ", ""},
	}
	for _, tt := range tests {
		got = nil
		if _, err := svc.Search(context.Background(), "h1", "x", tt.timeline); err != nil {
			t.Fatalf("Search(%q) ошибка: %v", tt.timeline, err)
		}
		switch {
		case tt.want == "" && got != nil:
			t.Errorf("timeline %q: фильтр = %q, ожидался nil", tt.timeline, *got)
		case tt.want != "" && (got == nil || *got != tt.want):
			t.Errorf("timeline %q: фильтр = %v, ожидался %q", tt.timeline, got, tt.want)
		}
	}
}

// TestQueryService_Search_EmptyQuery — пустой запрос отклоняется
// до обращения к хранилищу.
func TestQueryService_Search_EmptyQuery(t *testing.T) {
	svc, bundles, _, _ := newQueryFixture(t)
	bundles.getByHashFn = func(_ context.Context, _ string) (*model.Bundle, error) {
		t.Error("бандл не должен запрашиваться")
		return nil, repository.ErrNotFound
	}

	for _, q := range []string{"", "   ", "\t\n"} {
		if _, err := svc.Search(context.Background(), "h1", q, ""); !errors.Is(err, ErrValidation) {
			t.Errorf("q=%q: ошибка = %v, ожидалась ErrValidation", q, err)
		}
	}
}

func TestQueryService_Search_Errors(t *testing.T) {
	svc, _, _, segments := newQueryFixture(t)

	if _, err := svc.Search(context.Background(), "nope", "boom", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("неизвестный бандл: ошибка = %v, ожидалась ErrNotFound", err)
	}

	segments.searchFn = func(_ context.Context, _ repository.SegmentSearchParams) ([]model.SegmentHit, int, error) {
		return nil, 0, repository.ErrUnavailable
	}
	if _, err := svc.Search(context.Background(), "h1", "boom", ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("хранилище недоступно: ошибка = %v, ожидалась ErrUnavailable", err)
	}
}

func TestQueryService_IssueBundles(t *testing.T) {
	issues := &mockIssueRepo{
		getByCodeFn: func(_ context.Context, code string) (*model.Issue, error) {
			if code == "ISSUE-1" {
				return &model.Issue{Code: code, Name: "Crash on boot"}, nil
			}
			return nil, repository.ErrNotFound
		},
	}
	bundles := &mockBundleRepo{
		listByIssueFn: func(_ context.Context, code string) ([]*model.Bundle, error) {
			return []*model.Bundle{
				{Hash: "new", Status: model.BundleProcessing},
				{Hash: "old", Status: model.BundleReady},
			}, nil
		},
	}
	svc := NewQueryService(issues, bundles, &memNodeRepo{}, &memSegmentRepo{},
		NewBundleCache(10, time.Minute), testLogger())

	res, err := svc.IssueBundles(context.Background(), " ISSUE-1 ")
	if err != nil {
		t.Fatalf("IssueBundles ошибка: %v", err)
	}
	if res.Issue.Name != "Crash on boot" || len(res.Bundles) != 2 || res.Bundles[0].Hash != "new" {
		t.Errorf("res = %+v", res)
	}

	if _, err := svc.IssueBundles(context.Background(), "UNKNOWN"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ошибка = %v, ожидалась ErrNotFound", err)
	}
	if _, err := svc.IssueBundles(context.Background(), " "); !errors.Is(err, ErrValidation) {
		t.Errorf("ошибка = %v, ожидалась ErrValidation", err)
	}
}
