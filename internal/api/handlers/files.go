// files.go — обработчики чтения бандлов: узел дерева с потомками и бандлы задачи.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/SwartzMss/Rain/internal/api/errors"
	"github.com/SwartzMss/Rain/internal/domain/model"
)

// nodeResponse — узел дерева в ответе API.
type nodeResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Path      string         `json:"path"`
	IsDir     bool           `json:"is_dir"`
	SizeBytes *int64         `json:"size_bytes"`
	MimeType  *string        `json:"mime_type"`
	Status    string         `json:"status"`
	Meta      map[string]any `json:"meta"`
}

// nodeListingResponse — ответ GET /api/files/v1/{bundle_hash}/files/{file_id}.
type nodeListingResponse struct {
	Node     nodeResponse   `json:"node"`
	Children []nodeResponse `json:"children"`
}

// issueResponse — ответ GET /api/issues/{issue_code}.
type issueResponse struct {
	Name       string           `json:"name"`
	LogBundles []bundleResponse `json:"log_bundles"`
}

type bundleResponse struct {
	Hash   string               `json:"hash"`
	Name   string               `json:"name"`
	Status bundleStatusResponse `json:"status"`
}

type bundleStatusResponse struct {
	UploadStatus string `json:"upload_status"`
}

// GetFileNode обрабатывает GET /api/files/v1/{bundle_hash}/files/{file_id}.
// file_id — числовой id узла или "root" (без учёта регистра).
func (h *APIHandler) GetFileNode(w http.ResponseWriter, r *http.Request) {
	ref, err := model.ParseNodeRef(chi.URLParam(r, "file_id"))
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	listing, err := h.querier.GetNode(r.Context(), chi.URLParam(r, "bundle_hash"), ref)
	if err != nil {
		h.writeServiceError(w, err, "get_node", "Бандл или узел не найден")
		return
	}

	resp := nodeListingResponse{
		Node:     toNodeResponse(listing.Node, listing.Ref.String()),
		Children: make([]nodeResponse, 0, len(listing.Children)),
	}
	for _, c := range listing.Children {
		resp.Children = append(resp.Children, toNodeResponse(c, strconv.FormatInt(c.ID, 10)))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetIssue обрабатывает GET /api/issues/{issue_code}.
func (h *APIHandler) GetIssue(w http.ResponseWriter, r *http.Request) {
	res, err := h.querier.IssueBundles(r.Context(), chi.URLParam(r, "issue_code"))
	if err != nil {
		h.writeServiceError(w, err, "get_issue", "Задача не найдена")
		return
	}

	resp := issueResponse{
		Name:       res.Issue.Name,
		LogBundles: make([]bundleResponse, 0, len(res.Bundles)),
	}
	for _, b := range res.Bundles {
		resp.LogBundles = append(resp.LogBundles, bundleResponse{
			Hash:   b.Hash,
			Name:   b.Name,
			Status: bundleStatusResponse{UploadStatus: string(b.Status)},
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// toNodeResponse конвертирует узел в API-тип.
func toNodeResponse(n *model.FileNode, id string) nodeResponse {
	return nodeResponse{
		ID:        id,
		Name:      n.Name,
		Path:      n.Path,
		IsDir:     n.IsDir,
		SizeBytes: n.SizeBytes,
		MimeType:  n.MimeType,
		Status:    n.Status,
		Meta:      n.Meta.Map(),
	}
}
