// search.go — обработчик GET /api/log/v2/{bundle_hash}/search?q=&timeline=.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// searchResponse — ответ поиска.
type searchResponse struct {
	Total int         `json:"total"`
	Hits  []searchHit `json:"hits"`
}

type searchHit struct {
	FileID   string  `json:"file_id"`
	Path     string  `json:"path"`
	Snippet  string  `json:"snippet"`
	Timeline *string `json:"timeline"`
	Offset   *int64  `json:"offset"`
}

// SearchLogs обрабатывает GET /api/log/v2/{bundle_hash}/search.
// q — подстрока (обязательна), timeline — фильтр по временной линии.
func (h *APIHandler) SearchLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	res, err := h.querier.Search(r.Context(), chi.URLParam(r, "bundle_hash"), query.Get("q"), query.Get("timeline"))
	if err != nil {
		h.writeServiceError(w, err, "search", "Бандл не найден")
		return
	}

	resp := searchResponse{Total: res.Total, Hits: make([]searchHit, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		resp.Hits = append(resp.Hits, searchHit{
			FileID:   strconv.FormatInt(hit.FileID, 10),
			Path:     hit.Path,
			Snippet:  hit.Snippet,
			Timeline: hit.Timeline,
			Offset:   hit.Offset,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
