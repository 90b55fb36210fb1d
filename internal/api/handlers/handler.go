// handler.go — основной обработчик API Rain backend.
// Объединяет health и бизнес-обработчики, регистрирует маршруты в chi.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/SwartzMss/Rain/internal/api/errors"
	"github.com/SwartzMss/Rain/internal/domain/model"
	"github.com/SwartzMss/Rain/internal/service"
)

// Uploader — приём бандлов (реализуется service.UploadService).
type Uploader interface {
	Upload(ctx context.Context, req service.UploadRequest) (*service.UploadResult, error)
}

// Querier — запросы к дереву и сегментам (реализуется service.QueryService).
type Querier interface {
	GetNode(ctx context.Context, bundleHash string, ref model.NodeRef) (*service.NodeListing, error)
	Search(ctx context.Context, bundleHash, query, timeline string) (*service.SearchResult, error)
	IssueBundles(ctx context.Context, code string) (*service.IssueBundles, error)
}

// APIHandler — основной обработчик API.
type APIHandler struct {
	uploader      Uploader
	querier       Querier
	health        *HealthHandler
	maxUploadSize int64
	logger        *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// maxUploadSize — лимит тела запроса загрузки в байтах.
func NewAPIHandler(
	uploader Uploader,
	querier Querier,
	health *HealthHandler,
	maxUploadSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		uploader:      uploader,
		querier:       querier,
		health:        health,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// Mount регистрирует маршруты API в роутере.
func (h *APIHandler) Mount(r chi.Router) {
	r.Get("/healthz", h.health.Healthz)
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Post("/api/uploads", h.UploadBundle)
	r.Get("/api/issues/{issue_code}", h.GetIssue)
	r.Get("/api/files/v1/{bundle_hash}/files/{file_id}", h.GetFileNode)
	r.Get("/api/log/v2/{bundle_hash}/search", h.SearchLogs)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
// Ошибки ввода-вывода и прочие внутренние ошибки логируются, клиент получает
// общее сообщение без путей и строк подключения.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, op, notFoundMsg string) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrBadArchive):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, notFoundMsg)
	case errors.Is(err, service.ErrUnavailable):
		h.logger.Error("Хранилище метаданных недоступно",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		apierrors.ServiceUnavailable(w, "Хранилище метаданных недоступно")
	default:
		h.logger.Error("Внутренняя ошибка",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
