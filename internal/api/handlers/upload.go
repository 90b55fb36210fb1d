// upload.go — обработчик POST /api/uploads.
// Multipart form: issue_code (обязательно), bundle_name (опционально),
// files (одна или несколько частей, порядок сохраняется).
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	apierrors "github.com/SwartzMss/Rain/internal/api/errors"
	"github.com/SwartzMss/Rain/internal/service"
)

// multipartMemory — объём частей формы, хранимых в памяти; остальное — во временных файлах.
const multipartMemory = 32 << 20

// uploadResponse — ответ на загрузку бандла.
type uploadResponse struct {
	IssueCode  string `json:"issue_code"`
	BundleHash string `json:"bundle_hash"`
	BundleName string `json:"bundle_name"`
	FileCount  int    `json:"file_count"`
	TotalBytes int64  `json:"total_bytes"`
}

// UploadBundle обрабатывает POST /api/uploads.
func (h *APIHandler) UploadBundle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			apierrors.PayloadTooLarge(w, "Размер загрузки превышает "+humanize.IBytes(uint64(h.maxUploadSize)))
			return
		}
		apierrors.ValidationError(w, "Ошибка парсинга multipart: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := service.UploadRequest{
		IssueCode:  formValue(r.MultipartForm, "issue_code"),
		BundleName: formValue(r.MultipartForm, "bundle_name"),
	}
	for _, fh := range r.MultipartForm.File["files"] {
		req.Files = append(req.Files, service.UploadedFile{
			OriginalName: fh.Filename,
			ContentType:  fh.Header.Get("Content-Type"),
			Size:         fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	result, err := h.uploader.Upload(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "upload", "Ресурс не найден")
		return
	}

	h.logger.Info("Бандл загружен",
		slog.String("issue_code", result.IssueCode),
		slog.String("bundle_hash", result.BundleHash),
		slog.Int("files", result.FileCount),
	)

	writeJSON(w, http.StatusOK, uploadResponse{
		IssueCode:  result.IssueCode,
		BundleHash: result.BundleHash,
		BundleName: result.BundleName,
		FileCount:  result.FileCount,
		TotalBytes: result.TotalBytes,
	})
}

// formValue возвращает первое значение текстового поля формы.
func formValue(form *multipart.Form, key string) string {
	if vals := form.Value[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// isTooLarge проверяет, что чтение тела прервано лимитом MaxBytesReader.
func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
