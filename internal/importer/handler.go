package importer

import (
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stocklane/stocklane/internal/platform/httpx"
)

// maxUploadBytes caps a CSV upload at 10 MiB.
const maxUploadBytes = 10 << 20

// Handler runs imports inline over an uploaded CSV.
type Handler struct {
	logger     *slog.Logger
	reconciler *Reconciler
}

func NewHandler(logger *slog.Logger, reconciler *Reconciler) *Handler {
	return &Handler{logger: logger, reconciler: reconciler}
}

// MountRoutes registers the inline import route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{target}", h.run)
}

// CSVFromRequest extracts the uploaded CSV. Multipart uploads use the "file"
// field; a raw text/csv body is accepted as-is.
func CSVFromRequest(r *http.Request) (io.ReadCloser, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		return file, nil
	}
	return http.MaxBytesReader(nil, r.Body, maxUploadBytes), nil
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	target, err := ParseTarget(chi.URLParam(r, "target"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	file, err := CSVFromRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	defer file.Close()

	rows, err := ParseCSV(file)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.reconciler.Run(r.Context(), target, rows)
	if err != nil {
		h.logger.Error("import run", slog.String("target", string(target)), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Ledger Read Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
