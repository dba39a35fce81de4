package catalog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/andresuchdata/opsdash/internal/repository"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const maxImportBytes = 32 << 20

// Handler exposes the catalog admin operations over HTTP.
type Handler struct {
	job  *Job
	repo repository.CatalogRepository
}

func NewHandler(job *Job, repo repository.CatalogRepository) *Handler {
	return &Handler{job: job, repo: repo}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/catalog/preview", h.Preview).Methods("POST")
	router.HandleFunc("/api/catalog/migrate", h.Migrate).Methods("POST")
	router.HandleFunc("/api/catalog/verify", h.Verify).Methods("GET")
	router.HandleFunc("/api/catalog/import", h.Import).Methods("POST")
}

// Preview normalizes the raw records in the body, or the stored documents when
// called with source=store.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("source") == "store" {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		report, err := h.job.PreviewStore(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "preview failed", err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	var body []previewRecord
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	records := make([]domain.RawProductRecord, len(body))
	for i, b := range body {
		records[i] = b.RawProductRecord
		records[i].ID = b.ID
	}
	writeJSON(w, http.StatusOK, Preview(records))
}

// previewRecord is a raw record as posted to Preview, keeping its id.
type previewRecord struct {
	ID string `json:"id"`
	domain.RawProductRecord
}

func (h *Handler) Migrate(w http.ResponseWriter, r *http.Request) {
	result, err := h.job.Run(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("catalog: migration aborted")
		writeError(w, http.StatusInternalServerError, "migration failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	report, err := h.job.Verify(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "verification failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Import stores raw records from an uploaded CSV or XLSX file field named file.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required", err)
		return
	}
	defer file.Close()

	format, err := FormatFromName(header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported file", err)
		return
	}
	records, err := ParseFile(file, format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse file", err)
		return
	}
	if err := h.repo.ImportRecords(r.Context(), records); err != nil {
		writeError(w, http.StatusInternalServerError, "import failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"imported": len(records),
		"message":  fmt.Sprintf("imported %d records from %s", len(records), header.Filename),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("catalog: failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	writeJSON(w, status, map[string]string{"error": msg, "details": err.Error()})
}
