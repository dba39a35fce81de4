package drive

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	source        FileSource
	importer      *Importer
	defaultFolder string
}

func NewHandler(source FileSource, importer *Importer, defaultFolder string) *Handler {
	return &Handler{source: source, importer: importer, defaultFolder: defaultFolder}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods("GET")
	router.HandleFunc("/api/drive/import", h.ImportFile).Methods("POST")
	router.HandleFunc("/api/drive/import-folder", h.ImportFolder).Methods("POST")
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	folderID, ok := h.resolveFolder(w, r)
	if !ok {
		return
	}

	files, err := h.source.ListFiles(r.Context(), folderID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to list files", err)
		return
	}
	if files == nil {
		files = []*File{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) ImportFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		http.Error(w, "fileId parameter is required", http.StatusBadRequest)
		return
	}

	res, err := h.importer.ImportFile(r.Context(), fileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "import failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ImportFolder(w http.ResponseWriter, r *http.Request) {
	folderID, ok := h.resolveFolder(w, r)
	if !ok {
		return
	}

	results, err := h.importer.ImportFolder(r.Context(), folderID)
	body := map[string]any{"imported": results}
	if err != nil {
		body["error"] = "some files failed to import"
		body["details"] = err.Error()
		writeJSON(w, http.StatusMultiStatus, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// resolveFolder picks the folder from ?path=, ?folderId= or the configured
// catalog folder, in that order.
func (h *Handler) resolveFolder(w http.ResponseWriter, r *http.Request) (string, bool) {
	query := r.URL.Query()
	if path := query.Get("path"); path != "" {
		id, err := h.source.FindFolderByPath(r.Context(), path)
		if err != nil {
			writeError(w, http.StatusNotFound, "folder not found", err)
			return "", false
		}
		return id, true
	}
	if id := query.Get("folderId"); id != "" {
		return id, true
	}
	return h.defaultFolder, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("drive: failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	writeJSON(w, status, map[string]string{"error": msg, "details": err.Error()})
}
