package web

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jszwec/csvutil"

	"github.com/JonMunkholm/bomimport/internal/core"
	"github.com/JonMunkholm/bomimport/internal/logging"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status  string             `json:"status"`
	Error   string             `json:"error,omitempty"`
	Imports core.LimiterStatus `json:"imports"`
}

// handleHealth pings the store and reports import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Imports: s.service.LimiterStatus()}

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("health check failed", "error", err)
			resp.Status = "unavailable"
			resp.Error = core.MapError(err).Message
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCreateRequest stores an uploaded parts list (multipart field "file")
// and opens an import request for it.
func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(w, r, fmt.Errorf("file too large: %w", err))
			return
		}
		respondBadRequest(w, "Invalid upload form", "Send the parts list as multipart field \"file\"")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondBadRequest(w, "No file provided", "Send the parts list as multipart field \"file\"")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}
	if int64(len(data)) > maxSize {
		respondError(w, r, fmt.Errorf("file too large: more than %d bytes", maxSize))
		return
	}

	req, err := s.service.CreateRequest(r.Context(), header.Filename, data)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/requests/"+req.ID)
	writeJSON(w, http.StatusCreated, req)
}

// handleGetRequest returns an import request with its logs.
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.service.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// handleImportItems runs the flat item import.
func (s *Server) handleImportItems(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ImportItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleImportTree rebuilds, stores and submits the BOM tree.
func (s *Server) handleImportTree(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ImportBOMTree(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handlePreviewTree reports what a tree import would do without storing anything.
func (s *Server) handlePreviewTree(w http.ResponseWriter, r *http.Request) {
	preview, err := s.service.PreviewBOMTree(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleExportLog streams one of a request's logs as CSV, one line per
// affected row. ?kind=items (default) or ?kind=bom.
func (s *Server) handleExportLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	kind := strings.ToLower(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = "items"
	}
	if kind != "items" && kind != "bom" {
		respondBadRequest(w, "Unknown log kind "+kind, "Use kind=items or kind=bom")
		return
	}

	req, err := s.service.GetRequest(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	text := req.ItemLog
	if kind == "bom" {
		text = req.TreeLog
	}
	if text == "" {
		respondErrorJSON(w, core.UserMessage{
			Message: "No " + kind + " import has run for this request",
			Action:  "Run the import first",
			Code:    "REQ002",
		}, http.StatusNotFound)
		return
	}

	summary, results := core.ParseLog(text)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s-log.csv"`, id, kind))
	w.Header().Set("X-Import-Summary", summary)

	if err := writeLogCSV(w, results); err != nil {
		logging.FromContext(r.Context()).Error("write log csv", "import_id", id, "error", err)
	}
}

// writeLogCSV writes results with a header row, even when there are none.
func writeLogCSV(w io.Writer, results []core.RowResult) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if err := enc.EncodeHeader(core.RowResult{}); err != nil {
		return err
	}
	if len(results) > 0 {
		if err := enc.Encode(results); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// latestBOMResponse is the body of GET /api/trees/{name}/latest-bom.
type latestBOMResponse struct {
	Tree string `json:"bom_tree"`
	BOM  string `json:"bom"`
}

// handleLatestBOM returns the newest submitted BOM derived from a tree.
func (s *Server) handleLatestBOM(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	bom, ok, err := s.service.LatestBOM(r.Context(), name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !ok {
		respondErrorJSON(w, core.UserMessage{
			Message: "No submitted BOM found for tree " + name,
			Action:  "Import the BOM tree first",
			Code:    "BOM002",
		}, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, latestBOMResponse{Tree: name, BOM: bom})
}
