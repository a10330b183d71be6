package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ironsheep/form-scanner/internal/inbox"
	"github.com/ironsheep/form-scanner/internal/pipeline"
	"github.com/ironsheep/form-scanner/internal/store"
)

func formID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "formID"), 10, 64)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	key, err := strconv.ParseInt(r.FormValue("key"), 10, 64)
	if err != nil {
		jsonError(w, "key must be the ID on the answer key page", http.StatusBadRequest)
		return
	}

	id := int64(uuid.New().ID())
	if v := r.FormValue("id"); v != "" {
		if id, err = strconv.ParseInt(v, 10, 64); err != nil || id < 0 {
			jsonError(w, "id must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := inbox.SanitizeFilename(header.Filename)
	if !inbox.Supported(filename) {
		jsonError(w, "unsupported file type: "+filename, http.StatusBadRequest)
		return
	}

	path, err := inbox.Save(s.cfg.DataDir, id, key, filename, file, s.cfg.MaxUploadBytes)
	if errors.Is(err, inbox.ErrTooLarge) {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		s.log.Error("upload not saved", "error", err)
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	if err := s.proc.Add(id, key, path); err != nil {
		os.Remove(path)
		switch {
		case errors.Is(err, pipeline.ErrDuplicateForm):
			jsonError(w, err.Error(), http.StatusConflict)
		default:
			jsonError(w, err.Error(), http.StatusServiceUnavailable)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"form_id":    id,
		"key":        key,
		"status_url": fmt.Sprintf("/api/forms/%d/wait", id),
		"result_url": fmt.Sprintf("/api/results/%d", id),
	})
}

func (s *Server) handleDone(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		jsonError(w, "invalid form id", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"form_id": id, "done": s.proc.Done(id)})
}

func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		jsonError(w, "invalid form id", http.StatusBadRequest)
		return
	}
	if err := s.proc.WaitFor(r.Context(), id); err != nil {
		if errors.Is(err, pipeline.ErrExiting) {
			jsonError(w, err.Error(), http.StatusServiceUnavailable)
		}
		return
	}
	writeJSON(w, http.StatusOK, pipeline.Status{FormID: id, Percent: 100})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	updates, err := s.proc.StatusWait(r.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrStatusClosed) {
			jsonError(w, err.Error(), http.StatusServiceUnavailable)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": updates})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		jsonError(w, "invalid form id", http.StatusBadRequest)
		return
	}

	res, err := s.results.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		if !s.proc.Done(id) {
			jsonError(w, "form is still being processed", http.StatusAccepted)
			return
		}
		jsonError(w, "result not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("result not loaded", "form", id, "error", err)
		jsonError(w, "failed to load result", http.StatusInternalServerError)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(res.Summary))
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="form-%d.csv"`, id))
		w.Write([]byte(res.CSV))
	case "html":
		page, err := renderHTML(fmt.Sprintf("Form %d", id), res.Summary)
		if err != nil {
			jsonError(w, "failed to render result", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	default:
		jsonError(w, "format must be text, csv or html", http.StatusBadRequest)
	}
}
