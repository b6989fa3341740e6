package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/infiniteaudio/mixintel/internal/common"
	"github.com/infiniteaudio/mixintel/internal/config"
	"github.com/infiniteaudio/mixintel/internal/job"
	"github.com/infiniteaudio/mixintel/internal/redis"
	"github.com/infiniteaudio/mixintel/internal/scheduler"
	"github.com/infiniteaudio/mixintel/internal/storage"
	"github.com/infiniteaudio/mixintel/internal/store"
	"github.com/infiniteaudio/mixintel/internal/validation"
)

type Handlers struct {
	Store   store.Store
	Sched   *scheduler.Scheduler
	Storage storage.Storage
	Cache   *redis.Service // nil when REDIS_URL is unset
	Config  config.Config
}

func (h *Handlers) Routers(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)

	// static file serving for local storage
	if h.Config.StorageMode != "s3" && h.Config.StorageMode != "aws" {
		r.Get("/files/*", h.serveFiles)
	}

	r.Route("/v1/mix", func(r chi.Router) {
		r.Post("/uploads", h.uploadMix)
		r.Post("/jobs", h.createJob)
		r.Post("/jobs/process-next", h.processNext)
		r.Get("/jobs/{id}", h.getJob)
		r.Get("/jobs/{id}/result", h.getResult)
	})
}

func (h *Handlers) createJob(w http.ResponseWriter, r *http.Request) {
	var req job.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	j, err := job.Enqueue(req)
	if err != nil {
		if common.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("failed to build job", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.Store.Insert(r.Context(), &j); err != nil {
		if common.IsConflict(err) {
			writeError(w, http.StatusConflict, "job already exists")
			return
		}
		slog.Error("failed to insert job", "job_id", j.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("mix job created", "job_id", j.ID, "context", j.Context, "priority", j.Priority)
	writeJSON(w, http.StatusCreated, map[string]any{"job": j})
}

func (h *Handlers) processNext(w http.ResponseWriter, r *http.Request) {
	targetID := uuid.Nil
	if raw := r.URL.Query().Get("job_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "job_id must be a valid UUID")
			return
		}
		targetID = parsed
	}

	outcome, err := h.Sched.ClaimAndProcessOne(r.Context(), targetID)
	if err != nil {
		if common.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		slog.Error("process-next failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"processed": outcome.Kind == scheduler.OutcomeProcessed,
		"outcome":   outcome.Kind,
	}
	if outcome.JobID != uuid.Nil {
		resp["job_id"] = outcome.JobID
	}
	if outcome.Kind == scheduler.OutcomeFailed {
		resp["error_message"] = outcome.Message
	}
	if outcome.Kind == scheduler.OutcomeProcessed {
		resp["job"] = outcome.Job
		h.cacheAudit(r, outcome.Job)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a valid UUID")
		return
	}

	j, err := h.Store.FindByID(r.Context(), id)
	if err != nil {
		if common.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		slog.Error("failed to get job", "job_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": j})
}

func (h *Handlers) getResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a valid UUID")
		return
	}

	j, err := h.Store.FindByID(r.Context(), id)
	if err != nil {
		if common.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		slog.Error("failed to get job", "job_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"job":    j,
		"result": nil,
		"audit":  nil,
	}

	if audit := h.cachedAudit(r, j); audit != nil {
		resp["audit"] = json.RawMessage(audit)
	} else {
		result, err := h.Store.LatestResult(r.Context(), id)
		if err != nil {
			slog.Error("failed to get job result", "job_id", id, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if result != nil {
			resp["result"] = result
			resp["audit"] = result.Output
			h.cacheAudit(r, j)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) uploadMix(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.Config.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		slog.Error("failed to sniff upload", "filename", header.Filename, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if _, err := file.Seek(0, 0); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if verrs := validation.ValidateMixUpload(header, mtype.String()); len(verrs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": verrs})
		return
	}

	uploaded, err := h.Storage.UploadFile(r.Context(), header.Filename, file, mtype.String())
	if err != nil {
		slog.Error("failed to store upload", "filename", header.Filename, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	bucket := h.Config.S3Bucket
	if h.Config.StorageMode != "s3" && h.Config.StorageMode != "aws" {
		bucket = "local"
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"input_bucket_key": bucket,
		"input_object_key": uploaded.Key,
		"filename":         header.Filename,
		"content_type":     mtype.String(),
		"size_bytes":       header.Size,
		"url":              uploaded.URL,
	})
}

func (h *Handlers) serveFiles(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" || strings.Contains(key, "..") {
		http.NotFound(w, r)
		return
	}

	local, ok := h.Storage.(*storage.LocalStorage)
	if !ok {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(local.BaseDir(), filepath.Clean(key))
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

// cachedAudit returns the cached payload for a completed job, nil on
// miss or when caching is off.
func (h *Handlers) cachedAudit(r *http.Request, j *job.Job) []byte {
	if h.Cache == nil || j.Status != job.StatusCompleted {
		return nil
	}
	audit, err := h.Cache.GetAudit(r.Context(), j.ID.String())
	if err != nil {
		slog.Warn("audit cache read failed", "job_id", j.ID, "error", err)
		return nil
	}
	return audit
}

func (h *Handlers) cacheAudit(r *http.Request, j *job.Job) {
	if h.Cache == nil || j == nil || j.Status != job.StatusCompleted || len(j.AuditResult) == 0 {
		return
	}
	if err := h.Cache.StoreAudit(r.Context(), j.ID.String(), j.AuditResult, h.Config.AuditCacheTTL); err != nil {
		slog.Warn("audit cache write failed", "job_id", j.ID, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
