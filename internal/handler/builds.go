package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/model"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/storage"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/telemetry"
)

// DefaultMaxUploadBytes caps a single uploaded file at 512 MiB.
const DefaultMaxUploadBytes = 512 << 20

// BuildHandler accepts storybook bundle uploads and serves them back.
// A build occupies the object-store prefix
// projects/{projectID}/builds/{buildID}/ and is deleted as one unit.
type BuildHandler struct {
	objects        storage.ObjectStore
	logger         *slog.Logger
	metrics        *telemetry.Metrics
	maxUploadBytes int64
}

// NewBuildHandler creates a new BuildHandler. metrics may be nil.
func NewBuildHandler(objects storage.ObjectStore, logger *slog.Logger, metrics *telemetry.Metrics, maxUploadBytes int64) *BuildHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &BuildHandler{
		objects:        objects,
		logger:         logger,
		metrics:        metrics,
		maxUploadBytes: maxUploadBytes,
	}
}

func buildPrefix(projectID, buildID string) string {
	return path.Join("projects", projectID, "builds", buildID)
}

// cleanFilePath validates a client-supplied file path inside a build.
// Rejects empty paths, absolute paths, backslashes, and any parent
// segment. Returns the slash-normalized relative path.
func cleanFilePath(p string) (string, bool) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", false
		}
	}
	return p, true
}

// CreateBuild mints a fresh build id for the project. The build becomes
// visible in listings once its first file lands.
// POST /api/v1/projects/{projectID}/builds
func (h *BuildHandler) CreateBuild(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	buildID := uuid.Must(uuid.NewV7()).String()

	if h.metrics != nil {
		h.metrics.BuildsCreated.Add(r.Context(), 1)
	}

	h.logger.Info("build created", "project_id", projectID, "build_id", buildID)

	writeJSON(w, http.StatusCreated, model.Build{
		ID:        buildID,
		ProjectID: projectID,
		CreatedAt: time.Now().UTC(),
	})
}

// ListBuilds returns the project's build ids. Since build ids are UUIDv7,
// lexical order is creation order.
// GET /api/v1/projects/{projectID}/builds
func (h *BuildHandler) ListBuilds(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	builds, err := h.objects.ListPrefixes(r.Context(), path.Join("projects", projectID, "builds"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list builds: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: stringsToResources("build_id", builds),
		Meta: &model.ResponseMeta{
			Count: len(builds),
		},
	})
}

// UploadFile stores one file of a build. The request body is the raw file
// content; the path inside the build comes from the URL.
// PUT /api/v1/projects/{projectID}/builds/{buildID}/files/*
func (h *BuildHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	buildID := chi.URLParam(r, "buildID")

	filePath, ok := cleanFilePath(chi.URLParam(r, "*"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid file path")
		return
	}

	key := path.Join(buildPrefix(projectID, buildID), filePath)
	body := http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	defer body.Close()

	n, err := h.objects.Put(r.Context(), key, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				"File exceeds the upload limit of "+strconv.FormatInt(h.maxUploadBytes, 10)+" bytes")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to store file: "+err.Error())
		return
	}

	if h.metrics != nil {
		h.metrics.UploadBytes.Add(r.Context(), n)
	}

	h.logger.Debug("file uploaded",
		"project_id", projectID,
		"build_id", buildID,
		"path", filePath,
		"size_bytes", n,
	)

	writeJSON(w, http.StatusCreated, model.BuildFile{
		Path:      filePath,
		SizeBytes: n,
	})
}

// ListFiles returns the manifest of a build: every stored file with its
// size. A build with no files does not exist.
// GET /api/v1/projects/{projectID}/builds/{buildID}/files
func (h *BuildHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	buildID := chi.URLParam(r, "buildID")
	prefix := buildPrefix(projectID, buildID)

	objects, err := h.objects.List(r.Context(), prefix)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list files: "+err.Error())
		return
	}
	if len(objects) == 0 {
		writeError(w, http.StatusNotFound, "Build not found: "+buildID)
		return
	}

	resources := make([]map[string]interface{}, 0, len(objects))
	for _, obj := range objects {
		resources = append(resources, map[string]interface{}{
			"path":          strings.TrimPrefix(obj.Key, prefix+"/"),
			"size_bytes":    obj.Size,
			"last_modified": obj.LastModified,
		})
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count: len(resources),
		},
	})
}

// GetFile streams one stored file back.
// GET /api/v1/projects/{projectID}/builds/{buildID}/files/*
func (h *BuildHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	buildID := chi.URLParam(r, "buildID")

	filePath, ok := cleanFilePath(chi.URLParam(r, "*"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid file path")
		return
	}

	key := path.Join(buildPrefix(projectID, buildID), filePath)
	h.serveObject(w, r, key, filePath)
}

// DeleteBuild removes a build and every file under it.
// DELETE /api/v1/projects/{projectID}/builds/{buildID}
func (h *BuildHandler) DeleteBuild(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	buildID := chi.URLParam(r, "buildID")
	prefix := buildPrefix(projectID, buildID)

	objects, err := h.objects.List(r.Context(), prefix)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete build: "+err.Error())
		return
	}
	if len(objects) == 0 {
		writeError(w, http.StatusNotFound, "Build not found: "+buildID)
		return
	}

	if err := h.objects.DeletePrefix(r.Context(), prefix); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete build: "+err.Error())
		return
	}

	h.logger.Info("build deleted", "project_id", projectID, "build_id", buildID, "files", len(objects))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Build '" + buildID + "' deleted",
	})
}

// ServeViewer serves a build's assets for browsing: the bare build path
// and directory paths fall back to index.html, the way a static
// storybook expects to be hosted.
// GET /storybooks/{projectID}/{buildID}/*
func (h *BuildHandler) ServeViewer(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	buildID := chi.URLParam(r, "buildID")

	asset := chi.URLParam(r, "*")
	if asset == "" || strings.HasSuffix(asset, "/") {
		asset = asset + "index.html"
	}
	asset, ok := cleanFilePath(asset)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid asset path")
		return
	}

	key := path.Join(buildPrefix(projectID, buildID), asset)

	// Extensionless paths that miss are retried as directories.
	if path.Ext(asset) == "" {
		if _, err := h.objects.Stat(r.Context(), key); errors.Is(err, storage.ErrObjectNotFound) {
			asset = path.Join(asset, "index.html")
			key = path.Join(buildPrefix(projectID, buildID), asset)
		}
	}

	h.serveObject(w, r, key, asset)
}

// serveObject streams the object at key with a content type derived from
// the file extension. Immutable build content gets long cache lifetimes;
// HTML entry points stay revalidated so a republished viewer page is
// picked up.
func (h *BuildHandler) serveObject(w http.ResponseWriter, r *http.Request, key, name string) {
	rc, info, err := h.objects.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "File not found: "+name)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to read file: "+err.Error())
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	if strings.HasSuffix(name, ".html") {
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream file", "key", key, "error", err)
	}
}
