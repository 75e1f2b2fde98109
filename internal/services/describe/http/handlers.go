// Package http provides http transport for describe
package http

import (
	"io"
	stdhttp "net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	perr "lumen/internal/platform/errors"
	"lumen/internal/platform/logger"
	phttp "lumen/internal/platform/net/http"
	"lumen/internal/platform/net/http/bind"
	mw "lumen/internal/platform/net/middleware"
	"lumen/internal/services/describe/domain"
	svc "lumen/internal/services/describe/service"
)

// uploads larger than this are rejected up front
const maxUploadBytes = 32 << 20

var servableExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".webp", ".heic",
}

// Options wires the describe handlers
type Options struct {
	Svc     svc.Service
	Src     domain.SourcePort
	History domain.HistoryPort // nil disables /process/history
	Cap     int                // default max_images when a request omits it

	// Timeout bounds the quick routes; inference and stream routes are
	// never timed because one generate call has no deadline of its own
	Timeout time.Duration
}

// Register mounts describe endpoints on the given router
func Register(r phttp.Router, opts Options) {
	if opts.Svc == nil {
		panic("describe http requires a service")
	}
	if opts.Src == nil {
		panic("describe http requires a source")
	}
	if opts.Cap <= 0 {
		opts.Cap = 7
	}
	h := &handlers{opts: opts, log: *logger.Named("describe.http")}

	// quick JSON routes: cheap, safe to time out, responses never cached
	r.Group(func(g phttp.Router) {
		if opts.Timeout > 0 {
			g.Use(mw.Timeout(opts.Timeout))
		}
		g.Use(mw.NoCache())

		g.Get("/", phttp.JSONHandlerNoBody(h.root))
		g.Get("/health", phttp.JSONHandlerNoBody(h.health))
		g.Post("/preview/folder", phttp.JSONHandler(h.previewFolder))
		g.Get("/process/history", h.history)
	})

	// inference and stream routes run without a deadline
	r.Post("/process/image", h.processImage)
	r.Post("/process/image/stream", h.processImageStream)
	r.Post("/process/folder", phttp.JSONHandler(h.processFolder))
	r.Post("/process/folder/stream", h.processFolderStream)

	r.Get("/image/*", h.serveImage)
}

type handlers struct {
	opts Options
	log  logger.Logger
}

func (h *handlers) root(*stdhttp.Request) (any, error) {
	return map[string]string{"message": "lumen api is running"}, nil
}

func (h *handlers) health(*stdhttp.Request) (any, error) {
	return map[string]string{"status": "healthy"}, nil
}

// saveUpload spools the multipart image to a uuid-named temp file.
// The returned cleanup removes the file and its directory
func (h *handlers) saveUpload(r *stdhttp.Request) (path, filename string, cleanup func(), err error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", "", nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "parse multipart form")
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "missing file field")
	}
	defer func() { _ = file.Close() }()

	ct := hdr.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		return "", "", nil, perr.InvalidArgf("file must be an image, got %q", ct)
	}

	dir, err := os.MkdirTemp("", "lumen-upload-")
	if err != nil {
		return "", "", nil, perr.Wrap(err, perr.ErrorCodeUnknown, "create temp dir")
	}
	cleanup = func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			h.log.Warn().Err(rmErr).Str("dir", dir).Msg("temp cleanup failed")
		}
	}

	ext := filepath.Ext(hdr.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	path = filepath.Join(dir, uuid.NewString()+ext)

	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", "", nil, perr.Wrap(err, perr.ErrorCodeUnknown, "create temp file")
	}
	defer func() { _ = dst.Close() }()
	if _, err := io.Copy(dst, file); err != nil {
		cleanup()
		return "", "", nil, perr.Wrap(err, perr.ErrorCodeUnknown, "spool upload")
	}

	return path, hdr.Filename, cleanup, nil
}

func (h *handlers) processImage(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	path, filename, cleanup, err := h.saveUpload(r)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	defer cleanup()

	res := h.opts.Svc.Item(r.Context(), path)
	phttp.RespondOK(w, r, domain.UploadResult{
		Filename:    filename,
		Status:      res.Status,
		Description: res.Description,
		Error:       res.Error,
	})
}

func (h *handlers) processImageStream(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	path, _, cleanup, err := h.saveUpload(r)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	defer cleanup()

	ew := phttp.StartStream(w)
	if err := h.opts.Svc.StreamItem(r.Context(), path, domain.SinkFunc(func(ev domain.Event) error { return ew.Emit(ev) })); err != nil {
		h.log.Warn().Err(err).Msg("image stream ended early")
	}
}

type folderResponse struct {
	FolderPath string `json:"folder_path"`
	Extension  string `json:"extension"`
	domain.BatchSummary
}

// listFolder applies request defaults and resolves the batch inputs
func (h *handlers) listFolder(req *domain.FolderRequest) ([]string, error) {
	if req.Extension == "" {
		req.Extension = "jpg"
	}
	if req.MaxImages == 0 {
		req.MaxImages = h.opts.Cap
	}
	if err := h.opts.Src.IsDir(req.FolderPath); err != nil {
		return nil, err
	}
	return h.opts.Src.List(req.FolderPath, req.Extension)
}

func (h *handlers) processFolder(r *stdhttp.Request, req domain.FolderRequest) (any, error) {
	paths, err := h.listFolder(&req)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return folderResponse{
			FolderPath:   req.FolderPath,
			Extension:    req.Extension,
			BatchSummary: domain.BatchSummary{Results: []domain.ItemResult{}},
		}, nil
	}

	started := time.Now()
	summary, err := h.opts.Svc.Batch(r.Context(), paths, req.MaxImages)
	h.record(r, req, summary, time.Since(started))
	if err != nil {
		return nil, err
	}
	return folderResponse{FolderPath: req.FolderPath, Extension: req.Extension, BatchSummary: summary}, nil
}

func (h *handlers) processFolderStream(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	req, err := bind.ParseJSON[domain.FolderRequest](r)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	paths, err := h.listFolder(&req)
	if err != nil {
		// headers not sent yet, a plain error envelope is still possible
		phttp.RespondError(w, r, err)
		return
	}

	ew := phttp.StartStream(w)
	if err := h.opts.Svc.StreamBatch(r.Context(), paths, req.MaxImages, domain.SinkFunc(func(ev domain.Event) error { return ew.Emit(ev) })); err != nil {
		h.log.Warn().Err(err).Msg("folder stream ended early")
	}
}

func (h *handlers) previewFolder(_ *stdhttp.Request, req domain.FolderRequest) (any, error) {
	paths, err := h.listFolder(&req)
	if err != nil {
		return nil, err
	}
	if paths == nil {
		paths = []string{}
	}
	return domain.FolderPreview{
		FolderPath: req.FolderPath,
		Extension:  req.Extension,
		TotalFound: len(paths),
		ImagePaths: paths,
	}, nil
}

// serveImage returns an image off the local filesystem for frontend
// preview. Only absolute paths with an image extension are allowed
func (h *handlers) serveImage(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/image")
	if !strings.HasPrefix(path, "/") || path == "/" {
		phttp.RespondError(w, r, perr.InvalidArgf("only absolute paths are allowed"))
		return
	}

	ext := strings.ToLower(filepath.Ext(path))
	allowed := false
	for _, e := range servableExtensions {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		phttp.RespondError(w, r, perr.InvalidArgf("file is not an image"))
		return
	}

	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			phttp.RespondError(w, r, perr.NotFoundf("image not found"))
			return
		}
		phttp.RespondError(w, r, perr.Wrap(err, perr.ErrorCodeUnknown, "stat image"))
		return
	}
	if fi.IsDir() {
		phttp.RespondError(w, r, perr.InvalidArgf("path is not a file"))
		return
	}

	stdhttp.ServeFile(w, r, path)
}

func (h *handlers) history(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if h.opts.History == nil {
		phttp.RespondError(w, r, perr.Unavailablef("history store not configured"))
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			phttp.RespondError(w, r, perr.InvalidArgf("limit must be a positive integer"))
			return
		}
		limit = n
	}
	recs, err := h.opts.History.Recent(r.Context(), limit)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	if recs == nil {
		recs = []domain.BatchRecord{}
	}
	phttp.RespondOK(w, r, recs)
}

// record persists the finished batch when history is configured.
// Best effort; a storage hiccup never fails the request
func (h *handlers) record(r *stdhttp.Request, req domain.FolderRequest, summary domain.BatchSummary, took time.Duration) {
	if h.opts.History == nil || summary.Attempted == 0 {
		return
	}
	rec := domain.BatchRecord{
		FolderPath: req.FolderPath,
		Extension:  req.Extension,
		TotalFound: summary.TotalFound,
		Attempted:  summary.Attempted,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		Duration:   took,
	}
	if err := h.opts.History.Record(r.Context(), rec); err != nil {
		h.log.Warn().Err(err).Msg("history record failed")
	}
}
