// Package server exposes stitching over HTTP.
//
// Endpoints:
//
//	GET  /healthz     liveness check with build version
//	POST /v1/stitch   multipart images in, stitched image out
//
// A stitch request carries its images as repeated "image" file parts, in
// the order they should be indexed.
// Optional form fields: metric ("rgb" or "lab"), format ("png", "jpeg",
// "bmp" or "tiff") and quality (JPEG only). Every response carries an
// X-Stitch-Job header with a fresh job ID.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/stitch/pkg/buildinfo"
	stitcherrors "github.com/matzehuels/stitch/pkg/errors"
	"github.com/matzehuels/stitch/pkg/imageio"
	"github.com/matzehuels/stitch/pkg/observability"
	"github.com/matzehuels/stitch/pkg/pipeline"
	"github.com/matzehuels/stitch/pkg/raster"
)

// Request limits applied when Config leaves them zero.
const (
	DefaultMaxUploadBytes = 64 << 20
	DefaultMaxPixels      = 50_000_000
	DefaultMaxImages      = 64
)

// JobHeader is the response header carrying the job ID.
const JobHeader = "X-Stitch-Job"

// Config configures a Server.
type Config struct {
	// MaxUploadBytes bounds request bodies. Zero selects DefaultMaxUploadBytes.
	MaxUploadBytes int64
	// MaxPixels bounds the declared width*height of each uploaded image.
	// Zero selects DefaultMaxPixels.
	MaxPixels int
	// MaxImages bounds the number of image parts. Zero selects DefaultMaxImages.
	MaxImages int
	// Defaults are applied to every stitch before request fields.
	Defaults pipeline.Options
}

// Server serves the HTTP API.
type Server struct {
	runner *pipeline.Runner
	logger *log.Logger
	cfg    Config
}

// New creates a server around runner.
func New(runner *pipeline.Runner, logger *log.Logger, cfg Config) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = DefaultMaxImages
	}
	return &Server{runner: runner, logger: logger, cfg: cfg}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.health)
	r.Post("/v1/stitch", s.stitch)
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// observe logs each request and fires the HTTP hooks.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, ww.Status(), elapsed)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", elapsed.Round(time.Millisecond))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

// formats maps the format form field to an encoder extension and media type.
var formats = map[string]struct{ ext, mime string }{
	"png":  {".png", "image/png"},
	"jpeg": {".jpg", "image/jpeg"},
	"jpg":  {".jpg", "image/jpeg"},
	"bmp":  {".bmp", "image/bmp"},
	"tiff": {".tiff", "image/tiff"},
}

func (s *Server) stitch(w http.ResponseWriter, r *http.Request) {
	job := uuid.NewString()
	w.Header().Set(JobHeader, job)
	logger := s.logger.With("job", job)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, stitcherrors.Wrap(stitcherrors.ErrCodeInvalidInput, err, "parse multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	format := r.FormValue("format")
	if format == "" {
		format = "png"
	}
	enc, ok := formats[format]
	if !ok {
		writeError(w, stitcherrors.New(stitcherrors.ErrCodeInvalidFormat, "unsupported format %q", format))
		return
	}

	opts := s.cfg.Defaults
	opts.Logger = logger
	if m := r.FormValue("metric"); m != "" {
		opts.Metric = m
	}
	if q := r.FormValue("quality"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, stitcherrors.Wrap(stitcherrors.ErrCodeInvalidInput, err, "quality"))
			return
		}
		opts.Quality = n
	}

	layers, err := s.decodeParts(r.MultipartForm.File["image"])
	if err != nil {
		writeError(w, err)
		return
	}
	logger.Info("stitch request", "layers", len(layers), "format", format)

	res, err := s.runner.Stitch(r.Context(), layers, opts)
	if err != nil {
		logger.Warn("stitch failed", "err", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", enc.mime)
	w.Header().Set("X-Stitch-Size", fmt.Sprintf("%dx%d", res.Output.W, res.Output.H))
	w.WriteHeader(http.StatusOK)
	if err := imageio.Encode(w, enc.ext, res.Output, opts.SaveOptions()); err != nil {
		logger.Error("encode response", "err", err)
	}
}

// decodeParts decodes uploaded files in upload order. Each part's header is
// read first so oversized images are rejected before their pixels are
// allocated.
func (s *Server) decodeParts(files []*multipart.FileHeader) ([]raster.Layer, error) {
	if len(files) == 0 {
		return nil, stitcherrors.New(stitcherrors.ErrCodeEmptyInput, "no image parts in request")
	}
	if len(files) > s.cfg.MaxImages {
		return nil, stitcherrors.New(stitcherrors.ErrCodeInvalidInput,
			"%d image parts exceed the limit of %d", len(files), s.cfg.MaxImages)
	}
	layers := make([]raster.Layer, 0, len(files))
	for i, fh := range files {
		img, err := s.decodePart(fmt.Sprintf("image %d (%s)", i, fh.Filename), fh)
		if err != nil {
			return nil, err
		}
		layers = append(layers, raster.NewLayer(fh.Filename, img))
	}
	return layers, nil
}

func (s *Server) decodePart(name string, fh *multipart.FileHeader) (*raster.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	hdr, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, stitcherrors.Wrap(stitcherrors.ErrCodeInvalidFormat, err, "%s", name)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return nil, stitcherrors.New(stitcherrors.ErrCodeInvalidInput, "%s has no pixels", name)
	}
	if int64(hdr.Width)*int64(hdr.Height) > int64(s.cfg.MaxPixels) {
		return nil, stitcherrors.New(stitcherrors.ErrCodeInvalidInput,
			"%s: %dx%d exceeds the limit of %d pixels", name, hdr.Width, hdr.Height, s.cfg.MaxPixels)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", name, err)
	}
	img, err := imageio.Decode(f)
	if err != nil {
		return nil, stitcherrors.Wrap(stitcherrors.ErrCodeInvalidFormat, err, "%s", name)
	}
	return img, nil
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
	case stitcherrors.IsInputError(err):
		status = http.StatusBadRequest
	case stitcherrors.Is(err, stitcherrors.ErrCodeDegenerateGeometry):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorBody{
		Error: stitcherrors.UserMessage(err),
		Code:  string(stitcherrors.GetCode(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
