package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pixload/darkroom/internal/imageproc"
	"github.com/pixload/darkroom/internal/metrics"
	"github.com/pixload/darkroom/internal/storage"
	"github.com/pixload/darkroom/internal/util"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	sourceFilename  = "source"
	overlayFilename = "overlay_source"
	uploadFailed    = "Upload failed"
)

// Fetcher downloads a URL into a file within a time limit.
type Fetcher interface {
	FetchToFile(ctx context.Context, url, path string, timeout time.Duration) (int64, error)
}

// Prober reads the dimensions of an encoded image.
type Prober interface {
	Dimensions(data []byte) (int, int, error)
}

type Options struct {
	ScratchDir     string
	ThreadLimit    int
	SourceTimeout  time.Duration
	OverlayTimeout time.Duration
}

type Service struct {
	opts    Options
	engine  imageproc.Engine
	storage storage.Client
	fetcher Fetcher
	prober  Prober
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// Result is the output of one conversion, held in memory because the
// scratch directory is gone by the time the response is written.
type Result struct {
	Format      string
	ContentType string
	Filename    string
	Data        []byte
	Hash        string
	Width       int
	Height      int

	Key         string
	URL         string
	Deduped     bool
	UploadError string
}

// NewService wires the pipeline. A nil store makes every upload a soft failure.
func NewService(opts Options, engine imageproc.Engine, store storage.Client, fetcher Fetcher, logger zerolog.Logger) *Service {
	return &Service{
		opts:    opts,
		engine:  engine,
		storage: store,
		fetcher: fetcher,
		tracer:  otel.Tracer("github.com/pixload/darkroom/internal/convert"),
		logger:  logger,
	}
}

func (s *Service) WithProber(p Prober) *Service {
	s.prober = p
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Convert runs one request through the pipeline. The request's scratch
// directory is removed before Convert returns, whatever the outcome.
func (s *Service) Convert(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "convert", trace.WithAttributes(
		attribute.String("darkroom.format", req.Format),
		attribute.Int("darkroom.size", req.Size),
		attribute.Bool("darkroom.upload", req.UploadToStorage),
	))
	defer span.End()

	result, err := s.convert(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		s.observeConversion(req.Format, string(KindOf(err)))
		return nil, err
	}
	s.observeConversion(req.Format, "ok")
	return result, nil
}

func (s *Service) convert(ctx context.Context, req *Request) (*Result, error) {
	requestID := uuid.NewString()
	logger := s.logger.With().Str("request_id", requestID).Logger()

	workDir := filepath.Join(s.opts.ScratchDir, "darkroom-"+requestID)
	if err := os.MkdirAll(workDir, 0700); err != nil {
		return nil, newError(KindInternal, "scratch", "", fmt.Errorf("failed to create scratch directory: %w", err))
	}
	defer s.cleanup(logger, workDir)

	inputPath := filepath.Join(workDir, sourceFilename)
	overlayPath := filepath.Join(workDir, overlayFilename)
	outputName := "output." + req.Format

	hasOverlay, err := s.gatherInputs(ctx, logger, req, inputPath, overlayPath)
	if err != nil {
		return nil, err
	}

	spec := imageproc.Spec{
		InputPath:   inputPath,
		OutputPath:  filepath.Join(workDir, outputName),
		ThreadLimit: s.opts.ThreadLimit,
		Format:      req.Format,
		Size:        req.Size,
		Square:      req.Square,
		StripEXIF:   req.StripEXIF,
		Overlay:     req.Overlay,
		Encoder: imageproc.EncoderOptions{
			Quality:   req.Quality,
			AVIFSpeed: req.AVIFSpeed,
		},
	}
	if hasOverlay {
		spec.OverlayPath = overlayPath
	}

	plan, err := imageproc.BuildPlan(spec)
	if err != nil {
		return nil, newError(KindInternal, "plan", "", err)
	}

	outputPath, err := s.execute(ctx, req.Format, plan)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, newError(KindInternal, "read output", "", err)
	}

	contentType, _ := util.MIMEForFormat(req.Format)
	result := &Result{
		Format:      req.Format,
		ContentType: contentType,
		Data:        data,
		Hash:        util.HashBytes(data),
	}

	if s.prober != nil {
		if w, h, err := s.prober.Dimensions(data); err == nil {
			result.Width, result.Height = w, h
		} else {
			logger.Debug().Err(err).Msg("could not probe output dimensions")
		}
	}

	key := req.KeyName
	if req.UploadToStorage {
		key = s.upload(ctx, logger, req, inputPath, result)
	}

	result.Filename = outputName
	if key != "" {
		if name := util.KeyFilename(key); name != "" {
			result.Filename = name
		}
	}

	logger.Info().
		Str("format", req.Format).
		Int("bytes", len(data)).
		Str("hash", result.Hash[:16]).
		Bool("overlay", hasOverlay).
		Msg("converted image")

	return result, nil
}

// gatherInputs places the source at inputPath and, when requested, the
// overlay at overlayPath. Both downloads run in parallel; only the source
// is allowed to fail the request.
func (s *Service) gatherInputs(ctx context.Context, logger zerolog.Logger, req *Request, inputPath, overlayPath string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "fetch")
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if req.Upload != nil {
			return saveUpload(req.Upload, inputPath)
		}
		if _, err := s.fetcher.FetchToFile(gctx, req.SourceURL, inputPath, s.opts.SourceTimeout); err != nil {
			return newError(KindSourceFetch, "fetch source",
				fmt.Sprintf("Failed to fetch source: %v", err), err)
		}
		return nil
	})

	hasOverlay := false
	if req.OverlayURL != "" {
		g.Go(func() error {
			if _, err := s.fetcher.FetchToFile(gctx, req.OverlayURL, overlayPath, s.opts.OverlayTimeout); err != nil {
				overlayErr := newError(KindOverlayFetch, "fetch overlay", "", err)
				logger.Warn().Err(overlayErr).Str("overlay_url", req.OverlayURL).Msg("overlay download failed, continuing without overlay")
				if s.metrics != nil {
					s.metrics.ObserveOverlayFailure()
				}
				return nil
			}
			hasOverlay = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return false, err
	}
	span.SetAttributes(attribute.Bool("darkroom.overlay", hasOverlay))
	return hasOverlay, nil
}

func saveUpload(r io.Reader, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return newError(KindInternal, "save upload", "", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return newError(KindInternal, "save upload", "", err)
	}
	if err := f.Close(); err != nil {
		return newError(KindInternal, "save upload", "", err)
	}
	return nil
}

func (s *Service) execute(ctx context.Context, format string, plan *imageproc.Plan) (string, error) {
	ctx, span := s.tracer.Start(ctx, "engine")
	defer span.End()

	start := time.Now()
	outputPath, err := s.engine.Execute(ctx, plan)
	if s.metrics != nil {
		s.metrics.ObserveEngine(format, time.Since(start))
	}
	if err == nil {
		return outputPath, nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "engine failed")

	// Engine failures are reported, never retried.
	var engineErr *imageproc.EngineError
	if errors.As(err, &engineErr) {
		return "", newError(KindEngine, "engine",
			fmt.Sprintf("Processing Engine Error: %s", engineErr.Stderr), err)
	}
	return "", newError(KindInternal, "engine", "", err)
}

// upload stores the result and records the outcome on it. Failures never
// fail the conversion. It returns the resolved key, empty if none could be
// derived.
func (s *Service) upload(ctx context.Context, logger zerolog.Logger, req *Request, inputPath string, result *Result) string {
	ctx, span := s.tracer.Start(ctx, "upload")
	defer span.End()

	keyInput := util.KeyInput{
		ExplicitKey:  req.KeyName,
		Prefix:       req.KeyPrefix,
		OutputDigest: result.Hash,
		Size:         req.Size,
		Format:       req.Format,
	}
	derived := req.KeyName == ""
	if derived {
		inputDigest, err := util.HashFile(inputPath)
		if err != nil {
			s.uploadFailed(logger, span, result, err)
			return ""
		}
		keyInput.InputDigest = inputDigest
	}
	key := util.StorageKey(keyInput)
	span.SetAttributes(attribute.String("darkroom.key", key))

	if s.storage == nil {
		s.uploadFailed(logger, span, result, errors.New("no storage provider configured"))
		return key
	}

	// Generated keys are content addressed, so an existing object is this output.
	if derived {
		exists, err := s.storage.ObjectExists(ctx, key)
		if err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("failed to check if object exists")
		} else if exists {
			result.Key = key
			result.URL = s.storage.GetPublicURL(key)
			result.Deduped = true
			s.observeUpload("deduped")
			logger.Info().Str("key", key).Str("public_url", result.URL).Msg("object already exists, using existing")
			return key
		}
	}

	logger.Info().Str("key", key).Str("content_type", result.ContentType).Msg("uploading to storage")
	uploaded, err := s.storage.Upload(ctx, key, result.Data, result.ContentType)
	if err != nil {
		s.uploadFailed(logger, span, result, err)
		return key
	}

	result.Key = key
	result.URL = uploaded.URL
	s.observeUpload("ok")
	return key
}

func (s *Service) uploadFailed(logger zerolog.Logger, span trace.Span, result *Result, err error) {
	uploadErr := newError(KindUpload, "upload", uploadFailed, err)
	logger.Error().Err(uploadErr).Msg("storage upload error")
	span.RecordError(uploadErr)
	span.SetStatus(codes.Error, uploadFailed)
	result.UploadError = uploadFailed
	s.observeUpload("failed")
}

func (s *Service) cleanup(logger zerolog.Logger, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("cleanup failed")
		return
	}
	logger.Debug().Str("dir", dir).Msg("cleaned up scratch directory")
}

func (s *Service) observeConversion(format, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveConversion(format, outcome)
	}
}

func (s *Service) observeUpload(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveUpload(outcome)
	}
}
