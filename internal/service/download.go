package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mediagateway/internal/httprange"
	"mediagateway/internal/keypath"
	"mediagateway/internal/model"
	"mediagateway/internal/storage"
)

var tracer = otel.Tracer("mediagateway/internal/service")

const defaultContentType = "application/octet-stream"

// errEmptyObject marks a zero-length object. It is reported as not found: an empty
// object is treated as a corrupt or incomplete upload.
var errEmptyObject = errors.New("object is empty")

// DownloadRequest identifies one object read.
type DownloadRequest struct {
	Key      string
	Category model.Category
	// Range is the raw Range header; empty means the full object.
	Range string
}

// ResponseMeta is everything the HTTP edge needs to write response headers.
type ResponseMeta struct {
	Partial       bool
	Size          int64
	Start         int64
	End           int64
	ContentLength int64
	ContentRange  string
	ContentType   string
	ETag          string
	LastModified  time.Time
	CacheControl  string
}

// Sink receives the response headers and body of one download. It owns body from
// then on and must Close it once the client stops reading, for whatever reason.
type Sink interface {
	Send(meta ResponseMeta, body io.ReadCloser) error
}

// DownloadStreamer relays objects from the store to clients.
type DownloadStreamer interface {
	// Stream validates the key, fetches metadata, checks the range, opens the read and
	// hands the resulting stream to sink. Errors returned before sink.Send carry one of
	// the package error classes.
	Stream(ctx context.Context, req DownloadRequest, sink Sink) error

	// Head runs the same checks as Stream without opening a read.
	Head(ctx context.Context, req DownloadRequest) (*ResponseMeta, error)
}

// DownloadOptions bounds each download. MetadataTimeout and ReadTimeout apply to one
// upstream call each; IdleTimeout is the longest silence tolerated mid-stream.
type DownloadOptions struct {
	MetadataTimeout time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	CacheControl    string
	Clock           Clock
	Logger          zerolog.Logger
	Metrics         *Metrics
}

type downloadStreamer struct {
	store storage.Storage
	opts  DownloadOptions
}

// NewDownloadStreamer constructs a DownloadStreamer. Zero timeouts fall back to
// 5s metadata, 10s read and 20s idle.
func NewDownloadStreamer(store storage.Storage, opts DownloadOptions) DownloadStreamer {
	if opts.MetadataTimeout <= 0 {
		opts.MetadataTimeout = 5 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 20 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	return &downloadStreamer{store: store, opts: opts}
}

func (s *downloadStreamer) Stream(ctx context.Context, req DownloadRequest, sink Sink) error {
	ctx, span := tracer.Start(ctx, "download.stream", trace.WithAttributes(
		attribute.String("media.category", string(req.Category)),
		attribute.Bool("http.range", req.Range != ""),
	))
	defer span.End()

	t := newTransfer(DirectionDownload, req.Key, req.Category, s.opts.Clock, loggerFrom(ctx, s.opts.Logger), s.opts.Metrics)

	meta, rng, err := s.prepare(ctx, t, req)
	if err != nil {
		recordSpanError(span, err)
		return err
	}

	if err := s.open(ctx, t, req.Key, rng, meta.ContentLength); err != nil {
		recordSpanError(span, err)
		return err
	}

	span.SetAttributes(attribute.Int64("media.content_length", meta.ContentLength))
	if err := sink.Send(*meta, t); err != nil {
		t.finish(StateErrored, err)
		recordSpanError(span, err)
		return fmt.Errorf("send response: %w", err)
	}
	return nil
}

func (s *downloadStreamer) Head(ctx context.Context, req DownloadRequest) (*ResponseMeta, error) {
	ctx, span := tracer.Start(ctx, "download.head", trace.WithAttributes(
		attribute.String("media.category", string(req.Category)),
	))
	defer span.End()

	t := newTransfer(DirectionHead, req.Key, req.Category, s.opts.Clock, loggerFrom(ctx, s.opts.Logger), s.opts.Metrics)
	meta, _, err := s.prepare(ctx, t, req)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	t.finish(StateComplete, nil)
	return meta, nil
}

// prepare covers everything up to, not including, the object read. On error the
// transfer has already reached its terminal state.
func (s *downloadStreamer) prepare(ctx context.Context, t *Transfer, req DownloadRequest) (*ResponseMeta, *storage.ByteRange, error) {
	key, err := keypath.Validate(req.Key, req.Category)
	if err != nil {
		// Malformed and absent keys must look the same to the caller.
		t.finish(StateErrored, err)
		return nil, nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var md model.ObjectMetadata
	err = boundedCall(ctx, s.opts.Clock, s.opts.MetadataTimeout, "head object", func(ctx context.Context) error {
		var err error
		md, err = s.store.Head(ctx, key.String())
		return err
	})
	if err != nil {
		return nil, nil, s.fail(t, err, "head object")
	}
	t.advance(StateMetadataFetched)

	if md.Size <= 0 {
		t.finish(StateErrored, errEmptyObject)
		return nil, nil, fmt.Errorf("%w: %v", ErrNotFound, errEmptyObject)
	}

	meta := &ResponseMeta{
		Size:         md.Size,
		ContentType:  md.ContentType,
		ETag:         md.ETag,
		LastModified: md.LastModified,
		CacheControl: s.opts.CacheControl,
	}
	if meta.ContentType == "" {
		meta.ContentType = defaultContentType
	}

	r := httprange.Parse(req.Range, md.Size)
	switch r.Kind {
	case httprange.Unsatisfiable:
		rerr := &RangeError{Size: md.Size}
		t.finish(StateRangeRejected, rerr)
		return nil, nil, rerr
	case httprange.Satisfiable:
		meta.Partial = true
		meta.Start, meta.End = r.Start, r.End
		meta.ContentLength = r.Length()
		meta.ContentRange = r.ContentRange(md.Size)
		return meta, &storage.ByteRange{Start: r.Start, End: r.End}, nil
	default:
		meta.Start, meta.End = 0, md.Size-1
		meta.ContentLength = md.Size
		return meta, nil, nil
	}
}

// open issues the read under its own deadline. The read context outlives the call:
// it is cancelled when the transfer reaches a terminal state.
func (s *downloadStreamer) open(ctx context.Context, t *Transfer, key string, rng *storage.ByteRange, expected int64) error {
	readCtx, cancel := context.WithCancel(ctx)
	deadline := s.opts.Clock.AfterFunc(s.opts.ReadTimeout, cancel)

	body, err := s.store.GetRange(readCtx, key, rng)
	inTime := deadline.Stop()

	switch {
	case err != nil && !inTime:
		cancel()
		return s.fail(t, fmt.Errorf("get object after %s: %w", s.opts.ReadTimeout, ErrGatewayTimeout), "get object")
	case err != nil:
		cancel()
		return s.fail(t, err, "get object")
	case !inTime:
		cancel()
		_ = body.Close()
		return s.fail(t, fmt.Errorf("get object after %s: %w", s.opts.ReadTimeout, ErrGatewayTimeout), "get object")
	}

	t.beginStreaming(ctx, body, cancel, expected, s.opts.IdleTimeout)
	return nil
}

// fail classifies an upstream error and moves t to the matching terminal state.
func (s *downloadStreamer) fail(t *Transfer, err error, op string) error {
	switch {
	case errors.Is(err, ErrGatewayTimeout):
		t.finish(StateTimedOut, err)
		return err
	case errors.Is(err, context.Canceled):
		t.finish(StateAborted, err)
		return fmt.Errorf("%w: %s: %v", ErrRequestCanceled, op, err)
	case errors.Is(err, storage.ErrObjectNotFound):
		t.finish(StateErrored, err)
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		t.finish(StateErrored, err)
		return fmt.Errorf("%s: %w", op, err)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// loggerFrom prefers the request-scoped logger stored in ctx by the HTTP middleware.
func loggerFrom(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return fallback
}
