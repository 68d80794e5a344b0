package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mediagateway/internal/keypath"
	"mediagateway/internal/model"
	"mediagateway/internal/storage"
)

// sniffLen is how much of the body is inspected before anything touches disk.
const sniffLen = 3072

// shebang starts an interpreter script whatever the rest of the file looks like.
var shebang = []byte("#!")

// deniedTypes are executable or script formats never accepted, whatever the client
// declared. Detection walks the mimetype tree, so subtypes are covered.
var deniedTypes = []string{
	"application/x-elf",
	"application/x-executable",
	"application/x-sharedlib",
	"application/x-mach-binary",
	"application/vnd.microsoft.portable-executable",
	"application/x-msdownload",
	"application/java-archive",
	"application/x-java-applet",
	"text/x-shellscript",
	"text/x-php",
	"text/x-python",
	"text/x-perl",
	"text/x-lua",
	"text/x-tcl",
	"text/javascript",
	"text/html",
}

// UploadRequest is one bounded request body destined for the store.
type UploadRequest struct {
	OwnerID     string
	Category    model.Category
	ContentType string
	// Filename is the client's name for the file, kept as object metadata only.
	Filename string
	Body     io.Reader
}

// UploadReceiver validates and stores uploads.
type UploadReceiver interface {
	// Receive checks the declared type against policy, sniffs the body, enforces the
	// size bound while buffering to a temp file and stores the object under a freshly
	// generated key. The temp file is removed on every path.
	Receive(ctx context.Context, req UploadRequest, policy *model.CategoryPolicy) (*model.StoredObject, error)
}

// UploadOptions configures the receiver.
type UploadOptions struct {
	TempDir    string
	PutTimeout time.Duration
	Clock      Clock
	Logger     zerolog.Logger
	Metrics    *Metrics
}

type uploadReceiver struct {
	store storage.Storage
	opts  UploadOptions
}

// NewUploadReceiver constructs an UploadReceiver. An empty TempDir means os.TempDir.
func NewUploadReceiver(store storage.Storage, opts UploadOptions) UploadReceiver {
	if opts.PutTimeout <= 0 {
		opts.PutTimeout = 10 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	return &uploadReceiver{store: store, opts: opts}
}

func (u *uploadReceiver) Receive(ctx context.Context, req UploadRequest, policy *model.CategoryPolicy) (*model.StoredObject, error) {
	ctx, span := tracer.Start(ctx, "upload.receive", trace.WithAttributes(
		attribute.String("media.category", string(req.Category)),
	))
	defer span.End()

	started := u.opts.Clock.Now()
	logger := loggerFrom(ctx, u.opts.Logger).With().
		Str("direction", DirectionUpload).
		Str("category", string(req.Category)).
		Logger()

	obj, n, err := u.receive(ctx, req, policy, logger)
	outcome := uploadOutcome(err)
	u.opts.Metrics.observe(DirectionUpload, req.Category, outcome, n, u.opts.Clock.Now().Sub(started))

	if err != nil {
		recordSpanError(span, err)
		logger.Warn().Err(err).Str("outcome", outcome).Int64("bytes", n).Msg("upload rejected")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("media.size", obj.Size))
	logger.Info().
		Str("key", obj.Key).
		Str("content_type", obj.ContentType).
		Str("size", humanize.IBytes(uint64(obj.Size))).
		Msg("upload stored")
	return obj, nil
}

func (u *uploadReceiver) receive(ctx context.Context, req UploadRequest, policy *model.CategoryPolicy, logger zerolog.Logger) (*model.StoredObject, int64, error) {
	if policy == nil || policy.Category != req.Category {
		return nil, 0, fmt.Errorf("no upload policy for category %q", req.Category)
	}
	if _, err := uuid.Parse(req.OwnerID); err != nil {
		return nil, 0, fmt.Errorf("%w: owner id must be a UUID", ErrBadRequest)
	}
	contentType := model.NormalizeContentType(req.ContentType)
	if !policy.Allows(contentType) {
		return nil, 0, fmt.Errorf("%w: content type %q not allowed for %s", ErrBadRequest, req.ContentType, req.Category)
	}

	// Never read more than one byte past the limit.
	body := io.LimitReader(req.Body, policy.MaxSizeBytes+1)

	head := make([]byte, sniffLen)
	hn, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, int64(hn), fmt.Errorf("%w: reading upload body: %v", ErrBadRequest, err)
	}
	head = head[:hn]
	if hn == 0 {
		return nil, 0, fmt.Errorf("%w: empty upload", ErrBadRequest)
	}
	if int64(hn) > policy.MaxSizeBytes {
		return nil, int64(hn), u.tooLarge(policy)
	}

	sniffed := mimetype.Detect(head)
	if bytes.HasPrefix(head, shebang) {
		return nil, int64(hn), fmt.Errorf("%w: content is a script", ErrBadRequest)
	}
	if mismatched(contentType, sniffed) || denied(sniffed) {
		return nil, int64(hn), fmt.Errorf("%w: content looks like %s", ErrBadRequest, sniffed.String())
	}

	tmp, err := os.CreateTemp(u.opts.TempDir, "upload-*")
	if err != nil {
		return nil, int64(hn), fmt.Errorf("create temp file: %w", err)
	}
	u.opts.Metrics.inFlightAdd(DirectionUpload, 1)
	defer func() {
		u.opts.Metrics.inFlightAdd(DirectionUpload, -1)
		_ = tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("path", tmp.Name()).Msg("removing upload temp file")
		}
	}()

	if _, err := tmp.Write(head); err != nil {
		return nil, int64(hn), fmt.Errorf("write temp file: %w", err)
	}
	rest, err := io.Copy(tmp, body)
	total := int64(hn) + rest
	if err != nil {
		return nil, total, fmt.Errorf("%w: reading upload body: %v", ErrBadRequest, err)
	}
	if total > policy.MaxSizeBytes {
		return nil, total, u.tooLarge(policy)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, total, fmt.Errorf("rewind temp file: %w", err)
	}

	key, err := keypath.New(req.Category, req.OwnerID, uuid.NewString()+extensionFor(contentType, sniffed))
	if err != nil {
		return nil, total, fmt.Errorf("build object key: %w", err)
	}

	var info storage.ObjectInfo
	err = boundedCall(ctx, u.opts.Clock, u.opts.PutTimeout, "put object", func(ctx context.Context) error {
		var err error
		info, err = u.store.Put(ctx, key.String(), tmp, storage.PutObjectOptions{
			Size:        total,
			ContentType: contentType,
			Metadata: map[string]string{
				"owner-id":          req.OwnerID,
				"original-filename": url.QueryEscape(req.Filename),
			},
		})
		return err
	})
	switch {
	case errors.Is(err, ErrGatewayTimeout):
		return nil, total, err
	case errors.Is(err, context.Canceled):
		return nil, total, fmt.Errorf("%w: put object: %v", ErrRequestCanceled, err)
	case err != nil:
		return nil, total, fmt.Errorf("put object: %w", err)
	}

	size := info.Size
	if size <= 0 {
		size = total
	}
	return &model.StoredObject{Key: key.String(), Size: size, ContentType: contentType}, total, nil
}

func (u *uploadReceiver) tooLarge(policy *model.CategoryPolicy) error {
	return fmt.Errorf("%w: %s uploads are limited to %s", ErrPayloadTooLarge,
		policy.Category, humanize.IBytes(uint64(policy.MaxSizeBytes)))
}

// mismatched reports text content declared as binary media. A sniffed type that
// descends from the declared one, such as SVG under image/svg+xml, is consistent.
func mismatched(declared string, sniffed *mimetype.MIME) bool {
	family, _, _ := strings.Cut(declared, "/")
	if family != "image" && family != "audio" && family != "video" {
		return false
	}
	text := false
	for m := sniffed; m != nil; m = m.Parent() {
		if m.Is(declared) {
			return false
		}
		if strings.HasPrefix(m.String(), "text/") {
			text = true
		}
	}
	return text
}

func denied(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		for _, d := range deniedTypes {
			if m.Is(d) {
				return true
			}
		}
	}
	return false
}

// extensionFor prefers the extension of the declared type and falls back to the
// sniffed one.
func extensionFor(declared string, sniffed *mimetype.MIME) string {
	if m := mimetype.Lookup(declared); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return sniffed.Extension()
}

func uploadOutcome(err error) string {
	switch {
	case err == nil:
		return StateComplete.String()
	case errors.Is(err, ErrGatewayTimeout):
		return StateTimedOut.String()
	case errors.Is(err, ErrRequestCanceled):
		return StateAborted.String()
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrPayloadTooLarge):
		return "rejected"
	default:
		return StateErrored.String()
	}
}
