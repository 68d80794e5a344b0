package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mediagateway/internal/keypath"
	"mediagateway/internal/model"
	"mediagateway/internal/repository"
	"mediagateway/internal/storage"
)

// MediaService works at the record level: it resolves logical media IDs through the
// policy resolver and hands the resulting key to the streamer or receiver.
type MediaService interface {
	Download(ctx context.Context, category model.Category, recordID, rangeHeader string, sink Sink) error
	Head(ctx context.Context, category model.Category, recordID, rangeHeader string) (*ResponseMeta, error)
	Upload(ctx context.Context, req UploadRequest) (*model.StoredObject, error)
	// Replace stores a new object for an existing record and deletes the old one once
	// the new object is safely stored. Pointing the record at the new key is left to
	// the record owner.
	Replace(ctx context.Context, recordID string, req UploadRequest) (*model.StoredObject, error)
}

// MediaOptions bounds the calls the service makes itself.
type MediaOptions struct {
	ResolveTimeout time.Duration
	DeleteTimeout  time.Duration
	Clock          Clock
	Logger         zerolog.Logger
}

type mediaService struct {
	resolver repository.PolicyResolver
	store    storage.Storage
	streamer DownloadStreamer
	receiver UploadReceiver
	opts     MediaOptions
}

// NewMediaService constructs a MediaService.
func NewMediaService(resolver repository.PolicyResolver, store storage.Storage, streamer DownloadStreamer, receiver UploadReceiver, opts MediaOptions) MediaService {
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = 5 * time.Second
	}
	if opts.DeleteTimeout <= 0 {
		opts.DeleteTimeout = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	return &mediaService{resolver: resolver, store: store, streamer: streamer, receiver: receiver, opts: opts}
}

func (s *mediaService) Download(ctx context.Context, category model.Category, recordID, rangeHeader string, sink Sink) error {
	rec, err := s.resolve(ctx, category, recordID)
	if err != nil {
		return err
	}
	return s.streamer.Stream(ctx, DownloadRequest{Key: rec.StorageKey, Category: category, Range: rangeHeader}, sink)
}

func (s *mediaService) Head(ctx context.Context, category model.Category, recordID, rangeHeader string) (*ResponseMeta, error) {
	rec, err := s.resolve(ctx, category, recordID)
	if err != nil {
		return nil, err
	}
	return s.streamer.Head(ctx, DownloadRequest{Key: rec.StorageKey, Category: category, Range: rangeHeader})
}

func (s *mediaService) Upload(ctx context.Context, req UploadRequest) (*model.StoredObject, error) {
	policy, err := s.limits(ctx, req.Category)
	if err != nil {
		return nil, err
	}
	return s.receiver.Receive(ctx, req, policy)
}

func (s *mediaService) Replace(ctx context.Context, recordID string, req UploadRequest) (*model.StoredObject, error) {
	rec, err := s.resolve(ctx, req.Category, recordID)
	if err != nil {
		return nil, err
	}
	req.OwnerID = rec.OwnerID

	policy, err := s.limits(ctx, req.Category)
	if err != nil {
		return nil, err
	}
	obj, err := s.receiver.Receive(ctx, req, policy)
	if err != nil {
		return nil, err
	}

	// The new object is stored; a leftover old one is only wasted space.
	logger := loggerFrom(ctx, s.opts.Logger).With().
		Str("record_id", rec.ID).
		Str("key", rec.StorageKey).
		Logger()

	old, err := keypath.Validate(rec.StorageKey, req.Category)
	if err != nil {
		logger.Warn().Err(err).Msg("replaced object has an invalid key, not deleting")
		return obj, nil
	}
	err = boundedCall(ctx, s.opts.Clock, s.opts.DeleteTimeout, "delete object", func(ctx context.Context) error {
		return s.store.Delete(ctx, old.String())
	})
	if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		logger.Warn().Err(err).Msg("deleting replaced object")
	}
	return obj, nil
}

func (s *mediaService) resolve(ctx context.Context, category model.Category, recordID string) (*model.MediaRecord, error) {
	if _, err := uuid.Parse(recordID); err != nil {
		return nil, fmt.Errorf("%w: media id must be a UUID", ErrBadRequest)
	}

	var rec *model.MediaRecord
	err := boundedCall(ctx, s.opts.Clock, s.opts.ResolveTimeout, "resolve record", func(ctx context.Context) error {
		var err error
		rec, err = s.resolver.Resolve(ctx, recordID)
		return err
	})
	switch {
	case errors.Is(err, repository.ErrRecordNotFound):
		return nil, fmt.Errorf("%w: media %s", ErrNotFound, recordID)
	case errors.Is(err, ErrGatewayTimeout):
		return nil, err
	case errors.Is(err, context.Canceled):
		return nil, fmt.Errorf("%w: resolve record: %v", ErrRequestCanceled, err)
	case err != nil:
		return nil, fmt.Errorf("resolve record: %w", err)
	}

	// A record of another category is treated as absent under this route.
	if rec.Category != category {
		return nil, fmt.Errorf("%w: media %s", ErrNotFound, recordID)
	}
	return rec, nil
}

func (s *mediaService) limits(ctx context.Context, category model.Category) (*model.CategoryPolicy, error) {
	var policy *model.CategoryPolicy
	err := boundedCall(ctx, s.opts.Clock, s.opts.ResolveTimeout, "get limits", func(ctx context.Context) error {
		var err error
		policy, err = s.resolver.GetLimits(ctx, category)
		return err
	})
	switch {
	case errors.Is(err, ErrGatewayTimeout):
		return nil, err
	case errors.Is(err, context.Canceled):
		return nil, fmt.Errorf("%w: get limits: %v", ErrRequestCanceled, err)
	case err != nil:
		return nil, fmt.Errorf("get limits for %s: %w", category, err)
	}
	return policy, nil
}
