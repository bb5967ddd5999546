// Package media lists catalog photos and videos with resolved URLs and
// serves bucket-cached thumbnails.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/onnwee/viewfinder/internal/catalog"
	"github.com/onnwee/viewfinder/internal/image"
	"github.com/onnwee/viewfinder/internal/jobs"
	"github.com/onnwee/viewfinder/internal/storage"
	"github.com/onnwee/viewfinder/internal/tracing"
)

// Errors returned by Service.
var (
	ErrNotFound    = errors.New("media not found")
	ErrNotImage    = errors.New("media item has no image to thumbnail")
	ErrUnavailable = errors.New("media storage is not configured")
)

// Objects is the subset of storage.Bucket used by Service.
type Objects interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key, contentType string, data []byte) error
	PresignGet(ctx context.Context, key string) (string, error)
}

// Renderer produces thumbnails.
type Renderer interface {
	Thumbnail(src []byte, width int) (image.Thumbnail, error)
	Extension() string
	ContentType() string
}

// CatalogSource yields the current catalog.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// JobObserver receives the outcome of each thumbnail render.
type JobObserver interface {
	Observe(jobType string, d time.Duration, err error)
}

// Item is a catalog entry with URLs a browser can load.
type Item struct {
	catalog.MediaEntry
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Service resolves media URLs and renders thumbnails. bucket, renderer and
// observer may be nil; without a bucket only items with a public Src have a
// URL and thumbnails are unavailable.
type Service struct {
	catalog  CatalogSource
	bucket   Objects
	renderer Renderer
	observer JobObserver
	logger   *slog.Logger
	group    singleflight.Group
}

// NewService creates a Service.
func NewService(source CatalogSource, bucket Objects, renderer Renderer, observer JobObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:  source,
		bucket:   bucket,
		renderer: renderer,
		observer: observer,
		logger:   logger,
	}
}

// List returns the media of section, or of every section when section is
// empty, in catalog order.
func (s *Service) List(ctx context.Context, section catalog.Section) ([]Item, error) {
	if section != "" && !section.Valid() {
		return nil, fmt.Errorf("%w: unknown section %q", ErrNotFound, section)
	}
	entries := s.catalog.Current().Media(section)
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		item, err := s.resolve(ctx, e)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Get returns a single resolved item.
func (s *Service) Get(ctx context.Context, id string) (Item, error) {
	e, err := s.catalog.Current().MediaItem(id)
	if err != nil {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.resolve(ctx, e)
}

func (s *Service) resolve(ctx context.Context, e catalog.MediaEntry) (Item, error) {
	item := Item{MediaEntry: e, URL: e.Src}
	if item.URL == "" && e.Key != "" && s.bucket != nil {
		u, err := s.bucket.PresignGet(ctx, e.Key)
		if err != nil {
			return Item{}, fmt.Errorf("failed to resolve %s: %w", e.ID, err)
		}
		item.URL = u
	}
	if s.thumbnailable(e) {
		item.ThumbnailURL = "/api/media/" + e.ID + "/thumbnail"
	}
	return item, nil
}

func (s *Service) thumbnailable(e catalog.MediaEntry) bool {
	return e.Kind == catalog.KindImage && e.Key != "" && s.bucket != nil && s.renderer != nil
}

// ThumbnailKey returns the bucket key of the rendered variant of original.
func ThumbnailKey(original string, width int, ext string) string {
	base := strings.TrimSuffix(original, path.Ext(original))
	return "thumbs/" + strconv.Itoa(width) + "/" + base + ext
}

// Thumbnail returns a thumbnail of item id at the supported width nearest to
// width. A cached variant in the bucket is served as is; otherwise the
// original is rendered and the result written back. Concurrent requests for
// the same variant share one render.
func (s *Service) Thumbnail(ctx context.Context, id string, width int) (image.Thumbnail, error) {
	e, err := s.catalog.Current().MediaItem(id)
	if err != nil {
		return image.Thumbnail{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.bucket == nil || s.renderer == nil {
		return image.Thumbnail{}, ErrUnavailable
	}
	if e.Kind != catalog.KindImage || e.Key == "" {
		return image.Thumbnail{}, fmt.Errorf("%w: %s", ErrNotImage, id)
	}

	width = image.SnapWidth(width)
	key := ThumbnailKey(e.Key, width, s.renderer.Extension())
	contentType := s.renderer.ContentType()

	cached, err := s.bucket.Get(ctx, key)
	if err == nil {
		return image.Thumbnail{Data: cached, ContentType: contentType, Width: width}, nil
	}
	if !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.WarnContext(ctx, "thumbnail cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.render(context.WithoutCancel(ctx), e.Key, key, width)
	})
	if err != nil {
		return image.Thumbnail{}, err
	}
	return v.(image.Thumbnail), nil
}

func (s *Service) render(ctx context.Context, original, key string, width int) (image.Thumbnail, error) {
	ctx, end := tracing.StartSpan(ctx, "media.render_thumbnail",
		attribute.String("media.original", original),
		attribute.Int("media.width", width),
	)
	start := time.Now()
	thumb, err := s.renderOnce(ctx, original, key, width)
	end(err)
	if s.observer != nil {
		s.observer.Observe(jobs.JobTypeThumbnailRender, time.Since(start), err)
	}
	return thumb, err
}

func (s *Service) renderOnce(ctx context.Context, original, key string, width int) (image.Thumbnail, error) {
	src, err := s.bucket.Get(ctx, original)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return image.Thumbnail{}, fmt.Errorf("%w: original %s missing", ErrNotFound, original)
		}
		return image.Thumbnail{}, err
	}
	thumb, err := s.renderer.Thumbnail(src, width)
	if err != nil {
		return image.Thumbnail{}, err
	}
	if err := s.bucket.Put(ctx, key, thumb.ContentType, thumb.Data); err != nil {
		s.logger.WarnContext(ctx, "failed to cache thumbnail",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	s.logger.DebugContext(ctx, "rendered thumbnail",
		slog.String("key", key),
		slog.Int("bytes", len(thumb.Data)),
	)
	return thumb, nil
}
