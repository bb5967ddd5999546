// Package linkpreview resolves external URLs into title, description and
// image metadata for link cards. Fetches are SSRF-guarded, size-limited and
// cached.
package linkpreview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/onnwee/viewfinder/internal/validate"
)

// Defaults for Config.
const (
	DefaultTimeout     = 8 * time.Second
	DefaultMaxBytes    = 1 << 20
	DefaultCacheTTL    = 24 * time.Hour
	DefaultConcurrency = 4
	DefaultMaxBatch    = 50
	DefaultUserAgent   = "ViewfinderPreview/1.0 (+https://viewfinder.example)"
)

// ErrInvalidURL is returned for URLs that may not be previewed.
var ErrInvalidURL = errors.New("invalid preview url")

// ErrBatchTooLarge is returned when a batch exceeds MaxBatch URLs.
var ErrBatchTooLarge = errors.New("too many urls in batch")

// Config configures a Service.
type Config struct {
	Timeout     time.Duration
	MaxBytes    int64
	CacheTTL    time.Duration
	Concurrency int
	MaxBatch    int
	UserAgent   string
	// AllowPrivate disables the SSRF guard. Only for local development and
	// tests.
	AllowPrivate bool
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = DefaultMaxBatch
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// Service fetches and caches previews.
type Service struct {
	cfg      Config
	client   *http.Client
	cache    Cache
	resolver validate.Resolver
	group    singleflight.Group
	metrics  *Metrics
	logger   *slog.Logger
}

// NewService creates a Service. cache and metrics may be nil.
func NewService(cfg Config, cache Cache, metrics *Metrics, logger *slog.Logger) *Service {
	cfg = cfg.withDefaults()
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialer := &net.Dialer{Timeout: cfg.Timeout}
	if !cfg.AllowPrivate {
		dialer.Control = validate.DialControl
	}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
	}

	return &Service{
		cfg:   cfg,
		cache: cache,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("stopped after 5 redirects")
				}
				return nil
			},
		},
		resolver: net.DefaultResolver,
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *Service) constraints() validate.URLConstraints {
	c := validate.PreviewURLConstraints
	c.BlockPrivate = !s.cfg.AllowPrivate
	return c
}

// Preview returns metadata for rawURL. Invalid URLs return ErrInvalidURL;
// fetch and parse failures degrade to a Fallback preview with a nil error.
func (s *Service) Preview(ctx context.Context, rawURL string) (Preview, error) {
	u, err := validate.URLContext(ctx, s.resolver, rawURL, s.constraints())
	if err != nil {
		return Preview{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	u.Fragment = ""
	key := u.String()

	if p, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "link preview cache read failed", slog.String("error", err.Error()))
	} else if ok {
		s.observe("hit")
		return p, nil
	}

	// The fetch is shared by every caller waiting on key, so it must not
	// end when the first caller goes away. fetch bounds it by cfg.Timeout.
	ch := s.group.DoChan(key, func() (any, error) {
		p, err := s.fetch(context.WithoutCancel(ctx), u)
		if err != nil {
			s.observe("fallback")
			s.logger.InfoContext(ctx, "link preview fetch failed",
				slog.String("url", key),
				slog.String("error", err.Error()),
			)
			return Fallback(u), nil
		}
		s.observe("fetched")
		if err := s.cache.Set(context.WithoutCancel(ctx), key, p, s.cfg.CacheTTL); err != nil {
			s.logger.WarnContext(ctx, "link preview cache write failed", slog.String("error", err.Error()))
		}
		return p, nil
	})
	select {
	case r := <-ch:
		return r.Val.(Preview), nil
	case <-ctx.Done():
		return Fallback(u), nil
	}
}

func (s *Service) fetch(ctx context.Context, u *url.URL) (Preview, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Preview{}, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.1")

	resp, err := s.client.Do(req)
	if err != nil {
		return Preview{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Preview{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || (mt != "text/html" && mt != "application/xhtml+xml") {
			return Preview{}, fmt.Errorf("unsupported content type %q", ct)
		}
	}

	return Parse(io.LimitReader(resp.Body, s.cfg.MaxBytes), resp.Request.URL)
}

// Result is one entry of a batch lookup.
type Result struct {
	URL     string   `json:"url"`
	Preview *Preview `json:"preview,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Batch resolves urls with bounded concurrency. Results keep input order.
// Per-URL failures are reported in the result rather than failing the batch.
func (s *Service) Batch(ctx context.Context, urls []string) ([]Result, error) {
	if len(urls) > s.cfg.MaxBatch {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(urls), s.cfg.MaxBatch)
	}

	results := make([]Result, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, raw := range urls {
		g.Go(func() error {
			results[i].URL = raw
			p, err := s.Preview(gctx, raw)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Preview = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}

func (s *Service) observe(result string) {
	if s.metrics != nil {
		s.metrics.requests.WithLabelValues(result).Inc()
	}
}
