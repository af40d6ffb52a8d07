// Package source loads GeoTIFF rasters from local files or http(s) URLs.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/pspoerri/solarlayers/internal/cog"
	"github.com/pspoerri/solarlayers/internal/raster"
)

// Defaults for Config fields left zero.
const (
	DefaultCacheSize   = 64
	DefaultConcurrency = 4
	DefaultMaxBytes    = 512 << 20
	DefaultTimeout     = 2 * time.Minute
)

// UserAgent is sent with every remote request.
const UserAgent = "solarlayers/1.0"

// solarAPIHost serves the data layer GeoTIFFs that need the API key.
const solarAPIHost = "solar.googleapis.com"

// Config configures a Loader.
type Config struct {
	HTTPClient  *http.Client // default: proxy-aware client with DefaultTimeout
	APIKey      string       // appended as ?key= for solar.googleapis.com
	CacheSize   int          // decoded rasters kept in memory
	Concurrency int          // parallel loads in LoadAll
	MaxBytes    int64        // largest accepted download
	Logger      *slog.Logger
}

// Loader fetches and decodes rasters, caching the results. A Loader is safe
// for concurrent use.
type Loader struct {
	client      *http.Client
	apiKey      string
	concurrency int
	maxBytes    int64
	cache       *lru.Cache[string, raster.Set]
	logger      *slog.Logger
}

// New creates a Loader.
func New(cfg Config) (*Loader, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout:   DefaultTimeout,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		}
	}

	cache, err := lru.New[string, raster.Set](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating raster cache: %w", err)
	}
	return &Loader{
		client:      cfg.HTTPClient,
		apiKey:      cfg.APIKey,
		concurrency: cfg.Concurrency,
		maxBytes:    cfg.MaxBytes,
		cache:       cache,
		logger:      cfg.Logger,
	}, nil
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// LocalPath returns the file path of a local location, stripping a file://
// prefix.
func LocalPath(location string) string {
	return strings.TrimPrefix(location, "file://")
}

// Load returns the decoded raster at location. Local files are cached by
// path, size and modification time, so a rewritten file is decoded again.
// The returned Set shares its bands with the cache and must not be modified.
func (l *Loader) Load(ctx context.Context, location string) (raster.Set, error) {
	if err := ctx.Err(); err != nil {
		return raster.Set{}, err
	}

	key, err := l.cacheKey(location)
	if err != nil {
		return raster.Set{}, err
	}
	if set, ok := l.cache.Get(key); ok {
		l.logger.Debug("raster cache hit", "location", redact(location))
		return set, nil
	}

	start := time.Now()
	var set raster.Set
	if IsRemote(location) {
		set, err = l.loadRemote(ctx, location)
	} else {
		set, err = loadFile(LocalPath(location))
	}
	if err != nil {
		return raster.Set{}, err
	}

	l.cache.Add(key, set)
	l.logger.Debug("loaded raster",
		"location", redact(location),
		"width", set.Width,
		"height", set.Height,
		"bands", set.NumBands(),
		"elapsed", time.Since(start))
	return set, nil
}

// LoadAll loads every location concurrently and returns the rasters in
// input order. The first failure cancels the remaining loads and is
// returned; no partial result is returned.
func (l *Loader) LoadAll(ctx context.Context, locations []string) ([]raster.Set, error) {
	sets := make([]raster.Set, len(locations))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, loc := range locations {
		g.Go(func() error {
			set, err := l.Load(ctx, loc)
			if err != nil {
				return err
			}
			sets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

// Purge drops every cached raster.
func (l *Loader) Purge() {
	l.cache.Purge()
}

func (l *Loader) cacheKey(location string) (string, error) {
	if IsRemote(location) {
		return location, nil
	}
	path := LocalPath(location)
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	return fmt.Sprintf("%s@%d:%d", path, fi.Size(), fi.ModTime().UnixNano()), nil
}

func loadFile(path string) (raster.Set, error) {
	r, err := cog.Open(path)
	if err != nil {
		return raster.Set{}, err
	}
	defer r.Close()
	set, err := r.ReadRaster()
	if err != nil {
		return raster.Set{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return set, nil
}

func (l *Loader) loadRemote(ctx context.Context, location string) (raster.Set, error) {
	u, err := withAPIKey(location, l.apiKey)
	if err != nil {
		return raster.Set{}, fmt.Errorf("invalid URL %s: %w", redact(location), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return raster.Set{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		// The client reports the URL it requested, key included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = redact(uerr.URL)
		}
		return raster.Set{}, fmt.Errorf("fetching %s: %w", redact(location), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return raster.Set{}, fmt.Errorf("fetching %s: status %d: %s",
			redact(location), resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return raster.Set{}, fmt.Errorf("reading %s: %w", redact(location), err)
	}
	if int64(len(data)) > l.maxBytes {
		return raster.Set{}, fmt.Errorf("fetching %s: response exceeds %d bytes", redact(location), l.maxBytes)
	}

	r, err := cog.Decode(data)
	if err != nil {
		return raster.Set{}, fmt.Errorf("%s: %w", redact(location), err)
	}
	set, err := r.ReadRaster()
	if err != nil {
		return raster.Set{}, fmt.Errorf("%s: %w", redact(location), err)
	}
	return set, nil
}

// withAPIKey appends the key query parameter to Solar API URLs that do not
// already carry one.
func withAPIKey(location, apiKey string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	if apiKey == "" || u.Hostname() != solarAPIHost {
		return location, nil
	}
	q := u.Query()
	if q.Get("key") != "" {
		return location, nil
	}
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redact hides the key query parameter in log output and errors.
func redact(location string) string {
	u, err := url.Parse(location)
	if err != nil || u.RawQuery == "" {
		return location
	}
	q := u.Query()
	if q.Get("key") == "" {
		return location
	}
	q.Set("key", "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}
