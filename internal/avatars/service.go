// Package avatars serves fingerprints: it picks the active options, renders
// and caches SVG documents, and keeps a ledger of what has been served.
package avatars

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"gorm.io/gorm"

	"sigil/internal/config"
	"sigil/internal/fingerprint"
	"sigil/internal/pkg/async"
	"sigil/internal/render"
	"sigil/internal/settings"
	"sigil/internal/tracing"
)

// ErrBatchTooLarge is returned when a batch exceeds the configured limit.
var ErrBatchTooLarge = errors.New("too many identities in batch")

type Service struct {
	cfg      *config.Config
	db       *gorm.DB
	logger   *slog.Logger
	tracker  *Tracker
	pool     *async.Pool
	svgCache *cache.Cache[string, []byte]
}

func NewService(cfg *config.Config, db *gorm.DB, logger *slog.Logger) (*Service, error) {
	if _, err := cfg.FingerprintOptions(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		db:      db,
		logger:  logger,
		tracker: NewTracker(),
		pool:    async.NewPool(cfg.AvatarBatchWorkers),
	}
	ttl := time.Duration(cfg.AvatarCacheTTLSeconds) * time.Second
	s.svgCache = cache.NewCache[string, []byte](logger, ttl, s.fetchSVG)
	return s, nil
}

func (s *Service) Tracker() *Tracker {
	return s.tracker
}

func (s *Service) DB() *gorm.DB {
	return s.db
}

// Options returns the configured fingerprint options with the stored palette
// override applied, if any.
func (s *Service) Options() (fingerprint.Options, error) {
	opts, err := s.cfg.FingerprintOptions()
	if err != nil {
		return fingerprint.Options{}, err
	}

	palette, err := settings.GetAvatarPalette(s.db)
	if err != nil {
		s.logger.Warn("Falling back to configured palette", slog.Any("error", err))
		return opts, nil
	}
	if len(palette) > 0 {
		opts.Palette = palette
	}
	return opts, nil
}

func (s *Service) composer() (*fingerprint.Composer, error) {
	opts, err := s.Options()
	if err != nil {
		return nil, err
	}
	return fingerprint.NewComposer(opts)
}

// Describe composes the descriptor for identity.
func (s *Service) Describe(identity string) (fingerprint.Descriptor, error) {
	c, err := s.composer()
	if err != nil {
		return fingerprint.Descriptor{}, err
	}
	return c.Compose(identity), nil
}

// Seed derives the seed for identity under the configured hash scheme.
func (s *Service) Seed(identity string) (int64, fingerprint.HashScheme, error) {
	scheme, err := fingerprint.ParseHashScheme(s.cfg.AvatarHashScheme)
	if err != nil {
		return 0, "", err
	}
	seed, err := fingerprint.DeriveSeedWith(scheme, identity)
	if err != nil {
		return 0, "", err
	}
	return seed, scheme, nil
}

// RenderOptions validates size against the configured bounds.
func (s *Service) RenderOptions(size int) (render.Options, error) {
	if size == 0 {
		size = s.cfg.AvatarDefaultSize
	}
	opts := s.cfg.RenderOptions(size)
	if err := opts.Validate(); err != nil {
		return render.Options{}, err
	}
	return opts, nil
}

// SVG returns the rendered avatar for identity at size pixels, zero meaning
// the configured default, and records it in the served ledger buffer.
func (s *Service) SVG(ctx context.Context, identity string, size int) ([]byte, error) {
	return s.svg(ctx, identity, size, true)
}

// Preview renders like SVG but does not count the avatar as served.
func (s *Service) Preview(ctx context.Context, identity string, size int) ([]byte, error) {
	return s.svg(ctx, identity, size, false)
}

func (s *Service) svg(ctx context.Context, identity string, size int, record bool) ([]byte, error) {
	opts, err := s.RenderOptions(size)
	if err != nil {
		return nil, err
	}

	_, span := tracing.StartSpan(ctx, "avatars.svg", "INTERNAL")
	span.WithInt("avatar.size", int64(opts.Size))

	out, err := s.svgCache.Get(svgCacheKey(opts.Size, identity))
	if err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}

	if record {
		seed, scheme, err := s.Seed(identity)
		if err == nil {
			span.WithInt("avatar.seed", seed)
			s.tracker.Record(identity, seed, scheme)
		}
	}
	tracing.EndSpan(span, nil)

	return out, nil
}

func svgCacheKey(size int, identity string) string {
	return strconv.Itoa(size) + ":" + identity
}

func (s *Service) fetchSVG(key string) ([]byte, error) {
	sizeStr, identity, _ := strings.Cut(key, ":")
	size, err := strconv.Atoi(sizeStr)
	if err != nil {
		return nil, fmt.Errorf("malformed svg cache key %q: %w", key, err)
	}

	opts, err := s.RenderOptions(size)
	if err != nil {
		return nil, err
	}
	d, err := s.Describe(identity)
	if err != nil {
		return nil, err
	}
	return render.SVG(d, opts)
}

// ComposeBatch composes every identity on the worker pool. The result has
// the same order as identities.
func (s *Service) ComposeBatch(ctx context.Context, identities []string) ([]fingerprint.Descriptor, error) {
	if len(identities) > s.cfg.AvatarBatchLimit {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(identities), s.cfg.AvatarBatchLimit)
	}

	c, err := s.composer()
	if err != nil {
		return nil, err
	}

	tasks := make([]async.Task, len(identities))
	for i, identity := range identities {
		identity := identity
		tasks[i] = async.Task{
			Name: identity,
			Execute: func(ctx context.Context) (any, error) {
				return c.Compose(identity), nil
			},
		}
	}

	results := s.pool.Execute(ctx, tasks)
	descriptors := make([]fingerprint.Descriptor, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
		descriptors[i] = r.Data.(fingerprint.Descriptor)
	}
	return descriptors, nil
}

// SetPalette stores a palette override, or removes it when palette is empty,
// and drops every cached rendering.
func (s *Service) SetPalette(palette fingerprint.Palette) error {
	if err := settings.SetAvatarPalette(s.db, palette); err != nil {
		return err
	}
	s.svgCache.Clear()
	return nil
}

// PurgeCache drops cached renderings and the persisted cache table.
func (s *Service) PurgeCache() (int64, error) {
	s.svgCache.Clear()
	return cache.PurgeAllCaches(s.db)
}

// Stats reports ledger totals plus what is still buffered.
func (s *Service) Stats() (Stats, error) {
	stats, err := LedgerStats(s.db)
	if err != nil {
		return Stats{}, err
	}
	stats.Pending = s.tracker.Pending()
	return stats, nil
}

// Flush writes the served buffer to the ledger.
func (s *Service) Flush() (int, error) {
	return s.tracker.Flush(s.db, s.logger)
}
