package farcaster

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/constants"
	"github.com/kapu/sitcom-match-go/internal/domain"
	"github.com/kapu/sitcom-match-go/internal/service/cache"
	"github.com/kapu/sitcom-match-go/pkg/errors"
)

type CollectorConfig struct {
	Timeout    time.Duration
	FetchLimit int
	CacheTTL   time.Duration
}

// Collector assembles a UserData bundle for one FID.
type Collector struct {
	provider Provider
	cache    cache.Cache
	cfg      CollectorConfig
	logger   *zap.Logger
}

func NewCollector(provider Provider, c cache.Cache, cfg CollectorConfig, logger *zap.Logger) *Collector {
	if c == nil {
		c = cache.NopCache{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.FarcasterConfig.DefaultTimeout
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = constants.FarcasterConfig.DefaultFetchLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = constants.FarcasterConfig.BundleCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		provider: provider,
		cache:    c,
		cfg:      cfg,
		logger:   logger,
	}
}

func bundleKey(fid int64) string {
	return fmt.Sprintf("%s:%d", constants.FarcasterConfig.BundleCacheKeyspace, fid)
}

// Collect fetches profile and casts concurrently. Reactions are best effort.
func (c *Collector) Collect(ctx context.Context, fid int64) (*domain.UserData, error) {
	if fid <= 0 {
		return nil, errors.NewValidationError("fid must be a positive integer", "fid", fid)
	}

	key := bundleKey(fid)
	var cached domain.UserData
	found, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		c.logger.Warn("Bundle cache read failed", zap.String("key", key), zap.Error(err))
	} else if found {
		c.logger.Debug("Bundle cache hit", zap.Int64("fid", fid))
		return &cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var (
		profile   *domain.UserProfile
		casts     []domain.Cast
		reactions []domain.Reaction
	)

	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(constants.FarcasterConfig.FetchConcurrency)

	p.Go(func(ctx context.Context) error {
		var err error
		profile, err = c.provider.UserByFID(ctx, fid)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		casts, err = c.provider.CastsByFID(ctx, fid, c.cfg.FetchLimit)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		reactions, err = c.provider.ReactionsByFID(ctx, fid, constants.FarcasterConfig.DefaultFetchLimit)
		if err != nil {
			c.logger.Info("Could not fetch reactions, continuing without them",
				zap.Int64("fid", fid),
				zap.Error(err),
			)
			reactions = nil
		}
		return nil
	})

	if err := p.Wait(); err != nil {
		return nil, c.mapCollectError(err)
	}
	if ctx.Err() != nil && profile == nil {
		return nil, errors.NewDependencyTimeout("farcaster", "collect", ctx.Err())
	}
	if profile == nil {
		return nil, errors.NewNotFoundError("farcaster user", strconv.FormatInt(fid, 10))
	}

	if profile.FID == 0 {
		profile.FID = fid
	}
	if casts == nil {
		casts = []domain.Cast{}
	}
	if reactions == nil {
		reactions = []domain.Reaction{}
	}

	bundle := &domain.UserData{
		FID:       fid,
		Profile:   *profile,
		Casts:     casts,
		Reactions: reactions,
	}

	if err := c.cache.Set(ctx, key, bundle, c.cfg.CacheTTL); err != nil {
		c.logger.Warn("Bundle cache write failed", zap.String("key", key), zap.Error(err))
	}

	c.logger.Info("Farcaster bundle collected",
		zap.Int64("fid", fid),
		zap.Int("casts", len(casts)),
		zap.Int("reactions", len(reactions)),
	)

	return bundle, nil
}

func (c *Collector) mapCollectError(err error) error {
	var (
		nf  *errors.NotFoundError
		dep *errors.DependencyError
	)
	switch {
	case stderrors.As(err, &nf), stderrors.As(err, &dep):
		return err
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewDependencyTimeout("farcaster", "collect", err)
	default:
		return errors.NewDependencyError("failed to fetch Farcaster data", "farcaster", "collect", err)
	}
}
