package farcaster

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/domain"
)

var fixtureCasts = []string{
	"Spent the whole morning reorganizing my desk. Again.",
	"Hot take: the best meetings are the ones that get cancelled.",
	"Just shipped a tiny side project, nobody asked for it but here we are",
	"Coffee count today: 4. Productivity count: debatable.",
	"Reminder that being kind is free and everyone is fighting something.",
	"Tried a new recipe, set off the smoke alarm, still calling it a win.",
}

// FixtureProvider serves a canned bundle for local runs without a Neynar key.
type FixtureProvider struct {
	now    func() time.Time
	logger *zap.Logger
}

func NewFixtureProvider(logger *zap.Logger) *FixtureProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FixtureProvider{now: time.Now, logger: logger}
}

func (f *FixtureProvider) UserByFID(_ context.Context, fid int64) (*domain.UserProfile, error) {
	f.logger.Debug("Serving fixture Farcaster user", zap.Int64("fid", fid))
	return &domain.UserProfile{
		FID:            fid,
		Username:       fmt.Sprintf("fixture%d", fid),
		DisplayName:    fmt.Sprintf("Fixture User %d", fid),
		Bio:            "Local development profile",
		FollowerCount:  int(fid%500) + 12,
		FollowingCount: int(fid%200) + 7,
	}, nil
}

func (f *FixtureProvider) CastsByFID(_ context.Context, fid int64, limit int) ([]domain.Cast, error) {
	n := min(limit, len(fixtureCasts))
	base := f.now().UnixMilli()

	casts := make([]domain.Cast, 0, n)
	for i := 0; i < n; i++ {
		casts = append(casts, domain.Cast{
			Text:            fixtureCasts[i],
			TimestampMillis: base - int64(i)*int64(time.Hour/time.Millisecond),
			Hash:            fmt.Sprintf("0xfixture%d%02d", fid, i),
		})
	}
	return casts, nil
}

func (f *FixtureProvider) ReactionsByFID(_ context.Context, fid int64, limit int) ([]domain.Reaction, error) {
	n := min(limit, 2)
	base := f.now().UnixMilli()

	reactions := make([]domain.Reaction, 0, n)
	for i := 0; i < n; i++ {
		reactions = append(reactions, domain.Reaction{
			Type:            "like",
			CastHash:        fmt.Sprintf("0xliked%d%02d", fid, i),
			TimestampMillis: base - int64(i)*int64(time.Minute/time.Millisecond),
		})
	}
	return reactions, nil
}
