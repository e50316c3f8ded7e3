package farcaster

import (
	"time"

	"github.com/kapu/sitcom-match-go/internal/domain"
)

// Neynar v2 wire types. Only the fields the bundle needs are decoded.

type bulkUsersResponse struct {
	Users []neynarUser `json:"users"`
}

type neynarUser struct {
	FID            int64  `json:"fid"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	PfpURL         string `json:"pfp_url"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
	Profile        struct {
		Bio struct {
			Text string `json:"text"`
		} `json:"bio"`
	} `json:"profile"`
}

type castsResponse struct {
	Casts []neynarCast `json:"casts"`
}

type neynarCast struct {
	Hash      string `json:"hash"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type reactionsResponse struct {
	Reactions []neynarReaction `json:"reactions"`
}

type neynarReaction struct {
	ReactionType      string `json:"reaction_type"`
	ReactionTimestamp string `json:"reaction_timestamp"`
	Cast              struct {
		Hash string `json:"hash"`
	} `json:"cast"`
}

func (u neynarUser) toDomain() *domain.UserProfile {
	return &domain.UserProfile{
		FID:            u.FID,
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		PfpURL:         u.PfpURL,
		Bio:            u.Profile.Bio.Text,
		FollowerCount:  u.FollowerCount,
		FollowingCount: u.FollowingCount,
	}
}

func (c neynarCast) toDomain() domain.Cast {
	return domain.Cast{
		Text:            c.Text,
		TimestampMillis: parseMillis(c.Timestamp),
		Hash:            c.Hash,
	}
}

func (r neynarReaction) toDomain() domain.Reaction {
	return domain.Reaction{
		Type:            r.ReactionType,
		CastHash:        r.Cast.Hash,
		TimestampMillis: parseMillis(r.ReactionTimestamp),
	}
}

// parseMillis converts an RFC3339 timestamp to epoch millis; unparseable
// values become 0.
func parseMillis(value string) int64 {
	if value == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
