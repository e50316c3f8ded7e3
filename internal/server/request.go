package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kapu/sitcom-match-go/internal/domain"
	"github.com/kapu/sitcom-match-go/internal/util"
)

// flexMillis accepts epoch millis as a number or numeric string, or an
// RFC3339 timestamp string.
type flexMillis int64

func (m *flexMillis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}

	if data[0] != '"' {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		f, err := n.Float64()
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		*m = flexMillis(int64(f))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*m = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*m = flexMillis(n)
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("timestamp %q is neither epoch millis nor RFC3339", s)
	}
	*m = flexMillis(t.UnixMilli())
	return nil
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("expected an integer, got %s", string(data))
	}
	*n = flexInt(int64(v))
	return nil
}

type castPayload struct {
	Text      string     `json:"text"`
	Timestamp flexMillis `json:"timestamp"`
	Hash      string     `json:"hash"`
	ID        string     `json:"id"`
}

func (c castPayload) toDomain() domain.Cast {
	return domain.Cast{
		Text:            c.Text,
		TimestampMillis: int64(c.Timestamp),
		Hash:            util.FirstNonEmpty(c.Hash, c.ID),
	}
}

type reactionPayload struct {
	Type      string     `json:"type"`
	CastHash  string     `json:"castHash"`
	Timestamp flexMillis `json:"timestamp"`
}

// profilePayload carries both camelCase and snake_case spellings.
type profilePayload struct {
	FID                 flexInt `json:"fid"`
	Username            string  `json:"username"`
	DisplayName         string  `json:"displayName"`
	DisplayNameSnake    string  `json:"display_name"`
	PfpURL              string  `json:"pfpUrl"`
	PfpURLSnake         string  `json:"pfp_url"`
	Bio                 string  `json:"bio"`
	FollowerCount       *int    `json:"followerCount"`
	FollowerCountSnake  *int    `json:"follower_count"`
	FollowingCount      *int    `json:"followingCount"`
	FollowingCountSnake *int    `json:"following_count"`
}

func (p profilePayload) empty() bool {
	return p.FID == 0 && p.Username == "" && p.DisplayName == "" && p.DisplayNameSnake == "" && p.Bio == ""
}

func (p profilePayload) toDomain() *domain.UserProfile {
	return &domain.UserProfile{
		FID:            int64(p.FID),
		Username:       p.Username,
		DisplayName:    util.FirstNonEmpty(p.DisplayName, p.DisplayNameSnake),
		PfpURL:         util.FirstNonEmpty(p.PfpURL, p.PfpURLSnake),
		Bio:            p.Bio,
		FollowerCount:  firstCount(p.FollowerCount, p.FollowerCountSnake),
		FollowingCount: firstCount(p.FollowingCount, p.FollowingCountSnake),
	}
}

func firstCount(values ...*int) int {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

type userDataPayload struct {
	FID       flexInt           `json:"fid"`
	Profile   *profilePayload   `json:"profile"`
	Casts     []castPayload     `json:"casts"`
	Reactions []reactionPayload `json:"reactions"`
}

// analyzeRequest accepts the flat shape ({casts, username, ...}) and the
// bundle shape ({userData: {profile, casts, reactions}}).
type analyzeRequest struct {
	profilePayload
	Casts    []castPayload    `json:"casts"`
	UserData *userDataPayload `json:"userData"`
	Strategy string           `json:"strategy"`
}

type analyzeInput struct {
	Profile   *domain.UserProfile
	Casts     []domain.Cast
	Reactions int
	Strategy  string
}

// normalize merges both request shapes. ok is false when neither casts nor
// user data were supplied.
func (r analyzeRequest) normalize() (analyzeInput, bool) {
	in := analyzeInput{Strategy: r.Strategy}

	payloads := r.Casts
	switch {
	case r.UserData != nil:
		if r.UserData.Profile != nil {
			in.Profile = r.UserData.Profile.toDomain()
		}
		if in.Profile == nil && !r.profilePayload.empty() {
			in.Profile = r.profilePayload.toDomain()
		}
		if in.Profile != nil && in.Profile.FID == 0 {
			in.Profile.FID = int64(r.UserData.FID)
		}
		if payloads == nil {
			payloads = r.UserData.Casts
		}
		in.Reactions = len(r.UserData.Reactions)
	case r.Casts != nil:
		if !r.profilePayload.empty() {
			in.Profile = r.profilePayload.toDomain()
		}
	default:
		return in, false
	}

	in.Casts = make([]domain.Cast, 0, len(payloads))
	for _, p := range payloads {
		in.Casts = append(in.Casts, p.toDomain())
	}
	return in, true
}

type connectRequest struct {
	SignerUUID         string  `json:"signerUuid"`
	SignerUUIDSnake    string  `json:"signer_uuid"`
	FID                flexInt `json:"fid"`
	WalletAddress      string  `json:"walletAddress"`
	WalletAddressSnake string  `json:"wallet_address"`
}

func (r connectRequest) signer() string {
	return util.FirstNonEmpty(r.SignerUUID, r.SignerUUIDSnake)
}

func (r connectRequest) wallet() string {
	return util.FirstNonEmpty(r.WalletAddress, r.WalletAddressSnake)
}
