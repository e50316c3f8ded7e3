package domain

// UserProfile is the Farcaster profile subset the analysis cares about.
type UserProfile struct {
	FID            int64  `json:"fid"`
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	PfpURL         string `json:"pfpUrl,omitempty"`
	Bio            string `json:"bio,omitempty"`
	FollowerCount  int    `json:"followerCount"`
	FollowingCount int    `json:"followingCount"`
}

// UserData bundles a profile with its recent activity.
type UserData struct {
	FID       int64       `json:"fid"`
	Profile   UserProfile `json:"profile"`
	Casts     []Cast      `json:"casts"`
	Reactions []Reaction  `json:"reactions"`
}

// DisplayLabel returns the best human readable name for the profile.
func (p UserProfile) DisplayLabel() string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Username != "":
		return p.Username
	default:
		return "this user"
	}
}
