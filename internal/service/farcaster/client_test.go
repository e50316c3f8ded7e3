package farcaster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/pkg/errors"
)

const (
	userJSON = `{"users":[{"fid":3,"username":"dwr","display_name":"Dan","pfp_url":"https://img/3.png",
"follower_count":1200,"following_count":300,"profile":{"bio":{"text":"building farcaster"}}}]}`
	castsJSON = `{"casts":[{"hash":"0xabc","text":"gm","timestamp":"2025-01-02T03:04:05Z"},
{"hash":"0xdef","text":"shipping","timestamp":"not-a-time"}]}`
	reactionsJSON = `{"reactions":[{"reaction_type":"like","reaction_timestamp":"2025-01-02T03:04:05Z","cast":{"hash":"0x123"}}]}`
)

func newNeynarServer(t *testing.T, handler http.HandlerFunc) *NeynarClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewNeynarClient(srv.URL, "test-key", srv.Client(), zap.NewNop())
}

func TestNeynarClientUserByFID(t *testing.T) {
	client := newNeynarServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/farcaster/user/bulk", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("fids"))
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(userJSON))
	})

	profile, err := client.UserByFID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), profile.FID)
	assert.Equal(t, "dwr", profile.Username)
	assert.Equal(t, "Dan", profile.DisplayName)
	assert.Equal(t, "https://img/3.png", profile.PfpURL)
	assert.Equal(t, "building farcaster", profile.Bio)
	assert.Equal(t, 1200, profile.FollowerCount)
	assert.Equal(t, 300, profile.FollowingCount)
}

func TestNeynarClientUserNotFound(t *testing.T) {
	client := newNeynarServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"users":[]}`))
	})

	_, err := client.UserByFID(context.Background(), 99)
	var nf *errors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "99", nf.ID)
}

func TestNeynarClient404IsNotFound(t *testing.T) {
	client := newNeynarServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"user not found"}`, http.StatusNotFound)
	})

	_, err := client.UserByFID(context.Background(), 77)
	var nf *errors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "77", nf.ID)
	assert.Equal(t, http.StatusNotFound, errors.StatusOf(err))

	_, err = client.CastsByFID(context.Background(), 78, 10)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "78", nf.ID)
}

func TestNeynarClientCastsConvertTimestamps(t *testing.T) {
	client := newNeynarServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/farcaster/feed/user/casts", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(castsJSON))
	})

	casts, err := client.CastsByFID(context.Background(), 3, 25)
	require.NoError(t, err)
	require.Len(t, casts, 2)
	want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli()
	assert.Equal(t, want, casts[0].TimestampMillis)
	assert.Equal(t, "0xabc", casts[0].Hash)
	assert.Zero(t, casts[1].TimestampMillis)
}

func TestNeynarClientReactions(t *testing.T) {
	client := newNeynarServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/farcaster/reactions/user", r.URL.Path)
		assert.Equal(t, "likes", r.URL.Query().Get("type"))
		_, _ = w.Write([]byte(reactionsJSON))
	})

	reactions, err := client.ReactionsByFID(context.Background(), 3, 50)
	require.NoError(t, err)
	require.Len(t, reactions, 1)
	assert.Equal(t, "like", reactions[0].Type)
	assert.Equal(t, "0x123", reactions[0].CastHash)
}

func TestNeynarClientNon2xxIsDependencyError(t *testing.T) {
	client := newNeynarServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"rate limited"}`, http.StatusTooManyRequests)
	})

	_, err := client.CastsByFID(context.Background(), 3, 10)
	var dep *errors.DependencyError
	require.ErrorAs(t, err, &dep)
	assert.Equal(t, "neynar", dep.Service)
	assert.Equal(t, "casts", dep.Operation)
	assert.False(t, dep.Timeout)
	assert.Equal(t, http.StatusTooManyRequests, dep.Context["status"])
}

func TestNeynarClientDeadlineIsTimeout(t *testing.T) {
	client := newNeynarServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.UserByFID(ctx, 3)
	var dep *errors.DependencyError
	require.ErrorAs(t, err, &dep)
	assert.True(t, dep.Timeout)
	assert.Equal(t, errors.CodeDependencyTimeout, errors.CodeOf(err))
}
