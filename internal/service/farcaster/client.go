package farcaster

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/constants"
	"github.com/kapu/sitcom-match-go/internal/domain"
	"github.com/kapu/sitcom-match-go/internal/util"
	"github.com/kapu/sitcom-match-go/pkg/errors"
)

const serviceName = "neynar"

// Provider fetches the raw pieces of a Farcaster user bundle.
type Provider interface {
	UserByFID(ctx context.Context, fid int64) (*domain.UserProfile, error)
	CastsByFID(ctx context.Context, fid int64, limit int) ([]domain.Cast, error)
	ReactionsByFID(ctx context.Context, fid int64, limit int) ([]domain.Reaction, error)
}

// NeynarClient talks to the Neynar v2 REST API.
type NeynarClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewNeynarClient(baseURL, apiKey string, httpClient *http.Client, logger *zap.Logger) *NeynarClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.FarcasterConfig.HTTPClientTimeout}
	}
	if baseURL == "" {
		baseURL = constants.FarcasterConfig.DefaultBaseURL
	}
	return &NeynarClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *NeynarClient) UserByFID(ctx context.Context, fid int64) (*domain.UserProfile, error) {
	params := url.Values{}
	params.Set("fids", strconv.FormatInt(fid, 10))

	var resp bulkUsersResponse
	if err := c.doRequest(ctx, "user", "/v2/farcaster/user/bulk", params, &resp); err != nil {
		c.logger.Error("Failed to fetch Farcaster user", zap.Int64("fid", fid), zap.Error(err))
		return nil, err
	}

	if len(resp.Users) == 0 {
		return nil, errors.NewNotFoundError("farcaster user", strconv.FormatInt(fid, 10))
	}

	return resp.Users[0].toDomain(), nil
}

func (c *NeynarClient) CastsByFID(ctx context.Context, fid int64, limit int) ([]domain.Cast, error) {
	params := url.Values{}
	params.Set("fid", strconv.FormatInt(fid, 10))
	params.Set("limit", strconv.Itoa(limit))

	var resp castsResponse
	if err := c.doRequest(ctx, "casts", "/v2/farcaster/feed/user/casts", params, &resp); err != nil {
		c.logger.Error("Failed to fetch casts", zap.Int64("fid", fid), zap.Error(err))
		return nil, err
	}

	casts := make([]domain.Cast, 0, len(resp.Casts))
	for _, cast := range resp.Casts {
		casts = append(casts, cast.toDomain())
	}
	return casts, nil
}

func (c *NeynarClient) ReactionsByFID(ctx context.Context, fid int64, limit int) ([]domain.Reaction, error) {
	params := url.Values{}
	params.Set("fid", strconv.FormatInt(fid, 10))
	params.Set("type", constants.FarcasterConfig.ReactionType)
	params.Set("limit", strconv.Itoa(limit))

	var resp reactionsResponse
	if err := c.doRequest(ctx, "reactions", "/v2/farcaster/reactions/user", params, &resp); err != nil {
		return nil, err
	}

	reactions := make([]domain.Reaction, 0, len(resp.Reactions))
	for _, reaction := range resp.Reactions {
		reactions = append(reactions, reaction.toDomain())
	}
	return reactions, nil
}

func (c *NeynarClient) doRequest(ctx context.Context, op, path string, params url.Values, respBody any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.NewDependencyError("failed to create request", serviceName, op, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.NewDependencyTimeout(serviceName, op, err)
		}
		return errors.NewDependencyError("request failed", serviceName, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.NewNotFoundError("farcaster user", util.FirstNonEmpty(params.Get("fids"), params.Get("fid")))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		depErr := errors.NewDependencyError(
			fmt.Sprintf("Neynar API error: %s", resp.Status),
			serviceName, op,
			fmt.Errorf("status %d: %s", resp.StatusCode, util.Preview(string(bodyBytes), constants.AnalysisLimits.PreviewLength)),
		)
		depErr.Context["status"] = resp.StatusCode
		return depErr
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.NewDependencyTimeout(serviceName, op, err)
		}
		return errors.NewDependencyError("failed to decode response", serviceName, op, err)
	}

	return nil
}
