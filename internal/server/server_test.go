package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/catalog"
	"github.com/kapu/sitcom-match-go/internal/config"
	"github.com/kapu/sitcom-match-go/internal/domain"
	"github.com/kapu/sitcom-match-go/internal/service/analysis"
	"github.com/kapu/sitcom-match-go/internal/service/auth"
	"github.com/kapu/sitcom-match-go/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAnalyzer struct {
	outcome *analysis.Outcome
	err     error
	got     analysis.AnalyzeRequest
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req analysis.AnalyzeRequest) (*analysis.Outcome, error) {
	f.got = req
	return f.outcome, f.err
}

func (f *fakeAnalyzer) DefaultStrategy() domain.Strategy {
	return domain.StrategyJSON
}

type fakeCollector struct {
	bundle *domain.UserData
	err    error
	fid    int64
}

func (f *fakeCollector) Collect(_ context.Context, fid int64) (*domain.UserData, error) {
	f.fid = fid
	return f.bundle, f.err
}

type fakeVerifier struct {
	fid      int64
	err      error
	audience string
}

func (f *fakeVerifier) Verify(_ context.Context, _ string, audience string) (*auth.Identity, error) {
	f.audience = audience
	if f.err != nil {
		return nil, f.err
	}
	return &auth.Identity{FID: f.fid}, nil
}

func (f *fakeVerifier) Audience(host string) string {
	return host
}

type testEnv struct {
	analyzer  *fakeAnalyzer
	collector *fakeCollector
	verifier  *fakeVerifier
	handler   http.Handler
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		analyzer: &fakeAnalyzer{outcome: &analysis.Outcome{
			Result: domain.NewMultiMatch(domain.MultiMatch{
				TopMatches: []domain.TopMatch{{Character: "Leslie Knope", Show: "Parks and Recreation", Confidence: 88, Reasoning: "organized"}},
			}),
			Strategy:      domain.StrategyJSON,
			Provider:      "groq",
			CastsAnalyzed: 2,
		}},
		collector: &fakeCollector{bundle: &domain.UserData{
			FID:       7,
			Profile:   domain.UserProfile{FID: 7, Username: "alice"},
			Casts:     []domain.Cast{},
			Reactions: []domain.Reaction{},
		}},
		verifier: &fakeVerifier{fid: 7},
	}

	srv := New(cfg, Dependencies{
		Analyzer:    env.analyzer,
		Fallback:    analysis.NewFallbackGenerator(catalog.Default(), 1),
		Collector:   env.collector,
		Verifier:    env.verifier,
		CatalogSize: catalog.Default().Len(),
		KeyReport: func() []config.KeyStatus {
			return []config.KeyStatus{{Name: "NEYNAR_API_KEY", Exists: true, Length: 12}}
		},
	}, zap.NewNop())
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func TestAnalyzeFlatBody(t *testing.T) {
	env := newTestEnv(t, Config{FallbackEnabled: true})

	rec, body := env.do(t, http.MethodPost, "/analyze",
		`{"casts":[{"text":"gm","timestamp":1700000000000,"hash":"0x1"},{"text":"gn","timestamp":"2025-01-02T03:04:05Z","id":"0x2"}],
		  "username":"alice","display_name":"Alice","follower_count":10}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["fallback"])
	assert.Equal(t, "groq", body["provider"])
	analysisBody := body["analysis"].(map[string]any)
	assert.Equal(t, "multi", analysisBody["kind"])

	user := body["userData"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "Alice", user["displayName"])
	assert.EqualValues(t, 2, user["castsAnalyzed"])

	got := env.analyzer.got
	require.Len(t, got.Casts, 2)
	assert.Equal(t, int64(1700000000000), got.Casts[0].TimestampMillis)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli(), got.Casts[1].TimestampMillis)
	assert.Equal(t, "0x2", got.Casts[1].Hash)
	require.NotNil(t, got.Profile)
	assert.Equal(t, 10, got.Profile.FollowerCount)
	assert.Equal(t, domain.StrategyJSON, got.Strategy)
}

func TestAnalyzeBundleBodyOnAlias(t *testing.T) {
	env := newTestEnv(t, Config{FallbackEnabled: true})

	rec, body := env.do(t, http.MethodPost, "/api/analyze",
		`{"strategy":"TRIPLE","userData":{"fid":"7","profile":{"username":"bob","displayName":"Bob","followingCount":3},
		  "casts":[{"text":"hello","timestamp":1}],"reactions":[{"type":"like","castHash":"0x9","timestamp":2}]}}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	user := body["userData"].(map[string]any)
	assert.EqualValues(t, 1, user["reactionsAnalyzed"])

	got := env.analyzer.got
	assert.Equal(t, domain.StrategyTriple, got.Strategy)
	require.NotNil(t, got.Profile)
	assert.Equal(t, int64(7), got.Profile.FID)
	assert.Equal(t, "Bob", got.Profile.DisplayName)
	assert.Equal(t, 3, got.Profile.FollowingCount)
	require.Len(t, got.Casts, 1)
}

func TestAnalyzeValidation(t *testing.T) {
	env := newTestEnv(t, Config{FallbackEnabled: true})

	cases := map[string]string{
		"missing data":  `{}`,
		"bad strategy":  `{"casts":[],"strategy":"xml"}`,
		"bad timestamp": `{"casts":[{"text":"x","timestamp":"yesterday"}]}`,
		"not json":      `casts please`,
		"empty body":    ``,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, "/analyze", payload, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, errors.CodeValidation, body["code"])
			assert.NotContains(t, body, "details")
		})
	}
}

func TestAnalyzeEmptyCastsIsAccepted(t *testing.T) {
	env := newTestEnv(t, Config{FallbackEnabled: true})

	rec, _ := env.do(t, http.MethodPost, "/analyze", `{"casts":[]}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.analyzer.got.Casts)
}

func TestAnalyzeParseErrorServesFallback(t *testing.T) {
	env := newTestEnv(t, Config{FallbackEnabled: true})
	env.analyzer.outcome = nil
	env.analyzer.err = errors.NewParseError(errors.ParseMalformedJSON, "bad json", nil, nil)

	rec, body := env.do(t, http.MethodPost, "/analyze", `{"casts":[{"text":"gm"}],"username":"alice"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["fallback"])
	analysisBody := body["analysis"].(map[string]any)
	assert.Equal(t, "multi", analysisBody["kind"])
	top := analysisBody["topMatches"].([]any)[0].(map[string]any)
	confidence := top["confidence"].(float64)
	assert.GreaterOrEqual(t, confidence, 75.0)
	assert.Less(t, confidence, 95.0)
	_, known := catalog.Default().Lookup(top["character"].(string))
	assert.True(t, known)
}

func TestAnalyzeDependencyErrorServesFallback(t *testing.T) {
	env := newTestEnv(t, Config{FallbackEnabled: true})
	env.analyzer.outcome = nil
	env.analyzer.err = errors.NewDependencyTimeout("groq", "generate", context.DeadlineExceeded)

	rec, body := env.do(t, http.MethodPost, "/analyze", `{"casts":[],"strategy":"triple"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["fallback"])
	assert.Equal(t, "single", body["analysis"].(map[string]any)["kind"])
}

func TestAnalyzeDiagnosticsSurfacesRawError(t *testing.T) {
	env := newTestEnv(t, Config{Diagnostics: true, FallbackEnabled: false})
	env.analyzer.outcome = nil
	env.analyzer.err = errors.NewParseError(errors.ParseUnknownCharacter, "unknown character", nil, nil)

	rec, body := env.do(t, http.MethodPost, "/analyze", `{"casts":[]}`, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errors.CodeParse, body["code"])
	assert.Equal(t, msgAnalysisFailed, body["error"])
	assert.Contains(t, body["details"], "unknown character")
}

func TestAnalyzeValidationErrorIsNeverReplaced(t *testing.T) {
	env := newTestEnv(t, Config{FallbackEnabled: true})
	env.analyzer.outcome = nil
	env.analyzer.err = errors.NewValidationError("strategy must be json or triple", "strategy", "x")

	rec, _ := env.do(t, http.MethodPost, "/analyze", `{"casts":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnect(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec, body := env.do(t, http.MethodPost, "/api/farcaster/connect",
		`{"signer_uuid":"abc","fid":7,"wallet_address":"0xwallet"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), env.collector.fid)
	assert.EqualValues(t, 7, body["fid"])
	assert.Equal(t, "alice", body["profile"].(map[string]any)["username"])

	rec, body = env.do(t, http.MethodPost, "/connect", `{"signerUuid":"abc","fid":7}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "walletAddress")
}

func TestConnectNotFound(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.collector.bundle = nil
	env.collector.err = errors.NewNotFoundError("farcaster user", "7")

	rec, body := env.do(t, http.MethodPost, "/connect",
		`{"signerUuid":"abc","fid":7,"walletAddress":"0xw"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.CodeNotFound, body["code"])
}

func TestConnectDependencyFailureIsGeneric(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.collector.bundle = nil
	env.collector.err = errors.NewDependencyError("Neynar API error: 502", "neynar", "casts", nil)

	rec, body := env.do(t, http.MethodPost, "/connect",
		`{"signerUuid":"abc","fid":7,"walletAddress":"0xw"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, msgFetchFailed, body["error"])
	assert.NotContains(t, body, "details")
}

func TestMe(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec, body := env.do(t, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errors.CodeAuth, body["code"])

	rec, _ = env.do(t, http.MethodGet, "/api/farcaster/me", "", map[string]string{"Authorization": "Bearer token"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), env.collector.fid)
	assert.Equal(t, "example.com", env.verifier.audience)

	env.verifier.err = errors.NewAuthError("Invalid or expired token", "expired", nil)
	rec, body = env.do(t, http.MethodGet, "/me", "", map[string]string{"Authorization": "Bearer token"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token", body["error"])
}

func TestDebugEnvOnlyInDiagnostics(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec, _ := env.do(t, http.MethodGet, "/api/test-env", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env = newTestEnv(t, Config{Diagnostics: true})
	rec, body := env.do(t, http.MethodGet, "/debug/env", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	keys := body["keys"].([]any)
	require.Len(t, keys, 1)
	entry := keys[0].(map[string]any)
	assert.Equal(t, "NEYNAR_API_KEY", entry["name"])
	assert.Equal(t, true, entry["exists"])
	assert.NotContains(t, rec.Body.String(), "preview")
}

func TestHealthAndRequestID(t *testing.T) {
	env := newTestEnv(t, Config{FallbackEnabled: true})

	rec, body := env.do(t, http.MethodGet, "/healthz", "", map[string]string{headerRequestID: "req-123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 8, body["catalog"])
	assert.Equal(t, "req-123", rec.Header().Get(headerRequestID))

	rec, _ = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, Config{AllowedOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfigWildcard(t *testing.T) {
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)
	assert.True(t, corsConfig(nil).AllowAllOrigins)

	cfg := corsConfig([]string{"https://app.example"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://app.example"}, cfg.AllowOrigins)
}

func TestRecoveryReturnsJSON(t *testing.T) {
	srv := New(Config{}, Dependencies{Analyzer: &fakeAnalyzer{}}, zap.NewNop())
	srv.router.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, msgInternal, body["error"])
}
