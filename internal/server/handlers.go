package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/constants"
	"github.com/kapu/sitcom-match-go/internal/domain"
	"github.com/kapu/sitcom-match-go/internal/service/analysis"
	"github.com/kapu/sitcom-match-go/internal/service/auth"
	"github.com/kapu/sitcom-match-go/internal/util"
	"github.com/kapu/sitcom-match-go/pkg/errors"
)

const (
	msgAnalysisFailed = "Failed to analyze personality. Please try again later."
	msgFetchFailed    = "Failed to fetch Farcaster data. Please try again later."
	msgInternal       = "Internal server error"
)

type analyzedUser struct {
	Username          string `json:"username"`
	DisplayName       string `json:"displayName"`
	CastsAnalyzed     int    `json:"castsAnalyzed"`
	ReactionsAnalyzed int    `json:"reactionsAnalyzed"`
}

type analyzeResponse struct {
	Success   bool               `json:"success"`
	Analysis  domain.MatchResult `json:"analysis"`
	UserData  analyzedUser       `json:"userData"`
	Strategy  string             `json:"strategy"`
	Fallback  bool               `json:"fallback"`
	Provider  string             `json:"provider,omitempty"`
	Timestamp string             `json:"timestamp"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, errors.NewValidationError("Request body must be valid JSON: "+err.Error(), "body", nil), msgInternal)
		return
	}

	in, ok := req.normalize()
	if !ok {
		s.respondError(c, errors.NewValidationError("User data is required for analysis", "userData", nil), msgInternal)
		return
	}

	strategy := s.deps.Analyzer.DefaultStrategy()
	if in.Strategy != "" {
		parsed, err := domain.ParseStrategy(in.Strategy)
		if err != nil {
			s.respondError(c, errors.NewValidationError("strategy must be json or triple", "strategy", in.Strategy), msgInternal)
			return
		}
		strategy = parsed
	}

	user := analyzedUser{
		Username:          "Unknown",
		DisplayName:       "Unknown",
		CastsAnalyzed:     min(len(in.Casts), constants.AnalysisLimits.MaxCastsAnalyzed),
		ReactionsAnalyzed: in.Reactions,
	}
	if in.Profile != nil {
		user.Username = util.FirstNonEmpty(in.Profile.Username, user.Username)
		user.DisplayName = util.FirstNonEmpty(in.Profile.DisplayName, user.DisplayName)
	}

	resp := analyzeResponse{
		Success:  true,
		UserData: user,
		Strategy: strategy.String(),
	}

	outcome, err := s.deps.Analyzer.Analyze(c.Request.Context(), analysis.AnalyzeRequest{
		Profile:  in.Profile,
		Casts:    in.Casts,
		Strategy: strategy,
	})
	if err != nil {
		result, substituted := s.policy.resolve(strategy, in.Profile, err)
		if !substituted {
			s.respondError(c, err, msgAnalysisFailed)
			return
		}
		resp.Analysis = result
		resp.Fallback = true
		resp.Timestamp = timestamp()
		c.JSON(http.StatusOK, resp)
		return
	}

	resp.Analysis = outcome.Result
	resp.Provider = outcome.Provider
	resp.UserData.CastsAnalyzed = outcome.CastsAnalyzed
	resp.Timestamp = timestamp()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleConnect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, errors.NewValidationError("Request body must be valid JSON: "+err.Error(), "body", nil), msgInternal)
		return
	}

	var missing []string
	if req.signer() == "" {
		missing = append(missing, "signerUuid")
	}
	if req.FID <= 0 {
		missing = append(missing, "fid")
	}
	if req.wallet() == "" {
		missing = append(missing, "walletAddress")
	}
	if len(missing) > 0 {
		s.respondError(c, errors.NewValidationError(
			"Missing required parameters: signerUuid, fid, walletAddress", missing[0], missing), msgInternal)
		return
	}

	s.logger.Info("Farcaster connect", zap.Int64("fid", int64(req.FID)))

	bundle, err := s.deps.Collector.Collect(c.Request.Context(), int64(req.FID))
	if err != nil {
		s.respondError(c, err, msgFetchFailed)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) handleMe(c *gin.Context) {
	token, err := auth.BearerToken(c.GetHeader("Authorization"))
	if err != nil {
		s.respondError(c, err, msgInternal)
		return
	}

	identity, err := s.deps.Verifier.Verify(c.Request.Context(), token, s.deps.Verifier.Audience(c.Request.Host))
	if err != nil {
		s.respondError(c, err, msgInternal)
		return
	}

	bundle, err := s.deps.Collector.Collect(c.Request.Context(), identity.FID)
	if err != nil {
		s.respondError(c, err, msgFetchFailed)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":    "ok",
		"catalog":   s.deps.CatalogSize,
		"strategy":  s.deps.Analyzer.DefaultStrategy().String(),
		"fallback":  s.policy.enabled,
		"timestamp": timestamp(),
	}
	if len(s.deps.FixtureModes) > 0 {
		body["fixtures"] = s.deps.FixtureModes
	}
	if s.deps.LLM != nil {
		body["llm"] = s.deps.LLM.Status()
	}
	c.JSON(http.StatusOK, body)
}

// handleEnv reports which credentials are present. Values are never shown.
func (s *Server) handleEnv(c *gin.Context) {
	body := gin.H{
		"mode":        gin.Mode(),
		"diagnostics": s.cfg.Diagnostics,
		"timestamp":   timestamp(),
	}
	if s.deps.KeyReport != nil {
		body["keys"] = s.deps.KeyReport()
	}
	c.JSON(http.StatusOK, body)
}
