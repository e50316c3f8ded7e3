package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/constants"
	"github.com/kapu/sitcom-match-go/pkg/errors"
)

var allowedAlgs = []string{"EdDSA", "ES256", "RS256"}

// Identity is what a verified Quick Auth token says about the caller.
type Identity struct {
	FID       int64
	Issuer    string
	ExpiresAt time.Time
}

// Verifier checks Farcaster Quick Auth bearer tokens.
type Verifier struct {
	keys   KeySource
	issuer string
	domain string
	leeway time.Duration
	now    func() time.Time
	logger *zap.Logger
}

type VerifierConfig struct {
	Issuer string
	// Domain is the expected audience. Empty means the request host decides.
	Domain string
}

func NewVerifier(keys KeySource, cfg VerifierConfig, logger *zap.Logger) *Verifier {
	if cfg.Issuer == "" {
		cfg.Issuer = constants.QuickAuthConfig.DefaultIssuer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		keys:   keys,
		issuer: cfg.Issuer,
		domain: cfg.Domain,
		leeway: constants.QuickAuthConfig.Leeway,
		now:    time.Now,
		logger: logger,
	}
}

// Audience picks the configured domain, falling back to the request host.
func (v *Verifier) Audience(requestHost string) string {
	if v.domain != "" {
		return v.domain
	}
	if requestHost != "" {
		return requestHost
	}
	return "localhost:3000"
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.NewAuthError("Missing or invalid authorization header", "missing_token", nil)
	}
	return strings.TrimSpace(token), nil
}

// Verify validates signature, issuer, audience and expiry, then reads the
// FID from sub.
func (v *Verifier) Verify(ctx context.Context, token, audience string) (*Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.NewAuthError("Missing or invalid authorization header", "missing_token", nil)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(allowedAlgs),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithJSONNumber(),
	)

	claims := jwt.MapClaims{}
	tok, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		reason := "invalid_token"
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			reason = "expired"
		}
		v.logger.Info("Quick Auth token rejected", zap.String("reason", reason), zap.Error(err))
		return nil, errors.NewAuthError("Invalid or expired token", reason, err)
	}
	if tok == nil || !tok.Valid {
		return nil, errors.NewAuthError("Invalid or expired token", "invalid_token", nil)
	}

	fid, err := subjectFID(claims["sub"])
	if err != nil {
		return nil, errors.NewAuthError("Invalid or expired token", "invalid_subject", err)
	}

	identity := &Identity{FID: fid, Issuer: v.issuer}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	return identity, nil
}

// subjectFID accepts sub as a JSON number or a numeric string.
func subjectFID(sub any) (int64, error) {
	var (
		fid int64
		err error
	)
	switch s := sub.(type) {
	case json.Number:
		fid, err = s.Int64()
	case string:
		fid, err = strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case float64:
		fid = int64(s)
		if float64(fid) != s {
			err = fmt.Errorf("non-integer sub: %v", s)
		}
	case nil:
		err = stderrors.New("missing sub")
	default:
		err = fmt.Errorf("unexpected sub type %T", sub)
	}
	if err != nil {
		return 0, err
	}
	if fid <= 0 {
		return 0, fmt.Errorf("non-positive fid: %d", fid)
	}
	return fid, nil
}
