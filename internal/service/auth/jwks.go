package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/constants"
)

// KeySource resolves a verification key by key id. An empty kid asks for
// the only key in the set.
type KeySource interface {
	Key(ctx context.Context, kid string) (any, error)
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`

	// RSA
	N string `json:"n"`
	E string `json:"e"`

	// EC / OKP
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// JWKSCache fetches a JSON Web Key Set over HTTP and keeps it for ttl.
type JWKSCache struct {
	httpClient *http.Client
	url        string
	ttl        time.Duration
	logger     *zap.Logger

	mu        sync.RWMutex
	keys      map[string]any // kid -> *rsa.PublicKey, *ecdsa.PublicKey or ed25519.PublicKey
	fetchedAt time.Time
	now       func() time.Time
}

func NewJWKSCache(url string, httpClient *http.Client, logger *zap.Logger) *JWKSCache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.QuickAuthConfig.FetchTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWKSCache{
		httpClient: httpClient,
		url:        url,
		ttl:        constants.QuickAuthConfig.JWKSCacheTTL,
		logger:     logger,
		keys:       map[string]any{},
		now:        time.Now,
	}
}

func (j *JWKSCache) Key(ctx context.Context, kid string) (any, error) {
	j.mu.RLock()
	key := lookupKey(j.keys, kid)
	stale := j.fetchedAt.IsZero() || j.now().Sub(j.fetchedAt) > j.ttl
	j.mu.RUnlock()

	if key != nil && !stale {
		return key, nil
	}

	if err := j.refresh(ctx); err != nil {
		// keep serving the previous set while the endpoint is down
		j.mu.RLock()
		key = lookupKey(j.keys, kid)
		j.mu.RUnlock()
		if key != nil {
			j.logger.Warn("JWKS refresh failed, using cached key", zap.Error(err))
			return key, nil
		}
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	key = lookupKey(j.keys, kid)
	if key == nil {
		return nil, fmt.Errorf("kid not found in jwks: %q", kid)
	}
	return key, nil
}

func lookupKey(keys map[string]any, kid string) any {
	if kid != "" {
		return keys[kid]
	}
	if len(keys) == 1 {
		for _, k := range keys {
			return k
		}
	}
	return nil
}

func (j *JWKSCache) refresh(ctx context.Context) error {
	if strings.TrimSpace(j.url) == "" {
		return errors.New("jwks url not set")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return err
	}
	res, err := j.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("jwks fetch failed: %s", res.Status)
	}

	var set jwkSet
	if err := json.NewDecoder(res.Body).Decode(&set); err != nil {
		return err
	}

	next := map[string]any{}
	for i, k := range set.Keys {
		kid := k.Kid
		if strings.TrimSpace(kid) == "" {
			kid = fmt.Sprintf("#%d", i)
		}
		pub, err := parseJWK(k)
		if err != nil {
			j.logger.Debug("Skipping unusable JWK", zap.String("kid", kid), zap.Error(err))
			continue
		}
		next[kid] = pub
	}

	if len(next) == 0 {
		return errors.New("jwks contained no usable keys")
	}

	j.mu.Lock()
	j.keys = next
	j.fetchedAt = j.now()
	j.mu.Unlock()

	j.logger.Debug("JWKS refreshed", zap.Int("keys", len(next)))
	return nil
}

func parseJWK(k jwk) (any, error) {
	switch k.Kty {
	case "RSA":
		return rsaFromModExp(k.N, k.E)
	case "EC":
		return ecdsaFromXY(k.Crv, k.X, k.Y)
	case "OKP":
		return ed25519FromX(k.Crv, k.X)
	default:
		return nil, fmt.Errorf("unsupported key type: %s", k.Kty)
	}
}

func rsaFromModExp(nB64, eB64 string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, err
	}

	n := new(big.Int).SetBytes(nb)
	e := 0
	for _, b := range eb {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, errors.New("invalid exponent")
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}

func ecdsaFromXY(crv, xB64, yB64 string) (*ecdsa.PublicKey, error) {
	if crv != "P-256" {
		return nil, fmt.Errorf("unsupported curve: %s", crv)
	}
	curve := elliptic.P256()

	xb, err := base64.RawURLEncoding.DecodeString(xB64)
	if err != nil {
		return nil, err
	}
	yb, err := base64.RawURLEncoding.DecodeString(yB64)
	if err != nil {
		return nil, err
	}

	x := new(big.Int).SetBytes(xb)
	y := new(big.Int).SetBytes(yb)
	if !curve.IsOnCurve(x, y) {
		return nil, errors.New("invalid EC point")
	}

	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

func ed25519FromX(crv, xB64 string) (ed25519.PublicKey, error) {
	if crv != "Ed25519" {
		return nil, fmt.Errorf("unsupported curve: %s", crv)
	}
	xb, err := base64.RawURLEncoding.DecodeString(xB64)
	if err != nil {
		return nil, err
	}
	if len(xb) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 key length: %d", len(xb))
	}
	return ed25519.PublicKey(xb), nil
}
