package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/pkg/errors"
)

const (
	testIssuer = "https://auth.farcaster.xyz"
	testDomain = "miniapp.example.com"
)

type jwksFixture struct {
	priv    ed25519.PrivateKey
	fetches atomic.Int32
	status  atomic.Int32
	cache   *JWKSCache
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	f := &jwksFixture{priv: priv}
	f.status.Store(http.StatusOK)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		f.fetches.Add(1)
		if code := int(f.status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "OKP",
				"crv": "Ed25519",
				"kid": "k1",
				"x":   base64.RawURLEncoding.EncodeToString(pub),
			}},
		})
	}))
	t.Cleanup(srv.Close)

	f.cache = NewJWKSCache(srv.URL, srv.Client(), zap.NewNop())
	return f
}

func (f *jwksFixture) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(f.priv)
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss": testIssuer,
		"aud": testDomain,
		"sub": 6841,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerifyAcceptsNumericSub(t *testing.T) {
	f := newJWKSFixture(t)
	v := NewVerifier(f.cache, VerifierConfig{Issuer: testIssuer}, zap.NewNop())

	identity, err := v.Verify(context.Background(), f.sign(t, validClaims()), testDomain)
	require.NoError(t, err)
	assert.Equal(t, int64(6841), identity.FID)
	assert.False(t, identity.ExpiresAt.IsZero())
}

func TestVerifyAcceptsStringSub(t *testing.T) {
	f := newJWKSFixture(t)
	v := NewVerifier(f.cache, VerifierConfig{Issuer: testIssuer}, zap.NewNop())

	claims := validClaims()
	claims["sub"] = "1234"
	identity, err := v.Verify(context.Background(), f.sign(t, claims), testDomain)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), identity.FID)
}

func TestVerifyRejects(t *testing.T) {
	cases := map[string]struct {
		mutate func(jwt.MapClaims)
		reason string
	}{
		"expired": {
			mutate: func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() },
			reason: "expired",
		},
		"missing exp": {
			mutate: func(c jwt.MapClaims) { delete(c, "exp") },
			reason: "invalid_token",
		},
		"wrong issuer": {
			mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil.example" },
			reason: "invalid_token",
		},
		"wrong audience": {
			mutate: func(c jwt.MapClaims) { c["aud"] = "other.example.com" },
			reason: "invalid_token",
		},
		"non numeric sub": {
			mutate: func(c jwt.MapClaims) { c["sub"] = "alice" },
			reason: "invalid_subject",
		},
	}

	f := newJWKSFixture(t)
	v := NewVerifier(f.cache, VerifierConfig{Issuer: testIssuer}, zap.NewNop())

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			claims := validClaims()
			tc.mutate(claims)

			_, err := v.Verify(context.Background(), f.sign(t, claims), testDomain)
			var ae *errors.AuthError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tc.reason, ae.Reason)
			assert.Equal(t, http.StatusUnauthorized, errors.StatusOf(err))
		})
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	f := newJWKSFixture(t)
	v := NewVerifier(f.cache, VerifierConfig{Issuer: testIssuer}, zap.NewNop())

	_, other, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, validClaims())
	tok.Header["kid"] = "k1"
	forged, err := tok.SignedString(other)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), forged, testDomain)
	var ae *errors.AuthError
	require.ErrorAs(t, err, &ae)
}

func TestJWKSCacheReusesKeysUntilStale(t *testing.T) {
	f := newJWKSFixture(t)
	now := time.Now()
	f.cache.now = func() time.Time { return now }
	v := NewVerifier(f.cache, VerifierConfig{Issuer: testIssuer}, zap.NewNop())
	token := f.sign(t, validClaims())

	for i := 0; i < 3; i++ {
		_, err := v.Verify(context.Background(), token, testDomain)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.fetches.Load())

	now = now.Add(7 * time.Hour)
	f.status.Store(http.StatusServiceUnavailable)
	_, err := v.Verify(context.Background(), token, testDomain)
	require.NoError(t, err, "stale keys are served while the endpoint is down")
	assert.Equal(t, int32(2), f.fetches.Load())
}

func TestJWKSCacheUnavailableOnFirstFetch(t *testing.T) {
	f := newJWKSFixture(t)
	f.status.Store(http.StatusInternalServerError)
	v := NewVerifier(f.cache, VerifierConfig{Issuer: testIssuer}, zap.NewNop())

	_, err := v.Verify(context.Background(), f.sign(t, validClaims()), testDomain)
	var ae *errors.AuthError
	require.ErrorAs(t, err, &ae)
}

func TestParseJWKSupportsECP256(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	key, err := parseJWK(jwk{
		Kty: "EC",
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(priv.X.Bytes()),
		Y:   base64.RawURLEncoding.EncodeToString(priv.Y.Bytes()),
	})
	require.NoError(t, err)
	assert.IsType(t, &ecdsa.PublicKey{}, key)

	_, err = parseJWK(jwk{Kty: "EC", Crv: "P-384"})
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer   "} {
		_, err := BearerToken(header)
		var ae *errors.AuthError
		require.ErrorAs(t, err, &ae, header)
		assert.Equal(t, "missing_token", ae.Reason)
	}
}

func TestAudiencePrefersConfiguredDomain(t *testing.T) {
	v := NewVerifier(nil, VerifierConfig{Domain: testDomain}, zap.NewNop())
	assert.Equal(t, testDomain, v.Audience("localhost:8080"))

	v = NewVerifier(nil, VerifierConfig{}, zap.NewNop())
	assert.Equal(t, "localhost:8080", v.Audience("localhost:8080"))
	assert.Equal(t, "localhost:3000", v.Audience(""))
}
