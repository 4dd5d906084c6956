// Package identity resolves the actor of a request from its bearer JWT. Tokens
// are either signed with a shared HMAC secret or with RSA keys published as a
// JWKS document by the identity provider.
package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/signal-admin/backend/models"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is invalid
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned when the token audience is invalid
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrJWKSFetchFailed is returned when JWKS fetching fails
	ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")
)

// JWKS represents the JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Config holds configuration for Validator. Exactly one of HMACSecret and
// JWKSURL must be set.
type Config struct {
	Issuer      string
	Audience    string
	HMACSecret  string
	JWKSURL     string
	CacheTTL    time.Duration
	HTTPTimeout time.Duration
	Leeway      time.Duration
}

// Validator validates bearer tokens
type Validator struct {
	parser     *jwt.Parser
	secret     []byte
	jwksURL    string
	httpClient *http.Client

	// Cache for JWKS
	jwksCache    *JWKS
	jwksCacheExp time.Time
	jwksCacheTTL time.Duration
	cacheMu      sync.RWMutex

	// Cache for parsed public keys
	keyCache   map[string]*rsa.PublicKey
	keyCacheMu sync.RWMutex
}

// NewValidator creates a token validator
func NewValidator(config Config) (*Validator, error) {
	hasSecret := config.HMACSecret != ""
	hasJWKS := config.JWKSURL != ""
	if hasSecret == hasJWKS {
		return nil, errors.New("exactly one of HMAC secret and JWKS URL must be configured")
	}

	if config.CacheTTL == 0 {
		config.CacheTTL = time.Hour
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 10 * time.Second
	}

	method := jwt.SigningMethodRS256.Alg()
	if hasSecret {
		method = jwt.SigningMethodHS256.Alg()
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &Validator{
		parser:       jwt.NewParser(opts...),
		secret:       []byte(config.HMACSecret),
		jwksURL:      config.JWKSURL,
		jwksCacheTTL: config.CacheTTL,
		httpClient: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		keyCache: make(map[string]*rsa.PublicKey),
	}, nil
}

// ValidateToken verifies the token and returns the actor it identifies
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*models.ActorIdentity, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if len(v.secret) > 0 {
			return v.secret, nil
		}

		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("kid header not found")
		}
		publicKey, err := v.getPublicKey(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("failed to get public key: %w", err)
		}
		return publicKey, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, ErrInvalidIssuer
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, ErrInvalidAudience
		case errors.Is(err, ErrJWKSFetchFailed):
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	actor, err := claims.ToActor()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return actor, nil
}

// FetchJWKS fetches the JWKS, serving it from cache while fresh
func (v *Validator) FetchJWKS(ctx context.Context) (*JWKS, error) {
	v.cacheMu.RLock()
	if v.jwksCache != nil && time.Now().Before(v.jwksCacheExp) {
		defer v.cacheMu.RUnlock()
		return v.jwksCache, nil
	}
	v.cacheMu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrJWKSFetchFailed, err)
	}

	v.cacheMu.Lock()
	v.jwksCache = &jwks
	v.jwksCacheExp = time.Now().Add(v.jwksCacheTTL)
	v.cacheMu.Unlock()

	return &jwks, nil
}

// getPublicKey retrieves the public key for a given kid. An unknown kid
// forces one refresh of the key set to pick up rotated keys.
func (v *Validator) getPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.keyCacheMu.RLock()
	if key, exists := v.keyCache[kid]; exists {
		v.keyCacheMu.RUnlock()
		return key, nil
	}
	v.keyCacheMu.RUnlock()

	jwk, err := v.findKey(ctx, kid)
	if err != nil {
		return nil, err
	}
	if jwk == nil {
		v.InvalidateCache()
		if jwk, err = v.findKey(ctx, kid); err != nil {
			return nil, err
		}
	}
	if jwk == nil {
		return nil, fmt.Errorf("key with kid %s not found in JWKS", kid)
	}

	publicKey, err := jwkToRSAPublicKey(jwk)
	if err != nil {
		return nil, fmt.Errorf("failed to convert JWK to RSA public key: %w", err)
	}

	v.keyCacheMu.Lock()
	v.keyCache[kid] = publicKey
	v.keyCacheMu.Unlock()

	return publicKey, nil
}

func (v *Validator) findKey(ctx context.Context, kid string) (*JWK, error) {
	jwks, err := v.FetchJWKS(ctx)
	if err != nil {
		return nil, err
	}
	for i := range jwks.Keys {
		if jwks.Keys[i].Kid == kid {
			return &jwks.Keys[i], nil
		}
	}
	return nil, nil
}

// jwkToRSAPublicKey converts a JWK to an RSA public key
func jwkToRSAPublicKey(jwk *JWK) (*rsa.PublicKey, error) {
	if jwk.Kty != "" && jwk.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %q", jwk.Kty)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var e int
	for _, b := range eBytes {
		e = e*256 + int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

// InvalidateCache drops the cached key set and parsed keys
func (v *Validator) InvalidateCache() {
	v.cacheMu.Lock()
	v.jwksCache = nil
	v.jwksCacheExp = time.Time{}
	v.cacheMu.Unlock()

	v.keyCacheMu.Lock()
	v.keyCache = make(map[string]*rsa.PublicKey)
	v.keyCacheMu.Unlock()
}

// GetCacheStats returns cache statistics
func (v *Validator) GetCacheStats() map[string]interface{} {
	v.cacheMu.RLock()
	defer v.cacheMu.RUnlock()

	v.keyCacheMu.RLock()
	defer v.keyCacheMu.RUnlock()

	stats := map[string]interface{}{
		"jwks_cached":       v.jwksCache != nil,
		"jwks_expires_at":   v.jwksCacheExp,
		"cached_keys_count": len(v.keyCache),
	}
	if v.jwksCache != nil {
		stats["jwks_keys_count"] = len(v.jwksCache.Keys)
	}
	return stats
}
